package fhir

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// Errors classifying store responses. The store adapter translates these into
// its own failure taxonomy; callers match with errors.Is.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrUnreachable     = errors.New("store unreachable")
	ErrMalformed       = errors.New("malformed store response")
	ErrVersionConflict = errors.New("resource version conflict")
)

const contentType = "application/fhir+json"

// DefaultTimeout bounds every request when the caller does not set one.
const DefaultTimeout = 30 * time.Second

// Client is a minimal FHIR REST client for a single base URL. It is
// constructed explicitly and injected into store adapters; there is no
// process-wide shared instance.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	logger  zerolog.Logger
}

// NewClient creates a client for the given FHIR base URL. token may be empty;
// when set it is forwarded as an opaque bearer credential. A non-positive
// timeout falls back to DefaultTimeout.
func NewClient(baseURL, token string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Get fetches a single resource by type and id.
func (c *Client) Get(ctx context.Context, resourceType, id string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, resourceType+"/"+id, nil, "")
}

// Search runs a search on resourceType and unwraps the returned Bundle into
// its entry resources. An empty result set is not an error.
func (c *Client) Search(ctx context.Context, resourceType string, params url.Values) ([]json.RawMessage, error) {
	path := resourceType
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	raw, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}

	var bundle Bundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return nil, fmt.Errorf("decode search bundle: %w", ErrMalformed)
	}
	if bundle.ResourceType != "Bundle" {
		return nil, fmt.Errorf("expected Bundle, got %q: %w", bundle.ResourceType, ErrMalformed)
	}

	resources := make([]json.RawMessage, 0, len(bundle.Entry))
	for _, entry := range bundle.Entry {
		if len(entry.Resource) == 0 {
			continue
		}
		resources = append(resources, entry.Resource)
	}
	return resources, nil
}

// Create posts a new resource; the store assigns the id.
func (c *Client) Create(ctx context.Context, resourceType string, resource interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(resource)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", resourceType, err)
	}
	return c.do(ctx, http.MethodPost, resourceType, body, "")
}

// Update replaces a resource. A non-empty version is sent as a weak If-Match
// ETag so a concurrent change surfaces as ErrVersionConflict instead of a
// silent lost update.
func (c *Client) Update(ctx context.Context, resourceType, id string, resource interface{}, version string) (json.RawMessage, error) {
	body, err := json.Marshal(resource)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", resourceType, err)
	}
	ifMatch := ""
	if version != "" {
		ifMatch = `W/"` + version + `"`
	}
	return c.do(ctx, http.MethodPut, resourceType+"/"+id, body, ifMatch)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, ifMatch string) (json.RawMessage, error) {
	u := c.baseURL + "/" + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", contentType)
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if ifMatch != "" {
		req.Header.Set("If-Match", ifMatch)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Str("path", path).Msg("fhir request failed")
		return nil, fmt.Errorf("%s %s: %v: %w", method, path, err, ErrUnreachable)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s %s: %v: %w", method, path, err, ErrUnreachable)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}

	detail := outcomeText(data)
	c.logger.Warn().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Str("detail", detail).
		Msg("fhir error response")

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, wrapStatus(detail, ErrUnauthorized)
	case http.StatusNotFound, http.StatusGone:
		return nil, wrapStatus(detail, ErrNotFound)
	case http.StatusConflict, http.StatusPreconditionFailed:
		return nil, wrapStatus(detail, ErrVersionConflict)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return nil, wrapStatus(detail, ErrMalformed)
	default:
		return nil, fmt.Errorf("status %d: %s: %w", resp.StatusCode, detail, ErrUnreachable)
	}
}

func wrapStatus(detail string, sentinel error) error {
	if detail == "" {
		return sentinel
	}
	return fmt.Errorf("%s: %w", detail, sentinel)
}

// outcomeText extracts human-readable detail from an OperationOutcome body.
// Returns "" when the body is not an OperationOutcome.
func outcomeText(data []byte) string {
	var oo OperationOutcome
	if err := json.Unmarshal(data, &oo); err != nil || oo.ResourceType != "OperationOutcome" {
		return ""
	}
	return oo.Text()
}
