package fhir

import (
	"encoding/json"
	"strings"
	"time"
)

// Meta carries the FHIR resource metadata the booking service reads.
// VersionID doubles as the optimistic concurrency token for updates.
type Meta struct {
	VersionID   string    `json:"versionId,omitempty"`
	LastUpdated time.Time `json:"lastUpdated,omitempty"`
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Code returns the first coding code, falling back to the concept text.
func (cc CodeableConcept) Code() string {
	if len(cc.Coding) > 0 && cc.Coding[0].Code != "" {
		return cc.Coding[0].Code
	}
	return cc.Text
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Type      string `json:"type,omitempty"`
	Display   string `json:"display,omitempty"`
}

type Period struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// FormatReference builds a relative literal reference, e.g. "Patient/123".
func FormatReference(resourceType, id string) string {
	return resourceType + "/" + id
}

// SplitReference splits a relative literal reference into its resource type
// and id. Absolute URLs keep only the trailing type/id pair. Returns empty
// strings when the reference does not carry both parts.
func SplitReference(ref string) (resourceType, id string) {
	parts := strings.Split(ref, "/")
	if len(parts) < 2 {
		return "", ""
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}

// Bundle is a FHIR searchset bundle, limited to the fields needed to unwrap
// search results.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type,omitempty"`
	Total        *int          `json:"total,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// OperationOutcome is the FHIR error envelope returned by the store.
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

type OperationOutcomeIssue struct {
	Severity    string           `json:"severity"`
	Code        string           `json:"code"`
	Details     *CodeableConcept `json:"details,omitempty"`
	Diagnostics string           `json:"diagnostics,omitempty"`
}

// Text flattens the outcome's issues into a single diagnostic string.
func (oo *OperationOutcome) Text() string {
	var parts []string
	for _, issue := range oo.Issue {
		switch {
		case issue.Diagnostics != "":
			parts = append(parts, issue.Diagnostics)
		case issue.Details != nil && issue.Details.Text != "":
			parts = append(parts, issue.Details.Text)
		case issue.Code != "":
			parts = append(parts, issue.Code)
		}
	}
	return strings.Join(parts, "; ")
}
