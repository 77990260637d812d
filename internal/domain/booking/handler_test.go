package booking

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newTestServer(store ReservationStore) *echo.Echo {
	e := echo.New()
	h := NewHandler(NewService(store, zerolog.Nop()))
	h.RegisterRoutes(e.Group("/api/v1"))
	return e
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Book_Created(t *testing.T) {
	store := &fakeStore{}
	e := newTestServer(store)

	rec := doJSON(e, http.MethodPost, "/api/v1/scheduling/book", `{
		"patient_id": "pat-1",
		"practitioner_id": "prac-1",
		"start": "2026-03-14T10:00:00Z",
		"end": "2026-03-14T10:30:00Z",
		"description": "annual checkup"
	}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ID          string  `json:"id"`
		Status      string  `json:"status"`
		Actors      []Actor `json:"actors"`
		Description string  `json:"description"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID == "" {
		t.Error("response has no reservation id")
	}
	if resp.Status != "booked" {
		t.Errorf("status = %q, want booked", resp.Status)
	}
	if len(resp.Actors) != 2 {
		t.Errorf("expected 2 actors, got %d", len(resp.Actors))
	}
	if resp.Description != "annual checkup" {
		t.Errorf("description = %q", resp.Description)
	}
}

func TestHandler_Book_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing patient", `{"start": "2026-03-14T10:00:00Z", "end": "2026-03-14T10:30:00Z"}`},
		{"missing start", `{"patient_id": "pat-1", "end": "2026-03-14T10:30:00Z"}`},
		{"missing end", `{"patient_id": "pat-1", "start": "2026-03-14T10:00:00Z"}`},
		{"malformed start", `{"patient_id": "pat-1", "start": "soon", "end": "2026-03-14T10:30:00Z"}`},
		{"inverted interval", `{"patient_id": "pat-1", "start": "2026-03-14T11:00:00Z", "end": "2026-03-14T10:00:00Z"}`},
		{"status free", `{"patient_id": "pat-1", "start": "2026-03-14T10:00:00Z", "end": "2026-03-14T10:30:00Z", "status": "free"}`},
		{"not json", `this is not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			e := newTestServer(store)

			rec := doJSON(e, http.MethodPost, "/api/v1/scheduling/book", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400; body: %s", rec.Code, rec.Body.String())
			}
			if store.mutations() != 0 {
				t.Errorf("store mutated on invalid input: %v", store.calls)
			}
		})
	}
}

func TestHandler_Book_Conflict(t *testing.T) {
	busy := &Reservation{
		ID:       "res-busy",
		Version:  "1",
		Status:   StatusBooked,
		Actors:   []Actor{{Kind: ActorPractitioner, ID: "prac-1"}},
		Interval: mustInterval(t, "2026-03-14T10:00:00Z", "2026-03-14T10:30:00Z"),
	}
	e := newTestServer(&fakeStore{reservations: []*Reservation{busy}})

	rec := doJSON(e, http.MethodPost, "/api/v1/scheduling/book", `{
		"patient_id": "pat-1",
		"practitioner_id": "prac-1",
		"start": "2026-03-14T10:15:00Z",
		"end": "2026-03-14T10:45:00Z"
	}`)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409; body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Error                  string `json:"error"`
		ConflictingReservation string `json:"conflicting_reservation_id"`
		ConflictStart          string `json:"conflict_start"`
		ConflictEnd            string `json:"conflict_end"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode conflict response: %v", err)
	}
	if resp.ConflictingReservation != "res-busy" {
		t.Errorf("conflicting reservation = %q, want res-busy", resp.ConflictingReservation)
	}
	if resp.ConflictStart == "" || resp.ConflictEnd == "" {
		t.Error("conflict response omits the offending interval")
	}
}

func TestHandler_Book_VersionConflict(t *testing.T) {
	slot := &Reservation{
		ID:       "slot-1",
		Version:  "2",
		Status:   StatusFree,
		Actors:   []Actor{{Kind: ActorPractitioner, ID: "prac-1"}},
		Interval: mustInterval(t, "2026-03-14T10:00:00Z", "2026-03-14T10:30:00Z"),
	}
	store := &fakeStore{
		reservations: []*Reservation{slot},
		updateErr:    storeError("update", StoreVersionConflict, errors.New("stale")),
	}
	e := newTestServer(store)

	rec := doJSON(e, http.MethodPost, "/api/v1/scheduling/book", `{
		"patient_id": "pat-1",
		"practitioner_id": "prac-1",
		"start": "2026-03-14T10:00:00Z",
		"end": "2026-03-14T10:30:00Z"
	}`)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409; body: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_Book_StoreFailureIsBadGateway(t *testing.T) {
	store := &fakeStore{listErr: storeError("list", StoreUnreachable, errors.New("dial tcp: refused"))}
	e := newTestServer(store)

	rec := doJSON(e, http.MethodPost, "/api/v1/scheduling/book", `{
		"patient_id": "pat-1",
		"practitioner_id": "prac-1",
		"start": "2026-03-14T10:00:00Z",
		"end": "2026-03-14T10:30:00Z"
	}`)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502; body: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_ListReservations(t *testing.T) {
	mk := func(id, start, end string) *Reservation {
		return &Reservation{
			ID:       id,
			Status:   StatusBooked,
			Actors:   []Actor{{Kind: ActorPractitioner, ID: "prac-1"}},
			Interval: mustInterval(t, start, end),
		}
	}
	store := &fakeStore{reservations: []*Reservation{
		mk("res-b", "2026-03-14T11:00:00Z", "2026-03-14T11:30:00Z"),
		mk("res-a", "2026-03-14T09:00:00Z", "2026-03-14T09:30:00Z"),
	}}
	e := newTestServer(store)

	rec := doJSON(e, http.MethodGet, "/api/v1/scheduling/reservations?date=2026-03-14&practitioner_id=prac-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var out []reservationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 reservations, got %d", len(out))
	}
	if out[0].ID != "res-a" || out[1].ID != "res-b" {
		t.Errorf("reservations out of order: %s, %s", out[0].ID, out[1].ID)
	}
}

func TestHandler_ListReservations_BadRequests(t *testing.T) {
	e := newTestServer(&fakeStore{})

	tests := []struct {
		name string
		path string
	}{
		{"missing date", "/api/v1/scheduling/reservations?practitioner_id=prac-1"},
		{"bad date", "/api/v1/scheduling/reservations?date=14-03-2026&practitioner_id=prac-1"},
		{"no actor filter", "/api/v1/scheduling/reservations?date=2026-03-14"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(e, http.MethodGet, tt.path, "")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400; body: %s", rec.Code, rec.Body.String())
			}
		})
	}
}
