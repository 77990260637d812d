package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/ehr/booking/internal/platform/fhir"
)

// fhirStore adapts a FHIR REST endpoint holding Appointment resources to the
// ReservationStore contract. All wire validation happens here: once a
// Reservation leaves this adapter its interval and status are trustworthy.
type fhirStore struct {
	client *fhir.Client
}

// NewFHIRStore creates a ReservationStore backed by the given FHIR client.
func NewFHIRStore(client *fhir.Client) ReservationStore {
	return &fhirStore{client: client}
}

func (s *fhirStore) List(ctx context.Context, f ListFilter) ([]*Reservation, error) {
	params := url.Values{}
	if !f.Date.IsZero() {
		day := f.Date.UTC().Truncate(24 * time.Hour)
		params.Add("date", "ge"+day.Format(time.RFC3339))
		params.Add("date", "lt"+day.Add(24*time.Hour).Format(time.RFC3339))
	}
	if f.PatientID != "" {
		params.Set("patient", f.PatientID)
	}
	if f.PractitionerID != "" {
		params.Set("practitioner", f.PractitionerID)
	}
	if f.LocationID != "" {
		params.Set("location", f.LocationID)
	}
	if f.Status != "" {
		params.Set("status", string(f.Status))
	}

	raws, err := s.client.Search(ctx, "Appointment", params)
	if err != nil {
		return nil, mapClientError("list", err)
	}

	reservations := make([]*Reservation, 0, len(raws))
	for _, raw := range raws {
		r, err := decodeAppointment(raw)
		if err != nil {
			return nil, storeError("list", StoreMalformed, err)
		}
		reservations = append(reservations, r)
	}
	return reservations, nil
}

func (s *fhirStore) Get(ctx context.Context, id string) (*Reservation, error) {
	raw, err := s.client.Get(ctx, "Appointment", id)
	if err != nil {
		return nil, mapClientError("get", err)
	}
	r, err := decodeAppointment(raw)
	if err != nil {
		return nil, storeError("get", StoreMalformed, err)
	}
	return r, nil
}

func (s *fhirStore) Create(ctx context.Context, r *Reservation) (*Reservation, error) {
	raw, err := s.client.Create(ctx, "Appointment", encodeAppointment(r))
	if err != nil {
		return nil, mapClientError("create", err)
	}
	created, err := decodeAppointment(raw)
	if err != nil {
		return nil, storeError("create", StoreMalformed, err)
	}
	return created, nil
}

func (s *fhirStore) Update(ctx context.Context, id string, r *Reservation) (*Reservation, error) {
	appt := encodeAppointment(r)
	appt.ID = id
	raw, err := s.client.Update(ctx, "Appointment", id, appt, r.Version)
	if err != nil {
		return nil, mapClientError("update", err)
	}
	updated, err := decodeAppointment(raw)
	if err != nil {
		return nil, storeError("update", StoreMalformed, err)
	}
	return updated, nil
}

// mapClientError translates fhir client sentinels into the store failure
// taxonomy.
func mapClientError(op string, err error) *StoreError {
	switch {
	case errors.Is(err, fhir.ErrNotFound):
		return storeError(op, StoreNotFound, err)
	case errors.Is(err, fhir.ErrUnauthorized):
		return storeError(op, StoreUnauthorized, err)
	case errors.Is(err, fhir.ErrVersionConflict):
		return storeError(op, StoreVersionConflict, err)
	case errors.Is(err, fhir.ErrMalformed):
		return storeError(op, StoreMalformed, err)
	default:
		return storeError(op, StoreUnreachable, err)
	}
}

func decodeAppointment(raw json.RawMessage) (*Reservation, error) {
	var a fhir.Appointment
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode appointment: %w", err)
	}
	if a.ResourceType != "Appointment" {
		return nil, fmt.Errorf("expected Appointment, got %q", a.ResourceType)
	}
	if a.ID == "" {
		return nil, fmt.Errorf("appointment has no id")
	}
	if a.Status == "" {
		return nil, fmt.Errorf("appointment %s has no status", a.ID)
	}
	iv, err := ParseInterval(a.Start, a.End)
	if err != nil {
		return nil, fmt.Errorf("appointment %s: %w", a.ID, err)
	}

	r := &Reservation{
		ID:          a.ID,
		Interval:    iv,
		Status:      ParseStatus(a.Status),
		Description: a.Description,
	}
	if a.Meta != nil {
		r.Version = a.Meta.VersionID
	}
	if len(a.ServiceCategory) > 0 {
		r.Category = a.ServiceCategory[0].Code()
	}
	for _, p := range a.Participant {
		kind, id := fhir.SplitReference(p.Actor.Reference)
		switch ActorKind(kind) {
		case ActorPatient, ActorPractitioner, ActorLocation:
			r.AddActor(Actor{Kind: ActorKind(kind), ID: id})
		}
	}
	return r, nil
}

func encodeAppointment(r *Reservation) fhir.Appointment {
	a := fhir.Appointment{
		ResourceType: "Appointment",
		ID:           r.ID,
		Status:       string(r.Status),
		Description:  r.Description,
		Start:        r.Interval.Start.Format(time.RFC3339),
		End:          r.Interval.End.Format(time.RFC3339),
	}
	if r.Category != "" {
		a.ServiceCategory = []fhir.CodeableConcept{{Coding: []fhir.Coding{{Code: r.Category}}}}
	}
	for _, actor := range r.Actors {
		a.Participant = append(a.Participant, fhir.AppointmentParticipant{
			Actor:  fhir.Reference{Reference: fhir.FormatReference(string(actor.Kind), actor.ID)},
			Status: "accepted",
		})
	}
	return a
}
