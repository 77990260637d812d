package booking

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// Statuses a request may ask for. Free is excluded: publishing open slots
// belongs to the staffing process, not to patient booking.
var validRequestStatuses = map[Status]bool{
	StatusBooked:  true,
	StatusArrived: true,
}

// Service is the booking engine. It decides, for each request, between
// claiming a published free slot, rejecting on conflict, and creating a new
// reservation. It holds no state between requests; the store is the only
// shared resource.
//
// The list-then-write sequence is not transactional. Two concurrent requests
// for the same practitioner and overlapping times can both pass conflict
// detection; the store's version token turns the losing write into a
// version-conflict store failure rather than a silent double-booking, but
// callers needing stronger guarantees must serialize per practitioner and day.
type Service struct {
	store  ReservationStore
	logger zerolog.Logger
}

// NewService creates a booking engine on the given store.
func NewService(store ReservationStore, logger zerolog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Book processes one booking request to a terminal outcome: the reused or
// created reservation, a validation error, a *ConflictError, or a
// *StoreError. Validation failures never touch the store. At most one
// mutating store call is made per attempt and nothing is retried.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Reservation, error) {
	if req.PatientID == "" {
		return nil, ErrMissingPatient
	}
	if req.Start == "" {
		return nil, ErrMissingStart
	}
	if req.End == "" {
		return nil, ErrMissingEnd
	}
	iv, err := ParseInterval(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	status := req.Status
	if status == "" {
		status = StatusBooked
	}
	if !validRequestStatuses[status] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	// Reuse path: only attempted when the request names a staffing or
	// location actor, since a free slot belongs to someone's calendar.
	if req.PractitionerID != "" || req.LocationID != "" {
		slot, err := s.findReusableFreeSlot(ctx, req, iv)
		if err != nil {
			return nil, err
		}
		if slot != nil {
			return s.claimFreeSlot(ctx, slot, req, iv, status)
		}
	}

	// Conflict detection keys on the practitioner's calendar. Requests
	// naming only a location or only a patient are not overlap-checked;
	// that asymmetry is inherited source behavior, kept visible here
	// rather than silently widened.
	if req.PractitionerID != "" {
		conflicting, err := s.findConflict(ctx, req.PractitionerID, iv)
		if err != nil {
			return nil, err
		}
		if conflicting != nil {
			s.logger.Info().
				Str("patient_id", req.PatientID).
				Str("practitioner_id", req.PractitionerID).
				Str("conflicting_id", conflicting.ID).
				Msg("booking rejected on conflict")
			return nil, &ConflictError{ReservationID: conflicting.ID, Interval: conflicting.Interval}
		}
	}

	draft := &Reservation{
		Actors:      req.actors(),
		Interval:    iv,
		Status:      status,
		Description: req.Description,
		Category:    req.Category,
	}
	created, err := s.store.Create(ctx, draft)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("reservation_id", created.ID).
		Str("patient_id", req.PatientID).
		Stringer("interval", iv).
		Msg("reservation created")
	return created, nil
}

// ListDay returns a day's reservations for the given filter, ordered by
// start time then id.
func (s *Service) ListDay(ctx context.Context, f ListFilter) ([]*Reservation, error) {
	reservations, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	sortReservations(reservations)
	return reservations, nil
}

// findReusableFreeSlot looks for a published free slot on the day of the
// requested start, for the staffing/location actors the request names, whose
// interval equals or overlaps the request. Candidates are ordered by
// (start, id) so the result does not depend on store iteration order.
func (s *Service) findReusableFreeSlot(ctx context.Context, req BookingRequest, iv Interval) (*Reservation, error) {
	candidates, err := s.store.List(ctx, ListFilter{
		Date:           iv.Start,
		PractitionerID: req.PractitionerID,
		LocationID:     req.LocationID,
		Status:         StatusFree,
	})
	if err != nil {
		return nil, err
	}
	sortReservations(candidates)
	for _, c := range candidates {
		if c.Status != StatusFree {
			continue
		}
		if c.Interval.Equal(iv) || c.Interval.Overlaps(iv) {
			return c, nil
		}
	}
	return nil, nil
}

// findConflict scans the practitioner's reservations on the day of the
// requested start and returns the earliest blocking one that overlaps the
// request, or nil. Free, cancelled and no-show entries never block.
func (s *Service) findConflict(ctx context.Context, practitionerID string, iv Interval) (*Reservation, error) {
	existing, err := s.store.List(ctx, ListFilter{
		Date:           iv.Start,
		PractitionerID: practitionerID,
	})
	if err != nil {
		return nil, err
	}
	sortReservations(existing)
	for _, r := range existing {
		if !r.Status.Blocks() {
			continue
		}
		if r.Interval.Overlaps(iv) {
			return r, nil
		}
	}
	return nil, nil
}

// claimFreeSlot converts a matched free slot into the requested booking:
// requested status, actor set extended with the requester, description and
// category overwritten when supplied. The slot's version token rides along so
// a concurrent claim loses with a version conflict instead of both winning.
func (s *Service) claimFreeSlot(ctx context.Context, slot *Reservation, req BookingRequest, iv Interval, status Status) (*Reservation, error) {
	updated := *slot
	updated.Actors = append([]Actor(nil), slot.Actors...)
	updated.Status = status
	for _, a := range req.actors() {
		updated.AddActor(a)
	}
	if req.Description != "" {
		updated.Description = req.Description
	}
	if req.Category != "" {
		updated.Category = req.Category
	}

	result, err := s.store.Update(ctx, slot.ID, &updated)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("reservation_id", slot.ID).
		Str("patient_id", req.PatientID).
		Stringer("interval", slot.Interval).
		Msg("free slot claimed")
	return result, nil
}

func sortReservations(rs []*Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].Interval.Start.Equal(rs[j].Interval.Start) {
			return rs[i].Interval.Start.Before(rs[j].Interval.Start)
		}
		return rs[i].ID < rs[j].ID
	})
}
