package booking

import (
	"context"
	"time"
)

// ListFilter narrows a reservation listing to one calendar day and an actor
// set. Date is interpreted as the UTC day containing it. Actor ids are
// combined with AND; empty fields are not filtered on. A zero Status matches
// any status.
type ListFilter struct {
	Date           time.Time
	PatientID      string
	PractitionerID string
	LocationID     string
	Status         Status
}

// ReservationStore is the external collaborator holding reservation records.
// Implementations return *StoreError for every failure so the engine can
// distinguish infrastructure problems from booking outcomes. No method
// retries internally; every call honors ctx cancellation and deadlines.
type ReservationStore interface {
	List(ctx context.Context, f ListFilter) ([]*Reservation, error)
	Get(ctx context.Context, id string) (*Reservation, error)
	// Create persists a draft; the store assigns the ID and initial Version.
	Create(ctx context.Context, r *Reservation) (*Reservation, error)
	// Update replaces actors, status, interval, description and category of
	// an existing reservation. When r.Version is set and no longer current,
	// the store fails with kind version-conflict instead of losing a
	// concurrent write.
	Update(ctx context.Context, id string, r *Reservation) (*Reservation, error)
}
