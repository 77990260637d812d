package booking

// ActorKind tags the role an actor plays in a reservation.
type ActorKind string

const (
	ActorPatient      ActorKind = "Patient"
	ActorPractitioner ActorKind = "Practitioner"
	ActorLocation     ActorKind = "Location"
)

// Actor is an entity participating in a reservation.
type Actor struct {
	Kind ActorKind `json:"kind"`
	ID   string    `json:"id"`
}

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusFree      Status = "free"
	StatusBooked    Status = "booked"
	StatusArrived   Status = "arrived"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "noshow"
	StatusOther     Status = "other"
)

// ParseStatus normalizes a wire status. States this engine does not reason
// about (fulfilled, checked-in, ...) collapse to StatusOther, which still
// blocks the time range.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusFree, StatusBooked, StatusArrived, StatusCancelled, StatusNoShow:
		return Status(s)
	case "no-show":
		return StatusNoShow
	default:
		return StatusOther
	}
}

// Blocks reports whether a reservation in this status occupies its time range
// for conflict purposes. Free slots are claimable and cancelled or no-show
// entries never block.
func (s Status) Blocks() bool {
	return s != StatusFree && s != StatusCancelled && s != StatusNoShow
}

// Reservation is a scheduled time block tying one or more actors to an
// interval and a status. Identity is the store-assigned ID; Version is an
// opaque optimistic concurrency token owned by the store adapter.
type Reservation struct {
	ID          string
	Version     string
	Actors      []Actor
	Interval    Interval
	Status      Status
	Description string
	Category    string
}

// HasActor reports whether the reservation already names the given actor.
func (r *Reservation) HasActor(a Actor) bool {
	for _, existing := range r.Actors {
		if existing == a {
			return true
		}
	}
	return false
}

// AddActor appends an actor unless it is already present.
func (r *Reservation) AddActor(a Actor) {
	if a.ID == "" || r.HasActor(a) {
		return
	}
	r.Actors = append(r.Actors, a)
}

// ActorID returns the id of the first actor of the given kind.
func (r *Reservation) ActorID(kind ActorKind) (string, bool) {
	for _, a := range r.Actors {
		if a.Kind == kind {
			return a.ID, true
		}
	}
	return "", false
}

// BookingRequest is the transient input to the booking engine. Timestamps
// arrive as strings and are parsed during validation so a malformed instant
// is rejected before any store access.
type BookingRequest struct {
	PatientID      string `json:"patient_id"`
	PractitionerID string `json:"practitioner_id,omitempty"`
	LocationID     string `json:"location_id,omitempty"`
	Start          string `json:"start"`
	End            string `json:"end"`
	Status         Status `json:"status,omitempty"`
	Description    string `json:"description,omitempty"`
	Category       string `json:"category,omitempty"`
}

// actors builds the actor set a granted request produces: the patient plus
// whichever staffing and location actors were named.
func (req BookingRequest) actors() []Actor {
	out := []Actor{{Kind: ActorPatient, ID: req.PatientID}}
	if req.PractitionerID != "" {
		out = append(out, Actor{Kind: ActorPractitioner, ID: req.PractitionerID})
	}
	if req.LocationID != "" {
		out = append(out, Actor{Kind: ActorLocation, ID: req.LocationID})
	}
	return out
}
