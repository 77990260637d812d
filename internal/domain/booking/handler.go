package booking

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Handler exposes the booking engine over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the booking routes on the given group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/scheduling/book", h.Book)
	api.GET("/scheduling/reservations", h.ListReservations)
}

// reservationResponse is the JSON shape returned for a reservation.
type reservationResponse struct {
	ID          string    `json:"id"`
	Status      Status    `json:"status"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Actors      []Actor   `json:"actors"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
}

func toResponse(r *Reservation) reservationResponse {
	return reservationResponse{
		ID:          r.ID,
		Status:      r.Status,
		Start:       r.Interval.Start,
		End:         r.Interval.End,
		Actors:      r.Actors,
		Description: r.Description,
		Category:    r.Category,
	}
}

// conflictResponse carries the offending interval so clients can offer
// alternative times instead of a bare rejection.
type conflictResponse struct {
	Error                  string    `json:"error"`
	ConflictingReservation string    `json:"conflicting_reservation_id"`
	ConflictStart          time.Time `json:"conflict_start"`
	ConflictEnd            time.Time `json:"conflict_end"`
}

// Book handles POST /scheduling/book.
func (h *Handler) Book(c echo.Context) error {
	var req BookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	reservation, err := h.svc.Book(c.Request().Context(), req)
	if err != nil {
		return bookingHTTPError(c, err)
	}
	return c.JSON(http.StatusCreated, toResponse(reservation))
}

// ListReservations handles GET /scheduling/reservations: a day view for one
// or more actors, for offering alternative times.
func (h *Handler) ListReservations(c echo.Context) error {
	dateStr := c.QueryParam("date")
	if dateStr == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date query parameter is required")
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
	}

	f := ListFilter{
		Date:           date,
		PatientID:      c.QueryParam("patient_id"),
		PractitionerID: c.QueryParam("practitioner_id"),
		LocationID:     c.QueryParam("location_id"),
	}
	if f.PatientID == "" && f.PractitionerID == "" && f.LocationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one actor filter is required")
	}
	if s := c.QueryParam("status"); s != "" {
		f.Status = ParseStatus(s)
	}

	reservations, err := h.svc.ListDay(c.Request().Context(), f)
	if err != nil {
		return bookingHTTPError(c, err)
	}

	out := make([]reservationResponse, len(reservations))
	for i, r := range reservations {
		out[i] = toResponse(r)
	}
	return c.JSON(http.StatusOK, out)
}

// bookingHTTPError maps engine outcomes onto HTTP responses: validation
// failures are the client's fault, conflicts are an expected 409, and store
// failures report the upstream as a bad gateway.
func bookingHTTPError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrMissingPatient),
		errors.Is(err, ErrMissingStart),
		errors.Is(err, ErrMissingEnd),
		errors.Is(err, ErrInvalidInterval),
		errors.Is(err, ErrInvalidStatus):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return c.JSON(http.StatusConflict, conflictResponse{
			Error:                  err.Error(),
			ConflictingReservation: conflict.ReservationID,
			ConflictStart:          conflict.Interval.Start,
			ConflictEnd:            conflict.Interval.End,
		})
	}

	var se *StoreError
	if errors.As(err, &se) {
		if se.Kind == StoreVersionConflict {
			return echo.NewHTTPError(http.StatusConflict, "reservation changed concurrently, retry the booking")
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
