package fhir

// Appointment is the FHIR R4 Appointment wire shape, limited to the elements
// the booking service reads and writes. Timestamps stay as strings here;
// the store adapter parses and validates them once at the boundary.
type Appointment struct {
	ResourceType    string                   `json:"resourceType"`
	ID              string                   `json:"id,omitempty"`
	Meta            *Meta                    `json:"meta,omitempty"`
	Status          string                   `json:"status"`
	ServiceCategory []CodeableConcept        `json:"serviceCategory,omitempty"`
	Description     string                   `json:"description,omitempty"`
	Start           string                   `json:"start,omitempty"`
	End             string                   `json:"end,omitempty"`
	Participant     []AppointmentParticipant `json:"participant,omitempty"`
}

type AppointmentParticipant struct {
	Actor  Reference `json:"actor,omitempty"`
	Status string    `json:"status"`
}
