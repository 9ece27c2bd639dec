package domain

import "time"

type SubjectKind string

const (
	SubjectRegistration SubjectKind = "registration"
	SubjectTicket       SubjectKind = "ticket"
)

// Subject is the uniform view of a registration or ticket during
// validation. It carries just enough state for the eligibility checks and
// the operator-facing result.
type Subject struct {
	Kind          SubjectKind     `json:"kind"`
	ID            uint            `json:"id"`
	EventID       uint            `json:"event_id"`
	ParticipantID uint            `json:"participant_id"`
	Type          ParticipantType `json:"type"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`

	Terminal  bool `json:"-"`
	Cancelled bool `json:"-"`
	// Pending marks a ticket that is reserved but not yet paid for.
	Pending bool `json:"-"`

	ValidatedAt      *time.Time        `json:"validated_at,omitempty"`
	ValidationMethod *ValidationMethod `json:"validation_method,omitempty"`
}
