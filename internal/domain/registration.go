package domain

import "time"

type ParticipantType string

const (
	ParticipantMember  ParticipantType = "member"
	ParticipantGuest   ParticipantType = "guest"
	ParticipantInvitee ParticipantType = "invitee"
)

type RegistrationStatus string

const (
	RegistrationStatusRegistered RegistrationStatus = "registered"
	RegistrationStatusAttended   RegistrationStatus = "attended"
	RegistrationStatusCancelled  RegistrationStatus = "cancelled"
)

// Terminal reports whether no further transition is permitted.
func (s RegistrationStatus) Terminal() bool {
	return s == RegistrationStatusAttended || s == RegistrationStatusCancelled
}

// Registration admits one person to a registration-mode event.
// ValidatedAt is set if and only if Status is attended.
type Registration struct {
	ID            uint               `json:"id"`
	EventID       uint               `json:"event_id"`
	ParticipantID uint               `json:"participant_id"`
	Type          ParticipantType    `json:"type"`
	FirstName     string             `json:"first_name"`
	LastName      string             `json:"last_name"`
	Email         string             `json:"email"`
	PhotoRef      string             `json:"photo_ref,omitempty"`
	Status        RegistrationStatus `json:"status"`

	// ShortCode is the event-unique primary lookup code printed on the
	// confirmation; VerificationCode is the human-enterable fallback.
	ShortCode        string `json:"short_code"`
	VerificationCode string `json:"verification_code"`
	Token            string `json:"token"`

	CreatedAt        time.Time         `json:"created_at"`
	ValidatedAt      *time.Time        `json:"validated_at,omitempty"`
	ValidationMethod *ValidationMethod `json:"validation_method,omitempty"`
}

func (r Registration) AsSubject() Subject {
	return Subject{
		Kind:             SubjectRegistration,
		ID:               r.ID,
		EventID:          r.EventID,
		ParticipantID:    r.ParticipantID,
		Type:             r.Type,
		Name:             r.FirstName + " " + r.LastName,
		Email:            r.Email,
		Terminal:         r.Status.Terminal(),
		Cancelled:        r.Status == RegistrationStatusCancelled,
		ValidatedAt:      r.ValidatedAt,
		ValidationMethod: r.ValidationMethod,
	}
}
