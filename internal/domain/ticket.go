package domain

import "time"

type TicketStatus string

const (
	TicketStatusReserved  TicketStatus = "reserved"
	TicketStatusActive    TicketStatus = "active"
	TicketStatusUsed      TicketStatus = "used"
	TicketStatusCancelled TicketStatus = "cancelled"
	TicketStatusExpired   TicketStatus = "expired"
)

func (s TicketStatus) Terminal() bool {
	return s == TicketStatusUsed || s == TicketStatusCancelled || s == TicketStatusExpired
}

// Ticket is one purchased or reserved inventory unit of a ticketed event.
// A ticket becomes active only after its payment is confirmed, and can be
// validated (active -> used) at most once.
type Ticket struct {
	ID            uint         `json:"id"`
	Serial        string       `json:"serial"`
	EventID       uint         `json:"event_id"`
	CategoryID    uint         `json:"category_id"`
	ParticipantID uint         `json:"participant_id"`
	OwnerName     string       `json:"owner_name"`
	OwnerEmail    string       `json:"owner_email"`
	Status        TicketStatus `json:"status"`
	PriceCents    int          `json:"price_cents"`
	Currency      string       `json:"currency"`
	PaymentRef    string       `json:"payment_ref,omitempty"`
	ReservationID string       `json:"reservation_id,omitempty"`

	VerificationCode string `json:"verification_code"`
	Token            string `json:"token"`

	CreatedAt        time.Time         `json:"created_at"`
	ValidatedAt      *time.Time        `json:"validated_at,omitempty"`
	ValidationMethod *ValidationMethod `json:"validation_method,omitempty"`
}

func (t Ticket) AsSubject() Subject {
	return Subject{
		Kind:             SubjectTicket,
		ID:               t.ID,
		EventID:          t.EventID,
		ParticipantID:    t.ParticipantID,
		Type:             ParticipantGuest,
		Name:             t.OwnerName,
		Email:            t.OwnerEmail,
		Terminal:         t.Status.Terminal(),
		Cancelled:        t.Status == TicketStatusCancelled || t.Status == TicketStatusExpired,
		Pending:          t.Status == TicketStatusReserved,
		ValidatedAt:      t.ValidatedAt,
		ValidationMethod: t.ValidationMethod,
	}
}
