package domain

import "time"

type EventMode string

// Canonical event modes. "registration" events admit people directly,
// "ticketed" events sell inventory from ticket categories.
const (
	EventModeRegistration EventMode = "registration"
	EventModeTicketed     EventMode = "ticketed"
)

type Event struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	Mode        EventMode `json:"mode"`
	Cancelled   bool      `json:"cancelled"`

	// AllowedTypes restricts who may be admitted. Empty means unrestricted.
	AllowedTypes []ParticipantType `json:"allowed_types"`

	// RegistrationStart/End bound sign-up for registration events and
	// ticket sales for ticketed events. EventStart/End is the live span.
	RegistrationStart time.Time `json:"registration_start"`
	RegistrationEnd   time.Time `json:"registration_end"`
	EventStart        time.Time `json:"event_start"`
	EventEnd          time.Time `json:"event_end"`

	Categories []TicketCategory `json:"categories,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TicketCategory is one inventory pool of a ticketed event. Available only
// ever moves through conditional updates, so active+used never exceeds
// Capacity.
type TicketCategory struct {
	ID         uint   `json:"id"`
	EventID    uint   `json:"event_id"`
	Name       string `json:"name"`
	Capacity   int    `json:"capacity"`
	Available  int    `json:"available"`
	PriceCents int    `json:"price_cents"`
	Currency   string `json:"currency"`
}

// AdmissionWindow returns the window in which a subject of this event may
// be validated: registration events admit during the live window, ticketed
// events admit across the full event span as well.
func (e Event) AdmissionWindow() (time.Time, time.Time) {
	return e.EventStart, e.EventEnd
}

// IntakeWindow returns the window in which new subjects may be created:
// sign-up for registration events, ticket sales for ticketed events.
func (e Event) IntakeWindow() (time.Time, time.Time) {
	return e.RegistrationStart, e.RegistrationEnd
}

func (e Event) AllowsType(pt ParticipantType) bool {
	if len(e.AllowedTypes) == 0 {
		return true
	}
	for _, allowed := range e.AllowedTypes {
		if allowed == pt {
			return true
		}
	}
	return false
}
