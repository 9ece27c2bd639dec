package domain

import "time"

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusCommitted ReservationStatus = "committed"
	ReservationStatusReleased  ReservationStatus = "released"
	ReservationStatusExpired   ReservationStatus = "expired"
)

// Reservation is a claim on ticket inventory pending purchase completion.
// A pending reservation that is not committed before ExpiresAt is flipped
// to expired by the background sweep and its quantity returned to the pool.
type Reservation struct {
	ID         string            `json:"id"`
	EventID    uint              `json:"event_id"`
	CategoryID uint              `json:"category_id"`
	Quantity   int               `json:"quantity"`
	Status     ReservationStatus `json:"status"`
	PaymentRef string            `json:"payment_ref,omitempty"`
	ExpiresAt  time.Time         `json:"expires_at"`
	CreatedAt  time.Time         `json:"created_at"`
}
