package domain

import "time"

// Operator is a staff account allowed to run check-in validations. Its
// email is recorded as the actor on every attendance record it produces.
type Operator struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Name      string    `json:"name"`
	Role      string    `json:"role"` // "organizer" or "validator"
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
