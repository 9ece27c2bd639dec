package response

import "github.com/attendly/attendly/internal/domain"

type LoginResponse struct {
	Token    string          `json:"token"`
	Operator domain.Operator `json:"operator"`
}
