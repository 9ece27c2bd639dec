package request

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

type PurchaseRequest struct {
	CategoryID uint   `json:"category_id"`
	Quantity   int    `json:"quantity"`
	OwnerName  string `json:"owner_name"`
	OwnerEmail string `json:"owner_email"`
}

func (req *PurchaseRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.CategoryID, validation.Required, validation.Min(uint(1))),
		validation.Field(&req.Quantity, validation.Required, validation.Min(1), validation.Max(10)),
		validation.Field(&req.OwnerName, validation.Required, validation.Length(1, 100)),
		validation.Field(&req.OwnerEmail, validation.Required, is.Email),
	)
}
