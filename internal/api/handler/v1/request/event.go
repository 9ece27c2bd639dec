package request

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

type CreateCategoryRequest struct {
	Name       string `json:"name"`
	Capacity   int    `json:"capacity"`
	PriceCents int    `json:"price_cents"`
	Currency   string `json:"currency"`
}

type CreateEventRequest struct {
	Name              string                  `json:"name"`
	Location          string                  `json:"location"`
	Description       string                  `json:"description"`
	Mode              string                  `json:"mode"`
	AllowedTypes      []string                `json:"allowed_types"`
	RegistrationStart time.Time               `json:"registration_start"`
	RegistrationEnd   time.Time               `json:"registration_end"`
	EventStart        time.Time               `json:"event_start"`
	EventEnd          time.Time               `json:"event_end"`
	Categories        []CreateCategoryRequest `json:"categories"`
}

func (req *CreateEventRequest) Validate() error {
	err := validation.ValidateStruct(
		req,
		validation.Field(&req.Name, validation.Required, validation.Length(2, 100)),
		validation.Field(&req.Location, validation.Length(0, 200)),
		validation.Field(&req.Description, validation.Length(0, 500)),
		validation.Field(&req.Mode, validation.Required, validation.In("registration", "ticketed")),
		validation.Field(&req.RegistrationStart, validation.Required),
		validation.Field(&req.RegistrationEnd, validation.Required),
		validation.Field(&req.EventStart, validation.Required),
		validation.Field(&req.EventEnd, validation.Required),
	)
	if err != nil {
		return err
	}

	for _, t := range req.AllowedTypes {
		if err = validation.Validate(t, validation.In("member", "guest", "invitee")); err != nil {
			return err
		}
	}

	for _, c := range req.Categories {
		if err = c.Validate(); err != nil {
			return err
		}
	}

	return nil
}

func (req *CreateCategoryRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, 50)),
		validation.Field(&req.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&req.PriceCents, validation.Min(0)),
		validation.Field(&req.Currency, validation.Required, validation.Length(3, 3)),
	)
}
