package request

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

type ValidateTokenRequest struct {
	Token string `json:"token"`
}

func (req *ValidateTokenRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Token, validation.Required),
	)
}

type ValidateCodeRequest struct {
	Code string `json:"code"`
}

func (req *ValidateCodeRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Code, validation.Required, validation.Length(4, 64)),
	)
}

type ValidateFaceRequest struct {
	// Image is the captured frame, base64 encoded.
	Image string `json:"image"`
}

func (req *ValidateFaceRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Image, validation.Required),
	)
}

type RosterEntry struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type RosterCheckRequest struct {
	SubjectKind string        `json:"subject_kind"`
	SubjectID   uint          `json:"subject_id"`
	Roster      []RosterEntry `json:"roster"`
}

func (req *RosterCheckRequest) Validate() error {
	err := validation.ValidateStruct(
		req,
		validation.Field(&req.SubjectKind, validation.Required, validation.In("registration", "ticket")),
		validation.Field(&req.SubjectID, validation.Required, validation.Min(uint(1))),
		validation.Field(&req.Roster, validation.Required),
	)
	if err != nil {
		return err
	}

	for _, entry := range req.Roster {
		if entry.Email != "" {
			if err = validation.Validate(entry.Email, is.Email); err != nil {
				return err
			}
		}
	}

	return nil
}
