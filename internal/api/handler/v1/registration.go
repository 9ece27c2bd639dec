package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/attendly/attendly/internal/api/handler/v1/request"
	"github.com/attendly/attendly/internal/api/handler/v1/response"
	"github.com/attendly/attendly/internal/domain"
	"github.com/attendly/attendly/internal/service"
)

type RegistrationService interface {
	Register(ctx context.Context, eventID uint, registration domain.Registration) (domain.Registration, error)
	GetRegistration(ctx context.Context, id uint) (domain.Registration, error)
	ListByEvent(ctx context.Context, eventID uint) ([]domain.Registration, error)
	Cancel(ctx context.Context, id uint) error
	BackfillCodes(ctx context.Context, eventID uint) (int, error)
}

type RegistrationHandler struct {
	svc RegistrationService
}

func NewRegistrationHandler(svc RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{
		svc: svc,
	}
}

func (h *RegistrationHandler) HandleRegister(ctx *gin.Context) {
	eventID, ok := parseUintParam(ctx, "eventID")
	if !ok {
		return
	}

	var req request.RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	registration, err := h.svc.Register(ctx.Request.Context(), eventID, domain.Registration{
		ParticipantID: req.ParticipantID,
		Type:          domain.ParticipantType(req.Type),
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		PhotoRef:      req.PhotoRef,
	})
	if err != nil {
		var elig *domain.EligibilityError
		switch {
		case errors.Is(err, service.ErrEventNotFound):
			response.RenderErr(ctx, response.ErrNotFound(service.ErrEventNotFound))
		case errors.Is(err, service.ErrWrongEventMode):
			response.RenderErr(ctx, response.ErrBadRequest(service.ErrWrongEventMode))
		case errors.As(err, &elig):
			response.RenderErr(ctx, response.ErrConflict(elig))
		default:
			err = fmt.Errorf("v1.HandleRegister -> h.svc.Register -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	ctx.JSON(http.StatusCreated, registration)
}

func (h *RegistrationHandler) HandleGetRegistration(ctx *gin.Context) {
	registrationID, ok := parseUintParam(ctx, "registrationID")
	if !ok {
		return
	}

	registration, err := h.svc.GetRegistration(ctx.Request.Context(), registrationID)
	if err != nil {
		if errors.Is(err, service.ErrRegistrationNotFound) {
			response.RenderErr(ctx, response.ErrNotFound(service.ErrRegistrationNotFound))
			return
		}

		err = fmt.Errorf("v1.HandleGetRegistration -> h.svc.GetRegistration -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, registration)
}

func (h *RegistrationHandler) HandleListRegistrations(ctx *gin.Context) {
	eventID, ok := parseUintParam(ctx, "eventID")
	if !ok {
		return
	}

	registrations, err := h.svc.ListByEvent(ctx.Request.Context(), eventID)
	if err != nil {
		err = fmt.Errorf("v1.HandleListRegistrations -> h.svc.ListByEvent -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, registrations)
}

func (h *RegistrationHandler) HandleCancelRegistration(ctx *gin.Context) {
	registrationID, ok := parseUintParam(ctx, "registrationID")
	if !ok {
		return
	}

	if err := h.svc.Cancel(ctx.Request.Context(), registrationID); err != nil {
		switch {
		case errors.Is(err, service.ErrRegistrationNotFound):
			response.RenderErr(ctx, response.ErrNotFound(service.ErrRegistrationNotFound))
		case errors.Is(err, service.ErrStateConflict):
			response.RenderErr(ctx, response.ErrConflict(err))
		default:
			err = fmt.Errorf("v1.HandleCancelRegistration -> h.svc.Cancel -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	ctx.Status(http.StatusNoContent)
}

// HandleBackfillCodes retrofits verification codes onto registrations
// created before code allocation existed.
func (h *RegistrationHandler) HandleBackfillCodes(ctx *gin.Context) {
	eventID, ok := parseUintParam(ctx, "eventID")
	if !ok {
		return
	}

	filled, err := h.svc.BackfillCodes(ctx.Request.Context(), eventID)
	if err != nil {
		err = fmt.Errorf("v1.HandleBackfillCodes -> h.svc.BackfillCodes -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, response.BackfillResponse{Filled: filled})
}
