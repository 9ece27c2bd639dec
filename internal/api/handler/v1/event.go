package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/attendly/attendly/internal/api/handler/v1/request"
	"github.com/attendly/attendly/internal/api/handler/v1/response"
	"github.com/attendly/attendly/internal/domain"
	"github.com/attendly/attendly/internal/service"
)

type EventService interface {
	CreateEvent(ctx context.Context, event domain.Event) (domain.Event, error)
	GetEvent(ctx context.Context, id uint) (domain.Event, error)
	ListEvents(ctx context.Context) ([]domain.Event, error)
	CancelEvent(ctx context.Context, id uint) error
}

type EventHandler struct {
	svc EventService
}

func NewEventHandler(svc EventService) *EventHandler {
	return &EventHandler{
		svc: svc,
	}
}

func (h *EventHandler) HandleCreateEvent(ctx *gin.Context) {
	var req request.CreateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	types := make([]domain.ParticipantType, len(req.AllowedTypes))
	for i, t := range req.AllowedTypes {
		types[i] = domain.ParticipantType(t)
	}

	categories := make([]domain.TicketCategory, len(req.Categories))
	for i, c := range req.Categories {
		categories[i] = domain.TicketCategory{
			Name:       c.Name,
			Capacity:   c.Capacity,
			PriceCents: c.PriceCents,
			Currency:   c.Currency,
		}
	}

	event, err := h.svc.CreateEvent(ctx.Request.Context(), domain.Event{
		Name:              req.Name,
		Location:          req.Location,
		Description:       req.Description,
		Mode:              domain.EventMode(req.Mode),
		AllowedTypes:      types,
		RegistrationStart: req.RegistrationStart,
		RegistrationEnd:   req.RegistrationEnd,
		EventStart:        req.EventStart,
		EventEnd:          req.EventEnd,
		Categories:        categories,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidEventWindow) ||
			errors.Is(err, service.ErrInvalidCapacity) ||
			errors.Is(err, service.ErrUnknownEventMode) {
			response.RenderErr(ctx, response.ErrBadRequest(err))
			return
		}

		err = fmt.Errorf("v1.HandleCreateEvent -> h.svc.CreateEvent -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusCreated, event)
}

func (h *EventHandler) HandleGetEvent(ctx *gin.Context) {
	eventID, ok := parseUintParam(ctx, "eventID")
	if !ok {
		return
	}

	event, err := h.svc.GetEvent(ctx.Request.Context(), eventID)
	if err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			response.RenderErr(ctx, response.ErrNotFound(service.ErrEventNotFound))
			return
		}

		err = fmt.Errorf("v1.HandleGetEvent -> h.svc.GetEvent -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, event)
}

func (h *EventHandler) HandleListEvents(ctx *gin.Context) {
	events, err := h.svc.ListEvents(ctx.Request.Context())
	if err != nil {
		err = fmt.Errorf("v1.HandleListEvents -> h.svc.ListEvents -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, events)
}

func (h *EventHandler) HandleCancelEvent(ctx *gin.Context) {
	eventID, ok := parseUintParam(ctx, "eventID")
	if !ok {
		return
	}

	if err := h.svc.CancelEvent(ctx.Request.Context(), eventID); err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			response.RenderErr(ctx, response.ErrNotFound(service.ErrEventNotFound))
			return
		}

		err = fmt.Errorf("v1.HandleCancelEvent -> h.svc.CancelEvent -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.Status(http.StatusNoContent)
}

func parseUintParam(ctx *gin.Context, name string) (uint, bool) {
	raw := ctx.Param(name)
	parsed, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(fmt.Errorf("invalid %v %q", name, raw)))
		return 0, false
	}

	return uint(parsed), true
}
