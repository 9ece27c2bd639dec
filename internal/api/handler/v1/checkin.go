package v1

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/attendly/attendly/internal/api/handler/v1/request"
	"github.com/attendly/attendly/internal/api/handler/v1/response"
	"github.com/attendly/attendly/internal/api/middleware"
	"github.com/attendly/attendly/internal/domain"
	"github.com/attendly/attendly/internal/service"
)

type CheckinService interface {
	ValidateToken(ctx context.Context, eventID uint, sealed, actor string) (service.ValidationResult, error)
	ValidateCode(ctx context.Context, eventID uint, code, actor string) (service.ValidationResult, error)
	ValidateFace(ctx context.Context, eventID uint, image, actor string) (service.ValidationResult, error)
	CrossCheckRoster(ctx context.Context, eventID uint, kind domain.SubjectKind, subjectID uint, roster []service.RosterEntry, actor string) (bool, error)
	ListAttendance(ctx context.Context, eventID uint, limit, offset int) ([]domain.AttendanceRecord, error)
}

type CheckinHandler struct {
	svc CheckinService
}

func NewCheckinHandler(svc CheckinService) *CheckinHandler {
	return &CheckinHandler{
		svc: svc,
	}
}

// Every validation attempt answers 200 with a typed outcome; HTTP errors
// are reserved for malformed requests and infrastructure failures. The
// gate operator's UI switches on the outcome, not the status code.
func (h *CheckinHandler) HandleValidateToken(ctx *gin.Context) {
	eventID, ok := parseUintParam(ctx, "eventID")
	if !ok {
		return
	}

	var req request.ValidateTokenRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	result, err := h.svc.ValidateToken(ctx.Request.Context(), eventID, req.Token, actorEmail(ctx))
	if err != nil {
		err = fmt.Errorf("v1.HandleValidateToken -> h.svc.ValidateToken -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, result)
}

func (h *CheckinHandler) HandleValidateCode(ctx *gin.Context) {
	eventID, ok := parseUintParam(ctx, "eventID")
	if !ok {
		return
	}

	var req request.ValidateCodeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	result, err := h.svc.ValidateCode(ctx.Request.Context(), eventID, req.Code, actorEmail(ctx))
	if err != nil {
		err = fmt.Errorf("v1.HandleValidateCode -> h.svc.ValidateCode -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, result)
}

func (h *CheckinHandler) HandleValidateFace(ctx *gin.Context) {
	eventID, ok := parseUintParam(ctx, "eventID")
	if !ok {
		return
	}

	var req request.ValidateFaceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	result, err := h.svc.ValidateFace(ctx.Request.Context(), eventID, req.Image, actorEmail(ctx))
	if err != nil {
		err = fmt.Errorf("v1.HandleValidateFace -> h.svc.ValidateFace -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, result)
}

func (h *CheckinHandler) HandleRosterCheck(ctx *gin.Context) {
	eventID, ok := parseUintParam(ctx, "eventID")
	if !ok {
		return
	}

	var req request.RosterCheckRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	roster := make([]service.RosterEntry, len(req.Roster))
	for i, entry := range req.Roster {
		roster[i] = service.RosterEntry{
			Email: entry.Email,
			Code:  entry.Code,
		}
	}

	confirmed, err := h.svc.CrossCheckRoster(ctx.Request.Context(), eventID, domain.SubjectKind(req.SubjectKind), req.SubjectID, roster, actorEmail(ctx))
	if err != nil {
		err = fmt.Errorf("v1.HandleRosterCheck -> h.svc.CrossCheckRoster -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, response.RosterCheckResponse{Confirmed: confirmed})
}

func (h *CheckinHandler) HandleListAttendance(ctx *gin.Context) {
	eventID, ok := parseUintParam(ctx, "eventID")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(ctx.DefaultQuery("offset", "0"))

	records, err := h.svc.ListAttendance(ctx.Request.Context(), eventID, limit, offset)
	if err != nil {
		err = fmt.Errorf("v1.HandleListAttendance -> h.svc.ListAttendance -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, records)
}

func actorEmail(ctx *gin.Context) string {
	return ctx.GetString(middleware.CtxKeyOperatorEmail)
}
