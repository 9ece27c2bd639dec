package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendly/attendly/internal/api/middleware"
	"github.com/attendly/attendly/internal/domain"
	"github.com/attendly/attendly/internal/service"
)

type checkinServiceMock struct {
	ValidateTokenFunc  func(ctx context.Context, eventID uint, sealed, actor string) (service.ValidationResult, error)
	ValidateCodeFunc   func(ctx context.Context, eventID uint, code, actor string) (service.ValidationResult, error)
	ValidateFaceFunc   func(ctx context.Context, eventID uint, image, actor string) (service.ValidationResult, error)
	CrossCheckFunc     func(ctx context.Context, eventID uint, kind domain.SubjectKind, subjectID uint, roster []service.RosterEntry, actor string) (bool, error)
	ListAttendanceFunc func(ctx context.Context, eventID uint, limit, offset int) ([]domain.AttendanceRecord, error)
}

func (m *checkinServiceMock) ValidateToken(ctx context.Context, eventID uint, sealed, actor string) (service.ValidationResult, error) {
	return m.ValidateTokenFunc(ctx, eventID, sealed, actor)
}

func (m *checkinServiceMock) ValidateCode(ctx context.Context, eventID uint, code, actor string) (service.ValidationResult, error) {
	return m.ValidateCodeFunc(ctx, eventID, code, actor)
}

func (m *checkinServiceMock) ValidateFace(ctx context.Context, eventID uint, image, actor string) (service.ValidationResult, error) {
	return m.ValidateFaceFunc(ctx, eventID, image, actor)
}

func (m *checkinServiceMock) CrossCheckRoster(ctx context.Context, eventID uint, kind domain.SubjectKind, subjectID uint, roster []service.RosterEntry, actor string) (bool, error) {
	return m.CrossCheckFunc(ctx, eventID, kind, subjectID, roster, actor)
}

func (m *checkinServiceMock) ListAttendance(ctx context.Context, eventID uint, limit, offset int) ([]domain.AttendanceRecord, error) {
	return m.ListAttendanceFunc(ctx, eventID, limit, offset)
}

func newCheckinRouter(mock *checkinServiceMock) *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(func(ctx *gin.Context) {
		ctx.Set(middleware.CtxKeyOperatorEmail, "operator@example.com")
	})

	handler := NewCheckinHandler(mock)
	router.POST("/api/v1/events/:eventID/checkin/token", handler.HandleValidateToken)
	router.POST("/api/v1/events/:eventID/checkin/code", handler.HandleValidateCode)

	return router
}

func performJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestHandleValidateToken(t *testing.T) {
	validatedAt := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	mock := &checkinServiceMock{
		ValidateTokenFunc: func(ctx context.Context, eventID uint, sealed, actor string) (service.ValidationResult, error) {
			assert.Equal(t, uint(7), eventID)
			assert.Equal(t, "sealed-token", sealed)
			assert.Equal(t, "operator@example.com", actor)

			return service.ValidationResult{
				Outcome: domain.OutcomeValidated,
				Method:  domain.MethodToken,
				Subject: &domain.Subject{
					Kind: domain.SubjectRegistration,
					ID:   42,
					Name: "Ana Ruiz",
				},
				ValidatedAt: &validatedAt,
			}, nil
		},
	}
	router := newCheckinRouter(mock)

	recorder := performJSON(t, router, http.MethodPost, "/api/v1/events/7/checkin/token", gin.H{
		"token": "sealed-token",
	})

	require.Equal(t, http.StatusOK, recorder.Code)

	var result service.ValidationResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.Equal(t, domain.OutcomeValidated, result.Outcome)
	require.NotNil(t, result.Subject)
	assert.Equal(t, "Ana Ruiz", result.Subject.Name)
}

func TestHandleValidateToken_BadRequests(t *testing.T) {
	mock := &checkinServiceMock{}
	router := newCheckinRouter(mock)

	// Missing token field.
	recorder := performJSON(t, router, http.MethodPost, "/api/v1/events/7/checkin/token", gin.H{})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	// Unparseable event ID.
	recorder = performJSON(t, router, http.MethodPost, "/api/v1/events/abc/checkin/token", gin.H{
		"token": "sealed-token",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

// An expected rejection is a 200 with a typed outcome, not an HTTP error.
func TestHandleValidateCode_AlreadyUsedIsStill200(t *testing.T) {
	priorAt := time.Date(2026, 6, 1, 11, 0, 0, 0, time.UTC)
	priorMethod := domain.MethodToken

	mock := &checkinServiceMock{
		ValidateCodeFunc: func(ctx context.Context, eventID uint, code, actor string) (service.ValidationResult, error) {
			return service.ValidationResult{
				Outcome:     domain.OutcomeAlreadyUsed,
				Method:      domain.MethodCode,
				ValidatedAt: &priorAt,
				PriorMethod: &priorMethod,
			}, nil
		},
	}
	router := newCheckinRouter(mock)

	recorder := performJSON(t, router, http.MethodPost, "/api/v1/events/7/checkin/code", gin.H{
		"code": "ABCD2345",
	})

	require.Equal(t, http.StatusOK, recorder.Code)

	var result service.ValidationResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.Equal(t, domain.OutcomeAlreadyUsed, result.Outcome)
	require.NotNil(t, result.PriorMethod)
	assert.Equal(t, domain.MethodToken, *result.PriorMethod)
}
