package response

import (
	"net/http"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Err is the JSON error body of every non-2xx response. The wrapped
// cause is logged with the request ID, never serialized.
type Err struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`

	cause error
}

func (e *Err) Error() string {
	if e.cause != nil {
		return e.cause.Error()
	}
	return e.Message
}

func ErrBadRequest(err error) *Err {
	return &Err{
		StatusCode: http.StatusBadRequest,
		Message:    err.Error(),
		cause:      err,
	}
}

func ErrWrongCredentials(err error) *Err {
	return &Err{
		StatusCode: http.StatusUnauthorized,
		Message:    "wrong credentials",
		cause:      err,
	}
}

func ErrUnauthorized(message string) *Err {
	return &Err{
		StatusCode: http.StatusUnauthorized,
		Message:    message,
	}
}

func ErrPermissionDenied(message string) *Err {
	return &Err{
		StatusCode: http.StatusForbidden,
		Message:    message,
	}
}

func ErrNotFound(err error) *Err {
	return &Err{
		StatusCode: http.StatusNotFound,
		Message:    err.Error(),
		cause:      err,
	}
}

func ErrConflict(err error) *Err {
	return &Err{
		StatusCode: http.StatusConflict,
		Message:    err.Error(),
		cause:      err,
	}
}

func ErrTooManyRequests(message string) *Err {
	return &Err{
		StatusCode: http.StatusTooManyRequests,
		Message:    message,
	}
}

func ErrInternalServerError(err error) *Err {
	return &Err{
		StatusCode: http.StatusInternalServerError,
		Message:    "internal server error",
		cause:      err,
	}
}

func RenderErr(ctx *gin.Context, err *Err) {
	if err.StatusCode >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("request_id", requestid.Get(ctx)),
			zap.String("path", ctx.FullPath()),
			zap.Error(err),
		)
	}

	ctx.AbortWithStatusJSON(err.StatusCode, err)
}
