package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/attendly/attendly/internal/api/handler/v1/response"
	"github.com/attendly/attendly/internal/pkg/jwthelper"
)

const (
	// CtxKeyOperatorID and CtxKeyOperatorEmail carry the authenticated
	// operator through the request context.
	CtxKeyOperatorID    = "operator_id"
	CtxKeyOperatorEmail = "operator_email"
)

type Authenticator struct {
	signingKey string
}

func NewAuthenticator(signingKey string) *Authenticator {
	return &Authenticator{
		signingKey: signingKey,
	}
}

func (a *Authenticator) VerifyJWT() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if header == "" {
			response.RenderErr(ctx, response.ErrUnauthorized("missing Authorization header"))
			return
		}

		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			response.RenderErr(ctx, response.ErrUnauthorized("malformed Authorization header"))
			return
		}

		claims, err := jwthelper.ParseToken(a.signingKey, tokenString)
		if err != nil {
			response.RenderErr(ctx, response.ErrUnauthorized("invalid or expired token"))
			return
		}

		ctx.Set(CtxKeyOperatorID, claims.OperatorID)
		ctx.Set(CtxKeyOperatorEmail, claims.OperatorEmail)
		ctx.Next()
	}
}
