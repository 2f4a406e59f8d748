package auth

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	grpcauth "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"

	"github.com/victornm/quizroom/internal/errors"
)

const scheme = "bearer"

// Middleware authenticates the Authorization header of every request and stores the identity
// in the request context. Failures abort with a result envelope.
func Middleware(a *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearer(c.GetHeader("Authorization"))
		if !ok {
			abort(c, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("authorization header required")))
			return
		}

		id, err := a.Verify(token)
		if err != nil {
			abort(c, err)
			return
		}

		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// RequireRole rejects callers without one of the roles. It must run after Middleware.
func RequireRole(roles ...Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := Require(c.Request.Context(), roles...); err != nil {
			abort(c, err)
			return
		}
		c.Next()
	}
}

// GRPCAuthFunc authenticates the "authorization: bearer <token>" metadata of a gRPC call.
func GRPCAuthFunc(a *Authenticator) grpcauth.AuthFunc {
	return func(ctx context.Context) (context.Context, error) {
		token, err := grpcauth.AuthFromMD(ctx, scheme)
		if err != nil {
			return nil, err
		}

		id, err := a.Verify(token)
		if err != nil {
			return nil, err
		}

		return WithIdentity(ctx, id), nil
	}
}

func bearer(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], scheme) || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func abort(c *gin.Context, err error) {
	e := errors.Convert(err)
	c.AbortWithStatusJSON(e.HTTPStatusCode(), errors.Fail(e))
}
