// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/carterperez-dev/templates/doc-analyzer/internal/core"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	callerKey contextKey = "caller"
)

// Caller is the verified identity behind a request. Tokens are issued by
// the account service; this service only reads them.
type Caller struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the caller may edit any rule and reach /admin.
func (c *Caller) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (*Caller, error)
}

// Authenticator rejects requests without a valid bearer token and stores
// the Caller for handlers, the access log and the request span.
func Authenticator(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				core.JSONError(w, core.UnauthorizedError("missing authorization token"))
				return
			}

			caller, err := verifier.VerifyAccessToken(r.Context(), token)
			if err != nil {
				core.JSONError(w, authError(err))
				return
			}

			ctx := WithCaller(r.Context(), caller)
			if meta := requestMetaFrom(ctx); meta != nil {
				meta.userID = caller.UserID
			}
			trace.SpanFromContext(ctx).SetAttributes(
				attribute.String("enduser.id", caller.UserID),
				attribute.String("enduser.role", caller.Role),
			)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := CallerFrom(r.Context())
			if !ok {
				core.JSONError(w, core.UnauthorizedError("authentication required"))
				return
			}

			for _, role := range roles {
				if caller.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			core.JSONError(w, core.ForbiddenError("insufficient permissions"))
		})
	}
}

func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(RoleAdmin)(next)
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}

func authError(err error) error {
	switch {
	case core.IsAppError(err):
		return err
	case errors.Is(err, core.ErrTokenExpired):
		return core.TokenExpiredError()
	default:
		return core.TokenInvalidError()
	}
}

func WithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

func CallerFrom(ctx context.Context) (*Caller, bool) {
	caller, ok := ctx.Value(callerKey).(*Caller)
	return caller, ok && caller != nil
}

func GetUserID(ctx context.Context) string {
	if caller, ok := CallerFrom(ctx); ok {
		return caller.UserID
	}
	return ""
}

// IsAdmin reads the role from the verified token, not the users table.
func IsAdmin(ctx context.Context) bool {
	caller, _ := CallerFrom(ctx)
	return caller.IsAdmin()
}
