package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/oakleydye/oakley-metrics/internal/authz"
	"github.com/oakleydye/oakley-metrics/internal/models"
	apierrors "github.com/oakleydye/oakley-metrics/internal/pkg/errors"
	"github.com/oakleydye/oakley-metrics/internal/pkg/response"
)

// AccessTokenCookie carries the opaque session token.
const AccessTokenCookie = "access_token"

// SessionValidator looks up the live session behind an access token.
// It returns nil when the token is unknown or expired.
type SessionValidator interface {
	Validate(ctx context.Context, accessToken string) (*models.Session, error)
}

// Authorizer is the access policy consulted by RequireAction.
type Authorizer interface {
	Authorize(ctx context.Context, identity *models.Identity, action authz.Action, resource authz.Resource) (authz.Decision, error)
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	sessionKey  contextKey = "session"
	identityKey contextKey = "identity"
)

// accessToken reads the session token from the cookie, then from a Bearer
// Authorization header.
func accessToken(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// Authenticate resolves the session for every request. Anonymous requests
// pass through without an identity; a storage failure is a 500, never a
// silent logout.
func Authenticate(sessions SessionValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := accessToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := sessions.Validate(r.Context(), token)
			if err != nil {
				response.Error(w, err)
				return
			}
			if session == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, session)
			ctx = context.WithValue(ctx, identityKey, &session.Identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests without a live session.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetIdentity(r.Context()) == nil {
			response.Error(w, apierrors.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAction authorizes action for the request's identity. resource may
// be nil for actions that are not website scoped.
func RequireAction(p Authorizer, action authz.Action, resource func(*http.Request) authz.Resource) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var res authz.Resource
			if resource != nil {
				res = resource(r)
			}
			if !Authorize(w, r, p, action, res) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Authorize runs the policy for the request's identity and writes the error
// response on denial. It reports whether the caller may proceed.
func Authorize(w http.ResponseWriter, r *http.Request, p Authorizer, action authz.Action, res authz.Resource) bool {
	decision, err := p.Authorize(r.Context(), GetIdentity(r.Context()), action, res)
	if err != nil {
		response.Error(w, err)
		return false
	}
	if decision.Allowed {
		return true
	}

	authzDenialsTotal.WithLabelValues(string(action), string(decision.Reason)).Inc()
	if decision.Reason == authz.ReasonUnauthenticated {
		response.Error(w, apierrors.ErrUnauthorized)
	} else {
		response.Error(w, apierrors.ErrForbidden)
	}
	return false
}

// GetIdentity retrieves the session identity from context, or nil.
func GetIdentity(ctx context.Context) *models.Identity {
	if v, ok := ctx.Value(identityKey).(*models.Identity); ok {
		return v
	}
	return nil
}

// GetSession retrieves the session record from context, or nil.
func GetSession(ctx context.Context) *models.Session {
	if v, ok := ctx.Value(sessionKey).(*models.Session); ok {
		return v
	}
	return nil
}

// WithIdentity returns a context carrying identity. Used by tests and
// internal callers that authenticate out of band.
func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}
