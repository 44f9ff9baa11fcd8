package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sakif/formbuilder/internal/apperror"
	"github.com/sakif/formbuilder/internal/model"
)

// CookieName is the HttpOnly cookie the SPA carries its token in.
const CookieName = "token"

type contextKey string

const actorKey contextKey = "actor"

// ActorResolver turns a token subject into the current actor. It returns
// NotFound for deleted users and Forbidden for blocked ones.
type ActorResolver interface {
	ResolveActor(ctx context.Context, userID string) (*model.Actor, error)
}

// ErrorWriter renders an error response. The handler package supplies it
// so auth does not depend on the JSON error format.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Identify attaches the actor to the request when a valid token is
// present. Requests without a token, or with an invalid or stale one,
// continue anonymously. A blocked user is stopped here with Forbidden.
func Identify(tokens *TokenService, users ActorResolver, writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := TokenFromRequest(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := tokens.Validate(raw)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			actor, err := users.ResolveActor(r.Context(), userID)
			switch {
			case err == nil:
				r = r.WithContext(WithActor(r.Context(), actor))
			case errors.Is(err, apperror.ErrNotFound):
				// stale token for a deleted account
			default:
				writeErr(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireActor rejects anonymous requests with Unauthenticated.
func RequireActor(writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ActorFromContext(r.Context()) == nil {
				writeErr(w, r, apperror.Unauthenticated("authentication required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects anonymous callers (401) and non-admins (403).
func RequireAdmin(writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			if actor == nil {
				writeErr(w, r, apperror.Unauthenticated("authentication required"))
				return
			}
			if !actor.IsAdmin {
				writeErr(w, r, apperror.Forbidden("admin access required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TokenFromRequest reads the bearer header first, then the cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

func WithActor(ctx context.Context, actor *model.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns nil for anonymous requests.
func ActorFromContext(ctx context.Context) *model.Actor {
	actor, _ := ctx.Value(actorKey).(*model.Actor)
	return actor
}
