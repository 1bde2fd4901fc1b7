package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/abubuhammad/georgy-marketplace-backend/api/responses"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/enums"
	pkgerrors "github.com/abubuhammad/georgy-marketplace-backend/pkg/errors"
	"github.com/abubuhammad/georgy-marketplace-backend/pkg/logger"
)

// Authentication lives at the gateway; the engine trusts the identity
// headers it forwards.
const (
	actorIDHeader   = "X-Actor-Id"
	actorRoleHeader = "X-Actor-Role"
)

type actorIDKey struct{}
type actorRoleKey struct{}

// Actor extracts the forwarded identity into the request context.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if raw := strings.TrimSpace(r.Header.Get(actorIDHeader)); raw != "" {
				actorID, err := uuid.Parse(raw)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "actor id header must be a uuid"))
					return
				}
				ctx = context.WithValue(ctx, actorIDKey{}, actorID)
				if logg != nil {
					ctx = logg.WithActorID(ctx, actorID.String())
				}
			}

			if raw := strings.TrimSpace(r.Header.Get(actorRoleHeader)); raw != "" {
				role, err := enums.ParseActorRole(raw)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown actor role"))
					return
				}
				ctx = context.WithValue(ctx, actorRoleKey{}, role)
				if logg != nil {
					ctx = logg.WithActorRole(ctx, role.String())
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireActor rejects requests without a forwarded identity.
func RequireActor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ActorIDFromContext(r.Context()) == uuid.Nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects requests whose forwarded role is not in the allowed set.
func RequireRole(logg *logger.Logger, roles ...enums.ActorRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := ActorRoleFromContext(r.Context())
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role not allowed for this operation"))
		})
	}
}

// WithActorID injects an actor id, used by handlers under test.
func WithActorID(ctx context.Context, actorID uuid.UUID) context.Context {
	return context.WithValue(ctx, actorIDKey{}, actorID)
}

// WithActorRole injects an actor role, used by handlers under test.
func WithActorRole(ctx context.Context, role enums.ActorRole) context.Context {
	return context.WithValue(ctx, actorRoleKey{}, role)
}

// ActorIDFromContext returns the forwarded actor id, or uuid.Nil.
func ActorIDFromContext(ctx context.Context) uuid.UUID {
	if value, ok := ctx.Value(actorIDKey{}).(uuid.UUID); ok {
		return value
	}
	return uuid.Nil
}

// ActorRoleFromContext returns the forwarded actor role, or the zero value.
func ActorRoleFromContext(ctx context.Context) enums.ActorRole {
	if value, ok := ctx.Value(actorRoleKey{}).(enums.ActorRole); ok {
		return value
	}
	return ""
}
