package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"rentalhub/internal/security"
)

type ctxKey int

const actorKey ctxKey = iota

// TokenValidator resolves a bearer token into an actor id.
type TokenValidator interface {
	Validate(token string) (int64, error)
}

func withActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorKey, actorID)
}

// actorFromContext returns 0 for anonymous requests.
func actorFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(actorKey).(int64)
	return id
}

// HTTPAuth attaches the actor to the request. It never rejects by itself:
// requireAuth decides which routes need an actor.
type HTTPAuth struct {
	tokens TokenValidator
}

func NewHTTPAuth(tokens TokenValidator) *HTTPAuth {
	return &HTTPAuth{tokens: tokens}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, "no bearer token")
			return
		}
		actorID, err := a.tokens.Validate(strings.TrimSpace(token))
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, security.ErrExpiredToken) {
				msg = "token has expired"
			}
			writeError(w, http.StatusUnauthorized, msg)
			return
		}
		next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actorID)))
	})
}

// requireAuth rejects anonymous callers with 401.
func requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if actorFromContext(r.Context()) <= 0 {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r)
	}
}
