package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/forgeauth"
)

// AccessValidator is the part of forgeauth.Engine the guards need.
type AccessValidator interface {
	ValidateAccess(ctx context.Context, accessToken string) (*forgeauth.AccessIdentity, error)
}

type identityContextKey struct{}

func IdentityFromContext(ctx context.Context) (*forgeauth.AccessIdentity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*forgeauth.AccessIdentity)
	return id, ok
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *forgeauth.AccessIdentity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// RequireAccess answers 401 for a missing or invalid token and 403 for a
// disabled account.
func RequireAccess(v AccessValidator) func(http.Handler) http.Handler {
	return guard(v, true)
}

// OptionalAccess validates a bearer token when one is sent. Requests without
// an Authorization header pass through anonymously; a bad token is still
// rejected.
func OptionalAccess(v AccessValidator) func(http.Handler) http.Handler {
	return guard(v, false)
}

func guard(v AccessValidator, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				reject(w, http.StatusUnauthorized, "unauthorized", "Could not validate credentials")
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" && !required {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(header)
			if !ok {
				reject(w, http.StatusUnauthorized, "unauthorized", "Could not validate credentials")
				return
			}

			id, err := v.ValidateAccess(r.Context(), token)
			switch {
			case err == nil:
			case errors.Is(err, forgeauth.ErrAccountDisabled):
				reject(w, http.StatusForbidden, "account_disabled", "Account is disabled")
				return
			case errors.Is(err, forgeauth.ErrStorageUnavailable), errors.Is(err, forgeauth.ErrEngineNotReady):
				reject(w, http.StatusServiceUnavailable, "unavailable", "Service temporarily unavailable")
				return
			default:
				reject(w, http.StatusUnauthorized, "unauthorized", "Could not validate credentials")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func reject(w http.ResponseWriter, status int, code, detail string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "detail": detail})
}
