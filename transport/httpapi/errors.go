package httpapi

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/forgeauth"
)

type apiError struct {
	status int
	code   string
	detail string
}

var errorTable = []struct {
	target error
	apiError
}{
	{forgeauth.ErrInvalidInput, apiError{http.StatusUnprocessableEntity, "invalid_input", "Invalid request"}},
	{forgeauth.ErrPasswordPolicy, apiError{http.StatusUnprocessableEntity, "password_policy", "Password does not meet the length policy"}},
	{forgeauth.ErrAccountExists, apiError{http.StatusBadRequest, "account_exists", "Email already registered"}},
	{forgeauth.ErrInvalidCredentials, apiError{http.StatusUnauthorized, "invalid_credentials", "Invalid email or password"}},
	{forgeauth.ErrAccountDisabled, apiError{http.StatusForbidden, "account_disabled", "Account is disabled"}},
	{forgeauth.ErrInvalidTokenType, apiError{http.StatusUnauthorized, "invalid_token_type", "Invalid token type"}},
	{forgeauth.ErrTokenInvalid, apiError{http.StatusUnauthorized, "invalid_token", "Invalid refresh token"}},
	{forgeauth.ErrReplayDetected, apiError{http.StatusUnauthorized, "token_reuse", "Refresh token has been revoked"}},
	{forgeauth.ErrInvalidOrExpiredResetToken, apiError{http.StatusBadRequest, "invalid_reset_token", "Invalid or expired reset token"}},
	{forgeauth.ErrInvalidState, apiError{http.StatusBadRequest, "invalid_state", "Invalid or expired OAuth state"}},
	{forgeauth.ErrUpstreamProvider, apiError{http.StatusBadRequest, "upstream_error", "Failed to complete sign-in with the provider"}},
	{forgeauth.ErrUnknownProvider, apiError{http.StatusNotFound, "unknown_provider", "Unknown OAuth provider"}},
	{forgeauth.ErrAccountNotFound, apiError{http.StatusNotFound, "account_not_found", "Account not found"}},
	{forgeauth.ErrLoginRateLimited, apiError{http.StatusTooManyRequests, "rate_limited", "Too many login attempts"}},
	{forgeauth.ErrRefreshRateLimited, apiError{http.StatusTooManyRequests, "rate_limited", "Too many refresh attempts"}},
	{forgeauth.ErrStorageUnavailable, apiError{http.StatusServiceUnavailable, "unavailable", "Service temporarily unavailable"}},
	{forgeauth.ErrEngineNotReady, apiError{http.StatusServiceUnavailable, "unavailable", "Service temporarily unavailable"}},
}

var internalError = apiError{http.StatusInternalServerError, "internal", "Internal server error"}

func classify(err error) apiError {
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			return e.apiError
		}
	}
	return internalError
}

// StatusFor returns the HTTP status an engine error is reported with.
func StatusFor(err error) int {
	return classify(err).status
}
