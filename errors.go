package forgeauth

import "errors"

var (
	// ErrInvalidCredentials covers an unknown email, an account without a
	// password and a wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountExists is returned by Signup for a taken email, and by OAuth
	// login when an unverified provider email matches an existing account.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountDisabled is returned when the account is not active.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountNotFound is returned by account administration calls.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidTokenType is returned when an access token is presented where
	// a refresh token is expected, or the other way around.
	ErrInvalidTokenType = errors.New("invalid token type")
	// ErrTokenInvalid covers bad signatures, expiry and malformed tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrReplayDetected is returned when a refresh token that was already
	// rotated or revoked is presented again. Its whole family is revoked.
	ErrReplayDetected = errors.New("refresh token reuse detected")
	// ErrInvalidOrExpiredResetToken covers unknown, used, superseded and
	// expired reset tokens.
	ErrInvalidOrExpiredResetToken = errors.New("invalid or expired reset token")
	// ErrInvalidState is returned for a missing, expired, reused or foreign
	// OAuth state value.
	ErrInvalidState = errors.New("invalid or expired oauth state")
	// ErrUpstreamProvider is returned when the identity provider rejects the
	// code or cannot be reached.
	ErrUpstreamProvider = errors.New("identity provider error")
	// ErrUnknownProvider is returned for a provider name with no registered
	// implementation.
	ErrUnknownProvider = errors.New("unknown identity provider")
	// ErrStorageUnavailable wraps store and Redis failures.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrPasswordPolicy is returned for passwords outside the length policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrInvalidInput is returned for malformed signup input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrLoginRateLimited is returned once an identifier has exhausted its
	// failed-login budget.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshRateLimited is returned when a family exceeds its refresh
	// budget.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	ErrEngineNotReady     = errors.New("engine not initialized")
)
