package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/forgeauth/internal"
	"github.com/MrEthical07/forgeauth/jwt"
	"github.com/MrEthical07/forgeauth/store"
)

// FailureKind classifies flow failures for root-level mapping.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureInvalidInput
	FailurePasswordPolicy
	FailureAccountExists
	FailureInvalidCredentials
	FailureRateLimited
	FailureAccountDisabled
	FailureInvalidTokenType
	FailureTokenInvalid
	FailureReplayDetected
	FailureInvalidResetToken
	FailureInvalidState
	FailureUpstream
	FailureUnknownProvider
	FailureAccountNotFound
	FailureStorage
	FailureInternal
)

var failureNames = [...]string{
	FailureNone:               "",
	FailureInvalidInput:       "invalid_input",
	FailurePasswordPolicy:     "password_policy",
	FailureAccountExists:      "account_exists",
	FailureInvalidCredentials: "invalid_credentials",
	FailureRateLimited:        "rate_limited",
	FailureAccountDisabled:    "account_disabled",
	FailureInvalidTokenType:   "invalid_token_type",
	FailureTokenInvalid:       "token_invalid",
	FailureReplayDetected:     "replay_detected",
	FailureInvalidResetToken:  "invalid_reset_token",
	FailureInvalidState:       "invalid_state",
	FailureUpstream:           "upstream_provider",
	FailureUnknownProvider:    "unknown_provider",
	FailureAccountNotFound:    "account_not_found",
	FailureStorage:            "storage_unavailable",
	FailureInternal:           "internal",
}

// String returns the snake_case name used in audit events.
func (k FailureKind) String() string {
	if k < 0 || int(k) >= len(failureNames) {
		return "unknown"
	}
	return failureNames[k]
}

// TokenCodec is the subset of jwt.Manager the flows use.
type TokenCodec interface {
	IssueAccess(accountID string) (string, error)
	IssueRefresh(accountID, familyID string) (string, string, time.Time, error)
	Decode(token string) (*jwt.Claims, error)
	AccessTTL() time.Duration
}

// Hasher is the subset of password.Argon2 the flows use.
type Hasher interface {
	ValidatePolicy(password string) error
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
	NeedsRehash(encoded string) (bool, error)
}

// TokenPair is a freshly issued access/refresh pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	FamilyID     string
	ExpiresIn    time.Duration
}

// PairDeps captures what is needed to mint and persist a token pair.
type PairDeps struct {
	Codec         TokenCodec
	RefreshTokens store.RefreshTokens
	Now           func() time.Time
}

// IssuePair mints a refresh token in familyID (a new family when empty),
// persists its hash and then mints the access token. The refresh record is
// written before any token is returned so a pair handed to a caller is always
// redeemable.
func IssuePair(ctx context.Context, accountID, familyID string, deps PairDeps) (TokenPair, FailureKind, error) {
	refresh, fam, expiresAt, err := deps.Codec.IssueRefresh(accountID, familyID)
	if err != nil {
		return TokenPair{}, FailureInternal, err
	}

	_, err = deps.RefreshTokens.CreateRefreshToken(ctx, store.RefreshToken{
		AccountID: accountID,
		TokenHash: internal.HashToken(refresh),
		FamilyID:  fam,
		ExpiresAt: expiresAt,
		CreatedAt: deps.Now(),
	})
	if err != nil {
		if errors.Is(err, store.ErrFamilyRevoked) {
			return TokenPair{}, FailureReplayDetected, err
		}
		return TokenPair{}, FailureStorage, err
	}

	access, err := deps.Codec.IssueAccess(accountID)
	if err != nil {
		return TokenPair{}, FailureInternal, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		FamilyID:     fam,
		ExpiresIn:    deps.Codec.AccessTTL(),
	}, FailureNone, nil
}
