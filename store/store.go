package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by point lookups and conditional updates that
	// matched no row.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("store: duplicate")
	// ErrFamilyRevoked is returned when a refresh token is created in a
	// family that RevokeFamily has already run for.
	ErrFamilyRevoked = errors.New("store: refresh family revoked")
)

// Provider tags for Account.Provider and LinkedIdentity.Provider.
const (
	ProviderEmail  = "email"
	ProviderGitHub = "github"
)

// Account is the local identity record.
type Account struct {
	ID           string
	Email        string
	Name         string
	AvatarURL    string
	PasswordHash string // empty for OAuth-only accounts
	Provider     string
	Active       bool
	Verified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether the account can log in with a password.
func (a Account) HasPassword() bool {
	return a.PasswordHash != ""
}

// RefreshToken is a persisted refresh-token record. The wire token itself is
// never stored, only TokenHash.
type RefreshToken struct {
	ID        string
	AccountID string
	TokenHash string
	FamilyID  string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// ActiveAt reports whether the record is unrevoked and unexpired at now.
func (r RefreshToken) ActiveAt(now time.Time) bool {
	return r.RevokedAt == nil && now.Before(r.ExpiresAt)
}

// ResetToken is a single-use password-reset record.
type ResetToken struct {
	ID        string
	AccountID string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// UsableAt reports whether the record is unused and unexpired at now.
func (r ResetToken) UsableAt(now time.Time) bool {
	return r.UsedAt == nil && now.Before(r.ExpiresAt)
}

// LinkedIdentity maps (Provider, ProviderUserID) to a local account.
type LinkedIdentity struct {
	ID             string
	AccountID      string
	Provider       string
	ProviderUserID string
	AccessToken    string
	CreatedAt      time.Time
}

// Accounts persists Account records.
type Accounts interface {
	// CreateAccount inserts a, filling ID and timestamps when empty. A taken
	// email yields ErrDuplicate.
	CreateAccount(ctx context.Context, a Account) (Account, error)
	AccountByID(ctx context.Context, id string) (Account, error)
	// AccountByEmail matches case-insensitively.
	AccountByEmail(ctx context.Context, email string) (Account, error)
	UpdatePasswordHash(ctx context.Context, accountID, hash string, now time.Time) error
	SetActive(ctx context.Context, accountID string, active bool, now time.Time) error
}

// RefreshTokens persists refresh-token hashes. Every revoke operation only
// touches rows that are still unrevoked, so repeating one is a no-op.
type RefreshTokens interface {
	// CreateRefreshToken inserts t, or returns ErrFamilyRevoked when
	// t.FamilyID has been revoked. It is serialized against RevokeFamily for
	// the same family: a concurrent successor is either refused here or
	// revoked there.
	CreateRefreshToken(ctx context.Context, t RefreshToken) (RefreshToken, error)
	// FindActiveRefreshToken returns ErrNotFound for missing, revoked and
	// expired records alike.
	FindActiveRefreshToken(ctx context.Context, tokenHash string, now time.Time) (RefreshToken, error)
	// ConsumeRefreshToken revokes the record for tokenHash if it is active at
	// now and returns it. It is a single conditional write: of several
	// concurrent callers at most one receives the record, the others
	// ErrNotFound.
	ConsumeRefreshToken(ctx context.Context, tokenHash string, now time.Time) (RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string, now time.Time) error
	// RevokeFamily revokes every live member of the family and marks it so
	// no further member can be created.
	RevokeFamily(ctx context.Context, familyID string, now time.Time) (int64, error)
	RevokeAllForAccount(ctx context.Context, accountID string, now time.Time) (int64, error)
}

// ResetTokens persists password-reset tokens.
type ResetTokens interface {
	// ReplaceResetToken marks every outstanding token of t.AccountID used and
	// inserts t atomically. A concurrent replacement for the same account may
	// fail with ErrDuplicate.
	ReplaceResetToken(ctx context.Context, t ResetToken, now time.Time) (ResetToken, error)
	// RedeemResetToken marks the token used if it is usable at now, stores
	// passwordHash on its account and revokes the account's refresh tokens.
	// The three writes succeed or fail together. It returns the token and the
	// number of revoked refresh tokens, or ErrNotFound.
	RedeemResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (ResetToken, int64, error)
}

// Identities persists LinkedIdentity records.
type Identities interface {
	IdentityByProvider(ctx context.Context, provider, providerUserID string) (LinkedIdentity, error)
	// LinkIdentity yields ErrDuplicate when (provider, provider user id) is
	// already linked.
	LinkIdentity(ctx context.Context, li LinkedIdentity) (LinkedIdentity, error)
}

// Store is the full storage collaborator consumed by the engine.
type Store interface {
	Accounts
	RefreshTokens
	ResetTokens
	Identities
	Ping(ctx context.Context) error
}
