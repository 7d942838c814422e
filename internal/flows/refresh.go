package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/forgeauth/internal"
	"github.com/MrEthical07/forgeauth/internal/rate"
	"github.com/MrEthical07/forgeauth/jwt"
	"github.com/MrEthical07/forgeauth/store"
)

type RefreshRateLimiter interface {
	CheckRefresh(ctx context.Context, familyID string) error
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Codec         TokenCodec
	Accounts      store.Accounts
	RefreshTokens store.RefreshTokens
	Pair          PairDeps
	RateLimiter   RefreshRateLimiter
	Now           func() time.Time
	Warn          func(msg string, err error)
}

// RefreshResult carries either the rotated pair or failure metadata.
// FamilyRevoked is set when reuse was detected and reports how many live
// members of the family were revoked as a consequence.
type RefreshResult struct {
	Failure       FailureKind
	Err           error
	AccountID     string
	FamilyID      string
	FamilyRevoked int64
	Tokens        TokenPair
}

// RunRefresh rotates a refresh token.
//
// The presented token is consumed with a single conditional write. Losing
// that write for a token that decodes cleanly means the token was already
// rotated, revoked or replaced, and the whole family is revoked from the
// token's own claims. When two holders present the same token, one wins
// the consume and the other revokes the family. The store serializes that
// revocation against the winner's successor insert, so the successor is
// either revoked with the family or refused, and the winner then fails with
// replay detected too.
func RunRefresh(ctx context.Context, rawRefresh string, deps RefreshDeps) RefreshResult {
	claims, err := deps.Codec.Decode(rawRefresh)
	if err != nil {
		return RefreshResult{Failure: FailureTokenInvalid, Err: err}
	}
	if claims.Type != jwt.TypeRefresh {
		return RefreshResult{
			Failure:   FailureInvalidTokenType,
			Err:       errors.New("not a refresh token"),
			AccountID: claims.AccountID(),
		}
	}

	base := RefreshResult{AccountID: claims.AccountID(), FamilyID: claims.FamilyID}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckRefresh(ctx, claims.FamilyID); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				base.Failure, base.Err = FailureRateLimited, err
				return base
			}
			if deps.Warn != nil {
				deps.Warn("refresh limiter check failed", err)
			}
		}
	}

	now := deps.Now()
	rec, err := deps.RefreshTokens.ConsumeRefreshToken(ctx, internal.HashToken(rawRefresh), now)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			base.Failure, base.Err = FailureStorage, err
			return base
		}
		revoked, revErr := deps.RefreshTokens.RevokeFamily(ctx, claims.FamilyID, now)
		if revErr != nil {
			base.Failure, base.Err = FailureStorage, revErr
			return base
		}
		base.Failure, base.Err, base.FamilyRevoked = FailureReplayDetected, err, revoked
		return base
	}

	account, err := deps.Accounts.AccountByID(ctx, rec.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			base.Failure, base.Err = FailureTokenInvalid, err
			return base
		}
		base.Failure, base.Err = FailureStorage, err
		return base
	}
	// The consume above already revoked the presented record, so a disabled
	// owner is left with nothing redeemable from this token.
	if !account.Active {
		base.Failure, base.Err = FailureAccountDisabled, errors.New("account inactive")
		return base
	}

	pair, kind, err := IssuePair(ctx, account.ID, rec.FamilyID, deps.Pair)
	if err != nil {
		base.Failure, base.Err = kind, err
		return base
	}
	base.Tokens = pair
	return base
}
