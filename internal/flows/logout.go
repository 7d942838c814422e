package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/forgeauth/internal"
	"github.com/MrEthical07/forgeauth/jwt"
	"github.com/MrEthical07/forgeauth/store"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Codec         TokenCodec
	RefreshTokens store.RefreshTokens
	Now           func() time.Time
}

// LogoutResult reports what, if anything, was revoked.
type LogoutResult struct {
	Failure   FailureKind
	Err       error
	AccountID string
	FamilyID  string
	Revoked   bool
}

// RunLogout revokes the record behind rawRefresh. Tokens that fail to decode
// and records that are already revoked or expired are not errors: logout of
// something that cannot be used is already done.
func RunLogout(ctx context.Context, rawRefresh string, deps LogoutDeps) LogoutResult {
	claims, err := deps.Codec.Decode(rawRefresh)
	if err != nil || claims.Type != jwt.TypeRefresh {
		return LogoutResult{}
	}

	now := deps.Now()
	res := LogoutResult{AccountID: claims.AccountID(), FamilyID: claims.FamilyID}

	rec, err := deps.RefreshTokens.FindActiveRefreshToken(ctx, internal.HashToken(rawRefresh), now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return res
		}
		res.Failure, res.Err = FailureStorage, err
		return res
	}

	if err := deps.RefreshTokens.RevokeRefreshToken(ctx, rec.ID, now); err != nil {
		res.Failure, res.Err = FailureStorage, err
		return res
	}
	res.Revoked = true
	return res
}

// RunLogoutAll revokes every live refresh token of an account.
func RunLogoutAll(ctx context.Context, accountID string, deps LogoutDeps) (int64, FailureKind, error) {
	n, err := deps.RefreshTokens.RevokeAllForAccount(ctx, accountID, deps.Now())
	if err != nil {
		return 0, FailureStorage, err
	}
	return n, FailureNone, nil
}
