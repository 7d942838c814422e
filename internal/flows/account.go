package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/forgeauth/jwt"
	"github.com/MrEthical07/forgeauth/store"
)

// ValidateDeps captures access-token validation dependencies.
type ValidateDeps struct {
	Codec    TokenCodec
	Accounts store.Accounts
}

// ValidateResult carries the decoded claims and the current account.
type ValidateResult struct {
	Failure FailureKind
	Err     error
	Claims  *jwt.Claims
	Account store.Account
}

// RunValidateAccess authenticates a bearer access token. The account is read
// on every call so a deactivation takes effect before the token expires.
func RunValidateAccess(ctx context.Context, token string, deps ValidateDeps) ValidateResult {
	claims, err := deps.Codec.Decode(token)
	if err != nil {
		return ValidateResult{Failure: FailureTokenInvalid, Err: err}
	}
	if claims.Type != jwt.TypeAccess {
		return ValidateResult{Failure: FailureInvalidTokenType, Err: errors.New("not an access token"), Claims: claims}
	}

	account, err := deps.Accounts.AccountByID(ctx, claims.AccountID())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ValidateResult{Failure: FailureTokenInvalid, Err: err, Claims: claims}
		}
		return ValidateResult{Failure: FailureStorage, Err: err, Claims: claims}
	}
	if !account.Active {
		return ValidateResult{Failure: FailureAccountDisabled, Err: errors.New("account inactive"), Claims: claims, Account: account}
	}
	return ValidateResult{Claims: claims, Account: account}
}

// AccountStatusDeps captures account status dependencies.
type AccountStatusDeps struct {
	Accounts      store.Accounts
	RefreshTokens store.RefreshTokens
	Now           func() time.Time
}

// AccountStatusResult reports the status transition.
type AccountStatusResult struct {
	Failure FailureKind
	Err     error
	Changed bool
	Revoked int64
}

// RunSetAccountActive flips the active flag. Deactivation also revokes every
// refresh token, and does so even when the flag was already off so a retry
// after a partial failure converges.
func RunSetAccountActive(ctx context.Context, accountID string, active bool, deps AccountStatusDeps) AccountStatusResult {
	account, err := deps.Accounts.AccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AccountStatusResult{Failure: FailureAccountNotFound, Err: err}
		}
		return AccountStatusResult{Failure: FailureStorage, Err: err}
	}

	now := deps.Now()
	res := AccountStatusResult{Changed: account.Active != active}
	if res.Changed {
		if err := deps.Accounts.SetActive(ctx, accountID, active, now); err != nil {
			return AccountStatusResult{Failure: FailureStorage, Err: err}
		}
	}

	if !active {
		n, err := deps.RefreshTokens.RevokeAllForAccount(ctx, accountID, now)
		if err != nil {
			res.Failure, res.Err = FailureStorage, err
			return res
		}
		res.Revoked = n
	}
	return res
}
