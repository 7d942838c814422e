package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/forgeauth/internal/rate"
	"github.com/MrEthical07/forgeauth/store"
)

// LoginRateLimiter guards password login against guessing.
type LoginRateLimiter interface {
	CheckLogin(ctx context.Context, identifier, ip string) error
	IncrementLogin(ctx context.Context, identifier, ip string) error
	ResetLogin(ctx context.Context, identifier string) error
}

// LoginRequest is the flow-local login input.
type LoginRequest struct {
	Email    string
	Password string
	IP       string
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	Hasher      Hasher
	Accounts    store.Accounts
	Pair        PairDeps
	RateLimiter LoginRateLimiter
	Now         func() time.Time

	// Warn receives failures that are logged but never surfaced.
	Warn func(msg string, err error)
}

// LoginResult carries the authenticated account and a pair in a new family.
type LoginResult struct {
	Failure  FailureKind
	Err      error
	Account  store.Account
	Tokens   TokenPair
	Rehashed bool
}

// RunLogin verifies credentials and issues a pair. Unknown email, a missing
// password hash and a wrong password are indistinguishable to the caller.
// The active check happens after verification so that a disabled status is
// only revealed to someone who knows the password.
func RunLogin(ctx context.Context, req LoginRequest, deps LoginDeps) LoginResult {
	email, ok := NormalizeEmail(req.Email)
	if !ok || req.Password == "" {
		return LoginResult{Failure: FailureInvalidCredentials, Err: errors.New("malformed credentials")}
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckLogin(ctx, email, req.IP); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				return LoginResult{Failure: FailureRateLimited, Err: err}
			}
			// The limiter is hardening, not a gate: an outage is logged and
			// the attempt proceeds.
			deps.warn("login limiter check failed", err)
		}
	}

	account, err := deps.Accounts.AccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return deps.failed(ctx, email, req.IP, errors.New("unknown account"))
		}
		return LoginResult{Failure: FailureStorage, Err: err}
	}
	if !account.HasPassword() {
		return deps.failed(ctx, email, req.IP, errors.New("account has no password"))
	}

	ok, err = deps.Hasher.Verify(req.Password, account.PasswordHash)
	if err != nil {
		return LoginResult{Failure: FailureInternal, Err: err, Account: account}
	}
	if !ok {
		res := deps.failed(ctx, email, req.IP, errors.New("password mismatch"))
		res.Account = account
		return res
	}

	if !account.Active {
		return LoginResult{Failure: FailureAccountDisabled, Err: errors.New("account inactive"), Account: account}
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.ResetLogin(ctx, email); err != nil {
			deps.warn("login limiter reset failed", err)
		}
	}

	rehashed := deps.rehash(ctx, account, req.Password)

	pair, kind, err := IssuePair(ctx, account.ID, "", deps.Pair)
	if err != nil {
		return LoginResult{Failure: kind, Err: err, Account: account}
	}
	return LoginResult{Account: account, Tokens: pair, Rehashed: rehashed}
}

func (deps LoginDeps) failed(ctx context.Context, email, ip string, cause error) LoginResult {
	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.IncrementLogin(ctx, email, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
			deps.warn("login limiter increment failed", err)
		}
	}
	return LoginResult{Failure: FailureInvalidCredentials, Err: cause}
}

// rehash upgrades a hash produced under weaker parameters. Any failure is
// reported through Warn and the login proceeds.
func (deps LoginDeps) rehash(ctx context.Context, account store.Account, plain string) bool {
	needs, err := deps.Hasher.NeedsRehash(account.PasswordHash)
	if err != nil || !needs {
		return false
	}
	hash, err := deps.Hasher.Hash(plain)
	if err != nil {
		deps.warn("password rehash failed", err)
		return false
	}
	if err := deps.Accounts.UpdatePasswordHash(ctx, account.ID, hash, deps.Now()); err != nil {
		deps.warn("password rehash persist failed", err)
		return false
	}
	return true
}

func (deps LoginDeps) warn(msg string, err error) {
	if deps.Warn != nil {
		deps.Warn(msg, err)
	}
}
