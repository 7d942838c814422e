package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/forgeauth/oauth"
	"github.com/MrEthical07/forgeauth/store"
)

// LinkOutcome says how an external identity was mapped to a local account.
type LinkOutcome int

const (
	LinkNone LinkOutcome = iota
	// LinkExisting: the identity was already linked.
	LinkExisting
	// LinkMerged: the identity was linked onto an account found by email.
	LinkMerged
	// LinkCreated: a new account was created for the identity.
	LinkCreated
)

func (o LinkOutcome) String() string {
	switch o {
	case LinkExisting:
		return "existing"
	case LinkMerged:
		return "merged"
	case LinkCreated:
		return "created"
	default:
		return "none"
	}
}

// IdentityDeps captures identity linker dependencies.
type IdentityDeps struct {
	Accounts   store.Accounts
	Identities store.Identities

	// RequireVerifiedEmail refuses to merge onto an existing account unless
	// the provider vouched for the email address.
	RequireVerifiedEmail bool
	Now                  func() time.Time
}

// IdentityResult carries the resolved account.
type IdentityResult struct {
	Failure FailureKind
	Err     error
	Account store.Account
	Outcome LinkOutcome
}

// resolveAttempts bounds re-reads after losing a uniqueness race. Two is
// enough: the second pass always finds the winner's rows.
const resolveAttempts = 2

// RunResolveIdentity maps a provider profile to a local account: by linked
// identity first, then by email, else by creating a new account.
func RunResolveIdentity(ctx context.Context, provider string, user oauth.User, accessToken string, deps IdentityDeps) IdentityResult {
	if user.ID == "" {
		return IdentityResult{Failure: FailureUpstream, Err: errors.New("provider user id missing")}
	}
	email, ok := NormalizeEmail(user.Email)
	if !ok {
		return IdentityResult{Failure: FailureUpstream, Err: errors.New("provider email unusable")}
	}
	user.Email = email

	var res IdentityResult
	for attempt := 0; attempt < resolveAttempts; attempt++ {
		var retry bool
		res, retry = resolveOnce(ctx, provider, user, accessToken, deps)
		if !retry {
			return res
		}
	}
	return res
}

// resolveOnce reports retry=true when a concurrent writer won a uniqueness
// race and a fresh read will observe its result.
func resolveOnce(ctx context.Context, provider string, user oauth.User, accessToken string, deps IdentityDeps) (IdentityResult, bool) {
	linked, err := deps.Identities.IdentityByProvider(ctx, provider, user.ID)
	switch {
	case err == nil:
		account, err := deps.Accounts.AccountByID(ctx, linked.AccountID)
		if err != nil {
			return IdentityResult{Failure: FailureStorage, Err: err}, false
		}
		return IdentityResult{Account: account, Outcome: LinkExisting}, false
	case !errors.Is(err, store.ErrNotFound):
		return IdentityResult{Failure: FailureStorage, Err: err}, false
	}

	now := deps.Now()
	link := store.LinkedIdentity{
		Provider:       provider,
		ProviderUserID: user.ID,
		AccessToken:    accessToken,
		CreatedAt:      now,
	}

	account, err := deps.Accounts.AccountByEmail(ctx, user.Email)
	switch {
	case err == nil:
		if deps.RequireVerifiedEmail && !user.EmailVerified {
			return IdentityResult{
				Failure: FailureAccountExists,
				Err:     errors.New("unverified provider email matches an existing account"),
			}, false
		}
		link.AccountID = account.ID
		if _, err := deps.Identities.LinkIdentity(ctx, link); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return IdentityResult{Failure: FailureStorage, Err: err}, true
			}
			return IdentityResult{Failure: FailureStorage, Err: err}, false
		}
		return IdentityResult{Account: account, Outcome: LinkMerged}, false
	case !errors.Is(err, store.ErrNotFound):
		return IdentityResult{Failure: FailureStorage, Err: err}, false
	}

	account, err = deps.Accounts.CreateAccount(ctx, store.Account{
		Email:     user.Email,
		Name:      user.Name,
		AvatarURL: user.AvatarURL,
		Provider:  provider,
		Active:    true,
		Verified:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return IdentityResult{Failure: FailureStorage, Err: err}, true
		}
		return IdentityResult{Failure: FailureStorage, Err: err}, false
	}

	link.AccountID = account.ID
	if _, err := deps.Identities.LinkIdentity(ctx, link); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return IdentityResult{Failure: FailureStorage, Err: err}, true
		}
		return IdentityResult{Failure: FailureStorage, Err: err}, false
	}
	return IdentityResult{Account: account, Outcome: LinkCreated}, false
}
