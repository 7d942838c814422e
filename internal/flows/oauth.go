package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/forgeauth/internal/stores"
	"github.com/MrEthical07/forgeauth/oauth"
	"github.com/MrEthical07/forgeauth/store"
)

// StateStore keeps single-use OAuth state values.
type StateStore interface {
	Save(ctx context.Context, state string, data stores.OAuthState, ttl time.Duration) error
	Consume(ctx context.Context, state string) (stores.OAuthState, error)
}

// OAuthDeps captures OAuth flow dependencies.
type OAuthDeps struct {
	States   StateStore
	StateTTL time.Duration
	NewState func() (string, error)
	Identity IdentityDeps
	Pair     PairDeps
	Now      func() time.Time
}

// OAuthResult carries the signed-in account and its pair.
type OAuthResult struct {
	Failure FailureKind
	Err     error
	Account store.Account
	Outcome LinkOutcome
	Tokens  TokenPair
}

// RunAuthorizationURL mints and stores a state value for provider and
// returns the provider's consent URL with the state.
func RunAuthorizationURL(ctx context.Context, provider oauth.Provider, deps OAuthDeps) (string, string, FailureKind, error) {
	state, err := deps.NewState()
	if err != nil {
		return "", "", FailureInternal, err
	}
	err = deps.States.Save(ctx, state, stores.OAuthState{Provider: provider.Name(), IssuedAt: deps.Now()}, deps.StateTTL)
	if err != nil {
		if errors.Is(err, stores.ErrStateExists) {
			return "", "", FailureInternal, err
		}
		return "", "", FailureStorage, err
	}
	return provider.AuthCodeURL(state), state, FailureNone, nil
}

// RunOAuthCallback completes an authorization-code login. The state is
// consumed before anything else so a value can never be replayed, even when
// the rest of the callback fails.
func RunOAuthCallback(ctx context.Context, provider oauth.Provider, code, state string, deps OAuthDeps) OAuthResult {
	if state == "" {
		return OAuthResult{Failure: FailureInvalidState, Err: stores.ErrStateNotFound}
	}
	saved, err := deps.States.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, stores.ErrStateNotFound) {
			return OAuthResult{Failure: FailureInvalidState, Err: err}
		}
		return OAuthResult{Failure: FailureStorage, Err: err}
	}
	if saved.Provider != provider.Name() {
		return OAuthResult{Failure: FailureInvalidState, Err: errors.New("state issued for another provider")}
	}
	if code == "" {
		// The provider redirects without a code when the user denies access.
		return OAuthResult{Failure: FailureUpstream, Err: errors.New("missing authorization code")}
	}

	accessToken, err := provider.Exchange(ctx, code)
	if err != nil {
		return OAuthResult{Failure: FailureUpstream, Err: err}
	}
	user, err := provider.FetchUser(ctx, accessToken)
	if err != nil {
		return OAuthResult{Failure: FailureUpstream, Err: err}
	}

	resolved := RunResolveIdentity(ctx, provider.Name(), user, accessToken, deps.Identity)
	if resolved.Failure != FailureNone {
		return OAuthResult{Failure: resolved.Failure, Err: resolved.Err}
	}
	res := OAuthResult{Account: resolved.Account, Outcome: resolved.Outcome}
	if !resolved.Account.Active {
		res.Failure, res.Err = FailureAccountDisabled, errors.New("account inactive")
		return res
	}

	pair, kind, err := IssuePair(ctx, resolved.Account.ID, "", deps.Pair)
	if err != nil {
		res.Failure, res.Err = kind, err
		return res
	}
	res.Tokens = pair
	return res
}
