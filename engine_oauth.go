package forgeauth

import (
	"context"

	"github.com/MrEthical07/forgeauth/internal/flows"
	"github.com/MrEthical07/forgeauth/store"
)

func (e *Engine) provider(name string) (OAuthProvider, error) {
	p, ok := e.providers[name]
	if !ok || e.stateStore == nil {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

// AuthorizationURL starts an OAuth login with the named provider. The
// returned state is valid once, for Config.OAuth.StateTTL.
func (e *Engine) AuthorizationURL(ctx context.Context, providerName string) (*AuthorizationRequest, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	p, err := e.provider(providerName)
	if err != nil {
		return nil, err
	}

	authURL, state, kind, err := e.flows.AuthorizationURL(ctx, p)
	if kind != flows.FailureNone {
		return nil, e.failureError(kind, err)
	}
	return &AuthorizationRequest{URL: authURL, State: state}, nil
}

// OAuthCallback completes an OAuth login: it spends state, exchanges code,
// maps the provider identity to a local account and signs it in with a new
// token family.
func (e *Engine) OAuthCallback(ctx context.Context, providerName, code, state string) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	p, err := e.provider(providerName)
	if err != nil {
		return nil, err
	}

	res := e.flows.OAuthCallback(ctx, p, code, state)
	if res.Failure != flows.FailureNone {
		if res.Failure == flows.FailureInvalidState {
			e.metricInc(MetricOAuthStateInvalid)
		}
		e.metricInc(MetricOAuthLoginFailure)
		e.emitAudit(ctx, auditEventOAuthLoginFailure, auditRecord{
			accountID: res.Account.ID,
			failure:   res.Failure,
			metadata:  providerMeta(providerName, res.Outcome),
		})
		return nil, e.failureError(res.Failure, res.Err)
	}

	switch res.Outcome {
	case flows.LinkCreated:
		e.metricInc(MetricOAuthAccountCreated)
	case flows.LinkMerged:
		e.metricInc(MetricOAuthAccountLinked)
	}
	if res.Outcome == flows.LinkCreated || res.Outcome == flows.LinkMerged {
		e.emitAudit(ctx, auditEventOAuthAccountLinked, auditRecord{
			accountID: res.Account.ID,
			metadata:  providerMeta(providerName, res.Outcome),
		})
	}
	e.metricInc(MetricOAuthLoginSuccess)
	e.emitAudit(ctx, auditEventOAuthLoginSuccess, auditRecord{
		accountID: res.Account.ID,
		familyID:  res.Tokens.FamilyID,
		metadata:  providerMeta(providerName, res.Outcome),
	})
	return &AuthResult{Account: res.Account, Tokens: tokenPair(res.Tokens)}, nil
}

// GitHubCallback is OAuthCallback for the provider registered as "github".
func (e *Engine) GitHubCallback(ctx context.Context, code, state string) (*AuthResult, error) {
	return e.OAuthCallback(ctx, store.ProviderGitHub, code, state)
}

func providerMeta(provider string, outcome flows.LinkOutcome) func() map[string]string {
	return func() map[string]string {
		return map[string]string{
			"provider": provider,
			"link":     outcome.String(),
		}
	}
}
