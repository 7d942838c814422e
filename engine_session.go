package forgeauth

import (
	"context"
	"strconv"
	"time"

	"github.com/MrEthical07/forgeauth/internal/flows"
)

// Signup creates a password account and signs it in with a new token
// family.
func (e *Engine) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	res := e.flows.Signup(ctx, flows.SignupRequest{
		Email:    in.Email,
		Password: in.Password,
		Name:     in.Name,
	})
	if res.Failure != flows.FailureNone {
		if res.Failure == flows.FailureAccountExists {
			e.metricInc(MetricSignupDuplicate)
		}
		e.emitAudit(ctx, auditEventSignupFailure, auditRecord{accountID: res.Account.ID, failure: res.Failure})
		return nil, e.failureError(res.Failure, res.Err)
	}

	e.metricInc(MetricSignupSuccess)
	e.emitAudit(ctx, auditEventSignupSuccess, auditRecord{accountID: res.Account.ID, familyID: res.Tokens.FamilyID})
	return &AuthResult{Account: res.Account, Tokens: tokenPair(res.Tokens)}, nil
}

// Login verifies an email and password and signs the account in with a new
// token family. Unknown email, missing password and wrong password all
// return ErrInvalidCredentials. ErrAccountDisabled is only returned once the
// password has been verified.
func (e *Engine) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer e.observeSince(MetricLoginLatency, start)

	res := e.flows.Login(ctx, flows.LoginRequest{
		Email:    email,
		Password: password,
		IP:       clientIPFromContext(ctx),
	})
	if res.Failure != flows.FailureNone {
		switch res.Failure {
		case flows.FailureRateLimited:
			e.metricInc(MetricLoginRateLimited)
		case flows.FailureAccountDisabled:
			e.metricInc(MetricLoginDisabled)
		default:
			e.metricInc(MetricLoginFailure)
		}
		e.emitAudit(ctx, auditEventLoginFailure, auditRecord{accountID: res.Account.ID, failure: res.Failure})
		return nil, e.failureError(res.Failure, res.Err)
	}

	if res.Rehashed {
		e.metricInc(MetricPasswordRehash)
	}
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, auditRecord{
		accountID: res.Account.ID,
		familyID:  res.Tokens.FamilyID,
		metadata: func() map[string]string {
			return map[string]string{"rehashed": strconv.FormatBool(res.Rehashed)}
		},
	})
	return &AuthResult{Account: res.Account, Tokens: tokenPair(res.Tokens)}, nil
}

// Refresh rotates a refresh token. The presented token is spent whether or
// not the call succeeds. Presenting a token that was already spent returns
// ErrReplayDetected and revokes every token in its family.
func (e *Engine) Refresh(ctx context.Context, rawRefresh string) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer e.observeSince(MetricRefreshLatency, start)

	res := e.flows.Refresh(ctx, rawRefresh)
	switch res.Failure {
	case flows.FailureNone:
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, auditRecord{accountID: res.AccountID, familyID: res.FamilyID})
		pair := tokenPair(res.Tokens)
		return &pair, nil
	case flows.FailureReplayDetected:
		e.metricInc(MetricRefreshReuseDetected)
		e.metricAdd(MetricTokensRevoked, res.FamilyRevoked)
		e.emitAudit(ctx, auditEventRefreshReuseDetected, auditRecord{
			accountID: res.AccountID,
			familyID:  res.FamilyID,
			failure:   res.Failure,
			metadata: func() map[string]string {
				return map[string]string{"revoked": strconv.FormatInt(res.FamilyRevoked, 10)}
			},
		})
		return nil, ErrReplayDetected
	case flows.FailureRateLimited:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, auditRecord{accountID: res.AccountID, familyID: res.FamilyID, failure: res.Failure})
		return nil, ErrRefreshRateLimited
	default:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, auditRecord{accountID: res.AccountID, familyID: res.FamilyID, failure: res.Failure})
		return nil, e.failureError(res.Failure, res.Err)
	}
}

// Logout revokes a refresh token. Undecodable, expired and already revoked
// tokens are accepted silently; only a storage outage is an error.
func (e *Engine) Logout(ctx context.Context, rawRefresh string) error {
	if err := e.ready(); err != nil {
		return err
	}

	res := e.flows.Logout(ctx, rawRefresh)
	if res.Failure != flows.FailureNone {
		return e.failureError(res.Failure, res.Err)
	}
	if res.Revoked {
		e.metricInc(MetricLogout)
		e.emitAudit(ctx, auditEventLogout, auditRecord{accountID: res.AccountID, familyID: res.FamilyID})
	}
	return nil
}

// LogoutAll revokes every refresh token of accountID and returns how many
// were live.
func (e *Engine) LogoutAll(ctx context.Context, accountID string) (int64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}

	n, kind, err := e.flows.LogoutAll(ctx, accountID)
	if kind != flows.FailureNone {
		return 0, e.failureError(kind, err)
	}
	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, auditRecord{
		accountID: accountID,
		metadata: func() map[string]string {
			return map[string]string{"revoked": strconv.FormatInt(n, 10)}
		},
	})
	return n, nil
}
