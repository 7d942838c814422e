package forgeauth

import (
	"context"
	"strconv"
	"time"

	"github.com/MrEthical07/forgeauth/internal/flows"
	"github.com/MrEthical07/forgeauth/store"
)

// ValidateAccess authenticates a bearer access token and returns the
// identity behind it. The account is re-read on every call so deactivation
// is effective immediately rather than at token expiry.
func (e *Engine) ValidateAccess(ctx context.Context, accessToken string) (*AccessIdentity, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer e.observeSince(MetricValidateLatency, start)

	res := e.flows.ValidateAccess(ctx, accessToken)
	if res.Failure != flows.FailureNone {
		return nil, e.failureError(res.Failure, res.Err)
	}

	id := &AccessIdentity{
		AccountID: res.Account.ID,
		TokenID:   res.Claims.ID,
		Account:   res.Account,
	}
	if res.Claims.IssuedAt != nil {
		id.IssuedAt = res.Claims.IssuedAt.Time
	}
	if res.Claims.ExpiresAt != nil {
		id.ExpiresAt = res.Claims.ExpiresAt.Time
	}
	return id, nil
}

// Me returns the account behind an access token.
func (e *Engine) Me(ctx context.Context, accessToken string) (store.Account, error) {
	id, err := e.ValidateAccess(ctx, accessToken)
	if err != nil {
		return store.Account{}, err
	}
	return id.Account, nil
}

// SetAccountActive enables or disables an account. Disabling revokes every
// refresh token; outstanding access tokens stop validating on their next
// use.
func (e *Engine) SetAccountActive(ctx context.Context, accountID string, active bool) error {
	if err := e.ready(); err != nil {
		return err
	}

	res := e.flows.SetAccountActive(ctx, accountID, active)
	if res.Failure != flows.FailureNone {
		return e.failureError(res.Failure, res.Err)
	}

	if res.Changed {
		if active {
			e.metricInc(MetricAccountEnabled)
		} else {
			e.metricInc(MetricAccountDisabled)
		}
	}
	e.metricAdd(MetricTokensRevoked, res.Revoked)
	e.emitAudit(ctx, auditEventAccountStatusChange, auditRecord{
		accountID: accountID,
		metadata: func() map[string]string {
			return map[string]string{
				"active":  strconv.FormatBool(active),
				"changed": strconv.FormatBool(res.Changed),
				"revoked": strconv.FormatInt(res.Revoked, 10),
			}
		},
	})
	return nil
}
