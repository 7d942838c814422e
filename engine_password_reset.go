package forgeauth

import (
	"context"

	"go.uber.org/zap"

	"github.com/MrEthical07/forgeauth/internal/flows"
)

// RequestPasswordReset mails a single-use reset link to email if an account
// exists. The result is nil for unknown addresses and when delivery fails,
// so callers cannot learn which addresses are registered. Only a storage
// outage is reported.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}

	res := e.flows.RequestPasswordReset(ctx, email)
	if res.Failure != flows.FailureNone {
		return e.failureError(res.Failure, res.Err)
	}

	if res.Issued {
		e.metricInc(MetricPasswordResetRequest)
		e.emitAudit(ctx, auditEventPasswordResetRequest, auditRecord{accountID: res.AccountID})
	}
	if res.DeliveryErr != nil {
		e.metricInc(MetricPasswordResetDeliveryFailure)
		e.logger.Warn("password reset delivery failed",
			zap.String("account_id", res.AccountID),
			zap.Error(res.DeliveryErr),
		)
	}
	return nil
}

// ConfirmPasswordReset spends a reset token, sets newPassword and revokes
// every refresh token of the account.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, rawToken, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}

	res := e.flows.ConfirmPasswordReset(ctx, rawToken, newPassword)
	if res.Failure != flows.FailureNone {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirmFailure, auditRecord{accountID: res.AccountID, failure: res.Failure})
		return e.failureError(res.Failure, res.Err)
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.metricAdd(MetricTokensRevoked, res.Revoked)
	e.emitAudit(ctx, auditEventPasswordResetConfirmSuccess, auditRecord{accountID: res.AccountID})
	return nil
}
