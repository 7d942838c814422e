package forgeauth

import (
	"context"

	"github.com/MrEthical07/forgeauth/internal/flows"
)

const (
	auditEventSignupSuccess               = "signup_success"
	auditEventSignupFailure               = "signup_failure"
	auditEventLoginSuccess                = "login_success"
	auditEventLoginFailure                = "login_failure"
	auditEventRefreshSuccess              = "refresh_success"
	auditEventRefreshInvalid              = "refresh_invalid"
	auditEventRefreshReuseDetected        = "refresh_reuse_detected"
	auditEventLogout                      = "logout"
	auditEventLogoutAll                   = "logout_all"
	auditEventPasswordResetRequest        = "password_reset_request"
	auditEventPasswordResetConfirmSuccess = "password_reset_confirm_success"
	auditEventPasswordResetConfirmFailure = "password_reset_confirm_failure"
	auditEventOAuthLoginSuccess           = "oauth_login_success"
	auditEventOAuthLoginFailure           = "oauth_login_failure"
	auditEventOAuthAccountLinked          = "oauth_account_linked"
	auditEventAccountStatusChange         = "account_status_change"
)

// auditRecord is the per-call part of an event. Timestamp, IP and user agent
// are filled in by emitAudit.
type auditRecord struct {
	accountID string
	familyID  string
	failure   flows.FailureKind
	metadata  func() map[string]string
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, rec auditRecord) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if rec.metadata != nil {
		metadata = rec.metadata()
	}

	e.audit.Emit(ctx, AuditEvent{
		Timestamp: e.now(),
		EventType: eventType,
		AccountID: rec.accountID,
		FamilyID:  rec.familyID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   rec.failure == flows.FailureNone,
		Error:     rec.failure.String(),
		Metadata:  metadata,
	})
}
