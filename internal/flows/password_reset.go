package flows

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/forgeauth/internal"
	"github.com/MrEthical07/forgeauth/store"
)

const resetSubject = "Password reset"

// Mailer delivers one HTML message.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// ResetRequestDeps captures reset request flow dependencies.
type ResetRequestDeps struct {
	Accounts    store.Accounts
	ResetTokens store.ResetTokens
	Mailer      Mailer
	TokenTTL    time.Duration
	FrontendURL string
	NewToken    func() (string, error)
	Now         func() time.Time

	// Delay is slept before answering for an unknown address so that the
	// response time does not reveal whether an account exists.
	Delay func() time.Duration
}

// ResetRequestResult reports what happened for a reset request. Callers
// must not reveal anything beyond Failure == FailureStorage to the client.
type ResetRequestResult struct {
	Failure     FailureKind
	Err         error
	AccountID   string
	Issued      bool
	DeliveryErr error
}

// ResetConfirmDeps captures reset confirmation flow dependencies.
type ResetConfirmDeps struct {
	Hasher      Hasher
	ResetTokens store.ResetTokens
	Now         func() time.Time
}

// ResetConfirmResult carries the affected account and how many sessions the
// password change ended.
type ResetConfirmResult struct {
	Failure   FailureKind
	Err       error
	AccountID string
	Revoked   int64
}

// RunRequestPasswordReset issues a reset token for a known address and mails
// the link. Unknown and malformed addresses succeed silently. Delivery
// failures are reported in DeliveryErr but are not a flow failure.
func RunRequestPasswordReset(ctx context.Context, rawEmail string, deps ResetRequestDeps) ResetRequestResult {
	email, ok := NormalizeEmail(rawEmail)
	if !ok {
		deps.pause(ctx)
		return ResetRequestResult{}
	}

	account, err := deps.Accounts.AccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			deps.pause(ctx)
			return ResetRequestResult{}
		}
		return ResetRequestResult{Failure: FailureStorage, Err: err}
	}

	raw, err := deps.issue(ctx, account.ID)
	if errors.Is(err, store.ErrDuplicate) {
		// A concurrent request for the same account won; supersede it.
		raw, err = deps.issue(ctx, account.ID)
	}
	if err != nil {
		failure := FailureStorage
		if errors.Is(err, errTokenGeneration) {
			failure = FailureInternal
		}
		return ResetRequestResult{Failure: failure, Err: err, AccountID: account.ID}
	}

	res := ResetRequestResult{AccountID: account.ID, Issued: true}
	if deps.Mailer != nil {
		body := ResetEmailBody(ResetLink(deps.FrontendURL, raw), deps.TokenTTL)
		res.DeliveryErr = deps.Mailer.Send(ctx, account.Email, resetSubject, body)
	}
	return res
}

var errTokenGeneration = errors.New("reset token generation failed")

// issue stores a fresh token for accountID, retiring older ones, and returns
// the raw value.
func (deps ResetRequestDeps) issue(ctx context.Context, accountID string) (string, error) {
	raw, err := deps.NewToken()
	if err != nil {
		return "", fmt.Errorf("%w: %v", errTokenGeneration, err)
	}

	now := deps.Now()
	_, err = deps.ResetTokens.ReplaceResetToken(ctx, store.ResetToken{
		AccountID: accountID,
		TokenHash: internal.HashToken(raw),
		ExpiresAt: now.Add(deps.TokenTTL),
		CreatedAt: now,
	}, now)
	if err != nil {
		return "", err
	}
	return raw, nil
}

func (deps ResetRequestDeps) pause(ctx context.Context) {
	if deps.Delay == nil {
		return
	}
	d := deps.Delay()
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// ResetLink builds the frontend link carrying the raw token.
func ResetLink(frontendURL, rawToken string) string {
	return strings.TrimRight(frontendURL, "/") + "/reset-password?token=" + url.QueryEscape(rawToken)
}

// ResetEmailBody renders the reset message.
func ResetEmailBody(link string, ttl time.Duration) string {
	return fmt.Sprintf(
		"<p>Click <a href=\"%s\">here</a> to reset your password. This link expires in %s.</p>",
		html.EscapeString(link), humanDuration(ttl),
	)
}

func humanDuration(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return d.String()
	}
}

// RunConfirmPasswordReset hashes the new password, then redeems the reset
// token, which sets the password and revokes every refresh token of the
// account in one storage write. A failure before or during the redeem leaves
// the token usable.
func RunConfirmPasswordReset(ctx context.Context, rawToken, newPassword string, deps ResetConfirmDeps) ResetConfirmResult {
	if rawToken == "" {
		return ResetConfirmResult{Failure: FailureInvalidResetToken, Err: errors.New("empty reset token")}
	}
	if err := deps.Hasher.ValidatePolicy(newPassword); err != nil {
		return ResetConfirmResult{Failure: FailurePasswordPolicy, Err: err}
	}

	hash, err := deps.Hasher.Hash(newPassword)
	if err != nil {
		return ResetConfirmResult{Failure: FailureInternal, Err: err}
	}

	rec, revoked, err := deps.ResetTokens.RedeemResetToken(ctx, internal.HashToken(rawToken), hash, deps.Now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ResetConfirmResult{Failure: FailureInvalidResetToken, Err: err}
		}
		return ResetConfirmResult{Failure: FailureStorage, Err: err}
	}
	return ResetConfirmResult{AccountID: rec.AccountID, Revoked: revoked}
}
