package forgeauth

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	internalaudit "github.com/MrEthical07/forgeauth/internal/audit"
	"github.com/MrEthical07/forgeauth/oauth"
	"github.com/MrEthical07/forgeauth/store"
)

// TokenType is the token_type reported with every pair.
const TokenType = "bearer"

// TokenPair is the wire shape of an issued pair. ExpiresIn is the access
// token lifetime in seconds.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AuthResult is returned by every operation that signs a user in.
type AuthResult struct {
	Account store.Account
	Tokens  TokenPair
}

// SignupInput is the input for [Engine.Signup].
type SignupInput struct {
	Email    string
	Password string
	Name     string
}

// AccessIdentity is the result of validating an access token.
type AccessIdentity struct {
	AccountID string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Account   store.Account
}

// AuthorizationRequest is what a client needs to start an OAuth login.
type AuthorizationRequest struct {
	URL   string `json:"authorization_url"`
	State string `json:"state"`
}

// Mailer delivers one HTML email. Implementations must honor ctx.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// OAuthProvider is an authorization-code identity provider.
type OAuthProvider = oauth.Provider

// ProviderUser is the profile returned by an [OAuthProvider].
type ProviderUser = oauth.User

// AuditEvent is one security-relevant occurrence.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink discards events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers events on a channel; used by tests.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink logs events through a zap logger.
type ZapSink = internalaudit.ZapSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(logger)
}
