package flows

import (
	"context"

	"github.com/MrEthical07/forgeauth/oauth"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Validate.Codec != nil
}

func (s Service) Signup(ctx context.Context, req SignupRequest) SignupResult {
	return RunSignup(ctx, req, s.deps.Signup)
}

func (s Service) Login(ctx context.Context, req LoginRequest) LoginResult {
	return RunLogin(ctx, req, s.deps.Login)
}

func (s Service) Refresh(ctx context.Context, rawRefresh string) RefreshResult {
	return RunRefresh(ctx, rawRefresh, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, rawRefresh string) LogoutResult {
	return RunLogout(ctx, rawRefresh, s.deps.Logout)
}

func (s Service) LogoutAll(ctx context.Context, accountID string) (int64, FailureKind, error) {
	return RunLogoutAll(ctx, accountID, s.deps.Logout)
}

func (s Service) RequestPasswordReset(ctx context.Context, email string) ResetRequestResult {
	return RunRequestPasswordReset(ctx, email, s.deps.ResetRequest)
}

func (s Service) ConfirmPasswordReset(ctx context.Context, rawToken, newPassword string) ResetConfirmResult {
	return RunConfirmPasswordReset(ctx, rawToken, newPassword, s.deps.ResetConfirm)
}

func (s Service) AuthorizationURL(ctx context.Context, provider oauth.Provider) (string, string, FailureKind, error) {
	return RunAuthorizationURL(ctx, provider, s.deps.OAuth)
}

func (s Service) OAuthCallback(ctx context.Context, provider oauth.Provider, code, state string) OAuthResult {
	return RunOAuthCallback(ctx, provider, code, state, s.deps.OAuth)
}

func (s Service) ValidateAccess(ctx context.Context, token string) ValidateResult {
	return RunValidateAccess(ctx, token, s.deps.Validate)
}

func (s Service) SetAccountActive(ctx context.Context, accountID string, active bool) AccountStatusResult {
	return RunSetAccountActive(ctx, accountID, active, s.deps.AccountStatus)
}
