// Package oauth defines the boundary between forgeauth and third-party
// identity providers. Concrete providers live in sub-packages.
package oauth

import (
	"context"
	"errors"
)

// ErrUpstream marks failures talking to the provider: a rejected code, a
// transport error or an unusable profile.
var ErrUpstream = errors.New("oauth: upstream provider error")

// User is the profile a provider reports for the authenticated user.
// EmailVerified is true only when the provider vouches that the user
// controls Email.
type User struct {
	ID            string
	Email         string
	EmailVerified bool
	Name          string
	AvatarURL     string
}

// Provider is an OAuth 2.0 authorization-code identity provider.
type Provider interface {
	// Name is the stable tag stored with linked identities, e.g. "github".
	Name() string
	AuthCodeURL(state string) string
	// Exchange trades an authorization code for a provider access token.
	Exchange(ctx context.Context, code string) (string, error)
	FetchUser(ctx context.Context, accessToken string) (User, error)
}
