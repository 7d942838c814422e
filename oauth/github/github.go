// Package github implements oauth.Provider for GitHub OAuth apps.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	githubendpoint "golang.org/x/oauth2/github"

	"github.com/MrEthical07/forgeauth/oauth"
)

const (
	// ProviderName is the tag stored with linked GitHub identities.
	ProviderName = "github"

	defaultAPIBaseURL = "https://api.github.com"
	fallbackName      = "GitHub User"
	noEmailDomain     = "github.noemail"

	// Profiles are small; anything larger is not a GitHub response.
	maxResponseBytes = 1 << 20
)

// DefaultScopes grants read access to the profile and the email list.
var DefaultScopes = []string{"read:user", "user:email"}

// Config holds the OAuth app credentials. Endpoint and APIBaseURL default
// to github.com and are only overridden in tests or for GitHub Enterprise.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Endpoint     oauth2.Endpoint
	APIBaseURL   string
	HTTPClient   *http.Client
}

// Provider talks to GitHub.
type Provider struct {
	oauth      *oauth2.Config
	apiBaseURL string
	httpClient *http.Client
}

var _ oauth.Provider = (*Provider)(nil)

func New(cfg Config) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	if cfg.Endpoint.AuthURL == "" || cfg.Endpoint.TokenURL == "" {
		cfg.Endpoint = githubendpoint.Endpoint
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     cfg.Endpoint,
		},
		apiBaseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		httpClient: cfg.HTTPClient,
	}
}

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Exchange trades code for an access token. GitHub reports a bad code with
// a 200 and an error body; oauth2 surfaces that as a RetrieveError.
func (p *Provider) Exchange(ctx context.Context, code string) (string, error) {
	tok, err := p.oauth.Exchange(p.clientContext(ctx), code)
	if err != nil {
		return "", fmt.Errorf("%w: exchange: %v", oauth.ErrUpstream, err)
	}
	return tok.AccessToken, nil
}

type userPayload struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type emailPayload struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// FetchUser loads the profile. The email is the primary verified address
// from /user/emails when GitHub lists one; otherwise the public profile
// email is used unverified, and an account with neither gets a placeholder
// address that can never match a real one.
func (p *Provider) FetchUser(ctx context.Context, accessToken string) (oauth.User, error) {
	client := oauth2.NewClient(p.clientContext(ctx), oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	var profile userPayload
	status, err := p.getJSON(ctx, client, "/user", &profile)
	if err != nil {
		return oauth.User{}, err
	}
	if status != http.StatusOK {
		return oauth.User{}, fmt.Errorf("%w: /user returned %d", oauth.ErrUpstream, status)
	}
	if profile.ID == 0 {
		return oauth.User{}, fmt.Errorf("%w: profile without id", oauth.ErrUpstream)
	}

	id := strconv.FormatInt(profile.ID, 10)
	user := oauth.User{
		ID:        id,
		Name:      firstNonEmpty(profile.Name, profile.Login, fallbackName),
		AvatarURL: profile.AvatarURL,
	}

	var emails []emailPayload
	status, err = p.getJSON(ctx, client, "/user/emails", &emails)
	if err != nil {
		return oauth.User{}, err
	}
	// 403 and 404 mean the token lacks user:email; fall through to the
	// public profile.
	if status != http.StatusOK && status != http.StatusForbidden && status != http.StatusNotFound {
		return oauth.User{}, fmt.Errorf("%w: /user/emails returned %d", oauth.ErrUpstream, status)
	}
	for _, e := range emails {
		if e.Primary && e.Verified && e.Email != "" {
			user.Email = e.Email
			user.EmailVerified = true
			return user, nil
		}
	}

	if profile.Email != "" {
		user.Email = profile.Email
		return user, nil
	}
	user.Email = id + "@" + noEmailDomain
	return user, nil
}

func (p *Provider) getJSON(ctx context.Context, client *http.Client, path string, dst any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBaseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", oauth.ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", oauth.ErrUpstream, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(dst); err != nil {
		return 0, fmt.Errorf("%w: %s: decode: %v", oauth.ErrUpstream, path, err)
	}
	return resp.StatusCode, nil
}

// clientContext hands the configured HTTP client to oauth2.
func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
