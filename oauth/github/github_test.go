package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/MrEthical07/forgeauth/oauth"
)

type fakeGitHub struct {
	user       map[string]any
	emails     []map[string]any
	emailsCode int
}

func (f *fakeGitHub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		if r.Form.Get("code") != "good-code" {
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":             "bad_verification_code",
				"error_description": "The code passed is incorrect or expired.",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "gho_test", "token_type": "bearer"})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gho_test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(f.user)
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		if f.emailsCode != 0 {
			w.WriteHeader(f.emailsCode)
			return
		}
		_ = json.NewEncoder(w).Encode(f.emails)
	})
	return mux
}

func newTestProvider(t *testing.T, f *fakeGitHub) *Provider {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return New(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8000/auth/github/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:   srv.URL + "/login/oauth/authorize",
			TokenURL:  srv.URL + "/login/oauth/access_token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		APIBaseURL: srv.URL,
		HTTPClient: srv.Client(),
	})
}

func TestAuthCodeURL(t *testing.T) {
	p := New(Config{ClientID: "abc", RedirectURL: "http://localhost/cb"})
	u, err := url.Parse(p.AuthCodeURL("state-1"))
	require.NoError(t, err)
	require.Equal(t, "github.com", u.Host)
	q := u.Query()
	require.Equal(t, "abc", q.Get("client_id"))
	require.Equal(t, "state-1", q.Get("state"))
	require.Equal(t, "read:user user:email", q.Get("scope"))
	require.Equal(t, "http://localhost/cb", q.Get("redirect_uri"))
	require.Equal(t, "github", p.Name())
}

func TestExchange(t *testing.T) {
	p := newTestProvider(t, &fakeGitHub{})

	tok, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	require.Equal(t, "gho_test", tok)

	_, err = p.Exchange(context.Background(), "stale-code")
	require.ErrorIs(t, err, oauth.ErrUpstream)
}

func TestFetchUserPrefersPrimaryVerifiedEmail(t *testing.T) {
	p := newTestProvider(t, &fakeGitHub{
		user: map[string]any{"id": 42, "login": "octocat", "name": "The Octocat", "email": "public@example.com", "avatar_url": "https://avatars/42"},
		emails: []map[string]any{
			{"email": "secondary@example.com", "primary": false, "verified": true},
			{"email": "octo@example.com", "primary": true, "verified": true},
		},
	})

	u, err := p.FetchUser(context.Background(), "gho_test")
	require.NoError(t, err)
	require.Equal(t, oauth.User{
		ID:            "42",
		Email:         "octo@example.com",
		EmailVerified: true,
		Name:          "The Octocat",
		AvatarURL:     "https://avatars/42",
	}, u)
}

func TestFetchUserFallbacks(t *testing.T) {
	tests := []struct {
		name      string
		gh        *fakeGitHub
		wantEmail string
		wantName  string
	}{
		{
			name:      "unverified primary uses public email",
			gh:        &fakeGitHub{user: map[string]any{"id": 7, "login": "hubot", "email": "hubot@example.com"}, emails: []map[string]any{{"email": "hubot@example.com", "primary": true, "verified": false}}},
			wantEmail: "hubot@example.com",
			wantName:  "hubot",
		},
		{
			name:      "no scope and no public email",
			gh:        &fakeGitHub{user: map[string]any{"id": 9}, emailsCode: http.StatusForbidden},
			wantEmail: "9@github.noemail",
			wantName:  "GitHub User",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := newTestProvider(t, tt.gh).FetchUser(context.Background(), "gho_test")
			require.NoError(t, err)
			require.False(t, u.EmailVerified)
			require.Equal(t, tt.wantEmail, u.Email)
			require.Equal(t, tt.wantName, u.Name)
		})
	}
}

func TestFetchUserUpstreamErrors(t *testing.T) {
	p := newTestProvider(t, &fakeGitHub{user: map[string]any{"id": 1}})
	_, err := p.FetchUser(context.Background(), "revoked")
	require.ErrorIs(t, err, oauth.ErrUpstream)

	p = newTestProvider(t, &fakeGitHub{user: map[string]any{"login": "ghost"}})
	_, err = p.FetchUser(context.Background(), "gho_test")
	require.ErrorIs(t, err, oauth.ErrUpstream)

	p = newTestProvider(t, &fakeGitHub{user: map[string]any{"id": 1}, emailsCode: http.StatusBadGateway})
	_, err = p.FetchUser(context.Background(), "gho_test")
	require.ErrorIs(t, err, oauth.ErrUpstream)
}
