package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/forgeauth"
	"github.com/MrEthical07/forgeauth/middleware"
	"github.com/MrEthical07/forgeauth/store"
)

const maxBodyBytes = 1 << 20

// Options configures optional parts of the API.
type Options struct {
	// Metrics serves GET /metrics. Nil leaves the route unregistered.
	Metrics http.Handler
	Logger  *zap.Logger

	// TrustProxyHeaders takes the client IP from X-Forwarded-For.
	TrustProxyHeaders bool
}

type handler struct {
	engine *forgeauth.Engine
	logger *zap.Logger
	opts   Options
}

// New returns the API routes for engine.
func New(engine *forgeauth.Engine, opts Options) http.Handler {
	h := &handler{engine: engine, logger: opts.Logger, opts: opts}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/signup", h.signup)
	mux.HandleFunc("POST /auth/login", h.login)
	mux.HandleFunc("POST /auth/refresh", h.refresh)
	mux.HandleFunc("POST /auth/logout", h.logout)
	mux.Handle("GET /auth/me", middleware.RequireAccess(engine)(http.HandlerFunc(h.me)))
	mux.HandleFunc("POST /auth/password-reset/request", h.requestPasswordReset)
	mux.HandleFunc("POST /auth/password-reset/confirm", h.confirmPasswordReset)
	mux.HandleFunc("GET /auth/github", h.githubStart)
	mux.HandleFunc("GET /auth/github/callback", h.githubCallback)
	mux.HandleFunc("GET /healthz", h.health)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	return h.withClientInfo(mux)
}

type userResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	AvatarURL  *string   `json:"avatar_url"`
	Provider   string    `json:"provider"`
	IsVerified bool      `json:"is_verified"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toUserResponse(a store.Account) userResponse {
	out := userResponse{
		ID:         a.ID,
		Email:      a.Email,
		Name:       a.Name,
		Provider:   a.Provider,
		IsVerified: a.Verified,
		IsActive:   a.Active,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
	if a.AvatarURL != "" {
		avatar := a.AvatarURL
		out.AvatarURL = &avatar
	}
	return out
}

type authResponse struct {
	User   userResponse        `json:"user"`
	Tokens forgeauth.TokenPair `json:"tokens"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *handler) signup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	res, err := h.engine.Signup(r.Context(), forgeauth.SignupInput{
		Email:    body.Email,
		Password: body.Password,
		Name:     body.Name,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{User: toUserResponse(res.Account), Tokens: res.Tokens})
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	res, err := h.engine.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: toUserResponse(res.Account), Tokens: res.Tokens})
}

type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshBody
	if !h.decode(w, r, &body) {
		return
	}

	pair, err := h.engine.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	var body refreshBody
	if !h.decode(w, r, &body) {
		return
	}

	if err := h.engine.Logout(r.Context(), body.RefreshToken); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully."})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, r, forgeauth.ErrTokenInvalid)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(id.Account))
}

func (h *handler) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	if err := h.engine.RequestPasswordReset(r.Context(), body.Email); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "If the email exists, a reset link has been sent."})
}

func (h *handler) confirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	if err := h.engine.ConfirmPasswordReset(r.Context(), body.Token, body.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password has been reset successfully."})
}

func (h *handler) githubStart(w http.ResponseWriter, r *http.Request) {
	req, err := h.engine.AuthorizationURL(r.Context(), store.ProviderGitHub)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *handler) githubCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("error") != "" {
		h.writeError(w, r, forgeauth.ErrUpstreamProvider)
		return
	}

	res, err := h.engine.GitHubCallback(r.Context(), q.Get("code"), q.Get("state"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: toUserResponse(res.Account), Tokens: res.Tokens})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Ping(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withClientInfo records the caller's IP and user agent for audit events.
func (h *handler) withClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := forgeauth.WithClientIP(r.Context(), clientIP(r, h.opts.TrustProxyHeaders))
		ctx = forgeauth.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "too_large", "detail": "Request body too large"})
			return false
		}
		h.writeError(w, r, forgeauth.ErrInvalidInput)
		return false
	}
	return true
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := classify(err)
	if e.status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", e.status),
			zap.Error(err),
		)
	}
	writeJSON(w, e.status, map[string]string{"error": e.code, "detail": e.detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
