package forgeauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/forgeauth/internal"
	internalaudit "github.com/MrEthical07/forgeauth/internal/audit"
	"github.com/MrEthical07/forgeauth/internal/flows"
	internalmetrics "github.com/MrEthical07/forgeauth/internal/metrics"
	"github.com/MrEthical07/forgeauth/internal/rate"
	"github.com/MrEthical07/forgeauth/internal/stores"
	"github.com/MrEthical07/forgeauth/jwt"
	"github.com/MrEthical07/forgeauth/password"
	"github.com/MrEthical07/forgeauth/store"
)

// Builder assembles an [Engine]. Configure it during initialization, call
// Build once, and discard it.
type Builder struct {
	config Config
	store  store.Store
	redis  redis.UniversalClient
	mailer Mailer
	logger *zap.Logger
	now    func() time.Time

	providers map[string]OAuthProvider
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config:    DefaultConfig(),
		providers: make(map[string]OAuthProvider),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the persistent store. Required.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithRedis sets the Redis client backing OAuth state and the throttles.
// It is required when an OAuth provider is registered or a throttle is
// enabled.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithMailer sets the password-reset mail transport. Without one, reset
// tokens are still issued but nothing is sent.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithOAuthProvider registers p under p.Name(). A later registration with
// the same name replaces the earlier one.
func (b *Builder) WithOAuthProvider(p OAuthProvider) *Builder {
	if p != nil {
		b.providers[p.Name()] = p
	}
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides the clock for token issuance and storage timestamps.
// Tests use it to step over expiry boundaries.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, errors.New("store required")
	}
	if b.redis == nil {
		if len(b.providers) > 0 {
			return nil, errors.New("OAuth providers require redis client")
		}
		if cfg.Security.EnableLoginRateLimit || cfg.Security.EnableRefreshThrottle {
			return nil, errors.New("rate limiting requires redis client")
		}
	}
	for name := range b.providers {
		if strings.TrimSpace(name) == "" {
			return nil, errors.New("OAuth provider name must not be empty")
		}
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	utcNow := func() time.Time { return now().UTC() }

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ph, err := password.NewArgon2(cfg.Password.argon2())
	if err != nil {
		return nil, fmt.Errorf("password config: %w", err)
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
		Now:           now,
	})
	if err != nil {
		return nil, fmt.Errorf("jwt config: %w", err)
	}

	engine := &Engine{
		config:       cfg,
		store:        b.store,
		jwtManager:   jm,
		passwordHash: ph,
		logger:       logger.Named("forgeauth"),
		now:          utcNow,
		providers:    make(map[string]OAuthProvider, len(b.providers)),
		metrics: internalmetrics.New(internalmetrics.Config{
			Enabled:                 cfg.Metrics.Enabled,
			EnableLatencyHistograms: cfg.Metrics.EnableLatencyHistograms,
		}),
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Logger:     engine.logger,
		OnDrop: func(internalaudit.Event) {
			engine.metrics.Inc(internalmetrics.MetricAuditDropped)
		},
		OnSinkError: func(internalaudit.Event, error) {
			engine.metrics.Inc(internalmetrics.MetricAuditSinkFailure)
		},
	}, b.auditSink)
	for name, p := range b.providers {
		engine.providers[name] = p
	}

	if b.redis != nil {
		engine.redis = b.redis
		engine.rateLimiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle:        cfg.Security.EnableIPThrottle,
			EnableRefreshThrottle:   cfg.Security.EnableRefreshThrottle,
			MaxLoginAttempts:        cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration:   cfg.Security.LoginCooldownDuration,
			MaxRefreshAttempts:      cfg.Security.MaxRefreshAttempts,
			RefreshCooldownDuration: cfg.Security.RefreshCooldownDuration,
		})
		engine.stateStore = stores.NewOAuthStateStore(b.redis, cfg.OAuth.StatePrefix)
	}

	var mailer flows.Mailer
	if b.mailer != nil {
		mailer = b.mailer
	}
	engine.flows = flows.New(engine.buildFlowDeps(mailer))

	b.built = true

	return engine, nil
}

func (e *Engine) buildFlowDeps(mailer flows.Mailer) flows.Deps {
	cfg := e.config
	pair := flows.PairDeps{Codec: e.jwtManager, RefreshTokens: e.store, Now: e.now}

	var loginLimiter flows.LoginRateLimiter
	if e.rateLimiter != nil && cfg.Security.EnableLoginRateLimit {
		loginLimiter = e.rateLimiter
	}
	var refreshLimiter flows.RefreshRateLimiter
	if e.rateLimiter != nil && cfg.Security.EnableRefreshThrottle {
		refreshLimiter = e.rateLimiter
	}

	hasher := flows.Hasher(e.passwordHash)
	if !cfg.Password.UpgradeOnLogin {
		hasher = noRehash{e.passwordHash}
	}

	deps := flows.Deps{
		Signup: flows.SignupDeps{
			Hasher:   e.passwordHash,
			Accounts: e.store,
			Pair:     pair,
			Now:      e.now,
		},
		Login: flows.LoginDeps{
			Hasher:      hasher,
			Accounts:    e.store,
			Pair:        pair,
			RateLimiter: loginLimiter,
			Now:         e.now,
			Warn:        e.warn,
		},
		Refresh: flows.RefreshDeps{
			Codec:         e.jwtManager,
			Accounts:      e.store,
			RefreshTokens: e.store,
			Pair:          pair,
			RateLimiter:   refreshLimiter,
			Now:           e.now,
			Warn:          e.warn,
		},
		Logout: flows.LogoutDeps{
			Codec:         e.jwtManager,
			RefreshTokens: e.store,
			Now:           e.now,
		},
		ResetRequest: flows.ResetRequestDeps{
			Accounts:    e.store,
			ResetTokens: e.store,
			Mailer:      mailer,
			TokenTTL:    cfg.PasswordReset.TokenTTL,
			FrontendURL: cfg.FrontendURL,
			NewToken:    internal.NewResetToken,
			Now:         e.now,
			Delay: func() time.Duration {
				return internal.RandomDelay(cfg.PasswordReset.UnknownEmailDelayMin, cfg.PasswordReset.UnknownEmailDelayMax)
			},
		},
		ResetConfirm: flows.ResetConfirmDeps{
			Hasher:      e.passwordHash,
			ResetTokens: e.store,
			Now:         e.now,
		},
		Validate: flows.ValidateDeps{
			Codec:    e.jwtManager,
			Accounts: e.store,
		},
		AccountStatus: flows.AccountStatusDeps{
			Accounts:      e.store,
			RefreshTokens: e.store,
			Now:           e.now,
		},
	}

	if e.stateStore != nil {
		deps.OAuth = flows.OAuthDeps{
			States:   e.stateStore,
			StateTTL: cfg.OAuth.StateTTL,
			NewState: internal.NewOAuthState,
			Identity: flows.IdentityDeps{
				Accounts:             e.store,
				Identities:           e.store,
				RequireVerifiedEmail: cfg.OAuth.RequireVerifiedEmailForLink,
				Now:                  e.now,
			},
			Pair: pair,
			Now:  e.now,
		}
	}

	return deps
}

// noRehash disables the opportunistic upgrade on login.
type noRehash struct {
	*password.Argon2
}

func (noRehash) NeedsRehash(string) (bool, error) { return false, nil }
