package forgeauth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	internalaudit "github.com/MrEthical07/forgeauth/internal/audit"
	"github.com/MrEthical07/forgeauth/internal/flows"
	internalmetrics "github.com/MrEthical07/forgeauth/internal/metrics"
	"github.com/MrEthical07/forgeauth/internal/rate"
	"github.com/MrEthical07/forgeauth/internal/stores"
	"github.com/MrEthical07/forgeauth/jwt"
	"github.com/MrEthical07/forgeauth/password"
	"github.com/MrEthical07/forgeauth/store"
)

// Engine runs every authentication operation. It is immutable after
// [Builder.Build] and safe for concurrent use.
type Engine struct {
	config       Config
	store        store.Store
	redis        redis.UniversalClient
	jwtManager   *jwt.Manager
	passwordHash *password.Argon2
	rateLimiter  *rate.Limiter
	stateStore   *stores.OAuthStateStore
	providers    map[string]OAuthProvider
	audit        *internalaudit.Dispatcher
	metrics      *internalmetrics.Metrics
	logger       *zap.Logger
	now          func() time.Time
	flows        flows.Service
}

// Close drains and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Ping checks the store and, when configured, Redis.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if e.redis != nil {
		if err := e.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("%w: redis: %v", ErrStorageUnavailable, err)
		}
	}
	return nil
}

func (e *Engine) ready() error {
	if e == nil || e.store == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricAdd(id MetricID, n int64) {
	if e == nil || e.metrics == nil || n <= 0 {
		return
	}
	e.metrics.Add(id, uint64(n))
}

func (e *Engine) observeSince(id MetricID, start time.Time) {
	if e == nil || e.metrics == nil || !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}

func (e *Engine) warn(msg string, err error) {
	e.logger.Warn(msg, zap.Error(err))
}

// failureError maps a flow failure to its public sentinel. Storage failures
// keep the underlying cause in the message for logs while still matching
// ErrStorageUnavailable.
func (e *Engine) failureError(kind flows.FailureKind, cause error) error {
	switch kind {
	case flows.FailureNone:
		return nil
	case flows.FailureInvalidInput:
		return ErrInvalidInput
	case flows.FailurePasswordPolicy:
		return ErrPasswordPolicy
	case flows.FailureAccountExists:
		return ErrAccountExists
	case flows.FailureInvalidCredentials:
		return ErrInvalidCredentials
	case flows.FailureRateLimited:
		return ErrLoginRateLimited
	case flows.FailureAccountDisabled:
		return ErrAccountDisabled
	case flows.FailureInvalidTokenType:
		return ErrInvalidTokenType
	case flows.FailureTokenInvalid:
		return ErrTokenInvalid
	case flows.FailureReplayDetected:
		return ErrReplayDetected
	case flows.FailureInvalidResetToken:
		return ErrInvalidOrExpiredResetToken
	case flows.FailureInvalidState:
		return ErrInvalidState
	case flows.FailureUpstream:
		return fmt.Errorf("%w: %v", ErrUpstreamProvider, cause)
	case flows.FailureUnknownProvider:
		return ErrUnknownProvider
	case flows.FailureAccountNotFound:
		return ErrAccountNotFound
	case flows.FailureStorage:
		e.metricInc(MetricStorageFailure)
		e.logger.Error("storage failure", zap.Error(cause))
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, cause)
	default:
		e.logger.Error("internal failure", zap.Error(cause))
		return fmt.Errorf("forgeauth: internal error: %v", cause)
	}
}

func tokenPair(p flows.TokenPair) TokenPair {
	return TokenPair{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    TokenType,
		ExpiresIn:    int64(p.ExpiresIn / time.Second),
	}
}
