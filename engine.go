package shieldforge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/shieldforge/challenge"
	"github.com/MrEthical07/shieldforge/jwt"
	"github.com/MrEthical07/shieldforge/passkey"
	"github.com/MrEthical07/shieldforge/password"
)

// Engine composes reset codes, session tokens, password hashing, the password-reset
// workflow and passkey ceremonies behind one configured object.
//
// Engine instances are created by Builder.Build and are safe for concurrent use.
type Engine struct {
	config Config
	logger *slog.Logger

	jwtManager   *jwt.Manager
	passwordHash *password.Multi

	passkeys       *passkey.Coordinator
	challengeStore challenge.Store
	ownedStore     *challenge.MemoryStore

	resetStore   resetStore
	resetLimiter resetLimiter
	userProvider UserProvider

	audit   *auditDispatcher
	metrics *Metrics
}

// Close stops background work owned by the Engine: the audit dispatcher and the
// janitor of an Engine-created in-memory challenge store.
//
// Close does not close injected Redis clients or challenge stores.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.ownedStore != nil {
		_ = e.ownedStore.Close()
	}
}

// Config returns a copy of the configuration the Engine was built with.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// AuditDropped reports how many audit events were dropped because the dispatcher
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot returns empty maps when metrics are disabled.
// MetricsSnapshot does not mutate shared global state and can be used concurrently.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Passkeys returns the passkey ceremony coordinator, or nil when passkeys are disabled.
func (e *Engine) Passkeys() *passkey.Coordinator {
	if e == nil {
		return nil
	}
	return e.passkeys
}

// ClearExpiredChallenges sweeps the challenge store and reports how many entries were
// removed. Redis-backed stores expire entries natively and report zero.
func (e *Engine) ClearExpiredChallenges(ctx context.Context) (int, error) {
	if e == nil || e.challengeStore == nil {
		return 0, ErrEngineNotReady
	}

	removed, err := e.challengeStore.ClearExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", passkey.ErrChallengeUnavailable, err)
	}
	if removed > 0 {
		e.metricAdd(MetricChallengesSwept, removed)
		e.logger.DebugContext(ctx, "expired challenges cleared", "removed", removed)
	}
	return removed, nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricAdd(id MetricID, n int) {
	if e == nil || e.metrics == nil || n <= 0 {
		return
	}
	e.metrics.Add(id, uint64(n))
}
