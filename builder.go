package shieldforge

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/shieldforge/challenge"
	"github.com/MrEthical07/shieldforge/jwt"
	"github.com/MrEthical07/shieldforge/passkey"
	"github.com/MrEthical07/shieldforge/password"
)

// Builder assembles an Engine. A Builder can be built once.
//
// Builder instances are intended to be configured during initialization and then discarded.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	challengeStore  challenge.Store
	passkeyVerifier passkey.Verifier
	userProvider    UserProvider
	auditSink       AuditSink
	logger          *slog.Logger

	built bool
}

// New describes the new operation and its observable behavior.
//
// New returns a Builder seeded with DefaultConfig.
// New does not mutate shared global state and can be used concurrently.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig replaces the whole configuration with a deep copy of cfg. Start from
// DefaultConfig to keep defaults for fields you do not set.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis makes the reset store, reset limiter and challenge store shared across
// processes. Without it the Engine keeps that state in memory.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithChallengeStore injects a challenge store. It takes precedence over WithRedis.
func (b *Builder) WithChallengeStore(store challenge.Store) *Builder {
	b.challengeStore = store
	return b
}

// WithUserProvider describes the withuserprovider operation and its observable behavior.
//
// WithUserProvider is required when PasswordReset is enabled.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithPasskeyVerifier replaces the go-webauthn verifier used by passkey ceremonies.
func (b *Builder) WithPasskeyVerifier(v passkey.Verifier) *Builder {
	b.passkeyVerifier = v
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink sets the sink that receives events when Audit is enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger shared by the Engine and its components.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms has no effect unless metrics are enabled.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when the configuration is invalid or a required
// collaborator is missing. A Builder can only be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.PasswordReset.Enabled && b.userProvider == nil {
		return nil, errors.New("PasswordReset requires a user provider")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	engine := &Engine{
		config:       cfg,
		logger:       logger,
		userProvider: b.userProvider,
		metrics:      NewMetrics(cfg.Metrics),
	}

	// -------- TOKENS --------
	if len(cfg.Token.Secret) > 0 {
		jm, err := jwt.NewManager(cfg.jwtConfig())
		if err != nil {
			return nil, err
		}
		engine.jwtManager = jm
	}

	// -------- PASSWORDS --------
	ph, err := newPasswordHasher(cfg)
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	// -------- PASSWORD RESET --------
	if b.redis != nil {
		engine.resetStore = newRedisResetStore(b.redis, cfg.PasswordReset.RedisPrefix)
		engine.resetLimiter = newRedisResetLimiter(b.redis, cfg.PasswordReset)
	} else {
		engine.resetStore = newMemoryResetStore()
		if cfg.PasswordReset.Enabled {
			engine.resetLimiter = newLocalResetLimiter(cfg.PasswordReset)
		}
	}

	// -------- CHALLENGES --------
	switch {
	case b.challengeStore != nil:
		engine.challengeStore = b.challengeStore
	case b.redis != nil:
		engine.challengeStore = challenge.NewRedisStore(b.redis, cfg.Challenge.RedisPrefix)
	default:
		interval := cfg.Challenge.JanitorInterval
		if !cfg.Passkey.Enabled {
			interval = 0
		}
		engine.ownedStore = challenge.NewMemoryStore(
			challenge.WithLogger(logger),
			challenge.WithJanitor(interval),
		)
		engine.challengeStore = engine.ownedStore
	}

	// -------- PASSKEYS --------
	if cfg.Passkey.Enabled {
		opts := []passkey.Option{passkey.WithLogger(logger)}
		if b.passkeyVerifier != nil {
			opts = append(opts, passkey.WithVerifier(b.passkeyVerifier))
		}

		coordinator, err := passkey.NewCoordinator(cfg.passkeyConfig(), engine.challengeStore, opts...)
		if err != nil {
			engine.Close()
			return nil, err
		}
		engine.passkeys = coordinator
	}

	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink, logger)

	b.built = true

	return engine, nil
}

func newPasswordHasher(cfg Config) (*password.Multi, error) {
	argon, err := password.NewArgon2(cfg.argon2Config())
	if err != nil && cfg.Password.Algorithm == password.AlgorithmArgon2id {
		return nil, fmt.Errorf("password: %w", err)
	}

	bc, bcErr := password.NewBcrypt(cfg.Password.BcryptCost)
	if bcErr != nil && cfg.Password.Algorithm == password.AlgorithmBcrypt {
		return nil, fmt.Errorf("password: %w", bcErr)
	}

	var primary, legacy password.Hasher
	if cfg.Password.Algorithm == password.AlgorithmBcrypt {
		primary = bc
		if err == nil {
			legacy = argon
		}
	} else {
		primary = argon
		if bcErr == nil {
			legacy = bc
		}
	}

	return password.NewMulti(primary, legacy)
}
