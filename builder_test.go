package shieldforge

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/shieldforge/challenge"
	"github.com/MrEthical07/shieldforge/password"
)

func TestBuildSingleUse(t *testing.T) {
	b := New().WithConfig(testConfig())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Token.Expiry = 0

	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("expected invalid config to be rejected")
	}
}

func TestBuildPasswordResetRequiresUserProvider(t *testing.T) {
	if _, err := New().WithConfig(resetTestConfig()).Build(); err == nil {
		t.Fatal("expected Build without user provider to fail")
	}

	engine := newTestEngine(t, resetTestConfig(), func(b *Builder) {
		b.WithUserProvider(newMockUserProvider())
	})
	if _, ok := engine.resetLimiter.(*localResetLimiter); !ok {
		t.Fatalf("expected in-process limiter without redis, got %T", engine.resetLimiter)
	}
	if _, ok := engine.resetStore.(*memoryResetStore); !ok {
		t.Fatalf("expected memory reset store without redis, got %T", engine.resetStore)
	}
}

func TestBuildWithRedisUsesSharedBackends(t *testing.T) {
	_, rdb := newTestRedis(t)

	engine := newTestEngine(t, resetTestConfig(), func(b *Builder) {
		b.WithRedis(rdb).WithUserProvider(newMockUserProvider())
	})

	if _, ok := engine.resetStore.(*redisResetStore); !ok {
		t.Fatalf("expected redis reset store, got %T", engine.resetStore)
	}
	if _, ok := engine.resetLimiter.(*redisResetLimiter); !ok {
		t.Fatalf("expected redis limiter, got %T", engine.resetLimiter)
	}
	if _, ok := engine.challengeStore.(*challenge.RedisStore); !ok {
		t.Fatalf("expected redis challenge store, got %T", engine.challengeStore)
	}
	if engine.ownedStore != nil {
		t.Fatal("engine must not own a memory store when redis is configured")
	}
}

func TestBuildInjectedChallengeStoreWins(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := challenge.NewMemoryStore()
	defer store.Close()

	engine := newTestEngine(t, testConfig(), func(b *Builder) {
		b.WithRedis(rdb).WithChallengeStore(store)
	})
	if engine.challengeStore != store {
		t.Fatal("expected injected challenge store")
	}
}

func TestBuildWithoutSecretDisablesIssue(t *testing.T) {
	cfg := testConfig()
	cfg.Token.Secret = nil

	engine := newTestEngine(t, cfg)
	if _, err := engine.IssueToken(testPayload()); !errors.Is(err, ErrTokenNotConfigured) {
		t.Fatalf("expected ErrTokenNotConfigured, got %v", err)
	}
	if _, err := engine.ValidateToken(context.Background(), "x"); !errors.Is(err, ErrTokenNotConfigured) {
		t.Fatalf("expected ErrTokenNotConfigured, got %v", err)
	}
}

func TestBuildBcryptPrimary(t *testing.T) {
	cfg := testConfig()
	cfg.Password.Algorithm = password.AlgorithmBcrypt

	engine := newTestEngine(t, cfg)
	hash, err := engine.HashPassword("correct-password-123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if password.Detect(hash) != password.AlgorithmBcrypt {
		t.Fatalf("expected bcrypt hash, got %q", hash)
	}
}

func TestEngineConfigReturnsCopy(t *testing.T) {
	engine := newTestEngine(t, testConfig())

	cfg := engine.Config()
	cfg.Token.Secret[0] = 'X'

	if engine.Config().Token.Secret[0] != testSecret[0] {
		t.Fatal("Config exposed internal secret slice")
	}
}

func TestNilEngineIsSafe(t *testing.T) {
	var e *Engine
	e.Close()

	if _, err := e.ClearExpiredChallenges(context.Background()); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.RequestPasswordReset(context.Background(), "a"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if e.Passkeys() != nil {
		t.Fatal("expected nil coordinator")
	}
	if got := e.MetricsSnapshot(); len(got.Counters) != 0 {
		t.Fatal("expected empty snapshot")
	}
}
