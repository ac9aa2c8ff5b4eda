package shieldforge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

var errResetRateLimited = errors.New("reset rate limited")

// resetLimiter throttles reset requests and confirmations per identifier and per IP.
type resetLimiter interface {
	CheckRequest(ctx context.Context, identifier, ip string) error
	CheckConfirm(ctx context.Context, identifier, ip string) error
}

func requestIdentifierKey(prefix, identifier string) string {
	return prefix + "i:" + identifier
}

func requestIPKey(prefix, ip string) string {
	return prefix + "ip:" + ip
}

func confirmIdentifierKey(prefix, identifier string) string {
	return prefix + "c:" + identifier
}

func confirmIPKey(prefix, ip string) string {
	return prefix + "cip:" + ip
}

// checkScopes runs enforce for each enabled scope in a fixed order.
func checkScopes(cfg PasswordResetConfig, identifierKey, ipKey string, ip string, enforce func(string) error) error {
	if cfg.EnableIdentifierThrottle {
		if err := enforce(identifierKey); err != nil {
			return err
		}
	}
	if cfg.EnableIPThrottle && ip != "" {
		if err := enforce(ipKey); err != nil {
			return err
		}
	}
	return nil
}

/*
====================================
REDIS FIXED WINDOW
====================================
*/

type redisResetLimiter struct {
	redis  redis.UniversalClient
	config PasswordResetConfig
}

func newRedisResetLimiter(client redis.UniversalClient, cfg PasswordResetConfig) *redisResetLimiter {
	return &redisResetLimiter{
		redis:  client,
		config: cfg,
	}
}

func (l *redisResetLimiter) CheckRequest(ctx context.Context, identifier, ip string) error {
	p := l.config.RedisPrefix
	return checkScopes(l.config, requestIdentifierKey(p, identifier), requestIPKey(p, ip), ip, func(key string) error {
		return l.enforceFixedWindow(ctx, key)
	})
}

func (l *redisResetLimiter) CheckConfirm(ctx context.Context, identifier, ip string) error {
	p := l.config.RedisPrefix
	return checkScopes(l.config, confirmIdentifierKey(p, identifier), confirmIPKey(p, ip), ip, func(key string) error {
		return l.enforceFixedWindow(ctx, key)
	})
}

func (l *redisResetLimiter) enforceFixedWindow(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errResetBackend, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.ResetTTL).Err(); err != nil {
			return fmt.Errorf("%w: %v", errResetBackend, err)
		}
	}

	if count > int64(l.config.MaxAttempts) {
		return errResetRateLimited
	}

	return nil
}

/*
====================================
IN-PROCESS TOKEN BUCKET
====================================
*/

// maxLocalLimiterKeys bounds the in-process limiter map. When exceeded, idle buckets
// (those that have refilled completely) are evicted.
const maxLocalLimiterKeys = 10000

// localResetLimiter allows MaxAttempts events per ResetTTL per key using token buckets
// that refill continuously.
type localResetLimiter struct {
	config PasswordResetConfig
	every  rate.Limit

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func newLocalResetLimiter(cfg PasswordResetConfig) *localResetLimiter {
	return &localResetLimiter{
		config:  cfg,
		every:   rate.Every(cfg.ResetTTL / time.Duration(cfg.MaxAttempts)),
		buckets: make(map[string]*rate.Limiter),
	}
}

func (l *localResetLimiter) CheckRequest(_ context.Context, identifier, ip string) error {
	p := l.config.RedisPrefix
	return checkScopes(l.config, requestIdentifierKey(p, identifier), requestIPKey(p, ip), ip, l.allow)
}

func (l *localResetLimiter) CheckConfirm(_ context.Context, identifier, ip string) error {
	p := l.config.RedisPrefix
	return checkScopes(l.config, confirmIdentifierKey(p, identifier), confirmIPKey(p, ip), ip, l.allow)
}

func (l *localResetLimiter) allow(key string) error {
	l.mu.Lock()
	bucket, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= maxLocalLimiterKeys {
			l.evictIdleLocked()
		}
		bucket = rate.NewLimiter(l.every, l.config.MaxAttempts)
		l.buckets[key] = bucket
	}
	l.mu.Unlock()

	if !bucket.Allow() {
		return errResetRateLimited
	}
	return nil
}

func (l *localResetLimiter) evictIdleLocked() {
	now := time.Now()
	for key, bucket := range l.buckets {
		if bucket.TokensAt(now) >= float64(l.config.MaxAttempts) {
			delete(l.buckets, key)
		}
	}
}
