package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/MrEthical07/shieldforge"
	"github.com/MrEthical07/shieldforge/challenge"
	"github.com/MrEthical07/shieldforge/codes"
	"github.com/MrEthical07/shieldforge/jwt"
)

type loadOptions struct {
	Tokens      int
	Concurrency int
	Ops         int
	RedisAddr   string
	Prefix      string
}

func (o loadOptions) validate() error {
	if o.Tokens <= 0 || o.Concurrency <= 0 || o.Ops <= 0 {
		return errors.New("tokens, concurrency, and ops must be > 0")
	}
	return nil
}

func run(ctx context.Context, opts loadOptions, out io.Writer) error {
	if err := opts.validate(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client, cleanup, err := connect(opts.RedisAddr, out)
	if err != nil {
		return err
	}
	defer cleanup()

	secret, err := codes.OpaqueToken(48)
	if err != nil {
		return fmt.Errorf("generate secret: %w", err)
	}
	cfg := shieldforge.DefaultConfig()
	cfg.Token.Secret = []byte(secret)
	cfg.Token.Expiry = time.Hour
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := shieldforge.New().WithConfig(cfg).WithRedis(client).Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	fmt.Fprintf(out, "issuing %d tokens...\n", opts.Tokens)
	tokens := make([]string, opts.Tokens)
	for i := range tokens {
		tokens[i], err = engine.IssueToken(jwt.Payload{UserID: fmt.Sprintf("user-%d", i)})
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
	}

	validateStats, err := runPhase(ctx, opts, func(ctx context.Context, r *rand.Rand, _ int) error {
		_, err := engine.ValidateToken(ctx, tokens[r.Intn(len(tokens))])
		return err
	})
	if err != nil {
		return err
	}

	store := challenge.NewRedisStore(client, opts.Prefix)
	var replays int64
	challengeStats, err := runPhase(ctx, opts, func(ctx context.Context, _ *rand.Rand, i int) error {
		value, err := challenge.NewValue()
		if err != nil {
			return err
		}
		if err := store.Store(ctx, value, fmt.Sprintf("user-%d", i), time.Minute); err != nil {
			return err
		}
		if _, err := store.Consume(ctx, value); err != nil {
			return err
		}
		if _, err := store.Consume(ctx, value); err == nil {
			atomic.AddInt64(&replays, 1)
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "validate", validateStats)
	printStats(out, "challenge", challengeStats)
	snapshot := engine.MetricsSnapshot()
	fmt.Fprintf(out, "engine: validated=%d rejected=%d\n",
		snapshot.Counters[shieldforge.MetricTokenValidated],
		snapshot.Counters[shieldforge.MetricTokenRejected],
	)
	if replays > 0 {
		return fmt.Errorf("challenge store accepted %d replays", replays)
	}
	return nil
}

func connect(addr string, out io.Writer) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Fprintf(out, "using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Fprintf(out, "using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

// runPhase spreads opts.Ops calls of op over opts.Concurrency workers. Failed
// operations are counted, not returned; only context cancellation aborts a phase.
func runPhase(ctx context.Context, opts loadOptions, op func(context.Context, *rand.Rand, int) error) (phaseStats, error) {
	var (
		cursor    int64
		failures  int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, opts.Ops)
	)

	g, gctx := errgroup.WithContext(ctx)
	start := time.Now()
	for w := 0; w < opts.Concurrency; w++ {
		seed := time.Now().UnixNano() + int64(w)*7919
		g.Go(func() error {
			r := rand.New(rand.NewSource(seed))
			local := make([]time.Duration, 0, opts.Ops/opts.Concurrency+1)
			defer func() {
				mu.Lock()
				latencies = append(latencies, local...)
				mu.Unlock()
			}()
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= opts.Ops {
					return nil
				}
				t0 := time.Now()
				if err := op(gctx, r, i); err != nil {
					atomic.AddInt64(&failures, 1)
				}
				local = append(local, time.Since(t0))
			}
		})
	}
	if err := g.Wait(); err != nil {
		return phaseStats{}, err
	}
	return computeStats(time.Since(start), latencies, failures), nil
}
