package challenge

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces time.Now. Tests use it to move time without sleeping.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// DefaultJanitorInterval is the sweep period of a MemoryStore built without WithJanitor.
const DefaultJanitorInterval = time.Minute

// WithJanitor sets how often the background goroutine calls ClearExpired.
// An interval <= 0 disables the janitor; expired entries then leave only on
// read or through an explicit ClearExpired.
func WithJanitor(interval time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		s.janitorInterval = interval
	}
}

// WithLogger sets the logger used for sweep reports.
func WithLogger(logger *slog.Logger) MemoryOption {
	return func(s *MemoryStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// MemoryStore is a mutex-guarded, process-local Store.
//
// Reads check expiry lazily, so correctness never depends on the janitor having run.
// The janitor only bounds memory held by challenges nobody reads again.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Challenge
	now     func() time.Time
	logger  *slog.Logger

	janitorInterval time.Duration
	done            chan struct{}
	wg              sync.WaitGroup
	closeOnce       sync.Once
}

// NewMemoryStore returns an empty MemoryStore. Its janitor runs every
// DefaultJanitorInterval unless WithJanitor says otherwise, so callers must
// Close the store when done with it.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries:         make(map[string]Challenge),
		now:             time.Now,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		janitorInterval: DefaultJanitorInterval,
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.janitorInterval > 0 {
		s.wg.Add(1)
		go s.runJanitor(s.janitorInterval)
	}

	return s
}

// Store records value. An existing entry with the same value is replaced.
func (s *MemoryStore) Store(ctx context.Context, value, userID string, ttl time.Duration) error {
	return s.StoreKind(ctx, value, KindUnspecified, userID, ttl)
}

// StoreKind records value together with the ceremony that issued it.
func (s *MemoryStore) StoreKind(_ context.Context, value string, kind Kind, userID string, ttl time.Duration) error {
	if err := validate(value, ttl); err != nil {
		return err
	}

	now := s.now()

	s.mu.Lock()
	s.entries[value] = Challenge{
		Value:     value,
		UserID:    userID,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	s.mu.Unlock()

	return nil
}

// Get returns a copy of the challenge. Expired entries are evicted and reported as ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, value string) (*Challenge, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[value]
	if !ok {
		return nil, ErrNotFound
	}
	if entry.Expired(now) {
		delete(s.entries, value)
		return nil, ErrNotFound
	}

	return &entry, nil
}

// Delete removes value if present.
func (s *MemoryStore) Delete(_ context.Context, value string) error {
	s.mu.Lock()
	delete(s.entries, value)
	s.mu.Unlock()
	return nil
}

// Consume removes value and returns it when it has not expired.
func (s *MemoryStore) Consume(_ context.Context, value string) (*Challenge, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[value]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.entries, value)

	if entry.Expired(now) {
		return nil, ErrNotFound
	}
	return &entry, nil
}

// ClearExpired removes every expired entry.
func (s *MemoryStore) ClearExpired(_ context.Context) (int, error) {
	now := s.now()

	s.mu.Lock()
	removed := 0
	for value, entry := range s.entries {
		if entry.Expired(now) {
			delete(s.entries, value)
			removed++
		}
	}
	s.mu.Unlock()

	return removed, nil
}

// Len reports the number of stored entries, including expired ones not yet swept.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the janitor. It is safe to call more than once.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

func (s *MemoryStore) runJanitor(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed, _ := s.ClearExpired(context.Background())
			if removed > 0 {
				s.logger.Debug("swept expired challenges", "removed", removed)
			}
		case <-s.done:
			return
		}
	}
}
