package shieldforge

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/shieldforge/codes"
)

const resetRecordVersionV1 = 1

var (
	errResetNotFound         = errors.New("reset record not found")
	errResetCodeMismatch     = errors.New("reset code mismatch")
	errResetAttemptsExceeded = errors.New("reset attempts exceeded")
	errResetBackend          = errors.New("reset backend unavailable")
)

// passwordResetRecord is the stored half of a reset code. Only the code hash is kept.
type passwordResetRecord struct {
	UserID    string
	CodeHash  string
	ExpiresAt int64
	Attempts  uint16
}

// resetStore keeps one pending reset per user. Save replaces any earlier record.
type resetStore interface {
	Save(ctx context.Context, userID string, record *passwordResetRecord, ttl time.Duration) error
	// Consume verifies code in constant time. A match deletes the record and returns it.
	// A mismatch counts an attempt and deletes the record once maxAttempts is reached.
	Consume(ctx context.Context, userID, code string, maxAttempts int) (*passwordResetRecord, error)
	Get(ctx context.Context, userID string) (*passwordResetRecord, error)
}

// checkResetCode applies one confirmation attempt to record at now. deleteRecord
// reports whether the record must be removed; the returned error is nil on a match.
func checkResetCode(record *passwordResetRecord, code string, maxAttempts int, now time.Time) (deleteRecord bool, err error) {
	if now.Unix() >= record.ExpiresAt {
		return true, errResetNotFound
	}
	if codes.Verify(code, record.CodeHash) {
		return true, nil
	}

	record.Attempts++
	if int(record.Attempts) >= maxAttempts {
		return true, errResetAttemptsExceeded
	}
	return false, errResetCodeMismatch
}

/*
====================================
REDIS STORE
====================================
*/

type redisResetStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newRedisResetStore(client redis.UniversalClient, prefix string) *redisResetStore {
	return &redisResetStore{
		redis:  client,
		prefix: prefix,
	}
}

func (s *redisResetStore) key(userID string) string {
	return s.prefix + ":" + userID
}

func (s *redisResetStore) Save(ctx context.Context, userID string, record *passwordResetRecord, ttl time.Duration) error {
	encoded, err := encodePasswordResetRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(userID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errResetBackend, err)
	}
	return nil
}

func (s *redisResetStore) Consume(ctx context.Context, userID, code string, maxAttempts int) (*passwordResetRecord, error) {
	const maxRetries = 4
	key := s.key(userID)

	for i := 0; i < maxRetries; i++ {
		var matched *passwordResetRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodePasswordResetRecord(data)
			if err != nil {
				return err
			}

			now := time.Now()
			remove, verdict := checkResetCode(record, code, maxAttempts, now)

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if remove {
					pipe.Del(ctx, key)
					return nil
				}
				updated, encErr := encodePasswordResetRecord(record)
				if encErr != nil {
					return encErr
				}
				pipe.Set(ctx, key, updated, time.Unix(record.ExpiresAt, 0).Sub(now))
				return nil
			})
			if err != nil {
				return err
			}
			if verdict != nil {
				return verdict
			}

			matched = record
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return nil, errResetNotFound
			case errors.Is(err, errResetNotFound), errors.Is(err, errResetCodeMismatch), errors.Is(err, errResetAttemptsExceeded):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", errResetBackend, err)
			}
		}

		return matched, nil
	}

	return nil, fmt.Errorf("%w: too much contention", errResetBackend)
}

func (s *redisResetStore) Get(ctx context.Context, userID string) (*passwordResetRecord, error) {
	data, err := s.redis.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errResetNotFound
		}
		return nil, fmt.Errorf("%w: %v", errResetBackend, err)
	}

	record, err := decodePasswordResetRecord(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() >= record.ExpiresAt {
		return nil, errResetNotFound
	}

	return record, nil
}

func encodePasswordResetRecord(record *passwordResetRecord) ([]byte, error) {
	if len(record.CodeHash) != codes.HashLength {
		return nil, errors.New("reset record code hash has wrong length")
	}
	if len(record.UserID) > 65535 {
		return nil, errors.New("reset record user id too long")
	}

	var buf bytes.Buffer
	buf.WriteByte(resetRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)
	buf.WriteString(record.CodeHash)

	return buf.Bytes(), nil
}

func decodePasswordResetRecord(data []byte) (*passwordResetRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != resetRecordVersionV1 {
		return nil, errors.New("invalid reset record version")
	}

	record := &passwordResetRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var userIDLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userIDLen); err != nil {
		return nil, err
	}
	userID := make([]byte, userIDLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, err
	}
	record.UserID = string(userID)

	hash := make([]byte, codes.HashLength)
	if _, err := io.ReadFull(reader, hash); err != nil {
		return nil, err
	}
	record.CodeHash = string(hash)

	return record, nil
}

/*
====================================
MEMORY STORE
====================================
*/

type memoryResetStore struct {
	mu      sync.Mutex
	records map[string]passwordResetRecord
	now     func() time.Time
}

func newMemoryResetStore() *memoryResetStore {
	return &memoryResetStore{
		records: make(map[string]passwordResetRecord),
		now:     time.Now,
	}
}

func (s *memoryResetStore) Save(_ context.Context, userID string, record *passwordResetRecord, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()
	s.records[userID] = *record
	return nil
}

func (s *memoryResetStore) Consume(_ context.Context, userID, code string, maxAttempts int) (*passwordResetRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[userID]
	if !ok {
		return nil, errResetNotFound
	}

	remove, err := checkResetCode(&record, code, maxAttempts, s.now())
	if remove {
		delete(s.records, userID)
	} else {
		s.records[userID] = record
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *memoryResetStore) Get(_ context.Context, userID string) (*passwordResetRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[userID]
	if !ok || s.now().Unix() >= record.ExpiresAt {
		return nil, errResetNotFound
	}
	return &record, nil
}

// sweepLocked drops expired records so abandoned resets do not accumulate.
func (s *memoryResetStore) sweepLocked() {
	now := s.now().Unix()
	for userID, record := range s.records {
		if now >= record.ExpiresAt {
			delete(s.records, userID)
		}
	}
}
