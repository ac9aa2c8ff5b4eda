package challenge

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "sfc"
	recordVersionV1    = 1
	// recordVersionV2 appends the ceremony kind.
	recordVersionV2 = 2
)

// RedisStore keeps challenges in Redis with native key expiry.
//
// Consume relies on GETDEL, which requires Redis 6.2 or newer.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore wraps an existing client. An empty prefix selects "sfc".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
		now:    time.Now,
	}
}

// NewRedisStoreFromURL parses a redis:// URL, connects and pings the server.
func NewRedisStoreFromURL(ctx context.Context, rawURL, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return NewRedisStore(client, prefix), nil
}

func (s *RedisStore) key(value string) string {
	return s.prefix + ":" + value
}

// Store writes the challenge with a PX expiry of ttl.
func (s *RedisStore) Store(ctx context.Context, value, userID string, ttl time.Duration) error {
	return s.StoreKind(ctx, value, KindUnspecified, userID, ttl)
}

// StoreKind writes the challenge and the ceremony that issued it.
func (s *RedisStore) StoreKind(ctx context.Context, value string, kind Kind, userID string, ttl time.Duration) error {
	if err := validate(value, ttl); err != nil {
		return err
	}

	now := s.now()
	encoded, err := encodeRecord(&Challenge{
		UserID:    userID,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(value), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get reads the challenge without consuming it.
func (s *RedisStore) Get(ctx context.Context, value string) (*Challenge, error) {
	data, err := s.redis.Get(ctx, s.key(value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return s.decodeLive(value, data)
}

// Delete removes the key. Missing keys are ignored.
func (s *RedisStore) Delete(ctx context.Context, value string) error {
	if err := s.redis.Del(ctx, s.key(value)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Consume fetches and deletes the key in a single GETDEL round trip.
func (s *RedisStore) Consume(ctx context.Context, value string) (*Challenge, error) {
	data, err := s.redis.GetDel(ctx, s.key(value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return s.decodeLive(value, data)
}

// ClearExpired is a no-op: Redis evicts keys when their PX expiry elapses.
func (s *RedisStore) ClearExpired(context.Context) (int, error) {
	return 0, nil
}

func (s *RedisStore) decodeLive(value string, data []byte) (*Challenge, error) {
	record, err := decodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	record.Value = value

	if record.Expired(s.now()) {
		return nil, ErrNotFound
	}
	return record, nil
}

func encodeRecord(c *Challenge) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordVersionV2)
	if err := binary.Write(&buf, binary.BigEndian, c.CreatedAt.UnixNano()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, c.ExpiresAt.UnixNano()); err != nil {
		return nil, err
	}

	if len(c.UserID) > 65535 {
		return nil, errors.New("challenge user id too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(c.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(c.UserID)

	if len(c.Kind) > 255 {
		return nil, errors.New("challenge kind too long")
	}
	buf.WriteByte(byte(len(c.Kind)))
	buf.WriteString(string(c.Kind))

	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*Challenge, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordVersionV1 && version != recordVersionV2 {
		return nil, errors.New("invalid challenge record version")
	}

	var createdAt, expiresAt int64
	if err := binary.Read(reader, binary.BigEndian, &createdAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &expiresAt); err != nil {
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

	record := &Challenge{
		UserID:    string(userID),
		CreatedAt: time.Unix(0, createdAt),
		ExpiresAt: time.Unix(0, expiresAt),
	}
	if version == recordVersionV1 {
		return record, nil
	}

	kindLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	kind := make([]byte, kindLen)
	if _, err := io.ReadFull(reader, kind); err != nil {
		return nil, err
	}
	record.Kind = Kind(kind)
	return record, nil
}
