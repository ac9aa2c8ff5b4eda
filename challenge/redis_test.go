package challenge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStoreUsesNativeTTL(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedisStore(client, "test")

	require.NoError(t, s.Store(ctx, "v1", "user-1", time.Minute))
	assert.True(t, mr.Exists("test:v1"))
	assert.Equal(t, time.Minute, mr.TTL("test:v1"))

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("test:v1"))

	_, err := s.Get(ctx, "v1")
	assert.ErrorIs(t, err, ErrNotFound)

	removed, err := s.ClearExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestRedisStoreRecordRoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 123)
	in := &Challenge{UserID: "user-42", Kind: KindAuthentication, CreatedAt: now, ExpiresAt: now.Add(time.Minute)}

	data, err := encodeRecord(in)
	require.NoError(t, err)

	out, err := decodeRecord(data)
	require.NoError(t, err)
	assert.Equal(t, in.UserID, out.UserID)
	assert.Equal(t, KindAuthentication, out.Kind)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.True(t, in.ExpiresAt.Equal(out.ExpiresAt))

	_, err = decodeRecord([]byte{9})
	assert.Error(t, err)
	_, err = decodeRecord(data[:5])
	assert.Error(t, err)
}

func TestRedisStoreDecodesV1Records(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	data, err := encodeRecord(&Challenge{UserID: "user-7", CreatedAt: now, ExpiresAt: now.Add(time.Minute)})
	require.NoError(t, err)

	// A v1 record is the v2 layout without the trailing kind.
	v1 := append([]byte{recordVersionV1}, data[1:len(data)-1]...)
	out, err := decodeRecord(v1)
	require.NoError(t, err)
	assert.Equal(t, "user-7", out.UserID)
	assert.Equal(t, KindUnspecified, out.Kind)
}

func TestRedisStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedisStore(client, "")
	mr.Close()

	assert.ErrorIs(t, s.Store(ctx, "v", "", time.Minute), ErrUnavailable)
	_, err := s.Consume(ctx, "v")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewRedisStoreFromURL(t *testing.T) {
	mr, _ := newTestRedis(t)

	s, err := NewRedisStoreFromURL(context.Background(), "redis://"+mr.Addr()+"/0", "")
	require.NoError(t, err)
	require.NoError(t, s.Store(context.Background(), "v", "", time.Minute))
	assert.True(t, mr.Exists("sfc:v"))

	_, err = NewRedisStoreFromURL(context.Background(), "://bad", "")
	assert.Error(t, err)
}
