package shieldforge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/shieldforge/codes"
)

func newResetRecord(userID, code string, ttl time.Duration) *passwordResetRecord {
	return &passwordResetRecord{
		UserID:    userID,
		CodeHash:  codes.Hash(code),
		ExpiresAt: time.Now().Add(ttl).Unix(),
	}
}

func TestPasswordResetRecordEncoding(t *testing.T) {
	record := newResetRecord("user-1", "123456", time.Minute)
	record.Attempts = 3

	data, err := encodePasswordResetRecord(record)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := decodePasswordResetRecord(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if *decoded != *record {
		t.Fatalf("round trip mismatch: %+v != %+v", decoded, record)
	}

	if _, err := decodePasswordResetRecord(data[:len(data)-1]); err == nil {
		t.Fatal("expected truncated record to fail")
	}
	data[0] = 9
	if _, err := decodePasswordResetRecord(data); err == nil {
		t.Fatal("expected unknown version to fail")
	}
	if _, err := encodePasswordResetRecord(&passwordResetRecord{UserID: "u", CodeHash: "short"}); err == nil {
		t.Fatal("expected short hash to be rejected")
	}
}

func TestCheckResetCode(t *testing.T) {
	now := time.Now()

	record := newResetRecord("u1", "123456", time.Minute)
	remove, err := checkResetCode(record, "123456", 5, now)
	if err != nil || !remove {
		t.Fatalf("expected match to delete, remove=%v err=%v", remove, err)
	}

	record = newResetRecord("u1", "123456", time.Minute)
	remove, err = checkResetCode(record, "000000", 2, now)
	if !errors.Is(err, errResetCodeMismatch) || remove || record.Attempts != 1 {
		t.Fatalf("expected counted mismatch, remove=%v err=%v attempts=%d", remove, err, record.Attempts)
	}
	remove, err = checkResetCode(record, "000000", 2, now)
	if !errors.Is(err, errResetAttemptsExceeded) || !remove {
		t.Fatalf("expected attempts exceeded, remove=%v err=%v", remove, err)
	}

	record = newResetRecord("u1", "123456", time.Minute)
	remove, err = checkResetCode(record, "123456", 5, now.Add(2*time.Minute))
	if !errors.Is(err, errResetNotFound) || !remove {
		t.Fatalf("expected expired record to be removed, remove=%v err=%v", remove, err)
	}
}

func TestMemoryResetStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := newMemoryResetStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	if err := store.Save(ctx, "u1", newResetRecord("u1", "123456", time.Minute), time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := store.Get(ctx, "u1"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := store.Get(ctx, "u1"); !errors.Is(err, errResetNotFound) {
		t.Fatalf("expected expired record to be hidden, got %v", err)
	}
	if _, err := store.Consume(ctx, "u1", "123456", 5); !errors.Is(err, errResetNotFound) {
		t.Fatalf("expected expired record to be rejected, got %v", err)
	}
	if len(store.records) != 0 {
		t.Fatal("expected expired record to be deleted on consume")
	}
}

func TestRedisResetStoreConsume(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	store := newRedisResetStore(rdb, "sfr")

	if err := store.Save(ctx, "u1", newResetRecord("u1", "123456", time.Minute), time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := store.Consume(ctx, "u1", "654321", 5); !errors.Is(err, errResetCodeMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	got, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Attempts != 1 {
		t.Fatalf("expected attempt to be persisted, got %d", got.Attempts)
	}
	if ttl := rdb.TTL(ctx, "sfr:u1").Val(); ttl <= 0 {
		t.Fatalf("expected ttl to survive attempt update, got %v", ttl)
	}

	record, err := store.Consume(ctx, "u1", "123456", 5)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if record.UserID != "u1" {
		t.Fatalf("unexpected record %+v", record)
	}
	if rdb.Exists(ctx, "sfr:u1").Val() != 0 {
		t.Fatal("expected record to be deleted after a match")
	}
	if _, err := store.Consume(ctx, "u1", "123456", 5); !errors.Is(err, errResetNotFound) {
		t.Fatalf("expected replay to fail, got %v", err)
	}
}

func TestRedisResetStoreBackendError(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	store := newRedisResetStore(rdb, "sfr")
	mr.Close()

	if err := store.Save(ctx, "u1", newResetRecord("u1", "123456", time.Minute), time.Minute); !errors.Is(err, errResetBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if _, err := store.Consume(ctx, "u1", "123456", 5); !errors.Is(err, errResetBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
}
