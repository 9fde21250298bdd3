package stores

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func testRecord(purpose string, ttl time.Duration) *OneTimeRecord {
	now := time.Now()
	return &OneTimeRecord{
		UserID:    "u1",
		Purpose:   purpose,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
}

func TestConsumeExactlyOnce(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewOneTimeStore(rdb, "sot")
	ctx := context.Background()

	if err := s.Save(ctx, "jti-1", testRecord("verification", time.Hour), time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}

	record, err := s.Consume(ctx, "jti-1", "verification")
	if err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if record.UserID != "u1" {
		t.Fatalf("user id = %q, want u1", record.UserID)
	}
	if record.UsedAt == 0 {
		t.Fatal("consumed record has no used-at timestamp")
	}

	if _, err := s.Consume(ctx, "jti-1", "verification"); !errors.Is(err, ErrOneTimeUsed) {
		t.Fatalf("second consume: got %v, want ErrOneTimeUsed", err)
	}
}

func TestConsumeUnknownToken(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewOneTimeStore(rdb, "sot")

	if _, err := s.Consume(context.Background(), "no-such-jti", "verification"); !errors.Is(err, ErrOneTimeNotFound) {
		t.Fatalf("got %v, want ErrOneTimeNotFound", err)
	}
}

func TestConsumePurposeMismatch(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewOneTimeStore(rdb, "sot")
	ctx := context.Background()

	if err := s.Save(ctx, "jti-1", testRecord("password_reset", time.Hour), time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}

	// A reset record must not satisfy a verification consume, and must
	// survive the attempt.
	if _, err := s.Consume(ctx, "jti-1", "verification"); !errors.Is(err, ErrOneTimeNotFound) {
		t.Fatalf("got %v, want ErrOneTimeNotFound", err)
	}
	if _, err := s.Consume(ctx, "jti-1", "password_reset"); err != nil {
		t.Fatalf("correct-purpose consume after mismatch: %v", err)
	}
}

func TestConsumeExpiredRecord(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewOneTimeStore(rdb, "sot")
	ctx := context.Background()

	record := testRecord("verification", -time.Minute) // already past expiry
	if err := s.Save(ctx, "jti-1", record, time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := s.Consume(ctx, "jti-1", "verification"); !errors.Is(err, ErrOneTimeExpired) {
		t.Fatalf("got %v, want ErrOneTimeExpired", err)
	}
}

func TestConsumeConcurrentSingleWinner(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewOneTimeStore(rdb, "sot")
	ctx := context.Background()

	if err := s.Save(ctx, "jti-1", testRecord("verification", time.Hour), time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Consume(ctx, "jti-1", "verification")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		} else if !errors.Is(err, ErrOneTimeUsed) {
			t.Fatalf("unexpected loser error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins)
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewOneTimeStore(rdb, "sot")
	ctx := context.Background()

	if err := rdb.Set(ctx, s.key("jti-1"), "\xffgarbage", time.Hour).Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.Consume(ctx, "jti-1", "verification"); err == nil {
		t.Fatal("expected corrupt record to fail")
	}
}

func TestMarkSpentDetectsReplay(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewSpentTokenStore(rdb, "srt")
	ctx := context.Background()

	first, err := s.MarkSpent(ctx, "jti-1", time.Hour)
	if err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if !first {
		t.Fatal("first spend reported as replay")
	}

	first, err = s.MarkSpent(ctx, "jti-1", time.Hour)
	if err != nil {
		t.Fatalf("second mark: %v", err)
	}
	if first {
		t.Fatal("replay not detected")
	}

	// Distinct jtis do not interfere.
	first, err = s.MarkSpent(ctx, "jti-2", time.Hour)
	if err != nil {
		t.Fatalf("other jti: %v", err)
	}
	if !first {
		t.Fatal("unrelated jti reported as replay")
	}
}

func TestMarkSpentExpiry(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewSpentTokenStore(rdb, "srt")
	ctx := context.Background()

	if _, err := s.MarkSpent(ctx, "jti-1", time.Minute); err != nil {
		t.Fatalf("mark: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	// Past the token's natural lifetime the record may lapse; the expiry
	// check on the token itself takes over.
	first, err := s.MarkSpent(ctx, "jti-1", time.Minute)
	if err != nil {
		t.Fatalf("mark after expiry: %v", err)
	}
	if !first {
		t.Fatal("record survived its TTL")
	}
}
