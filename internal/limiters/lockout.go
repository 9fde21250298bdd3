package limiters

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const attemptRecordVersionV1 = 1

// ErrLockoutUnavailable indicates the durable lockout mirror is
// unreachable. Callers treat it as non-fatal on the write path.
var ErrLockoutUnavailable = errors.New("lockout backend unavailable")

// LockoutConfig holds the lockout state machine parameters.
type LockoutConfig struct {
	// MaxAttempts failures within the reset window trigger a lockout.
	MaxAttempts int
	// LockoutDuration is how long a triggered lockout lasts.
	LockoutDuration time.Duration
	// ResetWindow is the inactivity gap after which the counter restarts
	// at zero even without a successful sign-in.
	ResetWindow time.Duration
}

// AttemptRecord is the per-email failure state.
type AttemptRecord struct {
	Count        int
	FirstAttempt int64 // unix seconds
	LastAttempt  int64
	LockedUntil  int64 // 0 when not locked
}

// Lockout is the read-side answer for a single email.
type Lockout struct {
	Locked           bool
	RemainingMinutes int
	Attempts         int
}

// LockoutTracker counts failed sign-in attempts per case-folded email
// and locks the identity once the threshold is reached. Safe for
// concurrent use.
type LockoutTracker struct {
	redis  redis.UniversalClient
	prefix string
	config LockoutConfig

	mu    sync.Mutex
	cache map[string]*AttemptRecord

	now func() time.Time
}

// NewLockoutTracker returns a tracker using the given key prefix
// (default "sla").
func NewLockoutTracker(redisClient redis.UniversalClient, prefix string, cfg LockoutConfig) *LockoutTracker {
	if prefix == "" {
		prefix = "sla"
	}
	return &LockoutTracker{
		redis:  redisClient,
		prefix: prefix,
		config: cfg,
		cache:  make(map[string]*AttemptRecord),
		now:    time.Now,
	}
}

func (t *LockoutTracker) key(email string) string {
	return t.prefix + ":" + email
}

func fold(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RecordFailure registers one failed attempt. It returns the updated
// record and whether this failure triggered (or renewed) a lockout. A
// mirror-write failure is reported through err but the in-memory state
// is already updated; callers log and continue.
func (t *LockoutTracker) RecordFailure(ctx context.Context, email string) (*AttemptRecord, bool, error) {
	key := fold(email)
	now := t.now()

	t.mu.Lock()
	record := t.cache[key]
	if record == nil {
		if fetched, err := t.fetch(ctx, key); err == nil && fetched != nil {
			record = fetched
		}
	}
	if record == nil {
		record = &AttemptRecord{FirstAttempt: now.Unix()}
	}

	// Stale counter: restart at zero before counting this attempt.
	if now.Unix()-record.LastAttempt > int64(t.config.ResetWindow/time.Second) {
		record = &AttemptRecord{FirstAttempt: now.Unix()}
	}

	record.Count++
	record.LastAttempt = now.Unix()

	locked := false
	if record.Count >= t.config.MaxAttempts {
		record.LockedUntil = now.Add(t.config.LockoutDuration).Unix()
		locked = true
	}

	t.cache[key] = record
	// Persist and return a copy: the cached record may be rewritten by a
	// concurrent failure for the same email the moment the lock drops.
	snapshot := *record
	t.mu.Unlock()

	if err := t.persist(ctx, key, &snapshot); err != nil {
		return &snapshot, locked, err
	}
	return &snapshot, locked, nil
}

// Status reports whether email is currently locked. The in-memory cache
// answers first; on miss the durable mirror is consulted and the cache
// hydrated. A lockout whose deadline has passed resets the counter.
func (t *LockoutTracker) Status(ctx context.Context, email string) (Lockout, error) {
	key := fold(email)
	now := t.now()

	t.mu.Lock()
	record := t.cache[key]
	if record == nil {
		fetched, err := t.fetch(ctx, key)
		if err != nil {
			t.mu.Unlock()
			// Mirror down: allow the attempt rather than locking
			// everyone out.
			return Lockout{}, err
		}
		if fetched == nil {
			t.mu.Unlock()
			return Lockout{}, nil
		}
		record = fetched
		t.cache[key] = record
	}
	snapshot := *record

	if snapshot.LockedUntil != 0 && now.Unix() >= snapshot.LockedUntil {
		// Lock expired: drop the record so cache and mirror both
		// restart clean.
		delete(t.cache, key)
		t.mu.Unlock()
		if err := t.redis.Del(ctx, t.key(key)).Err(); err != nil {
			return Lockout{}, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
		}
		return Lockout{}, nil
	}
	t.mu.Unlock()

	if snapshot.LockedUntil == 0 {
		return Lockout{Attempts: snapshot.Count}, nil
	}

	remaining := time.Unix(snapshot.LockedUntil, 0).Sub(now)
	minutes := int((remaining + time.Minute - 1) / time.Minute)
	return Lockout{Locked: true, RemainingMinutes: minutes, Attempts: snapshot.Count}, nil
}

// Clear removes all failure state for email, both cached and durable.
// Called on successful authentication.
func (t *LockoutTracker) Clear(ctx context.Context, email string) error {
	key := fold(email)

	t.mu.Lock()
	delete(t.cache, key)
	t.mu.Unlock()

	if err := t.redis.Del(ctx, t.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

func (t *LockoutTracker) fetch(ctx context.Context, key string) (*AttemptRecord, error) {
	data, err := t.redis.Get(ctx, t.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return decodeAttemptRecord(data)
}

func (t *LockoutTracker) persist(ctx context.Context, key string, record *AttemptRecord) error {
	encoded, err := encodeAttemptRecord(record)
	if err != nil {
		return err
	}

	// Keep the mirror long enough to cover both the counting window and
	// a full lockout; after that the record is dead weight either way.
	ttl := t.config.ResetWindow + t.config.LockoutDuration
	if err := t.redis.Set(ctx, t.key(key), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

func encodeAttemptRecord(record *AttemptRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(attemptRecordVersionV1)
	for _, v := range []int64{int64(record.Count), record.FirstAttempt, record.LastAttempt, record.LockedUntil} {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeAttemptRecord(data []byte) (*AttemptRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != attemptRecordVersionV1 {
		return nil, errors.New("invalid attempt record version")
	}

	var count int64
	record := &AttemptRecord{}
	for _, dst := range []*int64{&count, &record.FirstAttempt, &record.LastAttempt, &record.LockedUntil} {
		if err := binary.Read(reader, binary.BigEndian, dst); err != nil {
			return nil, err
		}
	}
	record.Count = int(count)

	return record, nil
}
