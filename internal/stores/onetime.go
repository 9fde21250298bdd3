package stores

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

const oneTimeRecordVersionV1 = 1

var (
	// ErrOneTimeNotFound means no record exists for the token id.
	ErrOneTimeNotFound = errors.New("one-time token record not found")
	// ErrOneTimeExpired means the record exists but its expiry passed.
	ErrOneTimeExpired = errors.New("one-time token expired")
	// ErrOneTimeUsed means the token was already consumed.
	ErrOneTimeUsed = errors.New("one-time token already used")
	// ErrOneTimeUnavailable means the backing store is unreachable.
	ErrOneTimeUnavailable = errors.New("one-time token backend unavailable")
)

// OneTimeRecord is the server-side record of an issued verification or
// password-reset token, keyed by the token's jti.
type OneTimeRecord struct {
	UserID    string
	Purpose   string
	IssuedAt  int64
	ExpiresAt int64
	UsedAt    int64 // 0 until consumed
}

// OneTimeStore tracks issued one-time tokens. The signed token itself
// carries integrity and expiry; this store supplies the single-use
// property.
type OneTimeStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewOneTimeStore returns a store using the given key prefix
// (default "sot").
func NewOneTimeStore(redisClient redis.UniversalClient, prefix string) *OneTimeStore {
	if prefix == "" {
		prefix = "sot"
	}
	return &OneTimeStore{redis: redisClient, prefix: prefix}
}

func (s *OneTimeStore) key(tokenID string) string {
	return s.prefix + ":" + tokenID
}

// Save records an issued token under its jti with TTL matching the token
// lifetime.
func (s *OneTimeStore) Save(ctx context.Context, tokenID string, record *OneTimeRecord, ttl time.Duration) error {
	encoded, err := encodeOneTimeRecord(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(tokenID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrOneTimeUnavailable, err)
	}
	return nil
}

// Consume marks the record used and returns it. The read-check-mark
// sequence runs in a WATCH transaction, so two concurrent consumers of
// the same token resolve to exactly one success; the loser observes
// [ErrOneTimeUsed]. The used record is kept until its natural expiry so
// replays stay distinguishable from unknown tokens.
func (s *OneTimeStore) Consume(ctx context.Context, tokenID, purpose string) (*OneTimeRecord, error) {
	const maxRetries = 4
	key := s.key(tokenID)

	for i := 0; i < maxRetries; i++ {
		var consumed *OneTimeRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeOneTimeRecord(data)
			if err != nil {
				return err
			}

			if record.Purpose != purpose {
				// Wrong-purpose lookups are indistinguishable from
				// unknown tokens on the outside.
				return ErrOneTimeNotFound
			}

			now := time.Now()
			if now.Unix() > record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrOneTimeExpired
			}

			if record.UsedAt != 0 {
				return ErrOneTimeUsed
			}

			record.UsedAt = now.Unix()
			updated, err := encodeOneTimeRecord(record)
			if err != nil {
				return err
			}

			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				ttl = time.Second
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			if err != nil {
				return err
			}

			consumed = record
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return nil, ErrOneTimeNotFound
			case errors.Is(err, ErrOneTimeNotFound),
				errors.Is(err, ErrOneTimeExpired),
				errors.Is(err, ErrOneTimeUsed):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", ErrOneTimeUnavailable, err)
			}
		}

		return consumed, nil
	}

	return nil, ErrOneTimeUsed
}

// Get returns the record without consuming it.
func (s *OneTimeStore) Get(ctx context.Context, tokenID string) (*OneTimeRecord, error) {
	data, err := s.redis.Get(ctx, s.key(tokenID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrOneTimeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrOneTimeUnavailable, err)
	}
	return decodeOneTimeRecord(data)
}

func encodeOneTimeRecord(record *OneTimeRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(oneTimeRecordVersionV1)
	for _, v := range []int64{record.IssuedAt, record.ExpiresAt, record.UsedAt} {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			return nil, err
		}
	}

	for _, s := range []string{record.UserID, record.Purpose} {
		if len(s) > 65535 {
			return nil, errors.New("one-time record field too long")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(s))); err != nil {
			return nil, err
		}
		buf.WriteString(s)
	}

	return buf.Bytes(), nil
}

func decodeOneTimeRecord(data []byte) (*OneTimeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != oneTimeRecordVersionV1 {
		return nil, errors.New("invalid one-time record version")
	}

	record := &OneTimeRecord{}
	for _, dst := range []*int64{&record.IssuedAt, &record.ExpiresAt, &record.UsedAt} {
		if err := binary.Read(reader, binary.BigEndian, dst); err != nil {
			return nil, err
		}
	}

	for _, dst := range []*string{&record.UserID, &record.Purpose} {
		var n uint16
		if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(reader, b); err != nil {
			return nil, err
		}
		*dst = string(b)
	}

	return record, nil
}
