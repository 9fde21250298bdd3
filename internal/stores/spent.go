package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSpentUnavailable means the reuse-detection backend is unreachable.
var ErrSpentUnavailable = errors.New("refresh reuse backend unavailable")

// SpentTokenStore records refresh-token jtis that have been rotated out.
// A spent jti is kept until the token's natural expiry, after which the
// token would be rejected as expired anyway and the record can lapse.
type SpentTokenStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewSpentTokenStore returns a store using the given key prefix
// (default "srt").
func NewSpentTokenStore(redisClient redis.UniversalClient, prefix string) *SpentTokenStore {
	if prefix == "" {
		prefix = "srt"
	}
	return &SpentTokenStore{redis: redisClient, prefix: prefix}
}

// MarkSpent records jti as spent for ttl. Returns false when the jti was
// already spent, the reuse signal. SETNX makes the check-and-mark
// atomic without a transaction.
func (s *SpentTokenStore) MarkSpent(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Second
	}
	first, err := s.redis.SetNX(ctx, s.prefix+":"+jti, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrSpentUnavailable, err)
	}
	return first, nil
}
