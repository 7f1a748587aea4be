package cooldown

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "regbridge:cooldown:"

// One key per applicant holding the submission time in unix milliseconds,
// with a TTL of the cooldown period so redis evicts it on its own.
type RedisStore struct {
	client redis.UniversalClient
	period time.Duration
}

func NewRedisStore(client redis.UniversalClient, period time.Duration) *RedisStore {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &RedisStore{client: client, period: period}
}

func redisKey(applicantID string) string {
	return redisKeyPrefix + applicantID
}

func (r *RedisStore) RecordSubmission(ctx context.Context, applicantID string, now time.Time) error {
	value := strconv.FormatInt(now.UTC().UnixMilli(), 10)
	if err := r.client.Set(ctx, redisKey(applicantID), value, r.period).Err(); err != nil {
		return fmt.Errorf("(*RedisStore).RecordSubmission: %w", err)
	}
	return nil
}

func (r *RedisStore) LastSubmission(ctx context.Context, applicantID string) (time.Time, bool, error) {
	value, err := r.client.Get(ctx, redisKey(applicantID)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return time.Time{}, false, nil
	case err != nil:
		return time.Time{}, false, fmt.Errorf("(*RedisStore).LastSubmission: %w", err)
	}
	milli, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("(*RedisStore).LastSubmission: corrupt value %q: %w", value, err)
	}
	return time.UnixMilli(milli).UTC(), true, nil
}
