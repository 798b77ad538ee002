package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// recordScript increments the window counter only while it is below the limit
// and starts the window expiry on the first call.
var recordScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count >= tonumber(ARGV[1]) then
	return 0
end
count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 1
`)

// RedisStore keeps fixed-window counters in Redis so every worker process
// shares one view of the quota.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a store using client. Keys are namespaced under prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(k string) string {
	return r.prefix + ":" + k
}

// Check reads the current window count and its remaining lifetime
func (r *RedisStore) Check(ctx context.Context, key string, q Quota) (Decision, error) {
	k := r.key(key)

	pipe := r.client.Pipeline()
	getCmd := pipe.Get(ctx, k)
	ttlCmd := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return Decision{}, fmt.Errorf("redis check %s: %w", k, err)
	}

	count, err := getCmd.Int()
	if err == redis.Nil {
		return Decision{Allowed: true}, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("redis read count %s: %w", k, err)
	}
	if count < q.Limit {
		return Decision{Allowed: true}, nil
	}

	wait := ttlCmd.Val()
	if wait <= 0 {
		wait = q.Interval
	}
	return Decision{Allowed: false, RetryAfter: wait}, nil
}

// Record charges one call against the current window
func (r *RedisStore) Record(ctx context.Context, key string, q Quota) error {
	k := r.key(key)
	if err := recordScript.Run(ctx, r.client, []string{k}, q.Limit, q.Interval.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis record %s: %w", k, err)
	}
	return nil
}

// Ping verifies the connection
func (r *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return r.client.Ping(ctx).Err()
}
