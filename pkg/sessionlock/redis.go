package sessionlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "flowboard:lease:"

// Release and renew must only touch the key when the stored session
// matches, so both run as compare scripts.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisLocker implements Locker on a shared Redis, so leases hold
// across API replicas.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker connects to Redis and verifies the connection.
func NewRedisLocker(ctx context.Context, url string) (*RedisLocker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisLocker{client: client}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, workflowID, sessionID string, ttl time.Duration) (*Lease, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	key := keyPrefix + workflowID

	acquired, err := l.client.SetNX(ctx, key, sessionID, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease: %w", err)
	}

	if acquired {
		return &Lease{WorkflowID: workflowID, SessionID: sessionID, ExpiresAt: time.Now().Add(ttl)}, nil
	}

	holder, err := l.client.Get(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read lease holder: %w", err)
	}

	if holder == sessionID {
		// Same session re-opening the workflow: treat as a renewal.
		return l.Renew(ctx, workflowID, sessionID, ttl)
	}

	return nil, ErrLeaseHeld
}

func (l *RedisLocker) Renew(ctx context.Context, workflowID, sessionID string, ttl time.Duration) (*Lease, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	renewed, err := renewScript.Run(ctx, l.client, []string{keyPrefix + workflowID}, sessionID, ttl.Milliseconds()).Int()
	if err != nil {
		return nil, fmt.Errorf("failed to renew lease: %w", err)
	}

	if renewed == 0 {
		return nil, ErrNotHolder
	}

	return &Lease{WorkflowID: workflowID, SessionID: sessionID, ExpiresAt: time.Now().Add(ttl)}, nil
}

func (l *RedisLocker) Release(ctx context.Context, workflowID, sessionID string) error {
	released, err := releaseScript.Run(ctx, l.client, []string{keyPrefix + workflowID}, sessionID).Int()
	if err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}

	if released == 0 {
		return ErrNotHolder
	}

	return nil
}

func (l *RedisLocker) Holder(ctx context.Context, workflowID string) (string, error) {
	holder, err := l.client.Get(ctx, keyPrefix+workflowID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("failed to read lease holder: %w", err)
	}

	return holder, nil
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}
