package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Notifier wakes the dispatcher promptly after a commit. Delivery correctness
// never depends on it; the dispatcher also polls on an interval, so a lost
// wake-up only costs latency.
type Notifier interface {
	Wake(ctx context.Context) error
	Wait(ctx context.Context, timeout time.Duration) error
}

// RedisNotifier implements Notifier on a Redis list, one nudge per commit.
type RedisNotifier struct {
	client *redis.Client
	key    string
}

func NewRedisNotifier(client *redis.Client, key string) *RedisNotifier {
	if key == "" {
		key = "outbox:wake"
	}
	return &RedisNotifier{client: client, key: key}
}

func (n *RedisNotifier) Wake(ctx context.Context) error {
	return n.client.LPush(ctx, n.key, "1").Err()
}

// Wait blocks until a nudge arrives or the timeout elapses. A timeout is not
// an error; the caller polls regardless.
func (n *RedisNotifier) Wait(ctx context.Context, timeout time.Duration) error {
	err := n.client.BLPop(ctx, timeout, n.key).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
