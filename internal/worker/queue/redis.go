package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisWaker signals through a Redis list, letting standalone workers on
// other hosts pick up submissions (LPUSH on submit, BRPOP on wait).
type RedisWaker struct {
	rdb       *redis.Client
	queueName string
	popWait   time.Duration
}

func NewRedisWaker(rdb *redis.Client, queueName string) *RedisWaker {
	return &RedisWaker{
		rdb:       rdb,
		queueName: queueName,
		popWait:   10 * time.Second,
	}
}

func (w *RedisWaker) Notify(ctx context.Context, jobID string) error {
	return w.rdb.LPush(ctx, w.queueName, jobID).Err()
}

func (w *RedisWaker) Wait(ctx context.Context) (bool, error) {
	res, err := w.rdb.BRPop(ctx, w.popWait, w.queueName).Result()
	if err != nil {
		if err == redis.Nil {
			// Timed out with no signal; let the caller sweep.
			return false, nil
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, err
	}
	return len(res) >= 2, nil
}

func (w *RedisWaker) Close() error { return nil }
