package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rentalhub/internal/metrics"
	"rentalhub/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultQueueKey = "notifications:queue"
	localQueueSize  = 256
	popTimeout      = time.Second
)

// NotificationQueue hands notifications from request goroutines to the sender loop.
// Redis keeps them across restarts; without redis an in-process channel is used.
type NotificationQueue struct {
	redis  *redis.Client
	key    string
	local  chan *models.Notification
	logger *zerolog.Logger
}

func NewNotificationQueue(redisClient *redis.Client, key string, logger *zerolog.Logger) *NotificationQueue {
	if key == "" {
		key = defaultQueueKey
	}
	return &NotificationQueue{
		redis:  redisClient,
		key:    key,
		local:  make(chan *models.Notification, localQueueSize),
		logger: logger,
	}
}

// Enqueue never blocks the caller: when both redis and the local buffer are
// unavailable the notification is dropped and counted.
func (q *NotificationQueue) Enqueue(ctx context.Context, n *models.Notification) error {
	if n == nil {
		return errors.New("notification is nil")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	if q.redis != nil {
		err := q.pushRedis(ctx, n)
		if err == nil {
			return nil
		}
		q.logger.Warn().Err(err).Msg("notification redis push failed, fallback to memory queue")
	}

	select {
	case q.local <- n:
		return nil
	default:
		metrics.IncNotification("queue", "dropped")
		return fmt.Errorf("notification queue full, dropped %s for user %d", n.Kind, n.RecipientID)
	}
}

// Dequeue returns the next notification, waiting up to a second on redis.
func (q *NotificationQueue) Dequeue(ctx context.Context) (*models.Notification, bool) {
	select {
	case n := <-q.local:
		return n, true
	default:
	}

	if q.redis == nil {
		select {
		case n := <-q.local:
			return n, true
		case <-ctx.Done():
			return nil, false
		case <-time.After(popTimeout):
			return nil, false
		}
	}

	res, err := q.redis.BRPop(ctx, popTimeout, q.key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			q.logger.Error().Err(err).Msg("notification redis BRPOP error")
			// avoid spinning on a broken connection
			select {
			case <-ctx.Done():
			case <-time.After(popTimeout):
			}
		}
		return nil, false
	}
	if len(res) != 2 {
		return nil, false
	}

	var n models.Notification
	if err := json.Unmarshal([]byte(res[1]), &n); err != nil {
		q.logger.Error().Err(err).Msg("decode notification")
		return nil, false
	}
	return &n, true
}

func (q *NotificationQueue) pushRedis(ctx context.Context, n *models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return q.redis.LPush(ctx, q.key, data).Err()
}
