package queue

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var (
	// ErrDuplicateRun means an identical sync is already queued or running;
	// the queue collapses identical pending syncs to a single writer.
	ErrDuplicateRun = errors.New("an identical sync run is already queued")
	ErrEmpty        = errors.New("queue is empty")
)

// SyncQueue is a Redis-backed FIFO of pending sync-run IDs. The run records
// themselves live in Postgres; the queue only orders execution and
// deduplicates identical requests.
type SyncQueue struct {
	redis     *redis.Client
	keyPrefix string
}

func NewSyncQueue(redisClient *redis.Client) *SyncQueue {
	return &SyncQueue{
		redis:     redisClient,
		keyPrefix: "tortshark:syncq:",
	}
}

func (q *SyncQueue) pendingKey() string          { return q.keyPrefix + "pending" }
func (q *SyncQueue) dedupeKey(key string) string { return q.keyPrefix + "dedupe:" + key }

// Enqueue pushes a run ID. dedupeKey should encode (platform, campaign
// filter, date range); while it is held, identical requests are rejected.
func (q *SyncQueue) Enqueue(ctx context.Context, runID uuid.UUID, dedupeKey string) error {
	if dedupeKey != "" {
		ok, err := q.redis.SetNX(ctx, q.dedupeKey(dedupeKey), runID.String(), 6*time.Hour).Result()
		if err != nil {
			return err
		}
		if !ok {
			return ErrDuplicateRun
		}
	}

	return q.redis.LPush(ctx, q.pendingKey(), runID.String()).Err()
}

// Dequeue blocks up to timeout for the next run ID.
func (q *SyncQueue) Dequeue(ctx context.Context, timeout time.Duration) (uuid.UUID, error) {
	result, err := q.redis.BRPop(ctx, timeout, q.pendingKey()).Result()
	if err == redis.Nil {
		return uuid.Nil, ErrEmpty
	}
	if err != nil {
		return uuid.Nil, err
	}
	// BRPop returns [key, value]
	return uuid.Parse(result[1])
}

// Done clears the dedupe key once a run finishes, allowing the next
// identical request through.
func (q *SyncQueue) Done(ctx context.Context, dedupeKey string) error {
	if dedupeKey == "" {
		return nil
	}
	return q.redis.Del(ctx, q.dedupeKey(dedupeKey)).Err()
}

// Depth returns the number of queued runs.
func (q *SyncQueue) Depth(ctx context.Context) (int64, error) {
	return q.redis.LLen(ctx, q.pendingKey()).Result()
}
