package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"account-service/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const defaultQueueKey = "tasks:delayed"

// Task is one deferred unit of work. It is stored as the sorted set member,
// scored by the unix millisecond it becomes due.
type Task struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
	RunAt   time.Time       `json:"run_at"`
}

// Enqueuer is what callers need to defer work.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload any, delay time.Duration) error
}

// Queue is a delayed task queue on a Redis sorted set.
type Queue struct {
	client redis.Cmdable
	key    string
	now    func() time.Time
}

func NewQueue(client redis.Cmdable, key string) *Queue {
	key = strings.TrimSpace(key)
	if key == "" {
		key = defaultQueueKey
	}
	return &Queue{client: client, key: key, now: time.Now}
}

// WithClock overrides the time source.
func (q *Queue) WithClock(now func() time.Time) *Queue {
	if now != nil {
		q.now = now
	}
	return q
}

func (q *Queue) Enqueue(ctx context.Context, name string, payload any, delay time.Duration) error {
	if name == "" {
		return errors.New("task name must not be empty")
	}
	if delay < 0 {
		delay = 0
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", name, err)
	}

	runAt := q.now().Add(delay)
	member, err := json.Marshal(Task{
		ID:      utils.GenerateUUID().String(),
		Name:    name,
		Payload: raw,
		RunAt:   runAt,
	})
	if err != nil {
		return fmt.Errorf("encode %s task: %w", name, err)
	}

	if err := q.client.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(runAt.UnixMilli()),
		Member: string(member),
	}).Err(); err != nil {
		return fmt.Errorf("redis zadd %s: %w", name, err)
	}

	return nil
}

// Due lists up to limit raw tasks whose run time has passed. Listing does not
// claim them.
func (q *Queue) Due(ctx context.Context, limit int) ([]string, error) {
	members, err := q.client.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(q.now().UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrangebyscore: %w", err)
	}
	return members, nil
}

// claimScript leases a due member by pushing its score past the lease. A
// member that is missing or not yet due is left alone.
var claimScript = redis.NewScript(`
local score = redis.call('ZSCORE', KEYS[1], ARGV[1])
if not score or tonumber(score) > tonumber(ARGV[2]) then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[1])
return 1
`)

// Claim leases a due task for lease. Only the caller that got true may run
// it. A task that is never acked becomes due again when the lease runs out.
func (q *Queue) Claim(ctx context.Context, member string, lease time.Duration) (bool, error) {
	now := q.now()
	claimed, err := claimScript.Run(ctx, q.client, []string{q.key},
		member, now.UnixMilli(), now.Add(lease).UnixMilli()).Int()
	if err != nil {
		return false, fmt.Errorf("redis claim: %w", err)
	}
	return claimed == 1, nil
}

// Ack removes a finished task and its attempt count.
func (q *Queue) Ack(ctx context.Context, member, taskID string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.key, member)
	if taskID != "" {
		pipe.HDel(ctx, q.attemptsKey(), taskID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis ack: %w", err)
	}
	return nil
}

// Retry makes a leased task due again after a backoff that doubles with each
// failed attempt, from base up to max. It returns the delay applied.
func (q *Queue) Retry(ctx context.Context, member, taskID string, base, max time.Duration) (time.Duration, error) {
	attempts, err := q.client.HIncrBy(ctx, q.attemptsKey(), taskID, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hincrby: %w", err)
	}

	delay := base
	for i := int64(1); i < attempts && delay < max; i++ {
		delay *= 2
	}
	if delay > max {
		delay = max
	}

	if err := q.client.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(q.now().Add(delay).UnixMilli()),
		Member: member,
	}).Err(); err != nil {
		return 0, fmt.Errorf("redis zadd retry: %w", err)
	}
	return delay, nil
}

func (q *Queue) attemptsKey() string {
	return q.key + ":attempts"
}

// Len reports how many tasks are waiting, due or not.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.ZCard(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcard: %w", err)
	}
	return n, nil
}
