package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"mmlens/pkg/logger"
)

const (
	keyPrefix          = "mmlens:jobs"
	retrySweepInterval = 5 * time.Second
	popTimeout         = time.Second
)

// RedisQueue runs registered jobs off a Redis list. A failed job is
// rescheduled onto a retry set scored by its due time; once it exhausts
// RetryLimit attempts it moves to a dead-letter list for inspection.
// Publishing and consuming share the instance, so a running consumer can
// also enqueue.
type RedisQueue struct {
	l       *logger.Logger
	cfg     *QueueConfig
	client  *redis.Client
	jobs    map[string]Job
	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRedisConsumer builds a queue with the given jobs registered. Start
// must be called before it consumes or accepts messages.
func NewRedisConsumer(l *logger.Logger, cfg *QueueConfig, client *redis.Client, jobs []Job) *RedisQueue {
	if cfg == nil {
		cfg = &QueueConfig{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &RedisQueue{
		l:      l,
		cfg:    cfg,
		client: client,
		jobs:   make(map[string]Job),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, job := range jobs {
		if _, dup := q.jobs[job.Type()]; dup {
			l.Warn("job already registered", logger.String("type", job.Type()))
			continue
		}
		q.jobs[job.Type()] = job
	}
	return q
}

func (q *RedisQueue) Start() error {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return fmt.Errorf("queue already running")
	}
	q.running = true
	q.mu.Unlock()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.client.Ping(pingCtx).Err(); err != nil {
		q.mu.Lock()
		q.running = false
		q.mu.Unlock()
		return fmt.Errorf("queue redis ping: %w", err)
	}

	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.wg.Add(1)
	go q.retrySweeper()

	q.l.Info("job queue started",
		logger.Int("workers", q.cfg.Workers),
		logger.Int("jobs", len(q.jobs)))
	return nil
}

func (q *RedisQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.mu.Unlock()

	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("queue stop: %w", ctx.Err())
	case <-done:
		q.l.Info("job queue stopped")
		return nil
	}
}

// PublishMessage enqueues payload for the job registered under msgType.
func (q *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	q.mu.RLock()
	running := q.running
	_, known := q.jobs[msgType]
	q.mu.RUnlock()

	if !running {
		return fmt.Errorf("queue not running")
	}
	if !known {
		return fmt.Errorf("no job registered for type %q", msgType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	env := envelope{
		ID:       strconv.FormatInt(time.Now().UnixNano(), 10),
		Type:     msgType,
		Payload:  raw,
		Enqueued: time.Now(),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return q.client.LPush(ctx, pendingKey(), data).Err()
}

func (q *RedisQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		default:
			q.popAndRun()
		}
	}
}

func (q *RedisQueue) popAndRun() {
	res, err := q.client.BRPop(q.ctx, popTimeout, pendingKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		q.l.Error("queue pop", logger.Error(err))
		time.Sleep(time.Second)
		return
	}
	if len(res) < 2 {
		return
	}

	var env envelope
	if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
		q.l.Error("queue decode", logger.Error(err))
		return
	}

	job, ok := q.jobs[env.Type]
	if !ok {
		q.l.Error("no job for message", logger.String("type", env.Type), logger.String("id", env.ID))
		return
	}

	start := time.Now()
	err = job.Handle(q.ctx, env.Payload)
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}

	q.l.Error("job failed",
		logger.String("job", job.Name()),
		logger.String("id", env.ID),
		logger.Int("attempt", env.Attempts+1),
		logger.Duration("elapsed", time.Since(start)),
		logger.Error(err))

	env.Attempts++
	if env.Attempts <= q.cfg.RetryLimit {
		q.scheduleRetry(env)
	} else {
		q.deadLetter(env)
	}
}

func (q *RedisQueue) scheduleRetry(env envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		q.l.Error("queue retry marshal", logger.Error(err))
		return
	}
	due := time.Now().Add(q.cfg.RetryDelay)
	if err := q.client.ZAdd(context.Background(), retryKey(), redis.Z{
		Score:  float64(due.Unix()),
		Member: data,
	}).Err(); err != nil {
		q.l.Error("queue retry schedule", logger.Error(err))
	}
}

func (q *RedisQueue) deadLetter(env envelope) {
	q.l.Error("job moved to dead letter",
		logger.String("type", env.Type),
		logger.String("id", env.ID))
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	if err := q.client.LPush(context.Background(), deadKey(), data).Err(); err != nil {
		q.l.Error("queue dead letter push", logger.Error(err))
	}
}

// retrySweeper moves due retries back onto the pending list.
func (q *RedisQueue) retrySweeper() {
	defer q.wg.Done()
	ticker := time.NewTicker(retrySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.sweepRetries()
		}
	}
}

func (q *RedisQueue) sweepRetries() {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	due, err := q.client.ZRangeByScore(q.ctx, retryKey(), &redis.ZRangeBy{Min: "0", Max: now}).Result()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			q.l.Error("queue retry sweep", logger.Error(err))
		}
		return
	}

	for _, member := range due {
		pipe := q.client.TxPipeline()
		pipe.ZRem(q.ctx, retryKey(), member)
		pipe.LPush(q.ctx, pendingKey(), member)
		if _, err := pipe.Exec(q.ctx); err != nil && !errors.Is(err, context.Canceled) {
			q.l.Error("queue retry requeue", logger.Error(err))
		}
	}
}

func pendingKey() string { return keyPrefix + ":pending" }
func retryKey() string   { return keyPrefix + ":retry" }
func deadKey() string    { return keyPrefix + ":dead" }
