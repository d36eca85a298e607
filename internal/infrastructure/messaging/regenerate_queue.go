package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/alem-hub/event-networking/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/event-networking/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// TASKS
// ══════════════════════════════════════════════════════════════════════════════

// TypeRegenerateSuggestions recomputes every suggestion list of one event.
const TypeRegenerateSuggestions = "suggestions:regenerate"

// RegeneratePayload is the task payload of TypeRegenerateSuggestions.
type RegeneratePayload struct {
	EventID string `json:"event_id"`
}

// NewRegenerateTask builds a regeneration task for an event.
func NewRegenerateTask(eventID string, opts ...asynq.Option) (*asynq.Task, error) {
	if eventID == "" {
		return nil, errors.New("regenerate task: event id is required")
	}
	payload, err := json.Marshal(RegeneratePayload{EventID: eventID})
	if err != nil {
		return nil, fmt.Errorf("regenerate task: marshal payload: %w", err)
	}
	return asynq.NewTask(TypeRegenerateSuggestions, payload, opts...), nil
}

// ParseRegeneratePayload decodes the payload of a regeneration task.
func ParseRegeneratePayload(t *asynq.Task) (RegeneratePayload, error) {
	var p RegeneratePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("regenerate task: unmarshal payload: %w", err)
	}
	if p.EventID == "" {
		return p, errors.New("regenerate task: event id is required")
	}
	return p, nil
}

// RegenerateFunc recomputes suggestions of one event.
type RegenerateFunc func(ctx context.Context, eventID string) error

// RedisConnOpt converts the service Redis config into asynq connection options.
func RedisConnOpt(cfg redis.Config) (asynq.RedisClientOpt, error) {
	opts, err := cfg.Options()
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Network:      opts.Network,
		Addr:         opts.Addr,
		Username:     opts.Username,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
		TLSConfig:    opts.TLSConfig,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ASYNQ QUEUE
// ══════════════════════════════════════════════════════════════════════════════

// QueueConfig holds enqueue options.
type QueueConfig struct {
	// Queue is the asynq queue name.
	Queue string

	// UniqueTTL deduplicates regenerate tasks of the same event.
	UniqueTTL time.Duration

	MaxRetry int
	Timeout  time.Duration
}

// AsynqQueue enqueues regeneration tasks for the worker process.
type AsynqQueue struct {
	client *asynq.Client
	cfg    QueueConfig
	log    *logger.Logger
}

// NewAsynqQueue creates a queue client.
func NewAsynqQueue(opt asynq.RedisConnOpt, cfg QueueConfig, log *logger.Logger) *AsynqQueue {
	if cfg.Queue == "" {
		cfg.Queue = "default"
	}
	if cfg.UniqueTTL <= 0 {
		cfg.UniqueTTL = 2 * time.Minute
	}
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if log == nil {
		log = logger.Default()
	}
	return &AsynqQueue{
		client: asynq.NewClient(opt),
		cfg:    cfg,
		log:    log.With(logger.Component("regenerate_queue")),
	}
}

// EnqueueRegenerate schedules regeneration of an event. An already queued
// task for the same event counts as success.
func (q *AsynqQueue) EnqueueRegenerate(ctx context.Context, eventID string) error {
	task, err := NewRegenerateTask(eventID,
		asynq.Queue(q.cfg.Queue),
		asynq.Unique(q.cfg.UniqueTTL),
		asynq.MaxRetry(q.cfg.MaxRetry),
		asynq.Timeout(q.cfg.Timeout),
	)
	if err != nil {
		return err
	}

	info, err := q.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
		q.log.Debug("regeneration already queued", logger.EventID(eventID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue regenerate: %w", err)
	}

	q.log.Info("regeneration enqueued",
		logger.EventID(eventID),
		logger.String("task_id", info.ID),
		logger.String("queue", info.Queue),
	)
	return nil
}

// Close closes the client connection.
func (q *AsynqQueue) Close() error {
	return q.client.Close()
}

// ══════════════════════════════════════════════════════════════════════════════
// IN-PROCESS QUEUE
// Used when Redis is disabled: runs regeneration on background goroutines.
// ══════════════════════════════════════════════════════════════════════════════

// InProcessQueue runs regeneration in the current process, at most one run
// per event at a time. A request arriving during a run schedules one rerun.
type InProcessQueue struct {
	run     RegenerateFunc
	timeout time.Duration
	log     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running map[string]bool
	rerun   map[string]bool
	closed  bool
}

// NewInProcessQueue creates a queue that calls run for each request.
func NewInProcessQueue(run RegenerateFunc, timeout time.Duration, log *logger.Logger) *InProcessQueue {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if log == nil {
		log = logger.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &InProcessQueue{
		run:     run,
		timeout: timeout,
		log:     log.With(logger.Component("regenerate_queue")),
		ctx:     ctx,
		cancel:  cancel,
		running: make(map[string]bool),
		rerun:   make(map[string]bool),
	}
}

// EnqueueRegenerate implements the regeneration queue.
func (q *InProcessQueue) EnqueueRegenerate(_ context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("regenerate: event id is required")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.running[eventID] {
		q.rerun[eventID] = true
		return nil
	}

	q.running[eventID] = true
	q.wg.Add(1)
	go q.loop(eventID)
	return nil
}

func (q *InProcessQueue) loop(eventID string) {
	defer q.wg.Done()

	for {
		ctx, cancel := context.WithTimeout(q.ctx, q.timeout)
		if err := q.run(ctx, eventID); err != nil {
			q.log.Error("regeneration failed", logger.EventID(eventID), logger.Err(err))
		}
		cancel()

		q.mu.Lock()
		if !q.rerun[eventID] || q.closed {
			delete(q.running, eventID)
			delete(q.rerun, eventID)
			q.mu.Unlock()
			return
		}
		delete(q.rerun, eventID)
		q.mu.Unlock()
	}
}

// Close cancels running jobs and waits for them.
func (q *InProcessQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
	return nil
}

// Wait blocks until no regeneration is running.
func (q *InProcessQueue) Wait() {
	q.wg.Wait()
}

// ErrQueueClosed is returned after Close.
var ErrQueueClosed = errors.New("queue is closed")
