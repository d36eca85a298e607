package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/alem-hub/event-networking/internal/domain/shared"
	"github.com/alem-hub/event-networking/pkg/logger"
)

// WorkerConfig holds asynq server settings.
type WorkerConfig struct {
	Concurrency     int
	Queue           string
	ShutdownTimeout time.Duration
}

// WorkerServer runs asynq task handlers.
type WorkerServer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logger.Logger
}

// NewWorkerServer creates a worker server consuming cfg.Queue.
func NewWorkerServer(opt asynq.RedisConnOpt, cfg WorkerConfig, log *logger.Logger) *WorkerServer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Queue == "" {
		cfg.Queue = "default"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Default()
	}
	log = log.With(logger.Component("worker_server"))

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency:     cfg.Concurrency,
		Queues:          map[string]int{cfg.Queue: 1},
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          log.Logrus(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			taskID := ""
			if rw := task.ResultWriter(); rw != nil {
				taskID = rw.TaskID()
			}
			retryCount, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			log.Error("task failed",
				logger.String("task_id", taskID),
				logger.String("task_type", task.Type()),
				logger.Int("retries", retryCount),
				logger.Int("max_retry", maxRetry),
				logger.Err(err),
			)
		}),
	})

	return &WorkerServer{
		server: server,
		mux:    asynq.NewServeMux(),
		log:    log,
	}
}

// HandleRegenerate registers the suggestion regeneration handler.
func (w *WorkerServer) HandleRegenerate(run RegenerateFunc) {
	w.mux.HandleFunc(TypeRegenerateSuggestions, RegenerateTaskHandler(run, w.log))
}

// RegenerateTaskHandler adapts run to an asynq handler. Malformed payloads
// and validation failures are not retried.
func RegenerateTaskHandler(run RegenerateFunc, log *logger.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		p, err := ParseRegeneratePayload(t)
		if err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		start := time.Now()
		if err := run(ctx, p.EventID); err != nil {
			if shared.IsValidation(err) || shared.IsNotFound(err) {
				return fmt.Errorf("regenerate %s: %v: %w", p.EventID, err, asynq.SkipRetry)
			}
			return fmt.Errorf("regenerate %s: %w", p.EventID, err)
		}

		log.Info("suggestions regenerated",
			logger.EventID(p.EventID),
			logger.Latency(time.Since(start)),
		)
		return nil
	}
}

// Start runs the server in background goroutines.
func (w *WorkerServer) Start() error {
	w.log.Info("worker server starting")
	if err := w.server.Start(w.mux); err != nil {
		if errors.Is(err, asynq.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("start worker server: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight tasks and stops the server.
func (w *WorkerServer) Shutdown() {
	w.log.Info("shutting down worker server")
	w.server.Shutdown()
	w.log.Info("worker server stopped")
}
