// Package main - точка входа для фоновых процессов (Worker) сервиса нетворкинга.
//
// Worker отвечает за:
// - Пересчёт списков предложений по задачам из очереди asynq
// - Периодическое завершение прошедших встреч (ACCEPTED -> COMPLETED)
// - Постановку в очередь мероприятий с изменёнными профилями
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alem-hub/event-networking/config"
	"github.com/alem-hub/event-networking/internal/app"
	"github.com/alem-hub/event-networking/internal/infrastructure/messaging"
	"github.com/alem-hub/event-networking/pkg/logger"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.Queue.Enabled {
		return errors.New("worker requires QUEUE_ENABLED=true; without the queue the API runs background jobs itself")
	}

	log := app.NewLogger(cfg).With(logger.Component("worker"))
	log.Info("starting event networking worker",
		logger.String("queue", cfg.Queue.Queue),
		logger.Int("concurrency", cfg.Queue.Concurrency),
		logger.String("features", strings.Join(cfg.Features.Enabled(), ",")),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ИНФРАСТРУКТУРА
	// ─────────────────────────────────────────────────────────────────────────
	infra, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	queue, err := infra.NewQueue()
	if err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. СЕРВЕР ЗАДАЧ ASYNQ
	// ─────────────────────────────────────────────────────────────────────────
	opt, err := messaging.RedisConnOpt(app.RedisConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to build redis options: %w", err)
	}

	worker := messaging.NewWorkerServer(opt, messaging.WorkerConfig{
		Concurrency:     cfg.Queue.Concurrency,
		Queue:           cfg.Queue.Queue,
		ShutdownTimeout: cfg.App.ShutdownTimeout,
	}, log)
	worker.HandleRegenerate(infra.RegenerateFunc())

	if err := worker.Start(); err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Scheduler.Enabled {
		sched, err := infra.NewScheduler(queue)
		if err != nil {
			worker.Shutdown()
			return err
		}
		if err := sched.Start(ctx); err != nil {
			worker.Shutdown()
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			if err := sched.Stop(); err != nil {
				log.Warn("scheduler stop", logger.Err(err))
			}
		}()
	} else {
		log.Warn("scheduler disabled, only queued tasks will run")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info("received shutdown signal", logger.Duration("timeout", cfg.App.ShutdownTimeout))

	worker.Shutdown()

	log.Info("shutdown completed")
	return nil
}
