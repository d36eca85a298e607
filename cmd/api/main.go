// Package main - точка входа HTTP API сервиса нетворкинга на мероприятиях.
//
// API отвечает за:
// - Профили для подбора собеседников и списки предложений
// - Запросы на встречи: создание, ответ получателя, отмена
// - Проверки здоровья для оркестратора
//
// Когда очередь asynq выключена, API сам выполняет фоновые задачи
// (завершение встреч и пересчёт предложений).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alem-hub/event-networking/config"
	"github.com/alem-hub/event-networking/internal/app"
	"github.com/alem-hub/event-networking/internal/application/command"
	"github.com/alem-hub/event-networking/internal/application/query"
	"github.com/alem-hub/event-networking/internal/infrastructure/scheduler"
	httpserver "github.com/alem-hub/event-networking/internal/interface/http"
	"github.com/alem-hub/event-networking/internal/interface/http/handlers"
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

	log := app.NewLogger(cfg).With(logger.Component("api"))
	log.Info("starting event networking API",
		logger.String("storage", string(cfg.Storage.Backend)),
		logger.String("directory", string(cfg.Directory.Backend)),
		logger.String("auth", string(cfg.Auth.Mode)),
		logger.String("timezone", cfg.App.Timezone),
		logger.String("features", strings.Join(cfg.Features.Enabled(), ",")),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ИНФРАСТРУКТУРА (Postgres, Redis, справочник мероприятия, шина событий)
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
	// 3. ОБРАБОТЧИКИ КОМАНД И ЗАПРОСОВ
	// ─────────────────────────────────────────────────────────────────────────
	suggestionsCfg := query.SuggestionsConfig{
		DefaultLimit: cfg.Matching.DefaultLimit,
		MaxLimit:     cfg.Matching.MaxLimit,
		UseCache:     cfg.Features.IsEnabled(config.FeatureSuggestionCache),
		SkipEngaged:  cfg.Features.IsEnabled(config.FeatureSuggestionSkipEngaged),
		CacheTTL:     cfg.Matching.CacheTTL,
	}

	auth, err := handlers.NewAuthenticator(handlers.AuthConfig{
		Mode:   string(cfg.Auth.Mode),
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.Issuer,
	}, httpserver.AuthFailure)
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}

	deps := httpserver.Dependencies{
		UpsertProfile:       command.NewUpsertProfileHandler(infra.Profiles, infra.Directory, infra.Bus, infra.Clock, log),
		DeleteProfile:       command.NewDeleteProfileHandler(infra.Profiles, infra.Bus, log),
		RequestRegeneration: command.NewRequestRegenerationHandler(queue, log),
		RequestAppointment:  command.NewRequestAppointmentHandler(infra.Appointments, infra.Registry, infra.Directory, infra.Bus, infra.Clock, log),
		RespondAppointment:  command.NewRespondAppointmentHandler(infra.Appointments, infra.Registry, infra.Directory, infra.Bus, infra.Clock, log),
		CancelAppointment:   command.NewCancelAppointmentHandler(infra.Appointments, infra.Registry, infra.Bus, infra.Clock, log),
		GetProfile:          query.NewGetProfileHandler(infra.Profiles),
		GetSuggestions:      query.NewGetSuggestionsHandler(infra.Profiles, infra.Cache, infra.Ranker, infra.Appointments, suggestionsCfg, log),
		ListAppointments:    query.NewListAppointmentsHandler(infra.Appointments),
		ListSlotConflicts:   query.NewListSlotConflictsHandler(infra.Directory),
		Authenticator:       auth,
		HealthChecker:       infra.Health,
		Logger:              log,
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ФОНОВЫЕ ЗАДАЧИ (только без отдельного worker)
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled && !cfg.Queue.Enabled {
		sched, err = infra.NewScheduler(queue)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		log.Info("scheduler running in API process")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpserver.DefaultConfig()
	serverCfg.Host = cfg.Server.Host
	serverCfg.Port = cfg.Server.Port
	serverCfg.ReadTimeout = cfg.Server.ReadTimeout
	serverCfg.WriteTimeout = cfg.Server.WriteTimeout
	serverCfg.IdleTimeout = cfg.Server.IdleTimeout
	serverCfg.AllowedOrigins = cfg.Server.AllowedOrigins
	serverCfg.RateLimitRPS = cfg.Server.RateLimitRPS
	serverCfg.RateLimitBurst = cfg.Server.RateLimitBurst
	serverCfg.Version = cfg.App.Version

	server := httpserver.NewServer(serverCfg, deps)
	serverErr := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := app.ShutdownContext(cfg)
	defer cancel()

	log.Info("starting graceful shutdown", logger.Duration("timeout", cfg.App.ShutdownTimeout))
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", logger.Err(err))
	}
	if sched != nil {
		if err := sched.Stop(); err != nil {
			log.Error("scheduler shutdown failed", logger.Err(err))
		}
	}

	log.Info("shutdown completed")
	return nil
}
