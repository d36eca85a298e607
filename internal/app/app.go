// Package app wires configuration into the storage, directory, cache, event
// bus and queue shared by the api and worker binaries.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alem-hub/event-networking/config"
	"github.com/alem-hub/event-networking/internal/application/command"
	"github.com/alem-hub/event-networking/internal/application/eventhandler"
	"github.com/alem-hub/event-networking/internal/domain/matchmaking"
	"github.com/alem-hub/event-networking/internal/domain/scheduling"
	"github.com/alem-hub/event-networking/internal/domain/shared"
	"github.com/alem-hub/event-networking/internal/infrastructure/external/eventsvc"
	"github.com/alem-hub/event-networking/internal/infrastructure/messaging"
	"github.com/alem-hub/event-networking/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/event-networking/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/event-networking/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/event-networking/internal/interface/http/handlers"
	"github.com/alem-hub/event-networking/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOGGER
// ══════════════════════════════════════════════════════════════════════════════

// NewLogger builds the process logger from the observability settings.
func NewLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Output = os.Stdout
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.Observability.LogFormat == string(logger.FormatText) {
		opts.Format = logger.FormatText
	}
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}

	return logger.New(opts).With(
		logger.String("app", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// INFRASTRUCTURE
// ══════════════════════════════════════════════════════════════════════════════

// Infrastructure holds the adapters selected by configuration.
type Infrastructure struct {
	Config *config.Config
	Log    *logger.Logger
	Clock  shared.Clock

	// DB is nil when neither storage nor directory use Postgres.
	DB *postgres.Connection

	// Redis is nil when REDIS_DISABLED is set.
	Redis *redis.Cache

	Profiles     matchmaking.ProfileRepository
	Appointments scheduling.AppointmentRepository
	Registry     scheduling.SlotRegistry
	Directory    scheduling.Directory
	Cache        matchmaking.SuggestionCache
	Bus          shared.EventBus
	Ranker       *matchmaking.Ranker

	Health *handlers.CompositeHealthChecker

	closers []func()
}

// Build connects every backend named in cfg. On error everything opened so
// far is closed.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Infrastructure, error) {
	infra := &Infrastructure{
		Config: cfg,
		Log:    log,
		Clock:  shared.SystemClock{},
		Health: handlers.NewCompositeHealthChecker(cfg.App.Version),
	}
	if err := infra.build(ctx); err != nil {
		infra.Close()
		return nil, err
	}
	return infra, nil
}

func (i *Infrastructure) build(ctx context.Context) error {
	cfg := i.Config
	scorer, err := matchmaking.NewScorer(matchmaking.Weights{
		Interests:    cfg.Matching.InterestWeight,
		Goals:        cfg.Matching.GoalWeight,
		Availability: cfg.Matching.AvailabilityWeight,
	})
	if err != nil {
		return fmt.Errorf("scorer: %w", err)
	}
	i.Ranker = matchmaking.NewRanker(scorer)

	if err := i.connectPostgres(ctx); err != nil {
		return err
	}
	if err := i.connectRedis(); err != nil {
		return err
	}

	i.buildStorage()
	if err := i.buildDirectory(); err != nil {
		return err
	}
	return i.buildEventBus()
}

func (i *Infrastructure) usesPostgres() bool {
	return i.Config.Storage.Backend == config.StoragePostgres ||
		i.Config.Directory.Backend == config.DirectoryPostgres
}

func (i *Infrastructure) connectPostgres(ctx context.Context) error {
	if !i.usesPostgres() {
		return nil
	}

	dbCfg := postgres.DefaultConfig(i.Config.Database.URL)
	dbCfg.MaxConns = int32(i.Config.Database.MaxOpenConns)
	dbCfg.MinConns = int32(i.Config.Database.MaxIdleConns)
	dbCfg.MaxConnLifetime = i.Config.Database.ConnMaxLifetime
	dbCfg.MaxConnIdleTime = i.Config.Database.ConnMaxIdleTime

	i.Log.Info("connecting to database")
	conn, err := postgres.NewConnection(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	i.DB = conn
	i.onClose(func() {
		i.Log.Info("closing database connection")
		conn.Close()
	})
	i.Health.AddCheck("postgres", handlers.NewPingCheck(conn))

	if i.Config.Database.MigrateOnStart {
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		i.Log.Info("database schema is up to date")
	}
	return nil
}

func (i *Infrastructure) connectRedis() error {
	if i.Config.Redis.Disabled {
		i.Log.Warn("redis disabled, using in-process cache and queue")
		return nil
	}

	i.Log.Info("connecting to redis")
	cache, err := redis.NewCache(RedisConfig(i.Config))
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	i.Redis = cache
	i.onClose(func() {
		i.Log.Info("closing redis connection")
		_ = cache.Close()
	})
	i.Health.AddCheck("redis", handlers.NewPingCheck(cache))
	return nil
}

func (i *Infrastructure) buildStorage() {
	if i.Config.Storage.Backend == config.StoragePostgres {
		i.Profiles = postgres.NewProfileRepository(i.DB)
		i.Appointments = postgres.NewAppointmentRepository(i.DB)
		i.Registry = postgres.NewSlotRegistry(i.DB, i.Clock)
	} else {
		i.Log.Warn("using in-memory storage, data is lost on restart")
		i.Profiles = memory.NewProfileRepository()
		i.Appointments = memory.NewAppointmentRepository()
		i.Registry = memory.NewSlotRegistry(i.Clock)
	}

	if i.Redis != nil {
		i.Cache = redis.NewSuggestionCache(i.Redis)
	} else {
		i.Cache = memory.NewSuggestionCache(i.Clock)
	}
}

func (i *Infrastructure) buildDirectory() error {
	cfg := i.Config.Directory
	loc := i.Config.App.Location

	switch cfg.Backend {
	case config.DirectoryPostgres:
		i.Directory = postgres.NewDirectory(i.DB, loc)

	case config.DirectoryHTTP:
		clientCfg := eventsvc.DefaultClientConfig(cfg.BaseURL)
		clientCfg.APIKey = cfg.APIKey
		clientCfg.Timeout = cfg.RequestTimeout
		clientCfg.MaxRetries = cfg.MaxRetries
		clientCfg.RetryBaseDelay = cfg.RetryBaseDelay
		clientCfg.RetryMaxDelay = cfg.RetryMaxDelay
		clientCfg.BreakerThreshold = cfg.CircuitBreakerThreshold
		clientCfg.BreakerTimeout = cfg.CircuitBreakerTimeout
		clientCfg.EventTimezone = loc
		clientCfg.Logger = i.Log

		client := eventsvc.NewClient(clientCfg)
		i.Directory = client
		i.Health.AddCheck("event_service", handlers.NewCircuitCheck(client))

	default:
		dir := memory.NewDirectory()
		if cfg.SeedFile != "" {
			n, err := LoadDirectorySeed(cfg.SeedFile, dir, eventsvc.NewMapper(loc, i.Log))
			if err != nil {
				return fmt.Errorf("directory seed: %w", err)
			}
			i.Log.Info("directory seeded", logger.String("file", cfg.SeedFile), logger.Int("registrations", n))
		}
		i.Directory = dir
	}
	return nil
}

func (i *Infrastructure) buildEventBus() error {
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = i.Log

	if i.Redis != nil && i.Config.Features.IsEnabled(config.FeaturePublishExternalEvents) {
		bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         i.Redis.Client(),
			LocalBusConfig: busCfg,
			Logger:         i.Log,
		})
		if err != nil {
			return fmt.Errorf("event bus: %w", err)
		}
		i.Bus = bus
		i.onClose(func() { _ = bus.Close() })
	} else {
		bus := messaging.NewInMemoryEventBus(busCfg)
		i.Bus = bus
		i.onClose(func() { _ = bus.Close() })
	}

	if err := eventhandler.NewOnProfileChangedHandler(i.Cache, i.Log).Register(i.Bus); err != nil {
		return fmt.Errorf("subscribe profile handler: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// NewRegenerateHandler builds the handler that recomputes suggestion lists.
func (i *Infrastructure) NewRegenerateHandler() *command.RegenerateSuggestionsHandler {
	return command.NewRegenerateSuggestionsHandler(i.Profiles, i.Cache, i.Ranker, i.Bus, command.RegenerateConfig{
		Workers:  i.Config.Matching.RegenerateWorkers,
		CacheTTL: i.Config.Matching.CacheTTL,
	}, i.Log)
}

// RegenerateFunc adapts the regenerate handler to the queue contract.
func (i *Infrastructure) RegenerateFunc() messaging.RegenerateFunc {
	h := i.NewRegenerateHandler()
	return func(ctx context.Context, eventID string) error {
		_, err := h.Handle(ctx, command.RegenerateSuggestionsCommand{EventID: eventID})
		return err
	}
}

// NewQueue returns the asynq client when the queue is enabled and an
// in-process queue otherwise.
func (i *Infrastructure) NewQueue() (command.RegenerationQueue, error) {
	if i.Config.Queue.Enabled && i.Redis != nil {
		opt, err := messaging.RedisConnOpt(RedisConfig(i.Config))
		if err != nil {
			return nil, fmt.Errorf("queue redis options: %w", err)
		}
		q := messaging.NewAsynqQueue(opt, messaging.QueueConfig{
			Queue:     i.Config.Queue.Queue,
			UniqueTTL: i.Config.Queue.UniqueTTL,
			Timeout:   i.Config.Scheduler.JobTimeout,
		}, i.Log)
		i.onClose(func() { _ = q.Close() })
		return q, nil
	}

	q := messaging.NewInProcessQueue(i.RegenerateFunc(), i.Config.Scheduler.JobTimeout, i.Log)
	i.onClose(func() { _ = q.Close() })
	return q, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

func (i *Infrastructure) onClose(fn func()) {
	i.closers = append(i.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (i *Infrastructure) Close() {
	for k := len(i.closers) - 1; k >= 0; k-- {
		i.closers[k]()
	}
	i.closers = nil
}

// RedisConfig converts the service settings into the redis package config.
func RedisConfig(cfg *config.Config) redis.Config {
	rc := redis.DefaultConfig()
	rc.URL = cfg.Redis.URL
	rc.Host = cfg.Redis.Host
	rc.Port = cfg.Redis.Port
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	rc.PoolSize = cfg.Redis.PoolSize
	rc.MinIdleConns = cfg.Redis.MinIdleConns
	rc.DialTimeout = cfg.Redis.DialTimeout
	rc.ReadTimeout = cfg.Redis.ReadTimeout
	rc.WriteTimeout = cfg.Redis.WriteTimeout
	return rc
}

// ShutdownContext returns a context bounded by the configured shutdown timeout.
func ShutdownContext(cfg *config.Config) (context.Context, context.CancelFunc) {
	timeout := cfg.App.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}
