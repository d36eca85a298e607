package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:       AppConfig{Environment: EnvDevelopment},
		Storage:   StorageConfig{Backend: StorageMemory},
		Directory: DirectoryConfig{Backend: DirectoryMemory},
		Auth:      AuthConfig{Mode: AuthModeHeader},
		Queue:     QueueConfig{Enabled: false},
		Redis:     RedisConfig{Disabled: true},
		Scheduler: SchedulerConfig{Enabled: true, SweepInterval: time.Minute, RefreshInterval: time.Minute},
		Matching: MatchingConfig{
			InterestWeight:     0.5,
			GoalWeight:         0.3,
			AvailabilityWeight: 0.2,
			DefaultLimit:       20,
			MaxLimit:           100,
			RegenerateWorkers:  2,
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{
			name:   "weights must sum to one",
			mutate: func(c *Config) { c.Matching.GoalWeight = 0.5 },
			want:   "must sum to 1",
		},
		{
			name:   "negative weight",
			mutate: func(c *Config) { c.Matching.GoalWeight = -0.1; c.Matching.InterestWeight = 0.9 },
			want:   "non-negative",
		},
		{
			name:   "postgres storage without url",
			mutate: func(c *Config) { c.Storage.Backend = StoragePostgres },
			want:   "DATABASE_URL is required",
		},
		{
			name:   "http directory without base url",
			mutate: func(c *Config) { c.Directory.Backend = DirectoryHTTP },
			want:   "DIRECTORY_BASE_URL",
		},
		{
			name:   "jwt without secret",
			mutate: func(c *Config) { c.Auth.Mode = AuthModeJWT },
			want:   "AUTH_JWT_SECRET",
		},
		{
			name:   "header auth in production",
			mutate: func(c *Config) { c.App.Environment = EnvProduction },
			want:   "AUTH_MODE=header is not allowed",
		},
		{
			name:   "queue without redis",
			mutate: func(c *Config) { c.Queue.Enabled = true },
			want:   "QUEUE_ENABLED requires Redis",
		},
		{
			name:   "default limit above max",
			mutate: func(c *Config) { c.Matching.DefaultLimit = 500 },
			want:   "MATCH_DEFAULT_LIMIT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("ENV_FILE", "does-not-exist.env")
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("DIRECTORY_BACKEND", "memory")
	t.Setenv("AUTH_MODE", "header")
	t.Setenv("REDIS_DISABLED", "true")
	t.Setenv("QUEUE_ENABLED", "false")
	t.Setenv("MATCH_WEIGHT_INTERESTS", "0.6")
	t.Setenv("MATCH_WEIGHT_GOALS", "0.2")
	t.Setenv("MATCH_WEIGHT_AVAILABILITY", "0.2")
	t.Setenv("HTTP_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
	assert.InDelta(t, 0.6, cfg.Matching.InterestWeight, 1e-9)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, time.UTC, cfg.App.Location)
}

func TestFeatureFlags_EnvOverride(t *testing.T) {
	t.Setenv("FEATURE_SUGGESTIONS_CACHE", "false")

	ff := LoadFeatureFlags()
	assert.False(t, ff.IsEnabled(FeatureSuggestionCache))
	assert.True(t, ff.IsEnabled(FeatureExpirePendingRequests))
	assert.False(t, ff.IsEnabled("unknown.flag"))

	require.NoError(t, ff.Set(FeatureSuggestionCache, true))
	assert.True(t, ff.IsEnabled(FeatureSuggestionCache))
	assert.Error(t, ff.Set("unknown.flag", true))

	require.NoError(t, ff.Set(FeaturePublishExternalEvents, false))
	assert.Contains(t, ff.Enabled(), FeatureSuggestionCache)
	assert.NotContains(t, ff.Enabled(), FeaturePublishExternalEvents)
	assert.IsNonDecreasing(t, ff.Enabled())
}
