package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages runtime toggles for optional behaviour of the
// matchmaking service. Flags are global (no per-participant rollout):
// they switch background behaviour, not user-facing experiments.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool
}

// Predefined feature flag names.
const (
	// === Suggestions ===
	FeatureSuggestionCache       = "suggestions.cache"        // cache ranked lists in Redis
	FeatureRegenerateOnSchedule  = "suggestions.auto_refresh" // regenerate dirty events periodically
	FeatureSuggestionSkipEngaged = "suggestions.skip_engaged" // hide peers with a live appointment

	// === Appointments ===
	FeatureExpirePendingRequests = "appointments.expire_pending" // sweep cancels undecided past requests
	FeaturePublishExternalEvents = "appointments.publish_events" // mirror domain events to Redis pub/sub
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features: make(map[string]*Feature),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	defaults := []Feature{
		{Name: FeatureSuggestionCache, Description: "Cache ranked suggestion lists", Enabled: true},
		{Name: FeatureRegenerateOnSchedule, Description: "Periodically regenerate events with changed profiles", Enabled: true},
		{Name: FeatureSuggestionSkipEngaged, Description: "Exclude peers already in a live appointment", Enabled: true},
		{Name: FeatureExpirePendingRequests, Description: "Cancel pending requests whose slot has ended", Enabled: true},
		{Name: FeaturePublishExternalEvents, Description: "Publish domain events for external collaborators", Enabled: false},
	}
	for i := range defaults {
		f := defaults[i]
		ff.features[f.Name] = &f
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false
// Example: FEATURE_SUGGESTIONS_CACHE=false
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		if val := os.Getenv(featureNameToEnvKey(name)); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "suggestions.auto_refresh" -> "FEATURE_SUGGESTIONS_AUTO_REFRESH"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled reports whether a feature is on. Unknown features are off.
func (ff *FeatureFlags) IsEnabled(name string) bool {
	if ff == nil {
		return false
	}
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	f, ok := ff.features[name]
	return ok && f.Enabled
}

// Set toggles a feature at runtime.
func (ff *FeatureFlags) Set(name string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	f, ok := ff.features[name]
	if !ok {
		return &FeatureFlagError{Feature: name, Message: "unknown feature"}
	}
	f.Enabled = enabled
	return nil
}

// Enabled returns the names of enabled features, sorted.
func (ff *FeatureFlags) Enabled() []string {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make([]string, 0, len(ff.features))
	for name, f := range ff.features {
		if f.Enabled {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// FeatureFlagError is returned for operations on unknown flags.
type FeatureFlagError struct {
	Feature string
	Message string
}

func (e *FeatureFlagError) Error() string {
	return "feature flag " + e.Feature + ": " + e.Message
}
