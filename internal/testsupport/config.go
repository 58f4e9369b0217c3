package testsupport

import (
	"path/filepath"
	"testing"

	"herald/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Storage.BucketDir = filepath.Join(base, "bucket")
	cfg.Storage.PublicBaseURL = "http://media.test/bucket"
	cfg.XAPI.ConsumerKey = "test-consumer"
	cfg.XAPI.ConsumerSecret = "test-consumer-secret"
	cfg.XAPI.Accounts = map[string]config.XAccount{
		"main": {AccessToken: "test-token", AccessSecret: "test-secret"},
	}
	cfg.Instagram.AccessToken = "test-graph-token"
	cfg.Instagram.Accounts = map[string]config.IGAccount{
		"main": {BusinessID: "17890000000000000"},
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithSlots overrides the posting slots on the test config.
func WithSlots(slots ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Schedule.Slots = slots
	}
}

// WithTimezone overrides the schedule timezone on the test config.
func WithTimezone(tz string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Schedule.Timezone = tz
	}
}
