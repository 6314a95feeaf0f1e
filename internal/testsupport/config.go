package testsupport

import (
	"path/filepath"
	"testing"

	"assetflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Chunk limits are lowered so tests can use small declared sizes.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.Storage.Endpoint = "storage.test:9000"
	cfgVal.Storage.Bucket = "assetflow-test"
	cfgVal.Storage.UseSSL = false
	cfgVal.Storage.MinChunkSize = 1
	cfgVal.Notifications.Lists = map[string][]string{}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithRecipients sets the configured recipient list for one event type.
func WithRecipients(event string, recipients ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.Lists[event] = recipients
	}
}

// WithPublishProcessing enables the processing request on publish.
func WithPublishProcessing() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Processing.OnPublish = true
	}
}

// WithAPIToken sets the bearer token required by the HTTP API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.Token = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
