package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"assetflow/internal/config"
)

func setStorageEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ASSETFLOW_STORAGE_ENDPOINT", "localhost:9000")
	t.Setenv("ASSETFLOW_STORAGE_BUCKET", "media")
}

func TestLoadDefaultConfigUsesEnvStorageAndExpandsPaths(t *testing.T) {
	setStorageEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "assetflow")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "assetflow.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.API.Bind != "127.0.0.1:7590" {
		t.Fatalf("unexpected api bind: %q", cfg.API.Bind)
	}
	if cfg.Storage.Endpoint != "localhost:9000" || cfg.Storage.Bucket != "media" {
		t.Fatalf("expected storage from env, got %q/%q", cfg.Storage.Endpoint, cfg.Storage.Bucket)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("expected sqlite driver by default, got %q", cfg.Database.Driver)
	}
	if cfg.Storage.DefaultChunkSize != 10_000_000 {
		t.Fatalf("unexpected default chunk size: %d", cfg.Storage.DefaultChunkSize)
	}
	if cfg.PartURLTTL().Minutes() != 15 {
		t.Fatalf("unexpected part url ttl: %v", cfg.PartURLTTL())
	}
	if cfg.SessionTTL().Hours() != 24 {
		t.Fatalf("unexpected session ttl: %v", cfg.SessionTTL())
	}
	if cfg.Processing.OnPublish {
		t.Fatal("expected on_publish disabled by default")
	}
}

func TestLoadCustomConfigOverrides(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[paths]
data_dir = "~/af-data"

[api]
bind = "0.0.0.0:9000"
allowed_origins = [" https://editor.example.com ", ""]

[storage]
endpoint = "s3.example.com"
bucket = "masters"
use_ssl = true
default_chunk_size = 8388608

[notifications.lists]
Upload = ["ops@example.com", " "]
approval = ["lead@example.com"]

[processing]
transcoder_endpoint = "https://transcode.example.com/jobs"
on_publish = true

[logging]
format = " JSON "
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q to exist, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "af-data") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.API.Bind != "0.0.0.0:9000" {
		t.Fatalf("unexpected api bind: %q", cfg.API.Bind)
	}
	if len(cfg.API.AllowedOrigins) != 1 || cfg.API.AllowedOrigins[0] != "https://editor.example.com" {
		t.Fatalf("unexpected allowed origins: %v", cfg.API.AllowedOrigins)
	}
	if cfg.Storage.DefaultChunkSize != 8388608 {
		t.Fatalf("unexpected chunk size: %d", cfg.Storage.DefaultChunkSize)
	}
	if got := cfg.Notifications.Lists["upload"]; len(got) != 1 || got[0] != "ops@example.com" {
		t.Fatalf("unexpected upload list: %v", got)
	}
	if !cfg.Processing.OnPublish {
		t.Fatal("expected on_publish enabled")
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json log format, got %q", cfg.Logging.Format)
	}
}

func TestEnvOverridesSecrets(t *testing.T) {
	setStorageEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ASSETFLOW_API_TOKEN", "env-token")
	t.Setenv("ASSETFLOW_STORAGE_ACCESS_KEY", "env-access")
	t.Setenv("ASSETFLOW_STORAGE_SECRET_KEY", "env-secret")
	t.Setenv("ASSETFLOW_MAIL_TOKEN", "env-mail")
	t.Setenv("ASSETFLOW_TRANSCODER_TOKEN", "env-transcoder")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.API.Token != "env-token" {
		t.Errorf("expected api token from env, got %q", cfg.API.Token)
	}
	if cfg.Storage.AccessKey != "env-access" || cfg.Storage.SecretKey != "env-secret" {
		t.Errorf("expected storage keys from env, got %q/%q", cfg.Storage.AccessKey, cfg.Storage.SecretKey)
	}
	if cfg.Notifications.MailToken != "env-mail" {
		t.Errorf("expected mail token from env, got %q", cfg.Notifications.MailToken)
	}
	if cfg.Processing.TranscoderToken != "env-transcoder" {
		t.Errorf("expected transcoder token from env, got %q", cfg.Processing.TranscoderToken)
	}
}

func TestLoadRequiresStorageEndpoint(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ASSETFLOW_STORAGE_ENDPOINT", "")
	_, _, _, err := config.Load("")
	if err == nil {
		t.Fatal("expected error without storage endpoint")
	}
	if !strings.Contains(err.Error(), "storage.endpoint") {
		t.Fatalf("expected storage.endpoint in error, got %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "your_access_key_here") {
		t.Fatalf("sample config missing placeholder access key: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.DataDir, "assetflow") {
		t.Fatalf("expected data dir to contain assetflow, got %q", cfg.Paths.DataDir)
	}
	if cfg.Storage.MaxParts != 10000 {
		t.Fatalf("unexpected sample max parts: %d", cfg.Storage.MaxParts)
	}
}

func validConfig() config.Config {
	cfg := config.Default()
	cfg.Storage.Endpoint = "localhost:9000"
	cfg.Storage.Bucket = "media"
	return cfg
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"postgres without dsn", func(c *config.Config) { c.Database.Driver = "postgres" }},
		{"unknown driver", func(c *config.Config) { c.Database.Driver = "mysql" }},
		{"endpoint with scheme", func(c *config.Config) { c.Storage.Endpoint = "http://localhost:9000" }},
		{"missing bucket", func(c *config.Config) { c.Storage.Bucket = "" }},
		{"zero ttl", func(c *config.Config) { c.Storage.PartURLTTLSeconds = 0 }},
		{"chunk below minimum", func(c *config.Config) { c.Storage.DefaultChunkSize = c.Storage.MinChunkSize - 1 }},
		{"bad mail endpoint", func(c *config.Config) { c.Notifications.MailEndpoint = "ftp://mail" }},
		{"unknown list", func(c *config.Config) { c.Notifications.Lists = map[string][]string{"review": {"a@b"}} }},
		{"zero sweep", func(c *config.Config) { c.Workflow.SweepIntervalSeconds = 0 }},
		{"bad log level", func(c *config.Config) { c.Logging.Level = "verbose" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}

	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestRecipientListsMergesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recipients.yaml")
	yamlContent := "lists:\n  upload:\n    - media-ops@example.com\n  Rejection:\n    - editor@example.com\n"
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write recipients: %v", err)
	}

	cfg := validConfig()
	cfg.Notifications.Lists = map[string][]string{"upload": {"lead@example.com"}}
	cfg.Notifications.RecipientsFile = path

	lists, err := cfg.RecipientLists()
	if err != nil {
		t.Fatalf("RecipientLists failed: %v", err)
	}
	if got := lists["upload"]; len(got) != 2 || got[0] != "lead@example.com" || got[1] != "media-ops@example.com" {
		t.Fatalf("unexpected upload recipients: %v", got)
	}
	if got := lists["rejection"]; len(got) != 1 {
		t.Fatalf("expected rejection list from file, got %v", got)
	}

	cfg.Notifications.RecipientsFile = filepath.Join(dir, "missing.yaml")
	if _, err := cfg.RecipientLists(); err != nil {
		t.Fatalf("missing recipients file should be ignored, got %v", err)
	}
}
