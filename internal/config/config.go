package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// API contains HTTP listener configuration.
type API struct {
	Bind           string   `toml:"bind"`
	Token          string   `toml:"token"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Database selects the persistence backend.
type Database struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// Storage contains S3-compatible object storage settings and chunking limits.
type Storage struct {
	Endpoint          string `toml:"endpoint"`
	Bucket            string `toml:"bucket"`
	Region            string `toml:"region"`
	AccessKey         string `toml:"access_key"`
	SecretKey         string `toml:"secret_key"`
	UseSSL            bool   `toml:"use_ssl"`
	PartURLTTLSeconds int    `toml:"part_url_ttl_seconds"`
	DefaultChunkSize  int64  `toml:"default_chunk_size"`
	MinChunkSize      int64  `toml:"min_chunk_size"`
	MaxParts          int    `toml:"max_parts"`
	SessionTTLHours   int    `toml:"session_ttl_hours"`
}

// Notifications contains mail relay settings and per-event recipient lists.
type Notifications struct {
	MailEndpoint   string              `toml:"mail_endpoint"`
	MailToken      string              `toml:"mail_token"`
	From           string              `toml:"from"`
	RequestTimeout int                 `toml:"request_timeout"`
	RecipientsFile string              `toml:"recipients_file"`
	Lists          map[string][]string `toml:"lists"`
}

// Processing contains the transcoding collaborator settings.
type Processing struct {
	TranscoderEndpoint string `toml:"transcoder_endpoint"`
	TranscoderToken    string `toml:"transcoder_token"`
	RequestTimeout     int    `toml:"request_timeout"`
	OnPublish          bool   `toml:"on_publish"`
}

// Workflow contains background timing.
type Workflow struct {
	SweepIntervalSeconds int `toml:"sweep_interval_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for assetflow.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - API: HTTP bind address, bearer token, CORS origins
//   - Database: sqlite (default) or postgres
//   - Storage: presigned multipart uploads and chunk limits
//   - Notifications: mail relay and recipient lists
//   - Processing: transcoder endpoint and publish trigger
//   - Workflow: upload session sweep interval
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	Database      Database      `toml:"database"`
	Storage       Storage       `toml:"storage"`
	Notifications Notifications `toml:"notifications"`
	Processing    Processing    `toml:"processing"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	if err := loadDotEnv(); err != nil {
		return nil, "", false, err
	}

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv reads ./.env into the process environment unless ASSETFLOW_ENV is
// production. Variables already set are left untouched.
func loadDotEnv() error {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("ASSETFLOW_ENV")), "production") {
		return nil
	}
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("assetflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite file location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "assetflow.db")
}

// PartURLTTL returns the validity window for issued part destinations.
func (c *Config) PartURLTTL() time.Duration {
	return time.Duration(c.Storage.PartURLTTLSeconds) * time.Second
}

// SessionTTL returns how long an upload session may stay non-terminal before the sweep reclaims it.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Storage.SessionTTLHours) * time.Hour
}

// SweepInterval returns the period between expired session sweeps.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Workflow.SweepIntervalSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
