package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var knownEventLists = map[string]struct{}{
	"upload":    {},
	"edit":      {},
	"approval":  {},
	"publish":   {},
	"rejection": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateProcessing(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "sqlite":
		return nil
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database.dsn must be set when database.driver is postgres (or export ASSETFLOW_DATABASE_DSN)")
		}
		return nil
	default:
		return fmt.Errorf("database.driver: unsupported value %q (expected sqlite or postgres)", c.Database.Driver)
	}
}

func (c *Config) validateStorage() error {
	if c.Storage.Endpoint == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("storage.endpoint is required. Set ASSETFLOW_STORAGE_ENDPOINT or edit %s (create with 'assetflow config init')", defaultPath)
	}
	if strings.Contains(c.Storage.Endpoint, "://") {
		return errors.New("storage.endpoint must be host[:port] without a scheme; use storage.use_ssl to select https")
	}
	if c.Storage.Bucket == "" {
		return errors.New("storage.bucket must be set")
	}
	if err := ensurePositiveMap(map[string]int{
		"storage.part_url_ttl_seconds": c.Storage.PartURLTTLSeconds,
		"storage.max_parts":            c.Storage.MaxParts,
		"storage.session_ttl_hours":    c.Storage.SessionTTLHours,
	}); err != nil {
		return err
	}
	if c.Storage.MinChunkSize <= 0 {
		return errors.New("storage.min_chunk_size must be positive")
	}
	if c.Storage.DefaultChunkSize < c.Storage.MinChunkSize {
		return errors.New("storage.default_chunk_size must be at least storage.min_chunk_size")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.MailEndpoint != "" {
		if err := validateHTTPURL("notifications.mail_endpoint", c.Notifications.MailEndpoint); err != nil {
			return err
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive (seconds)")
	}
	for event := range c.Notifications.Lists {
		if _, ok := knownEventLists[event]; !ok {
			return fmt.Errorf("notifications.lists: unknown event type %q", event)
		}
	}
	return nil
}

func (c *Config) validateProcessing() error {
	if c.Processing.TranscoderEndpoint != "" {
		if err := validateHTTPURL("processing.transcoder_endpoint", c.Processing.TranscoderEndpoint); err != nil {
			return err
		}
	}
	if c.Processing.RequestTimeout <= 0 {
		return errors.New("processing.request_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.SweepIntervalSeconds <= 0 {
		return errors.New("workflow.sweep_interval_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func validateHTTPURL(field, raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL", field)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", field)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
