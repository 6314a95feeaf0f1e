package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeDatabase()
	c.normalizeStorage()
	if err := c.normalizeNotifications(); err != nil {
		return err
	}
	c.normalizeProcessing()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	envOverride(&c.API.Token, "ASSETFLOW_API_TOKEN")
	c.API.Token = strings.TrimSpace(c.API.Token)
	c.API.AllowedOrigins = trimList(c.API.AllowedOrigins)
}

func (c *Config) normalizeDatabase() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = defaultDatabaseDriver
	}
	envOverride(&c.Database.DSN, "ASSETFLOW_DATABASE_DSN")
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
}

func (c *Config) normalizeStorage() {
	envOverride(&c.Storage.Endpoint, "ASSETFLOW_STORAGE_ENDPOINT")
	envOverride(&c.Storage.Bucket, "ASSETFLOW_STORAGE_BUCKET")
	envOverride(&c.Storage.AccessKey, "ASSETFLOW_STORAGE_ACCESS_KEY")
	envOverride(&c.Storage.SecretKey, "ASSETFLOW_STORAGE_SECRET_KEY")
	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Storage.Region = strings.TrimSpace(c.Storage.Region)
	if c.Storage.Region == "" {
		c.Storage.Region = defaultStorageRegion
	}
	if c.Storage.DefaultChunkSize == 0 {
		c.Storage.DefaultChunkSize = defaultChunkSize
	}
	if c.Storage.MinChunkSize == 0 {
		c.Storage.MinChunkSize = defaultMinChunkSize
	}
	if c.Storage.MaxParts == 0 {
		c.Storage.MaxParts = defaultMaxParts
	}
}

func (c *Config) normalizeNotifications() error {
	envOverride(&c.Notifications.MailToken, "ASSETFLOW_MAIL_TOKEN")
	c.Notifications.MailEndpoint = strings.TrimSpace(c.Notifications.MailEndpoint)
	c.Notifications.From = strings.TrimSpace(c.Notifications.From)
	if c.Notifications.From == "" {
		c.Notifications.From = defaultNotifyFrom
	}
	if strings.TrimSpace(c.Notifications.RecipientsFile) != "" {
		expanded, err := expandPath(strings.TrimSpace(c.Notifications.RecipientsFile))
		if err != nil {
			return fmt.Errorf("notifications.recipients_file: %w", err)
		}
		c.Notifications.RecipientsFile = expanded
	}
	lists := make(map[string][]string, len(c.Notifications.Lists))
	for event, recipients := range c.Notifications.Lists {
		key := strings.ToLower(strings.TrimSpace(event))
		if key == "" {
			continue
		}
		lists[key] = append(lists[key], trimList(recipients)...)
	}
	c.Notifications.Lists = lists
	return nil
}

func (c *Config) normalizeProcessing() {
	envOverride(&c.Processing.TranscoderToken, "ASSETFLOW_TRANSCODER_TOKEN")
	c.Processing.TranscoderEndpoint = strings.TrimSpace(c.Processing.TranscoderEndpoint)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func envOverride(target *string, key string) {
	if strings.TrimSpace(*target) != "" {
		return
	}
	if value, ok := os.LookupEnv(key); ok {
		*target = value
	}
}

func trimList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
