package config

const (
	defaultConfigPath               = "~/.config/assetflow/config.toml"
	defaultDataDir                  = "~/.local/share/assetflow"
	defaultLogDir                   = "~/.local/share/assetflow/logs"
	defaultAPIBind                  = "127.0.0.1:7590"
	defaultDatabaseDriver           = "sqlite"
	defaultStorageRegion            = "us-east-1"
	defaultPartURLTTLSeconds        = 900
	defaultChunkSize                = 10_000_000
	defaultMinChunkSize             = 5 << 20
	defaultMaxParts                 = 10_000
	defaultSessionTTLHours          = 24
	defaultNotifyRequestTimeout     = 10
	defaultNotifyFrom               = "assetflow@localhost"
	defaultProcessingRequestTimeout = 15
	defaultSweepIntervalSeconds     = 300
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Database: Database{
			Driver: defaultDatabaseDriver,
		},
		Storage: Storage{
			Region:            defaultStorageRegion,
			UseSSL:            true,
			PartURLTTLSeconds: defaultPartURLTTLSeconds,
			DefaultChunkSize:  defaultChunkSize,
			MinChunkSize:      defaultMinChunkSize,
			MaxParts:          defaultMaxParts,
			SessionTTLHours:   defaultSessionTTLHours,
		},
		Notifications: Notifications{
			From:           defaultNotifyFrom,
			RequestTimeout: defaultNotifyRequestTimeout,
			Lists:          map[string][]string{},
		},
		Processing: Processing{
			RequestTimeout: defaultProcessingRequestTimeout,
		},
		Workflow: Workflow{
			SweepIntervalSeconds: defaultSweepIntervalSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
