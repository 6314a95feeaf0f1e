package preflight

import (
	"context"

	"assetflow/internal/config"
	"assetflow/internal/objectstore"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDatabase(ctx, cfg),
	}

	if storage, err := objectstore.NewMinIO(cfg.Storage); err != nil {
		results = append(results, Result{Name: "Object storage", Detail: err.Error()})
	} else {
		results = append(results, CheckStorage(ctx, storage, cfg.Storage.Bucket))
	}

	if cfg.Notifications.MailEndpoint != "" {
		results = append(results, CheckEndpoint(ctx, "Mail relay", cfg.Notifications.MailEndpoint, cfg.Notifications.MailToken))
	}
	if cfg.Processing.TranscoderEndpoint != "" {
		results = append(results, CheckEndpoint(ctx, "Transcoder", cfg.Processing.TranscoderEndpoint, cfg.Processing.TranscoderToken))
	}

	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
