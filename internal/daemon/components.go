package daemon

import (
	"fmt"
	"log/slog"

	"assetflow/internal/config"
	"assetflow/internal/metrics"
	"assetflow/internal/notifications"
	"assetflow/internal/objectstore"
	"assetflow/internal/processing"
	"assetflow/internal/store"
	"assetflow/internal/upload"
	"assetflow/internal/versions"
	"assetflow/internal/workflow"
)

// Components holds the wired services behind the API.
type Components struct {
	Store         *store.Store
	Graph         *versions.Graph
	Uploads       *upload.Manager
	Workflow      *workflow.Machine
	Notifications *notifications.Dispatcher
	Processing    *processing.Trigger
	Metrics       *metrics.Metrics
}

// Wire builds every service from configuration. Storage is injected so tests
// can substitute a fake backend.
func Wire(cfg *config.Config, st *store.Store, storage objectstore.Backend, logger *slog.Logger, m *metrics.Metrics) (*Components, error) {
	if cfg == nil || st == nil || storage == nil {
		return nil, fmt.Errorf("wire: config, store, and storage are required")
	}
	lists, err := cfg.RecipientLists()
	if err != nil {
		return nil, fmt.Errorf("load recipient lists: %w", err)
	}

	dispatcher := notifications.NewDispatcher(st, notifications.NewMailer(cfg), cfg.Notifications.From, logger, m)
	trigger := processing.NewTrigger(st, processing.NewTranscoder(cfg), logger, m)
	graph := versions.NewGraph(st, logger)
	machine := workflow.NewMachine(cfg, workflow.Dependencies{
		Store:      st,
		Notifier:   dispatcher,
		Recipients: notifications.NewResolver(lists),
		Processor:  trigger,
		Metrics:    m,
		Logger:     logger,
	})
	uploads := upload.NewManager(cfg, upload.Dependencies{
		Store:     st,
		Graph:     graph,
		Storage:   storage,
		Announcer: machine,
		Processor: trigger,
		Metrics:   m,
		Logger:    logger,
	})

	return &Components{
		Store:         st,
		Graph:         graph,
		Uploads:       uploads,
		Workflow:      machine,
		Notifications: dispatcher,
		Processing:    trigger,
		Metrics:       m,
	}, nil
}
