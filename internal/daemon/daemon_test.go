package daemon_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"assetflow/internal/api"
	"assetflow/internal/config"
	"assetflow/internal/daemon"
	"assetflow/internal/metrics"
	"assetflow/internal/testsupport"
)

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	st := testsupport.MustOpenStore(t, cfg)
	comps, err := daemon.Wire(cfg, st, testsupport.NewFakeStorage(), nil, metrics.New())
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}
	d, err := daemon.New(cfg, comps, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	status := d.Status()
	if !status.Running || strings.HasSuffix(status.Address, ":0") {
		t.Fatalf("unexpected status after start %+v", status)
	}
	if !strings.HasSuffix(status.LockFilePath, "assetflow.lock") {
		t.Fatalf("unexpected lock path %q", status.LockFilePath)
	}

	resp, err := http.Get("http://" + status.Address + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	var health api.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	resp.Body.Close()
	if health.Status != "ok" || health.DataDir != cfg.Paths.DataDir {
		t.Fatalf("unexpected health %+v", health)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second Start on a running daemon to fail")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to report stopped")
	}
	d.Stop()
}

func TestDaemonRejectsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newDaemon(t, cfg)
	second := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer first.Stop()

	err := second.Start(ctx)
	if err == nil {
		second.Stop()
		t.Fatal("expected second daemon on the same data directory to fail")
	}
	if !strings.Contains(err.Error(), "already using this data directory") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDaemonRequiresComponents(t *testing.T) {
	if _, err := daemon.New(testsupport.NewConfig(t), nil, nil); err == nil {
		t.Fatal("expected error without components")
	}
}
