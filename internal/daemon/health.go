package daemon

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"

	"assetflow/internal/api"
)

// Health pings the database and reports free space in the data directory.
func (d *Daemon) Health(ctx context.Context) (api.HealthResponse, bool) {
	resp := api.HealthResponse{Status: "ok", Database: "ok", DataDir: d.cfg.Paths.DataDir}
	healthy := true
	if err := d.comps.Store.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = "unreachable"
		resp.DatabaseError = err.Error()
		healthy = false
	}
	if free, err := freeBytes(d.cfg.Paths.DataDir); err == nil {
		resp.FreeBytes = free
	}
	return resp, healthy
}

func freeBytes(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return st.Bavail * uint64(st.Bsize), nil
}
