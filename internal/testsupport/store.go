package testsupport

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"assetflow/internal/config"
	"assetflow/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedVersion creates and finalizes a one-part session so tests start from a
// persisted version. An empty parentID seeds the group's original.
func SeedVersion(t testing.TB, st *store.Store, groupKey, parentID string, kind store.Kind, assignee string) *store.AssetVersion {
	t.Helper()
	ctx := context.Background()

	status := store.StatusDraft
	if assignee != "" {
		status = store.StatusPendingEdit
	}
	sess := &store.UploadSession{
		ID:           uuid.NewString(),
		GroupKey:     groupKey,
		ParentID:     parentID,
		Kind:         kind,
		Filename:     "seed.mov",
		ContentType:  "video/quicktime",
		DeclaredSize: 1,
		ChunkSize:    1,
		TotalParts:   1,
		StorageKey:   groupKey + "/seed.mov",
		Assignee:     assignee,
		CreatedBy:    "seed",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	if err := st.CreateSession(ctx, sess); err != nil {
		t.Fatalf("store.CreateSession: %v", err)
	}
	if err := st.UpsertPart(ctx, sess.ID, 1, "etag-1"); err != nil {
		t.Fatalf("store.UpsertPart: %v", err)
	}
	version, _, err := st.FinalizeSession(ctx, sess.ID, store.NewVersion{
		GroupKey:     groupKey,
		ParentID:     parentID,
		Kind:         kind,
		Status:       status,
		Filename:     sess.Filename,
		ContentType:  sess.ContentType,
		DeclaredSize: sess.DeclaredSize,
		StorageKey:   sess.StorageKey,
		AssignedTo:   assignee,
		CreatedBy:    sess.CreatedBy,
	})
	if err != nil {
		t.Fatalf("store.FinalizeSession: %v", err)
	}
	return version
}
