package upload_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"sync"
	"testing"
	"time"

	"assetflow/internal/config"
	"assetflow/internal/services"
	"assetflow/internal/store"
	"assetflow/internal/testsupport"
	"assetflow/internal/upload"
	"assetflow/internal/versions"
)

type announced struct {
	event store.EventType
	extra []string
}

type recordingAnnouncer struct {
	mu    sync.Mutex
	calls []announced
}

func (r *recordingAnnouncer) Announce(_ context.Context, _ *store.AssetVersion, event store.EventType, extra ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, announced{event: event, extra: extra})
}

func (r *recordingAnnouncer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type countingProcessor struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingProcessor) Submit(_ context.Context, v *store.AssetVersion) (*store.AssetVersion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	cp := *v
	now := time.Now().UTC()
	cp.ProcessingRequestedAt = &now
	return &cp, nil
}

type harness struct {
	cfg       *config.Config
	st        *store.Store
	storage   *testsupport.FakeStorage
	announcer *recordingAnnouncer
	processor *countingProcessor
	manager   *upload.Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	h := &harness{
		cfg:       cfg,
		st:        st,
		storage:   testsupport.NewFakeStorage(),
		announcer: &recordingAnnouncer{},
		processor: &countingProcessor{},
	}
	h.manager = upload.NewManager(cfg, upload.Dependencies{
		Store:     st,
		Graph:     versions.NewGraph(st, nil),
		Storage:   h.storage,
		Announcer: h.announcer,
		Processor: h.processor,
	})
	return h
}

func (h *harness) uploadAll(t *testing.T, handle *upload.Handle) {
	t.Helper()
	for n := 1; n <= handle.TotalParts; n++ {
		if err := h.manager.ReportPart(context.Background(), handle.SessionID, n, "etag"); err != nil {
			t.Fatalf("ReportPart(%d): %v", n, err)
		}
	}
}

func TestOutOfOrderPartsMintOriginal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	handle, err := h.manager.Initiate(ctx, upload.InitiateRequest{
		GroupKey:     "Summer Campaign",
		Filename:     "master.mov",
		ContentType:  "video/quicktime",
		DeclaredSize: 25_000_000,
		ChunkSize:    10_000_000,
		Actor:        "producer",
	})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if handle.TotalParts != 3 || handle.VersionNumber != 1 || handle.InitialStatus != store.StatusDraft {
		t.Fatalf("unexpected handle %+v", handle)
	}

	for _, p := range []struct {
		n     int
		token string
	}{{2, "etag-b"}, {3, "etag-c"}, {1, "etag-a"}} {
		if err := h.manager.ReportPart(ctx, handle.SessionID, p.n, p.token); err != nil {
			t.Fatalf("ReportPart(%d): %v", p.n, err)
		}
	}

	version, err := h.manager.Complete(ctx, handle.SessionID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if version.VersionNumber != 1 || version.Kind != store.KindOriginal || version.Status != store.StatusDraft {
		t.Fatalf("unexpected version %+v", version)
	}
	if version.GroupKey != "summer campaign" || version.IsPublished {
		t.Fatalf("unexpected version %+v", version)
	}

	parts := h.storage.Finished["upload-1"]
	if len(parts) != 3 || parts[0].ETag != "etag-a" || parts[2].ETag != "etag-c" {
		t.Fatalf("expected parts assembled in order, got %+v", parts)
	}
	if h.announcer.count() != 1 || h.announcer.calls[0].event != store.EventUpload {
		t.Fatalf("expected one upload event, got %+v", h.announcer.calls)
	}
}

func TestEditedChildGetsNextNumber(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.manager.Initiate(ctx, upload.InitiateRequest{GroupKey: "reel", Filename: "a.mov", DeclaredSize: 10, ChunkSize: 5})
	if err != nil {
		t.Fatalf("Initiate original: %v", err)
	}
	h.uploadAll(t, first)
	original, err := h.manager.Complete(ctx, first.SessionID)
	if err != nil {
		t.Fatalf("Complete original: %v", err)
	}

	second, err := h.manager.Initiate(ctx, upload.InitiateRequest{
		GroupKey:     "reel",
		Filename:     "b.mov",
		DeclaredSize: 10,
		ChunkSize:    5,
		ParentID:     original.ID,
		Kind:         store.KindEdited,
		Assignee:     "alice@example.com",
	})
	if err != nil {
		t.Fatalf("Initiate child: %v", err)
	}
	if second.VersionNumber != 2 || second.InitialStatus != store.StatusPendingEdit {
		t.Fatalf("unexpected child handle %+v", second)
	}
	h.uploadAll(t, second)
	child, err := h.manager.Complete(ctx, second.SessionID)
	if err != nil {
		t.Fatalf("Complete child: %v", err)
	}
	if child.VersionNumber != 2 || child.ParentID != original.ID || child.Kind != store.KindEdited {
		t.Fatalf("unexpected child %+v", child)
	}
	if child.Status != store.StatusPendingEdit || child.AssignedTo != "alice@example.com" {
		t.Fatalf("expected assigned pending_edit child, got %+v", child)
	}

	h.announcer.mu.Lock()
	last := h.announcer.calls[len(h.announcer.calls)-1]
	h.announcer.mu.Unlock()
	if last.event != store.EventEdit || len(last.extra) != 1 || last.extra[0] != "alice@example.com" {
		t.Fatalf("expected edit event to assignee, got %+v", last)
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	handle, err := h.manager.Initiate(ctx, upload.InitiateRequest{GroupKey: "reel", Filename: "a.mov", DeclaredSize: 3, ChunkSize: 1, AutoProcess: true})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	h.uploadAll(t, handle)

	first, err := h.manager.Complete(ctx, handle.SessionID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	second, err := h.manager.Complete(ctx, handle.SessionID)
	if err != nil {
		t.Fatalf("second Complete: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("Complete returned %s then %s", first.ID, second.ID)
	}
	if h.storage.FinishCount() != 1 || h.announcer.count() != 1 || h.processor.calls != 1 {
		t.Fatalf("side effects repeated: finish=%d announce=%d process=%d",
			h.storage.FinishCount(), h.announcer.count(), h.processor.calls)
	}
	if first.ProcessingRequestedAt == nil {
		t.Fatal("expected auto process to stamp the version")
	}
}

func TestConcurrentSiblingCompletesGetUniqueNumbers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	root, err := h.manager.Initiate(ctx, upload.InitiateRequest{GroupKey: "reel", Filename: "a.mov", DeclaredSize: 1, ChunkSize: 1})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	h.uploadAll(t, root)
	original, err := h.manager.Complete(ctx, root.SessionID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	const siblings = 6
	handles := make([]*upload.Handle, siblings)
	for i := range handles {
		handles[i], err = h.manager.Initiate(ctx, upload.InitiateRequest{
			GroupKey: "reel", Filename: "cut.mov", DeclaredSize: 1, ChunkSize: 1,
			ParentID: original.ID, Kind: store.KindEdited,
		})
		if err != nil {
			t.Fatalf("Initiate sibling %d: %v", i, err)
		}
		h.uploadAll(t, handles[i])
	}

	var wg sync.WaitGroup
	results := make([]*store.AssetVersion, siblings)
	errs := make([]error, siblings)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.manager.Complete(ctx, handles[i].SessionID)
		}(i)
	}
	wg.Wait()

	seen := map[int]bool{}
	for i, v := range results {
		if errs[i] != nil {
			t.Fatalf("Complete sibling %d: %v", i, errs[i])
		}
		if seen[v.VersionNumber] {
			t.Fatalf("duplicate version number %d", v.VersionNumber)
		}
		seen[v.VersionNumber] = true
	}
	for n := 2; n <= siblings+1; n++ {
		if !seen[n] {
			t.Fatalf("missing version number %d in %v", n, seen)
		}
	}
}

func TestIncompleteUploadListsMissingParts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	handle, err := h.manager.Initiate(ctx, upload.InitiateRequest{GroupKey: "reel", Filename: "a.mov", DeclaredSize: 4, ChunkSize: 1})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	for _, n := range []int{3, 1} {
		if err := h.manager.ReportPart(ctx, handle.SessionID, n, "etag"); err != nil {
			t.Fatalf("ReportPart: %v", err)
		}
	}

	_, err = h.manager.Complete(ctx, handle.SessionID)
	var incomplete *services.IncompleteUploadError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected incomplete upload, got %v", err)
	}
	if len(incomplete.Missing) != 2 || incomplete.Missing[0] != 2 || incomplete.Missing[1] != 4 {
		t.Fatalf("unexpected missing parts %v", incomplete.Missing)
	}

	view, err := h.manager.Describe(ctx, handle.SessionID)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if view.Session.Status != store.SessionInProgress || len(view.Reported) != 2 {
		t.Fatalf("expected in_progress with two parts, got %+v", view)
	}

	h.uploadAll(t, handle)
	if _, err := h.manager.Complete(ctx, handle.SessionID); err != nil {
		t.Fatalf("Complete after retry: %v", err)
	}
}

func TestStorageFinishFailureKeepsSessionOpen(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	handle, err := h.manager.Initiate(ctx, upload.InitiateRequest{GroupKey: "reel", Filename: "a.mov", DeclaredSize: 1, ChunkSize: 1})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	h.uploadAll(t, handle)
	h.storage.FinishErr = errors.New("backend unavailable")

	if _, err := h.manager.Complete(ctx, handle.SessionID); !errors.Is(err, services.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	sess, err := h.st.GetSession(ctx, handle.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Status != store.SessionInProgress {
		t.Fatalf("expected in_progress, got %s", sess.Status)
	}
}

func TestInitiateValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seed := testsupport.SeedVersion(t, h.st, "taken", "", store.KindOriginal, "")
	other := testsupport.SeedVersion(t, h.st, "other", "", store.KindOriginal, "")

	cases := []struct {
		name string
		req  upload.InitiateRequest
		want error
	}{
		{"zero size", upload.InitiateRequest{GroupKey: "g", Filename: "a", DeclaredSize: 0, ChunkSize: 1}, services.ErrValidation},
		{"missing filename", upload.InitiateRequest{GroupKey: "g", DeclaredSize: 1, ChunkSize: 1}, services.ErrValidation},
		{"unknown parent", upload.InitiateRequest{GroupKey: "taken", Filename: "a", DeclaredSize: 1, ChunkSize: 1, ParentID: "missing"}, services.ErrInvalidParent},
		{"foreign parent", upload.InitiateRequest{GroupKey: "taken", Filename: "a", DeclaredSize: 1, ChunkSize: 1, ParentID: other.ID}, services.ErrInvalidParent},
		{"second original", upload.InitiateRequest{GroupKey: "taken", Filename: "a", DeclaredSize: 1, ChunkSize: 1}, services.ErrDuplicateOriginal},
		{"final child ok", upload.InitiateRequest{GroupKey: "taken", Filename: "a", DeclaredSize: 1, ChunkSize: 1, ParentID: seed.ID, Kind: store.KindFinal}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.manager.Initiate(ctx, tc.req)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("Initiate: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestTooManyPartsRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Storage.MaxParts = 2
	st := testsupport.MustOpenStore(t, cfg)
	manager := upload.NewManager(cfg, upload.Dependencies{
		Store:   st,
		Graph:   versions.NewGraph(st, nil),
		Storage: testsupport.NewFakeStorage(),
	})
	_, err := manager.Initiate(context.Background(), upload.InitiateRequest{GroupKey: "g", Filename: "a", DeclaredSize: 3, ChunkSize: 1})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPartDestinations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	handle, err := h.manager.Initiate(ctx, upload.InitiateRequest{GroupKey: "reel", Filename: "a.mov", DeclaredSize: 3, ChunkSize: 1})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	dests, err := h.manager.IssuePartDestinations(ctx, handle.SessionID, []int{3, 1})
	if err != nil {
		t.Fatalf("IssuePartDestinations: %v", err)
	}
	if len(dests) != 2 || dests[0].PartNumber != 3 {
		t.Fatalf("unexpected destinations %+v", dests)
	}
	u, err := url.Parse(dests[0].URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if u.Query().Get("partNumber") != "3" || u.Query().Get("uploadId") != "upload-1" {
		t.Fatalf("unexpected destination url %s", dests[0].URL)
	}
	if !dests[0].ValidUntil.After(time.Now()) {
		t.Fatal("expected validity window in the future")
	}

	all, err := h.manager.IssuePartDestinations(ctx, handle.SessionID, nil)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected all three destinations, got %d (%v)", len(all), err)
	}
	if _, err := h.manager.IssuePartDestinations(ctx, handle.SessionID, []int{4}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected out-of-range validation error, got %v", err)
	}
	if _, err := h.manager.IssuePartDestinations(ctx, "missing", nil); !errors.Is(err, services.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}

	if err := h.manager.Abort(ctx, handle.SessionID); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if _, err := h.manager.IssuePartDestinations(ctx, handle.SessionID, []int{1}); !errors.Is(err, services.ErrSessionTerminal) {
		t.Fatalf("expected session terminal, got %v", err)
	}
}

func TestAbortIsNoopOnTerminalSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	handle, err := h.manager.Initiate(ctx, upload.InitiateRequest{GroupKey: "reel", Filename: "a.mov", DeclaredSize: 1, ChunkSize: 1})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	if err := h.manager.Abort(ctx, handle.SessionID); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if err := h.manager.Abort(ctx, handle.SessionID); err != nil {
		t.Fatalf("second Abort: %v", err)
	}
	if n := len(h.storage.AbortedUploads()); n != 1 {
		t.Fatalf("expected one storage abort, got %d", n)
	}
	if err := h.manager.ReportPart(ctx, handle.SessionID, 1, "etag"); !errors.Is(err, services.ErrSessionTerminal) {
		t.Fatalf("expected terminal session on report, got %v", err)
	}
	if _, err := h.manager.Complete(ctx, handle.SessionID); !errors.Is(err, services.ErrSessionTerminal) {
		t.Fatalf("expected terminal session on complete, got %v", err)
	}

	done, err := h.manager.Initiate(ctx, upload.InitiateRequest{GroupKey: "reel", Filename: "a.mov", DeclaredSize: 1, ChunkSize: 1})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	h.uploadAll(t, done)
	if _, err := h.manager.Complete(ctx, done.SessionID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := h.manager.Abort(ctx, done.SessionID); err != nil {
		t.Fatalf("Abort completed session: %v", err)
	}
	sess, err := h.st.GetSession(ctx, done.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Status != store.SessionCompleted {
		t.Fatalf("abort changed completed session to %s", sess.Status)
	}
	if err := h.manager.Abort(ctx, "missing"); !errors.Is(err, services.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSweepExpiredAbortsStaleSessions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Storage.SessionTTLHours = 1
	st := testsupport.MustOpenStore(t, cfg)
	storage := testsupport.NewFakeStorage()
	manager := upload.NewManager(cfg, upload.Dependencies{
		Store:   st,
		Graph:   versions.NewGraph(st, nil),
		Storage: storage,
	})
	ctx := context.Background()

	handle, err := manager.Initiate(ctx, upload.InitiateRequest{GroupKey: "reel", Filename: "a.mov", DeclaredSize: 1, ChunkSize: 1})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if n, err := manager.SweepExpired(ctx); err != nil || n != 0 {
		t.Fatalf("fresh session swept: n=%d err=%v", n, err)
	}

	later := upload.NewManager(cfg, upload.Dependencies{
		Store:   st,
		Graph:   versions.NewGraph(st, nil),
		Storage: storage,
	})
	upload.SetClock(later, func() time.Time { return time.Now().UTC().Add(2 * time.Hour) })
	n, err := later.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one expired session, got %d", n)
	}
	sess, err := st.GetSession(ctx, handle.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Status != store.SessionAborted {
		t.Fatalf("expected aborted, got %s", sess.Status)
	}
	if len(storage.AbortedUploads()) != 1 {
		t.Fatal("expected storage upload to be released")
	}
}

func TestHugeDeclaredSizeRejected(t *testing.T) {
	h := newHarness(t)
	for _, chunk := range []int64{1, 2, 10_000_000} {
		_, err := h.manager.Initiate(context.Background(), upload.InitiateRequest{
			GroupKey: "g", Filename: "a", DeclaredSize: math.MaxInt64, ChunkSize: chunk,
		})
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("chunk %d: expected validation error, got %v", chunk, err)
		}
		if services.Code(err) != "VALIDATION" {
			t.Fatalf("chunk %d: unexpected code %q", chunk, services.Code(err))
		}
	}
	if n := len(h.storage.Begun); n != 0 {
		t.Fatalf("expected no storage reservation, got %d", n)
	}
}

func TestSecondOriginalRejectedBeforeAssembly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.manager.Initiate(ctx, upload.InitiateRequest{GroupKey: "race", Filename: "a.mov", DeclaredSize: 2, ChunkSize: 1})
	if err != nil {
		t.Fatalf("Initiate first: %v", err)
	}
	second, err := h.manager.Initiate(ctx, upload.InitiateRequest{GroupKey: "race", Filename: "b.mov", DeclaredSize: 2, ChunkSize: 1})
	if err != nil {
		t.Fatalf("Initiate second: %v", err)
	}
	h.uploadAll(t, first)
	h.uploadAll(t, second)

	if _, err := h.manager.Complete(ctx, first.SessionID); err != nil {
		t.Fatalf("Complete first: %v", err)
	}
	_, err = h.manager.Complete(ctx, second.SessionID)
	if !errors.Is(err, services.ErrDuplicateOriginal) || services.Code(err) != "DUPLICATE_ORIGINAL" {
		t.Fatalf("expected duplicate original, got %v", err)
	}
	if n := h.storage.FinishCalls(); n != 1 {
		t.Fatalf("expected one object assembled, got %d finish calls", n)
	}

	sess, err := h.st.GetSession(ctx, second.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Status != store.SessionAborted {
		t.Fatalf("expected rejected session to be aborted, got %s", sess.Status)
	}
	aborted := h.storage.AbortedUploads()
	if len(aborted) != 1 || aborted[0] != sess.StorageUploadID {
		t.Fatalf("expected reservation %s released, got %v", sess.StorageUploadID, aborted)
	}
	if _, err := h.manager.Complete(ctx, second.SessionID); !errors.Is(err, services.ErrSessionTerminal) {
		t.Fatalf("expected terminal session on retry, got %v", err)
	}

	lineage, err := h.st.ListLineage(ctx, "race")
	if err != nil {
		t.Fatalf("ListLineage: %v", err)
	}
	if len(lineage) != 1 {
		t.Fatalf("expected one version in group, got %d", len(lineage))
	}
}

func TestConcurrentOriginalsMintOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	const sessions = 4
	handles := make([]*upload.Handle, sessions)
	for i := range handles {
		var err error
		handles[i], err = h.manager.Initiate(ctx, upload.InitiateRequest{GroupKey: "race", Filename: "a.mov", DeclaredSize: 1, ChunkSize: 1})
		if err != nil {
			t.Fatalf("Initiate %d: %v", i, err)
		}
		h.uploadAll(t, handles[i])
	}

	var wg sync.WaitGroup
	errs := make([]error, sessions)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.manager.Complete(ctx, handles[i].SessionID)
		}(i)
	}
	wg.Wait()

	minted := 0
	for i, err := range errs {
		switch {
		case err == nil:
			minted++
		case !errors.Is(err, services.ErrDuplicateOriginal):
			t.Fatalf("Complete %d: unexpected error %v", i, err)
		}
	}
	if minted != 1 {
		t.Fatalf("expected exactly one original, got %d", minted)
	}
	if n := h.storage.FinishCalls(); n != 1 {
		t.Fatalf("expected one object assembled, got %d finish calls", n)
	}
}

func TestConcurrentPartReports(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	handle, err := h.manager.Initiate(ctx, upload.InitiateRequest{GroupKey: "reel", Filename: "a.mov", DeclaredSize: 8, ChunkSize: 1})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, handle.TotalParts)
	for n := 1; n <= handle.TotalParts; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs[n-1] = h.manager.ReportPart(ctx, handle.SessionID, n, fmt.Sprintf("etag-%d", n))
		}(n)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("ReportPart(%d): %v", i+1, err)
		}
	}

	view, err := h.manager.Describe(ctx, handle.SessionID)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if len(view.Missing) != 0 || len(view.Reported) != handle.TotalParts {
		t.Fatalf("expected all parts recorded, got %+v", view)
	}
	if _, err := h.manager.Complete(ctx, handle.SessionID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	parts := h.storage.Finished["upload-1"]
	for i, p := range parts {
		if p.PartNumber != i+1 || p.ETag != fmt.Sprintf("etag-%d", i+1) {
			t.Fatalf("part %d assembled as %+v", i+1, p)
		}
	}
}

func TestRacingCompletesOnOneSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	handle, err := h.manager.Initiate(ctx, upload.InitiateRequest{GroupKey: "reel", Filename: "a.mov", DeclaredSize: 2, ChunkSize: 1})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	h.uploadAll(t, handle)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*store.AssetVersion, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.manager.Complete(ctx, handle.SessionID)
		}(i)
	}
	wg.Wait()

	for i := range results {
		if errs[i] != nil {
			t.Fatalf("Complete %d: %v", i, errs[i])
		}
		if results[i].ID != results[0].ID {
			t.Fatalf("Complete %d returned %s, want %s", i, results[i].ID, results[0].ID)
		}
	}
	if n := h.storage.FinishCalls(); n != 1 {
		t.Fatalf("expected one finish call, got %d", n)
	}
	if n := h.announcer.count(); n != 1 {
		t.Fatalf("expected one upload event, got %d", n)
	}
}

func TestLateReportAfterCompletionIgnored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	handle, err := h.manager.Initiate(ctx, upload.InitiateRequest{GroupKey: "reel", Filename: "a.mov", DeclaredSize: 2, ChunkSize: 1})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	h.uploadAll(t, handle)
	version, err := h.manager.Complete(ctx, handle.SessionID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if err := h.manager.ReportPart(ctx, handle.SessionID, 1, "late-etag"); err != nil {
		t.Fatalf("late ReportPart: %v", err)
	}
	parts, err := h.st.ListParts(ctx, handle.SessionID)
	if err != nil {
		t.Fatalf("ListParts: %v", err)
	}
	for _, p := range parts {
		if p.Token == "late-etag" {
			t.Fatal("late report overwrote a completed part")
		}
	}
	again, err := h.manager.Complete(ctx, handle.SessionID)
	if err != nil {
		t.Fatalf("Complete after late report: %v", err)
	}
	if again.ID != version.ID || h.storage.FinishCalls() != 1 {
		t.Fatalf("late report changed the outcome: version %s finish calls %d", again.ID, h.storage.FinishCalls())
	}
}

func TestReportsDuringCompletionDoNotChangeVersion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	handle, err := h.manager.Initiate(ctx, upload.InitiateRequest{GroupKey: "reel", Filename: "a.mov", DeclaredSize: 2, ChunkSize: 1})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	h.uploadAll(t, handle)

	var (
		wg          sync.WaitGroup
		version     *store.AssetVersion
		completeErr error
	)
	reportErrs := make([]error, 4)
	wg.Add(1)
	go func() {
		defer wg.Done()
		version, completeErr = h.manager.Complete(ctx, handle.SessionID)
	}()
	for i := range reportErrs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reportErrs[i] = h.manager.ReportPart(ctx, handle.SessionID, 2, fmt.Sprintf("retry-%d", i))
		}(i)
	}
	wg.Wait()

	if completeErr != nil {
		t.Fatalf("Complete: %v", completeErr)
	}
	for i, err := range reportErrs {
		if err != nil {
			t.Fatalf("ReportPart %d: %v", i, err)
		}
	}
	again, err := h.manager.Complete(ctx, handle.SessionID)
	if err != nil {
		t.Fatalf("second Complete: %v", err)
	}
	if again.ID != version.ID || h.storage.FinishCalls() != 1 {
		t.Fatalf("reports changed the outcome: version %s finish calls %d", again.ID, h.storage.FinishCalls())
	}
}
