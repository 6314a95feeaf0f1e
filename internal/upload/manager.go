package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"assetflow/internal/config"
	"assetflow/internal/logging"
	"assetflow/internal/metrics"
	"assetflow/internal/objectstore"
	"assetflow/internal/services"
	"assetflow/internal/store"
	"assetflow/internal/textutil"
	"assetflow/internal/versions"
	"assetflow/internal/workflow"
)

// Store is the session persistence surface.
type Store interface {
	CreateSession(ctx context.Context, sess *store.UploadSession) error
	GetSession(ctx context.Context, id string) (*store.UploadSession, error)
	UpsertPart(ctx context.Context, sessionID string, partNumber int, token string) error
	ListParts(ctx context.Context, sessionID string) ([]store.UploadPart, error)
	AbortSession(ctx context.Context, sessionID string) (bool, error)
	ListExpiredSessions(ctx context.Context, cutoff time.Time) ([]*store.UploadSession, error)
}

// Announcer fans out lifecycle events after a version is minted.
type Announcer interface {
	Announce(ctx context.Context, version *store.AssetVersion, event store.EventType, extra ...string)
}

// Processor submits a version for transcoding.
type Processor interface {
	Submit(ctx context.Context, version *store.AssetVersion) (*store.AssetVersion, error)
}

// Dependencies groups the collaborators of a Manager. Announcer and Processor
// may be nil.
type Dependencies struct {
	Store     Store
	Graph     *versions.Graph
	Storage   objectstore.Backend
	Announcer Announcer
	Processor Processor
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Manager owns upload sessions from initiation until completion or abort.
type Manager struct {
	storageCfg config.Storage
	partTTL    time.Duration
	sessionTTL time.Duration

	store     Store
	graph     *versions.Graph
	storage   objectstore.Backend
	announcer Announcer
	processor Processor
	metrics   *metrics.Metrics
	logger    *slog.Logger

	sessions *versions.KeyedLock
	now      func() time.Time
}

// NewManager wires an upload manager.
func NewManager(cfg *config.Config, deps Dependencies) *Manager {
	return &Manager{
		storageCfg: cfg.Storage,
		partTTL:    cfg.PartURLTTL(),
		sessionTTL: cfg.SessionTTL(),
		store:      deps.Store,
		graph:      deps.Graph,
		storage:    deps.Storage,
		announcer:  deps.Announcer,
		processor:  deps.Processor,
		metrics:    deps.Metrics,
		logger:     logging.NewComponentLogger(deps.Logger, "upload"),
		sessions:   versions.NewKeyedLock(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// InitiateRequest describes a new upload.
type InitiateRequest struct {
	GroupKey     string
	Filename     string
	ContentType  string
	DeclaredSize int64
	ChunkSize    int64
	ParentID     string
	Kind         store.Kind
	Assignee     string
	NotifyLists  store.NotifyLists
	AutoProcess  bool
	Actor        string
}

// Handle is returned by Initiate. VersionNumber and InitialStatus preview what
// completion will assign.
type Handle struct {
	SessionID     string
	GroupKey      string
	Kind          store.Kind
	TotalParts    int
	ChunkSize     int64
	VersionNumber int
	InitialStatus store.Status
	ExpiresAt     time.Time
}

// Initiate validates the request, reserves storage, and persists a session.
func (m *Manager) Initiate(ctx context.Context, req InitiateRequest) (*Handle, error) {
	if req.DeclaredSize <= 0 {
		return nil, services.Wrap(services.ErrValidation, "upload", "initiate", "declared size must be positive", nil)
	}
	chunk := req.ChunkSize
	if chunk == 0 {
		chunk = m.storageCfg.DefaultChunkSize
	}
	if chunk <= 0 || chunk < m.storageCfg.MinChunkSize {
		return nil, services.Wrap(services.ErrValidation, "upload", "initiate",
			fmt.Sprintf("chunk size must be at least %d bytes", max(m.storageCfg.MinChunkSize, 1)), nil)
	}
	// Ceiling division without the size+chunk overflow.
	parts := req.DeclaredSize / chunk
	if req.DeclaredSize%chunk != 0 {
		parts++
	}
	if parts < 1 || parts > int64(m.storageCfg.MaxParts) {
		return nil, services.Wrap(services.ErrValidation, "upload", "initiate",
			fmt.Sprintf("%d parts exceeds the limit of %d; use a larger chunk size", parts, m.storageCfg.MaxParts), nil)
	}
	totalParts := int(parts)
	filename := path.Base(strings.TrimSpace(strings.ReplaceAll(req.Filename, "\\", "/")))
	if filename == "" || filename == "." || filename == "/" {
		return nil, services.Wrap(services.ErrValidation, "upload", "initiate", "filename is required", nil)
	}
	parentID := strings.TrimSpace(req.ParentID)

	plan, err := m.graph.PlanVersion(ctx, req.GroupKey, parentID, req.Kind)
	if err != nil {
		return nil, err
	}

	actor := req.Actor
	if actor == "" {
		actor, _ = services.ActorFromContext(ctx)
	}
	assignee := strings.TrimSpace(req.Assignee)
	sessionID := uuid.NewString()
	key := textutil.ObjectKey(plan.GroupKey, sessionID, filename)

	uploadID, err := m.storage.Begin(ctx, key, req.ContentType)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "upload", "initiate", "reserve multipart upload", err)
	}

	now := m.now()
	sess := &store.UploadSession{
		ID:              sessionID,
		GroupKey:        plan.GroupKey,
		ParentID:        parentID,
		Kind:            plan.Kind,
		Filename:        filename,
		ContentType:     req.ContentType,
		DeclaredSize:    req.DeclaredSize,
		ChunkSize:       chunk,
		TotalParts:      totalParts,
		StorageKey:      key,
		StorageUploadID: uploadID,
		Assignee:        assignee,
		AutoProcess:     req.AutoProcess,
		NotifyLists:     req.NotifyLists,
		CreatedBy:       actor,
		CreatedAt:       now,
		ExpiresAt:       now.Add(m.sessionTTL),
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		m.releaseStorage(ctx, sess, "initiate_failed")
		return nil, services.Wrap(services.ErrStorage, "upload", "initiate", "persist session", err)
	}

	m.metrics.UploadInitiated()
	logging.WithContext(services.WithSessionID(ctx, sessionID), m.logger).Info("upload initiated",
		logging.String(logging.FieldAssetGroup, plan.GroupKey),
		logging.Int("total_parts", totalParts),
		logging.Int64("chunk_size", chunk),
		logging.Int("version_number", plan.VersionNumber),
	)
	return &Handle{
		SessionID:     sessionID,
		GroupKey:      plan.GroupKey,
		Kind:          plan.Kind,
		TotalParts:    totalParts,
		ChunkSize:     chunk,
		VersionNumber: plan.VersionNumber,
		InitialStatus: workflow.InitialStatus(assignee),
		ExpiresAt:     sess.ExpiresAt,
	}, nil
}

// Destination is one presigned part URL.
type Destination struct {
	PartNumber int
	URL        string
	ValidUntil time.Time
}

// IssuePartDestinations returns one destination per requested part. An empty
// request issues destinations for every part. Re-issuing is allowed until the
// session is terminal.
func (m *Manager) IssuePartDestinations(ctx context.Context, sessionID string, partNumbers []int) ([]Destination, error) {
	sess, err := m.openSession(ctx, sessionID, "part destinations")
	if err != nil {
		return nil, err
	}
	if len(partNumbers) == 0 {
		partNumbers = make([]int, sess.TotalParts)
		for i := range partNumbers {
			partNumbers[i] = i + 1
		}
	}

	validUntil := m.now().Add(m.partTTL)
	out := make([]Destination, 0, len(partNumbers))
	for _, n := range partNumbers {
		if err := checkPartNumber(sess, n); err != nil {
			return nil, err
		}
		u, err := m.storage.PartURL(ctx, sess.StorageKey, sess.StorageUploadID, n, m.partTTL)
		if err != nil {
			return nil, services.Wrap(services.ErrStorage, "upload", "part destinations",
				fmt.Sprintf("presign part %d", n), err)
		}
		out = append(out, Destination{PartNumber: n, URL: u.String(), ValidUntil: validUntil})
	}
	return out, nil
}

// ReportPart records the integrity token for one part. Reporting a part again
// overwrites the previous token. Reports against a completed session are
// accepted and ignored.
func (m *Manager) ReportPart(ctx context.Context, sessionID string, partNumber int, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return services.Wrap(services.ErrValidation, "upload", "report part", "integrity token is required", nil)
	}
	sess, err := m.loadSession(ctx, sessionID, "report part")
	if err != nil {
		return err
	}
	switch sess.Status {
	case store.SessionCompleted:
		return nil
	case store.SessionAborted:
		return services.Wrap(services.ErrSessionTerminal, "upload", "report part",
			fmt.Sprintf("session %s was aborted", sessionID), nil)
	}
	if err := checkPartNumber(sess, partNumber); err != nil {
		return err
	}
	if err := m.store.UpsertPart(ctx, sessionID, partNumber, token); err != nil {
		return services.Wrap(services.ErrStorage, "upload", "report part", "record part", err)
	}
	m.metrics.PartReported()
	return nil
}

// Complete finalizes the session into an asset version. Calling it again after
// success returns the same version.
func (m *Manager) Complete(ctx context.Context, sessionID string) (*store.AssetVersion, error) {
	unlock := m.sessions.Lock(sessionID)
	defer unlock()

	ctx = services.WithSessionID(ctx, sessionID)
	logger := logging.WithContext(ctx, m.logger)

	sess, err := m.loadSession(ctx, sessionID, "complete")
	if err != nil {
		return nil, err
	}
	switch sess.Status {
	case store.SessionCompleted:
		version, err := m.graph.Get(ctx, sess.VersionID)
		if err != nil {
			return nil, err
		}
		return version, nil
	case store.SessionAborted:
		return nil, services.Wrap(services.ErrSessionTerminal, "upload", "complete",
			fmt.Sprintf("session %s was aborted", sessionID), nil)
	}

	parts, err := m.store.ListParts(ctx, sessionID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "upload", "complete", "list parts", err)
	}
	completed, missing := assemble(sess.TotalParts, parts)
	if len(missing) > 0 {
		return nil, services.NewIncompleteUpload(sessionID, missing)
	}

	finish := func(ctx context.Context) error {
		if err := m.storage.Finish(ctx, sess.StorageKey, sess.StorageUploadID, completed); err != nil {
			return services.Wrap(services.ErrStorage, "upload", "complete", "assemble object", err)
		}
		return nil
	}
	version, created, err := m.graph.Mint(ctx, sessionID, store.NewVersion{
		GroupKey:     sess.GroupKey,
		ParentID:     sess.ParentID,
		Kind:         sess.Kind,
		Status:       workflow.InitialStatus(sess.Assignee),
		Filename:     sess.Filename,
		ContentType:  sess.ContentType,
		DeclaredSize: sess.DeclaredSize,
		StorageKey:   sess.StorageKey,
		AssignedTo:   sess.Assignee,
		AutoProcess:  sess.AutoProcess,
		NotifyLists:  sess.NotifyLists,
		CreatedBy:    sess.CreatedBy,
	}, finish)
	if err != nil {
		if lineageRejected(err) {
			return m.rejectSession(ctx, sess, err)
		}
		return nil, err
	}
	if !created {
		return version, nil
	}

	m.metrics.UploadCompleted()
	logger.Info("upload completed",
		logging.String(logging.FieldAssetVersionID, version.ID),
		logging.Int("version_number", version.VersionNumber),
		logging.String("status", string(version.Status)),
	)

	if m.announcer != nil {
		m.announcer.Announce(ctx, version, store.EventUpload)
		if version.AssignedTo != "" {
			m.announcer.Announce(ctx, version, store.EventEdit, version.AssignedTo)
		}
	}
	if version.AutoProcessRequested && m.processor != nil {
		processed, err := m.processor.Submit(ctx, version)
		if err != nil {
			logging.WarnWithContext(logger, "automatic processing request failed", "processing_failed",
				logging.String(logging.FieldAssetVersionID, version.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "retry with request-processing once the transcoder is reachable"),
				logging.String(logging.FieldImpact, "version was created without a processing request"),
			)
		} else {
			version = processed
		}
	}
	return version, nil
}

func lineageRejected(err error) bool {
	return errors.Is(err, services.ErrDuplicateOriginal) ||
		errors.Is(err, services.ErrInvalidParent) ||
		errors.Is(err, services.ErrValidation)
}

// rejectSession aborts a session whose lineage no longer holds at completion
// time. The object was never assembled, so only the reservation is released.
// A session completed elsewhere in the meantime resolves to its version.
func (m *Manager) rejectSession(ctx context.Context, sess *store.UploadSession, cause error) (*store.AssetVersion, error) {
	changed, err := m.store.AbortSession(ctx, sess.ID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "upload", "complete", "abort rejected session", err)
	}
	if !changed {
		current, err := m.loadSession(ctx, sess.ID, "complete")
		if err != nil {
			return nil, err
		}
		if current.Status == store.SessionCompleted {
			return m.graph.Get(ctx, current.VersionID)
		}
		return nil, cause
	}
	m.releaseStorage(ctx, sess, "lineage_rejected")
	logging.WarnWithContext(logging.WithContext(ctx, m.logger), "upload rejected at completion", "lineage_rejected",
		logging.String(logging.FieldAssetGroup, sess.GroupKey),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "initiate a new session against the current latest version"),
		logging.String(logging.FieldImpact, "session aborted and uploaded parts released"),
	)
	return nil, cause
}

// Abort marks the session aborted and releases its storage reservation.
// Aborting a terminal session is a no-op.
func (m *Manager) Abort(ctx context.Context, sessionID string) error {
	unlock := m.sessions.Lock(sessionID)
	defer unlock()

	sess, err := m.loadSession(ctx, sessionID, "abort")
	if err != nil {
		return err
	}
	if sess.Status.IsTerminal() {
		return nil
	}
	changed, err := m.store.AbortSession(ctx, sessionID)
	if err != nil {
		return services.Wrap(services.ErrStorage, "upload", "abort", "mark aborted", err)
	}
	if changed {
		m.releaseStorage(ctx, sess, "caller")
	}
	return nil
}

// SessionView is the describe output for one session.
type SessionView struct {
	Session  *store.UploadSession
	Reported []int
	Missing  []int
}

// Describe returns the session with its reported and missing part numbers.
func (m *Manager) Describe(ctx context.Context, sessionID string) (*SessionView, error) {
	sess, err := m.loadSession(ctx, sessionID, "describe")
	if err != nil {
		return nil, err
	}
	parts, err := m.store.ListParts(ctx, sessionID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "upload", "describe", "list parts", err)
	}
	_, missing := assemble(sess.TotalParts, parts)
	reported := make([]int, 0, len(parts))
	for _, p := range parts {
		reported = append(reported, p.PartNumber)
	}
	return &SessionView{Session: sess, Reported: reported, Missing: missing}, nil
}

// SweepExpired aborts every non-terminal session past its expiry and returns
// how many were aborted.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	expired, err := m.store.ListExpiredSessions(ctx, m.now())
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "upload", "sweep", "list expired sessions", err)
	}
	aborted := 0
	for _, sess := range expired {
		if err := ctx.Err(); err != nil {
			return aborted, err
		}
		unlock := m.sessions.Lock(sess.ID)
		changed, err := m.store.AbortSession(ctx, sess.ID)
		if err == nil && changed {
			m.releaseStorage(ctx, sess, "expired")
			aborted++
		}
		unlock()
		if err != nil {
			return aborted, services.Wrap(services.ErrStorage, "upload", "sweep", "abort session", err)
		}
	}
	if aborted > 0 {
		m.logger.Info("expired upload sessions aborted", logging.Int("count", aborted))
	}
	return aborted, nil
}

func (m *Manager) releaseStorage(ctx context.Context, sess *store.UploadSession, reason string) {
	m.metrics.UploadAborted(reason)
	if sess.StorageUploadID == "" {
		return
	}
	if err := m.storage.Abort(context.WithoutCancel(ctx), sess.StorageKey, sess.StorageUploadID); err != nil {
		logging.WarnWithContext(logging.WithContext(services.WithSessionID(ctx, sess.ID), m.logger),
			"storage abort failed", "storage_abort_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "configure a bucket lifecycle rule for incomplete multipart uploads"),
			logging.String(logging.FieldImpact, "uploaded parts remain in storage until they expire"),
		)
	}
}

func (m *Manager) loadSession(ctx context.Context, sessionID, op string) (*store.UploadSession, error) {
	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "upload", op, "load session", err)
	}
	if sess == nil {
		return nil, services.Wrap(services.ErrSessionNotFound, "upload", op, sessionID, nil)
	}
	return sess, nil
}

func (m *Manager) openSession(ctx context.Context, sessionID, op string) (*store.UploadSession, error) {
	sess, err := m.loadSession(ctx, sessionID, op)
	if err != nil {
		return nil, err
	}
	if sess.Status.IsTerminal() {
		return nil, services.Wrap(services.ErrSessionTerminal, "upload", op,
			fmt.Sprintf("session %s is %s", sessionID, sess.Status), nil)
	}
	return sess, nil
}

func checkPartNumber(sess *store.UploadSession, n int) error {
	if n < 1 || n > sess.TotalParts {
		return services.Wrap(services.ErrValidation, "upload", "part number",
			fmt.Sprintf("part %d is outside 1..%d", n, sess.TotalParts), nil)
	}
	return nil
}

// assemble orders reported parts for storage and lists the missing numbers.
func assemble(totalParts int, parts []store.UploadPart) ([]objectstore.CompletedPart, []int) {
	byNumber := make(map[int]string, len(parts))
	for _, p := range parts {
		byNumber[p.PartNumber] = p.Token
	}
	if totalParts < 1 {
		return nil, nil
	}
	completed := make([]objectstore.CompletedPart, 0, totalParts)
	var missing []int
	for n := 1; n <= totalParts; n++ {
		token, ok := byNumber[n]
		if !ok {
			missing = append(missing, n)
			continue
		}
		completed = append(completed, objectstore.CompletedPart{PartNumber: n, ETag: token})
	}
	return completed, missing
}
