// Package processing submits published or explicitly requested asset versions
// to the external transcoding collaborator.
package processing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"assetflow/internal/config"
	"assetflow/internal/logging"
	"assetflow/internal/metrics"
	"assetflow/internal/services"
	"assetflow/internal/store"
)

const userAgent = "assetflow/0.1.0"

// Job is the payload sent to the transcoder.
type Job struct {
	AssetVersionID string `json:"assetVersionId"`
	GroupKey       string `json:"groupKey"`
	VersionNumber  int    `json:"versionNumber"`
	StorageKey     string `json:"storageKey"`
	ContentType    string `json:"contentType,omitempty"`
}

// Transcoder accepts processing jobs.
type Transcoder interface {
	Submit(ctx context.Context, job Job) error
}

// NewTranscoder returns an HTTP client when an endpoint is configured and a
// noop transcoder otherwise.
func NewTranscoder(cfg *config.Config) Transcoder {
	endpoint := strings.TrimSpace(cfg.Processing.TranscoderEndpoint)
	if endpoint == "" {
		return noopTranscoder{}
	}
	timeout := time.Duration(cfg.Processing.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &httpTranscoder{
		endpoint: endpoint,
		token:    cfg.Processing.TranscoderToken,
		client:   &http.Client{Timeout: timeout},
	}
}

type httpTranscoder struct {
	endpoint string
	token    string
	client   *http.Client
}

func (h *httpTranscoder) Submit(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode processing job: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build processing request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("submit processing job: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("transcoder returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopTranscoder struct{}

func (noopTranscoder) Submit(context.Context, Job) error { return nil }

// VersionStore is the slice of the store the trigger needs.
type VersionStore interface {
	GetVersion(ctx context.Context, id string) (*store.AssetVersion, error)
	MarkProcessingRequested(ctx context.Context, id string, at time.Time) error
}

// Trigger submits versions to the transcoder and stamps processing_requested_at
// once the transcoder accepts the job.
type Trigger struct {
	store      VersionStore
	transcoder Transcoder
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewTrigger wires a processing trigger.
func NewTrigger(st VersionStore, transcoder Transcoder, logger *slog.Logger, m *metrics.Metrics) *Trigger {
	if transcoder == nil {
		transcoder = noopTranscoder{}
	}
	return &Trigger{
		store:      st,
		transcoder: transcoder,
		logger:     logging.NewComponentLogger(logger, "processing"),
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RequestProcessing loads the version and submits it. Failures are returned
// wrapped in ErrProcessingRequestFailed and leave the version unchanged.
func (t *Trigger) RequestProcessing(ctx context.Context, versionID string) (*store.AssetVersion, error) {
	version, err := t.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "processing", "load version", versionID, err)
	}
	if version == nil {
		return nil, services.Wrap(services.ErrVersionNotFound, "processing", "load version", versionID, nil)
	}
	return t.Submit(ctx, version)
}

// Submit sends an already loaded version to the transcoder.
func (t *Trigger) Submit(ctx context.Context, version *store.AssetVersion) (*store.AssetVersion, error) {
	job := Job{
		AssetVersionID: version.ID,
		GroupKey:       version.GroupKey,
		VersionNumber:  version.VersionNumber,
		StorageKey:     version.StorageKey,
		ContentType:    version.ContentType,
	}
	if err := t.transcoder.Submit(ctx, job); err != nil {
		t.metrics.Processing("failed")
		return nil, services.Wrap(services.ErrProcessingRequestFailed, "processing", "submit", version.ID, err)
	}

	at := t.now()
	if err := t.store.MarkProcessingRequested(ctx, version.ID, at); err != nil {
		return nil, services.Wrap(services.ErrStorage, "processing", "mark requested", version.ID, err)
	}
	t.metrics.Processing("accepted")
	t.logger.Info("processing requested",
		logging.String(logging.FieldAssetVersionID, version.ID),
		logging.String(logging.FieldAssetGroup, version.GroupKey),
	)

	updated := *version
	updated.ProcessingRequestedAt = &at
	return &updated, nil
}
