package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"assetflow/internal/config"
	"assetflow/internal/logging"
	"assetflow/internal/metrics"
	"assetflow/internal/notifications"
	"assetflow/internal/services"
	"assetflow/internal/store"
)

// Store is the persistence surface the machine mutates.
type Store interface {
	GetVersion(ctx context.Context, id string) (*store.AssetVersion, error)
	ApplyTransition(ctx context.Context, tr store.Transition) (*store.AssetVersion, error)
}

// Notifier delivers one lifecycle event to a recipient set.
type Notifier interface {
	Dispatch(ctx context.Context, version *store.AssetVersion, event store.EventType, recipients []string) (*store.NotificationRecord, error)
}

// Processor submits a version for transcoding.
type Processor interface {
	Submit(ctx context.Context, version *store.AssetVersion) (*store.AssetVersion, error)
}

// Dependencies groups the collaborators of a Machine. Notifier and Processor
// may be nil.
type Dependencies struct {
	Store      Store
	Notifier   Notifier
	Recipients *notifications.Resolver
	Processor  Processor
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Machine applies workflow actions to asset versions.
type Machine struct {
	store            Store
	notifier         Notifier
	recipients       *notifications.Resolver
	processor        Processor
	processOnPublish bool
	metrics          *metrics.Metrics
	logger           *slog.Logger
	now              func() time.Time
}

// NewMachine wires a state machine.
func NewMachine(cfg *config.Config, deps Dependencies) *Machine {
	m := &Machine{
		store:      deps.Store,
		notifier:   deps.Notifier,
		recipients: deps.Recipients,
		processor:  deps.Processor,
		metrics:    deps.Metrics,
		logger:     logging.NewComponentLogger(deps.Logger, "workflow"),
		now:        func() time.Time { return time.Now().UTC() },
	}
	if cfg != nil {
		m.processOnPublish = cfg.Processing.OnPublish
	}
	return m
}

// Request carries the inputs of one workflow action. Expected, when set, is
// the status the caller believes the version is in.
type Request struct {
	VersionID   string
	Expected    store.Status
	Actor       string
	Assignee    string
	Notes       string
	AutoPublish bool
	Reason      string
	Suggestions string
}

// Assign moves a draft into pending_edit for the named editor.
func (m *Machine) Assign(ctx context.Context, req Request) (*store.AssetVersion, error) {
	return m.Apply(ctx, ActionAssign, req)
}

// Reassign rewrites the assignee of a pending_edit version.
func (m *Machine) Reassign(ctx context.Context, req Request) (*store.AssetVersion, error) {
	return m.Apply(ctx, ActionReassign, req)
}

// SendForReview moves a draft into pending_review.
func (m *Machine) SendForReview(ctx context.Context, req Request) (*store.AssetVersion, error) {
	return m.Apply(ctx, ActionSendForReview, req)
}

// Approve accepts a version under review. With AutoPublish the version moves
// straight to published in the same update.
func (m *Machine) Approve(ctx context.Context, req Request) (*store.AssetVersion, error) {
	return m.Apply(ctx, ActionApprove, req)
}

// Reject closes a version under review. A reason is required.
func (m *Machine) Reject(ctx context.Context, req Request) (*store.AssetVersion, error) {
	return m.Apply(ctx, ActionReject, req)
}

// Publish releases an approved version.
func (m *Machine) Publish(ctx context.Context, req Request) (*store.AssetVersion, error) {
	return m.Apply(ctx, ActionPublish, req)
}

// Apply validates and performs one action.
func (m *Machine) Apply(ctx context.Context, action Action, req Request) (*store.AssetVersion, error) {
	req.Assignee = strings.TrimSpace(req.Assignee)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Actor == "" {
		req.Actor, _ = services.ActorFromContext(ctx)
	}
	ctx = services.WithActor(services.WithVersionID(ctx, req.VersionID), req.Actor)
	logger := logging.WithContext(ctx, m.logger)

	switch action {
	case ActionReject:
		if req.Reason == "" {
			return nil, services.Wrap(services.ErrMissingReason, "workflow", string(action), "rejection reason is required", nil)
		}
	case ActionAssign, ActionReassign:
		if req.Assignee == "" {
			return nil, services.Wrap(services.ErrValidation, "workflow", string(action), "assignee is required", nil)
		}
	}

	current, err := m.store.GetVersion(ctx, req.VersionID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "workflow", string(action), "load version", err)
	}
	if current == nil {
		return nil, services.Wrap(services.ErrVersionNotFound, "workflow", string(action), req.VersionID, nil)
	}

	if alreadyApplied(current, action, req.Assignee, req.AutoPublish) {
		logger.Debug("transition already applied",
			logging.String("action", string(action)),
			logging.String("status", string(current.Status)),
		)
		return current, nil
	}

	// A version approved earlier without auto-publish finishes the publish
	// step instead.
	if action == ActionApprove && req.AutoPublish && current.Status == store.StatusApproved {
		action = ActionPublish
		if req.Expected == store.StatusPendingReview {
			req.Expected = current.Status
		}
	}

	if req.Expected != "" && req.Expected != current.Status {
		return nil, services.Wrap(services.ErrStaleState, "workflow", string(action),
			fmt.Sprintf("expected %s but version is %s", req.Expected, current.Status), nil)
	}

	to, ok := Next(current.Status, action)
	if !ok {
		return nil, &services.TransitionError{From: string(current.Status), Action: string(action)}
	}
	if action == ActionApprove && req.AutoPublish {
		to = store.StatusPublished
	}

	tr := store.Transition{
		VersionID:   current.ID,
		Action:      string(action),
		From:        current.Status,
		To:          to,
		Actor:       req.Actor,
		Assignee:    req.Assignee,
		Notes:       req.Notes,
		Suggestions: req.Suggestions,
		At:          m.now(),
	}
	if action == ActionReject {
		tr.Reason = req.Reason
	}
	updated, err := m.store.ApplyTransition(ctx, tr)
	if err != nil {
		if errors.Is(err, services.ErrStaleState) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrStorage, "workflow", string(action), "apply transition", err)
	}

	m.metrics.Transition(string(action), string(to))
	logger.Info("workflow transition",
		logging.String("action", string(action)),
		logging.String("from", string(current.Status)),
		logging.String("to", string(to)),
	)

	var extra []string
	if action == ActionAssign || action == ActionReassign {
		extra = append(extra, req.Assignee)
	}
	m.Announce(ctx, updated, eventFor(action, to), extra...)

	if to == store.StatusPublished && m.processOnPublish {
		if processed := m.requestProcessing(ctx, updated); processed != nil {
			updated = processed
		}
	}
	return updated, nil
}

// Announce dispatches event for the version to its resolved recipients.
// Delivery failures are logged and otherwise ignored.
func (m *Machine) Announce(ctx context.Context, version *store.AssetVersion, event store.EventType, extra ...string) {
	if m.notifier == nil || version == nil {
		return
	}
	ctx = services.WithVersionID(ctx, version.ID)
	recipients := m.recipients.Recipients(event, version, extra...)
	if _, err := m.notifier.Dispatch(ctx, version, event, recipients); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "notification not delivered", "notification_failed",
			logging.String("notify_event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.mail_endpoint and relay availability"),
			logging.String(logging.FieldImpact, "recipients were not notified; workflow state is unchanged"),
		)
	}
}

func (m *Machine) requestProcessing(ctx context.Context, version *store.AssetVersion) *store.AssetVersion {
	if m.processor == nil {
		return nil
	}
	processed, err := m.processor.Submit(ctx, version)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "processing request failed after publish", "processing_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "retry with request-processing once the transcoder is reachable"),
			logging.String(logging.FieldImpact, "version stays published without a processing request"),
		)
		return nil
	}
	return processed
}
