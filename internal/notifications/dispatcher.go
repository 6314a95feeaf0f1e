package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"assetflow/internal/logging"
	"assetflow/internal/metrics"
	"assetflow/internal/services"
	"assetflow/internal/store"
)

// Recorder persists notification records.
type Recorder interface {
	InsertNotification(ctx context.Context, rec *store.NotificationRecord) error
	ListNotifications(ctx context.Context, versionID string) ([]store.NotificationRecord, error)
}

// Dispatcher fans out lifecycle events and records each delivery outcome.
type Dispatcher struct {
	recorder Recorder
	mailer   Mailer
	from     string
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewDispatcher wires a dispatcher. A nil mailer behaves like an unconfigured relay.
func NewDispatcher(recorder Recorder, mailer Mailer, from string, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if mailer == nil {
		mailer = noopMailer{}
	}
	return &Dispatcher{
		recorder: recorder,
		mailer:   mailer,
		from:     from,
		logger:   logging.NewComponentLogger(logger, "notifications"),
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Dispatch sends one message for the event to every recipient. An empty
// recipient set records nothing and sends nothing. Delivery failures are
// recorded as failed and returned wrapped in ErrNotificationDeliveryFailed
// so callers can log them without failing the triggering operation.
func (d *Dispatcher) Dispatch(ctx context.Context, version *store.AssetVersion, event store.EventType, recipients []string) (*store.NotificationRecord, error) {
	if version == nil {
		return nil, services.Wrap(services.ErrValidation, "notifications", "dispatch", "version is required", nil)
	}
	recipients = Dedupe(recipients)
	if len(recipients) == 0 {
		d.logger.Debug("no recipients configured",
			logging.String(logging.FieldAssetVersionID, version.ID),
			logging.String(logging.FieldEventType, string(event)),
		)
		return nil, nil
	}

	msg := render(version, event)
	msg.From = d.from
	msg.To = recipients

	rec := &store.NotificationRecord{
		VersionID:  version.ID,
		EventType:  event,
		Recipients: recipients,
		Status:     store.DeliverySent,
	}
	sendErr := d.mailer.Send(ctx, msg)
	if sendErr != nil {
		rec.Status = store.DeliveryFailed
		rec.Error = sendErr.Error()
	}
	rec.SentAt = d.now()

	// Record even when the caller's context is cancelled after delivery.
	recordCtx := context.WithoutCancel(ctx)
	if err := d.recorder.InsertNotification(recordCtx, rec); err != nil {
		return nil, services.Wrap(services.ErrStorage, "notifications", "record", "persist notification record", err)
	}
	d.metrics.Notification(string(event), string(rec.Status))

	if sendErr != nil {
		return rec, services.Wrap(services.ErrNotificationDeliveryFailed, "notifications", "dispatch",
			fmt.Sprintf("%s event to %d recipients", event, len(recipients)), sendErr)
	}
	d.logger.Info("notification sent",
		logging.String(logging.FieldAssetVersionID, version.ID),
		logging.String(logging.FieldEventType, string(event)),
		logging.Int("recipients", len(recipients)),
	)
	return rec, nil
}

// History returns the records for a version ordered by send time.
func (d *Dispatcher) History(ctx context.Context, versionID string) ([]store.NotificationRecord, error) {
	records, err := d.recorder.ListNotifications(ctx, versionID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "notifications", "history", "list notification records", err)
	}
	return records, nil
}

func render(v *store.AssetVersion, event store.EventType) Message {
	label := fmt.Sprintf("%s v%d (%s)", v.GroupKey, v.VersionNumber, v.Kind)
	var subject, body string
	switch event {
	case store.EventUpload:
		subject = "New upload: " + label
		body = fmt.Sprintf("%s was uploaded and is %s.", v.Filename, v.Status)
	case store.EventEdit:
		subject = "Edit assigned: " + label
		body = fmt.Sprintf("%s is assigned to %s for editing.", v.Filename, v.AssignedTo)
	case store.EventApproval:
		// The approval list hears about both the review request and the verdict.
		switch v.Status {
		case store.StatusPendingReview:
			subject = "Review requested: " + label
			body = fmt.Sprintf("%s is waiting for review.", v.Filename)
		case store.StatusApproved:
			subject = "Approved: " + label
			body = fmt.Sprintf("%s was approved by %s.", v.Filename, v.ApprovedBy)
		default:
			subject = "Review update: " + label
			body = fmt.Sprintf("%s is now %s.", v.Filename, v.Status)
		}
		if v.ApprovalNotes != "" {
			body += "\nNotes: " + v.ApprovalNotes
		}
	case store.EventPublish:
		subject = "Published: " + label
		body = fmt.Sprintf("%s has been published.", v.Filename)
	case store.EventRejection:
		subject = "Rejected: " + label
		body = fmt.Sprintf("%s was rejected: %s", v.Filename, v.RejectionReason)
		if v.RejectionSuggestions != "" {
			body += "\nSuggestions: " + v.RejectionSuggestions
		}
	default:
		subject = string(event) + ": " + label
	}
	return Message{Subject: subject, Body: body, Event: string(event), VersionID: v.ID}
}
