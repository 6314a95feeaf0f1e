package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertNotification appends a notification record. ID and SentAt are filled when empty.
func (s *Store) InsertNotification(ctx context.Context, rec *NotificationRecord) error {
	if rec == nil {
		return errors.New("insert notification: nil record")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now().UTC()
	}
	recipients, err := json.Marshal(rec.Recipients)
	if err != nil {
		return fmt.Errorf("encode recipients: %w", err)
	}
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO notification_records (id, version_id, event_type, recipients_json, delivery_status, error_message, sent_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.VersionID,
		rec.EventType,
		string(recipients),
		rec.Status,
		nullableString(rec.Error),
		formatTime(rec.SentAt),
	); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListNotifications returns the notification history of a version ordered by send time.
func (s *Store) ListNotifications(ctx context.Context, versionID string) ([]NotificationRecord, error) {
	rows, err := s.query(ctx,
		`SELECT id, version_id, event_type, recipients_json, delivery_status, error_message, sent_at
         FROM notification_records WHERE version_id = ? ORDER BY sent_at ASC, id ASC`,
		versionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var records []NotificationRecord
	for rows.Next() {
		var (
			rec        NotificationRecord
			eventType  string
			recipients string
			status     string
			errMsg     *string
			sentRaw    string
		)
		if err := rows.Scan(&rec.ID, &rec.VersionID, &eventType, &recipients, &status, &errMsg, &sentRaw); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		rec.EventType = EventType(eventType)
		rec.Status = DeliveryStatus(status)
		if errMsg != nil {
			rec.Error = *errMsg
		}
		if err := json.Unmarshal([]byte(recipients), &rec.Recipients); err != nil {
			return nil, fmt.Errorf("decode recipients for %s: %w", rec.ID, err)
		}
		if t, err := parseTimeString(sentRaw); err == nil {
			rec.SentAt = t
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return records, nil
}
