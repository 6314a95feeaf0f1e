package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

func insertEventTx(ctx context.Context, t *txn, ev *AuditEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if _, err := t.exec(ctx,
		`INSERT INTO workflow_events (id, version_id, action, from_status, to_status, actor, notes, suggestions, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID,
		ev.VersionID,
		ev.Action,
		nullableString(string(ev.FromStatus)),
		ev.ToStatus,
		nullableString(ev.Actor),
		nullableString(ev.Notes),
		nullableString(ev.Suggestions),
		formatTime(ev.At),
	); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListAuditEvents returns the audit trail of a version in the order actions were applied.
func (s *Store) ListAuditEvents(ctx context.Context, versionID string) ([]AuditEvent, error) {
	rows, err := s.query(ctx,
		`SELECT id, version_id, action, from_status, to_status, actor, notes, suggestions, created_at
         FROM workflow_events WHERE version_id = ? ORDER BY created_at ASC, id ASC`,
		versionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var (
			ev          AuditEvent
			from        sql.NullString
			to          string
			actor       sql.NullString
			notes       sql.NullString
			suggestions sql.NullString
			createdRaw  string
		)
		if err := rows.Scan(&ev.ID, &ev.VersionID, &ev.Action, &from, &to, &actor, &notes, &suggestions, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ev.FromStatus = Status(from.String)
		ev.ToStatus = Status(to)
		ev.Actor = actor.String
		ev.Notes = notes.String
		ev.Suggestions = suggestions.String
		if t, err := parseTimeString(createdRaw); err == nil {
			ev.At = t
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
