package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"assetflow/internal/services"
)

const sessionColumns = "id, group_key, parent_id, kind, filename, content_type, declared_size, chunk_size, total_parts, status, storage_key, storage_upload_id, assignee, auto_process, notify_json, created_by, version_id, created_at, updated_at, expires_at, completed_at"

func scanSession(scanner interface{ Scan(dest ...any) error }) (*UploadSession, error) {
	var (
		sess        UploadSession
		parentID    sql.NullString
		kindStr     string
		contentType sql.NullString
		statusStr   string
		uploadID    sql.NullString
		assignee    sql.NullString
		autoProcess int64
		notifyRaw   sql.NullString
		createdBy   sql.NullString
		versionID   sql.NullString
		createdRaw  string
		updatedRaw  string
		expiresRaw  string
		completed   sql.NullString
	)
	if err := scanner.Scan(
		&sess.ID,
		&sess.GroupKey,
		&parentID,
		&kindStr,
		&sess.Filename,
		&contentType,
		&sess.DeclaredSize,
		&sess.ChunkSize,
		&sess.TotalParts,
		&statusStr,
		&sess.StorageKey,
		&uploadID,
		&assignee,
		&autoProcess,
		&notifyRaw,
		&createdBy,
		&versionID,
		&createdRaw,
		&updatedRaw,
		&expiresRaw,
		&completed,
	); err != nil {
		return nil, err
	}

	status, err := parseSessionStatus(statusStr)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sess.ID, err)
	}
	lists, err := decodeNotifyLists(notifyRaw)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sess.ID, err)
	}
	sess.Status = status
	sess.Kind = Kind(kindStr)
	sess.ParentID = parentID.String
	sess.ContentType = contentType.String
	sess.StorageUploadID = uploadID.String
	sess.Assignee = assignee.String
	sess.AutoProcess = autoProcess != 0
	sess.NotifyLists = lists
	sess.CreatedBy = createdBy.String
	sess.VersionID = versionID.String
	sess.CompletedAt = parseNullTime(completed)
	if t, err := parseTimeString(createdRaw); err == nil {
		sess.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		sess.UpdatedAt = t
	}
	if t, err := parseTimeString(expiresRaw); err == nil {
		sess.ExpiresAt = t
	}
	return &sess, nil
}

// CreateSession persists a new session in the initiated state.
func (s *Store) CreateSession(ctx context.Context, sess *UploadSession) error {
	if sess == nil {
		return errors.New("create session: nil session")
	}
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = sess.CreatedAt
	sess.Status = SessionInitiated

	notify, err := encodeNotifyLists(sess.NotifyLists)
	if err != nil {
		return err
	}

	if _, err := s.execWithRetry(ctx,
		`INSERT INTO upload_sessions (
            id, group_key, parent_id, kind, filename, content_type, declared_size, chunk_size,
            total_parts, status, storage_key, storage_upload_id, assignee, auto_process,
            notify_json, created_by, created_at, updated_at, expires_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID,
		sess.GroupKey,
		nullableString(sess.ParentID),
		sess.Kind,
		sess.Filename,
		nullableString(sess.ContentType),
		sess.DeclaredSize,
		sess.ChunkSize,
		sess.TotalParts,
		sess.Status,
		sess.StorageKey,
		nullableString(sess.StorageUploadID),
		nullableString(sess.Assignee),
		boolToInt(sess.AutoProcess),
		notify,
		nullableString(sess.CreatedBy),
		formatTime(sess.CreatedAt),
		formatTime(sess.UpdatedAt),
		formatTime(sess.ExpiresAt),
	); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession fetches a session by id. A missing session yields (nil, nil).
func (s *Store) GetSession(ctx context.Context, id string) (*UploadSession, error) {
	row := s.queryRow(ctx, "SELECT "+sessionColumns+" FROM upload_sessions WHERE id = ?", id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// UpsertPart records or overwrites the token for one part and promotes an
// initiated session to in_progress.
func (s *Store) UpsertPart(ctx context.Context, sessionID string, partNumber int, token string) error {
	now := formatTime(time.Now().UTC())
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO upload_parts (session_id, part_number, token, reported_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT (session_id, part_number) DO UPDATE SET token = excluded.token, reported_at = excluded.reported_at`,
		sessionID, partNumber, token, now,
	); err != nil {
		return fmt.Errorf("upsert part: %w", err)
	}
	if _, err := s.execWithRetry(ctx,
		"UPDATE upload_sessions SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		SessionInProgress, now, sessionID, SessionInitiated,
	); err != nil {
		return fmt.Errorf("mark session in progress: %w", err)
	}
	return nil
}

// ListParts returns the reported parts of a session ordered by part number.
func (s *Store) ListParts(ctx context.Context, sessionID string) ([]UploadPart, error) {
	rows, err := s.query(ctx,
		"SELECT session_id, part_number, token, reported_at FROM upload_parts WHERE session_id = ? ORDER BY part_number ASC",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list parts: %w", err)
	}
	defer rows.Close()

	var parts []UploadPart
	for rows.Next() {
		var (
			part     UploadPart
			reported string
		)
		if err := rows.Scan(&part.SessionID, &part.PartNumber, &part.Token, &reported); err != nil {
			return nil, fmt.Errorf("scan part: %w", err)
		}
		if t, err := parseTimeString(reported); err == nil {
			part.ReportedAt = t
		}
		parts = append(parts, part)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parts: %w", err)
	}
	return parts, nil
}

// FinalizeSession mints the version for a session and marks the session
// completed in one transaction. When the session was already completed the
// existing version is returned with created=false.
func (s *Store) FinalizeSession(ctx context.Context, sessionID string, nv NewVersion) (version *AssetVersion, created bool, err error) {
	now := time.Now().UTC()
	var existingID string

	err = s.withTx(ctx, func(t *txn) error {
		version, created, existingID = nil, false, ""

		var (
			statusStr string
			versionID sql.NullString
		)
		scanErr := t.queryRow(ctx, "SELECT status, version_id FROM upload_sessions WHERE id = ?", sessionID).Scan(&statusStr, &versionID)
		if errors.Is(scanErr, sql.ErrNoRows) {
			return services.Wrap(services.ErrSessionNotFound, "store", "finalize session", sessionID, nil)
		}
		if scanErr != nil {
			return fmt.Errorf("read session: %w", scanErr)
		}
		switch SessionStatus(statusStr) {
		case SessionCompleted:
			existingID = versionID.String
			return nil
		case SessionAborted:
			return services.Wrap(services.ErrSessionTerminal, "store", "finalize session",
				fmt.Sprintf("session %s was aborted", sessionID), nil)
		}

		nv.SessionID = sessionID
		minted, mintErr := mintVersionTx(ctx, t, nv, now)
		if mintErr != nil {
			return mintErr
		}

		res, execErr := t.exec(ctx,
			`UPDATE upload_sessions SET status = ?, version_id = ?, completed_at = ?, updated_at = ?
             WHERE id = ? AND status IN (?, ?)`,
			SessionCompleted, minted.ID, formatTime(now), formatTime(now),
			sessionID, SessionInitiated, SessionInProgress,
		)
		if execErr != nil {
			return fmt.Errorf("complete session: %w", execErr)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return services.Wrap(services.ErrStaleState, "store", "finalize session",
				fmt.Sprintf("session %s changed during completion", sessionID), nil)
		}
		version, created = minted, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if existingID != "" {
		version, err = s.GetVersion(ctx, existingID)
		if err != nil {
			return nil, false, err
		}
		if version == nil {
			return nil, false, services.Wrap(services.ErrVersionNotFound, "store", "finalize session",
				fmt.Sprintf("session %s references missing version %s", sessionID, existingID), nil)
		}
	}
	return version, created, nil
}

// AbortSession marks a non-terminal session aborted. It reports whether the
// status changed; aborting a terminal session is a no-op.
func (s *Store) AbortSession(ctx context.Context, sessionID string) (bool, error) {
	now := formatTime(time.Now().UTC())
	res, err := s.execWithRetry(ctx,
		"UPDATE upload_sessions SET status = ?, updated_at = ? WHERE id = ? AND status IN (?, ?)",
		SessionAborted, now, sessionID, SessionInitiated, SessionInProgress,
	)
	if err != nil {
		return false, fmt.Errorf("abort session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListExpiredSessions returns non-terminal sessions whose expiry is before cutoff.
func (s *Store) ListExpiredSessions(ctx context.Context, cutoff time.Time) ([]*UploadSession, error) {
	open := []any{SessionInitiated, SessionInProgress}
	args := append([]any{formatTime(cutoff)}, open...)
	rows, err := s.query(ctx,
		"SELECT "+sessionColumns+" FROM upload_sessions WHERE expires_at < ? AND status IN ("+makePlaceholders(len(open))+") ORDER BY expires_at ASC",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list expired sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*UploadSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}
