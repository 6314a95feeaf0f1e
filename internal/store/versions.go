package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"assetflow/internal/services"
)

const versionColumns = "id, group_key, version_number, kind, parent_id, session_id, filename, content_type, declared_size, storage_key, duration_seconds, status, assigned_to, assigned_by, assigned_at, approved_by, approved_at, approval_notes, rejected_by, rejected_at, rejection_reason, rejection_suggestions, auto_process, is_published, published_at, processing_requested_at, notify_json, created_by, created_at, updated_at"

func scanVersion(scanner interface{ Scan(dest ...any) error }) (*AssetVersion, error) {
	var (
		v                    AssetVersion
		kindStr              string
		statusStr            string
		parentID             sql.NullString
		sessionID            sql.NullString
		contentType          sql.NullString
		duration             sql.NullFloat64
		assignedTo           sql.NullString
		assignedBy           sql.NullString
		assignedAt           sql.NullString
		approvedBy           sql.NullString
		approvedAt           sql.NullString
		approvalNotes        sql.NullString
		rejectedBy           sql.NullString
		rejectedAt           sql.NullString
		rejectionReason      sql.NullString
		rejectionSuggestions sql.NullString
		autoProcess          int64
		isPublished          int64
		publishedAt          sql.NullString
		processingAt         sql.NullString
		notifyRaw            sql.NullString
		createdBy            sql.NullString
		createdRaw           string
		updatedRaw           string
	)

	if err := scanner.Scan(
		&v.ID,
		&v.GroupKey,
		&v.VersionNumber,
		&kindStr,
		&parentID,
		&sessionID,
		&v.Filename,
		&contentType,
		&v.DeclaredSize,
		&v.StorageKey,
		&duration,
		&statusStr,
		&assignedTo,
		&assignedBy,
		&assignedAt,
		&approvedBy,
		&approvedAt,
		&approvalNotes,
		&rejectedBy,
		&rejectedAt,
		&rejectionReason,
		&rejectionSuggestions,
		&autoProcess,
		&isPublished,
		&publishedAt,
		&processingAt,
		&notifyRaw,
		&createdBy,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	status, err := ParseStatus(statusStr)
	if err != nil {
		return nil, fmt.Errorf("version %s: %w", v.ID, err)
	}
	kind, err := ParseKind(kindStr)
	if err != nil || kind == "" {
		return nil, fmt.Errorf("version %s: unknown kind %q", v.ID, kindStr)
	}
	lists, err := decodeNotifyLists(notifyRaw)
	if err != nil {
		return nil, fmt.Errorf("version %s: %w", v.ID, err)
	}

	v.Kind = kind
	v.Status = status
	v.ParentID = parentID.String
	v.SessionID = sessionID.String
	v.ContentType = contentType.String
	if duration.Valid {
		d := duration.Float64
		v.DurationSeconds = &d
	}
	v.AssignedTo = assignedTo.String
	v.AssignedBy = assignedBy.String
	v.AssignedAt = parseNullTime(assignedAt)
	v.ApprovedBy = approvedBy.String
	v.ApprovedAt = parseNullTime(approvedAt)
	v.ApprovalNotes = approvalNotes.String
	v.RejectedBy = rejectedBy.String
	v.RejectedAt = parseNullTime(rejectedAt)
	v.RejectionReason = rejectionReason.String
	v.RejectionSuggestions = rejectionSuggestions.String
	v.AutoProcessRequested = autoProcess != 0
	v.IsPublished = isPublished != 0
	v.PublishedAt = parseNullTime(publishedAt)
	v.ProcessingRequestedAt = parseNullTime(processingAt)
	v.NotifyLists = lists
	v.CreatedBy = createdBy.String
	if created, err := parseTimeString(createdRaw); err == nil {
		v.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		v.UpdatedAt = updated
	}
	return &v, nil
}

// GetVersion fetches a version by id. A missing version yields (nil, nil).
func (s *Store) GetVersion(ctx context.Context, id string) (*AssetVersion, error) {
	row := s.queryRow(ctx, "SELECT "+versionColumns+" FROM asset_versions WHERE id = ?", id)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	return v, nil
}

// ListLineage returns every version of a group ordered by version number.
func (s *Store) ListLineage(ctx context.Context, groupKey string) ([]*AssetVersion, error) {
	rows, err := s.query(ctx,
		"SELECT "+versionColumns+" FROM asset_versions WHERE group_key = ? ORDER BY version_number ASC",
		groupKey,
	)
	if err != nil {
		return nil, fmt.Errorf("list lineage: %w", err)
	}
	defer rows.Close()

	var versions []*AssetVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lineage: %w", err)
	}
	return versions, nil
}

// LatestVersion returns the version with the greatest number in a group, or (nil, nil).
func (s *Store) LatestVersion(ctx context.Context, groupKey string) (*AssetVersion, error) {
	row := s.queryRow(ctx,
		"SELECT "+versionColumns+" FROM asset_versions WHERE group_key = ? ORDER BY version_number DESC LIMIT 1",
		groupKey,
	)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest version: %w", err)
	}
	return v, nil
}

// NextVersionNumber reports the number the next minted version of a group would receive.
func (s *Store) NextVersionNumber(ctx context.Context, groupKey string) (int, error) {
	var maxNumber int
	if err := s.queryRow(ctx,
		"SELECT COALESCE(MAX(version_number), 0) FROM asset_versions WHERE group_key = ?",
		groupKey,
	).Scan(&maxNumber); err != nil {
		return 0, fmt.Errorf("max version number: %w", err)
	}
	return maxNumber + 1, nil
}

// NewVersion describes the version minted when an upload session completes.
type NewVersion struct {
	GroupKey     string
	ParentID     string
	Kind         Kind
	Status       Status
	SessionID    string
	Filename     string
	ContentType  string
	DeclaredSize int64
	StorageKey   string
	AssignedTo   string
	AutoProcess  bool
	NotifyLists  NotifyLists
	CreatedBy    string
}

// mintVersionTx validates lineage and inserts the version under the group lock.
func mintVersionTx(ctx context.Context, t *txn, nv NewVersion, now time.Time) (*AssetVersion, error) {
	if err := t.lockGroup(ctx, nv.GroupKey); err != nil {
		return nil, fmt.Errorf("lock group: %w", err)
	}

	var maxNumber, count int
	if err := t.queryRow(ctx,
		"SELECT COALESCE(MAX(version_number), 0), COUNT(1) FROM asset_versions WHERE group_key = ?",
		nv.GroupKey,
	).Scan(&maxNumber, &count); err != nil {
		return nil, fmt.Errorf("read group: %w", err)
	}

	if strings.TrimSpace(nv.ParentID) == "" {
		if count > 0 {
			return nil, services.Wrap(services.ErrDuplicateOriginal, "store", "mint version",
				fmt.Sprintf("group %q already has an original", nv.GroupKey), nil)
		}
		nv.Kind = KindOriginal
	} else {
		var parentGroup string
		err := t.queryRow(ctx, "SELECT group_key FROM asset_versions WHERE id = ?", nv.ParentID).Scan(&parentGroup)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.Wrap(services.ErrInvalidParent, "store", "mint version",
				fmt.Sprintf("parent %s does not exist", nv.ParentID), nil)
		}
		if err != nil {
			return nil, fmt.Errorf("read parent: %w", err)
		}
		if parentGroup != nv.GroupKey {
			return nil, services.Wrap(services.ErrInvalidParent, "store", "mint version",
				fmt.Sprintf("parent %s belongs to group %q", nv.ParentID, parentGroup), nil)
		}
		if nv.Kind != KindEdited && nv.Kind != KindFinal {
			return nil, services.Wrap(services.ErrValidation, "store", "mint version",
				fmt.Sprintf("kind %q is not valid for a child version", nv.Kind), nil)
		}
	}

	v := &AssetVersion{
		ID:                   uuid.NewString(),
		GroupKey:             nv.GroupKey,
		VersionNumber:        maxNumber + 1,
		Kind:                 nv.Kind,
		ParentID:             nv.ParentID,
		SessionID:            nv.SessionID,
		Filename:             nv.Filename,
		ContentType:          nv.ContentType,
		DeclaredSize:         nv.DeclaredSize,
		StorageKey:           nv.StorageKey,
		Status:               nv.Status,
		AssignedTo:           nv.AssignedTo,
		AutoProcessRequested: nv.AutoProcess,
		NotifyLists:          nv.NotifyLists,
		CreatedBy:            nv.CreatedBy,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if v.AssignedTo != "" {
		v.AssignedBy = nv.CreatedBy
		at := now
		v.AssignedAt = &at
	}

	notify, err := encodeNotifyLists(v.NotifyLists)
	if err != nil {
		return nil, err
	}

	_, err = t.exec(ctx,
		`INSERT INTO asset_versions (
            id, group_key, version_number, kind, parent_id, session_id, filename, content_type,
            declared_size, storage_key, status, assigned_to, assigned_by, assigned_at,
            auto_process, is_published, notify_json, created_by, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		v.ID,
		v.GroupKey,
		v.VersionNumber,
		v.Kind,
		nullableString(v.ParentID),
		nullableString(v.SessionID),
		v.Filename,
		nullableString(v.ContentType),
		v.DeclaredSize,
		v.StorageKey,
		v.Status,
		nullableString(v.AssignedTo),
		nullableString(v.AssignedBy),
		nullableTime(v.AssignedAt),
		boolToInt(v.AutoProcessRequested),
		notify,
		nullableString(v.CreatedBy),
		formatTime(now),
		formatTime(now),
	)
	if isUniqueViolation(err) {
		return nil, services.Wrap(services.ErrStaleState, "store", "mint version",
			fmt.Sprintf("version number %d already taken in group %q", v.VersionNumber, v.GroupKey), err)
	}
	if err != nil {
		return nil, fmt.Errorf("insert version: %w", err)
	}

	if err := insertEventTx(ctx, t, &AuditEvent{
		VersionID: v.ID,
		Action:    "upload",
		ToStatus:  v.Status,
		Actor:     v.CreatedBy,
		At:        now,
	}); err != nil {
		return nil, err
	}
	return v, nil
}

// Transition is a status change (or an assignment rewrite) applied under an
// optimistic check on the current status.
type Transition struct {
	VersionID   string
	Action      string
	From        Status
	To          Status
	Actor       string
	Assignee    string
	Notes       string
	Reason      string
	Suggestions string
	At          time.Time
}

// ApplyTransition updates the version only when its stored status still equals
// t.From, and appends the matching audit event in the same transaction.
func (s *Store) ApplyTransition(ctx context.Context, tr Transition) (*AssetVersion, error) {
	if tr.At.IsZero() {
		tr.At = time.Now().UTC()
	}
	ts := formatTime(tr.At)

	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{tr.To, ts}
	if tr.Assignee != "" {
		sets = append(sets, "assigned_to = ?", "assigned_by = ?", "assigned_at = ?")
		args = append(args, tr.Assignee, nullableString(tr.Actor), ts)
	}
	switch tr.Action {
	case "approve":
		sets = append(sets, "approved_by = ?", "approved_at = ?", "approval_notes = ?")
		args = append(args, nullableString(tr.Actor), ts, nullableString(tr.Notes))
	case "reject":
		sets = append(sets, "rejected_by = ?", "rejected_at = ?", "rejection_reason = ?", "rejection_suggestions = ?")
		args = append(args, nullableString(tr.Actor), ts, tr.Reason, nullableString(tr.Suggestions))
	}
	if tr.To == StatusPublished {
		sets = append(sets, "is_published = 1", "published_at = ?")
		args = append(args, ts)
	}
	args = append(args, tr.VersionID, tr.From)

	err := s.withTx(ctx, func(t *txn) error {
		res, err := t.exec(ctx,
			"UPDATE asset_versions SET "+strings.Join(sets, ", ")+" WHERE id = ? AND status = ?",
			args...,
		)
		if err != nil {
			return fmt.Errorf("update version status: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return services.Wrap(services.ErrStaleState, "store", tr.Action,
				fmt.Sprintf("version %s is no longer %s", tr.VersionID, tr.From), nil)
		}
		notes := tr.Notes
		if notes == "" {
			notes = tr.Reason
		}
		return insertEventTx(ctx, t, &AuditEvent{
			VersionID:   tr.VersionID,
			Action:      tr.Action,
			FromStatus:  tr.From,
			ToStatus:    tr.To,
			Actor:       tr.Actor,
			Notes:       notes,
			Suggestions: tr.Suggestions,
			At:          tr.At,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetVersion(ctx, tr.VersionID)
}

// MarkProcessingRequested stamps the time a processing request was accepted.
func (s *Store) MarkProcessingRequested(ctx context.Context, id string, at time.Time) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE asset_versions SET processing_requested_at = ?, updated_at = ? WHERE id = ?",
		formatTime(at), formatTime(at), id,
	)
	if err != nil {
		return fmt.Errorf("mark processing requested: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return services.Wrap(services.ErrVersionNotFound, "store", "mark processing requested", id, nil)
	}
	return nil
}
