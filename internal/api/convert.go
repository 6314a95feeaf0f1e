package api

import (
	"errors"
	"fmt"
	"time"

	"assetflow/internal/services"
	"assetflow/internal/store"
	"assetflow/internal/upload"
	"assetflow/internal/workflow"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// FromVersion converts a store version into its API representation.
func FromVersion(v *store.AssetVersion) AssetVersion {
	if v == nil {
		return AssetVersion{}
	}
	dto := AssetVersion{
		ID:                    v.ID,
		AssetGroupKey:         v.GroupKey,
		VersionNumber:         v.VersionNumber,
		VersionKind:           string(v.Kind),
		ParentVersionID:       v.ParentID,
		Filename:              v.Filename,
		ContentType:           v.ContentType,
		DeclaredSize:          v.DeclaredSize,
		StorageKey:            v.StorageKey,
		DurationSeconds:       v.DurationSeconds,
		WorkflowStatus:        string(v.Status),
		AllowedActions:        []string{},
		AssignedTo:            v.AssignedTo,
		AssignedBy:            v.AssignedBy,
		AssignedAt:            formatTimePtr(v.AssignedAt),
		ApprovedBy:            v.ApprovedBy,
		ApprovedAt:            formatTimePtr(v.ApprovedAt),
		ApprovalNotes:         v.ApprovalNotes,
		RejectedBy:            v.RejectedBy,
		RejectedAt:            formatTimePtr(v.RejectedAt),
		RejectionReason:       v.RejectionReason,
		RejectionSuggestions:  v.RejectionSuggestions,
		AutoProcessRequested:  v.AutoProcessRequested,
		IsPublished:           v.IsPublished,
		PublishedAt:           formatTimePtr(v.PublishedAt),
		ProcessingRequestedAt: formatTimePtr(v.ProcessingRequestedAt),
		CreatedBy:             v.CreatedBy,
		CreatedAt:             formatTime(v.CreatedAt),
		UpdatedAt:             formatTime(v.UpdatedAt),
	}
	for _, a := range workflow.Allowed(v.Status) {
		dto.AllowedActions = append(dto.AllowedActions, string(a))
	}
	if len(v.NotifyLists) > 0 {
		dto.NotifyLists = make(map[string][]string, len(v.NotifyLists))
		for event, recipients := range v.NotifyLists {
			dto.NotifyLists[string(event)] = append([]string(nil), recipients...)
		}
	}
	return dto
}

// FromVersions converts a lineage into API DTOs. The result is never nil.
func FromVersions(versions []*store.AssetVersion) []AssetVersion {
	out := make([]AssetVersion, 0, len(versions))
	for _, v := range versions {
		out = append(out, FromVersion(v))
	}
	return out
}

// FromHandle converts an upload handle into the initiate response.
func FromHandle(h *upload.Handle) InitiateResponse {
	return InitiateResponse{
		SessionID:     h.SessionID,
		AssetGroupKey: h.GroupKey,
		VersionKind:   string(h.Kind),
		TotalParts:    h.TotalParts,
		ChunkSize:     h.ChunkSize,
		VersionNumber: h.VersionNumber,
		InitialStatus: string(h.InitialStatus),
		ExpiresAt:     formatTime(h.ExpiresAt),
	}
}

// FromSessionView converts a described session.
func FromSessionView(view *upload.SessionView) UploadSession {
	sess := view.Session
	dto := UploadSession{
		ID:              sess.ID,
		AssetGroupKey:   sess.GroupKey,
		ParentVersionID: sess.ParentID,
		VersionKind:     string(sess.Kind),
		Filename:        sess.Filename,
		DeclaredSize:    sess.DeclaredSize,
		ChunkSize:       sess.ChunkSize,
		TotalParts:      sess.TotalParts,
		Status:          string(sess.Status),
		ReportedParts:   append([]int{}, view.Reported...),
		MissingParts:    append([]int{}, view.Missing...),
		VersionID:       sess.VersionID,
		CreatedAt:       formatTime(sess.CreatedAt),
		ExpiresAt:       formatTime(sess.ExpiresAt),
		CompletedAt:     formatTimePtr(sess.CompletedAt),
	}
	return dto
}

// FromDestinations converts presigned part destinations.
func FromDestinations(dests []upload.Destination) []PartDestination {
	out := make([]PartDestination, 0, len(dests))
	for _, d := range dests {
		out = append(out, PartDestination{
			PartNumber: d.PartNumber,
			URL:        d.URL,
			ValidUntil: formatTime(d.ValidUntil),
		})
	}
	return out
}

// FromNotifications converts notification history.
func FromNotifications(records []store.NotificationRecord) []NotificationRecord {
	out := make([]NotificationRecord, 0, len(records))
	for _, r := range records {
		out = append(out, NotificationRecord{
			ID:             r.ID,
			AssetVersionID: r.VersionID,
			EventType:      string(r.EventType),
			Recipients:     append([]string{}, r.Recipients...),
			DeliveryStatus: string(r.Status),
			Error:          r.Error,
			SentAt:         formatTime(r.SentAt),
		})
	}
	return out
}

// FromAuditEvents converts an audit trail.
func FromAuditEvents(events []store.AuditEvent) []AuditEvent {
	out := make([]AuditEvent, 0, len(events))
	for _, e := range events {
		out = append(out, AuditEvent{
			ID:          e.ID,
			Action:      e.Action,
			FromStatus:  string(e.FromStatus),
			ToStatus:    string(e.ToStatus),
			Actor:       e.Actor,
			Notes:       e.Notes,
			Suggestions: e.Suggestions,
			At:          formatTime(e.At),
		})
	}
	return out
}

// ToInitiateRequest validates enum fields and maps the body for the upload manager.
func ToInitiateRequest(req InitiateRequest, actor string) (upload.InitiateRequest, error) {
	kind, err := store.ParseKind(req.VersionKind)
	if err != nil {
		return upload.InitiateRequest{}, services.Wrap(services.ErrValidation, "api", "initiate", err.Error(), nil)
	}
	var lists store.NotifyLists
	if len(req.NotifyLists) > 0 {
		lists = make(store.NotifyLists, len(req.NotifyLists))
		for key, recipients := range req.NotifyLists {
			event, err := store.ParseEventType(key)
			if err != nil {
				return upload.InitiateRequest{}, services.Wrap(services.ErrValidation, "api", "initiate",
					fmt.Sprintf("notifyLists: %v", err), nil)
			}
			lists[event] = append(lists[event], recipients...)
		}
	}
	return upload.InitiateRequest{
		GroupKey:     req.AssetGroupKey,
		Filename:     req.Filename,
		ContentType:  req.ContentType,
		DeclaredSize: req.DeclaredSize,
		ChunkSize:    req.ChunkSize,
		ParentID:     req.ParentVersionID,
		Kind:         kind,
		Assignee:     req.Assignee,
		NotifyLists:  lists,
		AutoProcess:  req.AutoProcess,
		Actor:        actor,
	}, nil
}

// ToWorkflowRequest maps a transition body for the state machine.
func ToWorkflowRequest(versionID, actor string, req TransitionRequest) (workflow.Request, error) {
	out := workflow.Request{
		VersionID:   versionID,
		Actor:       actor,
		Assignee:    req.Assignee,
		Notes:       req.Notes,
		AutoPublish: req.AutoPublish,
		Reason:      req.Reason,
		Suggestions: req.Suggestions,
	}
	if req.ExpectedStatus != "" {
		status, err := store.ParseStatus(req.ExpectedStatus)
		if err != nil {
			return workflow.Request{}, services.Wrap(services.ErrValidation, "api", "transition", err.Error(), nil)
		}
		out.Expected = status
	}
	return out, nil
}

// ErrorFrom builds the error envelope, attaching structured details for
// incomplete uploads and invalid transitions.
func ErrorFrom(err error) ErrorResponse {
	resp := ErrorResponse{Error: err.Error(), Code: services.Code(err)}
	var incomplete *services.IncompleteUploadError
	if errors.As(err, &incomplete) {
		resp.MissingParts = append([]int{}, incomplete.Missing...)
	}
	var transition *services.TransitionError
	if errors.As(err, &transition) {
		resp.Transition = &TransitionDetail{From: transition.From, AttemptedAction: transition.Action}
	}
	return resp
}

// FromProcessing builds the acknowledgement for a processing request.
func FromProcessing(v *store.AssetVersion) ProcessingResponse {
	return ProcessingResponse{Requested: true, ProcessingRequestedAt: formatTimePtr(v.ProcessingRequestedAt)}
}
