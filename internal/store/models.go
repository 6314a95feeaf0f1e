package store

import (
	"fmt"
	"strings"
	"time"
)

// Status is the editorial workflow state of one asset version.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusPendingEdit   Status = "pending_edit"
	StatusPendingReview Status = "pending_review"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusPublished     Status = "published"
)

var allStatuses = []Status{
	StatusDraft,
	StatusPendingEdit,
	StatusPendingReview,
	StatusApproved,
	StatusRejected,
	StatusPublished,
}

// AllStatuses returns the closed set of workflow states.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus converts a string into a known status.
func ParseStatus(value string) (Status, error) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, s := range allStatuses {
		if s == normalized {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown workflow status %q", value)
}

// IsTerminal reports whether no further transitions leave this status.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusPublished
}

// Kind classifies a version within its lineage.
type Kind string

const (
	KindOriginal Kind = "original"
	KindEdited   Kind = "edited"
	KindFinal    Kind = "final"
)

// ParseKind converts a string into a known version kind. Empty input yields "".
func ParseKind(value string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(value))); k {
	case "", KindOriginal, KindEdited, KindFinal:
		return k, nil
	default:
		return "", fmt.Errorf("unknown version kind %q", value)
	}
}

// EventType names a lifecycle event that fans out notifications.
type EventType string

const (
	EventUpload    EventType = "upload"
	EventEdit      EventType = "edit"
	EventApproval  EventType = "approval"
	EventPublish   EventType = "publish"
	EventRejection EventType = "rejection"
)

// ParseEventType converts a string into a known event type.
func ParseEventType(value string) (EventType, error) {
	switch e := EventType(strings.ToLower(strings.TrimSpace(value))); e {
	case EventUpload, EventEdit, EventApproval, EventPublish, EventRejection:
		return e, nil
	default:
		return "", fmt.Errorf("unknown event type %q", value)
	}
}

// SessionStatus is the lifecycle state of an upload session.
type SessionStatus string

const (
	SessionInitiated  SessionStatus = "initiated"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionAborted    SessionStatus = "aborted"
)

// IsTerminal reports whether the session has been completed or aborted.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionAborted
}

func parseSessionStatus(value string) (SessionStatus, error) {
	switch s := SessionStatus(value); s {
	case SessionInitiated, SessionInProgress, SessionCompleted, SessionAborted:
		return s, nil
	default:
		return "", fmt.Errorf("unknown session status %q", value)
	}
}

// DeliveryStatus records the outcome of a notification attempt.
type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// NotifyLists maps lifecycle events to extra recipients supplied at upload time.
type NotifyLists map[EventType][]string

// AssetVersion is one immutable rendition within an asset group.
type AssetVersion struct {
	ID                    string
	GroupKey              string
	VersionNumber         int
	Kind                  Kind
	ParentID              string
	SessionID             string
	Filename              string
	ContentType           string
	DeclaredSize          int64
	StorageKey            string
	DurationSeconds       *float64
	Status                Status
	AssignedTo            string
	AssignedBy            string
	AssignedAt            *time.Time
	ApprovedBy            string
	ApprovedAt            *time.Time
	ApprovalNotes         string
	RejectedBy            string
	RejectedAt            *time.Time
	RejectionReason       string
	RejectionSuggestions  string
	AutoProcessRequested  bool
	IsPublished           bool
	PublishedAt           *time.Time
	ProcessingRequestedAt *time.Time
	NotifyLists           NotifyLists
	CreatedBy             string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// UploadSession tracks one chunked transfer until it is completed or aborted.
type UploadSession struct {
	ID              string
	GroupKey        string
	ParentID        string
	Kind            Kind
	Filename        string
	ContentType     string
	DeclaredSize    int64
	ChunkSize       int64
	TotalParts      int
	Status          SessionStatus
	StorageKey      string
	StorageUploadID string
	Assignee        string
	AutoProcess     bool
	NotifyLists     NotifyLists
	CreatedBy       string
	VersionID       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ExpiresAt       time.Time
	CompletedAt     *time.Time
}

// UploadPart is a reported chunk with its integrity token.
type UploadPart struct {
	SessionID  string
	PartNumber int
	Token      string
	ReportedAt time.Time
}

// NotificationRecord is an append-only record of one dispatch.
type NotificationRecord struct {
	ID         string
	VersionID  string
	EventType  EventType
	Recipients []string
	Status     DeliveryStatus
	Error      string
	SentAt     time.Time
}

// AuditEvent records a version creation or workflow action.
type AuditEvent struct {
	ID          string
	VersionID   string
	Action      string
	FromStatus  Status
	ToStatus    Status
	Actor       string
	Notes       string
	Suggestions string
	At          time.Time
}
