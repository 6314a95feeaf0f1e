package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// AssetVersion describes a version in a transport-friendly format.
type AssetVersion struct {
	ID                    string              `json:"id"`
	AssetGroupKey         string              `json:"assetGroupKey"`
	VersionNumber         int                 `json:"versionNumber"`
	VersionKind           string              `json:"versionKind"`
	ParentVersionID       string              `json:"parentVersionId,omitempty"`
	Filename              string              `json:"filename"`
	ContentType           string              `json:"contentType,omitempty"`
	DeclaredSize          int64               `json:"declaredSize"`
	StorageKey            string              `json:"storageKey"`
	DurationSeconds       *float64            `json:"durationSeconds,omitempty"`
	WorkflowStatus        string              `json:"workflowStatus"`
	AllowedActions        []string            `json:"allowedActions"`
	AssignedTo            string              `json:"assignedTo,omitempty"`
	AssignedBy            string              `json:"assignedBy,omitempty"`
	AssignedAt            string              `json:"assignedAt,omitempty"`
	ApprovedBy            string              `json:"approvedBy,omitempty"`
	ApprovedAt            string              `json:"approvedAt,omitempty"`
	ApprovalNotes         string              `json:"approvalNotes,omitempty"`
	RejectedBy            string              `json:"rejectedBy,omitempty"`
	RejectedAt            string              `json:"rejectedAt,omitempty"`
	RejectionReason       string              `json:"rejectionReason,omitempty"`
	RejectionSuggestions  string              `json:"rejectionSuggestions,omitempty"`
	AutoProcessRequested  bool                `json:"autoProcessRequested"`
	IsPublished           bool                `json:"isPublished"`
	PublishedAt           string              `json:"publishedAt,omitempty"`
	ProcessingRequestedAt string              `json:"processingRequestedAt,omitempty"`
	NotifyLists           map[string][]string `json:"notifyLists,omitempty"`
	CreatedBy             string              `json:"createdBy,omitempty"`
	CreatedAt             string              `json:"createdAt,omitempty"`
	UpdatedAt             string              `json:"updatedAt,omitempty"`
}

// VersionListResponse wraps an ordered lineage.
type VersionListResponse struct {
	AssetGroupKey string         `json:"assetGroupKey"`
	Versions      []AssetVersion `json:"versions"`
}

// InitiateRequest is the body of POST /uploads.
type InitiateRequest struct {
	AssetGroupKey   string              `json:"assetGroupKey"`
	Filename        string              `json:"filename"`
	ContentType     string              `json:"contentType"`
	DeclaredSize    int64               `json:"declaredSize"`
	ChunkSize       int64               `json:"chunkSize"`
	ParentVersionID string              `json:"parentVersionId"`
	VersionKind     string              `json:"versionKind"`
	Assignee        string              `json:"assignee"`
	NotifyLists     map[string][]string `json:"notifyLists"`
	AutoProcess     bool                `json:"autoProcess"`
}

// InitiateResponse is returned by POST /uploads.
type InitiateResponse struct {
	SessionID     string `json:"sessionId"`
	AssetGroupKey string `json:"assetGroupKey"`
	VersionKind   string `json:"versionKind"`
	TotalParts    int    `json:"totalParts"`
	ChunkSize     int64  `json:"chunkSize"`
	VersionNumber int    `json:"versionNumber"`
	InitialStatus string `json:"initialStatus"`
	ExpiresAt     string `json:"expiresAt"`
}

// UploadSession describes a session and its reported parts.
type UploadSession struct {
	ID              string `json:"id"`
	AssetGroupKey   string `json:"assetGroupKey"`
	ParentVersionID string `json:"parentVersionId,omitempty"`
	VersionKind     string `json:"versionKind"`
	Filename        string `json:"filename"`
	DeclaredSize    int64  `json:"declaredSize"`
	ChunkSize       int64  `json:"chunkSize"`
	TotalParts      int    `json:"totalParts"`
	Status          string `json:"status"`
	ReportedParts   []int  `json:"reportedParts"`
	MissingParts    []int  `json:"missingParts"`
	VersionID       string `json:"versionId,omitempty"`
	CreatedAt       string `json:"createdAt,omitempty"`
	ExpiresAt       string `json:"expiresAt,omitempty"`
	CompletedAt     string `json:"completedAt,omitempty"`
}

// PartURLsRequest is the body of POST /uploads/{id}/part-urls.
type PartURLsRequest struct {
	PartNumbers []int `json:"partNumbers"`
}

// PartDestination is one presigned part URL.
type PartDestination struct {
	PartNumber int    `json:"partNumber"`
	URL        string `json:"url"`
	ValidUntil string `json:"validUntil"`
}

// PartURLsResponse wraps issued destinations.
type PartURLsResponse struct {
	Parts []PartDestination `json:"parts"`
}

// ReportPartRequest is the body of POST /uploads/{id}/parts.
type ReportPartRequest struct {
	PartNumber     int    `json:"partNumber"`
	IntegrityToken string `json:"integrityToken"`
}

// AcceptedResponse acknowledges a part report.
type AcceptedResponse struct {
	Accepted bool `json:"accepted"`
}

// AbortedResponse acknowledges an abort.
type AbortedResponse struct {
	Aborted bool `json:"aborted"`
}

// TransitionRequest is the body shared by every workflow action.
type TransitionRequest struct {
	ExpectedStatus string `json:"expectedStatus"`
	Assignee       string `json:"assignee"`
	Notes          string `json:"notes"`
	AutoPublish    bool   `json:"autoPublish"`
	Reason         string `json:"reason"`
	Suggestions    string `json:"suggestions"`
}

// ProcessingResponse acknowledges a processing request.
type ProcessingResponse struct {
	Requested             bool   `json:"requested"`
	ProcessingRequestedAt string `json:"processingRequestedAt,omitempty"`
}

// NotificationRecord is one dispatch outcome.
type NotificationRecord struct {
	ID             string   `json:"id"`
	AssetVersionID string   `json:"assetVersionId"`
	EventType      string   `json:"eventType"`
	Recipients     []string `json:"recipients"`
	DeliveryStatus string   `json:"deliveryStatus"`
	Error          string   `json:"error,omitempty"`
	SentAt         string   `json:"sentAt"`
}

// NotificationListResponse wraps notification history.
type NotificationListResponse struct {
	Notifications []NotificationRecord `json:"notifications"`
}

// AuditEvent is one audited version change.
type AuditEvent struct {
	ID          string `json:"id"`
	Action      string `json:"action"`
	FromStatus  string `json:"fromStatus,omitempty"`
	ToStatus    string `json:"toStatus"`
	Actor       string `json:"actor,omitempty"`
	Notes       string `json:"notes,omitempty"`
	Suggestions string `json:"suggestions,omitempty"`
	At          string `json:"at"`
}

// AuditListResponse wraps an audit trail.
type AuditListResponse struct {
	Events []AuditEvent `json:"events"`
}

// TransitionDetail accompanies INVALID_TRANSITION errors.
type TransitionDetail struct {
	From            string `json:"from"`
	AttemptedAction string `json:"attemptedAction"`
}

// ErrorResponse is the error envelope for every failed request.
type ErrorResponse struct {
	Error        string            `json:"error"`
	Code         string            `json:"code"`
	MissingParts []int             `json:"missingParts,omitempty"`
	Transition   *TransitionDetail `json:"transition,omitempty"`
}

// HealthResponse reports dependency health.
type HealthResponse struct {
	Status        string `json:"status"`
	Database      string `json:"database"`
	DatabaseError string `json:"databaseError,omitempty"`
	FreeBytes     uint64 `json:"freeBytes"`
	DataDir       string `json:"dataDir"`
}
