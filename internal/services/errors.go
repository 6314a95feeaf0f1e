package services

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrInvalidParent              = errors.New("invalid parent")
	ErrSessionNotFound            = errors.New("session not found")
	ErrSessionTerminal            = errors.New("session terminal")
	ErrIncompleteUpload           = errors.New("incomplete upload")
	ErrDuplicateOriginal          = errors.New("duplicate original")
	ErrInvalidTransition          = errors.New("invalid transition")
	ErrStaleState                 = errors.New("stale state")
	ErrMissingReason              = errors.New("missing reason")
	ErrNotificationDeliveryFailed = errors.New("notification delivery failed")
	ErrProcessingRequestFailed    = errors.New("processing request failed")

	ErrValidation      = errors.New("validation error")
	ErrVersionNotFound = errors.New("asset version not found")
	ErrStorage         = errors.New("storage error")
	ErrConfiguration   = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrStorage
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IncompleteUploadError reports the part numbers that have not been reported
// when a session completion is attempted.
type IncompleteUploadError struct {
	SessionID string
	Missing   []int
}

func (e *IncompleteUploadError) Error() string {
	parts := make([]string, 0, len(e.Missing))
	for _, n := range e.Missing {
		parts = append(parts, strconv.Itoa(n))
	}
	return fmt.Sprintf("incomplete upload: session %s missing parts [%s]", e.SessionID, strings.Join(parts, ","))
}

func (e *IncompleteUploadError) Is(target error) bool { return target == ErrIncompleteUpload }

// NewIncompleteUpload builds an IncompleteUploadError with a sorted copy of missing.
func NewIncompleteUpload(sessionID string, missing []int) *IncompleteUploadError {
	cp := append([]int(nil), missing...)
	sort.Ints(cp)
	return &IncompleteUploadError{SessionID: sessionID, Missing: cp}
}

// TransitionError reports a workflow action that has no row in the transition
// table for the version's current status.
type TransitionError struct {
	From   string
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s from %s", e.Action, e.From)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// Code maps an error onto its taxonomy code for transport.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidParent):
		return "INVALID_PARENT"
	case errors.Is(err, ErrSessionNotFound):
		return "SESSION_NOT_FOUND"
	case errors.Is(err, ErrSessionTerminal):
		return "SESSION_TERMINAL"
	case errors.Is(err, ErrIncompleteUpload):
		return "INCOMPLETE_UPLOAD"
	case errors.Is(err, ErrDuplicateOriginal):
		return "DUPLICATE_ORIGINAL"
	case errors.Is(err, ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, ErrStaleState):
		return "STALE_STATE"
	case errors.Is(err, ErrMissingReason):
		return "MISSING_REASON"
	case errors.Is(err, ErrNotificationDeliveryFailed):
		return "NOTIFICATION_DELIVERY_FAILED"
	case errors.Is(err, ErrProcessingRequestFailed):
		return "PROCESSING_REQUEST_FAILED"
	case errors.Is(err, ErrValidation):
		return "VALIDATION"
	case errors.Is(err, ErrVersionNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrStorage):
		return "STORAGE"
	case errors.Is(err, ErrConfiguration):
		return "CONFIGURATION"
	default:
		return "INTERNAL"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
