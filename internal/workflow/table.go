package workflow

import (
	"fmt"
	"strings"

	"assetflow/internal/store"
)

// Action names a workflow request.
type Action string

const (
	ActionAssign        Action = "assign"
	ActionReassign      Action = "reassign"
	ActionSendForReview Action = "send_for_review"
	ActionApprove       Action = "approve"
	ActionReject        Action = "reject"
	ActionPublish       Action = "publish"
)

// ParseAction accepts both snake_case and the hyphenated route form.
func ParseAction(value string) (Action, error) {
	a := Action(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_"))
	switch a {
	case ActionAssign, ActionReassign, ActionSendForReview, ActionApprove, ActionReject, ActionPublish:
		return a, nil
	default:
		return "", fmt.Errorf("unknown workflow action %q", value)
	}
}

type edge struct {
	from   store.Status
	action Action
}

// transitions is the complete set of legal edges. Approve with auto-publish
// resolves to published after the edge is found.
var transitions = map[edge]store.Status{
	{store.StatusDraft, ActionAssign}:          store.StatusPendingEdit,
	{store.StatusDraft, ActionSendForReview}:   store.StatusPendingReview,
	{store.StatusPendingEdit, ActionReassign}:  store.StatusPendingEdit,
	{store.StatusPendingReview, ActionApprove}: store.StatusApproved,
	{store.StatusPendingReview, ActionReject}:  store.StatusRejected,
	{store.StatusApproved, ActionPublish}:      store.StatusPublished,
}

// Next returns the target status for action from the given status.
func Next(from store.Status, action Action) (store.Status, bool) {
	to, ok := transitions[edge{from: from, action: action}]
	return to, ok
}

// Allowed lists the actions legal from a status in a stable order.
func Allowed(from store.Status) []Action {
	order := []Action{ActionAssign, ActionReassign, ActionSendForReview, ActionApprove, ActionReject, ActionPublish}
	var out []Action
	for _, a := range order {
		if _, ok := transitions[edge{from: from, action: a}]; ok {
			out = append(out, a)
		}
	}
	return out
}

// InitialStatus is the status a freshly minted version starts in.
func InitialStatus(assignee string) store.Status {
	if strings.TrimSpace(assignee) != "" {
		return store.StatusPendingEdit
	}
	return store.StatusDraft
}

// alreadyApplied reports whether the request is a repeat of a transition the
// version has already been through. An approve that asks for auto-publish is
// only done once the version is published.
func alreadyApplied(v *store.AssetVersion, action Action, assignee string, autoPublish bool) bool {
	switch action {
	case ActionAssign, ActionReassign:
		return v.Status == store.StatusPendingEdit && strings.EqualFold(v.AssignedTo, assignee)
	case ActionSendForReview:
		return v.Status == store.StatusPendingReview
	case ActionApprove:
		if autoPublish {
			return v.Status == store.StatusPublished
		}
		return v.Status == store.StatusApproved || v.Status == store.StatusPublished
	case ActionReject:
		return v.Status == store.StatusRejected
	case ActionPublish:
		return v.Status == store.StatusPublished
	}
	return false
}

// eventFor maps an applied transition to the notification event it emits.
func eventFor(action Action, to store.Status) store.EventType {
	switch action {
	case ActionAssign, ActionReassign:
		return store.EventEdit
	case ActionReject:
		return store.EventRejection
	case ActionApprove:
		if to == store.StatusPublished {
			return store.EventPublish
		}
		return store.EventApproval
	case ActionPublish:
		return store.EventPublish
	default:
		return store.EventApproval
	}
}
