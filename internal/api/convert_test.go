package api

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"assetflow/internal/services"
	"assetflow/internal/store"
	"assetflow/internal/workflow"
)

func TestFromVersionFormatsFields(t *testing.T) {
	published := time.Date(2026, 3, 4, 5, 6, 7, 800_000_000, time.UTC)
	v := &store.AssetVersion{
		ID:            "v-1",
		GroupKey:      "promo",
		VersionNumber: 2,
		Kind:          store.KindEdited,
		ParentID:      "v-0",
		Status:        store.StatusPublished,
		IsPublished:   true,
		PublishedAt:   &published,
		NotifyLists:   store.NotifyLists{store.EventPublish: {"desk@example.com"}},
		CreatedAt:     published,
	}
	dto := FromVersion(v)
	if dto.PublishedAt != "2026-03-04T05:06:07.800Z" {
		t.Fatalf("unexpected publishedAt %q", dto.PublishedAt)
	}
	if dto.VersionKind != "edited" || dto.WorkflowStatus != "published" || !dto.IsPublished {
		t.Fatalf("unexpected dto %+v", dto)
	}
	if len(dto.AllowedActions) != 0 {
		t.Fatalf("published version should allow no actions, got %v", dto.AllowedActions)
	}
	if got := dto.NotifyLists["publish"]; len(got) != 1 {
		t.Fatalf("unexpected notify lists %v", dto.NotifyLists)
	}

	raw, err := json.Marshal(dto)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "approvedAt") {
		t.Fatalf("unset timestamps should be omitted: %s", raw)
	}
	if !strings.Contains(string(raw), `"allowedActions":[]`) {
		t.Fatalf("allowedActions should encode as an empty list: %s", raw)
	}
}

func TestFromVersionAllowedActions(t *testing.T) {
	dto := FromVersion(&store.AssetVersion{Status: store.StatusPendingReview})
	want := []string{string(workflow.ActionApprove), string(workflow.ActionReject)}
	if len(dto.AllowedActions) != len(want) {
		t.Fatalf("AllowedActions = %v, want %v", dto.AllowedActions, want)
	}
	for i := range want {
		if dto.AllowedActions[i] != want[i] {
			t.Fatalf("AllowedActions = %v, want %v", dto.AllowedActions, want)
		}
	}
}

func TestToInitiateRequestValidatesEnums(t *testing.T) {
	if _, err := ToInitiateRequest(InitiateRequest{VersionKind: "remix"}, "a"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for kind, got %v", err)
	}
	if _, err := ToInitiateRequest(InitiateRequest{NotifyLists: map[string][]string{"digest": {"x"}}}, "a"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for event, got %v", err)
	}
	req, err := ToInitiateRequest(InitiateRequest{
		AssetGroupKey: "promo",
		VersionKind:   "Final",
		NotifyLists:   map[string][]string{"Publish": {"desk@example.com"}},
	}, "producer")
	if err != nil {
		t.Fatalf("ToInitiateRequest: %v", err)
	}
	if req.Kind != store.KindFinal || req.Actor != "producer" || len(req.NotifyLists[store.EventPublish]) != 1 {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestErrorFromAttachesDetails(t *testing.T) {
	resp := ErrorFrom(services.NewIncompleteUpload("s-1", []int{4, 2}))
	if resp.Code != "INCOMPLETE_UPLOAD" || len(resp.MissingParts) != 2 || resp.MissingParts[0] != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	resp = ErrorFrom(&services.TransitionError{From: "rejected", Action: "publish"})
	if resp.Code != "INVALID_TRANSITION" || resp.Transition == nil || resp.Transition.AttemptedAction != "publish" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if _, err := ToWorkflowRequest("v", "a", TransitionRequest{ExpectedStatus: "limbo"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
