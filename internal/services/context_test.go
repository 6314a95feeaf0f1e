package services_test

import (
	"context"
	"testing"

	"assetflow/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithVersionID(ctx, "ver-1")
	ctx = services.WithSessionID(ctx, "sess-1")
	ctx = services.WithActor(ctx, "editor@example.com")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.VersionIDFromContext(ctx); !ok || id != "ver-1" {
		t.Fatalf("unexpected version id: %v %v", id, ok)
	}
	if id, ok := services.SessionIDFromContext(ctx); !ok || id != "sess-1" {
		t.Fatalf("unexpected session id: %v %v", id, ok)
	}
	if actor, ok := services.ActorFromContext(ctx); !ok || actor != "editor@example.com" {
		t.Fatalf("unexpected actor: %v %v", actor, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithActor(ctx, "")
	if _, ok := services.ActorFromContext(ctx); ok {
		t.Fatal("expected no actor value")
	}
}
