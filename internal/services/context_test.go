package services_test

import (
	"context"
	"testing"

	"reframe/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobKey(ctx, "job__a.jpg__b.mp4")
	ctx = services.WithStage(ctx, "draining")
	ctx = services.WithRunID(ctx, "run-123")
	ctx = services.WithWorker(ctx, 3)

	if key, ok := services.JobKeyFromContext(ctx); !ok || key != "job__a.jpg__b.mp4" {
		t.Fatalf("unexpected job key: %v %v", key, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "draining" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RunIDFromContext(ctx); !ok || rid != "run-123" {
		t.Fatalf("unexpected run id: %v %v", rid, ok)
	}
	if worker, ok := services.WorkerFromContext(ctx); !ok || worker != 3 {
		t.Fatalf("unexpected worker: %v %v", worker, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
}
