package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{}); err == nil {
		t.Fatalf("expected error for missing type")
	}
}

func TestService_AppendsEventsWithGeneratedFields(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogTrigger(context.Background(), "u1", "c1", "run_abc", "call triggered"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogCallback(context.Background(), "c1", "run_abc", "callback applied"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected generated id and timestamp")
	}
	if evs[0].Type != EventTypeCallTriggered || evs[1].Type != EventTypeCallbackReceived {
		t.Fatalf("unexpected types: %v %v", evs[0].Type, evs[1].Type)
	}
	if evs[0].ActorUserID != "u1" || evs[1].RunID != "run_abc" {
		t.Fatalf("expected actor and run captured")
	}
}

func TestService_NilServiceIsNoop(t *testing.T) {
	var svc *Service
	if err := svc.LogReconciled(context.Background(), "c", "r", "m"); err != nil {
		t.Fatalf("nil service should be a no-op, got %v", err)
	}
}
