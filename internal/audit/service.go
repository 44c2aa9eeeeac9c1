package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It MUST be append-only; no Update/Delete methods are provided.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records internal call-console activity. Callers should treat it
// as best-effort: log the error, never fail the request over it.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil {
		return nil
	}
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogTrigger records a call trigger attempt and its outcome.
func (s *Service) LogTrigger(ctx context.Context, actorUserID, callID, runID, message string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeCallTriggered,
		ActorUserID: actorUserID,
		CallID:      callID,
		RunID:       runID,
		Message:     message,
	})
}

// LogTriggerRejected records a trigger attempt that failed validation.
func (s *Service) LogTriggerRejected(ctx context.Context, actorUserID, callID, message string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeTriggerRejected,
		ActorUserID: actorUserID,
		CallID:      callID,
		Message:     message,
	})
}

// LogCallback records an inbound platform callback applied to a record.
func (s *Service) LogCallback(ctx context.Context, callID, runID, message string) error {
	return s.Append(ctx, Event{
		Type:    EventTypeCallbackReceived,
		CallID:  callID,
		RunID:   runID,
		Message: message,
	})
}

// LogReconciled records a status change produced by the reconciler.
func (s *Service) LogReconciled(ctx context.Context, callID, runID, message string) error {
	return s.Append(ctx, Event{
		Type:    EventTypeCallReconciled,
		CallID:  callID,
		RunID:   runID,
		Message: message,
	})
}
