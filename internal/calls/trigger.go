package calls

import (
	"context"
	"fmt"
	"strings"
	"time"

	"salesops-console/internal/audit"
	"salesops-console/internal/happyrobot"
	"salesops-console/pkg/logger"
)

// Platform is the slice of the calling-platform client the calls package
// depends on. Satisfied by *happyrobot.Client.
type Platform interface {
	TriggerConfigured() bool
	StartRun(ctx context.Context, req happyrobot.StartRunRequest) (happyrobot.StartRunResult, error)

	PollingConfigured() bool
	PollRun(ctx context.Context, runID string) (string, error)

	ReconcileConfigured() bool
	ListFailedRuns(ctx context.Context, since time.Time) ([]happyrobot.RunSummary, error)
}

// ValidationError carries field-level validation detail for the caller and
// for the audit record persisted alongside the rejection.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	for _, msg := range e.Fields {
		return "calls: validation failed: " + msg
	}
	return "calls: validation failed"
}

// UpstreamError marks a transport or platform failure during triggering.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string { return "calls: upstream failure: " + e.Err.Error() }
func (e *UpstreamError) Unwrap() error { return e.Err }

// TriggerRequest is one staff request to place an outbound call.
type TriggerRequest struct {
	SubjectName string
	PhoneNumber string
	// UserID attributes the record to the triggering staff member. Optional.
	UserID string
}

// TriggerService validates a call request, creates the record and starts
// the platform run. Exactly one record is created per invocation, in at
// most two writes (create, then one status update).
type TriggerService struct {
	store       Store
	platform    Platform
	audit       *audit.Service
	callbackURL string
	clock       func() time.Time
}

func NewTriggerService(store Store, platform Platform, auditSvc *audit.Service, callbackURL string) *TriggerService {
	return &TriggerService{
		store:       store,
		platform:    platform,
		audit:       auditSvc,
		callbackURL: callbackURL,
		clock:       time.Now,
	}
}

// SetClock overrides the service clock. Test hook.
func (s *TriggerService) SetClock(clock func() time.Time) { s.clock = clock }

// Trigger runs the full initiation flow. On validation failure a FAILED
// record is still persisted (audit trail of rejected attempts) and a
// *ValidationError is returned alongside it. On upstream failure the record
// is FAILED with the transport error and a *UpstreamError is returned.
func (s *TriggerService) Trigger(ctx context.Context, req TriggerRequest) (CallRecord, error) {
	log := logger.From(ctx)
	now := s.clock().UTC()

	req.SubjectName = strings.TrimSpace(req.SubjectName)
	phone := NormalizePhone(req.PhoneNumber)

	if verr := validateTrigger(req.SubjectName, phone); verr != nil {
		rec := newRecord(req, phone, now)
		rec.Status = StatusFailed
		completedAt := now
		rec.CompletedAt = &completedAt
		rec.SetError(firstFieldError(verr))
		fields := make(map[string]any, len(verr.Fields))
		for k, v := range verr.Fields {
			fields[k] = v
		}
		rec.MergeMetadata("validationErrors", fields)

		created, err := s.store.Create(ctx, rec)
		if err != nil {
			return CallRecord{}, fmt.Errorf("persist rejected trigger: %w", err)
		}
		if err := s.audit.LogTriggerRejected(ctx, req.UserID, created.ID, firstFieldError(verr)); err != nil {
			log.Warn("audit append failed", "err", err)
		}
		return created, verr
	}

	created, err := s.store.Create(ctx, newRecord(req, phone, now))
	if err != nil {
		return CallRecord{}, fmt.Errorf("create call record: %w", err)
	}

	result, err := s.platform.StartRun(ctx, happyrobot.StartRunRequest{
		PhoneNumber: phone,
		CallbackURL: s.callbackURL,
		CallID:      created.ID,
		SubjectName: req.SubjectName,
	})
	if err != nil {
		failed, uerr := s.failRecord(ctx, created.ID, err)
		if uerr != nil {
			log.Error("failed to persist upstream failure", "call_id", created.ID, "err", uerr)
			return created, &UpstreamError{Err: err}
		}
		return failed, &UpstreamError{Err: err}
	}

	updated, err := s.store.Update(ctx, Key{ID: created.ID}, func(rec *CallRecord) error {
		rec.AdoptRunID(result.RunID)
		rec.ApplyStatus(StatusRunning, s.clock())
		return nil
	})
	if err != nil {
		return created, fmt.Errorf("mark call running: %w", err)
	}

	if err := s.audit.LogTrigger(ctx, req.UserID, updated.ID, result.RunID, "platform accepted run"); err != nil {
		log.Warn("audit append failed", "err", err)
	}
	log.Info("call triggered", "call_id", updated.ID, "run_id", result.RunID)
	return updated, nil
}

func (s *TriggerService) failRecord(ctx context.Context, id string, cause error) (CallRecord, error) {
	return s.store.Update(ctx, Key{ID: id}, func(rec *CallRecord) error {
		rec.ApplyStatus(StatusFailed, s.clock())
		rec.SetError("platform trigger failed: " + cause.Error())
		return nil
	})
}

func newRecord(req TriggerRequest, normalizedPhone string, now time.Time) CallRecord {
	rec := CallRecord{
		SubjectName: req.SubjectName,
		PhoneNumber: normalizedPhone,
		Status:      StatusPending,
	}
	if req.UserID != "" {
		uid := req.UserID
		rec.UserID = &uid
	}
	rec.MergeMetadata("lead", map[string]any{
		"subjectName": req.SubjectName,
		"capturedAt":  now.Format(time.RFC3339),
	})
	return rec
}

func validateTrigger(subjectName, normalizedPhone string) *ValidationError {
	fields := map[string]string{}
	if subjectName == "" {
		fields["subjectName"] = "subject name is required"
	}
	if normalizedPhone == "" {
		fields["phoneNumber"] = "phone number is required"
	} else if !ValidPhone(normalizedPhone) {
		fields["phoneNumber"] = "phone number must be in international format (+<country code><number>, 7-15 digits)"
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

func firstFieldError(verr *ValidationError) string {
	// Deterministic order: phone first, then subject.
	if msg, ok := verr.Fields["phoneNumber"]; ok {
		return msg
	}
	if msg, ok := verr.Fields["subjectName"]; ok {
		return msg
	}
	return verr.Error()
}
