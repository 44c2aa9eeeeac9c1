package calls

import (
	"context"
	"errors"
	"time"

	"salesops-console/internal/audit"
	"salesops-console/internal/happyrobot"
	"salesops-console/pkg/logger"
)

// ErrNoCorrelation means a callback carried neither the echoed record id
// nor a run id, so there is no record to apply it to.
var ErrNoCorrelation = errors.New("calls: callback has no correlation id")

// CallbackApplier merges asynchronous platform notifications into call
// records. The platform retries callbacks, so Apply is idempotent: a
// repeated payload is a no-op for status/completedAt (forward-only rule)
// and an overwrite-with-same-values for the metadata subtree.
type CallbackApplier struct {
	store Store
	audit *audit.Service
	clock func() time.Time
}

func NewCallbackApplier(store Store, auditSvc *audit.Service) *CallbackApplier {
	return &CallbackApplier{store: store, audit: auditSvc, clock: time.Now}
}

// SetClock overrides the applier clock. Test hook.
func (a *CallbackApplier) SetClock(clock func() time.Time) { a.clock = clock }

// Apply merges one callback payload. Correlation prefers the echoed
// internal record id; the platform run id is the fallback. Returns
// ErrNoCorrelation or ErrNotFound without side effects when the target
// cannot be identified.
func (a *CallbackApplier) Apply(ctx context.Context, payload map[string]any) (CallRecord, error) {
	callID := happyrobot.ExtractCallID(payload)
	runID := happyrobot.ExtractRunID(payload)
	if callID == "" && runID == "" {
		return CallRecord{}, ErrNoCorrelation
	}

	key := Key{ID: callID}
	if callID == "" {
		key = Key{RunID: runID}
	}

	now := a.clock().UTC()
	status, hasStatus := StatusFromPlatform(happyrobot.ExtractStatus(payload))
	summary := happyrobot.ExtractSummary(payload)
	contractDraft := happyrobot.ExtractContractDraft(payload)

	updated, err := a.store.Update(ctx, key, func(rec *CallRecord) error {
		rec.AdoptRunID(runID)

		result := map[string]any{"lastCallbackAt": now.Format(time.RFC3339)}
		if summary != "" {
			result["summary"] = summary
		}
		if contractDraft != "" {
			result["contractDraft"] = contractDraft
		}
		rec.MergeMetadata("workflowResult", result)

		cb := map[string]any{"receivedAt": now.Format(time.RFC3339)}
		if runID != "" {
			cb["runId"] = runID
		} else if rec.RunID != nil {
			cb["runId"] = *rec.RunID
		}
		rec.MergeMetadata("platformCallback", cb)

		if hasStatus {
			rec.ApplyStatus(status, now)
		}
		return nil
	})
	if err != nil {
		return CallRecord{}, err
	}

	log := logger.From(ctx)
	if err := a.audit.LogCallback(ctx, updated.ID, runID, "callback applied"); err != nil {
		log.Warn("audit append failed", "err", err)
	}
	log.Info("callback applied", "call_id", updated.ID, "status", updated.Status)
	return updated, nil
}
