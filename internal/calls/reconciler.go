package calls

import (
	"context"
	"time"

	"salesops-console/internal/audit"
	"salesops-console/internal/happyrobot"
	"salesops-console/pkg/logger"
)

// ReconcilerOptions tunes the reconciler; zero values get the defaults
// below.
type ReconcilerOptions struct {
	// GraceWindow is the minimum record age before the batch failed-run
	// match may act. Guards against flagging calls still in flight.
	GraceWindow time.Duration
	// CacheTTL is the freshness window of the failed-runs snapshot.
	CacheTTL time.Duration
	// Lookback bounds the failed-runs feed query.
	Lookback time.Duration
}

const (
	defaultGraceWindow = 60 * time.Second
	defaultCacheTTL    = 10 * time.Second
	defaultLookback    = 5 * time.Minute
)

func (o ReconcilerOptions) withDefaults() ReconcilerOptions {
	out := o
	if out.GraceWindow <= 0 {
		out.GraceWindow = defaultGraceWindow
	}
	if out.CacheTTL <= 0 {
		out.CacheTTL = defaultCacheTTL
	}
	if out.Lookback <= 0 {
		out.Lookback = defaultLookback
	}
	return out
}

// Reconciler resolves the true status of RUNNING records. Per record it
// tries, in order: a direct platform poll (when polling credentials are
// configured), then a match against the cached failed-runs feed (when the
// record is older than the grace window). A record neither signal resolves
// stays RUNNING; that is expected, not an error.
//
// The platform drops callbacks occasionally and polling may be unavailable
// in some deployments, so the batch match is a conservative safety net:
// false negatives (stuck RUNNING) are acceptable, false positives (failing
// a live call) are not.
type Reconciler struct {
	store    Store
	platform Platform
	cache    FailedRunCache
	audit    *audit.Service
	opts     ReconcilerOptions
	clock    func() time.Time
}

func NewReconciler(store Store, platform Platform, cache FailedRunCache, auditSvc *audit.Service, opts ReconcilerOptions) *Reconciler {
	if cache == nil {
		cache = NewMemoryFailedRunCache()
	}
	return &Reconciler{
		store:    store,
		platform: platform,
		cache:    cache,
		audit:    auditSvc,
		opts:     opts.withDefaults(),
		clock:    time.Now,
	}
}

// SetClock overrides the reconciler clock. Test hook.
func (r *Reconciler) SetClock(clock func() time.Time) { r.clock = clock }

// ReconcileAll reconciles every eligible record and returns the records
// with any resolved statuses applied. A failure on one record never aborts
// the others.
func (r *Reconciler) ReconcileAll(ctx context.Context, records []CallRecord) []CallRecord {
	log := logger.From(ctx)
	out := make([]CallRecord, len(records))
	for i, rec := range records {
		updated, err := r.reconcileOne(ctx, rec)
		if err != nil {
			// Inconclusive signals are not errors; anything surfacing here
			// is a store or cache problem worth a log line.
			log.Warn("reconcile failed", "call_id", rec.ID, "err", err)
			out[i] = rec
			continue
		}
		out[i] = updated
	}
	return out
}

func (r *Reconciler) reconcileOne(ctx context.Context, rec CallRecord) (CallRecord, error) {
	if rec.Status != StatusRunning || rec.RunID == nil {
		return rec, nil
	}

	if updated, resolved := r.tryPoll(ctx, rec); resolved {
		return updated, nil
	}
	return r.tryBatchMatch(ctx, rec)
}

// tryPoll asks the platform for the run's current status. A transient
// failure is inconclusive: log it, leave the record alone, let the next
// pass retry.
func (r *Reconciler) tryPoll(ctx context.Context, rec CallRecord) (CallRecord, bool) {
	if !r.platform.PollingConfigured() {
		return rec, false
	}
	log := logger.From(ctx)

	raw, err := r.platform.PollRun(ctx, *rec.RunID)
	if err != nil {
		log.Warn("run poll inconclusive", "call_id", rec.ID, "run_id", *rec.RunID, "err", err)
		return rec, false
	}

	status, ok := StatusFromPlatform(raw)
	if !ok || status == rec.Status {
		return rec, false
	}

	updated, err := r.store.Update(ctx, Key{ID: rec.ID}, func(cur *CallRecord) error {
		if cur.ApplyStatus(status, r.clock()) {
			cur.MergeMetadata("reconciliation", map[string]any{
				"lastSignal":   "poll",
				"lastSignalAt": r.clock().UTC().Format(time.RFC3339),
			})
		}
		return nil
	})
	if err != nil {
		log.Warn("persist polled status failed", "call_id", rec.ID, "err", err)
		return rec, false
	}
	if updated.Status != rec.Status {
		if err := r.audit.LogReconciled(ctx, updated.ID, *rec.RunID, "poll resolved status "+string(updated.Status)); err != nil {
			log.Warn("audit append failed", "err", err)
		}
		log.Info("run status polled", "call_id", updated.ID, "status", updated.Status)
	}
	return updated, true
}

// tryBatchMatch marks a record FAILED when its phone number appears in the
// platform's recent failed-runs feed and the record is past the grace
// window.
func (r *Reconciler) tryBatchMatch(ctx context.Context, rec CallRecord) (CallRecord, error) {
	if !r.platform.ReconcileConfigured() {
		return rec, nil
	}
	now := r.clock().UTC()
	if now.Sub(rec.CreatedAt) < r.opts.GraceWindow {
		return rec, nil
	}

	index, err := r.failedRunIndex(ctx)
	if err != nil {
		return rec, err
	}

	match, ok := index[NormalizePhone(rec.PhoneNumber)]
	if !ok {
		return rec, nil
	}

	updated, err := r.store.Update(ctx, Key{ID: rec.ID}, func(cur *CallRecord) error {
		if !cur.ApplyStatus(StatusFailed, now) {
			return nil
		}
		cur.SetError("run reconciled as failed against the platform failed-run feed")
		cur.MergeMetadata("reconciliation", map[string]any{
			"lastSignal":   "failed-run-match",
			"lastSignalAt": now.Format(time.RFC3339),
			"matchedRunId": match.RunID,
			"matchedAt":    now.Format(time.RFC3339),
		})
		return nil
	})
	if err != nil {
		return rec, err
	}
	if updated.Status != rec.Status {
		log := logger.From(ctx)
		if err := r.audit.LogReconciled(ctx, updated.ID, match.RunID, "failed-run match"); err != nil {
			log.Warn("audit append failed", "err", err)
		}
		log.Info("run reconciled as failed", "call_id", updated.ID, "matched_run_id", match.RunID)
	}
	return updated, nil
}

// failedRunIndex returns the phone-number lookup, refreshing the shared
// snapshot when it is older than the cache TTL. A failed refresh degrades
// to the last good snapshot rather than failing the caller.
func (r *Reconciler) failedRunIndex(ctx context.Context) (map[string]FailedRunMatch, error) {
	log := logger.From(ctx)
	now := r.clock().UTC()

	snap, ok, err := r.cache.Load(ctx)
	if err != nil {
		log.Warn("failed-run cache load failed", "err", err)
		ok = false
	}
	if ok && now.Sub(snap.FetchedAt) < r.opts.CacheTTL {
		return snap.Index, nil
	}

	runs, err := r.platform.ListFailedRuns(ctx, now.Add(-r.opts.Lookback))
	if err != nil {
		if ok {
			log.Warn("failed-run feed refresh failed, using stale snapshot", "age", now.Sub(snap.FetchedAt).String(), "err", err)
			return snap.Index, nil
		}
		return nil, err
	}

	fresh := FailedRunSnapshot{FetchedAt: now, Index: buildFailedRunIndex(runs)}
	if err := r.cache.Store(ctx, fresh); err != nil {
		log.Warn("failed-run cache store failed", "err", err)
	}
	return fresh.Index, nil
}

// buildFailedRunIndex keys failed runs by normalized phone number. First
// run wins per phone; runs without a recognizable phone are skipped.
func buildFailedRunIndex(runs []happyrobot.RunSummary) map[string]FailedRunMatch {
	index := make(map[string]FailedRunMatch, len(runs))
	for _, run := range runs {
		phone, ok := happyrobot.PhoneFromRunData(run.Data)
		if !ok {
			continue
		}
		key := NormalizePhone(phone)
		if key == "" {
			continue
		}
		if _, exists := index[key]; exists {
			continue
		}
		index[key] = FailedRunMatch{RunID: run.RunID, FailedAt: run.CreatedAt}
	}
	return index
}
