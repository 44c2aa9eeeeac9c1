package calls

import (
	"context"
	"errors"
	"time"

	"salesops-console/internal/happyrobot"
)

// fakePlatform implements Platform with injectable behavior per test.
type fakePlatform struct {
	startRun func(ctx context.Context, req happyrobot.StartRunRequest) (happyrobot.StartRunResult, error)

	pollingConfigured bool
	pollRun           func(ctx context.Context, runID string) (string, error)
	pollCalls         int

	reconcileConfigured bool
	listFailedRuns      func(ctx context.Context, since time.Time) ([]happyrobot.RunSummary, error)
	listCalls           int
}

func (f *fakePlatform) TriggerConfigured() bool { return f.startRun != nil }

func (f *fakePlatform) StartRun(ctx context.Context, req happyrobot.StartRunRequest) (happyrobot.StartRunResult, error) {
	if f.startRun == nil {
		return happyrobot.StartRunResult{}, happyrobot.ErrNotConfigured
	}
	return f.startRun(ctx, req)
}

func (f *fakePlatform) PollingConfigured() bool { return f.pollingConfigured }

func (f *fakePlatform) PollRun(ctx context.Context, runID string) (string, error) {
	f.pollCalls++
	if f.pollRun == nil {
		return "", errors.New("poll not stubbed")
	}
	return f.pollRun(ctx, runID)
}

func (f *fakePlatform) ReconcileConfigured() bool { return f.reconcileConfigured }

func (f *fakePlatform) ListFailedRuns(ctx context.Context, since time.Time) ([]happyrobot.RunSummary, error) {
	f.listCalls++
	if f.listFailedRuns == nil {
		return nil, errors.New("list not stubbed")
	}
	return f.listFailedRuns(ctx, since)
}
