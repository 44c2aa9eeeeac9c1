package calls

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("calls: record not found")
	ErrInvalidArgument = errors.New("calls: invalid argument")
)

// Key identifies a record by internal id or platform run id. Exactly one
// side should be set; ID wins when both are.
type Key struct {
	ID    string
	RunID string
}

func (k Key) isZero() bool { return k.ID == "" && k.RunID == "" }

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	// Search matches subject name (case-insensitive substring) or phone
	// number (substring).
	Search string
	Status CallStatus

	Page     int
	PageSize int
}

// Store is the persistence contract for call records.
//
// Update is the single write path shared by the trigger, callback and
// reconciliation writers: implementations must run mutate against the
// current row atomically with respect to other Update calls on the same
// record (read-merge-write, never whole-document last-writer-wins).
type Store interface {
	Create(ctx context.Context, rec CallRecord) (CallRecord, error)
	GetByID(ctx context.Context, id string) (CallRecord, error)
	GetByRunID(ctx context.Context, runID string) (CallRecord, error)
	Update(ctx context.Context, key Key, mutate func(rec *CallRecord) error) (CallRecord, error)

	// Recent returns the newest records first, up to limit.
	Recent(ctx context.Context, limit int) ([]CallRecord, error)
	// List applies filter with pagination and returns the page plus the
	// total match count.
	List(ctx context.Context, filter Filter) ([]CallRecord, int, error)
}
