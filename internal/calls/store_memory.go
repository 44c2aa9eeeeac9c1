package calls

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used by tests and local development.
// It mirrors the atomicity contract of the Postgres store: mutations run
// under one lock, so concurrent writers always see each other's merges.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*CallRecord
	byRun   map[string]string
	clock   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*CallRecord),
		byRun:   make(map[string]string),
		clock:   time.Now,
	}
}

// SetClock overrides the store clock. Test hook.
func (s *MemoryStore) SetClock(clock func() time.Time) { s.clock = clock }

// Create persists the record as given. Input validation is the trigger
// service's job; rejected attempts are stored too, as FAILED records.
func (s *MemoryStore) Create(ctx context.Context, rec CallRecord) (CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock().UTC()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	rec.CreatedAt = now
	rec.UpdatedAt = now

	stored := rec.clone()
	s.records[stored.ID] = &stored
	if stored.RunID != nil {
		s.byRun[*stored.RunID] = stored.ID
	}
	return rec, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return CallRecord{}, ErrNotFound
	}
	return rec.clone(), nil
}

func (s *MemoryStore) GetByRunID(ctx context.Context, runID string) (CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byRun[runID]
	if !ok {
		return CallRecord{}, ErrNotFound
	}
	return s.records[id].clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, key Key, mutate func(rec *CallRecord) error) (CallRecord, error) {
	if key.isZero() {
		return CallRecord{}, ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := key.ID
	if id == "" {
		var ok bool
		id, ok = s.byRun[key.RunID]
		if !ok {
			return CallRecord{}, ErrNotFound
		}
	}
	rec, ok := s.records[id]
	if !ok {
		return CallRecord{}, ErrNotFound
	}

	next := rec.clone()
	if err := mutate(&next); err != nil {
		return CallRecord{}, err
	}
	next.UpdatedAt = s.clock().UTC()

	s.records[id] = &next
	if next.RunID != nil {
		s.byRun[*next.RunID] = id
	}
	return next.clone(), nil
}

func (s *MemoryStore) Recent(ctx context.Context, limit int) ([]CallRecord, error) {
	recs, _, err := s.List(ctx, Filter{Page: 1, PageSize: limit})
	return recs, err
}

func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]CallRecord, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []CallRecord
	for _, rec := range s.records {
		if !matches(*rec, filter) {
			continue
		}
		matched = append(matched, rec.clone())
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	page, size := normalizePage(filter)
	start := (page - 1) * size
	if start >= total {
		return []CallRecord{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func matches(rec CallRecord, filter Filter) bool {
	if filter.Status != "" && rec.Status != filter.Status {
		return false
	}
	if filter.Search != "" {
		q := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(rec.SubjectName), q) &&
			!strings.Contains(rec.PhoneNumber, filter.Search) {
			return false
		}
	}
	return true
}

func normalizePage(filter Filter) (page, size int) {
	page = filter.Page
	if page < 1 {
		page = 1
	}
	size = filter.PageSize
	if size < 1 {
		size = 10
	}
	return page, size
}
