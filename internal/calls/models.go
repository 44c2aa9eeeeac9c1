package calls

import (
	"strings"
	"time"
)

// CallRecord is one attempt to place an outbound call through the platform.
//
// Invariants (enforced by the mutation helpers below; every store writer
// must go through them):
// - Status only moves forward: PENDING -> RUNNING -> terminal.
// - CompletedAt is set exactly once, on the first terminal transition.
// - RunID, once set, is never replaced by a different value.
// - Metadata merges are additive per subtree; writers never replace the
//   whole document.
type CallRecord struct {
	ID string `json:"id"`

	// RunID is the platform-assigned correlation id, set once a run is
	// accepted. Nil until then; unique when present.
	RunID *string `json:"runId"`

	SubjectName string `json:"subjectName"`
	PhoneNumber string `json:"phoneNumber"`

	Status CallStatus `json:"status"`

	ErrorMessage *string `json:"errorMessage"`

	// Metadata accumulates lead context, workflow results arriving via
	// callback, validation errors and reconciliation provenance.
	Metadata map[string]any `json:"metadata"`

	// UserID weakly references the staff member who triggered the call.
	// Display only; never used for authorization of the record.
	UserID *string `json:"userId"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt"`
}

type CallStatus string

const (
	StatusPending   CallStatus = "PENDING"
	StatusRunning   CallStatus = "RUNNING"
	StatusCompleted CallStatus = "COMPLETED"
	StatusFailed    CallStatus = "FAILED"
	StatusCanceled  CallStatus = "CANCELED"
)

func (s CallStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

func (s CallStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// rank orders states for the forward-only rule. All terminal states share a
// rank: no terminal state may replace another.
func (s CallStatus) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusRunning:
		return 1
	default:
		return 2
	}
}

// CanTransition reports whether moving from s to next is a legal forward
// step in the state machine.
func (s CallStatus) CanTransition(next CallStatus) bool {
	if !next.IsValid() || s.IsTerminal() {
		return false
	}
	return next.rank() > s.rank()
}

// StatusFromPlatform maps the platform's status vocabulary onto the local
// enum, case-insensitively. Unknown values map to ("", false).
func StatusFromPlatform(raw string) (CallStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return StatusPending, true
	case "running":
		return StatusRunning, true
	case "completed", "success":
		return StatusCompleted, true
	case "failed", "error":
		return StatusFailed, true
	case "canceled", "cancelled":
		return StatusCanceled, true
	default:
		return "", false
	}
}

// ApplyStatus transitions the record to next if the forward-only rule
// allows it, stamping CompletedAt on the first terminal transition.
// Returns true when the record changed.
func (r *CallRecord) ApplyStatus(next CallStatus, now time.Time) bool {
	if next == r.Status || !r.Status.CanTransition(next) {
		return false
	}
	r.Status = next
	if next.IsTerminal() && r.CompletedAt == nil {
		t := now.UTC()
		r.CompletedAt = &t
	}
	return true
}

// AdoptRunID sets the run id if the record has none. First writer wins;
// a differing later value is ignored. Returns true when adopted.
func (r *CallRecord) AdoptRunID(runID string) bool {
	if runID == "" || r.RunID != nil {
		return false
	}
	id := runID
	r.RunID = &id
	return true
}

// MergeMetadata additively merges fields into the named metadata subtree.
// Existing keys inside the subtree are preserved unless the writer supplies
// a new value for them; sibling subtrees are never touched.
func (r *CallRecord) MergeMetadata(subtree string, fields map[string]any) {
	if len(fields) == 0 {
		return
	}
	if r.Metadata == nil {
		r.Metadata = map[string]any{}
	}
	existing, _ := r.Metadata[subtree].(map[string]any)
	merged := make(map[string]any, len(existing)+len(fields))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	r.Metadata[subtree] = merged
}

// SetError records a human-readable failure reason.
func (r *CallRecord) SetError(msg string) {
	r.ErrorMessage = &msg
}

// clone returns a deep copy safe to hand to callers while the original
// stays owned by a store.
func (r CallRecord) clone() CallRecord {
	out := r
	if r.RunID != nil {
		id := *r.RunID
		out.RunID = &id
	}
	if r.ErrorMessage != nil {
		m := *r.ErrorMessage
		out.ErrorMessage = &m
	}
	if r.UserID != nil {
		u := *r.UserID
		out.UserID = &u
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	out.Metadata = cloneDoc(r.Metadata)
	return out
}

func cloneDoc(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if sub, ok := v.(map[string]any); ok {
			out[k] = cloneDoc(sub)
			continue
		}
		out[k] = v
	}
	return out
}
