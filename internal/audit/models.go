package audit

import "time"

// Event is an immutable, append-only internal log record of call-console
// activity. Events are never updated or deleted; capture is best-effort
// and must not block the request path.
type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated user causing the event, when the
	// event has a human actor (callbacks and reconciliation do not).
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`

	// CallID links the event to a call record when applicable.
	CallID string `json:"call_id,omitempty" db:"call_id"`
	// RunID links the event to a platform run when applicable.
	RunID string `json:"run_id,omitempty" db:"run_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCallTriggered    EventType = "call_triggered"
	EventTypeTriggerRejected  EventType = "call_trigger_rejected"
	EventTypeCallbackReceived EventType = "callback_received"
	EventTypeCallReconciled   EventType = "call_reconciled"
)
