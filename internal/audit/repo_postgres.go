package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends events to the audit_events table (INSERT only).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (id, type, actor_user_id, call_id, run_id, message, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		string(e.Type),
		nullable(e.ActorUserID),
		nullable(e.CallID),
		nullable(e.RunID),
		nullable(e.Message),
		nullable(e.Metadata),
		e.CreatedAt,
	)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
