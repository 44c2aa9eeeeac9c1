package calls

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"salesops-console/pkg/utils"

	"github.com/google/uuid"
)

// PostgresStore persists call records in the calls table (see migrations).
// Update runs read-merge-write inside a transaction with a row lock, so the
// three writer paths (trigger, callback, reconciler) can race safely.
type PostgresStore struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, clock: time.Now}
}

const callColumns = `
id, run_id, subject_name, phone_number, status, error_message, metadata, user_id, created_at, updated_at, completed_at`

func (s *PostgresStore) Create(ctx context.Context, rec CallRecord) (CallRecord, error) {
	now := s.clock().UTC()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	rec.CreatedAt = now
	rec.UpdatedAt = now

	meta, err := marshalMetadata(rec.Metadata)
	if err != nil {
		return CallRecord{}, err
	}

	const q = `
INSERT INTO calls (id, run_id, subject_name, phone_number, status, error_message, metadata, user_id, created_at, updated_at, completed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`
	_, err = s.db.ExecContext(ctx, q,
		rec.ID,
		rec.RunID,
		rec.SubjectName,
		rec.PhoneNumber,
		string(rec.Status),
		rec.ErrorMessage,
		meta,
		rec.UserID,
		rec.CreatedAt,
		rec.UpdatedAt,
		rec.CompletedAt,
	)
	if err != nil {
		return CallRecord{}, fmt.Errorf("insert call: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (CallRecord, error) {
	const q = `SELECT ` + callColumns + ` FROM calls WHERE id = $1`
	return scanCall(s.db.QueryRowContext(ctx, q, id))
}

func (s *PostgresStore) GetByRunID(ctx context.Context, runID string) (CallRecord, error) {
	const q = `SELECT ` + callColumns + ` FROM calls WHERE run_id = $1`
	return scanCall(s.db.QueryRowContext(ctx, q, runID))
}

func (s *PostgresStore) Update(ctx context.Context, key Key, mutate func(rec *CallRecord) error) (CallRecord, error) {
	if key.isZero() {
		return CallRecord{}, ErrInvalidArgument
	}

	var out CallRecord
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		rec, err := lockCall(ctx, tx, key)
		if err != nil {
			return err
		}

		if err := mutate(&rec); err != nil {
			return err
		}
		rec.UpdatedAt = s.clock().UTC()

		meta, err := marshalMetadata(rec.Metadata)
		if err != nil {
			return err
		}

		const q = `
UPDATE calls
SET run_id = $2,
    status = $3,
    error_message = $4,
    metadata = $5,
    updated_at = $6,
    completed_at = $7
WHERE id = $1
`
		if _, err := tx.ExecContext(ctx, q,
			rec.ID,
			rec.RunID,
			string(rec.Status),
			rec.ErrorMessage,
			meta,
			rec.UpdatedAt,
			rec.CompletedAt,
		); err != nil {
			return fmt.Errorf("update call: %w", err)
		}
		out = rec
		return nil
	})
	if err != nil {
		return CallRecord{}, err
	}
	return out, nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]CallRecord, error) {
	if limit < 1 {
		limit = 20
	}
	const q = `SELECT ` + callColumns + ` FROM calls ORDER BY created_at DESC LIMIT $1`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCalls(rows)
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]CallRecord, int, error) {
	page, size := normalizePage(filter)

	where := "TRUE"
	args := []any{}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where += fmt.Sprintf(" AND (subject_name ILIKE $%d OR phone_number LIKE $%d)", len(args), len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM calls WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, size, (page-1)*size)
	q := "SELECT " + callColumns + " FROM calls WHERE " + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	recs, err := collectCalls(rows)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

func lockCall(ctx context.Context, tx *sql.Tx, key Key) (CallRecord, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE id = $1 FOR UPDATE`
	arg := key.ID
	if key.ID == "" {
		q = `SELECT ` + callColumns + ` FROM calls WHERE run_id = $1 FOR UPDATE`
		arg = key.RunID
	}
	return scanCall(tx.QueryRowContext(ctx, q, arg))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (CallRecord, error) {
	var (
		rec  CallRecord
		meta []byte
	)
	err := row.Scan(
		&rec.ID,
		&rec.RunID,
		&rec.SubjectName,
		&rec.PhoneNumber,
		(*string)(&rec.Status),
		&rec.ErrorMessage,
		&meta,
		&rec.UserID,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&rec.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallRecord{}, ErrNotFound
		}
		return CallRecord{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
			return CallRecord{}, fmt.Errorf("decode call metadata: %w", err)
		}
	}
	return rec, nil
}

func collectCalls(rows *sql.Rows) ([]CallRecord, error) {
	out := []CallRecord{}
	for rows.Next() {
		rec, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func marshalMetadata(doc map[string]any) ([]byte, error) {
	if doc == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode call metadata: %w", err)
	}
	return b, nil
}
