package users

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepo persists users in the users table (see migrations).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Create(ctx context.Context, u User) error {
	const q = `
INSERT INTO users (id, email, name, password_hash, role, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`
	_, err := r.db.ExecContext(ctx, q, u.ID, u.Email, u.Name, u.PasswordHash, u.Role, u.CreatedAt)
	return err
}

func (r *PostgresRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	const q = `
SELECT id, email, name, password_hash, role, created_at
FROM users
WHERE email = $1
`
	return scanUser(r.db.QueryRowContext(ctx, q, email))
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (User, error) {
	const q = `
SELECT id, email, name, password_hash, role, created_at
FROM users
WHERE id = $1
`
	return scanUser(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) List(ctx context.Context) ([]User, error) {
	const q = `
SELECT id, email, name, password_hash, role, created_at
FROM users
ORDER BY email
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}
