package queries

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, name, email, password_hash, role, verified,
	locked, locked_at, lock_reason, borrowed_books, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Verified,
		&u.Locked, &u.LockedAt, &u.LockReason,
		&u.BorrowedBooks, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

type CreateUserParams struct {
	Name         string
	Email        string
	PasswordHash string
	Role         string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		arg.Name, arg.Email, arg.PasswordHash, arg.Role)
	return scanUser(row)
}

func (q *Queries) GetUserByID(ctx context.Context, id pgtype.UUID) (User, error) {
	row := q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

type SetUserLockParams struct {
	ID     pgtype.UUID
	Locked bool
	Reason string
}

// SetUserLock flips the lock flag; unlocking clears the timestamp and
// reason along with it.
func (q *Queries) SetUserLock(ctx context.Context, arg SetUserLockParams) (User, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE users
		SET locked      = $2,
		    locked_at   = CASE WHEN $2 THEN now() END,
		    lock_reason = CASE WHEN $2 THEN $3 ELSE '' END,
		    updated_at  = now()
		WHERE id = $1
		RETURNING `+userColumns,
		arg.ID, arg.Locked, arg.Reason)
	return scanUser(row)
}

type ListUsersParams struct {
	Limit  int32
	Offset int32
}

func (q *Queries) ListUsers(ctx context.Context, arg ListUsersParams) ([]User, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+userColumns+` FROM users
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`,
		arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n)
	return n, err
}

func (q *Queries) MarkUserVerified(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `
		UPDATE users SET verified = true, updated_at = now() WHERE id = $1`, id)
	return err
}

type AppendBorrowedSummaryParams struct {
	ID    pgtype.UUID
	Entry []byte
}

// AppendBorrowedSummary pushes one loan summary onto the user's mirrored
// list. The mirror is a read cache; the loans table stays authoritative.
func (q *Queries) AppendBorrowedSummary(ctx context.Context, arg AppendBorrowedSummaryParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE users
		SET borrowed_books = borrowed_books || $2::jsonb, updated_at = now()
		WHERE id = $1`,
		arg.ID, arg.Entry)
	return err
}

type MarkSummaryReturnedParams struct {
	ID     pgtype.UUID
	LoanID string
}

// MarkSummaryReturned flips the returned flag on the mirror entry for the
// given loan in one statement.
func (q *Queries) MarkSummaryReturned(ctx context.Context, arg MarkSummaryReturnedParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE users
		SET borrowed_books = (
			SELECT COALESCE(jsonb_agg(
				CASE WHEN elem->>'loan_id' = $2
				     THEN elem || '{"returned": true}'::jsonb
				     ELSE elem END), '[]'::jsonb)
			FROM jsonb_array_elements(borrowed_books) AS elem
		), updated_at = now()
		WHERE id = $1`,
		arg.ID, arg.LoanID)
	return err
}
