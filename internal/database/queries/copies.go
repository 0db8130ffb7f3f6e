package queries

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const copyColumns = `id, title_id, copy_number, copy_code, status,
	current_loan_id, acquired_at, notes, created_at, updated_at`

func scanCopy(row pgx.Row) (Copy, error) {
	var c Copy
	err := row.Scan(
		&c.ID, &c.TitleID, &c.CopyNumber, &c.CopyCode, &c.Status,
		&c.CurrentLoanID, &c.AcquiredAt, &c.Notes, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

type CreateCopyParams struct {
	TitleID    pgtype.UUID
	CopyNumber int32
	CopyCode   string
	Notes      pgtype.Text
}

func (q *Queries) CreateCopy(ctx context.Context, arg CreateCopyParams) (Copy, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO copies (title_id, copy_number, copy_code, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING `+copyColumns,
		arg.TitleID, arg.CopyNumber, arg.CopyCode, arg.Notes)
	return scanCopy(row)
}

func (q *Queries) GetCopyByID(ctx context.Context, id pgtype.UUID) (Copy, error) {
	row := q.db.QueryRow(ctx, `SELECT `+copyColumns+` FROM copies WHERE id = $1`, id)
	return scanCopy(row)
}

func (q *Queries) ListCopiesByTitle(ctx context.Context, titleID pgtype.UUID) ([]Copy, error) {
	return q.listCopies(ctx, `
		SELECT `+copyColumns+` FROM copies
		WHERE title_id = $1 ORDER BY copy_number`, titleID)
}

func (q *Queries) ListAvailableCopiesByTitle(ctx context.Context, titleID pgtype.UUID) ([]Copy, error) {
	return q.listCopies(ctx, `
		SELECT `+copyColumns+` FROM copies
		WHERE title_id = $1 AND status = 'available' ORDER BY copy_number`, titleID)
}

func (q *Queries) listCopies(ctx context.Context, sql string, args ...interface{}) ([]Copy, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var copies []Copy
	for rows.Next() {
		c, err := scanCopy(rows)
		if err != nil {
			return nil, err
		}
		copies = append(copies, c)
	}
	return copies, rows.Err()
}

type ClaimCopyByIDParams struct {
	ID      pgtype.UUID
	TitleID pgtype.UUID
}

// ClaimCopyByID claims one specific copy. The status predicate makes this a
// compare-and-swap: a concurrently claimed copy matches zero rows and the
// caller sees pgx.ErrNoRows.
func (q *Queries) ClaimCopyByID(ctx context.Context, arg ClaimCopyByIDParams) (Copy, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE copies SET status = 'borrowed', updated_at = now()
		WHERE id = $1 AND title_id = $2 AND status = 'available'
		RETURNING `+copyColumns,
		arg.ID, arg.TitleID)
	return scanCopy(row)
}

// ClaimAnyCopy claims an arbitrary available copy of the title under the
// same compare-and-swap contract. SKIP LOCKED keeps two concurrent borrow
// requests from queueing on the same row.
func (q *Queries) ClaimAnyCopy(ctx context.Context, titleID pgtype.UUID) (Copy, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE copies SET status = 'borrowed', updated_at = now()
		WHERE id = (
			SELECT id FROM copies
			WHERE title_id = $1 AND status = 'available'
			ORDER BY copy_number
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+copyColumns, titleID)
	return scanCopy(row)
}

type AttachLoanParams struct {
	ID     pgtype.UUID
	LoanID pgtype.UUID
}

func (q *Queries) AttachLoanToCopy(ctx context.Context, arg AttachLoanParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE copies SET current_loan_id = $2, updated_at = now()
		WHERE id = $1 AND status = 'borrowed'`,
		arg.ID, arg.LoanID)
	return err
}

type ReleaseCopyParams struct {
	ID     pgtype.UUID
	LoanID pgtype.UUID
}

// ReleaseCopy returns a copy to availability only while the given loan still
// holds it. Zero matched rows means the copy was reassigned or already
// released.
func (q *Queries) ReleaseCopy(ctx context.Context, arg ReleaseCopyParams) (Copy, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE copies
		SET status = 'available', current_loan_id = NULL, updated_at = now()
		WHERE id = $1 AND status = 'borrowed' AND current_loan_id = $2
		RETURNING `+copyColumns,
		arg.ID, arg.LoanID)
	return scanCopy(row)
}

// UnclaimCopy undoes a claim whose loan was never created. The predicate on
// current_loan_id keeps it from touching a copy an attached loan holds.
func (q *Queries) UnclaimCopy(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `
		UPDATE copies SET status = 'available', updated_at = now()
		WHERE id = $1 AND status = 'borrowed' AND current_loan_id IS NULL`, id)
	return err
}

type SetCopyStatusParams struct {
	ID     pgtype.UUID
	Status string
	Notes  pgtype.Text
}

// SetCopyStatus applies an administrative status. Borrowed copies are
// excluded; they only leave that state through ReleaseCopy.
func (q *Queries) SetCopyStatus(ctx context.Context, arg SetCopyStatusParams) (Copy, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE copies
		SET status = $2, notes = COALESCE($3, notes), updated_at = now()
		WHERE id = $1 AND status <> 'borrowed'
		RETURNING `+copyColumns,
		arg.ID, arg.Status, arg.Notes)
	return scanCopy(row)
}
