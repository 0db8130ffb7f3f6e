package queries

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const loanColumns = `id, copy_id, title_id, user_id, user_name, user_email,
	price, borrow_date, due_date, return_date, renew_count, last_renewed_at,
	fine, payment_method, payment_status, payment_amount, transaction_ref,
	paid_at, created_at, updated_at`

func scanLoan(row pgx.Row) (Loan, error) {
	var l Loan
	err := row.Scan(
		&l.ID, &l.CopyID, &l.TitleID, &l.UserID, &l.UserName, &l.UserEmail,
		&l.Price, &l.BorrowDate, &l.DueDate, &l.ReturnDate, &l.RenewCount,
		&l.LastRenewedAt, &l.Fine, &l.PaymentMethod, &l.PaymentStatus,
		&l.PaymentAmount, &l.TransactionRef, &l.PaidAt, &l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}

type CreateLoanParams struct {
	CopyID    pgtype.UUID
	TitleID   pgtype.UUID
	UserID    pgtype.UUID
	UserName  string
	UserEmail string
	Price     pgtype.Numeric
	DueDate   pgtype.Timestamptz
}

func (q *Queries) CreateLoan(ctx context.Context, arg CreateLoanParams) (Loan, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO loans (copy_id, title_id, user_id, user_name, user_email, price, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+loanColumns,
		arg.CopyID, arg.TitleID, arg.UserID, arg.UserName, arg.UserEmail,
		arg.Price, arg.DueDate)
	return scanLoan(row)
}

func (q *Queries) GetLoanByID(ctx context.Context, id pgtype.UUID) (Loan, error) {
	row := q.db.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id)
	return scanLoan(row)
}

func (q *Queries) GetLoanByTransactionRef(ctx context.Context, ref string) (Loan, error) {
	row := q.db.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE transaction_ref = $1`, ref)
	return scanLoan(row)
}

type OpenLoanByUserAndTitleParams struct {
	UserID  pgtype.UUID
	TitleID pgtype.UUID
}

// GetOpenLoanByUserAndTitle matches by title, not by copy: one active loan
// per user per title.
func (q *Queries) GetOpenLoanByUserAndTitle(ctx context.Context, arg OpenLoanByUserAndTitleParams) (Loan, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+loanColumns+` FROM loans
		WHERE user_id = $1 AND title_id = $2 AND return_date IS NULL
		LIMIT 1`, arg.UserID, arg.TitleID)
	return scanLoan(row)
}

type RenewLoanParams struct {
	ID      pgtype.UUID
	DueDate pgtype.Timestamptz
}

func (q *Queries) RenewLoan(ctx context.Context, arg RenewLoanParams) (Loan, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE loans
		SET due_date = $2, renew_count = renew_count + 1,
		    last_renewed_at = now(), updated_at = now()
		WHERE id = $1 AND return_date IS NULL
		RETURNING `+loanColumns,
		arg.ID, arg.DueDate)
	return scanLoan(row)
}

type SetLoanPaymentParams struct {
	ID             pgtype.UUID
	Fine           pgtype.Numeric
	PaymentMethod  string
	PaymentAmount  pgtype.Numeric
	TransactionRef pgtype.Text
}

// SetLoanPayment records the prepared payment and moves the sub-state to
// pending. Re-preparing an open loan is allowed; a closed loan matches
// nothing.
func (q *Queries) SetLoanPayment(ctx context.Context, arg SetLoanPaymentParams) (Loan, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE loans
		SET fine = $2, payment_method = $3, payment_status = 'pending',
		    payment_amount = $4, transaction_ref = $5, updated_at = now()
		WHERE id = $1 AND return_date IS NULL
		RETURNING `+loanColumns,
		arg.ID, arg.Fine, arg.PaymentMethod, arg.PaymentAmount, arg.TransactionRef)
	return scanLoan(row)
}

type MarkLoanPaidParams struct {
	ID     pgtype.UUID
	PaidAt pgtype.Timestamptz
}

func (q *Queries) MarkLoanPaid(ctx context.Context, arg MarkLoanPaidParams) (Loan, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE loans
		SET payment_status = 'paid', paid_at = $2, updated_at = now()
		WHERE id = $1 AND payment_status = 'pending'
		RETURNING `+loanColumns,
		arg.ID, arg.PaidAt)
	return scanLoan(row)
}

// MarkLoanPaymentFailed returns the loan to the payable state after a
// processor-side failure.
func (q *Queries) MarkLoanPaymentFailed(ctx context.Context, id pgtype.UUID) (Loan, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE loans
		SET payment_status = 'failed', updated_at = now()
		WHERE id = $1 AND payment_status = 'pending'
		RETURNING `+loanColumns, id)
	return scanLoan(row)
}

type CloseLoanParams struct {
	ID         pgtype.UUID
	ReturnDate pgtype.Timestamptz
}

// CloseLoan sets return_date exactly once; a second call matches zero rows,
// which is how Finalize stays idempotent.
func (q *Queries) CloseLoan(ctx context.Context, arg CloseLoanParams) (Loan, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE loans
		SET return_date = $2, updated_at = now()
		WHERE id = $1 AND return_date IS NULL
		RETURNING `+loanColumns,
		arg.ID, arg.ReturnDate)
	return scanLoan(row)
}

type ListLoansParams struct {
	Limit  int32
	Offset int32
}

func (q *Queries) ListLoans(ctx context.Context, arg ListLoansParams) ([]Loan, error) {
	return q.listLoans(ctx, `
		SELECT `+loanColumns+` FROM loans
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, arg.Limit, arg.Offset)
}

func (q *Queries) CountLoans(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM loans`).Scan(&n)
	return n, err
}

type ListLoansByUserParams struct {
	UserID pgtype.UUID
	Limit  int32
	Offset int32
}

func (q *Queries) ListLoansByUser(ctx context.Context, arg ListLoansByUserParams) ([]Loan, error) {
	return q.listLoans(ctx, `
		SELECT `+loanColumns+` FROM loans
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, arg.UserID, arg.Limit, arg.Offset)
}

func (q *Queries) ListOpenLoansByUser(ctx context.Context, userID pgtype.UUID) ([]Loan, error) {
	return q.listLoans(ctx, `
		SELECT `+loanColumns+` FROM loans
		WHERE user_id = $1 AND return_date IS NULL
		ORDER BY due_date`, userID)
}

// CountOpenLoansByTitle backs the no-overbooking reconciliation check.
func (q *Queries) CountOpenLoansByTitle(ctx context.Context, titleID pgtype.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `
		SELECT count(*) FROM loans
		WHERE title_id = $1 AND return_date IS NULL`, titleID).Scan(&n)
	return n, err
}

func (q *Queries) listLoans(ctx context.Context, sql string, args ...interface{}) ([]Loan, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}
