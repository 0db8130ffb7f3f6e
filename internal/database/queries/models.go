package queries

import (
	"math/big"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Copy statuses as stored in copies.status.
const (
	CopyStatusAvailable   = "available"
	CopyStatusBorrowed    = "borrowed"
	CopyStatusReserved    = "reserved"
	CopyStatusLost        = "lost"
	CopyStatusDamaged     = "damaged"
	CopyStatusMaintenance = "maintenance"
)

// Payment sub-state machine values on loans.
const (
	PaymentMethodCash  = "cash"
	PaymentMethodVNPay = "vnpay"

	PaymentStatusUnpaid  = "unpaid"
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

type User struct {
	ID            pgtype.UUID
	Name          string
	Email         string
	PasswordHash  string
	Role          string
	Verified      pgtype.Bool
	Locked        pgtype.Bool
	LockedAt      pgtype.Timestamptz
	LockReason    string
	BorrowedBooks []byte
	CreatedAt     pgtype.Timestamptz
	UpdatedAt     pgtype.Timestamptz
}

type Title struct {
	ID             pgtype.UUID
	Isbn           pgtype.Text
	Title          string
	Author         string
	Description    pgtype.Text
	Price          pgtype.Numeric
	AvailableCount pgtype.Int4
	TotalCopies    pgtype.Int4
	IsAvailable    pgtype.Bool
	CopySeq        pgtype.Int4
	IsDeleted      pgtype.Bool
	DeletedAt      pgtype.Timestamptz
	CreatedAt      pgtype.Timestamptz
	UpdatedAt      pgtype.Timestamptz
}

type Copy struct {
	ID            pgtype.UUID
	TitleID       pgtype.UUID
	CopyNumber    int32
	CopyCode      string
	Status        string
	CurrentLoanID pgtype.UUID
	AcquiredAt    pgtype.Timestamptz
	Notes         pgtype.Text
	CreatedAt     pgtype.Timestamptz
	UpdatedAt     pgtype.Timestamptz
}

type Loan struct {
	ID             pgtype.UUID
	CopyID         pgtype.UUID
	TitleID        pgtype.UUID
	UserID         pgtype.UUID
	UserName       string
	UserEmail      string
	Price          pgtype.Numeric
	BorrowDate     pgtype.Timestamptz
	DueDate        pgtype.Timestamptz
	ReturnDate     pgtype.Timestamptz
	RenewCount     int32
	LastRenewedAt  pgtype.Timestamptz
	Fine           pgtype.Numeric
	PaymentMethod  string
	PaymentStatus  string
	PaymentAmount  pgtype.Numeric
	TransactionRef pgtype.Text
	PaidAt         pgtype.Timestamptz
	CreatedAt      pgtype.Timestamptz
	UpdatedAt      pgtype.Timestamptz
}

type Category struct {
	ID          pgtype.UUID
	Name        string
	Description pgtype.Text
	CreatedAt   pgtype.Timestamptz
}

// NumericFromDecimal converts a decimal amount into pgtype.Numeric without
// passing through float64.
func NumericFromDecimal(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

// DecimalFromNumeric converts a stored numeric back to decimal. Invalid or
// NULL values come back as zero.
func DecimalFromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(new(big.Int).Set(n.Int), n.Exp)
}
