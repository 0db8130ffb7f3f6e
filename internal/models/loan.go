package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCash  PaymentMethod = "cash"
	PaymentMethodVNPay PaymentMethod = "vnpay"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// OpenLoanRequest opens a loan for the user with the given email against a
// title, optionally pinning a specific copy.
type OpenLoanRequest struct {
	TitleID string `json:"title_id" binding:"required,uuid"`
	Email   string `json:"email" binding:"required,email"`
	CopyID  string `json:"copy_id" binding:"omitempty,uuid"`
}

// PreparePaymentRequest starts the return-payment flow on a loan.
type PreparePaymentRequest struct {
	Method PaymentMethod `json:"method" binding:"required,oneof=cash vnpay"`
}

type PaymentInfo struct {
	Method         PaymentMethod   `json:"method"`
	Status         PaymentStatus   `json:"status"`
	Amount         decimal.Decimal `json:"amount"`
	TransactionRef *string         `json:"transaction_ref,omitempty"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
}

type LoanResponse struct {
	ID            string          `json:"id"`
	CopyID        string          `json:"copy_id"`
	CopyCode      string          `json:"copy_code,omitempty"`
	TitleID       string          `json:"title_id"`
	UserID        string          `json:"user_id"`
	UserName      string          `json:"user_name"`
	UserEmail     string          `json:"user_email"`
	Price         decimal.Decimal `json:"price"`
	BorrowDate    time.Time       `json:"borrow_date"`
	DueDate       time.Time       `json:"due_date"`
	ReturnDate    *time.Time      `json:"return_date,omitempty"`
	RenewCount    int32           `json:"renew_count"`
	LastRenewedAt *time.Time      `json:"last_renewed_at,omitempty"`
	Fine          decimal.Decimal `json:"fine"`
	Payment       PaymentInfo     `json:"payment"`
}

type LoanListResponse struct {
	Loans      []LoanResponse `json:"loans"`
	Pagination Pagination     `json:"pagination"`
}

// PreparePaymentResponse returns the amount due; RedirectURL is set only for
// the gateway method.
type PreparePaymentResponse struct {
	Loan        LoanResponse    `json:"loan"`
	AmountDue   decimal.Decimal `json:"amount_due"`
	Fine        decimal.Decimal `json:"fine"`
	RedirectURL string          `json:"redirect_url,omitempty"`
}

// BorrowedSummary is one entry of the user's mirrored loan list. The loans
// table is the source of truth; this mirror only serves "my loans" reads.
type BorrowedSummary struct {
	LoanID       string    `json:"loan_id"`
	TitleID      string    `json:"title_id"`
	Title        string    `json:"title"`
	CopyCode     string    `json:"copy_code"`
	BorrowedDate time.Time `json:"borrowed_date"`
	DueDate      time.Time `json:"due_date"`
	RenewCount   int32     `json:"renew_count"`
	Returned     bool      `json:"returned"`
}
