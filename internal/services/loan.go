package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ngvinh/circulib/internal/config"
	"github.com/ngvinh/circulib/internal/database/queries"
	"github.com/ngvinh/circulib/internal/models"
)

// LoanQuerier is the loan lifecycle's slice of the query layer.
type LoanQuerier interface {
	GetTitleByID(ctx context.Context, id pgtype.UUID) (queries.Title, error)
	GetUserByEmail(ctx context.Context, email string) (queries.User, error)
	GetOpenLoanByUserAndTitle(ctx context.Context, arg queries.OpenLoanByUserAndTitleParams) (queries.Loan, error)
	CreateLoan(ctx context.Context, arg queries.CreateLoanParams) (queries.Loan, error)
	GetLoanByID(ctx context.Context, id pgtype.UUID) (queries.Loan, error)
	GetLoanByTransactionRef(ctx context.Context, ref string) (queries.Loan, error)
	RenewLoan(ctx context.Context, arg queries.RenewLoanParams) (queries.Loan, error)
	SetLoanPayment(ctx context.Context, arg queries.SetLoanPaymentParams) (queries.Loan, error)
	MarkLoanPaid(ctx context.Context, arg queries.MarkLoanPaidParams) (queries.Loan, error)
	MarkLoanPaymentFailed(ctx context.Context, id pgtype.UUID) (queries.Loan, error)
	CloseLoan(ctx context.Context, arg queries.CloseLoanParams) (queries.Loan, error)
	AppendBorrowedSummary(ctx context.Context, arg queries.AppendBorrowedSummaryParams) error
	MarkSummaryReturned(ctx context.Context, arg queries.MarkSummaryReturnedParams) error
	ListLoansByUser(ctx context.Context, arg queries.ListLoansByUserParams) ([]queries.Loan, error)
	ListOpenLoansByUser(ctx context.Context, userID pgtype.UUID) ([]queries.Loan, error)
	ListLoans(ctx context.Context, arg queries.ListLoansParams) ([]queries.Loan, error)
	CountLoans(ctx context.Context) (int64, error)
}

// copyAllocator and inventoryLedger are the collaborator surfaces the loan
// lifecycle depends on, satisfied by AllocatorService and InventoryService.
type copyAllocator interface {
	Claim(ctx context.Context, titleID uuid.UUID, copyHint *uuid.UUID) (queries.Copy, error)
	Attach(ctx context.Context, copyID, loanID uuid.UUID) error
	Unclaim(ctx context.Context, copyID uuid.UUID) error
	Release(ctx context.Context, copyID, loanID uuid.UUID) (queries.Copy, error)
	CopyState(ctx context.Context, copyID uuid.UUID) (queries.Copy, error)
}

type inventoryLedger interface {
	Recompute(ctx context.Context, titleID uuid.UUID) (queries.Title, error)
	Counts(ctx context.Context, titleID uuid.UUID) (queries.CopyCounts, error)
}

type paymentGateway interface {
	BuildRedirect(req RedirectRequest) (string, error)
	VerifyCallback(raw url.Values) (CallbackResult, error)
}

// CallbackOutcome is what the HTTP layer turns into the client-facing
// redirect after a gateway callback.
type CallbackOutcome struct {
	LoanID         string
	TransactionRef string
	Paid           bool
	// IntegrityAlert is set when the payment was recorded but the copy
	// release failed; the loan needs operator reconciliation.
	IntegrityAlert bool
}

// LoanService drives a loan from open through renewal, payment and
// finalization.
type LoanService struct {
	q           LoanQuerier
	allocator   copyAllocator
	ledger      inventoryLedger
	gateway     paymentGateway
	fines       FinePolicy
	borrowDays  int
	renewDays   int
	maxRenewals int
	logger      *slog.Logger
	now         func() time.Time
}

func NewLoanService(q LoanQuerier, allocator copyAllocator, ledger inventoryLedger, gateway paymentGateway, fines FinePolicy, cfg config.LoanConfig, logger *slog.Logger) *LoanService {
	return &LoanService{
		q:           q,
		allocator:   allocator,
		ledger:      ledger,
		gateway:     gateway,
		fines:       fines,
		borrowDays:  cfg.BorrowDays,
		renewDays:   cfg.RenewDays,
		maxRenewals: cfg.MaxRenewals,
		logger:      logger,
		now:         time.Now,
	}
}

// Open claims a copy of the title for the user and creates the loan. The
// claim is the authoritative allocation decision; the cached title count is
// refreshed afterwards and may briefly lag.
func (s *LoanService) Open(ctx context.Context, req models.OpenLoanRequest) (*models.LoanResponse, error) {
	titleID, err := uuid.Parse(req.TitleID)
	if err != nil {
		return nil, models.Validation("invalid title id")
	}

	var copyHint *uuid.UUID
	if req.CopyID != "" {
		hint, err := uuid.Parse(req.CopyID)
		if err != nil {
			return nil, models.Validation("invalid copy id")
		}
		copyHint = &hint
	}

	title, err := s.q.GetTitleByID(ctx, queries.PgUUID(titleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrTitleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get title: %w", err)
	}
	if title.IsDeleted.Valid && title.IsDeleted.Bool {
		return nil, models.ErrTitleNotFound
	}

	user, err := s.q.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user.Verified.Valid && !user.Verified.Bool {
		return nil, models.ErrUserNotFound
	}
	if user.Locked.Valid && user.Locked.Bool {
		return nil, models.ErrUserLocked
	}

	// One active loan per user per title, matched by title.
	_, err = s.q.GetOpenLoanByUserAndTitle(ctx, queries.OpenLoanByUserAndTitleParams{
		UserID:  user.ID,
		TitleID: title.ID,
	})
	if err == nil {
		return nil, models.ErrAlreadyBorrowing
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to check open loans: %w", err)
	}

	cp, err := s.allocator.Claim(ctx, titleID, copyHint)
	if err != nil {
		return nil, err
	}

	dueDate := s.now().AddDate(0, 0, s.borrowDays)
	loan, err := s.q.CreateLoan(ctx, queries.CreateLoanParams{
		CopyID:    cp.ID,
		TitleID:   title.ID,
		UserID:    user.ID,
		UserName:  user.Name,
		UserEmail: user.Email,
		Price:     title.Price,
		DueDate:   pgtype.Timestamptz{Time: dueDate, Valid: true},
	})
	if err != nil {
		// The claim flipped the copy to borrowed with no loan referencing
		// it; hand it back before reporting the failure.
		if uerr := s.allocator.Unclaim(ctx, uuid.UUID(cp.ID.Bytes)); uerr != nil {
			s.logger.Error("failed to unclaim copy after loan creation failure",
				"copy_id", queries.UUIDString(cp.ID), "error", uerr)
		}
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}

	loanID := uuid.UUID(loan.ID.Bytes)
	if err := s.allocator.Attach(ctx, uuid.UUID(cp.ID.Bytes), loanID); err != nil {
		// Without the back-reference the eventual release can never match;
		// void the loan and hand the copy back instead of leaving both
		// halves dangling.
		if _, cerr := s.q.CloseLoan(ctx, queries.CloseLoanParams{
			ID:         loan.ID,
			ReturnDate: pgtype.Timestamptz{Time: s.now(), Valid: true},
		}); cerr != nil {
			s.logger.Error("failed to void loan after attach failure",
				"loan_id", queries.UUIDString(loan.ID), "error", cerr)
		}
		if uerr := s.allocator.Unclaim(ctx, uuid.UUID(cp.ID.Bytes)); uerr != nil {
			s.logger.Error("failed to unclaim copy after attach failure",
				"copy_id", queries.UUIDString(cp.ID), "error", uerr)
		}
		return nil, err
	}

	summary := models.BorrowedSummary{
		LoanID:       queries.UUIDString(loan.ID),
		TitleID:      queries.UUIDString(title.ID),
		Title:        title.Title,
		CopyCode:     cp.CopyCode,
		BorrowedDate: loan.BorrowDate.Time,
		DueDate:      dueDate,
	}
	if err := s.appendSummary(ctx, user.ID, summary); err != nil {
		// The mirror is a cache rebuildable from loans; stale entries are
		// tolerated, losing the loan is not.
		s.logger.Warn("failed to append loan summary to user mirror",
			"loan_id", summary.LoanID, "error", err)
	}

	if _, err := s.ledger.Recompute(ctx, titleID); err != nil {
		s.logger.Warn("failed to recompute title counts after loan open",
			"title_id", req.TitleID, "error", err)
	}

	resp := loan.ToResponse()
	resp.CopyCode = cp.CopyCode
	return &resp, nil
}

// Renew extends the due date from the current due date, not from now.
func (s *LoanService) Renew(ctx context.Context, loanID, actingUserID uuid.UUID) (*models.LoanResponse, error) {
	loan, err := s.getLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	// Loans are only visible to their owner here.
	if loan.UserID != queries.PgUUID(actingUserID) {
		return nil, models.ErrLoanNotFound
	}
	if loan.ReturnDate.Valid {
		return nil, models.ErrLoanAlreadyClosed
	}
	if s.now().After(loan.DueDate.Time) {
		return nil, models.ErrLoanOverdue
	}
	if int(loan.RenewCount) >= s.maxRenewals {
		return nil, models.ErrRenewalLimitExceeded
	}

	newDue := loan.DueDate.Time.AddDate(0, 0, s.renewDays)
	renewed, err := s.q.RenewLoan(ctx, queries.RenewLoanParams{
		ID:      loan.ID,
		DueDate: pgtype.Timestamptz{Time: newDue, Valid: true},
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrLoanAlreadyClosed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to renew loan: %w", err)
	}

	resp := renewed.ToResponse()
	return &resp, nil
}

// PreparePayment computes the fine against the loan's current (possibly
// renewed) due date, records amount and method, and for the gateway method
// returns the signed redirect URL.
func (s *LoanService) PreparePayment(ctx context.Context, loanID uuid.UUID, method models.PaymentMethod, clientIP string) (*models.PreparePaymentResponse, error) {
	loan, err := s.getLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.ReturnDate.Valid {
		return nil, models.ErrLoanAlreadyClosed
	}

	fine := s.fines.Fine(loan.DueDate.Time, s.now())
	amount := queries.DecimalFromNumeric(loan.Price).Add(fine)

	txnRef := pgtype.Text{}
	if method == models.PaymentMethodVNPay {
		txnRef = pgtype.Text{String: uuid.NewString(), Valid: true}
	}

	updated, err := s.q.SetLoanPayment(ctx, queries.SetLoanPaymentParams{
		ID:             loan.ID,
		Fine:           queries.NumericFromDecimal(fine),
		PaymentMethod:  string(method),
		PaymentAmount:  queries.NumericFromDecimal(amount),
		TransactionRef: txnRef,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrLoanAlreadyClosed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to prepare payment: %w", err)
	}

	resp := &models.PreparePaymentResponse{
		Loan:      updated.ToResponse(),
		AmountDue: amount,
		Fine:      fine,
	}

	if method == models.PaymentMethodVNPay {
		redirect, err := s.gateway.BuildRedirect(RedirectRequest{
			Amount:    amount,
			TxnRef:    txnRef.String,
			OrderInfo: fmt.Sprintf("Thanh toan tra sach %s", loan.UserEmail),
			ClientIP:  clientIP,
		})
		if err != nil {
			return nil, err
		}
		resp.RedirectURL = redirect
	}

	return resp, nil
}

// ConfirmCash settles a pending cash payment and finalizes the loan.
func (s *LoanService) ConfirmCash(ctx context.Context, loanID uuid.UUID) (*models.LoanResponse, error) {
	loan, err := s.getLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.ReturnDate.Valid {
		return nil, models.ErrLoanAlreadyClosed
	}
	if loan.PaymentMethod != queries.PaymentMethodCash {
		return nil, models.ErrWrongPaymentMethod
	}
	if loan.PaymentStatus != queries.PaymentStatusPending {
		return nil, models.ErrPaymentNotPending
	}

	paid, err := s.q.MarkLoanPaid(ctx, queries.MarkLoanPaidParams{
		ID:     loan.ID,
		PaidAt: pgtype.Timestamptz{Time: s.now(), Valid: true},
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrPaymentNotPending
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark loan paid: %w", err)
	}

	if err := s.Finalize(ctx, paid); err != nil {
		return nil, err
	}

	final, err := s.getLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	resp := final.ToResponse()
	return &resp, nil
}

// HandleGatewayCallback verifies the signed callback and settles or fails
// the pending payment. Verification and lookup failures return an error the
// HTTP layer logs and turns into a failure redirect; it never breaks the
// interaction with the processor.
func (s *LoanService) HandleGatewayCallback(ctx context.Context, raw url.Values) (CallbackOutcome, error) {
	result, err := s.gateway.VerifyCallback(raw)
	if err != nil {
		return CallbackOutcome{}, err
	}

	outcome := CallbackOutcome{TransactionRef: result.TxnRef}

	loan, err := s.q.GetLoanByTransactionRef(ctx, result.TxnRef)
	if errors.Is(err, pgx.ErrNoRows) {
		s.logger.Warn("gateway callback for unknown transaction ref",
			"txn_ref", result.TxnRef, "response_code", result.ResponseCode)
		return outcome, models.ErrLoanNotFound
	}
	if err != nil {
		return outcome, fmt.Errorf("failed to look up loan by transaction ref: %w", err)
	}
	outcome.LoanID = queries.UUIDString(loan.ID)

	if !result.Success {
		// Processor-side failure: back to Active, payable again.
		if _, err := s.q.MarkLoanPaymentFailed(ctx, loan.ID); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return outcome, fmt.Errorf("failed to mark payment failed: %w", err)
		}
		return outcome, nil
	}

	paid, err := s.q.MarkLoanPaid(ctx, queries.MarkLoanPaidParams{
		ID:     loan.ID,
		PaidAt: pgtype.Timestamptz{Time: s.now(), Valid: true},
	})
	if errors.Is(err, pgx.ErrNoRows) {
		// Callback replay: the payment is already settled. Finalize below
		// is idempotent, so re-running it is harmless.
		if loan.PaymentStatus != queries.PaymentStatusPaid {
			return outcome, models.ErrPaymentNotPending
		}
		paid = loan
	} else if err != nil {
		return outcome, fmt.Errorf("failed to mark loan paid: %w", err)
	}
	outcome.Paid = true

	if err := s.Finalize(ctx, paid); err != nil {
		// The payment is recorded; the loan is paid but still open. This
		// is an operator problem, not a payer problem.
		s.logger.Error("INTEGRITY ALERT: paid loan could not be finalized",
			"loan_id", outcome.LoanID, "error", err)
		outcome.IntegrityAlert = true
		return outcome, nil
	}

	return outcome, nil
}

// Finalize closes a paid loan: releases the copy, sets the return date,
// flips the mirror entry and refreshes the title counts. Idempotent; safe
// to re-run during reconciliation.
func (s *LoanService) Finalize(ctx context.Context, loan queries.Loan) error {
	if loan.ReturnDate.Valid {
		return nil
	}

	copyID := uuid.UUID(loan.CopyID.Bytes)
	loanID := uuid.UUID(loan.ID.Bytes)

	if _, err := s.allocator.Release(ctx, copyID, loanID); err != nil {
		if !errors.Is(err, models.ErrInconsistentCopyState) {
			return err
		}
		// A previous Finalize run may have released the copy and then
		// failed; that state is fine to continue from. Anything else is a
		// real inconsistency and must surface.
		cp, cerr := s.allocator.CopyState(ctx, copyID)
		if cerr != nil {
			return models.ErrInconsistentCopyState
		}
		if cp.Status == queries.CopyStatusBorrowed || cp.CurrentLoanID.Valid {
			return models.ErrInconsistentCopyState
		}
	}

	if _, err := s.q.CloseLoan(ctx, queries.CloseLoanParams{
		ID:         loan.ID,
		ReturnDate: pgtype.Timestamptz{Time: s.now(), Valid: true},
	}); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to close loan: %w", err)
	}

	if err := s.q.MarkSummaryReturned(ctx, queries.MarkSummaryReturnedParams{
		ID:     loan.UserID,
		LoanID: queries.UUIDString(loan.ID),
	}); err != nil {
		s.logger.Warn("failed to mark loan summary returned",
			"loan_id", queries.UUIDString(loan.ID), "error", err)
	}

	if _, err := s.ledger.Recompute(ctx, uuid.UUID(loan.TitleID.Bytes)); err != nil {
		return fmt.Errorf("failed to recompute title counts after finalize: %w", err)
	}

	return nil
}

// ListUserLoans returns a user's loans, newest first.
func (s *LoanService) ListUserLoans(ctx context.Context, userID uuid.UUID, openOnly bool, page, limit int) (*models.LoanListResponse, error) {
	var loans []queries.Loan
	var err error

	if openOnly {
		loans, err = s.q.ListOpenLoansByUser(ctx, queries.PgUUID(userID))
	} else {
		loans, err = s.q.ListLoansByUser(ctx, queries.ListLoansByUserParams{
			UserID: queries.PgUUID(userID),
			Limit:  int32(limit),
			Offset: int32((page - 1) * limit),
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list user loans: %w", err)
	}

	return &models.LoanListResponse{
		Loans: loanResponses(loans),
		Pagination: models.Pagination{
			Page:  page,
			Limit: limit,
			Total: int64(len(loans)),
		},
	}, nil
}

// ListAllLoans is the administrative list.
func (s *LoanService) ListAllLoans(ctx context.Context, page, limit int) (*models.LoanListResponse, error) {
	loans, err := s.q.ListLoans(ctx, queries.ListLoansParams{
		Limit:  int32(limit),
		Offset: int32((page - 1) * limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}

	total, err := s.q.CountLoans(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count loans: %w", err)
	}

	totalPages := int(total) / limit
	if int(total)%limit != 0 {
		totalPages++
	}

	return &models.LoanListResponse{
		Loans: loanResponses(loans),
		Pagination: models.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

func (s *LoanService) getLoan(ctx context.Context, loanID uuid.UUID) (queries.Loan, error) {
	loan, err := s.q.GetLoanByID(ctx, queries.PgUUID(loanID))
	if errors.Is(err, pgx.ErrNoRows) {
		return queries.Loan{}, models.ErrLoanNotFound
	}
	if err != nil {
		return queries.Loan{}, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

func (s *LoanService) appendSummary(ctx context.Context, userID pgtype.UUID, summary models.BorrowedSummary) error {
	entry, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return s.q.AppendBorrowedSummary(ctx, queries.AppendBorrowedSummaryParams{
		ID:    userID,
		Entry: entry,
	})
}

func loanResponses(loans []queries.Loan) []models.LoanResponse {
	responses := make([]models.LoanResponse, len(loans))
	for i := range loans {
		responses[i] = loans[i].ToResponse()
	}
	return responses
}
