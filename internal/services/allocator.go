package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ngvinh/circulib/internal/database/queries"
	"github.com/ngvinh/circulib/internal/models"
)

// AllocatorQuerier is the slice of the query layer the allocator needs.
// Every method it uses is a single conditional UPDATE; the allocator never
// reads then writes.
type AllocatorQuerier interface {
	ClaimCopyByID(ctx context.Context, arg queries.ClaimCopyByIDParams) (queries.Copy, error)
	ClaimAnyCopy(ctx context.Context, titleID pgtype.UUID) (queries.Copy, error)
	ReleaseCopy(ctx context.Context, arg queries.ReleaseCopyParams) (queries.Copy, error)
	UnclaimCopy(ctx context.Context, id pgtype.UUID) error
	AttachLoanToCopy(ctx context.Context, arg queries.AttachLoanParams) error
	GetCopyByID(ctx context.Context, id pgtype.UUID) (queries.Copy, error)
}

// AllocatorService claims and releases physical copies. Both operations are
// compare-and-swap document updates; losing a race surfaces as a Conflict
// error, never as corrupted state.
type AllocatorService struct {
	q AllocatorQuerier
}

func NewAllocatorService(q AllocatorQuerier) *AllocatorService {
	return &AllocatorService{q: q}
}

// Claim transitions one copy of the title from available to borrowed. With a
// hint it claims exactly that copy or fails with CopyUnavailable; without
// one it claims an arbitrary available copy or fails with NoCopyAvailable.
func (s *AllocatorService) Claim(ctx context.Context, titleID uuid.UUID, copyHint *uuid.UUID) (queries.Copy, error) {
	if copyHint != nil {
		copy, err := s.q.ClaimCopyByID(ctx, queries.ClaimCopyByIDParams{
			ID:      queries.PgUUID(*copyHint),
			TitleID: queries.PgUUID(titleID),
		})
		if errors.Is(err, pgx.ErrNoRows) {
			return queries.Copy{}, models.ErrCopyUnavailable
		}
		if err != nil {
			return queries.Copy{}, fmt.Errorf("failed to claim copy: %w", err)
		}
		return copy, nil
	}

	copy, err := s.q.ClaimAnyCopy(ctx, queries.PgUUID(titleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return queries.Copy{}, models.ErrNoCopyAvailable
	}
	if err != nil {
		return queries.Copy{}, fmt.Errorf("failed to claim copy: %w", err)
	}
	return copy, nil
}

// Attach binds the freshly created loan to the claimed copy.
func (s *AllocatorService) Attach(ctx context.Context, copyID, loanID uuid.UUID) error {
	err := s.q.AttachLoanToCopy(ctx, queries.AttachLoanParams{
		ID:     queries.PgUUID(copyID),
		LoanID: queries.PgUUID(loanID),
	})
	if err != nil {
		return fmt.Errorf("failed to attach loan to copy: %w", err)
	}
	return nil
}

// Unclaim rolls back a claim that never got its loan: it only matches a
// borrowed copy with no attached loan, so an attached loan is never undone.
func (s *AllocatorService) Unclaim(ctx context.Context, copyID uuid.UUID) error {
	if err := s.q.UnclaimCopy(ctx, queries.PgUUID(copyID)); err != nil {
		return fmt.Errorf("failed to unclaim copy: %w", err)
	}
	return nil
}

// Release returns a copy to availability, but only while the given loan
// still holds it. If the conditional update matches nothing the copy was
// reassigned or already released; the caller distinguishes the benign case
// (already released, idempotent re-run) from the integrity alert.
func (s *AllocatorService) Release(ctx context.Context, copyID, loanID uuid.UUID) (queries.Copy, error) {
	copy, err := s.q.ReleaseCopy(ctx, queries.ReleaseCopyParams{
		ID:     queries.PgUUID(copyID),
		LoanID: queries.PgUUID(loanID),
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return queries.Copy{}, models.ErrInconsistentCopyState
	}
	if err != nil {
		return queries.Copy{}, fmt.Errorf("failed to release copy: %w", err)
	}
	return copy, nil
}

// CopyState reads the current copy row for reconciliation decisions.
func (s *AllocatorService) CopyState(ctx context.Context, copyID uuid.UUID) (queries.Copy, error) {
	copy, err := s.q.GetCopyByID(ctx, queries.PgUUID(copyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return queries.Copy{}, models.ErrCopyNotFound
	}
	if err != nil {
		return queries.Copy{}, fmt.Errorf("failed to get copy: %w", err)
	}
	return copy, nil
}
