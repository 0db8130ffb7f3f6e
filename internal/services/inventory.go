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

type InventoryQuerier interface {
	RecomputeTitleCounts(ctx context.Context, id pgtype.UUID) (queries.Title, error)
	CountTitleCopies(ctx context.Context, id pgtype.UUID) (queries.CopyCounts, error)
}

// InventoryService maintains the derived per-title counts. The counts are a
// display cache: allocation decisions are always made against copy status,
// never against them.
type InventoryService struct {
	q InventoryQuerier
}

func NewInventoryService(q InventoryQuerier) *InventoryService {
	return &InventoryService{q: q}
}

// Recompute rederives available_count/total_copies/is_available from the
// copy set and persists them in one statement. Idempotent: with no copy
// change in between, a second call is a no-op.
func (s *InventoryService) Recompute(ctx context.Context, titleID uuid.UUID) (queries.Title, error) {
	title, err := s.q.RecomputeTitleCounts(ctx, queries.PgUUID(titleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return queries.Title{}, models.ErrTitleNotFound
	}
	if err != nil {
		return queries.Title{}, fmt.Errorf("failed to recompute title counts: %w", err)
	}
	return title, nil
}

// Counts reads the authoritative copy counts without touching the cache.
func (s *InventoryService) Counts(ctx context.Context, titleID uuid.UUID) (queries.CopyCounts, error) {
	counts, err := s.q.CountTitleCopies(ctx, queries.PgUUID(titleID))
	if err != nil {
		return queries.CopyCounts{}, fmt.Errorf("failed to count copies: %w", err)
	}
	return counts, nil
}
