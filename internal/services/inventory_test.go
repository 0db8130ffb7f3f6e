package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ngvinh/circulib/internal/database/queries"
	"github.com/ngvinh/circulib/internal/models"
)

// MockInventoryQuerier is a mock implementation of InventoryQuerier
type MockInventoryQuerier struct {
	mock.Mock
}

func (m *MockInventoryQuerier) RecomputeTitleCounts(ctx context.Context, id pgtype.UUID) (queries.Title, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(queries.Title), args.Error(1)
}

func (m *MockInventoryQuerier) CountTitleCopies(ctx context.Context, id pgtype.UUID) (queries.CopyCounts, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(queries.CopyCounts), args.Error(1)
}

func TestInventoryService_Recompute(t *testing.T) {
	mockQuerier := new(MockInventoryQuerier)
	svc := NewInventoryService(mockQuerier)

	titleID := uuid.New()
	recomputed := queries.Title{
		ID:             queries.PgUUID(titleID),
		AvailableCount: pgtype.Int4{Int32: 2, Valid: true},
		TotalCopies:    pgtype.Int4{Int32: 5, Valid: true},
		IsAvailable:    pgtype.Bool{Bool: true, Valid: true},
	}

	mockQuerier.On("RecomputeTitleCounts", mock.Anything, queries.PgUUID(titleID)).
		Return(recomputed, nil)

	title, err := svc.Recompute(context.Background(), titleID)
	require.NoError(t, err)
	assert.Equal(t, int32(2), title.AvailableCount.Int32)
	assert.True(t, title.IsAvailable.Bool)
}

func TestInventoryService_Recompute_UnknownTitle(t *testing.T) {
	mockQuerier := new(MockInventoryQuerier)
	svc := NewInventoryService(mockQuerier)

	mockQuerier.On("RecomputeTitleCounts", mock.Anything, mock.Anything).
		Return(queries.Title{}, pgx.ErrNoRows)

	_, err := svc.Recompute(context.Background(), uuid.New())
	assert.ErrorIs(t, err, models.ErrTitleNotFound)
}

func TestInventoryService_Counts(t *testing.T) {
	mockQuerier := new(MockInventoryQuerier)
	svc := NewInventoryService(mockQuerier)

	titleID := uuid.New()
	mockQuerier.On("CountTitleCopies", mock.Anything, queries.PgUUID(titleID)).
		Return(queries.CopyCounts{Total: 5, Available: 2}, nil)

	counts, err := svc.Counts(context.Background(), titleID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), counts.Total)
	assert.Equal(t, int64(2), counts.Available)
}
