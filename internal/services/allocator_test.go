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

// MockAllocatorQuerier is a mock implementation of AllocatorQuerier
type MockAllocatorQuerier struct {
	mock.Mock
}

func (m *MockAllocatorQuerier) ClaimCopyByID(ctx context.Context, arg queries.ClaimCopyByIDParams) (queries.Copy, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(queries.Copy), args.Error(1)
}

func (m *MockAllocatorQuerier) ClaimAnyCopy(ctx context.Context, titleID pgtype.UUID) (queries.Copy, error) {
	args := m.Called(ctx, titleID)
	return args.Get(0).(queries.Copy), args.Error(1)
}

func (m *MockAllocatorQuerier) ReleaseCopy(ctx context.Context, arg queries.ReleaseCopyParams) (queries.Copy, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(queries.Copy), args.Error(1)
}

func (m *MockAllocatorQuerier) UnclaimCopy(ctx context.Context, id pgtype.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAllocatorQuerier) AttachLoanToCopy(ctx context.Context, arg queries.AttachLoanParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}

func (m *MockAllocatorQuerier) GetCopyByID(ctx context.Context, id pgtype.UUID) (queries.Copy, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(queries.Copy), args.Error(1)
}

func TestAllocatorService_Claim_AnyCopy(t *testing.T) {
	mockQuerier := new(MockAllocatorQuerier)
	svc := NewAllocatorService(mockQuerier)

	titleID := uuid.New()
	claimed := queries.Copy{
		ID:         queries.PgUUID(uuid.New()),
		TitleID:    queries.PgUUID(titleID),
		CopyNumber: 3,
		CopyCode:   "9780134685991-0003",
		Status:     queries.CopyStatusBorrowed,
	}

	mockQuerier.On("ClaimAnyCopy", mock.Anything, queries.PgUUID(titleID)).Return(claimed, nil)

	got, err := svc.Claim(context.Background(), titleID, nil)
	require.NoError(t, err)
	assert.Equal(t, claimed.CopyCode, got.CopyCode)
	mockQuerier.AssertExpectations(t)
}

func TestAllocatorService_Claim_NoCopyAvailable(t *testing.T) {
	mockQuerier := new(MockAllocatorQuerier)
	svc := NewAllocatorService(mockQuerier)

	titleID := uuid.New()
	mockQuerier.On("ClaimAnyCopy", mock.Anything, queries.PgUUID(titleID)).
		Return(queries.Copy{}, pgx.ErrNoRows)

	_, err := svc.Claim(context.Background(), titleID, nil)
	assert.ErrorIs(t, err, models.ErrNoCopyAvailable)
}

func TestAllocatorService_Claim_SpecificCopy(t *testing.T) {
	mockQuerier := new(MockAllocatorQuerier)
	svc := NewAllocatorService(mockQuerier)

	titleID := uuid.New()
	copyID := uuid.New()
	claimed := queries.Copy{
		ID:      queries.PgUUID(copyID),
		TitleID: queries.PgUUID(titleID),
		Status:  queries.CopyStatusBorrowed,
	}

	mockQuerier.On("ClaimCopyByID", mock.Anything, queries.ClaimCopyByIDParams{
		ID:      queries.PgUUID(copyID),
		TitleID: queries.PgUUID(titleID),
	}).Return(claimed, nil)

	got, err := svc.Claim(context.Background(), titleID, &copyID)
	require.NoError(t, err)
	assert.Equal(t, claimed.ID, got.ID)
}

func TestAllocatorService_Claim_SpecificCopyTaken(t *testing.T) {
	mockQuerier := new(MockAllocatorQuerier)
	svc := NewAllocatorService(mockQuerier)

	titleID := uuid.New()
	copyID := uuid.New()

	// The conditional update matched nothing: somebody else holds the copy.
	mockQuerier.On("ClaimCopyByID", mock.Anything, mock.Anything).
		Return(queries.Copy{}, pgx.ErrNoRows)

	_, err := svc.Claim(context.Background(), titleID, &copyID)
	assert.ErrorIs(t, err, models.ErrCopyUnavailable)
}

func TestAllocatorService_Release_WrongLoan(t *testing.T) {
	mockQuerier := new(MockAllocatorQuerier)
	svc := NewAllocatorService(mockQuerier)

	mockQuerier.On("ReleaseCopy", mock.Anything, mock.Anything).
		Return(queries.Copy{}, pgx.ErrNoRows)

	_, err := svc.Release(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, models.ErrInconsistentCopyState)
}

func TestAllocatorService_Release(t *testing.T) {
	mockQuerier := new(MockAllocatorQuerier)
	svc := NewAllocatorService(mockQuerier)

	copyID := uuid.New()
	loanID := uuid.New()
	released := queries.Copy{
		ID:     queries.PgUUID(copyID),
		Status: queries.CopyStatusAvailable,
	}

	mockQuerier.On("ReleaseCopy", mock.Anything, queries.ReleaseCopyParams{
		ID:     queries.PgUUID(copyID),
		LoanID: queries.PgUUID(loanID),
	}).Return(released, nil)

	got, err := svc.Release(context.Background(), copyID, loanID)
	require.NoError(t, err)
	assert.Equal(t, queries.CopyStatusAvailable, got.Status)
}
