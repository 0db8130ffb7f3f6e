package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
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

// MockCatalogQuerier is a mock implementation of CatalogQuerier
type MockCatalogQuerier struct {
	mock.Mock
}

func (m *MockCatalogQuerier) CreateTitle(ctx context.Context, arg queries.CreateTitleParams) (queries.Title, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(queries.Title), args.Error(1)
}

func (m *MockCatalogQuerier) GetTitleByID(ctx context.Context, id pgtype.UUID) (queries.Title, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(queries.Title), args.Error(1)
}

func (m *MockCatalogQuerier) GetTitleByISBN(ctx context.Context, isbn string) (queries.Title, error) {
	args := m.Called(ctx, isbn)
	return args.Get(0).(queries.Title), args.Error(1)
}

func (m *MockCatalogQuerier) UpdateTitle(ctx context.Context, arg queries.UpdateTitleParams) (queries.Title, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(queries.Title), args.Error(1)
}

func (m *MockCatalogQuerier) ReserveCopyNumbers(ctx context.Context, id pgtype.UUID, n int32) (int32, error) {
	args := m.Called(ctx, id, n)
	return args.Get(0).(int32), args.Error(1)
}

func (m *MockCatalogQuerier) SoftDeleteTitle(ctx context.Context, id pgtype.UUID) (queries.Title, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(queries.Title), args.Error(1)
}

func (m *MockCatalogQuerier) RestoreTitle(ctx context.Context, id pgtype.UUID) (queries.Title, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(queries.Title), args.Error(1)
}

func (m *MockCatalogQuerier) ListTitles(ctx context.Context, arg queries.ListTitlesParams) ([]queries.Title, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).([]queries.Title), args.Error(1)
}

func (m *MockCatalogQuerier) CountTitles(ctx context.Context, arg queries.ListTitlesParams) (int64, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCatalogQuerier) CreateCopy(ctx context.Context, arg queries.CreateCopyParams) (queries.Copy, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(queries.Copy), args.Error(1)
}

func (m *MockCatalogQuerier) GetCopyByID(ctx context.Context, id pgtype.UUID) (queries.Copy, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(queries.Copy), args.Error(1)
}

func (m *MockCatalogQuerier) ListCopiesByTitle(ctx context.Context, titleID pgtype.UUID) ([]queries.Copy, error) {
	args := m.Called(ctx, titleID)
	return args.Get(0).([]queries.Copy), args.Error(1)
}

func (m *MockCatalogQuerier) ListAvailableCopiesByTitle(ctx context.Context, titleID pgtype.UUID) ([]queries.Copy, error) {
	args := m.Called(ctx, titleID)
	return args.Get(0).([]queries.Copy), args.Error(1)
}

func (m *MockCatalogQuerier) SetCopyStatus(ctx context.Context, arg queries.SetCopyStatusParams) (queries.Copy, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(queries.Copy), args.Error(1)
}

func (m *MockCatalogQuerier) CreateCategory(ctx context.Context, arg queries.CreateCategoryParams) (queries.Category, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(queries.Category), args.Error(1)
}

func (m *MockCatalogQuerier) ListCategories(ctx context.Context) ([]queries.Category, error) {
	args := m.Called(ctx)
	return args.Get(0).([]queries.Category), args.Error(1)
}

func (m *MockCatalogQuerier) CountCategoriesByIDs(ctx context.Context, ids []pgtype.UUID) (int64, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCatalogQuerier) SetTitleCategories(ctx context.Context, arg queries.SetTitleCategoriesParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}

func (m *MockCatalogQuerier) ListCategoriesByTitle(ctx context.Context, titleID pgtype.UUID) ([]queries.Category, error) {
	args := m.Called(ctx, titleID)
	return args.Get(0).([]queries.Category), args.Error(1)
}

func newTestCatalogService(t *testing.T) (*CatalogService, *MockCatalogQuerier, *MockInventoryLedger) {
	t.Helper()
	mockQuerier := new(MockCatalogQuerier)
	mockLedger := new(MockInventoryLedger)
	svc := NewCatalogService(mockQuerier, mockLedger, slog.New(slog.NewTextHandler(os.Stdout, nil)))
	return svc, mockQuerier, mockLedger
}

func TestNormalizeISBN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"978-0-13-468599-1", "9780134685991"},
		{"978 0 13 468599 1", "9780134685991"},
		{"0-8044-2957-x", "080442957X"},
		{"9780134685991", "9780134685991"},
		{"- -", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeISBN(tt.in), "input %q", tt.in)
	}
}

func TestCatalogService_AddTitle_NewTitle(t *testing.T) {
	svc, mockQuerier, mockLedger := newTestCatalogService(t)

	titleID := uuid.New()
	created := queries.Title{
		ID:     queries.PgUUID(titleID),
		Isbn:   pgtype.Text{String: "9780134685991", Valid: true},
		Title:  "The Go Programming Language",
		Author: "Donovan and Kernighan",
	}

	mockQuerier.On("GetTitleByISBN", mock.Anything, "9780134685991").
		Return(queries.Title{}, pgx.ErrNoRows)
	mockQuerier.On("CreateTitle", mock.Anything, mock.MatchedBy(func(arg queries.CreateTitleParams) bool {
		return arg.Isbn.String == "9780134685991" && arg.Title == "The Go Programming Language"
	})).Return(created, nil)
	mockQuerier.On("ReserveCopyNumbers", mock.Anything, created.ID, int32(3)).Return(int32(3), nil)
	for i := int32(1); i <= 3; i++ {
		num := i
		mockQuerier.On("CreateCopy", mock.Anything, mock.MatchedBy(func(arg queries.CreateCopyParams) bool {
			return arg.CopyNumber == num && arg.CopyCode == fmt.Sprintf("9780134685991-%04d", num)
		})).Return(queries.Copy{
			ID:         queries.PgUUID(uuid.New()),
			TitleID:    created.ID,
			CopyNumber: num,
			Status:     queries.CopyStatusAvailable,
		}, nil)
	}
	mockLedger.On("Recompute", mock.Anything, titleID).Return(created, nil)
	mockQuerier.On("ListCategoriesByTitle", mock.Anything, created.ID).
		Return([]queries.Category{}, nil)

	resp, err := svc.AddTitle(context.Background(), models.AddTitleRequest{
		ISBN:     "978-0-13-468599-1",
		Title:    "The Go Programming Language",
		Author:   "Donovan and Kernighan",
		Price:    "150000",
		Quantity: 3,
	})
	require.NoError(t, err)
	assert.False(t, resp.Existed)
	assert.Len(t, resp.CreatedCopies, 3)
	mockQuerier.AssertExpectations(t)
}

func TestCatalogService_AddTitle_ExistingISBN(t *testing.T) {
	svc, mockQuerier, mockLedger := newTestCatalogService(t)

	titleID := uuid.New()
	existing := queries.Title{
		ID:      queries.PgUUID(titleID),
		Isbn:    pgtype.Text{String: "9780134685991", Valid: true},
		Title:   "The Go Programming Language",
		Author:  "Donovan and Kernighan",
		CopySeq: pgtype.Int4{Int32: 5, Valid: true},
	}

	mockQuerier.On("GetTitleByISBN", mock.Anything, "9780134685991").Return(existing, nil)
	mockQuerier.On("UpdateTitle", mock.Anything, mock.Anything).Return(existing, nil)
	// The sequence continues past the existing copies.
	mockQuerier.On("ReserveCopyNumbers", mock.Anything, existing.ID, int32(2)).Return(int32(7), nil)
	mockQuerier.On("CreateCopy", mock.Anything, mock.MatchedBy(func(arg queries.CreateCopyParams) bool {
		return arg.CopyNumber == 6 && arg.CopyCode == "9780134685991-0006"
	})).Return(queries.Copy{CopyNumber: 6}, nil)
	mockQuerier.On("CreateCopy", mock.Anything, mock.MatchedBy(func(arg queries.CreateCopyParams) bool {
		return arg.CopyNumber == 7 && arg.CopyCode == "9780134685991-0007"
	})).Return(queries.Copy{CopyNumber: 7}, nil)
	mockLedger.On("Recompute", mock.Anything, titleID).Return(existing, nil)
	mockQuerier.On("ListCategoriesByTitle", mock.Anything, existing.ID).
		Return([]queries.Category{}, nil)

	resp, err := svc.AddTitle(context.Background(), models.AddTitleRequest{
		ISBN:     "9780134685991",
		Quantity: 2,
	})
	require.NoError(t, err)
	assert.True(t, resp.Existed)
	assert.Len(t, resp.CreatedCopies, 2)
}

func TestCatalogService_AddTitle_TooManyCategories(t *testing.T) {
	svc, _, _ := newTestCatalogService(t)

	_, err := svc.AddTitle(context.Background(), models.AddTitleRequest{
		Title:    "A Book",
		Author:   "Someone",
		Quantity: 1,
		Categories: []string{
			uuid.NewString(), uuid.NewString(), uuid.NewString(), uuid.NewString(),
		},
	})
	require.Error(t, err)

	var domainErr *models.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, models.KindValidation, domainErr.Kind)
}

func TestCatalogService_AddTitle_UnknownCategory(t *testing.T) {
	svc, mockQuerier, _ := newTestCatalogService(t)

	mockQuerier.On("CountCategoriesByIDs", mock.Anything, mock.Anything).Return(int64(0), nil)

	_, err := svc.AddTitle(context.Background(), models.AddTitleRequest{
		Title:      "A Book",
		Author:     "Someone",
		Quantity:   1,
		Categories: []string{uuid.NewString()},
	})
	require.Error(t, err)

	var domainErr *models.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, models.KindValidation, domainErr.Kind)
}

func TestCatalogService_SetCopyStatus_BorrowedRejected(t *testing.T) {
	svc, mockQuerier, _ := newTestCatalogService(t)

	copyID := uuid.New()
	mockQuerier.On("GetCopyByID", mock.Anything, queries.PgUUID(copyID)).
		Return(queries.Copy{ID: queries.PgUUID(copyID), Status: queries.CopyStatusBorrowed}, nil)
	// The conditional update refuses borrowed copies.
	mockQuerier.On("SetCopyStatus", mock.Anything, mock.Anything).
		Return(queries.Copy{}, pgx.ErrNoRows)

	_, err := svc.SetCopyStatus(context.Background(), copyID, models.SetCopyStatusRequest{
		Status: models.CopyStatusLost,
	})
	assert.ErrorIs(t, err, models.ErrCopyUnavailable)
}

func TestCatalogService_SetCopyStatus_BorrowedNotSettable(t *testing.T) {
	svc, _, _ := newTestCatalogService(t)

	_, err := svc.SetCopyStatus(context.Background(), uuid.New(), models.SetCopyStatusRequest{
		Status: models.CopyStatusBorrowed,
	})
	require.Error(t, err)

	var domainErr *models.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, models.KindValidation, domainErr.Kind)
}

func TestCatalogService_SoftDelete_BorrowedCopyBlocks(t *testing.T) {
	svc, mockQuerier, mockLedger := newTestCatalogService(t)

	titleID := uuid.New()
	mockQuerier.On("GetTitleByID", mock.Anything, queries.PgUUID(titleID)).
		Return(queries.Title{ID: queries.PgUUID(titleID)}, nil)
	mockLedger.On("Counts", mock.Anything, titleID).
		Return(queries.CopyCounts{Total: 3, Available: 1}, nil)

	_, err := svc.SoftDelete(context.Background(), titleID)
	assert.ErrorIs(t, err, models.ErrCopiesOutstanding)
	mockQuerier.AssertNotCalled(t, "SoftDeleteTitle", mock.Anything, mock.Anything)
}

func TestCatalogService_SoftDelete_ReservedCopyBlocks(t *testing.T) {
	svc, mockQuerier, mockLedger := newTestCatalogService(t)

	// No copy is borrowed, but one sits in reserved or maintenance; every
	// copy has to be back on the shelf before removal.
	titleID := uuid.New()
	mockQuerier.On("GetTitleByID", mock.Anything, queries.PgUUID(titleID)).
		Return(queries.Title{ID: queries.PgUUID(titleID)}, nil)
	mockLedger.On("Counts", mock.Anything, titleID).
		Return(queries.CopyCounts{Total: 2, Available: 1}, nil)

	_, err := svc.SoftDelete(context.Background(), titleID)
	assert.ErrorIs(t, err, models.ErrCopiesOutstanding)
	mockQuerier.AssertNotCalled(t, "SoftDeleteTitle", mock.Anything, mock.Anything)
}

func TestCatalogService_SoftDelete(t *testing.T) {
	svc, mockQuerier, mockLedger := newTestCatalogService(t)

	titleID := uuid.New()
	deleted := queries.Title{
		ID:        queries.PgUUID(titleID),
		IsDeleted: pgtype.Bool{Bool: true, Valid: true},
	}

	mockQuerier.On("GetTitleByID", mock.Anything, queries.PgUUID(titleID)).
		Return(queries.Title{ID: queries.PgUUID(titleID)}, nil)
	mockLedger.On("Counts", mock.Anything, titleID).
		Return(queries.CopyCounts{Total: 2, Available: 2}, nil)
	mockQuerier.On("SoftDeleteTitle", mock.Anything, queries.PgUUID(titleID)).Return(deleted, nil)

	resp, err := svc.SoftDelete(context.Background(), titleID)
	require.NoError(t, err)
	assert.True(t, resp.IsDeleted)
}

func TestCatalogService_GetTitleByISBN(t *testing.T) {
	svc, mockQuerier, _ := newTestCatalogService(t)

	titleID := uuid.New()
	title := queries.Title{
		ID:    queries.PgUUID(titleID),
		Isbn:  pgtype.Text{String: "9780134685991", Valid: true},
		Title: "The Go Programming Language",
	}

	mockQuerier.On("GetTitleByISBN", mock.Anything, "9780134685991").Return(title, nil)
	mockQuerier.On("ListCategoriesByTitle", mock.Anything, title.ID).
		Return([]queries.Category{}, nil)

	// The lookup normalizes before querying.
	resp, err := svc.GetTitleByISBN(context.Background(), "978-0-13-468599-1")
	require.NoError(t, err)
	assert.Equal(t, "The Go Programming Language", resp.Title)
}

func TestCatalogService_GetTitleByISBN_NotFound(t *testing.T) {
	svc, mockQuerier, _ := newTestCatalogService(t)

	mockQuerier.On("GetTitleByISBN", mock.Anything, "9780134685991").
		Return(queries.Title{}, pgx.ErrNoRows)

	_, err := svc.GetTitleByISBN(context.Background(), "9780134685991")
	assert.ErrorIs(t, err, models.ErrTitleNotFound)
}

func TestCatalogService_GetTitleByISBN_DeletedHidden(t *testing.T) {
	svc, mockQuerier, _ := newTestCatalogService(t)

	mockQuerier.On("GetTitleByISBN", mock.Anything, "9780134685991").
		Return(queries.Title{
			ID:        queries.PgUUID(uuid.New()),
			IsDeleted: pgtype.Bool{Bool: true, Valid: true},
		}, nil)

	_, err := svc.GetTitleByISBN(context.Background(), "9780134685991")
	assert.ErrorIs(t, err, models.ErrTitleNotFound)
}

func TestCopyCodePrefix_WithoutISBN(t *testing.T) {
	titleID := uuid.MustParse("0b7088cb-22e1-4a34-a1f5-67a37e7afde8")
	prefix := copyCodePrefix("", queries.PgUUID(titleID))
	assert.Equal(t, "A37E7AFDE8", prefix[len(prefix)-10:])
	assert.Len(t, prefix, 12)
}
