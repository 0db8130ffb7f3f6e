package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/ngvinh/circulib/internal/database/queries"
	"github.com/ngvinh/circulib/internal/models"
)

// CatalogQuerier is the catalog's slice of the query layer.
type CatalogQuerier interface {
	CreateTitle(ctx context.Context, arg queries.CreateTitleParams) (queries.Title, error)
	GetTitleByID(ctx context.Context, id pgtype.UUID) (queries.Title, error)
	GetTitleByISBN(ctx context.Context, isbn string) (queries.Title, error)
	UpdateTitle(ctx context.Context, arg queries.UpdateTitleParams) (queries.Title, error)
	ReserveCopyNumbers(ctx context.Context, id pgtype.UUID, n int32) (int32, error)
	SoftDeleteTitle(ctx context.Context, id pgtype.UUID) (queries.Title, error)
	RestoreTitle(ctx context.Context, id pgtype.UUID) (queries.Title, error)
	ListTitles(ctx context.Context, arg queries.ListTitlesParams) ([]queries.Title, error)
	CountTitles(ctx context.Context, arg queries.ListTitlesParams) (int64, error)
	CreateCopy(ctx context.Context, arg queries.CreateCopyParams) (queries.Copy, error)
	GetCopyByID(ctx context.Context, id pgtype.UUID) (queries.Copy, error)
	ListCopiesByTitle(ctx context.Context, titleID pgtype.UUID) ([]queries.Copy, error)
	ListAvailableCopiesByTitle(ctx context.Context, titleID pgtype.UUID) ([]queries.Copy, error)
	SetCopyStatus(ctx context.Context, arg queries.SetCopyStatusParams) (queries.Copy, error)
	CreateCategory(ctx context.Context, arg queries.CreateCategoryParams) (queries.Category, error)
	ListCategories(ctx context.Context) ([]queries.Category, error)
	CountCategoriesByIDs(ctx context.Context, ids []pgtype.UUID) (int64, error)
	SetTitleCategories(ctx context.Context, arg queries.SetTitleCategoriesParams) error
	ListCategoriesByTitle(ctx context.Context, titleID pgtype.UUID) ([]queries.Category, error)
}

const maxCategoriesPerTitle = 3

// CatalogService manages titles, their physical copies and category tags.
type CatalogService struct {
	q      CatalogQuerier
	ledger inventoryLedger
	logger *slog.Logger
}

func NewCatalogService(q CatalogQuerier, ledger inventoryLedger, logger *slog.Logger) *CatalogService {
	return &CatalogService{q: q, ledger: ledger, logger: logger}
}

// AddTitle creates a title with its initial copies, or tops up an existing
// one matched by ISBN. Matching refreshes the descriptive fields and
// un-deletes a soft-deleted title.
func (s *CatalogService) AddTitle(ctx context.Context, req models.AddTitleRequest) (*models.AddTitleResponse, error) {
	isbn := NormalizeISBN(req.ISBN)
	if req.ISBN != "" && isbn == "" {
		return nil, models.Validation("isbn contains no usable characters")
	}
	if req.Quantity < 1 {
		return nil, models.Validation("quantity must be at least 1")
	}

	price := decimal.Zero
	if req.Price != "" {
		var err error
		price, err = decimal.NewFromString(req.Price)
		if err != nil || price.IsNegative() {
			return nil, models.Validation("price must be a non-negative decimal")
		}
	}

	categoryIDs, err := s.resolveCategories(ctx, req.Categories)
	if err != nil {
		return nil, err
	}

	var title queries.Title
	existed := false

	if isbn != "" {
		title, err = s.q.GetTitleByISBN(ctx, isbn)
		switch {
		case err == nil:
			existed = true
			if req.Title == "" {
				req.Title = title.Title
			}
			if req.Author == "" {
				req.Author = title.Author
			}
			title, err = s.q.UpdateTitle(ctx, queries.UpdateTitleParams{
				ID:          title.ID,
				Title:       req.Title,
				Author:      req.Author,
				Description: pgText(req.Description),
				Price:       queries.NumericFromDecimal(price),
			})
			if err != nil {
				return nil, fmt.Errorf("failed to refresh title: %w", err)
			}
		case errors.Is(err, pgx.ErrNoRows):
			title, err = s.createTitle(ctx, isbn, req, price)
			if err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("failed to look up title by isbn: %w", err)
		}
	} else {
		if title, err = s.createTitle(ctx, isbn, req, price); err != nil {
			return nil, err
		}
	}

	if len(categoryIDs) > 0 {
		if err := s.q.SetTitleCategories(ctx, queries.SetTitleCategoriesParams{
			TitleID:     title.ID,
			CategoryIDs: categoryIDs,
		}); err != nil {
			return nil, fmt.Errorf("failed to set title categories: %w", err)
		}
	}

	created, err := s.mintCopies(ctx, title, int32(req.Quantity), isbn)
	if err != nil {
		return nil, err
	}

	refreshed, err := s.ledger.Recompute(ctx, uuid.UUID(title.ID.Bytes))
	if err != nil {
		return nil, err
	}

	resp := &models.AddTitleResponse{
		Title:         refreshed.ToResponse(),
		CreatedCopies: copyResponses(created),
		Existed:       existed,
	}
	s.attachCategories(ctx, &resp.Title, refreshed.ID)
	return resp, nil
}

func (s *CatalogService) createTitle(ctx context.Context, isbn string, req models.AddTitleRequest, price decimal.Decimal) (queries.Title, error) {
	if req.Title == "" || req.Author == "" {
		return queries.Title{}, models.Validation("title and author are required for a new title")
	}
	title, err := s.q.CreateTitle(ctx, queries.CreateTitleParams{
		Isbn:        pgText(isbn),
		Title:       req.Title,
		Author:      req.Author,
		Description: pgText(req.Description),
		Price:       queries.NumericFromDecimal(price),
	})
	if err != nil {
		return queries.Title{}, fmt.Errorf("failed to create title: %w", err)
	}
	return title, nil
}

// mintCopies reserves a block of copy numbers on the title sequence and
// inserts one copy per number. The sequence never reuses numbers, so codes
// stay unique even across deleted copies.
func (s *CatalogService) mintCopies(ctx context.Context, title queries.Title, n int32, isbn string) ([]queries.Copy, error) {
	last, err := s.q.ReserveCopyNumbers(ctx, title.ID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve copy numbers: %w", err)
	}

	prefix := copyCodePrefix(isbn, title.ID)
	copies := make([]queries.Copy, 0, n)
	for num := last - n + 1; num <= last; num++ {
		c, err := s.q.CreateCopy(ctx, queries.CreateCopyParams{
			TitleID:    title.ID,
			CopyNumber: num,
			CopyCode:   fmt.Sprintf("%s-%04d", prefix, num),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create copy %d: %w", num, err)
		}
		copies = append(copies, c)
	}
	return copies, nil
}

// GetTitle returns one title with its categories.
func (s *CatalogService) GetTitle(ctx context.Context, titleID uuid.UUID) (*models.TitleResponse, error) {
	title, err := s.q.GetTitleByID(ctx, queries.PgUUID(titleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrTitleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get title: %w", err)
	}

	resp := title.ToResponse()
	s.attachCategories(ctx, &resp, title.ID)
	return &resp, nil
}

// GetTitleByISBN looks a title up by its normalized ISBN. Soft-deleted
// titles are not visible here; only the AddTitle upsert sees those.
func (s *CatalogService) GetTitleByISBN(ctx context.Context, rawISBN string) (*models.TitleResponse, error) {
	isbn := NormalizeISBN(rawISBN)
	if isbn == "" {
		return nil, models.Validation("isbn is required")
	}

	title, err := s.q.GetTitleByISBN(ctx, isbn)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrTitleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get title by isbn: %w", err)
	}
	if title.IsDeleted.Valid && title.IsDeleted.Bool {
		return nil, models.ErrTitleNotFound
	}

	resp := title.ToResponse()
	s.attachCategories(ctx, &resp, title.ID)
	return &resp, nil
}

// ListTitles searches the catalog. Non-admin callers only ever see active
// titles; the handler layer pins Deleted for them.
func (s *CatalogService) ListTitles(ctx context.Context, req models.ListTitlesRequest) (*models.TitleListResponse, error) {
	params := queries.ListTitlesParams{
		Search:        strings.TrimSpace(req.Search),
		DeletedFilter: req.Deleted,
		Limit:         int32(req.Limit),
		Offset:        int32((req.Page - 1) * req.Limit),
	}
	if params.DeletedFilter == "" {
		params.DeletedFilter = "active"
	}

	switch req.Availability {
	case "":
	case "true":
		params.FilterAvail, params.Available = true, true
	case "false":
		params.FilterAvail, params.Available = true, false
	default:
		return nil, models.Validation("availability must be true or false")
	}

	if req.CategoryID != "" {
		id, err := uuid.Parse(req.CategoryID)
		if err != nil {
			return nil, models.Validation("invalid category id")
		}
		params.CategoryID = queries.PgUUID(id)
	}

	titles, err := s.q.ListTitles(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list titles: %w", err)
	}
	total, err := s.q.CountTitles(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to count titles: %w", err)
	}

	resp := &models.TitleListResponse{
		Titles: make([]models.TitleResponse, len(titles)),
		Pagination: models.Pagination{
			Page:  req.Page,
			Limit: req.Limit,
			Total: total,
		},
	}
	resp.Pagination.TotalPages = int(total) / req.Limit
	if int(total)%req.Limit != 0 {
		resp.Pagination.TotalPages++
	}
	for i := range titles {
		resp.Titles[i] = titles[i].ToResponse()
	}
	return resp, nil
}

// ListCopies returns a title's copies, optionally only the available ones.
func (s *CatalogService) ListCopies(ctx context.Context, titleID uuid.UUID, availableOnly bool) ([]models.CopyResponse, error) {
	if _, err := s.q.GetTitleByID(ctx, queries.PgUUID(titleID)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrTitleNotFound
		}
		return nil, fmt.Errorf("failed to get title: %w", err)
	}

	var (
		copies []queries.Copy
		err    error
	)
	if availableOnly {
		copies, err = s.q.ListAvailableCopiesByTitle(ctx, queries.PgUUID(titleID))
	} else {
		copies, err = s.q.ListCopiesByTitle(ctx, queries.PgUUID(titleID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list copies: %w", err)
	}
	return copyResponses(copies), nil
}

// SetCopyStatus applies an operator status change. Borrowed copies are owned
// by the loan lifecycle and cannot be touched here.
func (s *CatalogService) SetCopyStatus(ctx context.Context, copyID uuid.UUID, req models.SetCopyStatusRequest) (*models.CopyResponse, error) {
	if !models.AdminCopyStatuses[req.Status] {
		return nil, models.Validation("status %q cannot be set directly", req.Status)
	}

	current, err := s.q.GetCopyByID(ctx, queries.PgUUID(copyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrCopyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get copy: %w", err)
	}

	notes := pgtype.Text{}
	if req.Notes != nil {
		notes = pgtype.Text{String: *req.Notes, Valid: true}
	}

	updated, err := s.q.SetCopyStatus(ctx, queries.SetCopyStatusParams{
		ID:     current.ID,
		Status: string(req.Status),
		Notes:  notes,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrCopyUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set copy status: %w", err)
	}

	if _, err := s.ledger.Recompute(ctx, uuid.UUID(updated.TitleID.Bytes)); err != nil {
		s.logger.Warn("failed to recompute title counts after copy status change",
			"title_id", queries.UUIDString(updated.TitleID), "error", err)
	}

	resp := updated.ToResponse()
	return &resp, nil
}

// SoftDelete hides a title from the catalog. Removal requires every copy
// to be back on the shelf: borrowed, reserved or in-repair copies all
// block it, not just open loans.
func (s *CatalogService) SoftDelete(ctx context.Context, titleID uuid.UUID) (*models.TitleResponse, error) {
	id := queries.PgUUID(titleID)

	if _, err := s.q.GetTitleByID(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrTitleNotFound
		}
		return nil, fmt.Errorf("failed to get title: %w", err)
	}

	counts, err := s.ledger.Counts(ctx, titleID)
	if err != nil {
		return nil, err
	}
	if counts.Available != counts.Total {
		return nil, models.ErrCopiesOutstanding
	}

	deleted, err := s.q.SoftDeleteTitle(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to soft delete title: %w", err)
	}

	resp := deleted.ToResponse()
	return &resp, nil
}

// Restore brings a soft-deleted title back into the catalog.
func (s *CatalogService) Restore(ctx context.Context, titleID uuid.UUID) (*models.TitleResponse, error) {
	restored, err := s.q.RestoreTitle(ctx, queries.PgUUID(titleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrTitleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to restore title: %w", err)
	}

	resp := restored.ToResponse()
	return &resp, nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, req models.CreateCategoryRequest) (*models.CategoryResponse, error) {
	category, err := s.q.CreateCategory(ctx, queries.CreateCategoryParams{
		Name:        strings.TrimSpace(req.Name),
		Description: pgText(req.Description),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	resp := category.ToResponse()
	return &resp, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]models.CategoryResponse, error) {
	categories, err := s.q.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	responses := make([]models.CategoryResponse, len(categories))
	for i := range categories {
		responses[i] = categories[i].ToResponse()
	}
	return responses, nil
}

// resolveCategories parses and validates the tag list: at most three, all
// existing.
func (s *CatalogService) resolveCategories(ctx context.Context, raw []string) ([]pgtype.UUID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if len(raw) > maxCategoriesPerTitle {
		return nil, models.Validation("a title can carry at most %d categories", maxCategoriesPerTitle)
	}

	ids := make([]pgtype.UUID, 0, len(raw))
	seen := make(map[uuid.UUID]bool, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, models.Validation("invalid category id %q", r)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, queries.PgUUID(id))
	}

	count, err := s.q.CountCategoriesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to validate categories: %w", err)
	}
	if count != int64(len(ids)) {
		return nil, models.Validation("one or more categories do not exist")
	}
	return ids, nil
}

func (s *CatalogService) attachCategories(ctx context.Context, resp *models.TitleResponse, titleID pgtype.UUID) {
	categories, err := s.q.ListCategoriesByTitle(ctx, titleID)
	if err != nil {
		s.logger.Warn("failed to list title categories", "title_id", resp.ID, "error", err)
		return
	}
	for i := range categories {
		resp.Categories = append(resp.Categories, categories[i].ToResponse())
	}
}

// NormalizeISBN strips separators and uppercases; "978-0-13-468599-1"
// becomes "9780134685991".
func NormalizeISBN(isbn string) string {
	var b strings.Builder
	for _, r := range isbn {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - ('a' - 'A'))
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// copyCodePrefix is the stable per-title part of a copy code: the normalized
// ISBN, or for ISBN-less titles the tail of the title's uuid.
func copyCodePrefix(isbn string, titleID pgtype.UUID) string {
	if isbn != "" {
		return isbn
	}
	compact := strings.ToUpper(strings.ReplaceAll(uuid.UUID(titleID.Bytes).String(), "-", ""))
	return compact[len(compact)-12:]
}

func copyResponses(copies []queries.Copy) []models.CopyResponse {
	responses := make([]models.CopyResponse, len(copies))
	for i := range copies {
		responses[i] = copies[i].ToResponse()
	}
	return responses
}

func pgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
