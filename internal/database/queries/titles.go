package queries

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const titleColumns = `id, isbn, title, author, description, price,
	available_count, total_copies, is_available, copy_seq,
	is_deleted, deleted_at, created_at, updated_at`

func scanTitle(row pgx.Row) (Title, error) {
	var t Title
	err := row.Scan(
		&t.ID, &t.Isbn, &t.Title, &t.Author, &t.Description, &t.Price,
		&t.AvailableCount, &t.TotalCopies, &t.IsAvailable, &t.CopySeq,
		&t.IsDeleted, &t.DeletedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

type CreateTitleParams struct {
	Isbn        pgtype.Text
	Title       string
	Author      string
	Description pgtype.Text
	Price       pgtype.Numeric
}

func (q *Queries) CreateTitle(ctx context.Context, arg CreateTitleParams) (Title, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO titles (isbn, title, author, description, price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+titleColumns,
		arg.Isbn, arg.Title, arg.Author, arg.Description, arg.Price)
	return scanTitle(row)
}

func (q *Queries) GetTitleByID(ctx context.Context, id pgtype.UUID) (Title, error) {
	row := q.db.QueryRow(ctx, `SELECT `+titleColumns+` FROM titles WHERE id = $1`, id)
	return scanTitle(row)
}

func (q *Queries) GetTitleByISBN(ctx context.Context, isbn string) (Title, error) {
	row := q.db.QueryRow(ctx, `SELECT `+titleColumns+` FROM titles WHERE isbn = $1`, isbn)
	return scanTitle(row)
}

type UpdateTitleParams struct {
	ID          pgtype.UUID
	Title       string
	Author      string
	Description pgtype.Text
	Price       pgtype.Numeric
}

func (q *Queries) UpdateTitle(ctx context.Context, arg UpdateTitleParams) (Title, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE titles
		SET title = $2, author = $3, description = $4, price = $5,
		    is_deleted = false, deleted_at = NULL, updated_at = now()
		WHERE id = $1
		RETURNING `+titleColumns,
		arg.ID, arg.Title, arg.Author, arg.Description, arg.Price)
	return scanTitle(row)
}

// RecomputeTitleCounts derives available_count/total_copies/is_available
// from the copy set in a single statement. Lost and damaged copies are
// retired and excluded from the total.
func (q *Queries) RecomputeTitleCounts(ctx context.Context, id pgtype.UUID) (Title, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE titles
		SET available_count = c.avail,
		    total_copies    = c.total,
		    is_available    = c.avail > 0,
		    updated_at      = now()
		FROM (
			SELECT count(*) FILTER (WHERE status = 'available')              AS avail,
			       count(*) FILTER (WHERE status NOT IN ('lost','damaged')) AS total
			FROM copies
			WHERE title_id = $1
		) AS c
		WHERE id = $1
		RETURNING `+titleColumns, id)
	return scanTitle(row)
}

type CopyCounts struct {
	Total     int64
	Available int64
}

func (q *Queries) CountTitleCopies(ctx context.Context, id pgtype.UUID) (CopyCounts, error) {
	var c CopyCounts
	err := q.db.QueryRow(ctx, `
		SELECT count(*) FILTER (WHERE status NOT IN ('lost','damaged')),
		       count(*) FILTER (WHERE status = 'available')
		FROM copies WHERE title_id = $1`, id).Scan(&c.Total, &c.Available)
	return c, err
}

// ReserveCopyNumbers atomically advances the title's copy sequence by n and
// returns the last reserved number. The block [last-n+1, last] belongs to
// the caller.
func (q *Queries) ReserveCopyNumbers(ctx context.Context, id pgtype.UUID, n int32) (int32, error) {
	var last int32
	err := q.db.QueryRow(ctx, `
		UPDATE titles SET copy_seq = copy_seq + $2, updated_at = now()
		WHERE id = $1
		RETURNING copy_seq`, id, n).Scan(&last)
	return last, err
}

func (q *Queries) SoftDeleteTitle(ctx context.Context, id pgtype.UUID) (Title, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE titles SET is_deleted = true, deleted_at = now(), updated_at = now()
		WHERE id = $1
		RETURNING `+titleColumns, id)
	return scanTitle(row)
}

func (q *Queries) RestoreTitle(ctx context.Context, id pgtype.UUID) (Title, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE titles SET is_deleted = false, deleted_at = NULL, updated_at = now()
		WHERE id = $1
		RETURNING `+titleColumns, id)
	return scanTitle(row)
}

type ListTitlesParams struct {
	Search        string
	FilterAvail   bool
	Available     bool
	CategoryID    pgtype.UUID
	DeletedFilter string // "active", "deleted" or "all"
	Limit         int32
	Offset        int32
}

const listTitlesFilter = `
	WHERE ($1 = '' OR title ILIKE '%' || $1 || '%'
	       OR author ILIKE '%' || $1 || '%'
	       OR isbn ILIKE '%' || $1 || '%')
	AND (NOT $2::bool OR is_available = $3)
	AND (CASE $4
	     WHEN 'active'  THEN NOT is_deleted
	     WHEN 'deleted' THEN is_deleted
	     ELSE true END)
	AND ($5::uuid IS NULL
	     OR id IN (SELECT title_id FROM title_categories WHERE category_id = $5))`

func (q *Queries) ListTitles(ctx context.Context, arg ListTitlesParams) ([]Title, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+titleColumns+` FROM titles`+listTitlesFilter+`
		ORDER BY created_at DESC
		LIMIT $6 OFFSET $7`,
		arg.Search, arg.FilterAvail, arg.Available, arg.DeletedFilter,
		arg.CategoryID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var titles []Title
	for rows.Next() {
		t, err := scanTitle(rows)
		if err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}

func (q *Queries) CountTitles(ctx context.Context, arg ListTitlesParams) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, `
		SELECT count(*) FROM titles`+listTitlesFilter,
		arg.Search, arg.FilterAvail, arg.Available, arg.DeletedFilter,
		arg.CategoryID).Scan(&total)
	return total, err
}
