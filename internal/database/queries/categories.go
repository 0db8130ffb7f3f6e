package queries

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type CreateCategoryParams struct {
	Name        string
	Description pgtype.Text
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	var c Category
	err := q.db.QueryRow(ctx, `
		INSERT INTO categories (name, description)
		VALUES ($1, $2)
		RETURNING id, name, description, created_at`,
		arg.Name, arg.Description).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	return c, err
}

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, name, description, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (q *Queries) CountCategoriesByIDs(ctx context.Context, ids []pgtype.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `
		SELECT count(*) FROM categories WHERE id = ANY($1)`, ids).Scan(&n)
	return n, err
}

type SetTitleCategoriesParams struct {
	TitleID     pgtype.UUID
	CategoryIDs []pgtype.UUID
}

func (q *Queries) SetTitleCategories(ctx context.Context, arg SetTitleCategoriesParams) error {
	if _, err := q.db.Exec(ctx, `
		DELETE FROM title_categories WHERE title_id = $1`, arg.TitleID); err != nil {
		return err
	}
	for _, id := range arg.CategoryIDs {
		if _, err := q.db.Exec(ctx, `
			INSERT INTO title_categories (title_id, category_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING`, arg.TitleID, id); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queries) ListCategoriesByTitle(ctx context.Context, titleID pgtype.UUID) ([]Category, error) {
	rows, err := q.db.Query(ctx, `
		SELECT c.id, c.name, c.description, c.created_at
		FROM categories c
		JOIN title_categories tc ON tc.category_id = c.id
		WHERE tc.title_id = $1
		ORDER BY c.name`, titleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
