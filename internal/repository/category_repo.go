package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/fabric_api/internal/models"
)

const categoryColumns = `id, name, slug, description, parent_id, image, is_active, sort_order, created_at, updated_at`

// CategoryRepository handles data access for categories.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository creates a new CategoryRepository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// List returns categories ordered for display. activeOnly hides inactive ones.
func (r *CategoryRepository) List(ctx context.Context, activeOnly bool) ([]models.Category, error) {
	var list []models.Category
	err := r.db.SelectContext(ctx, &list, `
		SELECT `+categoryColumns+` FROM categories
		WHERE ($1 = FALSE OR is_active = TRUE)
		ORDER BY sort_order, name`, activeOnly)
	return list, err
}

func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	var c models.Category
	if err := r.db.GetContext(ctx, &c, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CategoryRepository) GetBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var c models.Category
	if err := r.db.GetContext(ctx, &c, `SELECT `+categoryColumns+` FROM categories WHERE slug = $1`, slug); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CategoryRepository) Create(ctx context.Context, c *models.Category) error {
	const q = `
		INSERT INTO categories (id, name, slug, description, parent_id, image, is_active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`
	return r.db.QueryRowxContext(ctx, q,
		c.ID, c.Name, c.Slug, c.Description, c.ParentID, c.Image, c.IsActive, c.SortOrder,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *CategoryRepository) Update(ctx context.Context, c *models.Category) error {
	const q = `
		UPDATE categories SET
			name = $2, slug = $3, description = $4, parent_id = $5,
			image = $6, is_active = $7, sort_order = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	return r.db.QueryRowxContext(ctx, q,
		c.ID, c.Name, c.Slug, c.Description, c.ParentID, c.Image, c.IsActive, c.SortOrder,
	).Scan(&c.UpdatedAt)
}

// CountDependents returns how many child categories and non-deleted products
// reference the category.
func (r *CategoryRepository) CountDependents(ctx context.Context, id string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT
			(SELECT COUNT(1) FROM categories WHERE parent_id = $1) +
			(SELECT COUNT(1) FROM products WHERE category_id = $1 AND deleted_at IS NULL)`, id)
	return n, err
}

func (r *CategoryRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
