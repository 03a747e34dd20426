package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/GTDGit/fabric_api/internal/models"
	"github.com/GTDGit/fabric_api/internal/utils"
)

const productColumns = `p.id, p.name, p.slug, p.description, p.category_id, p.product_type,
	p.base_price, p.sale_price, p.compare_at_price, p.unit_of_measure, p.minimum_order, p.maximum_order,
	p.images, p.tags, p.specifications, p.total_stock, p.track_inventory, p.allow_backorder,
	p.low_stock_threshold, p.status, p.is_published, p.is_featured, p.average_rating, p.review_count,
	p.deleted_at, p.created_at, p.updated_at`

const variantColumns = `id, product_id, sku, color, color_hex, images, stock, price, is_available, position`

// effectivePriceSQL mirrors Product.UnitPrice without a variant override.
const effectivePriceSQL = `(CASE WHEN p.sale_price IS NOT NULL AND p.sale_price > 0 AND p.sale_price < p.base_price
	THEN p.sale_price ELSE p.base_price END)`

const publicProductSQL = `p.status = 'active' AND p.is_published = TRUE AND p.deleted_at IS NULL`

// ProductRepository handles data access for products and their variants.
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetByID returns a non-deleted product with its variants.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	return r.getOne(ctx, `p.id = $1 AND p.deleted_at IS NULL`, id)
}

// GetBySlug returns a non-deleted product with its variants.
func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (*models.Product, error) {
	return r.getOne(ctx, `p.slug = $1 AND p.deleted_at IS NULL`, slug)
}

func (r *ProductRepository) getOne(ctx context.Context, where string, arg any) (*models.Product, error) {
	var p models.Product
	if err := r.db.GetContext(ctx, &p, `SELECT `+productColumns+` FROM products p WHERE `+where, arg); err != nil {
		return nil, err
	}
	variants, err := selectVariants(ctx, r.db, []string{p.ID})
	if err != nil {
		return nil, err
	}
	p.Variants = variants[p.ID]
	if p.Variants == nil {
		p.Variants = []models.Variant{}
	}
	return &p, nil
}

// List returns products matching filter and the total count before paging.
func (r *ProductRepository) List(ctx context.Context, filter *models.ProductFilter) ([]models.Product, int, error) {
	baseQ := `FROM products p WHERE p.deleted_at IS NULL`
	args := []interface{}{}
	argIdx := 1

	if filter.PublicOnly {
		baseQ += " AND " + publicProductSQL
	}
	if filter.CategoryID != "" {
		baseQ += fmt.Sprintf(" AND p.category_id = $%d", argIdx)
		args = append(args, filter.CategoryID)
		argIdx++
	}
	if filter.ProductType != "" {
		baseQ += fmt.Sprintf(" AND p.product_type = $%d", argIdx)
		args = append(args, filter.ProductType)
		argIdx++
	}
	if filter.Status != "" && !filter.PublicOnly {
		baseQ += fmt.Sprintf(" AND p.status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.Color != "" {
		baseQ += fmt.Sprintf(` AND EXISTS (
			SELECT 1 FROM product_variants v WHERE v.product_id = p.id AND LOWER(v.color) = LOWER($%d))`, argIdx)
		args = append(args, filter.Color)
		argIdx++
	}
	if filter.Search != "" {
		baseQ += fmt.Sprintf(" AND (p.name ILIKE $%d OR p.description ILIKE $%d OR $%d = ANY(p.tags))", argIdx, argIdx, argIdx+1)
		args = append(args, "%"+filter.Search+"%", strings.ToLower(filter.Search))
		argIdx += 2
	}
	if filter.MinPrice != nil {
		baseQ += fmt.Sprintf(" AND %s >= $%d", effectivePriceSQL, argIdx)
		args = append(args, *filter.MinPrice)
		argIdx++
	}
	if filter.MaxPrice != nil {
		baseQ += fmt.Sprintf(" AND %s <= $%d", effectivePriceSQL, argIdx)
		args = append(args, *filter.MaxPrice)
		argIdx++
	}
	if filter.Featured != nil {
		baseQ += fmt.Sprintf(" AND p.is_featured = $%d", argIdx)
		args = append(args, *filter.Featured)
		argIdx++
	}
	if filter.Published != nil && !filter.PublicOnly {
		baseQ += fmt.Sprintf(" AND p.is_published = $%d", argIdx)
		args = append(args, *filter.Published)
		argIdx++
	}
	if filter.LowStock {
		baseQ += " AND p.track_inventory = TRUE AND p.total_stock > 0 AND p.total_stock <= p.low_stock_threshold"
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQ, args...); err != nil {
		return nil, 0, err
	}

	offset := utils.Offset(filter.Page, filter.Limit)
	selectQ := fmt.Sprintf(`SELECT %s %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		productColumns, baseQ, productOrderBy(filter.Sort), argIdx, argIdx+1)
	args = append(args, filter.Limit, offset)

	products := []models.Product{}
	if err := r.db.SelectContext(ctx, &products, selectQ, args...); err != nil {
		return nil, 0, err
	}
	if err := r.attachVariants(ctx, products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func productOrderBy(sort string) string {
	switch sort {
	case "oldest":
		return "p.created_at ASC"
	case "price_asc":
		return effectivePriceSQL + " ASC, p.created_at DESC"
	case "price_desc":
		return effectivePriceSQL + " DESC, p.created_at DESC"
	case "name":
		return "p.name ASC"
	case "rating":
		return "p.average_rating DESC, p.review_count DESC"
	case "popular":
		return "p.review_count DESC, p.average_rating DESC"
	default:
		return "p.created_at DESC"
	}
}

func (r *ProductRepository) attachVariants(ctx context.Context, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]string, len(products))
	for i := range products {
		ids[i] = products[i].ID
	}
	byProduct, err := selectVariants(ctx, r.db, ids)
	if err != nil {
		return err
	}
	for i := range products {
		products[i].Variants = byProduct[products[i].ID]
		if products[i].Variants == nil {
			products[i].Variants = []models.Variant{}
		}
	}
	return nil
}

func selectVariants(ctx context.Context, q sqlx.QueryerContext, productIDs []string) (map[string][]models.Variant, error) {
	var variants []models.Variant
	err := sqlx.SelectContext(ctx, q, &variants, `
		SELECT `+variantColumns+` FROM product_variants
		WHERE product_id = ANY($1)
		ORDER BY product_id, position`, pq.Array(productIDs))
	if err != nil {
		return nil, err
	}
	out := make(map[string][]models.Variant, len(productIDs))
	for _, v := range variants {
		out[v.ProductID] = append(out[v.ProductID], v)
	}
	return out, nil
}

// Create inserts a product and its variants atomically.
func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const q = `
			INSERT INTO products (
				id, name, slug, description, category_id, product_type, base_price, sale_price,
				compare_at_price, unit_of_measure, minimum_order, maximum_order, images, tags,
				specifications, total_stock, track_inventory, allow_backorder, low_stock_threshold,
				status, is_published, is_featured
			) VALUES (
				:id, :name, :slug, :description, :category_id, :product_type, :base_price, :sale_price,
				:compare_at_price, :unit_of_measure, :minimum_order, :maximum_order, :images, :tags,
				:specifications, :total_stock, :track_inventory, :allow_backorder, :low_stock_threshold,
				:status, :is_published, :is_featured
			) RETURNING created_at, updated_at`
		rows, err := sqlx.NamedQueryContext(ctx, tx, q, p)
		if err != nil {
			return err
		}
		if rows.Next() {
			err = rows.Scan(&p.CreatedAt, &p.UpdatedAt)
		} else {
			err = rows.Err()
		}
		rows.Close()
		if err != nil {
			return err
		}
		return insertVariants(ctx, tx, p)
	})
}

// Update rewrites a product and replaces its variant set atomically.
func (r *ProductRepository) Update(ctx context.Context, p *models.Product) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const q = `
			UPDATE products SET
				name = :name, slug = :slug, description = :description, category_id = :category_id,
				product_type = :product_type, base_price = :base_price, sale_price = :sale_price,
				compare_at_price = :compare_at_price, unit_of_measure = :unit_of_measure,
				minimum_order = :minimum_order, maximum_order = :maximum_order, images = :images,
				tags = :tags, specifications = :specifications, total_stock = :total_stock,
				track_inventory = :track_inventory, allow_backorder = :allow_backorder,
				low_stock_threshold = :low_stock_threshold, status = :status,
				is_published = :is_published, is_featured = :is_featured, updated_at = NOW()
			WHERE id = :id AND deleted_at IS NULL`
		res, err := tx.NamedExecContext(ctx, q, p)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return sql.ErrNoRows
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM product_variants WHERE product_id = $1`, p.ID); err != nil {
			return err
		}
		return insertVariants(ctx, tx, p)
	})
}

func insertVariants(ctx context.Context, tx *sqlx.Tx, p *models.Product) error {
	const q = `
		INSERT INTO product_variants (id, product_id, sku, color, color_hex, images, stock, price, is_available, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	stmt, err := tx.PreparexContext(ctx, q)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range p.Variants {
		v := &p.Variants[i]
		v.ProductID = p.ID
		v.Position = i
		if v.Images == nil {
			v.Images = pq.StringArray{}
		}
		if _, err := stmt.ExecContext(ctx, v.ID, v.ProductID, v.SKU, v.Color, v.ColorHex, v.Images,
			v.Stock, v.Price, v.IsAvailable, v.Position); err != nil {
			return err
		}
	}
	return nil
}

// SoftDelete marks the product deleted and unpublishes it.
func (r *ProductRepository) SoftDelete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products SET deleted_at = NOW(), is_published = FALSE, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// BulkPublish sets is_published on the given products and returns the number changed.
func (r *ProductRepository) BulkPublish(ctx context.Context, ids []string, published bool) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products SET is_published = $2, updated_at = NOW()
		WHERE id = ANY($1) AND deleted_at IS NULL`, pq.Array(ids), published)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// BulkStatus sets status on the given products and returns the number changed.
func (r *ProductRepository) BulkStatus(ctx context.Context, ids []string, status models.ProductStatus) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products SET status = $2, updated_at = NOW()
		WHERE id = ANY($1) AND deleted_at IS NULL`, pq.Array(ids), status)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FilterOptions collects storefront facets with one query per facet.
func (r *ProductRepository) FilterOptions(ctx context.Context) (*models.FilterOptions, error) {
	opts := &models.FilterOptions{
		Colors:       []models.ColorOption{},
		ProductTypes: []string{},
		Categories:   []models.Category{},
	}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.db.SelectContext(gctx, &opts.Colors, `
			SELECT MIN(v.color) AS color, MIN(v.color_hex) AS color_hex, COUNT(DISTINCT p.id) AS count
			FROM product_variants v JOIN products p ON p.id = v.product_id
			WHERE `+publicProductSQL+`
			GROUP BY LOWER(v.color)
			ORDER BY count DESC, color`)
	})
	g.Go(func() error {
		return r.db.SelectContext(gctx, &opts.ProductTypes, `
			SELECT DISTINCT p.product_type FROM products p
			WHERE `+publicProductSQL+` ORDER BY p.product_type`)
	})
	g.Go(func() error {
		row := r.db.QueryRowxContext(gctx, `
			SELECT COALESCE(MIN(`+effectivePriceSQL+`), 0), COALESCE(MAX(`+effectivePriceSQL+`), 0)
			FROM products p WHERE `+publicProductSQL)
		return row.Scan(&opts.MinPrice, &opts.MaxPrice)
	})
	g.Go(func() error {
		return r.db.SelectContext(gctx, &opts.Categories, `
			SELECT `+categoryColumns+` FROM categories c
			WHERE c.is_active = TRUE AND EXISTS (
				SELECT 1 FROM products p WHERE p.category_id = c.id AND `+publicProductSQL+`)
			ORDER BY c.sort_order, c.name`)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return opts, nil
}
