package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/fabric_api/internal/models"
)

// WishlistRepository handles data access for wishlists.
type WishlistRepository struct {
	db *sqlx.DB
}

// NewWishlistRepository creates a new WishlistRepository.
func NewWishlistRepository(db *sqlx.DB) *WishlistRepository {
	return &WishlistRepository{db: db}
}

// Get returns the user's wishlist with product details. A user without a
// wishlist row gets an empty one.
func (r *WishlistRepository) Get(ctx context.Context, userID string) (*models.Wishlist, error) {
	w := &models.Wishlist{UserID: userID, Items: []models.WishlistItem{}}
	err := r.db.GetContext(ctx, w, `SELECT id, user_id, created_at, updated_at FROM wishlists WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return w, nil
	}
	if err != nil {
		return nil, err
	}

	err = r.db.SelectContext(ctx, &w.Items, `
		SELECT i.product_id, i.added_at, p.name, p.slug,
			NULLIF(p.images[1], '') AS image, p.base_price, p.status,
			(p.status = 'active' AND p.is_published = TRUE AND p.deleted_at IS NULL) AS is_available
		FROM wishlist_items i JOIN products p ON p.id = i.product_id
		WHERE i.wishlist_id = $1
		ORDER BY i.added_at DESC`, w.ID)
	return w, err
}

// AddItem creates the wishlist on first use and adds the product. It reports
// false when the product was already present.
func (r *WishlistRepository) AddItem(ctx context.Context, userID, productID string) (bool, error) {
	var added bool
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var wishlistID string
		if err := tx.GetContext(ctx, &wishlistID, `
			INSERT INTO wishlists (id, user_id) VALUES ($1, $2)
			ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
			RETURNING id`, uuid.NewString(), userID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO wishlist_items (wishlist_id, product_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, wishlistID, productID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		added = n > 0
		return err
	})
	return added, err
}

func (r *WishlistRepository) RemoveItem(ctx context.Context, userID, productID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM wishlist_items i USING wishlists w
		WHERE i.wishlist_id = w.id AND w.user_id = $1 AND i.product_id = $2`, userID, productID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *WishlistRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM wishlist_items i USING wishlists w
		WHERE i.wishlist_id = w.id AND w.user_id = $1`, userID)
	return err
}

func (r *WishlistRepository) Contains(ctx context.Context, userID, productID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM wishlist_items i JOIN wishlists w ON w.id = i.wishlist_id
			WHERE w.user_id = $1 AND i.product_id = $2
		)`, userID, productID)
	return exists, err
}
