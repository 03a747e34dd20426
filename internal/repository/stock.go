package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/GTDGit/fabric_api/internal/models"
)

// ErrInsufficientStock is returned when a conditional stock decrement matches no row.
var ErrInsufficientStock = errors.New("insufficient stock")

// reserveStock decrements variant stock for every reservation, recording in
// Reserved how many units each one took, and recomputes the derived totals of
// the touched products. Products are locked in id order so concurrent
// placements cannot deadlock.
func reserveStock(ctx context.Context, tx *sqlx.Tx, reservations []models.StockReservation) ([]models.Product, error) {
	return adjustStock(ctx, tx, reservations, -1)
}

// restoreStock returns the units each reservation took back to its variant.
// Variants removed since the reservation are skipped.
func restoreStock(ctx context.Context, tx *sqlx.Tx, reservations []models.StockReservation) ([]models.Product, error) {
	return adjustStock(ctx, tx, reservations, 1)
}

func adjustStock(ctx context.Context, tx *sqlx.Tx, reservations []models.StockReservation, sign int) ([]models.Product, error) {
	if len(reservations) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	var ids []string
	for _, res := range reservations {
		if !seen[res.ProductID] {
			seen[res.ProductID] = true
			ids = append(ids, res.ProductID)
		}
	}
	sort.Strings(ids)

	var products []models.Product
	if err := tx.SelectContext(ctx, &products, `
		SELECT `+productColumns+` FROM products p
		WHERE p.id = ANY($1)
		ORDER BY p.id
		FOR UPDATE`, pq.Array(ids)); err != nil {
		return nil, err
	}

	byID := make(map[string]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	order := make([]int, len(reservations))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return reservations[order[a]].VariantID < reservations[order[b]].VariantID
	})

	for _, idx := range order {
		res := &reservations[idx]
		p, ok := byID[res.ProductID]
		if !ok {
			if sign < 0 {
				return nil, fmt.Errorf("product %s: %w", res.ProductID, ErrInsufficientStock)
			}
			continue
		}
		if sign < 0 {
			if err := takeStock(ctx, tx, p, res); err != nil {
				return nil, err
			}
			continue
		}
		if res.Reserved <= 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE product_variants SET stock = stock + $3
			WHERE id = $1 AND product_id = $2`,
			res.VariantID, res.ProductID, res.Reserved); err != nil {
			return nil, err
		}
	}

	variants, err := selectVariants(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	for i := range products {
		p := &products[i]
		p.Variants = variants[p.ID]
		p.RecomputeTotalStock()
		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET total_stock = $2, status = $3, updated_at = NOW()
			WHERE id = $1`, p.ID, p.TotalStock, p.Status); err != nil {
			return nil, err
		}
	}
	return products, nil
}

// takeStock reserves one line against its variant row. Untracked inventory
// is never reserved, so Reserved stays zero and nothing is restored later.
func takeStock(ctx context.Context, tx *sqlx.Tx, p *models.Product, res *models.StockReservation) error {
	res.Reserved = 0
	if !p.TrackInventory {
		return nil
	}

	var stock int
	err := tx.GetContext(ctx, &stock, `
		SELECT stock FROM product_variants
		WHERE id = $1 AND product_id = $2
		FOR UPDATE`, res.VariantID, res.ProductID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("variant %s: %w", res.VariantID, ErrInsufficientStock)
	}
	if err != nil {
		return err
	}
	if stock < res.Quantity && !(res.AllowBackorder || p.AllowBackorder) {
		return fmt.Errorf("variant %s: %w", res.VariantID, ErrInsufficientStock)
	}

	left := res.Take(stock)
	if res.Reserved == 0 {
		return nil
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE product_variants SET stock = $3
		WHERE id = $1 AND product_id = $2`, res.VariantID, res.ProductID, left)
	return err
}
