package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/GTDGit/fabric_api/internal/models"
	"github.com/GTDGit/fabric_api/internal/utils"
)

// WishlistService manages each user's saved products.
type WishlistService struct {
	wishlists WishlistStore
	products  ProductStore
}

func NewWishlistService(wishlists WishlistStore, products ProductStore) *WishlistService {
	return &WishlistService{wishlists: wishlists, products: products}
}

func (s *WishlistService) Get(ctx context.Context, userID string) (*models.Wishlist, error) {
	return s.wishlists.Get(ctx, userID)
}

// Add saves a product; the wishlist is created on first use.
func (s *WishlistService) Add(ctx context.Context, userID, productID string) (*models.Wishlist, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrProductNotFound
		}
		return nil, err
	}
	added, err := s.wishlists.AddItem(ctx, userID, productID)
	if err != nil {
		return nil, err
	}
	if !added {
		return nil, utils.ErrWishlistItemExists
	}
	return s.wishlists.Get(ctx, userID)
}

func (s *WishlistService) Remove(ctx context.Context, userID, productID string) (*models.Wishlist, error) {
	removed, err := s.wishlists.RemoveItem(ctx, userID, productID)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, utils.ErrWishlistItemMissing
	}
	return s.wishlists.Get(ctx, userID)
}

func (s *WishlistService) Clear(ctx context.Context, userID string) error {
	return s.wishlists.Clear(ctx, userID)
}

func (s *WishlistService) Contains(ctx context.Context, userID, productID string) (bool, error) {
	return s.wishlists.Contains(ctx, userID, productID)
}
