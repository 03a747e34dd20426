package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/fabric_api/internal/models"
	"github.com/GTDGit/fabric_api/internal/repository"
	"github.com/GTDGit/fabric_api/internal/utils"
)

// ReviewService manages product reviews, helpful votes and the derived
// product rating.
type ReviewService struct {
	reviews  ReviewStore
	products ProductStore
	orders   OrderStore
	cache    ProductCache
	notifier *NotificationService
}

func NewReviewService(reviews ReviewStore, products ProductStore, orders OrderStore, cache ProductCache, notifier *NotificationService) *ReviewService {
	return &ReviewService{reviews: reviews, products: products, orders: orders, cache: cache, notifier: notifier}
}

type CreateReviewRequest struct {
	ProductID string   `json:"productId" binding:"required,uuid"`
	Rating    int      `json:"rating" binding:"required,min=1,max=5"`
	Title     string   `json:"title" binding:"max=200"`
	Comment   string   `json:"comment" binding:"required,max=2000"`
	Images    []string `json:"images" binding:"max=5"`
}

type UpdateReviewRequest struct {
	Rating  int      `json:"rating" binding:"required,min=1,max=5"`
	Title   string   `json:"title" binding:"max=200"`
	Comment string   `json:"comment" binding:"required,max=2000"`
	Images  []string `json:"images" binding:"max=5"`
}

// Create adds the customer's review of a product.
func (s *ReviewService) Create(ctx context.Context, customerID string, req *CreateReviewRequest) (*models.Review, error) {
	p, err := s.products.GetByID(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrProductNotFound
		}
		return nil, err
	}

	verified, err := s.orders.HasDeliveredOrderWithProduct(ctx, customerID, p.ID)
	if err != nil {
		return nil, err
	}

	rv := &models.Review{
		ID:                 uuid.NewString(),
		ProductID:          p.ID,
		CustomerID:         customerID,
		Rating:             req.Rating,
		Title:              strings.TrimSpace(req.Title),
		Comment:            strings.TrimSpace(req.Comment),
		Images:             pq.StringArray(nonNil(req.Images)),
		IsVerifiedPurchase: verified,
		IsPublished:        true,
	}
	summary, err := s.reviews.Create(ctx, rv)
	if err != nil {
		if repository.IsUniqueViolation(err, "") {
			return nil, utils.ErrReviewExists
		}
		return nil, err
	}
	s.ratingChanged(ctx, p.ID, summary)

	if s.notifier != nil {
		s.notifier.NewReview(*rv, p.Name)
	}
	return rv, nil
}

// Update edits the requester's own review.
func (s *ReviewService) Update(ctx context.Context, requesterID, id string, req *UpdateReviewRequest) (*models.Review, error) {
	rv, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rv.CustomerID != requesterID {
		return nil, utils.Forbidden("You can only edit your own review")
	}

	rv.Rating = req.Rating
	rv.Title = strings.TrimSpace(req.Title)
	rv.Comment = strings.TrimSpace(req.Comment)
	rv.Images = pq.StringArray(nonNil(req.Images))
	summary, err := s.reviews.Update(ctx, rv)
	if err != nil {
		return nil, err
	}
	s.ratingChanged(ctx, rv.ProductID, summary)
	return rv, nil
}

// Delete removes a review; customers may only delete their own.
func (s *ReviewService) Delete(ctx context.Context, requesterID string, isAdmin bool, id string) error {
	rv, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if !isAdmin && rv.CustomerID != requesterID {
		return utils.Forbidden("You can only delete your own review")
	}
	ok, summary, err := s.reviews.Delete(ctx, rv.ProductID, id)
	if err != nil {
		return err
	}
	if !ok {
		return utils.ErrReviewNotFound
	}
	s.ratingChanged(ctx, rv.ProductID, summary)
	return nil
}

// SetPublished shows or hides a review (admin moderation).
func (s *ReviewService) SetPublished(ctx context.Context, id string, published bool) (*models.Review, error) {
	rv, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, summary, err := s.reviews.SetPublished(ctx, rv.ProductID, id, published)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, utils.ErrReviewNotFound
	}
	s.ratingChanged(ctx, rv.ProductID, summary)
	rv.IsPublished = published
	return rv, nil
}

// ListForProduct returns published reviews of a product.
func (s *ReviewService) ListForProduct(ctx context.Context, filter *models.ReviewFilter) ([]models.Review, int, error) {
	filter.PublishedOnly = true
	filter.Page, filter.Limit = utils.NormalizePage(filter.Page, filter.Limit)
	return s.reviews.List(ctx, filter)
}

// List returns reviews for admins or for a single customer.
func (s *ReviewService) List(ctx context.Context, filter *models.ReviewFilter) ([]models.Review, int, error) {
	filter.Page, filter.Limit = utils.NormalizePage(filter.Page, filter.Limit)
	return s.reviews.List(ctx, filter)
}

// Vote records, switches or removes the voter's helpful vote.
func (s *ReviewService) Vote(ctx context.Context, userID, reviewID string, action models.VoteAction) (*models.Review, error) {
	rv, err := s.get(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if !rv.IsPublished {
		return nil, utils.ErrReviewNotFound
	}
	if rv.CustomerID == userID {
		return nil, utils.ErrOwnReviewVote
	}

	out, err := s.reviews.Vote(ctx, reviewID, userID, action)
	switch {
	case errors.Is(err, models.ErrAlreadyVoted):
		return nil, utils.ErrAlreadyVoted
	case errors.Is(err, models.ErrNotVoted):
		return nil, utils.ErrNotVoted
	case errors.Is(err, sql.ErrNoRows):
		return nil, utils.ErrReviewNotFound
	case err != nil:
		return nil, err
	}
	return out, nil
}

func (s *ReviewService) get(ctx context.Context, id string) (*models.Review, error) {
	rv, err := s.reviews.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrReviewNotFound
	}
	return rv, err
}

// ratingChanged drops the cached product after its rating was recomputed.
func (s *ReviewService) ratingChanged(ctx context.Context, productID string, summary models.RatingSummary) {
	log.Debug().
		Str("product_id", productID).
		Float64("average_rating", summary.Average).
		Int("review_count", summary.Count).
		Msg("Product rating refreshed")
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, productID, ""); err != nil {
		log.Warn().Err(err).Str("product_id", productID).Msg("Failed to invalidate product cache")
	}
}
