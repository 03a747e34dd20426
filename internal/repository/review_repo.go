package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/fabric_api/internal/models"
	"github.com/GTDGit/fabric_api/internal/utils"
)

const reviewColumns = `r.id, r.product_id, r.customer_id, COALESCE(u.name, '') AS customer_name,
	r.rating, r.title, r.comment, r.images, r.is_verified_purchase, r.is_published,
	r.helpful_count, r.not_helpful_count, r.created_at, r.updated_at`

const reviewFrom = `FROM reviews r LEFT JOIN users u ON u.id = r.customer_id`

// ReviewRepository handles data access for reviews and their votes.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository creates a new ReviewRepository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create inserts a review and refreshes the product rating in one transaction.
func (r *ReviewRepository) Create(ctx context.Context, rv *models.Review) (models.RatingSummary, error) {
	_, summary, err := r.rated(ctx, rv.ProductID, func(tx *sqlx.Tx) (bool, error) {
		const q = `
			INSERT INTO reviews (id, product_id, customer_id, rating, title, comment, images, is_verified_purchase, is_published)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at, updated_at`
		err := tx.QueryRowxContext(ctx, q,
			rv.ID, rv.ProductID, rv.CustomerID, rv.Rating, rv.Title, rv.Comment, rv.Images,
			rv.IsVerifiedPurchase, rv.IsPublished,
		).Scan(&rv.CreatedAt, &rv.UpdatedAt)
		return err == nil, err
	})
	return summary, err
}

// GetByID returns a review together with its voter lists.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*models.Review, error) {
	var rv models.Review
	if err := r.db.GetContext(ctx, &rv, `SELECT `+reviewColumns+` `+reviewFrom+` WHERE r.id = $1`, id); err != nil {
		return nil, err
	}
	if err := r.loadVoters(ctx, r.db, &rv); err != nil {
		return nil, err
	}
	return &rv, nil
}

func (r *ReviewRepository) loadVoters(ctx context.Context, q sqlx.QueryerContext, rv *models.Review) error {
	var votes []struct {
		UserID string           `db:"user_id"`
		Kind   models.VoteState `db:"kind"`
	}
	if err := sqlx.SelectContext(ctx, q, &votes, `
		SELECT user_id, kind FROM review_votes WHERE review_id = $1 ORDER BY created_at`, rv.ID); err != nil {
		return err
	}
	rv.HelpfulVotes = []string{}
	rv.NotHelpfulVotes = []string{}
	for _, v := range votes {
		switch v.Kind {
		case models.VoteHelpful:
			rv.HelpfulVotes = append(rv.HelpfulVotes, v.UserID)
		case models.VoteNotHelpful:
			rv.NotHelpfulVotes = append(rv.NotHelpfulVotes, v.UserID)
		}
	}
	return nil
}

func (r *ReviewRepository) Update(ctx context.Context, rv *models.Review) (models.RatingSummary, error) {
	_, summary, err := r.rated(ctx, rv.ProductID, func(tx *sqlx.Tx) (bool, error) {
		const q = `
			UPDATE reviews SET rating = $2, title = $3, comment = $4, images = $5, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at`
		err := tx.QueryRowxContext(ctx, q, rv.ID, rv.Rating, rv.Title, rv.Comment, rv.Images).Scan(&rv.UpdatedAt)
		return err == nil, err
	})
	return summary, err
}

func (r *ReviewRepository) SetPublished(ctx context.Context, productID, id string, published bool) (bool, models.RatingSummary, error) {
	return r.rated(ctx, productID, func(tx *sqlx.Tx) (bool, error) {
		res, err := tx.ExecContext(ctx, `
			UPDATE reviews SET is_published = $3, updated_at = NOW()
			WHERE id = $1 AND product_id = $2`, id, productID, published)
		if err != nil {
			return false, err
		}
		n, err := res.RowsAffected()
		return n > 0, err
	})
}

func (r *ReviewRepository) Delete(ctx context.Context, productID, id string) (bool, models.RatingSummary, error) {
	return r.rated(ctx, productID, func(tx *sqlx.Tx) (bool, error) {
		res, err := tx.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1 AND product_id = $2`, id, productID)
		if err != nil {
			return false, err
		}
		n, err := res.RowsAffected()
		return n > 0, err
	})
}

// rated runs write while holding the product row lock and, when write
// changed something, recomputes averageRating and reviewCount from the
// published reviews before commit. Review writes for one product serialize
// on that lock, so the aggregate always reflects every committed review.
func (r *ReviewRepository) rated(ctx context.Context, productID string, write func(tx *sqlx.Tx) (bool, error)) (bool, models.RatingSummary, error) {
	var (
		changed bool
		summary models.RatingSummary
	)
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var locked string
		if err := tx.GetContext(ctx, &locked, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, productID); err != nil {
			return err
		}

		ok, err := write(tx)
		if err != nil || !ok {
			return err
		}
		changed = true

		ratings := []int{}
		if err := tx.SelectContext(ctx, &ratings, `
			SELECT rating FROM reviews WHERE product_id = $1 AND is_published = TRUE`, productID); err != nil {
			return err
		}
		summary = models.ComputeRating(ratings)
		_, err = tx.ExecContext(ctx, `
			UPDATE products SET average_rating = $2, review_count = $3, updated_at = NOW()
			WHERE id = $1`, productID, summary.Average, summary.Count)
		return err
	})
	if err != nil {
		return false, models.RatingSummary{}, err
	}
	return changed, summary, nil
}

// List returns reviews matching filter and the total count before paging.
func (r *ReviewRepository) List(ctx context.Context, filter *models.ReviewFilter) ([]models.Review, int, error) {
	baseQ := reviewFrom + ` WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.ProductID != "" {
		baseQ += fmt.Sprintf(" AND r.product_id = $%d", argIdx)
		args = append(args, filter.ProductID)
		argIdx++
	}
	if filter.CustomerID != "" {
		baseQ += fmt.Sprintf(" AND r.customer_id = $%d", argIdx)
		args = append(args, filter.CustomerID)
		argIdx++
	}
	if filter.PublishedOnly {
		baseQ += " AND r.is_published = TRUE"
	}
	if filter.Rating >= 1 && filter.Rating <= 5 {
		baseQ += fmt.Sprintf(" AND r.rating = $%d", argIdx)
		args = append(args, filter.Rating)
		argIdx++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQ, args...); err != nil {
		return nil, 0, err
	}

	offset := utils.Offset(filter.Page, filter.Limit)
	selectQ := fmt.Sprintf(`SELECT %s %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		reviewColumns, baseQ, reviewOrderBy(filter.Sort), argIdx, argIdx+1)
	args = append(args, filter.Limit, offset)

	reviews := []models.Review{}
	if err := r.db.SelectContext(ctx, &reviews, selectQ, args...); err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

func reviewOrderBy(sort string) string {
	switch sort {
	case "highest":
		return "r.rating DESC, r.created_at DESC"
	case "lowest":
		return "r.rating ASC, r.created_at DESC"
	case "helpful":
		return "r.helpful_count DESC, r.created_at DESC"
	default:
		return "r.created_at DESC"
	}
}

// Vote applies a voter action under a row lock on the review so concurrent
// votes serialize. The voter's position lives in a single row, which keeps
// the helpful and not-helpful sets disjoint.
func (r *ReviewRepository) Vote(ctx context.Context, reviewID, userID string, action models.VoteAction) (*models.Review, error) {
	var out *models.Review
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var locked string
		if err := tx.GetContext(ctx, &locked, `SELECT id FROM reviews WHERE id = $1 FOR UPDATE`, reviewID); err != nil {
			return err
		}

		var current models.VoteState
		err := tx.GetContext(ctx, &current, `
			SELECT kind FROM review_votes WHERE review_id = $1 AND user_id = $2`, reviewID, userID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		next, delta, err := models.ApplyVote(current, action)
		if err != nil {
			return err
		}

		if next == models.VoteNone {
			_, err = tx.ExecContext(ctx, `DELETE FROM review_votes WHERE review_id = $1 AND user_id = $2`, reviewID, userID)
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO review_votes (review_id, user_id, kind) VALUES ($1, $2, $3)
				ON CONFLICT (review_id, user_id) DO UPDATE SET kind = EXCLUDED.kind, created_at = NOW()`,
				reviewID, userID, next)
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE reviews SET
				helpful_count = GREATEST(helpful_count + $2, 0),
				not_helpful_count = GREATEST(not_helpful_count + $3, 0)
			WHERE id = $1`, reviewID, delta.Helpful, delta.NotHelpful); err != nil {
			return err
		}

		var rv models.Review
		if err := tx.GetContext(ctx, &rv, `SELECT `+reviewColumns+` `+reviewFrom+` WHERE r.id = $1`, reviewID); err != nil {
			return err
		}
		if err := r.loadVoters(ctx, tx, &rv); err != nil {
			return err
		}
		out = &rv
		return nil
	})
	return out, err
}
