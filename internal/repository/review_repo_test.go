package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/fabric_api/internal/models"
)

func TestReviewCreateRecomputesRatingInTx(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReviewRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(sqlText(`SELECT id FROM products WHERE id = $1 FOR UPDATE`)).
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p-1"))
	mock.ExpectQuery(sqlText(`INSERT INTO reviews`)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectQuery(sqlText(`SELECT rating FROM reviews WHERE product_id = $1 AND is_published = TRUE`)).
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows([]string{"rating"}).AddRow(5).AddRow(4).AddRow(4))
	mock.ExpectExec(sqlText(`UPDATE products SET average_rating = $2, review_count = $3`)).
		WithArgs("p-1", 4.3, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rv := &models.Review{ID: "r-1", ProductID: "p-1", CustomerID: "c-1", Rating: 4, IsPublished: true}
	summary, err := repo.Create(context.Background(), rv)
	require.NoError(t, err)
	assert.Equal(t, models.RatingSummary{Average: 4.3, Count: 3}, summary)
	assert.False(t, rv.CreatedAt.IsZero())
}

func TestReviewSetPublishedSkipsRatingWhenNothingChanged(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReviewRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(sqlText(`SELECT id FROM products WHERE id = $1 FOR UPDATE`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p-1"))
	mock.ExpectExec(sqlText(`UPDATE reviews SET is_published = $3`)).
		WithArgs("r-404", "p-1", false).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	changed, summary, err := repo.SetPublished(context.Background(), "p-1", "r-404", false)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Zero(t, summary)
}

func TestReviewDeleteOnMissingProductRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReviewRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(sqlText(`SELECT id FROM products WHERE id = $1 FOR UPDATE`)).
		WithArgs("p-gone").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	changed, _, err := repo.Delete(context.Background(), "p-gone", "r-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.False(t, changed)
}

func TestReviewVoteSwitchesSides(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReviewRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(sqlText(`SELECT id FROM reviews WHERE id = $1 FOR UPDATE`)).
		WithArgs("r-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r-1"))
	mock.ExpectQuery(sqlText(`SELECT kind FROM review_votes WHERE review_id = $1 AND user_id = $2`)).
		WithArgs("r-1", "u-1").
		WillReturnRows(sqlmock.NewRows([]string{"kind"}).AddRow("not_helpful"))
	mock.ExpectExec(sqlText(`INSERT INTO review_votes (review_id, user_id, kind)`)).
		WithArgs("r-1", "u-1", "helpful").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlText(`UPDATE reviews SET helpful_count = GREATEST(helpful_count + $2, 0)`)).
		WithArgs("r-1", 1, -1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(sqlText(`FROM reviews r LEFT JOIN users u ON u.id = r.customer_id WHERE r.id = $1`)).
		WithArgs("r-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "helpful_count", "not_helpful_count"}).
			AddRow("r-1", "p-1", 2, 0))
	mock.ExpectQuery(sqlText(`SELECT user_id, kind FROM review_votes WHERE review_id = $1`)).
		WithArgs("r-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "kind"}).
			AddRow("u-2", "helpful").
			AddRow("u-1", "helpful"))
	mock.ExpectCommit()

	rv, err := repo.Vote(context.Background(), "r-1", "u-1", models.ActionHelpful)
	require.NoError(t, err)
	assert.Equal(t, 2, rv.HelpfulCount)
	assert.Equal(t, []string{"u-2", "u-1"}, rv.HelpfulVotes)
	assert.Empty(t, rv.NotHelpfulVotes)
}

func TestReviewVoteRejectsRepeat(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReviewRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(sqlText(`SELECT id FROM reviews WHERE id = $1 FOR UPDATE`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r-1"))
	mock.ExpectQuery(sqlText(`SELECT kind FROM review_votes`)).
		WillReturnRows(sqlmock.NewRows([]string{"kind"}).AddRow("helpful"))
	mock.ExpectRollback()

	rv, err := repo.Vote(context.Background(), "r-1", "u-1", models.ActionHelpful)
	assert.ErrorIs(t, err, models.ErrAlreadyVoted)
	assert.Nil(t, rv)
}
