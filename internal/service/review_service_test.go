package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/fabric_api/internal/models"
	"github.com/GTDGit/fabric_api/internal/utils"
)

type reviewFixture struct {
	svc       *ReviewService
	reviews   *fakeReviews
	products  *fakeProducts
	orders    *fakeOrders
	notifs    *fakeNotifications
	productID string
	customers []*models.User
}

func newReviewFixture(t *testing.T, customers int) *reviewFixture {
	t.Helper()
	lace := laceProduct(20)
	admin := &models.User{ID: uuid.NewString(), Email: "admin@example.com", Role: models.RoleAdmin, IsActive: true}
	users := newFakeUsers(admin)

	products := newFakeProducts(lace)
	f := &reviewFixture{
		reviews:   newFakeReviews(products),
		products:  products,
		notifs:    &fakeNotifications{},
		productID: lace.ID,
	}
	for i := 0; i < customers; i++ {
		c := &models.User{ID: uuid.NewString(), Email: uuid.NewString() + "@example.com", Role: models.RoleCustomer, IsActive: true}
		require.NoError(t, users.Create(context.Background(), c))
		f.customers = append(f.customers, c)
	}
	f.orders = newFakeOrders(f.products)
	notifier := NewNotificationService(f.notifs, users, nil, nil, nil)
	f.svc = NewReviewService(f.reviews, f.products, f.orders, nil, notifier)
	return f
}

func (f *reviewFixture) review(t *testing.T, customer int, rating int) *models.Review {
	t.Helper()
	rv, err := f.svc.Create(context.Background(), f.customers[customer].ID, &CreateReviewRequest{
		ProductID: f.productID,
		Rating:    rating,
		Title:     "  Lovely fabric ",
		Comment:   "Great colour and texture",
	})
	require.NoError(t, err)
	return rv
}

func (f *reviewFixture) rating(t *testing.T) (float64, int) {
	t.Helper()
	p, err := f.products.GetByID(context.Background(), f.productID)
	require.NoError(t, err)
	return p.AverageRating, p.ReviewCount
}

func TestReviewRatingAggregation(t *testing.T) {
	f := newReviewFixture(t, 3)
	ctx := context.Background()

	var created []*models.Review
	for i, r := range []int{4, 5, 3} {
		created = append(created, f.review(t, i, r))
	}
	avg, count := f.rating(t)
	assert.Equal(t, 4.0, avg)
	assert.Equal(t, 3, count)
	assert.Equal(t, "Lovely fabric", created[0].Title)
	assert.Len(t, f.notifs.ofType(models.NotificationReview), 3)

	_, err := f.svc.SetPublished(ctx, created[2].ID, false)
	require.NoError(t, err)
	avg, count = f.rating(t)
	assert.Equal(t, 4.5, avg)
	assert.Equal(t, 2, count)

	for i, rv := range created {
		require.NoError(t, f.svc.Delete(ctx, f.customers[i].ID, false, rv.ID))
	}
	avg, count = f.rating(t)
	assert.Zero(t, avg)
	assert.Zero(t, count)
}

func TestConcurrentReviewsKeepRatingCurrent(t *testing.T) {
	f := newReviewFixture(t, 8)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range f.customers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Create(ctx, f.customers[i].ID, &CreateReviewRequest{
				ProductID: f.productID,
				Rating:    1 + i%5,
				Comment:   "Nice drape",
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	avg, count := f.rating(t)
	assert.Equal(t, 8, count)
	assert.Equal(t, 2.6, avg)

	_, err := f.svc.SetPublished(ctx, uuid.NewString(), false)
	assert.ErrorIs(t, err, utils.ErrReviewNotFound)
}

func TestReviewUpdateRecomputesRating(t *testing.T) {
	f := newReviewFixture(t, 2)
	rv := f.review(t, 0, 2)
	f.review(t, 1, 4)

	_, err := f.svc.Update(context.Background(), f.customers[1].ID, rv.ID, &UpdateReviewRequest{Rating: 5, Comment: "x"})
	assert.Equal(t, 403, utils.AsAppError(err).StatusCode)

	_, err = f.svc.Update(context.Background(), f.customers[0].ID, rv.ID, &UpdateReviewRequest{Rating: 5, Comment: "Changed my mind"})
	require.NoError(t, err)
	avg, count := f.rating(t)
	assert.Equal(t, 4.5, avg)
	assert.Equal(t, 2, count)
}

func TestDuplicateReviewIsRejected(t *testing.T) {
	f := newReviewFixture(t, 1)
	f.review(t, 0, 5)

	_, err := f.svc.Create(context.Background(), f.customers[0].ID, &CreateReviewRequest{
		ProductID: f.productID,
		Rating:    1,
		Comment:   "Second thoughts",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrReviewExists)
	assert.Equal(t, 409, utils.AsAppError(err).StatusCode)

	_, count := f.rating(t)
	assert.Equal(t, 1, count)
}

func TestReviewOfUnknownProduct(t *testing.T) {
	f := newReviewFixture(t, 1)
	_, err := f.svc.Create(context.Background(), f.customers[0].ID, &CreateReviewRequest{
		ProductID: uuid.NewString(),
		Rating:    3,
		Comment:   "?",
	})
	assert.ErrorIs(t, err, utils.ErrProductNotFound)
}

func TestReviewVerifiedPurchase(t *testing.T) {
	f := newReviewFixture(t, 2)
	delivered := &models.Order{
		ID:         uuid.NewString(),
		CustomerID: f.customers[0].ID,
		Status:     models.OrderDelivered,
		Items:      []models.OrderItem{{ID: uuid.NewString(), ProductID: f.productID, Quantity: 1}},
	}
	f.orders.orders[delivered.ID] = delivered

	assert.True(t, f.review(t, 0, 5).IsVerifiedPurchase)
	assert.False(t, f.review(t, 1, 5).IsVerifiedPurchase)
}

func TestReviewVoteExclusivity(t *testing.T) {
	f := newReviewFixture(t, 2)
	ctx := context.Background()
	rv := f.review(t, 0, 5)
	voter := f.customers[1].ID

	out, err := f.svc.Vote(ctx, voter, rv.ID, models.ActionHelpful)
	require.NoError(t, err)
	assert.Equal(t, 1, out.HelpfulCount)
	assert.Equal(t, 0, out.NotHelpfulCount)
	assert.Equal(t, []string{voter}, []string(out.HelpfulVotes))

	_, err = f.svc.Vote(ctx, voter, rv.ID, models.ActionHelpful)
	assert.ErrorIs(t, err, utils.ErrAlreadyVoted)

	out, err = f.svc.Vote(ctx, voter, rv.ID, models.ActionNotHelpful)
	require.NoError(t, err)
	assert.Equal(t, 0, out.HelpfulCount)
	assert.Equal(t, 1, out.NotHelpfulCount)
	assert.Empty(t, out.HelpfulVotes)
	assert.Equal(t, []string{voter}, []string(out.NotHelpfulVotes))

	out, err = f.svc.Vote(ctx, voter, rv.ID, models.ActionRemove)
	require.NoError(t, err)
	assert.Equal(t, 0, out.HelpfulCount)
	assert.Equal(t, 0, out.NotHelpfulCount)

	_, err = f.svc.Vote(ctx, voter, rv.ID, models.ActionRemove)
	assert.ErrorIs(t, err, utils.ErrNotVoted)
}

func TestReviewOwnVoteForbidden(t *testing.T) {
	f := newReviewFixture(t, 1)
	rv := f.review(t, 0, 4)

	_, err := f.svc.Vote(context.Background(), f.customers[0].ID, rv.ID, models.ActionHelpful)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrOwnReviewVote)
	assert.Equal(t, 403, utils.AsAppError(err).StatusCode)
}

func TestReviewVoteOnHiddenReview(t *testing.T) {
	f := newReviewFixture(t, 2)
	ctx := context.Background()
	rv := f.review(t, 0, 4)
	_, err := f.svc.SetPublished(ctx, rv.ID, false)
	require.NoError(t, err)

	_, err = f.svc.Vote(ctx, f.customers[1].ID, rv.ID, models.ActionHelpful)
	assert.ErrorIs(t, err, utils.ErrReviewNotFound)
}

func TestReviewDeletePermissions(t *testing.T) {
	f := newReviewFixture(t, 2)
	ctx := context.Background()
	rv := f.review(t, 0, 4)

	err := f.svc.Delete(ctx, f.customers[1].ID, false, rv.ID)
	assert.Equal(t, 403, utils.AsAppError(err).StatusCode)

	require.NoError(t, f.svc.Delete(ctx, "admin", true, rv.ID))
	assert.ErrorIs(t, f.svc.Delete(ctx, "admin", true, rv.ID), utils.ErrReviewNotFound)
}

func TestListForProductShowsPublishedOnly(t *testing.T) {
	f := newReviewFixture(t, 2)
	ctx := context.Background()
	f.review(t, 0, 4)
	hidden := f.review(t, 1, 1)
	_, err := f.svc.SetPublished(ctx, hidden.ID, false)
	require.NoError(t, err)

	list, total, err := f.svc.ListForProduct(ctx, &models.ReviewFilter{ProductID: f.productID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, 4, list[0].Rating)
}
