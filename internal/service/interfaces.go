package service

import (
	"context"
	"time"

	"github.com/GTDGit/fabric_api/internal/models"
	"github.com/GTDGit/fabric_api/pkg/paystack"
)

// The stores below are satisfied by the repository package. Services depend
// on these narrow views so they can be exercised with in-memory fakes.

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByResetToken(ctx context.Context, tokenHash string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	ListAdmins(ctx context.Context) ([]models.User, error)
	TouchLastLogin(ctx context.Context, id string) error
	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	ResetPassword(ctx context.Context, id, passwordHash string) error
}

type CategoryStore interface {
	List(ctx context.Context, activeOnly bool) ([]models.Category, error)
	GetByID(ctx context.Context, id string) (*models.Category, error)
	GetBySlug(ctx context.Context, slug string) (*models.Category, error)
	Create(ctx context.Context, c *models.Category) error
	Update(ctx context.Context, c *models.Category) error
	CountDependents(ctx context.Context, id string) (int, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type ProductStore interface {
	GetByID(ctx context.Context, id string) (*models.Product, error)
	GetBySlug(ctx context.Context, slug string) (*models.Product, error)
	List(ctx context.Context, filter *models.ProductFilter) ([]models.Product, int, error)
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, p *models.Product) error
	SoftDelete(ctx context.Context, id string) (bool, error)
	BulkPublish(ctx context.Context, ids []string, published bool) (int64, error)
	BulkStatus(ctx context.Context, ids []string, status models.ProductStatus) (int64, error)
	FilterOptions(ctx context.Context) (*models.FilterOptions, error)
}

type OrderStore interface {
	Create(ctx context.Context, o *models.Order, reservations []models.StockReservation, day time.Time) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByReference(ctx context.Context, reference string) (*models.Order, error)
	GetByClientReference(ctx context.Context, customerID, ref string) (*models.Order, error)
	List(ctx context.Context, filter *models.OrderFilter) ([]models.Order, int, error)
	ListUnpaid(ctx context.Context, method models.PaymentMethod, olderThan time.Time, limit int) ([]models.Order, error)
	SetAuthorizationURL(ctx context.Context, id, url string) error
	CompletePayment(ctx context.Context, reference, transactionID string, paidAt time.Time) (bool, error)
	MarkPaymentProcessing(ctx context.Context, reference string) error
	Cancel(ctx context.Context, id string, from []models.OrderStatus, reason string, unpaidOnly bool) (bool, []models.Product, error)
	UpdateStatus(ctx context.Context, o *models.Order, from models.OrderStatus) (bool, error)
	HasDeliveredOrderWithProduct(ctx context.Context, customerID, productID string) (bool, error)
}

type ReviewStore interface {
	Create(ctx context.Context, rv *models.Review) (models.RatingSummary, error)
	GetByID(ctx context.Context, id string) (*models.Review, error)
	Update(ctx context.Context, rv *models.Review) (models.RatingSummary, error)
	SetPublished(ctx context.Context, productID, id string, published bool) (bool, models.RatingSummary, error)
	Delete(ctx context.Context, productID, id string) (bool, models.RatingSummary, error)
	List(ctx context.Context, filter *models.ReviewFilter) ([]models.Review, int, error)
	Vote(ctx context.Context, reviewID, userID string, action models.VoteAction) (*models.Review, error)
}

type WishlistStore interface {
	Get(ctx context.Context, userID string) (*models.Wishlist, error)
	AddItem(ctx context.Context, userID, productID string) (bool, error)
	RemoveItem(ctx context.Context, userID, productID string) (bool, error)
	Clear(ctx context.Context, userID string) error
	Contains(ctx context.Context, userID, productID string) (bool, error)
}

type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, recipientID string, unreadOnly bool, page, limit int) ([]models.Notification, int, error)
	UnreadCount(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, id, recipientID string) (*models.Notification, error)
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	Delete(ctx context.Context, id, recipientID string) (bool, error)
}

type SettingsStore interface {
	Bootstrap(ctx context.Context, defaults models.Settings) (*models.Settings, error)
	Get(ctx context.Context) (*models.Settings, error)
	Save(ctx context.Context, s *models.Settings) error
}

// PaymentGateway is the subset of the Paystack client used by checkout.
type PaymentGateway interface {
	InitializeTransaction(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResponse, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystack.Transaction, error)
}

// ProductCache caches public product reads. Misses are reported as errors.
type ProductCache interface {
	GetByID(ctx context.Context, id string) (*models.Product, error)
	GetBySlug(ctx context.Context, slug string) (*models.Product, error)
	Set(ctx context.Context, p *models.Product) error
	Invalidate(ctx context.Context, id, slug string) error
}

// Pusher delivers a stored notification to live streams.
type Pusher interface {
	Push(n *models.Notification)
}
