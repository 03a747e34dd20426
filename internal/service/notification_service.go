package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/fabric_api/internal/models"
	"github.com/GTDGit/fabric_api/internal/utils"
)

const notifyTimeout = 30 * time.Second

// NotificationService stores in-app notifications, pushes them to live
// streams and sends the matching emails. Triggers never fail the caller:
// delivery runs on the worker pool and errors are only logged.
type NotificationService struct {
	store  NotificationStore
	users  UserStore
	pusher Pusher
	mailer Mailer
	pool   *ants.Pool
}

// NewNotificationService creates the dispatcher. A nil pool delivers inline.
func NewNotificationService(store NotificationStore, users UserStore, pusher Pusher, mailer Mailer, pool *ants.Pool) *NotificationService {
	if mailer == nil {
		mailer = NopMailer{}
	}
	return &NotificationService{store: store, users: users, pusher: pusher, mailer: mailer, pool: pool}
}

// NewNotifyPool builds the worker pool for notification jobs. Submit never
// blocks: when every worker is busy the job is dropped and logged.
func NewNotifyPool(size int) (*ants.Pool, error) {
	return ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(r interface{}) {
			log.Error().Interface("panic", r).Msg("Notification worker panicked")
		}),
	)
}

func (s *NotificationService) dispatch(name string, job func(ctx context.Context)) {
	run := func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("job", name).Msg("Notification job panicked")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		job(ctx)
	}
	if s.pool == nil {
		run()
		return
	}
	err := s.pool.Submit(run)
	switch {
	case errors.Is(err, ants.ErrPoolOverload):
		log.Warn().Str("job", name).Int("capacity", s.pool.Cap()).Msg("Notification pool saturated, notification dropped")
	case err != nil:
		log.Error().Err(err).Str("job", name).Msg("Failed to submit notification job")
	}
}

// deliver stores one notification for recipientID and pushes it live.
func (s *NotificationService) deliver(ctx context.Context, recipientID string, tmpl models.Notification) {
	n := tmpl
	n.ID = uuid.NewString()
	n.RecipientID = recipientID
	if err := s.store.Create(ctx, &n); err != nil {
		log.Error().Err(err).Str("recipient_id", recipientID).Str("type", string(n.Type)).Msg("Failed to store notification")
		return
	}
	if s.pusher != nil {
		s.pusher.Push(&n)
	}
}

func (s *NotificationService) notifyAdmins(ctx context.Context, tmpl models.Notification, subject, body string) {
	admins, err := s.users.ListAdmins(ctx)
	if err != nil {
		log.Error().Err(err).Str("type", string(tmpl.Type)).Msg("Failed to list admins for notification")
		return
	}
	emails := make([]string, 0, len(admins))
	for _, a := range admins {
		s.deliver(ctx, a.ID, tmpl)
		emails = append(emails, a.Email)
	}
	if subject == "" || len(emails) == 0 {
		return
	}
	if err := s.mailer.Send(ctx, emails, subject, body); err != nil {
		log.Error().Err(err).Str("type", string(tmpl.Type)).Msg("Failed to email admins")
	}
}

// LowStock alerts admins that a tracked product is running out.
func (s *NotificationService) LowStock(p models.Product) {
	total, threshold := p.TotalStock, p.StockThreshold()
	tmpl := models.Notification{
		Type:    models.NotificationLowStock,
		Title:   "Low stock alert",
		Message: fmt.Sprintf("%s has only %d units left (threshold %d)", p.Name, total, threshold),
		Data: models.NotificationData{
			ProductID:   p.ID,
			ProductName: p.Name,
			TotalStock:  &total,
			Threshold:   &threshold,
		},
	}
	body := fmt.Sprintf("<p><strong>%s</strong> is running low: %d units left (threshold %d).</p>",
		html.EscapeString(p.Name), total, threshold)
	s.dispatch("low_stock", func(ctx context.Context) {
		s.notifyAdmins(ctx, tmpl, "Low stock: "+p.Name, body)
	})
}

// NewOrder alerts admins about a paid (or offline payment) order.
func (s *NotificationService) NewOrder(o models.Order) {
	amount := o.Total.StringFixed(2)
	tmpl := models.Notification{
		Type:    models.NotificationNewOrder,
		Title:   "New order received",
		Message: fmt.Sprintf("Order %s for %s %s", o.OrderNumber, o.Currency, amount),
		Data: models.NotificationData{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			Amount:      amount,
			Status:      string(o.Payment.Status),
		},
	}
	body := fmt.Sprintf("<p>Order <strong>%s</strong> was placed by %s.</p><p>Total: %s %s<br>Payment: %s (%s)</p>",
		html.EscapeString(o.OrderNumber), html.EscapeString(o.CustomerEmail), o.Currency, amount,
		o.Payment.Method, o.Payment.Status)
	s.dispatch("new_order", func(ctx context.Context) {
		s.notifyAdmins(ctx, tmpl, "New order "+o.OrderNumber, body)
	})
}

// OrderStatusChanged tells the customer their order moved.
func (s *NotificationService) OrderStatusChanged(o models.Order) {
	tmpl := models.Notification{
		Type:    models.NotificationOrderStatus,
		Title:   "Order updated",
		Message: fmt.Sprintf("Your order %s is now %s", o.OrderNumber, o.Status),
		Data: models.NotificationData{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			Status:      string(o.Status),
		},
	}
	body := fmt.Sprintf("<p>Your order <strong>%s</strong> is now <strong>%s</strong>.</p>",
		html.EscapeString(o.OrderNumber), o.Status)
	if o.TrackingNumber != nil && *o.TrackingNumber != "" {
		body += fmt.Sprintf("<p>Tracking number: %s</p>", html.EscapeString(*o.TrackingNumber))
	}
	s.dispatch("order_status", func(ctx context.Context) {
		s.deliver(ctx, o.CustomerID, tmpl)
		if o.CustomerEmail == "" {
			return
		}
		if err := s.mailer.Send(ctx, []string{o.CustomerEmail}, "Order "+o.OrderNumber+" update", body); err != nil {
			log.Error().Err(err).Str("order_id", o.ID).Msg("Failed to email order status")
		}
	})
}

// NewReview alerts admins about a new product review.
func (s *NotificationService) NewReview(rv models.Review, productName string) {
	tmpl := models.Notification{
		Type:    models.NotificationReview,
		Title:   "New review",
		Message: fmt.Sprintf("%d-star review on %s", rv.Rating, productName),
		Data: models.NotificationData{
			ProductID:   rv.ProductID,
			ProductName: productName,
			ReviewID:    rv.ID,
		},
	}
	s.dispatch("review", func(ctx context.Context) {
		s.notifyAdmins(ctx, tmpl, "", "")
	})
}

// PasswordReset emails the reset link.
func (s *NotificationService) PasswordReset(email, name, link string) {
	body := fmt.Sprintf("<p>Hi %s,</p><p>Use the link below to reset your password. It expires in one hour.</p><p><a href=\"%s\">Reset password</a></p>",
		html.EscapeString(name), html.EscapeString(link))
	s.dispatch("password_reset", func(ctx context.Context) {
		if err := s.mailer.Send(ctx, []string{email}, "Reset your password", body); err != nil {
			log.Error().Err(err).Msg("Failed to send password reset email")
		}
	})
}

// List returns a user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, page, limit int) ([]models.Notification, int, error) {
	page, limit = utils.NormalizePage(page, limit)
	return s.store.List(ctx, userID, unreadOnly, page, limit)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.store.UnreadCount(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) (*models.Notification, error) {
	n, err := s.store.MarkRead(ctx, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrNotificationMissing
	}
	return n, err
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.store.MarkAllRead(ctx, userID)
}

func (s *NotificationService) Delete(ctx context.Context, userID, id string) error {
	ok, err := s.store.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return utils.ErrNotificationMissing
	}
	return nil
}
