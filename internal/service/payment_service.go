package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/fabric_api/internal/models"
	"github.com/GTDGit/fabric_api/internal/utils"
	"github.com/GTDGit/fabric_api/pkg/paystack"
)

// PaymentService confirms gateway payments against orders.
type PaymentService struct {
	orders        OrderStore
	gateway       PaymentGateway
	notifier      *NotificationService
	cache         ProductCache
	webhookSecret string
	now           func() time.Time
}

// NewPaymentService constructs a PaymentService. The webhook secret is the
// Paystack secret key, which signs webhook bodies.
func NewPaymentService(orders OrderStore, gateway PaymentGateway, notifier *NotificationService, cache ProductCache, webhookSecret string) *PaymentService {
	return &PaymentService{
		orders:        orders,
		gateway:       gateway,
		notifier:      notifier,
		cache:         cache,
		webhookSecret: webhookSecret,
		now:           time.Now,
	}
}

// ReconcileStats summarizes one reconciliation pass.
type ReconcileStats struct {
	Checked   int
	Completed int
	Failed    int
	Expired   int
}

// Verify asks the gateway for the payment state and applies it. Repeated calls
// are safe: a payment that is already final is returned without side effects.
func (s *PaymentService) Verify(ctx context.Context, reference string) (*models.Order, error) {
	o, err := s.orders.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrOrderNotFound
		}
		return nil, err
	}
	if o.Payment.Method != models.PaymentPaystack {
		return nil, utils.Unprocessable("Order is not paid through Paystack")
	}
	if o.Payment.IsFinal() {
		return o, nil
	}

	trx, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		log.Error().Err(err).Str("reference", reference).Msg("Payment verification request failed")
		return nil, utils.BadGateway("Payment verification failed").Wrap(err)
	}
	return s.apply(ctx, o, trx)
}

// apply moves the order according to the gateway transaction state.
func (s *PaymentService) apply(ctx context.Context, o *models.Order, trx *paystack.Transaction) (*models.Order, error) {
	switch {
	case trx.IsSuccessful():
		if trx.Amount != models.ToMinorUnits(o.Total) || (trx.Currency != "" && trx.Currency != o.Currency) {
			log.Warn().
				Str("order_id", o.ID).
				Int64("expected", models.ToMinorUnits(o.Total)).
				Int64("received", trx.Amount).
				Str("currency", trx.Currency).
				Msg("Payment amount mismatch")
			return s.fail(ctx, o, "Payment amount mismatch")
		}

		paidAt := s.now()
		if trx.PaidAt != nil {
			paidAt = *trx.PaidAt
		}
		won, err := s.orders.CompletePayment(ctx, o.Payment.Reference, strconv.FormatInt(trx.ID, 10), paidAt)
		if err != nil {
			return nil, err
		}
		updated, err := s.orders.GetByID(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		switch {
		case won:
			log.Info().Str("order_id", o.ID).Str("reference", o.Payment.Reference).Msg("Payment completed")
			if s.notifier != nil {
				s.notifier.NewOrder(*updated)
			}
		case updated.Payment.Status != models.PaymentCompleted:
			// The gateway captured money for an order that was already closed.
			log.Warn().
				Str("order_id", o.ID).
				Str("order_number", o.OrderNumber).
				Str("reference", o.Payment.Reference).
				Int64("transaction_id", trx.ID).
				Int64("amount", trx.Amount).
				Str("order_status", string(updated.Status)).
				Str("payment_status", string(updated.Payment.Status)).
				Msg("Payment succeeded for a closed order, refund required")
		}
		return updated, nil

	case trx.IsFailed():
		return s.fail(ctx, o, "Payment failed: "+trx.GatewayResponse)

	case trx.Status == paystack.StatusOngoing || trx.Status == paystack.StatusPending:
		if err := s.orders.MarkPaymentProcessing(ctx, o.Payment.Reference); err != nil {
			return nil, err
		}
		return s.orders.GetByID(ctx, o.ID)
	}

	// Abandoned checkouts stay pending until the customer retries or the
	// reconciler expires them.
	return o, nil
}

// fail cancels the order and releases its stock.
func (s *PaymentService) fail(ctx context.Context, o *models.Order, reason string) (*models.Order, error) {
	changed, restocked, err := s.orders.Cancel(ctx, o.ID, []models.OrderStatus{models.OrderPending}, reason, true)
	if err != nil {
		return nil, err
	}
	if changed {
		log.Info().Str("order_id", o.ID).Str("reason", reason).Msg("Order cancelled after payment failure")
		s.invalidate(ctx, restocked)
	}
	return s.orders.GetByID(ctx, o.ID)
}

func (s *PaymentService) invalidate(ctx context.Context, products []models.Product) {
	if s.cache == nil {
		return
	}
	for _, p := range products {
		if err := s.cache.Invalidate(ctx, p.ID, p.Slug); err != nil {
			log.Warn().Err(err).Str("product_id", p.ID).Msg("Failed to invalidate product cache")
		}
	}
}

// HandleWebhook authenticates a Paystack webhook and re-verifies the
// referenced transaction. The body is never trusted for the payment state.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.webhookSecret == "" || !utils.VerifySignature(payload, signature, s.webhookSecret) {
		return utils.Unauthorized("Invalid webhook signature")
	}

	var event paystack.WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return utils.BadRequest("Malformed webhook payload")
	}
	log.Info().Str("event", event.Event).Str("reference", event.Data.Reference).Msg("Paystack webhook received")

	if event.Event != paystack.EventChargeSuccess || event.Data.Reference == "" {
		return nil
	}
	if _, err := s.Verify(ctx, event.Data.Reference); err != nil {
		if errors.Is(err, utils.ErrOrderNotFound) {
			log.Warn().Str("reference", event.Data.Reference).Msg("Webhook for unknown reference")
			return nil
		}
		return err
	}
	return nil
}

// Reconcile re-verifies stale unpaid gateway orders. Orders older than maxAge
// that are still unpaid are cancelled and their stock restored.
func (s *PaymentService) Reconcile(ctx context.Context, staleAfter, maxAge time.Duration, batch int) (ReconcileStats, error) {
	var stats ReconcileStats
	now := s.now()
	orders, err := s.orders.ListUnpaid(ctx, models.PaymentPaystack, now.Add(-staleAfter), batch)
	if err != nil {
		return stats, err
	}

	for i := range orders {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		o := &orders[i]
		stats.Checked++

		updated := o
		trx, err := s.gateway.VerifyTransaction(ctx, o.Payment.Reference)
		if err != nil {
			log.Warn().Err(err).Str("order_id", o.ID).Msg("Reconcile verify failed")
		} else if updated, err = s.apply(ctx, o, trx); err != nil {
			log.Error().Err(err).Str("order_id", o.ID).Msg("Reconcile apply failed")
			continue
		}

		switch {
		case updated.Payment.Status == models.PaymentCompleted:
			stats.Completed++
		case updated.Status == models.OrderCancelled:
			stats.Failed++
		case now.Sub(o.CreatedAt) > maxAge:
			changed, restocked, err := s.orders.Cancel(ctx, o.ID, []models.OrderStatus{models.OrderPending}, "Payment not completed in time", true)
			if err != nil {
				log.Error().Err(err).Str("order_id", o.ID).Msg("Failed to expire unpaid order")
				continue
			}
			if changed {
				stats.Expired++
				s.invalidate(ctx, restocked)
			}
		}
	}
	return stats, nil
}
