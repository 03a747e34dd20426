package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/fabric_api/internal/service"
)

// Reconciler re-verifies unpaid gateway orders.
type Reconciler interface {
	Reconcile(ctx context.Context, staleAfter, maxAge time.Duration, batch int) (service.ReconcileStats, error)
}

// PaymentReconcileWorker re-checks Paystack orders whose customer never came
// back through the callback and whose webhook never arrived. Verification is
// idempotent, so re-checking an order that was settled meanwhile is harmless.
type PaymentReconcileWorker struct {
	payments   Reconciler
	interval   time.Duration
	staleAfter time.Duration // How long to wait before re-checking
	maxAge     time.Duration // Max age before an unpaid order is cancelled
	batch      int
}

// NewPaymentReconcileWorker constructs a PaymentReconcileWorker.
func NewPaymentReconcileWorker(payments Reconciler, interval, staleAfter, maxAge time.Duration) *PaymentReconcileWorker {
	return &PaymentReconcileWorker{
		payments:   payments,
		interval:   interval,
		staleAfter: staleAfter,
		maxAge:     maxAge,
		batch:      100,
	}
}

// Start begins the periodic reconcile loop until context is canceled.
func (w *PaymentReconcileWorker) Start(ctx context.Context) {
	log.Info().
		Dur("interval", w.interval).
		Dur("stale_after", w.staleAfter).
		Dur("max_age", w.maxAge).
		Msg("Starting payment reconcile worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Payment reconcile worker stopped")
			return
		}
	}
}

func (w *PaymentReconcileWorker) run(ctx context.Context) {
	stats, err := w.payments.Reconcile(ctx, w.staleAfter, w.maxAge, w.batch)
	if err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("Payment reconcile pass failed")
	}
	if stats.Checked == 0 {
		return
	}
	log.Info().
		Int("checked", stats.Checked).
		Int("completed", stats.Completed).
		Int("failed", stats.Failed).
		Int("expired", stats.Expired).
		Msg("Payment reconcile pass finished")
}
