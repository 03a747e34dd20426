package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/GTDGit/fabric_api/internal/models"
	"github.com/GTDGit/fabric_api/internal/utils"
)

const orderColumns = `o.id, o.order_number, o.customer_id, o.customer_email, o.client_reference,
	o.subtotal, o.shipping_cost, o.tax, o.discount, o.total, o.currency,
	o.shipping_address, o.billing_address,
	o.payment_method AS "payment.method",
	o.payment_reference AS "payment.reference",
	o.payment_transaction_id AS "payment.transaction_id",
	o.payment_status AS "payment.status",
	o.payment_amount AS "payment.amount",
	o.payment_currency AS "payment.currency",
	o.payment_paid_at AS "payment.paid_at",
	o.payment_authorization_url AS "payment.authorization_url",
	o.status, o.fulfillment_status, o.tracking_number, o.carrier,
	o.shipped_at, o.delivered_at, o.cancelled_at, o.cancel_reason, o.notes,
	o.created_at, o.updated_at`

const orderItemColumns = `id, order_id, product_id, variant_id, name, image, sku, color, color_hex,
	unit_of_measure, unit_price, quantity, line_total, reserved_quantity`

// OrderRepository handles data access for orders and their items.
type OrderRepository struct {
	db       *sqlx.DB
	counters *CounterRepository
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(db *sqlx.DB, counters *CounterRepository) *OrderRepository {
	return &OrderRepository{db: db, counters: counters}
}

// Create reserves stock, allocates the day's order number and inserts the
// order with its items in a single transaction. reservations[i] belongs to
// o.Items[i]. It returns the products whose stock changed. On failure nothing
// is persisted and no number is consumed.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order, reservations []models.StockReservation, day time.Time) ([]models.Product, error) {
	if len(reservations) != len(o.Items) {
		return nil, fmt.Errorf("order has %d items but %d reservations", len(o.Items), len(reservations))
	}
	var touched []models.Product
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		products, err := reserveStock(ctx, tx, reservations)
		if err != nil {
			return err
		}
		for i := range o.Items {
			o.Items[i].ReservedQuantity = reservations[i].Reserved
		}

		seq, err := r.counters.Next(ctx, tx, models.OrderCounterKey(day))
		if err != nil {
			return fmt.Errorf("allocate order number: %w", err)
		}
		if err := o.AssignNumber(day, seq); err != nil {
			return err
		}

		const q = `
			INSERT INTO orders (
				id, order_number, customer_id, customer_email, client_reference,
				subtotal, shipping_cost, tax, discount, total, currency,
				shipping_address, billing_address,
				payment_method, payment_reference, payment_status, payment_amount, payment_currency,
				status, fulfillment_status, notes
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
			RETURNING created_at, updated_at`
		if err := tx.QueryRowxContext(ctx, q,
			o.ID, o.OrderNumber, o.CustomerID, o.CustomerEmail, o.ClientReference,
			o.Subtotal, o.ShippingCost, o.Tax, o.Discount, o.Total, o.Currency,
			o.ShippingAddress, o.BillingAddress,
			o.Payment.Method, o.Payment.Reference, o.Payment.Status, o.Payment.Amount, o.Payment.Currency,
			o.Status, o.FulfillmentStatus, o.Notes,
		).Scan(&o.CreatedAt, &o.UpdatedAt); err != nil {
			return err
		}

		const itemQ = `
			INSERT INTO order_items (
				id, order_id, product_id, variant_id, name, image, sku, color, color_hex,
				unit_of_measure, unit_price, quantity, line_total, reserved_quantity, position
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
		stmt, err := tx.PreparexContext(ctx, itemQ)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i := range o.Items {
			it := &o.Items[i]
			it.OrderID = o.ID
			if _, err := stmt.ExecContext(ctx, it.ID, it.OrderID, it.ProductID, it.VariantID, it.Name, it.Image,
				it.SKU, it.Color, it.ColorHex, it.UnitOfMeasure, it.UnitPrice, it.Quantity, it.LineTotal,
				it.ReservedQuantity, i); err != nil {
				return err
			}
		}

		touched = products
		return nil
	})
	if err != nil {
		o.OrderNumber = ""
		return nil, err
	}
	return touched, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	return r.getOne(ctx, `o.id = $1`, id)
}

func (r *OrderRepository) GetByReference(ctx context.Context, reference string) (*models.Order, error) {
	return r.getOne(ctx, `o.payment_reference = $1`, reference)
}

// GetByClientReference finds a customer's order placed with the given idempotency key.
func (r *OrderRepository) GetByClientReference(ctx context.Context, customerID, ref string) (*models.Order, error) {
	var o models.Order
	err := r.db.GetContext(ctx, &o, `SELECT `+orderColumns+` FROM orders o
		WHERE o.customer_id = $1 AND o.client_reference = $2`, customerID, ref)
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, []*models.Order{&o}); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) getOne(ctx context.Context, where string, arg any) (*models.Order, error) {
	var o models.Order
	if err := r.db.GetContext(ctx, &o, `SELECT `+orderColumns+` FROM orders o WHERE `+where, arg); err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, []*models.Order{&o}); err != nil {
		return nil, err
	}
	return &o, nil
}

// List returns orders matching filter and the total count before paging.
func (r *OrderRepository) List(ctx context.Context, filter *models.OrderFilter) ([]models.Order, int, error) {
	baseQ := `FROM orders o WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.CustomerID != "" {
		baseQ += fmt.Sprintf(" AND o.customer_id = $%d", argIdx)
		args = append(args, filter.CustomerID)
		argIdx++
	}
	if filter.Status != "" {
		baseQ += fmt.Sprintf(" AND o.status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.PaymentStatus != "" {
		baseQ += fmt.Sprintf(" AND o.payment_status = $%d", argIdx)
		args = append(args, filter.PaymentStatus)
		argIdx++
	}
	if filter.Search != "" {
		baseQ += fmt.Sprintf(" AND (o.order_number ILIKE $%d OR o.customer_email ILIKE $%d)", argIdx, argIdx)
		args = append(args, "%"+filter.Search+"%")
		argIdx++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQ, args...); err != nil {
		return nil, 0, err
	}

	offset := utils.Offset(filter.Page, filter.Limit)
	selectQ := fmt.Sprintf(`SELECT %s %s ORDER BY o.created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, baseQ, argIdx, argIdx+1)
	args = append(args, filter.Limit, offset)

	orders := []models.Order{}
	if err := r.db.SelectContext(ctx, &orders, selectQ, args...); err != nil {
		return nil, 0, err
	}
	ptrs := make([]*models.Order, len(orders))
	for i := range orders {
		ptrs[i] = &orders[i]
	}
	if err := r.attachItems(ctx, ptrs); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListUnpaid returns orders of the given payment method still awaiting
// payment that were created before olderThan, oldest first.
func (r *OrderRepository) ListUnpaid(ctx context.Context, method models.PaymentMethod, olderThan time.Time, limit int) ([]models.Order, error) {
	orders := []models.Order{}
	err := r.db.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+` FROM orders o
		WHERE o.payment_method = $1
			AND o.payment_status IN ('pending', 'processing')
			AND o.status = 'pending'
			AND o.created_at < $2
		ORDER BY o.created_at
		LIMIT $3`, method, olderThan, limit)
	return orders, err
}

func (r *OrderRepository) attachItems(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	var items []models.OrderItem
	if err := r.db.SelectContext(ctx, &items, `
		SELECT `+orderItemColumns+` FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`, pq.Array(ids)); err != nil {
		return err
	}
	byOrder := make(map[string][]models.OrderItem, len(orders))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	for _, o := range orders {
		o.Items = byOrder[o.ID]
		if o.Items == nil {
			o.Items = []models.OrderItem{}
		}
	}
	return nil
}

// SetAuthorizationURL records the gateway checkout URL.
func (r *OrderRepository) SetAuthorizationURL(ctx context.Context, id, url string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE orders SET payment_authorization_url = $2, updated_at = NOW()
		WHERE id = $1`, id, url)
	return err
}

// CompletePayment moves an unpaid order to completed. It reports false when
// the payment was already final, so only one caller ever wins the transition.
func (r *OrderRepository) CompletePayment(ctx context.Context, reference, transactionID string, paidAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET
			payment_status = 'completed',
			payment_transaction_id = $2,
			payment_paid_at = $3,
			status = CASE WHEN status = 'pending' THEN 'processing' ELSE status END,
			updated_at = NOW()
		WHERE payment_reference = $1 AND payment_status IN ('pending', 'processing')`,
		reference, transactionID, paidAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkPaymentProcessing flags a gateway transaction that is still in flight.
func (r *OrderRepository) MarkPaymentProcessing(ctx context.Context, reference string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE orders SET payment_status = 'processing', updated_at = NOW()
		WHERE payment_reference = $1 AND payment_status = 'pending'`, reference)
	return err
}

// Cancel moves an order in one of the from statuses to cancelled and restores
// its reserved stock in the same transaction. With unpaidOnly the order must
// still be awaiting payment; a pending payment is marked failed so a late
// verification cannot revive the order. It reports whether the order changed
// and returns the restocked products.
func (r *OrderRepository) Cancel(ctx context.Context, id string, from []models.OrderStatus, reason string, unpaidOnly bool) (bool, []models.Product, error) {
	var (
		changed  bool
		products []models.Product
	)
	statuses := make([]string, len(from))
	for i, s := range from {
		statuses[i] = string(s)
	}

	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE orders SET
				status = 'cancelled',
				cancelled_at = NOW(),
				cancel_reason = $3,
				payment_status = CASE WHEN payment_status IN ('pending', 'processing') THEN 'failed' ELSE payment_status END,
				updated_at = NOW()
			WHERE id = $1 AND status = ANY($2)
				AND (NOT $4 OR payment_status IN ('pending', 'processing'))`,
			id, pq.Array(statuses), reason, unpaidOnly)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		changed = true

		held := models.Order{}
		if err := tx.SelectContext(ctx, &held.Items, `SELECT `+orderItemColumns+` FROM order_items WHERE order_id = $1`, id); err != nil {
			return err
		}
		products, err = restoreStock(ctx, tx, held.Reservations())
		return err
	})
	if err != nil {
		return false, nil, err
	}
	return changed, products, nil
}

// UpdateStatus writes a fulfilment transition if the order is still in from.
func (r *OrderRepository) UpdateStatus(ctx context.Context, o *models.Order, from models.OrderStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET
			status = $3, fulfillment_status = $4, tracking_number = $5, carrier = $6,
			shipped_at = $7, delivered_at = $8, payment_status = $9, payment_paid_at = $10,
			updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		o.ID, from, o.Status, o.FulfillmentStatus, o.TrackingNumber, o.Carrier,
		o.ShippedAt, o.DeliveredAt, o.Payment.Status, o.Payment.PaidAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// HasDeliveredOrderWithProduct reports whether the customer received the product.
func (r *OrderRepository) HasDeliveredOrderWithProduct(ctx context.Context, customerID, productID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM orders o JOIN order_items i ON i.order_id = o.id
			WHERE o.customer_id = $1 AND i.product_id = $2 AND o.status = 'delivered'
		)`, customerID, productID)
	return exists, err
}
