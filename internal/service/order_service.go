package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/fabric_api/internal/models"
	"github.com/GTDGit/fabric_api/internal/repository"
	"github.com/GTDGit/fabric_api/internal/utils"
	"github.com/GTDGit/fabric_api/pkg/paystack"
)

// OrderService places orders and drives their lifecycle.
type OrderService struct {
	orders      OrderStore
	products    ProductStore
	users       UserStore
	settings    *SettingsService
	gateway     PaymentGateway
	notifier    *NotificationService
	cache       ProductCache
	callbackURL string
	now         func() time.Time
}

// NewOrderService constructs an OrderService. cache may be nil.
func NewOrderService(
	orders OrderStore,
	products ProductStore,
	users UserStore,
	settings *SettingsService,
	gateway PaymentGateway,
	notifier *NotificationService,
	cache ProductCache,
	callbackURL string,
) *OrderService {
	return &OrderService{
		orders:      orders,
		products:    products,
		users:       users,
		settings:    settings,
		gateway:     gateway,
		notifier:    notifier,
		cache:       cache,
		callbackURL: callbackURL,
		now:         time.Now,
	}
}

// OrderItemRequest selects a variant by sku or, failing that, by color.
type OrderItemRequest struct {
	ProductID string `json:"productId" binding:"required,uuid"`
	SKU       string `json:"sku"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity" binding:"required,gte=1"`
}

// PlaceOrderRequest is the checkout payload.
type PlaceOrderRequest struct {
	Items           []OrderItemRequest   `json:"items" binding:"required,min=1,max=50,dive"`
	ShippingAddress models.Address       `json:"shippingAddress" binding:"required"`
	BillingAddress  *models.Address      `json:"billingAddress"`
	PaymentMethod   models.PaymentMethod `json:"paymentMethod" binding:"omitempty,oneof=paystack bank_transfer cash_on_delivery"`
	ClientReference string               `json:"clientReference" binding:"max=100"`
	Notes           string               `json:"notes" binding:"max=1000"`
}

// PlaceOrderResult is returned to the storefront after checkout.
type PlaceOrderResult struct {
	Order            *models.Order `json:"order"`
	AuthorizationURL string        `json:"authorizationUrl,omitempty"`
	Reference        string        `json:"reference"`
	Existing         bool          `json:"-"`
}

// UpdateStatusRequest is the admin fulfilment payload.
type UpdateStatusRequest struct {
	Status         models.OrderStatus `json:"status" binding:"required,oneof=pending processing shipped delivered cancelled refunded"`
	TrackingNumber string             `json:"trackingNumber"`
	Carrier        string             `json:"carrier"`
	Reason         string             `json:"reason"`
}

// Place validates the cart, reserves stock and persists the order, then
// starts payment. A gateway failure cancels the order and restores stock.
func (s *OrderService) Place(ctx context.Context, customerID string, req *PlaceOrderRequest) (*PlaceOrderResult, error) {
	ref := strings.TrimSpace(req.ClientReference)
	if ref != "" {
		existing, err := s.orders.GetByClientReference(ctx, customerID, ref)
		if err == nil {
			return &PlaceOrderResult{
				Order:            existing,
				AuthorizationURL: deref(existing.Payment.AuthorizationURL),
				Reference:        existing.Payment.Reference,
				Existing:         true,
			}, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}

	settings := s.settings.Get()
	method := req.PaymentMethod
	if method == "" {
		method = models.PaymentPaystack
	}
	if !settings.Payment.IsEnabled(method) {
		return nil, utils.ErrPaymentMethod
	}

	customer, err := s.users.GetByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.Unauthorized("User not found")
		}
		return nil, err
	}

	currency := settings.Store.Currency
	if currency == "" {
		currency = models.DefaultCurrency
	}
	order := &models.Order{
		ID:                uuid.NewString(),
		CustomerID:        customer.ID,
		CustomerEmail:     customer.Email,
		Currency:          currency,
		ShippingAddress:   req.ShippingAddress,
		BillingAddress:    req.ShippingAddress,
		Status:            models.OrderPending,
		FulfillmentStatus: models.FulfillmentUnfulfilled,
	}
	if order.ShippingAddress.Country == "" {
		order.ShippingAddress.Country = "Nigeria"
	}
	if req.BillingAddress != nil {
		order.BillingAddress = *req.BillingAddress
	} else {
		order.BillingAddress = order.ShippingAddress
	}
	if ref != "" {
		order.ClientReference = &ref
	}
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		order.Notes = &notes
	}

	reservations, err := s.buildItems(ctx, order, req.Items)
	if err != nil {
		return nil, err
	}

	order.ComputeTotals()
	order.ShippingCost = settings.Shipping.CostFor(order.Subtotal)
	order.Tax = decimal.Zero
	order.Discount = decimal.Zero
	order.ComputeTotals()
	if err := order.ValidateTotals(); err != nil {
		return nil, utils.Internal(err)
	}

	order.Payment = models.Payment{
		Method:    method,
		Reference: utils.GeneratePaymentReference(),
		Status:    models.PaymentPending,
		Amount:    order.Total,
		Currency:  order.Currency,
	}

	touched, err := s.orders.Create(ctx, order, reservations, s.now())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientStock):
			return nil, utils.ErrInsufficientStock.Wrap(err)
		case repository.IsUniqueViolation(err, "client_reference"):
			// Lost a race with a retry of the same checkout.
			if existing, gerr := s.orders.GetByClientReference(ctx, customerID, ref); gerr == nil {
				return &PlaceOrderResult{Order: existing, AuthorizationURL: deref(existing.Payment.AuthorizationURL), Reference: existing.Payment.Reference, Existing: true}, nil
			}
			return nil, utils.Conflict("Client reference already used")
		}
		return nil, err
	}
	log.Info().
		Str("order_id", order.ID).
		Str("order_number", order.OrderNumber).
		Str("total", order.Total.StringFixed(2)).
		Str("method", string(method)).
		Msg("Order placed")

	s.afterStockChange(ctx, touched, reservations)

	result := &PlaceOrderResult{Order: order, Reference: order.Payment.Reference}
	if method != models.PaymentPaystack {
		if s.notifier != nil {
			s.notifier.NewOrder(*order)
		}
		return result, nil
	}

	init, err := s.gateway.InitializeTransaction(ctx, paystack.InitializeRequest{
		Email:       order.CustomerEmail,
		Amount:      models.ToMinorUnits(order.Total),
		Reference:   order.Payment.Reference,
		Currency:    order.Currency,
		CallbackURL: s.callbackURL,
		Metadata: map[string]string{
			"orderId":     order.ID,
			"orderNumber": order.OrderNumber,
		},
	})
	if err != nil {
		log.Error().Err(err).Str("order_id", order.ID).Msg("Payment initialization failed, cancelling order")
		s.abandon(ctx, order, "Payment initialization failed")
		return nil, utils.ErrGatewayUnavailable.Wrap(err)
	}

	if err := s.orders.SetAuthorizationURL(ctx, order.ID, init.AuthorizationURL); err != nil {
		log.Error().Err(err).Str("order_id", order.ID).Msg("Failed to store authorization URL")
	}
	order.Payment.AuthorizationURL = &init.AuthorizationURL
	result.AuthorizationURL = init.AuthorizationURL
	return result, nil
}

// buildItems snapshots each requested line onto the order and returns the
// stock reservations it needs.
func (s *OrderService) buildItems(ctx context.Context, order *models.Order, lines []OrderItemRequest) ([]models.StockReservation, error) {
	products := make(map[string]*models.Product)
	requested := make(map[string]int)
	reservations := make([]models.StockReservation, 0, len(lines))

	for _, line := range lines {
		p, ok := products[line.ProductID]
		if !ok {
			var err error
			p, err = s.products.GetByID(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, utils.ErrProductNotFound.WithMessage("Product %s not found", line.ProductID)
				}
				return nil, err
			}
			products[line.ProductID] = p
		}
		if !p.IsPurchasable() {
			return nil, utils.ErrProductUnavailable.WithMessage("%s is not available for purchase", p.Name)
		}

		v := p.FindVariant(line.SKU, line.Color)
		if v == nil {
			return nil, utils.ErrVariantNotFound.WithMessage("%s has no variant matching %s", p.Name, variantLabel(line))
		}
		if !v.IsAvailable {
			return nil, utils.ErrVariantUnavailable.WithMessage("%s (%s) is not available", p.Name, v.Color)
		}

		requested[v.ID] += line.Quantity
		if !p.CheckQuantity(requested[v.ID]) {
			return nil, utils.ErrQuantityOutOfRange.WithMessage("Quantity for %s (%s) must be between %d and %s",
				p.Name, v.Color, max(p.MinimumOrder, 1), maxLabel(p.MaximumOrder))
		}
		if p.TrackInventory && !p.AllowBackorder && v.Stock < requested[v.ID] {
			return nil, utils.ErrInsufficientStock.WithMessage("Only %d left of %s (%s)", v.Stock, p.Name, v.Color)
		}

		order.Items = append(order.Items, models.OrderItem{
			ID:            uuid.NewString(),
			ProductID:     p.ID,
			VariantID:     v.ID,
			Name:          p.Name,
			Image:         p.PrimaryImage(v),
			SKU:           v.SKU,
			Color:         v.Color,
			ColorHex:      v.ColorHex,
			UnitOfMeasure: p.UnitOfMeasure,
			UnitPrice:     p.UnitPrice(v),
			Quantity:      line.Quantity,
		})
		reservations = append(reservations, models.StockReservation{
			ProductID:      p.ID,
			VariantID:      v.ID,
			Quantity:       line.Quantity,
			AllowBackorder: p.AllowBackorder,
		})
	}
	return reservations, nil
}

// afterStockChange invalidates cached products and alerts admins for
// products that just crossed into the low-stock band.
func (s *OrderService) afterStockChange(ctx context.Context, touched []models.Product, reservations []models.StockReservation) {
	reserved := make(map[string]int)
	for _, r := range reservations {
		reserved[r.ProductID] += r.Reserved
	}
	for i := range touched {
		p := touched[i]
		if s.cache != nil {
			if err := s.cache.Invalidate(ctx, p.ID, p.Slug); err != nil {
				log.Warn().Err(err).Str("product_id", p.ID).Msg("Failed to invalidate product cache")
			}
		}
		before := p.TotalStock + reserved[p.ID]
		if p.IsLowStock() && before > p.StockThreshold() && s.notifier != nil {
			s.notifier.LowStock(p)
		}
	}
}

// abandon cancels an unpaid order after the gateway could not be reached.
func (s *OrderService) abandon(ctx context.Context, order *models.Order, reason string) {
	changed, restocked, err := s.orders.Cancel(ctx, order.ID, []models.OrderStatus{models.OrderPending}, reason, true)
	if err != nil {
		log.Error().Err(err).Str("order_id", order.ID).Msg("Failed to cancel order after payment failure")
		return
	}
	if changed {
		now := s.now()
		order.Status = models.OrderCancelled
		order.Payment.Status = models.PaymentFailed
		order.CancelledAt = &now
		order.CancelReason = &reason
	}
	s.invalidateProducts(ctx, restocked)
}

func (s *OrderService) invalidateProducts(ctx context.Context, products []models.Product) {
	if s.cache == nil {
		return
	}
	for _, p := range products {
		if err := s.cache.Invalidate(ctx, p.ID, p.Slug); err != nil {
			log.Warn().Err(err).Str("product_id", p.ID).Msg("Failed to invalidate product cache")
		}
	}
}

// Get returns an order visible to the requester: their own, or any for admins.
func (s *OrderService) Get(ctx context.Context, id, requesterID string, isAdmin bool) (*models.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrOrderNotFound
		}
		return nil, err
	}
	if !isAdmin && o.CustomerID != requesterID {
		return nil, utils.ErrOrderNotFound
	}
	return o, nil
}

// List returns orders matching filter. Customers must set CustomerID.
func (s *OrderService) List(ctx context.Context, filter *models.OrderFilter) ([]models.Order, int, error) {
	filter.Page, filter.Limit = utils.NormalizePage(filter.Page, filter.Limit)
	return s.orders.List(ctx, filter)
}

// Cancel lets a customer cancel their own order while it is still awaiting payment.
func (s *OrderService) Cancel(ctx context.Context, id, requesterID string, isAdmin bool, reason string) (*models.Order, error) {
	o, err := s.Get(ctx, id, requesterID, isAdmin)
	if err != nil {
		return nil, err
	}
	if o.Status != models.OrderPending || o.Payment.Status == models.PaymentCompleted {
		return nil, utils.ErrInvalidTransition.WithMessage("Order can no longer be cancelled")
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "Cancelled by customer"
	}

	changed, restocked, err := s.orders.Cancel(ctx, o.ID, []models.OrderStatus{models.OrderPending}, reason, true)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, utils.ErrInvalidTransition.WithMessage("Order can no longer be cancelled")
	}
	s.invalidateProducts(ctx, restocked)
	log.Info().Str("order_id", o.ID).Str("by", requesterID).Msg("Order cancelled")
	return s.reload(ctx, o)
}

// UpdateStatus applies an admin fulfilment transition.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, req *UpdateStatusRequest) (*models.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrOrderNotFound
		}
		return nil, err
	}
	from := o.Status
	if !models.CanTransition(from, req.Status) {
		return nil, utils.ErrInvalidTransition.WithMessage("Cannot move order from %s to %s", from, req.Status)
	}

	if req.Status == models.OrderCancelled {
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			reason = "Cancelled by store"
		}
		changed, restocked, err := s.orders.Cancel(ctx, o.ID, []models.OrderStatus{from}, reason, false)
		if err != nil {
			return nil, err
		}
		if !changed {
			return nil, utils.Conflict("Order was modified concurrently, please retry")
		}
		s.invalidateProducts(ctx, restocked)
		return s.notifyStatus(ctx, o)
	}

	now := s.now()
	switch req.Status {
	case models.OrderProcessing:
		switch o.Payment.Method {
		case models.PaymentPaystack:
			if o.Payment.Status != models.PaymentCompleted {
				return nil, utils.ErrInvalidTransition.WithMessage("Order has not been paid")
			}
		case models.PaymentBankTransfer:
			// Moving a bank transfer order forward confirms the transfer was received.
			o.Payment.Status = models.PaymentCompleted
			o.Payment.PaidAt = &now
		}
	case models.OrderShipped:
		if req.TrackingNumber != "" {
			o.TrackingNumber = &req.TrackingNumber
		}
		if req.Carrier != "" {
			o.Carrier = &req.Carrier
		}
		o.ShippedAt = &now
		o.FulfillmentStatus = models.FulfillmentFulfilled
	case models.OrderDelivered:
		o.DeliveredAt = &now
		if o.Payment.Method == models.PaymentCashOnDelivery && o.Payment.Status != models.PaymentCompleted {
			o.Payment.Status = models.PaymentCompleted
			o.Payment.PaidAt = &now
		}
	case models.OrderRefunded:
		o.Payment.Status = models.PaymentRefunded
	}
	o.Status = req.Status

	ok, err := s.orders.UpdateStatus(ctx, o, from)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, utils.Conflict("Order was modified concurrently, please retry")
	}
	log.Info().Str("order_id", o.ID).Str("from", string(from)).Str("to", string(o.Status)).Msg("Order status updated")
	return s.notifyStatus(ctx, o)
}

func (s *OrderService) notifyStatus(ctx context.Context, o *models.Order) (*models.Order, error) {
	updated, err := s.reload(ctx, o)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.OrderStatusChanged(*updated)
	}
	return updated, nil
}

func (s *OrderService) reload(ctx context.Context, o *models.Order) (*models.Order, error) {
	updated, err := s.orders.GetByID(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func variantLabel(line OrderItemRequest) string {
	if line.SKU != "" {
		return "sku " + line.SKU
	}
	if line.Color != "" {
		return "color " + line.Color
	}
	return "an empty selection"
}

func maxLabel(m *int) string {
	if m == nil || *m <= 0 {
		return "unlimited"
	}
	return strconv.Itoa(*m)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
