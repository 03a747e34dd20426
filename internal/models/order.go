package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string
type FulfillmentStatus string
type PaymentMethod string
type PaymentStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
)

const (
	FulfillmentUnfulfilled FulfillmentStatus = "unfulfilled"
	FulfillmentFulfilled   FulfillmentStatus = "fulfilled"
)

const (
	PaymentPaystack       PaymentMethod = "paystack"
	PaymentBankTransfer   PaymentMethod = "bank_transfer"
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
)

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

// DefaultCurrency is the store currency; amounts are sent to the gateway in kobo.
const DefaultCurrency = "NGN"

var (
	ErrOrderNumberAssigned = errors.New("order number already assigned")
	ErrTotalMismatch       = errors.New("order total does not equal subtotal + shipping + tax - discount")
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered},
	OrderDelivered:  {OrderRefunded},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Address is the shipping/billing value object stored as JSONB.
type Address struct {
	FullName   string `json:"fullName" binding:"required"`
	Phone      string `json:"phone" binding:"required"`
	Email      string `json:"email,omitempty"`
	Street     string `json:"street" binding:"required"`
	City       string `json:"city" binding:"required"`
	State      string `json:"state" binding:"required"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country"`
}

func (a *Address) Scan(src any) error { return scanJSON(src, a) }

func (a Address) Value() (driver.Value, error) { return valueJSON(a) }

// Payment is the payment record embedded in an order.
type Payment struct {
	Method           PaymentMethod   `db:"method" json:"method"`
	Reference        string          `db:"reference" json:"reference"`
	TransactionID    *string         `db:"transaction_id" json:"transactionId,omitempty"`
	Status           PaymentStatus   `db:"status" json:"status"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	Currency         string          `db:"currency" json:"currency"`
	PaidAt           *time.Time      `db:"paid_at" json:"paidAt,omitempty"`
	AuthorizationURL *string         `db:"authorization_url" json:"authorizationUrl,omitempty"`
}

// IsFinal reports whether the payment can no longer change through verification.
func (p Payment) IsFinal() bool {
	return p.Status == PaymentCompleted || p.Status == PaymentFailed || p.Status == PaymentRefunded
}

// OrderItem is an immutable snapshot of a purchased line.
type OrderItem struct {
	ID            string          `db:"id" json:"id"`
	OrderID       string          `db:"order_id" json:"-"`
	ProductID     string          `db:"product_id" json:"productId"`
	VariantID     string          `db:"variant_id" json:"variantId"`
	Name          string          `db:"name" json:"name"`
	Image         string          `db:"image" json:"image"`
	SKU           string          `db:"sku" json:"sku"`
	Color         string          `db:"color" json:"color"`
	ColorHex      string          `db:"color_hex" json:"colorHex"`
	UnitOfMeasure UnitOfMeasure   `db:"unit_of_measure" json:"unitOfMeasure"`
	UnitPrice     decimal.Decimal `db:"unit_price" json:"unitPrice"`
	Quantity      int             `db:"quantity" json:"quantity"`
	LineTotal     decimal.Decimal `db:"line_total" json:"lineTotal"`

	ReservedQuantity int `db:"reserved_quantity" json:"-"`
}

// Order is a purchase record.
type Order struct {
	ID                string            `db:"id" json:"id"`
	OrderNumber       string            `db:"order_number" json:"orderNumber"`
	CustomerID        string            `db:"customer_id" json:"customerId"`
	CustomerEmail     string            `db:"customer_email" json:"customerEmail"`
	ClientReference   *string           `db:"client_reference" json:"clientReference,omitempty"`
	Items             []OrderItem       `db:"-" json:"items"`
	Subtotal          decimal.Decimal   `db:"subtotal" json:"subtotal"`
	ShippingCost      decimal.Decimal   `db:"shipping_cost" json:"shippingCost"`
	Tax               decimal.Decimal   `db:"tax" json:"tax"`
	Discount          decimal.Decimal   `db:"discount" json:"discount"`
	Total             decimal.Decimal   `db:"total" json:"total"`
	Currency          string            `db:"currency" json:"currency"`
	ShippingAddress   Address           `db:"shipping_address" json:"shippingAddress"`
	BillingAddress    Address           `db:"billing_address" json:"billingAddress"`
	Payment           Payment           `db:"payment" json:"payment"`
	Status            OrderStatus       `db:"status" json:"status"`
	FulfillmentStatus FulfillmentStatus `db:"fulfillment_status" json:"fulfillmentStatus"`
	TrackingNumber    *string           `db:"tracking_number" json:"trackingNumber,omitempty"`
	Carrier           *string           `db:"carrier" json:"carrier,omitempty"`
	ShippedAt         *time.Time        `db:"shipped_at" json:"shippedAt,omitempty"`
	DeliveredAt       *time.Time        `db:"delivered_at" json:"deliveredAt,omitempty"`
	CancelledAt       *time.Time        `db:"cancelled_at" json:"cancelledAt,omitempty"`
	CancelReason      *string           `db:"cancel_reason" json:"cancelReason,omitempty"`
	Notes             *string           `db:"notes" json:"notes,omitempty"`
	CreatedAt         time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updatedAt"`
}

// FormatOrderNumber renders ORD-YYYYMMDD-NNNN.
func FormatOrderNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("ORD-%s-%04d", day.Format("20060102"), seq)
}

// OrderCounterKey is the counter row that scopes sequences to one calendar day.
func OrderCounterKey(day time.Time) string {
	return "order-" + day.Format("20060102")
}

// AssignNumber sets the order number; it may only happen once.
func (o *Order) AssignNumber(day time.Time, seq int64) error {
	if o.OrderNumber != "" {
		return ErrOrderNumberAssigned
	}
	o.OrderNumber = FormatOrderNumber(day, seq)
	return nil
}

// ComputeTotals derives subtotal from the line totals and total from the
// pricing breakdown.
func (o *Order) ComputeTotals() {
	subtotal := decimal.Zero
	for i := range o.Items {
		it := &o.Items[i]
		it.LineTotal = it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		subtotal = subtotal.Add(it.LineTotal)
	}
	o.Subtotal = subtotal
	o.Total = o.Subtotal.Add(o.ShippingCost).Add(o.Tax).Sub(o.Discount)
}

// ValidateTotals enforces total == subtotal + shipping + tax - discount.
func (o *Order) ValidateTotals() error {
	want := o.Subtotal.Add(o.ShippingCost).Add(o.Tax).Sub(o.Discount)
	if !o.Total.Equal(want) || o.Total.IsNegative() {
		return ErrTotalMismatch
	}
	return nil
}

// Reservations lists the stock held by this order's items.
func (o *Order) Reservations() []StockReservation {
	out := make([]StockReservation, 0, len(o.Items))
	for _, it := range o.Items {
		out = append(out, StockReservation{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			Reserved:  it.ReservedQuantity,
		})
	}
	return out
}

// ContainsProduct reports whether any line references productID.
func (o *Order) ContainsProduct(productID string) bool {
	for _, it := range o.Items {
		if it.ProductID == productID {
			return true
		}
	}
	return false
}

// ToMinorUnits converts a naira amount to kobo.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// OrderFilter carries admin and customer order listing filters.
type OrderFilter struct {
	CustomerID    string
	Status        string
	PaymentStatus string
	Search        string
	Page          int
	Limit         int
}
