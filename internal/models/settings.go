package models

import (
	"database/sql/driver"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultShippingCost applies when no flat rate is configured.
var DefaultShippingCost = decimal.NewFromInt(1500)

// StoreSettings is general store information.
type StoreSettings struct {
	Name              string  `json:"name" binding:"required"`
	Email             string  `json:"email" binding:"omitempty,email"`
	Phone             string  `json:"phone"`
	Address           string  `json:"address"`
	Currency          string  `json:"currency"`
	LogoURL           *string `json:"logoUrl,omitempty"`
	LowStockThreshold int     `json:"lowStockThreshold" binding:"gte=0"`
}

func (s *StoreSettings) Scan(src any) error { return scanJSON(src, s) }

func (s StoreSettings) Value() (driver.Value, error) { return valueJSON(s) }

// ShippingSettings holds the flat-rate shipping policy.
type ShippingSettings struct {
	FlatRate              decimal.Decimal     `json:"flatRate"`
	FreeShippingThreshold decimal.NullDecimal `json:"freeShippingThreshold"`
	EstimatedDelivery     string              `json:"estimatedDelivery"`
}

func (s *ShippingSettings) Scan(src any) error { return scanJSON(src, s) }

func (s ShippingSettings) Value() (driver.Value, error) { return valueJSON(s) }

// CostFor returns the shipping cost for an order subtotal.
func (s ShippingSettings) CostFor(subtotal decimal.Decimal) decimal.Decimal {
	if s.FreeShippingThreshold.Valid && s.FreeShippingThreshold.Decimal.IsPositive() &&
		subtotal.GreaterThanOrEqual(s.FreeShippingThreshold.Decimal) {
		return decimal.Zero
	}
	if s.FlatRate.IsNegative() {
		return DefaultShippingCost
	}
	return s.FlatRate
}

// BankDetails is shown to customers paying by bank transfer.
type BankDetails struct {
	BankName      string `json:"bankName"`
	AccountName   string `json:"accountName"`
	AccountNumber string `json:"accountNumber"`
}

// PaymentSettings controls which payment methods checkout offers.
type PaymentSettings struct {
	EnabledMethods []PaymentMethod `json:"enabledMethods"`
	BankTransfer   BankDetails     `json:"bankTransfer"`
}

func (s *PaymentSettings) Scan(src any) error { return scanJSON(src, s) }

func (s PaymentSettings) Value() (driver.Value, error) { return valueJSON(s) }

// IsEnabled reports whether checkout accepts m.
func (s PaymentSettings) IsEnabled(m PaymentMethod) bool {
	for _, e := range s.EnabledMethods {
		if e == m {
			return true
		}
	}
	return false
}

// Settings is the store configuration aggregate (single row).
type Settings struct {
	Store     StoreSettings    `db:"store" json:"store"`
	Shipping  ShippingSettings `db:"shipping" json:"shipping"`
	Payment   PaymentSettings  `db:"payment" json:"payment"`
	UpdatedAt time.Time        `db:"updated_at" json:"updatedAt"`
}

// DefaultSettings is written once at bootstrap when no row exists.
func DefaultSettings() Settings {
	return Settings{
		Store: StoreSettings{
			Name:              "Fabric Store",
			Currency:          DefaultCurrency,
			LowStockThreshold: DefaultLowStockThreshold,
		},
		Shipping: ShippingSettings{
			FlatRate: DefaultShippingCost,
		},
		Payment: PaymentSettings{
			EnabledMethods: []PaymentMethod{PaymentPaystack},
		},
	}
}

// PublicSettings is the storefront-safe projection.
type PublicSettings struct {
	StoreName      string           `json:"storeName"`
	Email          string           `json:"email"`
	Phone          string           `json:"phone"`
	Address        string           `json:"address"`
	Currency       string           `json:"currency"`
	LogoURL        *string          `json:"logoUrl,omitempty"`
	Shipping       ShippingSettings `json:"shipping"`
	PaymentMethods []PaymentMethod  `json:"paymentMethods"`
	BankTransfer   *BankDetails     `json:"bankTransfer,omitempty"`
}

// Public projects settings for anonymous storefront use.
func (s Settings) Public() PublicSettings {
	p := PublicSettings{
		StoreName:      s.Store.Name,
		Email:          s.Store.Email,
		Phone:          s.Store.Phone,
		Address:        s.Store.Address,
		Currency:       s.Store.Currency,
		LogoURL:        s.Store.LogoURL,
		Shipping:       s.Shipping,
		PaymentMethods: s.Payment.EnabledMethods,
	}
	if s.Payment.IsEnabled(PaymentBankTransfer) {
		bt := s.Payment.BankTransfer
		p.BankTransfer = &bt
	}
	return p
}
