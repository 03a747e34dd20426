package models

import (
	"database/sql/driver"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type ProductStatus string
type ProductType string
type UnitOfMeasure string

const (
	ProductDraft      ProductStatus = "draft"
	ProductActive     ProductStatus = "active"
	ProductArchived   ProductStatus = "archived"
	ProductOutOfStock ProductStatus = "out_of_stock"
)

const (
	TypeLace      ProductType = "lace"
	TypeAnkara    ProductType = "ankara"
	TypeAsoOke    ProductType = "aso_oke"
	TypeGeorge    ProductType = "george"
	TypeSilk      ProductType = "silk"
	TypeCotton    ProductType = "cotton"
	TypeAccessory ProductType = "accessory"
	TypeOther     ProductType = "other"
)

const (
	UnitYard  UnitOfMeasure = "yard"
	UnitMeter UnitOfMeasure = "meter"
	UnitPiece UnitOfMeasure = "piece"
	UnitSet   UnitOfMeasure = "set"
)

// DefaultLowStockThreshold applies when a product does not set its own.
const DefaultLowStockThreshold = 10

// Specifications is the bounded set of fabric attributes stored as JSONB.
type Specifications struct {
	Material    string `json:"material,omitempty"`
	Composition string `json:"composition,omitempty"`
	Width       string `json:"width,omitempty"`
	Weight      string `json:"weight,omitempty"`
	Pattern     string `json:"pattern,omitempty"`
	Origin      string `json:"origin,omitempty"`
	Care        string `json:"care,omitempty"`
}

func (s *Specifications) Scan(src any) error { return scanJSON(src, s) }

func (s Specifications) Value() (driver.Value, error) { return valueJSON(s) }

// Variant is a purchasable color/SKU option of a product. It only exists as
// part of its parent product and is written together with it.
type Variant struct {
	ID          string              `db:"id" json:"id"`
	ProductID   string              `db:"product_id" json:"-"`
	SKU         string              `db:"sku" json:"sku"`
	Color       string              `db:"color" json:"color"`
	ColorHex    string              `db:"color_hex" json:"colorHex"`
	Images      pq.StringArray      `db:"images" json:"images"`
	Stock       int                 `db:"stock" json:"stock"`
	Price       decimal.NullDecimal `db:"price" json:"price"`
	IsAvailable bool                `db:"is_available" json:"isAvailable"`
	Position    int                 `db:"position" json:"-"`
}

// Product is a catalog entry.
type Product struct {
	ID                string              `db:"id" json:"id"`
	Name              string              `db:"name" json:"name"`
	Slug              string              `db:"slug" json:"slug"`
	Description       string              `db:"description" json:"description"`
	CategoryID        *string             `db:"category_id" json:"categoryId"`
	ProductType       ProductType         `db:"product_type" json:"productType"`
	BasePrice         decimal.Decimal     `db:"base_price" json:"basePrice"`
	SalePrice         decimal.NullDecimal `db:"sale_price" json:"salePrice"`
	CompareAtPrice    decimal.NullDecimal `db:"compare_at_price" json:"compareAtPrice"`
	UnitOfMeasure     UnitOfMeasure       `db:"unit_of_measure" json:"unitOfMeasure"`
	MinimumOrder      int                 `db:"minimum_order" json:"minimumOrder"`
	MaximumOrder      *int                `db:"maximum_order" json:"maximumOrder,omitempty"`
	Images            pq.StringArray      `db:"images" json:"images"`
	Tags              pq.StringArray      `db:"tags" json:"tags"`
	Specifications    Specifications      `db:"specifications" json:"specifications"`
	TotalStock        int                 `db:"total_stock" json:"totalStock"`
	TrackInventory    bool                `db:"track_inventory" json:"trackInventory"`
	AllowBackorder    bool                `db:"allow_backorder" json:"allowBackorder"`
	LowStockThreshold int                 `db:"low_stock_threshold" json:"lowStockThreshold"`
	Status            ProductStatus       `db:"status" json:"status"`
	IsPublished       bool                `db:"is_published" json:"isPublished"`
	IsFeatured        bool                `db:"is_featured" json:"isFeatured"`
	AverageRating     float64             `db:"average_rating" json:"averageRating"`
	ReviewCount       int                 `db:"review_count" json:"reviewCount"`
	DeletedAt         *time.Time          `db:"deleted_at" json:"deletedAt,omitempty"`
	CreatedAt         time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time           `db:"updated_at" json:"updatedAt"`
	Variants          []Variant           `db:"-" json:"variants"`
}

// RecomputeTotalStock derives TotalStock from the variants and keeps the
// active/out_of_stock status in line with it for tracked inventory.
func (p *Product) RecomputeTotalStock() {
	if len(p.Variants) > 0 {
		total := 0
		for _, v := range p.Variants {
			total += v.Stock
		}
		p.TotalStock = total
	}

	if !p.TrackInventory || p.AllowBackorder {
		return
	}
	switch {
	case p.TotalStock <= 0 && p.Status == ProductActive:
		p.Status = ProductOutOfStock
	case p.TotalStock > 0 && p.Status == ProductOutOfStock:
		p.Status = ProductActive
	}
}

// IsPurchasable reports whether the product may be listed publicly and ordered.
func (p *Product) IsPurchasable() bool {
	return p.Status == ProductActive && p.IsPublished && p.DeletedAt == nil
}

// StockThreshold returns the effective low-stock threshold.
func (p *Product) StockThreshold() int {
	if p.LowStockThreshold > 0 {
		return p.LowStockThreshold
	}
	return DefaultLowStockThreshold
}

// IsLowStock reports 0 < totalStock <= threshold for tracked products.
func (p *Product) IsLowStock() bool {
	return p.TrackInventory && p.TotalStock > 0 && p.TotalStock <= p.StockThreshold()
}

// FindVariant locates a variant by SKU, or by color when sku is empty.
func (p *Product) FindVariant(sku, color string) *Variant {
	for i := range p.Variants {
		v := &p.Variants[i]
		if sku != "" {
			if strings.EqualFold(v.SKU, sku) {
				return v
			}
			continue
		}
		if color != "" && strings.EqualFold(v.Color, color) {
			return v
		}
	}
	return nil
}

// UnitPrice is the price charged for one unit of the variant: the variant
// override, else the sale price when it undercuts the base price, else base.
func (p *Product) UnitPrice(v *Variant) decimal.Decimal {
	if v != nil && v.Price.Valid && v.Price.Decimal.IsPositive() {
		return v.Price.Decimal
	}
	if p.SalePrice.Valid && p.SalePrice.Decimal.IsPositive() && p.SalePrice.Decimal.LessThan(p.BasePrice) {
		return p.SalePrice.Decimal
	}
	return p.BasePrice
}

// PrimaryImage returns the first variant image, falling back to the product's.
func (p *Product) PrimaryImage(v *Variant) string {
	if v != nil && len(v.Images) > 0 {
		return v.Images[0]
	}
	if len(p.Images) > 0 {
		return p.Images[0]
	}
	return ""
}

// CheckQuantity validates an order quantity against the min/max bounds.
func (p *Product) CheckQuantity(qty int) bool {
	minimum := p.MinimumOrder
	if minimum <= 0 {
		minimum = 1
	}
	if qty < minimum {
		return false
	}
	if p.MaximumOrder != nil && *p.MaximumOrder > 0 && qty > *p.MaximumOrder {
		return false
	}
	return true
}

// StockReservation is one variant stock decrement taken at order placement.
// Reserved is what actually left the shelf; a backorder can ask for more
// than is on hand.
type StockReservation struct {
	ProductID      string
	VariantID      string
	Quantity       int
	Reserved       int
	AllowBackorder bool
}

// Take reserves from a variant holding stock units and returns the stock
// left behind.
func (r *StockReservation) Take(stock int) int {
	r.Reserved = max(min(stock, r.Quantity), 0)
	return stock - r.Reserved
}

// ProductFilter carries public and admin listing filters.
type ProductFilter struct {
	CategoryID  string
	ProductType string
	Color       string
	Status      string
	Search      string
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	Featured    *bool
	Published   *bool
	PublicOnly  bool
	LowStock    bool
	Sort        string
	Page        int
	Limit       int
}

// FilterOptions lists the facets available to the storefront filters.
type FilterOptions struct {
	Colors       []ColorOption   `json:"colors"`
	ProductTypes []string        `json:"productTypes"`
	Categories   []Category      `json:"categories"`
	MinPrice     decimal.Decimal `json:"minPrice"`
	MaxPrice     decimal.Decimal `json:"maxPrice"`
}

type ColorOption struct {
	Color    string `db:"color" json:"color"`
	ColorHex string `db:"color_hex" json:"colorHex"`
	Count    int    `db:"count" json:"count"`
}

// StockCheck is the answer to a storefront stock query.
type StockCheck struct {
	ProductID   string `json:"productId"`
	VariantSKU  string `json:"sku,omitempty"`
	Color       string `json:"color,omitempty"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
	InStock     bool   `json:"inStock"`
	Backorder   bool   `json:"backorder"`
	Purchasable bool   `json:"purchasable"`
}
