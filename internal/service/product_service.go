package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/fabric_api/internal/models"
	"github.com/GTDGit/fabric_api/internal/repository"
	"github.com/GTDGit/fabric_api/internal/utils"
)

// ProductService provides catalog business logic.
type ProductService struct {
	products   ProductStore
	categories CategoryStore
	cache      ProductCache
	notifier   *NotificationService
	settings   *SettingsService
}

// NewProductService constructs a ProductService. cache may be nil.
func NewProductService(products ProductStore, categories CategoryStore, cache ProductCache, notifier *NotificationService) *ProductService {
	return &ProductService{products: products, categories: categories, cache: cache, notifier: notifier}
}

// UseStoreSettings makes the store's low-stock threshold the default for
// products that do not set their own.
func (s *ProductService) UseStoreSettings(settings *SettingsService) {
	s.settings = settings
}

// VariantRequest describes one color/SKU option.
type VariantRequest struct {
	ID          string           `json:"id"`
	SKU         string           `json:"sku" binding:"required,max=64"`
	Color       string           `json:"color" binding:"required,max=50"`
	ColorHex    string           `json:"colorHex" binding:"omitempty,hexcolor"`
	Images      []string         `json:"images"`
	Stock       int              `json:"stock" binding:"gte=0"`
	Price       *decimal.Decimal `json:"price"`
	IsAvailable *bool            `json:"isAvailable"`
}

// ProductRequest is the create/update payload. Variants replace the stored set.
type ProductRequest struct {
	Name              string                `json:"name" binding:"required,max=200"`
	Slug              string                `json:"slug"`
	Description       string                `json:"description" binding:"required"`
	CategoryID        *string               `json:"categoryId" binding:"omitempty,uuid"`
	ProductType       models.ProductType    `json:"productType" binding:"required,oneof=lace ankara aso_oke george silk cotton accessory other"`
	BasePrice         decimal.Decimal       `json:"basePrice"`
	SalePrice         *decimal.Decimal      `json:"salePrice"`
	CompareAtPrice    *decimal.Decimal      `json:"compareAtPrice"`
	UnitOfMeasure     models.UnitOfMeasure  `json:"unitOfMeasure" binding:"omitempty,oneof=yard meter piece set"`
	MinimumOrder      int                   `json:"minimumOrder" binding:"gte=0"`
	MaximumOrder      *int                  `json:"maximumOrder" binding:"omitempty,gte=1"`
	Images            []string              `json:"images"`
	Tags              []string              `json:"tags"`
	Specifications    models.Specifications `json:"specifications"`
	TotalStock        int                   `json:"totalStock" binding:"gte=0"`
	TrackInventory    *bool                 `json:"trackInventory"`
	AllowBackorder    bool                  `json:"allowBackorder"`
	LowStockThreshold int                   `json:"lowStockThreshold" binding:"gte=0"`
	Status            models.ProductStatus  `json:"status" binding:"omitempty,oneof=draft active archived out_of_stock"`
	IsPublished       bool                  `json:"isPublished"`
	IsFeatured        bool                  `json:"isFeatured"`
	Variants          []VariantRequest      `json:"variants" binding:"dive"`
}

type BulkPublishRequest struct {
	IDs       []string `json:"ids" binding:"required,min=1,dive,uuid"`
	Published bool     `json:"isPublished"`
}

type BulkStatusRequest struct {
	IDs    []string             `json:"ids" binding:"required,min=1,dive,uuid"`
	Status models.ProductStatus `json:"status" binding:"required,oneof=draft active archived out_of_stock"`
}

type StockCheckRequest struct {
	SKU      string `json:"sku"`
	Color    string `json:"color"`
	Quantity int    `json:"quantity" binding:"required,gte=1"`
}

// List returns a page of products. Public callers only see purchasable products.
func (s *ProductService) List(ctx context.Context, filter *models.ProductFilter) ([]models.Product, int, error) {
	filter.Page, filter.Limit = utils.NormalizePage(filter.Page, filter.Limit)
	return s.products.List(ctx, filter)
}

// GetPublic resolves an id or slug to a purchasable product, using the cache.
func (s *ProductService) GetPublic(ctx context.Context, idOrSlug string) (*models.Product, error) {
	_, parseErr := uuid.Parse(idOrSlug)
	byID := parseErr == nil

	if s.cache != nil {
		var cached *models.Product
		var err error
		if byID {
			cached, err = s.cache.GetByID(ctx, idOrSlug)
		} else {
			cached, err = s.cache.GetBySlug(ctx, idOrSlug)
		}
		if err == nil && cached.IsPurchasable() {
			return cached, nil
		}
	}

	var (
		p   *models.Product
		err error
	)
	if byID {
		p, err = s.products.GetByID(ctx, idOrSlug)
	} else {
		p, err = s.products.GetBySlug(ctx, idOrSlug)
	}
	if p, err = purchasable(p, err); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, p); err != nil {
			log.Warn().Err(err).Str("product_id", p.ID).Msg("Failed to cache product")
		}
	}
	return p, nil
}

// purchasable hides missing, draft and unpublished products behind the same 404.
func purchasable(p *models.Product, err error) (*models.Product, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	if !p.IsPurchasable() {
		return nil, utils.ErrProductNotFound
	}
	return p, nil
}

// Get returns any non-deleted product by id (admin view).
func (s *ProductService) Get(ctx context.Context, id string) (*models.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrProductNotFound
	}
	return p, err
}

func (s *ProductService) Create(ctx context.Context, req *ProductRequest) (*models.Product, error) {
	p := &models.Product{ID: uuid.NewString()}
	if err := s.apply(ctx, p, req); err != nil {
		return nil, err
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, translateProductError(err)
	}

	log.Info().Str("product_id", p.ID).Str("slug", p.Slug).Msg("Product created")
	s.afterWrite(ctx, p, "")
	return p, nil
}

func (s *ProductService) Update(ctx context.Context, id string, req *ProductRequest) (*models.Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	oldSlug := p.Slug
	if err := s.apply(ctx, p, req); err != nil {
		return nil, err
	}
	if err := s.products.Update(ctx, p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrProductNotFound
		}
		return nil, translateProductError(err)
	}

	s.afterWrite(ctx, p, oldSlug)
	return p, nil
}

// apply copies the request onto p and derives the stock fields.
func (s *ProductService) apply(ctx context.Context, p *models.Product, req *ProductRequest) error {
	if !req.BasePrice.IsPositive() {
		return utils.Validation([]utils.FieldError{{Field: "basePrice", Message: "must be greater than 0"}})
	}
	if req.SalePrice != nil && (req.SalePrice.IsNegative() || req.SalePrice.GreaterThan(req.BasePrice)) {
		return utils.Validation([]utils.FieldError{{Field: "salePrice", Message: "must be between 0 and basePrice"}})
	}
	if req.MaximumOrder != nil && req.MinimumOrder > *req.MaximumOrder {
		return utils.Validation([]utils.FieldError{{Field: "maximumOrder", Message: "must be greater than or equal to minimumOrder"}})
	}
	if req.CategoryID != nil && *req.CategoryID != "" {
		if _, err := s.categories.GetByID(ctx, *req.CategoryID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return utils.ErrCategoryNotFound
			}
			return err
		}
	}

	p.Name = strings.TrimSpace(req.Name)
	p.Slug = utils.Slugify(req.Slug)
	if p.Slug == "" {
		p.Slug = utils.Slugify(req.Name)
	}
	if p.Slug == "" {
		return utils.Validation([]utils.FieldError{{Field: "slug", Message: "is invalid"}})
	}
	p.Description = req.Description
	p.CategoryID = nil
	if req.CategoryID != nil && *req.CategoryID != "" {
		p.CategoryID = req.CategoryID
	}
	p.ProductType = req.ProductType
	p.BasePrice = req.BasePrice
	p.SalePrice = nullDecimal(req.SalePrice)
	p.CompareAtPrice = nullDecimal(req.CompareAtPrice)
	p.UnitOfMeasure = req.UnitOfMeasure
	if p.UnitOfMeasure == "" {
		p.UnitOfMeasure = models.UnitYard
	}
	p.MinimumOrder = req.MinimumOrder
	if p.MinimumOrder <= 0 {
		p.MinimumOrder = 1
	}
	p.MaximumOrder = req.MaximumOrder
	p.Images = pq.StringArray(nonNil(req.Images))
	p.Tags = pq.StringArray(nonNil(req.Tags))
	p.Specifications = req.Specifications
	p.TrackInventory = true
	if req.TrackInventory != nil {
		p.TrackInventory = *req.TrackInventory
	}
	p.AllowBackorder = req.AllowBackorder
	p.LowStockThreshold = req.LowStockThreshold
	if p.LowStockThreshold == 0 && s.settings != nil {
		p.LowStockThreshold = s.settings.Get().Store.LowStockThreshold
	}
	p.Status = req.Status
	if p.Status == "" {
		p.Status = models.ProductDraft
	}
	p.IsPublished = req.IsPublished
	p.IsFeatured = req.IsFeatured

	seen := make(map[string]bool, len(req.Variants))
	existing := make(map[string]bool, len(p.Variants))
	for _, v := range p.Variants {
		existing[v.ID] = true
	}
	variants := make([]models.Variant, 0, len(req.Variants))
	for _, vr := range req.Variants {
		sku := strings.ToUpper(strings.TrimSpace(vr.SKU))
		if seen[sku] {
			return utils.ErrSKUExists.WithMessage("Duplicate SKU %s in request", sku)
		}
		seen[sku] = true

		v := models.Variant{
			ID:          vr.ID,
			ProductID:   p.ID,
			SKU:         sku,
			Color:       strings.TrimSpace(vr.Color),
			ColorHex:    vr.ColorHex,
			Images:      pq.StringArray(nonNil(vr.Images)),
			Stock:       vr.Stock,
			Price:       nullDecimal(vr.Price),
			IsAvailable: true,
		}
		if v.ID == "" || !existing[v.ID] {
			v.ID = uuid.NewString()
		}
		if vr.IsAvailable != nil {
			v.IsAvailable = *vr.IsAvailable
		}
		variants = append(variants, v)
	}
	p.Variants = variants

	p.TotalStock = req.TotalStock
	p.RecomputeTotalStock()
	return nil
}

// afterWrite drops stale cache entries and raises the low-stock alert.
func (s *ProductService) afterWrite(ctx context.Context, p *models.Product, oldSlug string) {
	s.invalidate(ctx, p.ID, p.Slug)
	if oldSlug != "" && oldSlug != p.Slug {
		s.invalidate(ctx, p.ID, oldSlug)
	}
	if p.IsLowStock() && s.notifier != nil {
		s.notifier.LowStock(*p)
	}
}

func (s *ProductService) invalidate(ctx context.Context, id, slug string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id, slug); err != nil {
		log.Warn().Err(err).Str("product_id", id).Msg("Failed to invalidate product cache")
	}
}

// Delete soft-deletes a product.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	ok, err := s.products.SoftDelete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return utils.ErrProductNotFound
	}
	s.invalidate(ctx, p.ID, p.Slug)
	return nil
}

func (s *ProductService) BulkPublish(ctx context.Context, req *BulkPublishRequest) (int64, error) {
	n, err := s.products.BulkPublish(ctx, req.IDs, req.Published)
	if err != nil {
		return 0, err
	}
	for _, id := range req.IDs {
		s.invalidate(ctx, id, "")
	}
	return n, nil
}

func (s *ProductService) BulkStatus(ctx context.Context, req *BulkStatusRequest) (int64, error) {
	n, err := s.products.BulkStatus(ctx, req.IDs, req.Status)
	if err != nil {
		return 0, err
	}
	for _, id := range req.IDs {
		s.invalidate(ctx, id, "")
	}
	return n, nil
}

func (s *ProductService) FilterOptions(ctx context.Context) (*models.FilterOptions, error) {
	return s.products.FilterOptions(ctx)
}

// CheckStock reports whether a quantity of a variant can be ordered now.
func (s *ProductService) CheckStock(ctx context.Context, productID string, req *StockCheckRequest) (*models.StockCheck, error) {
	p, err := purchasable(s.products.GetByID(ctx, productID))
	if err != nil {
		return nil, err
	}
	out := &models.StockCheck{
		ProductID:   p.ID,
		VariantSKU:  req.SKU,
		Color:       req.Color,
		Requested:   req.Quantity,
		Available:   p.TotalStock,
		Purchasable: p.IsPurchasable(),
		Backorder:   p.AllowBackorder,
	}

	var v *models.Variant
	if req.SKU != "" || req.Color != "" {
		if v = p.FindVariant(req.SKU, req.Color); v == nil {
			return nil, utils.ErrVariantNotFound
		}
		out.VariantSKU, out.Color, out.Available = v.SKU, v.Color, v.Stock
		out.Purchasable = out.Purchasable && v.IsAvailable
	}

	switch {
	case !out.Purchasable || !p.CheckQuantity(req.Quantity):
		out.InStock = false
	case !p.TrackInventory || p.AllowBackorder:
		out.InStock = true
	default:
		out.InStock = out.Available >= req.Quantity
	}
	return out, nil
}

func translateProductError(err error) error {
	switch {
	case repository.IsUniqueViolation(err, "sku"):
		return utils.ErrSKUExists
	case repository.IsUniqueViolation(err, "slug"):
		return utils.ErrSlugExists
	}
	return err
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
