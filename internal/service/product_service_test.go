package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/fabric_api/internal/models"
	"github.com/GTDGit/fabric_api/internal/utils"
)

type memoryCache struct {
	mu          sync.Mutex
	byID        map[string]*models.Product
	invalidated []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{byID: make(map[string]*models.Product)}
}

func (c *memoryCache) GetByID(_ context.Context, id string) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cloneProduct(p), nil
}

func (c *memoryCache) GetBySlug(_ context.Context, slug string) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.byID {
		if p.Slug == slug {
			return cloneProduct(p), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (c *memoryCache) Set(_ context.Context, p *models.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[p.ID] = cloneProduct(p)
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, id, slug string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byID, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

type catalogFixture struct {
	svc        *ProductService
	products   *fakeProducts
	categories *fakeCategories
	cache      *memoryCache
	notifs     *fakeNotifications
}

func newCatalogFixture(products ...*models.Product) *catalogFixture {
	admin := &models.User{ID: uuid.NewString(), Email: "admin@example.com", Role: models.RoleAdmin, IsActive: true}
	f := &catalogFixture{
		products:   newFakeProducts(products...),
		categories: newFakeCategories(),
		cache:      newMemoryCache(),
		notifs:     &fakeNotifications{},
	}
	notifier := NewNotificationService(f.notifs, newFakeUsers(admin), nil, &recordingMailer{}, nil)
	f.svc = NewProductService(f.products, f.categories, f.cache, notifier)
	return f
}

func ankaraRequest(stock int) *ProductRequest {
	return &ProductRequest{
		Name:        "Ankara Sunrise",
		Description: "Bright wax print",
		ProductType: models.TypeAnkara,
		BasePrice:   decimal.NewFromInt(3500),
		Status:      models.ProductActive,
		IsPublished: true,
		Variants: []VariantRequest{
			{SKU: "ank-sun-yel", Color: "Yellow", Stock: stock},
			{SKU: "ank-sun-blu", Color: "Blue", Stock: stock},
		},
	}
}

func TestCreateProductDefaults(t *testing.T) {
	f := newCatalogFixture()
	p, err := f.svc.Create(context.Background(), &ProductRequest{
		Name:        "Plain Cotton",
		Description: "Soft",
		ProductType: models.TypeCotton,
		BasePrice:   decimal.NewFromInt(1200),
		Variants:    []VariantRequest{{SKU: "cot-wht", Color: "White", Stock: 50}},
	})
	require.NoError(t, err)

	assert.Equal(t, "plain-cotton", p.Slug)
	assert.Equal(t, models.ProductDraft, p.Status)
	assert.Equal(t, models.UnitYard, p.UnitOfMeasure)
	assert.Equal(t, 1, p.MinimumOrder)
	assert.True(t, p.TrackInventory)
	assert.Equal(t, 50, p.TotalStock)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, "COT-WHT", p.Variants[0].SKU)
	assert.True(t, p.Variants[0].IsAvailable)
	assert.NotEmpty(t, p.Variants[0].ID)
	assert.False(t, p.IsPurchasable(), "draft products are hidden")
}

func TestCreateProductValidation(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()

	req := ankaraRequest(20)
	req.BasePrice = decimal.Zero
	_, err := f.svc.Create(ctx, req)
	assert.Equal(t, 400, utils.AsAppError(err).StatusCode)

	req = ankaraRequest(20)
	sale := decimal.NewFromInt(4000)
	req.SalePrice = &sale
	_, err = f.svc.Create(ctx, req)
	assert.Equal(t, 400, utils.AsAppError(err).StatusCode)

	req = ankaraRequest(20)
	req.Variants[1].SKU = "ANK-SUN-YEL"
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, utils.ErrSKUExists)

	req = ankaraRequest(20)
	missing := uuid.NewString()
	req.CategoryID = &missing
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, utils.ErrCategoryNotFound)
}

func TestCreateProductUniqueness(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()
	_, err := f.svc.Create(ctx, ankaraRequest(20))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, ankaraRequest(20))
	assert.Error(t, err)
	assert.Equal(t, 409, utils.AsAppError(err).StatusCode)

	req := ankaraRequest(20)
	req.Name = "Ankara Sunset"
	req.Variants = []VariantRequest{{SKU: "ANK-SUN-BLU", Color: "Blue", Stock: 3}}
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, utils.ErrSKUExists)
}

func TestCreateLowStockProductAlertsAdmins(t *testing.T) {
	f := newCatalogFixture()
	_, err := f.svc.Create(context.Background(), ankaraRequest(2))
	require.NoError(t, err)

	low := f.notifs.ofType(models.NotificationLowStock)
	require.Len(t, low, 1)
	require.NotNil(t, low[0].Data.TotalStock)
	assert.Equal(t, 4, *low[0].Data.TotalStock)
	require.NotNil(t, low[0].Data.Threshold)
	assert.Equal(t, 10, *low[0].Data.Threshold)
}

func TestCreateProductUsesStoreThreshold(t *testing.T) {
	f := newCatalogFixture()
	settings := NewSettingsService(&fakeSettings{})
	ctx := context.Background()
	require.NoError(t, settings.Bootstrap(ctx))
	_, err := settings.UpdateStore(ctx, models.StoreSettings{Name: "Fabric House", LowStockThreshold: 25})
	require.NoError(t, err)
	f.svc.UseStoreSettings(settings)

	p, err := f.svc.Create(ctx, ankaraRequest(10))
	require.NoError(t, err)
	assert.Equal(t, 25, p.LowStockThreshold)

	low := f.notifs.ofType(models.NotificationLowStock)
	require.Len(t, low, 1)
	assert.Equal(t, 25, *low[0].Data.Threshold)

	req := ankaraRequest(10)
	req.Name = "Ankara Dusk"
	req.Variants[0].SKU, req.Variants[1].SKU = "ank-dsk-yel", "ank-dsk-blu"
	req.LowStockThreshold = 5
	p, err = f.svc.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 5, p.LowStockThreshold)
}

func TestUpdateProductKeepsVariantIDs(t *testing.T) {
	f := newCatalogFixture()
	ctx := context.Background()
	p, err := f.svc.Create(ctx, ankaraRequest(20))
	require.NoError(t, err)
	keep := p.Variants[0].ID

	req := ankaraRequest(20)
	req.Name = "Ankara Sunrise Deluxe"
	req.Slug = "ankara-sunrise-deluxe"
	req.Variants = []VariantRequest{{ID: keep, SKU: "ank-sun-yel", Color: "Yellow", Stock: 7}, {ID: "bogus", SKU: "ank-sun-grn", Color: "Green", Stock: 5}}
	updated, err := f.svc.Update(ctx, p.ID, req)
	require.NoError(t, err)

	assert.Equal(t, "ankara-sunrise-deluxe", updated.Slug)
	require.Len(t, updated.Variants, 2)
	assert.Equal(t, keep, updated.Variants[0].ID)
	assert.NotEqual(t, "bogus", updated.Variants[1].ID)
	assert.Equal(t, 12, updated.TotalStock)
	assert.Contains(t, f.cache.invalidated, p.ID)
}

func TestGetPublicHidesUnpurchasable(t *testing.T) {
	lace := laceProduct(5)
	draft := laceProduct(5)
	draft.Slug = "lace-draft"
	draft.Variants[0].SKU = "LACE-DRAFT"
	draft.Status = models.ProductDraft
	f := newCatalogFixture(lace, draft)
	ctx := context.Background()

	p, err := f.svc.GetPublic(ctx, "lace-a")
	require.NoError(t, err)
	assert.Equal(t, lace.ID, p.ID)

	cached, err := f.cache.GetByID(ctx, lace.ID)
	require.NoError(t, err)
	assert.Equal(t, "lace-a", cached.Slug)

	_, err = f.svc.GetPublic(ctx, draft.ID)
	assert.ErrorIs(t, err, utils.ErrProductNotFound)

	require.NoError(t, f.svc.Delete(ctx, lace.ID))
	_, err = f.svc.GetPublic(ctx, lace.ID)
	assert.ErrorIs(t, err, utils.ErrProductNotFound)
	_, err = f.svc.Get(ctx, lace.ID)
	assert.ErrorIs(t, err, utils.ErrProductNotFound)
}

func TestBulkPublishInvalidatesCache(t *testing.T) {
	lace := laceProduct(5)
	f := newCatalogFixture(lace)
	ctx := context.Background()
	_, err := f.svc.GetPublic(ctx, lace.ID)
	require.NoError(t, err)

	n, err := f.svc.BulkPublish(ctx, &BulkPublishRequest{IDs: []string{lace.ID}, Published: false})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.svc.GetPublic(ctx, lace.ID)
	assert.ErrorIs(t, err, utils.ErrProductNotFound)
}

func TestCheckStock(t *testing.T) {
	lace := laceProduct(5)
	f := newCatalogFixture(lace)
	ctx := context.Background()

	out, err := f.svc.CheckStock(ctx, lace.ID, &StockCheckRequest{Color: "red", Quantity: 5})
	require.NoError(t, err)
	assert.True(t, out.InStock)
	assert.Equal(t, 5, out.Available)
	assert.Equal(t, "LACE-A-RED", out.VariantSKU)

	out, err = f.svc.CheckStock(ctx, lace.ID, &StockCheckRequest{Color: "Red", Quantity: 6})
	require.NoError(t, err)
	assert.False(t, out.InStock)

	_, err = f.svc.CheckStock(ctx, lace.ID, &StockCheckRequest{Color: "Purple", Quantity: 1})
	assert.ErrorIs(t, err, utils.ErrVariantNotFound)

	f.products.products[lace.ID].AllowBackorder = true
	out, err = f.svc.CheckStock(ctx, lace.ID, &StockCheckRequest{SKU: "lace-a-red", Quantity: 60})
	require.NoError(t, err)
	assert.True(t, out.InStock)
}

func TestCheckStockHidesUnlistedProducts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *models.Product)
	}{
		{"draft", func(p *models.Product) { p.Status = models.ProductDraft }},
		{"unpublished", func(p *models.Product) { p.IsPublished = false }},
		{"deleted", func(p *models.Product) { now := time.Now(); p.DeletedAt = &now }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lace := laceProduct(5)
			f := newCatalogFixture(lace)
			tt.mutate(f.products.products[lace.ID])

			out, err := f.svc.CheckStock(context.Background(), lace.ID, &StockCheckRequest{Color: "Red", Quantity: 1})
			assert.Nil(t, out)
			assert.ErrorIs(t, err, utils.ErrProductNotFound)
		})
	}

	_, err := newCatalogFixture().svc.CheckStock(context.Background(), "missing", &StockCheckRequest{Quantity: 1})
	assert.ErrorIs(t, err, utils.ErrProductNotFound)
}
