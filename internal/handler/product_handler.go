package handler

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/GTDGit/fabric_api/internal/models"
	"github.com/GTDGit/fabric_api/internal/service"
	"github.com/GTDGit/fabric_api/internal/utils"
)

// ProductHandler handles catalog HTTP endpoints.
type ProductHandler struct {
	productService *service.ProductService
	storage        *service.S3Storage
}

// NewProductHandler constructs a ProductHandler. storage may be nil when
// uploads are not configured.
func NewProductHandler(productService *service.ProductService, storage *service.S3Storage) *ProductHandler {
	return &ProductHandler{productService: productService, storage: storage}
}

// parseProductFilter reads the shared listing query parameters.
func parseProductFilter(c *gin.Context) (*models.ProductFilter, error) {
	page, limit := utils.ParsePagination(c)
	f := &models.ProductFilter{
		CategoryID:  c.Query("category"),
		ProductType: c.Query("productType"),
		Color:       c.Query("color"),
		Search:      c.Query("search"),
		Sort:        c.Query("sort"),
		Page:        page,
		Limit:       limit,
	}
	for key, dst := range map[string]**decimal.Decimal{"minPrice": &f.MinPrice, "maxPrice": &f.MaxPrice} {
		v := c.Query(key)
		if v == "" {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			return nil, utils.BadRequest(key + " must be a non-negative number")
		}
		*dst = &d
	}
	if v := c.Query("featured"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, utils.BadRequest("featured must be a boolean")
		}
		f.Featured = &b
	}
	return f, nil
}

// GetProducts handles GET /api/v1/products
func (h *ProductHandler) GetProducts(c *gin.Context) {
	filter, err := parseProductFilter(c)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	filter.PublicOnly = true

	products, total, err := h.productService.List(c.Request.Context(), filter)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessWithPagination(c, 200, "Products retrieved successfully", products, filter.Page, filter.Limit, total)
}

// GetProduct handles GET /api/v1/products/:id (id or slug)
func (h *ProductHandler) GetProduct(c *gin.Context) {
	p, err := h.productService.GetPublic(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Product retrieved successfully", p)
}

// GetFilterOptions handles GET /api/v1/products/filters/options
func (h *ProductHandler) GetFilterOptions(c *gin.Context) {
	opts, err := h.productService.FilterOptions(c.Request.Context())
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Filter options retrieved successfully", opts)
}

// CheckStock handles POST /api/v1/products/:id/check-stock
func (h *ProductHandler) CheckStock(c *gin.Context) {
	var req service.StockCheckRequest
	if !utils.BindJSON(c, &req) {
		return
	}
	out, err := h.productService.CheckStock(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Stock checked", out)
}

// AdminGetProducts handles GET /api/v1/products/admin/all
func (h *ProductHandler) AdminGetProducts(c *gin.Context) {
	filter, err := parseProductFilter(c)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	filter.Status = c.Query("status")
	filter.LowStock = c.Query("lowStock") == "true"
	if v := c.Query("published"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			utils.HandleError(c, utils.BadRequest("published must be a boolean"))
			return
		}
		filter.Published = &b
	}

	products, total, err := h.productService.List(c.Request.Context(), filter)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessWithPagination(c, 200, "Products retrieved successfully", products, filter.Page, filter.Limit, total)
}

// AdminGetProduct handles GET /api/v1/products/admin/:id
func (h *ProductHandler) AdminGetProduct(c *gin.Context) {
	p, err := h.productService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Product retrieved successfully", p)
}

// CreateProduct handles POST /api/v1/products
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req service.ProductRequest
	if !utils.BindJSON(c, &req) {
		return
	}
	p, err := h.productService.Create(c.Request.Context(), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 201, "Product created successfully", p)
}

// UpdateProduct handles PUT /api/v1/products/:id
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	var req service.ProductRequest
	if !utils.BindJSON(c, &req) {
		return
	}
	p, err := h.productService.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Product updated successfully", p)
}

// DeleteProduct handles DELETE /api/v1/products/:id
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	if err := h.productService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Product deleted successfully", nil)
}

// BulkPublish handles POST /api/v1/products/bulk/publish
func (h *ProductHandler) BulkPublish(c *gin.Context) {
	var req service.BulkPublishRequest
	if !utils.BindJSON(c, &req) {
		return
	}
	n, err := h.productService.BulkPublish(c.Request.Context(), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Products updated", gin.H{"updated": n})
}

// BulkStatus handles POST /api/v1/products/bulk/status
func (h *ProductHandler) BulkStatus(c *gin.Context) {
	var req service.BulkStatusRequest
	if !utils.BindJSON(c, &req) {
		return
	}
	n, err := h.productService.BulkStatus(c.Request.Context(), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Products updated", gin.H{"updated": n})
}

// UploadImage handles POST /api/v1/products/upload (multipart field "image")
func (h *ProductHandler) UploadImage(c *gin.Context) {
	if h.storage == nil {
		utils.Error(c, 503, "STORAGE_UNAVAILABLE", "Image storage is not configured")
		return
	}

	fh, err := c.FormFile("image")
	if err != nil {
		utils.Error(c, 400, "VALIDATION_ERROR", "Image file is required")
		return
	}
	if fh.Size > service.MaxImageSize {
		utils.Error(c, 400, "VALIDATION_ERROR", "Image exceeds 5MB")
		return
	}

	f, err := fh.Open()
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, service.MaxImageSize+1))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	res, err := h.storage.UploadProductImage(c.Request.Context(), fh.Filename, fh.Header.Get("Content-Type"), data)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 201, "Image uploaded successfully", res)
}
