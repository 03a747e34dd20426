package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/GTDGit/fabric_api/internal/middleware"
	"github.com/GTDGit/fabric_api/internal/service"
	"github.com/GTDGit/fabric_api/internal/utils"
)

type WishlistHandler struct {
	wishlistService *service.WishlistService
}

func NewWishlistHandler(wishlistService *service.WishlistService) *WishlistHandler {
	return &WishlistHandler{wishlistService: wishlistService}
}

// GetWishlist handles GET /api/v1/wishlist
func (h *WishlistHandler) GetWishlist(c *gin.Context) {
	w, err := h.wishlistService.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Wishlist retrieved successfully", w)
}

// AddItem handles POST /api/v1/wishlist/items
func (h *WishlistHandler) AddItem(c *gin.Context) {
	var req struct {
		ProductID string `json:"productId" binding:"required,uuid"`
	}
	if !utils.BindJSON(c, &req) {
		return
	}
	w, err := h.wishlistService.Add(c.Request.Context(), middleware.UserID(c), req.ProductID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 201, "Product added to wishlist", w)
}

// RemoveItem handles DELETE /api/v1/wishlist/items/:productId
func (h *WishlistHandler) RemoveItem(c *gin.Context) {
	w, err := h.wishlistService.Remove(c.Request.Context(), middleware.UserID(c), c.Param("productId"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Product removed from wishlist", w)
}

// Clear handles DELETE /api/v1/wishlist
func (h *WishlistHandler) Clear(c *gin.Context) {
	if err := h.wishlistService.Clear(c.Request.Context(), middleware.UserID(c)); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Wishlist cleared", nil)
}

// Check handles GET /api/v1/wishlist/items/:productId/check
func (h *WishlistHandler) Check(c *gin.Context) {
	ok, err := h.wishlistService.Contains(c.Request.Context(), middleware.UserID(c), c.Param("productId"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Wishlist checked", gin.H{"inWishlist": ok})
}
