package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/GTDGit/fabric_api/internal/middleware"
	"github.com/GTDGit/fabric_api/internal/models"
	"github.com/GTDGit/fabric_api/internal/service"
	"github.com/GTDGit/fabric_api/internal/utils"
)

// OrderHandler handles checkout and order management endpoints.
type OrderHandler struct {
	orderService *service.OrderService
}

func NewOrderHandler(orderService *service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// PlaceOrder handles POST /api/v1/orders
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if !utils.BindJSON(c, &req) {
		return
	}
	result, err := h.orderService.Place(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if result.Existing {
		utils.Success(c, 200, "Order already exists", result)
		return
	}
	utils.Success(c, 201, "Order placed successfully", result)
}

// GetMyOrders handles GET /api/v1/orders/my
func (h *OrderHandler) GetMyOrders(c *gin.Context) {
	page, limit := utils.ParsePagination(c)
	filter := &models.OrderFilter{
		CustomerID: middleware.UserID(c),
		Status:     c.Query("status"),
		Page:       page,
		Limit:      limit,
	}
	orders, total, err := h.orderService.List(c.Request.Context(), filter)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessWithPagination(c, 200, "Orders retrieved successfully", orders, filter.Page, filter.Limit, total)
}

// GetOrder handles GET /api/v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	o, err := h.orderService.Get(c.Request.Context(), c.Param("id"), middleware.UserID(c), middleware.IsAdmin(c))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Order retrieved successfully", o)
}

// CancelOrder handles POST /api/v1/orders/:id/cancel
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	var req struct {
		Reason string `json:"reason" binding:"max=500"`
	}
	// Body is optional.
	if c.Request.ContentLength > 0 && !utils.BindJSON(c, &req) {
		return
	}
	o, err := h.orderService.Cancel(c.Request.Context(), c.Param("id"), middleware.UserID(c), middleware.IsAdmin(c), req.Reason)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Order cancelled", o)
}

// AdminGetOrders handles GET /api/v1/orders
func (h *OrderHandler) AdminGetOrders(c *gin.Context) {
	page, limit := utils.ParsePagination(c)
	filter := &models.OrderFilter{
		Status:        c.Query("status"),
		PaymentStatus: c.Query("paymentStatus"),
		Search:        c.Query("search"),
		Page:          page,
		Limit:         limit,
	}
	orders, total, err := h.orderService.List(c.Request.Context(), filter)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessWithPagination(c, 200, "Orders retrieved successfully", orders, filter.Page, filter.Limit, total)
}

// UpdateOrderStatus handles PATCH /api/v1/orders/:id/status
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	var req service.UpdateStatusRequest
	if !utils.BindJSON(c, &req) {
		return
	}
	o, err := h.orderService.UpdateStatus(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Order status updated", o)
}
