package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/GTDGit/fabric_api/internal/middleware"
	"github.com/GTDGit/fabric_api/internal/service"
	"github.com/GTDGit/fabric_api/internal/utils"
)

// NotificationHandler exposes the signed-in user's notification inbox.
type NotificationHandler struct {
	notificationService *service.NotificationService
}

func NewNotificationHandler(notificationService *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// GetNotifications handles GET /api/v1/notifications
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	page, limit := utils.ParsePagination(c)
	list, total, err := h.notificationService.List(c.Request.Context(), middleware.UserID(c), c.Query("unread") == "true", page, limit)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessWithPagination(c, 200, "Notifications retrieved successfully", list, page, limit, total)
}

// GetUnreadCount handles GET /api/v1/notifications/unread-count
func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	n, err := h.notificationService.UnreadCount(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Unread count retrieved", gin.H{"count": n})
}

// MarkRead handles PATCH /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	n, err := h.notificationService.MarkRead(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Notification marked as read", n)
}

// MarkAllRead handles PATCH /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.notificationService.MarkAllRead(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Notifications marked as read", gin.H{"updated": n})
}

// DeleteNotification handles DELETE /api/v1/notifications/:id
func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	if err := h.notificationService.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, 200, "Notification deleted", nil)
}
