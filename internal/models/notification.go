package models

import (
	"database/sql/driver"
	"time"
)

type NotificationType string

const (
	NotificationNewOrder    NotificationType = "new_order"
	NotificationLowStock    NotificationType = "low_stock"
	NotificationOrderStatus NotificationType = "order_status"
	NotificationReview      NotificationType = "review"
	NotificationSystem      NotificationType = "system"
)

// NotificationData is the contextual payload. Only these keys are stored.
type NotificationData struct {
	OrderID     string `json:"orderId,omitempty"`
	OrderNumber string `json:"orderNumber,omitempty"`
	ProductID   string `json:"productId,omitempty"`
	ProductName string `json:"productName,omitempty"`
	ReviewID    string `json:"reviewId,omitempty"`
	TotalStock  *int   `json:"totalStock,omitempty"`
	Threshold   *int   `json:"threshold,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Status      string `json:"status,omitempty"`
}

func (d *NotificationData) Scan(src any) error { return scanJSON(src, d) }

func (d NotificationData) Value() (driver.Value, error) { return valueJSON(d) }

// Notification is an in-app message to a single user.
type Notification struct {
	ID          string           `db:"id" json:"id"`
	RecipientID string           `db:"recipient_id" json:"recipientId"`
	Type        NotificationType `db:"type" json:"type"`
	Title       string           `db:"title" json:"title"`
	Message     string           `db:"message" json:"message"`
	Data        NotificationData `db:"data" json:"data"`
	IsRead      bool             `db:"is_read" json:"isRead"`
	ReadAt      *time.Time       `db:"read_at" json:"readAt,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"createdAt"`
}
