package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/fabric_api/internal/models"
	"github.com/GTDGit/fabric_api/internal/utils"
)

const notificationColumns = `id, recipient_id, type, title, message, data, is_read, read_at, created_at`

// NotificationRepository handles data access for in-app notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return r.db.QueryRowxContext(ctx, `
		INSERT INTO notifications (id, recipient_id, type, title, message, data)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		n.ID, n.RecipientID, n.Type, n.Title, n.Message, n.Data,
	).Scan(&n.CreatedAt)
}

// List returns a page of the recipient's notifications, newest first.
func (r *NotificationRepository) List(ctx context.Context, recipientID string, unreadOnly bool, page, limit int) ([]models.Notification, int, error) {
	const where = `WHERE recipient_id = $1 AND ($2 = FALSE OR is_read = FALSE)`

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM notifications `+where, recipientID, unreadOnly); err != nil {
		return nil, 0, err
	}
	list := []models.Notification{}
	err := r.db.SelectContext(ctx, &list, `
		SELECT `+notificationColumns+` FROM notifications `+where+`
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		recipientID, unreadOnly, limit, utils.Offset(page, limit))
	return list, total, err
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND is_read = FALSE`, recipientID)
	return n, err
}

// MarkRead marks one notification read; already-read ones still count as found.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID string) (*models.Notification, error) {
	var n models.Notification
	err := r.db.GetContext(ctx, &n, `
		UPDATE notifications SET is_read = TRUE, read_at = COALESCE(read_at, NOW())
		WHERE id = $1 AND recipient_id = $2
		RETURNING `+notificationColumns, id, recipientID)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = NOW()
		WHERE recipient_id = $1 AND is_read = FALSE`, recipientID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *NotificationRepository) Delete(ctx context.Context, id, recipientID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1 AND recipient_id = $2`, id, recipientID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
