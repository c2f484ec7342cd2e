package repository

import (
	"context"

	"medbridge/internal/domain/notification"
	medbridge_errors "medbridge/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresNotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

func (r *PostgresNotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return translate(r.db.WithContext(ctx).Create(n).Error, "notification")
}

func (r *PostgresNotificationRepository) ListForRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]notification.Notification, error) {
	q := r.db.WithContext(ctx).Where("recipient_id = ?", recipientID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var out []notification.Notification
	err := q.Order("created_at DESC").
		Limit(clampLimit(limit, 50, 200)).
		Find(&out).Error
	return out, err
}

func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, id uuid.UUID, recipientID string) error {
	res := r.db.WithContext(ctx).
		Model(&notification.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return medbridge_errors.NotFound("notification not found")
	}
	return nil
}
