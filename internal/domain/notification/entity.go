package notification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Kind string

const (
	KindNewRequest      Kind = "new_request"
	KindRequestAccepted Kind = "request_accepted"
	KindRequestRejected Kind = "request_rejected"
	KindNewMessage      Kind = "new_message"
	KindDiagnosis       Kind = "diagnosis"
)

// Notification represents the notifications table. Rows are append-only
// apart from IsRead.
type Notification struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RecipientID string         `gorm:"size:255;not null;index:idx_notifications_recipient_created,priority:1" json:"recipient_id"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Body        string         `gorm:"type:text;not null" json:"body"`
	Kind        Kind           `gorm:"size:32;not null" json:"kind"`
	Metadata    datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	IsRead      bool           `gorm:"not null;default:false" json:"is_read"`
	CreatedAt   time.Time      `gorm:"index:idx_notifications_recipient_created,priority:2" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
