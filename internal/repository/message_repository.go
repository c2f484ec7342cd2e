package repository

import (
	"context"

	"medbridge/internal/domain/message"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	if m.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		m.ID = id
	}
	return translate(r.db.WithContext(ctx).Create(m).Error, "message")
}

// ListByConversation returns the latest limit messages (optionally before a
// seq) in ascending createdAt, id order.
func (r *PostgresMessageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int, beforeSeq int64) ([]message.Message, error) {
	limit = clampLimit(limit, defaultHistoryLimit, maxHistoryLimit)

	q := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if beforeSeq > 0 {
		q = q.Where("seq < ?", beforeSeq)
	}

	var msgs []message.Message
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *PostgresMessageRepository) LatestByConversations(ctx context.Context, conversationIDs []uuid.UUID) (map[uuid.UUID]message.Message, error) {
	out := make(map[uuid.UUID]message.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}

	latest := r.db.Model(&message.Message{}).
		Select("conversation_id, MAX(seq) AS max_seq").
		Where("conversation_id IN ?", conversationIDs).
		Group("conversation_id")

	var msgs []message.Message
	err := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Joins("JOIN (?) AS latest ON latest.conversation_id = messages.conversation_id AND latest.max_seq = messages.seq", latest).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		out[m.ConversationID] = m
	}
	return out, nil
}
