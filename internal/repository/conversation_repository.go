package repository

import (
	"context"
	"errors"
	"time"

	"medbridge/internal/domain/conversation"
	medbridge_errors "medbridge/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

// Create inserts the conversation and its sequence row. Run it inside a
// transaction so a duplicate pairing request leaves nothing behind.
func (r *PostgresConversationRepository) Create(ctx context.Context, c *conversation.Conversation) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	db := r.db.WithContext(ctx)
	if err := db.Create(c).Error; err != nil {
		if isDuplicateKey(err) {
			return medbridge_errors.Wrap(medbridge_errors.ErrConflict, "conversation already exists for this request", err)
		}
		return err
	}
	seq := conversation.ConversationSequence{
		ConversationID: c.ID,
		LastMessageAt:  c.CreatedAt,
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seq).Error
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return conversation.Conversation{}, translate(err, "conversation")
	}
	return c, nil
}

func (r *PostgresConversationRepository) GetByPairingRequest(ctx context.Context, requestID uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	if err := r.db.WithContext(ctx).Where("pairing_request_id = ?", requestID).First(&c).Error; err != nil {
		return conversation.Conversation{}, translate(err, "conversation")
	}
	return c, nil
}

func (r *PostgresConversationRepository) ListForUser(ctx context.Context, userID string) ([]conversation.Conversation, error) {
	var convs []conversation.Conversation

	// Most recently active first.
	lastActivity := r.db.Model(&conversation.ConversationSequence{}).
		Select("conversation_id, last_message_at")

	err := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Joins("LEFT JOIN (?) AS seqs ON seqs.conversation_id = conversations.id", lastActivity).
		Where("conversations.responder_id = ? OR conversations.requester_id = ?", userID, userID).
		Order("seqs.last_message_at DESC, conversations.created_at DESC").
		Find(&convs).Error
	return convs, err
}

func (r *PostgresConversationRepository) NextSequence(ctx context.Context, conversationID uuid.UUID, now time.Time) (int64, time.Time, error) {
	db := r.db.WithContext(ctx)

	var row conversation.ConversationSequence
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("conversation_id = ?", conversationID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Conversations created before sequence rows existed.
		seed := conversation.ConversationSequence{ConversationID: conversationID}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return 0, time.Time{}, err
		}
		err = db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("conversation_id = ?", conversationID).
			First(&row).Error
	}
	if err != nil {
		return 0, time.Time{}, err
	}

	createdAt := now.UTC().Truncate(time.Microsecond)
	if !row.LastMessageAt.IsZero() && !createdAt.After(row.LastMessageAt) {
		createdAt = row.LastMessageAt.UTC().Add(time.Microsecond)
	}
	next := row.LastSequence + 1

	err = db.Model(&conversation.ConversationSequence{}).
		Where("conversation_id = ?", conversationID).
		Updates(map[string]interface{}{
			"last_sequence":   next,
			"last_message_at": createdAt,
			"updated_at":      time.Now().UTC(),
		}).Error
	if err != nil {
		return 0, time.Time{}, err
	}
	return next, createdAt, nil
}

func (r *PostgresConversationRepository) LockSequence(ctx context.Context, conversationID uuid.UUID) error {
	var row conversation.ConversationSequence
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("conversation_id = ?", conversationID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
