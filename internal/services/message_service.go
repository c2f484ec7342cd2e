package services

import (
	"context"
	"time"

	"medbridge/internal/domain/conversation"
	"medbridge/internal/domain/message"
	"medbridge/internal/domain/notification"
	"medbridge/internal/domain/pairing"
	"medbridge/internal/repository"
	medbridge_errors "medbridge/pkg/errors"
	"medbridge/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MessageEmitter delivers a persisted message to connected participants.
// Reserve is called while the sequence row is locked, before the message
// commits; Emit follows only when the commit succeeds.
type MessageEmitter interface {
	Reserve(conversationID uuid.UUID, seq int64)
	Emit(conv conversation.Conversation, msg message.Message)
}

// Notifier queues a notification without blocking.
type Notifier interface {
	Enqueue(job NotificationJob) error
}

type SendMessageInput struct {
	ConversationID uuid.UUID
	SenderID       string
	Kind           message.Kind
	Payload        message.Payload
}

type MessageService struct {
	db            *gorm.DB
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	identities    *IdentityService
	emitter       MessageEmitter
	notifier      Notifier
	logger        *logger.Logger
	now           func() time.Time
}

func NewMessageService(db *gorm.DB, identities *IdentityService, emitter MessageEmitter, notifier Notifier, log *logger.Logger) *MessageService {
	return &MessageService{
		db:            db,
		conversations: repository.NewConversationRepository(db),
		messages:      repository.NewMessageRepository(db),
		identities:    identities,
		emitter:       emitter,
		notifier:      notifier,
		logger:        log.With(zap.String("component", "messages")),
		now:           time.Now,
	}
}

// SendMessage persists a message and fans it out to both participants. A
// failed write emits nothing.
func (s *MessageService) SendMessage(ctx context.Context, in SendMessageInput) (message.Message, error) {
	conv, err := s.conversations.GetByID(ctx, in.ConversationID)
	if err != nil {
		return message.Message{}, err
	}
	if !conv.HasParticipant(in.SenderID) {
		return message.Message{}, medbridge_errors.Forbidden("sender is not part of this conversation")
	}
	if !in.Payload.Validate(in.Kind) {
		return message.Message{}, medbridge_errors.InvalidInput("message needs exactly one payload matching its kind")
	}

	recipientID := conv.Counterpart(in.SenderID)
	people, err := s.identities.ResolveMany(ctx, []string{in.SenderID, recipientID})
	if err != nil {
		return message.Message{}, err
	}
	if _, ok := people[in.SenderID]; !ok {
		return message.Message{}, medbridge_errors.NotFound("sender not found")
	}

	msg := message.Message{
		ConversationID: conv.ID,
		SenderID:       in.SenderID,
		Kind:           in.Kind,
	}
	in.Payload.Apply(&msg)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, createdAt, err := repository.NewConversationRepository(tx).NextSequence(ctx, conv.ID, s.now())
		if err != nil {
			return err
		}
		req, err := repository.NewPairingRepository(tx).GetByID(ctx, conv.PairingRequestID)
		if err != nil {
			return err
		}
		if req.Status != pairing.StatusAccepted {
			return medbridge_errors.InvalidState("conversation is closed")
		}

		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		if s.emitter != nil {
			s.emitter.Reserve(conv.ID, seq)
		}
		msg.ID = id
		msg.Seq = seq
		msg.CreatedAt = createdAt
		return repository.NewMessageRepository(tx).Create(ctx, &msg)
	})
	if err != nil {
		return message.Message{}, err
	}

	if s.emitter != nil {
		s.emitter.Emit(conv, msg)
	}

	if recipient, ok := people[recipientID]; ok && recipient.HasPushToken() && s.notifier != nil {
		sender := people[in.SenderID]
		_ = s.notifier.Enqueue(NotificationJob{
			RecipientID: recipientID,
			Title:       "New message from " + sender.DisplayName,
			Body:        msg.Preview(),
			Kind:        notification.KindNewMessage,
			Metadata: map[string]string{
				"conversation_id": conv.ID.String(),
				"message_id":      msg.ID.String(),
				"screen":          "ChatList",
			},
		})
	}

	return msg, nil
}

// GetHistory returns up to limit messages ending before beforeSeq (0 for
// the latest), oldest first.
func (s *MessageService) GetHistory(ctx context.Context, conversationID uuid.UUID, actorID string, limit int, beforeSeq int64) ([]message.Message, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(actorID) {
		return nil, medbridge_errors.Forbidden("not a participant of this conversation")
	}
	msgs, err := s.messages.ListByConversation(ctx, conv.ID, limit, beforeSeq)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []message.Message{}
	}
	return msgs, nil
}
