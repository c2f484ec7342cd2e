package repository

import (
	"context"
	"time"

	"medbridge/internal/domain/conversation"
	"medbridge/internal/domain/diagnostic"
	"medbridge/internal/domain/identity"
	"medbridge/internal/domain/message"
	"medbridge/internal/domain/notification"
	"medbridge/internal/domain/pairing"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, u *identity.User) error
	GetByID(ctx context.Context, id string) (identity.User, error)
	ListByRole(ctx context.Context, role identity.Role) ([]identity.User, error)
	UpdatePushToken(ctx context.Context, id string, token *string) error
}

type PairingRepository interface {
	// Create inserts a pending request. A second active request for the
	// same unordered pair fails with ErrConflict.
	Create(ctx context.Context, r *pairing.Request) error
	GetByID(ctx context.Context, id uuid.UUID) (pairing.Request, error)
	FindActiveBetween(ctx context.Context, userA, userB string) (pairing.Request, error)

	// TransitionStatus moves a request from -> to only if it is still in
	// from. Zero affected rows yields ErrInvalidState.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to pairing.Status) error
	DeletePending(ctx context.Context, requesterID, responderID string) (bool, error)

	ListReceived(ctx context.Context, responderID string, status *pairing.Status) ([]pairing.Request, error)
	ListSent(ctx context.Context, requesterID string) ([]pairing.Request, error)
	ListAccepted(ctx context.Context, userID string) (asRequester, asResponder []pairing.Request, err error)
}

type ConversationRepository interface {
	Create(ctx context.Context, c *conversation.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	GetByPairingRequest(ctx context.Context, requestID uuid.UUID) (conversation.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]conversation.Conversation, error)

	// NextSequence locks the conversation's sequence row and reserves the
	// next seq and a createdAt strictly after the previous message.
	NextSequence(ctx context.Context, conversationID uuid.UUID, now time.Time) (int64, time.Time, error)

	// LockSequence takes the same row lock as NextSequence without
	// advancing it, to serialize with in-flight message inserts.
	LockSequence(ctx context.Context, conversationID uuid.UUID) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int, beforeSeq int64) ([]message.Message, error)
	LatestByConversations(ctx context.Context, conversationIDs []uuid.UUID) (map[uuid.UUID]message.Message, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *notification.Notification) error
	ListForRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]notification.Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID, recipientID string) error
}

type DiagnosticRepository interface {
	Create(ctx context.Context, c *diagnostic.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (diagnostic.Conversation, error)
	// GetForUpdate reads the conversation and locks its row until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (diagnostic.Conversation, error)
	ListBySubject(ctx context.Context, subjectID string) ([]diagnostic.Conversation, error)

	// MarkSpecified sets the classification and isFinal only while the
	// conversation is in progress and not final.
	MarkSpecified(ctx context.Context, id uuid.UUID, classification diagnostic.Specialty) error
	MarkCompleted(ctx context.Context, id uuid.UUID, reportPath, qrCodePath string) error
	AssignResponder(ctx context.Context, id uuid.UUID, responderID string) error

	AddTurn(ctx context.Context, t *diagnostic.Turn) error
	ListTurns(ctx context.Context, conversationID uuid.UUID) ([]diagnostic.Turn, error)
}
