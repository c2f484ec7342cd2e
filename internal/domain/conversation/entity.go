package conversation

import (
	"time"

	"medbridge/internal/domain/pairing"

	"github.com/google/uuid"
)

// Conversation represents the conversations table. One row exists per
// accepted pairing request; the row is never updated after insert.
type Conversation struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PairingRequestID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_conversations_pairing_request" json:"pairing_request_id"`
	ResponderID      string    `gorm:"size:255;not null;index" json:"responder_id"`
	RequesterID      string    `gorm:"size:255;not null;index" json:"requester_id"`
	CreatedAt        time.Time `json:"created_at"`

	// Relationships
	PairingRequest *pairing.Request `gorm:"foreignKey:PairingRequestID;constraint:OnDelete:CASCADE" json:"-"`
}

// ConversationSequence represents the conversation_sequences table. Its row
// is locked by every message insert, which serializes sequence allocation per
// conversation.
type ConversationSequence struct {
	ConversationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	LastSequence   int64     `gorm:"not null;default:0"`
	LastMessageAt  time.Time
	UpdatedAt      time.Time

	Conversation *Conversation `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (ConversationSequence) TableName() string {
	return "conversation_sequences"
}

func (c Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.ResponderID == userID || c.RequesterID == userID)
}

func (c Conversation) Participants() []string {
	return []string{c.ResponderID, c.RequesterID}
}

// Counterpart returns the other participant, or "" if userID is not one.
func (c Conversation) Counterpart(userID string) string {
	switch userID {
	case c.ResponderID:
		return c.RequesterID
	case c.RequesterID:
		return c.ResponderID
	}
	return ""
}
