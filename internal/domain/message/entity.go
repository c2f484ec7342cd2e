package message

import (
	"strings"
	"time"

	"medbridge/internal/domain/conversation"

	"github.com/google/uuid"
)

type Kind string

const (
	KindText  Kind = "text"
	KindAudio Kind = "audio"
	KindImage Kind = "image"
)

func ParseKind(raw string) (Kind, bool) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(raw))); k {
	case KindText, KindAudio, KindImage:
		return k, true
	}
	return "", false
}

// Message represents the messages table. Rows are never updated.
type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_conversation_created,priority:1;uniqueIndex:ux_messages_conversation_seq,priority:1" json:"conversation_id"`
	SenderID       string    `gorm:"size:255;not null" json:"sender_id"`
	Kind           Kind      `gorm:"size:16;not null" json:"kind"`
	Text           *string   `json:"text,omitempty"`
	AudioURL       *string   `gorm:"size:1024" json:"audio_url,omitempty"`
	ImageURL       *string   `gorm:"size:1024" json:"image_url,omitempty"`
	Seq            int64     `gorm:"not null;uniqueIndex:ux_messages_conversation_seq,priority:2" json:"seq"`
	CreatedAt      time.Time `gorm:"not null;index:idx_messages_conversation_created,priority:2" json:"created_at"`

	Conversation *conversation.Conversation `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Message) TableName() string {
	return "messages"
}

// Payload is the client-supplied body of a message. Exactly one field must
// be set and it must match the message kind.
type Payload struct {
	Text     string `json:"text,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Validate reports whether p carries exactly the field selected by kind.
func (p Payload) Validate(kind Kind) bool {
	text := strings.TrimSpace(p.Text) != ""
	audio := strings.TrimSpace(p.AudioURL) != ""
	image := strings.TrimSpace(p.ImageURL) != ""

	switch kind {
	case KindText:
		return text && !audio && !image
	case KindAudio:
		return audio && !text && !image
	case KindImage:
		return image && !text && !audio
	}
	return false
}

// Apply copies the payload onto m. Callers validate first.
func (p Payload) Apply(m *Message) {
	m.Text, m.AudioURL, m.ImageURL = nil, nil, nil
	switch m.Kind {
	case KindText:
		v := p.Text
		m.Text = &v
	case KindAudio:
		v := strings.TrimSpace(p.AudioURL)
		m.AudioURL = &v
	case KindImage:
		v := strings.TrimSpace(p.ImageURL)
		m.ImageURL = &v
	}
}

// Preview is a short human-readable summary used in push notifications.
func (m Message) Preview() string {
	switch m.Kind {
	case KindText:
		if m.Text == nil {
			return ""
		}
		text := strings.TrimSpace(*m.Text)
		if r := []rune(text); len(r) > 120 {
			return string(r[:120]) + "..."
		}
		return text
	case KindAudio:
		return "Sent a voice message"
	case KindImage:
		return "Sent an image"
	}
	return ""
}
