package events

// Client to server
const (
	EventTypeJoin        = "join"
	EventTypeSendMessage = "send_message"
	EventTypePing        = "ping"
)

// Server to client
const (
	EventTypeNewMessage = "new_message"
	EventTypeAck        = "ack"
	EventTypePong       = "pong"
)

// JoinPayload optionally names the room being joined. It must match the
// authenticated user when set.
type JoinPayload struct {
	UserID string `json:"user_id,omitempty"`
}

type SendMessagePayload struct {
	ConversationID string `json:"conversation_id"`
	Kind           string `json:"kind"`
	Text           string `json:"text,omitempty"`
	AudioURL       string `json:"audio_url,omitempty"`
	ImageURL       string `json:"image_url,omitempty"`
}

// AckPayload answers one inbound event. Code and Error are set on failure.
type AckPayload struct {
	OK    bool        `json:"ok"`
	Code  string      `json:"code,omitempty"`
	Error string      `json:"error,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}
