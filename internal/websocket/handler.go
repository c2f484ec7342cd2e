package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"medbridge/internal/domain/message"
	"medbridge/internal/events"
	"medbridge/internal/middleware"
	"medbridge/internal/redis"
	"medbridge/internal/services"
	"medbridge/internal/transport/httpdto"
	medbridge_errors "medbridge/pkg/errors"
	"medbridge/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageSender persists and fans out a chat message.
type MessageSender interface {
	SendMessage(ctx context.Context, in services.SendMessageInput) (message.Message, error)
}

// MessageLimiter throttles send_message per user.
type MessageLimiter interface {
	AllowMessage(ctx context.Context, userID string) (*redis.RateLimitResult, error)
}

type Handler struct {
	auth     *services.AuthService
	hub      *Hub
	messages MessageSender
	limiter  MessageLimiter
	logger   *logger.Logger
	upgrader websocket.Upgrader
}

func NewHandler(auth *services.AuthService, hub *Hub, messages MessageSender, limiter MessageLimiter, log *logger.Logger) *Handler {
	return &Handler{
		auth:     auth,
		hub:      hub,
		messages: messages,
		limiter:  limiter,
		logger:   log.With(zap.String("component", "websocket")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Connect authenticates the token, upgrades the connection and serves it
// until the client goes away.
func (h *Handler) Connect(c *gin.Context) {
	claims, err := h.auth.ParseAccessToken(middleware.BearerToken(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", medbridge_errors.Code(medbridge_errors.ErrUnauthorized)))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn(c.Request.Context(), "websocket upgrade failed", zap.String("user_id", claims.UserID), zap.Error(err))
		return
	}

	client := NewClient(conn, strings.TrimSpace(claims.UserID))
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), logger.UserIdKey, client.UserID()))
	defer cancel()

	go client.writePump()
	client.readPump(func(data []byte) {
		h.Dispatch(ctx, client, data)
	})

	h.hub.Leave(client)
	_ = client.Close()
}

// Dispatch handles one inbound frame from s and answers with an ack.
func (h *Handler) Dispatch(ctx context.Context, s Session, data []byte) {
	env, err := events.Decode(data)
	if err != nil {
		h.ack(s, "", nil, medbridge_errors.InvalidInput("malformed frame"))
		return
	}

	switch env.Type {
	case events.EventTypeJoin:
		h.handleJoin(ctx, s, env)
	case events.EventTypeSendMessage:
		h.handleSend(ctx, s, env)
	case events.EventTypePing:
		if frame, err := events.Encode(events.EventTypePong, env.RequestID, nil); err == nil {
			s.SendMessage(frame)
		}
	default:
		h.ack(s, env.RequestID, nil, medbridge_errors.InvalidInput("unknown event type "+env.Type))
	}
}

func (h *Handler) handleJoin(ctx context.Context, s Session, env events.Envelope) {
	var p events.JoinPayload
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.ack(s, env.RequestID, nil, medbridge_errors.InvalidInput("malformed join payload"))
			return
		}
	}
	if p.UserID != "" && p.UserID != s.UserID() {
		h.ack(s, env.RequestID, nil, medbridge_errors.Forbidden("cannot join another user's room"))
		return
	}
	if err := h.hub.Join(ctx, s.UserID(), s); err != nil {
		// The hub has closed the session; the ack is best effort.
		h.ack(s, env.RequestID, nil, err)
		return
	}
	h.ack(s, env.RequestID, nil, nil)
}

func (h *Handler) handleSend(ctx context.Context, s Session, env events.Envelope) {
	if h.limiter != nil {
		res, err := h.limiter.AllowMessage(ctx, s.UserID())
		if err != nil {
			h.logger.Warn(ctx, "message rate limit check failed", zap.Error(err))
		} else if !res.Allowed {
			h.ack(s, env.RequestID, nil, medbridge_errors.New(medbridge_errors.ErrRateLimited, "too many messages, slow down"))
			return
		}
	}

	var p events.SendMessagePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		h.ack(s, env.RequestID, nil, medbridge_errors.InvalidInput("malformed send_message payload"))
		return
	}
	convID, err := uuid.Parse(p.ConversationID)
	if err != nil {
		h.ack(s, env.RequestID, nil, medbridge_errors.InvalidInput("invalid conversation_id"))
		return
	}
	kind, ok := message.ParseKind(p.Kind)
	if !ok {
		h.ack(s, env.RequestID, nil, medbridge_errors.InvalidInput("kind must be text, audio or image"))
		return
	}

	msg, err := h.messages.SendMessage(ctx, services.SendMessageInput{
		ConversationID: convID,
		SenderID:       s.UserID(),
		Kind:           kind,
		Payload:        message.Payload{Text: p.Text, AudioURL: p.AudioURL, ImageURL: p.ImageURL},
	})
	if err != nil {
		if services.HTTPStatus(err) == http.StatusInternalServerError {
			h.logger.Error(ctx, "send_message failed", zap.String("conversation_id", convID.String()), zap.Error(err))
		}
		h.ack(s, env.RequestID, nil, err)
		return
	}
	h.ack(s, env.RequestID, msg, nil)
}

func (h *Handler) ack(s Session, requestID string, data interface{}, err error) {
	payload := events.AckPayload{OK: err == nil, Data: data}
	if err != nil {
		payload.Code = medbridge_errors.Code(err)
		payload.Error = services.Message(err)
	}
	frame, encErr := events.Encode(events.EventTypeAck, requestID, payload)
	if encErr != nil {
		h.logger.Error(context.Background(), "encode ack failed", zap.Error(encErr))
		return
	}
	s.SendMessage(frame)
}
