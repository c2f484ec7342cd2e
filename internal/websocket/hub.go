package websocket

import (
	"context"
	"sync"
	"time"

	"medbridge/internal/services"
	"medbridge/pkg/logger"

	"go.uber.org/zap"
)

// Session is one live transport connection belonging to a user.
type Session interface {
	ID() string
	UserID() string
	// SendMessage queues payload without blocking. It reports false when the
	// session is closed or its buffer is full.
	SendMessage(payload []byte) bool
	Close() error
}

// PresenceTracker records when a user gains its first or loses its last
// session.
type PresenceTracker interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
}

// Hub keeps one room per user holding that user's live sessions. It is
// purely in-memory; clients re-join after a restart.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[string]Session
	resolver services.IdentityResolver
	presence PresenceTracker
	logger   *logger.Logger
}

func NewHub(resolver services.IdentityResolver, presence PresenceTracker, log *logger.Logger) *Hub {
	return &Hub{
		rooms:    make(map[string]map[string]Session),
		resolver: resolver,
		presence: presence,
		logger:   log.With(zap.String("component", "hub")),
	}
}

// Join verifies userID and adds session to the user's room. Unknown users
// have their session closed. Joining twice is harmless.
func (h *Hub) Join(ctx context.Context, userID string, session Session) error {
	if _, err := h.resolver.Resolve(ctx, userID); err != nil {
		h.logger.Warn(ctx, "join rejected",
			zap.String("user_id", userID),
			zap.String("session_id", session.ID()),
			zap.Error(err),
		)
		_ = session.Close()
		return err
	}

	h.mu.Lock()
	room, ok := h.rooms[userID]
	if !ok {
		room = make(map[string]Session)
		h.rooms[userID] = room
	}
	_, already := room[session.ID()]
	room[session.ID()] = session
	first := len(room) == 1 && !already
	h.mu.Unlock()

	if first {
		h.markPresence(userID, true)
	}
	if !already {
		h.logger.Info(ctx, "session joined", zap.String("user_id", userID), zap.String("session_id", session.ID()))
	}
	return nil
}

// Leave removes session from its user's room. Called when the transport's
// read loop ends.
func (h *Hub) Leave(session Session) {
	userID := session.UserID()

	h.mu.Lock()
	room, ok := h.rooms[userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, member := room[session.ID()]; !member {
		h.mu.Unlock()
		return
	}
	delete(room, session.ID())
	last := len(room) == 0
	if last {
		delete(h.rooms, userID)
	}
	h.mu.Unlock()

	if last {
		h.markPresence(userID, false)
	}
	h.logger.Info(context.Background(), "session left", zap.String("user_id", userID), zap.String("session_id", session.ID()))
}

// SendToUser queues payload on every session in userID's room and returns
// how many accepted it.
func (h *Hub) SendToUser(userID string, payload []byte) int {
	h.mu.RLock()
	room := h.rooms[userID]
	targets := make([]Session, 0, len(room))
	for _, s := range room {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		if s.SendMessage(payload) {
			delivered++
		} else {
			h.logger.Warn(context.Background(), "session buffer full, frame dropped",
				zap.String("user_id", userID), zap.String("session_id", s.ID()))
		}
	}
	return delivered
}

func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID]) > 0
}

func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, room := range h.rooms {
		n += len(room)
	}
	return n
}

// RunPresenceRefresher re-marks connected users online every interval so
// their presence records outlive the store's TTL.
func (h *Hub) RunPresenceRefresher(ctx context.Context, interval time.Duration) {
	if h.presence == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.mu.RLock()
			users := make([]string, 0, len(h.rooms))
			for userID := range h.rooms {
				users = append(users, userID)
			}
			h.mu.RUnlock()

			for _, userID := range users {
				h.markPresence(userID, true)
			}
		}
	}
}

// CloseAll closes every session. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	var all []Session
	for _, room := range h.rooms {
		for _, s := range room {
			all = append(all, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range all {
		_ = s.Close()
	}
}

func (h *Hub) markPresence(userID string, online bool) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var err error
	if online {
		err = h.presence.SetOnline(ctx, userID)
	} else {
		err = h.presence.SetOffline(ctx, userID)
	}
	if err != nil {
		h.logger.Warn(ctx, "presence update failed", zap.String("user_id", userID), zap.Bool("online", online), zap.Error(err))
	}
}
