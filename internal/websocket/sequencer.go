package websocket

import (
	"context"
	"sync"
	"time"

	"medbridge/internal/domain/conversation"
	"medbridge/internal/domain/message"
	"medbridge/internal/events"
	"medbridge/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultStallTimeout = 2 * time.Second

// Broadcaster queues a frame on every session of a user.
type Broadcaster interface {
	SendToUser(userID string, payload []byte) int
}

// NewMessageEvent is the new_message payload.
type NewMessageEvent struct {
	ConversationID uuid.UUID       `json:"conversation_id"`
	Message        message.Message `json:"message"`
}

type pendingFrame struct {
	participants []string
	payload      []byte
}

type stream struct {
	next       int64
	pending    map[int64]pendingFrame
	timer      *time.Timer
	lastActive time.Time
}

// Sequencer emits persisted messages to participants in sequence order.
// Messages commit in seq order but their senders may reach Emit out of
// order; early arrivals wait for the gap to fill, up to the stall timeout.
type Sequencer struct {
	out     Broadcaster
	stall   time.Duration
	logger  *logger.Logger
	mu      sync.Mutex
	streams map[uuid.UUID]*stream
}

func NewSequencer(out Broadcaster, stall time.Duration, log *logger.Logger) *Sequencer {
	if stall <= 0 {
		stall = defaultStallTimeout
	}
	return &Sequencer{
		out:     out,
		stall:   stall,
		logger:  log.With(zap.String("component", "sequencer")),
		streams: make(map[uuid.UUID]*stream),
	}
}

// Emit sends new_message to both participants' rooms.
func (s *Sequencer) Emit(conv conversation.Conversation, msg message.Message) {
	payload, err := events.Encode(events.EventTypeNewMessage, "", NewMessageEvent{ConversationID: conv.ID, Message: msg})
	if err != nil {
		s.logger.Error(context.Background(), "encode new_message failed", zap.String("message_id", msg.ID.String()), zap.Error(err))
		return
	}
	frame := pendingFrame{participants: conv.Participants(), payload: payload}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.streamFor(conv.ID, msg.Seq)
	st.lastActive = time.Now()

	if msg.Seq < st.next {
		// Its slot was skipped after a stall; late is better than never.
		s.deliver(frame)
		return
	}
	st.pending[msg.Seq] = frame
	s.flush(st)
	s.armTimer(conv.ID, st)
}

// Reserve records that seq was allocated for the conversation and will be
// emitted once its transaction commits. Allocation order is seq order, so
// the first reservation a new stream sees is the lowest outstanding seq.
func (s *Sequencer) Reserve(conversationID uuid.UUID, seq int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.streamFor(conversationID, seq)
	st.lastActive = time.Now()
}

// streamFor returns the stream for id, starting a new one at seq. Caller
// holds s.mu.
func (s *Sequencer) streamFor(id uuid.UUID, seq int64) *stream {
	st, ok := s.streams[id]
	if !ok {
		st = &stream{next: seq, pending: make(map[int64]pendingFrame)}
		s.streams[id] = st
	}
	return st
}

// flush delivers every contiguous frame from st.next. Caller holds s.mu.
func (s *Sequencer) flush(st *stream) {
	for {
		frame, ok := st.pending[st.next]
		if !ok {
			return
		}
		delete(st.pending, st.next)
		st.next++
		s.deliver(frame)
	}
}

func (s *Sequencer) armTimer(id uuid.UUID, st *stream) {
	if len(st.pending) == 0 {
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
		return
	}
	if st.timer == nil {
		st.timer = time.AfterFunc(s.stall, func() { s.skipGap(id) })
	}
}

// skipGap gives up on the missing seq and resumes from the lowest pending.
func (s *Sequencer) skipGap(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streams[id]
	if !ok {
		return
	}
	st.timer = nil
	if len(st.pending) == 0 {
		return
	}

	lowest := int64(-1)
	for seq := range st.pending {
		if lowest < 0 || seq < lowest {
			lowest = seq
		}
	}
	s.logger.Warn(context.Background(), "sequence gap skipped",
		zap.String("conversation_id", id.String()),
		zap.Int64("missing_from", st.next),
		zap.Int64("resume_at", lowest),
	)
	st.next = lowest
	s.flush(st)
	s.armTimer(id, st)
}

func (s *Sequencer) deliver(frame pendingFrame) {
	for _, userID := range frame.participants {
		s.out.SendToUser(userID, frame.payload)
	}
}

// Prune forgets conversations idle for longer than idle with nothing
// pending. It returns how many were dropped.
func (s *Sequencer) Prune(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for id, st := range s.streams {
		if len(st.pending) == 0 && st.lastActive.Before(cutoff) {
			delete(s.streams, id)
			dropped++
		}
	}
	return dropped
}

// RunPruner calls Prune every interval until ctx is done.
func (s *Sequencer) RunPruner(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Prune(idle); n > 0 {
				s.logger.Info(ctx, "sequencer pruned idle conversations", zap.Int("count", n))
			}
		}
	}
}
