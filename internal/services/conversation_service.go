package services

import (
	"context"
	"errors"

	"medbridge/internal/domain/conversation"
	"medbridge/internal/domain/identity"
	"medbridge/internal/domain/message"
	"medbridge/internal/domain/pairing"
	"medbridge/internal/repository"
	medbridge_errors "medbridge/pkg/errors"
	"medbridge/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ConversationSummary is one row of a user's conversation list.
type ConversationSummary struct {
	conversation.Conversation
	Counterpart *identity.Identity `json:"counterpart,omitempty"`
	LastMessage *message.Message   `json:"last_message,omitempty"`
	Closed      bool               `json:"closed"`
}

type ConversationService struct {
	db         *gorm.DB
	repo       repository.ConversationRepository
	messages   repository.MessageRepository
	requests   repository.PairingRepository
	identities *IdentityService
	logger     *logger.Logger
}

func NewConversationService(db *gorm.DB, identities *IdentityService, log *logger.Logger) *ConversationService {
	return &ConversationService{
		db:         db,
		repo:       repository.NewConversationRepository(db),
		messages:   repository.NewMessageRepository(db),
		requests:   repository.NewPairingRepository(db),
		identities: identities,
		logger:     log.With(zap.String("component", "conversations")),
	}
}

// EnsureConversation returns the conversation for an accepted request,
// creating it if needed. The two users must be the request's parties, in
// either order. Concurrent callers for one request all get the same row.
func (s *ConversationService) EnsureConversation(ctx context.Context, requestID uuid.UUID, requesterID, responderID string) (conversation.Conversation, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if !sameParties(req, requesterID, responderID) {
		return conversation.Conversation{}, medbridge_errors.Forbidden("users are not the parties of this request")
	}
	if existing, err := s.repo.GetByPairingRequest(ctx, requestID); err == nil {
		return existing, nil
	} else if !errors.Is(err, medbridge_errors.ErrNotFound) {
		return conversation.Conversation{}, err
	}
	if req.Status != pairing.StatusAccepted {
		return conversation.Conversation{}, medbridge_errors.InvalidState("request is " + string(req.Status) + ", not accepted")
	}

	requester, responder, err := s.resolvePair(ctx, requesterID, responderID)
	if err != nil {
		return conversation.Conversation{}, err
	}

	var conv conversation.Conversation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		conv, err = s.ensureTx(ctx, tx, requestID, requester, responder)
		return err
	})
	return conv, err
}

func (s *ConversationService) resolvePair(ctx context.Context, aID, bID string) (identity.Identity, identity.Identity, error) {
	a, err := s.identities.Resolve(ctx, aID)
	if err != nil {
		return identity.Identity{}, identity.Identity{}, err
	}
	b, err := s.identities.Resolve(ctx, bID)
	if err != nil {
		return identity.Identity{}, identity.Identity{}, err
	}
	return a, b, nil
}

func sameParties(req pairing.Request, a, b string) bool {
	return (req.RequesterID == a && req.ResponderID == b) || (req.RequesterID == b && req.ResponderID == a)
}

// ensureTx runs inside the caller's transaction. Identities are resolved
// beforehand so no lookup competes with tx for a connection. The request is
// re-read through tx so an accept in the same transaction is visible.
func (s *ConversationService) ensureTx(ctx context.Context, tx *gorm.DB, requestID uuid.UUID, a, b identity.Identity) (conversation.Conversation, error) {
	repo := repository.NewConversationRepository(tx)

	req, err := repository.NewPairingRepository(tx).GetByID(ctx, requestID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if !sameParties(req, a.UserID, b.UserID) {
		return conversation.Conversation{}, medbridge_errors.Forbidden("users are not the parties of this request")
	}

	existing, err := repo.GetByPairingRequest(ctx, requestID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, medbridge_errors.ErrNotFound) {
		return conversation.Conversation{}, err
	}
	if req.Status != pairing.StatusAccepted {
		return conversation.Conversation{}, medbridge_errors.InvalidState("request is " + string(req.Status) + ", not accepted")
	}

	if a.Role == b.Role {
		return conversation.Conversation{}, medbridge_errors.RoleMismatch("conversation needs one requester and one responder")
	}
	responder, requester := a, b
	if a.Role == identity.RoleRequester {
		responder, requester = b, a
	}

	conv := conversation.Conversation{
		ID:               uuid.New(),
		PairingRequestID: requestID,
		ResponderID:      responder.UserID,
		RequesterID:      requester.UserID,
	}

	// The savepoint keeps the outer transaction usable if we lose the race.
	err = tx.Transaction(func(sp *gorm.DB) error {
		return repository.NewConversationRepository(sp).Create(ctx, &conv)
	})
	if errors.Is(err, medbridge_errors.ErrConflict) {
		return repo.GetByPairingRequest(ctx, requestID)
	}
	if err != nil {
		return conversation.Conversation{}, err
	}
	return conv, nil
}

// GetConversation returns the conversation if actor participates in it.
func (s *ConversationService) GetConversation(ctx context.Context, id uuid.UUID, actorID string) (conversation.Conversation, error) {
	conv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if !conv.HasParticipant(actorID) {
		return conversation.Conversation{}, medbridge_errors.Forbidden("not a participant of this conversation")
	}
	return conv, nil
}

// ListConversations returns the user's conversations, most recently active
// first, each with its counterpart and last message.
func (s *ConversationService) ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	convs, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return []ConversationSummary{}, nil
	}

	convIDs := make([]uuid.UUID, 0, len(convs))
	counterpartIDs := make([]string, 0, len(convs))
	for _, c := range convs {
		convIDs = append(convIDs, c.ID)
		counterpartIDs = append(counterpartIDs, c.Counterpart(userID))
	}

	latest, err := s.messages.LatestByConversations(ctx, convIDs)
	if err != nil {
		return nil, err
	}
	people, err := s.identities.ResolveMany(ctx, counterpartIDs)
	if err != nil {
		return nil, err
	}

	out := make([]ConversationSummary, 0, len(convs))
	for _, c := range convs {
		summary := ConversationSummary{Conversation: c}
		if who, ok := people[c.Counterpart(userID)]; ok {
			who := who
			summary.Counterpart = &who
		}
		if m, ok := latest[c.ID]; ok {
			m := m
			summary.LastMessage = &m
		}
		if req, err := s.requests.GetByID(ctx, c.PairingRequestID); err == nil {
			summary.Closed = req.Status == pairing.StatusCompleted
		}
		out = append(out, summary)
	}
	return out, nil
}

// CloseConversation ends an accepted pairing. The conversation stays
// readable; further sends fail and the pair may request again.
func (s *ConversationService) CloseConversation(ctx context.Context, id uuid.UUID, actorID string) (conversation.Conversation, error) {
	conv, err := s.GetConversation(ctx, id, actorID)
	if err != nil {
		return conversation.Conversation{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewConversationRepository(tx).LockSequence(ctx, conv.ID); err != nil {
			return err
		}
		return repository.NewPairingRepository(tx).TransitionStatus(ctx, conv.PairingRequestID, pairing.StatusAccepted, pairing.StatusCompleted)
	})
	if err != nil {
		if errors.Is(err, medbridge_errors.ErrInvalidState) {
			return conversation.Conversation{}, medbridge_errors.InvalidState("conversation is already closed")
		}
		return conversation.Conversation{}, err
	}

	s.logger.Info(ctx, "conversation closed",
		zap.String("conversation_id", conv.ID.String()),
		zap.String("closed_by", actorID),
	)
	return conv, nil
}
