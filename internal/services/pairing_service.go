package services

import (
	"context"
	"errors"
	"strings"

	"medbridge/internal/domain/conversation"
	"medbridge/internal/domain/diagnostic"
	"medbridge/internal/domain/identity"
	"medbridge/internal/domain/notification"
	"medbridge/internal/domain/pairing"
	"medbridge/internal/repository"
	medbridge_errors "medbridge/pkg/errors"
	"medbridge/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RequestView is a request with the other party's identity attached.
type RequestView struct {
	pairing.Request
	Counterpart     *identity.Identity       `json:"counterpart,omitempty"`
	LatestDiagnosis *diagnostic.Conversation `json:"latest_diagnosis,omitempty"`
}

type AcceptedRequests struct {
	AsRequester []RequestView `json:"as_requester"`
	AsResponder []RequestView `json:"as_responder"`
}

// RequestDetail is a single request and, once accepted, its conversation.
type RequestDetail struct {
	RequestView
	Conversation *conversation.Conversation `json:"conversation,omitempty"`
}

// RespondResult is returned by AcceptOrReject. Conversation is set on
// accept only.
type RespondResult struct {
	Request      pairing.Request            `json:"request"`
	Conversation *conversation.Conversation `json:"conversation,omitempty"`
}

type PairingService struct {
	db            *gorm.DB
	repo          repository.PairingRepository
	diagnostics   repository.DiagnosticRepository
	conversations *ConversationService
	identities    *IdentityService
	notifier      Notifier
	logger        *logger.Logger
}

func NewPairingService(db *gorm.DB, conversations *ConversationService, identities *IdentityService, notifier Notifier, log *logger.Logger) *PairingService {
	return &PairingService{
		db:            db,
		repo:          repository.NewPairingRepository(db),
		diagnostics:   repository.NewDiagnosticRepository(db),
		conversations: conversations,
		identities:    identities,
		notifier:      notifier,
		logger:        log.With(zap.String("component", "pairing")),
	}
}

// SendRequest records a pending request from a requester to a responder.
func (s *PairingService) SendRequest(ctx context.Context, requesterID, responderID string) (pairing.Request, error) {
	requesterID, responderID = strings.TrimSpace(requesterID), strings.TrimSpace(responderID)
	if requesterID == "" || responderID == "" {
		return pairing.Request{}, medbridge_errors.InvalidInput("requester and responder are required")
	}
	if requesterID == responderID {
		return pairing.Request{}, medbridge_errors.InvalidPair("cannot send a request to yourself")
	}

	requester, err := s.identities.Resolve(ctx, requesterID)
	if err != nil {
		return pairing.Request{}, err
	}
	responder, err := s.identities.Resolve(ctx, responderID)
	if err != nil {
		return pairing.Request{}, err
	}
	if requester.Role != identity.RoleRequester || responder.Role != identity.RoleResponder {
		return pairing.Request{}, medbridge_errors.InvalidPair("requests go from a requester to a responder")
	}

	req := pairing.Request{
		ID:          uuid.New(),
		RequesterID: requesterID,
		ResponderID: responderID,
		Status:      pairing.StatusPending,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewPairingRepository(tx)
		if _, err := repo.FindActiveBetween(ctx, requesterID, responderID); err == nil {
			return medbridge_errors.Conflict("an active request already exists between these users")
		} else if !errors.Is(err, medbridge_errors.ErrNotFound) {
			return err
		}
		// The unique active-pair key is authoritative if we race.
		return repo.Create(ctx, &req)
	})
	if err != nil {
		return pairing.Request{}, err
	}

	s.notify(NotificationJob{
		RecipientID: responderID,
		Title:       "New consultation request",
		Body:        displayName(requester, "A patient") + " sent you a new request.",
		Kind:        notification.KindNewRequest,
		Metadata:    map[string]string{"request_id": req.ID.String(), "requester_id": requesterID},
	})

	s.logger.Info(ctx, "pairing request sent",
		zap.String("request_id", req.ID.String()),
		zap.String("requester_id", requesterID),
		zap.String("responder_id", responderID),
	)
	return req, nil
}

// AcceptOrReject settles a pending request. actorID, when set, must be the
// request's responder.
func (s *PairingService) AcceptOrReject(ctx context.Context, requestID uuid.UUID, actorID string, accept bool) (RespondResult, error) {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return RespondResult{}, err
	}
	if actorID != "" && actorID != req.ResponderID {
		return RespondResult{}, medbridge_errors.Forbidden("only the responder can answer this request")
	}
	if req.Status != pairing.StatusPending {
		return RespondResult{}, medbridge_errors.InvalidState("request is already " + string(req.Status))
	}

	target := pairing.StatusRejected
	if accept {
		target = pairing.StatusAccepted
	}

	var requester, responder identity.Identity
	if accept {
		requester, responder, err = s.conversations.resolvePair(ctx, req.RequesterID, req.ResponderID)
		if err != nil {
			return RespondResult{}, err
		}
	}

	var conv *conversation.Conversation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewPairingRepository(tx).TransitionStatus(ctx, req.ID, pairing.StatusPending, target); err != nil {
			return err
		}
		if !accept {
			return nil
		}
		created, err := s.conversations.ensureTx(ctx, tx, req.ID, requester, responder)
		if err != nil {
			return err
		}
		conv = &created
		return nil
	})
	if err != nil {
		return RespondResult{}, err
	}

	updated, err := s.repo.GetByID(ctx, req.ID)
	if err != nil {
		return RespondResult{}, err
	}

	if accept {
		s.notify(NotificationJob{
			RecipientID: req.RequesterID,
			Title:       "Request accepted",
			Body:        displayName(responder, "Your doctor") + " accepted your request.",
			Kind:        notification.KindRequestAccepted,
			Metadata:    map[string]string{"request_id": req.ID.String(), "conversation_id": conv.ID.String()},
		})
	} else {
		name := "The doctor"
		if who, err := s.identities.Resolve(ctx, req.ResponderID); err == nil {
			name = displayName(who, name)
		}
		s.notify(NotificationJob{
			RecipientID: req.RequesterID,
			Title:       "Request declined",
			Body:        name + " declined your request.",
			Kind:        notification.KindRequestRejected,
			Metadata:    map[string]string{"request_id": req.ID.String()},
		})
	}

	s.logger.Info(ctx, "pairing request answered",
		zap.String("request_id", req.ID.String()),
		zap.String("status", string(updated.Status)),
	)
	return RespondResult{Request: updated, Conversation: conv}, nil
}

// CancelRequest withdraws the requester's pending request. It reports
// false, not an error, when there was nothing to cancel.
func (s *PairingService) CancelRequest(ctx context.Context, requesterID, responderID string) (bool, error) {
	cancelled, err := s.repo.DeletePending(ctx, requesterID, responderID)
	if err != nil {
		return false, err
	}
	if cancelled {
		s.logger.Info(ctx, "pairing request cancelled",
			zap.String("requester_id", requesterID),
			zap.String("responder_id", responderID),
		)
	}
	return cancelled, nil
}

func (s *PairingService) ListReceived(ctx context.Context, responderID string, status *pairing.Status) ([]RequestView, error) {
	reqs, err := s.repo.ListReceived(ctx, responderID, status)
	if err != nil {
		return nil, err
	}
	views, err := s.decorate(ctx, reqs, responderID)
	if err != nil {
		return nil, err
	}
	for i := range views {
		views[i].LatestDiagnosis = s.latestDiagnosis(ctx, views[i].RequesterID)
	}
	return views, nil
}

func (s *PairingService) ListSent(ctx context.Context, requesterID string) ([]RequestView, error) {
	reqs, err := s.repo.ListSent(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	return s.decorate(ctx, reqs, requesterID)
}

func (s *PairingService) ListAccepted(ctx context.Context, userID string) (AcceptedRequests, error) {
	asRequester, asResponder, err := s.repo.ListAccepted(ctx, userID)
	if err != nil {
		return AcceptedRequests{}, err
	}
	out := AcceptedRequests{}
	if out.AsRequester, err = s.decorate(ctx, asRequester, userID); err != nil {
		return AcceptedRequests{}, err
	}
	if out.AsResponder, err = s.decorate(ctx, asResponder, userID); err != nil {
		return AcceptedRequests{}, err
	}
	return out, nil
}

// GetRequest returns a request the actor is party to.
func (s *PairingService) GetRequest(ctx context.Context, requestID uuid.UUID, actorID string) (RequestDetail, error) {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return RequestDetail{}, err
	}
	if !req.Involves(actorID) {
		return RequestDetail{}, medbridge_errors.Forbidden("not a party to this request")
	}

	views, err := s.decorate(ctx, []pairing.Request{req}, actorID)
	if err != nil {
		return RequestDetail{}, err
	}
	detail := RequestDetail{RequestView: views[0]}
	detail.LatestDiagnosis = s.latestDiagnosis(ctx, req.RequesterID)

	if req.Status == pairing.StatusAccepted || req.Status == pairing.StatusCompleted {
		conv, err := s.conversations.repo.GetByPairingRequest(ctx, req.ID)
		if err == nil {
			detail.Conversation = &conv
		} else if !errors.Is(err, medbridge_errors.ErrNotFound) {
			return RequestDetail{}, err
		}
	}
	return detail, nil
}

func (s *PairingService) decorate(ctx context.Context, reqs []pairing.Request, viewerID string) ([]RequestView, error) {
	views := make([]RequestView, 0, len(reqs))
	if len(reqs) == 0 {
		return views, nil
	}

	ids := make([]string, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, counterpartOf(r, viewerID))
	}
	people, err := s.identities.ResolveMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, r := range reqs {
		view := RequestView{Request: r}
		if who, ok := people[counterpartOf(r, viewerID)]; ok {
			who := who
			view.Counterpart = &who
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *PairingService) latestDiagnosis(ctx context.Context, subjectID string) *diagnostic.Conversation {
	list, err := s.diagnostics.ListBySubject(ctx, subjectID)
	if err != nil {
		s.logger.Warn(ctx, "latest diagnosis lookup failed", zap.String("subject_id", subjectID), zap.Error(err))
		return nil
	}
	if len(list) == 0 {
		return nil
	}
	return &list[0]
}

func (s *PairingService) notify(job NotificationJob) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Enqueue(job)
}

func counterpartOf(r pairing.Request, viewerID string) string {
	if r.RequesterID == viewerID {
		return r.ResponderID
	}
	return r.RequesterID
}

func displayName(id identity.Identity, fallback string) string {
	if id.DisplayName != "" {
		return id.DisplayName
	}
	return fallback
}
