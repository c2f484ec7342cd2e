package services

import (
	"context"
	"strings"

	"medbridge/internal/agent"
	"medbridge/internal/domain/diagnostic"
	"medbridge/internal/domain/identity"
	"medbridge/internal/domain/notification"
	"medbridge/internal/repository"
	medbridge_errors "medbridge/pkg/errors"
	"medbridge/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AgentClient relays intake text to the triage agent.
type AgentClient interface {
	Ask(ctx context.Context, req agent.Request) (agent.Reply, error)
}

type AppendTurnInput struct {
	InboundText    string
	OutboundText   string
	Classification string
	IsFinal        bool
}

type TurnResult struct {
	Turn         diagnostic.Turn         `json:"turn"`
	Conversation diagnostic.Conversation `json:"conversation"`
}

type DiagnosticService struct {
	db         *gorm.DB
	repo       repository.DiagnosticRepository
	identities *IdentityService
	agent      AgentClient
	notifier   Notifier
	logger     *logger.Logger
}

func NewDiagnosticService(db *gorm.DB, identities *IdentityService, agentClient AgentClient, notifier Notifier, log *logger.Logger) *DiagnosticService {
	return &DiagnosticService{
		db:         db,
		repo:       repository.NewDiagnosticRepository(db),
		identities: identities,
		agent:      agentClient,
		notifier:   notifier,
		logger:     log.With(zap.String("component", "diagnostics")),
	}
}

// Start opens an intake for subjectID around an uploaded image.
func (s *DiagnosticService) Start(ctx context.Context, subjectID, imagePath string) (diagnostic.Conversation, error) {
	imagePath = strings.TrimSpace(imagePath)
	if imagePath == "" {
		return diagnostic.Conversation{}, medbridge_errors.InvalidInput("please upload a photo")
	}
	if _, err := s.identities.Resolve(ctx, subjectID); err != nil {
		return diagnostic.Conversation{}, err
	}

	conv := diagnostic.Conversation{
		ID:        uuid.New(),
		SubjectID: subjectID,
		ImagePath: imagePath,
		Status:    diagnostic.StatusInProgress,
	}
	if err := s.repo.Create(ctx, &conv); err != nil {
		return diagnostic.Conversation{}, err
	}
	return conv, nil
}

// AppendTurn records one exchange. A final turn with a classification
// moves the conversation to specified in the same transaction.
func (s *DiagnosticService) AppendTurn(ctx context.Context, id uuid.UUID, in AppendTurnInput) (TurnResult, error) {
	var specialty diagnostic.Specialty
	finalize := false
	if raw := strings.TrimSpace(in.Classification); raw != "" {
		parsed, ok := diagnostic.ParseSpecialty(raw)
		if !ok {
			return TurnResult{}, medbridge_errors.InvalidInput("unknown specialty " + raw)
		}
		specialty = parsed
		finalize = in.IsFinal
	}

	var conv diagnostic.Conversation
	turn := diagnostic.Turn{
		InboundText:  in.InboundText,
		OutboundText: in.OutboundText,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewDiagnosticRepository(tx)
		// The row lock orders this turn against a concurrent finalize.
		locked, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if locked.IsFinal {
			return medbridge_errors.InvalidState("already diagnosed")
		}
		conv = locked
		turn.DiagnosticConversationID = conv.ID
		if finalize {
			if err := repo.MarkSpecified(ctx, conv.ID, specialty); err != nil {
				return err
			}
		}
		return repo.AddTurn(ctx, &turn)
	})
	if err != nil {
		return TurnResult{}, err
	}

	updated, err := s.repo.GetByID(ctx, conv.ID)
	if err != nil {
		return TurnResult{}, err
	}
	if finalize {
		s.logger.Info(ctx, "diagnosis specified",
			zap.String("diagnostic_id", conv.ID.String()),
			zap.String("specialty", string(specialty)),
		)
		if s.notifier != nil {
			_ = s.notifier.Enqueue(NotificationJob{
				RecipientID: conv.SubjectID,
				Title:       "Your diagnosis is ready",
				Body:        "Recommended specialty: " + strings.ReplaceAll(string(specialty), "_", " "),
				Kind:        notification.KindDiagnosis,
				Metadata:    map[string]string{"diagnostic_id": conv.ID.String()},
			})
		}
	}
	return TurnResult{Turn: turn, Conversation: updated}, nil
}

// Ask relays subject's message to the triage agent and records the reply
// as a turn.
func (s *DiagnosticService) Ask(ctx context.Context, id uuid.UUID, subjectID, text string, age int) (TurnResult, error) {
	if strings.TrimSpace(text) == "" {
		return TurnResult{}, medbridge_errors.InvalidInput("message is required")
	}
	conv, err := s.Get(ctx, id, subjectID)
	if err != nil {
		return TurnResult{}, err
	}
	if conv.IsFinal {
		return TurnResult{}, medbridge_errors.InvalidState("already diagnosed")
	}
	if s.agent == nil {
		return TurnResult{}, medbridge_errors.Dependency("AI agent is not configured", nil)
	}

	reply, err := s.agent.Ask(ctx, agent.Request{Message: text, Age: age, ConversationID: conv.ID.String()})
	if err != nil {
		return TurnResult{}, medbridge_errors.Dependency("AI agent unavailable", err)
	}
	return s.AppendTurn(ctx, conv.ID, AppendTurnInput{
		InboundText:    text,
		OutboundText:   reply.Response,
		Classification: reply.Speciality,
		IsFinal:        reply.IsFinal,
	})
}

// Complete attaches the generated report to a specified diagnosis.
func (s *DiagnosticService) Complete(ctx context.Context, id uuid.UUID, reportPath, qrCodePath string) (diagnostic.Conversation, error) {
	if strings.TrimSpace(reportPath) == "" {
		return diagnostic.Conversation{}, medbridge_errors.InvalidInput("report path is required")
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return diagnostic.Conversation{}, err
	}
	if err := s.repo.MarkCompleted(ctx, id, reportPath, qrCodePath); err != nil {
		return diagnostic.Conversation{}, err
	}
	return s.repo.GetByID(ctx, id)
}

// AssignResponder links a diagnosis to the responder handling it.
func (s *DiagnosticService) AssignResponder(ctx context.Context, id uuid.UUID, responderID string) error {
	who, err := s.identities.Resolve(ctx, responderID)
	if err != nil {
		return err
	}
	if who.Role != identity.RoleResponder {
		return medbridge_errors.RoleMismatch("only responders can be assigned")
	}
	return s.repo.AssignResponder(ctx, id, responderID)
}

// Get returns a diagnosis visible to actor: its subject or the assigned
// responder. An empty actor skips the check.
func (s *DiagnosticService) Get(ctx context.Context, id uuid.UUID, actorID string) (diagnostic.Conversation, error) {
	conv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return diagnostic.Conversation{}, err
	}
	if actorID != "" && conv.SubjectID != actorID &&
		(conv.AssignedResponderID == nil || *conv.AssignedResponderID != actorID) {
		return diagnostic.Conversation{}, medbridge_errors.Forbidden("not allowed to view this diagnosis")
	}
	return conv, nil
}

func (s *DiagnosticService) ListForSubject(ctx context.Context, subjectID string) ([]diagnostic.Conversation, error) {
	out, err := s.repo.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []diagnostic.Conversation{}
	}
	return out, nil
}

func (s *DiagnosticService) Turns(ctx context.Context, id uuid.UUID, actorID string) ([]diagnostic.Turn, error) {
	if _, err := s.Get(ctx, id, actorID); err != nil {
		return nil, err
	}
	out, err := s.repo.ListTurns(ctx, id)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []diagnostic.Turn{}
	}
	return out, nil
}
