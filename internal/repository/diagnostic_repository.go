package repository

import (
	"context"
	"time"

	"medbridge/internal/domain/diagnostic"
	medbridge_errors "medbridge/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresDiagnosticRepository struct {
	db *gorm.DB
}

func NewDiagnosticRepository(db *gorm.DB) DiagnosticRepository {
	return &PostgresDiagnosticRepository{db: db}
}

func (r *PostgresDiagnosticRepository) Create(ctx context.Context, c *diagnostic.Conversation) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = diagnostic.StatusInProgress
	}
	return translate(r.db.WithContext(ctx).Create(c).Error, "diagnostic conversation")
}

func (r *PostgresDiagnosticRepository) GetByID(ctx context.Context, id uuid.UUID) (diagnostic.Conversation, error) {
	var c diagnostic.Conversation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return diagnostic.Conversation{}, translate(err, "diagnostic conversation")
	}
	return c, nil
}

func (r *PostgresDiagnosticRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (diagnostic.Conversation, error) {
	var c diagnostic.Conversation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return diagnostic.Conversation{}, translate(err, "diagnostic conversation")
	}
	return c, nil
}

func (r *PostgresDiagnosticRepository) ListBySubject(ctx context.Context, subjectID string) ([]diagnostic.Conversation, error) {
	var out []diagnostic.Conversation
	err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (r *PostgresDiagnosticRepository) MarkSpecified(ctx context.Context, id uuid.UUID, classification diagnostic.Specialty) error {
	res := r.db.WithContext(ctx).
		Model(&diagnostic.Conversation{}).
		Where("id = ? AND status = ? AND is_final = ?", id, diagnostic.StatusInProgress, false).
		Updates(map[string]interface{}{
			"classification": classification,
			"is_final":       true,
			"status":         diagnostic.StatusSpecified,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return medbridge_errors.InvalidState("diagnosis has already been finalized")
	}
	return nil
}

func (r *PostgresDiagnosticRepository) MarkCompleted(ctx context.Context, id uuid.UUID, reportPath, qrCodePath string) error {
	res := r.db.WithContext(ctx).
		Model(&diagnostic.Conversation{}).
		Where("id = ? AND status = ?", id, diagnostic.StatusSpecified).
		Updates(map[string]interface{}{
			"report_path":  reportPath,
			"qr_code_path": qrCodePath,
			"status":       diagnostic.StatusCompleted,
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return medbridge_errors.InvalidState("diagnosis is not awaiting a report")
	}
	return nil
}

func (r *PostgresDiagnosticRepository) AssignResponder(ctx context.Context, id uuid.UUID, responderID string) error {
	res := r.db.WithContext(ctx).
		Model(&diagnostic.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"assigned_responder_id": responderID,
			"updated_at":            time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return medbridge_errors.NotFound("diagnostic conversation not found")
	}
	return nil
}

func (r *PostgresDiagnosticRepository) AddTurn(ctx context.Context, t *diagnostic.Turn) error {
	if t.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		t.ID = id
	}
	return translate(r.db.WithContext(ctx).Create(t).Error, "diagnostic turn")
}

func (r *PostgresDiagnosticRepository) ListTurns(ctx context.Context, conversationID uuid.UUID) ([]diagnostic.Turn, error) {
	var out []diagnostic.Turn
	err := r.db.WithContext(ctx).
		Where("diagnostic_conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}
