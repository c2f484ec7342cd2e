package repository

import (
	"context"
	"time"

	"medbridge/internal/domain/pairing"
	medbridge_errors "medbridge/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresPairingRepository struct {
	db *gorm.DB
}

func NewPairingRepository(db *gorm.DB) PairingRepository {
	return &PostgresPairingRepository{db: db}
}

func (r *PostgresPairingRepository) Create(ctx context.Context, req *pairing.Request) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.Status == "" {
		req.Status = pairing.StatusPending
	}
	if req.Status.IsActive() {
		key := pairing.PairKey(req.RequesterID, req.ResponderID)
		req.ActivePairKey = &key
	}
	err := r.db.WithContext(ctx).Create(req).Error
	if isDuplicateKey(err) {
		return medbridge_errors.Wrap(medbridge_errors.ErrConflict, "an active request already exists between these users", err)
	}
	return err
}

func (r *PostgresPairingRepository) GetByID(ctx context.Context, id uuid.UUID) (pairing.Request, error) {
	var req pairing.Request
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return pairing.Request{}, translate(err, "request")
	}
	return req, nil
}

func (r *PostgresPairingRepository) FindActiveBetween(ctx context.Context, userA, userB string) (pairing.Request, error) {
	var req pairing.Request
	err := r.db.WithContext(ctx).
		Where("active_pair_key = ?", pairing.PairKey(userA, userB)).
		First(&req).Error
	if err != nil {
		return pairing.Request{}, translate(err, "request")
	}
	return req, nil
}

func (r *PostgresPairingRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to pairing.Status) error {
	if !pairing.CanTransition(from, to) {
		return medbridge_errors.InvalidState("request cannot move from " + string(from) + " to " + string(to))
	}
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	if !to.IsActive() {
		updates["active_pair_key"] = nil
	}
	res := r.db.WithContext(ctx).
		Model(&pairing.Request{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return medbridge_errors.InvalidState("request is no longer " + string(from))
	}
	return nil
}

func (r *PostgresPairingRepository) DeletePending(ctx context.Context, requesterID, responderID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("requester_id = ? AND responder_id = ? AND status = ?", requesterID, responderID, pairing.StatusPending).
		Delete(&pairing.Request{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *PostgresPairingRepository) ListReceived(ctx context.Context, responderID string, status *pairing.Status) ([]pairing.Request, error) {
	var reqs []pairing.Request
	q := r.db.WithContext(ctx).Where("responder_id = ?", responderID)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	err := q.Order("created_at DESC").Find(&reqs).Error
	return reqs, err
}

func (r *PostgresPairingRepository) ListSent(ctx context.Context, requesterID string) ([]pairing.Request, error) {
	var reqs []pairing.Request
	err := r.db.WithContext(ctx).
		Where("requester_id = ?", requesterID).
		Order("created_at DESC").
		Find(&reqs).Error
	return reqs, err
}

func (r *PostgresPairingRepository) ListAccepted(ctx context.Context, userID string) ([]pairing.Request, []pairing.Request, error) {
	var reqs []pairing.Request
	err := r.db.WithContext(ctx).
		Where("status = ? AND (requester_id = ? OR responder_id = ?)", pairing.StatusAccepted, userID, userID).
		Order("updated_at DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, nil, err
	}

	asRequester := make([]pairing.Request, 0)
	asResponder := make([]pairing.Request, 0)
	for _, req := range reqs {
		if req.RequesterID == userID {
			asRequester = append(asRequester, req)
		} else {
			asResponder = append(asResponder, req)
		}
	}
	return asRequester, asResponder, nil
}
