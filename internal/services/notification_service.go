package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"medbridge/internal/domain/notification"
	"medbridge/internal/push"
	"medbridge/internal/repository"
	medbridge_errors "medbridge/pkg/errors"
	"medbridge/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// NotificationJob is one notification to store and push.
type NotificationJob struct {
	RecipientID string
	Title       string
	Body        string
	Kind        notification.Kind
	Metadata    map[string]string
}

// NotificationService persists notifications and pushes them to devices. Jobs
// are handed to a fixed pool of workers through a bounded queue so callers
// never wait on storage or the push provider.
type NotificationService struct {
	repo     repository.NotificationRepository
	resolver IdentityResolver
	provider push.Provider
	logger   *logger.Logger

	jobs        chan NotificationJob
	workers     int
	sendTimeout time.Duration

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

func NewNotificationService(repo repository.NotificationRepository, resolver IdentityResolver, provider push.Provider, log *logger.Logger, workers, queueSize int) *NotificationService {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &NotificationService{
		repo:        repo,
		resolver:    resolver,
		provider:    provider,
		logger:      log.With(zap.String("component", "notifications")),
		jobs:        make(chan NotificationJob, queueSize),
		workers:     workers,
		sendTimeout: 15 * time.Second,
	}
}

// Start launches the worker pool. Calling it twice is a no-op.
func (s *NotificationService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.run()
	}
}

// Stop closes the queue and waits for queued jobs to drain.
func (s *NotificationService) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.jobs)
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *NotificationService) run() {
	defer s.wg.Done()
	for job := range s.jobs {
		s.process(job)
	}
}

// process runs one job. A panic in the provider is logged and the worker
// moves on to the next job.
func (s *NotificationService) process(job NotificationJob) {
	ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "notification worker recovered from panic",
				zap.String("recipient_id", job.RecipientID),
				zap.String("kind", string(job.Kind)),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()
	s.SendAndSave(ctx, job)
}

// Enqueue hands job to the worker pool without blocking. A full or stopped
// queue drops the job.
func (s *NotificationService) Enqueue(job NotificationJob) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Warn(context.Background(), "notification dropped, dispatcher stopped",
			zap.String("recipient_id", job.RecipientID), zap.String("kind", string(job.Kind)))
		return medbridge_errors.ErrQueueFull
	}
	select {
	case s.jobs <- job:
		return nil
	default:
		s.logger.Warn(context.Background(), "notification dropped, queue full",
			zap.String("recipient_id", job.RecipientID), zap.String("kind", string(job.Kind)))
		return medbridge_errors.ErrQueueFull
	}
}

// SendAndSave stores the notification, then pushes it if the recipient has
// a device token. Failures are logged and never returned.
func (s *NotificationService) SendAndSave(ctx context.Context, job NotificationJob) {
	fields := []zap.Field{zap.String("recipient_id", job.RecipientID), zap.String("kind", string(job.Kind))}

	var meta datatypes.JSON
	if len(job.Metadata) > 0 {
		raw, err := json.Marshal(job.Metadata)
		if err != nil {
			s.logger.Error(ctx, "notification metadata encode failed", append(fields, zap.Error(err))...)
		} else {
			meta = datatypes.JSON(raw)
		}
	}

	n := notification.Notification{
		ID:          uuid.New(),
		RecipientID: job.RecipientID,
		Title:       job.Title,
		Body:        job.Body,
		Kind:        job.Kind,
		Metadata:    meta,
	}
	if err := s.repo.Create(ctx, &n); err != nil {
		s.logger.Error(ctx, "notification save failed", append(fields, zap.Error(err))...)
	}

	if s.provider == nil || s.resolver == nil {
		return
	}
	recipient, err := s.resolver.Resolve(ctx, job.RecipientID)
	if err != nil {
		s.logger.Warn(ctx, "notification recipient lookup failed", append(fields, zap.Error(err))...)
		return
	}
	if !recipient.HasPushToken() {
		return
	}

	data := map[string]string{"kind": string(job.Kind), "notification_id": n.ID.String()}
	for k, v := range job.Metadata {
		data[k] = v
	}
	if err := s.provider.Send(ctx, recipient.PushToken, job.Title, job.Body, data); err != nil {
		s.logger.Error(ctx, "push send failed", append(fields, zap.Error(err))...)
	}
}

func (s *NotificationService) List(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]notification.Notification, error) {
	return s.repo.ListForRecipient(ctx, recipientID, unreadOnly, limit)
}

func (s *NotificationService) MarkRead(ctx context.Context, id uuid.UUID, recipientID string) error {
	return s.repo.MarkRead(ctx, id, recipientID)
}
