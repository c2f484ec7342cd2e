package services

import (
	"sync"
	"testing"

	"medbridge/internal/domain/conversation"
	"medbridge/internal/domain/identity"
	"medbridge/internal/domain/message"
	"medbridge/internal/repository"
	"medbridge/internal/testutil"
	"medbridge/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu   sync.Mutex
	jobs []NotificationJob
	err  error
}

func (n *recordingNotifier) Enqueue(job NotificationJob) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, job)
	return n.err
}

func (n *recordingNotifier) Jobs() []NotificationJob {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]NotificationJob, len(n.jobs))
	copy(out, n.jobs)
	return out
}

type recordingEmitter struct {
	mu       sync.Mutex
	msgs     []message.Message
	reserved []int64
}

func (e *recordingEmitter) Reserve(_ uuid.UUID, seq int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reserved = append(e.reserved, seq)
}

func (e *recordingEmitter) Reserved() []int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int64(nil), e.reserved...)
}

func (e *recordingEmitter) Emit(_ conversation.Conversation, msg message.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.msgs = append(e.msgs, msg)
}

func (e *recordingEmitter) Messages() []message.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]message.Message, len(e.msgs))
	copy(out, e.msgs)
	return out
}

type fixture struct {
	db            *gorm.DB
	identities    *IdentityService
	notifier      *recordingNotifier
	emitter       *recordingEmitter
	conversations *ConversationService
	pairing       *PairingService
	messages      *MessageService
	diagnostics   *DiagnosticService
}

// newFixture seeds patient1, patient2 (requesters) and doctor1, doctor2
// (responders). Only patient1 and doctor1 have push tokens.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	testutil.SeedUser(t, db, "patient1", identity.RoleRequester, "tok-p1")
	testutil.SeedUser(t, db, "patient2", identity.RoleRequester, "")
	testutil.SeedUser(t, db, "doctor1", identity.RoleResponder, "tok-d1")
	testutil.SeedUser(t, db, "doctor2", identity.RoleResponder, "")

	log := logger.NewNop()
	f := &fixture{
		db:         db,
		identities: NewIdentityService(repository.NewUserRepository(db), nil, log),
		notifier:   &recordingNotifier{},
		emitter:    &recordingEmitter{},
	}
	f.conversations = NewConversationService(db, f.identities, log)
	f.pairing = NewPairingService(db, f.conversations, f.identities, f.notifier, log)
	f.messages = NewMessageService(db, f.identities, f.emitter, f.notifier, log)
	f.diagnostics = NewDiagnosticService(db, f.identities, nil, f.notifier, log)
	return f
}
