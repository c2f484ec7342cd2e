package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"medbridge/internal/domain/conversation"
	"medbridge/internal/domain/message"
	"medbridge/internal/domain/pairing"
	"medbridge/internal/repository"
	medbridge_errors "medbridge/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func acceptPair(t *testing.T, f *fixture, requesterID, responderID string) conversation.Conversation {
	t.Helper()
	ctx := context.Background()
	req, err := f.pairing.SendRequest(ctx, requesterID, responderID)
	require.NoError(t, err)
	res, err := f.pairing.AcceptOrReject(ctx, req.ID, responderID, true)
	require.NoError(t, err)
	require.NotNil(t, res.Conversation)
	return *res.Conversation
}

func textPayload(s string) message.Payload {
	return message.Payload{Text: s}
}

func TestEnsureConversation_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := acceptPair(t, f, "patient1", "doctor1")

	again, err := f.conversations.EnsureConversation(ctx, conv.PairingRequestID, "doctor1", "patient1")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)

	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 6)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := f.conversations.EnsureConversation(ctx, conv.PairingRequestID, "patient1", "doctor1")
			assert.NoError(t, err)
			ids[i] = c.ID
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, conv.ID, id)
	}
}

// acceptedRequest stores an accepted request with no conversation yet, the
// state an accept leaves behind mid-transaction.
func acceptedRequest(t *testing.T, f *fixture, requesterID, responderID string) pairing.Request {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewPairingRepository(f.db)
	req := pairing.Request{RequesterID: requesterID, ResponderID: responderID}
	require.NoError(t, repo.Create(ctx, &req))
	require.NoError(t, repo.TransitionStatus(ctx, req.ID, pairing.StatusPending, pairing.StatusAccepted))
	req.Status = pairing.StatusAccepted
	return req
}

func TestEnsureConversation_NormalizesRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := acceptedRequest(t, f, "patient2", "doctor2")

	// Argument order does not decide which side is the responder.
	conv, err := f.conversations.EnsureConversation(ctx, req.ID, "doctor2", "patient2")
	require.NoError(t, err)
	assert.Equal(t, "doctor2", conv.ResponderID)
	assert.Equal(t, "patient2", conv.RequesterID)
	assert.Equal(t, req.ID, conv.PairingRequestID)
}

func TestEnsureConversation_RequiresAcceptedRequestAndItsParties(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.pairing.SendRequest(ctx, "patient1", "doctor1")
	require.NoError(t, err)

	_, err = f.conversations.EnsureConversation(ctx, req.ID, "patient1", "doctor1")
	assert.True(t, errors.Is(err, medbridge_errors.ErrInvalidState), "pending request")

	_, err = f.conversations.EnsureConversation(ctx, req.ID, "patient2", "doctor2")
	assert.True(t, errors.Is(err, medbridge_errors.ErrForbidden), "strangers")

	_, err = f.conversations.EnsureConversation(ctx, req.ID, "patient1", "doctor2")
	assert.True(t, errors.Is(err, medbridge_errors.ErrForbidden), "one stranger")

	_, err = f.conversations.EnsureConversation(ctx, uuid.New(), "patient1", "doctor1")
	assert.True(t, errors.Is(err, medbridge_errors.ErrNotFound))

	var count int64
	require.NoError(t, f.db.Model(&conversation.Conversation{}).Count(&count).Error)
	assert.Zero(t, count)

	// The later accept creates the conversation for the real parties.
	res, err := f.pairing.AcceptOrReject(ctx, req.ID, "doctor1", true)
	require.NoError(t, err)
	require.NotNil(t, res.Conversation)
	assert.Equal(t, "patient1", res.Conversation.RequesterID)
	assert.Equal(t, "doctor1", res.Conversation.ResponderID)

	_, err = f.conversations.EnsureConversation(ctx, req.ID, "patient2", "doctor2")
	assert.True(t, errors.Is(err, medbridge_errors.ErrForbidden), "strangers never see the existing row")
}

func TestEnsureConversation_RoleMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	same := acceptedRequest(t, f, "patient1", "patient2")
	_, err := f.conversations.EnsureConversation(ctx, same.ID, "patient1", "patient2")
	assert.True(t, errors.Is(err, medbridge_errors.ErrRoleMismatch))

	ghost := acceptedRequest(t, f, "patient1", "nobody")
	_, err = f.conversations.EnsureConversation(ctx, ghost.ID, "patient1", "nobody")
	assert.True(t, errors.Is(err, medbridge_errors.ErrNotFound))
}

func TestGetConversation_ParticipantsOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := acceptPair(t, f, "patient1", "doctor1")

	got, err := f.conversations.GetConversation(ctx, conv.ID, "patient1")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	_, err = f.conversations.GetConversation(ctx, conv.ID, "doctor2")
	assert.True(t, errors.Is(err, medbridge_errors.ErrForbidden))

	_, err = f.conversations.GetConversation(ctx, uuid.New(), "patient1")
	assert.True(t, errors.Is(err, medbridge_errors.ErrNotFound))
}

func TestListConversations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := acceptPair(t, f, "patient1", "doctor1")
	second := acceptPair(t, f, "patient1", "doctor2")

	_, err := f.messages.SendMessage(ctx, SendMessageInput{
		ConversationID: first.ID, SenderID: "doctor1", Kind: message.KindText, Payload: textPayload("hello"),
	})
	require.NoError(t, err)

	list, err := f.conversations.ListConversations(ctx, "patient1")
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, first.ID, list[0].ID, "most recently active first")
	require.NotNil(t, list[0].LastMessage)
	assert.Equal(t, "hello", *list[0].LastMessage.Text)
	require.NotNil(t, list[0].Counterpart)
	assert.Equal(t, "doctor1", list[0].Counterpart.UserID)

	assert.Equal(t, second.ID, list[1].ID)
	assert.Nil(t, list[1].LastMessage)
	assert.False(t, list[1].Closed)

	empty, err := f.conversations.ListConversations(ctx, "patient2")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCloseConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := acceptPair(t, f, "patient1", "doctor1")

	_, err := f.conversations.CloseConversation(ctx, conv.ID, "doctor2")
	assert.True(t, errors.Is(err, medbridge_errors.ErrForbidden))

	_, err = f.conversations.CloseConversation(ctx, conv.ID, "doctor1")
	require.NoError(t, err)

	_, err = f.conversations.CloseConversation(ctx, conv.ID, "patient1")
	assert.True(t, errors.Is(err, medbridge_errors.ErrInvalidState))

	_, err = f.messages.SendMessage(ctx, SendMessageInput{
		ConversationID: conv.ID, SenderID: "patient1", Kind: message.KindText, Payload: textPayload("still there?"),
	})
	assert.True(t, errors.Is(err, medbridge_errors.ErrInvalidState))

	// History stays readable.
	_, err = f.messages.GetHistory(ctx, conv.ID, "patient1", 10, 0)
	require.NoError(t, err)

	list, err := f.conversations.ListConversations(ctx, "patient1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Closed)

	req, err := f.pairing.GetRequest(ctx, conv.PairingRequestID, "patient1")
	require.NoError(t, err)
	assert.Equal(t, pairing.StatusCompleted, req.Status)

	// The pair may start over.
	again := acceptPair(t, f, "patient1", "doctor1")
	assert.NotEqual(t, conv.ID, again.ID)
}
