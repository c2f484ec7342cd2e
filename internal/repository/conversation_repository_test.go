package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"medbridge/internal/domain/conversation"
	"medbridge/internal/domain/message"
	"medbridge/internal/domain/pairing"
	"medbridge/internal/repository"
	"medbridge/internal/testutil"
	medbridge_errors "medbridge/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedAcceptedPair(t *testing.T, db *gorm.DB, requester, responder string) pairing.Request {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewPairingRepository(db)
	req := pairing.Request{RequesterID: requester, ResponderID: responder}
	require.NoError(t, repo.Create(ctx, &req))
	require.NoError(t, repo.TransitionStatus(ctx, req.ID, pairing.StatusPending, pairing.StatusAccepted))
	return req
}

func TestConversationRepository_OnePerRequest(t *testing.T) {
	db := testutil.NewDB(t)
	req := seedAcceptedPair(t, db, "p", "d")
	repo := repository.NewConversationRepository(db)
	ctx := context.Background()

	conv := conversation.Conversation{PairingRequestID: req.ID, ResponderID: "d", RequesterID: "p"}
	require.NoError(t, repo.Create(ctx, &conv))

	dup := conversation.Conversation{PairingRequestID: req.ID, ResponderID: "d", RequesterID: "p"}
	err := db.Transaction(func(tx *gorm.DB) error {
		return repository.NewConversationRepository(tx).Create(ctx, &dup)
	})
	assert.True(t, errors.Is(err, medbridge_errors.ErrConflict))

	got, err := repo.GetByPairingRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.True(t, errors.Is(err, medbridge_errors.ErrNotFound))
}

func TestConversationRepository_NextSequenceIsMonotonic(t *testing.T) {
	db := testutil.NewDB(t)
	req := seedAcceptedPair(t, db, "p", "d")
	repo := repository.NewConversationRepository(db)
	ctx := context.Background()

	conv := conversation.Conversation{PairingRequestID: req.ID, ResponderID: "d", RequesterID: "p"}
	require.NoError(t, repo.Create(ctx, &conv))

	frozen := time.Now().UTC().Add(-time.Hour)
	var lastSeq int64
	var lastAt time.Time
	for i := 0; i < 5; i++ {
		// A clock that does not move must still yield increasing timestamps.
		seq, at, err := repo.NextSequence(ctx, conv.ID, frozen)
		require.NoError(t, err)
		assert.Equal(t, lastSeq+1, seq)
		assert.True(t, at.After(lastAt))
		lastSeq, lastAt = seq, at
	}
}

func TestConversationRepository_ListForUser(t *testing.T) {
	db := testutil.NewDB(t)
	r1 := seedAcceptedPair(t, db, "p1", "d1")
	r2 := seedAcceptedPair(t, db, "p2", "d1")
	repo := repository.NewConversationRepository(db)
	ctx := context.Background()

	c1 := conversation.Conversation{PairingRequestID: r1.ID, ResponderID: "d1", RequesterID: "p1"}
	c2 := conversation.Conversation{PairingRequestID: r2.ID, ResponderID: "d1", RequesterID: "p2"}
	require.NoError(t, repo.Create(ctx, &c1))
	require.NoError(t, repo.Create(ctx, &c2))

	// Activity on c1 moves it to the front.
	_, _, err := repo.NextSequence(ctx, c1.ID, time.Now().Add(time.Minute))
	require.NoError(t, err)

	convs, err := repo.ListForUser(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, c1.ID, convs[0].ID)

	convs, err = repo.ListForUser(ctx, "p2")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, c2.ID, convs[0].ID)
}

func TestMessageRepository_HistoryWindow(t *testing.T) {
	db := testutil.NewDB(t)
	req := seedAcceptedPair(t, db, "p", "d")
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	ctx := context.Background()

	conv := conversation.Conversation{PairingRequestID: req.ID, ResponderID: "d", RequesterID: "p"}
	require.NoError(t, convRepo.Create(ctx, &conv))

	for i := 0; i < 6; i++ {
		seq, at, err := convRepo.NextSequence(ctx, conv.ID, time.Now())
		require.NoError(t, err)
		text := string(rune('a' + i))
		m := message.Message{ConversationID: conv.ID, SenderID: "p", Kind: message.KindText, Text: &text, Seq: seq, CreatedAt: at}
		require.NoError(t, msgRepo.Create(ctx, &m))
	}

	latest, err := msgRepo.ListByConversation(ctx, conv.ID, 3, 0)
	require.NoError(t, err)
	require.Len(t, latest, 3)
	assert.Equal(t, []int64{4, 5, 6}, seqs(latest))

	older, err := msgRepo.ListByConversation(ctx, conv.ID, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, seqs(older))

	last, err := msgRepo.LatestByConversations(ctx, []uuid.UUID{conv.ID, uuid.New()})
	require.NoError(t, err)
	require.Contains(t, last, conv.ID)
	assert.Equal(t, int64(6), last[conv.ID].Seq)
	assert.Len(t, last, 1)
}

func TestMessageRepository_RequiresConversation(t *testing.T) {
	db := testutil.NewDB(t)
	text := "orphan"
	m := message.Message{ConversationID: uuid.New(), SenderID: "p", Kind: message.KindText, Text: &text, Seq: 1, CreatedAt: time.Now()}
	assert.Error(t, repository.NewMessageRepository(db).Create(context.Background(), &m))
}

func seqs(msgs []message.Message) []int64 {
	out := make([]int64, len(msgs))
	for i, m := range msgs {
		out[i] = m.Seq
	}
	return out
}
