package repository_test

import (
	"context"
	"errors"
	"testing"

	"medbridge/internal/domain/identity"
	"medbridge/internal/domain/pairing"
	"medbridge/internal/repository"
	"medbridge/internal/testutil"
	medbridge_errors "medbridge/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairingRepository_ActivePairIsUnique(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedUser(t, db, "patient1", identity.RoleRequester, "")
	testutil.SeedUser(t, db, "doctor1", identity.RoleResponder, "")
	repo := repository.NewPairingRepository(db)
	ctx := context.Background()

	first := pairing.Request{RequesterID: "patient1", ResponderID: "doctor1"}
	require.NoError(t, repo.Create(ctx, &first))
	require.NotNil(t, first.ActivePairKey)
	assert.Equal(t, pairing.StatusPending, first.Status)

	// Reverse direction hits the same canonical key.
	second := pairing.Request{RequesterID: "doctor1", ResponderID: "patient1"}
	err := repo.Create(ctx, &second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, medbridge_errors.ErrConflict))

	found, err := repo.FindActiveBetween(ctx, "doctor1", "patient1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestPairingRepository_SeparatorInIDsDoesNotCollide(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewPairingRepository(db)
	ctx := context.Background()

	first := pairing.Request{RequesterID: "a|b", ResponderID: "c"}
	require.NoError(t, repo.Create(ctx, &first))
	second := pairing.Request{RequesterID: "a", ResponderID: "b|c"}
	require.NoError(t, repo.Create(ctx, &second))

	found, err := repo.FindActiveBetween(ctx, "b|c", "a")
	require.NoError(t, err)
	assert.Equal(t, second.ID, found.ID)
}

func TestPairingRepository_RejectReleasesPair(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewPairingRepository(db)
	ctx := context.Background()

	req := pairing.Request{RequesterID: "p", ResponderID: "d"}
	require.NoError(t, repo.Create(ctx, &req))
	require.NoError(t, repo.TransitionStatus(ctx, req.ID, pairing.StatusPending, pairing.StatusRejected))

	got, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, pairing.StatusRejected, got.Status)
	assert.Nil(t, got.ActivePairKey)

	_, err = repo.FindActiveBetween(ctx, "p", "d")
	assert.True(t, errors.Is(err, medbridge_errors.ErrNotFound))

	again := pairing.Request{RequesterID: "p", ResponderID: "d"}
	require.NoError(t, repo.Create(ctx, &again))
}

func TestPairingRepository_TransitionIsCompareAndSet(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewPairingRepository(db)
	ctx := context.Background()

	req := pairing.Request{RequesterID: "p", ResponderID: "d"}
	require.NoError(t, repo.Create(ctx, &req))
	require.NoError(t, repo.TransitionStatus(ctx, req.ID, pairing.StatusPending, pairing.StatusAccepted))

	err := repo.TransitionStatus(ctx, req.ID, pairing.StatusPending, pairing.StatusRejected)
	assert.True(t, errors.Is(err, medbridge_errors.ErrInvalidState))

	got, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, pairing.StatusAccepted, got.Status)
	require.NotNil(t, got.ActivePairKey, "accepted requests keep the pair reserved")

	err = repo.TransitionStatus(ctx, req.ID, pairing.StatusAccepted, pairing.StatusPending)
	assert.True(t, errors.Is(err, medbridge_errors.ErrInvalidState))
}

func TestPairingRepository_DeletePendingIsDirectional(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewPairingRepository(db)
	ctx := context.Background()

	req := pairing.Request{RequesterID: "p", ResponderID: "d"}
	require.NoError(t, repo.Create(ctx, &req))

	deleted, err := repo.DeletePending(ctx, "d", "p")
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = repo.DeletePending(ctx, "p", "d")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = repo.GetByID(ctx, req.ID)
	assert.True(t, errors.Is(err, medbridge_errors.ErrNotFound))
}

func TestPairingRepository_Listings(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewPairingRepository(db)
	ctx := context.Background()

	a := pairing.Request{RequesterID: "p1", ResponderID: "d1"}
	b := pairing.Request{RequesterID: "p2", ResponderID: "d1"}
	c := pairing.Request{RequesterID: "p1", ResponderID: "d2"}
	for _, r := range []*pairing.Request{&a, &b, &c} {
		require.NoError(t, repo.Create(ctx, r))
	}
	require.NoError(t, repo.TransitionStatus(ctx, a.ID, pairing.StatusPending, pairing.StatusAccepted))

	received, err := repo.ListReceived(ctx, "d1", nil)
	require.NoError(t, err)
	assert.Len(t, received, 2)

	pending := pairing.StatusPending
	received, err = repo.ListReceived(ctx, "d1", &pending)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, b.ID, received[0].ID)

	sent, err := repo.ListSent(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, sent, 2)

	asRequester, asResponder, err := repo.ListAccepted(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, asRequester, 1)
	assert.Empty(t, asResponder)

	asRequester, asResponder, err = repo.ListAccepted(ctx, "d1")
	require.NoError(t, err)
	assert.Empty(t, asRequester)
	assert.Len(t, asResponder, 1)
}
