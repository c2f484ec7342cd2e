package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"medbridge/internal/domain/notification"
	"medbridge/internal/domain/pairing"
	medbridge_errors "medbridge/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRequest_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.pairing.SendRequest(ctx, "patient1", "patient1")
	assert.True(t, errors.Is(err, medbridge_errors.ErrInvalidPair))

	_, err = f.pairing.SendRequest(ctx, "patient1", "ghost")
	assert.True(t, errors.Is(err, medbridge_errors.ErrNotFound))

	_, err = f.pairing.SendRequest(ctx, "doctor1", "patient1")
	assert.True(t, errors.Is(err, medbridge_errors.ErrInvalidPair), "responders cannot initiate")

	_, err = f.pairing.SendRequest(ctx, "patient1", "patient2")
	assert.True(t, errors.Is(err, medbridge_errors.ErrInvalidPair))

	assert.Empty(t, f.notifier.Jobs())
}

func TestSendRequest_OneActivePerPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.pairing.SendRequest(ctx, "patient1", "doctor1")
	require.NoError(t, err)
	assert.Equal(t, pairing.StatusPending, req.Status)

	_, err = f.pairing.SendRequest(ctx, "patient1", "doctor1")
	assert.True(t, errors.Is(err, medbridge_errors.ErrConflict))

	// A different pair is unaffected.
	_, err = f.pairing.SendRequest(ctx, "patient1", "doctor2")
	require.NoError(t, err)

	jobs := f.notifier.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "doctor1", jobs[0].RecipientID)
	assert.Equal(t, notification.KindNewRequest, jobs[0].Kind)
	assert.Equal(t, req.ID.String(), jobs[0].Metadata["request_id"])
}

func TestSendRequest_ConcurrentSendsCreateOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.pairing.SendRequest(ctx, "patient2", "doctor2")
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, medbridge_errors.ErrConflict), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok)
}

func TestAcceptOrReject_Accept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.pairing.SendRequest(ctx, "patient1", "doctor1")
	require.NoError(t, err)

	_, err = f.pairing.AcceptOrReject(ctx, req.ID, "patient1", true)
	assert.True(t, errors.Is(err, medbridge_errors.ErrForbidden))

	res, err := f.pairing.AcceptOrReject(ctx, req.ID, "doctor1", true)
	require.NoError(t, err)
	assert.Equal(t, pairing.StatusAccepted, res.Request.Status)
	require.NotNil(t, res.Conversation)
	assert.Equal(t, "doctor1", res.Conversation.ResponderID)
	assert.Equal(t, "patient1", res.Conversation.RequesterID)
	assert.Equal(t, req.ID, res.Conversation.PairingRequestID)

	// Accepted requests still block a new request.
	_, err = f.pairing.SendRequest(ctx, "patient1", "doctor1")
	assert.True(t, errors.Is(err, medbridge_errors.ErrConflict))

	// Settled requests cannot be answered again.
	_, err = f.pairing.AcceptOrReject(ctx, req.ID, "doctor1", false)
	assert.True(t, errors.Is(err, medbridge_errors.ErrInvalidState))

	jobs := f.notifier.Jobs()
	last := jobs[len(jobs)-1]
	assert.Equal(t, "patient1", last.RecipientID)
	assert.Equal(t, notification.KindRequestAccepted, last.Kind)
	assert.Equal(t, res.Conversation.ID.String(), last.Metadata["conversation_id"])
}

func TestAcceptOrReject_RejectAllowsNewRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.pairing.SendRequest(ctx, "patient1", "doctor1")
	require.NoError(t, err)

	res, err := f.pairing.AcceptOrReject(ctx, req.ID, "doctor1", false)
	require.NoError(t, err)
	assert.Equal(t, pairing.StatusRejected, res.Request.Status)
	assert.Nil(t, res.Conversation)

	_, err = f.conversations.repo.GetByPairingRequest(ctx, req.ID)
	assert.True(t, errors.Is(err, medbridge_errors.ErrNotFound))

	_, err = f.pairing.SendRequest(ctx, "patient1", "doctor1")
	require.NoError(t, err)
}

func TestAcceptOrReject_UnknownRequest(t *testing.T) {
	f := newFixture(t)
	_, err := f.pairing.AcceptOrReject(context.Background(), uuid.New(), "", true)
	assert.True(t, errors.Is(err, medbridge_errors.ErrNotFound))
}

func TestAcceptOrReject_ConcurrentAcceptsMaterializeOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.pairing.SendRequest(ctx, "patient1", "doctor1")
	require.NoError(t, err)

	const attempts = 5
	var wg sync.WaitGroup
	results := make([]RespondResult, attempts)
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.pairing.AcceptOrReject(ctx, req.ID, "doctor1", true)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i, err := range errs {
		if err == nil {
			winners++
			require.NotNil(t, results[i].Conversation)
			continue
		}
		assert.True(t, errors.Is(err, medbridge_errors.ErrInvalidState), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, winners)

	var count int64
	require.NoError(t, f.db.Table("conversations").Where("pairing_request_id = ?", req.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCancelRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cancelled, err := f.pairing.CancelRequest(ctx, "patient1", "doctor1")
	require.NoError(t, err)
	assert.False(t, cancelled)

	req, err := f.pairing.SendRequest(ctx, "patient1", "doctor1")
	require.NoError(t, err)

	cancelled, err = f.pairing.CancelRequest(ctx, "doctor1", "patient1")
	require.NoError(t, err)
	assert.False(t, cancelled, "only the requester direction matches")

	cancelled, err = f.pairing.CancelRequest(ctx, "patient1", "doctor1")
	require.NoError(t, err)
	assert.True(t, cancelled)

	_, err = f.pairing.GetRequest(ctx, req.ID, "patient1")
	assert.True(t, errors.Is(err, medbridge_errors.ErrNotFound))

	// Accepted requests are not cancellable.
	req, err = f.pairing.SendRequest(ctx, "patient1", "doctor1")
	require.NoError(t, err)
	_, err = f.pairing.AcceptOrReject(ctx, req.ID, "doctor1", true)
	require.NoError(t, err)
	cancelled, err = f.pairing.CancelRequest(ctx, "patient1", "doctor1")
	require.NoError(t, err)
	assert.False(t, cancelled)
}

func TestListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r1, err := f.pairing.SendRequest(ctx, "patient1", "doctor1")
	require.NoError(t, err)
	_, err = f.pairing.SendRequest(ctx, "patient2", "doctor1")
	require.NoError(t, err)
	_, err = f.pairing.AcceptOrReject(ctx, r1.ID, "doctor1", true)
	require.NoError(t, err)

	diag, err := f.diagnostics.Start(ctx, "patient1", "diagnostic/patient1/x.png")
	require.NoError(t, err)

	received, err := f.pairing.ListReceived(ctx, "doctor1", nil)
	require.NoError(t, err)
	require.Len(t, received, 2)
	for _, v := range received {
		require.NotNil(t, v.Counterpart)
		assert.Equal(t, v.RequesterID, v.Counterpart.UserID)
		if v.RequesterID == "patient1" {
			require.NotNil(t, v.LatestDiagnosis)
			assert.Equal(t, diag.ID, v.LatestDiagnosis.ID)
		}
	}

	pending := pairing.StatusPending
	received, err = f.pairing.ListReceived(ctx, "doctor1", &pending)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, "patient2", received[0].RequesterID)

	sent, err := f.pairing.ListSent(ctx, "patient1")
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, "doctor1", sent[0].Counterpart.UserID)

	accepted, err := f.pairing.ListAccepted(ctx, "doctor1")
	require.NoError(t, err)
	assert.Empty(t, accepted.AsRequester)
	require.Len(t, accepted.AsResponder, 1)
	assert.Equal(t, r1.ID, accepted.AsResponder[0].ID)

	detail, err := f.pairing.GetRequest(ctx, r1.ID, "doctor1")
	require.NoError(t, err)
	require.NotNil(t, detail.Conversation)
	assert.Equal(t, r1.ID, detail.Conversation.PairingRequestID)

	_, err = f.pairing.GetRequest(ctx, r1.ID, "doctor2")
	assert.True(t, errors.Is(err, medbridge_errors.ErrForbidden))
}
