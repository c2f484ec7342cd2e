package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"medbridge/internal/agent"
	"medbridge/internal/domain/diagnostic"
	"medbridge/internal/domain/notification"
	medbridge_errors "medbridge/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedAgent struct {
	replies []agent.Reply
	err     error
	asked   []agent.Request
}

func (a *scriptedAgent) Ask(_ context.Context, req agent.Request) (agent.Reply, error) {
	a.asked = append(a.asked, req)
	if a.err != nil {
		return agent.Reply{}, a.err
	}
	reply := a.replies[0]
	a.replies = a.replies[1:]
	return reply, nil
}

func TestDiagnostic_Start(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.diagnostics.Start(ctx, "patient1", "  ")
	assert.True(t, errors.Is(err, medbridge_errors.ErrInvalidInput))

	_, err = f.diagnostics.Start(ctx, "ghost", "diagnostic/ghost/a.png")
	assert.True(t, errors.Is(err, medbridge_errors.ErrNotFound))

	conv, err := f.diagnostics.Start(ctx, "patient1", "diagnostic/patient1/a.png")
	require.NoError(t, err)
	assert.Equal(t, diagnostic.StatusInProgress, conv.Status)
	assert.False(t, conv.IsFinal)
	assert.Nil(t, conv.Classification)
}

func TestDiagnostic_TurnsThenFinalize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, err := f.diagnostics.Start(ctx, "patient1", "diagnostic/patient1/a.png")
	require.NoError(t, err)

	res, err := f.diagnostics.AppendTurn(ctx, conv.ID, AppendTurnInput{
		InboundText: "my gums bleed", OutboundText: "how long has this been happening?",
	})
	require.NoError(t, err)
	assert.Equal(t, diagnostic.StatusInProgress, res.Conversation.Status)

	// A classification without the final flag does not close the intake.
	res, err = f.diagnostics.AppendTurn(ctx, conv.ID, AppendTurnInput{
		InboundText: "two weeks", OutboundText: "maybe gums", Classification: "periodontics",
	})
	require.NoError(t, err)
	assert.False(t, res.Conversation.IsFinal)

	res, err = f.diagnostics.AppendTurn(ctx, conv.ID, AppendTurnInput{
		InboundText: "yes", OutboundText: "see a periodontist", Classification: "periodontics", IsFinal: true,
	})
	require.NoError(t, err)
	assert.True(t, res.Conversation.IsFinal)
	assert.Equal(t, diagnostic.StatusSpecified, res.Conversation.Status)
	require.NotNil(t, res.Conversation.Classification)
	assert.Equal(t, diagnostic.SpecialtyPeriodontics, *res.Conversation.Classification)

	_, err = f.diagnostics.AppendTurn(ctx, conv.ID, AppendTurnInput{InboundText: "more?", OutboundText: "no"})
	assert.True(t, errors.Is(err, medbridge_errors.ErrInvalidState))

	turns, err := f.diagnostics.Turns(ctx, conv.ID, "patient1")
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "my gums bleed", turns[0].InboundText)

	jobs := f.notifier.Jobs()
	require.NotEmpty(t, jobs)
	last := jobs[len(jobs)-1]
	assert.Equal(t, notification.KindDiagnosis, last.Kind)
	assert.Equal(t, "patient1", last.RecipientID)
	assert.Equal(t, conv.ID.String(), last.Metadata["diagnostic_id"])
}

func TestDiagnostic_NoTurnsAfterConcurrentFinalize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, err := f.diagnostics.Start(ctx, "patient1", "diagnostic/patient1/a.png")
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 9; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := AppendTurnInput{InboundText: "still sore", OutboundText: "noted"}
			if i == 4 {
				in = AppendTurnInput{InboundText: "done", OutboundText: "final", Classification: "endodontics", IsFinal: true}
			}
			_, err := f.diagnostics.AppendTurn(ctx, conv.ID, in)
			if err != nil {
				assert.True(t, errors.Is(err, medbridge_errors.ErrInvalidState), err)
				return
			}
			mu.Lock()
			accepted++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	turns, err := f.diagnostics.Turns(ctx, conv.ID, "patient1")
	require.NoError(t, err)
	require.Len(t, turns, accepted)
	assert.Equal(t, "final", turns[len(turns)-1].OutboundText, "the finalizing turn is the last one")
}

func TestDiagnostic_UnknownSpecialtyRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, err := f.diagnostics.Start(ctx, "patient1", "diagnostic/patient1/a.png")
	require.NoError(t, err)

	_, err = f.diagnostics.AppendTurn(ctx, conv.ID, AppendTurnInput{
		InboundText: "x", OutboundText: "y", Classification: "Cardiology", IsFinal: true,
	})
	assert.True(t, errors.Is(err, medbridge_errors.ErrInvalidInput))

	turns, err := f.diagnostics.Turns(ctx, conv.ID, "")
	require.NoError(t, err)
	assert.Empty(t, turns)

	_, err = f.diagnostics.AppendTurn(ctx, uuid.New(), AppendTurnInput{InboundText: "x", OutboundText: "y"})
	assert.True(t, errors.Is(err, medbridge_errors.ErrNotFound))
}

func TestDiagnostic_CompleteAndAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, err := f.diagnostics.Start(ctx, "patient1", "diagnostic/patient1/a.png")
	require.NoError(t, err)

	_, err = f.diagnostics.Complete(ctx, conv.ID, "reports/a.pdf", "")
	assert.True(t, errors.Is(err, medbridge_errors.ErrInvalidState), "report needs a specified diagnosis")

	_, err = f.diagnostics.AppendTurn(ctx, conv.ID, AppendTurnInput{
		InboundText: "x", OutboundText: "y", Classification: "Endodontics", IsFinal: true,
	})
	require.NoError(t, err)

	done, err := f.diagnostics.Complete(ctx, conv.ID, "reports/a.pdf", "reports/a.png")
	require.NoError(t, err)
	assert.Equal(t, diagnostic.StatusCompleted, done.Status)
	require.NotNil(t, done.ReportPath)
	assert.Equal(t, "reports/a.pdf", *done.ReportPath)

	_, err = f.diagnostics.Get(ctx, conv.ID, "doctor1")
	assert.True(t, errors.Is(err, medbridge_errors.ErrForbidden))

	err = f.diagnostics.AssignResponder(ctx, conv.ID, "patient2")
	assert.True(t, errors.Is(err, medbridge_errors.ErrRoleMismatch))

	require.NoError(t, f.diagnostics.AssignResponder(ctx, conv.ID, "doctor1"))
	got, err := f.diagnostics.Get(ctx, conv.ID, "doctor1")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	list, err := f.diagnostics.ListForSubject(ctx, "patient1")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestDiagnostic_Ask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bot := &scriptedAgent{replies: []agent.Reply{
		{Response: "Does it hurt with cold drinks?"},
		{Response: "Likely a root canal issue.", Speciality: "endodontics", IsFinal: true},
	}}
	f.diagnostics.agent = bot

	conv, err := f.diagnostics.Start(ctx, "patient1", "diagnostic/patient1/a.png")
	require.NoError(t, err)

	_, err = f.diagnostics.Ask(ctx, conv.ID, "patient1", "", 30)
	assert.True(t, errors.Is(err, medbridge_errors.ErrInvalidInput))

	_, err = f.diagnostics.Ask(ctx, conv.ID, "patient2", "hello", 30)
	assert.True(t, errors.Is(err, medbridge_errors.ErrForbidden))

	res, err := f.diagnostics.Ask(ctx, conv.ID, "patient1", "my tooth hurts", 30)
	require.NoError(t, err)
	assert.Equal(t, "Does it hurt with cold drinks?", res.Turn.OutboundText)
	assert.False(t, res.Conversation.IsFinal)

	res, err = f.diagnostics.Ask(ctx, conv.ID, "patient1", "yes, a lot", 30)
	require.NoError(t, err)
	assert.True(t, res.Conversation.IsFinal)
	assert.Equal(t, diagnostic.SpecialtyEndodontics, *res.Conversation.Classification)

	require.Len(t, bot.asked, 2)
	assert.Equal(t, conv.ID.String(), bot.asked[0].ConversationID)
	assert.Equal(t, 30, bot.asked[0].Age)

	_, err = f.diagnostics.Ask(ctx, conv.ID, "patient1", "again", 30)
	assert.True(t, errors.Is(err, medbridge_errors.ErrInvalidState))
}

func TestDiagnostic_AskAgentFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.diagnostics.Start(ctx, "patient1", "diagnostic/patient1/a.png")
	require.NoError(t, err)

	_, err = f.diagnostics.Ask(ctx, conv.ID, "patient1", "hello", 30)
	assert.True(t, errors.Is(err, medbridge_errors.ErrDependency), "no agent configured")

	f.diagnostics.agent = &scriptedAgent{err: errors.New("connection refused")}
	_, err = f.diagnostics.Ask(ctx, conv.ID, "patient1", "hello", 30)
	assert.True(t, errors.Is(err, medbridge_errors.ErrDependency))

	turns, err := f.diagnostics.Turns(ctx, conv.ID, "patient1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}
