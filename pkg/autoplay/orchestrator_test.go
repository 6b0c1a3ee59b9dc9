package autoplay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/adventure-agent/internal/services"
	"github.com/jwebster45206/adventure-agent/pkg/chat"
	"github.com/jwebster45206/adventure-agent/pkg/game"
	"github.com/jwebster45206/adventure-agent/pkg/memory"
	"github.com/jwebster45206/adventure-agent/pkg/policy"
	"github.com/jwebster45206/adventure-agent/pkg/prompts"
	"github.com/jwebster45206/adventure-agent/pkg/state"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type captureSink struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (c *captureSink) Emit(entry LogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

func (c *captureSink) kinds() []EntryKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]EntryKind, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.Kind)
	}
	return out
}

func (c *captureSink) ofKind(kind EntryKind) []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []LogEntry
	for _, e := range c.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type captureRecorder struct {
	results []TurnResult
	err     error
}

func (r *captureRecorder) RecordTurn(ctx context.Context, result TurnResult) error {
	r.results = append(r.results, result)
	return r.err
}

// responder answers each kind of call by its system prompt
type responder struct {
	mu      sync.Mutex
	actor   []string
	advisor func() (string, error)
	summary func() (string, error)
	actorFn func(ctx context.Context) (string, error)
	calls   map[string]int
}

func (r *responder) complete(ctx context.Context, req chat.CompletionRequest) (*chat.CompletionResponse, error) {
	r.mu.Lock()
	if r.calls == nil {
		r.calls = make(map[string]int)
	}
	r.calls[req.System]++
	r.mu.Unlock()

	var text string
	var err error
	switch req.System {
	case prompts.AdvisorSystemPrompt:
		text = "good"
		if r.advisor != nil {
			text, err = r.advisor()
		}
	case prompts.SummarySystemPrompt:
		text = "Exploring the house."
		if r.summary != nil {
			text, err = r.summary()
		}
	default:
		if r.actorFn != nil {
			text, err = r.actorFn(ctx)
			break
		}
		r.mu.Lock()
		text = "LOOK"
		if len(r.actor) > 0 {
			text = r.actor[0]
			if len(r.actor) > 1 {
				r.actor = r.actor[1:]
			}
		}
		r.mu.Unlock()
	}
	if err != nil {
		return nil, err
	}
	return &chat.CompletionResponse{Text: text, Usage: chat.Usage{InputTokens: 100, OutputTokens: 3}}, nil
}

func (r *responder) count(system string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[system]
}

func newOrchestrator(t *testing.T, r *responder, engine game.Engine, mutate func(*Options)) (*Orchestrator, *captureSink) {
	t.Helper()
	mock := services.NewMockLLMAPI()
	mock.CompleteFunc = r.complete

	opts := DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	mem := memory.New(nil, discardLogger())
	sink := &captureSink{}
	o := New(mock, engine, mem, policy.New(mem), opts, discardLogger()).WithSink(sink)
	return o, sink
}

func startHouse(t *testing.T, r *responder, mutate func(*Options)) (*Orchestrator, *captureSink) {
	t.Helper()
	o, sink := newOrchestrator(t, r, game.NewScripted(discardLogger()), mutate)
	_, err := o.Start(context.Background(), "builtin:house")
	require.NoError(t, err)
	return o, sink
}

func TestOrchestrator_StepBeforeStart(t *testing.T) {
	o, _ := newOrchestrator(t, &responder{}, game.NewScripted(discardLogger()), nil)
	_, err := o.Step(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.Equal(t, StatusUninitialized, o.Status())
}

func TestOrchestrator_PlaysTurns(t *testing.T) {
	r := &responder{actor: []string{"open mailbox", "COMMAND: take leaflet"}}
	o, sink := startHouse(t, r, nil)
	assert.Equal(t, StatusAwaitingCommand, o.Status())

	first, err := o.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Turn)
	assert.Equal(t, "OPEN MAILBOX", first.Command)
	assert.Equal(t, "West of House", first.Room)
	assert.Equal(t, state.Outcome(""), first.Previous)
	assert.Contains(t, first.Output, "reveals a leaflet")
	assert.NotEmpty(t, first.Candidates)
	assert.Equal(t, 1, r.count(prompts.AdvisorSystemPrompt), "new room asks for advice")

	second, err := o.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "TAKE LEAFLET", second.Command)
	assert.Equal(t, state.OutcomeProgress, second.Previous)
	assert.Equal(t, "Taken.", second.Output)

	assert.Equal(t, 2, o.Turn())
	assert.Equal(t, "Taken.", o.LatestOutput())
	assert.Equal(t, StatusAwaitingCommand, o.Status())
	assert.Equal(t, 1, o.Memory().Turn())

	assert.Equal(t, []EntryKind{
		EntryGameText,
		EntryCommandSent, EntryGameText,
		EntryCommandSent, EntryGameText,
	}, sink.kinds())
	sent := sink.ofKind(EntryCommandSent)
	assert.Equal(t, 2, sent[1].Turn)
}

func TestOrchestrator_InvalidCommandIsReplaced(t *testing.T) {
	r := &responder{actor: []string{"GO WEST"}}
	o, sink := startHouse(t, r, nil)

	res, err := o.Step(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Validation.Valid)
	assert.NotEqual(t, "GO WEST", res.Command)
	assert.Equal(t, res.Candidates[0].Command, res.Command)
	assert.NotEmpty(t, sink.ofKind(EntryThinking))
}

func TestOrchestrator_GarbageFallsBack(t *testing.T) {
	r := &responder{actor: []string{"!!!"}}
	o, _ := startHouse(t, r, nil)

	res, err := o.Step(context.Background())
	require.NoError(t, err)
	assert.True(t, WellFormed(res.Command))
	assert.Equal(t, res.Candidates[0].Command, res.Command)
}

func TestOrchestrator_RepeatLoopForbidsCommand(t *testing.T) {
	r := &responder{actor: []string{"LOOK"}}
	o, _ := startHouse(t, r, func(opts *Options) { opts.AdviceInterval = 0 })

	for i := 0; i < 2; i++ {
		res, err := o.Step(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "LOOK", res.Command)
	}

	res, err := o.Step(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Loop.Looping)
	assert.Equal(t, state.LoopRepeat, res.Loop.Pattern)
	assert.Equal(t, res.Loop.Suggestion, res.Advice)
	assert.True(t, o.Memory().IsForbidden("LOOK"))
	assert.NotEqual(t, "LOOK", res.Command)
	assert.False(t, res.Validation.Valid)
}

func TestOrchestrator_AdvisoryFailureIsNotFatal(t *testing.T) {
	r := &responder{
		actor:   []string{"N"},
		advisor: func() (string, error) { return "", errors.New("advisor down") },
	}
	o, _ := startHouse(t, r, nil)

	res, err := o.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "N", res.Command)
	assert.Empty(t, res.Advice)
	assert.Equal(t, StatusAwaitingCommand, o.Status())
}

func TestOrchestrator_Summary(t *testing.T) {
	t.Run("stored when due", func(t *testing.T) {
		r := &responder{actor: []string{"N", "S"}}
		o, _ := startHouse(t, r, func(opts *Options) { opts.SummaryInterval = 1 })

		_, err := o.Step(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, r.count(prompts.SummarySystemPrompt))

		_, err = o.Step(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, r.count(prompts.SummarySystemPrompt))
		assert.Equal(t, "Exploring the house.", o.Memory().Summary())
	})

	t.Run("failure is not fatal", func(t *testing.T) {
		r := &responder{
			actor:   []string{"N", "S"},
			summary: func() (string, error) { return "", errors.New("summarizer down") },
		}
		o, _ := startHouse(t, r, func(opts *Options) { opts.SummaryInterval = 1 })

		for i := 0; i < 2; i++ {
			_, err := o.Step(context.Background())
			require.NoError(t, err)
		}
		assert.Empty(t, o.Memory().Summary())
	})
}

func TestOrchestrator_DecisionFailureHalts(t *testing.T) {
	r := &responder{actorFn: func(ctx context.Context) (string, error) { return "", errors.New("model offline") }}
	o, sink := startHouse(t, r, nil)

	_, err := o.Step(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decision call failed")
	assert.Equal(t, StatusErrored, o.Status())
	assert.Error(t, o.LastError())
	assert.Len(t, sink.ofKind(EntryError), 1)

	_, err = o.Step(context.Background())
	assert.ErrorIs(t, err, ErrHalted)
}

type brokenEngine struct{}

func (brokenEngine) Initialize(ctx context.Context, locator string) (string, error) {
	return "West of House\nA path leads north.", nil
}

func (brokenEngine) SendCommand(ctx context.Context, command string) (string, error) {
	return "", errors.New("interpreter crashed")
}

func (brokenEngine) State() game.State { return game.State{} }

func (brokenEngine) Reset(ctx context.Context) error { return nil }

func TestOrchestrator_EngineFailureHalts(t *testing.T) {
	o, _ := newOrchestrator(t, &responder{actor: []string{"N"}}, brokenEngine{}, nil)
	_, err := o.Start(context.Background(), "zork1.z5")
	require.NoError(t, err)

	_, err = o.Step(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "game engine failed")
	assert.Equal(t, StatusErrored, o.Status())
}

func TestOrchestrator_StopDuringDecision(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	r := &responder{actorFn: func(ctx context.Context) (string, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return "", ctx.Err()
	}}
	o, sink := startHouse(t, r, func(opts *Options) { opts.Stream = true })

	errCh := make(chan error, 1)
	go func() {
		_, err := o.Step(context.Background())
		errCh <- err
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("decision call never started")
	}

	_, err := o.Step(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	o.Stop()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrStopped)
	case <-time.After(2 * time.Second):
		t.Fatal("turn did not stop")
	}

	assert.Equal(t, StatusStopped, o.Status())
	assert.Empty(t, sink.ofKind(EntryCommandSent))
	assert.Empty(t, sink.ofKind(EntryError))

	_, err = o.Step(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}

func TestOrchestrator_StopBetweenTurns(t *testing.T) {
	o, _ := startHouse(t, &responder{}, nil)
	o.Stop()
	assert.Equal(t, StatusStopped, o.Status())

	played, err := o.Run(context.Background(), 5)
	assert.ErrorIs(t, err, ErrStopped)
	assert.Zero(t, played)
}

func TestOrchestrator_Run(t *testing.T) {
	r := &responder{actor: []string{"OPEN MAILBOX", "TAKE LEAFLET", "READ LEAFLET"}}
	o, _ := startHouse(t, r, nil)
	rec := &captureRecorder{err: errors.New("disk full")}
	o.WithRecorder(rec)

	played, err := o.Run(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, played)
	require.Len(t, rec.results, 3)
	assert.Equal(t, "READ LEAFLET", rec.results[2].Command)
	assert.Contains(t, rec.results[2].Output, "WELCOME")
	assert.Contains(t, o.Memory().Inventory(), "LEAFLET")
}

func TestOrchestrator_Streaming(t *testing.T) {
	mock := services.NewMockLLMAPI()
	mock.Chunks = []string{"OPEN ", "MAILBOX"}
	mock.SetResponses("good", "OPEN MAILBOX")

	opts := DefaultOptions()
	opts.Stream = true
	mem := memory.New(nil, discardLogger())
	sink := &captureSink{}
	o := New(mock, game.NewScripted(discardLogger()), mem, policy.New(mem), opts, discardLogger()).WithSink(sink)
	_, err := o.Start(context.Background(), "builtin:house")
	require.NoError(t, err)

	res, err := o.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "OPEN MAILBOX", res.Command)

	chunks := sink.ofKind(EntryStream)
	require.Len(t, chunks, 2)
	assert.Equal(t, "OPEN ", chunks[0].Text)
	assert.Equal(t, 1, chunks[0].Turn)

	_, calls := mock.GetCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, prompts.AdvisorSystemPrompt, calls[0].System)
	assert.Equal(t, 30, calls[0].MaxTokens)
	assert.Equal(t, prompts.ActorSystemPrompt, calls[1].System)
	assert.InDelta(t, 0.2, calls[1].Temperature, 0.0001)
	assert.Equal(t, 20, calls[1].MaxTokens)
}

func TestOrchestrator_Reset(t *testing.T) {
	o, _ := startHouse(t, &responder{actor: []string{"N"}}, nil)
	_, err := o.Step(context.Background())
	require.NoError(t, err)

	require.NoError(t, o.Reset(context.Background()))
	assert.Equal(t, StatusUninitialized, o.Status())
	assert.Zero(t, o.Turn())
	assert.Empty(t, o.LatestOutput())
	assert.Empty(t, o.Memory().Rooms())

	_, err = o.Step(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)

	_, err = o.Start(context.Background(), "builtin:house")
	require.NoError(t, err)
	_, err = o.Step(context.Background())
	assert.NoError(t, err)
}

func TestOrchestrator_Resume(t *testing.T) {
	o, _ := newOrchestrator(t, &responder{actor: []string{"N"}}, game.NewScripted(discardLogger()), nil)
	assert.ErrorIs(t, o.Resume(), ErrNotStarted)

	_, err := o.Start(context.Background(), "builtin:house")
	require.NoError(t, err)
	require.NoError(t, o.Resume())

	o.Stop()
	_, err = o.Step(context.Background())
	assert.ErrorIs(t, err, ErrStopped)

	require.NoError(t, o.Resume())
	assert.Equal(t, StatusAwaitingCommand, o.Status())
	res, err := o.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "N", res.Command)
	assert.Contains(t, o.LatestOutput(), "North of House")
}

func commandsOf(outcomes []state.CommandOutcome) []string {
	out := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, o.Command)
	}
	return out
}

func TestOrchestrator_ResumeAfterInterruptedTurn(t *testing.T) {
	var o *Orchestrator
	var mu sync.Mutex
	calls := 0
	r := &responder{actorFn: func(ctx context.Context) (string, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		switch n {
		case 1:
			return "N", nil
		case 2:
			o.Stop()
			<-ctx.Done()
			return "", ctx.Err()
		case 3:
			return "E", nil
		}
		return "LOOK", nil
	}}
	o, sink := startHouse(t, r, nil)

	_, err := o.Step(context.Background())
	require.NoError(t, err)

	_, err = o.Step(context.Background())
	require.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, 1, o.Memory().Turn())
	assert.Equal(t, []string{"N"}, commandsOf(o.Memory().RecentOutcomes()))

	require.NoError(t, o.Resume())
	res, err := o.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "E", res.Command)
	assert.Equal(t, state.OutcomeProgress, res.Previous)

	mem := o.Memory()
	assert.Equal(t, 1, mem.Turn())
	assert.Equal(t, []string{"N"}, commandsOf(mem.RecentOutcomes()))
	assert.False(t, mem.DetectLoops().Looping)
	assert.False(t, mem.IsForbidden("N"))

	_, err = o.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, o.Memory().Turn())
	assert.Equal(t, []string{"N", "E"}, commandsOf(o.Memory().RecentOutcomes()))
	assert.Len(t, sink.ofKind(EntryCommandSent), 3)
}

// stoppingEngine stops the loop while a command is being answered.
type stoppingEngine struct {
	*game.Scripted
	onSend func()
}

func (e *stoppingEngine) SendCommand(ctx context.Context, command string) (string, error) {
	if e.onSend != nil {
		e.onSend()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.Scripted.SendCommand(ctx, command)
}

func TestOrchestrator_StopWhileEngineAnswers(t *testing.T) {
	engine := &stoppingEngine{Scripted: game.NewScripted(discardLogger())}
	o, _ := newOrchestrator(t, &responder{actor: []string{"N", "E"}}, engine, nil)
	engine.onSend = o.Stop
	_, err := o.Start(context.Background(), "builtin:house")
	require.NoError(t, err)

	res, err := o.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "N", res.Command)
	assert.Equal(t, StatusStopped, o.Status())
	assert.Contains(t, o.LatestOutput(), "North of House")

	engine.onSend = nil
	require.NoError(t, o.Resume())
	_, err = o.Step(context.Background())
	require.NoError(t, err)

	outcomes := o.Memory().RecentOutcomes()
	require.Len(t, outcomes, 1)
	assert.Equal(t, "N", outcomes[0].Command)
	assert.Equal(t, state.OutcomeProgress, outcomes[0].Result)
}

func TestOrchestrator_CancelledCallerStopsCleanly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &responder{actorFn: func(turnCtx context.Context) (string, error) {
		cancel()
		<-turnCtx.Done()
		return "", turnCtx.Err()
	}}
	o, sink := startHouse(t, r, nil)

	_, err := o.Step(ctx)
	assert.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, StatusStopped, o.Status())
	assert.NoError(t, o.LastError())
	assert.Empty(t, sink.ofKind(EntryError))

	played, err := o.Run(ctx, 3)
	assert.Zero(t, played)
	assert.ErrorIs(t, err, context.Canceled)
}
