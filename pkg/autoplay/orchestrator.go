// Package autoplay runs the turn loop that lets a language model play a parser game.
package autoplay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jwebster45206/adventure-agent/pkg/chat"
	"github.com/jwebster45206/adventure-agent/pkg/game"
	"github.com/jwebster45206/adventure-agent/pkg/memory"
	"github.com/jwebster45206/adventure-agent/pkg/policy"
	"github.com/jwebster45206/adventure-agent/pkg/prompts"
	"github.com/jwebster45206/adventure-agent/pkg/state"
)

var (
	ErrNotStarted = errors.New("autoplay has not been started")
	ErrStopped    = errors.New("autoplay was stopped")
	ErrHalted     = errors.New("autoplay halted after a fatal error")
	ErrBusy       = errors.New("a turn is already in progress")
)

// Status is the orchestrator's position in its state machine.
type Status string

const (
	StatusUninitialized   Status = "uninitialized"
	StatusAwaitingCommand Status = "awaiting-command"
	StatusCommandSent     Status = "command-sent"
	StatusStopped         Status = "stopped"
	StatusErrored         Status = "errored"
)

// Completer is the completion capability the loop needs.
type Completer interface {
	Complete(ctx context.Context, req chat.CompletionRequest, onChunk chat.ChunkFunc) (*chat.CompletionResponse, error)
}

// Orchestrator sequences turns for one play session. Only one turn runs at a
// time; memory and policy are touched only from inside a turn.
type Orchestrator struct {
	llm      Completer
	engine   game.Engine
	mem      *memory.Memory
	pol      *policy.Policy
	opts     Options
	sink     Sink
	recorder Recorder
	logger   *slog.Logger

	turnMu sync.Mutex // held for the whole of Start, Step and Reset

	mu      sync.RWMutex // guards the fields below
	status  Status
	turn    int
	output  string
	lastErr error
	cancel  context.CancelFunc

	// owned by the turn holding turnMu
	pending     string
	pendingPrev *state.Snapshot
	absorbed    bool // the latest output has already been folded into memory
	previous    state.Outcome

	stopped atomic.Bool
}

// New wires an orchestrator around an explicitly owned memory and policy pair.
func New(llm Completer, engine game.Engine, mem *memory.Memory, pol *policy.Policy, opts Options, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		llm:    llm,
		engine: engine,
		mem:    mem,
		pol:    pol,
		opts:   opts,
		logger: logger,
		status: StatusUninitialized,
	}
}

// WithSink sets where transcript entries go.
func (o *Orchestrator) WithSink(sink Sink) *Orchestrator {
	o.sink = sink
	return o
}

// WithRecorder sets where completed turns are persisted.
func (o *Orchestrator) WithRecorder(r Recorder) *Orchestrator {
	o.recorder = r
	return o
}

// Start boots the game and records its opening text. The text is observed by
// memory on the first Step.
func (o *Orchestrator) Start(ctx context.Context, locator string) (string, error) {
	o.turnMu.Lock()
	defer o.turnMu.Unlock()

	text, err := o.engine.Initialize(ctx, locator)
	if err != nil {
		o.fail(fmt.Errorf("failed to start game: %w", err))
		return "", fmt.Errorf("failed to start game: %w", err)
	}

	o.mem.Reset()
	o.pending, o.pendingPrev = "", nil
	o.absorbed, o.previous = false, ""
	o.stopped.Store(false)

	o.mu.Lock()
	o.status = StatusAwaitingCommand
	o.turn = 0
	o.output = text
	o.lastErr = nil
	o.mu.Unlock()

	o.logger.Info("Autoplay started", "locator", locator)
	o.emit(EntryGameText, 0, text)
	return text, nil
}

// Step plays exactly one turn. It returns ErrBusy rather than queueing behind
// a turn that is already running.
func (o *Orchestrator) Step(ctx context.Context) (*TurnResult, error) {
	if !o.turnMu.TryLock() {
		return nil, ErrBusy
	}
	defer o.turnMu.Unlock()

	switch o.Status() {
	case StatusUninitialized:
		return nil, ErrNotStarted
	case StatusStopped:
		return nil, ErrStopped
	case StatusErrored:
		return nil, ErrHalted
	}
	if o.stopped.Load() {
		o.setStatus(StatusStopped)
		return nil, ErrStopped
	}

	turnCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()
	defer func() {
		cancel()
		o.mu.Lock()
		o.cancel = nil
		o.mu.Unlock()
	}()

	result, err := o.playTurn(turnCtx)
	if err != nil {
		if o.stopped.Load() || errors.Is(ctx.Err(), context.Canceled) {
			o.logger.Info("Turn abandoned after stop", "turn", o.Turn()+1)
			o.setStatus(StatusStopped)
			return nil, ErrStopped
		}
		o.fail(err)
		o.emit(EntryError, o.Turn()+1, err.Error())
		return nil, err
	}

	if o.recorder != nil {
		if err := o.recorder.RecordTurn(ctx, *result); err != nil {
			o.logger.Warn("Failed to record turn", "turn", result.Turn, "error", err)
		}
	}
	// stopped after the command went out: the turn stands, the loop does not continue
	if o.stopped.Load() {
		o.setStatus(StatusStopped)
	}
	return result, nil
}

// Run plays turns until maxTurns have been played (0 means no limit), the
// loop is stopped, ctx ends or a turn fails. It returns the number of turns played.
func (o *Orchestrator) Run(ctx context.Context, maxTurns int) (int, error) {
	played := 0
	for maxTurns <= 0 || played < maxTurns {
		if err := ctx.Err(); err != nil {
			return played, err
		}
		if _, err := o.Step(ctx); err != nil {
			return played, err
		}
		played++

		if o.opts.TurnDelay > 0 {
			select {
			case <-ctx.Done():
				return played, ctx.Err()
			case <-time.After(o.opts.TurnDelay):
			}
		}
	}
	return played, nil
}

// Stop halts autoplay between turns or mid-turn. Streamed text from an
// interrupted completion is discarded.
func (o *Orchestrator) Stop() {
	o.stopped.Store(true)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
		return
	}
	if o.status == StatusAwaitingCommand {
		o.status = StatusStopped
	}
	o.logger.Info("Autoplay stopped", "turn", o.turn)
}

// Resume lets a stopped loop play again with its memory intact. It is a no-op
// when the loop is already awaiting a command.
func (o *Orchestrator) Resume() error {
	o.turnMu.Lock()
	defer o.turnMu.Unlock()

	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.status {
	case StatusUninitialized:
		return ErrNotStarted
	case StatusErrored:
		return ErrHalted
	case StatusStopped:
		o.status = StatusAwaitingCommand
		o.logger.Info("Autoplay resumed", "turn", o.turn)
	}
	o.stopped.Store(false)
	return nil
}

// Reset stops the game, waits for any running turn and clears all memory.
// Start must be called again afterwards.
func (o *Orchestrator) Reset(ctx context.Context) error {
	o.Stop()

	o.turnMu.Lock()
	defer o.turnMu.Unlock()

	err := o.engine.Reset(ctx)
	o.mem.Reset()
	o.pending, o.pendingPrev = "", nil
	o.absorbed, o.previous = false, ""
	o.stopped.Store(false)

	o.mu.Lock()
	o.status = StatusUninitialized
	o.turn = 0
	o.output = ""
	o.lastErr = nil
	o.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to reset game: %w", err)
	}
	o.logger.Info("Autoplay reset")
	return nil
}

func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}

// Turn is the number of commands sent since Start.
func (o *Orchestrator) Turn() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.turn
}

// LatestOutput is the most recent game text.
func (o *Orchestrator) LatestOutput() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.output
}

// LastError is the error that halted the loop, if any.
func (o *Orchestrator) LastError() error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastErr
}

func (o *Orchestrator) Memory() *memory.Memory { return o.mem }

func (o *Orchestrator) Policy() *policy.Policy { return o.pol }

func (o *Orchestrator) Options() Options { return o.opts }

func (o *Orchestrator) playTurn(ctx context.Context) (*TurnResult, error) {
	turn := o.Turn() + 1
	output := o.LatestOutput()
	result := &TurnResult{Turn: turn}

	// the pending command is judged by the text it produced, once
	if !o.absorbed {
		o.previous = ""
		if o.pending == "" {
			o.mem.Observe(output)
		} else {
			o.previous = o.mem.UpdateAfterCommand(o.pending, output, o.pendingPrev)
		}
		o.absorbed = true
	}
	result.Previous = o.previous

	loop := o.mem.DetectLoops()
	result.Loop = loop
	if loop.Looping {
		for _, cmd := range loop.Commands {
			o.mem.ForbidCommand(cmd, o.opts.LoopForbidTurns)
		}
		o.emit(EntryThinking, turn, fmt.Sprintf("Loop detected (%s). %s", loop.Pattern, loop.Suggestion))
	}

	if o.mem.NeedsSummaryRefresh(o.opts.SummaryInterval) {
		if err := o.refreshSummary(ctx, turn); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			o.logger.Warn("Summary refresh failed", "turn", turn, "error", err)
		}
	}

	candidates := o.pol.TopCandidates(o.opts.CandidateCount)
	result.Candidates = candidates

	advice := ""
	switch {
	case loop.Looping:
		advice = loop.Suggestion
	case o.mem.EnteredNewRoom() || (o.opts.AdviceInterval > 0 && turn%o.opts.AdviceInterval == 0):
		tip, err := o.advise(ctx, loop, output)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			o.logger.Warn("Advisory call failed", "turn", turn, "error", err)
			break
		}
		advice = tip
		if !prompts.IsTrivialAdvice(tip) {
			o.emit(EntryThinking, turn, "Advice: "+tip)
		}
	}
	result.Advice = advice

	req, err := prompts.New().
		WithSummary(o.mem.Summary()).
		WithMemory(o.mem.ToPromptFormat()).
		WithGameOutput(output).
		WithExcerptLength(o.opts.ExcerptChars).
		WithCandidates(candidates).
		WithAdvice(advice).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build decision prompt: %w", err)
	}
	req.Temperature = o.opts.Actor.Temperature
	req.MaxTokens = o.opts.Actor.MaxTokens

	resp, err := o.complete(ctx, turn, req)
	if err != nil {
		return nil, fmt.Errorf("decision call failed: %w", err)
	}
	result.RawDecision = resp.Text
	result.Usage = resp.Usage

	command := CleanCommand(resp.Text)
	validation := o.pol.ValidateCommand(command)
	result.Validation = validation
	if !validation.Valid {
		o.emit(EntryThinking, turn, fmt.Sprintf("Rejected %q (%s), using %s", command, validation.Reason, validation.Adjusted))
		command = validation.Adjusted
	}
	if !WellFormed(command) {
		command = policy.FallbackCommand
		if best, ok := o.pol.BestAction(); ok && WellFormed(best.Command) {
			command = best.Command
		}
	}
	result.Command = command

	// recorded before sending so the outcome can be judged next turn
	o.pendingPrev = o.mem.Current()
	o.pending = command
	o.setStatus(StatusCommandSent)
	o.emit(EntryCommandSent, turn, command)

	// once written, a command's response is always read back so the
	// interpreter's output stays aligned with the commands sent
	response, err := o.engine.SendCommand(context.WithoutCancel(ctx), command)
	if err != nil {
		return nil, fmt.Errorf("game engine failed: %w", err)
	}
	o.absorbed = false

	o.mu.Lock()
	o.turn = turn
	o.output = response
	if o.status == StatusCommandSent {
		o.status = StatusAwaitingCommand
	}
	o.mu.Unlock()

	if prev := o.pendingPrev; prev != nil {
		result.Room = prev.Room
	}
	result.Output = response
	result.Timestamp = time.Now()
	o.emit(EntryGameText, turn, response)

	o.logger.Debug("Turn complete",
		"turn", turn,
		"command", command,
		"room", result.Room,
		"previous_outcome", result.Previous)
	return result, nil
}

func (o *Orchestrator) complete(ctx context.Context, turn int, req chat.CompletionRequest) (*chat.CompletionResponse, error) {
	var onChunk chat.ChunkFunc
	if o.opts.Stream {
		onChunk = func(chunk string) {
			if ctx.Err() == nil {
				o.emit(EntryStream, turn, chunk)
			}
		}
	}
	resp, err := o.llm.Complete(ctx, req, onChunk)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}

func (o *Orchestrator) advise(ctx context.Context, loop state.LoopStatus, output string) (string, error) {
	req := prompts.AdvisorRequest(o.mem.ToPromptFormat(), loop, output, o.opts.ExcerptChars)
	req.Temperature = o.opts.Advisor.Temperature
	req.MaxTokens = o.opts.Advisor.MaxTokens

	resp, err := o.llm.Complete(ctx, req, nil)
	if err != nil {
		return "", err
	}
	tip, _, _ := strings.Cut(strings.TrimSpace(resp.Text), "\n")
	return strings.TrimSpace(tip), nil
}

func (o *Orchestrator) refreshSummary(ctx context.Context, turn int) error {
	stats := o.mem.Stats()
	line := fmt.Sprintf("%d rooms explored, %d open leads, %d items carried, currently in %s",
		stats.RoomsExplored, stats.Leads, stats.Inventory, stats.Room)

	req := prompts.SummaryRequest(o.mem.Summary(), o.mem.RecentOutcomes(), line)
	req.Temperature = o.opts.Summary.Temperature
	req.MaxTokens = o.opts.Summary.MaxTokens

	resp, err := o.llm.Complete(ctx, req, nil)
	if err != nil {
		return err
	}
	summary := strings.TrimSpace(resp.Text)
	if summary == "" {
		return errors.New("empty summary")
	}
	o.mem.SetSummary(summary)
	o.emit(EntryThinking, turn, "Summary: "+summary)
	return nil
}

func (o *Orchestrator) setStatus(s Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status = s
}

func (o *Orchestrator) fail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status = StatusErrored
	o.lastErr = err
	o.logger.Error("Autoplay halted", "turn", o.turn, "error", err)
}

func (o *Orchestrator) emit(kind EntryKind, turn int, text string) {
	if o.sink == nil || text == "" {
		return
	}
	o.sink.Emit(LogEntry{Kind: kind, Turn: turn, Text: text, Timestamp: time.Now()})
}
