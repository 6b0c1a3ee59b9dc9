package game

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	DefaultInterpreter   = "dfrotz"
	DefaultSettleTimeout = 3 * time.Second
)

// Frotz drives a dumb-terminal Z-machine interpreter over its stdin and stdout.
// A response is complete when the interpreter prints its ">" prompt; if the
// prompt never arrives within the settle timeout, whatever has accumulated is
// returned instead.
type Frotz struct {
	interpreter string
	args        []string
	settle      time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	output  chan string
	running bool
	waiting bool
	turns   int
}

var _ Engine = (*Frotz)(nil)

func NewFrotz(interpreter string, settle time.Duration, logger *slog.Logger) *Frotz {
	if interpreter == "" {
		interpreter = DefaultInterpreter
	}
	if settle <= 0 {
		settle = DefaultSettleTimeout
	}
	return &Frotz{
		interpreter: interpreter,
		// no MORE prompts, plain ASCII, no startup banner
		args:   []string{"-m", "-p", "-q"},
		settle: settle,
		logger: logger,
	}
}

// Initialize starts the interpreter on the story file and returns its opening text.
func (f *Frotz) Initialize(ctx context.Context, locator string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stop()

	cmd := exec.Command(f.interpreter, append(slices.Clone(f.args), locator)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return "", fmt.Errorf("failed to open interpreter stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("failed to open interpreter stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start %s: %w", f.interpreter, err)
	}

	f.cmd = cmd
	f.stdin = stdin
	f.output = make(chan string, 64)
	f.running = true
	f.turns = 0
	go pump(stdout, f.output)

	f.logger.Info("Interpreter started", "interpreter", f.interpreter, "story", locator, "pid", cmd.Process.Pid)
	return f.read(ctx)
}

// SendCommand writes one line to the interpreter and waits for the response.
func (f *Frotz) SendCommand(ctx context.Context, command string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return "", ErrNotRunning
	}
	f.waiting = false
	if _, err := io.WriteString(f.stdin, command+"\n"); err != nil {
		f.running = false
		return "", fmt.Errorf("failed to write command: %w", err)
	}
	f.turns++
	return f.read(ctx)
}

func (f *Frotz) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return State{WaitingForInput: f.running && f.waiting, Running: f.running, TurnCount: f.turns}
}

func (f *Frotz) Reset(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stop()
	f.turns = 0
	return nil
}

func (f *Frotz) read(ctx context.Context) (string, error) {
	text, prompted, err := collect(ctx, f.output, f.settle)
	switch {
	case errors.Is(err, io.EOF):
		f.logger.Info("Interpreter exited")
		f.running = false
		f.waiting = false
		return text, nil
	case err != nil:
		return "", err
	}
	f.waiting = prompted
	if !prompted {
		f.logger.Debug("Interpreter did not prompt before settle timeout", "settle", f.settle, "chars", len(text))
	}
	return text, nil
}

func (f *Frotz) stop() {
	if f.cmd == nil {
		return
	}
	_ = f.stdin.Close()
	if f.cmd.Process != nil {
		_ = f.cmd.Process.Kill()
	}
	_ = f.cmd.Wait()
	go func(ch <-chan string) {
		for range ch {
		}
	}(f.output)
	f.cmd = nil
	f.running = false
	f.waiting = false
}

// pump forwards interpreter output until it closes
func pump(r io.Reader, out chan<- string) {
	defer close(out)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			out <- string(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// collect gathers output until a prompt appears, the settle timer fires, the
// stream closes (io.EOF) or ctx is done. prompted reports which of the first
// two happened.
func collect(ctx context.Context, output <-chan string, settle time.Duration) (string, bool, error) {
	var b strings.Builder
	timer := time.NewTimer(settle)
	defer timer.Stop()

	for {
		select {
		case chunk, ok := <-output:
			if !ok {
				return cleanOutput(b.String()), false, io.EOF
			}
			b.WriteString(chunk)
			if hasPrompt(b.String()) {
				return cleanOutput(b.String()), true, nil
			}
		case <-timer.C:
			return cleanOutput(b.String()), false, nil
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}
}

func hasPrompt(text string) bool {
	trimmed := strings.TrimRight(text, " \t\r")
	return trimmed == ">" || strings.HasSuffix(trimmed, "\n>")
}

// cleanOutput normalizes line endings and drops the trailing prompt.
func cleanOutput(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimRight(text, " \t\r\n")
	text = strings.TrimSuffix(text, ">")
	return strings.TrimSpace(text)
}
