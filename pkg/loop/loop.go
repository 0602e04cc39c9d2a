// Package loop runs the agent cycle: prompt the backend, interpret the
// reply into tool calls, dispatch them, rest, repeat. Iteration failures
// are recorded and retried on the next cycle; only context cancellation
// or an optional iteration cap stops the loop.
package loop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"scribe/pkg/llm"
	"scribe/pkg/logx"
	"scribe/pkg/metrics"
	"scribe/pkg/tools"
	"scribe/pkg/utils"
)

// Backend produces a completion for a prompt.
type Backend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Interpreter turns a completion into validated tool calls.
type Interpreter interface {
	Interpret(completion string) ([]tools.Call, error)
}

// Dispatcher executes a batch of tool calls, stopping at the first failure.
type Dispatcher interface {
	DispatchAll(calls []tools.Call) ([]json.RawMessage, int, error)
}

// IterationOutcome summarizes one cycle of the loop.
type IterationOutcome struct {
	Attempted int
	Succeeded int
	Err       error
}

// DefaultRestInterval is the pause between iterations when none is
// configured.
const DefaultRestInterval = 2 * time.Second

// Agent drives the prompt/interpret/dispatch cycle.
type Agent struct {
	backend     Backend
	interpreter Interpreter
	dispatcher  Dispatcher

	goal            string
	restInterval    time.Duration
	maxIterations   int // 0 = unbounded
	maxPromptTokens int // 0 = no budget
	counter         *utils.TokenCounter

	recorder metrics.Recorder
	logger   *logx.Logger
	runID    string

	mu    sync.Mutex
	state State
}

// Option configures an Agent.
type Option func(*Agent)

// WithRestInterval sets the pause between iterations.
func WithRestInterval(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.restInterval = d
		}
	}
}

// WithMaxIterations caps the number of iterations. Zero means unbounded.
func WithMaxIterations(n int) Option {
	return func(a *Agent) { a.maxIterations = n }
}

// WithRecorder sets the metrics recorder. Defaults to a no-op.
func WithRecorder(rec metrics.Recorder) Option {
	return func(a *Agent) { a.recorder = rec }
}

// WithPromptBudget enforces a token cap on outgoing prompts. Prompts over
// budget fail the iteration before the backend is called.
func WithPromptBudget(maxTokens int, counter *utils.TokenCounter) Option {
	return func(a *Agent) {
		a.maxPromptTokens = maxTokens
		a.counter = counter
	}
}

// New creates an agent that pursues the given goal each iteration.
func New(backend Backend, interpreter Interpreter, dispatcher Dispatcher, goal string, opts ...Option) *Agent {
	a := &Agent{
		backend:      backend,
		interpreter:  interpreter,
		dispatcher:   dispatcher,
		goal:         goal,
		restInterval: DefaultRestInterval,
		recorder:     metrics.NopRecorder{},
		logger:       logx.NewLogger("loop"),
		runID:        uuid.NewString()[:8],
		state:        StateIdle,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RunID returns the identifier logged with every iteration of this run.
func (a *Agent) RunID() string {
	return a.runID
}

// Run executes the loop until ctx is cancelled or the iteration cap is
// reached. Iteration errors never terminate the loop. The returned error
// is non-nil only for internal invariant violations.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("run %s starting (goal: %s)", a.runID, summarize(a.goal))

	for iteration := 1; ; iteration++ {
		if ctx.Err() != nil {
			return a.stop()
		}
		if a.maxIterations > 0 && iteration > a.maxIterations {
			a.logger.Info("run %s reached iteration cap (%d)", a.runID, a.maxIterations)
			return a.stop()
		}

		outcome, stopped := a.iterate(ctx)
		if stopped {
			return a.stop()
		}

		status := "success"
		if outcome.Err != nil {
			status = "failed"
			a.logger.Warn("run %s iteration %d failed after %d/%d calls: %v",
				a.runID, iteration, outcome.Succeeded, outcome.Attempted, outcome.Err)
		} else {
			a.logger.Info("run %s iteration %d completed %d calls", a.runID, iteration, outcome.Succeeded)
		}
		a.recorder.ObserveIteration(status, outcome.Attempted, outcome.Succeeded)

		if err := a.transitionTo(StateResting); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return a.stop()
		case <-time.After(a.restInterval):
		}
	}
}

// iterate runs one prompt/interpret/dispatch cycle. The boolean result is
// true when cancellation was observed at a transition boundary.
func (a *Agent) iterate(ctx context.Context) (IterationOutcome, bool) {
	if err := a.transitionTo(StatePrompting); err != nil {
		return IterationOutcome{Err: err}, false
	}

	prompt := a.buildPrompt()
	if a.maxPromptTokens > 0 && a.counter != nil {
		count := a.counter.CountTokens(prompt)
		a.logger.Debug("prompt is %d tokens (budget %d)", count, a.maxPromptTokens)
		if count > a.maxPromptTokens {
			return IterationOutcome{Err: llm.NewError(llm.ErrorTypeBadPrompt,
				fmt.Sprintf("prompt is %d tokens, budget is %d", count, a.maxPromptTokens))}, false
		}
	}

	completion, err := a.backend.Complete(ctx, prompt)
	if err != nil {
		return IterationOutcome{Err: fmt.Errorf("backend: %w", err)}, false
	}
	if ctx.Err() != nil {
		return IterationOutcome{}, true
	}

	if err := a.transitionTo(StateInterpreting); err != nil {
		return IterationOutcome{Err: err}, false
	}
	calls, err := a.interpreter.Interpret(completion)
	if err != nil {
		return IterationOutcome{Err: fmt.Errorf("interpret: %w", err)}, false
	}
	if ctx.Err() != nil {
		return IterationOutcome{}, true
	}

	if err := a.transitionTo(StateDispatching); err != nil {
		return IterationOutcome{Err: err}, false
	}
	_, succeeded, err := a.dispatcher.DispatchAll(calls)
	outcome := IterationOutcome{Attempted: len(calls), Succeeded: succeeded}
	if err != nil {
		outcome.Err = fmt.Errorf("dispatch: %w", err)
	}
	return outcome, false
}

func (a *Agent) stop() error {
	if err := a.transitionTo(StateStopped); err != nil {
		return err
	}
	a.logger.Info("run %s stopped", a.runID)
	return nil
}

// buildPrompt renders the per-iteration prompt: the configured goal plus
// instructions naming the available tools and the expected reply shape.
func (a *Agent) buildPrompt() string {
	var b strings.Builder
	b.WriteString(a.goal)
	b.WriteString("\n\nYou have access to the following filesystem tools:\n")
	for _, name := range tools.Names() {
		spec, _ := tools.Lookup(name)
		fmt.Fprintf(&b, "- %s: %s (arguments: %s)\n", name, spec.Description, strings.Join(argNames(spec), ", "))
	}
	b.WriteString("\nRespond with a single JSON object of the form " +
		`{"tool_calls": [{"name": "<tool>", "arguments": {...}}]}` +
		" and nothing else. All argument values must be strings.")
	return b.String()
}

func argNames(spec tools.Spec) []string {
	names := make([]string, 0, len(spec.Required)+len(spec.Optional))
	for _, arg := range spec.Required {
		names = append(names, arg.Name)
	}
	for _, arg := range spec.Optional {
		names = append(names, arg.Name+" (optional)")
	}
	return names
}

// summarize trims a goal for log lines.
func summarize(goal string) string {
	const maxLen = 80
	goal = strings.ReplaceAll(goal, "\n", " ")
	if len(goal) <= maxLen {
		return goal
	}
	return goal[:maxLen] + "..."
}
