// SPDX-License-Identifier: AGPL-3.0-only
package assistant

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/aman-senpai/macassist/internal/errors"
	"github.com/aman-senpai/macassist/internal/llm"
	"github.com/aman-senpai/macassist/internal/logging"
	"github.com/aman-senpai/macassist/internal/orchestrator"
	"github.com/aman-senpai/macassist/internal/tools"
)

// State is the agent loop's observable position in a turn.
type State int

const (
	StateIdle State = iota
	StateThinking
	StateResponding
	StateCallingTool
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateThinking:
		return "thinking"
	case StateResponding:
		return "responding"
	case StateCallingTool:
		return "calling_tool"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ErrBusy is returned when a new turn arrives while a previous turn's loop
// is still executing. Turns are rejected, not queued: at most one
// orchestration is in flight per conversation.
var ErrBusy = stderrors.New("a turn is already in progress")

// StepLimitError reports that the bounded loop exhausted its iteration cap
// without reaching a content-only result.
type StepLimitError struct {
	Steps int
}

func (e *StepLimitError) Error() string {
	return fmt.Sprintf("reached the limit of %d model calls without a final answer; stopping to avoid a runaway tool loop", e.Steps)
}

// toolIncapableNotice prefixes the answer produced by the tools-absent
// fallback so the user knows the model answered without tool access.
const toolIncapableNotice = "Note: the selected model does not support tool calling, so I answered without using tools.\n\n"

// Assistant drives the bounded multi-turn agent loop:
//
//	Idle -> Thinking -> (Responding <-> CallingTool) -> Idle | Error
//
// It exclusively owns the append-only conversation. Each turn works on a
// scratch copy that is committed only when the turn succeeds; a failing
// turn leaves the stored conversation untouched, so the user can simply
// re-issue it.
type Assistant struct {
	svc      *orchestrator.Service
	registry tools.Registry
	maxSteps int
	logger   *logging.Logger
	onState  func(State)

	busy atomic.Bool

	mu           sync.Mutex
	state        State
	conversation []llm.Message
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithMaxSteps overrides the per-turn provider call cap.
func WithMaxSteps(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.maxSteps = n
		}
	}
}

// WithSystemPrompt seeds the conversation with a system message.
func WithSystemPrompt(prompt string) Option {
	return func(a *Assistant) {
		if prompt != "" {
			a.conversation = append(a.conversation, llm.Message{Role: llm.RoleSystem, Content: prompt})
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *logging.Logger) Option {
	return func(a *Assistant) { a.logger = logger }
}

// WithStateCallback registers an observer invoked on every state
// transition. The UI layer uses this to show thinking/tool activity.
func WithStateCallback(fn func(State)) Option {
	return func(a *Assistant) { a.onState = fn }
}

// New creates an Assistant around an orchestration service and a tool
// registry. The default step cap is 5 provider calls per user turn.
func New(svc *orchestrator.Service, registry tools.Registry, opts ...Option) *Assistant {
	a := &Assistant{
		svc:      svc,
		registry: registry,
		maxSteps: 5,
		logger:   logging.GetDefaultLogger(),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State returns the loop's current state.
func (a *Assistant) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Messages returns a copy of the committed conversation.
func (a *Assistant) Messages() []llm.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]llm.Message, len(a.conversation))
	copy(out, a.conversation)
	return out
}

func (a *Assistant) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
	if a.onState != nil {
		a.onState(s)
	}
}

// HandleMessage runs one complete user turn to its final answer. It returns
// ErrBusy if a turn is already in flight. On any failure the returned error
// is the readable account of what went wrong, the loop ends in StateError,
// and the stored conversation is unchanged.
func (a *Assistant) HandleMessage(ctx context.Context, text string) (string, error) {
	if !a.busy.CompareAndSwap(false, true) {
		return "", ErrBusy
	}
	defer a.busy.Store(false)

	// Scratch copy; committed only on success.
	a.mu.Lock()
	turn := make([]llm.Message, len(a.conversation), len(a.conversation)+2)
	copy(turn, a.conversation)
	a.mu.Unlock()
	turn = append(turn, llm.Message{Role: llm.RoleUser, Content: text})

	a.setState(StateThinking)
	schemas := a.registry.Schemas()

	for step := 0; step < a.maxSteps; step++ {
		a.setState(StateResponding)
		res, err := a.svc.CompleteWithTools(ctx, turn, schemas)
		if stderrors.Is(err, llm.ErrEmptyCompletion) {
			// The exchange succeeded but the model had nothing to say.
			a.logger.Debugf("Empty completion on step %d; ending turn", step+1)
			return a.commit(turn, "")
		}
		if err != nil {
			if errors.IsKind(err, errors.KindToolsNotSupported) {
				return a.fallbackWithoutTools(ctx, turn)
			}
			a.logger.Errorf("Completion failed on step %d: %v", step+1, err)
			a.setState(StateError)
			return "", err
		}

		if len(res.ToolCalls) == 0 {
			return a.commit(turn, res.Content)
		}

		turn = append(turn, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   res.Content,
			ToolCalls: res.ToolCalls,
		})

		// Dispatch sequentially in issue order; tool side effects must not
		// interleave. Exactly one tool message is appended per call.
		for _, call := range res.ToolCalls {
			a.setState(StateCallingTool)
			turn = append(turn, a.dispatchToolCall(ctx, call))
		}
		a.setState(StateThinking)
	}

	a.logger.Errorf("Turn exceeded %d provider calls", a.maxSteps)
	a.setState(StateError)
	return "", &StepLimitError{Steps: a.maxSteps}
}

// commit appends the final assistant message, stores the finished turn and
// returns the answer.
func (a *Assistant) commit(turn []llm.Message, content string) (string, error) {
	turn = append(turn, llm.Message{Role: llm.RoleAssistant, Content: content})
	a.mu.Lock()
	a.conversation = turn
	a.mu.Unlock()
	a.setState(StateIdle)
	return content, nil
}

// fallbackWithoutTools performs the single bounded retry for a model that
// rejected the tool catalogue: one call with tools absent, never more. This
// branch is deliberately a plain conditional rather than a retry wrapper so
// the step-bound invariant stays auditable.
func (a *Assistant) fallbackWithoutTools(ctx context.Context, turn []llm.Message) (string, error) {
	a.logger.Warnf("Model does not support tools; retrying once without them")
	a.setState(StateResponding)
	res, err := a.svc.Complete(ctx, turn)
	if err != nil && !stderrors.Is(err, llm.ErrEmptyCompletion) {
		a.setState(StateError)
		return "", err
	}
	var content string
	if res != nil {
		content = res.Content
	}
	return a.commit(turn, toolIncapableNotice+content)
}

// dispatchToolCall executes one call and produces its tool message. A
// malformed argument payload or a failing tool is scoped to this call: the
// error text goes back to the model and the turn continues.
func (a *Assistant) dispatchToolCall(ctx context.Context, call llm.ToolCall) llm.Message {
	msg := llm.Message{
		Role:       llm.RoleTool,
		ToolCallID: call.ID,
		Name:       call.Name,
	}

	var args map[string]interface{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			a.logger.Warnf("Tool %s: arguments could not be parsed: %v", call.Name, err)
			msg.Content = fmt.Sprintf("ERROR: arguments could not be parsed: %v", err)
			return msg
		}
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	a.logger.Debugf("Dispatching tool %s (call %s)", call.Name, call.ID)
	out, err := a.registry.Execute(ctx, call.Name, args)
	if err != nil {
		a.logger.Warnf("Tool %s failed: %v", call.Name, err)
		msg.Content = "ERROR: " + err.Error()
		return msg
	}
	msg.Content = out
	return msg
}
