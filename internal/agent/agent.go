// Package agent drives the conversation loop: the assistant either answers
// directly or requests tool calls, whose results are fed back until a final
// answer is produced.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/comigor/stockagent-go/internal/config"
	"github.com/comigor/stockagent-go/internal/history"
	"github.com/comigor/stockagent-go/internal/llm"
	"github.com/comigor/stockagent-go/internal/logger"
	"github.com/comigor/stockagent-go/internal/stream"
	"github.com/comigor/stockagent-go/pkg/tools"
)

// FSM States
type FSMState stateless.State

var (
	StateAgent FSMState = "Agent" // awaiting a model response
	StateTools FSMState = "Tools" // awaiting execution of pending tool calls
	StateDone  FSMState = "Done"  // terminal: final answer produced
	StateError FSMState = "Error" // terminal: turn failed
)

// FSM Triggers
type FSMTrigger stateless.Trigger

var (
	TriggerStart          FSMTrigger = "Start"
	TriggerToolsRequested FSMTrigger = "ToolsRequested"
	TriggerAnswerReady    FSMTrigger = "AnswerReady"
	TriggerToolsCompleted FSMTrigger = "ToolsCompleted"
	TriggerErrorOccurred  FSMTrigger = "ErrorOccurred"
)

const defaultSystemPrompt = "You are a stock analysis assistant. When the user mentions a ticker symbol, " +
	"use the get_stock_price tool to look up its price, and use the calculator tool when arithmetic is needed. " +
	"Answer accurately and concisely."

const defaultMaxTurns = 5

// DefaultThreadID is used when the caller does not name a thread.
const DefaultThreadID = "default"

// Agent orchestrates conversations. Invocations on the same thread are fully
// serialized; distinct threads run concurrently.
type Agent struct {
	llmClient llm.Client
	registry  *tools.Registry
	memory    *history.Store
	tokenizer stream.Tokenizer

	model        string
	systemPrompt string
	maxTurns     int
}

// New creates an agent from the application config, the shared tool
// registry, and a fresh in-memory conversation store.
func New(llmClient llm.Client, cfg *config.Config, registry *tools.Registry) *Agent {
	systemPrompt := cfg.Agent.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	maxTurns := cfg.Agent.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	tokenizer := stream.NewWithDelays(
		time.Duration(cfg.Stream.TokenDelayMS)*time.Millisecond,
		time.Duration(cfg.Stream.SpaceDelayMS)*time.Millisecond,
	)

	return &Agent{
		llmClient:    llmClient,
		registry:     registry,
		memory:       history.NewStore(),
		tokenizer:    tokenizer,
		model:        cfg.LLM.Model,
		systemPrompt: systemPrompt,
		maxTurns:     maxTurns,
	}
}

// Process appends the user message to the thread and loops the agent/tools
// cycle until a final answer with no pending tool calls is produced,
// returning its content.
func (a *Agent) Process(ctx context.Context, threadID, userText string) (string, error) {
	if strings.TrimSpace(userText) == "" {
		return "", fmt.Errorf("%w: user input is empty", tools.ErrInvalidInput)
	}
	if threadID == "" {
		threadID = DefaultThreadID
	}

	unlock := a.memory.LockThread(threadID)
	defer unlock()

	a.memory.Append(threadID, history.NewUserMessage(userText))
	return a.runLoop(ctx, threadID)
}

// runLoop executes one invocation's state machine. The caller holds the
// thread lock.
func (a *Agent) runLoop(ctx context.Context, threadID string) (string, error) {
	type fsmContext struct {
		lastAssistant history.Message
		finalContent  string
		lastError     error
		currentTurn   int
	}

	responderNode := &responder{
		client:       a.llmClient,
		model:        a.model,
		systemPrompt: a.systemPrompt,
	}
	dispatchNode := &dispatcher{registry: a.registry}
	toolSchemas := a.registry.OpenAITools()

	fsmCtx := &fsmContext{}
	fsm := stateless.NewStateMachine(StateAgent)

	// State: Agent. Call the model with the thread's full history; route on
	// whether the returned message carries tool calls. The machine starts in
	// this state, so the start trigger re-enters it to run OnEntry.
	fsm.Configure(StateAgent).
		PermitReentry(TriggerStart).
		OnEntry(func(ctx context.Context, args ...any) error {
			if fsmCtx.currentTurn >= a.maxTurns {
				logger.L.Warn("max interaction turns reached", "max_turns", a.maxTurns, "thread_id", threadID)
				fsmCtx.lastError = ErrMaxTurns
				return fsm.FireCtx(ctx, TriggerErrorOccurred)
			}
			fsmCtx.currentTurn++
			logger.L.Debug("entering agent state", "turn", fsmCtx.currentTurn, "thread_id", threadID)

			message, err := responderNode.respond(ctx, a.memory.List(threadID), toolSchemas)
			if err != nil {
				logger.L.Error("model call failed", "error", err, "thread_id", threadID)
				fsmCtx.lastError = err
				return fsm.FireCtx(ctx, TriggerErrorOccurred)
			}

			a.memory.Append(threadID, message)
			fsmCtx.lastAssistant = message

			if len(message.ToolCalls) > 0 {
				return fsm.FireCtx(ctx, TriggerToolsRequested)
			}
			return fsm.FireCtx(ctx, TriggerAnswerReady)
		}).
		Permit(TriggerToolsRequested, StateTools).
		Permit(TriggerAnswerReady, StateDone).
		Permit(TriggerErrorOccurred, StateError)

	// State: Tools. Execute the pending tool calls in request order, append
	// their results, and hand control back to the agent state.
	fsm.Configure(StateTools).
		OnEntry(func(ctx context.Context, args ...any) error {
			logger.L.Debug("entering tools state", "calls", len(fsmCtx.lastAssistant.ToolCalls), "thread_id", threadID)

			results, err := dispatchNode.execute(ctx, fsmCtx.lastAssistant.ToolCalls)
			if err != nil {
				logger.L.Error("tool execution failed", "error", err, "thread_id", threadID)
				fsmCtx.lastError = err
				return fsm.FireCtx(ctx, TriggerErrorOccurred)
			}
			for _, result := range results {
				a.memory.Append(threadID, result)
			}
			return fsm.FireCtx(ctx, TriggerToolsCompleted)
		}).
		Permit(TriggerToolsCompleted, StateAgent).
		Permit(TriggerErrorOccurred, StateError)

	fsm.Configure(StateDone).
		OnEntry(func(ctx context.Context, args ...any) error {
			fsmCtx.finalContent = fsmCtx.lastAssistant.Content
			return nil
		})

	fsm.Configure(StateError).
		OnEntry(func(ctx context.Context, args ...any) error {
			if fsmCtx.lastError == nil {
				fsmCtx.lastError = errors.New("reached error state without a specific error")
			}
			return nil
		})

	// Firing the start trigger re-enters StateAgent and runs its OnEntry;
	// the transitions are synchronous, so the machine is terminal when this
	// returns.
	if err := fsm.FireCtx(ctx, TriggerStart); err != nil {
		if fsmCtx.lastError != nil {
			return "", fsmCtx.lastError
		}
		return "", fmt.Errorf("state machine start error: %w", err)
	}

	currentState, err := fsm.State(ctx)
	if err != nil {
		return "", fmt.Errorf("state machine internal error: %w", err)
	}
	switch currentState {
	case StateDone:
		return fsmCtx.finalContent, nil
	case StateError:
		return "", fsmCtx.lastError
	default:
		return "", fmt.Errorf("state machine ended in an unexpected state: %v", currentState)
	}
}

// Stream runs Process and delivers the answer as paced display fragments.
// Validation errors are returned synchronously; any later failure is
// converted to natural-language error text on the same channel, so the
// caller never sees a raw failure. The channel is closed when the answer is
// exhausted or ctx is cancelled.
func (a *Agent) Stream(ctx context.Context, threadID, userText string) (<-chan string, error) {
	if strings.TrimSpace(userText) == "" {
		return nil, fmt.Errorf("%w: user input is empty", tools.ErrInvalidInput)
	}

	out := make(chan string)
	go func() {
		defer close(out)

		answer, err := a.Process(ctx, threadID, userText)
		if err != nil {
			logger.L.Error("processing failed, streaming error text", "error", err, "thread_id", threadID)
			answer = "Sorry, something went wrong while answering: " + err.Error()
		}
		for fragment := range a.tokenizer.Stream(ctx, answer) {
			select {
			case out <- fragment:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Clear acknowledges a request to reset a thread. Per-thread state has no
// explicit teardown; the log entry is the acknowledgement.
func (a *Agent) Clear(threadID string) {
	logger.L.Info("clear requested; thread state is retained", "thread_id", threadID)
}

// History returns a copy of the thread's message log.
func (a *Agent) History(threadID string) []history.Message {
	return a.memory.List(threadID)
}
