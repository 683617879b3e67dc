package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pompdany/gatekeeper/internal/llm"
	"github.com/pompdany/gatekeeper/internal/store"
	"github.com/pompdany/gatekeeper/internal/tools"
)

// defaultMaxIter bounds how many reasoning steps a turn may take when
// no cap is configured.
const defaultMaxIter = 5

// cappedAnswer is the final answer recorded when the iteration cap is
// reached before the model produces one.
const cappedAnswer = "I could not complete this request within the allowed number of steps."

// Turn outcomes.
const (
	StatusDone   = "done"
	StatusFailed = "failed"
)

// Result is the outcome of one user turn.
type Result struct {
	Status       string `json:"status"`
	Content      string `json:"content"`
	Iterations   int    `json:"iterations"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// Loop alternates model calls with tool dispatch for one agent turn.
// Tool failures of every kind come back as observation strings and feed
// the next reasoning step; only model-call and persistence failures
// abort a turn.
type Loop struct {
	logger    *slog.Logger
	llm       llm.Client
	store     *store.Store
	registry  *tools.Registry
	assembler *Assembler
	maxIter   int
}

// NewLoop creates an orchestration loop over the full tool registry.
// Each turn derives a per-agent registry from the agent's enabled
// tools.
func NewLoop(logger *slog.Logger, llmClient llm.Client, st *store.Store, registry *tools.Registry, assembler *Assembler, maxIter int) *Loop {
	if maxIter <= 0 {
		maxIter = defaultMaxIter
	}
	return &Loop{
		logger:    logger,
		llm:       llmClient,
		store:     st,
		registry:  registry,
		assembler: assembler,
		maxIter:   maxIter,
	}
}

// Run executes one user turn against the agent. The user message is
// persisted before the first model call; exactly one assistant message
// is persisted after it, the model's answer or the capped one.
//
// A model-call or persistence failure returns an error and leaves no
// assistant message behind. Quota errors from persisting the user
// message pass through unwrapped for the caller to classify.
func (l *Loop) Run(ctx context.Context, ag *store.Agent, userEmail, userMsg string) (*Result, error) {
	turnID := uuid.Must(uuid.NewV7()).String()

	history, err := l.store.RecentMessages(ag.ID, l.assembler.Window)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	openTasks, err := l.store.OpenTasks(ag.ID)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	if _, err := l.store.AppendMessage(&store.Message{
		AgentID:   ag.ID,
		UserEmail: userEmail,
		Role:      store.RoleUser,
		Content:   userMsg,
	}); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	reg := l.registry.FilteredCopy(ag.EnabledTools)
	toolDefs := reg.List()

	ctx = tools.WithUserEmail(ctx, userEmail)
	ctx = tools.WithAgentID(ctx, ag.ID)

	l.logger.Info("turn started",
		"turn_id", turnID,
		"agent_id", ag.ID,
		"agent", ag.Name,
		"user", userEmail,
		"tools_available", len(toolDefs),
		"history", len(history),
	)

	messages := l.assembler.Assemble(ag, openTasks, history, userMsg)
	startTime := time.Now()
	var totalInput, totalOutput int

	for i := 0; i < l.maxIter; i++ {
		iterStart := time.Now()

		l.logger.Debug("model call",
			"turn_id", turnID,
			"iter", i,
			"model", ag.Model,
			"msgs", len(messages),
		)

		resp, err := l.llm.Chat(ctx, ag.Model, messages, toolDefs, ag.Temperature)
		if err != nil {
			l.logger.Error("model call failed",
				"turn_id", turnID,
				"agent_id", ag.ID,
				"iter", i,
				"error", err,
			)
			return nil, fmt.Errorf("model call failed (iter %d): %w", i, err)
		}

		totalInput += resp.InputTokens
		totalOutput += resp.OutputTokens

		l.logger.Info("model response",
			"turn_id", turnID,
			"iter", i,
			"tool_calls", len(resp.Message.ToolCalls),
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
			"elapsed", time.Since(iterStart).Round(time.Millisecond),
		)

		// No tool calls means the model is done reasoning.
		if len(resp.Message.ToolCalls) == 0 {
			return l.finish(ctx, turnID, ag, userEmail, StatusDone, resp.Message.Content, i+1, totalInput, totalOutput, startTime)
		}

		messages = append(messages, resp.Message)
		for _, tc := range resp.Message.ToolCalls {
			toolStart := time.Now()
			l.logger.Info("tool exec",
				"turn_id", turnID,
				"iter", i,
				"tool", tc.Function.Name,
			)

			observation := reg.Dispatch(ctx, tc.Function.Name, tc.Function.Arguments)

			l.logger.Debug("tool exec done",
				"turn_id", turnID,
				"tool", tc.Function.Name,
				"result_len", len(observation),
				"elapsed", time.Since(toolStart).Round(time.Millisecond),
			)

			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    observation,
				ToolCallID: tc.ID,
			})
		}
	}

	l.logger.Warn("max iterations reached",
		"turn_id", turnID,
		"agent_id", ag.ID,
		"max_iter", l.maxIter,
	)
	return l.finish(ctx, turnID, ag, userEmail, StatusFailed, cappedAnswer, l.maxIter, totalInput, totalOutput, startTime)
}

// finish persists the assistant's answer and closes out the turn.
func (l *Loop) finish(_ context.Context, turnID string, ag *store.Agent, userEmail, status, content string, iterations, totalInput, totalOutput int, startTime time.Time) (*Result, error) {
	if _, err := l.store.AppendMessage(&store.Message{
		AgentID:   ag.ID,
		UserEmail: userEmail,
		Role:      store.RoleAssistant,
		Content:   content,
	}); err != nil {
		l.logger.Error("persist assistant message failed",
			"turn_id", turnID,
			"agent_id", ag.ID,
			"error", err,
		)
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}

	l.logger.Info("turn completed",
		"turn_id", turnID,
		"agent_id", ag.ID,
		"status", status,
		"iterations", iterations,
		"input_tokens", totalInput,
		"output_tokens", totalOutput,
		"elapsed", time.Since(startTime).Round(time.Millisecond),
	)

	return &Result{
		Status:       status,
		Content:      content,
		Iterations:   iterations,
		InputTokens:  totalInput,
		OutputTokens: totalOutput,
	}, nil
}
