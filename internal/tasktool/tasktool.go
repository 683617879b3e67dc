// Package tasktool implements the manage_tasks capability: an agent
// records work items on its own task list and marks them done. Open
// items are summarized into the agent's system prompt on every turn,
// so the list survives across turns and history-window trimming.
package tasktool

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pompdany/gatekeeper/internal/store"
	"github.com/pompdany/gatekeeper/internal/tools"
)

// ToolName is the registry name of the task-tracking capability.
const ToolName = "manage_tasks"

// Manager persists task changes requested through the manage_tasks tool.
type Manager struct {
	logger *slog.Logger
	store  *store.Store
}

// New creates a Manager backed by s.
func New(logger *slog.Logger, s *store.Store) *Manager {
	return &Manager{logger: logger, store: s}
}

// Tool returns the manage_tasks registry entry.
func (m *Manager) Tool() *tools.Tool {
	return &tools.Tool{
		Name:        ToolName,
		Description: "Add a task to this agent's open task list, or mark one done. Open tasks reappear at the start of every conversation turn.",
		Schema: tools.Schema{
			Properties: map[string]tools.Property{
				"action":      {Type: "string", Description: "what to do with the task", Enum: []string{"add", "complete"}},
				"description": {Type: "string", Description: "the task text, verbatim"},
			},
			Required: []string{"action", "description"},
		},
		Handler: m.manage,
	}
}

// manage handles one manage_tasks invocation. The agent identity comes
// from the turn context; the tool never operates on another agent's list.
func (m *Manager) manage(ctx context.Context, args map[string]any) (string, error) {
	agentID := tools.AgentIDFromContext(ctx)
	if agentID == "" {
		return "", fmt.Errorf("no active agent on this turn")
	}

	action, _ := args["action"].(string)
	description, _ := args["description"].(string)

	switch action {
	case "add":
		task, err := m.store.CreateTask(agentID, description)
		if err != nil {
			return "", err
		}
		m.logger.Info("task added", "agent_id", agentID, "task_id", task.ID)
		return fmt.Sprintf("Task added: %q.", description), nil
	case "complete":
		done, err := m.store.CompleteTask(agentID, description)
		if err != nil {
			return "", err
		}
		if !done {
			// An observation, not an error: the model likely paraphrased
			// the task text and can retry with the exact wording.
			return fmt.Sprintf("No open task matches %q.", description), nil
		}
		m.logger.Info("task completed", "agent_id", agentID)
		return fmt.Sprintf("Task completed: %q.", description), nil
	default:
		return "", fmt.Errorf("unknown action %q", action)
	}
}
