// Package builder implements the create_new_agent capability: an agent
// with this tool enabled can create further agents mid-turn. The new
// agent is charged to the requesting user's plan like any other
// creation, and the capability is reentrant, bounded only by the
// orchestration loop's iteration cap.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pompdany/gatekeeper/internal/quota"
	"github.com/pompdany/gatekeeper/internal/store"
	"github.com/pompdany/gatekeeper/internal/tools"
)

// ToolName is the registry name of the agent-creation capability.
const ToolName = "create_new_agent"

// Defaults applied to agents created through the tool and the API.
const (
	DefaultTemperature = 0.7
	DefaultIcon        = "🔗"
)

// Builder persists agents requested through the create_new_agent tool.
type Builder struct {
	logger       *slog.Logger
	store        *store.Store
	guard        *quota.Guard
	defaultModel string
}

// New creates a Builder. Agents created through it run on defaultModel.
func New(logger *slog.Logger, s *store.Store, guard *quota.Guard, defaultModel string) *Builder {
	return &Builder{
		logger:       logger,
		store:        s,
		guard:        guard,
		defaultModel: defaultModel,
	}
}

// Tool returns the create_new_agent registry entry.
func (b *Builder) Tool() *tools.Tool {
	return &tools.Tool{
		Name:        ToolName,
		Description: "Create a new agent on the platform. The agent is owned by the requesting user and counts against their plan.",
		Schema: tools.Schema{
			Properties: map[string]tools.Property{
				"name":        {Type: "string", Description: "display name for the new agent"},
				"personality": {Type: "string", Description: "persona the agent adopts, e.g. 'a meticulous researcher'"},
				"goal":        {Type: "string", Description: "what the agent should accomplish"},
				"tools_needed": {Type: "string", Description: "free-text hints for capabilities, e.g. 'http requests and the current time'"},
				"api_secrets":  {Type: "string", Description: "credentials implanted into the agent's system prompt"},
			},
			Required: []string{"name", "personality", "goal"},
		},
		Handler: b.create,
	}
}

// create handles one create_new_agent invocation. Failures return
// errors; the registry turns them into observations for the model.
func (b *Builder) create(ctx context.Context, args map[string]any) (string, error) {
	creator := tools.UserEmailFromContext(ctx)
	if creator == "" {
		return "", fmt.Errorf("no requesting user on this turn")
	}

	name, _ := args["name"].(string)
	personality, _ := args["personality"].(string)
	goal, _ := args["goal"].(string)
	hints, _ := args["tools_needed"].(string)
	secrets, _ := args["api_secrets"].(string)

	if err := b.guard.Check(creator, quota.ActionCreateAgent); err != nil {
		return "", err
	}

	enabled := InferTools(hints)

	ag := &store.Agent{
		Creator:      creator,
		Name:         name,
		Persona:      personality,
		Goal:         goal,
		EnabledTools: enabled,
		Model:        b.defaultModel,
		Temperature:  DefaultTemperature,
		Icon:         DefaultIcon,
		Secrets:      secrets,
	}
	if err := b.store.CreateAgent(ag); err != nil {
		return "", err
	}

	b.logger.Info("agent created",
		"agent_id", ag.ID,
		"name", name,
		"creator", creator,
		"requested_by", tools.AgentIDFromContext(ctx),
		"tools", enabled,
	)

	toolList := "none"
	if len(enabled) > 0 {
		toolList = strings.Join(enabled, ", ")
	}
	return fmt.Sprintf("Agent %q created with id %s. Enabled tools: %s.", name, ag.ID, toolList), nil
}

// synonyms maps hint words to capabilities. The table is ordered so
// inferred tool lists come out deterministic regardless of hint order.
var synonyms = []struct {
	tool  string
	words []string
}{
	{"make_http_request", []string{"make_http_request", "http", "https", "api", "web", "request", "requests", "fetch", "url"}},
	{"get_current_time", []string{"get_current_time", "time", "clock", "date", "datetime"}},
	{"manage_tasks", []string{"manage_tasks", "task", "tasks", "todo", "todos", "checklist", "track"}},
	{ToolName, []string{ToolName, "agent", "agents", "builder", "create", "spawn"}},
}

// InferTools derives enabled tool names from free-text capability
// hints. Unrecognized words are ignored; an empty hint yields no tools.
func InferTools(hints string) []string {
	words := strings.FieldsFunc(strings.ToLower(hints), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != '_'
	})
	if len(words) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(words))
	for _, w := range words {
		seen[w] = true
	}

	var enabled []string
	for _, entry := range synonyms {
		for _, w := range entry.words {
			if seen[w] {
				enabled = append(enabled, entry.tool)
				break
			}
		}
	}
	return enabled
}
