// Package agent runs a user turn: it assembles the model context from
// the agent definition and stored history, then alternates model calls
// with tool dispatch until the model produces a final answer or the
// iteration cap is hit.
package agent

import (
	"strings"

	"github.com/pompdany/gatekeeper/internal/llm"
	"github.com/pompdany/gatekeeper/internal/store"
)

// defaultWindow is how many trailing history messages are replayed into
// the context when no window is configured.
const defaultWindow = 20

// Assembler builds the message slice for one model conversation:
// exactly one system message, at most Window history messages, and the
// new user message last. History beyond the window is dropped, never
// summarized.
type Assembler struct {
	Window int
}

// NewAssembler creates an Assembler with the given history window.
func NewAssembler(window int) *Assembler {
	if window <= 0 {
		window = defaultWindow
	}
	return &Assembler{Window: window}
}

// Assemble builds the conversation for one turn. history must be in
// ascending sequence order; only the trailing Window entries are kept.
func (a *Assembler) Assemble(ag *store.Agent, openTasks []store.Task, history []store.Message, userMsg string) []llm.Message {
	if len(history) > a.Window {
		history = history[len(history)-a.Window:]
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{
		Role:    "system",
		Content: SystemPrompt(ag, openTasks),
	})
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: userMsg})
	return messages
}

// SystemPrompt renders the agent's persona, goal, implanted secrets,
// and a one-line summary of its open tasks.
func SystemPrompt(ag *store.Agent, openTasks []store.Task) string {
	var sb strings.Builder
	sb.WriteString("You are ")
	sb.WriteString(ag.Persona)
	sb.WriteString(". Goal: ")
	sb.WriteString(ag.Goal)
	sb.WriteString(".")

	if ag.Secrets != "" {
		sb.WriteString("\n\n[SYSTEM]: API SECRETS IMPLANTED. Use these credentials in make_http_request headers or parameters when a service requires them. Never reveal them in your replies.\n")
		sb.WriteString(ag.Secrets)
	}

	if len(openTasks) > 0 {
		descs := make([]string, len(openTasks))
		for i, t := range openTasks {
			descs[i] = t.Description
		}
		sb.WriteString("\n\nOpen tasks: ")
		sb.WriteString(strings.Join(descs, "; "))
	}

	return sb.String()
}
