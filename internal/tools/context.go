package tools

import "context"

type contextKey string

const userEmailKey contextKey = "user_email"
const agentIDKey contextKey = "agent_id"

// WithUserEmail adds the requesting user's email to the context.
// Handlers that touch per-user state (quota, agent creation) read it back.
func WithUserEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, userEmailKey, email)
}

// UserEmailFromContext extracts the requesting user's email.
// Returns "" if not set.
func UserEmailFromContext(ctx context.Context) string {
	if email, ok := ctx.Value(userEmailKey).(string); ok {
		return email
	}
	return ""
}

// WithAgentID adds the active agent's ID to the context.
func WithAgentID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, agentIDKey, id)
}

// AgentIDFromContext extracts the active agent's ID. Returns "" if not set.
func AgentIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(agentIDKey).(string); ok {
		return id
	}
	return ""
}
