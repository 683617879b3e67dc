// Package quota maps plan tiers to resource caps and rejects work that
// would exceed them before any model call is made.
//
// The pre-flight Check here is advisory: the store re-evaluates every
// cap transactionally at commit time, so a race between two turns can
// never overshoot a limit. Check exists to fail fast and cheap.
package quota

import (
	"errors"
	"fmt"

	"github.com/pompdany/gatekeeper/internal/config"
	"github.com/pompdany/gatekeeper/internal/store"
)

// Actions a guard can be asked about.
const (
	ActionCreateAgent = "create_agent"
	ActionSendMessage = "send_message"
)

// LimitError reports a plan cap that is already reached. Its message is
// shown to the end user verbatim.
type LimitError struct {
	Plan   string
	Action string
	Used   int
	Max    int
}

func (e *LimitError) Error() string {
	noun := "messages"
	if e.Action == ActionCreateAgent {
		noun = "agents"
	}
	return fmt.Sprintf("plan %q limit reached: %d of %d %s used", e.Plan, e.Used, e.Max, noun)
}

// Tiers is the plan table. It satisfies store.Limits so the store can
// enforce the same numbers transactionally.
type Tiers map[string]config.Plan

// ForPlan returns the caps for plan. An unknown plan gets the free
// tier's caps, never unlimited.
func (t Tiers) ForPlan(plan string) (maxAgents, maxMessages int) {
	p, ok := t[plan]
	if !ok {
		p, ok = t["free"]
		if !ok {
			return 0, 0
		}
	}
	return p.Agents, p.Messages
}

// Guard answers "may this user do this now" from current usage.
type Guard struct {
	store *store.Store
	tiers Tiers
}

// NewGuard creates a Guard over the given store and plan table.
func NewGuard(s *store.Store, tiers Tiers) *Guard {
	return &Guard{store: s, tiers: tiers}
}

// Tiers returns the guard's plan table.
func (g *Guard) Tiers() Tiers {
	return g.tiers
}

// Check returns nil when the user may perform action, and a *LimitError
// when the relevant cap is already reached. Unknown users are treated
// as free-tier with zero usage; they are materialized on first write.
func (g *Guard) Check(email, action string) error {
	u, err := g.store.User(email)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check quota for %s: %w", email, err)
	}

	maxAgents, maxMessages := g.tiers.ForPlan(u.Plan)
	switch action {
	case ActionCreateAgent:
		if u.AgentsCreated >= maxAgents {
			return &LimitError{Plan: u.Plan, Action: action, Used: u.AgentsCreated, Max: maxAgents}
		}
	case ActionSendMessage:
		if u.MessagesSent >= maxMessages {
			return &LimitError{Plan: u.Plan, Action: action, Used: u.MessagesSent, Max: maxMessages}
		}
	default:
		return fmt.Errorf("unknown quota action %q", action)
	}
	return nil
}
