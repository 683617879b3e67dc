package builder

import "github.com/pompdany/gatekeeper/internal/store"

// ArchitectID is the fixed id of the system builder agent. Users talk
// to it to get new agents made.
const ArchitectID = "SYS_BUILDER"

// SeedArchitect installs the system builder agent owned by ownerEmail.
// It bypasses quota accounting and is safe to call on every startup.
func SeedArchitect(s *store.Store, ownerEmail, model string) error {
	return s.SeedAgent(&store.Agent{
		ID:           ArchitectID,
		Creator:      ownerEmail,
		Name:         "Architect",
		Persona:      "the platform's agent architect, who interviews users about what they need and then builds it",
		Goal:         "design and create new agents with the create_new_agent tool, choosing sensible capabilities from the user's description",
		EnabledTools: []string{ToolName},
		Model:        model,
		Temperature:  DefaultTemperature,
		Icon:         "🏗️",
	})
}
