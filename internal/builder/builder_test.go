package builder

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/pompdany/gatekeeper/internal/config"
	"github.com/pompdany/gatekeeper/internal/quota"
	"github.com/pompdany/gatekeeper/internal/store"
	"github.com/pompdany/gatekeeper/internal/tools"
)

func newBuilder(t *testing.T, tiers quota.Tiers) (*Builder, *store.Store) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s, err := store.New(db, tiers)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	guard := quota.NewGuard(s, tiers)
	logger := slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
	return New(logger, s, guard, "gpt-4o-mini"), s
}

func freeTiers() quota.Tiers {
	return quota.Tiers{
		"free": config.Plan{Agents: 1, Messages: 50},
		"pro":  config.Plan{Agents: 10, Messages: 1000},
	}
}

func TestInferTools(t *testing.T) {
	tests := []struct {
		name  string
		hints string
		want  []string
	}{
		{"empty", "", nil},
		{"http words", "needs to make HTTP requests to an API", []string{"make_http_request"}},
		{"time words", "tell the time and date", []string{"get_current_time"}},
		{"task words", "keep a todo list of chores", []string{"manage_tasks"}},
		{"builder words", "should be able to create other agents", []string{"create_new_agent"}},
		{"exact names", "make_http_request, get_current_time", []string{"make_http_request", "get_current_time"}},
		{"mixed order is canonical", "clock access plus web fetch", []string{"make_http_request", "get_current_time"}},
		{"unknown words", "quantum juggling", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InferTools(tt.hints)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("InferTools(%q) = %v, want %v", tt.hints, got, tt.want)
			}
		})
	}
}

func TestCreate_PersistsAgentWithDefaults(t *testing.T) {
	b, s := newBuilder(t, freeTiers())
	if err := s.EnsureUser("alice@example.com", "pro"); err != nil {
		t.Fatal(err)
	}

	ctx := tools.WithUserEmail(context.Background(), "alice@example.com")
	obs, err := b.create(ctx, map[string]any{
		"name":         "Weather Scout",
		"personality":  "a cheerful meteorologist",
		"goal":         "report the weather",
		"tools_needed": "http requests",
		"api_secrets":  "WEATHER_KEY=k1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(obs, "Weather Scout") || !strings.Contains(obs, "make_http_request") {
		t.Errorf("observation = %q", obs)
	}

	agents, err := s.AgentsByCreator("alice@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(agents) != 1 {
		t.Fatalf("got %d agents, want 1", len(agents))
	}
	ag := agents[0]
	if ag.Model != "gpt-4o-mini" || ag.Temperature != 0.7 || ag.Icon != "🔗" {
		t.Errorf("defaults not applied: %+v", ag)
	}
	if ag.Secrets != "WEATHER_KEY=k1" {
		t.Errorf("secrets = %q", ag.Secrets)
	}
	if len(ag.EnabledTools) != 1 || ag.EnabledTools[0] != "make_http_request" {
		t.Errorf("enabled tools = %v", ag.EnabledTools)
	}
}

func TestCreate_QuotaLimitIsSurfaced(t *testing.T) {
	b, s := newBuilder(t, freeTiers())
	if err := s.EnsureUser("bob@example.com", "free"); err != nil {
		t.Fatal(err)
	}
	existing := &store.Agent{Creator: "bob@example.com", Name: "One", Persona: "p", Goal: "g", Model: "m"}
	if err := s.CreateAgent(existing); err != nil {
		t.Fatal(err)
	}

	ctx := tools.WithUserEmail(context.Background(), "bob@example.com")
	_, err := b.create(ctx, map[string]any{
		"name": "Two", "personality": "p", "goal": "g",
	})
	var limitErr *quota.LimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("err = %v, want *quota.LimitError", err)
	}

	// Nothing was persisted and the counter did not move.
	agents, err := s.AgentsByCreator("bob@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(agents) != 1 {
		t.Errorf("got %d agents, want 1", len(agents))
	}
	u, err := s.User("bob@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if u.AgentsCreated != 1 {
		t.Errorf("agents_created = %d, want 1", u.AgentsCreated)
	}
}

func TestCreate_RequiresUserInContext(t *testing.T) {
	b, _ := newBuilder(t, freeTiers())
	_, err := b.create(context.Background(), map[string]any{
		"name": "X", "personality": "p", "goal": "g",
	})
	if err == nil {
		t.Fatal("create without a user succeeded")
	}
}

func TestCreate_ThroughRegistryDispatch(t *testing.T) {
	b, s := newBuilder(t, freeTiers())
	if err := s.EnsureUser("alice@example.com", "pro"); err != nil {
		t.Fatal(err)
	}

	reg := tools.NewRegistry()
	reg.MustRegister(b.Tool())

	// Missing required fields are caught by schema validation before
	// the handler runs.
	ctx := tools.WithUserEmail(context.Background(), "alice@example.com")
	obs := reg.Dispatch(ctx, ToolName, map[string]any{"name": "Nameless"})
	if !strings.Contains(obs, "tool failed:") || !strings.Contains(obs, "personality") {
		t.Errorf("observation = %q", obs)
	}

	obs = reg.Dispatch(ctx, ToolName, map[string]any{
		"name": "Helper", "personality": "kind", "goal": "help",
	})
	if !strings.Contains(obs, "created") {
		t.Errorf("observation = %q", obs)
	}
}

func TestSeedArchitect(t *testing.T) {
	_, s := newBuilder(t, freeTiers())
	if err := s.EnsureUser("owner@example.com", "free"); err != nil {
		t.Fatal(err)
	}

	if err := SeedArchitect(s, "owner@example.com", "gpt-4o-mini"); err != nil {
		t.Fatalf("SeedArchitect: %v", err)
	}
	if err := SeedArchitect(s, "owner@example.com", "gpt-4o-mini"); err != nil {
		t.Fatalf("SeedArchitect again: %v", err)
	}

	ag, err := s.Agent(ArchitectID)
	if err != nil {
		t.Fatalf("Agent: %v", err)
	}
	if ag.Name != "Architect" {
		t.Errorf("name = %q", ag.Name)
	}
	if len(ag.EnabledTools) != 1 || ag.EnabledTools[0] != ToolName {
		t.Errorf("enabled tools = %v", ag.EnabledTools)
	}

	// The seed does not consume the owner's agent quota.
	u, err := s.User("owner@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if u.AgentsCreated != 0 {
		t.Errorf("agents_created = %d, want 0", u.AgentsCreated)
	}
}
