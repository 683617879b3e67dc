package tasktool

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/pompdany/gatekeeper/internal/config"
	"github.com/pompdany/gatekeeper/internal/quota"
	"github.com/pompdany/gatekeeper/internal/store"
	"github.com/pompdany/gatekeeper/internal/tools"
)

func newManager(t *testing.T) (*Manager, *store.Store) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	tiers := quota.Tiers{"free": config.Plan{Agents: 10, Messages: 100}}
	s, err := store.New(db, tiers)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
	return New(logger, s), s
}

func seedAgent(t *testing.T, s *store.Store) *store.Agent {
	t.Helper()
	if err := s.EnsureUser("alice@example.com", "free"); err != nil {
		t.Fatal(err)
	}
	ag := &store.Agent{Creator: "alice@example.com", Name: "Tracker", Persona: "p", Goal: "g", Model: "m"}
	if err := s.CreateAgent(ag); err != nil {
		t.Fatal(err)
	}
	return ag
}

func TestManage_AddAndCompleteRoundTrip(t *testing.T) {
	m, s := newManager(t)
	ag := seedAgent(t, s)
	ctx := tools.WithAgentID(context.Background(), ag.ID)

	obs, err := m.manage(ctx, map[string]any{"action": "add", "description": "water the plants"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(obs, "water the plants") {
		t.Errorf("observation = %q", obs)
	}

	open, err := s.OpenTasks(ag.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 1 || open[0].Description != "water the plants" {
		t.Fatalf("open tasks = %+v", open)
	}

	obs, err = m.manage(ctx, map[string]any{"action": "complete", "description": "water the plants"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !strings.Contains(obs, "completed") {
		t.Errorf("observation = %q", obs)
	}

	open, err = s.OpenTasks(ag.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 0 {
		t.Errorf("open tasks after complete = %+v", open)
	}
}

func TestManage_CompleteUnknownTaskIsObservation(t *testing.T) {
	m, s := newManager(t)
	ag := seedAgent(t, s)
	ctx := tools.WithAgentID(context.Background(), ag.ID)

	obs, err := m.manage(ctx, map[string]any{"action": "complete", "description": "never added"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !strings.Contains(obs, "No open task") {
		t.Errorf("observation = %q", obs)
	}
}

func TestManage_RequiresAgentInContext(t *testing.T) {
	m, _ := newManager(t)
	_, err := m.manage(context.Background(), map[string]any{"action": "add", "description": "x"})
	if err == nil {
		t.Fatal("manage without an agent succeeded")
	}
}

func TestManage_ThroughRegistryDispatch(t *testing.T) {
	m, s := newManager(t)
	ag := seedAgent(t, s)

	reg := tools.NewRegistry()
	reg.MustRegister(m.Tool())
	ctx := tools.WithAgentID(context.Background(), ag.ID)

	// Schema validation rejects an action outside the enum before the
	// handler runs.
	obs := reg.Dispatch(ctx, ToolName, map[string]any{"action": "drop", "description": "x"})
	if !strings.Contains(obs, "tool failed:") || !strings.Contains(obs, "action") {
		t.Errorf("observation = %q", obs)
	}

	obs = reg.Dispatch(ctx, ToolName, map[string]any{"action": "add", "description": "file taxes"})
	if !strings.Contains(obs, "Task added") {
		t.Errorf("observation = %q", obs)
	}
}
