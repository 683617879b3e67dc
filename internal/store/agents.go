package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Agent is a persisted agent definition. Definitions are immutable
// after creation.
type Agent struct {
	ID           string
	Creator      string
	Name         string
	Persona      string
	Goal         string
	EnabledTools []string
	Model        string
	Temperature  float64
	Icon         string
	Secrets      string
	CreatedAt    time.Time
}

// CreateAgent persists a new agent for a.Creator, charging the
// creator's agent quota in the same transaction. The quota check and
// the counter increment are one guarded UPDATE, so two concurrent
// creations cannot both pass a cap of one.
//
// Returns ErrAgentLimit when the creator's plan cap is reached and
// ErrNotFound when the creator does not exist.
func (s *Store) CreateAgent(a *Agent) error {
	if a.ID == "" {
		a.ID = uuid.Must(uuid.NewV7()).String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	var plan string
	err := s.db.QueryRow(`SELECT plan FROM users WHERE email = ?`, a.Creator).Scan(&plan)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load plan for %s: %w", a.Creator, err)
	}
	maxAgents, _ := s.limits.ForPlan(plan)

	toolsJSON, err := json.Marshal(a.EnabledTools)
	if err != nil {
		return fmt.Errorf("encode enabled tools: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE users SET agents_created = agents_created + 1
		 WHERE email = ? AND agents_created < ?`,
		a.Creator, maxAgents,
	)
	if err != nil {
		return fmt.Errorf("charge agent quota: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAgentLimit
	}

	_, err = tx.Exec(
		`INSERT INTO agents (id, creator, name, persona, goal, enabled_tools, model, temperature, icon, secrets, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Creator, a.Name, a.Persona, a.Goal, string(toolsJSON),
		a.Model, a.Temperature, a.Icon, a.Secrets, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}

	return tx.Commit()
}

// SeedAgent inserts a system-owned agent with a fixed id, bypassing
// quota accounting. Creating it twice is a no-op.
func (s *Store) SeedAgent(a *Agent) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	toolsJSON, err := json.Marshal(a.EnabledTools)
	if err != nil {
		return fmt.Errorf("encode enabled tools: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR IGNORE INTO agents (id, creator, name, persona, goal, enabled_tools, model, temperature, icon, secrets, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Creator, a.Name, a.Persona, a.Goal, string(toolsJSON),
		a.Model, a.Temperature, a.Icon, a.Secrets, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("seed agent %s: %w", a.ID, err)
	}
	return nil
}

// Agent returns the agent with the given id.
func (s *Store) Agent(id string) (*Agent, error) {
	row := s.db.QueryRow(
		`SELECT id, creator, name, persona, goal, enabled_tools, model, temperature, icon, secrets, created_at
		 FROM agents WHERE id = ?`, id,
	)
	a, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load agent %s: %w", id, err)
	}
	return a, nil
}

// AgentsByCreator returns all agents created by email, oldest first.
func (s *Store) AgentsByCreator(email string) ([]*Agent, error) {
	rows, err := s.db.Query(
		`SELECT id, creator, name, persona, goal, enabled_tools, model, temperature, icon, secrets, created_at
		 FROM agents WHERE creator = ? ORDER BY created_at, id`, email,
	)
	if err != nil {
		return nil, fmt.Errorf("list agents for %s: %w", email, err)
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*Agent, error) {
	var a Agent
	var toolsJSON string
	err := row.Scan(&a.ID, &a.Creator, &a.Name, &a.Persona, &a.Goal, &toolsJSON,
		&a.Model, &a.Temperature, &a.Icon, &a.Secrets, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(toolsJSON), &a.EnabledTools); err != nil {
		return nil, fmt.Errorf("decode enabled tools for %s: %w", a.ID, err)
	}
	return &a, nil
}
