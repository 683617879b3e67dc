// Package store is the persistence gateway: users and their quota
// counters, agents, the append-only message log, and tasks.
//
// Production opens SQLite through mattn/go-sqlite3 with WAL enabled;
// tests inject an in-memory modernc.org/sqlite database. All quota
// evaluation-then-increment paths run as guarded single-statement
// updates so two concurrent turns for the same user can never both slip
// past a limit.
package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// Sentinel errors for limit and lookup failures.
var (
	// ErrAgentLimit means the user's plan cap on agents is reached.
	ErrAgentLimit = errors.New("agent limit reached")

	// ErrMessageLimit means the user's plan cap on messages is reached.
	ErrMessageLimit = errors.New("message limit reached")

	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// Limits resolves a plan name to its resource caps. The quota package
// provides the concrete tier table; the store only needs the numbers at
// the moment it commits.
type Limits interface {
	ForPlan(plan string) (maxAgents, maxMessages int)
}

// Store manages all persistent state.
type Store struct {
	db     *sql.DB
	limits Limits
}

// Open opens the production SQLite database at path with WAL and a busy
// timeout, so concurrent loop instances queue instead of failing.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection to :memory: is a separate database;
		// a second connection would see none of the migrated schema.
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// New creates a Store on top of db and applies the schema.
func New(db *sql.DB, limits Limits) (*Store, error) {
	s := &Store{db: db, limits: limits}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Users and their monotonic usage counters
	CREATE TABLE IF NOT EXISTS users (
		email TEXT PRIMARY KEY,
		plan TEXT NOT NULL DEFAULT 'free',
		agents_created INTEGER NOT NULL DEFAULT 0,
		messages_sent INTEGER NOT NULL DEFAULT 0,
		joined_at TIMESTAMP NOT NULL
	);

	-- Agents. Created by the builder capability; never edited in place.
	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		creator TEXT NOT NULL,
		name TEXT NOT NULL,
		persona TEXT NOT NULL,
		goal TEXT NOT NULL,
		enabled_tools TEXT NOT NULL DEFAULT '[]',
		model TEXT NOT NULL,
		temperature REAL NOT NULL DEFAULT 0.7,
		icon TEXT NOT NULL DEFAULT '',
		secrets TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (creator) REFERENCES users(email)
	);
	CREATE INDEX IF NOT EXISTS idx_agents_creator ON agents(creator);

	-- Append-only message log. seq is strictly increasing per agent;
	-- readers order by it and nothing else.
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		user_email TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		seq INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		UNIQUE (agent_id, seq),
		FOREIGN KEY (agent_id) REFERENCES agents(id)
	);
	CREATE INDEX IF NOT EXISTS idx_messages_agent ON messages(agent_id, seq);

	-- Tasks. Completion is matched by description, not id.
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		description TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (agent_id) REFERENCES agents(id)
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_agent ON tasks(agent_id, status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
