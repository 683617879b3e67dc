package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// User is a platform account with its plan and usage counters.
type User struct {
	Email         string
	Plan          string
	AgentsCreated int
	MessagesSent  int
	JoinedAt      time.Time
}

// EnsureUser creates the user with the given plan if it does not exist.
// An existing user keeps its current plan and counters.
func (s *Store) EnsureUser(email, plan string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO users (email, plan, joined_at) VALUES (?, ?, ?)`,
		email, plan, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("ensure user %s: %w", email, err)
	}
	return nil
}

// SetPlan changes the user's plan tier. Counters are untouched: usage
// already consumed stays consumed across upgrades and downgrades.
func (s *Store) SetPlan(email, plan string) error {
	res, err := s.db.Exec(`UPDATE users SET plan = ? WHERE email = ?`, plan, email)
	if err != nil {
		return fmt.Errorf("set plan for %s: %w", email, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// User returns the account record for email.
func (s *Store) User(email string) (*User, error) {
	var u User
	err := s.db.QueryRow(
		`SELECT email, plan, agents_created, messages_sent, joined_at FROM users WHERE email = ?`,
		email,
	).Scan(&u.Email, &u.Plan, &u.AgentsCreated, &u.MessagesSent, &u.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", email, err)
	}
	return &u, nil
}
