package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message roles as stored in the log. They mirror the model wire roles
// so history can be replayed into a conversation without translation.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in an agent's append-only conversation log.
type Message struct {
	ID        string
	AgentID   string
	UserEmail string
	Role      string
	Content   string
	Seq       int64
	CreatedAt time.Time
}

// AppendMessage appends m to the agent's log and returns the assigned
// sequence number. User-role messages charge the sender's message quota
// inside the same transaction; assistant and tool messages are free.
//
// Returns ErrMessageLimit when a user-role append would exceed the
// sender's plan cap.
func (s *Store) AppendMessage(m *Message) (int64, error) {
	if m.ID == "" {
		m.ID = uuid.Must(uuid.NewV7()).String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if m.Role == RoleUser {
		var plan string
		err := tx.QueryRow(`SELECT plan FROM users WHERE email = ?`, m.UserEmail).Scan(&plan)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("load plan for %s: %w", m.UserEmail, err)
		}
		_, maxMessages := s.limits.ForPlan(plan)

		res, err := tx.Exec(
			`UPDATE users SET messages_sent = messages_sent + 1
			 WHERE email = ? AND messages_sent < ?`,
			m.UserEmail, maxMessages,
		)
		if err != nil {
			return 0, fmt.Errorf("charge message quota: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, ErrMessageLimit
		}
	}

	err = tx.QueryRow(
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE agent_id = ?`,
		m.AgentID,
	).Scan(&m.Seq)
	if err != nil {
		return 0, fmt.Errorf("next seq for %s: %w", m.AgentID, err)
	}

	_, err = tx.Exec(
		`INSERT INTO messages (id, agent_id, user_email, role, content, seq, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.AgentID, m.UserEmail, m.Role, m.Content, m.Seq, m.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return m.Seq, nil
}

// RecentMessages returns the most recent limit messages of the agent's
// log in ascending sequence order. Fewer rows than limit means the
// whole log was returned.
func (s *Store) RecentMessages(agentID string, limit int) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, agent_id, user_email, role, content, seq, created_at
		 FROM (
			SELECT id, agent_id, user_email, role, content, seq, created_at
			FROM messages WHERE agent_id = ? ORDER BY seq DESC LIMIT ?
		 ) ORDER BY seq ASC`,
		agentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent messages for %s: %w", agentID, err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.AgentID, &m.UserEmail, &m.Role, &m.Content, &m.Seq, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
