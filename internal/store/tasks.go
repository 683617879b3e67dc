package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Task statuses.
const (
	TaskOpen = "open"
	TaskDone = "done"
)

// Task is a unit of work an agent has been asked to track.
type Task struct {
	ID          string
	AgentID     string
	Description string
	Status      string
	CreatedAt   time.Time
}

// CreateTask records an open task for the agent.
func (s *Store) CreateTask(agentID, description string) (*Task, error) {
	t := &Task{
		ID:          uuid.Must(uuid.NewV7()).String(),
		AgentID:     agentID,
		Description: description,
		Status:      TaskOpen,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO tasks (id, agent_id, description, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.AgentID, t.Description, t.Status, t.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// OpenTasks returns the agent's open tasks, oldest first.
func (s *Store) OpenTasks(agentID string) ([]Task, error) {
	rows, err := s.db.Query(
		`SELECT id, agent_id, description, status, created_at
		 FROM tasks WHERE agent_id = ? AND status = ? ORDER BY created_at, id`,
		agentID, TaskOpen,
	)
	if err != nil {
		return nil, fmt.Errorf("open tasks for %s: %w", agentID, err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.AgentID, &t.Description, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CompleteTask marks the oldest open task matching description as done.
// It reports whether a task was completed.
func (s *Store) CompleteTask(agentID, description string) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE tasks SET status = ? WHERE id = (
			SELECT id FROM tasks
			WHERE agent_id = ? AND description = ? AND status = ?
			ORDER BY created_at, id LIMIT 1
		 )`,
		TaskDone, agentID, description, TaskOpen,
	)
	if err != nil {
		return false, fmt.Errorf("complete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
