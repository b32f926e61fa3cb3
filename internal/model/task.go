package model

import "time"

// TaskStatus enumerates the lifecycle states of a task.
type TaskStatus string

// Valid task statuses.
const (
	StatusNotStarted TaskStatus = "not_started"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
)

// ValidStatuses lists every accepted task status.
var ValidStatuses = []TaskStatus{StatusNotStarted, StatusInProgress, StatusDone}

// IsValid reports whether the status is one of the known values.
func (s TaskStatus) IsValid() bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Task represents a tracked task. Each task belongs to exactly one user
// and one category.
type Task struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Status     TaskStatus `json:"status"`
	DueAt      *time.Time `json:"due_at,omitempty"`
	UserID     string     `json:"user_id"`
	CategoryID string     `json:"category_id"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
