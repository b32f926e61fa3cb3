package dto

import (
	"time"

	"github.com/tasktracker/tasktracker/internal/model"
)

// CreateTaskRequest represents the request body for creating a task.
type CreateTaskRequest struct {
	Text       string           `json:"text"`
	Status     model.TaskStatus `json:"status"`
	DueAt      *time.Time       `json:"due_at,omitempty"`
	CategoryID string           `json:"category_id"`
}

// UpdateTaskRequest represents the request body for a partial task update.
type UpdateTaskRequest struct {
	Text       *string           `json:"text,omitempty"`
	Status     *model.TaskStatus `json:"status,omitempty"`
	DueAt      *time.Time        `json:"due_at,omitempty"`
	CategoryID *string           `json:"category_id,omitempty"`
}

// TaskResponse represents a task in API responses.
type TaskResponse struct {
	ID         string           `json:"id"`
	Text       string           `json:"text"`
	Status     model.TaskStatus `json:"status"`
	DueAt      *time.Time       `json:"due_at,omitempty"`
	UserID     string           `json:"user_id"`
	CategoryID string           `json:"category_id"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// ToTaskResponse converts a task to its API representation.
func ToTaskResponse(task *model.Task) TaskResponse {
	return TaskResponse{
		ID:         task.ID,
		Text:       task.Text,
		Status:     task.Status,
		DueAt:      task.DueAt,
		UserID:     task.UserID,
		CategoryID: task.CategoryID,
		CreatedAt:  task.CreatedAt,
		UpdatedAt:  task.UpdatedAt,
	}
}

// ToTaskListResponse converts tasks to a list response body.
func ToTaskListResponse(tasks []*model.Task) map[string]any {
	responses := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, ToTaskResponse(task))
	}
	return map[string]any{"data": responses}
}
