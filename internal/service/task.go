package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/tasktracker/tasktracker/internal/metrics"
	"github.com/tasktracker/tasktracker/internal/model"
	"github.com/tasktracker/tasktracker/internal/repository"
)

// Task service errors.
var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrCategoryNotFound  = errors.New("category not found")
	ErrInvalidTaskStatus = errors.New("invalid task status")
	ErrTaskTextRequired  = errors.New("task text must not be empty")
	ErrTaskTextTooLong   = errors.New("task text exceeds maximum length")
)

const maxTaskTextLength = 255

// Pagination limits for task listing.
const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// TaskStore is the task/category persistence capability the service uses.
type TaskStore interface {
	CreateTask(ctx context.Context, task *model.Task) error
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)
	ListTasksByUserID(ctx context.Context, userID string, offset, limit int) ([]*model.Task, error)
	UpdateTask(ctx context.Context, id string, update repository.TaskUpdate) (*model.Task, error)
	DeleteTask(ctx context.Context, id string) error
	GetCategoryByID(ctx context.Context, id string) (*model.Category, error)
}

// TaskService handles task business logic. Tasks are owner-scoped: every
// operation takes the acting user's ID and refuses to touch tasks owned
// by anyone else.
type TaskService struct {
	store   TaskStore
	metrics metrics.Recorder
}

// NewTaskService creates a new TaskService.
func NewTaskService(store TaskStore, recorder metrics.Recorder) *TaskService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &TaskService{store: store, metrics: recorder}
}

// CreateTaskInput defines input for creating a task.
type CreateTaskInput struct {
	Text       string
	Status     model.TaskStatus
	DueAt      *time.Time
	CategoryID string
	UserID     string
}

// CreateTask creates a task for the user after validating the text,
// status and that the referenced category exists.
func (s *TaskService) CreateTask(ctx context.Context, input CreateTaskInput) (*model.Task, error) {
	if input.Text == "" {
		return nil, ErrTaskTextRequired
	}
	if len(input.Text) > maxTaskTextLength {
		return nil, ErrTaskTextTooLong
	}
	if !input.Status.IsValid() {
		return nil, ErrInvalidTaskStatus
	}

	if _, err := s.store.GetCategoryByID(ctx, input.CategoryID); err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("lookup category: %w", err)
	}

	now := time.Now()
	task := &model.Task{
		ID:         ulid.Make().String(),
		Text:       input.Text,
		Status:     input.Status,
		DueAt:      input.DueAt,
		UserID:     input.UserID,
		CategoryID: input.CategoryID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.metrics.IncTaskCreated()

	return task, nil
}

// GetTask returns the task if it exists and belongs to the user.
// Tasks owned by other users read as not found.
func (s *TaskService) GetTask(ctx context.Context, userID, taskID string) (*model.Task, error) {
	task, err := s.store.GetTaskByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}

	if task.UserID != userID {
		return nil, ErrTaskNotFound
	}

	return task, nil
}

// ListTasks returns the user's tasks with offset/limit pagination.
func (s *TaskService) ListTasks(ctx context.Context, userID string, offset, limit int) ([]*model.Task, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	tasks, err := s.store.ListTasksByUserID(ctx, userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	return tasks, nil
}

// UpdateTaskInput defines the optional fields of a partial task update.
type UpdateTaskInput struct {
	Text       *string
	Status     *model.TaskStatus
	DueAt      *time.Time
	CategoryID *string
}

// UpdateTask applies a partial update to the user's task.
func (s *TaskService) UpdateTask(ctx context.Context, userID, taskID string, input UpdateTaskInput) (*model.Task, error) {
	if input.Text != nil {
		if *input.Text == "" {
			return nil, ErrTaskTextRequired
		}
		if len(*input.Text) > maxTaskTextLength {
			return nil, ErrTaskTextTooLong
		}
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, ErrInvalidTaskStatus
	}
	if input.CategoryID != nil {
		if _, err := s.store.GetCategoryByID(ctx, *input.CategoryID); err != nil {
			if errors.Is(err, repository.ErrCategoryNotFound) {
				return nil, ErrCategoryNotFound
			}
			return nil, fmt.Errorf("lookup category: %w", err)
		}
	}

	// Ownership check before the write.
	if _, err := s.GetTask(ctx, userID, taskID); err != nil {
		return nil, err
	}

	task, err := s.store.UpdateTask(ctx, taskID, repository.TaskUpdate{
		Text:       input.Text,
		Status:     input.Status,
		DueAt:      input.DueAt,
		CategoryID: input.CategoryID,
	})
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("update task: %w", err)
	}

	s.metrics.IncTaskUpdated()

	return task, nil
}

// DeleteTask removes the user's task.
func (s *TaskService) DeleteTask(ctx context.Context, userID, taskID string) (*model.Task, error) {
	task, err := s.GetTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	if err := s.store.DeleteTask(ctx, taskID); err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("delete task: %w", err)
	}

	s.metrics.IncTaskDeleted()

	return task, nil
}
