package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tasktracker/tasktracker/internal/model"
)

// ErrTaskNotFound indicates the task does not exist.
var ErrTaskNotFound = errors.New("task not found")

// CreateTask inserts a new task into the database.
func (r *Repository) CreateTask(ctx context.Context, task *model.Task) error {
	query := `
		INSERT INTO tasks (id, text, status, due_at, user_id, category_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		task.ID,
		task.Text,
		task.Status,
		task.DueAt,
		task.UserID,
		task.CategoryID,
		task.CreatedAt,
		task.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// GetTaskByID retrieves a task by its ID.
func (r *Repository) GetTaskByID(ctx context.Context, id string) (*model.Task, error) {
	query := `
		SELECT id, text, status, due_at, user_id, category_id, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`

	return r.scanTask(r.pool.QueryRow(ctx, query, id))
}

// ListTasksByUserID retrieves a user's tasks with offset/limit pagination.
func (r *Repository) ListTasksByUserID(ctx context.Context, userID string, offset, limit int) ([]*model.Task, error) {
	query := `
		SELECT id, text, status, due_at, user_id, category_id, created_at, updated_at
		FROM tasks
		WHERE user_id = $1
		ORDER BY created_at, id
		OFFSET $2 LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		var task model.Task
		err := rows.Scan(
			&task.ID,
			&task.Text,
			&task.Status,
			&task.DueAt,
			&task.UserID,
			&task.CategoryID,
			&task.CreatedAt,
			&task.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, &task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// TaskUpdate holds the optional fields of a partial task update.
// Nil fields are left unchanged.
type TaskUpdate struct {
	Text       *string
	Status     *model.TaskStatus
	DueAt      *time.Time
	CategoryID *string
}

// UpdateTask applies non-nil fields to the stored task and bumps updated_at.
func (r *Repository) UpdateTask(ctx context.Context, id string, update TaskUpdate) (*model.Task, error) {
	query := `
		UPDATE tasks
		SET text = COALESCE($2, text),
		    status = COALESCE($3, status),
		    due_at = COALESCE($4, due_at),
		    category_id = COALESCE($5, category_id),
		    updated_at = $6
		WHERE id = $1
		RETURNING id, text, status, due_at, user_id, category_id, created_at, updated_at
	`

	return r.scanTask(r.pool.QueryRow(ctx, query,
		id,
		update.Text,
		update.Status,
		update.DueAt,
		update.CategoryID,
		time.Now(),
	))
}

// DeleteTask removes a task by ID.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}

	return nil
}

// scanTask scans a single task row.
func (r *Repository) scanTask(row pgx.Row) (*model.Task, error) {
	var task model.Task
	err := row.Scan(
		&task.ID,
		&task.Text,
		&task.Status,
		&task.DueAt,
		&task.UserID,
		&task.CategoryID,
		&task.CreatedAt,
		&task.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	return &task, nil
}
