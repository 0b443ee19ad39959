package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/YoshitsuguKoike/ladas/internal/domain/model"
	"github.com/YoshitsuguKoike/ladas/internal/domain/model/task"
	"github.com/YoshitsuguKoike/ladas/internal/domain/repository"
)

// TaskRepositoryImpl implements repository.TaskRepository with SQLite
type TaskRepositoryImpl struct {
	db *sql.DB
}

// NewTaskRepository creates a new SQLite-based task repository
func NewTaskRepository(db *sql.DB) repository.TaskRepository {
	return &TaskRepositoryImpl{db: db}
}

// CreateTask records a freshly parsed task
func (r *TaskRepositoryImpl) CreateTask(ctx context.Context, t *task.Task) error {
	query := `
		INSERT INTO tasks (id, session_id, raw_instruction, parsed_goal, status, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	var endedAt *time.Time
	if t.EndedAt() != nil {
		v := t.EndedAt().Value()
		endedAt = &v
	}
	_, err := r.db.ExecContext(ctx, query,
		t.ID().String(), t.SessionID().String(), t.RawInstruction(), t.ParsedGoal(),
		t.Status().String(), t.StartedAt().Value(), endedAt,
	)
	if err != nil {
		return fmt.Errorf("create task failed: %w", err)
	}
	return nil
}

// UpdateTaskPlan records the resolved goal and replaces the planned steps
func (r *TaskRepositoryImpl) UpdateTaskPlan(ctx context.Context, t *task.Task) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction failed: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"UPDATE tasks SET parsed_goal = ?, status = ? WHERE id = ?",
		t.ParsedGoal(), t.Status().String(), t.ID().String(),
	)
	if err != nil {
		return fmt.Errorf("update task plan failed: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM steps WHERE task_id = ?", t.ID().String()); err != nil {
		return fmt.Errorf("clear steps failed: %w", err)
	}

	for i, s := range t.Steps() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO steps (id, task_id, seq, description, status, retry_count, max_retries)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, s.ID().String(), t.ID().String(), i, s.Description(), s.Status().String(), s.RetryCount(), s.MaxRetries())
		if err != nil {
			return fmt.Errorf("insert step %d failed: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction failed: %w", err)
	}
	return nil
}

// UpdateTaskStatus records a task status change
func (r *TaskRepositoryImpl) UpdateTaskStatus(ctx context.Context, id model.TaskID, status model.TaskStatus) error {
	var endedAt *time.Time
	if status.IsTerminal() {
		now := time.Now()
		endedAt = &now
	}
	_, err := r.db.ExecContext(ctx,
		"UPDATE tasks SET status = ?, ended_at = COALESCE(?, ended_at) WHERE id = ?",
		status.String(), endedAt, id.String(),
	)
	if err != nil {
		return fmt.Errorf("update task status failed: %w", err)
	}
	return nil
}

// UpdateStepStatus records a step status change with its retry count
func (r *TaskRepositoryImpl) UpdateStepStatus(ctx context.Context, taskID model.TaskID, stepID model.StepID, status model.StepStatus, retries int) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE steps SET status = ?, retry_count = ? WHERE id = ? AND task_id = ?",
		status.String(), retries, stepID.String(), taskID.String(),
	)
	if err != nil {
		return fmt.Errorf("update step status failed: %w", err)
	}
	return nil
}

// FindIncompleteTasks returns tasks left IN_PROGRESS by a crash
func (r *TaskRepositoryImpl) FindIncompleteTasks(ctx context.Context) ([]*task.Task, error) {
	query := `
		SELECT id, session_id, raw_instruction, parsed_goal, status, started_at, ended_at
		FROM tasks
		WHERE status = ?
		ORDER BY started_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, model.TaskStatusInProgress.String())
	if err != nil {
		return nil, fmt.Errorf("query incomplete tasks failed: %w", err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		t, err := r.scanTask(ctx, rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ListRecentTasks returns the most recently started tasks, newest first
func (r *TaskRepositoryImpl) ListRecentTasks(ctx context.Context, limit int) ([]*task.Task, error) {
	query := `
		SELECT id, session_id, raw_instruction, parsed_goal, status, started_at, ended_at
		FROM tasks
		ORDER BY started_at DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent tasks failed: %w", err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		t, err := r.scanTask(ctx, rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepositoryImpl) scanTask(ctx context.Context, rows *sql.Rows) (*task.Task, error) {
	var (
		id, sessionID, rawInstruction, parsedGoal, status string
		startedAt                                         time.Time
		endedAt                                           sql.NullTime
	)
	if err := rows.Scan(&id, &sessionID, &rawInstruction, &parsedGoal, &status, &startedAt, &endedAt); err != nil {
		return nil, fmt.Errorf("scan task failed: %w", err)
	}

	taskID, err := model.NewTaskIDFromString(id)
	if err != nil {
		return nil, err
	}
	sid, err := model.NewSessionIDFromString(sessionID)
	if err != nil {
		return nil, err
	}

	steps, err := r.loadSteps(ctx, taskID)
	if err != nil {
		return nil, err
	}

	var ended *time.Time
	if endedAt.Valid {
		ended = &endedAt.Time
	}
	return task.ReconstructTask(taskID, sid, rawInstruction, parsedGoal, steps,
		model.TaskStatus(status), startedAt, ended), nil
}

func (r *TaskRepositoryImpl) loadSteps(ctx context.Context, taskID model.TaskID) ([]*task.Step, error) {
	query := `
		SELECT id, description, status, retry_count, max_retries
		FROM steps
		WHERE task_id = ?
		ORDER BY seq ASC
	`
	rows, err := r.db.QueryContext(ctx, query, taskID.String())
	if err != nil {
		return nil, fmt.Errorf("query steps failed: %w", err)
	}
	defer rows.Close()

	var steps []*task.Step
	for rows.Next() {
		var (
			id, description, status string
			retryCount, maxRetries  int
		)
		if err := rows.Scan(&id, &description, &status, &retryCount, &maxRetries); err != nil {
			return nil, fmt.Errorf("scan step failed: %w", err)
		}
		stepID, err := model.NewStepIDFromString(id)
		if err != nil {
			return nil, err
		}
		steps = append(steps, task.ReconstructStep(stepID, description, model.StepStatus(status), retryCount, maxRetries))
	}
	return steps, rows.Err()
}
