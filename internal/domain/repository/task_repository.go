// Package repository defines persistence interfaces for task history.
// Implementations live under internal/infrastructure/persistence.
package repository

import (
	"context"
	"time"

	"github.com/YoshitsuguKoike/ladas/internal/domain/model"
	"github.com/YoshitsuguKoike/ladas/internal/domain/model/action"
	"github.com/YoshitsuguKoike/ladas/internal/domain/model/task"
)

// TaskRepository persists task and step lifecycle records.
// The orchestrator calls it on task creation and on every status change;
// persistence failures are logged by the caller, never propagated as task
// failures.
type TaskRepository interface {
	// CreateTask records a freshly parsed task
	CreateTask(ctx context.Context, t *task.Task) error

	// UpdateTaskPlan records the resolved goal and the planned steps
	UpdateTaskPlan(ctx context.Context, t *task.Task) error

	// UpdateTaskStatus records a task status change
	UpdateTaskStatus(ctx context.Context, id model.TaskID, status model.TaskStatus) error

	// UpdateStepStatus records a step status change with its retry count
	UpdateStepStatus(ctx context.Context, taskID model.TaskID, stepID model.StepID, status model.StepStatus, retries int) error

	// FindIncompleteTasks returns tasks left IN_PROGRESS by a crash
	FindIncompleteTasks(ctx context.Context) ([]*task.Task, error)

	// ListRecentTasks returns the most recently started tasks, newest first
	ListRecentTasks(ctx context.Context, limit int) ([]*task.Task, error)
}

// ActionRecord is one appended action log entry
type ActionRecord struct {
	SessionID         model.SessionID
	TaskID            model.TaskID
	StepID            model.StepID
	Kind              action.Kind
	Rationale         string
	FingerprintBefore model.Fingerprint
	LoggedAt          time.Time
}

// ActionLogRepository is the append-only action history. Entries are never
// mutated after being written.
type ActionLogRepository interface {
	// LogAction appends one executed action with its pre-action fingerprint
	LogAction(ctx context.Context, rec ActionRecord) error

	// RecentActions returns up to limit entries for a task in
	// chronological order
	RecentActions(ctx context.Context, taskID model.TaskID, limit int) ([]ActionRecord, error)
}
