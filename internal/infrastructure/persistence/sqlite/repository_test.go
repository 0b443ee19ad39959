package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YoshitsuguKoike/ladas/internal/domain/model"
	"github.com/YoshitsuguKoike/ladas/internal/domain/model/action"
	"github.com/YoshitsuguKoike/ladas/internal/domain/model/task"
	"github.com/YoshitsuguKoike/ladas/internal/domain/repository"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	// a plain :memory: DSN gives every pooled connection its own empty
	// database; a file-backed database is shared by all connections
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, NewMigrator(db).Migrate())
	return db
}

func newPlannedTask(t *testing.T, instruction string) *task.Task {
	t.Helper()
	tk, err := task.NewTask(model.NewSessionID(), instruction)
	require.NoError(t, err)
	s1, err := task.NewStep("open the editor", 3)
	require.NoError(t, err)
	s2, err := task.NewStep("type the text", 3)
	require.NoError(t, err)
	require.NoError(t, tk.AttachPlan("resolved goal", []*task.Step{s1, s2}))
	return tk
}

func TestMigrator_Migrate(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	m := NewMigrator(db)
	require.NoError(t, m.Migrate())
	require.NoError(t, m.Migrate(), "migrate must be idempotent")

	version, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, "1", version)
}

func TestTaskRepository_CreateAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	tk := newPlannedTask(t, "write a note")
	require.NoError(t, repo.CreateTask(ctx, tk))
	require.NoError(t, repo.UpdateTaskPlan(ctx, tk))

	found, err := repo.FindIncompleteTasks(ctx)
	require.NoError(t, err)
	require.Len(t, found, 1)

	got := found[0]
	assert.True(t, got.ID().Equals(tk.ID()))
	assert.Equal(t, "write a note", got.RawInstruction())
	assert.Equal(t, "resolved goal", got.ParsedGoal())
	assert.Equal(t, model.TaskStatusInProgress, got.Status())
	require.Len(t, got.Steps(), 2)
	assert.Equal(t, "open the editor", got.Steps()[0].Description())
	assert.Equal(t, "type the text", got.Steps()[1].Description())
}

func TestTaskRepository_UpdateTaskPlanReplacesSteps(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	tk := newPlannedTask(t, "replan me")
	require.NoError(t, repo.CreateTask(ctx, tk))
	require.NoError(t, repo.UpdateTaskPlan(ctx, tk))
	require.NoError(t, repo.UpdateTaskPlan(ctx, tk), "re-planning must not duplicate steps")

	found, err := repo.FindIncompleteTasks(ctx)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Len(t, found[0].Steps(), 2)
}

func TestTaskRepository_TerminalStatusStampsEndedAt(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	tk := newPlannedTask(t, "finish me")
	require.NoError(t, repo.CreateTask(ctx, tk))
	require.NoError(t, repo.UpdateTaskStatus(ctx, tk.ID(), model.TaskStatusCompleted))

	var endedAt sql.NullTime
	require.NoError(t, db.QueryRow("SELECT ended_at FROM tasks WHERE id = ?", tk.ID().String()).Scan(&endedAt))
	assert.True(t, endedAt.Valid, "terminal status must stamp ended_at")

	found, err := repo.FindIncompleteTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, found, "completed tasks are not incomplete")
}

func TestTaskRepository_UpdateStepStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	tk := newPlannedTask(t, "step updates")
	require.NoError(t, repo.CreateTask(ctx, tk))
	require.NoError(t, repo.UpdateTaskPlan(ctx, tk))

	step := tk.Steps()[0]
	require.NoError(t, repo.UpdateStepStatus(ctx, tk.ID(), step.ID(), model.StepStatusFailed, 3))

	found, err := repo.FindIncompleteTasks(ctx)
	require.NoError(t, err)
	require.Len(t, found, 1)
	got := found[0].Steps()[0]
	assert.Equal(t, model.StepStatusFailed, got.Status())
	assert.Equal(t, 3, got.RetryCount())
}

func TestTaskRepository_ListRecentTasks(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		tk := task.ReconstructTask(
			model.NewTaskID(), model.NewSessionID(),
			fmt.Sprintf("task %d", i), "", nil,
			model.TaskStatusPending, base.Add(time.Duration(i)*time.Minute), nil,
		)
		require.NoError(t, repo.CreateTask(ctx, tk))
	}

	recent, err := repo.ListRecentTasks(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "task 2", recent[0].RawInstruction(), "newest first")
	assert.Equal(t, "task 1", recent[1].RawInstruction())
}

func TestActionLogRepository_AppendAndRecent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActionLogRepository(db)
	ctx := context.Background()

	session := model.NewSessionID()
	taskID := model.NewTaskID()
	base := time.Now().Add(-time.Minute)

	for i := 0; i < 5; i++ {
		rec := repository.ActionRecord{
			SessionID:         session,
			TaskID:            taskID,
			StepID:            model.NewStepID(),
			Kind:              action.KindClick,
			Rationale:         fmt.Sprintf("action %d", i),
			FingerprintBefore: model.NewFingerprint("p:abc"),
			LoggedAt:          base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.LogAction(ctx, rec))
	}

	recent, err := repo.RecentActions(ctx, taskID, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3, "limit keeps only the newest entries")
	assert.Equal(t, "action 2", recent[0].Rationale, "results are chronological")
	assert.Equal(t, "action 3", recent[1].Rationale)
	assert.Equal(t, "action 4", recent[2].Rationale)
	assert.Equal(t, action.KindClick, recent[0].Kind)
	assert.Equal(t, "p:abc", recent[0].FingerprintBefore.String())
}

func TestActionLogRepository_ZeroLoggedAtDefaultsToNow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActionLogRepository(db)
	ctx := context.Background()

	taskID := model.NewTaskID()
	rec := repository.ActionRecord{
		SessionID:         model.NewSessionID(),
		TaskID:            taskID,
		StepID:            model.NewStepID(),
		Kind:              action.KindWait,
		FingerprintBefore: model.NewFingerprint("p:abc"),
	}
	require.NoError(t, repo.LogAction(ctx, rec))

	recent, err := repo.RecentActions(ctx, taskID, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.WithinDuration(t, time.Now(), recent[0].LoggedAt, time.Minute)
}

func TestActionLogRepository_ScopedByTask(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActionLogRepository(db)
	ctx := context.Background()

	mine := model.NewTaskID()
	other := model.NewTaskID()
	for _, id := range []model.TaskID{mine, other} {
		rec := repository.ActionRecord{
			SessionID:         model.NewSessionID(),
			TaskID:            id,
			StepID:            model.NewStepID(),
			Kind:              action.KindClick,
			FingerprintBefore: model.NewFingerprint("p:abc"),
			LoggedAt:          time.Now(),
		}
		require.NoError(t, repo.LogAction(ctx, rec))
	}

	recent, err := repo.RecentActions(ctx, mine, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}
