package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/YoshitsuguKoike/ladas/internal/domain/model"
	"github.com/YoshitsuguKoike/ladas/internal/domain/model/action"
	"github.com/YoshitsuguKoike/ladas/internal/domain/repository"
)

// ActionLogRepositoryImpl implements repository.ActionLogRepository with SQLite
type ActionLogRepositoryImpl struct {
	db *sql.DB
}

// NewActionLogRepository creates a new SQLite-based action log repository
func NewActionLogRepository(db *sql.DB) repository.ActionLogRepository {
	return &ActionLogRepositoryImpl{db: db}
}

// LogAction appends one executed action with its pre-action fingerprint
func (r *ActionLogRepositoryImpl) LogAction(ctx context.Context, rec repository.ActionRecord) error {
	query := `
		INSERT INTO action_logs (session_id, task_id, step_id, kind, rationale, fingerprint_before, logged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	loggedAt := rec.LoggedAt
	if loggedAt.IsZero() {
		loggedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, query,
		rec.SessionID.String(), rec.TaskID.String(), rec.StepID.String(),
		rec.Kind.String(), rec.Rationale, rec.FingerprintBefore.String(), loggedAt,
	)
	if err != nil {
		return fmt.Errorf("log action failed: %w", err)
	}
	return nil
}

// RecentActions returns up to limit entries for a task in chronological order
func (r *ActionLogRepositoryImpl) RecentActions(ctx context.Context, taskID model.TaskID, limit int) ([]repository.ActionRecord, error) {
	query := `
		SELECT session_id, task_id, step_id, kind, rationale, fingerprint_before, logged_at
		FROM (
			SELECT session_id, task_id, step_id, kind, rationale, fingerprint_before, logged_at
			FROM action_logs
			WHERE task_id = ?
			ORDER BY logged_at DESC, id DESC
			LIMIT ?
		)
		ORDER BY logged_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, taskID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("query recent actions failed: %w", err)
	}
	defer rows.Close()

	var records []repository.ActionRecord
	for rows.Next() {
		rec, err := scanActionRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanActionRecord(rows *sql.Rows) (repository.ActionRecord, error) {
	var (
		sessionID, taskID, stepID, kind, rationale, fingerprint string
		loggedAt                                                time.Time
	)
	if err := rows.Scan(&sessionID, &taskID, &stepID, &kind, &rationale, &fingerprint, &loggedAt); err != nil {
		return repository.ActionRecord{}, fmt.Errorf("scan action record failed: %w", err)
	}

	sid, err := model.NewSessionIDFromString(sessionID)
	if err != nil {
		return repository.ActionRecord{}, err
	}
	tid, err := model.NewTaskIDFromString(taskID)
	if err != nil {
		return repository.ActionRecord{}, err
	}
	stid, err := model.NewStepIDFromString(stepID)
	if err != nil {
		return repository.ActionRecord{}, err
	}

	return repository.ActionRecord{
		SessionID:         sid,
		TaskID:            tid,
		StepID:            stid,
		Kind:              action.Kind(kind),
		Rationale:         rationale,
		FingerprintBefore: model.NewFingerprint(fingerprint),
		LoggedAt:          loggedAt,
	}, nil
}
