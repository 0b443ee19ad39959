// Package task defines the Task aggregate driven by the orchestrator.
// A Task is one user instruction's full execution, decomposed into Steps.
package task

import (
	"errors"
	"time"

	"github.com/YoshitsuguKoike/ladas/internal/domain/model"
)

// Task represents a single user instruction being executed
type Task struct {
	id             model.TaskID
	sessionID      model.SessionID
	rawInstruction string
	parsedGoal     string
	steps          []*Step
	status         model.TaskStatus
	startedAt      model.Timestamp
	endedAt        *model.Timestamp
}

// NewTask creates a new pending task for a raw instruction
func NewTask(sessionID model.SessionID, instruction string) (*Task, error) {
	if instruction == "" {
		return nil, errors.New("instruction cannot be empty")
	}
	return &Task{
		id:             model.NewTaskID(),
		sessionID:      sessionID,
		rawInstruction: instruction,
		status:         model.TaskStatusPending,
		startedAt:      model.NewTimestamp(),
	}, nil
}

// ReconstructTask reconstructs a task from stored data
func ReconstructTask(
	id model.TaskID,
	sessionID model.SessionID,
	rawInstruction string,
	parsedGoal string,
	steps []*Step,
	status model.TaskStatus,
	startedAt time.Time,
	endedAt *time.Time,
) *Task {
	t := &Task{
		id:             id,
		sessionID:      sessionID,
		rawInstruction: rawInstruction,
		parsedGoal:     parsedGoal,
		steps:          steps,
		status:         status,
		startedAt:      model.NewTimestampFromTime(startedAt),
	}
	if endedAt != nil {
		ts := model.NewTimestampFromTime(*endedAt)
		t.endedAt = &ts
	}
	return t
}

// ID returns the task ID
func (t *Task) ID() model.TaskID {
	return t.id
}

// SessionID returns the owning session ID
func (t *Task) SessionID() model.SessionID {
	return t.sessionID
}

// RawInstruction returns the original user instruction
func (t *Task) RawInstruction() string {
	return t.rawInstruction
}

// ParsedGoal returns the resolved goal text
func (t *Task) ParsedGoal() string {
	return t.parsedGoal
}

// Steps returns the ordered plan steps
func (t *Task) Steps() []*Step {
	return t.steps
}

// Status returns the current status
func (t *Task) Status() model.TaskStatus {
	return t.status
}

// StartedAt returns when the task was created
func (t *Task) StartedAt() model.Timestamp {
	return t.startedAt
}

// EndedAt returns when the task reached a terminal status (nil if running)
func (t *Task) EndedAt() *model.Timestamp {
	return t.endedAt
}

// AttachPlan records the resolved goal and the planned steps.
// Attaching a plan moves the task from PENDING to IN_PROGRESS.
func (t *Task) AttachPlan(goal string, steps []*Step) error {
	if len(steps) == 0 {
		return errors.New("plan must contain at least one step")
	}
	if err := t.UpdateStatus(model.TaskStatusInProgress); err != nil {
		return err
	}
	t.parsedGoal = goal
	t.steps = steps
	return nil
}

// UpdateStatus transitions the task to a new status
func (t *Task) UpdateStatus(newStatus model.TaskStatus) error {
	if !newStatus.IsValid() {
		return errors.New("invalid task status")
	}
	if !t.status.CanTransitionTo(newStatus) {
		return errors.New("invalid task status transition from " + t.status.String() + " to " + newStatus.String())
	}
	t.status = newStatus
	if newStatus.IsTerminal() {
		ts := model.NewTimestamp()
		t.endedAt = &ts
	}
	return nil
}

// Step represents one planned unit of action within a task
type Step struct {
	id          model.StepID
	description string
	status      model.StepStatus
	retryCount  int
	maxRetries  int
}

// NewStep creates a new pending step
func NewStep(description string, maxRetries int) (*Step, error) {
	if description == "" {
		return nil, errors.New("step description cannot be empty")
	}
	if maxRetries < 0 {
		return nil, errors.New("max retries cannot be negative")
	}
	return &Step{
		id:          model.NewStepID(),
		description: description,
		status:      model.StepStatusPending,
		maxRetries:  maxRetries,
	}, nil
}

// ReconstructStep reconstructs a step from stored data
func ReconstructStep(id model.StepID, description string, status model.StepStatus, retryCount, maxRetries int) *Step {
	return &Step{
		id:          id,
		description: description,
		status:      status,
		retryCount:  retryCount,
		maxRetries:  maxRetries,
	}
}

// ID returns the step ID
func (s *Step) ID() model.StepID {
	return s.id
}

// Description returns the step description
func (s *Step) Description() string {
	return s.description
}

// Status returns the step status
func (s *Step) Status() model.StepStatus {
	return s.status
}

// RetryCount returns how many retries have been consumed
func (s *Step) RetryCount() int {
	return s.retryCount
}

// MaxRetries returns the per-step retry budget
func (s *Step) MaxRetries() int {
	return s.maxRetries
}

// RecordRetry increments the retry counter
func (s *Step) RecordRetry() {
	s.retryCount++
}

// RetriesExhausted reports whether the retry budget is used up
func (s *Step) RetriesExhausted() bool {
	return s.retryCount >= s.maxRetries
}

// MarkCompleted marks the step as completed
func (s *Step) MarkCompleted() {
	s.status = model.StepStatusCompleted
}

// MarkFailed marks the step as failed.
// A failed step does not fail the owning task; execution continues with the
// next step.
func (s *Step) MarkFailed() {
	s.status = model.StepStatusFailed
}
