// Package usecase contains the task orchestrator: the control loop that
// drives one task from raw instruction to a terminal state.
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/YoshitsuguKoike/ladas/internal/application/dto"
	"github.com/YoshitsuguKoike/ladas/internal/application/port/output"
	"github.com/YoshitsuguKoike/ladas/internal/application/service/failsafe"
	"github.com/YoshitsuguKoike/ladas/internal/application/service/statebuilder"
	"github.com/YoshitsuguKoike/ladas/internal/domain/execution"
	"github.com/YoshitsuguKoike/ladas/internal/domain/model"
	"github.com/YoshitsuguKoike/ladas/internal/domain/model/action"
	"github.com/YoshitsuguKoike/ladas/internal/domain/model/task"
	"github.com/YoshitsuguKoike/ladas/internal/domain/repository"
)

const (
	captureAttempts  = 3
	captureBackoff   = 500 * time.Millisecond
	fallbackWait     = 1 * time.Second
	recentActionsMax = 10
)

// Dispatcher validates and dispatches one action. Satisfied by *gate.Gate.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd action.Command) error
}

// ExecuteTaskUseCase drives one task to completion. External calls are
// blocking from its point of view and are never issued concurrently for the
// same task; every task gets its own execution.Context.
type ExecuteTaskUseCase struct {
	session    model.SessionID
	monitor    int
	limits     execution.Limits
	capture    output.CaptureSource
	perception output.Perception
	decision   output.Decision
	gate       Dispatcher
	tasks      repository.TaskRepository
	actions    repository.ActionLogRepository
	signal     *failsafe.Signal
	log        output.Logger
	now        func() time.Time
}

// NewExecuteTaskUseCase wires the orchestrator
func NewExecuteTaskUseCase(
	session model.SessionID,
	monitor int,
	limits execution.Limits,
	capture output.CaptureSource,
	perception output.Perception,
	decision output.Decision,
	gate Dispatcher,
	tasks repository.TaskRepository,
	actions repository.ActionLogRepository,
	signal *failsafe.Signal,
	log output.Logger,
) *ExecuteTaskUseCase {
	return &ExecuteTaskUseCase{
		session:    session,
		monitor:    monitor,
		limits:     limits,
		capture:    capture,
		perception: perception,
		decision:   decision,
		gate:       gate,
		tasks:      tasks,
		actions:    actions,
		signal:     signal,
		log:        log,
		now:        time.Now,
	}
}

// Execute runs one instruction through parse, plan and the per-step
// perception-act-validate loop, and returns the task in its terminal state.
// The returned error is non-nil only for unrecoverable failures; timeout,
// abort and steady-state completion are reported through the task status.
func (uc *ExecuteTaskUseCase) Execute(ctx context.Context, instruction string) (*task.Task, error) {
	t, err := task.NewTask(uc.session, instruction)
	if err != nil {
		return nil, err
	}

	ectx := execution.NewContext(uc.limits)
	m := ectx.Machine()

	if err := m.Transition(execution.StateParsing); err != nil {
		return t, err
	}
	goal := uc.parseGoal(ctx, ectx, instruction)

	if err := uc.tasks.CreateTask(ctx, t); err != nil {
		uc.log.Warn("persist task create: %v", err)
	}

	if err := m.Transition(execution.StatePlanning); err != nil {
		return t, uc.finish(ctx, t, m, err)
	}
	steps, err := uc.buildPlan(ctx, ectx, goal)
	if err != nil {
		return t, uc.finish(ctx, t, m, err)
	}
	if err := t.AttachPlan(goal, steps); err != nil {
		return t, uc.finish(ctx, t, m, err)
	}
	if err := uc.tasks.UpdateTaskPlan(ctx, t); err != nil {
		uc.log.Warn("persist task plan: %v", err)
	}

	if err := m.Transition(execution.StateExecuting); err != nil {
		return t, uc.finish(ctx, t, m, err)
	}
	ectx.StartClock(uc.now())

	err = uc.runLoop(ctx, t, ectx)
	return t, uc.finish(ctx, t, m, err)
}

// runLoop executes the per-step loop with the fixed checkpoint order. It
// returns nil when the machine lands in a terminal state by itself and a
// fatal error otherwise; the caller maps the error onto an emergency
// transition.
func (uc *ExecuteTaskUseCase) runLoop(ctx context.Context, t *task.Task, ectx *execution.Context) error {
	m := ectx.Machine()
	var lastAction *action.Command

	for m.InLoop() {
		// Checkpoint 1: global timeout
		if ectx.TimedOut(uc.now()) {
			uc.log.Warn("global timeout exceeded after %s", uc.now().Sub(ectx.StartedAt()))
			return execution.ErrTaskTimeout
		}

		// Checkpoint 2: failsafe
		if err := uc.signal.Check(); err != nil {
			return err
		}

		if ectx.StepIndex() >= len(t.Steps()) {
			return m.Transition(execution.StateTaskComplete)
		}
		step := t.Steps()[ectx.StepIndex()]
		uc.log.Info("executing step %d/%d: %s", ectx.StepIndex()+1, len(t.Steps()), step.Description())

		// Checkpoint 3: capture
		snap, err := uc.captureWithRetry(ctx, step.ID())
		if err != nil {
			return err
		}

		// Checkpoint 4: exact-match loop detection. Repeated identical
		// screens despite effectful actions mean the agent reached a steady
		// state; that is completion, not failure.
		inert := lastAction != nil && lastAction.Kind.IsInert()
		ectx.ObserveFingerprint(snap.Fingerprint, inert)
		if ectx.SteadyStateReached() {
			uc.log.Warn("screen unchanged %d consecutive captures, treating task as finished", ectx.RepeatedScreens())
			return m.Transition(execution.StateTaskComplete)
		}

		// Checkpoint 5: perception, degraded to empty results on failure
		screen := uc.perceive(ctx, step.ID(), snap)

		// Checkpoint 6: decision, bounded by the call budget
		cmd, escalate, fallback := uc.decideAction(ctx, t, ectx, step, screen)
		if escalate {
			if err := uc.failStep(ctx, t, ectx, step); err != nil {
				return err
			}
			continue
		}
		if fallback {
			// A substituted wait paces the loop but says nothing about the
			// step; it is neither dispatched nor validated.
			if err := uc.signal.Sleep(ctx, fallbackWait); err != nil {
				return err
			}
			lastAction = &cmd
			continue
		}

		// Checkpoint 7: safety gate and dispatch
		if err := uc.gate.Dispatch(ctx, cmd); err != nil {
			switch {
			case errors.Is(err, execution.ErrTaskAborted):
				return err
			case errors.Is(err, execution.ErrUnauthorized),
				errors.Is(err, execution.ErrUnsupportedAction),
				errors.Is(err, execution.ErrMissingTarget):
				// Authorization and validation failures are never retried.
				return err
			default:
				uc.log.Warn("dispatch failed: %v", err)
				if err := m.Transition(execution.StateValidating); err != nil {
					return err
				}
				if err := uc.retryOrFailStep(ctx, t, ectx, step); err != nil {
					return err
				}
				lastAction = &cmd
				continue
			}
		}
		if err := m.Transition(execution.StateValidating); err != nil {
			return err
		}
		lastAction = &cmd

		// Checkpoint 8: append-only action log with the pre-action fingerprint
		uc.logAction(ctx, t, step, cmd, snap.Fingerprint)

		// Checkpoint 9: post-action validation. The post capture judges only
		// this step; the loop-detection baseline stays the pre-action capture.
		// Equality between this post capture and the next iteration's pre
		// capture spans no action and must not count as a repeat.
		post, err := uc.captureWithRetry(ctx, step.ID())
		if err != nil {
			return err
		}

		if !post.Fingerprint.Equals(snap.Fingerprint) || cmd.Kind.IsInert() {
			step.MarkCompleted()
			uc.persistStep(ctx, t, step)
			if err := uc.advance(ctx, t, ectx); err != nil {
				return err
			}
			continue
		}

		uc.log.Info("screen unchanged after %s, step judged stale", cmd.Kind)
		if err := uc.retryOrFailStep(ctx, t, ectx, step); err != nil {
			return err
		}
	}
	return nil
}

// parseGoal resolves the instruction into a goal, falling back to the raw
// instruction when the parser fails. Parsing counts against the external
// call budget.
func (uc *ExecuteTaskUseCase) parseGoal(ctx context.Context, ectx *execution.Context, instruction string) string {
	if !ectx.DecisionBudgetLeft() {
		return instruction
	}
	ectx.RecordDecisionCall()
	goal, err := uc.decision.ParseInstruction(ctx, instruction)
	if err != nil || goal == "" {
		uc.log.Warn("instruction parse failed, using raw instruction: %v", err)
		return instruction
	}
	return goal
}

// buildPlan obtains the step plan, falling back to a single catch-all step
// when planning fails or the budget is exhausted.
func (uc *ExecuteTaskUseCase) buildPlan(ctx context.Context, ectx *execution.Context, goal string) ([]*task.Step, error) {
	plan := dto.Plan{}
	if ectx.DecisionBudgetLeft() {
		ectx.RecordDecisionCall()
		p, err := uc.decision.GeneratePlan(ctx, goal)
		if err != nil {
			uc.log.Warn("plan generation failed, using single-step fallback: %v", err)
		} else {
			plan = p
		}
	}
	if len(plan.Steps) == 0 {
		plan.Steps = []dto.PlannedStep{{Description: "Execute user command", MaxRetries: uc.limits.StepRetryLimit}}
	}

	steps := make([]*task.Step, 0, len(plan.Steps))
	for _, ps := range plan.Steps {
		maxRetries := ps.MaxRetries
		if maxRetries <= 0 {
			maxRetries = uc.limits.StepRetryLimit
		}
		s, err := task.NewStep(ps.Description, maxRetries)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, nil
}

// captureWithRetry acquires a capture with a small fixed-backoff retry
// budget. Exhaustion is a fatal task failure.
func (uc *ExecuteTaskUseCase) captureWithRetry(ctx context.Context, step model.StepID) (output.Snapshot, error) {
	var lastErr error
	for attempt := 0; attempt < captureAttempts; attempt++ {
		if attempt > 0 {
			if err := uc.signal.Sleep(ctx, captureBackoff); err != nil {
				return output.Snapshot{}, err
			}
		}
		snap, err := uc.capture.CaptureNow(ctx, uc.session, step)
		if err == nil {
			return snap, nil
		}
		lastErr = err
		uc.log.Warn("capture attempt %d failed: %v", attempt+1, err)
	}
	return output.Snapshot{}, execution.ErrCaptureFailed.WithDetails(map[string]interface{}{
		"attempts": captureAttempts,
		"cause":    lastErr.Error(),
	})
}

// perceive runs both perception calls, degrading each failure to an empty
// result.
func (uc *ExecuteTaskUseCase) perceive(ctx context.Context, step model.StepID, snap output.Snapshot) dto.ScreenState {
	texts, err := uc.perception.DetectText(ctx, snap.Path)
	if err != nil {
		uc.log.Warn("text detection failed: %v", err)
		texts = nil
	}
	elements, err := uc.perception.DetectElements(ctx, snap.Path)
	if err != nil {
		uc.log.Warn("element detection failed: %v", err)
		elements = nil
	}
	return statebuilder.Build(uc.session, step, uc.monitor, snap, texts, elements)
}

// decideAction requests the next action within the call budget. It returns
// escalate=true when repeated consecutive decision failures on the same step
// require the step_failed path, and fallback=true when the returned wait is a
// substitution rather than a decided action.
func (uc *ExecuteTaskUseCase) decideAction(ctx context.Context, t *task.Task, ectx *execution.Context, step *task.Step, screen dto.ScreenState) (action.Command, bool, bool) {
	if !ectx.DecisionBudgetLeft() {
		uc.log.Warn("decision call budget (%d) exhausted, substituting wait", ectx.Limits().DecisionCallBudget)
		return action.NewWait(fallbackWait, "call budget exhausted; waiting"), false, true
	}

	recent := uc.recentActions(ctx, t.ID())
	ectx.RecordDecisionCall()
	cmd, err := uc.decision.NextAction(ctx, t.ParsedGoal(), step.Description(), ectx.StepIndex(), len(t.Steps()), screen, recent)
	if err != nil {
		failures := ectx.RecordDecisionFailure()
		uc.log.Warn("decision failed (%d consecutive): %v", failures, err)
		if failures > 1 {
			return action.Command{}, true, false
		}
		return action.NewWait(fallbackWait, "decision unavailable; waiting"), false, true
	}
	ectx.ResetDecisionFailures()
	return cmd, false, false
}

func (uc *ExecuteTaskUseCase) recentActions(ctx context.Context, id model.TaskID) []dto.RecentAction {
	records, err := uc.actions.RecentActions(ctx, id, recentActionsMax)
	if err != nil {
		uc.log.Warn("load recent actions: %v", err)
		return nil
	}
	recent := make([]dto.RecentAction, 0, len(records))
	for _, r := range records {
		recent = append(recent, dto.RecentAction{
			StepID:    r.StepID.String(),
			Kind:      r.Kind.String(),
			Rationale: r.Rationale,
		})
	}
	return recent
}

// retryOrFailStep handles a stale step from the validating state: retry with
// exponential backoff while the per-step budget lasts, otherwise mark the
// step FAILED and move on. A failed step never fails the task by itself.
func (uc *ExecuteTaskUseCase) retryOrFailStep(ctx context.Context, t *task.Task, ectx *execution.Context, step *task.Step) error {
	m := ectx.Machine()
	if ectx.StepRetriesExhausted() || step.RetriesExhausted() {
		return uc.failStep(ctx, t, ectx, step)
	}

	delay := ectx.RecordStepRetry()
	step.RecordRetry()
	uc.persistStep(ctx, t, step)
	uc.log.Info("retrying step %d (attempt %d) after %s", ectx.StepIndex()+1, step.RetryCount(), delay)

	if err := m.Transition(execution.StateRetrying); err != nil {
		return err
	}
	if err := uc.signal.Sleep(ctx, delay); err != nil {
		return err
	}
	return m.Transition(execution.StateExecuting)
}

// failStep marks the current step FAILED through the step_failed state and
// advances to the next step.
func (uc *ExecuteTaskUseCase) failStep(ctx context.Context, t *task.Task, ectx *execution.Context, step *task.Step) error {
	m := ectx.Machine()
	if err := m.Transition(execution.StateStepFailed); err != nil {
		return err
	}
	step.MarkFailed()
	uc.persistStep(ctx, t, step)
	uc.log.Warn("step %d marked failed, continuing", ectx.StepIndex()+1)

	ectx.AdvanceStep()
	if ectx.StepIndex() >= len(t.Steps()) {
		return m.Transition(execution.StateTaskComplete)
	}
	return m.Transition(execution.StateExecuting)
}

// advance completes the validating state and moves to the next step, or to
// task_complete when no steps remain.
func (uc *ExecuteTaskUseCase) advance(ctx context.Context, t *task.Task, ectx *execution.Context) error {
	m := ectx.Machine()
	if err := m.Transition(execution.StateExecuting); err != nil {
		return err
	}
	ectx.AdvanceStep()
	if ectx.StepIndex() >= len(t.Steps()) {
		return m.Transition(execution.StateTaskComplete)
	}
	return nil
}

func (uc *ExecuteTaskUseCase) logAction(ctx context.Context, t *task.Task, step *task.Step, cmd action.Command, fp model.Fingerprint) {
	rec := repository.ActionRecord{
		SessionID:         uc.session,
		TaskID:            t.ID(),
		StepID:            step.ID(),
		Kind:              cmd.Kind,
		Rationale:         cmd.Rationale,
		FingerprintBefore: fp,
		LoggedAt:          uc.now(),
	}
	if err := uc.actions.LogAction(ctx, rec); err != nil {
		uc.log.Warn("persist action log: %v", err)
	}
}

func (uc *ExecuteTaskUseCase) persistStep(ctx context.Context, t *task.Task, step *task.Step) {
	if err := uc.tasks.UpdateStepStatus(ctx, t.ID(), step.ID(), step.Status(), step.RetryCount()); err != nil {
		uc.log.Warn("persist step status: %v", err)
	}
}

// finish maps a loop error onto the emergency transition, records the
// terminal status and releases the session's capture artifacts.
func (uc *ExecuteTaskUseCase) finish(ctx context.Context, t *task.Task, m *execution.Machine, loopErr error) error {
	if loopErr != nil && !m.State().IsTerminal() {
		target := execution.StateFailed
		switch {
		case errors.Is(loopErr, execution.ErrTaskAborted):
			target = execution.StateAborted
		case errors.Is(loopErr, execution.ErrTaskTimeout):
			target = execution.StateTimeout
		}
		if err := m.Transition(target); err != nil {
			uc.log.Error("emergency transition: %v", err)
		}
	}

	status := model.TaskStatus(m.TaskStatus())
	if t.Status() != status {
		if err := t.UpdateStatus(status); err != nil {
			uc.log.Warn("task status update: %v", err)
		}
	}
	if err := uc.tasks.UpdateTaskStatus(ctx, t.ID(), t.Status()); err != nil {
		uc.log.Warn("persist task status: %v", err)
	}
	if err := uc.capture.CleanSession(uc.session); err != nil {
		uc.log.Warn("session cleanup: %v", err)
	}

	switch m.State() {
	case execution.StateTaskComplete:
		uc.log.Info("task %s completed", t.ID())
		return nil
	case execution.StateTimeout, execution.StateAborted:
		uc.log.Warn("task %s ended: %s", t.ID(), m.State())
		return nil
	default:
		return loopErr
	}
}
