package execution

import (
	"time"

	"github.com/YoshitsuguKoike/ladas/internal/domain/model"
)

// Limits bounds one task's execution. Zero values are replaced by defaults.
type Limits struct {
	GlobalTimeout      time.Duration
	StepRetryLimit     int
	RepeatedScreen     int
	DecisionCallBudget int
	BackoffBase        time.Duration
	BackoffMax         time.Duration
}

// DefaultLimits mirrors the shipped configuration defaults
func DefaultLimits() Limits {
	return Limits{
		GlobalTimeout:      30 * time.Minute,
		StepRetryLimit:     3,
		RepeatedScreen:     5,
		DecisionCallBudget: 50,
		BackoffBase:        500 * time.Millisecond,
		BackoffMax:         10 * time.Second,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.GlobalTimeout <= 0 {
		l.GlobalTimeout = d.GlobalTimeout
	}
	if l.StepRetryLimit <= 0 {
		l.StepRetryLimit = d.StepRetryLimit
	}
	if l.RepeatedScreen <= 0 {
		l.RepeatedScreen = d.RepeatedScreen
	}
	if l.DecisionCallBudget <= 0 {
		l.DecisionCallBudget = d.DecisionCallBudget
	}
	if l.BackoffBase <= 0 {
		l.BackoffBase = d.BackoffBase
	}
	if l.BackoffMax <= 0 {
		l.BackoffMax = d.BackoffMax
	}
	return l
}

// Context is the live execution context for one in-flight task. Exactly one
// Context exists per concurrently-running task; it is exclusively owned and
// mutated by the orchestrator driving that task.
type Context struct {
	machine *Machine
	limits  Limits

	stepIndex        int
	stepRetries      int
	repeatedScreens  int
	decisionCalls    int
	decisionFailures int
	startedAt        time.Time
	lastFingerprint  model.Fingerprint
}

// NewContext creates a fresh context with its machine in the idle state
func NewContext(limits Limits) *Context {
	return &Context{
		machine:   NewMachine(),
		limits:    limits.withDefaults(),
		startedAt: time.Now(),
	}
}

// Machine returns the owned state machine
func (c *Context) Machine() *Machine {
	return c.machine
}

// Limits returns the configured bounds
func (c *Context) Limits() Limits {
	return c.limits
}

// StepIndex returns the current step index
func (c *Context) StepIndex() int {
	return c.stepIndex
}

// AdvanceStep moves to the next step and resets per-step counters
func (c *Context) AdvanceStep() {
	c.stepIndex++
	c.stepRetries = 0
	c.decisionFailures = 0
}

// StepRetries returns the retry count for the current step
func (c *Context) StepRetries() int {
	return c.stepRetries
}

// RecordStepRetry increments the per-step retry counter and returns the
// backoff delay to sleep before the next attempt.
func (c *Context) RecordStepRetry() time.Duration {
	d := c.BackoffDelay(c.stepRetries)
	c.stepRetries++
	return d
}

// StepRetriesExhausted reports whether the per-step retry limit was reached
func (c *Context) StepRetriesExhausted() bool {
	return c.stepRetries >= c.limits.StepRetryLimit
}

// BackoffDelay computes min(base * 2^n, max). The delay is non-decreasing in
// n and never exceeds the configured maximum.
func (c *Context) BackoffDelay(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	d := c.limits.BackoffBase
	for i := 0; i < n; i++ {
		d *= 2
		if d >= c.limits.BackoffMax {
			return c.limits.BackoffMax
		}
	}
	if d > c.limits.BackoffMax {
		return c.limits.BackoffMax
	}
	return d
}

// StartClock stamps the task start time used by the global timeout check
func (c *Context) StartClock(now time.Time) {
	c.startedAt = now
}

// StartedAt returns the task start time
func (c *Context) StartedAt() time.Time {
	return c.startedAt
}

// TimedOut reports whether the global deadline has been exceeded
func (c *Context) TimedOut(now time.Time) bool {
	return now.Sub(c.startedAt) > c.limits.GlobalTimeout
}

// ObserveFingerprint feeds a freshly captured fingerprint into exact-match
// loop detection. lastActionInert resets the counter: an unchanged screen
// after an action that is expected to be visually inert is not evidence of
// being stuck. It returns the updated consecutive-repeat count.
// The counter tracks the current run length of identical fingerprints: a
// fresh fingerprint starts a run of 1, every consecutive exact match after
// an effectful action extends it, and an inert action or a failed hash
// resets it to zero. Only pre-action captures are observed; the baseline is
// never advanced to a post-action capture, so two captures that merely
// straddle the gap between steps cannot extend a run.
func (c *Context) ObserveFingerprint(fp model.Fingerprint, lastActionInert bool) int {
	switch {
	case lastActionInert || fp.IsZero():
		c.repeatedScreens = 0
	case fp.Equals(c.lastFingerprint):
		c.repeatedScreens++
	default:
		c.repeatedScreens = 1
	}
	c.lastFingerprint = fp
	return c.repeatedScreens
}

// LastFingerprint returns the most recently observed fingerprint
func (c *Context) LastFingerprint() model.Fingerprint {
	return c.lastFingerprint
}

// RepeatedScreens returns the consecutive identical-screen count
func (c *Context) RepeatedScreens() int {
	return c.repeatedScreens
}

// SteadyStateReached reports whether the repeated-screen limit was hit
func (c *Context) SteadyStateReached() bool {
	return c.repeatedScreens >= c.limits.RepeatedScreen
}

// DecisionBudgetLeft reports whether another external decision call may be
// issued for this task.
func (c *Context) DecisionBudgetLeft() bool {
	return c.decisionCalls < c.limits.DecisionCallBudget
}

// RecordDecisionCall counts one external decision invocation
func (c *Context) RecordDecisionCall() {
	c.decisionCalls++
}

// DecisionCalls returns the external-call counter
func (c *Context) DecisionCalls() int {
	return c.decisionCalls
}

// RecordDecisionFailure counts a consecutive decision failure on the current
// step and returns the updated count.
func (c *Context) RecordDecisionFailure() int {
	c.decisionFailures++
	return c.decisionFailures
}

// ResetDecisionFailures clears the consecutive decision failure counter
func (c *Context) ResetDecisionFailures() {
	c.decisionFailures = 0
}

// DecisionFailures returns the consecutive decision failure count
func (c *Context) DecisionFailures() int {
	return c.decisionFailures
}
