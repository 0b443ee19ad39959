package model

import (
	"crypto/rand"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// TaskID represents a unique identifier for a task
type TaskID struct {
	value string
}

// NewTaskID creates a new TaskID
func NewTaskID() TaskID {
	return TaskID{value: uuid.New().String()}
}

// NewTaskIDFromString creates a TaskID from an existing string
func NewTaskIDFromString(id string) (TaskID, error) {
	if id == "" {
		return TaskID{}, errors.New("task ID cannot be empty")
	}
	return TaskID{value: id}, nil
}

// String returns the string representation
func (t TaskID) String() string {
	return t.value
}

// Equals checks if two TaskIDs are equal
func (t TaskID) Equals(other TaskID) bool {
	return t.value == other.value
}

// SessionID identifies one process-level automation session.
// Capture artifacts and tasks are tagged with the session so that everything
// belonging to it can be cleaned up together.
type SessionID struct {
	value string
}

// NewSessionID creates a new short session identifier
func NewSessionID() SessionID {
	return SessionID{value: uuid.New().String()[:8]}
}

// NewSessionIDFromString creates a SessionID from an existing string
func NewSessionIDFromString(id string) (SessionID, error) {
	if id == "" {
		return SessionID{}, errors.New("session ID cannot be empty")
	}
	return SessionID{value: id}, nil
}

// String returns the string representation
func (s SessionID) String() string {
	return s.value
}

// Equals checks if two SessionIDs are equal
func (s SessionID) Equals(other SessionID) bool {
	return s.value == other.value
}

// StepID represents a unique, time-ordered identifier for a plan step
type StepID struct {
	value string
}

// NewStepID creates a new lexicographically sortable StepID
func NewStepID() StepID {
	return StepID{value: ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()}
}

// NewStepIDFromString creates a StepID from an existing string
func NewStepIDFromString(id string) (StepID, error) {
	if id == "" {
		return StepID{}, errors.New("step ID cannot be empty")
	}
	return StepID{value: id}, nil
}

// String returns the string representation
func (s StepID) String() string {
	return s.value
}

// Equals checks if two StepIDs are equal
func (s StepID) Equals(other StepID) bool {
	return s.value == other.value
}

// TaskStatus represents the lifecycle status of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusFailed     TaskStatus = "FAILED"
	TaskStatusAborted    TaskStatus = "ABORTED"
	TaskStatusTimeout    TaskStatus = "TIMEOUT"
)

// String returns the string representation
func (s TaskStatus) String() string {
	return string(s)
}

// IsValid validates the task status
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusAborted, TaskStatusTimeout:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status ends the task lifecycle
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusAborted, TaskStatusTimeout:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if a task status transition is valid
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	validTransitions := map[TaskStatus][]TaskStatus{
		TaskStatusPending:    {TaskStatusInProgress, TaskStatusFailed, TaskStatusAborted},
		TaskStatusInProgress: {TaskStatusCompleted, TaskStatusFailed, TaskStatusAborted, TaskStatusTimeout},
		TaskStatusCompleted:  {},
		TaskStatusFailed:     {},
		TaskStatusAborted:    {},
		TaskStatusTimeout:    {},
	}

	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}

	for _, allowedStatus := range allowed {
		if allowedStatus == next {
			return true
		}
	}
	return false
}

// StepStatus represents the status of a single plan step
type StepStatus string

const (
	StepStatusPending   StepStatus = "PENDING"
	StepStatusCompleted StepStatus = "COMPLETED"
	StepStatusFailed    StepStatus = "FAILED"
)

// String returns the string representation
func (s StepStatus) String() string {
	return string(s)
}

// IsValid validates the step status
func (s StepStatus) IsValid() bool {
	switch s {
	case StepStatusPending, StepStatusCompleted, StepStatusFailed:
		return true
	default:
		return false
	}
}

// Fingerprint is a fixed-length perceptual hash of a captured frame.
// Fingerprints are compared for exact equality only; the hash is computed so
// that near-identical frames collide and visibly changed frames do not.
type Fingerprint struct {
	value string
}

// NewFingerprint creates a Fingerprint from a hash string
func NewFingerprint(hash string) Fingerprint {
	return Fingerprint{value: hash}
}

// IsZero reports whether the fingerprint is unset (hashing failed)
func (f Fingerprint) IsZero() bool {
	return f.value == ""
}

// Equals checks exact fingerprint equality; zero fingerprints never match
func (f Fingerprint) Equals(other Fingerprint) bool {
	return !f.IsZero() && !other.IsZero() && f.value == other.value
}

// String returns the string representation
func (f Fingerprint) String() string {
	return f.value
}

// Timestamp represents a point in time
type Timestamp struct {
	value time.Time
}

// NewTimestamp creates a new Timestamp with current time
func NewTimestamp() Timestamp {
	return Timestamp{value: time.Now()}
}

// NewTimestampFromTime creates a Timestamp from a time.Time value
func NewTimestampFromTime(t time.Time) Timestamp {
	return Timestamp{value: t}
}

// Value returns the time.Time value
func (t Timestamp) Value() time.Time {
	return t.value
}

// Before checks if this timestamp is before another
func (t Timestamp) Before(other Timestamp) bool {
	return t.value.Before(other.value)
}

// After checks if this timestamp is after another
func (t Timestamp) After(other Timestamp) bool {
	return t.value.After(other.value)
}

// String returns the string representation
func (t Timestamp) String() string {
	return t.value.Format(time.RFC3339)
}
