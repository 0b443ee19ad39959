// Package output defines the outbound collaborator ports consumed by the
// application layer. Concrete implementations live under
// internal/infrastructure; tests substitute fakes.
package output

import (
	"context"

	"github.com/YoshitsuguKoike/ladas/internal/application/dto"
	"github.com/YoshitsuguKoike/ladas/internal/domain/model"
	"github.com/YoshitsuguKoike/ladas/internal/domain/model/action"
)

// Perception recognizes text and visual elements on a captured frame.
// Failures are treated by the orchestrator as empty results, not as fatal
// errors.
type Perception interface {
	DetectText(ctx context.Context, imagePath string) ([]dto.TextRegion, error)
	DetectElements(ctx context.Context, imagePath string) ([]dto.UIElement, error)
}

// Decision turns goals and screen state into structured plans and actions
type Decision interface {
	// ParseInstruction resolves a raw instruction into a goal statement
	ParseInstruction(ctx context.Context, instruction string) (string, error)

	// GeneratePlan produces the ordered step plan for a goal
	GeneratePlan(ctx context.Context, goal string) (dto.Plan, error)

	// NextAction chooses the next action for the current step
	NextAction(ctx context.Context, goal string, stepDescription string, stepIndex, totalSteps int, screen dto.ScreenState, recent []dto.RecentAction) (action.Command, error)
}

// Actuator dispatches a validated action to the input synthesis backend.
// It may return an authorization failure (wrapped ErrUnauthorized from the
// gate) or a runtime failure, which the orchestrator treats as retryable.
type Actuator interface {
	Dispatch(ctx context.Context, cmd action.Command) error
}

// Snapshot is one captured frame plus its perceptual fingerprint
type Snapshot struct {
	Path        string
	Fingerprint model.Fingerprint
	Width       int
	Height      int
}

// CaptureSource produces screen snapshots on demand
type CaptureSource interface {
	// CaptureNow captures the display and returns the stored artifact
	CaptureNow(ctx context.Context, session model.SessionID, step model.StepID) (Snapshot, error)

	// CleanSession deletes all artifacts tagged to the session
	CleanSession(session model.SessionID) error
}

// Searcher performs autonomous web retrieval for the search_web action
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Logger is the leveled logger injected into application services
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}
