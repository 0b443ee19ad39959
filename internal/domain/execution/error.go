package execution

import "fmt"

// ExecutionError represents a coded domain error raised by the execution
// engine. Errors compare by code so callers can use errors.Is against the
// exported values below.
type ExecutionError struct {
	Code    string
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (e ExecutionError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Is matches any ExecutionError carrying the same code
func (e ExecutionError) Is(target error) bool {
	other, ok := target.(ExecutionError)
	return ok && other.Code == e.Code
}

// WithDetails returns a copy of the error with details attached
func (e ExecutionError) WithDetails(details map[string]interface{}) ExecutionError {
	e.Details = details
	return e
}

// Common execution errors
var (
	// ErrInvalidTransition indicates a state transition outside the table
	ErrInvalidTransition = ExecutionError{
		Code:    "EXEC_INVALID_TRANSITION",
		Message: "Invalid state transition",
	}

	// ErrUnauthorized indicates the safety gate blocked a privileged action
	ErrUnauthorized = ExecutionError{
		Code:    "EXEC_UNAUTHORIZED",
		Message: "Action blocked by safety policy",
	}

	// ErrUnsupportedAction indicates an action kind outside the closed set
	ErrUnsupportedAction = ExecutionError{
		Code:    "EXEC_UNSUPPORTED_ACTION",
		Message: "Unsupported action kind",
	}

	// ErrMissingTarget indicates a coordinate-requiring action with neither
	// explicit coordinates nor a bounding region
	ErrMissingTarget = ExecutionError{
		Code:    "EXEC_MISSING_TARGET",
		Message: "Action requires coordinates or a target region",
	}

	// ErrCaptureFailed indicates capture retries were exhausted
	ErrCaptureFailed = ExecutionError{
		Code:    "EXEC_CAPTURE_FAILED",
		Message: "Screen capture failed after bounded retries",
	}

	// ErrTaskTimeout indicates the global task deadline was exceeded
	ErrTaskTimeout = ExecutionError{
		Code:    "EXEC_TASK_TIMEOUT",
		Message: "Global task timeout exceeded",
	}

	// ErrTaskAborted indicates the abort signal was observed
	ErrTaskAborted = ExecutionError{
		Code:    "EXEC_TASK_ABORTED",
		Message: "Task aborted by failsafe",
	}

	// ErrBudgetExhausted indicates the external-call budget is used up
	ErrBudgetExhausted = ExecutionError{
		Code:    "EXEC_BUDGET_EXHAUSTED",
		Message: "External decision call budget exhausted",
	}
)
