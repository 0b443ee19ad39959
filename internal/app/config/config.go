// Package config holds the immutable application configuration assembled by
// the infrastructure loader and consumed by the CLI wiring.
package config

import "time"

// AppConfig is the fully resolved configuration
type AppConfig struct {
	Planning  PlanningConfig
	Capture   CaptureConfig
	Execution ExecutionConfig
	Reasoning ReasoningConfig
	Storage   StorageConfig

	// Source records where the configuration came from ("default" or the
	// loaded file path)
	Source string
}

// PlanningConfig bounds task execution
type PlanningConfig struct {
	GlobalTimeout       time.Duration
	StepRetryLimit      int
	RepeatedScreenLimit int
	BackoffBase         time.Duration
	BackoffMax          time.Duration
}

// CaptureConfig governs screen capture and retention
type CaptureConfig struct {
	Dir           string
	MonitorIndex  int
	MaxCount      int
	MaxAge        time.Duration
	SweepInterval time.Duration
}

// ExecutionConfig governs input synthesis and the safety gate
type ExecutionConfig struct {
	MinTypeDelay    time.Duration
	MaxTypeDelay    time.Duration
	CursorSpeed     float64
	AllowedCommands []string
	AllowedHotkeys  []string
	UnsafeMode      bool
	DryRun          bool
}

// ReasoningConfig governs the decision collaborator
type ReasoningConfig struct {
	Model              string
	MaxTokens          int
	Temperature        float64
	DecisionCallBudget int
	AnthropicAPIKey    string
	PerplexityAPIKey   string
}

// StorageConfig locates the task history database
type StorageConfig struct {
	DBPath string
}
