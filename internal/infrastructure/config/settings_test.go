package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings_Defaults(t *testing.T) {
	cfg, err := LoadSettings(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.Source)
	assert.Equal(t, 30*time.Minute, cfg.Planning.GlobalTimeout)
	assert.Equal(t, 3, cfg.Planning.StepRetryLimit)
	assert.Equal(t, 5, cfg.Planning.RepeatedScreenLimit)
	assert.Equal(t, 500*time.Millisecond, cfg.Planning.BackoffBase)
	assert.Equal(t, 10*time.Second, cfg.Planning.BackoffMax)

	assert.Equal(t, 200, cfg.Capture.MaxCount)
	assert.Equal(t, time.Hour, cfg.Capture.MaxAge)
	assert.Equal(t, time.Minute, cfg.Capture.SweepInterval)

	assert.Equal(t, 30*time.Millisecond, cfg.Execution.MinTypeDelay)
	assert.Equal(t, 80*time.Millisecond, cfg.Execution.MaxTypeDelay)
	assert.Equal(t, 1.0, cfg.Execution.CursorSpeed)
	assert.False(t, cfg.Execution.UnsafeMode)
	assert.False(t, cfg.Execution.DryRun)
	assert.Empty(t, cfg.Execution.AllowedCommands)

	assert.Equal(t, 2048, cfg.Reasoning.MaxTokens)
	assert.Equal(t, 50, cfg.Reasoning.DecisionCallBudget)
	assert.InDelta(t, 0.2, cfg.Reasoning.Temperature, 1e-9)
}

func TestLoadSettings_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `
planning:
  global_timeout_seconds: 60
  max_retries_per_step: 1
state:
  repeated_state_limit: 2
execution:
  allowed_commands:
    - notepad
  unsafe_mode: true
reasoning:
  max_llm_calls_per_task: 7
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	cfg, err := LoadSettings(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "config.yaml"), cfg.Source)
	assert.Equal(t, time.Minute, cfg.Planning.GlobalTimeout)
	assert.Equal(t, 1, cfg.Planning.StepRetryLimit)
	assert.Equal(t, 2, cfg.Planning.RepeatedScreenLimit)
	assert.Equal(t, []string{"notepad"}, cfg.Execution.AllowedCommands)
	assert.True(t, cfg.Execution.UnsafeMode)
	assert.Equal(t, 7, cfg.Reasoning.DecisionCallBudget)

	// untouched sections keep their defaults
	assert.Equal(t, 500*time.Millisecond, cfg.Planning.BackoffBase)
	assert.Equal(t, 200, cfg.Capture.MaxCount)
}

func TestLoadSettings_ZeroIsNotAbsent(t *testing.T) {
	dir := t.TempDir()
	content := `
capture:
  monitor_index: 0
  max_screenshot_count: 0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	cfg, err := LoadSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Capture.MaxCount, "an explicit zero must not be replaced by the default")
}

func TestLoadSettings_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("planning: ["), 0o644))

	_, err := LoadSettings(dir)
	assert.Error(t, err)
}

func TestLoadSettings_APIKeysFromEnvironment(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("PERPLEXITY_API_KEY", "pplx-test")

	cfg, err := LoadSettings(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-test", cfg.Reasoning.AnthropicAPIKey)
	assert.Equal(t, "pplx-test", cfg.Reasoning.PerplexityAPIKey)
}
