// Package config loads config.yaml into the resolved application
// configuration. Priority: config.yaml > defaults. API keys come from the
// environment, never from the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	appconfig "github.com/YoshitsuguKoike/ladas/internal/app/config"
)

// RawSettings represents the structure of the config.yaml file.
// Pointer fields distinguish "absent" from "zero" so defaults only fill in
// what the file omits.
type RawSettings struct {
	Planning struct {
		GlobalTimeoutSeconds *int `yaml:"global_timeout_seconds"`
		MaxRetriesPerStep    *int `yaml:"max_retries_per_step"`
		BackoffBaseMS        *int `yaml:"backoff_base_ms"`
		BackoffMaxMS         *int `yaml:"backoff_max_ms"`
	} `yaml:"planning"`

	State struct {
		RepeatedStateLimit *int `yaml:"repeated_state_limit"`
	} `yaml:"state"`

	Capture struct {
		Dir                  *string `yaml:"dir"`
		MonitorIndex         *int    `yaml:"monitor_index"`
		MaxScreenshotCount   *int    `yaml:"max_screenshot_count"`
		MaxRetentionSeconds  *int    `yaml:"max_retention_seconds"`
		SweepIntervalSeconds *int    `yaml:"sweep_interval_seconds"`
	} `yaml:"capture"`

	Execution struct {
		MinTypeDelayMS        *int     `yaml:"min_type_delay_ms"`
		MaxTypeDelayMS        *int     `yaml:"max_type_delay_ms"`
		CursorSpeedMultiplier *float64 `yaml:"cursor_speed_multiplier"`
		AllowedCommands       []string `yaml:"allowed_commands"`
		AllowedHotkeys        []string `yaml:"allowed_hotkeys"`
		UnsafeMode            *bool    `yaml:"unsafe_mode"`
		DryRun                *bool    `yaml:"dry_run"`
	} `yaml:"execution"`

	Reasoning struct {
		Model           *string  `yaml:"model"`
		MaxTokens       *int     `yaml:"max_tokens"`
		Temperature     *float64 `yaml:"temperature"`
		MaxCallsPerTask *int     `yaml:"max_llm_calls_per_task"`
	} `yaml:"reasoning"`

	Storage struct {
		DBPath *string `yaml:"db_path"`
	} `yaml:"storage"`
}

// LoadSettings loads configuration from config.yaml under baseDir.
// A missing file yields pure defaults; a malformed file is an error.
func LoadSettings(baseDir string) (*appconfig.AppConfig, error) {
	settings := &RawSettings{}
	source := "default"

	yamlPath := filepath.Join(baseDir, "config.yaml")
	if data, err := os.ReadFile(yamlPath); err == nil {
		if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", yamlPath, err)
		}
		source = yamlPath
	}

	applyDefaults(settings)
	return buildAppConfig(settings, source), nil
}

func applyDefaults(s *RawSettings) {
	setInt(&s.Planning.GlobalTimeoutSeconds, 1800)
	setInt(&s.Planning.MaxRetriesPerStep, 3)
	setInt(&s.Planning.BackoffBaseMS, 500)
	setInt(&s.Planning.BackoffMaxMS, 10000)

	setInt(&s.State.RepeatedStateLimit, 5)

	setString(&s.Capture.Dir, filepath.Join(os.TempDir(), "ladas_captures"))
	setInt(&s.Capture.MonitorIndex, 0)
	setInt(&s.Capture.MaxScreenshotCount, 200)
	setInt(&s.Capture.MaxRetentionSeconds, 3600)
	setInt(&s.Capture.SweepIntervalSeconds, 60)

	setInt(&s.Execution.MinTypeDelayMS, 30)
	setInt(&s.Execution.MaxTypeDelayMS, 80)
	setFloat(&s.Execution.CursorSpeedMultiplier, 1.0)
	setBool(&s.Execution.UnsafeMode, false)
	setBool(&s.Execution.DryRun, false)

	setString(&s.Reasoning.Model, "claude-sonnet-4-20250514")
	setInt(&s.Reasoning.MaxTokens, 2048)
	setFloat(&s.Reasoning.Temperature, 0.2)
	setInt(&s.Reasoning.MaxCallsPerTask, 50)

	setString(&s.Storage.DBPath, filepath.Join(".ladas", "history.db"))
}

func buildAppConfig(s *RawSettings, source string) *appconfig.AppConfig {
	return &appconfig.AppConfig{
		Planning: appconfig.PlanningConfig{
			GlobalTimeout:       seconds(*s.Planning.GlobalTimeoutSeconds),
			StepRetryLimit:      *s.Planning.MaxRetriesPerStep,
			RepeatedScreenLimit: *s.State.RepeatedStateLimit,
			BackoffBase:         millis(*s.Planning.BackoffBaseMS),
			BackoffMax:          millis(*s.Planning.BackoffMaxMS),
		},
		Capture: appconfig.CaptureConfig{
			Dir:           *s.Capture.Dir,
			MonitorIndex:  *s.Capture.MonitorIndex,
			MaxCount:      *s.Capture.MaxScreenshotCount,
			MaxAge:        seconds(*s.Capture.MaxRetentionSeconds),
			SweepInterval: seconds(*s.Capture.SweepIntervalSeconds),
		},
		Execution: appconfig.ExecutionConfig{
			MinTypeDelay:    millis(*s.Execution.MinTypeDelayMS),
			MaxTypeDelay:    millis(*s.Execution.MaxTypeDelayMS),
			CursorSpeed:     *s.Execution.CursorSpeedMultiplier,
			AllowedCommands: s.Execution.AllowedCommands,
			AllowedHotkeys:  s.Execution.AllowedHotkeys,
			UnsafeMode:      *s.Execution.UnsafeMode,
			DryRun:          *s.Execution.DryRun,
		},
		Reasoning: appconfig.ReasoningConfig{
			Model:              *s.Reasoning.Model,
			MaxTokens:          *s.Reasoning.MaxTokens,
			Temperature:        *s.Reasoning.Temperature,
			DecisionCallBudget: *s.Reasoning.MaxCallsPerTask,
			AnthropicAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
			PerplexityAPIKey:   os.Getenv("PERPLEXITY_API_KEY"),
		},
		Storage: appconfig.StorageConfig{
			DBPath: *s.Storage.DBPath,
		},
		Source: source,
	}
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
func millis(n int) time.Duration  { return time.Duration(n) * time.Millisecond }

func setInt(p **int, def int) {
	if *p == nil {
		v := def
		*p = &v
	}
}

func setString(p **string, def string) {
	if *p == nil {
		v := def
		*p = &v
	}
}

func setFloat(p **float64, def float64) {
	if *p == nil {
		v := def
		*p = &v
	}
}

func setBool(p **bool, def bool) {
	if *p == nil {
		v := def
		*p = &v
	}
}
