package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/YoshitsuguKoike/ladas/internal/application/dto"
	"github.com/YoshitsuguKoike/ladas/internal/application/port/output"
	"github.com/YoshitsuguKoike/ladas/internal/domain/model/action"
)

const parseSystemPrompt = `You translate raw desktop automation instructions into a single
unambiguous goal statement. Respond with JSON only:
{"parsed_goal": "<one sentence describing exactly what to accomplish>"}`

const planSystemPrompt = `You decompose a desktop automation goal into a short ordered list of
concrete steps. Each step must be independently verifiable on screen.
Respond with JSON only:
{"parsed_goal": "...", "steps": [{"description": "...", "max_retries": 3}]}`

const actionSystemPrompt = `You operate a desktop computer by choosing exactly one next action.
You are given the goal, the current step, a structured description of the
screen, and the most recent actions already taken.

Valid action_type values: click, double_click, right_click, move, drag,
scroll, hover, type_text, press_key, hotkey, wait, run_command,
screenshot, search_web.

Respond with JSON only:
{
  "action_type": "...",
  "coordinates": {"x": 0, "y": 0},
  "parameters": {},
  "pre_action_wait_ms": 0,
  "post_action_wait_ms": 0,
  "reasoning": "..."
}
Omit coordinates for actions that do not target a screen position.`

// Decision implements the decision port over the Messages API
type Decision struct {
	client *Client
}

var _ output.Decision = (*Decision)(nil)

// NewDecision creates a decision adapter from a shared client
func NewDecision(client *Client) *Decision {
	return &Decision{client: client}
}

// ParseInstruction resolves a raw instruction into a goal statement
func (d *Decision) ParseInstruction(ctx context.Context, instruction string) (string, error) {
	text, err := d.client.complete(ctx, parseSystemPrompt, "Instruction: "+instruction)
	if err != nil {
		return "", err
	}
	payload, err := extractJSON(text)
	if err != nil {
		return "", err
	}
	var parsed struct {
		ParsedGoal string `json:"parsed_goal"`
	}
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return "", fmt.Errorf("decode parsed goal: %w", err)
	}
	goal := strings.TrimSpace(parsed.ParsedGoal)
	if goal == "" {
		return "", fmt.Errorf("model returned empty goal")
	}
	return goal, nil
}

// GeneratePlan produces the ordered step plan for a goal
func (d *Decision) GeneratePlan(ctx context.Context, goal string) (dto.Plan, error) {
	text, err := d.client.complete(ctx, planSystemPrompt, "Goal: "+goal)
	if err != nil {
		return dto.Plan{}, err
	}
	payload, err := extractJSON(text)
	if err != nil {
		return dto.Plan{}, err
	}
	var plan dto.Plan
	if err := json.Unmarshal([]byte(payload), &plan); err != nil {
		return dto.Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	if len(plan.Steps) == 0 {
		return dto.Plan{}, fmt.Errorf("model returned empty plan")
	}
	if plan.Goal == "" {
		plan.Goal = goal
	}
	return plan, nil
}

// NextAction chooses the next action for the current step
func (d *Decision) NextAction(
	ctx context.Context,
	goal string,
	stepDescription string,
	stepIndex, totalSteps int,
	screen dto.ScreenState,
	recent []dto.RecentAction,
) (action.Command, error) {
	prompt, err := buildActionPrompt(goal, stepDescription, stepIndex, totalSteps, screen, recent)
	if err != nil {
		return action.Command{}, err
	}
	text, err := d.client.complete(ctx, actionSystemPrompt, prompt)
	if err != nil {
		return action.Command{}, err
	}
	payload, err := extractJSON(text)
	if err != nil {
		return action.Command{}, err
	}

	var cmd action.Command
	if err := json.Unmarshal([]byte(payload), &cmd); err != nil {
		return action.Command{}, fmt.Errorf("decode action: %w", err)
	}
	kind, err := action.ParseKind(cmd.Kind.String())
	if err != nil {
		return action.Command{}, err
	}
	cmd.Kind = kind
	return cmd, nil
}

func buildActionPrompt(goal, stepDescription string, stepIndex, totalSteps int, screen dto.ScreenState, recent []dto.RecentAction) (string, error) {
	screenJSON, err := json.Marshal(screen)
	if err != nil {
		return "", fmt.Errorf("marshal screen state: %w", err)
	}
	recentJSON, err := json.Marshal(recent)
	if err != nil {
		return "", fmt.Errorf("marshal recent actions: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Goal: %s\n", goal)
	fmt.Fprintf(&sb, "Current step (%d of %d): %s\n\n", stepIndex+1, totalSteps, stepDescription)
	fmt.Fprintf(&sb, "Screen state:\n%s\n\n", screenJSON)
	fmt.Fprintf(&sb, "Recent actions:\n%s\n", recentJSON)
	return sb.String(), nil
}
