package anthropic

import (
	"context"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YoshitsuguKoike/ladas/internal/application/dto"
	"github.com/YoshitsuguKoike/ladas/internal/domain/model/action"
)

type fakeMessages struct {
	text string
	err  error

	lastParams sdk.MessageNewParams
}

func (f *fakeMessages) New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error) {
	f.lastParams = body
	if f.err != nil {
		return nil, f.err
	}
	return &sdk.Message{
		Content: []sdk.ContentBlockUnion{{Type: "text", Text: f.text}},
	}, nil
}

func newTestDecision(t *testing.T, msg *fakeMessages) *Decision {
	t.Helper()
	client, err := NewClient(msg, Options{Model: "claude-sonnet-4-20250514", Temperature: 0.2})
	require.NoError(t, err)
	return NewDecision(client)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "bare object", in: `{"a": 1}`, want: `{"a": 1}`},
		{name: "surrounding prose", in: "Sure, here you go: {\"a\": 1} hope that helps", want: `{"a": 1}`},
		{name: "json fence", in: "```json\n{\"a\": 1}\n```", want: "{\"a\": 1}"},
		{name: "plain fence", in: "```\n{\"a\": 1}\n```", want: "{\"a\": 1}"},
		{name: "nested braces", in: `{"a": {"b": 2}}`, want: `{"a": {"b": 2}}`},
		{name: "braces inside strings", in: `{"a": "}{"}`, want: `{"a": "}{"}`},
		{name: "escaped quote in string", in: `{"a": "say \"}\" loudly"}`, want: `{"a": "say \"}\" loudly"}`},
		{name: "array payload", in: `[{"a": 1}, {"b": 2}]`, want: `[{"a": 1}, {"b": 2}]`},
		{name: "no payload", in: "I cannot help with that.", wantErr: true},
		{name: "unbalanced", in: `{"a": 1`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, got)
		})
	}
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil, Options{Model: "m"})
	assert.Error(t, err)

	_, err = NewClient(&fakeMessages{}, Options{})
	assert.Error(t, err)

	_, err = NewClientFromAPIKey("", Options{Model: "m"})
	assert.Error(t, err)
}

func TestParseInstruction(t *testing.T) {
	msg := &fakeMessages{text: `{"parsed_goal": "Open the text editor"}`}
	d := newTestDecision(t, msg)

	goal, err := d.ParseInstruction(context.Background(), "open editor pls")
	require.NoError(t, err)
	assert.Equal(t, "Open the text editor", goal)
	require.Len(t, msg.lastParams.System, 1, "system prompt must be set")
}

func TestParseInstruction_EmptyGoal(t *testing.T) {
	d := newTestDecision(t, &fakeMessages{text: `{"parsed_goal": "  "}`})
	_, err := d.ParseInstruction(context.Background(), "hmm")
	assert.Error(t, err)
}

func TestGeneratePlan(t *testing.T) {
	d := newTestDecision(t, &fakeMessages{text: "```json\n" + `{
		"parsed_goal": "Open the editor",
		"steps": [
			{"description": "open the start menu", "max_retries": 3},
			{"description": "launch the editor", "max_retries": 3}
		]
	}` + "\n```"})

	plan, err := d.GeneratePlan(context.Background(), "open the editor")
	require.NoError(t, err)
	assert.Equal(t, "Open the editor", plan.Goal)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "open the start menu", plan.Steps[0].Description)
}

func TestGeneratePlan_EmptyStepsRejected(t *testing.T) {
	d := newTestDecision(t, &fakeMessages{text: `{"parsed_goal": "g", "steps": []}`})
	_, err := d.GeneratePlan(context.Background(), "g")
	assert.Error(t, err)
}

func TestGeneratePlan_GoalFallback(t *testing.T) {
	d := newTestDecision(t, &fakeMessages{text: `{"steps": [{"description": "only step"}]}`})
	plan, err := d.GeneratePlan(context.Background(), "requested goal")
	require.NoError(t, err)
	assert.Equal(t, "requested goal", plan.Goal)
}

func TestNextAction(t *testing.T) {
	d := newTestDecision(t, &fakeMessages{text: `{
		"action_type": "Click",
		"coordinates": {"x": 120, "y": 240},
		"parameters": {},
		"pre_action_wait_ms": 100,
		"post_action_wait_ms": 500,
		"reasoning": "the OK button is at 120,240"
	}`})

	cmd, err := d.NextAction(context.Background(), "goal", "press OK", 0, 2, dto.ScreenState{}, nil)
	require.NoError(t, err)
	assert.Equal(t, action.KindClick, cmd.Kind, "kind is normalized to lower case")
	require.NotNil(t, cmd.Coordinates)
	assert.Equal(t, 120, cmd.Coordinates.X)
	assert.Equal(t, 240, cmd.Coordinates.Y)
	assert.Equal(t, 100, cmd.PreDelayMS)
	assert.Equal(t, 500, cmd.PostDelayMS)
}

func TestNextAction_UnknownKindRejected(t *testing.T) {
	d := newTestDecision(t, &fakeMessages{text: `{"action_type": "format_disk"}`})
	_, err := d.NextAction(context.Background(), "goal", "step", 0, 1, dto.ScreenState{}, nil)
	assert.Error(t, err)
}

func TestNextAction_RequestFailure(t *testing.T) {
	d := newTestDecision(t, &fakeMessages{err: errors.New("rate limited")})
	_, err := d.NextAction(context.Background(), "goal", "step", 0, 1, dto.ScreenState{}, nil)
	assert.Error(t, err)
}
