// Package dto carries data transfer structures exchanged with the external
// perception and decision collaborators.
package dto

import "time"

// TextRegion is one piece of text recognized on screen
type TextRegion struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	BBox       Rect    `json:"bounding_box"`
}

// Rect is an axis-aligned pixel rectangle
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CenterX returns the horizontal center of the rectangle
func (r Rect) CenterX() int { return r.X + r.Width/2 }

// CenterY returns the vertical center of the rectangle
func (r Rect) CenterY() int { return r.Y + r.Height/2 }

// UIElement is one visual element detected on screen
type UIElement struct {
	Class   string `json:"class"`
	BBox    Rect   `json:"bounding_box"`
	CenterX int    `json:"center_x"`
	CenterY int    `json:"center_y"`
	Label   string `json:"label,omitempty"`
}

// ScreenState is the unified structured screen description handed to the
// decision collaborator.
type ScreenState struct {
	Timestamp       time.Time    `json:"timestamp"`
	SessionID       string       `json:"session_id"`
	StepID          string       `json:"step_id"`
	Monitor         int          `json:"monitor"`
	ScreenWidth     int          `json:"screen_width"`
	ScreenHeight    int          `json:"screen_height"`
	ScreenHash      string       `json:"screen_hash"`
	Texts           []TextRegion `json:"ocr_elements"`
	Elements        []UIElement  `json:"vision_elements"`
	LoadingDetected bool         `json:"loading_indicators_detected"`
	ErrorDetected   bool         `json:"error_dialogs_detected"`
}

// PlannedStep is one step of a generated plan
type PlannedStep struct {
	Description string `json:"description"`
	MaxRetries  int    `json:"max_retries"`
}

// Plan is the decision collaborator's step plan for a task
type Plan struct {
	Goal  string        `json:"parsed_goal"`
	Steps []PlannedStep `json:"steps"`
}

// RecentAction summarizes one logged action for decision context
type RecentAction struct {
	StepID    string `json:"step_id"`
	Kind      string `json:"action_type"`
	Rationale string `json:"reasoning"`
}
