package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/afero"

	"github.com/YoshitsuguKoike/ladas/internal/application/dto"
	"github.com/YoshitsuguKoike/ladas/internal/application/port/output"
)

const perceptionSystemPrompt = `You analyze a desktop screenshot. Report every readable text region
and every interactive visual element (buttons, inputs, icons, links,
spinners, progress bars) with pixel-accurate bounding boxes.
Respond with JSON only:
{
  "texts": [{"text": "...", "confidence": 0.0, "bounding_box": {"x": 0, "y": 0, "width": 0, "height": 0}}],
  "elements": [{"class": "...", "bounding_box": {"x": 0, "y": 0, "width": 0, "height": 0}, "center_x": 0, "center_y": 0}]
}`

// Perception implements the perception port by sending the captured frame to
// the vision-capable Messages API. One screenshot analysis serves both text
// and element detection; the result is cached per image path.
type Perception struct {
	client *Client
	fs     afero.Fs

	lastPath     string
	lastTexts    []dto.TextRegion
	lastElements []dto.UIElement
}

var _ output.Perception = (*Perception)(nil)

// NewPerception creates a perception adapter reading frames from fs
func NewPerception(client *Client, fs afero.Fs) *Perception {
	return &Perception{client: client, fs: fs}
}

// DetectText recognizes text regions on the captured frame
func (p *Perception) DetectText(ctx context.Context, imagePath string) ([]dto.TextRegion, error) {
	if err := p.analyze(ctx, imagePath); err != nil {
		return nil, err
	}
	return p.lastTexts, nil
}

// DetectElements recognizes visual elements on the captured frame
func (p *Perception) DetectElements(ctx context.Context, imagePath string) ([]dto.UIElement, error) {
	if err := p.analyze(ctx, imagePath); err != nil {
		return nil, err
	}
	return p.lastElements, nil
}

func (p *Perception) analyze(ctx context.Context, imagePath string) error {
	if imagePath == p.lastPath {
		return nil
	}

	data, err := afero.ReadFile(p.fs, imagePath)
	if err != nil {
		return fmt.Errorf("read capture %s: %w", imagePath, err)
	}
	encoded := base64.StdEncoding.EncodeToString(data)

	text, err := p.client.complete(ctx, perceptionSystemPrompt,
		"Analyze this screenshot.",
		sdk.NewImageBlockBase64("image/png", encoded),
	)
	if err != nil {
		return err
	}
	payload, err := extractJSON(text)
	if err != nil {
		return err
	}

	var result struct {
		Texts    []dto.TextRegion `json:"texts"`
		Elements []dto.UIElement  `json:"elements"`
	}
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return fmt.Errorf("decode perception result: %w", err)
	}

	for i := range result.Elements {
		e := &result.Elements[i]
		if e.CenterX == 0 && e.CenterY == 0 {
			e.CenterX = e.BBox.CenterX()
			e.CenterY = e.BBox.CenterY()
		}
	}

	p.lastPath = imagePath
	p.lastTexts = result.Texts
	p.lastElements = result.Elements
	return nil
}
