// Package statebuilder assembles the unified screen state handed to the
// decision collaborator from raw perception output.
package statebuilder

import (
	"math"
	"strings"
	"time"

	"github.com/YoshitsuguKoike/ladas/internal/application/dto"
	"github.com/YoshitsuguKoike/ladas/internal/application/port/output"
	"github.com/YoshitsuguKoike/ladas/internal/domain/model"
)

// LabelRadius is the fixed pixel radius within which recognized text is
// merged into a visual element as its label.
const LabelRadius = 50.0

// Build merges perception output into a ScreenState. Text is attached to
// elements by a nearest-neighbor heuristic with a fixed radius; the first
// sufficiently-close text in list order wins. This is deliberately not a
// distance-minimizing join: downstream decisions depend on the deterministic
// first-match behavior.
func Build(
	session model.SessionID,
	step model.StepID,
	monitor int,
	snap output.Snapshot,
	texts []dto.TextRegion,
	elements []dto.UIElement,
) dto.ScreenState {
	labeled := make([]dto.UIElement, len(elements))
	copy(labeled, elements)

	for i := range labeled {
		for _, t := range texts {
			dx := float64(labeled[i].CenterX - t.BBox.CenterX())
			dy := float64(labeled[i].CenterY - t.BBox.CenterY())
			if math.Hypot(dx, dy) < LabelRadius {
				labeled[i].Label = t.Text
				break
			}
		}
	}

	return dto.ScreenState{
		Timestamp:       time.Now().UTC(),
		SessionID:       session.String(),
		StepID:          step.String(),
		Monitor:         monitor,
		ScreenWidth:     snap.Width,
		ScreenHeight:    snap.Height,
		ScreenHash:      snap.Fingerprint.String(),
		Texts:           texts,
		Elements:        labeled,
		LoadingDetected: loadingDetected(labeled),
		ErrorDetected:   errorDetected(texts),
	}
}

func loadingDetected(elements []dto.UIElement) bool {
	for _, e := range elements {
		if e.Class == "spinner" || e.Class == "progress_bar" {
			return true
		}
	}
	return false
}

func errorDetected(texts []dto.TextRegion) bool {
	for _, t := range texts {
		if strings.Contains(strings.ToLower(t.Text), "error") {
			return true
		}
	}
	return false
}
