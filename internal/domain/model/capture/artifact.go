// Package capture defines the transient screen-capture artifact and the
// retention policy governing its automatic deletion.
package capture

import (
	"sort"
	"time"

	"github.com/YoshitsuguKoike/ladas/internal/domain/model"
)

// Artifact is one captured frame on disk. It is owned by the capture manager
// and deleted either by session cleanup when a task ends or by the background
// sweeper, whichever occurs first.
type Artifact struct {
	Path        string
	Fingerprint model.Fingerprint
	CapturedAt  time.Time
	SessionID   model.SessionID
	StepID      model.StepID
}

// Policy bounds the artifact set by age and count
type Policy struct {
	MaxCount int
	MaxAge   time.Duration
}

// DefaultPolicy mirrors the shipped configuration defaults
func DefaultPolicy() Policy {
	return Policy{MaxCount: 200, MaxAge: time.Hour}
}

// Expired selects artifacts older than the max age at time now.
// Age violations are removed unconditionally, before any count trimming.
func (p Policy) Expired(artifacts []Artifact, now time.Time) []Artifact {
	var out []Artifact
	for _, a := range artifacts {
		if now.Sub(a.CapturedAt) > p.MaxAge {
			out = append(out, a)
		}
	}
	return out
}

// Excess selects the oldest artifacts beyond the count bound, assuming age
// violations have already been removed from the input. After deleting both
// selections the surviving set satisfies both bounds simultaneously.
func (p Policy) Excess(artifacts []Artifact) []Artifact {
	if len(artifacts) <= p.MaxCount {
		return nil
	}
	sorted := make([]Artifact, len(artifacts))
	copy(sorted, artifacts)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CapturedAt.Before(sorted[j].CapturedAt)
	})
	return sorted[:len(sorted)-p.MaxCount]
}

// Sweep partitions artifacts into the set to delete under the policy: first
// everything over the max age, then the oldest of the remainder until the
// count bound holds.
func (p Policy) Sweep(artifacts []Artifact, now time.Time) []Artifact {
	expired := p.Expired(artifacts, now)

	dead := make(map[string]bool, len(expired))
	for _, a := range expired {
		dead[a.Path] = true
	}
	var alive []Artifact
	for _, a := range artifacts {
		if !dead[a.Path] {
			alive = append(alive, a)
		}
	}

	return append(expired, p.Excess(alive)...)
}
