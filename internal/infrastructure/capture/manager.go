// Package capture implements the capture and retention manager: on-demand
// screen snapshots with perceptual fingerprints, session-scoped cleanup, and
// a background sweeper enforcing the retention policy.
package capture

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/corona10/goimagehash"
	"github.com/spf13/afero"

	"github.com/YoshitsuguKoike/ladas/internal/application/port/output"
	"github.com/YoshitsuguKoike/ladas/internal/domain/model"
	capturemodel "github.com/YoshitsuguKoike/ladas/internal/domain/model/capture"
)

// Grabber is the low-level display capture backend (external collaborator)
type Grabber interface {
	Grab(ctx context.Context) (image.Image, error)
}

// Manager owns capture artifacts. Session cleanup and the periodic sweep may
// run concurrently with new captures; deleting an artifact that is already
// gone is tolerated as a no-op.
type Manager struct {
	fs      afero.Fs
	dir     string
	grabber Grabber
	policy  capturemodel.Policy
	log     output.Logger

	mu       sync.Mutex
	lastFP   model.Fingerprint
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewManager creates a manager storing artifacts under dir
func NewManager(fs afero.Fs, dir string, grabber Grabber, policy capturemodel.Policy, log output.Logger) (*Manager, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create capture dir: %w", err)
	}
	return &Manager{
		fs:      fs,
		dir:     dir,
		grabber: grabber,
		policy:  policy,
		log:     log,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// CaptureNow grabs the display, stores the frame and returns it with its
// perceptual fingerprint. A hashing failure degrades to a zero fingerprint
// rather than failing the capture.
func (m *Manager) CaptureNow(ctx context.Context, session model.SessionID, step model.StepID) (output.Snapshot, error) {
	img, err := m.grabber.Grab(ctx)
	if err != nil {
		return output.Snapshot{}, fmt.Errorf("grab display: %w", err)
	}

	name := fmt.Sprintf("%s_%d_%s.png", session, time.Now().UnixMilli(), step)
	path := filepath.Join(m.dir, name)
	if err := m.writePNG(path, img); err != nil {
		return output.Snapshot{}, fmt.Errorf("store capture: %w", err)
	}

	fp := m.fingerprint(img)
	m.mu.Lock()
	m.lastFP = fp
	m.mu.Unlock()

	bounds := img.Bounds()
	return output.Snapshot{
		Path:        path,
		Fingerprint: fp,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}

func (m *Manager) writePNG(path string, img image.Image) error {
	f, err := m.fs.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (m *Manager) fingerprint(img image.Image) model.Fingerprint {
	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		m.log.Warn("perceptual hash failed: %v", err)
		return model.Fingerprint{}
	}
	return model.NewFingerprint(h.ToString())
}

// LoopCheck reports exact fingerprint equality with the most recent capture
func (m *Manager) LoopCheck(fp model.Fingerprint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fp.Equals(m.lastFP)
}

// CleanSession deletes every artifact tagged to the session, unconditionally
// and independent of the retention bounds.
func (m *Manager) CleanSession(session model.SessionID) error {
	artifacts, err := m.list()
	if err != nil {
		return err
	}
	removed := 0
	for _, a := range artifacts {
		if a.SessionID.Equals(session) {
			m.remove(a.Path)
			removed++
		}
	}
	m.log.Info("cleaned %d artifacts for session %s", removed, session)
	return nil
}

// EnforcePolicy runs one retention sweep across all sessions: age
// violations first, then oldest-first down to the count bound.
func (m *Manager) EnforcePolicy(now time.Time) error {
	artifacts, err := m.list()
	if err != nil {
		return err
	}
	doomed := m.policy.Sweep(artifacts, now)
	for _, a := range doomed {
		m.remove(a.Path)
	}
	if len(doomed) > 0 {
		m.log.Info("retention sweep removed %d artifacts", len(doomed))
	}
	return nil
}

// StartSweeper launches the background sweep at a fixed interval
func (m *Manager) StartSweeper(interval time.Duration) {
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				if err := m.EnforcePolicy(time.Now()); err != nil {
					m.log.Warn("retention sweep: %v", err)
				}
			}
		}
	}()
}

// StopSweeper stops the background sweep and waits for it to exit
func (m *Manager) StopSweeper() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

// list enumerates stored artifacts. File names carry the session tag and
// the modification time stands in for the capture time.
func (m *Manager) list() ([]capturemodel.Artifact, error) {
	infos, err := afero.ReadDir(m.fs, m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var artifacts []capturemodel.Artifact
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".png") {
			continue
		}
		session := strings.SplitN(info.Name(), "_", 2)[0]
		sid, err := model.NewSessionIDFromString(session)
		if err != nil {
			continue
		}
		artifacts = append(artifacts, capturemodel.Artifact{
			Path:       filepath.Join(m.dir, info.Name()),
			CapturedAt: info.ModTime(),
			SessionID:  sid,
		})
	}
	return artifacts, nil
}

// remove deletes one artifact; a concurrent or repeated delete is a no-op
func (m *Manager) remove(path string) {
	if err := m.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		m.log.Warn("remove artifact %s: %v", path, err)
	}
}
