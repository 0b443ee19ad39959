// Package gate implements the action safety gate. Every action passes
// through it before reaching an actuator: it validates targets, enforces
// allow-lists over privileged kinds, and short-circuits entirely in dry-run
// mode.
package gate

import (
	"context"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/YoshitsuguKoike/ladas/internal/application/port/output"
	"github.com/YoshitsuguKoike/ladas/internal/domain/execution"
	"github.com/YoshitsuguKoike/ladas/internal/domain/model/action"
)

// Policy configures the gate
type Policy struct {
	// AllowedCommands are literal command prefixes permitted for run_command
	AllowedCommands []string

	// AllowedHotkeys are normalized key combinations permitted for hotkey
	AllowedHotkeys []string

	// UnsafeMode disables both allow-list checks
	UnsafeMode bool

	// DryRun validates but never reaches an actuator
	DryRun bool
}

// Gate validates and dispatches action commands
type Gate struct {
	policy   Policy
	actuator output.Actuator
	log      output.Logger

	allowedHotkeys map[string]bool
}

// New creates a gate over an actuator
func New(policy Policy, actuator output.Actuator, log output.Logger) *Gate {
	allowed := make(map[string]bool, len(policy.AllowedHotkeys))
	for _, h := range policy.AllowedHotkeys {
		allowed[NormalizeCombo(h)] = true
	}
	return &Gate{policy: policy, actuator: actuator, log: log, allowedHotkeys: allowed}
}

// NormalizeCombo canonicalizes a key-combination string for allow-list
// comparison: NFKC normalization, lowercase, trimmed segments joined by "+".
func NormalizeCombo(combo string) string {
	parts := strings.Split(norm.NFKC.String(combo), "+")
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return strings.Join(parts, "+")
}

// Validate checks a command against policy without side effects.
// It returns ErrUnsupportedAction for kinds outside the closed set,
// ErrMissingTarget for coordinate-requiring kinds with no resolvable
// position, and ErrUnauthorized for privileged kinds not covered by the
// allow-lists.
func (g *Gate) Validate(cmd action.Command) error {
	if !cmd.Kind.IsValid() {
		return execution.ErrUnsupportedAction.WithDetails(map[string]interface{}{
			"kind": cmd.Kind.String(),
		})
	}

	if cmd.Kind.RequiresTarget() {
		if _, ok := cmd.ResolveTarget(); !ok {
			return execution.ErrMissingTarget.WithDetails(map[string]interface{}{
				"kind": cmd.Kind.String(),
			})
		}
	}

	if cmd.Kind == action.KindDrag {
		if cmd.Parameters.StartCoord == nil || cmd.Parameters.EndCoord == nil {
			return execution.ErrMissingTarget.WithDetails(map[string]interface{}{
				"kind": cmd.Kind.String(),
			})
		}
	}

	if g.policy.UnsafeMode || !cmd.Kind.IsPrivileged() {
		return nil
	}

	switch cmd.Kind {
	case action.KindRunCommand:
		command := strings.TrimSpace(cmd.Parameters.Command)
		if command == "" {
			return execution.ErrMissingTarget.WithDetails(map[string]interface{}{
				"kind": cmd.Kind.String(),
			})
		}
		for _, prefix := range g.policy.AllowedCommands {
			if strings.HasPrefix(command, prefix) {
				return nil
			}
		}
		return execution.ErrUnauthorized.WithDetails(map[string]interface{}{
			"command": command,
		})
	case action.KindHotkey:
		combo := NormalizeCombo(cmd.HotkeyCombo())
		if g.allowedHotkeys[combo] {
			return nil
		}
		return execution.ErrUnauthorized.WithDetails(map[string]interface{}{
			"hotkey": combo,
		})
	}
	return nil
}

// Dispatch validates the command and, in live mode, forwards it to the
// actuator. In dry-run mode it returns immediately after validation; the
// actuator is never invoked for any action kind.
func (g *Gate) Dispatch(ctx context.Context, cmd action.Command) error {
	if err := g.Validate(cmd); err != nil {
		return err
	}
	if g.policy.DryRun {
		g.log.Info("dry run: %s at %+v params=%+v", cmd.Kind, cmd.Coordinates, cmd.Parameters)
		return nil
	}
	return g.actuator.Dispatch(ctx, cmd)
}
