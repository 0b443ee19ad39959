package actuator

import (
	"context"
	"fmt"
	"os/exec"
)

// ExecShell runs commands through the system shell. Commands are launched
// detached: the agent does not wait for completion, matching interactive
// application launches.
type ExecShell struct{}

var _ Shell = (*ExecShell)(nil)

// NewExecShell creates the shell runner
func NewExecShell() *ExecShell {
	return &ExecShell{}
}

// Run starts the command without waiting for it to finish
func (s *ExecShell) Run(ctx context.Context, command string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}
	go cmd.Wait() // reap without blocking the execution loop
	return nil
}
