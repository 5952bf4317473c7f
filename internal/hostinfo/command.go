package hostinfo

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes an external command and returns its trimmed stdout.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

// RunCommand is the Runner used outside tests. The deadline of ctx bounds
// the child process.
func RunCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%s: exit code %d", name, exitErr.ExitCode())
		}
		return "", fmt.Errorf("%s: %w", name, err)
	}

	return strings.TrimSpace(string(out)), nil
}
