package npm

import (
	"context"
	"errors"
	"os/exec"
)

// Runner executes a subprocess and returns its combined output and exit
// code. A non-nil error means the process failed to spawn, was killed, or
// exited non-zero.
type Runner interface {
	Run(ctx context.Context, bin string, args []string) (output []byte, exitCode int, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, bin string, args []string) ([]byte, int, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		// Prefer the cancellation cause so timeouts read as timeouts, not
		// as signal kills.
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return out, code, err
	}
	return out, 0, nil
}
