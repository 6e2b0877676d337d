package system

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	herr "github.com/girste/hardenspec/internal/errors"
)

// CommandResult represents the result of a command execution
type CommandResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
	Success  bool   `json:"success"`
	TimedOut bool   `json:"timedOut"`
}

const (
	TimeoutShort    = 5 * time.Second
	TimeoutMedium   = 10 * time.Second
	TimeoutLong     = 30 * time.Second
	TimeoutVeryLong = 120 * time.Second
)

// RunCommand executes a command with timeout.
// A non-zero exit status is not an error; the caller inspects ExitCode.
// A command that could not be started returns ErrTransport, one that
// outlived its timeout returns the partial result and ErrTimeoutExceeded.
func RunCommand(ctx context.Context, timeout time.Duration, cmdParts ...string) (*CommandResult, error) {
	if len(cmdParts) == 0 {
		return nil, fmt.Errorf("no command specified")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, cmdParts[0], cmdParts[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := &CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Success:  err == nil,
		TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
	}

	if result.TimedOut {
		result.ExitCode = -1
		return result, herr.Wrap(herr.ErrTimeoutExceeded, "%s after %s", cmdParts[0], timeout)
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	case ctx.Err() != nil:
		return result, herr.Wrap(herr.ErrTransport, "%s: %v", cmdParts[0], ctx.Err())
	default:
		return result, herr.Wrap(herr.ErrTransport, "%s: %v", cmdParts[0], err)
	}

	return result, nil
}

// CommandExists checks if a command is available
func CommandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}
