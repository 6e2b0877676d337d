// Package host is the inspection facade over a target machine: file, package,
// service and group queries plus raw command execution, all carried by a
// Transport chosen from the run configuration.
package host

import (
	"context"
	"fmt"

	"github.com/girste/hardenspec/internal/config"
	herr "github.com/girste/hardenspec/internal/errors"
	"github.com/girste/hardenspec/internal/log"
	"github.com/girste/hardenspec/internal/system"
)

// CommandResult is the captured outcome of one command on the target.
type CommandResult = system.CommandResult

// Transport delivers a shell command to the target and captures its output.
// A non-zero exit status is a result, not an error; errors mean the command
// could not be delivered or did not finish in time.
type Transport interface {
	Name() string
	Exec(ctx context.Context, command string) (*CommandResult, error)
	Close() error
}

// Dial builds the transport named by cfg.Target. For ssh and docker targets
// the connection is checked before returning.
func Dial(ctx context.Context, cfg *config.Config) (Transport, error) {
	t := cfg.Target
	timeout := cfg.CommandTimeout()

	kind := t.Transport
	if kind == config.TransportAuto {
		kind = config.TransportLocal
		if system.CanEnterHost() {
			kind = config.TransportNsenter
		}
		log.DebugEvent().Str("transport", kind).Msg("auto-selected transport")
	}

	switch kind {
	case config.TransportLocal:
		return NewLocal(timeout), nil
	case config.TransportNsenter:
		if !system.CommandExists("nsenter") {
			return nil, herr.Wrap(herr.ErrTransport, "nsenter not found in PATH")
		}
		return NewNsenter(timeout), nil
	case config.TransportDocker:
		return DialDocker(ctx, t.Container, timeout)
	case config.TransportSSH:
		return DialSSH(ctx, t, cfg.DialTimeout(), timeout)
	default:
		return nil, herr.Wrap(herr.ErrInvalidConfig, "unknown transport %q", t.Transport)
	}
}

func describeResult(res *CommandResult) string {
	if res == nil {
		return "no result"
	}
	return fmt.Sprintf("exit %d", res.ExitCode)
}
