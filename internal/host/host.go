package host

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mvdan.cc/sh/v3/syntax"

	"github.com/girste/hardenspec/internal/config"
	herr "github.com/girste/hardenspec/internal/errors"
	"github.com/girste/hardenspec/internal/log"
)

// Options configure a Host.
type Options struct {
	// Sudo is one of config.SudoNever, config.SudoAuto or config.SudoAlways.
	Sudo            string
	AllowedCommands []string
}

// Host answers point-in-time questions about one target. It is safe for
// concurrent use; nothing read from the target is cached except the
// privilege probe and the distribution, which do not change during a run.
type Host struct {
	transport Transport
	guard     *Guard
	sudoMode  string

	privOnce sync.Once
	useSudo  bool

	release osRelease

	commands atomic.Int64
	failures atomic.Int64
	rejected atomic.Int64
	timeouts atomic.Int64
}

// Stats counts what a Host sent to its transport.
type Stats struct {
	Commands int64 `json:"commands"`
	Failures int64 `json:"failures"` // transport errors and timeouts
	Rejected int64 `json:"rejected"` // stopped by the guard
	Timeouts int64 `json:"timeouts"`
}

func New(t Transport, opts Options) *Host {
	if opts.Sudo == "" {
		opts.Sudo = config.SudoNever
	}
	return &Host{
		transport: t,
		guard:     NewGuard(opts.AllowedCommands...),
		sudoMode:  opts.Sudo,
	}
}

// Open dials the configured target and wraps the transport in a Host.
func Open(ctx context.Context, cfg *config.Config) (*Host, error) {
	t, err := Dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(t, Options{Sudo: cfg.Target.Sudo, AllowedCommands: cfg.AllowedCommands}), nil
}

// TransportName returns the name of the underlying transport.
func (h *Host) TransportName() string {
	return h.transport.Name()
}

// Close releases the transport.
func (h *Host) Close() error {
	return h.transport.Close()
}

// Stats returns a snapshot of the command counters.
func (h *Host) Stats() Stats {
	return Stats{
		Commands: h.commands.Load(),
		Failures: h.failures.Load(),
		Rejected: h.rejected.Load(),
		Timeouts: h.timeouts.Load(),
	}
}

// Run executes a literal command on the target. The command must pass the
// guard. A non-zero exit status is returned in the result, not as an error.
func (h *Host) Run(ctx context.Context, command string) (*CommandResult, error) {
	if err := h.guard.Check(command); err != nil {
		h.rejected.Add(1)
		log.WarnEvent().Str("cmd", command).Err(err).Msg("command rejected")
		return nil, err
	}
	return h.exec(ctx, command)
}

func (h *Host) exec(ctx context.Context, command string) (*CommandResult, error) {
	wire := command
	if h.privileged(ctx) {
		wire = "sudo -n sh -c " + quote(command)
	}

	start := time.Now()
	res, err := h.transport.Exec(ctx, wire)
	h.commands.Add(1)

	event := log.DebugEvent().
		Str("transport", h.transport.Name()).
		Str("cmd", command).
		Dur("took", time.Since(start))
	if err != nil {
		h.failures.Add(1)
		if herr.Is(err, herr.ErrTimeoutExceeded) {
			h.timeouts.Add(1)
		}
		event.Err(err).Msg("exec failed")
		return nil, err
	}
	event.Int("rc", res.ExitCode).Msg("exec")
	return res, nil
}

// privileged decides once whether commands go through sudo. In auto mode a
// non-root login with passwordless sudo escalates; anything else runs as the
// login user and unreadable files surface as permission errors.
func (h *Host) privileged(ctx context.Context) bool {
	switch h.sudoMode {
	case config.SudoAlways:
		return true
	case config.SudoNever:
		return false
	}

	h.privOnce.Do(func() {
		res, err := h.transport.Exec(ctx, "id -u")
		if err != nil {
			log.WarnEvent().Err(err).Msg("privilege probe failed, running unprivileged")
			return
		}
		if strings.TrimSpace(res.Stdout) == "0" {
			return
		}
		res, err = h.transport.Exec(ctx, "sudo -n true")
		if err == nil && res.Success {
			h.useSudo = true
			log.DebugEvent().Msg("non-root login, escalating with sudo -n")
			return
		}
		log.WarnEvent().Msg("non-root login without passwordless sudo, root-only files will be unreadable")
	})
	return h.useSudo
}

// quote renders s as a single POSIX shell word.
func quote(s string) string {
	q, err := syntax.Quote(s, syntax.LangPOSIX)
	if err != nil {
		// Only non-printable bytes fail to quote; single quotes keep them literal
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return q
}
