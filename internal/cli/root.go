// Package cli implements the hardenspec command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/girste/hardenspec/internal/config"
	herr "github.com/girste/hardenspec/internal/errors"
	"github.com/girste/hardenspec/internal/log"
	"github.com/girste/hardenspec/internal/util"
)

// Process exit codes
const (
	ExitOK     = 0
	ExitFailed = 1 // a rule failed or errored, or a verification did not pass
	ExitUsage  = 2 // bad flags, bad config or unreachable target
)

// exitError carries the exit code of a finished command. A nil err means
// the command already reported everything it had to say.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error {
	return &exitError{code: ExitUsage, err: err}
}

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	version    string
	configPath string
	target     string
	logLevel   string
	auditLog   string
	auditFile  *os.File
}

// openAuditLog sends the host command trail to path as JSON lines. The
// trail is logged at debug level, so that becomes the default.
func (o *globalOptions) openAuditLog() error {
	f, err := os.OpenFile(o.auditLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	o.auditFile = f
	log.SetOutput(f)
	if o.logLevel == "" {
		return log.SetLevelString("debug")
	}
	return nil
}

func (o *globalOptions) closeAuditLog() {
	if o.auditFile == nil {
		return
	}
	log.ResetOutput()
	_ = o.auditFile.Close()
	o.auditFile = nil
}

// loadConfig reads the configuration and applies --target on top of it
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, usageError(err)
	}
	if o.target != "" {
		if err := cfg.ApplyTargetURL(o.target); err != nil {
			return nil, usageError(herr.Wrap(err, "--target"))
		}
		if err := cfg.Validate(); err != nil {
			return nil, usageError(err)
		}
	}
	return cfg, nil
}

// newRootCommand builds the command tree
func newRootCommand(opts *globalOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "hardenspec",
		Short: "hardenspec - Linux hardening compliance checks",
		Long: `hardenspec evaluates a fixed catalogue of read-only hardening rules against
a Linux host, locally, through nsenter, inside a container or over SSH, and
reports PASS, FAIL, ERROR or SKIP for each of them.

Exit status is 0 when no rule failed or errored, 1 otherwise and 2 when the
run could not start.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logLevel != "" {
				if err := log.SetLevelString(opts.logLevel); err != nil {
					return usageError(herr.Wrap(herr.ErrInvalidInput, "--log-level %q", opts.logLevel))
				}
				util.SetLogLevel(opts.logLevel)
			}
			if opts.auditLog != "" {
				if err := opts.openAuditLog(); err != nil {
					return usageError(err)
				}
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file (default: .hardenspec.yaml, ~/.hardenspec.yaml, /etc/hardenspec/config.yaml)")
	root.PersistentFlags().StringVar(&opts.target, "target", "", "Target URL: local://, nsenter://, docker://<container>, ssh://user@host:port")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&opts.auditLog, "audit-log", "", "Append every command sent to the target to this file as JSON lines")

	root.AddCommand(
		newRunCommand(opts),
		newListCommand(),
		newDiffCommand(),
		newVerifyCommand(),
		newServeCommand(opts),
		newWatchCommand(opts),
		newVersionCommand(opts),
		newInitConfigCommand(),
	)
	return root
}

// Execute runs the command line and returns the process exit code
func Execute(version string, args []string, stdout, stderr io.Writer) int {
	opts := &globalOptions{version: version}
	defer opts.closeAuditLog()

	root := newRootCommand(opts)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(context.Background())
	if err == nil {
		return ExitOK
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", exit.err)
		}
		return exit.code
	}

	// Flag and argument errors raised by cobra itself
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return ExitUsage
}
