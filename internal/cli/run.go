package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/girste/hardenspec/internal/attest"
	"github.com/girste/hardenspec/internal/baseline"
	"github.com/girste/hardenspec/internal/config"
	herr "github.com/girste/hardenspec/internal/errors"
	"github.com/girste/hardenspec/internal/host"
	"github.com/girste/hardenspec/internal/metrics"
	"github.com/girste/hardenspec/internal/notify"
	"github.com/girste/hardenspec/internal/output"
	"github.com/girste/hardenspec/internal/rules"
	"github.com/girste/hardenspec/internal/runner"
	"github.com/girste/hardenspec/internal/sink"
	"github.com/girste/hardenspec/internal/util"
)

// openHost connects to the configured target. Tests replace it.
var openHost = host.Open

type runOptions struct {
	format            string
	outputPath        string
	domains           []string
	patterns          []string
	baselinePath      string
	saveBaselinePath  string
	defaultBaseline   bool
	saveDefault       bool
	signKey           string
	signPassphraseEnv string
	metricsFile       string
	noNotify          bool
}

func newRunCommand(g *globalOptions) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate the hardening rules against the target",
		Long: `Evaluate the rule catalogue, or the subset chosen with --domain and --rule,
against the target and print the report.

  hardenspec run
  hardenspec run --target ssh://admin@web1 --domain ssh --domain firewall
  hardenspec run --rule 'kernel.network.*' --format json --output report.json
  hardenspec run --output report.json --sign-key ops.asc --save-baseline base.yaml
  hardenspec run --default-baseline`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(cmd, g, o)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.format, "format", "f", "", "Output format: text, json, sarif (default from config)")
	f.StringVarP(&o.outputPath, "output", "o", "", "Write the report to this file instead of stdout")
	f.StringSliceVar(&o.domains, "domain", nil, "Only evaluate rules of this domain (repeatable)")
	f.StringSliceVar(&o.patterns, "rule", nil, "Only evaluate rules whose ID matches this glob (repeatable)")
	f.StringVar(&o.baselinePath, "baseline", "", "Compare the run against this baseline file")
	f.StringVar(&o.saveBaselinePath, "save-baseline", "", "Save the run as a baseline file")
	f.BoolVar(&o.defaultBaseline, "default-baseline", false, "Compare against the baseline at "+baseline.GetDefaultPath())
	f.BoolVar(&o.saveDefault, "save-default-baseline", false, "Save the run as the baseline at "+baseline.GetDefaultPath())
	f.StringVar(&o.signKey, "sign-key", "", "Armored OpenPGP private key used to sign the --output file")
	f.StringVar(&o.signPassphraseEnv, "sign-passphrase-env", "", "Environment variable holding the signing key passphrase")
	f.StringVar(&o.metricsFile, "metrics-file", "", "Write Prometheus textfile metrics to this path")
	f.BoolVar(&o.noNotify, "no-notify", false, "Do not send webhook notifications")
	cmd.MarkFlagsMutuallyExclusive("baseline", "default-baseline")
	cmd.MarkFlagsMutuallyExclusive("save-baseline", "save-default-baseline")
	return cmd
}

func runRules(cmd *cobra.Command, g *globalOptions, o *runOptions) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	logger := util.GetLogger()

	format := cfg.Output.Format
	if o.format != "" {
		format = o.format
	}
	if o.signKey != "" && o.outputPath == "" {
		return usageError(herr.Wrap(herr.ErrInvalidInput, "--sign-key needs --output"))
	}

	catalogue := rules.Catalogue()
	selected, err := rules.Select(catalogue, o.domains, o.patterns)
	if err != nil {
		return usageError(err)
	}

	stdout := cmd.OutOrStdout()
	formatter, err := output.NewFormatter(format, o.outputPath == "" && output.IsTerminal(stdout), g.version, catalogue)
	if err != nil {
		return usageError(err)
	}

	if o.defaultBaseline {
		o.baselinePath = baseline.GetDefaultPath()
	}
	if o.saveDefault {
		o.saveBaselinePath = baseline.GetDefaultPath()
	}

	// Keys and baselines are read before the run so a typo fails fast
	var signer *attest.Signer
	if o.signKey != "" {
		passphrase, err := signingPassphrase(o.signKey, o.signPassphraseEnv)
		if err != nil {
			return usageError(err)
		}
		if signer, err = attest.LoadSigner(o.signKey, passphrase); err != nil {
			return usageError(err)
		}
	}
	var base *baseline.Baseline
	if o.baselinePath != "" {
		if base, err = baseline.Load(o.baselinePath); err != nil {
			return usageError(err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := openHost(ctx, cfg)
	if err != nil {
		return usageError(herr.Wrap(err, "connect to %s", cfg.Target))
	}
	defer func() { _ = h.Close() }()

	report, err := runner.New(cfg).Run(ctx, h, selected)
	if err != nil {
		return usageError(herr.Wrap(err, "run aborted"))
	}

	stderr := cmd.ErrOrStderr()
	if o.outputPath != "" {
		data, err := formatter.WriteFile(o.outputPath, report)
		if err != nil {
			return err
		}
		fmt.Fprintf(stderr, "%s\nReport written to %s\n", output.ToSummary(report), o.outputPath)
		if signer != nil {
			sigPath, err := signer.SignBytes(o.outputPath, data)
			if err != nil {
				return err
			}
			fmt.Fprintf(stderr, "Signature written to %s (key %s)\n", sigPath, signer.KeyID())
		}
	} else if err := formatter.Render(stdout, report); err != nil {
		return err
	}

	if base != nil {
		printDrift(stderr, baseline.Compare(base, report))
	}
	if o.saveBaselinePath != "" {
		if err := baseline.Save(baseline.Create(report, g.version), o.saveBaselinePath); err != nil {
			return err
		}
		fmt.Fprintf(stderr, "Baseline saved to %s\n", o.saveBaselinePath)
	}
	if o.metricsFile != "" {
		if err := metrics.WriteTextfile(o.metricsFile, metrics.FromReport(report)); err != nil {
			return err
		}
	}

	// Sinks and webhooks are best effort; the report is already out
	publishReport(ctx, cfg, report, logger)
	if !o.noNotify {
		sendNotifications(ctx, cfg, report, logger)
	}

	if code := report.ExitCode(); code != ExitOK {
		return &exitError{code: code}
	}
	return nil
}

// signingPassphrase reads the key passphrase from env, or prompts for it
// when env is unset and stdin is a terminal.
func signingPassphrase(keyPath, env string) ([]byte, error) {
	if env != "" {
		value, ok := os.LookupEnv(env)
		if !ok {
			return nil, herr.Wrap(herr.ErrInvalidInput, "environment variable %s is not set", env)
		}
		return []byte(value), nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, nil
	}
	fmt.Fprintf(os.Stderr, "Passphrase for %s (empty if none): ", keyPath)
	passphrase, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read passphrase: %w", err)
	}
	return passphrase, nil
}

func publishReport(ctx context.Context, cfg *config.Config, report *runner.Report, logger *zap.Logger) {
	if cfg.Sink.Redis.Addr == "" {
		return
	}
	redisSink := sink.NewRedis(cfg.Sink.Redis)
	defer func() { _ = redisSink.Close() }()
	if err := redisSink.Publish(ctx, report); err != nil {
		logger.Warn("Could not publish report", zap.String("addr", cfg.Sink.Redis.Addr), zap.Error(err))
	}
}

func sendNotifications(ctx context.Context, cfg *config.Config, report *runner.Report, logger *zap.Logger) {
	notifier := notify.NewNotifier(&cfg.Notifications)
	alert := notify.NewAlert(report)
	if !notifier.ShouldNotify(alert) {
		return
	}
	result := notifier.Send(ctx, alert)
	for _, failure := range result.Failed {
		logger.Warn("Notification failed",
			zap.String("provider", failure.Provider),
			zap.String("error", failure.Error))
	}
	if len(result.Sent) > 0 {
		logger.Info("Notifications sent", zap.Strings("providers", result.Sent))
	}
}

func printDrift(w io.Writer, diff *baseline.DiffResult) {
	if diff.DriftCount == 0 {
		fmt.Fprintf(w, "No drift from baseline of %s\n", diff.BaselineTimestamp)
		return
	}
	fmt.Fprintf(w, "Drift from baseline of %s: %d change(s), %d regression(s)\n",
		diff.BaselineTimestamp, diff.DriftCount, diff.Regressions)
	for _, d := range diff.Drifts {
		mark := " "
		if d.Regression() {
			mark = "!"
		}
		fmt.Fprintf(w, "  %s %s\n", mark, d.Message)
	}
}
