package cli

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/girste/hardenspec/internal/monitoring"
	"github.com/girste/hardenspec/internal/rules"
	"github.com/girste/hardenspec/internal/sink"
)

func newWatchCommand(g *globalOptions) *cobra.Command {
	var (
		interval    time.Duration
		domains     []string
		patterns    []string
		stateDir    string
		metricsFile string
		once        bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-evaluate the rules on an interval and alert on new failures",
		Long: `Run the rules every --interval until interrupted. Drift between consecutive
checks is logged; a failing rule is notified once and reminded about daily
until it passes again. Reports go to the Redis sink and --metrics-file on
every check.

  hardenspec watch --interval 15m --metrics-file /var/lib/node_exporter/hardenspec.prom
  hardenspec watch --once`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			selected, err := rules.Select(rules.Catalogue(), domains, patterns)
			if err != nil {
				return usageError(err)
			}

			monitor := monitoring.NewMonitor(cfg, monitoring.Options{
				Interval:    interval,
				StateDir:    stateDir,
				MetricsFile: metricsFile,
				Rules:       selected,
			}).WithOpener(openHost)
			if cfg.Sink.Redis.Addr != "" {
				redisSink := sink.NewRedis(cfg.Sink.Redis)
				defer func() { _ = redisSink.Close() }()
				monitor.WithPublisher(redisSink)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !once {
				return monitor.Run(ctx)
			}

			result, err := monitor.RunOnce(ctx)
			if err != nil {
				return usageError(err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
			if result.Status != monitoring.StatusClean {
				return &exitError{code: ExitFailed}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.DurationVar(&interval, "interval", monitoring.DefaultInterval, "Time between checks")
	f.StringSliceVar(&domains, "domain", nil, "Only evaluate rules of this domain (repeatable)")
	f.StringSliceVar(&patterns, "rule", nil, "Only evaluate rules whose ID matches this glob (repeatable)")
	f.StringVar(&stateDir, "state-dir", "", "Where notification state is kept (default: /var/lib/hardenspec or /tmp/hardenspec-<uid>)")
	f.StringVar(&metricsFile, "metrics-file", "", "Rewrite Prometheus textfile metrics after every check")
	f.BoolVar(&once, "once", false, "Run a single check, print it as JSON and exit")
	return cmd
}
