// Package monitoring re-evaluates the rules on an interval, reports drift
// between consecutive checks and alerts on failures without repeating
// itself.
package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/girste/hardenspec/internal/baseline"
	"github.com/girste/hardenspec/internal/config"
	"github.com/girste/hardenspec/internal/host"
	"github.com/girste/hardenspec/internal/metrics"
	"github.com/girste/hardenspec/internal/notify"
	"github.com/girste/hardenspec/internal/recommendations"
	"github.com/girste/hardenspec/internal/rules"
	"github.com/girste/hardenspec/internal/runner"
	"github.com/girste/hardenspec/internal/util"
)

// DefaultInterval is used when Options.Interval is not positive
const DefaultInterval = time.Hour

// Check status values
const (
	StatusClean   = "clean"
	StatusFailing = "failing"
)

// OpenFunc connects to the configured target
type OpenFunc func(ctx context.Context, cfg *config.Config) (*host.Host, error)

// Publisher receives every report, e.g. the Redis sink
type Publisher interface {
	Publish(ctx context.Context, report *runner.Report) error
}

// Options configure a Monitor
type Options struct {
	Interval    time.Duration
	StateDir    string // notification state, defaults to util.GetStateDir()
	MetricsFile string // rewritten after every check when set
	Rules       []rules.Rule
}

// CheckResult summarizes one monitoring check
type CheckResult struct {
	RunID    string               `json:"run_id"`
	Status   string               `json:"status"`
	Failures int                  `json:"failures"`
	Alerted  []string             `json:"alerted,omitempty"`  // rules included in a sent alert
	Resolved []string             `json:"resolved,omitempty"` // rules that stopped failing
	Drift    *baseline.DiffResult `json:"drift,omitempty"`    // nil on the first check
}

// Monitor is the continuous compliance loop
type Monitor struct {
	cfg       *config.Config
	opts      Options
	open      OpenFunc
	runner    *runner.Runner
	notifier  *notify.Notifier
	tracker   *NotificationTracker
	publisher Publisher
	logger    *zap.Logger
	previous  *runner.Report
}

// NewMonitor creates a monitor. Tracker state left by an earlier monitor
// in the same state directory is picked up.
func NewMonitor(cfg *config.Config, opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.StateDir == "" {
		opts.StateDir = util.GetStateDir()
	}
	if opts.Rules == nil {
		opts.Rules = rules.Catalogue()
	}

	logger := util.GetLogger().Named("monitor")
	tracker := NewNotificationTracker(opts.StateDir)
	if err := tracker.Load(); err != nil {
		logger.Warn("Ignoring unreadable notification state", zap.Error(err))
	}

	return &Monitor{
		cfg:      cfg,
		opts:     opts,
		open:     host.Open,
		runner:   runner.New(cfg).WithLogger(logger),
		notifier: notify.NewNotifier(&cfg.Notifications),
		tracker:  tracker,
		logger:   logger,
	}
}

// WithOpener replaces how the target is reached
func (m *Monitor) WithOpener(open OpenFunc) *Monitor {
	m.open = open
	return m
}

// WithPublisher sends every report to p
func (m *Monitor) WithPublisher(p Publisher) *Monitor {
	m.publisher = p
	return m
}

// WithLogger replaces the monitor logger
func (m *Monitor) WithLogger(logger *zap.Logger) *Monitor {
	m.logger = logger
	m.runner.WithLogger(logger)
	return m
}

// RunOnce performs a single check. Only a target that cannot be reached or
// a cancelled context is an error; sink and webhook failures are logged.
func (m *Monitor) RunOnce(ctx context.Context) (*CheckResult, error) {
	h, err := m.open(ctx, m.cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = h.Close() }()

	report, err := m.runner.Run(ctx, h, m.opts.Rules)
	if err != nil {
		return nil, err
	}

	failures := report.Failures()
	result := &CheckResult{
		RunID:    report.RunID,
		Status:   StatusClean,
		Failures: len(failures),
	}
	if len(failures) > 0 {
		result.Status = StatusFailing
	}

	if m.previous != nil {
		result.Drift = baseline.Compare(baseline.Create(m.previous, ""), report)
		domains := make(map[string]string, len(report.Outcomes))
		for _, o := range report.Outcomes {
			domains[o.RuleID] = o.Domain
		}
		for _, d := range result.Drift.Drifts {
			m.logger.Info("Rule drifted",
				zap.String("rule", d.RuleID),
				zap.String("change", d.Message),
				zap.String("advice", recommendations.ForDrift(domains[d.RuleID], d.Regression())))
		}
	}
	m.previous = report

	result.Resolved = m.tracker.Resolve(failures)
	var fresh []rules.Outcome
	for _, o := range failures {
		if m.tracker.Observe(o) {
			fresh = append(fresh, o)
		}
	}
	if len(fresh) > 0 {
		result.Alerted = m.alert(ctx, report, fresh)
		if len(result.Alerted) > 0 {
			m.tracker.MarkNotified(fresh)
		}
	}
	if err := m.tracker.Save(); err != nil {
		m.logger.Warn("Failed to save notification state", zap.Error(err))
	}

	if m.opts.MetricsFile != "" {
		if err := metrics.WriteTextfile(m.opts.MetricsFile, metrics.FromReport(report)); err != nil {
			m.logger.Warn("Failed to write metrics", zap.String("path", m.opts.MetricsFile), zap.Error(err))
		}
	}
	if m.publisher != nil {
		if err := m.publisher.Publish(ctx, report); err != nil {
			m.logger.Warn("Failed to publish report", zap.Error(err))
		}
	}
	return result, nil
}

// alert sends one notification listing the fresh failures and returns
// their rule IDs when at least one provider accepted it
func (m *Monitor) alert(ctx context.Context, report *runner.Report, fresh []rules.Outcome) []string {
	payload := notify.NewAlert(report)
	payload.Issues = payload.Issues[:0]
	ids := make([]string, 0, len(fresh))
	for _, o := range fresh {
		payload.Issues = append(payload.Issues, notify.AlertIssue{
			RuleID:  o.RuleID,
			Status:  string(o.Status),
			Message: o.Message,
			Domain:  o.Domain,
		})
		ids = append(ids, o.RuleID)
	}

	if !m.notifier.ShouldNotify(payload) {
		return nil
	}
	sent := m.notifier.Send(ctx, payload)
	for _, f := range sent.Failed {
		m.logger.Warn("Notification failed", zap.String("provider", f.Provider), zap.String("error", f.Error))
	}
	if len(sent.Sent) == 0 {
		return nil
	}
	m.logger.Info("Alert sent", zap.Strings("providers", sent.Sent), zap.Strings("rules", ids))
	return ids
}

// Run checks once per interval until ctx is cancelled
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("Starting compliance monitor",
		zap.Duration("interval", m.opts.Interval),
		zap.Int("rules", len(m.opts.Rules)),
		zap.String("state", m.opts.StateDir))

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for check := 1; ; check++ {
		result, err := m.RunOnce(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			m.logger.Info("Monitor stopped")
			return nil
		case err != nil:
			m.logger.Warn("Check failed", zap.Int("check", check), zap.Error(err))
		default:
			m.logger.Info("Check completed",
				zap.Int("check", check),
				zap.String("status", result.Status),
				zap.Int("failures", result.Failures),
				zap.Strings("alerted", result.Alerted),
				zap.Strings("resolved", result.Resolved))
		}

		select {
		case <-ctx.Done():
			m.logger.Info("Monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}
