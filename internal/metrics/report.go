package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/girste/hardenspec/internal/rules"
	"github.com/girste/hardenspec/internal/runner"
)

// Metric names
const (
	RuleStatus      = "hardenspec_rule_status"
	RulesTotal      = "hardenspec_rules_total"
	RunDuration     = "hardenspec_run_duration_seconds"
	CommandsTotal   = "hardenspec_commands_total"
	CommandFailures = "hardenspec_command_failures_total"
	Compliance      = "hardenspec_compliance_ratio"
)

// FromReport builds a registry describing one run
func FromReport(report *runner.Report) *Registry {
	reg := NewRegistry()
	reg.Help(RuleStatus, "Outcome of each rule in the last run, 1 for the reported status.")
	reg.Help(RulesTotal, "Rules per outcome status in the last run.")
	reg.Help(RunDuration, "Wall time of the last run.")
	reg.Help(CommandsTotal, "Inspection commands sent to the target in the last run.")
	reg.Help(CommandFailures, "Inspection commands that failed to run or timed out in the last run.")
	reg.Help(Compliance, "pass / (pass + fail + error) of the last run.")

	for _, o := range report.Outcomes {
		reg.Gauge(RuleStatus, map[string]string{
			"rule":   o.RuleID,
			"domain": o.Domain,
			"status": string(o.Status),
		}).Set(1)
	}
	for _, status := range rules.Statuses {
		reg.Gauge(RulesTotal, map[string]string{"status": string(status)})
	}
	for _, o := range report.Outcomes {
		reg.Gauge(RulesTotal, map[string]string{"status": string(o.Status)}).Inc()
	}

	reg.Gauge(RunDuration, nil).Set(report.Duration().Seconds())
	reg.Counter(CommandsTotal, nil).Add(float64(report.Stats.Commands))
	reg.Counter(CommandFailures, nil).Add(float64(report.Stats.Failures))
	if s := report.Summary; s != nil && s.Total > s.Skipped {
		reg.Gauge(Compliance, nil).Set(float64(s.Passed) / float64(s.Total-s.Skipped))
	}
	return reg
}

// WriteTextfile writes the registry to path through a temporary file and a
// rename so the collector never reads a partial file.
func WriteTextfile(path string, reg *Registry) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".hardenspec-*.prom")
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.WriteString(reg.ExportPrometheus()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to chmod metrics file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close metrics file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move metrics file into place: %w", err)
	}
	return nil
}
