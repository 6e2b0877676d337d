package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/girste/hardenspec/internal/host"
	"github.com/girste/hardenspec/internal/rules"
	"github.com/girste/hardenspec/internal/runner"
)

func TestCounter(t *testing.T) {
	c := &Counter{}

	if got := c.Value(); got != 0 {
		t.Errorf("Counter.Value() = %v, want 0", got)
	}

	c.Inc()
	if got := c.Value(); got != 1 {
		t.Errorf("Counter.Value() after Inc() = %v, want 1", got)
	}

	c.Add(5.5)
	if got := c.Value(); got != 6.5 {
		t.Errorf("Counter.Value() after Add(5.5) = %v, want 6.5", got)
	}
}

func TestGauge(t *testing.T) {
	g := &Gauge{}

	g.Set(10.5)
	if got := g.Value(); got != 10.5 {
		t.Errorf("Gauge.Value() = %v, want 10.5", got)
	}

	g.Inc()
	if got := g.Value(); got != 11.5 {
		t.Errorf("Gauge.Value() after Inc() = %v, want 11.5", got)
	}

	g.Add(-6.5)
	if got := g.Value(); got != 5.0 {
		t.Errorf("Gauge.Value() after Add(-6.5) = %v, want 5.0", got)
	}
}

func TestRegistryReusesSeries(t *testing.T) {
	reg := NewRegistry()
	a := reg.Counter("x_total", map[string]string{"a": "1", "b": "2"})
	b := reg.Counter("x_total", map[string]string{"b": "2", "a": "1"})
	if a != b {
		t.Error("same labels in a different map order should return the same counter")
	}
}

func TestExportPrometheus(t *testing.T) {
	reg := NewRegistry()
	reg.Help("b_gauge", "A gauge.")
	reg.Gauge("b_gauge", map[string]string{"k": "z"}).Set(2)
	reg.Gauge("b_gauge", map[string]string{"k": "a"}).Set(1)
	reg.Counter("a_total", nil).Add(3)
	reg.Gauge("c_gauge", map[string]string{"msg": `say "hi"`}).Set(0.25)

	want := strings.Join([]string{
		"# TYPE a_total counter",
		"a_total 3",
		"# HELP b_gauge A gauge.",
		"# TYPE b_gauge gauge",
		`b_gauge{k="a"} 1`,
		`b_gauge{k="z"} 2`,
		"# TYPE c_gauge gauge",
		`c_gauge{msg="say \"hi\""} 0.25`,
		"",
	}, "\n")

	if got := reg.ExportPrometheus(); got != want {
		t.Errorf("ExportPrometheus() =\n%s\nwant\n%s", got, want)
	}
}

func sampleReport() *runner.Report {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &runner.Report{
		StartedAt:  start,
		FinishedAt: start.Add(2500 * time.Millisecond),
		Host:       host.Facts{Hostname: "web01"},
		Summary:    &runner.Summary{Total: 3, Passed: 2, Failed: 1, Pct: 66.7},
		Outcomes: []rules.Outcome{
			{RuleID: "ssh.banner", Domain: "ssh", Status: rules.StatusPass},
			{RuleID: "ssh.log-level", Domain: "ssh", Status: rules.StatusPass},
			{RuleID: "firewall.active", Domain: "firewall", Status: rules.StatusFail},
		},
		Stats: host.Stats{Commands: 12, Failures: 1},
	}
}

func TestFromReport(t *testing.T) {
	text := FromReport(sampleReport()).ExportPrometheus()

	for _, want := range []string{
		`hardenspec_rule_status{domain="firewall",rule="firewall.active",status="fail"} 1`,
		`hardenspec_rule_status{domain="ssh",rule="ssh.banner",status="pass"} 1`,
		`hardenspec_rules_total{status="pass"} 2`,
		`hardenspec_rules_total{status="fail"} 1`,
		`hardenspec_rules_total{status="error"} 0`,
		`hardenspec_rules_total{status="skip"} 0`,
		"hardenspec_run_duration_seconds 2.5",
		"hardenspec_commands_total 12",
		"hardenspec_command_failures_total 1",
		"hardenspec_compliance_ratio 0.6666",
		"# TYPE hardenspec_commands_total counter",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("export missing %q:\n%s", want, text)
		}
	}
}

func TestWriteTextfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "textfile", "hardenspec.prom")

	if err := WriteTextfile(path, FromReport(sampleReport())); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hardenspec_commands_total 12") {
		t.Errorf("file content = %s", data)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}
