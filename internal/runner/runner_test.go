package runner

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/girste/hardenspec/internal/config"
	"github.com/girste/hardenspec/internal/host"
	"github.com/girste/hardenspec/internal/host/hosttest"
	"github.com/girste/hardenspec/internal/rules"
	"go.uber.org/zap"
)

func newRunner(cfg *config.Config) *Runner {
	return New(cfg).WithLogger(zap.NewNop())
}

func newHost(fake *hosttest.Transport) *host.Host {
	return host.New(fake, host.Options{Sudo: config.SudoNever})
}

func fixed(status rules.Status, msg string) rules.CheckFunc {
	return func(context.Context, *host.Host) (rules.Status, string, error) {
		return status, msg, nil
	}
}

func TestRunHardenedHost(t *testing.T) {
	cfg := config.Default()
	cfg.MaxConcurrency = 4

	report, err := newRunner(cfg).Run(context.Background(), newHost(hosttest.Hardened()), rules.Catalogue())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.ExitCode() != 0 {
		t.Errorf("ExitCode() = %d, failures: %+v", report.ExitCode(), report.Failures())
	}
	if report.Summary.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1 (AIDE immutability)", report.Summary.Skipped)
	}
	if report.Summary.Pct != 100 {
		t.Errorf("Pct = %v, want 100", report.Summary.Pct)
	}
	if report.Host.Hostname != "fake-host" || report.Host.Distro != "ubuntu" {
		t.Errorf("Host = %+v", report.Host)
	}
	if report.RunID == "" || report.Transport != "fake" {
		t.Errorf("RunID = %q, Transport = %q", report.RunID, report.Transport)
	}
	if report.Stats.Commands == 0 {
		t.Error("Stats.Commands = 0, want the commands issued by the run")
	}

	catalogue := rules.Catalogue()
	for i, o := range report.Outcomes {
		if o.RuleID != catalogue[i].ID {
			t.Fatalf("outcome %d is %s, want catalogue order (%s)", i, o.RuleID, catalogue[i].ID)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	cfg := config.Default()
	cfg.MaxConcurrency = 8
	fake := hosttest.Hardened().WithCommand("ufw status", 0, "Status: inactive\n")

	first, err := newRunner(cfg).Run(context.Background(), newHost(fake), rules.Catalogue())
	if err != nil {
		t.Fatal(err)
	}
	second, err := newRunner(cfg).Run(context.Background(), newHost(fake), rules.Catalogue())
	if err != nil {
		t.Fatal(err)
	}

	for i := range first.Outcomes {
		a, b := first.Outcomes[i], second.Outcomes[i]
		if a.RuleID != b.RuleID || a.Status != b.Status || a.Message != b.Message {
			t.Errorf("run differs at %s: %s %q vs %s %q", a.RuleID, a.Status, a.Message, b.Status, b.Message)
		}
	}
	if first.ExitCode() != 1 {
		t.Errorf("ExitCode() = %d, want 1 with an inactive firewall", first.ExitCode())
	}
}

func TestEvaluate(t *testing.T) {
	cfg := config.Default()
	cfg.Exceptions = []config.Exception{{ID: "firewall.*", Reason: "managed upstream"}}
	cfg.ForceRules = []string{"file-integrity.forced"}
	r := newRunner(cfg)
	h := newHost(hosttest.New())

	tests := []struct {
		name    string
		rule    rules.Rule
		want    rules.Status
		wantMsg string
	}{
		{
			name: "pass",
			rule: rules.Rule{ID: "ssh.x", Check: fixed(rules.StatusPass, "ok")},
			want: rules.StatusPass, wantMsg: "ok",
		},
		{
			name: "excepted failure",
			rule: rules.Rule{ID: "firewall.active", Check: fixed(rules.StatusFail, "inactive")},
			want: rules.StatusSkip, wantMsg: "excepted: managed upstream",
		},
		{
			name: "skip reason",
			rule: rules.Rule{ID: "file-integrity.x", SkipReason: "not here", Check: fixed(rules.StatusFail, "")},
			want: rules.StatusSkip, wantMsg: "not here",
		},
		{
			name: "forced past skip reason",
			rule: rules.Rule{ID: "file-integrity.forced", SkipReason: "not here", Check: fixed(rules.StatusFail, "bad")},
			want: rules.StatusFail, wantMsg: "bad",
		},
		{
			name: "check error",
			rule: rules.Rule{ID: "kernel.x", Check: func(context.Context, *host.Host) (rules.Status, string, error) {
				return rules.StatusPass, "", errors.New("transport gone")
			}},
			want: rules.StatusError, wantMsg: "transport gone",
		},
		{
			name: "panic",
			rule: rules.Rule{ID: "kernel.y", Check: func(context.Context, *host.Host) (rules.Status, string, error) {
				panic("boom")
			}},
			want: rules.StatusError, wantMsg: "check panicked: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := r.Evaluate(context.Background(), h, tt.rule)
			if out.Status != tt.want || out.Message != tt.wantMsg {
				t.Errorf("Evaluate() = %s %q, want %s %q", out.Status, out.Message, tt.want, tt.wantMsg)
			}
			if out.RuleID != tt.rule.ID {
				t.Errorf("RuleID = %q", out.RuleID)
			}
		})
	}
}

func TestEvaluateRuleTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.Timeouts.Rule = 1
	r := newRunner(cfg)

	rule := rules.Rule{ID: "kernel.slow", Check: func(ctx context.Context, _ *host.Host) (rules.Status, string, error) {
		<-ctx.Done()
		return rules.StatusError, "", ctx.Err()
	}}

	start := time.Now()
	out := r.Evaluate(context.Background(), newHost(hosttest.New()), rule)
	if out.Status != rules.StatusError || !strings.Contains(out.Message, "deadline exceeded") {
		t.Errorf("Evaluate() = %s %q, want a deadline error", out.Status, out.Message)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("timeout took %v", time.Since(start))
	}
}

func TestConcurrencyBound(t *testing.T) {
	cfg := config.Default()
	cfg.MaxConcurrency = 2

	var running, peak int32
	check := func(context.Context, *host.Host) (rules.Status, string, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return rules.StatusPass, "", nil
	}

	var ruleSet []rules.Rule
	for _, id := range []string{"a.1", "a.2", "a.3", "a.4", "a.5", "a.6"} {
		ruleSet = append(ruleSet, rules.Rule{ID: id, Domain: "a", Check: check})
	}

	report, err := newRunner(cfg).Run(context.Background(), newHost(hosttest.New()), ruleSet)
	if err != nil {
		t.Fatal(err)
	}
	if peak > 2 {
		t.Errorf("peak concurrency = %d, want at most 2", peak)
	}
	if report.Summary.Passed != 6 {
		t.Errorf("Passed = %d, want 6", report.Summary.Passed)
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newRunner(config.Default()).Run(ctx, newHost(hosttest.New()), rules.Catalogue()); err == nil {
		t.Error("Run() with a cancelled context should fail")
	}
}

func TestRunMasksHostname(t *testing.T) {
	cfg := config.Default()
	cfg.Output.MaskHostname = true
	ruleSet := []rules.Rule{{ID: "a.1", Domain: "a", Check: fixed(rules.StatusPass, "")}}

	report, err := newRunner(cfg).Run(context.Background(), newHost(hosttest.New()), ruleSet)
	if err != nil {
		t.Fatal(err)
	}
	if report.Host.Hostname == "fake-host" {
		t.Error("hostname was not masked")
	}
}

func TestSummarize(t *testing.T) {
	outcomes := []rules.Outcome{
		{RuleID: "a.1", Domain: "a", Status: rules.StatusPass},
		{RuleID: "a.2", Domain: "a", Status: rules.StatusFail},
		{RuleID: "a.3", Domain: "a", Status: rules.StatusSkip},
		{RuleID: "b.1", Domain: "b", Status: rules.StatusPass},
		{RuleID: "b.2", Domain: "b", Status: rules.StatusError},
		{RuleID: "b.3", Domain: "b", Status: rules.StatusPass},
	}

	summary, domains := summarize(outcomes)
	want := Summary{Total: 6, Passed: 3, Failed: 1, Errored: 1, Skipped: 1, Pct: 60}
	if *summary != want {
		t.Errorf("summary = %+v, want %+v", *summary, want)
	}

	wantDomains := []DomainSummary{
		{Name: "a", Passed: 1, Total: 2, Pct: 50},
		{Name: "b", Passed: 2, Total: 3, Pct: 66.7},
	}
	if len(domains) != len(wantDomains) {
		t.Fatalf("domains = %+v", domains)
	}
	for i := range wantDomains {
		if domains[i] != wantDomains[i] {
			t.Errorf("domain %d = %+v, want %+v", i, domains[i], wantDomains[i])
		}
	}

	empty, _ := summarize(nil)
	if empty.Pct != 0 {
		t.Errorf("empty Pct = %v", empty.Pct)
	}
}
