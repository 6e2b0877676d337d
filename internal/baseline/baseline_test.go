package baseline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	herr "github.com/girste/hardenspec/internal/errors"
	"github.com/girste/hardenspec/internal/host"
	"github.com/girste/hardenspec/internal/rules"
	"github.com/girste/hardenspec/internal/runner"
)

func report(statuses map[string]rules.Status) *runner.Report {
	r := &runner.Report{
		RunID:      "run-1",
		Target:     "local://",
		Host:       host.Facts{Hostname: "test-host", Release: "Ubuntu 22.04.4 LTS", Kernel: "6.8.0"},
		FinishedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	for id, s := range statuses {
		r.Outcomes = append(r.Outcomes, rules.Outcome{RuleID: id, Status: s})
	}
	return r
}

func TestCreateBaseline(t *testing.T) {
	bl := Create(report(map[string]rules.Status{"ssh.banner": rules.StatusPass}), "1.0.0")

	if bl.Metadata.Hostname != "test-host" {
		t.Errorf("Expected hostname 'test-host', got '%s'", bl.Metadata.Hostname)
	}
	if bl.Metadata.Version != "1.0.0" {
		t.Errorf("Expected version '1.0.0', got '%s'", bl.Metadata.Version)
	}
	if bl.Metadata.Timestamp != "2026-03-01T12:00:00Z" {
		t.Errorf("Timestamp = %s", bl.Metadata.Timestamp)
	}
	if !strings.HasPrefix(bl.Signature, "sha256:") {
		t.Errorf("Signature = %q", bl.Signature)
	}
	if err := Verify(bl); err != nil {
		t.Errorf("fresh baseline does not verify: %v", err)
	}
}

func TestSignatureIgnoresMapOrder(t *testing.T) {
	statuses := map[string]rules.Status{}
	for _, id := range []string{"a.1", "b.2", "c.3", "d.4", "e.5", "f.6"} {
		statuses[id] = rules.StatusPass
	}
	first := Create(report(statuses), "1.0.0").Signature
	for i := 0; i < 10; i++ {
		if got := Create(report(statuses), "1.0.0").Signature; got != first {
			t.Fatalf("signature changed between identical baselines: %s vs %s", first, got)
		}
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "baseline.yaml")
	bl := Create(report(map[string]rules.Status{
		"ssh.banner":      rules.StatusPass,
		"firewall.active": rules.StatusFail,
	}), "1.0.0")

	if err := Save(bl, path); err != nil {
		t.Fatalf("Failed to save baseline: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("baseline mode = %o, want 600", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load baseline: %v", err)
	}
	if loaded.Outcomes["firewall.active"] != rules.StatusFail {
		t.Errorf("loaded outcomes = %v", loaded.Outcomes)
	}
}

func TestLoadTampered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.yaml")
	bl := Create(report(map[string]rules.Status{"firewall.active": rules.StatusFail}), "1.0.0")
	if err := Save(bl, path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	tampered := strings.Replace(string(data), "firewall.active: fail", "firewall.active: pass", 1)
	if tampered == string(data) {
		t.Fatalf("fixture did not contain the expected outcome line:\n%s", data)
	}
	if err := os.WriteFile(path, []byte(tampered), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); !herr.Is(err, herr.ErrSignature) {
		t.Errorf("Load(tampered) error = %v, want ErrSignature", err)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load(missing) should fail")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("outcomes: [not, a, map"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); !herr.Is(err, herr.ErrParseFailure) {
		t.Errorf("Load(bad) error = %v, want ErrParseFailure", err)
	}
}

func TestCompare(t *testing.T) {
	bl := Create(report(map[string]rules.Status{
		"ssh.banner":       rules.StatusPass,
		"firewall.active":  rules.StatusPass,
		"cron.allow":       rules.StatusFail,
		"mail.postfix-old": rules.StatusPass,
	}), "1.0.0")

	current := report(map[string]rules.Status{
		"ssh.banner":      rules.StatusPass,
		"firewall.active": rules.StatusFail,
		"cron.allow":      rules.StatusPass,
		"kernel.new":      rules.StatusError,
	})

	diff := Compare(bl, current)
	if diff.DriftCount != 4 {
		t.Fatalf("DriftCount = %d, drifts %+v", diff.DriftCount, diff.Drifts)
	}

	want := []struct {
		id   string
		kind ChangeType
	}{
		{"cron.allow", ChangeTypeModified},
		{"firewall.active", ChangeTypeModified},
		{"kernel.new", ChangeTypeAdded},
		{"mail.postfix-old", ChangeTypeRemoved},
	}
	for i, w := range want {
		if diff.Drifts[i].RuleID != w.id || diff.Drifts[i].ChangeType != w.kind {
			t.Errorf("drift %d = %+v, want %s %s", i, diff.Drifts[i], w.id, w.kind)
		}
	}

	if diff.Regressions != 2 {
		t.Errorf("Regressions = %d, want 2 (firewall.active, kernel.new)", diff.Regressions)
	}
	if diff.Drifts[1].Message != "firewall.active changed from pass to fail" {
		t.Errorf("Message = %q", diff.Drifts[1].Message)
	}
}

func TestCompareIdentical(t *testing.T) {
	statuses := map[string]rules.Status{"ssh.banner": rules.StatusPass, "cron.allow": rules.StatusSkip}
	diff := Compare(Create(report(statuses), "1.0.0"), report(statuses))
	if diff.DriftCount != 0 || len(diff.Drifts) != 0 {
		t.Errorf("identical runs drifted: %+v", diff.Drifts)
	}
}
