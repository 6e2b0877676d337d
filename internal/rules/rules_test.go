package rules

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/girste/hardenspec/internal/config"
	"github.com/girste/hardenspec/internal/host"
	"github.com/girste/hardenspec/internal/host/hosttest"
)

func newHost(t *hosttest.Transport) *host.Host {
	return host.New(t, host.Options{Sudo: config.SudoNever})
}

func evaluate(t *testing.T, h *host.Host, id string) (Status, string) {
	t.Helper()
	rule, ok := Find(Catalogue(), id)
	if !ok {
		t.Fatalf("rule %s not in catalogue", id)
	}
	status, msg, err := rule.Check(context.Background(), h)
	if err != nil {
		return StatusError, err.Error()
	}
	return status, msg
}

func TestCatalogueShape(t *testing.T) {
	rules := Catalogue()

	idPattern := regexp.MustCompile(`^[a-z0-9-]+(\.[a-z0-9-]+)+$`)
	seen := make(map[string]bool)
	for _, r := range rules {
		if seen[r.ID] {
			t.Errorf("duplicate rule ID %s", r.ID)
		}
		seen[r.ID] = true
		if !idPattern.MatchString(r.ID) {
			t.Errorf("rule ID %q is not a dotted lower-case identifier", r.ID)
		}
		if !strings.HasPrefix(r.ID, r.Domain+".") {
			t.Errorf("rule %s is not prefixed by its domain %s", r.ID, r.Domain)
		}
		if r.Description == "" || r.Check == nil {
			t.Errorf("rule %s lacks a description or check", r.ID)
		}
	}

	if got := len(Domains(rules)); got != 19 {
		t.Errorf("Domains() = %d domains, want 19", got)
	}

	for _, id := range []string{
		"packages.required.apparmor-utils",
		"packages.prohibited.rsyslog",
		"cron.permissions.cron-daily",
		"kernel.network.ipv6-default-accept-redirects",
		"kernel.network.ipv4-all-rp-filter",
		"password-quality.maxsequence",
		"filesystem.tmp-nodev",
	} {
		if !seen[id] {
			t.Errorf("catalogue lacks %s", id)
		}
	}

	var skipped []string
	for _, r := range rules {
		if r.SkipReason != "" {
			skipped = append(skipped, r.ID)
		}
	}
	if len(skipped) != 1 || skipped[0] != "file-integrity.aide-db-immutable" {
		t.Errorf("skipped rules = %v, want only the AIDE immutability check", skipped)
	}
}

func TestHardenedHostPassesEveryRule(t *testing.T) {
	h := newHost(hosttest.Hardened())
	for _, r := range Catalogue() {
		status, msg, err := r.Check(context.Background(), h)
		if err != nil || status != StatusPass {
			t.Errorf("%s = %s %q (err %v), want pass", r.ID, status, msg, err)
		}
	}
}

func TestApportConditional(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*hosttest.Transport)
		want    Status
		wantMsg string
	}{
		{
			name:    "file absent",
			setup:   func(f *hosttest.Transport) { f.Remove("/etc/default/apport") },
			want:    StatusPass,
			wantMsg: "/etc/default/apport not present",
		},
		{
			name:  "file disables apport",
			setup: func(f *hosttest.Transport) { f.WithFile("/etc/default/apport", 0644, "# set to 0\nenabled=0\n") },
			want:  StatusPass,
		},
		{
			name:    "file enables apport",
			setup:   func(f *hosttest.Transport) { f.WithFile("/etc/default/apport", 0644, "enabled=1\n") },
			want:    StatusFail,
			wantMsg: `"enabled=0" not found in /etc/default/apport`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := hosttest.Hardened()
			tt.setup(fake)
			status, msg := evaluate(t, newHost(fake), "services.apport-disabled")
			if status != tt.want {
				t.Errorf("status = %s (%s), want %s", status, msg, tt.want)
			}
			if tt.wantMsg != "" && msg != tt.wantMsg {
				t.Errorf("message = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestApportServiceConditional(t *testing.T) {
	fake := hosttest.New()
	if status, msg := evaluate(t, newHost(fake), "services.apport-masked"); status != StatusPass {
		t.Errorf("missing apport service = %s (%s), want pass", status, msg)
	}

	fake = hosttest.New().WithService("apport", "enabled", true)
	if status, _ := evaluate(t, newHost(fake), "services.apport-masked"); status != StatusFail {
		t.Errorf("enabled apport service = %s, want fail", status)
	}
}

func TestScenarioSSHDConfig(t *testing.T) {
	fake := hosttest.New().WithFile("/etc/ssh/sshd_config", 0600, "PermitRootLogin no\n")
	h := newHost(fake)

	if status, msg := evaluate(t, h, "ssh.root-login-disabled"); status != StatusPass {
		t.Errorf("root login rule = %s (%s), want pass", status, msg)
	}
	if status, msg := evaluate(t, h, "ssh.sshd-config-permissions"); status != StatusPass {
		t.Errorf("permission rule = %s (%s), want pass", status, msg)
	}
}

func TestScenarioFirewallInactive(t *testing.T) {
	fake := hosttest.Hardened().WithCommand("ufw status", 0, "Status: inactive\n")
	status, msg := evaluate(t, newHost(fake), "firewall.active")
	if status != StatusFail {
		t.Fatalf("status = %s, want fail", status)
	}
	if want := `"Status: active" not found in output of "ufw status"`; msg != want {
		t.Errorf("message = %q, want %q", msg, want)
	}
}

func TestScenarioCronDailyMode(t *testing.T) {
	fake := hosttest.Hardened().WithDir("/etc/cron.daily", 0755)
	status, msg := evaluate(t, newHost(fake), "cron.permissions.cron-daily")
	if status != StatusFail {
		t.Fatalf("status = %s, want fail", status)
	}
	if want := "/etc/cron.daily: expected mode 0o700, got 0o755"; msg != want {
		t.Errorf("message = %q, want %q", msg, want)
	}
}

func TestScenarioRootNotLocked(t *testing.T) {
	fake := hosttest.Hardened().WithCommand("passwd -S root", 0, "root P 01/01/2024 0 99999 7 -1\n")
	status, msg := evaluate(t, newHost(fake), "accounts.root-locked")
	if status != StatusFail {
		t.Fatalf("status = %s, want fail", status)
	}
	if want := `root account status "P" not in [L LK]`; msg != want {
		t.Errorf("message = %q, want %q", msg, want)
	}
}

func TestRootLockedVariants(t *testing.T) {
	tests := []struct {
		name   string
		rc     int
		stdout string
		want   Status
	}{
		{"locked L", 0, "root L 01/01/2024 0 99999 7 -1\n", StatusPass},
		{"locked LK", 0, "root LK 2024-01-01 0 99999 7 -1 (Password locked.)\n", StatusPass},
		{"no password", 0, "root NP 01/01/2024 0 99999 7 -1\n", StatusFail},
		{"passwd failed", 1, "", StatusFail},
		{"short output", 0, "root\n", StatusFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := hosttest.New().WithCommand("passwd -S root", tt.rc, tt.stdout)
			if status, msg := evaluate(t, newHost(fake), "accounts.root-locked"); status != tt.want {
				t.Errorf("status = %s (%s), want %s", status, msg, tt.want)
			}
		})
	}
}

func TestNullok(t *testing.T) {
	tests := []struct {
		name    string
		content string
		missing bool
		want    Status
	}{
		{"absent", "auth required pam_unix.so\n", false, StatusPass},
		{"present", "auth [success=1 default=ignore] pam_unix.so nullok\n", false, StatusFail},
		{"other module", "auth optional pam_foo.so nullok\n", false, StatusPass},
		{"file missing", "", true, StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := hosttest.New()
			if !tt.missing {
				fake.WithFile("/etc/pam.d/common-auth", 0644, tt.content)
			}
			if status, msg := evaluate(t, newHost(fake), "pam.common-auth-no-nullok"); status != tt.want {
				t.Errorf("status = %s (%s), want %s", status, msg, tt.want)
			}
		})
	}
}

func TestFaillockDenyAcceptsCommentedDefault(t *testing.T) {
	fake := hosttest.New().WithFile("/etc/security/faillock.conf", 0644, "# deny = 3\n")
	if status, _ := evaluate(t, newHost(fake), "pam.faillock-deny"); status != StatusPass {
		t.Errorf("status = %s, want pass for a commented deny", status)
	}
}

func TestCoreDumps(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*hosttest.Transport)
		want  Status
	}{
		{"limits.conf only", func(f *hosttest.Transport) {
			f.WithFile("/etc/security/limits.conf", 0644, "* hard core 0\n")
		}, StatusPass},
		{"drop-in only", func(f *hosttest.Transport) {
			f.WithFile("/etc/security/limits.conf", 0644, "# empty\n").
				WithFile("/etc/security/limits.d/99-disable-core.conf", 0644, "* hard core 0\n")
		}, StatusPass},
		{"drop-in without limits.conf", func(f *hosttest.Transport) {
			f.WithFile("/etc/security/limits.d/99-disable-core.conf", 0644, "* hard core 0\n")
		}, StatusPass},
		{"neither", func(f *hosttest.Transport) {
			f.WithFile("/etc/security/limits.conf", 0644, "* soft core 0\n")
		}, StatusFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := hosttest.New()
			tt.setup(fake)
			if status, msg := evaluate(t, newHost(fake), "core-dumps.disabled"); status != tt.want {
				t.Errorf("status = %s (%s), want %s", status, msg, tt.want)
			}
		})
	}
}

func TestTmpMountConditional(t *testing.T) {
	fake := hosttest.New()
	for _, id := range []string{"filesystem.tmp-noexec", "filesystem.tmp-nosuid", "filesystem.tmp-nodev"} {
		if status, _ := evaluate(t, newHost(fake), id); status != StatusPass {
			t.Errorf("%s without tmp.mount = %s, want pass", id, status)
		}
	}

	fake.WithFile("/etc/systemd/system/tmp.mount", 0644, "Options=mode=1777,nosuid\n")
	h := newHost(fake)
	if status, _ := evaluate(t, h, "filesystem.tmp-nosuid"); status != StatusPass {
		t.Errorf("tmp-nosuid = %s, want pass", status)
	}
	if status, _ := evaluate(t, h, "filesystem.tmp-noexec"); status != StatusFail {
		t.Errorf("tmp-noexec = %s, want fail", status)
	}
}

func TestFirewallSSHAllowedEitherForm(t *testing.T) {
	for _, out := range []string{"22/tcp ALLOW Anywhere\n", "OpenSSH ALLOW Anywhere\n"} {
		fake := hosttest.New().WithCommand("ufw status", 0, "Status: active\n"+out)
		if status, _ := evaluate(t, newHost(fake), "firewall.ssh-allowed"); status != StatusPass {
			t.Errorf("ufw output %q = %s, want pass", out, status)
		}
	}

	fake := hosttest.New().WithCommand("ufw status", 0, "Status: active\n80/tcp ALLOW Anywhere\n")
	status, msg := evaluate(t, newHost(fake), "firewall.ssh-allowed")
	if status != StatusFail || !strings.Contains(msg, "none of") {
		t.Errorf("status = %s %q, want fail naming both forms", status, msg)
	}
}

func TestMissingToolIsError(t *testing.T) {
	// ufw not installed: the shell answers 127
	fake := hosttest.New()
	status, msg := evaluate(t, newHost(fake), "firewall.active")
	if status != StatusError {
		t.Errorf("status = %s (%s), want error", status, msg)
	}
}

func TestMissingQueryToolIsError(t *testing.T) {
	tests := []struct {
		id   string
		fake *hosttest.Transport
	}{
		{"packages.prohibited.ftp", hosttest.New().WithCommand("dpkg-query -W -f='${Status}' ftp", 127, "")},
		{"packages.required.aide", hosttest.New().WithCommand("dpkg-query -W -f='${Status}' aide", 127, "")},
		{"services.rsync-masked", hosttest.New().WithCommand("systemctl is-enabled rsync.service", 127, "")},
		{"services.apport-masked", hosttest.New().
			WithCommand("systemctl list-unit-files --no-legend --no-pager apport.service", 127, "")},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if status, msg := evaluate(t, newHost(tt.fake), tt.id); status != StatusError {
				t.Errorf("status = %s (%s), want error", status, msg)
			}
		})
	}
}

func TestMultiStepStopsAtFirstFailure(t *testing.T) {
	fake := hosttest.New().WithFile("/etc/fail2ban/jail.local", 0644, "[DEFAULT]\nenabled=false\n")
	status, msg := evaluate(t, newHost(fake), "intrusion-prevention.sshd-jail-disabled")
	if status != StatusFail || msg != `"[sshd]" not found in /etc/fail2ban/jail.local` {
		t.Errorf("got %s %q", status, msg)
	}

	fake = hosttest.New()
	status, msg = evaluate(t, newHost(fake), "intrusion-prevention.sshd-jail-disabled")
	if status != StatusFail || msg != "/etc/fail2ban/jail.local does not exist" {
		t.Errorf("got %s %q", status, msg)
	}

	fake = hosttest.New().WithService("fail2ban", "enabled", false)
	status, msg = evaluate(t, newHost(fake), "intrusion-prevention.fail2ban-running")
	if status != StatusFail || msg != "fail2ban.service is not running" {
		t.Errorf("got %s %q", status, msg)
	}
}

func TestDirectoryModeRequiresDirectory(t *testing.T) {
	fake := hosttest.New().WithFile("/etc/ssh/sshd_config.d", 0700, "")
	status, msg := evaluate(t, newHost(fake), "ssh.sshd-config-d-permissions")
	if status != StatusFail || msg != "/etc/ssh/sshd_config.d is not a directory" {
		t.Errorf("got %s %q", status, msg)
	}
}

func TestUnreadableFileIsError(t *testing.T) {
	fake := hosttest.New().WithEntry("/etc/sudoers.d/99-hardening", hosttest.File{Mode: 0440, Unreadable: true})
	if status, _ := evaluate(t, newHost(fake), "sudo.use-pty"); status != StatusError {
		t.Errorf("status = %s, want error", status)
	}
}

func TestUnsearchableDropInIsError(t *testing.T) {
	fake := hosttest.New().
		WithEntry("/etc/sudoers.d/99-hardening", hosttest.File{Mode: 0440, Content: "Defaults use_pty\n", Unsearchable: true})
	for _, id := range []string{"sudo.use-pty", "sudo.logfile"} {
		if status, msg := evaluate(t, newHost(fake), id); status != StatusError {
			t.Errorf("%s status = %s (%s), want error", id, status, msg)
		}
	}
}

func TestAIDEImmutable(t *testing.T) {
	fake := hosttest.New().WithCommand("lsattr /var/lib/aide/aide.db", 0, "--------------e------- /var/lib/aide/aide.db\n")
	status, msg := evaluate(t, newHost(fake), "file-integrity.aide-db-immutable")
	if status != StatusFail {
		t.Errorf("status = %s (%s), want fail", status, msg)
	}
}

func TestIdempotence(t *testing.T) {
	fake := hosttest.Hardened().
		WithCommand("ufw status", 0, "Status: inactive\n").
		WithDir("/etc/cron.weekly", 0755)
	h := newHost(fake)

	run := func() map[string]Status {
		out := make(map[string]Status)
		for _, r := range Catalogue() {
			status, _, err := r.Check(context.Background(), h)
			if err != nil {
				status = StatusError
			}
			out[r.ID] = status
		}
		return out
	}

	first, second := run(), run()
	for id, status := range first {
		if second[id] != status {
			t.Errorf("%s: first run %s, second run %s", id, status, second[id])
		}
	}
}

func TestChecksAreReadOnly(t *testing.T) {
	fake := hosttest.Hardened()
	h := newHost(fake)
	for _, r := range Catalogue() {
		_, _, _ = r.Check(context.Background(), h)
	}

	guard := host.NewGuard()
	for _, cmd := range fake.Calls() {
		if err := guard.Check(cmd); err != nil {
			t.Errorf("catalogue sent a command outside the read-only set: %v", err)
		}
	}
	if h.Stats().Rejected != 0 {
		t.Errorf("Rejected = %d, want 0", h.Stats().Rejected)
	}
}
