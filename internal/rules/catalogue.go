package rules

import (
	"os"
	"path"
	"strings"
)

// Policy domains. Grouping is for reading and filtering only.
const (
	DomainPackages            = "packages"
	DomainAutoUpdates         = "auto-updates"
	DomainIntrusionPrevention = "intrusion-prevention"
	DomainFirewall            = "firewall"
	DomainCron                = "cron"
	DomainSSH                 = "ssh"
	DomainKernel              = "kernel"
	DomainSudo                = "sudo"
	DomainLogin               = "login"
	DomainPasswordQuality     = "password-quality"
	DomainPAM                 = "pam"
	DomainServices            = "services"
	DomainLogging             = "logging"
	DomainSession             = "session"
	DomainAccounts            = "accounts"
	DomainCoreDumps           = "core-dumps"
	DomainFilesystem          = "filesystem"
	DomainMail                = "mail"
	DomainFileIntegrity       = "file-integrity"
)

// Inspected paths
const (
	unattendedUpgradesConf = "/etc/apt/apt.conf.d/50unattended-upgrades"
	fail2banJail           = "/etc/fail2ban/jail.local"
	sshdConfig             = "/etc/ssh/sshd_config"
	sshdConfigDir          = "/etc/ssh/sshd_config.d"
	sshHardeningDropIn     = "/etc/ssh/ssh_config.d/99-hardening.conf"
	sysctlDropIn           = "/etc/sysctl.d/99-hardening.conf"
	sudoersDropIn          = "/etc/sudoers.d/99-hardening"
	loginDefs              = "/etc/login.defs"
	pwqualityConf          = "/etc/security/pwquality.conf"
	faillockConf           = "/etc/security/faillock.conf"
	pwhistoryConf          = "/etc/security/pwhistory.conf"
	pwhistoryPamConfig     = "/usr/share/pam-configs/pwhistory"
	commonAuth             = "/etc/pam.d/common-auth"
	apportDefaults         = "/etc/default/apport"
	journaldConf           = "/etc/systemd/journald.conf"
	tmoutProfile           = "/etc/profile.d/tmout.sh"
	limitsConf             = "/etc/security/limits.conf"
	coreDumpDropIn         = "/etc/security/limits.d/99-disable-core.conf"
	tmpMountUnit           = "/etc/systemd/system/tmp.mount"
	postfixMainCf          = "/etc/postfix/main.cf"
	aideDatabase           = "/var/lib/aide/aide.db"
	aideUpgradeHook        = "/etc/apt/apt.conf.d/99aide-update"
	cronAllow              = "/etc/cron.allow"
)

var requiredPackages = []string{"apparmor-utils", "fail2ban", "libpam-pwquality", "aide", "postfix"}

var prohibitedPackages = []string{"ftp", "telnet", "rsyslog"}

var cronPermissions = []struct {
	path string
	mode os.FileMode
}{
	{"/etc/crontab", 0600},
	{"/etc/cron.hourly", 0700},
	{"/etc/cron.daily", 0700},
	{"/etc/cron.weekly", 0700},
	{"/etc/cron.monthly", 0700},
	{"/etc/cron.d", 0700},
}

var sshdDirectives = []struct {
	id, directive, description string
}{
	{"root-login-disabled", "PermitRootLogin no", "SSH root login is disabled"},
	{"publickey-only", "AuthenticationMethods publickey", "SSH only allows publickey authentication"},
	{"banner", "Banner /etc/issue.net", "SSH banner is configured"},
	{"allow-groups", "AllowGroups sudo", "SSH is restricted to the sudo group"},
	{"max-auth-tries", "MaxAuthTries 4", "SSH MaxAuthTries is set"},
	{"client-alive-interval", "ClientAliveInterval 15", "SSH ClientAliveInterval is set"},
	{"login-grace-time", "LoginGraceTime 60", "SSH LoginGraceTime is set"},
	{"log-level", "LogLevel VERBOSE", "SSH LogLevel is VERBOSE"},
}

var networkSysctls = []struct {
	param, value string
}{
	{"net.ipv4.conf.all.accept_redirects", "0"},
	{"net.ipv4.conf.default.accept_redirects", "0"},
	{"net.ipv6.conf.all.accept_redirects", "0"},
	{"net.ipv6.conf.default.accept_redirects", "0"},
	{"net.ipv4.conf.all.secure_redirects", "0"},
	{"net.ipv4.conf.default.secure_redirects", "0"},
	{"net.ipv4.conf.all.rp_filter", "1"},
}

var pwqualitySettings = []struct {
	setting, value string
}{
	{"difok", "2"},
	{"minclass", "4"},
	{"maxrepeat", "3"},
	{"maxsequence", "3"},
}

var tmpMountOptions = []string{"noexec", "nosuid", "nodev"}

// Catalogue returns the full rule set in report order. Each call builds
// fresh values so callers may modify the slice.
func Catalogue() []Rule {
	var rules []Rule
	for _, domain := range []func() []Rule{
		packageRules,
		autoUpdateRules,
		intrusionPreventionRules,
		firewallRules,
		cronRules,
		sshRules,
		kernelRules,
		sudoRules,
		loginRules,
		passwordQualityRules,
		pamRules,
		serviceRules,
		loggingRules,
		sessionRules,
		accountRules,
		coreDumpRules,
		filesystemRules,
		mailRules,
		fileIntegrityRules,
	} {
		rules = append(rules, domain()...)
	}
	return rules
}

func packageRules() []Rule {
	var rules []Rule
	for _, pkg := range requiredPackages {
		rules = append(rules, Rule{
			ID:          "packages.required." + pkg,
			Domain:      DomainPackages,
			Description: "Required security package " + pkg + " is installed",
			Check:       PackageInstalled(pkg),
		})
	}
	for _, pkg := range prohibitedPackages {
		rules = append(rules, Rule{
			ID:          "packages.prohibited." + pkg,
			Domain:      DomainPackages,
			Description: "Insecure package " + pkg + " is not installed",
			Check:       PackageAbsent(pkg),
		})
	}
	return rules
}

func autoUpdateRules() []Rule {
	return []Rule{
		{
			ID:          "auto-updates.installed",
			Domain:      DomainAutoUpdates,
			Description: "unattended-upgrades is installed",
			Check:       PackageInstalled("unattended-upgrades"),
		},
		{
			ID:          "auto-updates.updates-origin",
			Domain:      DomainAutoUpdates,
			Description: "Updates origin is enabled",
			Path:        unattendedUpgradesConf,
			Check:       FileContains(unattendedUpgradesConf, `${distro_codename}-updates"`),
		},
		{
			ID:          "auto-updates.remove-unused-dependencies",
			Domain:      DomainAutoUpdates,
			Description: "Unused dependency removal is enabled",
			Path:        unattendedUpgradesConf,
			Check:       FileContains(unattendedUpgradesConf, `Remove-Unused-Dependencies "true"`),
		},
		{
			ID:          "auto-updates.remove-unused-kernels",
			Domain:      DomainAutoUpdates,
			Description: "Unused kernel removal is enabled",
			Path:        unattendedUpgradesConf,
			Check:       FileContains(unattendedUpgradesConf, `Remove-Unused-Kernel-Packages "true"`),
		},
		{
			ID:          "auto-updates.automatic-reboot",
			Domain:      DomainAutoUpdates,
			Description: "Automatic reboot is enabled",
			Path:        unattendedUpgradesConf,
			Check:       FileContains(unattendedUpgradesConf, `Automatic-Reboot "true"`),
		},
		{
			ID:          "auto-updates.reboot-time",
			Domain:      DomainAutoUpdates,
			Description: "Reboot time is set to 02:00",
			Path:        unattendedUpgradesConf,
			Check:       FileContains(unattendedUpgradesConf, `Automatic-Reboot-Time "02:00"`),
		},
	}
}

func intrusionPreventionRules() []Rule {
	return []Rule{
		{
			ID:          "intrusion-prevention.fail2ban-installed",
			Domain:      DomainIntrusionPrevention,
			Description: "fail2ban is installed",
			Check:       PackageInstalled("fail2ban"),
		},
		{
			ID:          "intrusion-prevention.fail2ban-running",
			Domain:      DomainIntrusionPrevention,
			Description: "fail2ban service is enabled and running",
			Check:       ServiceEnabledAndRunning("fail2ban"),
		},
		{
			ID:          "intrusion-prevention.sshd-jail-disabled",
			Domain:      DomainIntrusionPrevention,
			Description: "fail2ban sshd jail is disabled (pubkey auth only)",
			Path:        fail2banJail,
			Check:       FileContains(fail2banJail, "[sshd]", "enabled=false"),
		},
	}
}

func firewallRules() []Rule {
	return []Rule{
		{
			ID:          "firewall.active",
			Domain:      DomainFirewall,
			Description: "UFW firewall is enabled",
			Check:       CommandOutputContains("ufw status", "Status: active"),
		},
		{
			ID:          "firewall.default-incoming-deny",
			Domain:      DomainFirewall,
			Description: "UFW default incoming policy is deny",
			Check:       CommandOutputContains("ufw status verbose", "Default: deny (incoming)"),
		},
		{
			ID:          "firewall.default-outgoing-deny",
			Domain:      DomainFirewall,
			Description: "UFW default outgoing policy is deny",
			Check:       CommandOutputContains("ufw status verbose", "deny (outgoing)"),
		},
		{
			ID:          "firewall.ssh-allowed",
			Domain:      DomainFirewall,
			Description: "SSH is allowed through UFW",
			Check:       CommandOutputContains("ufw status", "22/tcp", "OpenSSH"),
		},
	}
}

func cronRules() []Rule {
	var rules []Rule
	for _, c := range cronPermissions {
		rules = append(rules, Rule{
			ID:          "cron.permissions." + strings.ReplaceAll(path.Base(c.path), ".", "-"),
			Domain:      DomainCron,
			Description: c.path + " has restricted permissions",
			Path:        c.path,
			Check:       FileMode(c.path, c.mode),
		})
	}
	return append(rules, Rule{
		ID:          "cron.allow",
		Domain:      DomainCron,
		Description: "cron.allow exists and lists root",
		Path:        cronAllow,
		Check:       FileContains(cronAllow, "root"),
	})
}

func sshRules() []Rule {
	rules := []Rule{
		{
			ID:          "ssh.sshd-config-permissions",
			Domain:      DomainSSH,
			Description: "sshd_config has restricted permissions",
			Path:        sshdConfig,
			Check:       FileMode(sshdConfig, 0600),
		},
	}
	for _, d := range sshdDirectives {
		rules = append(rules, Rule{
			ID:          "ssh." + d.id,
			Domain:      DomainSSH,
			Description: d.description,
			Path:        sshdConfig,
			Check:       FileContains(sshdConfig, d.directive),
		})
	}
	return append(rules,
		Rule{
			ID:          "ssh.issue-net-exists",
			Domain:      DomainSSH,
			Description: "/etc/issue.net exists",
			Path:        "/etc/issue.net",
			Check:       FileExists("/etc/issue.net"),
		},
		Rule{
			ID:          "ssh.issue-exists",
			Domain:      DomainSSH,
			Description: "/etc/issue exists",
			Path:        "/etc/issue",
			Check:       FileExists("/etc/issue"),
		},
		Rule{
			ID:          "ssh.sshd-config-d-permissions",
			Domain:      DomainSSH,
			Description: "sshd_config.d directory has restricted permissions",
			Path:        sshdConfigDir,
			Check:       DirectoryMode(sshdConfigDir, 0700),
		},
		Rule{
			ID:          "ssh.hardening-drop-in",
			Domain:      DomainSSH,
			Description: "SSH hardening drop-in exists",
			Path:        sshHardeningDropIn,
			Check:       FileExists(sshHardeningDropIn),
		},
	)
}

// sysctlID turns net.ipv4.conf.all.accept_redirects into
// ipv4-all-accept-redirects.
func sysctlID(param string) string {
	id := strings.TrimPrefix(param, "net.")
	id = strings.Replace(id, ".conf.", ".", 1)
	return strings.NewReplacer(".", "-", "_", "-").Replace(id)
}

func kernelRules() []Rule {
	rules := []Rule{
		{
			ID:          "kernel.ptrace-scope",
			Domain:      DomainKernel,
			Description: "ptrace is restricted to admin only",
			Check:       CommandOutputContains("sysctl kernel.yama.ptrace_scope", "kernel.yama.ptrace_scope = 2"),
		},
		{
			ID:          "kernel.send-redirects",
			Domain:      DomainKernel,
			Description: "ICMP redirect sending is disabled",
			Check:       CommandOutputContains("sysctl net.ipv4.conf.all.send_redirects", "= 0"),
		},
	}
	for _, s := range networkSysctls {
		rules = append(rules, Rule{
			ID:          "kernel.network." + sysctlID(s.param),
			Domain:      DomainKernel,
			Description: s.param + " is " + s.value,
			Check:       CommandOutputContains("sysctl "+s.param, "= "+s.value),
		})
	}
	return append(rules,
		Rule{
			ID:          "kernel.log-martians-persisted",
			Domain:      DomainKernel,
			Description: "log_martians is configured in the sysctl drop-in",
			Path:        sysctlDropIn,
			Check:       FileContains(sysctlDropIn, "net.ipv4.conf.all.log_martians=1"),
		},
		Rule{
			ID:          "kernel.sysctl-drop-in",
			Domain:      DomainKernel,
			Description: "sysctl hardening drop-in exists",
			Path:        sysctlDropIn,
			Check:       FileExists(sysctlDropIn),
		},
	)
}

func sudoRules() []Rule {
	return []Rule{
		{
			ID:          "sudo.use-pty",
			Domain:      DomainSudo,
			Description: "sudo requires a PTY",
			Path:        sudoersDropIn,
			Check:       FileContains(sudoersDropIn, "Defaults use_pty"),
		},
		{
			ID:          "sudo.logfile",
			Domain:      DomainSudo,
			Description: "sudo logs to /var/log/sudo.log",
			Path:        sudoersDropIn,
			Check:       FileContains(sudoersDropIn, `logfile="/var/log/sudo.log"`),
		},
	}
}

func loginRules() []Rule {
	return []Rule{
		{
			ID:          "login.pass-max-days",
			Domain:      DomainLogin,
			Description: "Password max days is 365",
			Path:        loginDefs,
			Check:       CommandOutputContains("grep '^PASS_MAX_DAYS' "+loginDefs, "365"),
		},
		{
			ID:          "login.umask",
			Domain:      DomainLogin,
			Description: "Restrictive umask 027 is set",
			Path:        loginDefs,
			Check:       CommandOutputContains("grep '^UMASK' "+loginDefs, "027"),
		},
	}
}

func passwordQualityRules() []Rule {
	rules := []Rule{
		{
			ID:          "password-quality.minlen",
			Domain:      DomainPasswordQuality,
			Description: "Minimum password length is 14",
			Path:        pwqualityConf,
			Check:       FileContains(pwqualityConf, "minlen = 14"),
		},
	}
	for _, s := range pwqualitySettings {
		rules = append(rules, Rule{
			ID:          "password-quality." + s.setting,
			Domain:      DomainPasswordQuality,
			Description: "Password quality " + s.setting + " is " + s.value,
			Path:        pwqualityConf,
			Check:       FileContains(pwqualityConf, s.setting+" = "+s.value),
		})
	}
	return append(rules, Rule{
		ID:          "password-quality.enforce-for-root",
		Domain:      DomainPasswordQuality,
		Description: "Password quality is enforced for root",
		Path:        pwqualityConf,
		Check:       FileContains(pwqualityConf, "enforce_for_root"),
	})
}

func pamRules() []Rule {
	return []Rule{
		{
			ID:          "pam.faillock-config",
			Domain:      DomainPAM,
			Description: "pam_faillock configuration exists",
			Path:        faillockConf,
			Check:       FileExists(faillockConf),
		},
		{
			// The provisioning role keeps the shipped deny default, so the
			// commented directive is accepted.
			ID:          "pam.faillock-deny",
			Domain:      DomainPAM,
			Description: "faillock.conf mentions deny (commented default is acceptable)",
			Path:        faillockConf,
			Check:       FileContains(faillockConf, "deny"),
		},
		{
			ID:          "pam.faillock-unlock-time",
			Domain:      DomainPAM,
			Description: "faillock unlock time is 900",
			Path:        faillockConf,
			Check:       FileContains(faillockConf, "unlock_time = 900"),
		},
		{
			ID:          "pam.pwhistory-config",
			Domain:      DomainPAM,
			Description: "pam_pwhistory configuration exists",
			Path:        pwhistoryConf,
			Check:       FileExists(pwhistoryConf),
		},
		{
			ID:          "pam.pwhistory-remember",
			Domain:      DomainPAM,
			Description: "Password history remembers 24 passwords",
			Path:        pwhistoryPamConfig,
			Check:       FileContains(pwhistoryPamConfig, "remember=24"),
		},
		{
			ID:          "pam.common-auth-no-nullok",
			Domain:      DomainPAM,
			Description: "nullok is removed from common-auth",
			Path:        commonAuth,
			Check: CommandFindsNothing("grep -E 'pam_unix.*nullok' "+commonAuth,
				"pam_unix nullok in "+commonAuth),
		},
		{
			ID:          "pam.sugroup",
			Domain:      DomainPAM,
			Description: "sugroup exists",
			Check:       GroupExists("sugroup"),
		},
	}
}

func serviceRules() []Rule {
	return []Rule{
		{
			ID:          "services.apport-disabled",
			Domain:      DomainServices,
			Description: "apport is disabled (if installed)",
			Path:        apportDefaults,
			Check:       IfFileExists(apportDefaults, FileContains(apportDefaults, "enabled=0")),
		},
		{
			ID:          "services.apport-masked",
			Domain:      DomainServices,
			Description: "apport service is not enabled (if installed)",
			Check:       IfServiceExists("apport", ServiceNotEnabled("apport")),
		},
		{
			ID:          "services.rsync-masked",
			Domain:      DomainServices,
			Description: "rsync service is not enabled",
			Check:       ServiceNotEnabled("rsync"),
		},
	}
}

func loggingRules() []Rule {
	return []Rule{
		{
			ID:          "logging.journald-no-forward-syslog",
			Domain:      DomainLogging,
			Description: "journald does not forward to syslog",
			Path:        journaldConf,
			Check:       FileContains(journaldConf, "ForwardToSyslog=no"),
		},
		{
			ID:          "logging.journald-persistent",
			Domain:      DomainLogging,
			Description: "journald uses persistent storage",
			Path:        journaldConf,
			Check:       FileContains(journaldConf, "Storage=persistent"),
		},
	}
}

func sessionRules() []Rule {
	return []Rule{
		{
			ID:          "session.shell-timeout",
			Domain:      DomainSession,
			Description: "Shell idle timeout is configured",
			Path:        tmoutProfile,
			Check:       FileContains(tmoutProfile, "TMOUT="),
		},
	}
}

func accountRules() []Rule {
	return []Rule{
		{
			ID:          "accounts.root-locked",
			Domain:      DomainAccounts,
			Description: "root account is locked",
			Check:       AccountLocked("root"),
		},
	}
}

func coreDumpRules() []Rule {
	return []Rule{
		{
			ID:          "core-dumps.disabled",
			Domain:      DomainCoreDumps,
			Description: "Core dumps are disabled via limits.conf or a drop-in",
			Path:        limitsConf,
			Check: AnyOf(
				FileContains(limitsConf, "* hard core 0"),
				FileExists(coreDumpDropIn),
			),
		},
	}
}

func filesystemRules() []Rule {
	var rules []Rule
	for _, opt := range tmpMountOptions {
		rules = append(rules, Rule{
			ID:          "filesystem.tmp-" + opt,
			Domain:      DomainFilesystem,
			Description: "/tmp is mounted with " + opt + " (if tmp.mount exists)",
			Path:        tmpMountUnit,
			Check:       IfFileExists(tmpMountUnit, FileContains(tmpMountUnit, opt)),
		})
	}
	return rules
}

func mailRules() []Rule {
	return []Rule{
		{
			ID:          "mail.postfix-loopback-only",
			Domain:      DomainMail,
			Description: "postfix listens on loopback only",
			Path:        postfixMainCf,
			Check:       FileContains(postfixMainCf, "inet_interfaces = loopback-only"),
		},
	}
}

func fileIntegrityRules() []Rule {
	return []Rule{
		{
			ID:          "file-integrity.aide-db-immutable",
			Domain:      DomainFileIntegrity,
			Description: "AIDE database has the immutable attribute",
			Path:        aideDatabase,
			SkipReason:  "chattr not supported on Docker overlay filesystem",
			Check:       FileAttribute(aideDatabase, 'i'),
		},
		{
			ID:          "file-integrity.aide-post-upgrade-hook",
			Domain:      DomainFileIntegrity,
			Description: "AIDE post-upgrade hook is installed",
			Path:        aideUpgradeHook,
			Check:       FileContains(aideUpgradeHook, "DPkg::Post-Invoke", "aideinit"),
		},
	}
}
