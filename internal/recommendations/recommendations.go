// Package recommendations maps policy domains to remediation advice.
package recommendations

import "github.com/girste/hardenspec/internal/rules"

// ForDomain returns actionable advice for a failing rule of domain
func ForDomain(domain string) string {
	switch domain {
	case rules.DomainPackages:
		return "Install the required packages and purge the forbidden ones with apt"
	case rules.DomainAutoUpdates:
		return "Install unattended-upgrades and enable it in /etc/apt/apt.conf.d/"
	case rules.DomainIntrusionPrevention:
		return "Install fail2ban, configure /etc/fail2ban/jail.local and enable the service"
	case rules.DomainFirewall:
		return "Enable UFW: sudo ufw default deny incoming && sudo ufw allow ssh && sudo ufw enable"
	case rules.DomainCron:
		return "Restrict cron: chown root:root and chmod 0600/0700 the crontab files and directories"
	case rules.DomainSSH:
		return "Set the hardened directives in /etc/ssh/sshd_config, then validate with sshd -t and reload"
	case rules.DomainKernel:
		return "Set the parameters in /etc/sysctl.d/99-hardening.conf and apply with sysctl --system"
	case rules.DomainSudo:
		return "Set Defaults use_pty and logfile=/var/log/sudo.log in /etc/sudoers.d/99-hardening, then run visudo -c"
	case rules.DomainLogin:
		return "Set PASS_MAX_DAYS 365 and UMASK 027 in /etc/login.defs"
	case rules.DomainPasswordQuality:
		return "Install libpam-pwquality and set the minimum length and classes in /etc/security/pwquality.conf"
	case rules.DomainPAM:
		return "Configure pam_faillock and pam_pwhistory, create the sugroup and remove nullok from /etc/pam.d/common-auth"
	case rules.DomainServices:
		return "Disable services the host does not need: sudo systemctl disable --now <unit>"
	case rules.DomainLogging:
		return "Set Storage=persistent and ForwardToSyslog=no in /etc/systemd/journald.conf"
	case rules.DomainSession:
		return "Set an idle TMOUT in /etc/profile.d/ and mark it readonly"
	case rules.DomainAccounts:
		return "Lock the root password with passwd -l root"
	case rules.DomainCoreDumps:
		return "Add '* hard core 0' to /etc/security/limits.conf or a limits.d drop-in"
	case rules.DomainFilesystem:
		return "Mount /tmp with nodev,nosuid,noexec"
	case rules.DomainMail:
		return "Set inet_interfaces = loopback-only in /etc/postfix/main.cf"
	case rules.DomainFileIntegrity:
		return "Install AIDE, make its database immutable with chattr +i and add the post-upgrade hook"
	default:
		return "Review the rule message and restore the hardened configuration"
	}
}

// ForDrift returns advice for a rule whose status changed between runs.
// A regression needs fixing; an improvement only needs confirming.
func ForDrift(domain string, regression bool) string {
	if regression {
		return "Regressed since the last run. " + ForDomain(domain)
	}
	return "Verify the change was intentional and update the baseline"
}
