package hosttest

// Hardened returns a fake Ubuntu 22.04 host that satisfies every rule of the
// catalogue, including the immutable AIDE database.
func Hardened() *Transport {
	t := New().
		WithFile("/etc/os-release", 0644, "PRETTY_NAME=\"Ubuntu 22.04.4 LTS\"\nID=ubuntu\nID_LIKE=debian\nVERSION_CODENAME=jammy\n").
		WithPackage("apparmor-utils", "fail2ban", "libpam-pwquality", "aide", "postfix", "unattended-upgrades").
		WithFile("/etc/apt/apt.conf.d/50unattended-upgrades", 0644, `Unattended-Upgrade::Allowed-Origins {
	"${distro_id}:${distro_codename}";
	"${distro_id}:${distro_codename}-security";
	"${distro_id}:${distro_codename}-updates";
};
Unattended-Upgrade::Remove-Unused-Kernel-Packages "true";
Unattended-Upgrade::Remove-Unused-Dependencies "true";
Unattended-Upgrade::Automatic-Reboot "true";
Unattended-Upgrade::Automatic-Reboot-Time "02:00";
`).
		WithService("fail2ban", "enabled", true).
		WithFile("/etc/fail2ban/jail.local", 0644, "[DEFAULT]\nbantime = 1h\n\n[sshd]\nenabled=false\n").
		WithCommand("ufw status", 0, "Status: active\n\nTo                         Action      From\n--                         ------      ----\n22/tcp                     LIMIT       Anywhere\n").
		WithCommand("ufw status verbose", 0, "Status: active\nLogging: on (low)\nDefault: deny (incoming), deny (outgoing), disabled (routed)\nNew profiles: skip\n").
		WithFile("/etc/crontab", 0600, "SHELL=/bin/sh\n").
		WithDir("/etc/cron.hourly", 0700).
		WithDir("/etc/cron.daily", 0700).
		WithDir("/etc/cron.weekly", 0700).
		WithDir("/etc/cron.monthly", 0700).
		WithDir("/etc/cron.d", 0700).
		WithFile("/etc/cron.allow", 0600, "root\n").
		WithFile("/etc/ssh/sshd_config", 0600, `Include /etc/ssh/sshd_config.d/*.conf
PermitRootLogin no
AuthenticationMethods publickey
PasswordAuthentication no
Banner /etc/issue.net
AllowGroups sudo
MaxAuthTries 4
ClientAliveInterval 15
LoginGraceTime 60
LogLevel VERBOSE
`).
		WithFile("/etc/issue.net", 0644, "Authorized uses only. All activity may be monitored and reported.\n").
		WithFile("/etc/issue", 0644, "Authorized uses only. All activity may be monitored and reported.\n").
		WithDir("/etc/ssh/sshd_config.d", 0700).
		WithFile("/etc/ssh/ssh_config.d/99-hardening.conf", 0644, "Host *\n    HashKnownHosts yes\n").
		WithSysctl("kernel.yama.ptrace_scope", "2").
		WithSysctl("net.ipv4.conf.all.send_redirects", "0").
		WithSysctl("net.ipv4.conf.all.accept_redirects", "0").
		WithSysctl("net.ipv4.conf.default.accept_redirects", "0").
		WithSysctl("net.ipv6.conf.all.accept_redirects", "0").
		WithSysctl("net.ipv6.conf.default.accept_redirects", "0").
		WithSysctl("net.ipv4.conf.all.secure_redirects", "0").
		WithSysctl("net.ipv4.conf.default.secure_redirects", "0").
		WithSysctl("net.ipv4.conf.all.rp_filter", "1").
		WithFile("/etc/sysctl.d/99-hardening.conf", 0644, "kernel.yama.ptrace_scope=2\nnet.ipv4.conf.all.log_martians=1\n").
		WithFile("/etc/sudoers.d/99-hardening", 0440, "Defaults use_pty\nDefaults logfile=\"/var/log/sudo.log\"\n").
		WithFile("/etc/login.defs", 0644, "MAIL_DIR /var/mail\nPASS_MAX_DAYS\t365\nPASS_MIN_DAYS\t1\nUMASK\t\t027\n").
		WithFile("/etc/security/pwquality.conf", 0644, "minlen = 14\ndifok = 2\nminclass = 4\nmaxrepeat = 3\nmaxsequence = 3\nenforce_for_root\n").
		WithFile("/etc/security/faillock.conf", 0644, "# deny = 3\nunlock_time = 900\n").
		WithFile("/etc/security/pwhistory.conf", 0644, "enforce_for_root\n").
		WithFile("/usr/share/pam-configs/pwhistory", 0644, "Name: pwhistory\nPassword:\n\trequisite pam_pwhistory.so remember=24 use_authtok\n").
		WithFile("/etc/pam.d/common-auth", 0644, "auth\t[success=1 default=ignore]\tpam_unix.so try_first_pass\nauth\trequisite\tpam_deny.so\n").
		WithGroup("sudo", "sugroup").
		WithFile("/etc/default/apport", 0644, "enabled=0\n").
		WithService("apport", "masked", false).
		WithService("rsync", "masked", false).
		WithFile("/etc/systemd/journald.conf", 0644, "[Journal]\nStorage=persistent\nForwardToSyslog=no\n").
		WithFile("/etc/profile.d/tmout.sh", 0644, "readonly TMOUT=900\nexport TMOUT\n").
		WithCommand("passwd -S root", 0, "root L 01/01/2024 0 99999 7 -1\n").
		WithFile("/etc/security/limits.conf", 0644, "* hard core 0\n").
		WithFile("/etc/systemd/system/tmp.mount", 0644, "[Mount]\nWhat=tmpfs\nWhere=/tmp\nType=tmpfs\nOptions=mode=1777,strictatime,noexec,nosuid,nodev\n").
		WithFile("/etc/postfix/main.cf", 0644, "myhostname = localhost\ninet_interfaces = loopback-only\n").
		WithCommand("lsattr /var/lib/aide/aide.db", 0, "----i---------e------- /var/lib/aide/aide.db\n").
		WithFile("/etc/apt/apt.conf.d/99aide-update", 0644, "DPkg::Post-Invoke {\"if [ -x /usr/sbin/aideinit ]; then /usr/sbin/aideinit -y -f; fi\";};\n")
	return t
}
