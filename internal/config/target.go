package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ApplyTargetURL overrides the target with a URL of the form local://,
// nsenter://, docker://<container> or ssh://[user@]host[:port]. The query
// parameters sudo and identity set the privilege mode and the ssh key file.
// Fields the URL does not mention keep their configured values.
func (c *Config) ApplyTargetURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid target URL %q: %w", raw, err)
	}

	t := c.Target
	switch u.Scheme {
	case TransportLocal, TransportNsenter, TransportAuto:
		if u.Host != "" {
			return fmt.Errorf("invalid target URL %q: %s:// takes no host", raw, u.Scheme)
		}
	case TransportDocker:
		if u.Host == "" {
			return fmt.Errorf("invalid target URL %q: missing container name", raw)
		}
		t.Container = u.Host
	case TransportSSH:
		if u.Hostname() == "" {
			return fmt.Errorf("invalid target URL %q: missing host", raw)
		}
		t.Host = u.Hostname()
		if p := u.Port(); p != "" {
			port, err := strconv.Atoi(p)
			if err != nil {
				return fmt.Errorf("invalid target URL %q: bad port %q", raw, p)
			}
			t.Port = port
		}
		if u.User != nil && u.User.Username() != "" {
			t.User = u.User.Username()
		}
	default:
		return fmt.Errorf("invalid target URL %q: unknown scheme %q", raw, u.Scheme)
	}
	t.Transport = u.Scheme

	q := u.Query()
	if s := q.Get("sudo"); s != "" {
		t.Sudo = s
	}
	if id := q.Get("identity"); id != "" {
		t.IdentityFile = id
	}

	if err := t.Validate(); err != nil {
		return err
	}
	c.Target = t
	return nil
}

// Validate checks the target for errors
func (t TargetConfig) Validate() error {
	switch t.Transport {
	case TransportAuto, TransportLocal, TransportNsenter:
	case TransportDocker:
		if t.Container == "" {
			return fmt.Errorf("docker target requires target.container")
		}
	case TransportSSH:
		if t.Host == "" {
			return fmt.Errorf("ssh target requires target.host")
		}
		if t.Port <= 0 || t.Port > 65535 {
			return fmt.Errorf("invalid ssh port: %d", t.Port)
		}
	default:
		return fmt.Errorf("invalid transport: %s (must be: auto, local, nsenter, docker, ssh)", t.Transport)
	}

	switch t.Sudo {
	case SudoNever, SudoAuto, SudoAlways:
	default:
		return fmt.Errorf("invalid sudo mode: %s (must be: never, auto, always)", t.Sudo)
	}
	return nil
}

// String renders the target back as a URL, without credentials
func (t TargetConfig) String() string {
	switch t.Transport {
	case TransportDocker:
		return "docker://" + t.Container
	case TransportSSH:
		var b strings.Builder
		b.WriteString("ssh://")
		if t.User != "" {
			b.WriteString(t.User + "@")
		}
		b.WriteString(t.Host)
		if t.Port != 0 && t.Port != 22 {
			b.WriteString(":" + strconv.Itoa(t.Port))
		}
		return b.String()
	default:
		return t.Transport + "://"
	}
}
