package host

import (
	"context"
	"strings"
	"sync"

	"github.com/girste/hardenspec/internal/system"
)

// Facts identify the target in a report.
type Facts struct {
	Hostname string `json:"hostname" yaml:"hostname"`
	Distro   string `json:"distro" yaml:"distro"`
	Release  string `json:"release,omitempty" yaml:"release,omitempty"`
	Codename string `json:"codename,omitempty" yaml:"codename,omitempty"`
	Kernel   string `json:"kernel" yaml:"kernel"`
}

type osRelease struct {
	mu     sync.Mutex
	loaded bool
	rel    system.OSRelease
}

// Facts gathers hostname, distribution and kernel. Commands that fail leave
// their field empty; only transport errors are returned.
func (h *Host) Facts(ctx context.Context) (Facts, error) {
	var facts Facts

	distro, err := h.distro(ctx)
	if err != nil {
		return facts, err
	}
	facts.Distro = distro
	h.release.mu.Lock()
	facts.Release = h.release.rel.PrettyName
	facts.Codename = h.release.rel.VersionCodename
	h.release.mu.Unlock()

	if facts.Hostname, err = h.outputLine(ctx, "hostname"); err != nil {
		return facts, err
	}
	if facts.Kernel, err = h.outputLine(ctx, "uname -r"); err != nil {
		return facts, err
	}
	return facts, nil
}

func (h *Host) outputLine(ctx context.Context, command string) (string, error) {
	res, err := h.Run(ctx, command)
	if err != nil {
		return "", err
	}
	if !res.Success {
		return "", nil
	}
	return strings.TrimSpace(res.Stdout), nil
}

// distro reads /etc/os-release once per Host. A missing file yields
// "unknown". Transport failures are not remembered, the next caller retries.
func (h *Host) distro(ctx context.Context) (string, error) {
	h.release.mu.Lock()
	defer h.release.mu.Unlock()

	if !h.release.loaded {
		res, err := h.Run(ctx, "cat /etc/os-release")
		if err != nil {
			return "", err
		}
		if res.Success {
			h.release.rel = system.ParseOSRelease(res.Stdout)
		}
		h.release.loaded = true
	}
	return h.release.rel.Distro(), nil
}
