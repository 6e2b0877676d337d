package host

import (
	"context"
	"fmt"
	"strings"

	herr "github.com/girste/hardenspec/internal/errors"
	"github.com/girste/hardenspec/internal/system"
)

// Package is a handle on an installable package of the target.
type Package struct {
	h    *Host
	name string
}

func (h *Host) Package(name string) *Package {
	return &Package{h: h, name: name}
}

func (p *Package) Name() string { return p.name }

// IsInstalled queries the package manager of the target's distribution.
// Debian tooling is assumed when the distribution is unknown.
func (p *Package) IsInstalled(ctx context.Context) (bool, error) {
	distro, err := p.h.distro(ctx)
	if err != nil {
		return false, err
	}

	name := quote(p.name)
	switch {
	case system.IsRHEL(distro):
		return p.h.exitZero(ctx, "rpm -q "+name)
	case distro == "alpine":
		return p.h.exitZero(ctx, "apk info -e "+name)
	case distro == "arch":
		return p.h.exitZero(ctx, "pacman -Q "+name)
	}

	command := "dpkg-query -W -f='${Status}' " + name
	res, err := p.h.Run(ctx, command)
	if err != nil {
		return false, err
	}
	if err := notRunnable(command, res); err != nil {
		return false, err
	}
	if !res.Success {
		// dpkg-query exits 1 for packages it has never heard of
		return false, nil
	}
	// "install ok installed" or "hold ok installed"; removed packages keep
	// a "deinstall ok config-files" record
	return strings.HasSuffix(strings.TrimSpace(res.Stdout), " installed"), nil
}

func (h *Host) exitZero(ctx context.Context, command string) (bool, error) {
	res, err := h.Run(ctx, command)
	if err != nil {
		return false, err
	}
	if err := notRunnable(command, res); err != nil {
		return false, err
	}
	return res.Success, nil
}

// notRunnable reports exit 126 and 127, where the shell could not start the
// tool at all and the exit status says nothing about the target's state.
func notRunnable(command string, res *CommandResult) error {
	if res.ExitCode == 126 || res.ExitCode == 127 {
		return herr.Wrap(herr.ErrNotFound, "%q could not be executed on the target (exit %d): %s",
			command, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// Service is a handle on a systemd unit. A bare name means name.service.
type Service struct {
	h    *Host
	unit string
}

var unitSuffixes = []string{".service", ".socket", ".timer", ".mount", ".path", ".target"}

func (h *Host) Service(name string) *Service {
	unit := name + ".service"
	for _, suffix := range unitSuffixes {
		if strings.HasSuffix(name, suffix) {
			unit = name
			break
		}
	}
	return &Service{h: h, unit: unit}
}

func (s *Service) Unit() string { return s.unit }

// Exists reports whether systemd knows a unit file for the service.
func (s *Service) Exists(ctx context.Context) (bool, error) {
	command := "systemctl list-unit-files --no-legend --no-pager " + quote(s.unit)
	res, err := s.h.Run(ctx, command)
	if err != nil {
		return false, err
	}
	if err := s.unavailable(command, res); err != nil {
		return false, err
	}
	for _, line := range strings.Split(res.Stdout, "\n") {
		if fields := strings.Fields(line); len(fields) > 0 && fields[0] == s.unit {
			return true, nil
		}
	}
	return false, nil
}

// enabledStates are the is-enabled answers that start the unit at boot.
var enabledStates = map[string]bool{
	"enabled":         true,
	"enabled-runtime": true,
	"alias":           true,
	"indirect":        true,
}

// IsEnabled reports whether the unit starts at boot. masked, disabled,
// static and unknown units are not enabled.
func (s *Service) IsEnabled(ctx context.Context) (bool, error) {
	state, err := s.firstLine(ctx, "is-enabled")
	if err != nil {
		return false, err
	}
	return enabledStates[state], nil
}

// IsRunning reports whether the unit is active.
func (s *Service) IsRunning(ctx context.Context) (bool, error) {
	state, err := s.firstLine(ctx, "is-active")
	if err != nil {
		return false, err
	}
	return state == "active", nil
}

func (s *Service) firstLine(ctx context.Context, verb string) (string, error) {
	command := "systemctl " + verb + " " + quote(s.unit)
	res, err := s.h.Run(ctx, command)
	if err != nil {
		return "", err
	}
	if err := s.unavailable(command, res); err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(res.Stdout, "\n")
	line = strings.TrimSpace(line)
	if line == "" && !res.Success {
		// older systemd reports an unknown unit on stderr only
		if strings.Contains(res.Stderr, "No such file or directory") || strings.Contains(res.Stderr, "not found") {
			return "not-found", nil
		}
		return "", fmt.Errorf("%s: %s without a state: %s", command, describeResult(res), strings.TrimSpace(res.Stderr))
	}
	return line, nil
}

// systemdDown matches systemctl's complaints when there is no systemd to ask.
var systemdDown = []string{
	"System has not been booted with systemd",
	"Failed to connect to bus",
}

func (s *Service) unavailable(command string, res *CommandResult) error {
	if err := notRunnable(command, res); err != nil {
		return err
	}
	for _, msg := range systemdDown {
		if strings.Contains(res.Stderr, msg) {
			return herr.Wrap(herr.ErrTransport, "%s: systemd is not available: %s", command, strings.TrimSpace(res.Stderr))
		}
	}
	return nil
}

// Group is a handle on a group in the target's name service.
type Group struct {
	h    *Host
	name string
}

func (h *Host) Group(name string) *Group {
	return &Group{h: h, name: name}
}

func (g *Group) Name() string { return g.name }

// Exists reports whether getent resolves the group.
func (g *Group) Exists(ctx context.Context) (bool, error) {
	res, err := g.h.Run(ctx, "getent group "+quote(g.name))
	if err != nil {
		return false, err
	}
	switch res.ExitCode {
	case 0:
		return true, nil
	case 2:
		return false, nil
	default:
		return false, fmt.Errorf("getent group %s: %s: %s", g.name, describeResult(res), strings.TrimSpace(res.Stderr))
	}
}
