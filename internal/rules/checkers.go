package rules

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/girste/hardenspec/internal/host"
)

func pass(format string, args ...interface{}) (Status, string, error) {
	return StatusPass, fmt.Sprintf(format, args...), nil
}

func fail(format string, args ...interface{}) (Status, string, error) {
	return StatusFail, fmt.Sprintf(format, args...), nil
}

// PackageInstalled passes when the package is installed
func PackageInstalled(name string) CheckFunc {
	return func(ctx context.Context, h *host.Host) (Status, string, error) {
		installed, err := h.Package(name).IsInstalled(ctx)
		if err != nil {
			return StatusError, "", err
		}
		if !installed {
			return fail("package %s is not installed", name)
		}
		return pass("package %s is installed", name)
	}
}

// PackageAbsent passes when the package is not installed
func PackageAbsent(name string) CheckFunc {
	return func(ctx context.Context, h *host.Host) (Status, string, error) {
		installed, err := h.Package(name).IsInstalled(ctx)
		if err != nil {
			return StatusError, "", err
		}
		if installed {
			return fail("package %s is installed", name)
		}
		return pass("package %s is not installed", name)
	}
}

// FileExists passes when the path exists
func FileExists(path string) CheckFunc {
	return func(ctx context.Context, h *host.Host) (Status, string, error) {
		exists, err := h.File(path).Exists(ctx)
		if err != nil {
			return StatusError, "", err
		}
		if !exists {
			return fail("%s does not exist", path)
		}
		return pass("%s exists", path)
	}
}

// FileContains passes when the file exists and every substring occurs in it.
// Substrings are checked in order and the first missing one is reported.
func FileContains(path string, substrs ...string) CheckFunc {
	return func(ctx context.Context, h *host.Host) (Status, string, error) {
		f := h.File(path)
		exists, err := f.Exists(ctx)
		if err != nil {
			return StatusError, "", err
		}
		if !exists {
			return fail("%s does not exist", path)
		}
		content, err := f.Content(ctx)
		if err != nil {
			return StatusError, "", err
		}
		for _, s := range substrs {
			if !strings.Contains(content, s) {
				return fail("%q not found in %s", s, path)
			}
		}
		if len(substrs) == 1 {
			return pass("%q found in %s", substrs[0], path)
		}
		return pass("%q found in %s", substrs, path)
	}
}

// FileMode passes when the path exists with exactly the given permission bits
func FileMode(path string, want os.FileMode) CheckFunc {
	return func(ctx context.Context, h *host.Host) (Status, string, error) {
		f := h.File(path)
		exists, err := f.Exists(ctx)
		if err != nil {
			return StatusError, "", err
		}
		if !exists {
			return fail("%s does not exist", path)
		}
		return checkMode(ctx, f, want)
	}
}

// DirectoryMode passes when the path is a directory with exactly the given
// permission bits
func DirectoryMode(path string, want os.FileMode) CheckFunc {
	return func(ctx context.Context, h *host.Host) (Status, string, error) {
		f := h.File(path)
		exists, err := f.Exists(ctx)
		if err != nil {
			return StatusError, "", err
		}
		if !exists {
			return fail("%s does not exist", path)
		}
		isDir, err := f.IsDirectory(ctx)
		if err != nil {
			return StatusError, "", err
		}
		if !isDir {
			return fail("%s is not a directory", path)
		}
		return checkMode(ctx, f, want)
	}
}

func checkMode(ctx context.Context, f *host.File, want os.FileMode) (Status, string, error) {
	got, err := f.Mode(ctx)
	if err != nil {
		return StatusError, "", err
	}
	if got != want {
		return fail("%s: expected mode %O, got %O", f.Path(), uint32(want), uint32(got))
	}
	return pass("%s has mode %O", f.Path(), uint32(got))
}

// CommandOutputContains passes when the command's stdout contains any of the
// substrings. The exit status is not considered unless the command could
// not be run at all.
func CommandOutputContains(command string, anyOf ...string) CheckFunc {
	return func(ctx context.Context, h *host.Host) (Status, string, error) {
		res, err := run(ctx, h, command)
		if err != nil {
			return StatusError, "", err
		}
		for _, s := range anyOf {
			if strings.Contains(res.Stdout, s) {
				return pass("%q found in output of %q", s, command)
			}
		}
		if len(anyOf) == 1 {
			return fail("%q not found in output of %q", anyOf[0], command)
		}
		return fail("none of %q found in output of %q", anyOf, command)
	}
}

// CommandFindsNothing passes when a grep-style command exits 1 (no match).
// A match fails with the first matching line; any other exit status means
// the search itself failed.
func CommandFindsNothing(command, what string) CheckFunc {
	return func(ctx context.Context, h *host.Host) (Status, string, error) {
		res, err := run(ctx, h, command)
		if err != nil {
			return StatusError, "", err
		}
		switch res.ExitCode {
		case 1:
			return pass("no %s", what)
		case 0:
			line, _, _ := strings.Cut(strings.TrimSpace(res.Stdout), "\n")
			return fail("%s: %s", what, line)
		default:
			return StatusError, "", fmt.Errorf("%q exited %d: %s", command, res.ExitCode, strings.TrimSpace(res.Stderr))
		}
	}
}

// AccountLocked passes when passwd -S reports the account as locked
func AccountLocked(user string) CheckFunc {
	command := "passwd -S " + user
	locked := []string{"L", "LK"}
	return func(ctx context.Context, h *host.Host) (Status, string, error) {
		res, err := run(ctx, h, command)
		if err != nil {
			return StatusError, "", err
		}
		if res.ExitCode != 0 {
			return fail("%q exited %d: %s", command, res.ExitCode, strings.TrimSpace(res.Stderr))
		}
		fields := strings.Fields(res.Stdout)
		if len(fields) < 2 {
			return fail("unexpected output of %q: %q", command, strings.TrimSpace(res.Stdout))
		}
		for _, s := range locked {
			if fields[1] == s {
				return pass("%s account status %q", user, fields[1])
			}
		}
		return fail("%s account status %q not in %v", user, fields[1], locked)
	}
}

// FileAttribute passes when lsattr lists the attribute flag on the path
func FileAttribute(path string, flag byte) CheckFunc {
	command := "lsattr " + path
	return func(ctx context.Context, h *host.Host) (Status, string, error) {
		res, err := run(ctx, h, command)
		if err != nil {
			return StatusError, "", err
		}
		if res.ExitCode != 0 {
			return fail("%q exited %d: %s", command, res.ExitCode, strings.TrimSpace(res.Stderr))
		}
		fields := strings.Fields(res.Stdout)
		if len(fields) == 0 || strings.IndexByte(fields[0], flag) < 0 {
			return fail("%s lacks attribute %q", path, string(flag))
		}
		return pass("%s has attribute %q", path, string(flag))
	}
}

// ServiceEnabledAndRunning passes when the unit is enabled and active
func ServiceEnabledAndRunning(name string) CheckFunc {
	return func(ctx context.Context, h *host.Host) (Status, string, error) {
		svc := h.Service(name)
		enabled, err := svc.IsEnabled(ctx)
		if err != nil {
			return StatusError, "", err
		}
		if !enabled {
			return fail("%s is not enabled", svc.Unit())
		}
		running, err := svc.IsRunning(ctx)
		if err != nil {
			return StatusError, "", err
		}
		if !running {
			return fail("%s is not running", svc.Unit())
		}
		return pass("%s is enabled and running", svc.Unit())
	}
}

// ServiceNotEnabled passes when the unit does not start at boot
func ServiceNotEnabled(name string) CheckFunc {
	return func(ctx context.Context, h *host.Host) (Status, string, error) {
		svc := h.Service(name)
		enabled, err := svc.IsEnabled(ctx)
		if err != nil {
			return StatusError, "", err
		}
		if enabled {
			return fail("%s is enabled", svc.Unit())
		}
		return pass("%s is not enabled", svc.Unit())
	}
}

// GroupExists passes when the group resolves
func GroupExists(name string) CheckFunc {
	return func(ctx context.Context, h *host.Host) (Status, string, error) {
		exists, err := h.Group(name).Exists(ctx)
		if err != nil {
			return StatusError, "", err
		}
		if !exists {
			return fail("group %s does not exist", name)
		}
		return pass("group %s exists", name)
	}
}

// IfFileExists evaluates check only when path exists; otherwise the rule
// holds vacuously.
func IfFileExists(path string, check CheckFunc) CheckFunc {
	return func(ctx context.Context, h *host.Host) (Status, string, error) {
		exists, err := h.File(path).Exists(ctx)
		if err != nil {
			return StatusError, "", err
		}
		if !exists {
			return pass("%s not present", path)
		}
		return check(ctx, h)
	}
}

// IfServiceExists evaluates check only when the unit exists; otherwise the
// rule holds vacuously.
func IfServiceExists(name string, check CheckFunc) CheckFunc {
	return func(ctx context.Context, h *host.Host) (Status, string, error) {
		svc := h.Service(name)
		exists, err := svc.Exists(ctx)
		if err != nil {
			return StatusError, "", err
		}
		if !exists {
			return pass("%s not present", svc.Unit())
		}
		return check(ctx, h)
	}
}

// AnyOf passes as soon as one check passes. When none does, an error from
// any check wins over the failures, which are reported together.
func AnyOf(checks ...CheckFunc) CheckFunc {
	return func(ctx context.Context, h *host.Host) (Status, string, error) {
		var failures []string
		var firstErr error
		for _, check := range checks {
			status, msg, err := check(ctx, h)
			switch {
			case err != nil:
				if firstErr == nil {
					firstErr = err
				}
			case status == StatusPass:
				return status, msg, nil
			default:
				failures = append(failures, msg)
			}
		}
		if firstErr != nil {
			return StatusError, "", firstErr
		}
		return StatusFail, strings.Join(failures, "; "), nil
	}
}

// All passes when every check passes, stopping at the first that does not
func All(checks ...CheckFunc) CheckFunc {
	return func(ctx context.Context, h *host.Host) (Status, string, error) {
		var msgs []string
		for _, check := range checks {
			status, msg, err := check(ctx, h)
			if err != nil || status != StatusPass {
				return status, msg, err
			}
			msgs = append(msgs, msg)
		}
		return StatusPass, strings.Join(msgs, "; "), nil
	}
}

// run executes a command and turns "could not run at all" exit statuses
// into errors, so a missing tool is never mistaken for a policy failure.
func run(ctx context.Context, h *host.Host, command string) (*host.CommandResult, error) {
	res, err := h.Run(ctx, command)
	if err != nil {
		return nil, err
	}
	if res.ExitCode == 126 || res.ExitCode == 127 {
		return nil, fmt.Errorf("%q could not be executed on the target (exit %d): %s",
			command, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return res, nil
}
