package host

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	herr "github.com/girste/hardenspec/internal/errors"
)

// File is a handle on a path of the target. Creating it performs no I/O.
type File struct {
	h    *Host
	path string
}

func (h *Host) File(path string) *File {
	return &File{h: h, path: path}
}

func (f *File) Path() string { return f.path }

// Exists reports whether the path exists, following symlinks.
func (f *File) Exists(ctx context.Context) (bool, error) {
	return f.test(ctx, "-e")
}

// IsDirectory reports whether the path is a directory.
func (f *File) IsDirectory(ctx context.Context) (bool, error) {
	return f.test(ctx, "-d")
}

func (f *File) test(ctx context.Context, flag string) (bool, error) {
	res, err := f.h.Run(ctx, "test "+flag+" "+quote(f.path))
	if err != nil {
		return false, err
	}
	switch res.ExitCode {
	case 0:
		return true, nil
	case 1:
		return false, f.statDenied(ctx)
	default:
		return false, fmt.Errorf("test %s %s: exit %d: %s", flag, f.path, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
}

// statDenied tells a path that is absent from one hidden behind a parent
// directory the login cannot search. test answers false for both.
func (f *File) statDenied(ctx context.Context) error {
	res, err := f.h.Run(ctx, "stat -c %a "+quote(f.path))
	if err != nil {
		return err
	}
	if !res.Success && strings.Contains(res.Stderr, "Permission denied") {
		return herr.Wrap(herr.ErrPermissionDenied, "test %s", f.path)
	}
	return nil
}

// Mode returns the permission bits including setuid, setgid and sticky, as
// printed by stat %a. The file must exist.
func (f *File) Mode(ctx context.Context) (os.FileMode, error) {
	res, err := f.h.Run(ctx, "stat -c %a "+quote(f.path))
	if err != nil {
		return 0, err
	}
	if !res.Success {
		return 0, f.readError("stat", res)
	}
	bits, err := strconv.ParseUint(strings.TrimSpace(res.Stdout), 8, 32)
	if err != nil {
		return 0, herr.Wrap(herr.ErrParseFailure, "mode of %s %q", f.path, strings.TrimSpace(res.Stdout))
	}
	return os.FileMode(bits), nil
}

// Content returns the file's full content. The file must exist.
func (f *File) Content(ctx context.Context) (string, error) {
	res, err := f.h.Run(ctx, "cat "+quote(f.path))
	if err != nil {
		return "", err
	}
	if !res.Success {
		return "", f.readError("cat", res)
	}
	return res.Stdout, nil
}

// Contains reports whether substr occurs anywhere in the content. The match
// is literal and case-sensitive and may span lines. The file must exist.
func (f *File) Contains(ctx context.Context, substr string) (bool, error) {
	content, err := f.Content(ctx)
	if err != nil {
		return false, err
	}
	return strings.Contains(content, substr), nil
}

func (f *File) readError(op string, res *CommandResult) error {
	stderr := strings.TrimSpace(res.Stderr)
	switch {
	case strings.Contains(stderr, "Permission denied"):
		return herr.Wrap(herr.ErrPermissionDenied, "%s %s", op, f.path)
	case strings.Contains(stderr, "No such file"):
		return herr.Wrap(herr.ErrNotFound, "%s %s", op, f.path)
	default:
		return fmt.Errorf("%s %s: %s: %s", op, f.path, describeResult(res), stderr)
	}
}
