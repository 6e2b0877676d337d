// Package hosttest provides an in-memory Transport that answers the commands
// the host facade sends as a real target would, from a scripted host state.
package hosttest

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"

	"github.com/girste/hardenspec/internal/system"
)

// File is a scripted filesystem entry.
type File struct {
	Mode       os.FileMode // permission bits as stat %a prints them
	Content    string
	Dir        bool
	Unreadable bool // cat and grep fail with permission denied
	// Unsearchable hides the entry behind a parent directory the login
	// cannot search: test is false and every other tool is denied.
	Unsearchable bool
}

// Service is a scripted systemd unit.
type Service struct {
	State  string // is-enabled answer: enabled, disabled, masked, static...
	Active bool
}

// Transport is a fake target. The zero value is not usable, call New.
type Transport struct {
	mu       sync.Mutex
	files    map[string]File
	packages map[string]bool
	services map[string]Service
	groups   map[string]bool
	sysctls  map[string]string
	commands map[string]system.CommandResult
	errs     map[string]error
	hostname string
	calls    []string
}

func New() *Transport {
	return &Transport{
		files:    make(map[string]File),
		packages: make(map[string]bool),
		services: make(map[string]Service),
		groups:   make(map[string]bool),
		sysctls:  make(map[string]string),
		commands: make(map[string]system.CommandResult),
		errs:     make(map[string]error),
		hostname: "fake-host",
	}
}

// WithFile adds a regular file.
func (t *Transport) WithFile(path string, mode os.FileMode, content string) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.files[path] = File{Mode: mode, Content: content}
	return t
}

// WithDir adds a directory.
func (t *Transport) WithDir(path string, mode os.FileMode) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.files[path] = File{Mode: mode, Dir: true}
	return t
}

// WithEntry adds an arbitrary filesystem entry.
func (t *Transport) WithEntry(path string, f File) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.files[path] = f
	return t
}

// Remove deletes a filesystem entry.
func (t *Transport) Remove(path string) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.files, path)
	return t
}

// WithPackage marks packages as installed.
func (t *Transport) WithPackage(names ...string) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, name := range names {
		t.packages[name] = true
	}
	return t
}

// WithService adds a systemd unit. A bare name means name.service.
func (t *Transport) WithService(name, state string, active bool) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.services[unitName(name)] = Service{State: state, Active: active}
	return t
}

// WithGroup adds groups.
func (t *Transport) WithGroup(names ...string) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, name := range names {
		t.groups[name] = true
	}
	return t
}

// WithSysctl sets a live kernel parameter.
func (t *Transport) WithSysctl(name, value string) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sysctls[name] = value
	return t
}

// WithCommand scripts the answer to a literal command string. Scripted
// commands take precedence over the simulated tools.
func (t *Transport) WithCommand(command string, rc int, stdout string) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commands[command] = result(rc, stdout, "")
	return t
}

// WithCommandResult scripts a literal command with stderr as well.
func (t *Transport) WithCommandResult(command string, rc int, stdout, stderr string) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commands[command] = result(rc, stdout, stderr)
	return t
}

// WithError makes a literal command fail at the transport level.
func (t *Transport) WithError(command string, err error) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errs[command] = err
	return t
}

// Calls returns the commands received so far, in order.
func (t *Transport) Calls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...)
}

func (t *Transport) Name() string { return "fake" }

func (t *Transport) Close() error { return nil }

func (t *Transport) Exec(ctx context.Context, command string) (*system.CommandResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, command)

	if err, ok := t.errs[command]; ok {
		return nil, err
	}
	if res, ok := t.commands[command]; ok {
		return &res, nil
	}

	argv, err := parseArgv(command)
	if err != nil {
		return resultPtr(2, "", fmt.Sprintf("sh: %v\n", err)), nil
	}
	return t.simulate(argv), nil
}

func (t *Transport) simulate(argv []string) *system.CommandResult {
	args := argv[1:]
	switch argv[0] {
	case "id":
		return resultPtr(0, "0\n", "")
	case "hostname":
		return resultPtr(0, t.hostname+"\n", "")
	case "uname":
		return resultPtr(0, "6.8.0-fake\n", "")
	case "test":
		return t.test(args)
	case "stat":
		return t.stat(args)
	case "cat":
		return t.cat(args)
	case "grep":
		return t.grep(args)
	case "sysctl":
		return t.sysctl(args)
	case "dpkg-query":
		name := args[len(args)-1]
		if t.packages[name] {
			return resultPtr(0, "install ok installed", "")
		}
		return resultPtr(1, "", "dpkg-query: no packages found matching "+name+"\n")
	case "rpm", "pacman", "apk":
		return t.packageQuery(args[len(args)-1])
	case "systemctl":
		return t.systemctl(args)
	case "getent":
		if len(args) == 2 && args[0] == "group" && t.groups[args[1]] {
			return resultPtr(0, args[1]+":x:1001:\n", "")
		}
		return resultPtr(2, "", "")
	}
	return resultPtr(127, "", "sh: 1: "+argv[0]+": not found\n")
}

func (t *Transport) packageQuery(name string) *system.CommandResult {
	if t.packages[name] {
		return resultPtr(0, name+"\n", "")
	}
	return resultPtr(1, "", "package "+name+" is not installed\n")
}

func (t *Transport) test(args []string) *system.CommandResult {
	if len(args) != 2 {
		return resultPtr(2, "", "test: bad arguments\n")
	}
	f, ok := t.files[args[1]]
	ok = ok && !f.Unsearchable
	switch args[0] {
	case "-e":
		return exitIf(ok)
	case "-d":
		return exitIf(ok && f.Dir)
	case "-f":
		return exitIf(ok && !f.Dir)
	}
	return resultPtr(2, "", "test: unknown operator "+args[0]+"\n")
}

func (t *Transport) stat(args []string) *system.CommandResult {
	if len(args) != 3 || args[0] != "-c" || args[1] != "%a" {
		return resultPtr(1, "", "stat: unsupported format\n")
	}
	f, ok := t.files[args[2]]
	if !ok {
		return resultPtr(1, "", "stat: cannot statx '"+args[2]+"': No such file or directory\n")
	}
	if f.Unsearchable {
		return resultPtr(1, "", "stat: cannot statx '"+args[2]+"': Permission denied\n")
	}
	return resultPtr(0, strconv.FormatUint(uint64(f.Mode), 8)+"\n", "")
}

func (t *Transport) cat(args []string) *system.CommandResult {
	var out strings.Builder
	for _, path := range args {
		content, res := t.read("cat", path)
		if res != nil {
			return res
		}
		out.WriteString(content)
	}
	return resultPtr(0, out.String(), "")
}

func (t *Transport) read(tool, path string) (string, *system.CommandResult) {
	f, ok := t.files[path]
	switch {
	case !ok:
		return "", resultPtr(1, "", tool+": "+path+": No such file or directory\n")
	case f.Dir:
		return "", resultPtr(1, "", tool+": "+path+": Is a directory\n")
	case f.Unreadable, f.Unsearchable:
		return "", resultPtr(1, "", tool+": "+path+": Permission denied\n")
	}
	return f.Content, nil
}

// grep supports [-E] PATTERN FILE, enough for the catalogue. Exit status
// follows grep: 0 match, 1 no match, 2 error.
func (t *Transport) grep(args []string) *system.CommandResult {
	if len(args) > 0 && args[0] == "-E" {
		args = args[1:]
	}
	if len(args) != 2 {
		return resultPtr(2, "", "grep: unsupported arguments\n")
	}
	re, err := regexp.Compile(args[0])
	if err != nil {
		return resultPtr(2, "", "grep: "+err.Error()+"\n")
	}
	content, res := t.read("grep", args[1])
	if res != nil {
		res.ExitCode = 2
		return res
	}
	var out strings.Builder
	for _, line := range strings.Split(strings.TrimSuffix(content, "\n"), "\n") {
		if re.MatchString(line) {
			out.WriteString(line + "\n")
		}
	}
	if out.Len() == 0 {
		return resultPtr(1, "", "")
	}
	return resultPtr(0, out.String(), "")
}

func (t *Transport) sysctl(args []string) *system.CommandResult {
	if len(args) != 1 {
		return resultPtr(255, "", "sysctl: unsupported arguments\n")
	}
	value, ok := t.sysctls[args[0]]
	if !ok {
		return resultPtr(255, "", "sysctl: cannot stat /proc/sys/"+strings.ReplaceAll(args[0], ".", "/")+": No such file or directory\n")
	}
	return resultPtr(0, args[0]+" = "+value+"\n", "")
}

func (t *Transport) systemctl(args []string) *system.CommandResult {
	if len(args) == 0 {
		return resultPtr(1, "", "")
	}
	unit := args[len(args)-1]
	svc, ok := t.services[unit]
	switch args[0] {
	case "list-unit-files":
		if !ok {
			return resultPtr(1, "", "")
		}
		return resultPtr(0, fmt.Sprintf("%s %s enabled\n", unit, svc.State), "")
	case "is-enabled":
		if !ok {
			return resultPtr(1, "", "Failed to get unit file state for "+unit+": No such file or directory\n")
		}
		rc := 1
		if svc.State == "enabled" || svc.State == "enabled-runtime" || svc.State == "alias" || svc.State == "indirect" {
			rc = 0
		}
		return resultPtr(rc, svc.State+"\n", "")
	case "is-active":
		if ok && svc.Active {
			return resultPtr(0, "active\n", "")
		}
		return resultPtr(3, "inactive\n", "")
	}
	return resultPtr(1, "", "Unknown command verb "+args[0]+".\n")
}

// parseArgv resolves a single simple command into its literal arguments.
func parseArgv(command string) ([]string, error) {
	file, err := syntax.NewParser().Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, err
	}
	if len(file.Stmts) != 1 {
		return nil, fmt.Errorf("expected one command in %q", command)
	}
	call, ok := file.Stmts[0].Cmd.(*syntax.CallExpr)
	if !ok || len(call.Args) == 0 {
		return nil, fmt.Errorf("expected a simple command in %q", command)
	}
	argv := make([]string, 0, len(call.Args))
	for _, w := range call.Args {
		s, err := expand.Literal(&expand.Config{}, w)
		if err != nil {
			return nil, err
		}
		argv = append(argv, s)
	}
	return argv, nil
}

func unitName(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return name + ".service"
}

func exitIf(ok bool) *system.CommandResult {
	if ok {
		return resultPtr(0, "", "")
	}
	return resultPtr(1, "", "")
}

func result(rc int, stdout, stderr string) system.CommandResult {
	return system.CommandResult{Stdout: stdout, Stderr: stderr, ExitCode: rc, Success: rc == 0}
}

func resultPtr(rc int, stdout, stderr string) *system.CommandResult {
	r := result(rc, stdout, stderr)
	return &r
}
