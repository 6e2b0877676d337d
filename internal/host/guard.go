package host

import (
	"path"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"

	herr "github.com/girste/hardenspec/internal/errors"
)

// readOnlyCommands are the executables rules may run on a target. Those
// that can also change state are held to their query forms by queryOnly.
var readOnlyCommands = []string{
	"apk",
	"cat",
	"dpkg-query",
	"getent",
	"grep",
	"head",
	"hostname",
	"lsattr",
	"pacman",
	"passwd",
	"rpm",
	"stat",
	"sysctl",
	"systemctl",
	"test",
	"ufw",
	"uname",
}

// queryOnly restricts allowlisted tools that also have mutating verbs to
// their query forms. It receives the arguments after the executable.
var queryOnly = map[string]func(args []string) bool{
	"systemctl": func(args []string) bool {
		switch firstOperand(args) {
		case "is-enabled", "is-active", "is-failed", "list-unit-files", "list-units", "show", "status", "cat":
			return true
		}
		return false
	},
	"ufw": func(args []string) bool {
		return firstOperand(args) == "status"
	},
	"sysctl": func(args []string) bool {
		for _, a := range args {
			switch {
			case strings.Contains(a, "="),
				a == "-w", a == "--write", a == "-p", a == "--load", a == "--system",
				strings.HasPrefix(a, "-") && !strings.HasPrefix(a, "--") && strings.ContainsAny(a, "wp"):
				return false
			}
		}
		return true
	},
	"passwd": func(args []string) bool {
		return len(args) == 2 && (args[0] == "-S" || args[0] == "--status")
	},
	"hostname": func(args []string) bool {
		// an operand or --file sets the name
		for _, a := range args {
			if !strings.HasPrefix(a, "-") || a == "-F" || strings.HasPrefix(a, "--file") || a == "-b" || a == "--boot" {
				return false
			}
		}
		return true
	},
	"rpm": func(args []string) bool {
		return len(args) > 0 && (strings.HasPrefix(args[0], "-q") || args[0] == "--query")
	},
	"apk": func(args []string) bool {
		return firstOperand(args) == "info"
	},
	"pacman": func(args []string) bool {
		return len(args) > 0 && (strings.HasPrefix(args[0], "-Q") || args[0] == "--query")
	},
}

// firstOperand returns the first argument that is not a flag
func firstOperand(args []string) string {
	for _, a := range args {
		if !strings.HasPrefix(a, "-") {
			return a
		}
	}
	return ""
}

// Guard rejects commands that could change the target: executables outside
// the allowlist, mutating verbs of the query tools and redirections that
// write to a file.
type Guard struct {
	allowed map[string]bool
}

// NewGuard returns a guard allowing the read-only set plus extra.
func NewGuard(extra ...string) *Guard {
	g := &Guard{allowed: make(map[string]bool, len(readOnlyCommands)+len(extra))}
	for _, name := range readOnlyCommands {
		g.allowed[name] = true
	}
	for _, name := range extra {
		g.allowed[name] = true
	}
	return g
}

// Allowed returns the sorted allowlist.
func (g *Guard) Allowed() []string {
	names := make([]string, 0, len(g.allowed))
	for name := range g.allowed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check parses command and walks every call in it, including pipelines,
// logical lists, subshells and command substitutions.
func (g *Guard) Check(command string) error {
	parser := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangPOSIX))
	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return herr.Wrap(herr.ErrCommandNotAllowed, "unparseable command %q: %v", command, err)
	}

	var rejected error
	syntax.Walk(file, func(node syntax.Node) bool {
		if rejected != nil {
			return false
		}
		switch n := node.(type) {
		case *syntax.CallExpr:
			if len(n.Args) == 0 {
				return true
			}
			name, err := literalWord(n.Args[0])
			if err != nil {
				rejected = herr.Wrap(herr.ErrCommandNotAllowed, "non-literal executable in %q", command)
				return false
			}
			base := path.Base(name)
			if !g.allowed[base] {
				rejected = herr.Wrap(herr.ErrCommandNotAllowed, "%q in %q", base, command)
				return false
			}
			if query, ok := queryOnly[base]; ok {
				args := make([]string, 0, len(n.Args)-1)
				for _, w := range n.Args[1:] {
					arg, err := literalWord(w)
					if err != nil {
						rejected = herr.Wrap(herr.ErrCommandNotAllowed, "non-literal argument to %s in %q", base, command)
						return false
					}
					args = append(args, arg)
				}
				if !query(args) {
					rejected = herr.Wrap(herr.ErrCommandNotAllowed, "%s may only query in %q", base, command)
					return false
				}
			}
		case *syntax.Redirect:
			if err := checkRedirect(n); err != nil {
				rejected = herr.Wrap(err, "%q", command)
				return false
			}
		case *syntax.FuncDecl, *syntax.DeclClause, *syntax.CoprocClause:
			rejected = herr.Wrap(herr.ErrCommandNotAllowed, "unsupported construct in %q", command)
			return false
		}
		return true
	})
	return rejected
}

func checkRedirect(r *syntax.Redirect) error {
	switch r.Op {
	case syntax.RdrOut, syntax.AppOut, syntax.ClbOut, syntax.RdrAll, syntax.AppAll, syntax.RdrInOut:
	case syntax.DplOut:
		// 2>&1 and >&- duplicate or close descriptors, >&file writes
		if lit := r.Word.Lit(); lit == "-" || isDigits(lit) {
			return nil
		}
	default:
		return nil
	}
	target, err := literalWord(r.Word)
	if err != nil || target != "/dev/null" {
		return herr.Wrap(herr.ErrCommandNotAllowed, "write redirection to %s", wordToString(r.Word))
	}
	return nil
}

func wordToString(word *syntax.Word) string {
	var sb strings.Builder
	syntax.NewPrinter().Print(&sb, word)
	return sb.String()
}

// literalWord resolves quoting in a word; parameter expansion and command
// substitution are not resolved and fail.
func literalWord(w *syntax.Word) (string, error) {
	return expand.Literal(&expand.Config{}, w)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
