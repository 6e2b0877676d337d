package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	herr "github.com/girste/hardenspec/internal/errors"
	"github.com/girste/hardenspec/internal/recommendations"
	"github.com/girste/hardenspec/internal/rules"
	"github.com/girste/hardenspec/internal/runner"
	"golang.org/x/term"
)

// Format types
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatSARIF   = "sarif"
	FormatCompact = "compact"
)

// Formats lists the accepted --format values
var Formats = []string{FormatText, FormatJSON, FormatSARIF, FormatCompact}

// ANSI colours for the text format
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGrey   = "\033[90m"
)

// Formatter renders a run report
type Formatter struct {
	format    string
	color     bool
	version   string
	catalogue []rules.Rule
}

// NewFormatter creates a formatter. The catalogue supplies rule metadata
// for SARIF; version is reported as the tool version.
func NewFormatter(format string, color bool, version string, catalogue []rules.Rule) (*Formatter, error) {
	if format == "" {
		format = FormatText
	}
	valid := false
	for _, f := range Formats {
		if f == format {
			valid = true
		}
	}
	if !valid {
		return nil, herr.Wrap(herr.ErrInvalidInput, "unknown format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
	return &Formatter{format: format, color: color, version: version, catalogue: catalogue}, nil
}

// IsTerminal reports whether w is a terminal, the only case where the text
// format uses colour.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Render writes the report in the configured format
func (f *Formatter) Render(w io.Writer, report *runner.Report) error {
	var data []byte
	var err error
	switch f.format {
	case FormatJSON:
		data, err = json.MarshalIndent(report, "", "  ")
	case FormatSARIF:
		data, err = json.MarshalIndent(ConvertToSARIF(report, f.catalogue, f.version), "", "  ")
	case FormatCompact:
		data, err = json.Marshal(ConvertToCompact(report))
	default:
		data = []byte(f.ToText(report))
	}
	if err != nil {
		return err
	}
	if f.format != FormatText {
		data = append(data, '\n')
	}
	_, err = w.Write(data)
	return err
}

// ToText outputs the report as formatted text, one line per rule
func (f *Formatter) ToText(report *runner.Report) string {
	var sb strings.Builder

	sb.WriteString("═══════════════════════════════════════════════════════════════\n")
	sb.WriteString(fmt.Sprintf("  HARDENING COMPLIANCE  -  %s\n", report.Host.Hostname))
	sb.WriteString("═══════════════════════════════════════════════════════════════\n")
	sb.WriteString(fmt.Sprintf("  Target: %s (%s)\n", report.Target, report.Transport))
	if report.Host.Release != "" {
		sb.WriteString(fmt.Sprintf("  OS:     %s, kernel %s\n", report.Host.Release, report.Host.Kernel))
	}
	sb.WriteString(fmt.Sprintf("  Run:    %s\n\n", report.RunID))

	domain := ""
	for _, o := range report.Outcomes {
		if o.Domain != domain {
			domain = o.Domain
			sb.WriteString(fmt.Sprintf("  [%s]\n", domain))
		}
		sb.WriteString(fmt.Sprintf("  %s %-48s %s\n", f.marker(o.Status), o.RuleID, o.Message))
	}

	if failures := report.Failures(); len(failures) > 0 {
		sb.WriteString("\n  Remediation:\n")
		advised := make(map[string]bool)
		for _, o := range failures {
			if advised[o.Domain] {
				continue
			}
			advised[o.Domain] = true
			sb.WriteString(fmt.Sprintf("  - %s: %s\n", o.Domain, recommendations.ForDomain(o.Domain)))
		}
	}

	s := report.Summary
	sb.WriteString("\n───────────────────────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("  %d rules: %d pass, %d fail, %d error, %d skip  (%.1f%% compliant)\n",
		s.Total, s.Passed, s.Failed, s.Errored, s.Skipped, s.Pct))
	sb.WriteString(fmt.Sprintf("  Duration: %s\n", report.Duration().Round(time.Millisecond)))
	sb.WriteString("═══════════════════════════════════════════════════════════════\n")

	return sb.String()
}

// ToSummary outputs a one-line summary
func ToSummary(report *runner.Report) string {
	s := report.Summary
	verdict := "COMPLIANT"
	if report.ExitCode() != 0 {
		verdict = "NON-COMPLIANT"
	}
	return fmt.Sprintf("%s | %s | %d pass, %d fail, %d error, %d skip | %.1f%%",
		report.Host.Hostname, verdict, s.Passed, s.Failed, s.Errored, s.Skipped, s.Pct)
}

func (f *Formatter) marker(status rules.Status) string {
	label := strings.ToUpper(string(status))
	label = fmt.Sprintf("%-5s", label)
	if !f.color {
		return label
	}
	switch status {
	case rules.StatusPass:
		return colorGreen + label + colorReset
	case rules.StatusFail:
		return colorRed + label + colorReset
	case rules.StatusError:
		return colorYellow + label + colorReset
	default:
		return colorGrey + label + colorReset
	}
}

// WriteFile renders the report into path and returns the bytes written so
// they can be signed.
func (f *Formatter) WriteFile(path string, report *runner.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Render(&buf, report); err != nil {
		return nil, err
	}
	data := buf.Bytes()
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, herr.Wrap(err, "write report %s", path)
	}
	return data, nil
}
