package output

import (
	"time"

	"github.com/girste/hardenspec/internal/runner"
)

// CompactReport is the token-efficient form used by the MCP server and the
// Redis run channel: counts plus the failing rules only.
type CompactReport struct {
	SchemaVersion string        `json:"schema_version"`
	RunID         string        `json:"run"`
	Timestamp     string        `json:"ts"`
	Hostname      string        `json:"host"`
	Status        CompactStatus `json:"status"`
	Failed        []CompactRule `json:"failed"`
}

type CompactStatus struct {
	Compliant bool    `json:"compliant"`
	Pass      int     `json:"pass"`
	Fail      int     `json:"fail"`
	Error     int     `json:"error"`
	Skip      int     `json:"skip"`
	Pct       float64 `json:"pct"`
}

type CompactRule struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Msg    string `json:"msg"`
}

// ConvertToCompact reduces a report to its summary and failures
func ConvertToCompact(report *runner.Report) *CompactReport {
	s := report.Summary
	compact := &CompactReport{
		SchemaVersion: "1.0",
		RunID:         report.RunID,
		Timestamp:     report.FinishedAt.Format(time.RFC3339),
		Hostname:      report.Host.Hostname,
		Status: CompactStatus{
			Compliant: report.ExitCode() == 0,
			Pass:      s.Passed,
			Fail:      s.Failed,
			Error:     s.Errored,
			Skip:      s.Skipped,
			Pct:       s.Pct,
		},
		Failed: []CompactRule{},
	}
	for _, o := range report.Failures() {
		compact.Failed = append(compact.Failed, CompactRule{
			ID:     o.RuleID,
			Status: string(o.Status),
			Msg:    o.Message,
		})
	}
	return compact
}
