package baseline

import (
	"fmt"
	"sort"
	"time"

	"github.com/girste/hardenspec/internal/rules"
	"github.com/girste/hardenspec/internal/runner"
)

// ChangeType represents the type of change detected
type ChangeType string

const (
	ChangeTypeAdded    ChangeType = "added"
	ChangeTypeRemoved  ChangeType = "removed"
	ChangeTypeModified ChangeType = "modified"
)

// Drift represents a rule whose status differs from the baseline
type Drift struct {
	RuleID     string       `json:"rule" yaml:"rule"`
	ChangeType ChangeType   `json:"change_type" yaml:"change_type"`
	Before     rules.Status `json:"before,omitempty" yaml:"before,omitempty"`
	After      rules.Status `json:"after,omitempty" yaml:"after,omitempty"`
	Message    string       `json:"message" yaml:"message"`
}

// Regression reports whether the drift moved a rule into FAIL or ERROR
func (d Drift) Regression() bool {
	bad := d.After == rules.StatusFail || d.After == rules.StatusError
	wasBad := d.Before == rules.StatusFail || d.Before == rules.StatusError
	return bad && !wasBad
}

// DiffResult contains all detected drifts, ordered by rule ID
type DiffResult struct {
	BaselineTimestamp string  `json:"baseline_timestamp" yaml:"baseline_timestamp"`
	CurrentTimestamp  string  `json:"current_timestamp" yaml:"current_timestamp"`
	DriftCount        int     `json:"drift_count" yaml:"drift_count"`
	Regressions       int     `json:"regressions" yaml:"regressions"`
	Drifts            []Drift `json:"drifts" yaml:"drifts"`
}

// Compare compares the baseline against the statuses of a later report
func Compare(baseline *Baseline, report *runner.Report) *DiffResult {
	result := compareStatuses(baseline.Outcomes, Statuses(report.Outcomes))
	result.BaselineTimestamp = baseline.Metadata.Timestamp
	result.CurrentTimestamp = report.FinishedAt.UTC().Format(time.RFC3339)
	return result
}

func compareStatuses(before, after map[string]rules.Status) *DiffResult {
	result := &DiffResult{Drifts: []Drift{}}

	for id, was := range before {
		now, exists := after[id]
		switch {
		case !exists:
			result.Drifts = append(result.Drifts, Drift{
				RuleID:     id,
				ChangeType: ChangeTypeRemoved,
				Before:     was,
				Message:    fmt.Sprintf("%s no longer evaluated", id),
			})
		case now != was:
			result.Drifts = append(result.Drifts, Drift{
				RuleID:     id,
				ChangeType: ChangeTypeModified,
				Before:     was,
				After:      now,
				Message:    fmt.Sprintf("%s changed from %s to %s", id, was, now),
			})
		}
	}

	for id, now := range after {
		if _, exists := before[id]; !exists {
			result.Drifts = append(result.Drifts, Drift{
				RuleID:     id,
				ChangeType: ChangeTypeAdded,
				After:      now,
				Message:    fmt.Sprintf("%s newly evaluated as %s", id, now),
			})
		}
	}

	sort.Slice(result.Drifts, func(i, j int) bool {
		return result.Drifts[i].RuleID < result.Drifts[j].RuleID
	})
	for _, d := range result.Drifts {
		if d.Regression() {
			result.Regressions++
		}
	}
	result.DriftCount = len(result.Drifts)
	return result
}
