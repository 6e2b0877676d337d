package runner

import (
	"math"
	"time"

	"github.com/girste/hardenspec/internal/host"
	"github.com/girste/hardenspec/internal/rules"
)

// Summary holds the run-wide compliance metrics
type Summary struct {
	Total   int     `json:"total" yaml:"total"`
	Passed  int     `json:"pass" yaml:"pass"`
	Failed  int     `json:"fail" yaml:"fail"`
	Errored int     `json:"error" yaml:"error"`
	Skipped int     `json:"skip" yaml:"skip"`
	Pct     float64 `json:"pct" yaml:"pct"`
}

// DomainSummary holds the metrics of one policy domain. Skipped rules are
// not counted.
type DomainSummary struct {
	Name   string  `json:"name" yaml:"name"`
	Passed int     `json:"pass" yaml:"pass"`
	Total  int     `json:"total" yaml:"total"`
	Pct    float64 `json:"pct" yaml:"pct"`
}

// Report is the complete result of one run
type Report struct {
	RunID      string          `json:"runId"`
	Target     string          `json:"target"`
	Transport  string          `json:"transport"`
	Host       host.Facts      `json:"host"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
	Summary    *Summary        `json:"summary"`
	Domains    []DomainSummary `json:"domains"`
	Outcomes   []rules.Outcome `json:"outcomes"`
	Stats      host.Stats      `json:"commands"`
}

// Duration is the wall time of the run
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failures returns the FAIL and ERROR outcomes in report order
func (r *Report) Failures() []rules.Outcome {
	var failed []rules.Outcome
	for _, o := range r.Outcomes {
		if o.Failed() {
			failed = append(failed, o)
		}
	}
	return failed
}

// ExitCode is 0 for a clean run and 1 when any rule failed or errored
func (r *Report) ExitCode() int {
	if r.Summary.Failed > 0 || r.Summary.Errored > 0 {
		return 1
	}
	return 0
}

// summarize fills the run and per-domain metrics from the outcomes
func summarize(outcomes []rules.Outcome) (*Summary, []DomainSummary) {
	summary := &Summary{}
	var order []string
	trackers := make(map[string]*domainTracker)

	for _, o := range outcomes {
		summary.Total++
		switch o.Status {
		case rules.StatusPass:
			summary.Passed++
		case rules.StatusFail:
			summary.Failed++
		case rules.StatusError:
			summary.Errored++
		case rules.StatusSkip:
			summary.Skipped++
		}

		tracker, exists := trackers[o.Domain]
		if !exists {
			tracker = &domainTracker{}
			trackers[o.Domain] = tracker
			order = append(order, o.Domain)
		}
		if o.Status != rules.StatusSkip {
			tracker.total++
			if o.Status == rules.StatusPass {
				tracker.passed++
			}
		}
	}

	summary.Pct = pct(summary.Passed, summary.Total-summary.Skipped)

	domains := make([]DomainSummary, 0, len(order))
	for _, name := range order {
		tracker := trackers[name]
		domains = append(domains, DomainSummary{
			Name:   name,
			Passed: tracker.passed,
			Total:  tracker.total,
			Pct:    pct(tracker.passed, tracker.total),
		})
	}
	return summary, domains
}

type domainTracker struct {
	passed int
	total  int
}

func pct(passed, scored int) float64 {
	if scored == 0 {
		return 0
	}
	return roundPct(float64(passed) / float64(scored) * 100)
}

// roundPct rounds percentage to 1 decimal place
func roundPct(pct float64) float64 {
	return math.Round(pct*10) / 10
}
