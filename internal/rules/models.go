// Package rules holds the hardening policy: one independent, read-only rule
// per assertion, grouped by domain, each evaluated against a host.Host.
package rules

import (
	"context"
	"time"

	"github.com/girste/hardenspec/internal/host"
)

// Status is the outcome kind of one rule
type Status string

const (
	StatusPass  Status = "pass"
	StatusFail  Status = "fail"  // the host violates the policy
	StatusError Status = "error" // the check could not be performed
	StatusSkip  Status = "skip"  // not evaluated, see the message
)

// Statuses lists every status in report order
var Statuses = []Status{StatusPass, StatusFail, StatusError, StatusSkip}

// CheckFunc inspects the host and decides. A returned error means the
// inspection itself failed; the runner reports it as StatusError.
type CheckFunc func(ctx context.Context, h *host.Host) (Status, string, error)

// Rule is one compliance assertion
type Rule struct {
	ID          string `json:"id"`
	Domain      string `json:"domain"`
	Description string `json:"description"`
	// Path is the file the rule inspects, when it inspects one
	Path string `json:"path,omitempty"`
	// SkipReason marks a rule that is not evaluated unless forced
	SkipReason string    `json:"skipReason,omitempty"`
	Check      CheckFunc `json:"-"`
}

// Outcome is the evaluated result of one rule
type Outcome struct {
	RuleID      string        `json:"id" yaml:"id"`
	Domain      string        `json:"domain" yaml:"domain"`
	Description string        `json:"description" yaml:"description"`
	Status      Status        `json:"status" yaml:"status"`
	Message     string        `json:"message" yaml:"message"`
	Duration    time.Duration `json:"durationNs" yaml:"-"`
}

// Failed reports whether the outcome counts against the exit status
func (o Outcome) Failed() bool {
	return o.Status == StatusFail || o.Status == StatusError
}
