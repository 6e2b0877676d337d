// Package baseline snapshots the per-rule statuses of a run into a signed
// YAML file and reports drift when a later run differs.
package baseline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	herr "github.com/girste/hardenspec/internal/errors"
	"github.com/girste/hardenspec/internal/rules"
	"github.com/girste/hardenspec/internal/runner"
	"github.com/girste/hardenspec/internal/util"
	"gopkg.in/yaml.v3"
)

// Baseline represents a signed snapshot of rule statuses
type Baseline struct {
	Metadata  Metadata                `yaml:"metadata"`
	Signature string                  `yaml:"signature"`
	Outcomes  map[string]rules.Status `yaml:"outcomes"`
}

// Metadata contains baseline metadata
type Metadata struct {
	Timestamp string `yaml:"timestamp"`
	RunID     string `yaml:"run"`
	Hostname  string `yaml:"hostname"`
	Target    string `yaml:"target"`
	Version   string `yaml:"version"`
	OS        string `yaml:"os"`
	Kernel    string `yaml:"kernel"`
}

// Create generates a new baseline from a run report
func Create(report *runner.Report, version string) *Baseline {
	baseline := &Baseline{
		Metadata: Metadata{
			Timestamp: report.FinishedAt.UTC().Format(time.RFC3339),
			RunID:     report.RunID,
			Hostname:  report.Host.Hostname,
			Target:    report.Target,
			Version:   version,
			OS:        report.Host.Release,
			Kernel:    report.Host.Kernel,
		},
		Outcomes: Statuses(report.Outcomes),
	}
	baseline.Signature = calculateSignature(baseline)
	return baseline
}

// Statuses indexes outcomes by rule ID
func Statuses(outcomes []rules.Outcome) map[string]rules.Status {
	statuses := make(map[string]rules.Status, len(outcomes))
	for _, o := range outcomes {
		statuses[o.RuleID] = o.Status
	}
	return statuses
}

// Save writes the baseline to a YAML file
func Save(baseline *Baseline, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create baseline directory: %w", err)
	}

	baseline.Signature = calculateSignature(baseline)

	data, err := yaml.Marshal(baseline)
	if err != nil {
		return fmt.Errorf("failed to marshal baseline: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write baseline file: %w", err)
	}

	return nil
}

// calculateSignature hashes the metadata and the outcome list in rule ID
// order, so any edit to either invalidates the file.
func calculateSignature(baseline *Baseline) string {
	var sb strings.Builder
	m := baseline.Metadata
	sb.WriteString(strings.Join([]string{m.Timestamp, m.RunID, m.Hostname, m.Target, m.Version, m.OS, m.Kernel}, "|"))
	sb.WriteString("\n")

	ids := make([]string, 0, len(baseline.Outcomes))
	for id := range baseline.Outcomes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		sb.WriteString(id + "=" + string(baseline.Outcomes[id]) + "\n")
	}

	hash := sha256.Sum256([]byte(sb.String()))
	return "sha256:" + hex.EncodeToString(hash[:])
}

// Load reads and validates a baseline from a YAML file
func Load(path string) (*Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline file: %w", err)
	}

	var baseline Baseline
	if err := yaml.Unmarshal(data, &baseline); err != nil {
		return nil, herr.Wrap(herr.ErrParseFailure, "baseline %s: %v", path, err)
	}

	if err := Verify(&baseline); err != nil {
		return nil, fmt.Errorf("baseline %s: %w", path, err)
	}

	return &baseline, nil
}

// Verify checks if the baseline signature is valid
func Verify(baseline *Baseline) error {
	computed := calculateSignature(baseline)
	if computed != baseline.Signature {
		return herr.Wrap(herr.ErrSignature, "signature mismatch (expected: %s, got: %s)", baseline.Signature, computed)
	}
	return nil
}

// GetDefaultPath returns the default baseline file path
func GetDefaultPath() string {
	return filepath.Join(util.GetStateDir(), "baseline.yaml")
}
