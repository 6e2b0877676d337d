// Package output renders run reports as text, JSON, compact JSON and
// SARIF 2.1.0.
// SARIF (Static Analysis Results Interchange Format) is a standard
// JSON format for security findings, used by GitHub/GitLab Code Scanning.
package output

import (
	"fmt"

	"github.com/girste/hardenspec/internal/recommendations"
	"github.com/girste/hardenspec/internal/rules"
	"github.com/girste/hardenspec/internal/runner"
)

// SARIF 2.1.0 specification
// Spec: https://docs.oasis-open.org/sarif/sarif/v2.1.0/sarif-v2.1.0.html

type SARIFReport struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []SARIFRun `json:"runs"`
}

type SARIFRun struct {
	Tool       SARIFTool              `json:"tool"`
	Results    []SARIFResult          `json:"results"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

type SARIFTool struct {
	Driver SARIFDriver `json:"driver"`
}

type SARIFDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []SARIFRule `json:"rules"`
}

type SARIFRule struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	ShortDescription SARIFText `json:"shortDescription"`
	Help             SARIFText `json:"help"`
}

type SARIFResult struct {
	RuleID    string          `json:"ruleId"`
	RuleIndex int             `json:"ruleIndex"`
	Level     string          `json:"level"`
	Message   SARIFMessage    `json:"message"`
	Locations []SARIFLocation `json:"locations,omitempty"`
	Kind      string          `json:"kind,omitempty"`
}

type SARIFMessage struct {
	Text string `json:"text"`
}

type SARIFText struct {
	Text string `json:"text"`
}

type SARIFLocation struct {
	PhysicalLocation *SARIFPhysicalLocation `json:"physicalLocation,omitempty"`
	LogicalLocations []SARIFLogicalLocation `json:"logicalLocations,omitempty"`
}

type SARIFPhysicalLocation struct {
	ArtifactLocation SARIFArtifactLocation `json:"artifactLocation"`
}

type SARIFArtifactLocation struct {
	URI string `json:"uri"`
}

type SARIFLogicalLocation struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

// ConvertToSARIF converts a run report to SARIF 2.1.0. Every catalogue rule
// is listed in the driver; only FAIL and ERROR outcomes become results.
func ConvertToSARIF(report *runner.Report, catalogue []rules.Rule, version string) *SARIFReport {
	sarif := &SARIFReport{
		Version: "2.1.0",
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Runs:    []SARIFRun{},
	}

	index := make(map[string]int, len(catalogue))
	paths := make(map[string]string, len(catalogue))
	sarifRules := make([]SARIFRule, 0, len(catalogue))
	for i, r := range catalogue {
		index[r.ID] = i
		paths[r.ID] = r.Path
		sarifRules = append(sarifRules, SARIFRule{
			ID:               r.ID,
			Name:             r.Domain,
			ShortDescription: SARIFText{Text: r.Description},
			Help:             SARIFText{Text: recommendations.ForDomain(r.Domain)},
		})
	}

	results := []SARIFResult{}
	for _, o := range report.Outcomes {
		if !o.Failed() {
			continue
		}
		i, known := index[o.RuleID]
		if !known {
			i = len(sarifRules)
			index[o.RuleID] = i
			sarifRules = append(sarifRules, SARIFRule{
				ID:               o.RuleID,
				Name:             o.Domain,
				ShortDescription: SARIFText{Text: o.Description},
				Help:             SARIFText{Text: recommendations.ForDomain(o.Domain)},
			})
		}
		results = append(results, SARIFResult{
			RuleID:    o.RuleID,
			RuleIndex: i,
			Level:     mapStatusToSARIFLevel(o.Status),
			Message:   SARIFMessage{Text: o.Message},
			Locations: []SARIFLocation{mapRuleToLocation(o, paths[o.RuleID], report.Host.Hostname)},
			Kind:      "fail",
		})
	}

	sarif.Runs = append(sarif.Runs, SARIFRun{
		Tool: SARIFTool{
			Driver: SARIFDriver{
				Name:           "hardenspec",
				Version:        version,
				InformationURI: "https://github.com/girste/hardenspec",
				Rules:          sarifRules,
			},
		},
		Results: results,
		Properties: map[string]interface{}{
			"runId":  report.RunID,
			"target": report.Target,
		},
	})

	return sarif
}

// A policy violation is an error; a check that could not run is a warning
// because the host state is unknown.
func mapStatusToSARIFLevel(status rules.Status) string {
	switch status {
	case rules.StatusFail:
		return "error"
	case rules.StatusError:
		return "warning"
	default:
		return "note"
	}
}

func mapRuleToLocation(o rules.Outcome, path, hostname string) SARIFLocation {
	loc := SARIFLocation{
		LogicalLocations: []SARIFLogicalLocation{
			{Name: fmt.Sprintf("%s/%s", hostname, o.Domain), Kind: "resource"},
		},
	}
	if path != "" {
		loc.PhysicalLocation = &SARIFPhysicalLocation{
			ArtifactLocation: SARIFArtifactLocation{URI: "file://" + path},
		}
	}
	return loc
}
