package config

import (
	"path"
	"strings"
)

// Exception marks a rule as accepted risk on this host
type Exception struct {
	ID     string `yaml:"id"`     // Rule ID or glob, e.g. "firewall.*"
	Reason string `yaml:"reason"` // Why this rule is excepted
}

// ExceptionFor returns the exception covering ruleID, matching exact IDs
// first and then glob patterns in declaration order.
func (c *Config) ExceptionFor(ruleID string) (Exception, bool) {
	for _, exc := range c.Exceptions {
		if exc.ID == ruleID {
			return exc, true
		}
	}
	for _, exc := range c.Exceptions {
		if !strings.ContainsAny(exc.ID, "*?[") {
			continue
		}
		if ok, err := path.Match(exc.ID, ruleID); err == nil && ok {
			return exc, true
		}
	}
	return Exception{}, false
}

// IsForced reports whether a rule skipped by default was asked to run
func (c *Config) IsForced(ruleID string) bool {
	for _, id := range c.ForceRules {
		if id == ruleID {
			return true
		}
	}
	return false
}
