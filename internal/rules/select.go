package rules

import (
	"fmt"
	"path"

	herr "github.com/girste/hardenspec/internal/errors"
)

// Domains returns the domains of rules in first-seen order
func Domains(rules []Rule) []string {
	seen := make(map[string]bool)
	var domains []string
	for _, r := range rules {
		if !seen[r.Domain] {
			seen[r.Domain] = true
			domains = append(domains, r.Domain)
		}
	}
	return domains
}

// Find returns the rule with the given ID
func Find(rules []Rule, id string) (Rule, bool) {
	for _, r := range rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// Select keeps the rules in any of domains whose ID matches any of the
// patterns (path.Match syntax). Empty filters select everything. Order is
// preserved. Unknown domains and malformed patterns are errors so a typo
// never silently selects nothing.
func Select(rules []Rule, domains, patterns []string) ([]Rule, error) {
	known := make(map[string]bool)
	for _, d := range Domains(rules) {
		known[d] = true
	}
	wantDomain := make(map[string]bool, len(domains))
	for _, d := range domains {
		if !known[d] {
			return nil, herr.Wrap(herr.ErrInvalidInput, "unknown domain %q", d)
		}
		wantDomain[d] = true
	}
	for _, p := range patterns {
		if _, err := path.Match(p, ""); err != nil {
			return nil, herr.Wrap(herr.ErrInvalidInput, "bad rule pattern %q", p)
		}
	}

	var selected []Rule
	for _, r := range rules {
		if len(wantDomain) > 0 && !wantDomain[r.Domain] {
			continue
		}
		if len(patterns) > 0 && !matchAny(patterns, r.ID) {
			continue
		}
		selected = append(selected, r)
	}
	if len(selected) == 0 {
		return nil, herr.Wrap(herr.ErrInvalidInput, "no rule matches %s", describeFilter(domains, patterns))
	}
	return selected, nil
}

func matchAny(patterns []string, id string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, id); ok {
			return true
		}
	}
	return false
}

func describeFilter(domains, patterns []string) string {
	return fmt.Sprintf("domains %v and patterns %v", domains, patterns)
}
