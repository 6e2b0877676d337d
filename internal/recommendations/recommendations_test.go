package recommendations

import (
	"strings"
	"testing"

	"github.com/girste/hardenspec/internal/rules"
)

func TestEveryDomainHasAdvice(t *testing.T) {
	fallback := ForDomain("no-such-domain")
	seen := make(map[string]string)
	for _, domain := range rules.Domains(rules.Catalogue()) {
		advice := ForDomain(domain)
		if advice == fallback {
			t.Errorf("domain %s has no specific advice", domain)
		}
		if other, dup := seen[advice]; dup {
			t.Errorf("domains %s and %s share advice", domain, other)
		}
		seen[advice] = domain
	}
}

func TestForDrift(t *testing.T) {
	if got := ForDrift(rules.DomainFirewall, true); !strings.Contains(got, "ufw") {
		t.Errorf("regression advice = %q, want the firewall fix", got)
	}
	if got := ForDrift(rules.DomainFirewall, false); strings.Contains(got, "ufw") {
		t.Errorf("improvement advice = %q, want no fix", got)
	}
}
