package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultYAML is the commented config written by init-config
const DefaultYAML = `# hardenspec configuration
#
# Target URL shortcuts (override with --target or HARDENSPEC_TARGET):
#   local://   nsenter://   docker://<container>   ssh://user@host:port

target:
  transport: auto          # auto, local, nsenter, docker, ssh
  host: ""
  port: 22
  user: ""
  container: ""
  identityFile: ""         # ssh private key, ssh-agent is used when empty
  passphraseEnv: ""        # env var holding the key passphrase
  knownHostsFile: ""       # defaults to ~/.ssh/known_hosts
  insecureIgnoreHostKey: false
  sudo: auto               # never, auto, always

timeouts:
  commandSeconds: 30
  ruleSeconds: 60
  dialSeconds: 10

maxConcurrency: 0          # 0 = 1 for ssh/docker, CPU count otherwise

# Executables rules may run in addition to the built-in read-only set
allowedCommands: []

# Accepted risk on this host. Excepted rules report SKIP with the reason.
exceptions: []
#  - id: file-integrity.aide-post-upgrade-hook
#    reason: "AIDE database rebuilt by the nightly job"

# Rules skipped by default that should be evaluated anyway
forceRules: []
#  - file-integrity.aide-db-immutable

output:
  format: text             # text, json, sarif
  maskHostname: false

notifications:
  enabled: false
  onlyOnFailures: true
  discord:
    enabled: false
    webhookUrl: ""
    username: hardenspec
  slack:
    enabled: false
    webhookUrl: ""
    channel: ""
    username: hardenspec
  webhook:
    enabled: false
    url: ""
    method: POST
    headers: {}

sink:
  redis:
    addr: ""               # host:port, empty disables
    password: ""
    db: 0
    keep: 50
    channel: "hardenspec:runs"
`

// WriteDefault writes DefaultYAML to path unless a file already exists there
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(DefaultYAML), 0600)
}

// DefaultPath is where init-config writes when no path is given: the
// system-wide location for root, the home directory otherwise. Both are
// in SearchPaths.
func DefaultPath() string {
	if dir := os.Getenv("HARDENSPEC_CONFIG_DIR"); dir != "" {
		return filepath.Join(dir, ".hardenspec.yaml")
	}
	if os.Geteuid() == 0 {
		return "/etc/hardenspec/config.yaml"
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".hardenspec.yaml")
	}
	return ".hardenspec.yaml"
}
