package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport kinds accepted in target.transport.
const (
	TransportAuto    = "auto"
	TransportLocal   = "local"
	TransportNsenter = "nsenter"
	TransportDocker  = "docker"
	TransportSSH     = "ssh"
)

// Privilege modes accepted in target.sudo.
const (
	SudoNever  = "never"
	SudoAuto   = "auto"
	SudoAlways = "always"
)

type Config struct {
	Target          TargetConfig  `yaml:"target"`
	Timeouts        TimeoutConfig `yaml:"timeouts"`
	MaxConcurrency  int           `yaml:"maxConcurrency"`
	AllowedCommands []string      `yaml:"allowedCommands"` // Extra executables rules may run
	Exceptions      []Exception   `yaml:"exceptions"`
	ForceRules      []string      `yaml:"forceRules"` // Rules skipped by default that should run anyway
	Output          OutputConfig  `yaml:"output"`
	Notifications   NotifyConfig  `yaml:"notifications"`
	Sink            SinkConfig    `yaml:"sink"`

	// Path of the file the config was loaded from, empty for defaults
	Path string `yaml:"-"`
}

// TargetConfig describes the host under test and how to reach it
type TargetConfig struct {
	Transport             string `yaml:"transport"` // auto, local, nsenter, docker, ssh
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	User                  string `yaml:"user"`
	Container             string `yaml:"container"`
	IdentityFile          string `yaml:"identityFile"`
	PassphraseEnv         string `yaml:"passphraseEnv"` // Env var holding the identity passphrase
	KnownHostsFile        string `yaml:"knownHostsFile"`
	InsecureIgnoreHostKey bool   `yaml:"insecureIgnoreHostKey"`
	Sudo                  string `yaml:"sudo"` // never, auto, always
}

// TimeoutConfig defines configurable timeout durations in seconds
type TimeoutConfig struct {
	Command int `yaml:"commandSeconds"` // Single inspection command (default: 30s)
	Rule    int `yaml:"ruleSeconds"`    // Whole rule, all of its commands (default: 60s)
	Dial    int `yaml:"dialSeconds"`    // Transport connection (default: 10s)
}

type OutputConfig struct {
	Format       string `yaml:"format"` // text, json, sarif
	MaskHostname bool   `yaml:"maskHostname"`
}

// NotifyConfig holds webhook notification settings
type NotifyConfig struct {
	Enabled        bool          `yaml:"enabled"`
	OnlyOnFailures bool          `yaml:"onlyOnFailures"`
	Discord        DiscordConfig `yaml:"discord"`
	Slack          SlackConfig   `yaml:"slack"`
	GenericWebhook WebhookConfig `yaml:"webhook"`
}

type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhookUrl"`
	Username   string `yaml:"username"`
	AvatarURL  string `yaml:"avatarUrl"`
}

type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhookUrl"`
	Channel    string `yaml:"channel"`
	Username   string `yaml:"username"`
}

type WebhookConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Method  string            `yaml:"method"` // POST, PUT
	Headers map[string]string `yaml:"headers"`
}

// SinkConfig holds destinations the report is pushed to after a run
type SinkConfig struct {
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"` // host:port, empty disables the sink
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Keep     int    `yaml:"keep"`    // Reports retained per host
	Channel  string `yaml:"channel"` // Pub/sub channel for run summaries
}

func Default() *Config {
	return &Config{
		Target: TargetConfig{
			Transport: TransportAuto,
			Port:      22,
			Sudo:      SudoAuto,
		},
		Timeouts: TimeoutConfig{
			Command: 30,
			Rule:    60,
			Dial:    10,
		},
		MaxConcurrency: 0,
		Output: OutputConfig{
			Format:       "text",
			MaskHostname: false,
		},
		Notifications: NotifyConfig{
			Enabled:        false,
			OnlyOnFailures: true,
			Discord: DiscordConfig{
				Username: "hardenspec",
			},
			Slack: SlackConfig{
				Username: "hardenspec",
			},
			GenericWebhook: WebhookConfig{
				Method: "POST",
			},
		},
		Sink: SinkConfig{
			Redis: RedisConfig{
				Keep:    50,
				Channel: "hardenspec:runs",
			},
		},
	}
}

// SearchPaths returns the config locations in priority order
func SearchPaths() []string {
	home, _ := os.UserHomeDir()
	searchPaths := []string{}

	// 1. Environment variable (highest priority - for Docker)
	if configDir := os.Getenv("HARDENSPEC_CONFIG_DIR"); configDir != "" {
		searchPaths = append(searchPaths,
			filepath.Join(configDir, ".hardenspec.yaml"),
			filepath.Join(configDir, ".hardenspec.yml"),
		)
	}

	// 2. Current directory
	searchPaths = append(searchPaths, ".hardenspec.yaml", ".hardenspec.yml")

	// 3. Home directory
	if home != "" {
		searchPaths = append(searchPaths,
			filepath.Join(home, ".hardenspec.yaml"),
			filepath.Join(home, ".hardenspec.yml"),
		)
	}

	// 4. System-wide config
	return append(searchPaths, "/etc/hardenspec/config.yaml")
}

// Load reads the config at path, or the first config found in SearchPaths
// when path is empty. HARDENSPEC_TARGET overrides the configured target.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.unmarshal(path, data); err != nil {
			return nil, err
		}
	} else {
		for _, candidate := range SearchPaths() {
			data, err := os.ReadFile(candidate)
			if err != nil {
				continue
			}
			if err := cfg.unmarshal(candidate, data); err != nil {
				return nil, err
			}
			break
		}
	}

	if raw := os.Getenv("HARDENSPEC_TARGET"); raw != "" {
		if err := cfg.ApplyTargetURL(raw); err != nil {
			return nil, fmt.Errorf("HARDENSPEC_TARGET: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) unmarshal(path string, data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("invalid config at %s: %w", path, err)
	}
	c.Path = path
	return nil
}

// GetMaxConcurrency returns the worker count for the runner. Remote transports
// default to one worker so a single target is not flooded with sessions.
func (c *Config) GetMaxConcurrency() int {
	if c.MaxConcurrency > 0 {
		return c.MaxConcurrency
	}
	switch c.Target.Transport {
	case TransportSSH, TransportDocker:
		return 1
	default:
		return runtime.NumCPU()
	}
}

// CommandTimeout returns the per-command timeout
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.Timeouts.Command) * time.Second
}

// RuleTimeout returns the per-rule timeout
func (c *Config) RuleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Rule) * time.Second
}

// DialTimeout returns the transport connect timeout
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.Timeouts.Dial) * time.Second
}

// Validate checks config for errors
func (c *Config) Validate() error {
	if err := c.Target.Validate(); err != nil {
		return err
	}

	if c.Timeouts.Command <= 0 || c.Timeouts.Rule <= 0 || c.Timeouts.Dial <= 0 {
		return fmt.Errorf("timeouts must be positive, got command=%d rule=%d dial=%d",
			c.Timeouts.Command, c.Timeouts.Rule, c.Timeouts.Dial)
	}

	if c.MaxConcurrency < 0 {
		return fmt.Errorf("maxConcurrency must not be negative, got: %d", c.MaxConcurrency)
	}

	switch c.Output.Format {
	case "text", "json", "sarif":
	default:
		return fmt.Errorf("invalid output format: %s (must be: text, json, sarif)", c.Output.Format)
	}

	for _, cmd := range c.AllowedCommands {
		if cmd == "" || strings.ContainsAny(cmd, " \t/") {
			return fmt.Errorf("invalid allowed command %q: must be a bare executable name", cmd)
		}
	}

	for i, exc := range c.Exceptions {
		if strings.TrimSpace(exc.ID) == "" {
			return fmt.Errorf("exception %d has no id", i)
		}
	}

	// Validate Discord webhook
	if c.Notifications.Discord.Enabled && c.Notifications.Discord.WebhookURL != "" {
		if !isHTTPURL(c.Notifications.Discord.WebhookURL) {
			return fmt.Errorf("invalid Discord webhook URL: must start with http:// or https://")
		}
	}

	// Validate Slack webhook
	if c.Notifications.Slack.Enabled && c.Notifications.Slack.WebhookURL != "" {
		if !isHTTPURL(c.Notifications.Slack.WebhookURL) {
			return fmt.Errorf("invalid Slack webhook URL: must start with http:// or https://")
		}
	}

	// Validate generic webhook
	if c.Notifications.GenericWebhook.Enabled && c.Notifications.GenericWebhook.URL != "" {
		if !isHTTPURL(c.Notifications.GenericWebhook.URL) {
			return fmt.Errorf("invalid generic webhook URL: must start with http:// or https://")
		}
	}

	if c.Sink.Redis.Keep < 0 {
		return fmt.Errorf("sink.redis.keep must not be negative, got: %d", c.Sink.Redis.Keep)
	}

	return nil
}

func isHTTPURL(raw string) bool {
	url := strings.TrimSpace(raw)
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}
