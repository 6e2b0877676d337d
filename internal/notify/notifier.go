// Package notify posts run results to Discord, Slack or a generic webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/girste/hardenspec/internal/config"
	"github.com/girste/hardenspec/internal/runner"
)

const (
	webhookTimeout = 10 * time.Second
	maxListed      = 5
)

// Alert status values, worst first
const (
	StatusFail  = "fail"
	StatusError = "error"
	StatusOK    = "ok"
)

// AlertPayload is the standardized alert data
type AlertPayload struct {
	Timestamp string       `json:"timestamp"`
	RunID     string       `json:"run"`
	Hostname  string       `json:"hostname"`
	Target    string       `json:"target"`
	Status    string       `json:"status"` // fail, error, ok
	Pct       float64      `json:"pct"`
	Title     string       `json:"title"`
	Summary   string       `json:"summary"`
	Issues    []AlertIssue `json:"issues,omitempty"`
}

// AlertIssue is one failing rule
type AlertIssue struct {
	RuleID  string `json:"rule"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Domain  string `json:"domain,omitempty"`
}

// NotifyResult contains the result of notification attempts
type NotifyResult struct {
	Success bool          `json:"success"`
	Sent    []string      `json:"sent"`
	Failed  []NotifyError `json:"failed,omitempty"`
	Skipped string        `json:"skipped,omitempty"`
}

type NotifyError struct {
	Provider string `json:"provider"`
	Error    string `json:"error"`
}

// Notifier handles sending alerts to various webhook destinations
type Notifier struct {
	config *config.NotifyConfig
	client *http.Client
}

// NewNotifier creates a new notifier instance
func NewNotifier(cfg *config.NotifyConfig) *Notifier {
	return &Notifier{
		config: cfg,
		client: &http.Client{Timeout: webhookTimeout},
	}
}

// NewAlert builds the payload for a finished run
func NewAlert(report *runner.Report) *AlertPayload {
	s := report.Summary
	alert := &AlertPayload{
		Timestamp: report.FinishedAt.UTC().Format(time.RFC3339),
		RunID:     report.RunID,
		Hostname:  report.Host.Hostname,
		Target:    report.Target,
		Status:    StatusOK,
		Pct:       s.Pct,
		Summary: fmt.Sprintf("%d pass, %d fail, %d error, %d skip (%.1f%% compliant)",
			s.Passed, s.Failed, s.Errored, s.Skipped, s.Pct),
	}
	switch {
	case s.Failed > 0:
		alert.Status = StatusFail
	case s.Errored > 0:
		alert.Status = StatusError
	}
	alert.Title = fmt.Sprintf("Hardening compliance %s on %s", strings.ToUpper(alert.Status), alert.Hostname)

	for _, o := range report.Failures() {
		alert.Issues = append(alert.Issues, AlertIssue{
			RuleID:  o.RuleID,
			Status:  string(o.Status),
			Message: o.Message,
			Domain:  o.Domain,
		})
	}
	return alert
}

// ShouldNotify checks if notification should be sent based on config
func (n *Notifier) ShouldNotify(alert *AlertPayload) bool {
	if !n.config.Enabled {
		return false
	}
	if n.config.OnlyOnFailures && alert.Status == StatusOK {
		return false
	}
	return n.config.Discord.Enabled || n.config.Slack.Enabled || n.config.GenericWebhook.Enabled
}

// Send sends an alert to all configured webhooks
func (n *Notifier) Send(ctx context.Context, alert *AlertPayload) *NotifyResult {
	result := &NotifyResult{
		Success: true,
		Sent:    []string{},
		Failed:  []NotifyError{},
	}

	if !n.ShouldNotify(alert) {
		result.Skipped = "notifications disabled or run is clean"
		return result
	}

	if n.config.Discord.Enabled && n.config.Discord.WebhookURL != "" {
		if err := n.sendDiscord(ctx, alert); err != nil {
			result.Failed = append(result.Failed, NotifyError{Provider: "discord", Error: err.Error()})
			result.Success = false
		} else {
			result.Sent = append(result.Sent, "discord")
		}
	}

	if n.config.Slack.Enabled && n.config.Slack.WebhookURL != "" {
		if err := n.sendSlack(ctx, alert); err != nil {
			result.Failed = append(result.Failed, NotifyError{Provider: "slack", Error: err.Error()})
			result.Success = false
		} else {
			result.Sent = append(result.Sent, "slack")
		}
	}

	if n.config.GenericWebhook.Enabled && n.config.GenericWebhook.URL != "" {
		if err := n.sendGenericWebhook(ctx, alert); err != nil {
			result.Failed = append(result.Failed, NotifyError{Provider: "webhook", Error: err.Error()})
			result.Success = false
		} else {
			result.Sent = append(result.Sent, "webhook")
		}
	}

	return result
}

// issueLines lists up to maxListed issues, one per line
func issueLines(issues []AlertIssue) string {
	var sb strings.Builder
	for i, issue := range issues {
		if i >= maxListed {
			sb.WriteString(fmt.Sprintf("\n... and %d more", len(issues)-maxListed))
			break
		}
		sb.WriteString(fmt.Sprintf("\n• [%s] %s: %s", strings.ToUpper(issue.Status), issue.RuleID, issue.Message))
	}
	return sb.String()
}

// Discord webhook payload
type discordPayload struct {
	Username  string         `json:"username,omitempty"`
	AvatarURL string         `json:"avatar_url,omitempty"`
	Content   string         `json:"content,omitempty"`
	Embeds    []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Fields      []discordField `json:"fields,omitempty"`
	Footer      *discordFooter `json:"footer,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text"`
}

func (n *Notifier) sendDiscord(ctx context.Context, alert *AlertPayload) error {
	color := 0x2ECC71 // Green
	emoji := ":white_check_mark:"
	switch alert.Status {
	case StatusFail:
		color = 0xE74C3C // Red
		emoji = ":red_circle:"
	case StatusError:
		color = 0xF1C40F // Yellow
		emoji = ":yellow_circle:"
	}

	description := alert.Summary
	if len(alert.Issues) > 0 {
		description += "\n\n**Failing rules:**" + issueLines(alert.Issues)
	}

	payload := discordPayload{
		Username:  n.config.Discord.Username,
		AvatarURL: n.config.Discord.AvatarURL,
		Embeds: []discordEmbed{
			{
				Title:       alert.Title,
				Description: description,
				Color:       color,
				Timestamp:   alert.Timestamp,
				Fields: []discordField{
					{Name: "Status", Value: fmt.Sprintf("%s %s", emoji, strings.ToUpper(alert.Status)), Inline: true},
					{Name: "Compliance", Value: fmt.Sprintf("%.1f%%", alert.Pct), Inline: true},
					{Name: "Host", Value: alert.Hostname, Inline: true},
				},
				Footer: &discordFooter{Text: "hardenspec " + alert.RunID},
			},
		},
	}

	return n.postJSON(ctx, "POST", n.config.Discord.WebhookURL, nil, payload)
}

// Slack webhook payload
type slackPayload struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func (n *Notifier) sendSlack(ctx context.Context, alert *AlertPayload) error {
	color := "good"
	switch alert.Status {
	case StatusFail:
		color = "danger"
	case StatusError:
		color = "warning"
	}

	text := alert.Summary
	if len(alert.Issues) > 0 {
		text += "\n\n*Failing rules:*" + issueLines(alert.Issues)
	}

	payload := slackPayload{
		Channel:   n.config.Slack.Channel,
		Username:  n.config.Slack.Username,
		IconEmoji: ":shield:",
		Text:      fmt.Sprintf("*%s*", alert.Title),
		Attachments: []slackAttachment{
			{
				Color: color,
				Title: alert.Title,
				Text:  text,
				Fields: []slackField{
					{Title: "Status", Value: strings.ToUpper(alert.Status), Short: true},
					{Title: "Compliance", Value: fmt.Sprintf("%.1f%%", alert.Pct), Short: true},
					{Title: "Host", Value: alert.Hostname, Short: true},
				},
				Footer: "hardenspec " + alert.RunID,
			},
		},
	}

	return n.postJSON(ctx, "POST", n.config.Slack.WebhookURL, nil, payload)
}

func (n *Notifier) sendGenericWebhook(ctx context.Context, alert *AlertPayload) error {
	method := n.config.GenericWebhook.Method
	if method == "" {
		method = "POST"
	}
	return n.postJSON(ctx, method, n.config.GenericWebhook.URL, n.config.GenericWebhook.Headers, alert)
}

func (n *Notifier) postJSON(ctx context.Context, method, url string, headers map[string]string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// TestWebhook sends a test notification
func (n *Notifier) TestWebhook(ctx context.Context, provider string) error {
	testAlert := &AlertPayload{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Hostname:  "test-host",
		Status:    StatusOK,
		Pct:       100,
		Title:     "Test Notification",
		Summary:   "This is a test notification from hardenspec to verify webhook configuration.",
	}

	switch provider {
	case "discord":
		return n.sendDiscord(ctx, testAlert)
	case "slack":
		return n.sendSlack(ctx, testAlert)
	case "webhook":
		return n.sendGenericWebhook(ctx, testAlert)
	default:
		return fmt.Errorf("unknown provider: %s", provider)
	}
}
