package monitoring

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/girste/hardenspec/internal/rules"
)

// NotificationRecord tracks when a failing rule was last notified
type NotificationRecord struct {
	Key          string       `json:"key"`
	RuleID       string       `json:"rule"`
	Status       rules.Status `json:"status"`
	FirstSeen    time.Time    `json:"first_seen"`
	LastNotified time.Time    `json:"last_notified"`
	NotifyCount  int          `json:"notify_count"`
}

// NotificationTracker remembers which failures were already sent so a
// failing rule is reported once and then reminded about once per interval.
type NotificationTracker struct {
	stateFile string
	records   map[string]*NotificationRecord
	mu        sync.Mutex

	reminderInterval time.Duration
	now              func() time.Time
}

// NewNotificationTracker creates a tracker persisting to stateDir
func NewNotificationTracker(stateDir string) *NotificationTracker {
	return &NotificationTracker{
		stateFile:        filepath.Join(stateDir, "notification_state.json"),
		records:          make(map[string]*NotificationRecord),
		reminderInterval: 24 * time.Hour,
		now:              time.Now,
	}
}

// Load reads the tracker state; a missing file is a first run
func (nt *NotificationTracker) Load() error {
	nt.mu.Lock()
	defer nt.mu.Unlock()

	data, err := os.ReadFile(nt.stateFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}

	var records []*NotificationRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to unmarshal state: %w", err)
	}
	for _, r := range records {
		nt.records[r.Key] = r
	}
	return nil
}

// Save persists the tracker state
func (nt *NotificationTracker) Save() error {
	nt.mu.Lock()
	defer nt.mu.Unlock()

	records := make([]*NotificationRecord, 0, len(nt.records))
	for _, r := range nt.records {
		records = append(records, r)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(nt.stateFile), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(nt.stateFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

// Observe records a failing outcome and reports whether a notification is
// due: it has never been delivered, or the reminder interval has passed
// since it last was. Nothing counts as delivered until MarkNotified.
func (nt *NotificationTracker) Observe(o rules.Outcome) bool {
	nt.mu.Lock()
	defer nt.mu.Unlock()

	key := outcomeKey(o)
	now := nt.now()

	record, exists := nt.records[key]
	if !exists {
		nt.records[key] = &NotificationRecord{
			Key:       key,
			RuleID:    o.RuleID,
			Status:    o.Status,
			FirstSeen: now,
		}
		return true
	}
	return record.LastNotified.IsZero() || now.Sub(record.LastNotified) >= nt.reminderInterval
}

// MarkNotified stamps the outcomes as delivered now
func (nt *NotificationTracker) MarkNotified(outcomes []rules.Outcome) {
	nt.mu.Lock()
	defer nt.mu.Unlock()

	now := nt.now()
	for _, o := range outcomes {
		record, exists := nt.records[outcomeKey(o)]
		if !exists {
			continue
		}
		record.LastNotified = now
		record.NotifyCount++
	}
}

// Resolve forgets every tracked failure that is not in failing, so a rule
// that recovers and breaks again is notified afresh. It returns the IDs of
// the resolved rules.
func (nt *NotificationTracker) Resolve(failing []rules.Outcome) []string {
	nt.mu.Lock()
	defer nt.mu.Unlock()

	active := make(map[string]bool, len(failing))
	for _, o := range failing {
		active[outcomeKey(o)] = true
	}

	var resolved []string
	for key, record := range nt.records {
		if !active[key] {
			resolved = append(resolved, record.RuleID)
			delete(nt.records, key)
		}
	}
	sort.Strings(resolved)
	return resolved
}

// Tracked returns the number of failures being tracked
func (nt *NotificationTracker) Tracked() int {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	return len(nt.records)
}

// outcomeKey identifies a failure by rule and status; the message is left
// out because it may carry values that change between runs
func outcomeKey(o rules.Outcome) string {
	sum := sha256.Sum256([]byte(o.RuleID + ":" + string(o.Status)))
	return fmt.Sprintf("%x", sum[:16])
}
