package anomaly

import (
	"encoding/json"
	"sync"
	"time"
)

// AlertSource identifies this core as the producer of every alert it emits.
const AlertSource = "anomaly_detector"

// Alert is a confirmed, non-suppressed anomaly promoted to operator
// visibility. IDs are allocated from process-wide monotonic sequences.
// EscalationLevel is mutated only by the escalation engine and is frozen
// once the alert is handled.
type Alert struct {
	mu sync.Mutex

	AlertID   int64     `json:"alert_id"`
	AnomalyID int64     `json:"anomaly_id"`
	Timestamp time.Time `json:"timestamp"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Data      Record    `json:"data"`
	Source    string    `json:"source"`

	EscalationLevel int        `json:"escalation_level"`
	LastLevelChange time.Time  `json:"-"`
	Handled         bool       `json:"handled"`
	HandledAt       *time.Time `json:"handled_timestamp,omitempty"`
}

// MarkHandled transitions the alert into its absorbing state. Subsequent
// escalation checks are no-ops and all fields are frozen. Idempotent.
func (a *Alert) MarkHandled(at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Handled {
		return
	}
	a.Handled = true
	a.HandledAt = &at
}

// IsHandled reports whether the alert has reached its absorbing state.
func (a *Alert) IsHandled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Handled
}

// Level returns the current escalation level.
func (a *Alert) Level() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.EscalationLevel
}

// Escalate bumps the escalation level by one and stamps the change time.
// Returns false without mutating when the alert is already handled.
func (a *Alert) Escalate(at time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Handled {
		return false
	}
	a.EscalationLevel++
	a.LastLevelChange = at
	return true
}

// SinceLevelChange returns the time elapsed since the last level change,
// falling back to creation time for a never-escalated alert.
func (a *Alert) SinceLevelChange(now time.Time) time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	ref := a.LastLevelChange
	if ref.IsZero() {
		ref = a.Timestamp
	}
	return now.Sub(ref)
}

// ToDict serializes every field for delivery, with the severity rendered as
// its symbolic name and the timestamp in ISO-8601.
func (a *Alert) ToDict() map[string]interface{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	d := map[string]interface{}{
		"alert_id":         a.AlertID,
		"anomaly_id":       a.AnomalyID,
		"timestamp":        a.Timestamp.Format(time.RFC3339),
		"severity":         a.Severity.String(),
		"message":          a.Message,
		"data":             a.Data,
		"source":           a.Source,
		"escalation_level": a.EscalationLevel,
		"handled":          a.Handled,
	}
	if a.HandledAt != nil {
		d["handled_timestamp"] = a.HandledAt.Format(time.RFC3339)
	}
	return d
}

// ToJSON renders the alert in its delivery form.
func (a *Alert) ToJSON() ([]byte, error) {
	return json.Marshal(a.ToDict())
}
