package alert

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/anomaly"
)

// DefaultMessageTemplate is used when a caller passes an empty template.
const DefaultMessageTemplate = "Anomaly detected with {severity} severity"

// Handler receives every emitted alert. Panics inside a handler are
// contained and do not affect other handlers or the caller.
type Handler func(*anomaly.Alert)

// Generator orchestrates false-positive gating, alert construction, handler
// fan-out, and history retention.
type Generator struct {
	mu       sync.Mutex
	history  []*anomaly.Alert
	handlers []Handler

	fpDetector *FalsePositiveDetector
	logger     *zap.Logger
	now        func() time.Time

	alertSeq   atomic.Int64
	anomalySeq atomic.Int64
}

// NewGenerator builds a generator around the given gate. A nil gate means
// no suppression.
func NewGenerator(fp *FalsePositiveDetector, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		fpDetector: fp,
		logger:     logger,
		now:        time.Now,
	}
}

// RegisterHandler subscribes a callback. Multiple registrations of the same
// function are allowed and each fires.
func (g *Generator) RegisterHandler(h Handler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers = append(g.handlers, h)
}

// GenerateAlert emits one alert for the anomaly, or nil when the
// false-positive gate suppresses it. Suppressed anomalies leave no trace in
// history and fire no handlers.
func (g *Generator) GenerateAlert(data anomaly.Record, severity anomaly.Severity, messageTemplate string) *anomaly.Alert {
	if g.fpDetector != nil && g.fpDetector.IsFalsePositive(data) {
		g.logger.Debug("alert suppressed as false positive",
			zap.String("severity", severity.String()))
		return nil
	}

	if messageTemplate == "" {
		messageTemplate = DefaultMessageTemplate
	}
	message := strings.ReplaceAll(messageTemplate, "{severity}", strings.ToLower(severity.String()))

	a := &anomaly.Alert{
		AlertID:   g.alertSeq.Add(1),
		AnomalyID: g.anomalySeq.Add(1),
		Timestamp: g.now(),
		Severity:  severity,
		Message:   message,
		Data:      data.Clone(),
		Source:    anomaly.AlertSource,
	}

	g.mu.Lock()
	g.history = append(g.history, a)
	handlers := make([]Handler, len(g.handlers))
	copy(handlers, g.handlers)
	g.mu.Unlock()

	for _, h := range handlers {
		g.invoke(h, a)
	}

	g.logger.Info("alert generated",
		zap.Int64("alert_id", a.AlertID),
		zap.String("severity", severity.String()))
	return a
}

func (g *Generator) invoke(h Handler, a *anomaly.Alert) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("alert handler panicked",
				zap.Int64("alert_id", a.AlertID),
				zap.Any("panic", r))
		}
	}()
	h(a)
}

// GenerateBatchAlerts pairs data and severities element-wise and returns a
// same-length slice with nil at suppressed positions. Mismatched lengths
// produce an all-nil result of the data length.
func (g *Generator) GenerateBatchAlerts(data []anomaly.Record, severities []anomaly.Severity, messageTemplate string) []*anomaly.Alert {
	out := make([]*anomaly.Alert, len(data))
	if len(data) != len(severities) {
		g.logger.Warn("batch alert input length mismatch",
			zap.Int("data", len(data)),
			zap.Int("severities", len(severities)))
		return out
	}
	for i := range data {
		out[i] = g.GenerateAlert(data[i], severities[i], messageTemplate)
	}
	return out
}

// AlertHistory returns alerts newer than hoursBack hours, optionally
// restricted to one severity. hoursBack <= 0 means no recency cut. A nil
// severity filter admits all levels.
func (g *Generator) AlertHistory(hoursBack float64, severityFilter *anomaly.Severity) []*anomaly.Alert {
	g.mu.Lock()
	defer g.mu.Unlock()

	var cutoff time.Time
	if hoursBack > 0 {
		cutoff = g.now().Add(-time.Duration(hoursBack * float64(time.Hour)))
	}

	out := make([]*anomaly.Alert, 0, len(g.history))
	for _, a := range g.history {
		if !cutoff.IsZero() && a.Timestamp.Before(cutoff) {
			continue
		}
		if severityFilter != nil && a.Severity != *severityFilter {
			continue
		}
		out = append(out, a)
	}
	return out
}

// OpenAlerts returns the unhandled alerts, for escalation polling.
func (g *Generator) OpenAlerts() []*anomaly.Alert {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*anomaly.Alert, 0, len(g.history))
	for _, a := range g.history {
		if !a.IsHandled() {
			out = append(out, a)
		}
	}
	return out
}
