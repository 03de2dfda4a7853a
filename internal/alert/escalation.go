package alert

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/anomaly"
	"github.com/bhuwanb23/profitpulse-anomaly/internal/domain/errors"
)

// EscalationRule defines the timing contour for one severity: how long an
// alert may sit before its first escalation, how long between subsequent
// escalations, and the level ceiling.
type EscalationRule struct {
	FirstTimeout time.Duration
	StepTimeout  time.Duration
	MaxLevel     int
}

// DefaultEscalationRules gives every severity a rule, with higher severities
// escalating on shorter timeouts.
func DefaultEscalationRules() map[anomaly.Severity]EscalationRule {
	return map[anomaly.Severity]EscalationRule{
		anomaly.SeverityLow:      {FirstTimeout: 2 * time.Hour, StepTimeout: 4 * time.Hour, MaxLevel: 2},
		anomaly.SeverityMedium:   {FirstTimeout: time.Hour, StepTimeout: 2 * time.Hour, MaxLevel: 3},
		anomaly.SeverityHigh:     {FirstTimeout: 30 * time.Minute, StepTimeout: time.Hour, MaxLevel: 4},
		anomaly.SeverityCritical: {FirstTimeout: 15 * time.Minute, StepTimeout: 30 * time.Minute, MaxLevel: 5},
	}
}

// EscalationHandler fires on every level bump.
type EscalationHandler func(*anomaly.Alert)

// EscalationEngine is a polled state machine that promotes the urgency of
// unhandled alerts over time. It owns no background tasks; callers invoke
// Check periodically.
type EscalationEngine struct {
	mu       sync.Mutex
	rules    map[anomaly.Severity]EscalationRule
	handlers []EscalationHandler
	logger   *zap.Logger
	now      func() time.Time
}

// NewEscalationEngine builds an engine. Nil rules select the defaults. Every
// severity must have a rule.
func NewEscalationEngine(rules map[anomaly.Severity]EscalationRule, logger *zap.Logger) (*EscalationEngine, error) {
	if rules == nil {
		rules = DefaultEscalationRules()
	}
	for _, s := range anomaly.Severities {
		if _, ok := rules[s]; !ok {
			return nil, errors.NewValidationError("MISSING_ESCALATION_RULE",
				"no escalation rule for severity "+s.String())
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EscalationEngine{rules: rules, logger: logger, now: time.Now}, nil
}

// RegisterHandler subscribes a callback fired on every escalation.
func (e *EscalationEngine) RegisterHandler(h EscalationHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, h)
}

// Rule returns the configured rule for a severity.
func (e *EscalationEngine) Rule(s anomaly.Severity) (EscalationRule, bool) {
	r, ok := e.rules[s]
	return r, ok
}

// Check applies one escalation step to the alert if it is due. It returns
// true only when the level actually advanced. Handled alerts never escalate.
// At the level ceiling the alert saturates silently so repeated polls do not
// restorm the handlers.
func (e *EscalationEngine) Check(a *anomaly.Alert) bool {
	if a.IsHandled() {
		return false
	}
	rule := e.rules[a.Severity]

	now := e.now()
	level := a.Level()
	timeout := rule.FirstTimeout
	if level > 0 {
		timeout = rule.StepTimeout
	}
	if a.SinceLevelChange(now) <= timeout {
		return false
	}
	if level >= rule.MaxLevel {
		return false
	}
	if !a.Escalate(now) {
		return false
	}

	e.mu.Lock()
	handlers := make([]EscalationHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.Unlock()

	for _, h := range handlers {
		e.invoke(h, a)
	}

	e.logger.Info("alert escalated",
		zap.Int64("alert_id", a.AlertID),
		zap.String("severity", a.Severity.String()),
		zap.Int("level", a.Level()))
	return true
}

// CheckAll polls every alert and returns how many escalated.
func (e *EscalationEngine) CheckAll(alerts []*anomaly.Alert) int {
	escalated := 0
	for _, a := range alerts {
		if e.Check(a) {
			escalated++
		}
	}
	return escalated
}

func (e *EscalationEngine) invoke(h EscalationHandler, a *anomaly.Alert) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("escalation handler panicked",
				zap.Int64("alert_id", a.AlertID),
				zap.Any("panic", r))
		}
	}()
	h(a)
}
