package anomaly

import (
	"fmt"
	"strings"
)

// Severity is the ordinal urgency classification of a confirmed anomaly.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// Severities lists all levels in ascending order.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Valid reports whether s is one of the four defined levels.
func (s Severity) Valid() bool {
	return s >= SeverityLow && s <= SeverityCritical
}

// ParseSeverity maps a symbolic name back to its level. Names are matched
// case-insensitively so query parameters can arrive lowercase.
func ParseSeverity(name string) (Severity, error) {
	for _, s := range Severities {
		if strings.EqualFold(s.String(), name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", name)
}

// Description returns the operator-facing explanation of a level.
func (s Severity) Description() string {
	switch s {
	case SeverityLow:
		return "Minor deviation from expected behavior, informational only"
	case SeverityMedium:
		return "Notable deviation that warrants review during business hours"
	case SeverityHigh:
		return "Significant deviation requiring prompt investigation"
	case SeverityCritical:
		return "Severe deviation with likely business impact, act immediately"
	default:
		return "Unknown severity"
	}
}
