package risk

import "strings"

// Severity ranks an aggregated finding. Ordering matters: merges only ever
// escalate, never downgrade.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	default:
		return "low"
	}
}

// LikelihoodImpact maps severity to the risk register's numeric axes. Both
// axes are always equal.
func (s Severity) LikelihoodImpact() (int, int) {
	switch s {
	case SeverityHigh:
		return 4, 4
	case SeverityMedium:
		return 3, 3
	default:
		return 2, 2
	}
}

// ClassifySeverity scores one free-text issue by keyword heuristics.
func ClassifySeverity(issue string) Severity {
	lower := strings.ToLower(issue)
	switch {
	case strings.Contains(lower, "critical"), strings.Contains(lower, "secret"):
		return SeverityHigh
	case strings.Contains(lower, "security"), strings.Contains(lower, "vulnerabilit"):
		return SeverityHigh
	case strings.Contains(lower, "branch protection"), strings.Contains(lower, "without review"):
		return SeverityMedium
	default:
		return SeverityLow
	}
}
