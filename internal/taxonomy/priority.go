package taxonomy

// SeverityOf returns the default severity for a rule.
func SeverityOf(r RuleID) Severity {
	sev, ok := severityMap[r]
	if !ok {
		return SeverityInfo // unknown rules default to lowest severity
	}
	return sev
}

var severityMap = map[RuleID]Severity{
	NoAsserts:        SeverityError,
	ComputedExpected: SeverityWarning,
	ConditionalLogic: SeverityWarning,
	MultipleAsserts:  SeverityInfo,
}

// Rank orders severities for sorting; lower is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}
