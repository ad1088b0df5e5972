package report

import "strings"

// Category distinguishes ordinary project lines from client-keyed
// hosting-support lines.
type Category string

const (
	CategoryPrimary        Category = "primary"
	CategoryHostingSupport Category = "hosting-support"
)

// TargetGroup is a configured business category that raw provider records are
// consolidated into. Keywords are lowercase substrings matched against raw
// project or client names; declaration order is matching precedence.
type TargetGroup struct {
	Name     string
	Keywords []string
	Category Category

	// BudgetFallback substitutes for a provider-reported budget of 0 or
	// absent. Primary groups only.
	BudgetFallback float64

	// SupportHours and SupportRate define the nominal budget of a
	// hosting-support group (SupportHours x SupportRate).
	SupportHours float64
	SupportRate  float64
}

// Matches reports whether name contains any of the group's keywords,
// case-insensitively.
func (g TargetGroup) Matches(name string) bool {
	return containsAny(strings.ToLower(name), g.Keywords)
}

// NominalBudget is the fixed support allotment priced at the fixed support
// rate. Zero for primary groups.
func (g TargetGroup) NominalBudget() float64 {
	return g.SupportHours * g.SupportRate
}

// matchGroup returns the index of the first declared group whose keyword set
// matches name. A name containing several groups' keywords matches only the
// first declared one.
func matchGroup(groups []TargetGroup, name string) (int, bool) {
	lower := strings.ToLower(name)
	for i, g := range groups {
		if containsAny(lower, g.Keywords) {
			return i, true
		}
	}
	return 0, false
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Targets is the full categorization configuration handed to the assembler at
// construction: ordered primary project groups, ordered hosting-support
// client groups, and the keyword set that marks a project as hosting work.
type Targets struct {
	Projects        []TargetGroup
	Clients         []TargetGroup
	HostingKeywords []string
}

// RatePolicy decides which entry-level rate field prices billable hours and
// what to charge when the chosen field is absent or zero.
type RatePolicy struct {
	Source   string // RateSourceBillable or RateSourceHourly
	Fallback float64
}

const (
	RateSourceBillable = "billable_rate"
	RateSourceHourly   = "hourly_rate"
)

// EntryRate resolves the hourly rate for a single time entry.
func (p RatePolicy) EntryRate(e TimeEntry) float64 {
	var r *float64
	switch p.Source {
	case RateSourceHourly:
		r = e.HourlyRate
	default:
		r = e.BillableRate
	}
	if r == nil || *r <= 0 {
		return p.Fallback
	}
	return *r
}
