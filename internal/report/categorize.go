package report

import "strings"

// partialRow accumulates raw sums for one target group in full precision.
// Rounding happens once, in finalize.
type partialRow struct {
	group TargetGroup
	order int // declaration order, breaks sorting ties

	totalHours    float64
	billableHours float64
	billedAmount  float64

	budget          float64
	budgetSpent     float64
	budgetRemaining float64
}

// seedRows pre-seeds one row per declared group so that groups with zero
// matching activity still appear in the output. Hosting-support rows start
// with their nominal budget.
func seedRows(groups []TargetGroup) map[string]partialRow {
	rows := make(map[string]partialRow, len(groups))
	for i, g := range groups {
		row := partialRow{group: g, order: i}
		if g.Category == CategoryHostingSupport {
			row.budget = g.NominalBudget()
		}
		rows[g.Name] = row
	}
	return rows
}

// categorizeProjects matches raw projects against the declared groups,
// first matching keyword wins. It returns the seeded rows with budgets
// resolved and the project-id to group-key mapping used to route time
// entries. Unmatched projects are dropped.
//
// When several raw projects back the same group the maximum budget seen wins,
// so duplicate provider-side project records do not silently sum. A provider
// budget of 0 or absent is replaced by the group's configured fallback before
// the comparison.
func categorizeProjects(projects []Project, groups []TargetGroup) (map[string]partialRow, map[int64]string) {
	rows := seedRows(groups)
	groupByProject := make(map[int64]string)

	for _, p := range projects {
		idx, ok := matchGroup(groups, p.Name)
		if !ok {
			continue
		}
		g := groups[idx]
		groupByProject[p.ID] = g.Name

		budget := p.Budget
		if budget <= 0 {
			budget = g.BudgetFallback
		}
		row := rows[g.Name]
		if budget > row.budget {
			// Adopt the winning record's provider-reported spend along
			// with its budget so the figures stay from one record.
			row.budget = budget
			row.budgetSpent = p.BudgetSpent
			row.budgetRemaining = p.BudgetRemaining
		}
		rows[g.Name] = row
	}
	return rows, groupByProject
}

// categorizeTimeEntries routes each entry's hours and billable amount into
// its project's group, returning a new row map. Entries route primarily by
// the project-id mapping established by categorizeProjects; when the project
// list and the entry list are inconsistent (an entry references a project id
// that was never listed) the entry's own project name is matched against the
// keyword sets so legitimately billed hours are not lost. Entries matching
// nothing are excluded entirely.
func categorizeTimeEntries(rows map[string]partialRow, entries []TimeEntry, groupByProject map[int64]string, groups []TargetGroup, rates RatePolicy) map[string]partialRow {
	out := make(map[string]partialRow, len(rows))
	for k, v := range rows {
		out[k] = v
	}

	for _, e := range entries {
		key, ok := groupByProject[e.ProjectID]
		if !ok {
			idx, matched := matchGroup(groups, e.ProjectName)
			if !matched {
				continue
			}
			key = groups[idx].Name
		}
		row := out[key]
		row.totalHours += e.Hours
		if e.Billable {
			row.billableHours += e.Hours
			row.billedAmount += e.Hours * rates.EntryRate(e)
		}
		out[key] = row
	}
	return out
}

// categorizeByClient is the second, client-keyed pass. It considers only
// records whose project name matches the hosting keyword set, resolves each
// matching project's owning client, and accumulates into one row per
// declared client target. Every declared client target appears in the
// output, pre-seeded with its nominal support budget, even with zero matched
// hours.
func categorizeByClient(projects []Project, entries []TimeEntry, clientTargets []TargetGroup, hostingKeywords []string, rates RatePolicy) map[string]partialRow {
	rows := seedRows(clientTargets)

	clientByProject := make(map[int64]string)
	for _, p := range projects {
		if !containsAny(strings.ToLower(p.Name), hostingKeywords) {
			continue
		}
		idx, ok := matchGroup(clientTargets, p.ClientName)
		if !ok {
			continue
		}
		clientByProject[p.ID] = clientTargets[idx].Name
	}

	for _, e := range entries {
		key, ok := clientByProject[e.ProjectID]
		if !ok {
			// Same defensive routing as the project pass: an entry can
			// reference a hosting project missing from the listing.
			if !containsAny(strings.ToLower(e.ProjectName), hostingKeywords) {
				continue
			}
			idx, matched := matchGroup(clientTargets, e.ClientName)
			if !matched {
				continue
			}
			key = clientTargets[idx].Name
		}
		row := rows[key]
		row.totalHours += e.Hours
		if e.Billable {
			row.billableHours += e.Hours
			row.billedAmount += e.Hours * rates.EntryRate(e)
		}
		rows[key] = row
	}
	return rows
}
