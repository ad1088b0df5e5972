package report

import (
	"fmt"
	"math"
	"sort"
)

// Row is one finalized aggregate line of the report. Rebuilt per invocation,
// never persisted.
type Row struct {
	Name                  string   `json:"name"`
	Category              Category `json:"category"`
	TotalHours            float64  `json:"total_hours"`
	BillableHours         float64  `json:"billable_hours"`
	BilledAmount          float64  `json:"billed_amount"`
	Budget                float64  `json:"budget"`
	BudgetSpent           float64  `json:"budget_spent"`
	BudgetRemaining       float64  `json:"budget_remaining"`
	BudgetUsedPct         float64  `json:"budget_used_pct"`
	BudgetPercentComplete float64  `json:"budget_percent_complete"`
}

// finalize computes the derived fields from the accumulated raw sums.
// Percentages are 0 whenever budget <= 0, budgetRemaining never goes
// negative, and all values are rounded to 2 decimals exactly once here.
// Negative or NaN input indicates a provider data defect and is rejected.
func finalize(p partialRow) (Row, error) {
	for name, v := range map[string]float64{
		"hours":          p.totalHours,
		"billable hours": p.billableHours,
		"billed amount":  p.billedAmount,
		"budget":         p.budget,
		"budget spent":   p.budgetSpent,
	} {
		if math.IsNaN(v) || v < 0 {
			return Row{}, &ValidationError{Msg: fmt.Sprintf("group %q: invalid %s %v", p.group.Name, name, v)}
		}
	}

	remaining := p.budget - p.budgetSpent
	if remaining < 0 {
		remaining = 0
	}

	var usedPct, completePct float64
	if p.budget > 0 {
		usedPct = p.budgetSpent / p.budget * 100
		completePct = p.billedAmount / p.budget * 100
	}

	return Row{
		Name:                  p.group.Name,
		Category:              p.group.Category,
		TotalHours:            round2(p.totalHours),
		BillableHours:         round2(p.billableHours),
		BilledAmount:          round2(p.billedAmount),
		Budget:                round2(p.budget),
		BudgetSpent:           round2(p.budgetSpent),
		BudgetRemaining:       round2(remaining),
		BudgetUsedPct:         round2(usedPct),
		BudgetPercentComplete: round2(completePct),
	}, nil
}

// finalizeRows finalizes every accumulated row and sorts the result
// descending by total hours. The sort is stable over declaration order, so
// ties keep the configured ordering.
func finalizeRows(rows map[string]partialRow) ([]Row, error) {
	partials := make([]partialRow, 0, len(rows))
	for _, p := range rows {
		partials = append(partials, p)
	}
	sort.SliceStable(partials, func(i, j int) bool {
		return partials[i].order < partials[j].order
	})

	out := make([]Row, 0, len(partials))
	for _, p := range partials {
		row, err := finalize(p)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalHours > out[j].TotalHours
	})
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
