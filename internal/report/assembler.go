package report

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Report is the final data structure consumed by the UI and the email
// renderer.
type Report struct {
	Month          time.Time `json:"-"`
	Label          string    `json:"label"`
	Primary        []Row     `json:"primary"`
	HostingSupport []Row     `json:"hosting_support"`
	TotalHours     float64   `json:"total_hours"`
}

// Assembler orchestrates categorization and aggregation for one month. Both
// the interactive endpoint and the weekly scheduled job funnel into
// BuildReport; builds are independent and safe to run concurrently.
type Assembler struct {
	provider Provider
	targets  Targets
	rates    RatePolicy
	loc      *time.Location
}

// NewAssembler constructs an assembler. provider may be nil when no
// credentials are configured yet; BuildReport then short-circuits with
// ErrNotConfigured.
func NewAssembler(provider Provider, targets Targets, rates RatePolicy, loc *time.Location) *Assembler {
	if loc == nil {
		loc = time.Local
	}
	return &Assembler{
		provider: provider,
		targets:  targets,
		rates:    rates,
		loc:      loc,
	}
}

// BuildReport builds the full monthly report. month is either "YYYY-MM" or
// empty for the current calendar month. An invalid month fails with a
// ValidationError before any upstream fetch; any upstream failure aborts the
// whole report, no partial result is returned.
func (a *Assembler) BuildReport(ctx context.Context, month string) (*Report, error) {
	if a.provider == nil {
		return nil, ErrNotConfigured
	}

	first, last, err := resolveMonth(month, a.loc, time.Now)
	if err != nil {
		return nil, err
	}

	// The three fetches have no ordering dependency, so they run in
	// parallel and join before categorization.
	var (
		entries   []TimeEntry
		projects  []Project
		customers []Client
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = a.provider.FetchTimeEntries(gctx, first, last, Filters{})
		return err
	})
	g.Go(func() error {
		var err error
		projects, err = a.provider.FetchProjects(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		customers, err = a.provider.FetchClients(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	projects, entries = resolveClientNames(projects, entries, customers)

	rows, groupByProject := categorizeProjects(projects, a.targets.Projects)
	rows = categorizeTimeEntries(rows, entries, groupByProject, a.targets.Projects, a.rates)
	clientRows := categorizeByClient(projects, entries, a.targets.Clients, a.targets.HostingKeywords, a.rates)

	primary, err := finalizeRows(rows)
	if err != nil {
		return nil, err
	}
	hosting, err := finalizeRows(clientRows)
	if err != nil {
		return nil, err
	}

	var total float64
	for _, r := range primary {
		total += r.TotalHours
	}
	for _, r := range hosting {
		total += r.TotalHours
	}

	return &Report{
		Month:          first,
		Label:          first.Format("January 2006"),
		Primary:        primary,
		HostingSupport: hosting,
		TotalHours:     round2(total),
	}, nil
}

// resolveMonth turns "YYYY-MM" (or "" for the current month) into an
// inclusive [first day, last day] range in loc. The label of the report
// derives from this resolved month, never from wall-clock time.
func resolveMonth(month string, loc *time.Location, now func() time.Time) (time.Time, time.Time, error) {
	var first time.Time
	if month == "" {
		n := now().In(loc)
		first = time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, loc)
	} else {
		t, err := time.ParseInLocation("2006-01", month, loc)
		if err != nil {
			return time.Time{}, time.Time{}, &ValidationError{Msg: fmt.Sprintf("invalid month %q, use YYYY-MM", month)}
		}
		first = t
	}
	last := first.AddDate(0, 1, -1)
	return first, last, nil
}

// resolveClientNames fills blank client names on projects and entries from
// the client listing, matching by id. Provider payloads do not always carry
// the nested client on every record.
func resolveClientNames(projects []Project, entries []TimeEntry, customers []Client) ([]Project, []TimeEntry) {
	if len(customers) == 0 {
		return projects, entries
	}
	byID := make(map[int64]string, len(customers))
	for _, c := range customers {
		byID[c.ID] = c.Name
	}
	for i, p := range projects {
		if p.ClientName == "" {
			projects[i].ClientName = byID[p.ClientID]
		}
	}
	for i, e := range entries {
		if e.ClientName == "" {
			entries[i].ClientName = byID[e.ClientID]
		}
	}
	return projects, entries
}
