package report

import (
	"context"
	"time"
)

// TimeEntry is a single provider time entry, read-only to the report core.
type TimeEntry struct {
	ID           int64     `json:"id"`
	Date         time.Time `json:"date"`
	Hours        float64   `json:"hours"`
	Billable     bool      `json:"billable"`
	BillableRate *float64  `json:"billable_rate,omitempty"`
	HourlyRate   *float64  `json:"hourly_rate,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	UserName     string    `json:"user_name,omitempty"`
	ProjectID    int64     `json:"project_id"`
	ProjectName  string    `json:"project_name"`
	ClientID     int64     `json:"client_id"`
	ClientName   string    `json:"client_name"`
}

// Project is a provider project record. Budget figures are provider-reported
// and may be stale or absent (reported as 0).
type Project struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Budget          float64 `json:"budget"`
	BudgetSpent     float64 `json:"budget_spent"`
	BudgetRemaining float64 `json:"budget_remaining"`
	ClientID        int64   `json:"client_id"`
	ClientName      string  `json:"client_name"`
}

// Client is a provider client (customer) record.
type Client struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Filters narrows a time-entry fetch. UserName is a case-insensitive
// substring match applied client-side after the network call.
type Filters struct {
	UserName string
}

// Provider is the upstream time-tracking API as the report core sees it.
// Implementations must return an *UpstreamError on any fetch failure.
type Provider interface {
	FetchTimeEntries(ctx context.Context, from, to time.Time, f Filters) ([]TimeEntry, error)
	FetchProjects(ctx context.Context) ([]Project, error)
	FetchClients(ctx context.Context) ([]Client, error)
}
