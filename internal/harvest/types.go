package harvest

// --- API Response Types ---

// Ref is a reference to a user, client, project, or task nested in another
// record.
type Ref struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type TimeEntry struct {
	ID           int64    `json:"id"`
	SpentDate    string   `json:"spent_date"`
	Hours        float64  `json:"hours"`
	RoundedHours float64  `json:"rounded_hours,omitempty"`
	Notes        string   `json:"notes,omitempty"`
	Billable     bool     `json:"billable"`
	IsBilled     bool     `json:"is_billed,omitempty"`
	BillableRate *float64 `json:"billable_rate"`
	HourlyRate   *float64 `json:"hourly_rate"`
	User         Ref      `json:"user"`
	Client       Ref      `json:"client"`
	Project      Ref      `json:"project"`
	Task         Ref      `json:"task"`
}

type Project struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	Code            string   `json:"code,omitempty"`
	IsActive        bool     `json:"is_active"`
	IsBillable      bool     `json:"is_billable"`
	Budget          *float64 `json:"budget"`
	BudgetBy        string   `json:"budget_by,omitempty"`
	BudgetSpent     *float64 `json:"budget_spent"`
	BudgetRemaining *float64 `json:"budget_remaining"`
	Client          Ref      `json:"client"`
}

// Customer represents a Harvest client (customer) record.
type Customer struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
	Currency string `json:"currency,omitempty"`
}

// Company represents the Harvest account, used for credential validation.
type Company struct {
	Name       string `json:"name"`
	FullDomain string `json:"full_domain"`
	IsActive   bool   `json:"is_active"`
}

type timeEntriesResponse struct {
	TimeEntries []TimeEntry `json:"time_entries"`
	NextPage    *int        `json:"next_page"`
}

type projectsResponse struct {
	Projects []Project `json:"projects"`
	NextPage *int      `json:"next_page"`
}

type clientsResponse struct {
	Clients  []Customer `json:"clients"`
	NextPage *int       `json:"next_page"`
}
