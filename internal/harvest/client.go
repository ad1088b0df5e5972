package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"harvestbot/internal/report"
)

const BaseURL = "https://api.harvestapp.com/v2"

const defaultTimeout = 30 * time.Second

// Client wraps the Harvest v2 API for one account. No local state beyond the
// credentials; side effects are outbound network calls only. Retries, if any,
// are the caller's responsibility.
type Client struct {
	accountID  string
	token      string
	baseURL    string
	httpClient *http.Client
}

func NewClient(accountID, token string) *Client {
	return NewClientWithBaseURL(accountID, token, BaseURL)
}

func NewClientWithBaseURL(accountID, token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = BaseURL
	}
	return &Client{
		accountID: accountID,
		token:     token,
		baseURL:   baseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// SetTimeout bounds worst-case latency of a single upstream call.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.httpClient.Timeout = d
	}
}

func (c *Client) doRequest(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	reqURL, err := url.Parse(c.baseURL + endpoint)
	if err != nil {
		return nil, err
	}

	q := reqURL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Harvest-Account-ID", c.accountID)
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", "harvestbot")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &report.UpstreamError{Provider: "harvest", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &report.UpstreamError{Provider: "harvest", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("harvest api error", "status", resp.StatusCode, "endpoint", endpoint, "body", string(body))
		return nil, &report.UpstreamError{Provider: "harvest", Err: fmt.Errorf("harvest api returned status %d", resp.StatusCode)}
	}

	return body, nil
}

// --- API Methods ---

// FetchTimeEntries lists all time entries in the inclusive [from, to] range,
// following pagination. The user-name filter is applied client-side after
// the fetch.
func (c *Client) FetchTimeEntries(ctx context.Context, from, to time.Time, f report.Filters) ([]report.TimeEntry, error) {
	var out []report.TimeEntry
	page := 1
	for {
		body, err := c.doRequest(ctx, "/time_entries", map[string]string{
			"from": from.Format("2006-01-02"),
			"to":   to.Format("2006-01-02"),
			"page": strconv.Itoa(page),
		})
		if err != nil {
			return nil, err
		}

		var resp timeEntriesResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, &report.UpstreamError{Provider: "harvest", Err: err}
		}
		for _, e := range resp.TimeEntries {
			out = append(out, e.toReport())
		}
		if resp.NextPage == nil {
			break
		}
		page = *resp.NextPage
	}

	if f.UserName != "" {
		needle := strings.ToLower(f.UserName)
		filtered := out[:0]
		for _, e := range out {
			if strings.Contains(strings.ToLower(e.UserName), needle) {
				filtered = append(filtered, e)
			}
		}
		out = filtered
	}
	return out, nil
}

// FetchProjects lists all projects, following pagination.
func (c *Client) FetchProjects(ctx context.Context) ([]report.Project, error) {
	var out []report.Project
	page := 1
	for {
		body, err := c.doRequest(ctx, "/projects", map[string]string{
			"page": strconv.Itoa(page),
		})
		if err != nil {
			return nil, err
		}

		var resp projectsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, &report.UpstreamError{Provider: "harvest", Err: err}
		}
		for _, p := range resp.Projects {
			out = append(out, p.toReport())
		}
		if resp.NextPage == nil {
			break
		}
		page = *resp.NextPage
	}
	return out, nil
}

// FetchClients lists all clients (customers), following pagination.
func (c *Client) FetchClients(ctx context.Context) ([]report.Client, error) {
	var out []report.Client
	page := 1
	for {
		body, err := c.doRequest(ctx, "/clients", map[string]string{
			"page": strconv.Itoa(page),
		})
		if err != nil {
			return nil, err
		}

		var resp clientsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, &report.UpstreamError{Provider: "harvest", Err: err}
		}
		for _, cl := range resp.Clients {
			out = append(out, report.Client{ID: cl.ID, Name: cl.Name})
		}
		if resp.NextPage == nil {
			break
		}
		page = *resp.NextPage
	}
	return out, nil
}

// TestConnection performs a lightweight credential-validation call.
func (c *Client) TestConnection(ctx context.Context) (bool, error) {
	body, err := c.doRequest(ctx, "/company", nil)
	if err != nil {
		return false, err
	}

	var company Company
	if err := json.Unmarshal(body, &company); err != nil {
		return false, &report.UpstreamError{Provider: "harvest", Err: err}
	}
	return company.FullDomain != "", nil
}

// --- Conversions to the report core's data model ---

func (e TimeEntry) toReport() report.TimeEntry {
	date, _ := time.Parse("2006-01-02", e.SpentDate)
	return report.TimeEntry{
		ID:           e.ID,
		Date:         date,
		Hours:        e.Hours,
		Billable:     e.Billable,
		BillableRate: e.BillableRate,
		HourlyRate:   e.HourlyRate,
		Notes:        e.Notes,
		UserName:     e.User.Name,
		ProjectID:    e.Project.ID,
		ProjectName:  e.Project.Name,
		ClientID:     e.Client.ID,
		ClientName:   e.Client.Name,
	}
}

func (p Project) toReport() report.Project {
	return report.Project{
		ID:              p.ID,
		Name:            p.Name,
		Budget:          deref(p.Budget),
		BudgetSpent:     deref(p.BudgetSpent),
		BudgetRemaining: deref(p.BudgetRemaining),
		ClientID:        p.Client.ID,
		ClientName:      p.Client.Name,
	}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
