package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvestbot/internal/database"
	"harvestbot/internal/llm"
	"harvestbot/internal/report"
)

type fakeParser struct {
	query        *llm.Query
	parseErr     error
	summary      string
	summarizeErr error

	gotQuestion string
	gotPayload  any
}

func (f *fakeParser) ParseQuery(ctx context.Context, message string) (*llm.Query, error) {
	return f.query, f.parseErr
}

func (f *fakeParser) Summarize(ctx context.Context, question string, payload any) (string, error) {
	f.gotQuestion = question
	f.gotPayload = payload
	return f.summary, f.summarizeErr
}

type fakeProvider struct {
	entries    []report.TimeEntry
	projects   []report.Project
	entriesErr error

	gotFilters report.Filters
}

func (f *fakeProvider) FetchTimeEntries(ctx context.Context, from, to time.Time, filters report.Filters) ([]report.TimeEntry, error) {
	f.gotFilters = filters
	return f.entries, f.entriesErr
}

func (f *fakeProvider) FetchProjects(ctx context.Context) ([]report.Project, error) {
	return f.projects, nil
}

func (f *fakeProvider) FetchClients(ctx context.Context) ([]report.Client, error) {
	return nil, nil
}

type fakeBuilder struct {
	report   *report.Report
	err      error
	gotMonth string
}

func (f *fakeBuilder) BuildReport(ctx context.Context, month string) (*report.Report, error) {
	f.gotMonth = month
	return f.report, f.err
}

func newTestService(t *testing.T, parser Parser, provider report.Provider, builder ReportBuilder) (*Service, *database.DB) {
	t.Helper()
	db, err := database.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(db, parser, provider, builder, time.UTC), db
}

func TestHandleMessage_EmptyMessageRejected(t *testing.T) {
	svc, _ := newTestService(t, &fakeParser{}, &fakeProvider{}, &fakeBuilder{})

	_, err := svc.HandleMessage(context.Background(), "", "   ")

	var verr *report.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestHandleMessage_AssignsSessionID(t *testing.T) {
	parser := &fakeParser{query: &llm.Query{Action: llm.ActionAnswer, Text: "hi there"}}
	svc, _ := newTestService(t, parser, &fakeProvider{}, &fakeBuilder{})

	reply, err := svc.HandleMessage(context.Background(), "", "hello")
	require.NoError(t, err)

	assert.NotEmpty(t, reply.SessionID)
	assert.Equal(t, "hi there", reply.Text)
}

func TestHandleMessage_ReportActionCarriesReportPayload(t *testing.T) {
	rep := &report.Report{Label: "January 2024", TotalHours: 120}
	parser := &fakeParser{
		query:   &llm.Query{Action: llm.ActionReport, Month: "2024-01"},
		summary: "January came to 120 hours.",
	}
	builder := &fakeBuilder{report: rep}
	svc, _ := newTestService(t, parser, &fakeProvider{}, builder)

	reply, err := svc.HandleMessage(context.Background(), "s1", "how did january go?")
	require.NoError(t, err)

	assert.Equal(t, "2024-01", builder.gotMonth)
	assert.Same(t, rep, reply.Report)
	assert.Equal(t, "January came to 120 hours.", reply.Text)
}

func TestHandleMessage_ReportBuildFailurePropagates(t *testing.T) {
	parser := &fakeParser{query: &llm.Query{Action: llm.ActionReport}}
	builder := &fakeBuilder{err: &report.UpstreamError{Provider: "harvest", Err: errors.New("boom")}}
	svc, _ := newTestService(t, parser, &fakeProvider{}, builder)

	_, err := svc.HandleMessage(context.Background(), "s1", "report please")

	var uerr *report.UpstreamError
	require.ErrorAs(t, err, &uerr)
}

func TestHandleMessage_HoursActionFiltersByUser(t *testing.T) {
	parser := &fakeParser{
		query:   &llm.Query{Action: llm.ActionHours, From: "2024-01-01", To: "2024-01-31", User: "smith"},
		summary: "Smith logged 6 hours.",
	}
	provider := &fakeProvider{
		entries: []report.TimeEntry{
			{Hours: 4, Billable: true},
			{Hours: 2},
		},
	}
	svc, _ := newTestService(t, parser, provider, &fakeBuilder{})

	reply, err := svc.HandleMessage(context.Background(), "s1", "hours for smith in january")
	require.NoError(t, err)

	assert.Equal(t, "smith", provider.gotFilters.UserName)
	assert.Equal(t, "Smith logged 6 hours.", reply.Text)

	payload, ok := parser.gotPayload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 6.0, payload["total_hours"])
	assert.Equal(t, 4.0, payload["billable_hours"])
}

func TestHandleMessage_SummarizeFailureFallsBackToPlainText(t *testing.T) {
	parser := &fakeParser{
		query:        &llm.Query{Action: llm.ActionHours},
		summarizeErr: &report.UpstreamError{Provider: "llm", Err: errors.New("rate limited")},
	}
	provider := &fakeProvider{entries: []report.TimeEntry{{Hours: 3, Billable: true}}}
	svc, _ := newTestService(t, parser, provider, &fakeBuilder{})

	reply, err := svc.HandleMessage(context.Background(), "s1", "hours?")
	require.NoError(t, err, "a fetched answer survives a failed summarization")
	assert.Contains(t, reply.Text, "3.00 hours")
}

func TestHandleMessage_HoursWithoutProviderNotConfigured(t *testing.T) {
	parser := &fakeParser{query: &llm.Query{Action: llm.ActionHours}}
	svc, _ := newTestService(t, parser, nil, &fakeBuilder{})

	_, err := svc.HandleMessage(context.Background(), "s1", "hours?")
	assert.ErrorIs(t, err, report.ErrNotConfigured)
}

func TestHandleMessage_PersistsBothTurns(t *testing.T) {
	parser := &fakeParser{query: &llm.Query{Action: llm.ActionAnswer, Text: "sure"}}
	svc, db := newTestService(t, parser, &fakeProvider{}, &fakeBuilder{})

	reply, err := svc.HandleMessage(context.Background(), "s9", "hello")
	require.NoError(t, err)

	history, err := db.GetChatHistory(reply.SessionID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, "assistant", history[1].Role)
	assert.Equal(t, "sure", history[1].Content)
}

func TestResolveRange(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, time.UTC)

	from, to := svc.resolveRange("2024-03-01", "2024-03-15")
	assert.Equal(t, "2024-03-01", from.Format("2006-01-02"))
	assert.Equal(t, "2024-03-15", to.Format("2006-01-02"))

	// Garbage falls back to the current month rather than failing.
	from, to = svc.resolveRange("soon", "later")
	now := time.Now().UTC()
	assert.Equal(t, now.Month(), from.Month())
	assert.False(t, to.Before(from))
}
