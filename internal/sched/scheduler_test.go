package sched

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvestbot/internal/config"
	"harvestbot/internal/database"
	"harvestbot/internal/report"
)

type fakeBuilder struct {
	report *report.Report
	err    error
}

func (f *fakeBuilder) BuildReport(ctx context.Context, month string) (*report.Report, error) {
	return f.report, f.err
}

type fakeSender struct {
	err     error
	sent    int
	subject string
}

func (f *fakeSender) Send(subject, htmlBody string) error {
	f.sent++
	f.subject = subject
	return f.err
}

func newTestScheduler(t *testing.T, builder ReportBuilder, sender MailSender) (*Scheduler, *database.DB) {
	t.Helper()
	db, err := database.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	cfg := &config.Config{Timezone: "UTC", ReportSchedule: "0 8 * * 1"}
	return New(cfg, db, builder, sender), db
}

func testReport() *report.Report {
	return &report.Report{
		Month:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Label:      "January 2024",
		TotalHours: 10,
	}
}

func TestRunOnce_SendsAndRecords(t *testing.T) {
	sender := &fakeSender{}
	s, db := newTestScheduler(t, &fakeBuilder{report: testReport()}, sender)

	s.RunOnce()

	assert.Equal(t, 1, sender.sent)
	assert.Equal(t, "Project report: January 2024", sender.subject)

	run, err := db.LastReportRun()
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "sent", run.Status)
	assert.Equal(t, "2024-01", run.Month)

	draft, err := db.LatestReportDraft()
	require.NoError(t, err)
	assert.Nil(t, draft, "no draft on successful delivery")
}

func TestRunOnce_BuildFailureRecordsFailed(t *testing.T) {
	sender := &fakeSender{}
	builder := &fakeBuilder{err: &report.UpstreamError{Provider: "harvest", Err: errors.New("boom")}}
	s, db := newTestScheduler(t, builder, sender)

	s.RunOnce()

	assert.Zero(t, sender.sent, "nothing is sent when the build fails")

	run, err := db.LastReportRun()
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "failed", run.Status)
	assert.Contains(t, run.Detail, "boom")
}

func TestRunOnce_SendFailureStoresDraft(t *testing.T) {
	sender := &fakeSender{err: errors.New("connection refused")}
	s, db := newTestScheduler(t, &fakeBuilder{report: testReport()}, sender)

	s.RunOnce()

	draft, err := db.LatestReportDraft()
	require.NoError(t, err)
	require.NotNil(t, draft, "failed delivery keeps the rendered report")
	assert.Equal(t, "2024-01", draft.Month)
	assert.Contains(t, draft.HTML, "January 2024")
	assert.Contains(t, draft.Reason, "connection refused")

	run, err := db.LastReportRun()
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "draft", run.Status)
}

func TestStartStop_InvalidCronFallsBackToTicker(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeBuilder{report: testReport()}, &fakeSender{})
	s.cfg.ReportSchedule = "not a cron expression"

	s.Start()
	s.Stop()
}
