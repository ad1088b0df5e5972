package sched

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"harvestbot/internal/config"
	"harvestbot/internal/database"
	"harvestbot/internal/mail"
	"harvestbot/internal/report"
)

const buildTimeout = 5 * time.Minute

// ReportBuilder is the shared monthly-report entry point.
type ReportBuilder interface {
	BuildReport(ctx context.Context, month string) (*report.Report, error)
}

// MailSender delivers a rendered report.
type MailSender interface {
	Send(subject, htmlBody string) error
}

// Scheduler runs the weekly report job: build the current month's report,
// render it, and email it. When delivery fails the rendered report is stored
// as a draft for manual retrieval instead of being dropped.
type Scheduler struct {
	cfg     *config.Config
	db      *database.DB
	builder ReportBuilder
	sender  MailSender
	cron    *cron.Cron
	stop    chan struct{}
}

func New(cfg *config.Config, db *database.DB, builder ReportBuilder, sender MailSender) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		db:      db,
		builder: builder,
		sender:  sender,
		stop:    make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	loc := s.cfg.GetTimezone()
	s.cron = cron.New(cron.WithLocation(loc))

	_, err := s.cron.AddFunc(s.cfg.ReportSchedule, func() {
		slog.Info("running scheduled report", "schedule", s.cfg.ReportSchedule)
		s.RunOnce()
	})
	if err != nil {
		slog.Error("failed to add cron job, falling back to weekly ticker", "schedule", s.cfg.ReportSchedule, "error", err)
		// Fallback to simple ticker if cron expression is invalid
		go func() {
			ticker := time.NewTicker(7 * 24 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					s.RunOnce()
				case <-s.stop:
					return
				}
			}
		}()
		return
	}

	slog.Info("scheduled weekly report", "schedule", s.cfg.ReportSchedule, "timezone", loc.String())
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	close(s.stop)
	if s.cron != nil {
		s.cron.Stop()
	}
}

// RunOnce executes one scheduled report cycle. Failures are logged and
// recorded in the run log; a build failure produces no report at all, a
// delivery failure stores the rendered report as a draft.
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), buildTimeout)
	defer cancel()

	rep, err := s.builder.BuildReport(ctx, "")
	if err != nil {
		slog.Error("scheduled report build failed", "error", err)
		s.record("", "failed", err.Error())
		return
	}
	month := rep.Month.Format("2006-01")

	html, err := mail.RenderHTML(rep)
	if err != nil {
		slog.Error("report rendering failed", "month", month, "error", err)
		s.record(month, "failed", err.Error())
		return
	}

	if err := s.sender.Send("Project report: "+rep.Label, html); err != nil {
		slog.Error("report email failed, storing draft", "month", month, "error", err)
		if derr := s.db.SaveReportDraft(month, rep.Label, html, err.Error()); derr != nil {
			slog.Error("failed to store report draft", "month", month, "error", derr)
		}
		s.record(month, "draft", err.Error())
		return
	}

	s.record(month, "sent", "")
	slog.Info("scheduled report sent", "month", month, "total_hours", rep.TotalHours)
}

func (s *Scheduler) record(month, status, detail string) {
	if err := s.db.RecordReportRun(month, status, detail); err != nil {
		slog.Error("failed to record report run", "month", month, "status", status, "error", err)
	}
}
