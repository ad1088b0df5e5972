package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"harvestbot/internal/database"
	"harvestbot/internal/llm"
	"harvestbot/internal/report"
)

// Parser is the LLM collaborator: it turns a user message into a structured
// query and renders fetched data back into prose.
type Parser interface {
	ParseQuery(ctx context.Context, message string) (*llm.Query, error)
	Summarize(ctx context.Context, question string, payload any) (string, error)
}

// ReportBuilder is the single entry point both the interactive path and the
// scheduler use for monthly reports.
type ReportBuilder interface {
	BuildReport(ctx context.Context, month string) (*report.Report, error)
}

// Reply is one assistant turn. Report is set when the turn produced a full
// monthly report, so the UI can render tables instead of plain text.
type Reply struct {
	SessionID string         `json:"session_id"`
	Text      string         `json:"text"`
	Report    *report.Report `json:"report,omitempty"`
}

// Service orchestrates a chat turn: parse, dispatch to Harvest or the report
// assembler, summarize, persist.
type Service struct {
	db       *database.DB
	parser   Parser
	provider report.Provider
	builder  ReportBuilder
	loc      *time.Location
}

func NewService(db *database.DB, parser Parser, provider report.Provider, builder ReportBuilder, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		db:       db,
		parser:   parser,
		provider: provider,
		builder:  builder,
		loc:      loc,
	}
}

func (s *Service) HandleMessage(ctx context.Context, sessionID, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &report.ValidationError{Msg: "empty message"}
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	// History persistence is best-effort; a storage hiccup must not kill
	// the turn.
	if err := s.db.SaveChatMessage(sessionID, "user", text); err != nil {
		slog.Error("failed to save user message", "session", sessionID, "error", err)
	}

	q, err := s.parser.ParseQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	reply := &Reply{SessionID: sessionID}
	switch q.Action {
	case llm.ActionReport:
		rep, err := s.builder.BuildReport(ctx, q.Month)
		if err != nil {
			return nil, err
		}
		reply.Report = rep
		reply.Text = s.summarizeOr(ctx, text, rep, fmt.Sprintf("%s report: %.2f hours across %d project groups and %d hosting-support groups.",
			rep.Label, rep.TotalHours, len(rep.Primary), len(rep.HostingSupport)))

	case llm.ActionHours:
		if s.provider == nil {
			return nil, report.ErrNotConfigured
		}
		from, to := s.resolveRange(q.From, q.To)
		entries, err := s.provider.FetchTimeEntries(ctx, from, to, report.Filters{UserName: q.User})
		if err != nil {
			return nil, err
		}
		var total, billable float64
		for _, e := range entries {
			total += e.Hours
			if e.Billable {
				billable += e.Hours
			}
		}
		payload := map[string]any{
			"from":           from.Format("2006-01-02"),
			"to":             to.Format("2006-01-02"),
			"entry_count":    len(entries),
			"total_hours":    total,
			"billable_hours": billable,
		}
		reply.Text = s.summarizeOr(ctx, text, payload, fmt.Sprintf("%.2f hours (%.2f billable) across %d entries between %s and %s.",
			total, billable, len(entries), from.Format("2006-01-02"), to.Format("2006-01-02")))

	case llm.ActionProjects:
		if s.provider == nil {
			return nil, report.ErrNotConfigured
		}
		projects, err := s.provider.FetchProjects(ctx)
		if err != nil {
			return nil, err
		}
		reply.Text = s.summarizeOr(ctx, text, projects, fmt.Sprintf("%d projects found.", len(projects)))

	default:
		reply.Text = q.Text
	}

	if err := s.db.SaveChatMessage(sessionID, "assistant", reply.Text); err != nil {
		slog.Error("failed to save assistant message", "session", sessionID, "error", err)
	}
	return reply, nil
}

// summarizeOr asks the LLM to phrase the answer and falls back to a plain
// rendering when the summarization call fails. The data was already fetched
// successfully; losing the whole turn over phrasing would be worse.
func (s *Service) summarizeOr(ctx context.Context, question string, payload any, fallback string) string {
	text, err := s.parser.Summarize(ctx, question, payload)
	if err != nil {
		slog.Error("summarize failed, using plain answer", "error", err)
		return fallback
	}
	return text
}

// resolveRange parses the LLM-supplied date range, defaulting to the current
// calendar month. The LLM output is advisory; malformed dates fall back to
// the default rather than failing the turn.
func (s *Service) resolveRange(fromStr, toStr string) (time.Time, time.Time) {
	now := time.Now().In(s.loc)
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)
	to := from.AddDate(0, 1, -1)

	if t, err := time.ParseInLocation("2006-01-02", fromStr, s.loc); err == nil {
		from = t
	}
	if t, err := time.ParseInLocation("2006-01-02", toStr, s.loc); err == nil {
		to = t
	}
	if to.Before(from) {
		to = from
	}
	return from, to
}
