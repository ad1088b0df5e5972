package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"harvestbot/internal/chat"
	"harvestbot/internal/config"
	"harvestbot/internal/database"
	"harvestbot/internal/report"
)

// ReportBuilder is the shared monthly-report entry point.
type ReportBuilder interface {
	BuildReport(ctx context.Context, month string) (*report.Report, error)
}

// ChatService handles one conversational turn.
type ChatService interface {
	HandleMessage(ctx context.Context, sessionID, text string) (*chat.Reply, error)
}

// ConnectionTester validates the configured Harvest credentials.
type ConnectionTester interface {
	TestConnection(ctx context.Context) (bool, error)
}

// MailSender delivers a rendered report.
type MailSender interface {
	Send(subject, htmlBody string) error
}

// RenderFunc renders a report to a self-contained HTML document.
type RenderFunc func(*report.Report) (string, error)

type Handler struct {
	cfg     *config.Config
	db      *database.DB
	chat    ChatService
	builder ReportBuilder
	tester  ConnectionTester
	sender  MailSender
	render  RenderFunc
}

func NewHandler(cfg *config.Config, db *database.DB, chatSvc ChatService, builder ReportBuilder, tester ConnectionTester, sender MailSender, render RenderFunc) *Handler {
	return &Handler{
		cfg:     cfg,
		db:      db,
		chat:    chatSvc,
		builder: builder,
		tester:  tester,
		sender:  sender,
		render:  render,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Chat endpoints
	mux.HandleFunc("POST /api/v1/chat", h.postChat)
	mux.HandleFunc("GET /api/v1/chat/history", h.getChatHistory)
	mux.HandleFunc("GET /api/v1/chat/sessions", h.getChatSessions)

	// Report endpoints
	mux.HandleFunc("GET /api/v1/report", h.getReport)
	mux.HandleFunc("POST /api/v1/report/send", h.sendReport)
	mux.HandleFunc("GET /api/v1/report/draft", h.getReportDraft)

	// Status
	mux.HandleFunc("GET /api/v1/harvest/status", h.getHarvestStatus)

	// Health check
	mux.HandleFunc("GET /health", h.healthCheck)

	// Serve static files from web/dist (for production)
	mux.Handle("/", http.FileServer(http.Dir("web/dist")))
}

// --- Response helpers ---

type APIResponse struct {
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, APIResponse{Error: message})
}

// statusForError maps the domain error taxonomy onto HTTP statuses.
func statusForError(err error) int {
	var verr *report.ValidationError
	var uerr *report.UpstreamError
	switch {
	case errors.Is(err, report.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.As(err, &uerr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusForError(err), err.Error())
}

// --- Handlers ---

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// postChat handles one chat turn
// POST /api/v1/chat {"session_id": "...", "message": "..."}
func (h *Handler) postChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.chat.HandleMessage(r.Context(), req.SessionID, req.Message)
	if err != nil {
		slog.Error("chat turn failed", "error", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Data: reply})
}

// getChatHistory returns stored messages for a session
// GET /api/v1/chat/history?session_id=...&limit=50
func (h *Handler) getChatHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	messages, err := h.db.GetChatHistory(sessionID, limit)
	if err != nil {
		slog.Error("failed to get chat history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get chat history")
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Data: messages})
}

// getChatSessions lists recent session ids, newest activity first
// GET /api/v1/chat/sessions?limit=20
func (h *Handler) getChatSessions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	sessions, err := h.db.RecentSessions(limit)
	if err != nil {
		slog.Error("failed to list chat sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list chat sessions")
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Data: sessions})
}

// getReport builds the monthly report
// GET /api/v1/report?month=2024-01
func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")

	rep, err := h.builder.BuildReport(r.Context(), month)
	if err != nil {
		slog.Error("report build failed", "month", month, "error", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Data: rep})
}

// sendReport builds the report and emails it now
// POST /api/v1/report/send?month=2024-01
func (h *Handler) sendReport(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")

	rep, err := h.builder.BuildReport(r.Context(), month)
	if err != nil {
		slog.Error("report build failed", "month", month, "error", err)
		writeDomainError(w, err)
		return
	}

	html, err := h.render(rep)
	if err != nil {
		slog.Error("report rendering failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}

	monthKey := rep.Month.Format("2006-01")
	if err := h.sender.Send("Project report: "+rep.Label, html); err != nil {
		slog.Error("report email failed, storing draft", "month", monthKey, "error", err)
		if derr := h.db.SaveReportDraft(monthKey, rep.Label, html, err.Error()); derr != nil {
			slog.Error("failed to store report draft", "error", derr)
		}
		writeJSON(w, http.StatusOK, APIResponse{Data: map[string]interface{}{
			"status": "draft",
			"month":  monthKey,
			"error":  err.Error(),
		}})
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Data: map[string]interface{}{
		"status": "sent",
		"month":  monthKey,
	}})
}

// getReportDraft returns the most recent stored draft
// GET /api/v1/report/draft
func (h *Handler) getReportDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := h.db.LatestReportDraft()
	if err != nil {
		slog.Error("failed to get report draft", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get report draft")
		return
	}
	if draft == nil {
		writeError(w, http.StatusNotFound, "no report draft stored")
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Data: draft})
}

// getHarvestStatus validates the configured credentials
// GET /api/v1/harvest/status
func (h *Handler) getHarvestStatus(w http.ResponseWriter, r *http.Request) {
	if h.tester == nil {
		writeJSON(w, http.StatusOK, APIResponse{Data: map[string]interface{}{
			"configured": false,
			"connected":  false,
		}})
		return
	}

	ok, err := h.tester.TestConnection(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, APIResponse{Data: map[string]interface{}{
			"configured": true,
			"connected":  false,
			"error":      err.Error(),
		}})
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Data: map[string]interface{}{
		"configured": true,
		"connected":  ok,
	}})
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
	})
}
