package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvestbot/internal/chat"
	"harvestbot/internal/config"
	"harvestbot/internal/database"
	"harvestbot/internal/report"
)

type fakeBuilder struct {
	report *report.Report
	err    error
	month  string
}

func (f *fakeBuilder) BuildReport(ctx context.Context, month string) (*report.Report, error) {
	f.month = month
	return f.report, f.err
}

type fakeChat struct {
	reply *chat.Reply
	err   error
	text  string
}

func (f *fakeChat) HandleMessage(ctx context.Context, sessionID, text string) (*chat.Reply, error) {
	f.text = text
	return f.reply, f.err
}

type fakeTester struct {
	ok  bool
	err error
}

func (f *fakeTester) TestConnection(ctx context.Context) (bool, error) {
	return f.ok, f.err
}

type fakeSender struct {
	err  error
	sent int
}

func (f *fakeSender) Send(subject, htmlBody string) error {
	f.sent++
	return f.err
}

func testReport() *report.Report {
	return &report.Report{
		Month:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Label:      "January 2024",
		TotalHours: 42,
	}
}

func renderOK(*report.Report) (string, error) {
	return "<html>report</html>", nil
}

func newTestHandler(t *testing.T, builder ReportBuilder, chatSvc ChatService, tester ConnectionTester, sender MailSender) (*Handler, *database.DB) {
	t.Helper()
	db, err := database.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	h := NewHandler(&config.Config{}, db, chatSvc, builder, tester, sender, renderOK)
	return h, db
}

func serve(h *Handler, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestPostChat(t *testing.T) {
	chatSvc := &fakeChat{reply: &chat.Reply{SessionID: "s1", Text: "you logged 42 hours"}}
	h, _ := newTestHandler(t, &fakeBuilder{}, chatSvc, nil, nil)

	body := strings.NewReader(`{"session_id": "s1", "message": "how many hours?"}`)
	rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/v1/chat", body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "how many hours?", chatSvc.text)
	assert.Contains(t, rec.Body.String(), "you logged 42 hours")
}

func TestPostChat_InvalidBody(t *testing.T) {
	h, _ := newTestHandler(t, &fakeBuilder{}, &fakeChat{}, nil, nil)

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader("{not json")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostChat_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &report.ValidationError{Msg: "empty message"}, http.StatusBadRequest},
		{"not configured", report.ErrNotConfigured, http.StatusServiceUnavailable},
		{"upstream", &report.UpstreamError{Provider: "harvest", Err: errors.New("502")}, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t, &fakeBuilder{}, &fakeChat{err: tt.err}, nil, nil)

			body := strings.NewReader(`{"message": "hi"}`)
			rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/v1/chat", body))

			assert.Equal(t, tt.want, rec.Code)
			resp := decode(t, rec)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestGetChatHistory(t *testing.T) {
	h, db := newTestHandler(t, &fakeBuilder{}, &fakeChat{}, nil, nil)
	require.NoError(t, db.SaveChatMessage("s1", "user", "hello"))
	require.NoError(t, db.SaveChatMessage("s1", "assistant", "hi there"))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/chat/history?session_id=s1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hello")
	assert.Contains(t, rec.Body.String(), "hi there")
}

func TestGetChatHistory_RequiresSession(t *testing.T) {
	h, _ := newTestHandler(t, &fakeBuilder{}, &fakeChat{}, nil, nil)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/chat/history", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetChatSessions(t *testing.T) {
	h, db := newTestHandler(t, &fakeBuilder{}, &fakeChat{}, nil, nil)
	require.NoError(t, db.SaveChatMessage("older", "user", "first"))
	require.NoError(t, db.SaveChatMessage("newer", "user", "second"))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/chat/sessions", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	sessions, ok := resp.Data.([]interface{})
	require.True(t, ok)
	require.Len(t, sessions, 2)
	assert.Equal(t, "newer", sessions[0])
	assert.Equal(t, "older", sessions[1])
}

func TestGetReport(t *testing.T) {
	builder := &fakeBuilder{report: testReport()}
	h, _ := newTestHandler(t, builder, &fakeChat{}, nil, nil)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/report?month=2024-01", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-01", builder.month)
	assert.Contains(t, rec.Body.String(), "January 2024")
}

func TestGetReport_InvalidMonth(t *testing.T) {
	builder := &fakeBuilder{err: &report.ValidationError{Msg: `invalid month "2024-13"`}}
	h, _ := newTestHandler(t, builder, &fakeChat{}, nil, nil)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/report?month=2024-13", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetReport_NotConfigured(t *testing.T) {
	builder := &fakeBuilder{err: report.ErrNotConfigured}
	h, _ := newTestHandler(t, builder, &fakeChat{}, nil, nil)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/report", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetReport_UpstreamFailure(t *testing.T) {
	builder := &fakeBuilder{err: &report.UpstreamError{Provider: "harvest", Err: errors.New("timeout")}}
	h, _ := newTestHandler(t, builder, &fakeChat{}, nil, nil)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/report", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSendReport(t *testing.T) {
	sender := &fakeSender{}
	h, _ := newTestHandler(t, &fakeBuilder{report: testReport()}, &fakeChat{}, nil, sender)

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/v1/report/send?month=2024-01", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, sender.sent)
	assert.Contains(t, rec.Body.String(), `"status":"sent"`)
}

func TestSendReport_FailureStoresDraft(t *testing.T) {
	sender := &fakeSender{err: errors.New("connection refused")}
	h, db := newTestHandler(t, &fakeBuilder{report: testReport()}, &fakeChat{}, nil, sender)

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/v1/report/send", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"draft"`)

	draft, err := db.LatestReportDraft()
	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.Equal(t, "2024-01", draft.Month)
	assert.Contains(t, draft.Reason, "connection refused")
}

func TestGetReportDraft(t *testing.T) {
	h, db := newTestHandler(t, &fakeBuilder{}, &fakeChat{}, nil, nil)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/report/draft", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, db.SaveReportDraft("2024-01", "January 2024", "<html></html>", "refused"))

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/report/draft", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "January 2024")
}

func TestGetHarvestStatus(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		h, _ := newTestHandler(t, &fakeBuilder{}, &fakeChat{}, nil, nil)

		rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/harvest/status", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"configured":false`)
	})

	t.Run("connected", func(t *testing.T) {
		h, _ := newTestHandler(t, &fakeBuilder{}, &fakeChat{}, &fakeTester{ok: true}, nil)

		rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/harvest/status", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"connected":true`)
	})

	t.Run("connection error", func(t *testing.T) {
		h, _ := newTestHandler(t, &fakeBuilder{}, &fakeChat{}, &fakeTester{err: errors.New("401")}, nil)

		rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/harvest/status", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"connected":false`)
		assert.Contains(t, rec.Body.String(), "401")
	})
}

func TestHealthCheck(t *testing.T) {
	h, _ := newTestHandler(t, &fakeBuilder{}, &fakeChat{}, nil, nil)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
