package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"harvestbot/internal/report"
)

const DefaultBaseURL = "https://api.openai.com/v1"

// Client talks to an OpenAI-compatible chat-completions endpoint. The
// assistant delegates all natural-language understanding here: a user
// message comes back either as a structured query or as free text.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewClient(apiKey, baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Query is the structured form of a user question. Action selects the
// dispatch path; the remaining fields narrow it.
type Query struct {
	Action string `json:"action"` // report, hours, projects, answer
	Month  string `json:"month,omitempty"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	User   string `json:"user,omitempty"`
	Text   string `json:"text,omitempty"`
}

const (
	ActionReport   = "report"
	ActionHours    = "hours"
	ActionProjects = "projects"
	ActionAnswer   = "answer"
)

const parseSystemPrompt = `You translate questions about time-tracking data into a JSON object.
Respond with ONLY a JSON object, no prose, shaped as:
{"action":"report|hours|projects|answer","month":"YYYY-MM","from":"YYYY-MM-DD","to":"YYYY-MM-DD","user":"name substring","text":"..."}
Use "report" for budget/utilization report requests (set month when one is named),
"hours" for questions about hours worked in a period (set from/to and user when named),
"projects" for questions about the project list,
"answer" with "text" for anything else you can answer directly.
Omit fields you do not need.`

const summarizeSystemPrompt = `You summarize time-tracking data for a business operator.
Answer the question briefly in plain language using only the JSON data provided. Mention totals and notable figures; do not invent numbers.`

// ParseQuery turns a user message into a structured query. When the model
// replies with something that is not the expected JSON object, the reply is
// treated as a direct free-text answer rather than an error.
func (c *Client) ParseQuery(ctx context.Context, message string) (*Query, error) {
	raw, err := c.complete(ctx, parseSystemPrompt, message)
	if err != nil {
		return nil, err
	}

	var q Query
	if err := json.Unmarshal([]byte(stripFences(raw)), &q); err != nil || q.Action == "" {
		return &Query{Action: ActionAnswer, Text: raw}, nil
	}
	return &q, nil
}

// Summarize renders fetched data into a short natural-language answer to the
// original question.
func (c *Client) Summarize(ctx context.Context, question string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return c.complete(ctx, summarizeSystemPrompt, question+"\n\nData:\n"+string(data))
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &report.UpstreamError{Provider: "llm", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &report.UpstreamError{Provider: "llm", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("llm api error", "status", resp.StatusCode, "body", string(body))
		return "", &report.UpstreamError{Provider: "llm", Err: fmt.Errorf("llm api returned status %d", resp.StatusCode)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &report.UpstreamError{Provider: "llm", Err: err}
	}
	if len(parsed.Choices) == 0 {
		return "", &report.UpstreamError{Provider: "llm", Err: fmt.Errorf("empty completion response")}
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// stripFences removes a surrounding markdown code fence, which some models
// wrap JSON replies in despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
