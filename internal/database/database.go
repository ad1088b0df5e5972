package database

import (
	"database/sql"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

func New(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	d := &DB{db}
	if err := d.migrate(); err != nil {
		return nil, err
	}

	slog.Info("database initialized", "path", path)
	return d, nil
}

// NewMemory opens an in-memory database, used by tests.
func NewMemory() (*DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	d := &DB{db}
	if err := d.migrate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		// Chat history
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id)`,

		// Report drafts kept when email delivery fails, for manual retrieval
		`CREATE TABLE IF NOT EXISTS report_drafts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			month TEXT NOT NULL,
			label TEXT NOT NULL,
			html TEXT NOT NULL,
			reason TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_report_drafts_month ON report_drafts(month)`,

		// Report run log (track scheduled and manual report builds)
		`CREATE TABLE IF NOT EXISTS report_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			month TEXT NOT NULL,
			status TEXT NOT NULL,
			detail TEXT,
			run_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_report_log_month ON report_log(month)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}

	return nil
}

// --- Chat message operations ---

func (db *DB) SaveChatMessage(sessionID, role, content string) error {
	_, err := db.Exec(`
		INSERT INTO chat_messages (session_id, role, content, created_at)
		VALUES (?, ?, ?, ?)
	`, sessionID, role, content, time.Now())
	return err
}

func (db *DB) GetChatHistory(sessionID string, limit int) ([]ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, session_id, role, content, created_at
		FROM chat_messages WHERE session_id = ?
		ORDER BY id DESC LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	// Oldest first for rendering
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, rows.Err()
}

func (db *DB) RecentSessions(limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT session_id FROM chat_messages
		GROUP BY session_id ORDER BY MAX(id) DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// --- Report draft operations ---

func (db *DB) SaveReportDraft(month, label, html, reason string) error {
	_, err := db.Exec(`
		INSERT INTO report_drafts (month, label, html, reason, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, month, label, html, reason, time.Now())
	return err
}

func (db *DB) LatestReportDraft() (*ReportDraft, error) {
	var d ReportDraft
	err := db.QueryRow(`
		SELECT id, month, label, html, reason, created_at
		FROM report_drafts ORDER BY id DESC LIMIT 1
	`).Scan(&d.ID, &d.Month, &d.Label, &d.HTML, &d.Reason, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// --- Report run log operations ---

func (db *DB) RecordReportRun(month, status, detail string) error {
	_, err := db.Exec(`
		INSERT INTO report_log (month, status, detail, run_at)
		VALUES (?, ?, ?, ?)
	`, month, status, detail, time.Now())
	return err
}

func (db *DB) LastReportRun() (*ReportRun, error) {
	var r ReportRun
	err := db.QueryRow(`
		SELECT id, month, status, detail, run_at
		FROM report_log ORDER BY id DESC LIMIT 1
	`).Scan(&r.ID, &r.Month, &r.Status, &r.Detail, &r.RunAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Row types for external usage
type ChatMessage struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type ReportDraft struct {
	ID        int64     `json:"id"`
	Month     string    `json:"month"`
	Label     string    `json:"label"`
	HTML      string    `json:"html"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ReportRun struct {
	ID     int64     `json:"id"`
	Month  string    `json:"month"`
	Status string    `json:"status"`
	Detail string    `json:"detail,omitempty"`
	RunAt  time.Time `json:"run_at"`
}
