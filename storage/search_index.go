package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// MessageMatch is one search hit across all indexed threads.
type MessageMatch struct {
	ThreadID     string
	ThreadName   string
	MessageIndex int
	Role         string
	Content      string
	Preview      string
	Timestamp    time.Time
}

// SearchIndex maintains a sqlite index of thread messages so search does not
// have to load (and possibly decrypt) every thread file.
type SearchIndex struct {
	db *sql.DB
}

func NewSearchIndex(dataDir string) (*SearchIndex, error) {
	dbPath := filepath.Join(dataDir, "search.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open search database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping search database: %w", err)
	}

	si := &SearchIndex{db: db}
	if err := si.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize search database: %w", err)
	}
	return si, nil
}

func (si *SearchIndex) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		thread_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		thread_name TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (thread_id, idx)
	);
	CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id);
	`
	_, err := si.db.Exec(schema)
	return err
}

// IndexThread replaces the index rows for one thread. System messages are
// not indexed.
func (si *SearchIndex) IndexThread(thread *Thread) error {
	tx, err := si.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE thread_id = ?`, thread.ID); err != nil {
		return fmt.Errorf("failed to clear thread rows: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO messages (thread_id, idx, thread_name, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, msg := range thread.Messages {
		if msg.Role == "system" {
			continue
		}
		if _, err := stmt.Exec(thread.ID, i, thread.Name, msg.Role, msg.Content, msg.Timestamp); err != nil {
			return fmt.Errorf("failed to insert message row: %w", err)
		}
	}
	return tx.Commit()
}

// RemoveThread drops a deleted thread from the index.
func (si *SearchIndex) RemoveThread(threadID string) error {
	_, err := si.db.Exec(`DELETE FROM messages WHERE thread_id = ?`, threadID)
	if err != nil {
		return fmt.Errorf("failed to remove thread rows: %w", err)
	}
	return nil
}

// Search returns messages containing query (case-insensitive), newest first.
func (si *SearchIndex) Search(query string) ([]MessageMatch, error) {
	if query == "" {
		return []MessageMatch{}, nil
	}

	pattern := "%" + strings.ToLower(query) + "%"
	rows, err := si.db.Query(`
		SELECT thread_id, idx, thread_name, role, content, created_at
		FROM messages
		WHERE lower(content) LIKE ?
		ORDER BY created_at DESC`, pattern)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer rows.Close()

	var matches []MessageMatch
	for rows.Next() {
		var m MessageMatch
		if err := rows.Scan(&m.ThreadID, &m.MessageIndex, &m.ThreadName, &m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		m.Preview = m.Content
		if len(m.Preview) > 100 {
			m.Preview = m.Preview[:100] + "..."
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (si *SearchIndex) Close() error {
	return si.db.Close()
}
