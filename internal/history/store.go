// SPDX-License-Identifier: AGPL-3.0-only
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aman-senpai/macassist/internal/llm"
)

const timeFormat = time.RFC3339Nano

// Conversation summarizes one stored conversation.
type Conversation struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists conversation history in a SQLite database. It is a plain
// append-only log consumed by the command layer after each committed turn;
// the agent loop never touches it.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at dbPath, enables WAL
// mode, and runs any pending schema migrations.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// CreateConversation registers a new conversation.
func (s *Store) CreateConversation(id, title string) error {
	now := time.Now().Format(timeFormat)
	_, err := s.db.Exec(`
		INSERT INTO conversations (id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)`,
		id, title, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// AppendMessages appends messages to a conversation in order. Sequence
// numbers continue from the last stored message.
func (s *Store) AppendMessages(conversationID string, messages []llm.Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}

	var next int
	row := tx.QueryRow("SELECT COALESCE(MAX(seq), -1) + 1 FROM messages WHERE conversation_id = ?", conversationID)
	if err := row.Scan(&next); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("read next sequence: %w", err)
	}

	for i, m := range messages {
		toolCalls := ""
		if len(m.ToolCalls) > 0 {
			raw, err := json.Marshal(m.ToolCalls)
			if err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("marshal tool calls: %w", err)
			}
			toolCalls = string(raw)
		}
		if _, err := tx.Exec(`
			INSERT INTO messages (conversation_id, seq, role, content, tool_calls, tool_call_id, tool_name, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			conversationID, next+i, m.Role, m.Content, toolCalls, m.ToolCallID, m.Name,
			time.Now().Format(timeFormat),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert message: %w", err)
		}
	}

	if _, err := tx.Exec("UPDATE conversations SET updated_at = ? WHERE id = ?",
		time.Now().Format(timeFormat), conversationID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// Messages returns a conversation's messages in append order.
func (s *Store) Messages(conversationID string) ([]llm.Message, error) {
	rows, err := s.db.Query(`
		SELECT role, content, tool_calls, tool_call_id, tool_name
		FROM messages
		WHERE conversation_id = ?
		ORDER BY seq ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []llm.Message
	for rows.Next() {
		var m llm.Message
		var toolCalls string
		if err := rows.Scan(&m.Role, &m.Content, &toolCalls, &m.ToolCallID, &m.Name); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		if toolCalls != "" {
			if err := json.Unmarshal([]byte(toolCalls), &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("unmarshal tool calls: %w", err)
			}
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return messages, nil
}

// Conversations lists stored conversations, most recently updated first.
func (s *Store) Conversations() ([]*Conversation, error) {
	rows, err := s.db.Query(`
		SELECT id, title, created_at, updated_at
		FROM conversations
		ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		var c Conversation
		var createdStr, updatedStr string
		if err := rows.Scan(&c.ID, &c.Title, &createdStr, &updatedStr); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		c.CreatedAt, _ = time.Parse(timeFormat, createdStr)
		c.UpdatedAt, _ = time.Parse(timeFormat, updatedStr)
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation rows: %w", err)
	}
	return out, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
