package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/asistenteai/asistente/domain"
	"github.com/asistenteai/asistente/utils/log"
	"go.uber.org/zap"
)

// Store keeps every conversation in memory and mirrors mutations into a
// SQLite file. Memory is authoritative for the process lifetime: a failed
// flush is reported as *domain.PersistenceError but never rolls back the
// in-memory append.
type Store struct {
	db *sql.DB

	mu       sync.RWMutex
	messages map[domain.Identity][]domain.Message
	nextID   int64
}

// Open creates or opens the database at path, ensures the schema and loads
// all messages back into memory, seeding the id counter at max(id)+1.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening db at %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging db at %s: %w", path, err)
	}

	s := &Store{
		db:       db,
		messages: make(map[domain.Identity][]domain.Message),
		nextID:   1,
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY,
			identity TEXT NOT NULL,
			sender TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_identity ON messages(identity);

		CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			enable_group_messages INTEGER NOT NULL DEFAULT 0,
			custom_prompt TEXT NOT NULL DEFAULT '',
			gemini_api_key TEXT NOT NULL DEFAULT '',
			restricted_numbers TEXT NOT NULL DEFAULT '',
			restricted_prompt TEXT NOT NULL DEFAULT '',
			admin_password TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT id, identity, sender, content, timestamp FROM messages ORDER BY id ASC`)
	if err != nil {
		return fmt.Errorf("loading messages: %w", err)
	}
	defer rows.Close()

	var maxID int64
	for rows.Next() {
		var msg domain.Message
		var unix int64
		if err := rows.Scan(&msg.ID, &msg.Identity, &msg.Sender, &msg.Content, &unix); err != nil {
			return fmt.Errorf("scanning message row: %w", err)
		}
		msg.Timestamp = time.Unix(unix, 0)
		s.messages[msg.Identity] = append(s.messages[msg.Identity], msg)
		if msg.ID > maxID {
			maxID = msg.ID
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating message rows: %w", err)
	}
	s.nextID = maxID + 1
	return nil
}

// Append assigns the next global id and stores the message. The in-memory
// mutation always succeeds; the returned message is valid even when the
// durable write fails with a *domain.PersistenceError.
func (s *Store) Append(ctx context.Context, identity domain.Identity, content string, sender domain.Sender) (domain.Message, error) {
	s.mu.Lock()
	msg := domain.Message{
		ID:        s.nextID,
		Content:   content,
		Sender:    sender,
		Identity:  identity,
		Timestamp: time.Now(),
	}
	s.nextID++
	s.messages[identity] = append(s.messages[identity], msg)
	s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, identity, sender, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, string(identity), string(sender), content, msg.Timestamp.Unix(),
	)
	if err != nil {
		log.WithCtx(ctx).Error("message flush failed", zap.Int64("id", msg.ID), zap.Error(err))
		return msg, &domain.PersistenceError{Op: "append", Err: err}
	}
	return msg, nil
}

// ReadAll returns all messages for the identity sorted ascending by id.
func (s *Store) ReadAll(ctx context.Context, identity domain.Identity) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.messages[identity]
	out := make([]domain.Message, len(stored))
	copy(out, stored)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Clear deletes all messages for a single identity. A no-op for an identity
// without messages.
func (s *Store) Clear(ctx context.Context, identity domain.Identity) error {
	s.mu.Lock()
	delete(s.messages, identity)
	s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE identity = ?`, string(identity)); err != nil {
		return &domain.PersistenceError{Op: "clear", Err: err}
	}
	return nil
}

// ClearAll wipes every conversation.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	s.messages = make(map[domain.Identity][]domain.Message)
	s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return &domain.PersistenceError{Op: "clear_all", Err: err}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
