package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/chat"
	"modernc.org/sqlite"
)

// Primary result codes of a damaged database file.
const (
	sqliteCorrupt = 11 // SQLITE_CORRUPT
	sqliteNotADB  = 26 // SQLITE_NOTADB
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS conversations (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL UNIQUE,
    position   INTEGER NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    turn_count INTEGER DEFAULT 0,
    turns      TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_conversations_position ON conversations(position);
CREATE TABLE IF NOT EXISTS store_meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// SQLiteSink stores one row per conversation in a SQLite database.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (or creates) a SQLite database at dbPath and ensures the schema exists.
func NewSQLiteSink(dbPath string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &SQLiteSink{db: db}, nil
}

// OpenSQLiteSink is NewSQLiteSink for a store that must always start. A
// database file SQLite rejects as corrupt is moved to dbPath+".corrupt" and
// a fresh database is created; the sink is then returned together with a
// *StorageError{Op: "load"} describing the move.
func OpenSQLiteSink(dbPath string) (*SQLiteSink, error) {
	s, err := NewSQLiteSink(dbPath)
	if err == nil || !isCorruptDB(err) {
		return s, err
	}

	aside := dbPath + ".corrupt"
	if rerr := os.Rename(dbPath, aside); rerr != nil {
		return nil, fmt.Errorf("%w (moving it aside: %v)", err, rerr)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		os.Remove(dbPath + suffix)
	}

	s, rerr := NewSQLiteSink(dbPath)
	if rerr != nil {
		return nil, rerr
	}
	return s, &StorageError{Op: "load", Err: fmt.Errorf("corrupt database moved to %s: %w", aside, err)}
}

func isCorruptDB(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqliteCorrupt, sqliteNotADB:
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "file is not a database") || strings.Contains(msg, "malformed")
}

// Save replaces every stored conversation with the snapshot in one
// transaction.
func (s *SQLiteSink) Save(snap *Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM conversations"); err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for i, rec := range snap.Conversations {
		turns := rec.Turns
		if turns == nil {
			turns = []chat.Turn{}
		}
		turnJSON, err := json.Marshal(turns)
		if err != nil {
			return fmt.Errorf("marshal turns of %q: %w", rec.Name, err)
		}
		_, err = tx.Exec(`
			INSERT INTO conversations
				(id, name, position, created_at, updated_at, turn_count, turns)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ID,
			rec.Name,
			i,
			rec.CreatedAt.Format(time.RFC3339Nano),
			now,
			len(rec.Turns),
			string(turnJSON),
		)
		if err != nil {
			return fmt.Errorf("save conversation %q: %w", rec.Name, err)
		}
	}

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO store_meta (key, value) VALUES ('active', ?)", snap.Active,
	); err != nil {
		return fmt.Errorf("save active conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Load reads all conversations ordered by position.
func (s *SQLiteSink) Load() (*Snapshot, error) {
	snap := &Snapshot{Version: snapshotVersion}

	err := s.db.QueryRow("SELECT value FROM store_meta WHERE key = 'active'").Scan(&snap.Active)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("load active conversation: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT id, name, created_at, turns
		FROM conversations ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec ConversationRecord
		var createdAt, turnJSON string
		if err := rows.Scan(&rec.ID, &rec.Name, &createdAt, &turnJSON); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at of %q: %w", rec.Name, err)
		}
		if err := json.Unmarshal([]byte(turnJSON), &rec.Turns); err != nil {
			return nil, fmt.Errorf("unmarshal turns of %q: %w", rec.Name, err)
		}
		snap.Conversations = append(snap.Conversations, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
