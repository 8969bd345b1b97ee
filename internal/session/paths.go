package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// DefaultPath returns the default store location
// (~/.local/share/dstutor/sessions[-user].json or .db).
func DefaultPath(backend, user string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "dstutor", fileName(backend, user)), nil
}

func fileName(backend, user string) string {
	ext := ".json"
	if backend == BackendSQLite {
		ext = ".db"
	}
	if u := sanitizeUser(user); u != "" {
		return "sessions-" + u + ext
	}
	return "sessions" + ext
}

// sanitizeUser keeps letters, digits, '-' and '_' so a username can be used
// in a file name.
func sanitizeUser(user string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ' || r == '.':
			return '_'
		}
		return -1
	}, strings.TrimSpace(user))
}

// OpenSink opens the sink for backend at path. An empty path selects
// DefaultPath for the given user. A non-nil sink may come with a
// *StorageError when damaged storage was replaced by an empty one.
func OpenSink(backend, path, user string) (Sink, error) {
	if backend == "" {
		backend = BackendJSON
	}
	if path == "" {
		p, err := DefaultPath(backend, user)
		if err != nil {
			return nil, fmt.Errorf("session store path: %w", err)
		}
		path = p
	}
	switch backend {
	case BackendJSON:
		return NewJSONSink(path), nil
	case BackendSQLite:
		s, err := OpenSQLiteSink(path)
		if s == nil {
			return nil, err
		}
		return s, err
	}
	return nil, fmt.Errorf("unknown store backend %q (want %q or %q)", backend, BackendJSON, BackendSQLite)
}
