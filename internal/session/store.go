package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/chat"
)

// Sink abstracts durable storage of the whole store (JSON file, SQLite).
// Save overwrites the previous snapshot atomically. Load returns (nil, nil)
// when nothing has been saved yet.
type Sink interface {
	Save(snap *Snapshot) error
	Load() (*Snapshot, error)
	Close() error
}

// snapshotVersion is written into every snapshot.
const snapshotVersion = 1

// Snapshot is the serialized form of a Store. Conversations keep the store's
// insertion order.
type Snapshot struct {
	Version       int                  `json:"version"`
	Active        string               `json:"active,omitempty"`
	Conversations []ConversationRecord `json:"conversations"`
}

// ConversationRecord is one persisted conversation.
type ConversationRecord struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	CreatedAt time.Time   `json:"created_at"`
	Turns     []chat.Turn `json:"turns"`
}

var (
	ErrNotFound    = errors.New("conversation not found")
	ErrConflict    = errors.New("conversation name already in use")
	ErrInvalidName = errors.New("invalid conversation name")
)

// StorageError reports a sink that could not be read or written.
type StorageError struct {
	Op  string // "load" or "persist"
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("session store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err is or wraps a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
