package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/chat"
	"github.com/AbhishekKantharia/AIConversationalDataScienceTutor/internal/export"
	"github.com/google/uuid"
)

// DefaultBase is the label used for generated conversation names ("Chat 1").
const DefaultBase = "Chat"

// Conversation is one named chat. Name is both the display label and the
// store key; ID never changes.
type Conversation struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Log       *chat.Log
}

// Export renders the finished turns of the conversation in the given format.
func (c *Conversation) Export(f export.Format) ([]byte, error) {
	return export.Render(f, &export.Document{
		Title:     c.Name,
		CreatedAt: c.CreatedAt,
		Turns:     c.Log.Completed(),
	})
}

// Store is the catalogue of conversations. Keys are unique and keep
// insertion order; active, when set, always names a member.
// A Store is not safe for concurrent use.
type Store struct {
	sink   Sink
	order  []string
	convs  map[string]*Conversation
	active string
	now    func() time.Time
}

// NewStore creates an empty store writing to sink. A nil sink keeps the
// store in memory only.
func NewStore(sink Sink) *Store {
	return &Store{
		sink:  sink,
		convs: make(map[string]*Conversation),
		now:   time.Now,
	}
}

// Len returns the number of conversations.
func (s *Store) Len() int { return len(s.order) }

// Names returns the conversation names in insertion order.
func (s *Store) Names() []string {
	return append([]string(nil), s.order...)
}

// Get returns the conversation called name.
func (s *Store) Get(name string) (*Conversation, error) {
	c, ok := s.convs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return c, nil
}

// ActiveName returns the selected conversation name, or "" when none exist.
func (s *Store) ActiveName() string { return s.active }

// Active returns the selected conversation.
func (s *Store) Active() (*Conversation, bool) {
	if s.active == "" {
		return nil, false
	}
	c, ok := s.convs[s.active]
	return c, ok
}

// EnsureActive returns the selected conversation, creating one named after
// base when the store is empty.
func (s *Store) EnsureActive(base string) *Conversation {
	if c, ok := s.Active(); ok {
		return c
	}
	name := s.Create(base)
	return s.convs[name]
}

// Create inserts an empty conversation, selects it and returns its name.
// The name is base followed by the current count plus one; if that is taken
// (after renames) a " (n)" suffix is added.
func (s *Store) Create(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = DefaultBase
	}
	candidate := fmt.Sprintf("%s %d", base, len(s.order)+1)
	name := candidate
	for n := 2; s.has(name); n++ {
		name = fmt.Sprintf("%s (%d)", candidate, n)
	}

	s.insert(&Conversation{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: s.now().UTC(),
		Log:       chat.NewLog(nil),
	})
	s.active = name
	return name
}

// Select makes name the active conversation.
func (s *Store) Select(name string) error {
	if !s.has(name) {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	s.active = name
	return nil
}

// Rename moves the conversation old to the key newName, keeping its turns
// and its position. The store is left untouched on error.
func (s *Store) Rename(old, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidName)
	}
	if newName == old {
		return fmt.Errorf("%w: %q is already the current name", ErrInvalidName, old)
	}
	c, ok := s.convs[old]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, old)
	}
	if s.has(newName) {
		return fmt.Errorf("%w: %q", ErrConflict, newName)
	}

	delete(s.convs, old)
	c.Name = newName
	s.convs[newName] = c
	for i, n := range s.order {
		if n == old {
			s.order[i] = newName
			break
		}
	}
	if s.active == old {
		s.active = newName
	}
	return nil
}

// Delete removes the conversation called name. If it was active the first
// remaining conversation becomes active.
func (s *Store) Delete(name string) error {
	if !s.has(name) {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(s.convs, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.active == name {
		s.active = ""
	}
	s.fixActive()
	return nil
}

// Persist writes the whole store to the sink, replacing the previous
// snapshot. The in-memory state is kept whatever the outcome.
func (s *Store) Persist() error {
	if s.sink == nil {
		return nil
	}
	if err := s.sink.Save(s.Snapshot()); err != nil {
		return &StorageError{Op: "persist", Err: err}
	}
	return nil
}

// Load replaces the in-memory state with the sink's snapshot. Missing
// storage yields an empty store. Unreadable or corrupt storage also yields
// an empty store; the returned *StorageError is informational only.
func (s *Store) Load() error {
	s.reset()
	if s.sink == nil {
		return nil
	}
	snap, err := s.sink.Load()
	if err != nil {
		return &StorageError{Op: "load", Err: err}
	}
	s.restore(snap)
	return nil
}

// Snapshot returns the serializable state of the store. Unanswered
// questions are not included.
func (s *Store) Snapshot() *Snapshot {
	snap := &Snapshot{
		Version:       snapshotVersion,
		Active:        s.active,
		Conversations: make([]ConversationRecord, 0, len(s.order)),
	}
	for _, name := range s.order {
		c := s.convs[name]
		snap.Conversations = append(snap.Conversations, ConversationRecord{
			ID:        c.ID,
			Name:      c.Name,
			CreatedAt: c.CreatedAt,
			Turns:     c.Log.Completed(),
		})
	}
	return snap
}

// Close releases the sink.
func (s *Store) Close() error {
	if s.sink == nil {
		return nil
	}
	return s.sink.Close()
}

func (s *Store) restore(snap *Snapshot) {
	if snap == nil {
		return
	}
	for _, rec := range snap.Conversations {
		if rec.Name == "" || s.has(rec.Name) {
			continue
		}
		id := rec.ID
		if id == "" {
			id = uuid.NewString()
		}
		s.insert(&Conversation{
			ID:        id,
			Name:      rec.Name,
			CreatedAt: rec.CreatedAt,
			Log:       chat.NewLog(rec.Turns),
		})
	}
	s.active = snap.Active
	s.fixActive()
}

func (s *Store) insert(c *Conversation) {
	s.order = append(s.order, c.Name)
	s.convs[c.Name] = c
}

func (s *Store) reset() {
	s.order = nil
	s.convs = make(map[string]*Conversation)
	s.active = ""
}

// fixActive points active at the first key when it is unset or stale.
func (s *Store) fixActive() {
	if s.has(s.active) {
		return
	}
	s.active = ""
	if len(s.order) > 0 {
		s.active = s.order[0]
	}
}

func (s *Store) has(name string) bool {
	_, ok := s.convs[name]
	return ok
}
