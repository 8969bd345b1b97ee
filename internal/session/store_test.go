package session

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addExchange(t *testing.T, c *Conversation, question, answer string) {
	t.Helper()
	ticket, err := c.Log.AppendUser(question)
	require.NoError(t, err)
	_, err = c.Log.CommitReply(ticket, answer, nil)
	require.NoError(t, err)
}

func TestStore_CreateNamesFromCount(t *testing.T) {
	s := NewStore(nil)

	assert.Equal(t, "Chat 1", s.Create(""))
	assert.Equal(t, "Chat 2", s.Create("Chat"))
	assert.Equal(t, "Chat 2", s.ActiveName())
	assert.Equal(t, []string{"Chat 1", "Chat 2"}, s.Names())

	// Deleting frees the lower number again.
	require.NoError(t, s.Delete("Chat 1"))
	assert.Equal(t, "Chat 2 (2)", s.Create(""), "count-derived name collides with the survivor")
}

func TestStore_CreateAfterManualRenameCollision(t *testing.T) {
	s := NewStore(nil)
	s.Create("")
	require.NoError(t, s.Rename("Chat 1", "Chat 2"))

	name := s.Create("")
	assert.Equal(t, "Chat 2 (2)", name)
	assert.Equal(t, []string{"Chat 2", "Chat 2 (2)"}, s.Names())
}

func TestStore_Select(t *testing.T) {
	s := NewStore(nil)
	s.Create("")
	s.Create("")

	require.NoError(t, s.Select("Chat 1"))
	assert.Equal(t, "Chat 1", s.ActiveName())

	err := s.Select("Chat 9")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Chat 1", s.ActiveName())
}

func TestStore_RenameMovesTurns(t *testing.T) {
	s := NewStore(nil)
	s.Create("")
	c, err := s.Get("Chat 1")
	require.NoError(t, err)
	addExchange(t, c, "What is overfitting?", "Overfitting is...")
	id := c.ID

	require.NoError(t, s.Rename("Chat 1", "Chat 2"))

	assert.Equal(t, []string{"Chat 2"}, s.Names())
	assert.Equal(t, "Chat 2", s.ActiveName())
	_, err = s.Get("Chat 1")
	assert.ErrorIs(t, err, ErrNotFound)

	moved, err := s.Get("Chat 2")
	require.NoError(t, err)
	assert.Equal(t, id, moved.ID)
	assert.Equal(t, 2, moved.Log.Len())
}

func TestStore_RenameKeepsPosition(t *testing.T) {
	s := NewStore(nil)
	s.Create("")
	s.Create("")
	s.Create("")

	require.NoError(t, s.Rename("Chat 2", "Regression"))
	assert.Equal(t, []string{"Chat 1", "Regression", "Chat 3"}, s.Names())
	assert.Equal(t, "Chat 3", s.ActiveName(), "renaming an inactive chat leaves selection alone")
}

func TestStore_RenameErrors(t *testing.T) {
	s := NewStore(nil)
	s.Create("")
	s.Create("")
	c1, _ := s.Get("Chat 1")
	addExchange(t, c1, "q", "a")

	tests := []struct {
		name    string
		old     string
		new     string
		wantErr error
	}{
		{"empty", "Chat 1", "", ErrInvalidName},
		{"blank", "Chat 1", "   ", ErrInvalidName},
		{"same", "Chat 1", "Chat 1", ErrInvalidName},
		{"conflict", "Chat 1", "Chat 2", ErrConflict},
		{"missing", "Chat 7", "Other", ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Rename(tt.old, tt.new)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, []string{"Chat 1", "Chat 2"}, s.Names())
			assert.Equal(t, "Chat 2", s.ActiveName())
		})
	}

	// Conflict must not touch either conversation.
	c1, _ = s.Get("Chat 1")
	c2, _ := s.Get("Chat 2")
	assert.Equal(t, 2, c1.Log.Len())
	assert.Equal(t, 0, c2.Log.Len())
}

func TestStore_DeleteOnlyConversation(t *testing.T) {
	s := NewStore(nil)
	s.Create("")

	require.NoError(t, s.Delete("Chat 1"))
	assert.Empty(t, s.Names())
	assert.Equal(t, "", s.ActiveName())
	_, ok := s.Active()
	assert.False(t, ok)
}

func TestStore_DeleteActiveFallsBackToFirst(t *testing.T) {
	s := NewStore(nil)
	s.Create("")
	s.Create("")
	s.Create("")

	require.NoError(t, s.Delete("Chat 3"))
	assert.Equal(t, "Chat 1", s.ActiveName())

	require.NoError(t, s.Select("Chat 2"))
	require.NoError(t, s.Delete("Chat 1"))
	assert.Equal(t, "Chat 2", s.ActiveName(), "deleting an inactive chat keeps selection")

	assert.ErrorIs(t, s.Delete("Chat 1"), ErrNotFound)
}

func TestStore_EnsureActive(t *testing.T) {
	s := NewStore(nil)
	c := s.EnsureActive("")
	assert.Equal(t, "Chat 1", c.Name)
	assert.Same(t, c, s.EnsureActive(""))
	assert.Equal(t, 1, s.Len())
}

// TestStore_RandomOperationsKeepInvariants drives the store with a random
// mix of operations and checks uniqueness and active membership after each.
func TestStore_RandomOperationsKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := NewStore(nil)

	pick := func() string {
		names := s.Names()
		if len(names) == 0 || rng.Intn(8) == 0 {
			return fmt.Sprintf("ghost %d", rng.Intn(5))
		}
		return names[rng.Intn(len(names))]
	}

	for i := 0; i < 2000; i++ {
		switch rng.Intn(4) {
		case 0:
			s.Create("")
		case 1:
			_ = s.Rename(pick(), fmt.Sprintf("Chat %d", rng.Intn(6)))
		case 2:
			_ = s.Delete(pick())
		case 3:
			_ = s.Select(pick())
		}

		names := s.Names()
		seen := make(map[string]bool, len(names))
		for _, n := range names {
			require.False(t, seen[n], "duplicate key %q after step %d", n, i)
			seen[n] = true
		}
		if len(names) == 0 {
			require.Equal(t, "", s.ActiveName())
		} else {
			require.True(t, seen[s.ActiveName()], "active %q not in %v after step %d", s.ActiveName(), names, i)
		}
	}
}

func TestStore_SnapshotExcludesPendingQuestion(t *testing.T) {
	s := NewStore(nil)
	c := s.EnsureActive("")
	addExchange(t, c, "q1", "a1")
	_, err := c.Log.AppendUser("q2")
	require.NoError(t, err)

	snap := s.Snapshot()
	require.Len(t, snap.Conversations, 1)
	assert.Len(t, snap.Conversations[0].Turns, 2)
}

func TestIsStorageError(t *testing.T) {
	wrapped := fmt.Errorf("save chats: %w", &StorageError{Op: "persist", Err: errors.New("disk full")})
	assert.True(t, IsStorageError(wrapped))
	assert.False(t, IsStorageError(ErrNotFound))
	assert.False(t, IsStorageError(nil))
}
