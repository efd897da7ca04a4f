// Package transcript holds the ordered chat log and the view flags derived from it.
package transcript

import (
	"sync"
	"time"

	"interviewmic/internal/domain"
)

// Store is an append-only log of chat turns plus transient UI flags.
type Store struct {
	mu    sync.RWMutex
	turns []domain.ChatTurn
	flags domain.UIFlags
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{now: time.Now}
}

// Append pushes a new turn to the end of the log and returns it.
func (s *Store) Append(sender domain.Sender, content string) domain.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turn := domain.ChatTurn{
		Sequence:   len(s.turns),
		Sender:     sender,
		Content:    content,
		ReceivedAt: s.now(),
	}
	s.turns = append(s.turns, turn)
	return turn
}

// SetFlags merges the non-nil fields of update and returns the result.
func (s *Store) SetFlags(update domain.FlagUpdate) domain.UIFlags {
	s.mu.Lock()
	defer s.mu.Unlock()

	if update.IsLoading != nil {
		s.flags.IsLoading = *update.IsLoading
	}
	if update.IsTyping != nil {
		s.flags.IsTyping = *update.IsTyping
	}
	if update.IsListening != nil {
		s.flags.IsListening = *update.IsListening
	}
	return s.flags
}

// Reset clears the transcript and all flags.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
	s.flags = domain.UIFlags{}
}

// Turns returns a copy of the log in insertion order.
func (s *Store) Turns() []domain.ChatTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ChatTurn, len(s.turns))
	copy(out, s.turns)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

func (s *Store) Flags() domain.UIFlags {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags
}

func boolPtr(v bool) *bool {
	return &v
}
