// Package session implements the roleplay session lifecycle: scenario
// selection, turn-by-turn dialog, finish detection, and closure with
// evaluation and export.
package session

import "sync"

// Phase is the per-conversation lifecycle state.
type Phase int

const (
	// PhaseNone means no roleplay is in progress.
	PhaseNone Phase = iota
	// PhaseInDialog means an active session exists for the conversation.
	PhaseInDialog
)

// State is the typed per-conversation state kept between updates. The system
// prompt is cached here so it is not re-derived from the scenario row on
// every turn.
type State struct {
	Phase        Phase
	SessionID    int64
	SystemPrompt string
}

// StateStore keeps conversation state keyed by chat ID. go-telegram/bot runs
// one goroutine per update, so access is mutex-guarded.
type StateStore struct {
	mu     sync.RWMutex
	states map[int64]State
}

// NewStateStore creates an empty state store.
func NewStateStore() *StateStore {
	return &StateStore{states: make(map[int64]State)}
}

// Get returns the state for a chat; the zero State means no session.
func (s *StateStore) Get(chatID int64) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[chatID]
}

// Set replaces the state for a chat.
func (s *StateStore) Set(chatID int64, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[chatID] = state
}

// Clear removes the state for a chat.
func (s *StateStore) Clear(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, chatID)
}

// ChatForSession returns the chat currently bound to the given session, if
// any. Used when a session is closed from outside its own conversation.
func (s *StateStore) ChatForSession(sessionID int64) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for chatID, state := range s.states {
		if state.SessionID == sessionID && state.Phase == PhaseInDialog {
			return chatID, true
		}
	}
	return 0, false
}
