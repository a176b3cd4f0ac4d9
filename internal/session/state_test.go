package session

import "testing"

func TestStateStore(t *testing.T) {
	t.Parallel()

	s := NewStateStore()

	if got := s.Get(10); got.Phase != PhaseNone {
		t.Fatalf("fresh chat phase = %v, want PhaseNone", got.Phase)
	}

	s.Set(10, State{Phase: PhaseInDialog, SessionID: 42, SystemPrompt: "prompt"})

	got := s.Get(10)
	if got.Phase != PhaseInDialog || got.SessionID != 42 || got.SystemPrompt != "prompt" {
		t.Errorf("unexpected state %+v", got)
	}

	chat, ok := s.ChatForSession(42)
	if !ok || chat != 10 {
		t.Errorf("ChatForSession(42) = %d, %v; want 10, true", chat, ok)
	}
	if _, ok := s.ChatForSession(7); ok {
		t.Error("ChatForSession for unknown session should report false")
	}

	s.Clear(10)
	if got := s.Get(10); got.Phase != PhaseNone {
		t.Errorf("cleared chat phase = %v, want PhaseNone", got.Phase)
	}
	if _, ok := s.ChatForSession(42); ok {
		t.Error("cleared session should not resolve to a chat")
	}
}
