package dialog

import (
	"context"
	"sync"
)

// State is the user's conversational position. Stored between turns; an
// unrecognized value is treated as StateStart so the machine is total.
type State string

const (
	StateStart                State = ""
	StateAwaitingScope        State = "awaiting_scope"
	StatePersonalMenu         State = "personal_menu"
	StateGroupMenu            State = "group_menu"
	StateSettingBudget        State = "setting_budget"
	StateCreatingGroupName    State = "creating_group_name"
	StateCreatingGroupMembers State = "creating_group_members"
)

func (s State) known() bool {
	switch s {
	case StateStart, StateAwaitingScope, StatePersonalMenu, StateGroupMenu,
		StateSettingBudget, StateCreatingGroupName, StateCreatingGroupMembers:
		return true
	}
	return false
}

// Session is one user's conversational position plus the scratch data kept
// alive during a multi-step sub-flow (e.g. a group name awaiting its members).
type Session struct {
	State   State             `json:"state"`
	Scratch map[string]string `json:"scratch,omitempty"`
}

func (s Session) with(state State) Session {
	s.State = state
	return s
}

func (s Session) stash(key, value string) Session {
	scratch := make(map[string]string, len(s.Scratch)+1)
	for k, v := range s.Scratch {
		scratch[k] = v
	}
	scratch[key] = value
	s.Scratch = scratch
	return s
}

func reset() Session {
	return Session{State: StateStart}
}

// SessionStore persists sessions between otherwise independent message
// deliveries. Get returns a zero session for users it has never seen.
type SessionStore interface {
	Get(ctx context.Context, userID string) (Session, error)
	Put(ctx context.Context, userID string, s Session) error
}

// MemorySessionStore keeps sessions in process memory; used by tests and
// when the bot runs without a database.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]Session)}
}

func (s *MemorySessionStore) Get(_ context.Context, userID string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[userID], nil
}

func (s *MemorySessionStore) Put(_ context.Context, userID string, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = sess
	return nil
}
