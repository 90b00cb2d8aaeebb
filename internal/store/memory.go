package store

import (
	"context"
	"sync"

	"github.com/zcancio/aide-sub002/internal/domain/reducer"
	"github.com/zcancio/aide-sub002/internal/domain/snapshot"
)

// Memory is an in-process Store used by tests and by the mock-LLM demo
// path (C10's golden-replay tests need a Store that needs no network).
// Safe for concurrent use across aides; single-flight per aide is the
// caller's responsibility, same as the spec assigns to real stores.
type Memory struct {
	mu    sync.Mutex
	aides map[string]*aideState
}

type aideState struct {
	snapshot *snapshot.Snapshot
	tail     []HistoryEntry
	awaiting bool
}

func NewMemory() *Memory {
	return &Memory{aides: make(map[string]*aideState)}
}

func (m *Memory) LoadTurnContext(ctx context.Context, aideID string) (*TurnContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.aides[aideID]
	if !ok {
		return &TurnContext{Snapshot: snapshot.New()}, nil
	}
	return &TurnContext{
		Snapshot:         st.snapshot.Clone(),
		ConversationTail: append([]HistoryEntry(nil), st.tail...),
		AwaitingClarify:  st.awaiting,
	}, nil
}

func (m *Memory) AppendTurn(ctx context.Context, aideID, turnID string, operations []reducer.Operation, final *snapshot.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.stateFor(aideID)
	st.snapshot = final
	return nil
}

func (m *Memory) AppendDirectEdit(ctx context.Context, aideID string, op reducer.Operation, result *snapshot.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.stateFor(aideID)
	st.snapshot = result
	return nil
}

// SetConversationTail lets tests seed the bounded history a turn will see.
func (m *Memory) SetConversationTail(aideID string, tail []HistoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.stateFor(aideID)
	st.tail = tail
}

// Seed lets tests install a starting snapshot for an aide.
func (m *Memory) Seed(aideID string, snap *snapshot.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.stateFor(aideID)
	st.snapshot = snap
}

func (m *Memory) stateFor(aideID string) *aideState {
	st, ok := m.aides[aideID]
	if !ok {
		st = &aideState{snapshot: snapshot.New()}
		m.aides[aideID] = st
	}
	return st
}
