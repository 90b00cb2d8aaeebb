// Package store defines the external store collaborator the orchestrator
// depends on (spec §6.3): three atomic operations covering load-at-turn-
// start, append-at-turn-end, and the direct-edit path's lighter append.
// Everything beyond those three calls — schema, durability, replication,
// undo — belongs to the collaborator, not this kernel.
package store

import (
	"context"
	"time"

	"github.com/zcancio/aide-sub002/internal/domain/reducer"
	"github.com/zcancio/aide-sub002/internal/domain/snapshot"
)

// HistoryRole distinguishes a conversation-tail entry's speaker.
type HistoryRole string

const (
	RoleUser      HistoryRole = "user"
	RoleAssistant HistoryRole = "assistant"
)

// HistoryEntry is one bounded conversation-tail entry (spec §4.4, §6.3):
// a verbatim user utterance, or a compact summary of a prior assistant
// mutation turn ("N operations applied") rather than a verbatim replay.
type HistoryEntry struct {
	Role HistoryRole
	Text string
	At   time.Time
}

// TurnContext is what load_turn_context returns: the aide's current
// snapshot plus its bounded conversation tail (spec §6.3, ≤
// history_window_turns entries).
type TurnContext struct {
	Snapshot        *snapshot.Snapshot
	ConversationTail []HistoryEntry
	AwaitingClarify bool
}

// Store is the three operations the orchestrator requires of its
// durable-persistence collaborator (spec §6.3). Each method is atomic from
// the orchestrator's point of view; concurrent access to the same aide
// from two sessions is the implementation's responsibility (optimistic
// concurrency or otherwise), not the orchestrator's.
type Store interface {
	// LoadTurnContext loads the current snapshot and bounded conversation
	// tail for aideID. A brand-new aide returns an empty snapshot and a
	// nil tail, not an error.
	LoadTurnContext(ctx context.Context, aideID string) (*TurnContext, error)

	// AppendTurn persists the operations accepted during a turn plus the
	// resulting final snapshot, as one atomic append to the aide's event
	// log (spec §3 "Turn ... Lifecycle").
	AppendTurn(ctx context.Context, aideID, turnID string, operations []reducer.Operation, final *snapshot.Snapshot) error

	// AppendDirectEdit persists a single reducer-accepted direct-edit
	// operation as a one-op turn (spec §4.8 "Direct edits").
	AppendDirectEdit(ctx context.Context, aideID string, op reducer.Operation, result *snapshot.Snapshot) error
}
