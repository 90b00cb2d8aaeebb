package orchestrator

import (
	"github.com/zcancio/aide-sub002/internal/domain/reducer"
	"github.com/zcancio/aide-sub002/internal/orcherr"
)

// Usage is the usage_sum turn state (spec §4.7), summed across every
// pass run during a turn.
type Usage struct {
	InputTokens      int
	OutputTokens     int
	CacheReadTokens  int
	CacheWriteTokens int
}

// Add accumulates another pass's usage into the running sum.
func (u *Usage) Add(o Usage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
	u.CacheReadTokens += o.CacheReadTokens
	u.CacheWriteTokens += o.CacheWriteTokens
}

// Sink is the outbound event surface the orchestrator calls into (spec
// §4.8's wire event table). A session (C8) implements Sink over its
// serialized per-client writer; the orchestrator knows nothing about
// sockets, only this interface.
type Sink interface {
	StreamStart(turnID string, tier string)
	Delta(op reducer.Operation)
	DeltaBatch(ops []reducer.Operation)
	Voice(text string)
	Clarify(text string, options []string)
	Escalation(fromTier, toTier, reason string)
	TierRetrace(trace []string)
	StreamEnd(turnID string, trace []string, usage Usage, ttfcMs, ttcMs int64, costUSD float64)
	StreamError(kind orcherr.Kind, message string)
	StreamInterrupted(turnID string, operationsApplied int)
}
