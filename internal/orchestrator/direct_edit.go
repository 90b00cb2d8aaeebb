package orchestrator

import (
	"context"
	"time"

	"github.com/zcancio/aide-sub002/internal/domain/reducer"
	"github.com/zcancio/aide-sub002/internal/domain/snapshot"
	"github.com/zcancio/aide-sub002/internal/orcherr"
	"github.com/zcancio/aide-sub002/internal/telemetry"
)

// DirectEditOutcome reports what one direct edit did.
type DirectEditOutcome struct {
	Accepted bool
	Reason   reducer.RejectReason
	ErrorKind orcherr.Kind
}

// ApplyDirectEdit applies a single pointer/keyboard-originated operation
// straight to the reducer, bypassing the classifier and every LLM tier
// (spec §4.8 "Direct edits"). A rejection is returned as the outcome's
// Reason and is never treated as a terminal error, since direct edits
// have no tier to escalate to.
func (o *Orchestrator) ApplyDirectEdit(ctx context.Context, sink Sink, aideID string, op reducer.Operation) DirectEditOutcome {
	start := time.Now()

	turnCtx, err := o.store.LoadTurnContext(ctx, aideID)
	if err != nil {
		oe := orcherr.Wrap(orcherr.StoreUnavailable, "failed to load turn context", err)
		sink.StreamError(oe.Kind, oe.Message)
		return DirectEditOutcome{ErrorKind: oe.Kind}
	}

	snap := turnCtx.Snapshot
	if snap == nil {
		snap = snapshot.New()
	}

	next, outcome := reducer.Reduce(snap, op)
	if !outcome.Accepted {
		return DirectEditOutcome{Accepted: false, Reason: outcome.Reason}
	}

	if err := o.store.AppendDirectEdit(ctx, aideID, op, next); err != nil {
		oe := orcherr.Wrap(orcherr.StoreUnavailable, "failed to persist direct edit", err)
		sink.StreamError(oe.Kind, oe.Message)
		return DirectEditOutcome{Accepted: true, ErrorKind: oe.Kind}
	}

	sink.Delta(op)
	o.telemetry.RecordDirectEdit(ctx, telemetry.DirectEditRecord{
		AideID:        aideID,
		EditLatencyMs: time.Since(start).Milliseconds(),
		At:            time.Now(),
	})

	return DirectEditOutcome{Accepted: true}
}
