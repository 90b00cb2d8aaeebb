package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/zcancio/aide-sub002/internal/domain/reducer"
	"github.com/zcancio/aide-sub002/internal/domain/snapshot"
	"github.com/zcancio/aide-sub002/internal/llm/classifier"
	"github.com/zcancio/aide-sub002/internal/orcherr"
	storepkg "github.com/zcancio/aide-sub002/internal/store"
	"github.com/zcancio/aide-sub002/internal/telemetry"
)

// turnRun carries the state a single RunTurn call accumulates across one
// or more passes. It exists only for the lifetime of one RunTurn call —
// the Orchestrator itself holds none of this (see orchestrator.go's
// "holds no per-turn state" note).
type turnRun struct {
	o      *Orchestrator
	sink   Sink
	logger *slog.Logger

	turnID, aideID, userID string
	message                string
	tail                   []storepkg.HistoryEntry
	tStart                 time.Time

	initialTier       classifier.Tier
	initialConfidence float64
	escalationReason  string

	tierTrace   []string
	passes      []telemetry.TierTrace
	acceptedOps []reducer.Operation
	rejected    map[reducer.RejectReason]int
	usage       Usage
	firstContentAt time.Time
	finalSnap   *snapshot.Snapshot
	errKind     orcherr.Kind
	interrupted bool
	opsAppliedAtInterrupt int
}

func (t *turnRun) recordUsage(tier classifier.Tier, res *passResult) {
	t.usage.Add(res.usage)
	setting := t.o.settings.forTier(tier)
	t.passes = append(t.passes, telemetry.TierTrace{
		Tier: string(tier), Model: setting.Model,
		InputTokens: res.usage.InputTokens, OutputTokens: res.usage.OutputTokens,
		CacheReadTokens: res.usage.CacheReadTokens, CacheWriteTokens: res.usage.CacheWriteTokens,
	})
}

// applyPass flushes a completed pass's deltaGroups to the sink in order
// and folds its accepted/rejected counts into the turn totals. It does
// not flush deltaGroups belonging to a pass the caller decided to
// discard (fast-tier structural rollback) — callers skip calling this
// for that pass entirely.
func (t *turnRun) applyPass(res *passResult) {
	for _, g := range res.deltaGroups {
		if g.batch {
			t.sink.DeltaBatch(g.ops)
		} else if len(g.ops) == 1 {
			t.sink.Delta(g.ops[0])
		}
	}
	for _, line := range res.voiceLines {
		t.sink.Voice(line)
	}
	if res.clarify != nil {
		t.sink.Clarify(res.clarify.text, res.clarify.options)
	}
	t.acceptedOps = append(t.acceptedOps, res.acceptedOps...)
	for reason, count := range res.rejected {
		t.rejected[reason] += count
	}
	if res.finalSnap != nil {
		t.finalSnap = res.finalSnap
	}
	if res.firstContent && t.firstContentAt.IsZero() {
		t.firstContentAt = time.Now()
	}
}

// handleFastTierCompletion resolves spec §4.7's fast-tier decision tree
// once the fast pass has finished without a provider error or
// interruption: apply passively-or-explicitly detected structural
// escalation (discard-and-rollback, replay at structural), apply an
// explicit analyst escalation (preserve-and-continue, the fast pass's
// work stands and an analyst pass runs in addition), or — with no
// escalation at all — apply the fast pass and finish.
func (t *turnRun) handleFastTierCompletion(ctx context.Context, original *snapshot.Snapshot, fast *passResult) {
	escalate := fast.escalate
	if escalate == nil {
		escalate = detectPassiveEscalation(original, fast.acceptedOps, fast.voiceLines)
	}

	if escalate == nil {
		t.tierTrace = append(t.tierTrace, string(classifier.Fast))
		t.applyPass(fast)
		t.finishEnd()
		return
	}

	t.escalationReason = escalate.reason
	t.sink.Escalation(string(classifier.Fast), escalate.tier, escalate.reason)

	switch classifier.Tier(escalate.tier) {
	case classifier.Structural:
		// Structural target: discard the fast pass's work entirely and
		// replay the turn against the original snapshot at the
		// structural tier (spec §4.7 "Two-pass escalation").
		t.tierTrace = append(t.tierTrace, string(classifier.Fast))
		second := t.runTierRetrying(ctx, classifier.Structural, original)
		t.recordUsage(classifier.Structural, second)
		t.tierTrace = append(t.tierTrace, string(classifier.Structural))

		switch {
		case second.providerErr != nil:
			t.handleFirstPassError(ctx, original, second, true)
		case second.interrupted:
			t.finishInterrupted(second, true)
		default:
			t.applyPass(second)

			// Retry fast against the post-structural snapshot to compile
			// the user's mutation intent against the new structure (spec
			// §4.7 "Two-pass escalation" step 3); tier_trace ends up
			// ["fast","structural","fast"].
			third := t.runTierRetrying(ctx, classifier.Fast, t.finalSnap)
			t.recordUsage(classifier.Fast, third)
			t.tierTrace = append(t.tierTrace, string(classifier.Fast))

			switch {
			case third.providerErr != nil:
				// The structural pass's mutation already landed; a
				// retry-fast failure ends the turn in error but does not
				// roll back what structural already committed.
				oe := third.providerErr
				t.errKind = oe.Kind
				t.sink.StreamError(oe.Kind, oe.Message)
				t.persistAndRecord(ctx)
			case third.interrupted:
				t.finishInterrupted(third, true)
			default:
				t.applyPass(third)
				t.finishEnd()
			}
		}

	default:
		// Analyst (or any other) target: the fast pass's work already
		// stands, the analyst pass runs in addition against the
		// post-fast snapshot and contributes only voice/clarify output
		// (analyst passes never mutate, enforced in runTier).
		t.tierTrace = append(t.tierTrace, string(classifier.Fast))
		t.applyPass(fast)

		second := t.runTierRetrying(ctx, classifier.Analyst, t.finalSnap)
		t.recordUsage(classifier.Analyst, second)
		t.tierTrace = append(t.tierTrace, string(classifier.Analyst))

		switch {
		case second.providerErr != nil:
			// The mutation already landed; an analyst-pass failure
			// ends the turn in error but does not roll back what the
			// fast pass already committed to the sink.
			oe := second.providerErr
			t.errKind = oe.Kind
			t.sink.StreamError(oe.Kind, oe.Message)
			t.persistAndRecord(ctx)
		case second.interrupted:
			t.finishInterrupted(second, true)
		default:
			t.applyPass(second)
			t.finishEnd()
		}
	}
}

// handleFirstPassError resolves a terminal provider error from any pass:
// a Stream.ParseFailureStreak on the fast tier escalates to structural
// and preserves whatever the fast tier had already produced (spec §8
// boundary scenario, "three consecutive malformed lines"); every other
// terminal kind ends the turn in error.
func (t *turnRun) handleFirstPassError(ctx context.Context, original *snapshot.Snapshot, res *passResult, alreadyTraced bool) {
	if res.tier == classifier.Fast && res.providerErr.Kind == orcherr.StreamParseFailure {
		t.tierTrace = append(t.tierTrace, string(classifier.Fast))
		t.applyPass(res)
		t.escalationReason = "parse_failure_streak"
		t.sink.Escalation(string(classifier.Fast), string(classifier.Structural), t.escalationReason)

		second := t.runTierRetrying(ctx, classifier.Structural, t.finalSnap)
		t.recordUsage(classifier.Structural, second)
		t.tierTrace = append(t.tierTrace, string(classifier.Structural))

		switch {
		case second.providerErr != nil:
			oe := second.providerErr
			t.errKind = oe.Kind
			t.sink.StreamError(oe.Kind, oe.Message)
			t.persistAndRecord(ctx)
		case second.interrupted:
			t.finishInterrupted(second, true)
		default:
			t.applyPass(second)
			t.finishEnd()
		}
		return
	}

	oe := res.providerErr
	if !alreadyTraced {
		t.tierTrace = append(t.tierTrace, string(res.tier))
	}
	t.errKind = oe.Kind
	t.sink.StreamError(oe.Kind, oe.Message)
	t.persistAndRecord(ctx)
}

// finishInterrupted ends the turn on a client-initiated interrupt (spec
// §4.8 "interrupt"): whatever the in-flight pass had already applied
// stands and is persisted, telemetry is recorded, nothing further runs.
func (t *turnRun) finishInterrupted(res *passResult, alreadyTraced bool) {
	if !alreadyTraced {
		t.tierTrace = append(t.tierTrace, string(res.tier))
	}
	t.applyPass(res)
	t.interrupted = true
	t.opsAppliedAtInterrupt = len(t.acceptedOps)
	t.sink.StreamInterrupted(t.turnID, t.opsAppliedAtInterrupt)
	t.persistAndRecord(context.Background())
}

// finishEnd is the normal-completion path: persist, record telemetry,
// emit stream.end.
func (t *turnRun) finishEnd() {
	ctx := context.Background()
	if t.finalSnap == nil {
		t.finalSnap = snapshot.New()
	}

	if err := t.o.store.AppendTurn(ctx, t.aideID, t.turnID, t.acceptedOps, t.finalSnap); err != nil {
		oe := orcherr.Wrap(orcherr.StoreUnavailable, "failed to persist turn", err)
		t.errKind = oe.Kind
		t.sink.StreamError(oe.Kind, oe.Message)
		t.recordTelemetryNow(ctx)
		return
	}

	now := time.Now()
	ttfcMs := int64(0)
	if !t.firstContentAt.IsZero() {
		ttfcMs = t.firstContentAt.Sub(t.tStart).Milliseconds()
	}
	ttcMs := now.Sub(t.tStart).Milliseconds()
	cost := t.cost()

	if len(t.tierTrace) > 1 {
		t.sink.TierRetrace(t.tierTrace)
	}
	t.sink.StreamEnd(t.turnID, t.tierTrace, t.usage, ttfcMs, ttcMs, cost)
	t.recordTelemetryNow(ctx)
}

// persistAndRecord is used where a turn ends in stream.error or
// stream.interrupted: whatever the earlier pass(es) committed must still
// be persisted rather than silently lost.
func (t *turnRun) persistAndRecord(ctx context.Context) {
	if t.finalSnap == nil {
		t.finalSnap = snapshot.New()
	}
	if err := t.o.store.AppendTurn(ctx, t.aideID, t.turnID, t.acceptedOps, t.finalSnap); err != nil {
		t.logger.Error("failed to persist turn after pass error", "err", err)
	}
	t.recordTelemetryNow(ctx)
}

func (t *turnRun) cost() float64 {
	var total float64
	for _, p := range t.passes {
		setting := t.o.settings.forTier(classifier.Tier(p.Tier))
		total += setting.Pricing.Cost(Usage{
			InputTokens: p.InputTokens, OutputTokens: p.OutputTokens,
			CacheReadTokens: p.CacheReadTokens, CacheWriteTokens: p.CacheWriteTokens,
		})
	}
	return total
}

func (t *turnRun) recordTelemetryNow(ctx context.Context) {
	now := time.Now()
	ttfcMs := int64(0)
	if !t.firstContentAt.IsZero() {
		ttfcMs = t.firstContentAt.Sub(t.tStart).Milliseconds()
	}
	t.o.telemetry.RecordTurn(ctx, telemetry.TurnRecord{
		TurnID: t.turnID, AideID: t.aideID, UserID: t.userID,
		Passes:             t.passes,
		InitialTier:        string(t.initialTier),
		InitialConfidence:  t.initialConfidence,
		EscalationReason:   t.escalationReason,
		OperationsAccepted: len(t.acceptedOps),
		OperationsRejected: t.rejected,
		TTFCMillis:         ttfcMs,
		TTCMillis:          now.Sub(t.tStart).Milliseconds(),
		CostFractionalUnits: t.cost(),
		ErrorKind:          t.errKind,
		At:                 now,
	})
}

func (t *turnRun) outcome() Outcome {
	return Outcome{
		TurnID:             t.turnID,
		TierTrace:          t.tierTrace,
		OperationsAccepted: len(t.acceptedOps),
		OperationsRejected: t.rejected,
		ErrorKind:          t.errKind,
		Interrupted:        t.interrupted,
	}
}

// recordTelemetry is a standalone helper for the load-turn-context
// failure path in RunTurn, before a turnRun exists.
func (o *Orchestrator) recordTelemetry(ctx context.Context, turnID, aideID, userID, initialTier string, initialConfidence float64, escalationReason string, rejected map[reducer.RejectReason]int, ttfcMs, ttcMs int64, errKind orcherr.Kind, tStart time.Time) {
	o.telemetry.RecordTurn(ctx, telemetry.TurnRecord{
		TurnID: turnID, AideID: aideID, UserID: userID,
		InitialTier: initialTier, InitialConfidence: initialConfidence,
		EscalationReason:   escalationReason,
		OperationsRejected: rejected,
		TTFCMillis:         ttfcMs,
		TTCMillis:          ttcMs,
		ErrorKind:          errKind,
		At:                 time.Now(),
	})
}
