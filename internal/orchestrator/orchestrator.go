// Package orchestrator implements the per-turn state machine (spec §4.7,
// C7): classify, assemble, stream, split, reduce, fan out to the sink, and
// — for the fast tier only — decide whether to escalate and replay at a
// heavier tier. Grounded on the teacher's turn_executor.go (per-turn
// struct owning context+cancel, a status field, a broadcast step) and
// streaming/mstream_adapter.go's workFunc/continuation pattern, directly
// analogous to this spec's fast→structural→fast retry.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/zcancio/aide-sub002/internal/domain/reducer"
	"github.com/zcancio/aide-sub002/internal/domain/snapshot"
	"github.com/zcancio/aide-sub002/internal/llm/classifier"
	"github.com/zcancio/aide-sub002/internal/llm/prompt"
	"github.com/zcancio/aide-sub002/internal/llm/stream"
	"github.com/zcancio/aide-sub002/internal/orcherr"
	storepkg "github.com/zcancio/aide-sub002/internal/store"
	"github.com/zcancio/aide-sub002/internal/telemetry"
)

// Pricing is the per-million-token rate table telemetry's cost
// calculation applies to one tier's usage (spec §4.9, §6.5).
type Pricing struct {
	InputPerMTok      float64
	OutputPerMTok     float64
	CacheReadPerMTok  float64
	CacheWritePerMTok float64
}

// Cost returns u's fractional-currency-unit cost under this pricing table.
func (p Pricing) Cost(u Usage) float64 {
	return float64(u.InputTokens)/1_000_000*p.InputPerMTok +
		float64(u.OutputTokens)/1_000_000*p.OutputPerMTok +
		float64(u.CacheReadTokens)/1_000_000*p.CacheReadPerMTok +
		float64(u.CacheWriteTokens)/1_000_000*p.CacheWritePerMTok
}

// TierSetting is one tier's model id, wall-clock budget, and pricing
// (spec §6.5 per-tier config options).
type TierSetting struct {
	Model   string
	Timeout time.Duration
	Pricing Pricing
}

// Settings is the orchestrator's complete per-tier configuration surface,
// built by the caller (cmd/server) from internal/config.Config.
type Settings struct {
	Fast                    TierSetting
	Structural              TierSetting
	Analyst                 TierSetting
	BatchFlushTimeout       time.Duration
	ParseFailureStreakLimit int
}

func (s Settings) forTier(tier classifier.Tier) TierSetting {
	switch tier {
	case classifier.Structural:
		return s.Structural
	case classifier.Analyst:
		return s.Analyst
	default:
		return s.Fast
	}
}

// Orchestrator is the per-turn state machine (C7). One Orchestrator value
// is shared across every turn on every aide; it holds no per-turn state
// itself — everything per-turn lives in the RunTurn call's locals and the
// passResult values runTier produces, matching spec §5's "the orchestrator
// is single-threaded per turn" / no shared mutable state requirement.
type Orchestrator struct {
	assembler *prompt.Assembler
	provider  stream.Provider
	store     storepkg.Store
	telemetry telemetry.Recorder
	logger    *slog.Logger

	batchFlushTimeout       time.Duration
	parseFailureStreakLimit int
	settings                Settings
}

func New(assembler *prompt.Assembler, provider stream.Provider, store storepkg.Store, rec telemetry.Recorder, logger *slog.Logger, settings Settings) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		assembler:               assembler,
		provider:                provider,
		store:                   store,
		telemetry:               rec,
		logger:                  logger,
		batchFlushTimeout:       settings.BatchFlushTimeout,
		parseFailureStreakLimit: settings.ParseFailureStreakLimit,
		settings:                settings,
	}
}

// Outcome summarizes what a RunTurn call did, for the caller's logging
// and for callers (like tests) that want to assert on the result without
// reaching into the sink.
type Outcome struct {
	TurnID             string
	TierTrace          []string
	OperationsAccepted int
	OperationsRejected map[reducer.RejectReason]int
	ErrorKind          orcherr.Kind // empty unless the turn ended in stream.error
	Interrupted        bool
}

// RunTurn executes one full turn (spec §4.7): loads the snapshot, classifies,
// runs the initial tier, resolves any escalation, and persists the
// canonical operation set. Every terminal condition is communicated to sink
// via exactly one of StreamEnd/StreamError/StreamInterrupted (spec §7
// invariant 1) before RunTurn returns. RunTurn returns no error: the
// Outcome summarizes the turn, and the sink has already been told
// everything it needs to know.
func (o *Orchestrator) RunTurn(ctx context.Context, sink Sink, turnID, aideID, userID, message string, hasImage bool) Outcome {
	tStart := time.Now()
	logger := o.logger.With("turn_id", turnID, "aide_id", aideID)

	turnCtx, err := o.store.LoadTurnContext(ctx, aideID)
	if err != nil {
		oe := orcherr.Wrap(orcherr.StoreUnavailable, "failed to load turn context", err)
		sink.StreamError(oe.Kind, oe.Message)
		o.recordTelemetry(ctx, turnID, aideID, userID, "", 0, "", nil, 0, 0, oe.Kind, tStart)
		return Outcome{TurnID: turnID, ErrorKind: oe.Kind}
	}

	original := turnCtx.Snapshot
	if original == nil {
		original = snapshot.New()
	}
	tail := turnCtx.ConversationTail

	cls := classifier.Classify(message, hasImage, original)
	sink.StreamStart(turnID, string(cls.Tier))
	logger.Info("turn classified", "tier", cls.Tier, "rule", cls.Rule, "confidence", cls.Confidence)

	run := &turnRun{
		o: o, sink: sink, logger: logger,
		turnID: turnID, aideID: aideID, userID: userID,
		message: message, tail: tail,
		tStart: tStart,
		rejected: make(map[reducer.RejectReason]int),
		initialTier: cls.Tier, initialConfidence: cls.Confidence,
	}

	first := run.runTierRetrying(ctx, cls.Tier, original)
	run.recordUsage(cls.Tier, first)

	switch {
	case first.providerErr != nil:
		run.handleFirstPassError(ctx, original, first, false)
	case first.interrupted:
		run.finishInterrupted(first, false)
	case cls.Tier == classifier.Fast:
		run.handleFastTierCompletion(ctx, original, first)
	default:
		// Direct structural or analyst dispatch: single pass, no retry
		// chain (only fast-tier completions can trigger escalation).
		run.tierTrace = append(run.tierTrace, string(cls.Tier))
		run.applyPass(first)
		run.finishEnd()
	}

	return run.outcome()
}

// runTierRetrying wraps runTier with the single retriable-error retry
// spec §7 names: Provider.Unreachable and Provider.RateLimited get one
// retry after a 1s backoff; everything else is returned as-is.
func (t *turnRun) runTierRetrying(ctx context.Context, tier classifier.Tier, snap *snapshot.Snapshot) *passResult {
	setting := t.o.settings.forTier(tier)
	res := t.o.runTier(ctx, tier, setting.Model, setting.Timeout, snap, t.tail, t.message)
	if res.providerErr != nil && res.providerErr.Kind.Retriable() {
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return res
		}
		res = t.o.runTier(ctx, tier, setting.Model, setting.Timeout, snap, t.tail, t.message)
	}
	return res
}
