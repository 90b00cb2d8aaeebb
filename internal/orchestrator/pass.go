package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/zcancio/aide-sub002/internal/domain/reducer"
	"github.com/zcancio/aide-sub002/internal/domain/snapshot"
	"github.com/zcancio/aide-sub002/internal/llm/classifier"
	"github.com/zcancio/aide-sub002/internal/llm/jsonl"
	"github.com/zcancio/aide-sub002/internal/llm/stream"
	storepkg "github.com/zcancio/aide-sub002/internal/store"
	"github.com/zcancio/aide-sub002/internal/orcherr"
)

// deltaGroup is one unit the sink eventually receives: either a single
// accepted operation or the buffered contents of one batch.start/
// batch.end range (spec §4.8 "delta.batch").
type deltaGroup struct {
	ops   []reducer.Operation
	batch bool // true if this group came from a batch.start/batch.end range
}

// escalateRequest mirrors the jsonl escalate signal's payload, captured
// so the caller can decide how to apply it once a pass finishes.
type escalateRequest struct {
	tier    string
	reason  string
	extract string
}

// clarifyRequest mirrors the jsonl clarify signal's payload.
type clarifyRequest struct {
	text    string
	options []string
}

// passResult is everything one run_tier invocation (spec §4.7) produces.
// The caller (Orchestrator.RunTurn) decides whether deltaGroups are
// flushed to the sink live or discarded wholesale (fast-tier escalation
// rollback), so this type carries them ungrouped rather than already
// having called the sink.
type passResult struct {
	tier         classifier.Tier
	finalSnap    *snapshot.Snapshot
	deltaGroups  []deltaGroup
	acceptedOps  []reducer.Operation
	rejected     map[reducer.RejectReason]int
	voiceLines   []string
	clarify      *clarifyRequest
	escalate     *escalateRequest
	parseFailure bool
	usage        Usage
	firstContent bool // true if this pass produced any visible output (accepted op, voice or clarify)

	providerErr *orcherr.Error
	interrupted bool
}

// runTier executes one LLM pass against snap: assemble, stream, split,
// reduce, per spec §4.7's run_tier algorithm. It never touches the sink
// directly — the caller applies deltaGroups (or discards them) once the
// pass's outcome (escalation, completion, error) is known.
func (o *Orchestrator) runTier(ctx context.Context, tier classifier.Tier, model string, timeout time.Duration, snap *snapshot.Snapshot, tail []storepkg.HistoryEntry, message string) *passResult {
	result := &passResult{tier: tier, finalSnap: snap, rejected: make(map[reducer.RejectReason]int)}

	req, err := o.assembler.Build(tier, model, snap, tail, message)
	if err != nil {
		result.providerErr = orcherr.Wrap(orcherr.InternalBug, "failed to assemble prompt", err)
		return result
	}
	req.MaxTokens = 4096

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	events, err := o.provider.Stream(tctx, req)
	if err != nil {
		result.providerErr = classifyProviderErr(err)
		return result
	}

	splitter := jsonl.NewSplitterWithLimit(o.parseFailureStreakLimit)
	working := snap

	var pendingBatch []reducer.Operation
	batchOpen := false
	batchStarted := time.Time{}

	flushBatch := func() {
		if len(pendingBatch) > 0 {
			result.deltaGroups = append(result.deltaGroups, deltaGroup{ops: pendingBatch, batch: true})
		}
		pendingBatch = nil
		batchOpen = false
	}

	appendAccepted := func(op reducer.Operation) {
		result.acceptedOps = append(result.acceptedOps, op)
		if batchOpen {
			pendingBatch = append(pendingBatch, op)
			if time.Since(batchStarted) > o.batchFlushTimeout {
				flushBatch()
			}
			return
		}
		result.deltaGroups = append(result.deltaGroups, deltaGroup{ops: []reducer.Operation{op}})
	}

	applyItems := func(items []jsonl.Item) bool {
		for _, item := range items {
			switch item.Kind {
			case jsonl.ItemOperation:
				// Analyst never mutates; any accepted op from that tier
				// is discarded defensively (spec §4.7).
				if tier == classifier.Analyst {
					continue
				}
				next, outcome := reducer.Reduce(working, item.Operation)
				if outcome.Accepted {
					working = next
					result.finalSnap = working
					appendAccepted(item.Operation)
					if !result.firstContent {
						result.firstContent = true
					}
				} else {
					result.rejected[outcome.Reason]++
				}

			case jsonl.ItemSignal:
				switch item.Signal.Type {
				case jsonl.SignalVoice:
					result.voiceLines = append(result.voiceLines, item.Signal.Text)
					if !result.firstContent {
						result.firstContent = true
					}
				case jsonl.SignalEscalate:
					result.escalate = &escalateRequest{tier: item.Signal.Tier, reason: item.Signal.Reason, extract: item.Signal.Extract}
					if tier == classifier.Analyst {
						// queries must not mutate; once escalation is
						// flagged from analyst, stop accepting ops.
						return false
					}
				case jsonl.SignalClarify:
					result.clarify = &clarifyRequest{text: item.Signal.Text, options: item.Signal.Options}
					if !result.firstContent {
						result.firstContent = true
					}
				case jsonl.SignalBatchStart:
					flushBatch()
					batchOpen = true
					batchStarted = time.Now()
				case jsonl.SignalBatchEnd:
					flushBatch()
				}

			case jsonl.ItemParseFailure:
				result.parseFailure = true
				result.providerErr = orcherr.New(orcherr.StreamParseFailure, "too many consecutive malformed lines")
				return false
			}
		}
		return true
	}

loop:
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				// A provider may close the channel without an error event
				// once ctx is cancelled or the tier's wall clock runs out.
				if ctx.Err() != nil {
					result.interrupted = true
				} else if tctx.Err() != nil {
					result.providerErr = classifyProviderErr(tctx.Err())
				}
				break loop
			}
			switch ev.Kind {
			case stream.EventText:
				if !applyItems(splitter.Feed([]byte(ev.Text))) {
					break loop
				}
			case stream.EventUsage:
				result.usage.Add(Usage{
					InputTokens:      ev.Usage.InputTokens,
					OutputTokens:     ev.Usage.OutputTokens,
					CacheReadTokens:  ev.Usage.CacheReadTokens,
					CacheWriteTokens: ev.Usage.CacheWriteTokens,
				})
			case stream.EventEnd:
				break loop
			case stream.EventError:
				if errors.Is(ev.Err, context.Canceled) && ctx.Err() != nil {
					result.interrupted = true
				} else {
					result.providerErr = classifyProviderErr(ev.Err)
				}
				break loop
			}
		}
	}

	applyItems(splitter.Close())
	flushBatch()

	return result
}

func classifyProviderErr(err error) *orcherr.Error {
	if oe, ok := orcherr.As(err); ok {
		return oe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return orcherr.Wrap(orcherr.StreamTimeout, "tier wall clock exceeded", err)
	}
	if errors.Is(err, context.Canceled) {
		return orcherr.Wrap(orcherr.StreamCancelled, "stream cancelled", err)
	}
	return orcherr.Wrap(orcherr.ProviderOther, "provider stream failed", err)
}
