// Package telemetry records the one append-only record per turn (and the
// lighter direct-edit record) spec §4.9 requires: fire-and-forget on the
// hot path, but never dropped on normal completion. Grounded on the
// teacher's turn_executor.go's updateTurnMetadata (what gets captured at
// completion, generalized to the fuller field list here) and its
// broadcast's best-effort-buffered-channel shape, except a terminal
// record is enqueued with a blocking send rather than a non-blocking one
// so "MUST NOT be dropped on normal completion" actually holds.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/zcancio/aide-sub002/internal/domain/reducer"
	"github.com/zcancio/aide-sub002/internal/orcherr"
)

// TierTrace is one pass's tier and usage, in pass order (spec §4.9
// "tier trace").
type TierTrace struct {
	Tier             string
	Model            string
	InputTokens      int
	OutputTokens     int
	CacheReadTokens  int
	CacheWriteTokens int
}

// TurnRecord is the one record appended per turn (spec §4.9).
type TurnRecord struct {
	TurnID               string
	AideID               string
	UserID               string
	Passes               []TierTrace
	InitialTier          string
	InitialConfidence    float64
	EscalationReason     string // empty if no escalation occurred
	OperationsAccepted   int
	OperationsRejected   map[reducer.RejectReason]int
	TTFCMillis           int64
	TTCMillis            int64
	CostFractionalUnits  float64
	ErrorKind            orcherr.Kind // empty if the turn completed without error
	At                   time.Time
}

// DirectEditRecord is the lighter record appended per direct edit
// (spec §4.9).
type DirectEditRecord struct {
	AideID        string
	EditLatencyMs int64
	At            time.Time
}

// Recorder is the telemetry sink the orchestrator depends on.
type Recorder interface {
	RecordTurn(ctx context.Context, r TurnRecord)
	RecordDirectEdit(ctx context.Context, r DirectEditRecord)
}

// SlogRecorder is an slog-backed Recorder: turns are enqueued onto a
// buffered channel drained by a background goroutine, except enqueuing
// blocks (rather than dropping) so a slow drain never silently loses a
// completed turn's record — the one place this kernel intentionally
// trades "never blocks" for "never drops" per spec §4.9.
type SlogRecorder struct {
	logger *slog.Logger
	queue  chan func()
}

func NewSlogRecorder(logger *slog.Logger, queueDepth int) *SlogRecorder {
	if queueDepth <= 0 {
		queueDepth = 256
	}
	r := &SlogRecorder{logger: logger, queue: make(chan func(), queueDepth)}
	go r.drain()
	return r
}

func (r *SlogRecorder) drain() {
	for fn := range r.queue {
		fn()
	}
}

// Close stops accepting new records and waits is the caller's
// responsibility; Close only closes the queue so the drain goroutine
// exits once everything already enqueued has been written.
func (r *SlogRecorder) Close() {
	close(r.queue)
}

func (r *SlogRecorder) RecordTurn(ctx context.Context, rec TurnRecord) {
	r.queue <- func() {
		attrs := []any{
			"turn_id", rec.TurnID,
			"aide_id", rec.AideID,
			"user_id", rec.UserID,
			"initial_tier", rec.InitialTier,
			"initial_confidence", rec.InitialConfidence,
			"passes", len(rec.Passes),
			"operations_accepted", rec.OperationsAccepted,
			"ttfc_ms", rec.TTFCMillis,
			"ttc_ms", rec.TTCMillis,
			"cost_fractional_units", rec.CostFractionalUnits,
			"at", rec.At,
		}
		if rec.EscalationReason != "" {
			attrs = append(attrs, "escalation_reason", rec.EscalationReason)
		}
		if rec.ErrorKind != "" {
			attrs = append(attrs, "error_kind", string(rec.ErrorKind))
		}
		for reason, count := range rec.OperationsRejected {
			attrs = append(attrs, "rejected_"+string(reason), count)
		}
		r.logger.LogAttrs(ctx, slog.LevelInfo, "turn", toSlogAttrs(attrs)...)
	}
}

func (r *SlogRecorder) RecordDirectEdit(ctx context.Context, rec DirectEditRecord) {
	r.queue <- func() {
		r.logger.LogAttrs(ctx, slog.LevelInfo, "direct_edit", slog.String("event_type", "direct_edit"),
			slog.String("aide_id", rec.AideID),
			slog.Int64("edit_latency_ms", rec.EditLatencyMs),
			slog.Time("at", rec.At))
	}
}

func toSlogAttrs(kv []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		attrs = append(attrs, slog.Any(key, kv[i+1]))
	}
	return attrs
}
