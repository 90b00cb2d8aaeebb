package session

import (
	mstream "github.com/haowjy/meridian-stream-go"

	"github.com/zcancio/aide-sub002/internal/domain/reducer"
	"github.com/zcancio/aide-sub002/internal/orcherr"
	"github.com/zcancio/aide-sub002/internal/orchestrator"
)

// streamSink implements orchestrator.Sink over one turn's mstream send
// func, converting each call into one named mstream.Event (spec §4.8's
// wire event table). It is the only place an Operation's Go-side shape
// is translated to its wire encoding.
type streamSink struct {
	send func(mstream.Event)
}

func newStreamSink(send func(mstream.Event)) *streamSink {
	return &streamSink{send: send}
}

func (s *streamSink) emit(eventType string, payload any) {
	s.send(mstream.NewEvent(marshal(payload)).WithType(eventType))
}

func (s *streamSink) StreamStart(turnID, tier string) {
	s.emit("stream.start", streamStartPayload{TurnID: turnID, Tier: tier})
}

func (s *streamSink) Delta(op reducer.Operation) {
	s.emit("delta", deltaPayload{Op: toWireOp(op)})
}

func (s *streamSink) DeltaBatch(ops []reducer.Operation) {
	wireOps := make([]wireOp, len(ops))
	for i, op := range ops {
		wireOps[i] = toWireOp(op)
	}
	s.emit("delta.batch", deltaBatchPayload{Ops: wireOps})
}

func (s *streamSink) Voice(text string) {
	s.emit("voice", voicePayload{Text: text})
}

func (s *streamSink) Clarify(text string, options []string) {
	s.emit("clarify", clarifyPayload{Text: text, Options: options})
}

func (s *streamSink) Escalation(fromTier, toTier, reason string) {
	s.emit("escalation", escalationPayload{FromTier: fromTier, ToTier: toTier, Reason: reason})
}

func (s *streamSink) TierRetrace(trace []string) {
	s.emit("tier_retrace", tierRetracePayload{Trace: trace})
}

func (s *streamSink) StreamEnd(turnID string, trace []string, usage orchestrator.Usage, ttfcMs, ttcMs int64, costUSD float64) {
	s.emit("stream.end", streamEndPayload{
		TurnID: turnID, Trace: trace,
		Usage: usagePayload{
			InputTokens: usage.InputTokens, OutputTokens: usage.OutputTokens,
			CacheReadTokens: usage.CacheReadTokens, CacheWriteTokens: usage.CacheWriteTokens,
		},
		TTFCMs: ttfcMs, TTCMs: ttcMs, CostUSD: costUSD,
	})
}

func (s *streamSink) StreamError(kind orcherr.Kind, message string) {
	s.emit("stream.error", streamErrorPayload{Kind: kind, Message: message})
}

func (s *streamSink) StreamInterrupted(turnID string, operationsApplied int) {
	s.emit("stream.interrupted", streamInterruptedPayload{TurnID: turnID, OperationsApplied: operationsApplied})
}
