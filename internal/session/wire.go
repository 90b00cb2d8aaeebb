// Package session is the delta fan-out layer (spec §4.8, §6.1, C8): it
// exposes the orchestrator's Sink interface over per-turn event streams,
// translating orchestrator calls into the wire event shapes spec §4.8
// names and delivering them to connected clients via mstream, exactly the
// role the teacher's internal/service/llm/streaming package played for
// its own turn/block events before this kernel replaced block/delta
// events with operation/signal ones.
package session

import (
	"encoding/json"

	"github.com/zcancio/aide-sub002/internal/domain/reducer"
	"github.com/zcancio/aide-sub002/internal/orcherr"
)

// wireOp is the long-form wire encoding of a reducer.Operation (spec
// §4.2/§4.3's expanded form — the splitter already abbreviation-expands
// inbound lines to this shape; outbound deltas use the same field names
// so a client's operation decoder is symmetric in both directions).
type wireOp struct {
	Type        reducer.OpType `json:"type"`
	ID          string         `json:"id,omitempty"`
	Parent      string         `json:"parent,omitempty"`
	Display     string         `json:"display,omitempty"`
	Props       map[string]any `json:"props,omitempty"`
	Ref         string         `json:"ref,omitempty"`
	Position    *int           `json:"position,omitempty"`
	Children    []string       `json:"children,omitempty"`
	From        string         `json:"from,omitempty"`
	To          string         `json:"to,omitempty"`
	RelType     string         `json:"rel_type,omitempty"`
	Cardinality string         `json:"cardinality,omitempty"`
}

func toWireOp(op reducer.Operation) wireOp {
	return wireOp{
		Type: op.Type, ID: op.ID, Parent: op.Parent, Display: op.Display,
		Props: op.Props, Ref: op.Ref, Position: op.Position, Children: op.Children,
		From: op.From, To: op.To, RelType: op.RelType, Cardinality: op.Cardinality,
	}
}

type streamStartPayload struct {
	TurnID string `json:"turn_id"`
	Tier   string `json:"tier"`
}

type deltaPayload struct {
	Op wireOp `json:"op"`
}

type deltaBatchPayload struct {
	Ops []wireOp `json:"ops"`
}

type voicePayload struct {
	Text string `json:"text"`
}

type clarifyPayload struct {
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
}

type escalationPayload struct {
	FromTier string `json:"from_tier"`
	ToTier   string `json:"to_tier"`
	Reason   string `json:"reason"`
}

type tierRetracePayload struct {
	Trace []string `json:"trace"`
}

type usagePayload struct {
	InputTokens      int `json:"input_tokens"`
	OutputTokens     int `json:"output_tokens"`
	CacheReadTokens  int `json:"cache_read_tokens"`
	CacheWriteTokens int `json:"cache_write_tokens"`
}

type streamEndPayload struct {
	TurnID  string       `json:"turn_id"`
	Trace   []string     `json:"trace"`
	Usage   usagePayload `json:"usage"`
	TTFCMs  int64        `json:"ttfc_ms"`
	TTCMs   int64        `json:"ttc_ms"`
	CostUSD float64      `json:"cost_usd"`
}

type streamErrorPayload struct {
	Kind    orcherr.Kind `json:"kind"`
	Message string       `json:"message"`
}

type streamInterruptedPayload struct {
	TurnID            string `json:"turn_id"`
	OperationsApplied int    `json:"operations_applied"`
}

// directEditAckPayload is the wire ack for an accepted or rejected direct
// edit (spec §4.8 "delta" on success, an explicit reject reason on
// failure — direct edits have no stream.error path since there is no tier
// to attribute the error to).
type directEditAckPayload struct {
	Accepted bool                  `json:"accepted"`
	Reason   reducer.RejectReason  `json:"reason,omitempty"`
	Op       *wireOp               `json:"op,omitempty"`
}

func marshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Every payload type above is a plain struct of strings, maps, and
		// slices thereof — json.Marshal failing here would mean a field
		// was added without updating this package, not a runtime
		// condition callers can recover from.
		panic("session: marshal wire payload: " + err.Error())
	}
	return b
}
