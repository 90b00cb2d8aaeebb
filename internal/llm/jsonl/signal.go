package jsonl

// SignalType is the closed set of non-mutating instruction lines the
// orchestrator consumes directly rather than passing through the reducer
// (spec §4.2 "Signals").
type SignalType string

const (
	SignalVoice      SignalType = "voice"
	SignalEscalate   SignalType = "escalate"
	SignalClarify    SignalType = "clarify"
	SignalBatchStart SignalType = "batch.start"
	SignalBatchEnd   SignalType = "batch.end"
)

var knownSignalTypes = map[SignalType]bool{
	SignalVoice: true, SignalEscalate: true, SignalClarify: true,
	SignalBatchStart: true, SignalBatchEnd: true,
}

// Signal carries the union of fields any signal type may populate; the
// orchestrator reads only the fields relevant to Type.
type Signal struct {
	Type SignalType

	Text    string   // voice, clarify
	Options []string // clarify

	Tier    string // escalate
	Reason  string // escalate
	Extract string // escalate
}
