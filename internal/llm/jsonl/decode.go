package jsonl

import (
	"github.com/zcancio/aide-sub002/internal/domain/reducer"
)

// decodeResult is what one expanded JSON object resolves to: exactly one
// of op, signal, or malformed (the type tag was missing or not a known
// operation or signal type, or the minimal required fields for it were
// absent or the wrong JSON kind).
type decodeResult struct {
	op        *reducer.Operation
	signal    *Signal
	malformed bool
}

// decodeExpanded builds an Operation or Signal out of a raw decoded line,
// performing only the "minimal structural shape" check the splitter owns
// (spec §4.3); the reducer re-validates and is the authority on
// MalformedPayload for operations it actually executes.
func decodeExpanded(raw map[string]any) decodeResult {
	typeStr, ok := opTypeKey(raw)
	if !ok {
		return decodeResult{malformed: true}
	}
	m := expandAbbreviations(raw)

	if knownSignalTypes[SignalType(typeStr)] {
		return decodeSignal(SignalType(typeStr), m)
	}

	opType := reducer.OpType(typeStr)
	op := reducer.Operation{Type: opType}
	op.ID, _ = m["id"].(string)
	op.Parent, _ = m["parent"].(string)
	op.Display, _ = m["display"].(string)
	op.Ref, _ = m["ref"].(string)
	op.From, _ = m["from"].(string)
	op.To, _ = m["to"].(string)
	op.RelType, _ = m["type"].(string)
	op.Cardinality, _ = m["cardinality"].(string)
	if props, ok := m["props"].(map[string]any); ok {
		op.Props = props
	}
	if children, ok := m["children"].([]any); ok {
		for _, c := range children {
			if s, ok := c.(string); ok {
				op.Children = append(op.Children, s)
			}
		}
	}
	if pos, ok := m["position"].(float64); ok {
		p := int(pos)
		op.Position = &p
	}

	if !hasMinimalShape(op) {
		return decodeResult{malformed: true}
	}
	return decodeResult{op: &op}
}

// hasMinimalShape is the splitter's shallow structural check (spec §4.3):
// it only confirms the fields a given operation type requires are present
// as the right JSON kind. It does not check referential integrity or any
// other invariant the reducer itself owns.
func hasMinimalShape(op reducer.Operation) bool {
	switch op.Type {
	case reducer.OpEntityCreate:
		return op.ID != "" && op.Parent != ""
	case reducer.OpEntityUpdate, reducer.OpEntityRemove, reducer.OpStyleEntity:
		return op.Ref != ""
	case reducer.OpEntityMove:
		return op.Ref != "" && op.Parent != ""
	case reducer.OpEntityReorder:
		return op.Ref != "" && op.Children != nil
	case reducer.OpRelSet, reducer.OpRelRemove:
		return op.From != "" && op.To != "" && op.RelType != ""
	case reducer.OpMetaSet, reducer.OpMetaAnnotate, reducer.OpStyleSet:
		return true
	default:
		return false
	}
}

func decodeSignal(t SignalType, m map[string]any) decodeResult {
	sig := Signal{Type: t}
	sig.Text, _ = m["text"].(string)
	sig.Tier, _ = m["tier"].(string)
	sig.Reason, _ = m["reason"].(string)
	sig.Extract, _ = m["extract"].(string)
	if opts, ok := m["options"].([]any); ok {
		for _, o := range opts {
			if s, ok := o.(string); ok {
				sig.Options = append(sig.Options, s)
			}
		}
	}

	switch t {
	case SignalVoice:
		if sig.Text == "" {
			return decodeResult{malformed: true}
		}
	case SignalEscalate:
		if sig.Tier == "" {
			return decodeResult{malformed: true}
		}
	case SignalClarify:
		if sig.Text == "" {
			return decodeResult{malformed: true}
		}
	}
	return decodeResult{signal: &sig}
}
