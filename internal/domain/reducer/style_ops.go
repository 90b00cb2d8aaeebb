package reducer

import (
	"github.com/zcancio/aide-sub002/internal/domain/snapshot"
)

// reduceStyleSet is a page-level style merge, best-effort beyond payload
// shape (spec §4.2: "failure conditions limited to missing ref" — style.set
// has no ref, so only MalformedPayload applies).
func reduceStyleSet(s *snapshot.Snapshot, op Operation) (*snapshot.Snapshot, Outcome) {
	if op.Props == nil {
		return s, rejected(MalformedPayload)
	}
	out := s.Clone()
	styleKey := "style"
	style, _ := out.Meta[styleKey].(map[string]any)
	if style == nil {
		style = map[string]any{}
	}
	mergeInto(style, op.Props)
	out.Meta[styleKey] = style
	return out, accepted()
}

func reduceStyleEntity(s *snapshot.Snapshot, op Operation) (*snapshot.Snapshot, Outcome) {
	if op.Ref == "" || op.Props == nil {
		return s, rejected(MalformedPayload)
	}
	target, ok := s.ResolveRef(op.Ref)
	if !ok {
		return s, rejected(MissingRef)
	}
	e, ok := s.Lookup(target.TargetID)
	if !ok {
		return s, rejected(MissingRef)
	}
	if e.Removed {
		return s, rejected(RefRemoved)
	}

	out := s.Clone()
	entity := out.Entities[target.TargetID]
	if entity.Props == nil {
		entity.Props = map[string]any{}
	}
	style, _ := entity.Props["_style"].(map[string]any)
	if style == nil {
		style = map[string]any{}
	}
	mergeInto(style, op.Props)
	entity.Props["_style"] = style
	entity.UpdatedSeq = out.AllocateUpdatedSeq()
	out.Entities[target.TargetID] = entity
	return out, accepted()
}
