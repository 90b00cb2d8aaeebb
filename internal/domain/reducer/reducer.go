// Package reducer implements the deterministic, pure entity-tree mutation
// function at the center of the orchestration kernel: given a snapshot and
// one operation, it returns either an accepted, mutated snapshot or the
// original snapshot paired with a rejection reason. It performs no I/O and
// never panics on malformed input — a malformed operation is a Rejected
// outcome, not an error.
package reducer

import (
	"github.com/zcancio/aide-sub002/internal/domain/snapshot"
)

// Reduce is the reducer's entire public contract: reduce(snapshot, op) ->
// (snapshot', outcome). On rejection the first return value is s itself
// (the caller's working snapshot is untouched — reduce never mutates its
// input in place).
func Reduce(s *snapshot.Snapshot, op Operation) (*snapshot.Snapshot, Outcome) {
	if !knownOpTypes[op.Type] {
		return s, rejected(UnknownType)
	}

	switch op.Type {
	case OpMetaSet:
		return reduceMetaSet(s, op)
	case OpMetaAnnotate:
		return reduceMetaAnnotate(s, op)
	case OpEntityCreate:
		return reduceEntityCreate(s, op)
	case OpEntityUpdate:
		return reduceEntityUpdate(s, op)
	case OpEntityRemove:
		return reduceEntityRemove(s, op)
	case OpEntityMove:
		return reduceEntityMove(s, op)
	case OpEntityReorder:
		return reduceEntityReorder(s, op)
	case OpRelSet:
		return reduceRelSet(s, op)
	case OpRelRemove:
		return reduceRelRemove(s, op)
	case OpStyleSet:
		return reduceStyleSet(s, op)
	case OpStyleEntity:
		return reduceStyleEntity(s, op)
	default:
		// Unreachable given knownOpTypes, kept to satisfy totality.
		return s, rejected(UnknownType)
	}
}

func reduceMetaSet(s *snapshot.Snapshot, op Operation) (*snapshot.Snapshot, Outcome) {
	if op.Props == nil {
		return s, rejected(MalformedPayload)
	}
	out := s.Clone()
	mergeInto(out.Meta, op.Props)
	return out, accepted()
}

func reduceMetaAnnotate(s *snapshot.Snapshot, op Operation) (*snapshot.Snapshot, Outcome) {
	if op.Props == nil {
		return s, rejected(MalformedPayload)
	}
	out := s.Clone()
	mergeInto(out.Meta, op.Props)
	return out, accepted()
}

func mergeInto(dst map[string]any, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}
