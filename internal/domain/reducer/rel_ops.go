package reducer

import (
	"github.com/zcancio/aide-sub002/internal/domain/snapshot"
)

func reduceRelSet(s *snapshot.Snapshot, op Operation) (*snapshot.Snapshot, Outcome) {
	if op.From == "" || op.To == "" || op.RelType == "" {
		return s, rejected(MalformedPayload)
	}
	from, ok := s.Lookup(op.From)
	if !ok {
		return s, rejected(MissingRef)
	}
	if from.Removed {
		return s, rejected(RefRemoved)
	}
	to, ok := s.Lookup(op.To)
	if !ok {
		return s, rejected(MissingRef)
	}
	if to.Removed {
		return s, rejected(RefRemoved)
	}

	out := s.Clone()

	// Cardinality is honored only on first observation of the type
	// ("first-set wins", spec §4.2).
	card := snapshot.Cardinality(op.Cardinality)
	rt, seen := out.RelationshipTypes[op.RelType]
	if !seen {
		if card == "" {
			card = snapshot.ManyToMany
		}
		out.RelationshipTypes[op.RelType] = snapshot.RelationshipType{Cardinality: card}
	} else {
		card = rt.Cardinality
		if op.Cardinality != "" && snapshot.Cardinality(op.Cardinality) != card {
			return s, rejected(CardinalityClash)
		}
	}

	switch card {
	case snapshot.ManyToOne:
		// Any other edge with the same from+type is removed atomically.
		for k, e := range out.Relationships {
			if e.From == op.From && e.Type == op.RelType {
				delete(out.Relationships, k)
			}
		}
	case snapshot.OneToOne:
		// Any edge with the same from OR the same to and type is removed.
		for k, e := range out.Relationships {
			if e.Type == op.RelType && (e.From == op.From || e.To == op.To) {
				delete(out.Relationships, k)
			}
		}
	case snapshot.ManyToMany:
		// Purely additive; no edge-removal side effect (see DESIGN.md Open
		// Question decision — spec.md names the value but never describes
		// enforcement for it).
	}

	seq := out.AllocateUpdatedSeq()
	edge := snapshot.Edge{From: op.From, To: op.To, Type: op.RelType, Seq: seq}
	out.Relationships[edge.Key()] = edge
	return out, accepted()
}

func reduceRelRemove(s *snapshot.Snapshot, op Operation) (*snapshot.Snapshot, Outcome) {
	if op.From == "" || op.To == "" || op.RelType == "" {
		return s, rejected(MalformedPayload)
	}
	from, ok := s.Lookup(op.From)
	if !ok {
		return s, rejected(MissingRef)
	}
	if from.Removed {
		return s, rejected(RefRemoved)
	}
	to, ok := s.Lookup(op.To)
	if !ok {
		return s, rejected(MissingRef)
	}
	if to.Removed {
		return s, rejected(RefRemoved)
	}

	out := s.Clone()
	edge := snapshot.Edge{From: op.From, To: op.To, Type: op.RelType}
	delete(out.Relationships, edge.Key())
	return out, accepted()
}
