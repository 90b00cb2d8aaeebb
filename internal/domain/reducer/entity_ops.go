package reducer

import (
	"github.com/zcancio/aide-sub002/internal/domain/snapshot"
)

func reduceEntityCreate(s *snapshot.Snapshot, op Operation) (*snapshot.Snapshot, Outcome) {
	if op.ID == "" || op.Parent == "" || !snapshot.ValidEntityID(op.ID) {
		return s, rejected(MalformedPayload)
	}
	if op.Parent != "root" && !s.Exists(op.Parent) {
		return s, rejected(MissingParent)
	}
	// Tombstoned ids stay in the map and are never reusable.
	if _, ok := s.Lookup(op.ID); ok {
		return s, rejected(DuplicateId)
	}
	if op.Parent == "root" {
		if _, ok := s.Root(); ok {
			return s, rejected(InvariantViolation)
		}
	}

	out := s.Clone()
	seq := out.AllocateCreatedSeq()
	props := op.Props
	if props == nil {
		props = map[string]any{}
	}
	out.Entities[op.ID] = snapshot.Entity{
		ID:         op.ID,
		Parent:     op.Parent,
		Display:    snapshot.Display(op.Display),
		Props:      props,
		CreatedSeq: seq,
		UpdatedSeq: seq,
		OrderSeq:   seq,
	}
	return out, accepted()
}

func reduceEntityUpdate(s *snapshot.Snapshot, op Operation) (*snapshot.Snapshot, Outcome) {
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
	mergeInto(entity.Props, op.Props)
	entity.UpdatedSeq = out.AllocateUpdatedSeq()
	out.Entities[target.TargetID] = entity
	return out, accepted()
}

func reduceEntityRemove(s *snapshot.Snapshot, op Operation) (*snapshot.Snapshot, Outcome) {
	if op.Ref == "" {
		return s, rejected(MalformedPayload)
	}
	target, ok := s.ResolveRef(op.Ref)
	if !ok {
		return s, rejected(MissingRef)
	}
	root, ok := s.Lookup(target.TargetID)
	if !ok {
		return s, rejected(MissingRef)
	}
	if root.Removed {
		return s, rejected(RefRemoved)
	}

	out := s.Clone()
	seq := out.AllocateUpdatedSeq()
	// Soft-delete the subtree: the target entity and every (possibly
	// indirect) descendant inherits the tombstone. Relationships are left in
	// place in the stored map so that undo can restore them;
	// Snapshot.LiveEdges filters out the ones touching removed entities.
	var cascade func(id string)
	cascade = func(id string) {
		e := out.Entities[id]
		if e.Removed {
			return
		}
		e.Removed = true
		e.UpdatedSeq = seq
		out.Entities[id] = e
		for _, child := range out.AllChildren(id) {
			cascade(child.ID)
		}
	}
	cascade(target.TargetID)
	return out, accepted()
}

func reduceEntityMove(s *snapshot.Snapshot, op Operation) (*snapshot.Snapshot, Outcome) {
	if op.Ref == "" || op.Parent == "" {
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
	if op.Parent != "root" {
		newParent, ok := s.Lookup(op.Parent)
		if !ok {
			return s, rejected(MissingParent)
		}
		if newParent.Removed {
			return s, rejected(RefRemoved)
		}
	}
	if op.Parent == target.TargetID || s.IsDescendant(target.TargetID, op.Parent) {
		return s, rejected(CyclicMove)
	}
	if op.Parent == "root" {
		if root, ok := s.Root(); ok && root.ID != target.TargetID {
			return s, rejected(InvariantViolation)
		}
	}

	out := s.Clone()
	entity := out.Entities[target.TargetID]
	entity.Parent = op.Parent
	entity.UpdatedSeq = out.AllocateUpdatedSeq()
	out.Entities[target.TargetID] = entity
	// The moved entity is placed among the destination siblings by rewriting
	// OrderSeq: at the requested position, clamped to [0, len], or appended
	// to the end when no position is given.
	// CreatedSeq is never touched here: it is the tree-wide key CanonicalJSON
	// sorts by, and reusing its small per-sibling integers would collide with
	// other entities' CreatedSeq values elsewhere in the tree.
	siblings := out.Children(op.Parent)
	position := len(siblings)
	if op.Position != nil {
		position = *op.Position
	}
	insertAt(siblings, entity, position, out)
	return out, accepted()
}

// insertAt recomputes OrderSeq for a freshly-moved entity and its new
// siblings so that iteration order reflects the requested position. Only
// the relative order among this sibling group changes; the group's OrderSeq
// values are renumbered 0..n-1 in the new order.
func insertAt(siblingsBeforeMove []snapshot.Entity, moved snapshot.Entity, position int, out *snapshot.Snapshot) {
	// Remove the moved entity from its old position in the slice if present.
	filtered := siblingsBeforeMove[:0:0]
	for _, e := range siblingsBeforeMove {
		if e.ID != moved.ID {
			filtered = append(filtered, e)
		}
	}
	if position < 0 {
		position = 0
	}
	if position > len(filtered) {
		position = len(filtered)
	}
	ordered := make([]snapshot.Entity, 0, len(filtered)+1)
	ordered = append(ordered, filtered[:position]...)
	ordered = append(ordered, moved)
	ordered = append(ordered, filtered[position:]...)
	for i, e := range ordered {
		e.OrderSeq = i
		out.Entities[e.ID] = e
	}
}

func reduceEntityReorder(s *snapshot.Snapshot, op Operation) (*snapshot.Snapshot, Outcome) {
	if op.Ref == "" || op.Children == nil {
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

	current := s.Children(target.TargetID)
	currentSet := make(map[string]bool, len(current))
	for _, e := range current {
		currentSet[e.ID] = true
	}
	if len(op.Children) != len(current) {
		return s, rejected(ReorderMismatch)
	}
	seen := make(map[string]bool, len(op.Children))
	for _, id := range op.Children {
		if !currentSet[id] || seen[id] {
			return s, rejected(ReorderMismatch)
		}
		seen[id] = true
	}

	out := s.Clone()
	for i, id := range op.Children {
		e := out.Entities[id]
		e.OrderSeq = i
		out.Entities[id] = e
	}
	return out, accepted()
}
