package snapshot

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Ref is a resolved `entity.update` target: either a bare entity id
// or a field within a single-field-typed child collection
// (id/field/child_id), in which case TargetID names the child entity whose
// props the operation actually merges into.
type Ref struct {
	TargetID string
	RawRef   string
}

// ResolveRef parses and resolves the wire-level `ref` string
// (spec §4.2: "a bare id or a path id/field/child_id which addresses nested
// children in a single-field-typed child collection"). It returns the
// entity id the operation should act on. A bare id is returned as-is,
// without checking that it exists in s. ok is false if ref is empty, has a
// segment count other than 1 or 3, or any segment of a 3-part path fails to
// resolve against s.
func (s *Snapshot) ResolveRef(ref string) (Ref, bool) {
	if ref == "" {
		return Ref{}, false
	}
	parts := strings.Split(ref, "/")
	if len(parts) == 1 {
		return Ref{TargetID: parts[0], RawRef: ref}, true
	}
	if len(parts) != 3 {
		return Ref{}, false
	}
	ownerID, field, childID := parts[0], parts[1], parts[2]
	owner, ok := s.Entities[ownerID]
	if !ok || owner.Removed {
		return Ref{}, false
	}

	// The owner's field is expected to hold an array of child entity ids
	// (the "single-field-typed child collection"). Resolve it against the
	// canonical serialization of the owner's props so the lookup goes
	// through the same representation the prompt assembler shows the model.
	raw, err := json.Marshal(owner.Props)
	if err != nil {
		return Ref{}, false
	}
	arr := gjson.GetBytes(raw, gjsonPath(field))
	if !arr.Exists() || !arr.IsArray() {
		return Ref{}, false
	}
	found := false
	for _, v := range arr.Array() {
		if v.String() == childID {
			found = true
			break
		}
	}
	if !found {
		return Ref{}, false
	}
	child, ok := s.Entities[childID]
	if !ok || child.Removed {
		return Ref{}, false
	}
	return Ref{TargetID: childID, RawRef: ref}, true
}

// gjsonPath escapes a bare field name for use as a gjson path segment. Field
// names come from model output, not trusted user input parsed as a path
// expression, so only the characters gjson treats specially need escaping.
func gjsonPath(field string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
	return r.Replace(field)
}

// ResolveSubstring resolves an entity by substring match on any first-seen
// string prop. This is a classifier-only heuristic (spec §4.1: "for
// classifier heuristics only; the reducer never matches fuzzily") — it is
// not used by the reducer and its result is never treated as authoritative.
func (s *Snapshot) ResolveSubstring(needle string) (Entity, bool) {
	if needle == "" {
		return Entity{}, false
	}
	needle = strings.ToLower(needle)
	var best Entity
	found := false
	bestSeq := -1
	for _, e := range s.Entities {
		if e.Removed {
			continue
		}
		for _, v := range e.Props {
			str, ok := v.(string)
			if !ok {
				continue
			}
			if strings.Contains(strings.ToLower(str), needle) {
				if !found || e.CreatedSeq < bestSeq {
					best, found, bestSeq = e, true, e.CreatedSeq
				}
				break
			}
		}
	}
	return best, found
}
