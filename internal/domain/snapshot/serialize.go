package snapshot

import (
	"fmt"
	"sort"

	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// CanonicalJSON serializes s with keys in a fixed order so that two
// snapshots with identical content produce byte-identical JSON — the
// property the prompt assembler's cache-prefix stability depends on
// (spec §4.4, resolved in SPEC_FULL.md §3). Entities are written in
// _created_seq order — CreatedSeq is assigned once at creation and never
// rewritten, so this order is stable regardless of any sibling reordering;
// each entity's keys are fixed as id, parent, display, props, _removed,
// _created_seq, _updated_seq, _order_seq; props keys are sorted lexically.
//
// sjson.SetRawBytes is used for every Set so the top-level and per-entity
// key order follows call order rather than Go map iteration order.
func (s *Snapshot) CanonicalJSON() ([]byte, error) {
	doc := []byte(`{}`)
	var err error

	metaJSON, err := canonicalObject(s.Meta)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode meta: %w", err)
	}
	doc, err = sjson.SetRawBytes(doc, "meta", metaJSON)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(s.Entities))
	for id := range s.Entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.Entities[ids[i]].CreatedSeq < s.Entities[ids[j]].CreatedSeq
	})

	doc, err = sjson.SetRawBytes(doc, "entities", []byte(`{}`))
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		entJSON, err := canonicalEntity(s.Entities[id])
		if err != nil {
			return nil, fmt.Errorf("snapshot: encode entity %q: %w", id, err)
		}
		doc, err = sjson.SetRawBytes(doc, "entities."+sjsonEscape(id), entJSON)
		if err != nil {
			return nil, err
		}
	}

	doc, err = sjson.SetRawBytes(doc, "relationships", []byte(`[]`))
	if err != nil {
		return nil, err
	}
	edges := s.Edges("")
	for i, e := range edges {
		edgeJSON, err := canonicalEdge(e)
		if err != nil {
			return nil, fmt.Errorf("snapshot: encode edge %d: %w", i, err)
		}
		doc, err = sjson.SetRawBytes(doc, fmt.Sprintf("relationships.%d", i), edgeJSON)
		if err != nil {
			return nil, err
		}
	}

	types := make([]string, 0, len(s.RelationshipTypes))
	for t := range s.RelationshipTypes {
		types = append(types, t)
	}
	sort.Strings(types)
	doc, err = sjson.SetRawBytes(doc, "relationship_types", []byte(`{}`))
	if err != nil {
		return nil, err
	}
	for _, t := range types {
		doc, err = sjson.SetBytes(doc, "relationship_types."+sjsonEscape(t)+".cardinality", string(s.RelationshipTypes[t].Cardinality))
		if err != nil {
			return nil, err
		}
	}

	return doc, nil
}

// DebugJSON returns a human-readable, indented rendering of the canonical
// serialization, used by the ambient logger when dumping a snapshot at
// debug level.
func (s *Snapshot) DebugJSON() (string, error) {
	raw, err := s.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return string(pretty.Pretty(raw)), nil
}

func canonicalEntity(e Entity) ([]byte, error) {
	propsJSON, err := canonicalObject(e.Props)
	if err != nil {
		return nil, err
	}
	doc := []byte(`{}`)
	doc, err = sjson.SetBytes(doc, "id", e.ID)
	if err != nil {
		return nil, err
	}
	doc, err = sjson.SetBytes(doc, "parent", e.Parent)
	if err != nil {
		return nil, err
	}
	doc, err = sjson.SetBytes(doc, "display", string(e.Display))
	if err != nil {
		return nil, err
	}
	doc, err = sjson.SetRawBytes(doc, "props", propsJSON)
	if err != nil {
		return nil, err
	}
	doc, err = sjson.SetBytes(doc, "_removed", e.Removed)
	if err != nil {
		return nil, err
	}
	doc, err = sjson.SetBytes(doc, "_created_seq", e.CreatedSeq)
	if err != nil {
		return nil, err
	}
	doc, err = sjson.SetBytes(doc, "_updated_seq", e.UpdatedSeq)
	if err != nil {
		return nil, err
	}
	doc, err = sjson.SetBytes(doc, "_order_seq", e.OrderSeq)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func canonicalEdge(e Edge) ([]byte, error) {
	doc := []byte(`{}`)
	var err error
	doc, err = sjson.SetBytes(doc, "from", e.From)
	if err != nil {
		return nil, err
	}
	doc, err = sjson.SetBytes(doc, "to", e.To)
	if err != nil {
		return nil, err
	}
	doc, err = sjson.SetBytes(doc, "type", e.Type)
	if err != nil {
		return nil, err
	}
	dataJSON, err := canonicalObject(e.Data)
	if err != nil {
		return nil, err
	}
	doc, err = sjson.SetRawBytes(doc, "data", dataJSON)
	if err != nil {
		return nil, err
	}
	doc, err = sjson.SetBytes(doc, "seq", e.Seq)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// canonicalObject marshals a string-keyed map with lexically sorted keys.
func canonicalObject(m map[string]any) ([]byte, error) {
	doc := []byte(`{}`)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var err error
	for _, k := range keys {
		doc, err = sjson.SetBytes(doc, sjsonEscape(k), m[k])
		if err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// sjsonEscape escapes a raw key for use as an sjson path segment.
func sjsonEscape(key string) string {
	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c == '.' || c == '*' || c == '?' || c == '|' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return string(out)
}
