package snapshot

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Parse reconstructs a Snapshot from the canonical JSON shape documented on
// CanonicalJSON (and spec §6.2: `{meta, entities, relationships,
// relationship_types}`). Parse then CanonicalJSON round-trips to an equal
// snapshot, modulo the monotonic counters which Parse recovers from the
// maximum _created_seq / _updated_seq observed.
func Parse(raw []byte) (*Snapshot, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("snapshot: invalid JSON")
	}
	root := gjson.ParseBytes(raw)
	s := New()

	root.Get("meta").ForEach(func(k, v gjson.Result) bool {
		s.Meta[k.String()] = v.Value()
		return true
	})

	root.Get("entities").ForEach(func(id, v gjson.Result) bool {
		e := Entity{
			ID:         v.Get("id").String(),
			Parent:     v.Get("parent").String(),
			Display:    Display(v.Get("display").String()),
			Removed:    v.Get("_removed").Bool(),
			CreatedSeq: int(v.Get("_created_seq").Int()),
			UpdatedSeq: int(v.Get("_updated_seq").Int()),
		}
		if orderSeq := v.Get("_order_seq"); orderSeq.Exists() {
			e.OrderSeq = int(orderSeq.Int())
		} else {
			e.OrderSeq = e.CreatedSeq
		}
		if e.ID == "" {
			e.ID = id.String()
		}
		props, ok := v.Get("props").Value().(map[string]any)
		if ok {
			e.Props = props
		}
		s.Entities[e.ID] = e
		if e.CreatedSeq > s.creationSeq {
			s.creationSeq = e.CreatedSeq
		}
		if e.UpdatedSeq > s.updateSeq {
			s.updateSeq = e.UpdatedSeq
		}
		return true
	})

	root.Get("relationships").ForEach(func(_, v gjson.Result) bool {
		e := Edge{
			From: v.Get("from").String(),
			To:   v.Get("to").String(),
			Type: v.Get("type").String(),
			Seq:  int(v.Get("seq").Int()),
		}
		if data, ok := v.Get("data").Value().(map[string]any); ok && len(data) > 0 {
			e.Data = data
		}
		s.Relationships[e.Key()] = e
		return true
	})

	root.Get("relationship_types").ForEach(func(t, v gjson.Result) bool {
		s.RelationshipTypes[t.String()] = RelationshipType{
			Cardinality: Cardinality(v.Get("cardinality").String()),
		}
		return true
	})

	return s, nil
}
