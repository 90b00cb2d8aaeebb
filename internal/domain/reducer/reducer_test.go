package reducer

import (
	"testing"

	"github.com/zcancio/aide-sub002/internal/domain/snapshot"
)

func intp(i int) *int { return &i }

func TestEntityCreateRequiresExistingParent(t *testing.T) {
	s := snapshot.New()
	_, outcome := Reduce(s, Operation{Type: OpEntityCreate, ID: "page", Parent: "missing"})
	if outcome.Accepted || outcome.Reason != MissingParent {
		t.Fatalf("expected MissingParent, got %+v", outcome)
	}
}

func TestEntityCreateRoot(t *testing.T) {
	s := snapshot.New()
	s2, outcome := Reduce(s, Operation{Type: OpEntityCreate, ID: "page", Parent: "root", Display: "page"})
	if !outcome.Accepted {
		t.Fatalf("expected Accepted, got %+v", outcome)
	}
	if _, ok := s2.Root(); !ok {
		t.Fatal("expected a root entity after creating page at root")
	}
	if _, ok := s.Root(); ok {
		t.Fatal("reduce must not mutate the input snapshot")
	}
}

func TestSingleRootEnforced(t *testing.T) {
	s := snapshot.New()
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "page", Parent: "root"})
	_, outcome := Reduce(s, Operation{Type: OpEntityCreate, ID: "page2", Parent: "root"})
	if outcome.Accepted || outcome.Reason != InvariantViolation {
		t.Fatalf("expected InvariantViolation for second root, got %+v", outcome)
	}
}

func TestDuplicateIdRejected(t *testing.T) {
	s := snapshot.New()
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "page", Parent: "root"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "a", Parent: "page"})
	_, outcome := Reduce(s, Operation{Type: OpEntityCreate, ID: "a", Parent: "page"})
	if outcome.Accepted || outcome.Reason != DuplicateId {
		t.Fatalf("expected DuplicateId, got %+v", outcome)
	}
}

func TestTombstonesNotReusable(t *testing.T) {
	s := snapshot.New()
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "page", Parent: "root"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "a", Parent: "page"})
	s, _ = Reduce(s, Operation{Type: OpEntityRemove, Ref: "a"})
	_, outcome := Reduce(s, Operation{Type: OpEntityCreate, ID: "a", Parent: "page"})
	if outcome.Accepted || outcome.Reason != DuplicateId {
		t.Fatalf("expected DuplicateId re-creating a removed id, got %+v", outcome)
	}
}

func TestRemoveCascadesToDescendants(t *testing.T) {
	s := snapshot.New()
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "page", Parent: "root"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "section", Parent: "page"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "card", Parent: "section"})
	s, outcome := Reduce(s, Operation{Type: OpEntityRemove, Ref: "section"})
	if !outcome.Accepted {
		t.Fatalf("expected Accepted, got %+v", outcome)
	}
	card, _ := s.Lookup("card")
	if !card.Removed {
		t.Fatal("expected descendant to inherit tombstone")
	}
}

func TestNoTombstoneResurrection(t *testing.T) {
	s := snapshot.New()
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "page", Parent: "root"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "a", Parent: "page"})
	s, _ = Reduce(s, Operation{Type: OpEntityRemove, Ref: "a"})
	// An update naming "a" must be rejected rather than resurrect it.
	_, outcome := Reduce(s, Operation{Type: OpEntityUpdate, Ref: "a", Props: map[string]any{"x": 1.0}})
	if outcome.Accepted {
		t.Fatal("update on a removed entity must not be accepted")
	}
}

func TestCyclicMoveRejected(t *testing.T) {
	s := snapshot.New()
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "page", Parent: "root"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "section", Parent: "page"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "card", Parent: "section"})
	_, outcome := Reduce(s, Operation{Type: OpEntityMove, Ref: "section", Parent: "card"})
	if outcome.Accepted || outcome.Reason != CyclicMove {
		t.Fatalf("expected CyclicMove, got %+v", outcome)
	}
}

func TestReorderMismatchOnMissingChild(t *testing.T) {
	s := snapshot.New()
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "page", Parent: "root"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "a", Parent: "page"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "b", Parent: "page"})
	_, outcome := Reduce(s, Operation{Type: OpEntityReorder, Ref: "page", Children: []string{"a"}})
	if outcome.Accepted || outcome.Reason != ReorderMismatch {
		t.Fatalf("expected ReorderMismatch, got %+v", outcome)
	}
}

func TestReorderAccepted(t *testing.T) {
	s := snapshot.New()
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "page", Parent: "root"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "a", Parent: "page"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "b", Parent: "page"})
	s, outcome := Reduce(s, Operation{Type: OpEntityReorder, Ref: "page", Children: []string{"b", "a"}})
	if !outcome.Accepted {
		t.Fatalf("expected Accepted, got %+v", outcome)
	}
	children := s.Children("page")
	if children[0].ID != "b" || children[1].ID != "a" {
		t.Fatalf("expected reordered [b a], got [%s %s]", children[0].ID, children[1].ID)
	}

	// CreatedSeq is the tree-wide key CanonicalJSON sorts by and must survive
	// a reorder untouched; only OrderSeq (sibling position) may change.
	a, _ := s.Lookup("a")
	b, _ := s.Lookup("b")
	page, _ := s.Lookup("page")
	if a.CreatedSeq == b.CreatedSeq || a.CreatedSeq == page.CreatedSeq || b.CreatedSeq == page.CreatedSeq {
		t.Fatalf("expected CreatedSeq to remain distinct after reorder, got page=%d a=%d b=%d", page.CreatedSeq, a.CreatedSeq, b.CreatedSeq)
	}
}

func TestManyToOneReplacesPriorEdge(t *testing.T) {
	s := snapshot.New()
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "page", Parent: "root"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "a", Parent: "page"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "b", Parent: "page"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "c", Parent: "page"})
	s, _ = Reduce(s, Operation{Type: OpRelSet, From: "a", To: "b", RelType: "assigned_to", Cardinality: "many_to_one"})
	s, outcome := Reduce(s, Operation{Type: OpRelSet, From: "a", To: "c", RelType: "assigned_to"})
	if !outcome.Accepted {
		t.Fatalf("expected Accepted, got %+v", outcome)
	}
	edges := s.EdgesFrom("a")
	if len(edges) != 1 || edges[0].To != "c" {
		t.Fatalf("expected exactly one edge a->c, got %+v", edges)
	}
}

func TestCardinalityClashOnSecondObservation(t *testing.T) {
	s := snapshot.New()
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "page", Parent: "root"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "a", Parent: "page"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "b", Parent: "page"})
	s, _ = Reduce(s, Operation{Type: OpRelSet, From: "a", To: "b", RelType: "assigned_to", Cardinality: "many_to_one"})
	_, outcome := Reduce(s, Operation{Type: OpRelSet, From: "a", To: "b", RelType: "assigned_to", Cardinality: "one_to_one"})
	if outcome.Accepted || outcome.Reason != CardinalityClash {
		t.Fatalf("expected CardinalityClash, got %+v", outcome)
	}
}

func TestManyToManyIsAdditive(t *testing.T) {
	s := snapshot.New()
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "page", Parent: "root"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "a", Parent: "page"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "b", Parent: "page"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "c", Parent: "page"})
	s, _ = Reduce(s, Operation{Type: OpRelSet, From: "a", To: "b", RelType: "tagged", Cardinality: "many_to_many"})
	s, outcome := Reduce(s, Operation{Type: OpRelSet, From: "a", To: "c", RelType: "tagged"})
	if !outcome.Accepted {
		t.Fatalf("expected Accepted, got %+v", outcome)
	}
	edges := s.EdgesFrom("a")
	if len(edges) != 2 {
		t.Fatalf("expected both many_to_many edges to survive, got %+v", edges)
	}
}

func TestRelRemoveAccepted(t *testing.T) {
	s := snapshot.New()
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "page", Parent: "root"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "a", Parent: "page"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "b", Parent: "page"})
	s, _ = Reduce(s, Operation{Type: OpRelSet, From: "a", To: "b", RelType: "tagged", Cardinality: "many_to_many"})
	s, outcome := Reduce(s, Operation{Type: OpRelRemove, From: "a", To: "b", RelType: "tagged"})
	if !outcome.Accepted {
		t.Fatalf("expected Accepted, got %+v", outcome)
	}
	if edges := s.EdgesFrom("a"); len(edges) != 0 {
		t.Fatalf("expected the edge to be gone, got %+v", edges)
	}
}

func TestRelRemoveRejectsMissingRef(t *testing.T) {
	s := snapshot.New()
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "page", Parent: "root"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "a", Parent: "page"})
	_, outcome := Reduce(s, Operation{Type: OpRelRemove, From: "a", To: "nope", RelType: "tagged"})
	if outcome.Accepted || outcome.Reason != MissingRef {
		t.Fatalf("expected MissingRef, got %+v", outcome)
	}
}

func TestRelRemoveRejectsRemovedRef(t *testing.T) {
	s := snapshot.New()
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "page", Parent: "root"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "a", Parent: "page"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "b", Parent: "page"})
	s, _ = Reduce(s, Operation{Type: OpRelSet, From: "a", To: "b", RelType: "tagged", Cardinality: "many_to_many"})
	s, _ = Reduce(s, Operation{Type: OpEntityRemove, Ref: "b"})
	_, outcome := Reduce(s, Operation{Type: OpRelRemove, From: "a", To: "b", RelType: "tagged"})
	if outcome.Accepted || outcome.Reason != RefRemoved {
		t.Fatalf("expected RefRemoved, got %+v", outcome)
	}
}

func TestUnknownTypeRejected(t *testing.T) {
	_, outcome := Reduce(snapshot.New(), Operation{Type: "bogus.op"})
	if outcome.Accepted || outcome.Reason != UnknownType {
		t.Fatalf("expected UnknownType, got %+v", outcome)
	}
}

func TestNoOpUpdateIsIdempotent(t *testing.T) {
	s := snapshot.New()
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "page", Parent: "root"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "a", Parent: "page", Display: "card", Props: map[string]any{"rsvp": "yes"}})

	once, outcome := Reduce(s, Operation{Type: OpEntityUpdate, Ref: "a", Props: map[string]any{"rsvp": "yes"}})
	if !outcome.Accepted {
		t.Fatalf("expected Accepted, got %+v", outcome)
	}
	twice, outcome := Reduce(once, Operation{Type: OpEntityUpdate, Ref: "a", Props: map[string]any{"rsvp": "yes"}})
	if !outcome.Accepted {
		t.Fatalf("expected Accepted, got %+v", outcome)
	}
	a1, _ := once.Lookup("a")
	a2, _ := twice.Lookup("a")
	if a1.Props["rsvp"] != a2.Props["rsvp"] {
		t.Fatal("applying a no-op update twice must equal applying it once")
	}
}

func TestReducerPurityAcrossRepeatedCalls(t *testing.T) {
	s := snapshot.New()
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "page", Parent: "root"})
	op := Operation{Type: OpEntityUpdate, Ref: "page", Props: map[string]any{"title": "X"}}

	s1, o1 := Reduce(s, op)
	s2, o2 := Reduce(s, op)
	if o1 != o2 {
		t.Fatalf("reduce must be deterministic: %+v vs %+v", o1, o2)
	}
	raw1, _ := s1.CanonicalJSON()
	raw2, _ := s2.CanonicalJSON()
	if string(raw1) != string(raw2) {
		t.Fatal("reduce on the same (snapshot, op) must produce byte-identical results")
	}
}

func TestMoveWithPosition(t *testing.T) {
	s := snapshot.New()
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "page", Parent: "root"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "a", Parent: "page"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "b", Parent: "page"})
	s, _ = Reduce(s, Operation{Type: OpEntityCreate, ID: "other", Parent: "page"})
	s, outcome := Reduce(s, Operation{Type: OpEntityMove, Ref: "other", Parent: "page", Position: intp(0)})
	if !outcome.Accepted {
		t.Fatalf("expected Accepted, got %+v", outcome)
	}
	children := s.Children("page")
	if children[0].ID != "other" {
		t.Fatalf("expected other moved to position 0, got %s", children[0].ID)
	}
}
