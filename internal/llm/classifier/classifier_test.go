package classifier

import (
	"testing"

	"github.com/zcancio/aide-sub002/internal/domain/snapshot"
)

func withEntity(s *snapshot.Snapshot, e snapshot.Entity) {
	s.Entities[e.ID] = e
}

func TestClassifyQuestionGoesToAnalyst(t *testing.T) {
	snap := snapshot.New()
	withEntity(snap, snapshot.Entity{ID: "page", Parent: "root"})

	result := Classify("How many sections does this page have?", false, snap)
	if result.Tier != Analyst {
		t.Fatalf("expected Analyst, got %s", result.Tier)
	}
}

func TestClassifyEmptySnapshotGoesToStructural(t *testing.T) {
	snap := snapshot.New()

	result := Classify("Let's build a travel itinerary.", false, snap)
	if result.Tier != Structural {
		t.Fatalf("expected Structural for a first turn, got %s", result.Tier)
	}
}

func TestClassifyStructuralKeyword(t *testing.T) {
	snap := snapshot.New()
	withEntity(snap, snapshot.Entity{ID: "page", Parent: "root"})

	result := Classify("Please add a section for budget.", false, snap)
	if result.Tier != Structural {
		t.Fatalf("expected Structural for a structural keyword, got %s", result.Tier)
	}
}

func TestClassifyImageAttachedGoesToStructural(t *testing.T) {
	snap := snapshot.New()
	withEntity(snap, snapshot.Entity{ID: "page", Parent: "root"})

	result := Classify("Here's a photo of the venue.", true, snap)
	if result.Tier != Structural {
		t.Fatalf("expected Structural for an attached image, got %s", result.Tier)
	}
}

func TestClassifyPlainEditGoesToFast(t *testing.T) {
	snap := snapshot.New()
	withEntity(snap, snapshot.Entity{ID: "page", Parent: "root"})
	withEntity(snap, snapshot.Entity{ID: "sec_intro", Parent: "page"})

	result := Classify("Change the title to Spring Trip.", false, snap)
	if result.Tier != Fast {
		t.Fatalf("expected Fast, got %s", result.Tier)
	}
}

func TestClassifyKnownFastWeaknessGoesToStructural(t *testing.T) {
	snap := snapshot.New()
	withEntity(snap, snapshot.Entity{ID: "page", Parent: "root"})
	withEntity(snap, snapshot.Entity{ID: "sec_a", Parent: "page"})

	result := Classify("Move the first item below the second.", false, snap)
	if result.Tier != Structural {
		t.Fatalf("expected Structural for a positional-indexing message, got %s", result.Tier)
	}
}
