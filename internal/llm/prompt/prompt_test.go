package prompt

import (
	"testing"

	"github.com/zcancio/aide-sub002/internal/domain/snapshot"
	"github.com/zcancio/aide-sub002/internal/llm/classifier"
	"github.com/zcancio/aide-sub002/internal/llm/stream"
	"github.com/zcancio/aide-sub002/internal/store"
)

func TestBuildOrdersSystemBlocksWithCacheMarkers(t *testing.T) {
	a := NewAssembler(DefaultPrompts(), 9)
	snap := snapshot.New()

	req, err := a.Build(classifier.Fast, "claude-haiku-4-5-20251001", snap, nil, "rename the title")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(req.System) != 3 {
		t.Fatalf("expected 3 system blocks, got %d", len(req.System))
	}
	if req.System[0].Cache != stream.CacheLong || req.System[1].Cache != stream.CacheLong {
		t.Fatalf("expected shared prefix and tier block to be cache-long")
	}
	if req.System[2].Cache != stream.CacheNone {
		t.Fatalf("expected snapshot block to be uncached")
	}
}

func TestBuildAnalystToolListIsVoiceOnly(t *testing.T) {
	a := NewAssembler(DefaultPrompts(), 9)
	snap := snapshot.New()

	req, err := a.Build(classifier.Analyst, "claude-opus-4-1-20250805", snap, nil, "how many sections are there?")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(req.Tools) != 1 || req.Tools[0].Name != "voice" {
		t.Fatalf("expected a single voice tool for the analyst tier, got %v", req.Tools)
	}
	if req.Tools[0].Cache != stream.CacheLong {
		t.Fatalf("expected the last (only) tool to carry the cache marker")
	}
}

func TestBuildMutationToolListCacheMarkerOnLastEntry(t *testing.T) {
	a := NewAssembler(DefaultPrompts(), 9)
	snap := snapshot.New()

	req, err := a.Build(classifier.Structural, "claude-sonnet-4-5-20250929", snap, nil, "add a section")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	last := req.Tools[len(req.Tools)-1]
	if last.Name != "voice" || last.Cache != stream.CacheLong {
		t.Fatalf("expected the mutation tool list's last entry to be voice with the cache marker, got %+v", last)
	}
	for _, tool := range req.Tools[:len(req.Tools)-1] {
		if tool.Cache != stream.CacheNone {
			t.Fatalf("expected only the last tool to carry a cache marker, found one on %s", tool.Name)
		}
	}
}

func TestBuildBoundsConversationTail(t *testing.T) {
	a := NewAssembler(DefaultPrompts(), 2)
	snap := snapshot.New()

	tail := []store.HistoryEntry{
		{Role: store.RoleUser, Text: "first"},
		{Role: store.RoleAssistant, Text: SummarizeMutationTurn(1)},
		{Role: store.RoleUser, Text: "second"},
		{Role: store.RoleAssistant, Text: SummarizeMutationTurn(3)},
	}

	req, err := a.Build(classifier.Fast, "claude-haiku-4-5-20251001", snap, tail, "third")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// bounded to the last 2 tail entries plus the current message.
	if len(req.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(req.Messages))
	}
	if req.Messages[len(req.Messages)-1].Text != "third" {
		t.Fatalf("expected the current message last, got %q", req.Messages[len(req.Messages)-1].Text)
	}
}

func TestSummarizeMutationTurnSingular(t *testing.T) {
	if got := SummarizeMutationTurn(1); got != "1 operation applied." {
		t.Fatalf("expected singular phrasing, got %q", got)
	}
}
