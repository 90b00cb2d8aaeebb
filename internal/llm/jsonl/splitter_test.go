package jsonl

import (
	"testing"

	"github.com/zcancio/aide-sub002/internal/domain/reducer"
)

func feedAll(t *testing.T, s *Splitter, lines ...string) []Item {
	t.Helper()
	var items []Item
	for _, line := range lines {
		items = append(items, s.Feed([]byte(line+"\n"))...)
	}
	return items
}

func TestSplitterParsesLongFormOperation(t *testing.T) {
	s := NewSplitter()
	items := feedAll(t, s, `{"type":"entity.create","id":"e1","parent":"root","props":{"text":"hi"}}`)
	if len(items) != 1 {
		t.Fatalf("want 1 item, got %d", len(items))
	}
	if items[0].Kind != ItemOperation {
		t.Fatalf("want operation item, got kind %v", items[0].Kind)
	}
	op := items[0].Operation
	if op.Type != reducer.OpEntityCreate || op.ID != "e1" || op.Parent != "root" {
		t.Fatalf("unexpected operation: %+v", op)
	}
	if op.Props["text"] != "hi" {
		t.Fatalf("expected props to survive, got %+v", op.Props)
	}
}

func TestSplitterExpandsAbbreviatedKeys(t *testing.T) {
	s := NewSplitter()
	items := feedAll(t, s, `{"t":"entity.create","id":"e1","parent":"root","p":{"text":"hi"}}`)
	if len(items) != 1 || items[0].Kind != ItemOperation {
		t.Fatalf("want single operation item, got %+v", items)
	}
	op := items[0].Operation
	if op.Type != reducer.OpEntityCreate {
		t.Fatalf("want entity.create, got %s", op.Type)
	}
	if op.Props["text"] != "hi" {
		t.Fatalf("expected abbreviated props key to expand, got %+v", op.Props)
	}
}

func TestSplitterPreservesRelSetTypeFieldAlongsideAbbreviatedDiscriminator(t *testing.T) {
	s := NewSplitter()
	items := feedAll(t, s, `{"t":"rel.set","from":"a","to":"b","type":"authored_by"}`)
	if len(items) != 1 || items[0].Kind != ItemOperation {
		t.Fatalf("want single operation item, got %+v", items)
	}
	op := items[0].Operation
	if op.Type != reducer.OpRelSet {
		t.Fatalf("want rel.set, got %s", op.Type)
	}
	if op.RelType != "authored_by" {
		t.Fatalf("want relationship type authored_by, got %q", op.RelType)
	}
}

func TestSplitterSkipsEmptyAndFencedLines(t *testing.T) {
	s := NewSplitter()
	items := feedAll(t, s,
		"",
		"   ",
		"```json",
		`{"type":"meta.set","props":{"title":"doc"}}`,
		"```",
	)
	if len(items) != 1 {
		t.Fatalf("want 1 item, got %d: %+v", len(items), items)
	}
	if items[0].Operation.Type != reducer.OpMetaSet {
		t.Fatalf("unexpected operation: %+v", items[0].Operation)
	}
}

func TestSplitterRecognizesSignal(t *testing.T) {
	s := NewSplitter()
	items := feedAll(t, s, `{"type":"voice","text":"Adding a section now."}`)
	if len(items) != 1 || items[0].Kind != ItemSignal {
		t.Fatalf("want single signal item, got %+v", items)
	}
	if items[0].Signal.Type != SignalVoice || items[0].Signal.Text != "Adding a section now." {
		t.Fatalf("unexpected signal: %+v", items[0].Signal)
	}
}

func TestSplitterThreeConsecutiveFailuresEmitParseFailure(t *testing.T) {
	s := NewSplitter()
	items := feedAll(t, s,
		`{"type":"entity.create"}`, // missing id/parent: malformed
		`not json at all`,
		`{"type":"unknown.thing"}`, // an unrecognized type fails the splitter's shape check too
	)
	if len(items) != 1 {
		t.Fatalf("want exactly 1 item (the parse failure), got %d: %+v", len(items), items)
	}
	if items[0].Kind != ItemParseFailure {
		t.Fatalf("want ParseFailure item, got %+v", items[0])
	}
}

func TestSplitterResetsStreakOnSuccess(t *testing.T) {
	s := NewSplitter()
	items := feedAll(t, s,
		`{"type":"entity.create"}`,
		`not json`,
		`{"type":"meta.set","props":{"a":1}}`,
		`{"type":"entity.create"}`,
		`not json`,
	)
	for _, it := range items {
		if it.Kind == ItemParseFailure {
			t.Fatalf("did not expect a parse failure after a successful line reset the streak: %+v", items)
		}
	}
}

func TestSplitterLatchesClosedAfterParseFailure(t *testing.T) {
	s := NewSplitter()
	_ = feedAll(t, s, `bad`, `bad`, `bad`)
	items := feedAll(t, s, `{"type":"meta.set","props":{"a":1}}`)
	if len(items) != 0 {
		t.Fatalf("want no further items after latch, got %+v", items)
	}
}

func TestSplitterCloseFlushesTrailingLine(t *testing.T) {
	s := NewSplitter()
	items := s.Feed([]byte(`{"type":"meta.set","props":{"a":1}}`))
	if len(items) != 0 {
		t.Fatalf("unterminated line should not yet produce an item, got %+v", items)
	}
	items = s.Close()
	if len(items) != 1 || items[0].Kind != ItemOperation {
		t.Fatalf("want close to flush the trailing line, got %+v", items)
	}
}
