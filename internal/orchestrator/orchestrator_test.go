package orchestrator_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/zcancio/aide-sub002/internal/domain/reducer"
	"github.com/zcancio/aide-sub002/internal/domain/snapshot"
	"github.com/zcancio/aide-sub002/internal/llm/prompt"
	"github.com/zcancio/aide-sub002/internal/llm/stream/mock"
	"github.com/zcancio/aide-sub002/internal/orcherr"
	"github.com/zcancio/aide-sub002/internal/orchestrator"
	"github.com/zcancio/aide-sub002/internal/store"
	"github.com/zcancio/aide-sub002/internal/telemetry"
)

// recordingSink captures every Sink call in arrival order so the test can
// assert on the shape of one turn's event sequence without a transport.
type escalationCall struct {
	fromTier, toTier, reason string
}

type recordingSink struct {
	deltas      []reducer.Operation
	voices      []string
	escalations []escalationCall
	tierRetrace []string
	ended       bool
	errKind     orcherr.Kind
}

func (s *recordingSink) StreamStart(string, string)      {}
func (s *recordingSink) Delta(op reducer.Operation)      { s.deltas = append(s.deltas, op) }
func (s *recordingSink) DeltaBatch(ops []reducer.Operation) {
	s.deltas = append(s.deltas, ops...)
}
func (s *recordingSink) Voice(text string) { s.voices = append(s.voices, text) }
func (s *recordingSink) Clarify(string, []string) {}
func (s *recordingSink) Escalation(fromTier, toTier, reason string) {
	s.escalations = append(s.escalations, escalationCall{fromTier, toTier, reason})
}
func (s *recordingSink) TierRetrace(trace []string) { s.tierRetrace = trace }
func (s *recordingSink) StreamEnd(string, []string, orchestrator.Usage, int64, int64, float64) {
	s.ended = true
}
func (s *recordingSink) StreamError(kind orcherr.Kind, _ string) { s.errKind = kind }
func (s *recordingSink) StreamInterrupted(string, int)           {}

func newTestOrchestrator(t *testing.T) (*orchestrator.Orchestrator, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	assembler := prompt.NewAssembler(prompt.DefaultPrompts(), 9)
	provider := mock.New("../llm/stream/mock/testdata/golden", mock.ProfileInstant)
	rec := telemetry.NewSlogRecorder(slog.Default(), 4)
	t.Cleanup(func() { rec.Close() })

	settings := orchestrator.Settings{
		Fast:       orchestrator.TierSetting{Model: "lorem-test", Timeout: 5 * time.Second},
		Structural: orchestrator.TierSetting{Model: "lorem-test", Timeout: 5 * time.Second},
		Analyst:    orchestrator.TierSetting{Model: "lorem-test", Timeout: 5 * time.Second},
		BatchFlushTimeout:       30 * time.Second,
		ParseFailureStreakLimit: 3,
	}
	return orchestrator.New(assembler, provider, mem, rec, slog.Default(), settings), mem
}

func TestRunTurnFastTierAppliesGoldenOperations(t *testing.T) {
	orch, mem := newTestOrchestrator(t)

	seeded, outcome := reducer.Reduce(snapshot.New(), reducer.Operation{
		Type: reducer.OpEntityCreate, ID: "existing", Parent: "root", Display: "section",
	})
	if !outcome.Accepted {
		t.Fatalf("seed setup: reduce rejected: %v", outcome.Reason)
	}
	mem.Seed("aide-1", seeded)

	sink := &recordingSink{}
	result := orch.RunTurn(context.Background(), sink, "turn-1", "aide-1", "user-1", "add a quick note", false)

	if result.ErrorKind != "" {
		t.Fatalf("unexpected error kind: %s", result.ErrorKind)
	}
	if !sink.ended {
		t.Fatalf("expected StreamEnd to have been called")
	}
	if result.OperationsAccepted != 1 {
		t.Fatalf("expected 1 accepted operation, got %d", result.OperationsAccepted)
	}
	if len(sink.deltas) != 1 || sink.deltas[0].ID != "sec_intro" {
		t.Fatalf("expected the golden file's entity.create to reach the sink, got %+v", sink.deltas)
	}
	if len(sink.voices) != 2 {
		t.Fatalf("expected 2 voice lines from the golden file, got %d", len(sink.voices))
	}
}

func TestRunTurnPersistsAcceptedOperations(t *testing.T) {
	orch, mem := newTestOrchestrator(t)

	seeded, _ := reducer.Reduce(snapshot.New(), reducer.Operation{
		Type: reducer.OpEntityCreate, ID: "existing", Parent: "root", Display: "section",
	})
	mem.Seed("aide-2", seeded)

	sink := &recordingSink{}
	orch.RunTurn(context.Background(), sink, "turn-2", "aide-2", "user-1", "add a quick note", false)

	turnCtx, err := mem.LoadTurnContext(context.Background(), "aide-2")
	if err != nil {
		t.Fatalf("LoadTurnContext: %v", err)
	}
	if _, ok := turnCtx.Snapshot.Entities["sec_intro"]; !ok {
		t.Fatalf("expected the persisted snapshot to contain the new entity")
	}
}

// newEscalationTestOrchestrator wires distinct models per tier so the fast
// and structural passes replay distinct golden scripts (spec §8 scenario 3).
func newEscalationTestOrchestrator(t *testing.T) (*orchestrator.Orchestrator, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	assembler := prompt.NewAssembler(prompt.DefaultPrompts(), 9)
	provider := mock.New("../llm/stream/mock/testdata/golden", mock.ProfileInstant)
	rec := telemetry.NewSlogRecorder(slog.Default(), 4)
	t.Cleanup(func() { rec.Close() })

	settings := orchestrator.Settings{
		Fast:                    orchestrator.TierSetting{Model: "esc-fast", Timeout: 5 * time.Second},
		Structural:              orchestrator.TierSetting{Model: "esc-structural", Timeout: 5 * time.Second},
		Analyst:                 orchestrator.TierSetting{Model: "lorem-test", Timeout: 5 * time.Second},
		BatchFlushTimeout:       30 * time.Second,
		ParseFailureStreakLimit: 3,
	}
	return orchestrator.New(assembler, provider, mem, rec, slog.Default(), settings), mem
}

// TestRunTurnStructuralEscalationRetriesFast drives spec §8 scenario 3: the
// fast pass emits a structural-change escalation with no mutation standing,
// the structural pass creates the new section, and a third fast pass
// replays against the post-structural snapshot and lands its own mutation.
func TestRunTurnStructuralEscalationRetriesFast(t *testing.T) {
	orch, mem := newEscalationTestOrchestrator(t)

	seeded, _ := reducer.Reduce(snapshot.New(), reducer.Operation{
		Type: reducer.OpEntityCreate, ID: "existing", Parent: "root", Display: "section",
	})
	mem.Seed("aide-3", seeded)

	sink := &recordingSink{}
	result := orch.RunTurn(context.Background(), sink, "turn-3", "aide-3", "user-1", "add a quick note", false)

	wantTrace := []string{"fast", "structural", "fast"}
	if len(result.TierTrace) != len(wantTrace) {
		t.Fatalf("expected tier_trace %v, got %v", wantTrace, result.TierTrace)
	}
	for i, tier := range wantTrace {
		if result.TierTrace[i] != tier {
			t.Fatalf("expected tier_trace %v, got %v", wantTrace, result.TierTrace)
		}
	}

	if len(sink.escalations) != 1 || sink.escalations[0] != (escalationCall{"fast", "structural", "structural_change"}) {
		t.Fatalf("expected one fast->structural escalation, got %+v", sink.escalations)
	}

	// The discarded first fast pass's attempted create (sec_mut) must not
	// appear; only the structural pass's create and the retry-fast pass's
	// create (replayed against the post-structural snapshot) should land.
	if len(sink.deltas) != 2 {
		t.Fatalf("expected 2 accepted operations to reach the sink, got %d: %+v", len(sink.deltas), sink.deltas)
	}
	if sink.deltas[0].ID != "sec_new" || sink.deltas[1].ID != "sec_mut" {
		t.Fatalf("expected deltas [sec_new, sec_mut] in pass order, got %+v", sink.deltas)
	}
	if result.OperationsAccepted != 2 {
		t.Fatalf("expected 2 accepted operations total, got %d", result.OperationsAccepted)
	}
	if !sink.ended {
		t.Fatalf("expected StreamEnd to have been called")
	}

	turnCtx, err := mem.LoadTurnContext(context.Background(), "aide-3")
	if err != nil {
		t.Fatalf("LoadTurnContext: %v", err)
	}
	if _, ok := turnCtx.Snapshot.Entities["sec_new"]; !ok {
		t.Fatalf("expected the structural pass's entity to be persisted")
	}
	if _, ok := turnCtx.Snapshot.Entities["sec_mut"]; !ok {
		t.Fatalf("expected the retry-fast pass's entity to be persisted")
	}
}
