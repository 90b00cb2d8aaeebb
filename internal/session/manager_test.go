package session_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/zcancio/aide-sub002/internal/domain/reducer"
	"github.com/zcancio/aide-sub002/internal/llm/prompt"
	"github.com/zcancio/aide-sub002/internal/llm/stream/mock"
	"github.com/zcancio/aide-sub002/internal/orchestrator"
	"github.com/zcancio/aide-sub002/internal/session"
	"github.com/zcancio/aide-sub002/internal/store"
	"github.com/zcancio/aide-sub002/internal/telemetry"
)

func newTestManager(t *testing.T) *session.Manager {
	t.Helper()
	mem := store.NewMemory()
	assembler := prompt.NewAssembler(prompt.DefaultPrompts(), 9)
	provider := mock.New("../llm/stream/mock/testdata/golden", mock.ProfileInstant)
	rec := telemetry.NewSlogRecorder(slog.Default(), 4)
	t.Cleanup(func() { rec.Close() })

	settings := orchestrator.Settings{
		Fast:                    orchestrator.TierSetting{Model: "lorem-test", Timeout: 5 * time.Second},
		Structural:              orchestrator.TierSetting{Model: "lorem-test", Timeout: 5 * time.Second},
		Analyst:                 orchestrator.TierSetting{Model: "lorem-test", Timeout: 5 * time.Second},
		BatchFlushTimeout:       30 * time.Second,
		ParseFailureStreakLimit: 3,
	}
	orch := orchestrator.New(assembler, provider, mem, rec, slog.Default(), settings)
	return session.NewManager(orch, mem, assembler, rec, settings, session.MockConfig{}, slog.Default())
}

func TestDirectEditRejectsMissingRef(t *testing.T) {
	mgr := newTestManager(t)

	ack := mgr.DirectEdit(context.Background(), "aide-1", reducer.Operation{Type: reducer.OpEntityUpdate})
	if ack.Accepted {
		t.Fatalf("expected rejection for entity.update with no ref")
	}
	if ack.Reason != reducer.MalformedPayload {
		t.Fatalf("expected MalformedPayload, got %s", ack.Reason)
	}
}

func TestInterruptUnknownTurnReturnsFalse(t *testing.T) {
	mgr := newTestManager(t)
	if mgr.Interrupt("no-such-turn") {
		t.Fatalf("expected Interrupt to report false for an unknown turn")
	}
}
