package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	mstream "github.com/haowjy/meridian-stream-go"

	"github.com/zcancio/aide-sub002/internal/domain/reducer"
	"github.com/zcancio/aide-sub002/internal/llm/prompt"
	"github.com/zcancio/aide-sub002/internal/llm/stream/mock"
	"github.com/zcancio/aide-sub002/internal/orcherr"
	"github.com/zcancio/aide-sub002/internal/orchestrator"
	"github.com/zcancio/aide-sub002/internal/store"
	"github.com/zcancio/aide-sub002/internal/telemetry"
)

// MockConfig carries what Manager needs to build a per-aide mock provider
// when running against golden files instead of a real vendor (spec §4.10).
type MockConfig struct {
	Enabled   bool
	GoldenDir string
	Default   mock.Profile
}

// Manager is the session layer (C8): it owns one mstream.Registry shared
// across every turn on every aide, serializes turns per aide (spec §5 "a
// new user message is queued until the prior turn finalizes"), and bridges
// the orchestrator's Sink calls onto each turn's event stream. Grounded on
// the teacher's TurnExecutorRegistry/StreamExecutor split — a registry of
// live per-turn workers plus a per-turn adapter — generalized here to use
// the real mstream.Registry/mstream.Stream the teacher's own code never
// finished migrating onto.
type Manager struct {
	registry  *mstream.Registry
	orch      *orchestrator.Orchestrator
	store     store.Store
	assembler *prompt.Assembler
	rec       telemetry.Recorder
	settings  orchestrator.Settings
	logger    *slog.Logger

	mock MockConfig

	mu          sync.Mutex
	aideLocks   map[string]*sync.Mutex
	aideProfile map[string]mock.Profile
}

func NewManager(orch *orchestrator.Orchestrator, st store.Store, assembler *prompt.Assembler, rec telemetry.Recorder, settings orchestrator.Settings, mockCfg MockConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		registry:    mstream.NewRegistry(),
		orch:        orch,
		store:       st,
		assembler:   assembler,
		rec:         rec,
		settings:    settings,
		logger:      logger,
		mock:        mockCfg,
		aideLocks:   make(map[string]*sync.Mutex),
		aideProfile: make(map[string]mock.Profile),
	}
}

// StartCleanup runs the registry's background sweep for finished streams
// until ctx is cancelled, mirroring the teacher's setup.go
// "go streamRegistry.StartCleanup(...)" call.
func (m *Manager) StartCleanup(ctx context.Context) {
	m.registry.StartCleanup(ctx)
}

func (m *Manager) lockFor(aideID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.aideLocks[aideID]
	if !ok {
		l = &sync.Mutex{}
		m.aideLocks[aideID] = l
	}
	return l
}

// SetProfile overrides aideID's mock pacing profile for every turn started
// after this call (spec §6.1 "set_profile", test-only). A no-op when the
// mock provider is not enabled.
func (m *Manager) SetProfile(aideID string, profile mock.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aideProfile[aideID] = profile
}

// orchestratorFor returns the orchestrator a turn on aideID should run
// against. Orchestrator holds no per-turn state, so building a fresh one
// per mock turn (to pick up a possibly-just-changed profile override) costs
// nothing beyond the constructor call.
func (m *Manager) orchestratorFor(aideID string) *orchestrator.Orchestrator {
	if !m.mock.Enabled {
		return m.orch
	}
	m.mu.Lock()
	profile, ok := m.aideProfile[aideID]
	m.mu.Unlock()
	if !ok {
		profile = m.mock.Default
	}
	provider := mock.New(m.mock.GoldenDir, profile)
	return orchestrator.New(m.assembler, provider, m.store, m.rec, m.logger, m.settings)
}

// StartTurn registers and starts a new turn's stream for aideID (spec
// §4.7/§6.1): the stream is visible to a GET subscriber immediately, but
// the orchestrator's work inside the workFunc blocks on aideID's lock
// until any prior turn on the same aide has finished, matching spec §5's
// single-flight-per-aide requirement.
func (m *Manager) StartTurn(aideID, userID, message string, hasImage bool) string {
	turnID := uuid.New().String()
	lock := m.lockFor(aideID)

	catchup := func(streamID, lastEventID string) ([]mstream.Event, error) {
		// Every sink event is re-derivable from stream state only while the
		// turn is in flight; once the turn ends there is nothing left for a
		// reconnecting client to catch up on beyond the terminal event,
		// which the client will have already received live in the common
		// case of a connection that stayed open for the whole turn.
		return nil, nil
	}

	work := func(ctx context.Context, send func(mstream.Event)) error {
		lock.Lock()
		defer lock.Unlock()

		sink := newStreamSink(send)
		orch := m.orchestratorFor(aideID)
		orch.RunTurn(ctx, sink, turnID, aideID, userID, message, hasImage)
		return nil
	}

	st := mstream.NewStream(turnID, work, mstream.WithCatchup(catchup), mstream.WithEventIDs(true))
	m.registry.Register(st)
	st.Start()
	return turnID
}

// DirectEdit applies op straight to the reducer for aideID and reports the
// ack synchronously (spec §4.8 "Direct edits" — no tier, no stream).
func (m *Manager) DirectEdit(ctx context.Context, aideID string, op reducer.Operation) directEditAckPayload {
	lock := m.lockFor(aideID)
	lock.Lock()
	defer lock.Unlock()

	outcome := m.orch.ApplyDirectEdit(ctx, directEditSink{}, aideID, op)
	if !outcome.Accepted {
		return directEditAckPayload{Accepted: false, Reason: outcome.Reason}
	}
	wo := toWireOp(op)
	return directEditAckPayload{Accepted: true, Op: &wo}
}

// Interrupt cancels turnID's in-flight stream (spec §4.8 "interrupt").
// Reports false if turnID has no live stream (already finished or unknown).
func (m *Manager) Interrupt(turnID string) bool {
	st := m.registry.Get(turnID)
	if st == nil {
		return false
	}
	st.Cancel()
	return true
}

// Stream returns turnID's live stream for the SSE handler to subscribe to,
// or nil if the turn is unknown or already finished.
func (m *Manager) Stream(turnID string) *mstream.Stream {
	return m.registry.Get(turnID)
}

// directEditSink discards every call, the Delta that ApplyDirectEdit
// emits on acceptance included; the HTTP handler reports the outcome
// itself as a plain JSON ack rather than as stream events.
type directEditSink struct{}

func (directEditSink) StreamStart(string, string)        {}
func (directEditSink) Delta(reducer.Operation)           {}
func (directEditSink) DeltaBatch([]reducer.Operation)    {}
func (directEditSink) Voice(string)                      {}
func (directEditSink) Clarify(string, []string)          {}
func (directEditSink) Escalation(string, string, string) {}
func (directEditSink) TierRetrace([]string)              {}
func (directEditSink) StreamEnd(string, []string, orchestrator.Usage, int64, int64, float64) {
}
func (directEditSink) StreamError(orcherr.Kind, string)     {}
func (directEditSink) StreamInterrupted(string, int)        {}
