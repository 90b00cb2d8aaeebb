package session

import (
	"bufio"
	"fmt"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/zcancio/aide-sub002/internal/domain/reducer"
	"github.com/zcancio/aide-sub002/internal/httputil"
	"github.com/zcancio/aide-sub002/internal/llm/stream/mock"
)

// messageRequest is the "message" wire request (spec §6.1): a user
// utterance for aideID, optionally flagged as carrying an image (the
// classifier's image_attached rule reads this directly).
type messageRequest struct {
	AideID   string `json:"aide_id"`
	Text     string `json:"text"`
	HasImage bool   `json:"has_image"`
}

func (r messageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.AideID, validation.Required),
		validation.Field(&r.Text, validation.Required),
	)
}

type messageResponse struct {
	TurnID string `json:"turn_id"`
}

// HandleMessage is POST /v1/message: starts a new turn and returns its
// turn_id immediately; the turn's output arrives on the SSE stream at
// GET /v1/turns/{turn_id}/stream.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := httputil.GetUserID(r)
	turnID := h.mgr.StartTurn(req.AideID, userID, req.Text, req.HasImage)
	httputil.RespondJSON(w, http.StatusAccepted, messageResponse{TurnID: turnID})
}

// directEditRequest is the "direct_edit" wire request (spec §4.8): one
// pointer/keyboard-originated operation, in the same expanded wire shape
// a delta event carries, applied straight to the reducer.
type directEditRequest struct {
	AideID string `json:"aide_id"`
	Op     wireOp `json:"op"`
}

func (r directEditRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.AideID, validation.Required),
	)
}

// HandleDirectEdit is POST /v1/direct_edit.
func (h *Handler) HandleDirectEdit(w http.ResponseWriter, r *http.Request) {
	var req directEditRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	op := reducer.Operation{
		Type: req.Op.Type, ID: req.Op.ID, Parent: req.Op.Parent, Display: req.Op.Display,
		Props: req.Op.Props, Ref: req.Op.Ref, Position: req.Op.Position, Children: req.Op.Children,
		From: req.Op.From, To: req.Op.To, RelType: req.Op.RelType, Cardinality: req.Op.Cardinality,
	}

	ack := h.mgr.DirectEdit(r.Context(), req.AideID, op)
	status := http.StatusOK
	if !ack.Accepted {
		status = http.StatusUnprocessableEntity
	}
	httputil.RespondJSON(w, status, ack)
}

// HandleInterrupt is POST /v1/turns/{turn_id}/interrupt (spec §4.8).
func (h *Handler) HandleInterrupt(w http.ResponseWriter, r *http.Request) {
	turnID := r.PathValue("turn_id")
	if turnID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "missing turn_id")
		return
	}

	if ok := h.mgr.Interrupt(turnID); !ok {
		httputil.RespondError(w, http.StatusNotFound, "no live turn with that id")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// setProfileRequest is the "set_profile" wire request (spec §6.1,
// test-only): overrides the mock provider's pacing profile for every
// subsequent turn on aide_id.
type setProfileRequest struct {
	AideID  string `json:"aide_id"`
	Profile string `json:"profile"`
}

func (r setProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.AideID, validation.Required),
		validation.Field(&r.Profile, validation.Required, validation.In(
			string(mock.ProfileInstant), string(mock.ProfileFastL2),
			string(mock.ProfileStructural), string(mock.ProfileSlow),
		)),
	)
}

// HandleSetProfile is POST /v1/set_profile (test-only).
func (h *Handler) HandleSetProfile(w http.ResponseWriter, r *http.Request) {
	var req setProfileRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.mgr.SetProfile(req.AideID, mock.Profile(req.Profile))
	w.WriteHeader(http.StatusNoContent)
}

// HandleStream is GET /v1/turns/{turn_id}/stream: the per-turn SSE
// endpoint (spec §6.1's transport mapped onto this codebase's SSE+POST
// idiom — see DESIGN.md). Grounded on the teacher's sse_handler.go for
// the header set and keepalive-comment shape; the event source and
// subscription mechanism underneath is the real mstream.Stream rather
// than the teacher's predecessor hand-rolled registry.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	turnID := r.PathValue("turn_id")
	st := h.mgr.Stream(turnID)
	if st == nil {
		httputil.RespondError(w, http.StatusNotFound, "no live or recent turn with that id")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	lastEventID := r.Header.Get("Last-Event-ID")
	events, unsubscribe := st.Subscribe(r.Context(), lastEventID)
	defer unsubscribe()

	bw := bufio.NewWriter(w)
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				bw.Flush()
				return
			}
			fmt.Fprintf(bw, "%s", ev)
			if err := bw.Flush(); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(bw, ": keepalive\n\n")
			if err := bw.Flush(); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// Handler groups the session HTTP endpoints over one Manager.
type Handler struct {
	mgr *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{mgr: mgr}
}
