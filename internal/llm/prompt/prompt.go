// Package prompt assembles the per-turn streaming request (spec §4.4,
// C4): the cacheable shared-prefix and tier blocks, the uncached
// snapshot block, the per-tier tool list, and the bounded user-messages
// array. Grounded on the teacher's
// internal/service/llm/conversation/message_builder.go for the
// history-tail-truncation shape, generalized here to the much simpler
// "text or N-operations-applied summary" entry this domain needs (no
// tool_use/thinking blocks to replay).
package prompt

import (
	"fmt"

	"github.com/zcancio/aide-sub002/internal/domain/snapshot"
	"github.com/zcancio/aide-sub002/internal/llm/classifier"
	"github.com/zcancio/aide-sub002/internal/llm/stream"
	"github.com/zcancio/aide-sub002/internal/store"
)

// TierPrompts holds the byte-stable instruction text for each tier,
// loaded once at startup (spec §4.4: "identical byte-for-byte across
// turns at a given tier version").
type TierPrompts struct {
	SharedPrefix     string
	FastBlock        string
	StructuralBlock  string
	AnalystBlock     string
}

// Assembler builds stream.Request values for a turn.
type Assembler struct {
	prompts            TierPrompts
	mutationTools      []stream.ToolDef
	analystTools       []stream.ToolDef
	historyWindowTurns int
}

func NewAssembler(prompts TierPrompts, historyWindowTurns int) *Assembler {
	return &Assembler{
		prompts:            prompts,
		mutationTools:      mutationToolList(),
		analystTools:       analystToolList(),
		historyWindowTurns: historyWindowTurns,
	}
}

// Build assembles the request for one pass at the given tier.
func (a *Assembler) Build(tier classifier.Tier, model string, snap *snapshot.Snapshot, tail []store.HistoryEntry, message string) (stream.Request, error) {
	snapJSON, err := snap.CanonicalJSON()
	if err != nil {
		return stream.Request{}, fmt.Errorf("prompt: serialize snapshot: %w", err)
	}

	req := stream.Request{
		Model: model,
		System: []stream.Block{
			{Text: a.prompts.SharedPrefix, Cache: stream.CacheLong},
			{Text: a.tierBlock(tier), Cache: stream.CacheLong},
			{Text: string(snapJSON), Cache: stream.CacheNone},
		},
		Tools:    a.toolsFor(tier),
		Messages: a.messages(tail, message),
	}
	return req, nil
}

func (a *Assembler) tierBlock(tier classifier.Tier) string {
	switch tier {
	case classifier.Structural:
		return a.prompts.StructuralBlock
	case classifier.Analyst:
		return a.prompts.AnalystBlock
	default:
		return a.prompts.FastBlock
	}
}

// toolsFor returns the per-tier tool list (spec §4.4: the analyst tier
// gets a restricted voice-only list, the two mutation tiers share one).
func (a *Assembler) toolsFor(tier classifier.Tier) []stream.ToolDef {
	if tier == classifier.Analyst {
		return a.analystTools
	}
	return a.mutationTools
}

// messages builds the bounded conversation tail followed by the current
// user message (spec §4.4: ≤ historyWindowTurns prior entries).
func (a *Assembler) messages(tail []store.HistoryEntry, message string) []stream.Message {
	start := 0
	if len(tail) > a.historyWindowTurns {
		start = len(tail) - a.historyWindowTurns
	}
	bounded := tail[start:]

	out := make([]stream.Message, 0, len(bounded)+1)
	for _, h := range bounded {
		role := stream.RoleUser
		if h.Role == store.RoleAssistant {
			role = stream.RoleAssistant
		}
		out = append(out, stream.Message{Role: role, Text: h.Text})
	}
	out = append(out, stream.Message{Role: stream.RoleUser, Text: message})
	return out
}

// SummarizeMutationTurn renders an assistant mutation turn as the spec
// §4.4 "N operations applied" summary rather than a verbatim replay.
func SummarizeMutationTurn(opCount int) string {
	if opCount == 1 {
		return "1 operation applied."
	}
	return fmt.Sprintf("%d operations applied.", opCount)
}

// mutationToolList is the fixed ordered list shared by the fast and
// structural tiers: one tool per mutation primitive plus voice, with the
// cache marker on the last entry (spec §4.4, §8 "tool-list caching").
func mutationToolList() []stream.ToolDef {
	names := []string{
		"entity.create", "entity.update", "entity.remove", "entity.move", "entity.reorder",
		"rel.set", "rel.remove",
		"style.set", "style.entity",
		"meta.set", "meta.annotate",
		"voice",
	}
	tools := make([]stream.ToolDef, len(names))
	for i, name := range names {
		tools[i] = stream.ToolDef{Name: name, Description: toolDescriptions[name]}
	}
	tools[len(tools)-1].Cache = stream.CacheLong
	return tools
}

// analystToolList is the restricted voice-only list the analyst tier
// receives (spec §4.4): no mutation primitives, since the analyst tier
// never writes to the snapshot.
func analystToolList() []stream.ToolDef {
	return []stream.ToolDef{
		{Name: "voice", Description: toolDescriptions["voice"], Cache: stream.CacheLong},
	}
}

var toolDescriptions = map[string]string{
	"entity.create": "Create a new entity under an existing parent.",
	"entity.update": "Merge props into an existing entity.",
	"entity.remove": "Tombstone an entity (soft delete).",
	"entity.move":   "Move an entity to a new parent.",
	"entity.reorder": "Set the order of an entity's children.",
	"rel.set":       "Set a relationship between two entities.",
	"rel.remove":    "Remove a relationship between two entities.",
	"style.set":     "Set a page-level style property.",
	"style.entity":  "Set an entity-level style property.",
	"meta.set":      "Set a page-level metadata field.",
	"meta.annotate":  "Merge additional fields into page-level metadata.",
	"voice":         "Emit a spoken-response line to the user.",
}
