// Package stream is the abstract LLM streaming contract the orchestrator
// depends on (spec §4.6): system content blocks with optional cache
// markers, bounded user messages, a tool definition list, and a sequence
// of text chunks terminated by usage stats and an end-of-stream signal.
// Two implementations exist: a production Anthropic adapter in this
// package and a golden-file replay adapter in the mock subpackage.
package stream

import "context"

// CacheTTL is the subset of provider cache-control durations this kernel
// uses (spec §4.4 "marked cacheable with a long TTL").
type CacheTTL string

const (
	CacheNone   CacheTTL = ""
	CacheShort  CacheTTL = "5m"
	CacheLong   CacheTTL = "1h"
)

// Block is one system-prompt content block (spec §4.4: shared prefix,
// tier block, snapshot block).
type Block struct {
	Text  string
	Cache CacheTTL
}

// ToolDef is one entry in the fixed, per-tier tool list (spec §4.4, §6.4).
// The model never actually invokes these as provider tool_use calls in
// this kernel — they exist to be listed, in a stable order, so the
// provider's prefix cache indexes on a stable tool-list byte range
// (spec §8 "tool-list caching"). Cache is set on the last entry only.
type ToolDef struct {
	Name        string
	Description string
	Schema      map[string]any
	Cache       CacheTTL
}

// MessageRole distinguishes a user-message-array entry's speaker.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one entry in the bounded user-messages array (spec §4.4).
type Message struct {
	Role MessageRole
	Text string
}

// Request is everything a Stream call needs.
type Request struct {
	Model       string
	System      []Block
	Tools       []ToolDef
	Messages    []Message
	MaxTokens   int
	Temperature float64 // defaulted to 0 by the production adapter when unset
}

// EventKind discriminates an Event's payload (spec §4.6 LLMEvent union).
type EventKind string

const (
	EventText  EventKind = "text"
	EventUsage EventKind = "usage"
	EventEnd   EventKind = "end"
	EventError EventKind = "error"
)

// Usage carries the token accounting an Event of kind EventUsage reports.
type Usage struct {
	InputTokens      int
	OutputTokens     int
	CacheReadTokens  int
	CacheWriteTokens int
}

// Event is one item in the sequence a Provider.Stream call returns.
// Exactly one of Text/Usage/Err is meaningful, selected by Kind.
type Event struct {
	Kind  EventKind
	Text  string
	Usage Usage
	Err   error
}

// Provider is the streaming contract the orchestrator calls through
// (spec §4.6). Cancelling ctx must abort the underlying call and close
// the returned channel. The Anthropic adapter may send one last EventError
// carrying ctx.Err() before closing; the mock sends nothing further.
type Provider interface {
	Stream(ctx context.Context, req Request) (<-chan Event, error)
}
