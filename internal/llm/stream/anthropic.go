package stream

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider is the production Provider backed by the vendor's
// streaming HTTP API, grounded on the teacher's
// internal/service/llm/providers/anthropic/{client,streaming}.go.
type AnthropicProvider struct {
	client *anthropic.Client
}

func NewAnthropicProvider(apiKey string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("stream: anthropic API key is required")
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicProvider{client: &client}, nil
}

func (p *AnthropicProvider) Stream(ctx context.Context, req Request) (<-chan Event, error) {
	if req.Model == "" {
		return nil, fmt.Errorf("stream: model is required")
	}

	apiParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  convertMessages(req.Messages),
		System:    convertSystemBlocks(req.System),
		MaxTokens: maxTokensOrDefault(req.MaxTokens),
		// temperature=0 by default (spec §4.6): deterministic tier
		// behavior is part of what makes the fast tier cheap and fast.
		Temperature: anthropic.Float(req.Temperature),
	}
	if len(req.Tools) > 0 {
		apiParams.Tools = convertTools(req.Tools)
	}

	events := make(chan Event, 16)

	go func() {
		defer close(events)

		s := p.client.Messages.NewStreaming(ctx, apiParams)
		message := anthropic.Message{}

		for s.Next() {
			current := s.Current()
			if err := message.Accumulate(current); err != nil {
				sendEvent(ctx, events, Event{Kind: EventError, Err: fmt.Errorf("stream: accumulate: %w", err)})
				return
			}

			if text, ok := textDelta(current); ok {
				if !sendEvent(ctx, events, Event{Kind: EventText, Text: text}) {
					return
				}
			}
		}

		if err := s.Err(); err != nil {
			sendEvent(ctx, events, Event{Kind: EventError, Err: fmt.Errorf("stream: %w", err)})
			return
		}

		sendEvent(ctx, events, Event{Kind: EventUsage, Usage: Usage{
			InputTokens:      int(message.Usage.InputTokens),
			OutputTokens:     int(message.Usage.OutputTokens),
			CacheReadTokens:  int(message.Usage.CacheReadInputTokens),
			CacheWriteTokens: int(message.Usage.CacheCreationInputTokens),
		}})
		sendEvent(ctx, events, Event{Kind: EventEnd})
	}()

	return events, nil
}

// sendEvent respects cancellation the way the teacher's StreamResponse
// does: a context cancellation mid-send aborts without blocking forever.
func sendEvent(ctx context.Context, events chan<- Event, e Event) bool {
	select {
	case <-ctx.Done():
		select {
		case events <- Event{Kind: EventError, Err: ctx.Err()}:
		default:
		}
		return false
	case events <- e:
		return true
	}
}

func textDelta(event anthropic.MessageStreamEventUnion) (string, bool) {
	switch e := event.AsAny().(type) {
	case anthropic.ContentBlockDeltaEvent:
		if e.Delta.Type == "text_delta" {
			return e.Delta.Text, true
		}
	}
	return "", false
}

func convertMessages(msgs []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		block := anthropic.NewTextBlock(m.Text)
		if m.Role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

func convertSystemBlocks(blocks []Block) []anthropic.TextBlockParam {
	out := make([]anthropic.TextBlockParam, 0, len(blocks))
	for _, b := range blocks {
		tb := anthropic.TextBlockParam{Type: "text", Text: b.Text}
		if b.Cache != CacheNone {
			tb.CacheControl = anthropic.NewCacheControlEphemeralParam()
		}
		out = append(out, tb)
	}
	return out
}

func convertTools(tools []ToolDef) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema := anthropic.ToolInputSchemaParam{}
		if t.Schema != nil {
			schema.Properties = t.Schema["properties"]
			if req, ok := t.Schema["required"].([]string); ok {
				schema.Required = req
			}
		}
		tool := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: schema,
		}
		if t.Cache != CacheNone {
			tool.CacheControl = anthropic.NewCacheControlEphemeralParam()
		}
		out = append(out, anthropic.ToolUnionParamOfTool(tool))
	}
	return out
}

func maxTokensOrDefault(n int) int64 {
	if n <= 0 {
		return 4096
	}
	return int64(n)
}
