// Package mock is the deterministic replay Provider (spec §4.6, C10):
// it never calls a real vendor, instead replaying a golden line-by-line
// JSONL file at one of four pacing profiles so reducer/escalation tests
// get byte-identical, timing-plausible LLM output. Grounded on the
// teacher's internal/service/llm/providers/lorem/provider.go, whose role
// as a Provider-interface-compatible test stand-in is kept; the content
// source is swapped from lorem-ipsum generation to golden-file replay
// since the reducer and escalation tests need exact, not random, text.
package mock

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zcancio/aide-sub002/internal/llm/stream"
)

// Profile names the four pacing profiles spec §4.6 requires.
type Profile string

const (
	ProfileInstant    Profile = "instant"
	ProfileFastL2     Profile = "fast-l2"
	ProfileStructural Profile = "structural-l3"
	ProfileSlow       Profile = "slow"
)

type pacing struct {
	initialDelay time.Duration
	perLine      time.Duration
}

var pacings = map[Profile]pacing{
	ProfileInstant:    {0, 0},
	ProfileFastL2:     {200 * time.Millisecond, 50 * time.Millisecond},
	ProfileStructural: {800 * time.Millisecond, 100 * time.Millisecond},
	ProfileSlow:       {1500 * time.Millisecond, 300 * time.Millisecond},
}

// Provider replays a golden file chosen by the request's Model field,
// resolved as <goldenDir>/<model>.jsonl. This lets orchestrator tests
// pick the replayed script by model name the same way they'd pick a
// real model id.
type Provider struct {
	goldenDir string
	profile   Profile
}

func New(goldenDir string, profile Profile) *Provider {
	if _, ok := pacings[profile]; !ok {
		profile = ProfileInstant
	}
	return &Provider{goldenDir: goldenDir, profile: profile}
}

func (p *Provider) Stream(ctx context.Context, req stream.Request) (<-chan stream.Event, error) {
	path := filepath.Join(p.goldenDir, req.Model+".jsonl")
	lines, err := readLines(path)
	if err != nil {
		return nil, fmt.Errorf("mock: load golden file %s: %w", path, err)
	}

	events := make(chan stream.Event, 16)
	pace := pacings[p.profile]

	go func() {
		defer close(events)

		if pace.initialDelay > 0 {
			if !sleep(ctx, pace.initialDelay) {
				return
			}
		}

		for _, line := range lines {
			if !sleep(ctx, pace.perLine) {
				return
			}
			if !send(ctx, events, stream.Event{Kind: stream.EventText, Text: line + "\n"}) {
				return
			}
		}

		send(ctx, events, stream.Event{Kind: stream.EventUsage, Usage: stream.Usage{
			InputTokens:  estimateTokens(req),
			OutputTokens: estimateOutputTokens(lines),
		}})
		send(ctx, events, stream.Event{Kind: stream.EventEnd})
	}()

	return events, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func send(ctx context.Context, events chan<- stream.Event, e stream.Event) bool {
	select {
	case <-ctx.Done():
		return false
	case events <- e:
		return true
	}
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

func estimateTokens(req stream.Request) int {
	total := 0
	for _, b := range req.System {
		total += len(b.Text) / 4
	}
	for _, m := range req.Messages {
		total += len(m.Text) / 4
	}
	return total
}

func estimateOutputTokens(lines []string) int {
	total := 0
	for _, l := range lines {
		total += len(l) / 4
	}
	return total
}
