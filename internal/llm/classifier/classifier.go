// Package classifier implements the pre-dispatch tier rule function
// (spec §4.5, C5): a pure, rule-based decision over the incoming message
// and the current snapshot, run before any LLM call. First matching rule
// wins; confidence is advisory telemetry only, never a dispatch gate.
package classifier

import (
	"strings"

	"github.com/zcancio/aide-sub002/internal/domain/snapshot"
)

// Tier is one of the three routing destinations (spec glossary "Tier").
type Tier string

const (
	Fast       Tier = "fast"
	Structural Tier = "structural"
	Analyst    Tier = "analyst"
)

// Result is the classifier's decision plus the confidence telemetry
// records (spec §4.5 "confidence is not used to block dispatch").
type Result struct {
	Tier       Tier
	Confidence float64
	Rule       string // which rule matched, for telemetry/debugging
}

var questionPrefixes = []string{
	"how many", "what", "who", "when", "do we", "is there", "which",
}

var analysisWords = []string{
	"enough", "missing", "ready", "compare", "comparison", "recommend", "recommendation", "analy",
}

var structuralKeywords = []string{
	"add a section", "create a", "reorganize", "restructure", "set up",
}

// fastTierWeaknesses are message patterns known to trip up the fast
// tier's small model even when nothing else about the request looks
// structural (spec §4.5 rule 3).
var fastTierWeaknesses = []string{
	"first", "last", "second", "third", "before", "after", "above", "below",
	"left", "right", "don't", "not ", "never", "except",
}

// Classify picks the tier for one message. hasImage is set by the caller
// when the incoming turn carries an image attachment (spec §4.5 rule 2's
// "an image is attached").
func Classify(message string, hasImage bool, snap *snapshot.Snapshot) Result {
	msg := strings.TrimSpace(message)
	lower := strings.ToLower(msg)

	if isQuestion(msg, lower) {
		return Result{Tier: Analyst, Confidence: 0.9, Rule: "question"}
	}

	if isFirstTurn(snap) {
		return Result{Tier: Structural, Confidence: 0.95, Rule: "first_turn"}
	}
	if containsAny(lower, structuralKeywords) {
		return Result{Tier: Structural, Confidence: 0.85, Rule: "structural_keyword"}
	}
	if hasThreePlusCommaList(lower) {
		return Result{Tier: Structural, Confidence: 0.7, Rule: "comma_list"}
	}
	if hasImage {
		return Result{Tier: Structural, Confidence: 0.8, Rule: "image_attached"}
	}

	if containsAny(lower, fastTierWeaknesses) {
		return Result{Tier: Structural, Confidence: 0.6, Rule: "fast_tier_weakness"}
	}

	return Result{Tier: Fast, Confidence: 0.75, Rule: "default"}
}

func isQuestion(msg, lower string) bool {
	if strings.HasSuffix(msg, "?") {
		return true
	}
	for _, prefix := range questionPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	for _, word := range analysisWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

func isFirstTurn(snap *snapshot.Snapshot) bool {
	if snap == nil {
		return true
	}
	return len(snap.Children("root")) == 0
}

func hasThreePlusCommaList(lower string) bool {
	return strings.Count(lower, ",") >= 2
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
