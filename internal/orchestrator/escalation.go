package orchestrator

import (
	"strings"

	"github.com/zcancio/aide-sub002/internal/domain/reducer"
	"github.com/zcancio/aide-sub002/internal/domain/snapshot"
)

// structuralDisplays are the display hints that count as "structural
// scaffolding" when created at depth 1 (spec §4.7 escalation detection).
var structuralDisplays = map[string]bool{
	"page": true, "section": true, "table": true, "list": true, "checklist": true,
}

var escalationPhrases = []string{
	"needs a new section", "needs structural", "escalat",
}

// detectPassiveEscalation inspects a completed fast-tier pass's accepted
// operations and voice lines for the passive signals spec §4.7 names,
// returning the structural escalation request they imply, or nil. A
// structural create counts when its parent is the page (the single
// entity parented to "root") or "root" itself.
func detectPassiveEscalation(original *snapshot.Snapshot, ops []reducer.Operation, voiceLines []string) *escalateRequest {
	pageID := ""
	if page, ok := original.Root(); ok {
		pageID = page.ID
	}
	for _, op := range ops {
		if op.Type != reducer.OpEntityCreate || !structuralDisplays[op.Display] {
			continue
		}
		if op.Parent == "root" || (pageID != "" && op.Parent == pageID) {
			return &escalateRequest{tier: "structural", reason: "structural_signal"}
		}
	}
	for _, line := range voiceLines {
		lower := strings.ToLower(line)
		for _, phrase := range escalationPhrases {
			if strings.Contains(lower, phrase) {
				return &escalateRequest{tier: "structural", reason: "structural_signal"}
			}
		}
	}
	return nil
}
