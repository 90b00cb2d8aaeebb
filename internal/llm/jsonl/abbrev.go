package jsonl

// opTypeKey reads the operation/signal discriminator off a raw decoded
// line. The wire form uses either the abbreviated "t" or the long-form
// "type"; "t" wins if both are present, which matters for rel.set where
// "type" is also the relationship-type field and must survive expansion
// untouched.
func opTypeKey(raw map[string]any) (string, bool) {
	if t, ok := raw["t"].(string); ok && t != "" {
		return t, true
	}
	if t, ok := raw["type"].(string); ok && t != "" {
		return t, true
	}
	return "", false
}

// expandAbbreviations renames the remaining wire-level short keys to their
// canonical form (spec §4.3: "t→type, p→props, id→id, ref→ref, from→from,
// to→to, parent→parent, display→display"). It deliberately leaves "t"
// unrenamed here: the caller has already pulled the discriminator out via
// opTypeKey, and blindly renaming t→type would clobber rel.set's own
// "type" field (the relationship type) when both keys are present on the
// same line.
func expandAbbreviations(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "t" {
			continue
		}
		canon, ok := abbrevKey[k]
		if !ok {
			canon = k
		}
		out[canon] = v
	}
	return out
}

var abbrevKey = map[string]string{
	"p": "props",

	"id":      "id",
	"ref":     "ref",
	"from":    "from",
	"to":      "to",
	"parent":  "parent",
	"display": "display",
}
