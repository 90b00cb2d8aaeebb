package reducer

// OpType is the wire-level (post-abbreviation-expansion) operation type tag.
type OpType string

const (
	OpMetaSet       OpType = "meta.set"
	OpEntityCreate  OpType = "entity.create"
	OpEntityUpdate  OpType = "entity.update"
	OpEntityRemove  OpType = "entity.remove"
	OpEntityMove    OpType = "entity.move"
	OpEntityReorder OpType = "entity.reorder"
	OpRelSet        OpType = "rel.set"
	OpRelRemove     OpType = "rel.remove"
	OpStyleSet      OpType = "style.set"
	OpStyleEntity   OpType = "style.entity"
	OpMetaAnnotate  OpType = "meta.annotate"
)

// knownOpTypes is consulted before anything else; a type outside this set is
// always UnknownType, never MalformedPayload.
var knownOpTypes = map[OpType]bool{
	OpMetaSet: true, OpEntityCreate: true, OpEntityUpdate: true,
	OpEntityRemove: true, OpEntityMove: true, OpEntityReorder: true,
	OpRelSet: true, OpRelRemove: true, OpStyleSet: true,
	OpStyleEntity: true, OpMetaAnnotate: true,
}

// Operation is one expanded-form mutation line. Only the fields relevant to
// Type are populated by the splitter; the reducer ignores the rest.
type Operation struct {
	Type OpType

	// entity.create / entity.update / style.entity
	ID      string
	Parent  string
	Display string
	Props   map[string]any
	Ref     string

	// entity.move
	Position *int

	// entity.reorder
	Children []string

	// rel.set / rel.remove
	From        string
	To          string
	RelType     string
	Cardinality string

	// meta.set / style.set / meta.annotate
	// (reuses Props)
}
