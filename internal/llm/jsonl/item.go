package jsonl

import "github.com/zcancio/aide-sub002/internal/domain/reducer"

// ItemKind distinguishes what a splitter Item carries.
type ItemKind int

const (
	ItemOperation ItemKind = iota
	ItemSignal
	ItemParseFailure
)

// Item is one element of the splitter's output sequence: exactly one of
// Operation, Signal, or a ParseFailure marker, tagged by Kind so callers
// don't need a type switch on pointer nil-ness.
type Item struct {
	Kind      ItemKind
	Operation reducer.Operation
	Signal    Signal
}
