package reducer

// RejectReason is the closed set of reasons a reduce call can reject an
// operation (spec §4.2). There is no reason outside this set.
type RejectReason string

const (
	UnknownType        RejectReason = "UnknownType"
	MalformedPayload    RejectReason = "MalformedPayload"
	MissingParent       RejectReason = "MissingParent"
	DuplicateId         RejectReason = "DuplicateId"
	MissingRef          RejectReason = "MissingRef"
	RefRemoved          RejectReason = "RefRemoved"
	CyclicMove          RejectReason = "CyclicMove"
	ReorderMismatch     RejectReason = "ReorderMismatch"
	CardinalityClash    RejectReason = "CardinalityClash"
	InvariantViolation  RejectReason = "InvariantViolation"
)

// Outcome is the result of one reduce call: either Accepted, or Rejected
// with exactly one reason from the closed set above.
type Outcome struct {
	Accepted bool
	Reason   RejectReason
}

// Accepted is the outcome value for a successful reduce.
func accepted() Outcome { return Outcome{Accepted: true} }

// rejected builds the outcome value for a failed reduce.
func rejected(reason RejectReason) Outcome { return Outcome{Accepted: false, Reason: reason} }
