package compiler

// Gap records one predicate node that compiled to an approximation.
//
// The approximation never excludes a document the original predicate would
// match; callers re-evaluate the original predicate over the results to
// drop the extras.
type Gap struct {
	// Node is the predicate kind, for example "like" or "t_meets".
	Node string `json:"node"`

	// Field is the attribute the node tested, if any.
	Field string `json:"field,omitempty"`

	// Reason says why no exact translation exists.
	Reason string `json:"reason"`
}

// tracker accumulates gaps for one compilation. A compilation is fully
// supported exactly when no node reported a gap, which is the conjunction
// of every node's support.
type tracker struct {
	gaps []Gap
}

func (t *tracker) unsupported(node, field, reason string) {
	t.gaps = append(t.gaps, Gap{Node: node, Field: field, Reason: reason})
}

func (t *tracker) fullySupported() bool {
	return len(t.gaps) == 0
}

// result returns a copy of the gaps, never nil.
func (t *tracker) result() []Gap {
	out := make([]Gap, len(t.gaps))
	copy(out, t.gaps)
	return out
}
