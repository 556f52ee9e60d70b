package vm

import "fmt"

// Label is an opaque control-flow target, compared by equality (spec §3).
type Label string

// LabelGen is the process-wide-in-spirit, session-scoped-in-practice label
// counter of spec §2/§9: "the only non-local mutable state in the
// compiler", exposed here as an explicit counter owned by a compilation
// session rather than a true global, with a documented Reset.
type LabelGen struct {
	next int
}

// NewLabelGen returns a label generator starting at L0.
func NewLabelGen() *LabelGen {
	return &LabelGen{}
}

// Fresh returns a new, never-before-issued label: L0, L1, L2, ...
func (g *LabelGen) Fresh() Label {
	l := Label(fmt.Sprintf("L%d", g.next))
	g.next++
	return l
}

// Reset rewinds the counter so the next Fresh() call issues L0 again.
// Callers reset between independent top-level compilations.
func (g *LabelGen) Reset() {
	g.next = 0
}
