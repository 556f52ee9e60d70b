package vm

import (
	"fmt"

	"github.com/pkg/errors"
)

// Compiler errors (spec §7.1): fatal, abort emission. Wrapped with
// github.com/pkg/errors so a failure keeps the causal chain from the point
// it was first detected (unknown identifier, malformed AST) up through
// main.go's top-level report.
var (
	// ErrUnknownIdentifier is the sentinel a LOOKUP of an unbound name wraps.
	ErrUnknownIdentifier = errors.New("unknown identifier")
	// ErrMalformedAST is the sentinel a structurally invalid AST node wraps.
	ErrMalformedAST = errors.New("malformed AST")
)

func errUnknownIdentifier(name string) error {
	return errors.Wrapf(ErrUnknownIdentifier, "%q", name)
}

// Loader errors (spec §7.2): fatal, reference to an unresolved label.
var ErrUnresolvedLabel = errors.New("unresolved label")

func errUnresolvedLabel(l Label) error {
	return errors.Wrapf(ErrUnresolvedLabel, "%q", l)
}

// FaultError is the "malformed state" class of spec §7.3: a precondition
// violation (e.g. APPLY on a non-closure, FST on a non-pair) that the VM
// cannot recover from. Per the design note in spec §9, this is reified as
// a returned error from Step rather than a panic or process abort, so
// tests can assert on it; Raise/Try never catches it.
type FaultError struct {
	CP  int
	Op  Op
	Msg string
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("malformed state at %d (%s): %s", e.CP, e.Op, e.Msg)
}

func fault(cp int, op Op, format string, args ...any) *FaultError {
	return &FaultError{CP: cp, Op: op, Msg: fmt.Sprintf(format, args...)}
}
