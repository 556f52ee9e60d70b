package vm

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
)

// DecodedKind discriminates the shapes a halted VM's final stack cell can
// decode into (spec §6).
type DecodedKind int

const (
	KindInt DecodedKind = iota
	KindBool
	KindUnit
	KindPair
	KindSum
	KindClosure
)

// Value is the Go-native decoding of a Jargon runtime value, recursively
// unpacking HI chains the way spec §6 describes: pairs decode to both
// projections, INL/INR decode to a tagged payload, and a closure decodes
// to an opaque marker since its code/environment aren't surface values.
type Value struct {
	Kind DecodedKind

	Int  int
	Bool bool

	Fst, Snd *Value // Kind == KindPair

	Right   bool   // Kind == KindSum: false == inl, true == inr
	Payload *Value // Kind == KindSum
}

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.Itoa(v.Int)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindUnit:
		return "()"
	case KindPair:
		return fmt.Sprintf("(%s, %s)", v.Fst, v.Snd)
	case KindSum:
		tag := "inl"
		if v.Right {
			tag = "inr"
		}
		return fmt.Sprintf("%s(%s)", tag, v.Payload)
	case KindClosure:
		return "<closure>"
	default:
		return "?value?"
	}
}

func (vm *VM) decodeStack(item StackItem) (Value, error) {
	switch item.Tag {
	case SInt:
		return Value{Kind: KindInt, Int: item.N}, nil
	case SBool:
		return Value{Kind: KindBool, Bool: item.Bool}, nil
	case SUnit:
		return Value{Kind: KindUnit}, nil
	case SHeapRef:
		return vm.decodeHeap(item.N)
	default:
		return Value{}, fmt.Errorf("cannot decode stack cell of kind %s as a value", item.Tag)
	}
}

func (vm *VM) decodeHeap(addr int) (Value, error) {
	header, ok := vm.heapAt(addr)
	if !ok {
		return Value{}, fmt.Errorf("decode: heap address %d out of range", addr)
	}
	if header.Tag != HHeader {
		return Value{}, fmt.Errorf("decode: expected HEADER at %d, got %s", addr, header.Tag)
	}
	switch header.Header {
	case HeaderPair:
		left, err := vm.decodeHeapCell(addr + 1)
		if err != nil {
			return Value{}, err
		}
		right, err := vm.decodeHeapCell(addr + 2)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindPair, Fst: &left, Snd: &right}, nil
	case HeaderInl, HeaderInr:
		payload, err := vm.decodeHeapCell(addr + 1)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindSum, Right: header.Header == HeaderInr, Payload: &payload}, nil
	case HeaderClosure:
		return Value{Kind: KindClosure}, nil
	default:
		return Value{}, fmt.Errorf("decode: unrecognized header at %d", addr)
	}
}

func (vm *VM) decodeHeapCell(idx int) (Value, error) {
	cell, ok := vm.heapAt(idx)
	if !ok {
		return Value{}, fmt.Errorf("decode: heap address %d out of range", idx)
	}
	switch cell.Tag {
	case HInt:
		return Value{Kind: KindInt, Int: cell.N}, nil
	case HBool:
		return Value{Kind: KindBool, Bool: cell.Bool}, nil
	case HUnit:
		return Value{Kind: KindUnit}, nil
	case HHeapRef:
		return vm.decodeHeap(cell.N)
	default:
		return Value{}, fmt.Errorf("decode: cell at %d holds non-value kind %s", idx, cell.Tag)
	}
}

// ColorTrace prints every instruction as it executes, using fatih/color
// the way the teacher's run.go colorized its own step-by-step dump:
// control flow in cyan, faults in red, everything else plain.
type ColorTrace struct {
	instrColor *color.Color
	jumpColor  *color.Color
	faultColor *color.Color
}

func NewColorTrace() *ColorTrace {
	return &ColorTrace{
		instrColor: color.New(color.FgWhite),
		jumpColor:  color.New(color.FgCyan),
		faultColor: color.New(color.FgRed, color.Bold),
	}
}

func (t *ColorTrace) Instr(cp int, instr Instruction) {
	switch instr.Op {
	case OpGoto, OpTest, OpCase, OpTry, OpApply, OpReturn:
		t.jumpColor.Printf("%4d: %s\n", cp, FormatInstruction(instr))
	default:
		t.instrColor.Printf("%4d: %s\n", cp, FormatInstruction(instr))
	}
}

func (t *ColorTrace) State(vm *VM) {
	t.instrColor.Printf("  sp=%d fp=%d ep=%d hp=%d status=%s\n", vm.SP, vm.FP, vm.EP, vm.HP, vm.Status)
}

func (t *ColorTrace) Fault(err error) {
	t.faultColor.Printf("fault: %v\n", err)
}

// FormatListing renders a not-yet-loaded Listing (labels unresolved).
func FormatListing(l Listing) string { return l.String() }

// FormatProgram renders a loaded Program with every jump/closure target
// annotated with its resolved code index.
func FormatProgram(p *Program) string {
	out := ""
	for i, instr := range p.Code {
		out += fmt.Sprintf("%4d: %s\n", i, FormatInstruction(instr))
	}
	return out
}
