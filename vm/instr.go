package vm

import "fmt"

/*
	Jargon's instruction set (spec §4.1). Every instruction is one Op plus
	whatever operand it needs; unused operand fields are simply zero. This
	mirrors the teacher's Instruction{code, register, arg} layout (see
	compile.go upstream) generalized from a flat 32-bit arg to the richer
	operands Jargon's stack-machine-with-closures needs: literals, a unary
	or binary operator selector, a resolved-at-load-time Location for every
	control transfer, and a ValuePath for LOOKUP.

	Arithmetic / logic:
		PUSH(v), UNARY(op), OPER(op)
	Stack plumbing:
		SWAP, POP, LABEL(l)
	Product / sum / reference:
		MK_PAIR, FST, SND, MK_INL, MK_INR, CASE(addr), MK_REF, DEREF, ASSIGN
	Control flow:
		TEST(addr), GOTO(addr), HALT
	Functions:
		MK_CLOSURE(entry, n), APPLY, RETURN, LOOKUP(path)
	Exceptions:
		TRY(addr), UNTRY, RAISE
*/

type Op byte

const (
	OpPush Op = iota
	OpUnary
	OpOper
	OpSwap
	OpPop
	OpLabel
	OpMkPair
	OpFst
	OpSnd
	OpMkInl
	OpMkInr
	OpCase
	OpMkRef
	OpDeref
	OpAssign
	OpTest
	OpGoto
	OpHalt
	OpMkClosure
	OpApply
	OpReturn
	OpLookup
	OpTry
	OpUntry
	OpRaise
)

var opNames = map[Op]string{
	OpPush:      "PUSH",
	OpUnary:     "UNARY",
	OpOper:      "OPER",
	OpSwap:      "SWAP",
	OpPop:       "POP",
	OpLabel:     "LABEL",
	OpMkPair:    "MK_PAIR",
	OpFst:       "FST",
	OpSnd:       "SND",
	OpMkInl:     "MK_INL",
	OpMkInr:     "MK_INR",
	OpCase:      "CASE",
	OpMkRef:     "MK_REF",
	OpDeref:     "DEREF",
	OpAssign:    "ASSIGN",
	OpTest:      "TEST",
	OpGoto:      "GOTO",
	OpHalt:      "HALT",
	OpMkClosure: "MK_CLOSURE",
	OpApply:     "APPLY",
	OpReturn:    "RETURN",
	OpLookup:    "LOOKUP",
	OpTry:       "TRY",
	OpUntry:     "UNTRY",
	OpRaise:     "RAISE",
}

func (op Op) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return "?op?"
}

// Location is spec §3's (label, resolved-code-index?) pair: Addr is
// meaningless until Resolved is set by the loader (spec §4.3).
type Location struct {
	Label    Label
	Resolved bool
	Addr     int
}

func unresolved(l Label) Location { return Location{Label: l} }

func (loc Location) String() string {
	if loc.Resolved {
		return fmt.Sprintf("%s(=%d)", loc.Label, loc.Addr)
	}
	return string(loc.Label)
}

// Instruction is one entry in a Listing or, once loaded, a Program's code
// array. Only the fields relevant to Op are meaningful; see the comment
// block above for which.
type Instruction struct {
	Op Op

	// OpPush
	Lit StackItem

	// OpUnary
	UOp UnaryOp
	// OpOper
	BOp BinOp

	// OpLabel
	Here Label

	// OpTest, OpGoto, OpCase, OpTry
	Target Location

	// OpMkClosure
	Entry   Location
	NumFree int

	// OpLookup
	Path ValuePath
}

// UnaryOp is the operator set accepted by UNARY (spec §4.1).
type UnaryOp byte

const (
	UNot UnaryOp = iota
	UNeg
	URead
)

func (op UnaryOp) String() string {
	switch op {
	case UNot:
		return "NOT"
	case UNeg:
		return "NEG"
	case URead:
		return "READ"
	default:
		return "?unaryop?"
	}
}

// BinOp is the operator set accepted by OPER (spec §4.1).
type BinOp byte

const (
	BAnd BinOp = iota
	BOr
	BEqB
	BLt
	BEqI
	BAdd
	BSub
	BMul
	BDiv
)

func (op BinOp) String() string {
	switch op {
	case BAnd:
		return "AND"
	case BOr:
		return "OR"
	case BEqB:
		return "EQB"
	case BLt:
		return "LT"
	case BEqI:
		return "EQI"
	case BAdd:
		return "ADD"
	case BSub:
		return "SUB"
	case BMul:
		return "MUL"
	case BDiv:
		return "DIV"
	default:
		return "?binop?"
	}
}

// Listing is a compiled-but-not-yet-loaded instruction stream: a Compile
// result where every jump/closure Location still carries only a Label.
type Listing []Instruction

// String renders a listing one instruction per line, used by the
// pretty-printer (FormatListing in print.go).
func (l Listing) String() string {
	out := ""
	for i, instr := range l {
		out += fmt.Sprintf("%4d: %s\n", i, FormatInstruction(instr))
	}
	return out
}

// FormatInstruction renders a single instruction the way a disassembler
// would, resolved or not.
func FormatInstruction(instr Instruction) string {
	switch instr.Op {
	case OpPush:
		return fmt.Sprintf("%s %s", instr.Op, instr.Lit)
	case OpUnary:
		return fmt.Sprintf("%s %s", instr.Op, instr.UOp)
	case OpOper:
		return fmt.Sprintf("%s %s", instr.Op, instr.BOp)
	case OpLabel:
		return fmt.Sprintf("%s %s:", instr.Op, instr.Here)
	case OpTest, OpGoto, OpCase, OpTry:
		return fmt.Sprintf("%s %s", instr.Op, instr.Target)
	case OpMkClosure:
		return fmt.Sprintf("%s %s %d", instr.Op, instr.Entry, instr.NumFree)
	case OpLookup:
		return fmt.Sprintf("%s %s", instr.Op, instr.Path)
	default:
		return instr.Op.String()
	}
}
