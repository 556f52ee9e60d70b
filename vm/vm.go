package vm

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// InputProvider feeds UNARY(READ): one blocking integer read per call. The
// teacher's devices.go modeled I/O as a registered device; Jargon has no
// devices, only this one synchronous channel (spec §4.1, Non-goals).
type InputProvider interface {
	ReadInt() (int, error)
}

// StdinInput reads whitespace-separated integers from an io.Reader, stdin
// by default.
type StdinInput struct {
	r *bufio.Reader
}

func NewStdinInput(r io.Reader) *StdinInput {
	return &StdinInput{r: bufio.NewReader(r)}
}

func (s *StdinInput) ReadInt() (int, error) {
	var n int
	_, err := fmt.Fscan(s.r, &n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// GCHook is consulted when an allocation would exceed heap capacity. It
// reports whether it made room; returning false is a hard
// StatusHeapIndexOutOfBound (spec Non-goals: "no garbage collection"). A
// real collector could be plugged in here without touching Step.
type GCHook func(vm *VM, needed int) bool

// NoGC never reclaims space; it is the default GCHook.
func NoGC(vm *VM, needed int) bool { return false }

// TraceSink observes VM execution for diagnostics (spec §9's "execution
// trace" facility, generalized from the teacher's printProgram/fmt.Printf
// debug prints into a pluggable sink).
type TraceSink interface {
	Instr(cp int, instr Instruction)
	State(vm *VM)
	Fault(err error)
}

// NoopTrace discards everything; it is the default TraceSink.
type NoopTrace struct{}

func (NoopTrace) Instr(int, Instruction) {}
func (NoopTrace) State(*VM)              {}
func (NoopTrace) Fault(error)            {}

// Config bundles the knobs New needs: capacities, I/O, and tracing. Zero
// values are filled in with sane defaults by New.
type Config struct {
	StackMax int
	HeapMax  int
	Input    InputProvider
	Trace    TraceSink
	GC       GCHook
}

// DefaultConfig returns a Config reading from stdin with no tracing and
// generous, arbitrary capacities.
func DefaultConfig() Config {
	return Config{
		StackMax: 4096,
		HeapMax:  4096,
		Input:    NewStdinInput(os.Stdin),
		Trace:    NoopTrace{},
		GC:       NoGC,
	}
}

// VM is Jargon's execution state: a flat code array plus the stack, heap,
// and five registers spec §3 names. There is no instruction cache, no
// threading, no persistence — one VM runs one Program to completion or to
// a terminal Status.
type VM struct {
	Code []Instruction

	Stack []StackItem
	Heap  []HeapItem

	SP int // stack pointer: index of the first free stack slot
	FP int // frame pointer: base of the current call frame
	EP int // exception pointer: advisory only (spec §9 Open Question decision)
	CP int // code pointer: index of the next instruction to execute
	HP int // heap pointer: index of the first free heap slot

	Status Status
	fault  error // set alongside StatusMalformed; nil otherwise

	Input InputProvider
	Trace TraceSink
	GC    GCHook
}

// New builds a VM ready to run prog, with the synthetic first frame
// already installed (spec §4.4): FP is set to 0, then FP(0) and RA(0) are
// pushed, exactly as APPLY would push a caller's saved FP and return
// address. A top-level RETURN therefore lands CP on RA(0), FP on FP(0),
// and SP on -2 relative to the frame... which is why main code must HALT
// rather than RETURN; RETURNing out of the outermost frame is a malformed
// program, not something New needs to special-case.
func New(prog *Program, cfg Config) *VM {
	if cfg.Input == nil {
		cfg.Input = NewStdinInput(os.Stdin)
	}
	if cfg.Trace == nil {
		cfg.Trace = NoopTrace{}
	}
	if cfg.GC == nil {
		cfg.GC = NoGC
	}
	if cfg.StackMax <= 0 {
		cfg.StackMax = 4096
	}
	if cfg.HeapMax <= 0 {
		cfg.HeapMax = 4096
	}

	vm := &VM{
		Code:   prog.Code,
		Stack:  make([]StackItem, cfg.StackMax),
		Heap:   make([]HeapItem, cfg.HeapMax),
		Status: StatusRunning,
		Input:  cfg.Input,
		Trace:  cfg.Trace,
		GC:     cfg.GC,
	}

	vm.Stack[0] = FramePtrItem(0)
	vm.Stack[1] = ReturnAddrItem(0)
	vm.SP = 2
	vm.FP = 0

	return vm
}

// Run steps the VM until Status leaves StatusRunning, returning the final
// status. A non-nil error is only ever a *FaultError — every other
// terminal condition is communicated purely through Status (spec §7.3).
func (vm *VM) Run() (Status, error) {
	for vm.Status == StatusRunning {
		if err := vm.Step(); err != nil {
			vm.Status = StatusMalformed
			vm.fault = err
			vm.Trace.Fault(err)
			return vm.Status, err
		}
	}
	return vm.Status, nil
}

// Fault returns the error that put the VM into StatusMalformed, or nil if
// it never did.
func (vm *VM) Fault() error { return vm.fault }

// Result returns the value left on top of the stack once the VM has
// halted, decoded per spec §6. It is only meaningful when Status ==
// StatusHalted.
func (vm *VM) Result() (Value, error) {
	if vm.Status != StatusHalted {
		return Value{}, fmt.Errorf("Result called with Status=%s, want Halted", vm.Status)
	}
	if vm.SP == 0 {
		return Value{}, fmt.Errorf("Result: stack empty at halt")
	}
	return vm.decodeStack(vm.Stack[vm.SP-1])
}

func (vm *VM) pushStack(item StackItem) bool {
	if vm.SP >= len(vm.Stack) {
		vm.Status = StatusStackIndexOutOfBound
		return false
	}
	vm.Stack[vm.SP] = item
	vm.SP++
	return true
}

func (vm *VM) popStack() (StackItem, bool) {
	if vm.SP <= 0 {
		vm.Status = StatusStackUnderflow
		return StackItem{}, false
	}
	vm.SP--
	return vm.Stack[vm.SP], true
}

// peekStack reads the cell offsetFromTop cells below the top (0 = top
// itself) without popping it.
func (vm *VM) peekStack(offsetFromTop int) (StackItem, bool) {
	idx := vm.SP - 1 - offsetFromTop
	if idx < 0 {
		vm.Status = StatusStackUnderflow
		return StackItem{}, false
	}
	return vm.Stack[idx], true
}

// stackAt reads an absolute stack index, used for frame-relative LOOKUPs
// and RETURN's read of the saved FP/RA cells.
func (vm *VM) stackAt(idx int) (StackItem, bool) {
	if idx < 0 || idx >= vm.SP {
		vm.Status = StatusStackIndexOutOfBound
		return StackItem{}, false
	}
	return vm.Stack[idx], true
}

func (vm *VM) allocate(n int) (int, bool) {
	if vm.HP+n > len(vm.Heap) {
		if !vm.GC(vm, n) || vm.HP+n > len(vm.Heap) {
			vm.Status = StatusHeapIndexOutOfBound
			return 0, false
		}
	}
	addr := vm.HP
	vm.HP += n
	return addr, true
}

func (vm *VM) heapAt(idx int) (HeapItem, bool) {
	if idx < 0 || idx >= vm.HP {
		vm.Status = StatusHeapIndexOutOfBound
		return HeapItem{}, false
	}
	return vm.Heap[idx], true
}

func (vm *VM) setHeapAt(idx int, item HeapItem) bool {
	if idx < 0 || idx >= len(vm.Heap) {
		vm.Status = StatusHeapIndexOutOfBound
		return false
	}
	vm.Heap[idx] = item
	return true
}
