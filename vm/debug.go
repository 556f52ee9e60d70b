package vm

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Debugger wraps a VM with breakpoints and an interactive step prompt,
// adapted from the teacher's RunProgramDebugMode: stop at a breakpoint,
// dump registers and the top of the stack, wait for the operator to hit
// Enter, continue.
type Debugger struct {
	VM          *VM
	Breakpoints map[int]bool

	in  *bufio.Scanner
	out io.Writer
}

func NewDebugger(vm *VM) *Debugger {
	return NewDebuggerWithIO(vm, os.Stdin, os.Stdout)
}

// NewDebuggerWithIO is NewDebugger with the prompt's input/output redirected,
// so a driver (or a test) can script the "press enter to continue" prompt
// instead of blocking on the real terminal.
func NewDebuggerWithIO(vm *VM, in io.Reader, out io.Writer) *Debugger {
	return &Debugger{
		VM:          vm,
		Breakpoints: map[int]bool{},
		in:          bufio.NewScanner(in),
		out:         out,
	}
}

func (d *Debugger) SetBreakpoint(cp int) { d.Breakpoints[cp] = true }

func (d *Debugger) ClearBreakpoint(cp int) { delete(d.Breakpoints, cp) }

// Run steps the VM to completion, pausing for input at every registered
// breakpoint.
func (d *Debugger) Run() (Status, error) {
	for d.VM.Status == StatusRunning {
		if d.Breakpoints[d.VM.CP] {
			d.pause()
		}
		if err := d.VM.Step(); err != nil {
			return d.VM.Status, err
		}
	}
	return d.VM.Status, nil
}

func (d *Debugger) pause() {
	fmt.Fprintf(d.out, "breakpoint at %d: %s\n", d.VM.CP, FormatInstruction(d.VM.Code[d.VM.CP]))
	d.printState()
	fmt.Fprint(d.out, "(continue) > ")
	d.in.Scan()
}

// StepOnce executes one instruction and prints it plus the resulting
// state, regardless of breakpoints. Used by a -debug CLI mode that
// single-steps every instruction rather than only stopping at
// breakpoints.
func (d *Debugger) StepOnce() error {
	if d.VM.Status == StatusRunning {
		fmt.Fprintf(d.out, "%4d: %s\n", d.VM.CP, FormatInstruction(d.VM.Code[d.VM.CP]))
	}
	err := d.VM.Step()
	d.printState()
	return err
}

func (d *Debugger) printState() {
	fmt.Fprintf(d.out, "  sp=%d fp=%d ep=%d cp=%d hp=%d status=%s\n",
		d.VM.SP, d.VM.FP, d.VM.EP, d.VM.CP, d.VM.HP, d.VM.Status)

	const window = 5
	fmt.Fprint(d.out, "  stack:")
	for i := d.VM.SP - 1; i >= 0 && i >= d.VM.SP-window; i-- {
		fmt.Fprintf(d.out, " [%d]=%s", i, d.VM.Stack[i])
	}
	fmt.Fprintln(d.out)
}
