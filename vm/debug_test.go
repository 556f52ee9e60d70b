package vm_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"jargon/examples"
	"jargon/vm"
)

func compileAndLoad(t *testing.T, p examples.Program) *vm.Program {
	t.Helper()
	listing, err := vm.Compile(p.Expr)
	require.NoError(t, err)
	prog, err := vm.Load(listing)
	require.NoError(t, err)
	return prog
}

func TestDebuggerRunStopsAtBreakpointThenContinuesToHalt(t *testing.T) {
	prog := compileAndLoad(t, examples.Arithmetic)
	machine := vm.New(prog, vm.DefaultConfig())

	var out bytes.Buffer
	dbg := vm.NewDebuggerWithIO(machine, strings.NewReader("\n\n\n\n\n\n\n\n"), &out)
	dbg.SetBreakpoint(1)

	status, err := dbg.Run()
	require.NoError(t, err)
	require.Equal(t, vm.StatusHalted, status)
	require.Contains(t, out.String(), "breakpoint at 1")
}

func TestDebuggerClearBreakpointRunsToCompletionWithoutPausing(t *testing.T) {
	prog := compileAndLoad(t, examples.Arithmetic)
	machine := vm.New(prog, vm.DefaultConfig())

	var out bytes.Buffer
	dbg := vm.NewDebuggerWithIO(machine, strings.NewReader(""), &out)
	dbg.SetBreakpoint(1)
	dbg.ClearBreakpoint(1)

	status, err := dbg.Run()
	require.NoError(t, err)
	require.Equal(t, vm.StatusHalted, status)
	require.NotContains(t, out.String(), "breakpoint")
}

func TestDebuggerStepOnceAdvancesOneInstructionAtATime(t *testing.T) {
	prog := compileAndLoad(t, examples.Arithmetic)
	machine := vm.New(prog, vm.DefaultConfig())

	var out bytes.Buffer
	dbg := vm.NewDebuggerWithIO(machine, strings.NewReader(""), &out)

	steps := 0
	for machine.Status == vm.StatusRunning {
		require.NoError(t, dbg.StepOnce())
		steps++
		require.Less(t, steps, 1000, "StepOnce did not terminate")
	}

	require.Equal(t, vm.StatusHalted, machine.Status)
	require.Equal(t, len(prog.Code), steps)
	require.Contains(t, out.String(), "status=")
}
