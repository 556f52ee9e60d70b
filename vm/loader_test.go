package vm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"jargon/vm"
)

func TestLoadResolvesLabels(t *testing.T) {
	listing := vm.Listing{
		{Op: vm.OpGoto, Target: vm.Location{Label: "skip"}},
		{Op: vm.OpPush, Lit: vm.IntItem(1)},
		{Op: vm.OpLabel, Here: "skip"},
		{Op: vm.OpHalt},
	}

	prog, err := vm.Load(listing)
	require.NoError(t, err)
	require.True(t, prog.Code[0].Target.Resolved)
	require.Equal(t, 2, prog.Code[0].Target.Addr)
}

func TestLoadUnresolvedLabelErrors(t *testing.T) {
	listing := vm.Listing{
		{Op: vm.OpGoto, Target: vm.Location{Label: "nowhere"}},
		{Op: vm.OpHalt},
	}

	_, err := vm.Load(listing)
	require.Error(t, err)
	require.ErrorIs(t, err, vm.ErrUnresolvedLabel)
}

func TestLoadResolvesClosureEntry(t *testing.T) {
	listing := vm.Listing{
		{Op: vm.OpMkClosure, Entry: vm.Location{Label: "body"}, NumFree: 0},
		{Op: vm.OpHalt},
		{Op: vm.OpLabel, Here: "body"},
		{Op: vm.OpLookup, Path: vm.StackLocation(-2)},
		{Op: vm.OpReturn},
	}

	prog, err := vm.Load(listing)
	require.NoError(t, err)
	require.True(t, prog.Code[0].Entry.Resolved)
	require.Equal(t, 2, prog.Code[0].Entry.Addr)
}

func TestLoadPreservesCodeBound(t *testing.T) {
	listing := vm.Listing{{Op: vm.OpPush, Lit: vm.IntItem(1)}, {Op: vm.OpHalt}}
	prog, err := vm.Load(listing)
	require.NoError(t, err)
	require.Equal(t, len(listing), prog.CodeBound)
}
