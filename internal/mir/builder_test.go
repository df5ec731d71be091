// Copyright 2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netpfl/compiler/internal/hir"
	"github.com/netpfl/compiler/internal/mir"
	"github.com/netpfl/compiler/internal/symtab"
)

func TestMIROpMapsIntArithmetic(t *testing.T) {
	t.Parallel()

	op, ok := mir.MIROp(hir.OpAddI)
	require.True(t, ok)
	assert.Equal(t, mir.OpAdd, op)

	op, ok = mir.MIROp(hir.OpShlI)
	require.True(t, ok)
	assert.Equal(t, mir.OpShl, op)
}

func TestMIROpUnrecognisedStatementOp(t *testing.T) {
	t.Parallel()

	_, ok := mir.MIROp(hir.OpLabel)
	assert.False(t, ok)
}

func TestStoreInfoAlwaysSideEffecting(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	proto, err := st.AddProto(1, "ip")
	require.NoError(t, err)
	ttl := st.StoreProtoField(proto, &symtab.Field{Name: "ttl", Kind: symtab.FieldFixed, FixedLen: 1})

	b := mir.NewBuilder()
	v := b.Const(1)
	h := b.StoreInfo(ttl, v)

	n := b.Arena().Get(h)
	assert.True(t, n.SideEffecting)
	assert.Same(t, ttl, n.Sym.Field)
}

func TestCopRunBumpsPacketBarrier(t *testing.T) {
	t.Parallel()

	b := mir.NewBuilder()
	before := b.Const(1)
	b.CopRun("MATCH_WITH_OFFSET")
	after := b.Const(2)

	beforeNode := b.Arena().Get(before)
	afterNode := b.Arena().Get(after)
	assert.Less(t, beforeNode.Barrier.PacketVersion, afterNode.Barrier.PacketVersion)
}

func TestNewRegMonotonic(t *testing.T) {
	t.Parallel()

	b := mir.NewBuilder()
	r1 := b.NewReg()
	r2 := b.NewReg()
	assert.NotEqual(t, r1, r2)
}

func TestProgramCollectsInstructionsInOrder(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	l := st.NewLabel(false)

	b := mir.NewBuilder()
	b.Const(1)
	b.Label(l)
	b.Jump(l)

	prog := b.Program()
	require.Len(t, prog.Instr, 3)
	assert.Equal(t, mir.OpJump, prog.Arena.Get(prog.Instr[2]).Op)
}
