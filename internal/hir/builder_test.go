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

package hir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netpfl/compiler/internal/hir"
	"github.com/netpfl/compiler/internal/symtab"
)

func TestDivIByPowerOfTwoRewritesToShr(t *testing.T) {
	t.Parallel()

	b := hir.NewBuilder()
	lhs := b.Const(100)
	rhs := b.Const(8)
	h := b.DivI(lhs, rhs)

	n := b.Arena().Get(h)
	require.Equal(t, hir.OpShrI, n.Op)
	shiftAmount := b.Arena().Get(n.Kids[1])
	assert.Equal(t, int64(3), shiftAmount.Value)
}

func TestDivIByNonPowerOfTwoStaysDivI(t *testing.T) {
	t.Parallel()

	b := hir.NewBuilder()
	h := b.DivI(b.Const(100), b.Const(7))

	n := b.Arena().Get(h)
	assert.Equal(t, hir.OpDivI, n.Op)
}

func TestGenAssignsToFieldSymbol(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	proto, err := st.AddProto(1, "ip")
	require.NoError(t, err)
	ttl := st.StoreProtoField(proto, &symtab.Field{Name: "ttl", Kind: symtab.FieldFixed, FixedLen: 1})

	b := hir.NewBuilder()
	h := b.Gen(hir.Sym{Field: ttl}, b.Const(64))

	n := b.Arena().Get(h)
	assert.Equal(t, hir.OpGen, n.Op)
	assert.Same(t, ttl, n.Sym.Field)
}

func TestIfBuildsThenAndElseBlocks(t *testing.T) {
	t.Parallel()

	b := hir.NewBuilder()
	cond := b.CmpGt(b.Const(1), b.Const(0))
	then := hir.Block{b.Comment("taken")}
	els := hir.Block{b.Comment("not taken")}
	h := b.If(cond, then, els)

	n := b.Arena().Get(h)
	require.Len(t, n.Then, 1)
	require.Len(t, n.Else, 1)
	assert.Equal(t, "taken", b.Arena().Get(n.Then[0]).Str)
}

func TestIfWithoutElse(t *testing.T) {
	t.Parallel()

	b := hir.NewBuilder()
	h := b.If(b.Const(1), hir.Block{b.Comment("x")}, nil)

	n := b.Arena().Get(h)
	assert.Nil(t, n.Else)
}

func TestSwitchCasesAndDefault(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	c1 := st.AddConstant(int64(1))
	c2 := st.AddConstant(int64(2))

	b := hir.NewBuilder()
	subject := b.Const(1)
	cases := []hir.CaseArm{
		{Value: c1, Body: hir.Block{b.Comment("one")}},
		{Value: c2, Body: hir.Block{b.Comment("two")}},
	}
	h := b.Switch(subject, cases, hir.Block{b.Comment("other")})

	n := b.Arena().Get(h)
	require.Len(t, n.Cases, 2)
	assert.Same(t, c1, n.Cases[0].Value)
	require.Len(t, n.DefaultBody, 1)
}

func TestFieldInfoMarkerCarriesInstanceSlotOnlyWhenGiven(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	proto, err := st.AddProto(1, "ip")
	require.NoError(t, err)
	opt := st.StoreProtoField(proto, &symtab.Field{Name: "opt", Kind: symtab.FieldVariable, MultiProto: true})
	counter, err := st.AddVariable("opt_count", symtab.VarInt)
	require.NoError(t, err)

	b := hir.NewBuilder()
	h := b.FieldInfoMarker(opt, 12, counter)

	n := b.Arena().Get(h)
	assert.Equal(t, hir.OpFieldInfo, n.Op)
	assert.Equal(t, 12, n.PartitionOffset)
	assert.Same(t, counter, n.InstanceSlot)
}

func TestLabelJumpRoundTrip(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	l := st.NewLabel(false)

	b := hir.NewBuilder()
	labelStmt := b.LabelStmt(l)
	jumpStmt := b.Jump(l)

	assert.Same(t, l, b.Arena().Get(labelStmt).Target)
	assert.Same(t, l, b.Arena().Get(jumpStmt).Target)
}
