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

package lower_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netpfl/compiler/internal/filterfe"
	"github.com/netpfl/compiler/internal/fsa"
	"github.com/netpfl/compiler/internal/hir"
	"github.com/netpfl/compiler/internal/lower"
	"github.com/netpfl/compiler/internal/mir"
	"github.com/netpfl/compiler/internal/symtab"
)

func countOp(p *mir.Program, op mir.Op) int {
	n := 0
	for _, h := range p.Instr {
		if p.Arena.Get(h).Op == op {
			n++
		}
	}
	return n
}

func TestLowerSingleStateAcceptEmitsReturn(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	dfa := fsa.New[*symtab.Proto, fsa.Label, filterfe.Predicate]()
	s := dfa.State(dfa.Start)
	s.IsFinal = true
	s.IsAccepting = true

	trueLabel := st.NewLabel(false)
	falseLabel := st.NewLabel(false)

	prog := lower.Lower(dfa, st, trueLabel, falseLabel)

	require.NotEmpty(t, prog.Instr)
	last := prog.Arena.Get(prog.Instr[len(prog.Instr)-1])
	assert.Equal(t, mir.OpReturn, last.Op)
	assert.Equal(t, trueLabel, last.Target)
	assert.Equal(t, int64(1), last.Value)
}

func TestLowerRejectingStateJumpsToFalseLabel(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	dfa := fsa.New[*symtab.Proto, fsa.Label, filterfe.Predicate]()
	s := dfa.State(dfa.Start)
	s.IsFinal = true
	s.IsAccepting = false

	trueLabel := st.NewLabel(false)
	falseLabel := st.NewLabel(false)

	prog := lower.Lower(dfa, st, trueLabel, falseLabel)

	last := prog.Arena.Get(prog.Instr[len(prog.Instr)-1])
	assert.Equal(t, mir.OpReturn, last.Op)
	assert.Equal(t, falseLabel, last.Target)
	assert.Equal(t, int64(0), last.Value)
}

func TestLowerEmitsBeforeAndFormatForOwningState(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	ip, err := st.AddProto(1, "ip")
	require.NoError(t, err)
	ttl := st.StoreProtoField(ip, &symtab.Field{Name: "ttl", Kind: symtab.FieldFixed, FixedLen: 1})
	cfTemp, err := st.AddVariable("$currentoffset", symtab.VarInt)
	require.NoError(t, err)

	hb := hir.NewBuilder()
	assign := hb.Gen(hir.Sym{Variable: cfTemp}, hb.FieldRef(ttl))
	format := hb.Finish(hir.Block{assign})
	ip.FormatHIR = format

	dfa := fsa.New[*symtab.Proto, fsa.Label, filterfe.Predicate]()
	start := dfa.State(dfa.Start)
	start.HasInfo = true
	start.Info = ip
	start.IsFinal = true
	start.IsAccepting = true

	trueLabel := st.NewLabel(false)
	falseLabel := st.NewLabel(false)

	prog := lower.Lower(dfa, st, trueLabel, falseLabel)

	assert.Equal(t, 1, countOp(prog, mir.OpLoadField), "format section's lone field reference lowers to one LOADFIELD")
}

func TestLowerTransitionWithoutPredicateJumpsToTarget(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	dfa := fsa.New[*symtab.Proto, fsa.Label, filterfe.Predicate]()
	next := dfa.AddState()
	dfa.State(next).IsFinal = true
	dfa.State(next).IsAccepting = true
	dfa.AddTransition(dfa.Start, fsa.Transition[fsa.Label, filterfe.Predicate]{To: next})

	trueLabel := st.NewLabel(false)
	falseLabel := st.NewLabel(false)

	prog := lower.Lower(dfa, st, trueLabel, falseLabel)

	assert.Equal(t, 1, countOp(prog, mir.OpJump))
	assert.Equal(t, 1, countOp(prog, mir.OpReturn))
}

func TestLowerComplementTransitionJumpsToFalseLabel(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	dfa := fsa.New[*symtab.Proto, fsa.Label, filterfe.Predicate]()
	dfa.AddTransition(dfa.Start, fsa.Transition[fsa.Label, filterfe.Predicate]{Complement: true})

	trueLabel := st.NewLabel(false)
	falseLabel := st.NewLabel(false)

	prog := lower.Lower(dfa, st, trueLabel, falseLabel)

	var found bool
	for _, h := range prog.Instr {
		n := prog.Arena.Get(h)
		if n.Op == mir.OpJump && n.Target == falseLabel {
			found = true
		}
	}
	assert.True(t, found, "complement transition must converge to the filter-false label")
}

func TestLowerPredicateTransitionEmitsJCond(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	hb := hir.NewBuilder()
	cond := hb.CmpEq(hb.Const(1), hb.Const(1))
	predicate := filterfe.Predicate{Arena: hb.Arena(), Expr: cond}

	dfa := fsa.New[*symtab.Proto, fsa.Label, filterfe.Predicate]()
	next := dfa.AddState()
	dfa.State(next).IsFinal = true
	dfa.State(next).IsAccepting = true
	dfa.AddTransition(dfa.Start, fsa.Transition[fsa.Label, filterfe.Predicate]{To: next, Predicate: &predicate})

	trueLabel := st.NewLabel(false)
	falseLabel := st.NewLabel(false)

	prog := lower.Lower(dfa, st, trueLabel, falseLabel)

	assert.Equal(t, 1, countOp(prog, mir.OpJCond))
	assert.Equal(t, 1, countOp(prog, mir.OpCmpEq))
}

func TestLowerExtendedTransitionRangeEmitsComparisonAndFailJump(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	proto, err := st.AddProto(1, "ip")
	require.NoError(t, err)
	version := st.StoreProtoField(proto, &symtab.Field{Name: "version", Kind: symtab.FieldFixed, FixedLen: 1})

	dfa := fsa.New[*symtab.Proto, fsa.Label, filterfe.Predicate]()
	leafState := dfa.AddState()
	dfa.State(leafState).IsFinal = true
	dfa.State(leafState).IsAccepting = true

	leaf := leafState
	et := &fsa.ETNode{
		ID:    1,
		Kind:  fsa.ETField,
		Field: version,
		Range: []fsa.ETRangeArm{
			{Op: fsa.ETRangeEq, Value: 4, Child: &fsa.ETNode{Leaf: &leaf}},
		},
	}
	dfa.AddTransition(dfa.Start, fsa.Transition[fsa.Label, filterfe.Predicate]{ET: et})

	trueLabel := st.NewLabel(false)
	falseLabel := st.NewLabel(false)

	prog := lower.Lower(dfa, st, trueLabel, falseLabel)

	assert.Equal(t, 1, countOp(prog, mir.OpLoadField))
	assert.Equal(t, 1, countOp(prog, mir.OpCmpEq))
	assert.Equal(t, 1, countOp(prog, mir.OpJCond))

	var failJumps int
	for _, h := range prog.Instr {
		n := prog.Arena.Get(h)
		if n.Op == mir.OpJump && n.Target == falseLabel {
			failJumps++
		}
	}
	assert.Equal(t, 1, failJumps, "the unmatched range arm falls through to filter-false")
}

func TestLowerFieldInfoMarkerEmitsStoreInfoAndInstanceIncrement(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	proto, err := st.AddProto(1, "ipv6")
	require.NoError(t, err)
	nextHdr := st.StoreProtoField(proto, &symtab.Field{
		Name: "nextheader", Kind: symtab.FieldFixed, FixedLen: 1, MultiProto: true,
	})
	counter, err := st.AddVariable("$instcount_ipv6_nextheader", symtab.VarInt)
	require.NoError(t, err)

	hb := hir.NewBuilder()
	marker := hb.FieldInfoMarker(nextHdr, 0, counter)
	proto.FormatHIR = hb.Finish(hir.Block{marker})

	dfa := fsa.New[*symtab.Proto, fsa.Label, filterfe.Predicate]()
	start := dfa.State(dfa.Start)
	start.HasInfo = true
	start.Info = proto
	start.IsFinal = true
	start.IsAccepting = true

	trueLabel := st.NewLabel(false)
	falseLabel := st.NewLabel(false)

	prog := lower.Lower(dfa, st, trueLabel, falseLabel)

	assert.Equal(t, 1, countOp(prog, mir.OpStoreInfo))
	assert.Equal(t, 1, countOp(prog, mir.OpAdd), "instance counter increment")
}
