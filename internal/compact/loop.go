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

package compact

import (
	"fmt"

	"github.com/netpfl/compiler/internal/arena"
	"github.com/netpfl/compiler/internal/hir"
	"github.com/netpfl/compiler/internal/symtab"
)

// collapseCountedSkipLoop recognises the one loop shape spec.md §4.9
// names explicitly: "loops whose bodies contain only such fused skips
// collapse to a single advance by loop-count × field-size expression".
//
// The recognised shape is a pre-tested While loop `while (i < bound) {
// <skip field>; i = i + 1 }`, where the body is exactly a skip candidate
// followed by the loop counter's own increment. Any other loop shape
// (an unconditional Loop terminated by an internal Break, a body with
// side effects beyond the skip and the increment, a step other than 1)
// is left alone — this pass only ever turns a recognisable loop into a
// variable-length field, never attempts to prove termination or step
// size for an arbitrary body.
func collapseCountedSkipLoop(a *arena.Arena[hir.Node], p *symtab.Proto, st *symtab.Table, n *hir.Node) (*hir.Node, bool) {
	if n.Op != hir.OpWhile || len(n.DefaultBody) != 2 {
		return nil, false
	}

	cand, ok := skipCandidate(a, n.DefaultBody[0])
	if !ok {
		return nil, false
	}

	counter, bound, ok := loopBound(a, n.Kids[0])
	if !ok {
		return nil, false
	}
	if !isIncrementOf(a, n.DefaultBody[1], counter) {
		return nil, false
	}

	fused := st.StoreProtoField(p, &symtab.Field{
		Name:        fmt.Sprintf("$skiploop%d", len(p.Fields)),
		Kind:        symtab.FieldVariable,
		Compattable: true,
	})

	counterRef := arena.New(a, hir.Node{Op: hir.OpSym, Sym: hir.Sym{Variable: counter}})
	remaining := arena.New(a, hir.Node{Op: hir.OpSubI, Kids: [3]arena.Handle[hir.Node]{bound, counterRef}})
	size := arena.New(a, hir.Node{Op: hir.OpConst, Value: int64(cand.field.FixedLen)})
	fused.LengthExpr = arena.New(a, hir.Node{Op: hir.OpMulI, Kids: [3]arena.Handle[hir.Node]{remaining, size}})

	ref := arena.New(a, hir.Node{Op: hir.OpSym, Sym: hir.Sym{Field: fused}})
	gen := arena.New(a, hir.Node{Op: hir.OpGen, Sym: hir.Sym{Variable: cand.destVar}, Kids: [3]arena.Handle[hir.Node]{ref}})

	return a.Get(gen), true
}

// loopBound reports whether cond is `counter < bound` for some runtime
// Variable counter, returning that variable and the bound subtree.
func loopBound(a *arena.Arena[hir.Node], cond arena.Handle[hir.Node]) (*symtab.Variable, arena.Handle[hir.Node], bool) {
	n := a.Get(cond)
	if n.Op != hir.OpCmpLt {
		return nil, arena.Handle[hir.Node]{}, false
	}
	lhs := a.Get(n.Kids[0])
	if lhs.Op != hir.OpSym || lhs.Sym.Variable == nil {
		return nil, arena.Handle[hir.Node]{}, false
	}
	return lhs.Sym.Variable, n.Kids[1], true
}

// isIncrementOf reports whether h is `Gen(counter, AddI(counter, 1))`.
func isIncrementOf(a *arena.Arena[hir.Node], h arena.Handle[hir.Node], counter *symtab.Variable) bool {
	n := a.Get(h)
	if n.Op != hir.OpGen || n.Sym.Variable != counter {
		return false
	}
	add := a.Get(n.Kids[0])
	if add.Op != hir.OpAddI {
		return false
	}
	lhs := a.Get(add.Kids[0])
	rhs := a.Get(add.Kids[1])
	return lhs.Op == hir.OpSym && lhs.Sym.Variable == counter && rhs.Op == hir.OpConst && rhs.Value == 1
}
