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

package filterfe

import (
	"github.com/netpfl/compiler/internal/arena"
	"github.com/netpfl/compiler/internal/errs"
	"github.com/netpfl/compiler/internal/fsa"
	"github.com/netpfl/compiler/internal/graph"
	"github.com/netpfl/compiler/internal/hir"
	"github.com/netpfl/compiler/internal/symtab"
)

// DFA is this module's concrete automaton type: a Proto-indexed FSA whose
// transitions carry a filter Predicate.
type DFA = fsa.FSA[Predicate]

// combinePredicate merges two Predicates that ended up guarding the same
// merged DFA transition (spec.md §8 scenario 3; [fsa.NFAtoDFA] and
// [fsa.BooleanAND]/[fsa.BooleanOR] never call this with a nil argument).
// Each Term's Predicate is parsed with its own [hir.Builder] and so owns
// its own arena (filterlang/parser.go's parseComparison), so the merged
// expression is built fresh in a third arena with both sides' subtrees
// cloned into it rather than picking one side's arena to mutate.
func combinePredicate(and bool) fsa.Combiner[Predicate] {
	return func(a, b *Predicate) *Predicate {
		arn := &arena.Arena[hir.Node]{}
		lhs := cloneInto(arn, a.Arena, a.Expr)
		rhs := cloneInto(arn, b.Arena, b.Expr)
		op := hir.OpOrI
		if and {
			op = hir.OpAndI
		}
		merged := arena.New(arn, hir.Node{Op: op, Kids: [3]arena.Handle[hir.Node]{lhs, rhs}})
		return &Predicate{Arena: arn, Expr: merged}
	}
}

// cloneInto copies the subtree rooted at h in src into dst, returning the
// equivalent handle in dst. Filter predicates are shallow comparison trees
// (spec.md §6 "comparison") over OpSym/OpConst leaves, but this walks every
// child slot generically so it stays correct if richer predicate shapes are
// ever parsed.
func cloneInto(dst, src *arena.Arena[hir.Node], h arena.Handle[hir.Node]) arena.Handle[hir.Node] {
	if !h.Valid() {
		return h
	}
	n := *src.Get(h)
	for i, kid := range n.Kids {
		n.Kids[i] = cloneInto(dst, src, kid)
	}
	return arena.New(dst, n)
}

// Build recursively composes the DFA for a filter-expression subtree
// (spec.md §4.3's boolean composition operators driven bottom-up over the
// tree spec.md §6 describes).
func Build(e Expr, alphabet []*symtab.Proto) (*DFA, error) {
	switch n := e.(type) {
	case *RegexExpr:
		return buildRegex(n, alphabet)
	case *BinaryExpr:
		l, err := Build(n.Left, alphabet)
		if err != nil {
			return nil, err
		}
		r, err := Build(n.Right, alphabet)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case OpAnd:
			return fsa.BooleanAND(l, r, combinePredicate(true)), nil
		case OpOr:
			return fsa.BooleanOR(l, r, combinePredicate(false), false), nil
		default:
			return nil, errs.Fatalf("", "unknown binary filter op %d", n.Op)
		}
	case *UnaryExpr:
		operand, err := Build(n.Operand, alphabet)
		if err != nil {
			return nil, err
		}
		return fsa.BooleanNot(operand), nil
	default:
		return nil, errs.Fatalf("", "unknown filter expression node %T", e)
	}
}

func buildRegex(n *RegexExpr, alphabet []*symtab.Proto) (*DFA, error) {
	elems := make([]fsa.SetElement[Predicate], len(n.Sets))
	for i, s := range n.Sets {
		elem := fsa.SetElement[Predicate]{
			AnyPlaceholder: s.AnyPlaceholder,
			Repeat:         s.Repeat,
			Inclusion:      s.Inclusion,
			Tunneled:       s.Tunneled,
		}
		elem.Protos = make([]*symtab.Proto, len(s.Terms))
		for j, term := range s.Terms {
			elem.Protos[j] = term.Proto
			if term.Predicate != nil {
				elem.Predicate = term.Predicate
			}
		}
		elems[i] = elem
	}
	nfa := fsa.BuildRegExpFSA(alphabet, elems)
	return fsa.NFAtoDFA(nfa, combinePredicate(false)), nil
}

// Compile builds the complete DFA for f: composes the boolean expression
// tree, applies the action's extraction list to every accepting state,
// and reduces the result against g's alphabet (spec.md §4.3
// "ReduceAutomaton"; package doc "drives graph+fsa").
func Compile(f *Filter, g *graph.Graph) (*DFA, error) {
	alphabet := protoAlphabet(g)

	dfa, err := Build(f.Root, alphabet)
	if err != nil {
		return nil, err
	}

	if f.Action != nil && f.Action.Kind == ActionExtractFields {
		for _, sid := range dfa.States() {
			s := dfa.State(sid)
			if s.IsAccepting {
				s.Extract = f.Action.Fields
				s.IsAction = true
			}
		}
	}

	return fsa.ReduceAutomaton(dfa, alphabet), nil
}

func protoAlphabet(g *graph.Graph) []*symtab.Proto {
	var out []*symtab.Proto
	for p := range g.Nodes() {
		out = append(out, p)
	}
	return out
}
