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

package fsa

import "github.com/netpfl/compiler/internal/symtab"

// product pairs up every state of a with every state of b, lazily
// reachable from (a.Start, b.Start), driving outgoing edges by protocol:
// a pair state has an edge on proto p to (a', b') iff both a and b have
// an edge on p (this is the shared machinery behind BooleanAND/OR; OR
// additionally treats a missing side as "stay put" via selfLoop). When
// both sides have an edge on p, their predicates guard the same merged
// transition and must be composed rather than dropped — intersected for
// AND (!selfLoopMissing), unioned for OR — via combine (spec.md §8
// scenario 3). When only one side has the edge at all (OR's "stay put"
// case), that side's own predicate and ET pass through unchanged: the
// other side imposes no constraint on this label because it has no edge
// on it whatsoever.
func product[P any](a, b *FSA[P], selfLoopMissing bool, combine Combiner[P]) (*FSA[P], map[[2]StateID]StateID) {
	dfa := New[*symtab.Proto, Label, P]()
	pairID := map[[2]StateID]StateID{{a.Start, b.Start}: dfa.Start}

	type pair struct{ a, b StateID }
	queue := []pair{{a.Start, b.Start}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		id := pairID[[2]StateID{cur.a, cur.b}]

		byProtoA := make(map[*symtab.Proto]Transition[Label, P])
		for _, t := range a.Transitions(cur.a) {
			byProtoA[t.Label.To] = t
		}
		byProtoB := make(map[*symtab.Proto]Transition[Label, P])
		for _, t := range b.Transitions(cur.b) {
			byProtoB[t.Label.To] = t
		}

		protos := make(map[*symtab.Proto]struct{})
		for p := range byProtoA {
			protos[p] = struct{}{}
		}
		for p := range byProtoB {
			protos[p] = struct{}{}
		}

		for p := range protos {
			ta, oka := byProtoA[p]
			tb, okb := byProtoB[p]
			if !oka && !okb {
				continue
			}
			if !selfLoopMissing && (!oka || !okb) {
				continue // AND: both sides must advance.
			}
			na, nb := cur.a, cur.b
			if oka {
				na = ta.To // OR: the missing side stays put.
			}
			if okb {
				nb = tb.To
			}

			var predicate *P
			var et *ETNode
			switch {
			case oka && okb:
				predicate = mergePredicate(!selfLoopMissing, ta.Predicate, tb.Predicate, combine)
				et = ta.ET
				if et == nil {
					et = tb.ET
				}
			case oka:
				predicate, et = ta.Predicate, ta.ET
			case okb:
				predicate, et = tb.Predicate, tb.ET
			}

			key := [2]StateID{na, nb}
			nid, ok := pairID[key]
			if !ok {
				nid = dfa.AddState()
				pairID[key] = nid
				queue = append(queue, pair{na, nb})
			}
			dfa.AddTransition(id, Transition[Label, P]{To: nid, Label: Label{To: p}, Predicate: predicate, ET: et})
		}
	}

	return dfa, pairID
}

// BooleanAND builds the product automaton accepting the intersection of
// a and b's languages (spec.md §4.3 "BooleanAND/BooleanOR/BooleanNot").
// combine composes two predicates that both guard the same merged
// transition into their conjunction; it is never invoked when either side
// has no predicate (spec.md §8 scenario 3).
func BooleanAND[P any](a, b *FSA[P], combine Combiner[P]) *FSA[P] {
	dfa, pairID := product(a, b, false, combine)
	for key, id := range pairID {
		sa, sb := a.State(key[0]), b.State(key[1])
		dst := dfa.State(id)
		dst.IsFinal = sa.IsFinal && sb.IsFinal
		dst.IsAccepting = sa.IsAccepting && sb.IsAccepting
		mergeProtoInfo(dst, sa, sb)
	}
	return dfa
}

// BooleanOR builds the product automaton accepting the union of a and
// b's languages. combine composes two predicates that both guard the
// same merged transition into their disjunction. If deferFinalFix is
// true, [ResetFinals]/[FixTransitions] must be called before the result
// is used — the caller is about to compose a second OR and wants to skip
// redundant bookkeeping in between (spec.md §4.3: "OR may optionally
// defer final-state fixing").
func BooleanOR[P any](a, b *FSA[P], combine Combiner[P], deferFinalFix bool) *FSA[P] {
	dfa, pairID := product(a, b, true, combine)
	if deferFinalFix {
		return dfa
	}
	for key, id := range pairID {
		sa, sb := a.State(key[0]), b.State(key[1])
		dst := dfa.State(id)
		dst.IsFinal = sa.IsFinal || sb.IsFinal
		dst.IsAccepting = sa.IsAccepting || sb.IsAccepting
		mergeProtoInfo(dst, sa, sb)
	}
	return dfa
}

func mergeProtoInfo(dst, sa, sb *State[*symtab.Proto]) {
	switch {
	case sa.HasInfo && sb.HasInfo && sa.Info == sb.Info:
		dst.Info, dst.HasInfo = sa.Info, true
	case sa.HasInfo && !sb.HasInfo:
		dst.Info, dst.HasInfo = sa.Info, true
	case sb.HasInfo && !sa.HasInfo:
		dst.Info, dst.HasInfo = sb.Info, true
	default:
		dst.HasInfo = false
	}
}

// BooleanNot returns a new automaton complementing a DFA over its own
// alphabet; a itself is left unchanged. Every
// state's IsFinal/IsAccepting flips, since a (assumed total, post-Reduce)
// DFA's complement language is exactly "does not end in an accepting
// state" (spec.md §4.3 "BooleanAND/BooleanOR/BooleanNot(a,b) — product or
// complement on DFAs").
func BooleanNot[P any](a *FSA[P]) *FSA[P] {
	out := New[*symtab.Proto, Label, P]()
	idMap := make(map[StateID]StateID, a.NumStates())
	idMap[a.Start] = out.Start
	for _, sid := range a.States() {
		if sid == a.Start {
			continue
		}
		idMap[sid] = out.AddState()
	}
	for _, sid := range a.States() {
		src := a.State(sid)
		dst := out.State(idMap[sid])
		dst.Info, dst.HasInfo = src.Info, src.HasInfo
		dst.IsFinal = !src.IsFinal
		dst.IsAccepting = !src.IsAccepting
		for _, t := range a.Transitions(sid) {
			out.AddTransition(idMap[sid], Transition[Label, P]{
				To:         idMap[t.To],
				Label:      t.Label,
				Predicate:  t.Predicate,
				ET:         t.ET,
				Complement: t.Complement,
			})
		}
	}
	return out
}
