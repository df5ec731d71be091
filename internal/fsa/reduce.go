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

// FailState is the synthetic sink every uncovered transition converges to
// (spec.md §4.3 "Failure model": "Any uncovered transition... converge to
// the filter-false label"). -1 means "no fail state created yet".
const FailState StateID = -1

// ReduceAutomaton performs the final minimisation-style pruning pass: it
// drops states unreachable from Start, then links every remaining state's
// uncovered protocols to a single fail sink (spec.md §4.3
// "ReduceAutomaton(fsa) — final minimisation-style pruning: cut
// transitions that provably cannot fire, eliminate dead states, link all
// remaining unmatched transitions to a single fail sink"). Of that list it
// only drops unreachable states and links the fail sink: reachable states
// that cannot reach an accepting state are kept, and no transition
// between reachable states is removed.
//
// alphabet is the full protocol set a state could see a transition for;
// it is needed to know which protocols are "uncovered" at each state.
func ReduceAutomaton[P any](a *FSA[P], alphabet []*symtab.Proto) *FSA[P] {
	reachable := reachableStates(a)

	out := New[*symtab.Proto, Label, P]()
	idMap := make(map[StateID]StateID, len(reachable))
	idMap[a.Start] = out.Start
	for _, sid := range reachable {
		if sid == a.Start {
			continue
		}
		idMap[sid] = out.AddState()
	}

	fail := out.AddState() // Single shared fail sink.

	for _, sid := range reachable {
		src, dst := a.State(sid), out.State(idMap[sid])
		dst.Info, dst.HasInfo = src.Info, src.HasInfo
		dst.IsFinal = src.IsFinal
		dst.IsAccepting = src.IsAccepting
		dst.IsAction = src.IsAction
		dst.MultiProtos = src.MultiProtos
		dst.Extract = src.Extract

		covered := make(map[*symtab.Proto]bool)
		for _, t := range a.Transitions(sid) {
			covered[t.Label.To] = true
			out.AddTransition(idMap[sid], Transition[Label, P]{
				To:         idMap[t.To],
				Label:      t.Label,
				Predicate:  t.Predicate,
				ET:         t.ET,
				Complement: t.Complement,
			})
		}
		for _, p := range alphabet {
			if !covered[p] {
				out.AddTransition(idMap[sid], Transition[Label, P]{To: fail, Label: Label{To: p}})
			}
		}
	}

	fixStateProtocols(out)
	fixActionStates(out)
	return out
}

func reachableStates[P any](a *FSA[P]) []StateID {
	seen := map[StateID]bool{a.Start: true}
	queue := []StateID{a.Start}
	order := []StateID{a.Start}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, t := range a.Transitions(s) {
			if !seen[t.To] {
				seen[t.To] = true
				queue = append(queue, t.To)
				order = append(order, t.To)
			}
		}
	}
	return order
}

// ResetFinals clears IsFinal/IsAccepting on every state, used between two
// chained BooleanOR calls whose first leg deferred final-state fixing
// (spec.md §4.3).
func ResetFinals[P any](a *FSA[P]) {
	for _, sid := range a.States() {
		s := a.State(sid)
		s.IsFinal = false
		s.IsAccepting = false
	}
}

// FixTransitions recomputes each state's coverage after a deferred
// BooleanOR: drops duplicate transitions to the same (proto, target)
// pair left behind by the product construction.
func FixTransitions[P any](a *FSA[P]) {
	for _, sid := range a.States() {
		seen := make(map[[2]any]bool)
		var out []Transition[Label, P]
		for _, t := range a.Transitions(sid) {
			key := [2]any{t.Label.To, t.To}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, t)
		}
		a.trans[sid] = out
	}
}

// fixStateProtocols recomputes HasInfo/Info for every state from its
// MultiProtos list, e.g. after a caller has merged extra owners into it.
func fixStateProtocols[P any](a *FSA[P]) {
	for _, sid := range a.States() {
		s := a.State(sid)
		if len(s.MultiProtos) == 1 {
			s.Info, s.HasInfo = s.MultiProtos[0], true
			s.MultiProtos = nil
		} else if len(s.MultiProtos) > 1 {
			s.HasInfo = false
		}
	}
}

// fixActionStates marks every final, accepting state with a non-empty
// Extract list as an action state (spec.md §3: "isAction (should run
// extraction)").
func fixActionStates[P any](a *FSA[P]) {
	for _, sid := range a.States() {
		s := a.State(sid)
		s.IsAction = s.IsAccepting && len(s.Extract) > 0
	}
}

// SetFinalStates marks every state in finals as both final and
// accepting.
func SetFinalStates[P any](a *FSA[P], finals []StateID) {
	for _, sid := range finals {
		s := a.State(sid)
		s.IsFinal = true
		s.IsAccepting = true
	}
}
