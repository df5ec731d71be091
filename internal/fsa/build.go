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

import (
	"fmt"
	"sort"
	"strings"

	"github.com/netpfl/compiler/internal/symtab"
)

// RepeatOp is a protocol-set element's repeat modifier (spec.md §4.3).
type RepeatOp int

const (
	RepeatNone RepeatOp = iota
	RepeatPlus
	RepeatStar
	RepeatQuestion
)

// InclusionOp is a protocol-set element's membership modifier.
type InclusionOp int

const (
	InclusionDefault InclusionOp = iota
	InclusionIn
	InclusionNotIn
)

// SetElement is one element of the ordered set-sequence a regex-style
// filter term compiles from (spec.md §4.3 "BuildRegExpFSA(innerList,
// statusOfFinals)").
type SetElement[P any] struct {
	Protos         []*symtab.Proto
	AnyPlaceholder bool // Matches every protocol of the alphabet.
	Repeat         RepeatOp
	Inclusion      InclusionOp
	Predicate      *P

	// Tunneled marks an element written with the tunneled modifier.
	// BuildRegExpFSA does not read it: a tunneled element expands exactly
	// like an untunneled one, with no check on encapsulation-graph Layer.
	Tunneled bool
}

func matchedSet[P any](e SetElement[P], alphabet []*symtab.Proto) []*symtab.Proto {
	if e.AnyPlaceholder {
		return alphabet
	}
	if e.Inclusion == InclusionNotIn {
		excl := make(map[*symtab.Proto]struct{}, len(e.Protos))
		for _, p := range e.Protos {
			excl[p] = struct{}{}
		}
		var out []*symtab.Proto
		for _, p := range alphabet {
			if _, ok := excl[p]; !ok {
				out = append(out, p)
			}
		}
		return out
	}
	return e.Protos
}

// BuildRegExpFSA builds an NFA over alphabet from an ordered list of
// protocol-set elements (spec.md §4.3). Each element contributes one join
// state, plus one hop state per matched protocol that carries that
// protocol as its Info and has an epsilon edge to the join state, so the
// DFA keeps states reached on different protocols apart; repeat
// operators are realised with epsilon edges on the join states rather than
// duplicated states, a standard simplification of full Thompson
// construction that this package's later subset construction ([NFAtoDFA])
// already has to handle regardless (it must consume arbitrary epsilon
// edges, not just the classic "two new states per operator" shape).
func BuildRegExpFSA[P any](alphabet []*symtab.Proto, elems []SetElement[P]) *FSA[P] {
	a := New[*symtab.Proto, Label, P]()
	cur := a.Start

	for _, e := range elems {
		matched := matchedSet(e, alphabet)
		next := a.AddState()
		for _, p := range matched {
			hop := a.AddState()
			hs := a.State(hop)
			hs.Info, hs.HasInfo = p, true
			a.AddTransition(cur, Transition[Label, P]{
				To:        hop,
				Label:     Label{To: p},
				Predicate: e.Predicate,
			})
			a.AddTransition(hop, Transition[Label, P]{To: next, Epsilon: true})
		}
		switch e.Repeat {
		case RepeatStar:
			a.AddTransition(next, Transition[Label, P]{To: cur, Epsilon: true})
			a.AddTransition(cur, Transition[Label, P]{To: next, Epsilon: true})
		case RepeatPlus:
			a.AddTransition(next, Transition[Label, P]{To: cur, Epsilon: true})
		case RepeatQuestion:
			a.AddTransition(cur, Transition[Label, P]{To: next, Epsilon: true})
		}
		cur = next
	}

	a.State(cur).IsFinal = true
	a.State(cur).IsAccepting = true
	return a
}

// epsilonClosure returns every state reachable from seeds via zero or
// more Epsilon edges, deduplicated and sorted.
func epsilonClosure[P any](a *FSA[P], seeds []StateID) []StateID {
	seen := make(map[StateID]bool, len(seeds))
	var stack, out []StateID
	for _, s := range seeds {
		if !seen[s] {
			seen[s] = true
			stack = append(stack, s)
			out = append(out, s)
		}
	}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, t := range a.Transitions(s) {
			if t.Epsilon && !seen[t.To] {
				seen[t.To] = true
				stack = append(stack, t.To)
				out = append(out, t.To)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func subsetKey(ids []StateID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}

// mergeInfo implements spec.md §4.3's per-DFA-state Info merge policy: "a
// DFA state tied to a single Proto keeps it; otherwise Info=NULL".
func mergeInfo[P any](dst *State[*symtab.Proto], a *FSA[P], ids []StateID) {
	var info *symtab.Proto
	has, conflict := false, false
	for _, id := range ids {
		s := a.State(id)
		if s.IsFinal {
			dst.IsFinal = true
		}
		if s.IsAccepting {
			dst.IsAccepting = true
		}
		if !s.HasInfo {
			continue
		}
		if !has {
			info, has = s.Info, true
		} else if info != s.Info {
			conflict = true
		}
	}
	if has && !conflict {
		dst.Info = info
		dst.HasInfo = true
		return
	}
	dst.HasInfo = false
	for _, id := range ids {
		if s := a.State(id); s.HasInfo {
			dst.MultiProtos = append(dst.MultiProtos, s.Info)
		}
	}
}

// NFAtoDFA performs subset construction over an NFA built by
// [BuildRegExpFSA] (spec.md §4.3 "NFAtoDFA(nfa) — subset construction").
// Several NFA edges on the same proto can converge into one DFA
// transition (a subset-construction state merges parallel nondeterministic
// choices); when they carry different predicates this is a disjunction —
// the DFA transition fires whenever any one of the contributing edges
// would have — so their predicates are combined with OR via combine
// rather than one silently overwriting another (spec.md §8 scenario 3).
func NFAtoDFA[P any](nfa *FSA[P], combine Combiner[P]) *FSA[P] {
	dfa := New[*symtab.Proto, Label, P]()

	startSet := epsilonClosure(nfa, []StateID{nfa.Start})
	seen := map[string]StateID{subsetKey(startSet): dfa.Start}
	mergeInfo(dfa.State(dfa.Start), nfa, startSet)

	type pending struct {
		ids []StateID
		id  StateID
	}
	queue := []pending{{startSet, dfa.Start}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		byProto := make(map[*symtab.Proto][]StateID)
		predByProto := make(map[*symtab.Proto]*P)
		etByProto := make(map[*symtab.Proto]*ETNode)
		seenProto := make(map[*symtab.Proto]bool)
		for _, sid := range cur.ids {
			for _, t := range nfa.Transitions(sid) {
				if t.Epsilon {
					continue
				}
				p := t.Label.To
				byProto[p] = append(byProto[p], t.To)
				if !seenProto[p] {
					predByProto[p] = t.Predicate
					etByProto[p] = t.ET
					seenProto[p] = true
				} else {
					predByProto[p] = mergePredicate(false, predByProto[p], t.Predicate, combine)
					if etByProto[p] == nil {
						etByProto[p] = t.ET
					}
				}
			}
		}

		for proto, targets := range byProto {
			closure := epsilonClosure(nfa, targets)
			key := subsetKey(closure)
			id, ok := seen[key]
			if !ok {
				id = dfa.AddState()
				seen[key] = id
				mergeInfo(dfa.State(id), nfa, closure)
				queue = append(queue, pending{closure, id})
			}
			dfa.AddTransition(cur.id, Transition[Label, P]{
				To:        id,
				Label:     Label{To: proto},
				Predicate: predByProto[proto],
				ET:        etByProto[proto],
			})
		}
	}

	return dfa
}
