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

// Package fsa implements the Finite-State Automaton core (spec.md §4.3,
// component E): an NFA/DFA over protocol alphabets with boolean
// composition, minimisation-style reduction, and extended-transition
// decision trees.
//
// The automaton is generic — `Automaton[S, L, P]` mirrors spec.md's
// `sftFsa<StateInfo, LabelInfo, PredicateInfo>` — the same style as
// [internal/scc]'s `Graph[Node]` and [internal/arena]'s `Arena[T]`: one
// reusable structure parameterised over the caller's node/label/predicate
// types rather than three hand-duplicated concrete automaton packages.
// This module instantiates it with S = *symtab.Proto, L = Label (a
// from/to Proto pair), and P = the Filter Front-End's predicate type.
package fsa

import "github.com/netpfl/compiler/internal/symtab"

// Label is the LabelInfo of spec.md §4.3: the from/to Proto pair a
// transition is named after; used for debug output and for resolving
// ET field references against the destination protocol.
type Label struct {
	From, To *symtab.Proto
}

// StateID indexes a State within an Automaton.
type StateID int

// State is one automaton state. Info is meaningful only when HasInfo is
// true (spec.md §4.3: "a DFA state tied to a single Proto keeps it;
// otherwise Info=NULL" — multiple distinct protos converging to one DFA
// state clears HasInfo, per invariant 2's "multi-proto" handling).
type State[S any] struct {
	ID StateID

	Info    S
	HasInfo bool

	IsFinal     bool
	IsAccepting bool
	IsAction    bool

	// MultiProtos lists every Proto that converged onto this state when
	// HasInfo is false, needed so multi-proto before-section re-emission
	// (spec.md §4.3 "state-merging policy") knows which before-sections to
	// schedule.
	MultiProtos []S

	// Extract lists the fields this state's action extracts, populated by
	// the Filter Front-End once a state is marked IsAction.
	Extract []*symtab.Field
}

// Transition is one outgoing edge. Exactly one of ET or (Predicate valid)
// is used for a given transition's extra guard; Complement marks an edge
// that fires when no other labelled edge from the source state matches
// (spec.md §4.3 "complement-set transition").
type Transition[L, P any] struct {
	To         StateID
	Label      L
	Predicate  *P
	ET         *ETNode
	Complement bool

	// Epsilon marks an unlabelled edge used only during NFA construction
	// (spec.md §4.3 "Thompson-style construction") for the `*`/`+`/`?`
	// repeat operators; [NFAtoDFA]'s subset construction consumes every
	// Epsilon edge and none survive into the resulting DFA.
	Epsilon bool
}

// Automaton is the generic sftFsa of spec.md §4.3.
type Automaton[S, L, P any] struct {
	states []*State[S]
	trans  map[StateID][]Transition[L, P]
	Start  StateID
}

// New returns an automaton with a single start state.
func New[S, L, P any]() *Automaton[S, L, P] {
	a := &Automaton[S, L, P]{trans: make(map[StateID][]Transition[L, P])}
	a.Start = a.AddState()
	return a
}

// AddState appends a new, otherwise-zero-valued state and returns its ID.
func (a *Automaton[S, L, P]) AddState() StateID {
	id := StateID(len(a.states))
	a.states = append(a.states, &State[S]{ID: id})
	return id
}

// State dereferences id into its State.
func (a *Automaton[S, L, P]) State(id StateID) *State[S] { return a.states[id] }

// States returns every state ID in creation order.
func (a *Automaton[S, L, P]) States() []StateID {
	out := make([]StateID, len(a.states))
	for i := range a.states {
		out[i] = StateID(i)
	}
	return out
}

// AddTransition adds an outgoing edge from `from`.
func (a *Automaton[S, L, P]) AddTransition(from StateID, t Transition[L, P]) {
	a.trans[from] = append(a.trans[from], t)
}

// Transitions returns every outgoing edge of a state, in insertion order.
func (a *Automaton[S, L, P]) Transitions(from StateID) []Transition[L, P] {
	return a.trans[from]
}

// NumStates reports how many states this automaton has.
func (a *Automaton[S, L, P]) NumStates() int { return len(a.states) }

// FSA is this module's one concrete instantiation of Automaton: S is the
// owning Proto (or its absence, per HasInfo), L is the from/to Proto pair
// of spec.md §4.3, and P is left to the caller's predicate type (the
// Filter Front-End's filter sub-expression node).
type FSA[P any] = Automaton[*symtab.Proto, Label, P]

// Combiner composes two non-nil transition predicates that guard the same
// label into one, when subset construction ([NFAtoDFA]) or boolean
// composition ([BooleanAND]/[BooleanOR]) merges their underlying edges
// onto a single resulting transition (spec.md §4.3's extended-transition
// predicates; §8 scenario 3's field predicate must survive merging, not
// be silently dropped). fsa has no semantic knowledge of P itself, so the
// caller supplies this — filterfe's combiner builds an AND/OR HIR node
// over the two predicates' expressions. A nil Combiner is only safe when
// every transition's Predicate is always nil (no predicates in play).
type Combiner[P any] func(a, b *P) *P

// mergePredicate composes a and b, treating a nil predicate as "no guard"
// (always matches): the identity element under AND (true AND x = x) and
// the absorbing element under OR (true OR x = true). combine is invoked
// only when both sides actually carry a predicate.
func mergePredicate[P any](and bool, a, b *P, combine Combiner[P]) *P {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		if and {
			return b
		}
		return nil
	case b == nil:
		if and {
			return a
		}
		return nil
	case combine == nil:
		return a
	default:
		return combine(a, b)
	}
}
