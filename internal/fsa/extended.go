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
	"sort"

	"github.com/netpfl/compiler/internal/symtab"
)

// ETKind discriminates what an extended-transition internal node tests
// (spec.md §4.3 "extended transitions carry, on each internal node, a
// reference to either a Field* ... or a counter variable ... or a regex
// match/contains").
type ETKind int

const (
	// ETField tests a scalar field value against a constant or range.
	ETField ETKind = iota
	// ETHeaderCounter tests the running "nth header" counter.
	ETHeaderCounter
	// ETLevelCounter tests the encapsulation-depth ("tunneled") counter.
	ETLevelCounter
	// ETRegex tests a string-valued field against a regex match/contains.
	ETRegex
)

// ETRangeOp is the comparison a Range test arm applies.
type ETRangeOp int

const (
	ETRangeEq ETRangeOp = iota
	ETRangeNeq
	ETRangeGt
	ETRangeGe
	ETRangeLt
	ETRangeLe
)

// ETSpecialOp names a regex test's mode (spec.md §4.3 "special(op,
// string) (for regex match/contains)").
type ETSpecialOp int

const (
	ETSpecialMatch ETSpecialOp = iota
	ETSpecialContains
)

// ETNode is one node of an extended-transition decision tree. Internal
// nodes carry exactly one of a Range test (an ordered set of
// value-or-range -> child edges) or a Punct test (an exact-value ->
// child map) or a Special (regex) test; Jump nodes point directly at a
// successor without testing anything, used to splice in shared subtrees.
// A node with a non-nil Leaf is a leaf naming the successor state; a nil
// *ETNode is skipped by [Walk].
type ETNode struct {
	ID   int
	Kind ETKind

	// Field/Counter identifies what this node tests; exactly one is set,
	// per Kind.
	Field *symtab.Field

	// Range test: each entry compares the tested value with Op against
	// Value, taking Child on success; entries are tried in order and the
	// first match wins (spec.md "range(op, sep)" callback).
	Range []ETRangeArm

	// Punct test: exact-value dispatch (spec.md "punct(op, {value→child})").
	Punct map[int64]*ETNode

	// Special test: regex match/contains (spec.md "special(op, string)").
	SpecialOp      ETSpecialOp
	SpecialPattern string
	SpecialChild   *ETNode

	// Jump splices in a shared subtree without testing anything (spec.md
	// "jump(id)").
	Jump *ETNode

	// Leaf is non-nil on a terminal node: where this decision path leads.
	Leaf *StateID
}

// ETRangeArm is one arm of a Range test.
type ETRangeArm struct {
	Op    ETRangeOp
	Value int64
	Child *ETNode
}

// ETVisitor receives the ordered callbacks of spec.md §4.3's walk: "yields
// ordered callbacks: newlabel(nodeId, field/var), range(op, sep),
// punct(op, {value→child}), jump(id), special(op, string)". Code
// generation ([internal/lower]) implements this interface to emit `if`/
// `switch` chains; a nil method is simply not called for node kinds that
// do not apply.
type ETVisitor interface {
	NewLabel(nodeID int, field *symtab.Field, kind ETKind)
	Range(arms []ETRangeArm)
	Punct(cases map[int64]*ETNode)
	Jump(target *ETNode)
	Special(op ETSpecialOp, pattern string)
	Leaf(state StateID)
}

// Walk drives v's callbacks over n in the order spec.md §4.3 specifies.
// It recurses into every child reachable from the callbacks it issues so
// that a caller's Range/Punct/Special/Jump implementation need only
// schedule its own code emission, not manage recursion itself — Walk
// calls back into itself for each child after the parent callback fires.
func Walk(n *ETNode, v ETVisitor) {
	if n == nil {
		return
	}
	if n.Leaf != nil {
		v.Leaf(*n.Leaf)
		return
	}

	v.NewLabel(n.ID, n.Field, n.Kind)

	switch {
	case len(n.Range) > 0:
		v.Range(n.Range)
		for _, arm := range n.Range {
			Walk(arm.Child, v)
		}
	case n.Punct != nil:
		v.Punct(n.Punct)
		// Map iteration order is undefined; codegen needs a stable order so
		// the same tree always emits the same bytecode.
		keys := make([]int64, 0, len(n.Punct))
		for k := range n.Punct {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		for _, k := range keys {
			Walk(n.Punct[k], v)
		}
	case n.SpecialChild != nil || n.SpecialPattern != "":
		v.Special(n.SpecialOp, n.SpecialPattern)
		Walk(n.SpecialChild, v)
	case n.Jump != nil:
		v.Jump(n.Jump)
		Walk(n.Jump, v)
	}
}
