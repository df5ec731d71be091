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

package lower

import (
	"sort"

	"github.com/netpfl/compiler/internal/arena"
	"github.com/netpfl/compiler/internal/fsa"
	"github.com/netpfl/compiler/internal/mir"
	"github.com/netpfl/compiler/internal/symtab"
)

// etCodegen implements fsa.ETVisitor (spec.md §4.3: "code generation
// subscribes to these callbacks to emit if/switch chains"). fsa.Walk
// visits a node's own NewLabel callback and then recurses into each
// child in the same order the dispatch code below registered a landing
// label for that child via labelForChild, so pendingLabels — a plain
// FIFO queue — always hands NewLabel/Leaf the right label to define next.
type etCodegen struct {
	c         *ctx
	labelsFor func(fsa.StateID) *stateLabels
	fail      *symtab.Label

	// nodeByID recovers the *fsa.ETNode behind a NewLabel callback's bare
	// ID: Special's callback (spec.md §4.3 "special(op, string)") carries
	// only the pattern, not its child node, so Special needs this map to
	// find SpecialChild the same way Range/Punct already receive their
	// children directly in the arm/case data Walk hands them.
	nodeByID map[int]*fsa.ETNode

	pendingLabels []*symtab.Label
	currentField  *symtab.Field
	currentNode   *fsa.ETNode
}

// collectETNodes indexes every non-leaf node reachable from root by ID,
// for etCodegen.nodeByID.
func collectETNodes(root *fsa.ETNode, into map[int]*fsa.ETNode) {
	if root == nil || root.Leaf != nil {
		return
	}
	into[root.ID] = root
	for _, arm := range root.Range {
		collectETNodes(arm.Child, into)
	}
	for _, child := range root.Punct {
		collectETNodes(child, into)
	}
	collectETNodes(root.SpecialChild, into)
	collectETNodes(root.Jump, into)
}

func (e *etCodegen) popLabel() *symtab.Label {
	l := e.pendingLabels[0]
	e.pendingLabels = e.pendingLabels[1:]
	return l
}

// labelForChild allocates a landing label for child and queues it so the
// NewLabel/Leaf callback Walk invokes for child next defines it.
func (e *etCodegen) labelForChild(child *fsa.ETNode) *symtab.Label {
	l := e.c.st.NewLabel(false)
	e.pendingLabels = append(e.pendingLabels, l)
	return l
}

// NewLabel defines the landing label a parent node registered for this
// node before recursing into it (spec.md §4.3 "newlabel(nodeId, ...)").
// The ET's root node has no parent-registered label: its code simply
// continues inline at the transition's current position.
func (e *etCodegen) NewLabel(nodeID int, field *symtab.Field, kind fsa.ETKind) {
	if len(e.pendingLabels) > 0 {
		e.c.b.Label(e.popLabel())
	}
	e.currentField = field
	e.currentNode = e.nodeByID[nodeID]
}

// compareField emits a size-normalised comparison of field against value.
func (e *etCodegen) compareField(field *symtab.Field, op fsa.ETRangeOp, value int64) arena.Handle[mir.Node] {
	lhs := e.c.b.LoadField(field, fieldSize(field))
	rhs := e.c.b.Const(value)
	return e.c.b.BinOp(etRangeOpToMIR[op], lhs, rhs)
}

var etRangeOpToMIR = map[fsa.ETRangeOp]mir.Op{
	fsa.ETRangeEq:  mir.OpCmpEq,
	fsa.ETRangeNeq: mir.OpCmpNeq,
	fsa.ETRangeGt:  mir.OpCmpGt,
	fsa.ETRangeGe:  mir.OpCmpGe,
	fsa.ETRangeLt:  mir.OpCmpLt,
	fsa.ETRangeLe:  mir.OpCmpLe,
}

// Range emits a first-match-wins cascade of comparisons against the field
// currentField announced (spec.md §4.3 "range(op, sep)"; "entries are
// tried in order and the first match wins").
func (e *etCodegen) Range(arms []fsa.ETRangeArm) {
	field := e.currentField
	for _, arm := range arms {
		childLabel := e.labelForChild(arm.Child)
		nextLabel := e.c.st.NewLabel(false)
		cond := e.compareField(field, arm.Op, arm.Value)
		e.c.b.JCond(cond, childLabel, nextLabel)
		e.c.b.Label(nextLabel)
	}
	// No arm matched: an unmatched ET path converges to filter-false
	// (spec.md §4.3 "Failure model").
	e.c.b.Jump(e.fail)
}

// Punct emits an exact-value dispatch (spec.md §4.3 "punct(op,
// {value→child})"). fsa.Walk visits Punct's children in sorted key order
// (fsa/extended.go), so building the Switch's cases in the same order
// lines its targets up with the labels registered here.
func (e *etCodegen) Punct(cases map[int64]*fsa.ETNode) {
	field := e.currentField
	keys := make([]int64, 0, len(cases))
	for k := range cases {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	mirCases := make([]mir.CaseArm, 0, len(keys))
	for _, k := range keys {
		label := e.labelForChild(cases[k])
		mirCases = append(mirCases, mir.CaseArm{Value: e.c.st.AddConstant(k), Target: label})
	}
	subject := e.c.b.LoadField(field, fieldSize(field))
	e.c.b.Switch(subject, mirCases, e.fail)
}

// Special emits a regex match/contains test via the regexp coprocessor
// protocol (spec.md §4.3 "special(op, string)"; spec.md §4.5 step 2's
// OUT/COPRUN/COPIN sequence).
func (e *etCodegen) Special(op fsa.ETSpecialOp, pattern string) {
	entry := e.c.st.AddRegex(pattern)
	e.c.b.CopOut(e.c.b.Const(int64(entry.ID)))

	mode := "MATCH_WITH_OFFSET"
	if op == fsa.ETSpecialContains {
		mode = "CONTAINS"
	}
	e.c.b.CopRun(mode)

	found := e.c.b.NewReg()
	e.c.b.CopIn(found, "matches_found")

	childLabel := e.labelForChild(e.currentNode.SpecialChild)
	cond := e.c.b.BinOp(mir.OpCmpNeq, e.c.b.LdReg(found), e.c.b.Const(0))
	e.c.b.JCond(cond, childLabel, e.fail)
}

// Jump splices a shared subtree in without testing anything (spec.md
// §4.3 "jump(id)"): the code simply falls through into the target.
func (e *etCodegen) Jump(target *fsa.ETNode) {
	label := e.labelForChild(target)
	e.c.b.Jump(label)
}

// Leaf closes a decision path by jumping to the DFA state it resolves to.
func (e *etCodegen) Leaf(state fsa.StateID) {
	if len(e.pendingLabels) > 0 {
		e.c.b.Label(e.popLabel())
	}
	e.c.b.Jump(e.labelsFor(state).Complete)
}
