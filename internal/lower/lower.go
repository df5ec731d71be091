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

// Package lower implements HIR -> MIR Lowering (spec.md §4.5, component
// G): it walks a filter's DFA state by state and emits a flat [mir.Program]
// that [internal/cfgbuild] can cut into basic blocks.
package lower

import (
	"github.com/netpfl/compiler/internal/filterfe"
	"github.com/netpfl/compiler/internal/fsa"
	"github.com/netpfl/compiler/internal/hir"
	"github.com/netpfl/compiler/internal/mir"
	"github.com/netpfl/compiler/internal/symtab"
)

// stateLabels is the pair of labels spec.md §4.5 steps 1 and 3 attach to
// every DFA state: s.complete (where before/format run) and s.fast (where
// outgoing-transition dispatch begins, skipped by a jump landing directly
// past an already-run before/format).
type stateLabels struct {
	Complete *symtab.Label
	Fast     *symtab.Label
}

// Lower drives the six-step algorithm of spec.md §4.5 over every state of
// dfa, in state-ID order, emitting into a fresh [mir.Program]. trueLabel
// and falseLabel are the filter's shared accept/reject targets (spec.md
// §4.5 step 6 and the "Failure model" of §4.3).
func Lower(dfa *filterfe.DFA, st *symtab.Table, trueLabel, falseLabel *symtab.Label) *mir.Program {
	b := mir.NewBuilder()
	c := &ctx{b: b, st: st, regs: make(map[*symtab.Variable]mir.Reg)}

	labels := make(map[fsa.StateID]*stateLabels)
	labelsFor := func(sid fsa.StateID) *stateLabels {
		if lp, ok := labels[sid]; ok {
			return lp
		}
		lp := &stateLabels{Complete: st.NewLabel(false), Fast: st.NewLabel(false)}
		labels[sid] = lp
		return lp
	}

	for _, sid := range dfa.States() {
		state := dfa.State(sid)
		lp := labelsFor(sid)

		// Step 1.
		b.Label(lp.Complete)

		// Step 2: the state's sole owning Proto runs its before/format
		// sections here, once, at this occurrence in the automaton.
		if state.HasInfo && len(state.MultiProtos) == 0 {
			lowerProtoEntry(c, state.Info)
		}

		// Step 3.
		b.Label(lp.Fast)

		// Step 4: outgoing transitions.
		for _, t := range dfa.Transitions(sid) {
			lowerTransition(c, t, labelsFor, falseLabel)
		}

		// Step 5: encapsulation switch, if this state owns a Proto.
		if state.HasInfo {
			lowerEncap(c, state.Info)
		}

		// Step 6: terminal states resolve to the shared accept/reject
		// labels; non-terminal states fall through to step 4's jumps.
		if state.IsFinal {
			if state.IsAccepting {
				b.Return(true, trueLabel)
			} else {
				b.Return(false, falseLabel)
			}
		}
	}

	return b.Program()
}

// lowerProtoEntry emits p's before section followed by its format section
// (spec.md §4.5 step 2), each lowered in its own HIR arena.
func lowerProtoEntry(c *ctx, p *symtab.Proto) {
	if before, ok := p.BeforeHIR.(*hir.Sections); ok && before != nil {
		c.withArena(before.Arena, func() { lowerBlock(c, before.Body) })
	}
	if format, ok := p.FormatHIR.(*hir.Sections); ok && format != nil {
		c.withArena(format.Arena, func() { lowerBlock(c, format.Body) })
	}
}

// lowerEncap lowers p's encapsulation switch, already built by the Filter
// Front-End's ParseEncapsulation step with jumps to the right next-proto
// labels baked into its HIR body (spec.md §4.5 step 5).
func lowerEncap(c *ctx, p *symtab.Proto) {
	if encap, ok := p.EncapHIR.(*hir.Sections); ok && encap != nil {
		c.withArena(encap.Arena, func() { lowerBlock(c, encap.Body) })
	}
}

// lowerTransition emits the code for one outgoing DFA edge (spec.md §4.5
// step 4): an ET decision tree, a guarded predicate jump, a complement-set
// last resort, or a plain jump.
func lowerTransition(c *ctx, t fsa.Transition[fsa.Label, filterfe.Predicate], labelsFor func(fsa.StateID) *stateLabels, falseLabel *symtab.Label) {
	switch {
	case t.ET != nil:
		nodeByID := make(map[int]*fsa.ETNode)
		collectETNodes(t.ET, nodeByID)
		v := &etCodegen{c: c, labelsFor: labelsFor, fail: falseLabel, nodeByID: nodeByID}
		fsa.Walk(t.ET, v)
	case t.Predicate != nil:
		c.withArena(t.Predicate.Arena, func() {
			cond := lowerExpr(c, t.Predicate.Expr)
			c.b.JCond(cond, labelsFor(t.To).Complete, falseLabel)
		})
	case t.Complement:
		// "A complement-set transition yields a last-resort jump" (spec.md
		// §4.3): it only fires once every labelled edge has failed, so it
		// converges straight to the failure label rather than t.To.
		c.b.Jump(falseLabel)
	default:
		c.b.Jump(labelsFor(t.To).Complete)
	}
}
