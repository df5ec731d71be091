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

// Package optimize implements the SSA-based optimiser (spec.md §4.7,
// component I): edge-splitting, dominance, SSA entry/exit,
// constant/copy propagation, constant folding, algebraic simplification,
// reassociation with memory barriers, redistribution, dead-code
// elimination, basic-block cleanup, and register mapping.
//
// Every fixed-point pass implements [Pass], following the shape of the
// original NetBee implementation's own OptimizationStep interface
// (original_source/netbee/src/nbnetvm/jit/opt/optimization_step.h:
// "start(bool &code_changed)"), generalized per spec.md §9's design note
// ("replace template-class polymorphism... with a small trait/interface:
// every pass exposes name(), run(cfg)→bool, modified_count()").
package optimize

import (
	"github.com/netpfl/compiler/internal/cfgbuild"
	"github.com/netpfl/compiler/internal/mir"
	"github.com/netpfl/compiler/internal/symtab"
)

// Pass is one optimisation step over a CFG.
type Pass interface {
	// Name identifies the pass for debug logging and regression checks.
	Name() string
	// Run applies the pass once, returning whether it changed anything.
	Run(cfg *cfgbuild.CFG) bool
	// ModifiedCount returns how many nodes the most recent Run call
	// touched (spec.md §5 "Ordering": "a modifiedNodes counter used for
	// regression checks").
	ModifiedCount() int
}

// FixedPointPasses returns the passes run inside the inner loop of
// spec.md §4.7 step 4, in the fixed order the spec lists them.
func FixedPointPasses() []Pass {
	return []Pass{
		&CopyPropagation{},
		&ConstantPropagation{},
		&ConstantFolding{},
		&AlgebraicSimplification{},
		&DeadCodeElimination{},
		&Reassociation{},
		&Redistribution{},
		&BasicBlockElimination{},
	}
}

// RunFixedPoint runs passes repeatedly until none of them reports a
// change (spec.md §4.7: "the inner loop iterates until no pass reports a
// change").
func RunFixedPoint(cfg *cfgbuild.CFG, passes []Pass) {
	for {
		changed := false
		for _, p := range passes {
			if p.Run(cfg) {
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// Optimize runs the full pipeline of spec.md §4.7 over cfg, in the fixed
// order the spec lists its numbered steps: edge-splitting, dominance,
// enter-SSA, the fixed-point inner loop, exit-SSA, fold/kill copies, and
// register mapping. st is the owning [symtab.Table], needed by
// [EdgeSplit] to allocate labels for the blocks it inserts. ignoredRegs is
// passed straight through to [RegisterMap]; it may be nil.
//
// It returns the final register mapping, which the Bytecode Emitter (§4.8,
// component J) uses to print `rN` operands.
func Optimize(cfg *cfgbuild.CFG, st *symtab.Table, ignoredRegs map[mir.Reg]bool) map[mir.Reg]mir.Reg {
	EdgeSplit(cfg, st)
	dom := ComputeDominance(cfg)
	phis := EnterSSA(cfg, dom)

	RunFixedPoint(cfg, FixedPointPasses())

	ExitSSA(cfg, phis)
	for {
		a := FoldCopies(cfg)
		b := KillRedundantCopies(cfg)
		if !a && !b {
			break
		}
	}

	return RegisterMap(cfg, ignoredRegs)
}
