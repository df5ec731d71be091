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

package optimize

import (
	"github.com/netpfl/compiler/internal/arena"
	"github.com/netpfl/compiler/internal/cfgbuild"
	"github.com/netpfl/compiler/internal/mir"
	"github.com/netpfl/compiler/internal/symtab"
)

// EdgeSplit inserts an empty block on every critical edge — one whose
// source has more than one successor and whose destination has more than
// one predecessor (spec.md §4.7 step 1) — so that Exit-SSA has a place to
// put phi-resolving copies that affects only that one edge.
func EdgeSplit(cfg *cfgbuild.CFG, st *symtab.Table) bool {
	type edge struct{ from, to int }
	var criticals []edge
	for bi, b := range cfg.Blocks {
		if len(b.Succs) <= 1 {
			continue
		}
		for _, e := range b.Succs {
			if e.Block >= 0 && len(cfg.Blocks[e.Block].Preds) > 1 {
				criticals = append(criticals, edge{bi, e.Block})
			}
		}
	}

	for _, e := range criticals {
		splitEdge(cfg, st, e.from, e.to)
	}
	return len(criticals) > 0
}

func splitEdge(cfg *cfgbuild.CFG, st *symtab.Table, from, to int) {
	toLabel := blockLabel(cfg, st, to)
	newLabel := st.NewLabel(false)

	labelHandle := arena.New(cfg.Arena, mir.Node{Op: mir.OpLabel, Target: newLabel})
	jumpHandle := arena.New(cfg.Arena, mir.Node{Op: mir.OpJump, Target: toLabel})

	newID := len(cfg.Blocks)
	newBlock := &cfgbuild.Block{
		ID:    newID,
		Instr: []arena.Handle[mir.Node]{labelHandle, jumpHandle},
		Succs: []cfgbuild.Edge{{Block: to}},
		Preds: []int{from},
	}
	cfg.Blocks = append(cfg.Blocks, newBlock)

	replaceLabel(cfg.Blocks[from].Terminator(cfg.Arena), toLabel, newLabel)

	for i, e := range cfg.Blocks[from].Succs {
		if e.Block == to {
			cfg.Blocks[from].Succs[i].Block = newID
		}
	}
	for i, p := range cfg.Blocks[to].Preds {
		if p == from {
			cfg.Blocks[to].Preds[i] = newID
		}
	}
}

// blockLabel returns the label bi's leader declares, synthesizing and
// prepending one if bi has none (the CFG's entry block when the program's
// first instruction isn't itself an OpLabel, or any block that starts
// right after a terminator without a label).
func blockLabel(cfg *cfgbuild.CFG, st *symtab.Table, bi int) *symtab.Label {
	if l := cfg.Blocks[bi].Label(cfg.Arena); l != nil {
		return l
	}
	l := st.NewLabel(false)
	h := arena.New(cfg.Arena, mir.Node{Op: mir.OpLabel, Target: l})
	cfg.Blocks[bi].Instr = append([]arena.Handle[mir.Node]{h}, cfg.Blocks[bi].Instr...)
	return l
}

// replaceLabel rewrites every occurrence of old in n's label operands to
// repl, reporting whether it changed anything.
func replaceLabel(n *mir.Node, old, repl *symtab.Label) bool {
	changed := false
	if n.Target == old {
		n.Target = repl
		changed = true
	}
	if n.TrueLabel == old {
		n.TrueLabel = repl
		changed = true
	}
	if n.FalseLabel == old {
		n.FalseLabel = repl
		changed = true
	}
	if n.DefaultTarget == old {
		n.DefaultTarget = repl
		changed = true
	}
	for i := range n.Cases {
		if n.Cases[i].Target == old {
			n.Cases[i].Target = repl
			changed = true
		}
	}
	return changed
}

// insertBeforeTerminator splices h into bi's instruction list immediately
// before its terminator.
func insertBeforeTerminator(cfg *cfgbuild.CFG, bi int, h arena.Handle[mir.Node]) {
	blk := cfg.Blocks[bi]
	if len(blk.Instr) == 0 {
		blk.Instr = []arena.Handle[mir.Node]{h}
		return
	}
	last := blk.Instr[len(blk.Instr)-1]
	ni := make([]arena.Handle[mir.Node], 0, len(blk.Instr)+1)
	ni = append(ni, blk.Instr[:len(blk.Instr)-1]...)
	ni = append(ni, h, last)
	blk.Instr = ni
}

// insertAfterLabel splices h into bi's instruction list right after its
// leading OpLabel (or at the front, if bi has none).
func insertAfterLabel(cfg *cfgbuild.CFG, bi int, h arena.Handle[mir.Node]) {
	blk := cfg.Blocks[bi]
	at := 0
	if len(blk.Instr) > 0 && cfg.Arena.Get(blk.Instr[0]).Op == mir.OpLabel {
		at = 1
	}
	ni := make([]arena.Handle[mir.Node], 0, len(blk.Instr)+1)
	ni = append(ni, blk.Instr[:at]...)
	ni = append(ni, h)
	ni = append(ni, blk.Instr[at:]...)
	blk.Instr = ni
}
