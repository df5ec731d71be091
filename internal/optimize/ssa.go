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
)

// EnterSSA inserts phi nodes at the iterated dominance frontier of every
// register's definition sites and renames every read to the definition
// that reaches it (spec.md §4.7 step 3), using the classic Cytron et al.
// dominator-tree renaming walk. Registers are not versioned in the [mir.Node]
// representation itself (mir.Reg's doc: "tracked out-of-band by the
// optimiser"); this pass instead rewrites each use's operand handle to
// point directly at the instruction that defines the reaching value,
// which also folds away simple `x = y` register copies as it goes (a
// register whose only remaining reads have all been redirected past it
// becomes dead for [DeadCodeElimination] to remove).
func EnterSSA(cfg *cfgbuild.CFG, dom *DomTree) map[int]map[mir.Reg]arena.Handle[mir.Node] {
	defs := defSites(cfg)
	phis := make(map[int]map[mir.Reg]arena.Handle[mir.Node])

	for reg, sites := range defs {
		placePhis(cfg, dom, reg, sites, phis)
	}

	r := &renamer{cfg: cfg, dom: dom, phis: phis, stacks: make(map[mir.Reg][]arena.Handle[mir.Node])}
	r.visit(cfg.Entry)
	return phis
}

// defSites returns, for every register defined anywhere in cfg, the set
// of blocks containing a definition (an [mir.OpStReg] or [mir.OpCopIn]
// with that DefReg).
func defSites(cfg *cfgbuild.CFG) map[mir.Reg][]int {
	out := make(map[mir.Reg][]int)
	seen := make(map[mir.Reg]map[int]bool)
	for bi, blk := range cfg.Blocks {
		for _, h := range blk.Instr {
			n := cfg.Arena.Get(h)
			if n.DefReg == 0 || (n.Op != mir.OpStReg && n.Op != mir.OpCopIn) {
				continue
			}
			if seen[n.DefReg] == nil {
				seen[n.DefReg] = make(map[int]bool)
			}
			if !seen[n.DefReg][bi] {
				seen[n.DefReg][bi] = true
				out[n.DefReg] = append(out[n.DefReg], bi)
			}
		}
	}
	return out
}

// placePhis inserts a phi for reg at every block in the iterated
// dominance frontier of its definition sites.
func placePhis(cfg *cfgbuild.CFG, dom *DomTree, reg mir.Reg, defs []int, phis map[int]map[mir.Reg]arena.Handle[mir.Node]) {
	hasPhi := make(map[int]bool)
	onWorklist := make(map[int]bool)
	worklist := append([]int(nil), defs...)
	for _, d := range defs {
		onWorklist[d] = true
	}

	for len(worklist) > 0 {
		b := worklist[0]
		worklist = worklist[1:]
		for _, f := range dom.Frontier[b] {
			if hasPhi[f] {
				continue
			}
			hasPhi[f] = true
			h := arena.New(cfg.Arena, mir.Node{
				Op:      mir.OpPhi,
				DefReg:  reg,
				PhiArgs: make([]arena.Handle[mir.Node], len(cfg.Blocks[f].Preds)),
			})
			if phis[f] == nil {
				phis[f] = make(map[mir.Reg]arena.Handle[mir.Node])
			}
			phis[f][reg] = h
			insertAfterLabel(cfg, f, h)
			if !onWorklist[f] {
				onWorklist[f] = true
				worklist = append(worklist, f)
			}
		}
	}
}

type renamer struct {
	cfg    *cfgbuild.CFG
	dom    *DomTree
	phis   map[int]map[mir.Reg]arena.Handle[mir.Node]
	stacks map[mir.Reg][]arena.Handle[mir.Node]
}

func (r *renamer) push(reg mir.Reg, h arena.Handle[mir.Node]) {
	r.stacks[reg] = append(r.stacks[reg], h)
}

func (r *renamer) pop(reg mir.Reg) {
	s := r.stacks[reg]
	r.stacks[reg] = s[:len(s)-1]
}

// current returns the value reaching the current program point for reg.
// A top-of-stack [mir.OpStReg] is dereferenced to its source operand,
// folding straight-line copies directly into the rename; any other kind
// of definition (Phi, CopIn) is itself the value.
func (r *renamer) current(reg mir.Reg) (arena.Handle[mir.Node], bool) {
	s := r.stacks[reg]
	if len(s) == 0 {
		return arena.Handle[mir.Node]{}, false
	}
	h := s[len(s)-1]
	if n := r.cfg.Arena.Get(h); n.Op == mir.OpStReg {
		return n.Left, true
	}
	return h, true
}

func (r *renamer) resolve(h arena.Handle[mir.Node]) arena.Handle[mir.Node] {
	if !h.Valid() {
		return h
	}
	n := r.cfg.Arena.Get(h)
	if n.Op != mir.OpLdReg {
		return h
	}
	if cur, ok := r.current(n.DefReg); ok {
		return cur
	}
	return h
}

func (r *renamer) visit(bi int) {
	blk := r.cfg.Blocks[bi]
	var pushed []mir.Reg

	for _, h := range blk.Instr {
		n := r.cfg.Arena.Get(h)
		if n.Op == mir.OpPhi {
			r.push(n.DefReg, h)
			pushed = append(pushed, n.DefReg)
			continue
		}
		n.Left = r.resolve(n.Left)
		n.Right = r.resolve(n.Right)
		if n.DefReg != 0 && (n.Op == mir.OpStReg || n.Op == mir.OpCopIn) {
			r.push(n.DefReg, h)
			pushed = append(pushed, n.DefReg)
		}
	}

	for _, e := range blk.Succs {
		if e.Block < 0 {
			continue
		}
		succ := r.cfg.Blocks[e.Block]
		predIdx := indexOfInt(succ.Preds, bi)
		if predIdx < 0 {
			continue
		}
		for reg, ph := range r.phis[e.Block] {
			phiNode := r.cfg.Arena.Get(ph)
			if cur, ok := r.current(reg); ok {
				phiNode.PhiArgs[predIdx] = cur
			} else {
				// No reaching definition on this path: default to zero,
				// matching a read of an uninitialised register.
				phiNode.PhiArgs[predIdx] = arena.New(r.cfg.Arena, mir.Node{Op: mir.OpConst, Value: 0})
			}
		}
	}

	for _, child := range r.dom.Children[bi] {
		r.visit(child)
	}

	for _, reg := range pushed {
		r.pop(reg)
	}
}

func indexOfInt(s []int, v int) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

// ExitSSA places phi-resolving copies on predecessor edges and converts
// each phi node in place into a plain register read (spec.md §4.7 step
// 5: "place phi-resolving copies on predecessor edges (relies on
// edge-split)"). phis is the map [EnterSSA] returned.
//
// Every predecessor of a block with phis has exactly one successor after
// [EdgeSplit], so inserting a copy at the bottom of a predecessor cannot
// affect any other path out of it.
func ExitSSA(cfg *cfgbuild.CFG, phis map[int]map[mir.Reg]arena.Handle[mir.Node]) {
	for bi, regPhis := range phis {
		blk := cfg.Blocks[bi]

		remaining := make([]arena.Handle[mir.Node], 0, len(blk.Instr))
		for _, h := range blk.Instr {
			if cfg.Arena.Get(h).Op == mir.OpPhi {
				continue
			}
			remaining = append(remaining, h)
		}
		blk.Instr = remaining

		for reg, ph := range regPhis {
			phiNode := cfg.Arena.Get(ph)
			args := append([]arena.Handle[mir.Node](nil), phiNode.PhiArgs...)
			for predIdx, pred := range blk.Preds {
				copyHandle := arena.New(cfg.Arena, mir.Node{Op: mir.OpStReg, Left: args[predIdx], DefReg: reg})
				insertBeforeTerminator(cfg, pred, copyHandle)
			}
			// The phi node's handle may still be directly referenced as
			// an operand elsewhere (renaming substituted it in place of
			// an OpLdReg); turn it into a genuine register read instead
			// of deleting it, since arena slots cannot be freed.
			phiNode.Op = mir.OpLdReg
			phiNode.DefReg = reg
			phiNode.PhiArgs = nil
			phiNode.Left = arena.Handle[mir.Node]{}
			phiNode.Right = arena.Handle[mir.Node]{}
		}
	}
}
