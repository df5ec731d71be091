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

// CopyPropagation rewrites `x = y; ... use x` into `... use y` within a
// block, building the transitive closure of copy chains first (spec.md
// §4.7 step 4). [EnterSSA] already folds most register copies directly
// into the rename; this pass is a local safety net for copies later
// passes introduce within a single block (e.g. [ExitSSA]'s phi-resolving
// stores), and is reused directly as [FoldCopies].
type CopyPropagation struct{ modified int }

func (p *CopyPropagation) Name() string      { return "copy-propagation" }
func (p *CopyPropagation) ModifiedCount() int { return p.modified }

func (p *CopyPropagation) Run(cfg *cfgbuild.CFG) bool {
	p.modified = 0
	changed := false
	for _, blk := range cfg.Blocks {
		copyOf := make(map[mir.Reg]arena.Handle[mir.Node])
		for _, h := range blk.Instr {
			n := cfg.Arena.Get(h)
			if n.Op == mir.OpStReg {
				n.Left = chase(cfg, copyOf, n.Left)
				copyOf[n.DefReg] = n.Left
				continue
			}
			if l := chase(cfg, copyOf, n.Left); l != n.Left {
				n.Left = l
				changed = true
				p.modified++
			}
			if r := chase(cfg, copyOf, n.Right); r != n.Right {
				n.Right = r
				changed = true
				p.modified++
			}
		}
	}
	return changed
}

// chase follows a chain of register copies recorded in copyOf back to
// its ultimate source, or returns h unchanged if it isn't a tracked
// copy.
func chase(cfg *cfgbuild.CFG, copyOf map[mir.Reg]arena.Handle[mir.Node], h arena.Handle[mir.Node]) arena.Handle[mir.Node] {
	for h.Valid() {
		n := cfg.Arena.Get(h)
		if n.Op != mir.OpLdReg {
			return h
		}
		v, ok := copyOf[n.DefReg]
		if !ok {
			return h
		}
		h = v
	}
	return h
}

// ConstantPropagation substitutes a register read with a constant when
// every definition of that register anywhere in cfg stores the exact
// same constant value (spec.md §4.7 step 4: "substitute constants read
// from SSA stores").
type ConstantPropagation struct{ modified int }

func (p *ConstantPropagation) Name() string      { return "constant-propagation" }
func (p *ConstantPropagation) ModifiedCount() int { return p.modified }

func (p *ConstantPropagation) Run(cfg *cfgbuild.CFG) bool {
	p.modified = 0

	constOf := make(map[mir.Reg]int64)
	consistent := make(map[mir.Reg]bool)
	seen := make(map[mir.Reg]bool)

	for _, blk := range cfg.Blocks {
		for _, h := range blk.Instr {
			n := cfg.Arena.Get(h)
			if n.Op != mir.OpStReg || n.DefReg == 0 {
				continue
			}
			reg := n.DefReg
			src := cfg.Arena.Get(n.Left)
			if src.Op != mir.OpConst {
				consistent[reg] = false
				seen[reg] = true
				continue
			}
			if !seen[reg] {
				seen[reg] = true
				consistent[reg] = true
				constOf[reg] = src.Value
			} else if consistent[reg] && constOf[reg] != src.Value {
				consistent[reg] = false
			}
		}
	}

	changed := false
	for _, blk := range cfg.Blocks {
		for _, h := range blk.Instr {
			n := cfg.Arena.Get(h)
			if ch, ok := substituteConst(cfg, n.Left, consistent, constOf); ok {
				n.Left = ch
				changed = true
				p.modified++
			}
			if ch, ok := substituteConst(cfg, n.Right, consistent, constOf); ok {
				n.Right = ch
				changed = true
				p.modified++
			}
		}
	}
	return changed
}

func substituteConst(cfg *cfgbuild.CFG, h arena.Handle[mir.Node], consistent map[mir.Reg]bool, constOf map[mir.Reg]int64) (arena.Handle[mir.Node], bool) {
	if !h.Valid() {
		return h, false
	}
	n := cfg.Arena.Get(h)
	if n.Op != mir.OpLdReg || !consistent[n.DefReg] {
		return h, false
	}
	return arena.New(cfg.Arena, mir.Node{Op: mir.OpConst, Value: constOf[n.DefReg]}), true
}
