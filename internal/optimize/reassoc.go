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

// Reassociation common-subexpressions redundant field loads within a
// block: two OpLoadField nodes reading the same field at the same size
// are interchangeable only if neither the packet buffer nor the capture
// data changed between them, which is exactly what a [mir.MemBarrier]
// stamps on every node at emit time (spec.md §4.7 step 4, "a candidate
// load may be moved only if its tag matches the current version").
// Folding the second occurrence into the first is a safe, conservative
// reassociation: it never moves a load across a barrier edge, only
// recognises when two loads already share one.
//
// This is barrier-keyed load CSE only. spec.md §4.7 step 4 additionally
// describes an SSA graph walker that store-substitutes loads and then
// fixes up STREGs left dangling by the substitution; that half is not
// implemented here and no other pass in this package covers it.
type Reassociation struct{ modified int }

func (p *Reassociation) Name() string      { return "reassociation" }
func (p *Reassociation) ModifiedCount() int { return p.modified }

type loadKey struct {
	field  *symtab.Field
	size   int
	pv, dv int
}

func (p *Reassociation) Run(cfg *cfgbuild.CFG) bool {
	p.modified = 0
	changed := false
	for _, blk := range cfg.Blocks {
		seen := make(map[loadKey]arena.Handle[mir.Node])
		for _, h := range blk.Instr {
			n := cfg.Arena.Get(h)
			if n.Op != mir.OpLoadField {
				continue
			}
			k := loadKey{n.Sym.Field, n.Size, n.Barrier.PacketVersion, n.Barrier.DataVersion}
			if first, ok := seen[k]; ok && first != h {
				*n = *cfg.Arena.Get(first)
				changed = true
				p.modified++
				continue
			}
			seen[k] = h
		}
	}
	return changed
}

// Redistribution rewrites `(x op c1) op c2` into `x op (c1 op c2)` for
// op in {+, *}, when the intermediate node is used exactly once — if it
// were used elsewhere, collapsing it would change that other use's
// value too (spec.md §4.7 step 4).
type Redistribution struct{ modified int }

func (p *Redistribution) Name() string      { return "redistribution" }
func (p *Redistribution) ModifiedCount() int { return p.modified }

func (p *Redistribution) Run(cfg *cfgbuild.CFG) bool {
	p.modified = 0
	useCount := computeUseCounts(cfg)
	changed := false
	for _, blk := range cfg.Blocks {
		for _, h := range blk.Instr {
			n := cfg.Arena.Get(h)
			if n.Op != mir.OpAdd && n.Op != mir.OpMul {
				continue
			}
			if !n.Left.Valid() || useCount[n.Left] != 1 {
				continue
			}
			inner := cfg.Arena.Get(n.Left)
			if inner.Op != n.Op {
				continue
			}
			c2, ok := constValue(cfg, n.Right)
			if !ok {
				continue
			}
			c1, ok := constValue(cfg, inner.Right)
			if !ok {
				continue
			}
			var combined int64
			if n.Op == mir.OpAdd {
				combined = c1 + c2
			} else {
				combined = c1 * c2
			}
			n.Left = inner.Left
			n.Right = newConst(cfg, combined)
			changed = true
			p.modified++
		}
	}
	return changed
}

func computeUseCounts(cfg *cfgbuild.CFG) map[arena.Handle[mir.Node]]int {
	counts := make(map[arena.Handle[mir.Node]]int)
	for _, blk := range cfg.Blocks {
		for _, h := range blk.Instr {
			n := cfg.Arena.Get(h)
			if n.Left.Valid() {
				counts[n.Left]++
			}
			if n.Right.Valid() {
				counts[n.Right]++
			}
			for _, a := range n.PhiArgs {
				if a.Valid() {
					counts[a]++
				}
			}
		}
	}
	return counts
}
