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

// DeadCodeElimination drops instructions with no side effect that no
// surviving instruction reads, by marking control flow, labels, and
// side-effecting nodes as live and propagating liveness backward through
// operand edges to a fixed point (spec.md §4.7 step 4). A block can end
// up with no instructions at all; [BasicBlockElimination] is what cleans
// those up, so callers must not assume Terminator is always safe to call
// immediately after this pass runs.
type DeadCodeElimination struct{ modified int }

func (p *DeadCodeElimination) Name() string      { return "dead-code-elimination" }
func (p *DeadCodeElimination) ModifiedCount() int { return p.modified }

func (p *DeadCodeElimination) Run(cfg *cfgbuild.CFG) bool {
	p.modified = 0
	used := make(map[arena.Handle[mir.Node]]bool)

	for _, blk := range cfg.Blocks {
		for _, h := range blk.Instr {
			n := cfg.Arena.Get(h)
			if n.SideEffecting || n.Pinned || isTerminatorOp(n.Op) || n.Op == mir.OpLabel {
				used[h] = true
			}
		}
	}

	for changed := true; changed; {
		changed = false
		for _, blk := range cfg.Blocks {
			for _, h := range blk.Instr {
				if !used[h] {
					continue
				}
				n := cfg.Arena.Get(h)
				for _, child := range operandsOf(n) {
					if child.Valid() && !used[child] {
						used[child] = true
						changed = true
					}
				}
			}
		}
	}

	removedAny := false
	for _, blk := range cfg.Blocks {
		var kept []arena.Handle[mir.Node]
		for _, h := range blk.Instr {
			if used[h] {
				kept = append(kept, h)
			} else {
				removedAny = true
				p.modified++
			}
		}
		blk.Instr = kept
	}
	return removedAny
}

func operandsOf(n *mir.Node) []arena.Handle[mir.Node] {
	out := make([]arena.Handle[mir.Node], 0, 2+len(n.PhiArgs))
	out = append(out, n.Left, n.Right)
	out = append(out, n.PhiArgs...)
	return out
}

func isTerminatorOp(op mir.Op) bool {
	switch op {
	case mir.OpJump, mir.OpJCond, mir.OpSwitch, mir.OpReturn:
		return true
	}
	return false
}
