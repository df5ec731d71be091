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
	"github.com/netpfl/compiler/internal/cfgbuild"
	"github.com/netpfl/compiler/internal/mir"
	"github.com/netpfl/compiler/internal/symtab"
)

// BasicBlockElimination folds a block whose only content is a label
// followed by a single unconditional jump directly into its successor,
// redirecting the block's one predecessor past it (spec.md §4.7 step 4:
// "empty BB, redundant jump, jump-to-jump ... passes; repeat until
// quiescent" — RunFixedPoint supplies the repetition).
//
// This only fires on single-predecessor relay blocks (exactly what
// [EdgeSplit] manufactures). A block with several predecessors can't be
// folded this way without resizing its successor's predecessor list,
// which would desync any phi already placed there by [EnterSSA]; wiring
// that fan-in case up correctly is left undone, and multi-pred relay
// blocks are simply left in place.
type BasicBlockElimination struct{ modified int }

func (p *BasicBlockElimination) Name() string      { return "basic-block-elimination" }
func (p *BasicBlockElimination) ModifiedCount() int { return p.modified }

func (p *BasicBlockElimination) Run(cfg *cfgbuild.CFG) bool {
	p.modified = 0
	changed := false

	for bi, blk := range cfg.Blocks {
		if bi == cfg.Entry || len(blk.Preds) != 1 {
			continue
		}
		target, targetLabel, ok := soleJumpTarget(cfg, blk)
		if !ok || target == bi {
			continue
		}
		blkLabel := blk.Label(cfg.Arena)
		if blkLabel == nil {
			continue
		}

		pred := blk.Preds[0]
		predBlk := cfg.Blocks[pred]
		if len(predBlk.Instr) == 0 {
			continue
		}
		if !replaceLabel(predBlk.Terminator(cfg.Arena), blkLabel, targetLabel) {
			continue
		}

		for i, e := range predBlk.Succs {
			if e.Block == bi {
				predBlk.Succs[i].Block = target
			}
		}
		targetBlk := cfg.Blocks[target]
		for i, tp := range targetBlk.Preds {
			if tp == bi {
				targetBlk.Preds[i] = pred
			}
		}
		blk.Preds = nil

		changed = true
		p.modified++
	}
	return changed
}

// soleJumpTarget reports whether blk's only real instruction besides its
// label is a single unconditional jump, returning the successor block it
// targets and that target's resolved label.
func soleJumpTarget(cfg *cfgbuild.CFG, blk *cfgbuild.Block) (int, *symtab.Label, bool) {
	var jump *mir.Node
	for _, h := range blk.Instr {
		n := cfg.Arena.Get(h)
		if n.Op == mir.OpLabel {
			continue
		}
		if n.Op != mir.OpJump || jump != nil {
			return 0, nil, false
		}
		jump = n
	}
	if jump == nil || len(blk.Succs) != 1 || blk.Succs[0].Block < 0 {
		return 0, nil, false
	}
	return blk.Succs[0].Block, jump.Target.Resolve(), true
}
