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
)

// FoldCopies collapses chains of register copies [ExitSSA] places on
// predecessor edges (spec.md §4.7 step 6, "fold copies"). It is plain
// [CopyPropagation] run once more, now that real OpStReg copies exist
// again outside SSA form.
func FoldCopies(cfg *cfgbuild.CFG) bool {
	return (&CopyPropagation{}).Run(cfg)
}

// KillRedundantCopies removes every OpStReg that assigns a register to
// its own current value — `mov rN, rN` — left over after phi resolution
// (spec.md §4.7 step 6).
func KillRedundantCopies(cfg *cfgbuild.CFG) bool {
	changed := false
	for _, blk := range cfg.Blocks {
		kept := blk.Instr[:0:0]
		for _, h := range blk.Instr {
			n := cfg.Arena.Get(h)
			if n.Op == mir.OpStReg && isSelfCopy(cfg, n) {
				changed = true
				continue
			}
			kept = append(kept, h)
		}
		blk.Instr = kept
	}
	return changed
}

func isSelfCopy(cfg *cfgbuild.CFG, n *mir.Node) bool {
	if !n.Left.Valid() {
		return false
	}
	src := cfg.Arena.Get(n.Left)
	return src.Op == mir.OpLdReg && src.DefReg == n.DefReg
}
