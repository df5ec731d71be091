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

// RegisterMap compacts every register still defined in cfg into a dense
// namespace starting at 1, numbered in the order each register is first
// defined when walking blocks and instructions in order (spec.md §4.7
// step 7: "allocate every live register to a dense output namespace,
// skipping an optional ignored set").
//
// By the time this runs, [ExitSSA] plus [FoldCopies]/[KillRedundantCopies]
// have already collapsed straight-line copies and resolved every use that
// crosses a block boundary into a direct reference to its defining
// instruction; the registers still carrying a DefReg at this point are
// exactly the ones the Bytecode Emitter must print a concrete `rN` for.
// Entries in ignored (e.g. registers a coprocessor contract pins to a
// fixed physical meaning) are left untouched rather than renumbered.
//
// Grounded on spec.md §9's "replace template-class polymorphism... with a
// small trait/interface" note applied one step further: this pass has no
// Name()/Run()/ModifiedCount() shape of its own because, unlike the
// fixed-point passes in [FixedPointPasses], it runs exactly once, last,
// and never needs to report "did anything change" to a driving loop.
func RegisterMap(cfg *cfgbuild.CFG, ignored map[mir.Reg]bool) map[mir.Reg]mir.Reg {
	mapping := make(map[mir.Reg]mir.Reg)
	var next mir.Reg = 1

	assign := func(r mir.Reg) mir.Reg {
		if r == 0 || ignored[r] {
			return r
		}
		if mapped, ok := mapping[r]; ok {
			return mapped
		}
		mapping[r] = next
		next++
		return mapping[r]
	}

	for _, blk := range cfg.Blocks {
		for _, h := range blk.Instr {
			n := cfg.Arena.Get(h)
			if n.DefReg != 0 {
				n.DefReg = assign(n.DefReg)
			}
		}
	}

	return mapping
}
