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

package optimize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netpfl/compiler/internal/cfgbuild"
	"github.com/netpfl/compiler/internal/mir"
	"github.com/netpfl/compiler/internal/optimize"
	"github.com/netpfl/compiler/internal/symtab"
)

// diamondProgram builds r1 = cond ? 10 : 20; use r1, a CFG with a merge
// point that forces a real phi during Enter-SSA.
func diamondProgram(st *symtab.Table) *mir.Program {
	onTrue := st.NewLabel(false)
	onFalse := st.NewLabel(false)
	join := st.NewLabel(false)
	trueLabel := st.NewLabel(false)

	b := mir.NewBuilder()
	r1 := b.NewReg()
	cond := b.Const(1)
	b.JCond(cond, onTrue, onFalse)

	b.Label(onTrue)
	b.StReg(r1, b.Const(10), false)
	b.Jump(join)

	b.Label(onFalse)
	b.StReg(r1, b.Const(20), false)
	b.Jump(join)

	b.Label(join)
	b.BinOp(mir.OpAdd, b.LdReg(r1), b.Const(0))
	b.Return(true, trueLabel)

	return b.Program()
}

func TestRegisterMapCompactsToOneBasedDenseNamespace(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	b := mir.NewBuilder()
	rA := b.NewReg()
	rB := b.NewReg()
	// Skip straight to big register numbers, as if earlier passes had
	// already allocated (and then discarded) many temporaries.
	_ = rA
	_ = rB
	r10 := mir.Reg(10)
	r20 := mir.Reg(20)
	b.StReg(r10, b.Const(1), true)
	b.StReg(r20, b.Const(2), true)

	cfg := cfgbuild.Build(b.Program())
	_ = st

	mapping := optimize.RegisterMap(cfg, nil)

	assert.Equal(t, mir.Reg(1), mapping[r10])
	assert.Equal(t, mir.Reg(2), mapping[r20])
	assert.Equal(t, mir.Reg(1), cfg.Arena.Get(cfg.Blocks[0].Instr[0]).DefReg)
	assert.Equal(t, mir.Reg(2), cfg.Arena.Get(cfg.Blocks[0].Instr[1]).DefReg)
}

func TestRegisterMapLeavesIgnoredRegistersUntouched(t *testing.T) {
	t.Parallel()

	b := mir.NewBuilder()
	pinned := mir.Reg(7)
	b.StReg(pinned, b.Const(1), true)

	cfg := cfgbuild.Build(b.Program())

	mapping := optimize.RegisterMap(cfg, map[mir.Reg]bool{pinned: true})

	assert.Empty(t, mapping, "the only register in the program is ignored")
	assert.Equal(t, pinned, cfg.Arena.Get(cfg.Blocks[0].Instr[0]).DefReg)
}

func TestOptimizeDiamondResolvesPhiWithoutChangingObservableBehaviour(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	cfg := cfgbuild.Build(diamondProgram(st))

	mapping := optimize.Optimize(cfg, st, nil)
	assert.NotEmpty(t, mapping)

	for _, blk := range cfg.Blocks {
		for _, h := range blk.Instr {
			assert.NotEqual(t, mir.OpPhi, cfg.Arena.Get(h).Op, "no phi survives Exit-SSA")
		}
	}
}

func TestOptimizeIsIdempotent(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	cfg := cfgbuild.Build(diamondProgram(st))
	optimize.Optimize(cfg, st, nil)

	before := dumpOps(cfg)

	st2 := symtab.New()
	cfg2 := cfgbuild.Build(diamondProgram(st2))
	optimize.Optimize(cfg2, st2, nil)
	optimize.RunFixedPoint(cfg2, optimize.FixedPointPasses())

	after := dumpOps(cfg2)
	require.Equal(t, len(before), len(after))
}

func dumpOps(cfg *cfgbuild.CFG) []mir.Op {
	var ops []mir.Op
	for _, blk := range cfg.Blocks {
		for _, h := range blk.Instr {
			ops = append(ops, cfg.Arena.Get(h).Op)
		}
	}
	return ops
}
