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

package cfgbuild_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netpfl/compiler/internal/cfgbuild"
	"github.com/netpfl/compiler/internal/mir"
	"github.com/netpfl/compiler/internal/symtab"
)

func TestBuildEmptyProgramYieldsNoBlocks(t *testing.T) {
	t.Parallel()

	b := mir.NewBuilder()
	cfg := cfgbuild.Build(b.Program())

	assert.Empty(t, cfg.Blocks)
}

func TestBuildStraightLineProgramIsOneBlock(t *testing.T) {
	t.Parallel()

	b := mir.NewBuilder()
	one := b.Const(1)
	two := b.Const(2)
	b.BinOp(mir.OpAdd, one, two)

	cfg := cfgbuild.Build(b.Program())

	require.Len(t, cfg.Blocks, 1)
	assert.Equal(t, 0, cfg.Entry)
	assert.Empty(t, cfg.Blocks[0].Succs)
	assert.Empty(t, cfg.Blocks[0].Preds)
}

func TestBuildSplitsAtLabelsAndWiresFallthrough(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	mid := st.NewLabel(false)

	b := mir.NewBuilder()
	b.Const(1)
	b.Label(mid)
	b.Const(2)

	cfg := cfgbuild.Build(b.Program())

	require.Len(t, cfg.Blocks, 2)
	assert.Equal(t, mid, cfg.Blocks[1].Label(cfg.Arena))
	require.Len(t, cfg.Blocks[0].Succs, 1)
	assert.Equal(t, 1, cfg.Blocks[0].Succs[0].Block, "falls through into the labelled block")
	assert.Equal(t, []int{0}, cfg.Blocks[1].Preds)
}

func TestBuildJumpWiresDirectSuccessor(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	target := st.NewLabel(false)

	b := mir.NewBuilder()
	b.Jump(target)
	b.Label(target)
	b.Const(0)

	cfg := cfgbuild.Build(b.Program())

	require.Len(t, cfg.Blocks, 2)
	require.Len(t, cfg.Blocks[0].Succs, 1)
	assert.Equal(t, 1, cfg.Blocks[0].Succs[0].Block)
	assert.Equal(t, []int{0}, cfg.Blocks[1].Preds)
}

func TestBuildJCondWiresBothBranches(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	onTrue := st.NewLabel(false)
	onFalse := st.NewLabel(false)

	b := mir.NewBuilder()
	cond := b.Const(1)
	b.JCond(cond, onTrue, onFalse)
	b.Label(onTrue)
	b.Const(1)
	b.Label(onFalse)
	b.Const(0)

	cfg := cfgbuild.Build(b.Program())

	require.Len(t, cfg.Blocks, 3)
	entry := cfg.Blocks[0]
	require.Len(t, entry.Succs, 2)
	targets := []int{entry.Succs[0].Block, entry.Succs[1].Block}
	assert.ElementsMatch(t, []int{1, 2}, targets)
}

func TestBuildReturnToUndefinedLabelIsExternalEdge(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	trueLabel := st.NewLabel(false)

	b := mir.NewBuilder()
	b.Return(true, trueLabel)

	cfg := cfgbuild.Build(b.Program())

	require.Len(t, cfg.Blocks, 1)
	require.Len(t, cfg.Blocks[0].Succs, 1)
	edge := cfg.Blocks[0].Succs[0]
	assert.Equal(t, -1, edge.Block)
	assert.Equal(t, trueLabel, edge.External)
}

func TestBuildKeepsUnreachableBlock(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	live := st.NewLabel(false)
	dead := st.NewLabel(false)
	trueLabel := st.NewLabel(false)

	b := mir.NewBuilder()
	b.Jump(live)
	b.Label(dead)
	b.Const(99)
	b.Label(live)
	b.Return(true, trueLabel)

	cfg := cfgbuild.Build(b.Program())

	require.Len(t, cfg.Blocks, 3, "the unreachable dead-labelled block is still cut and kept")
	deadBlock := cfg.Blocks[1]
	assert.Equal(t, dead, deadBlock.Label(cfg.Arena))
	assert.Empty(t, deadBlock.Preds, "nothing in the graph jumps to it")
}

func TestBuildSwitchWiresAllCasesAndDefault(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	case1 := st.NewLabel(false)
	def := st.NewLabel(false)

	b := mir.NewBuilder()
	subject := b.Const(4)
	c1 := st.AddConstant(int64(4))
	b.Switch(subject, []mir.CaseArm{{Value: c1, Target: case1}}, def)
	b.Label(case1)
	b.Const(1)
	b.Label(def)
	b.Const(0)

	cfg := cfgbuild.Build(b.Program())

	require.Len(t, cfg.Blocks, 3)
	entry := cfg.Blocks[0]
	require.Len(t, entry.Succs, 2)
	targets := []int{entry.Succs[0].Block, entry.Succs[1].Block}
	assert.ElementsMatch(t, []int{1, 2}, targets)
}
