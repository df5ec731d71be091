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

// ConstantFolding evaluates arithmetic, bitwise, and comparison nodes
// whose operands are both constants, and canonicalises the rest so
// constants sit on the right of a commutative op — a SUB with a constant
// right operand becomes an ADD of the negated constant, so later
// [Reassociation] and [Redistribution] see one uniform operator (spec.md
// §4.7 step 4).
type ConstantFolding struct{ modified int }

func (p *ConstantFolding) Name() string      { return "constant-folding" }
func (p *ConstantFolding) ModifiedCount() int { return p.modified }

func (p *ConstantFolding) Run(cfg *cfgbuild.CFG) bool {
	p.modified = 0
	changed := false
	for _, blk := range cfg.Blocks {
		for _, h := range blk.Instr {
			if foldNode(cfg, cfg.Arena.Get(h)) {
				changed = true
				p.modified++
			}
		}
	}
	return changed
}

func foldNode(cfg *cfgbuild.CFG, n *mir.Node) bool {
	switch n.Op {
	case mir.OpNeg, mir.OpNot:
		if c, ok := constValue(cfg, n.Left); ok {
			v := c
			if n.Op == mir.OpNeg {
				v = -c
			} else {
				v = ^c
			}
			*n = mir.Node{Op: mir.OpConst, Value: v, Barrier: n.Barrier}
			return true
		}
		return false

	case mir.OpAdd, mir.OpSub, mir.OpMul, mir.OpDiv, mir.OpAnd, mir.OpOr, mir.OpXor, mir.OpShl, mir.OpShr,
		mir.OpCmpEq, mir.OpCmpNeq, mir.OpCmpGt, mir.OpCmpGe, mir.OpCmpLt, mir.OpCmpLe:
		lc, lok := constValue(cfg, n.Left)
		rc, rok := constValue(cfg, n.Right)
		if lok && rok {
			if v, ok := evalBinary(n.Op, lc, rc); ok {
				*n = mir.Node{Op: mir.OpConst, Value: v, Barrier: n.Barrier}
				return true
			}
		}
		if n.Op == mir.OpSub && rok {
			n.Op = mir.OpAdd
			n.Right = newConst(cfg, -rc)
			return true
		}
		if lok && !rok && isCommutative(n.Op) {
			n.Left, n.Right = n.Right, n.Left
			return true
		}
		return false
	}
	return false
}

func isCommutative(op mir.Op) bool {
	switch op {
	case mir.OpAdd, mir.OpMul, mir.OpAnd, mir.OpOr, mir.OpXor, mir.OpCmpEq, mir.OpCmpNeq:
		return true
	}
	return false
}

func constValue(cfg *cfgbuild.CFG, h arena.Handle[mir.Node]) (int64, bool) {
	if !h.Valid() {
		return 0, false
	}
	n := cfg.Arena.Get(h)
	if n.Op == mir.OpConst {
		return n.Value, true
	}
	return 0, false
}

func newConst(cfg *cfgbuild.CFG, v int64) arena.Handle[mir.Node] {
	return arena.New(cfg.Arena, mir.Node{Op: mir.OpConst, Value: v})
}

func evalBinary(op mir.Op, l, r int64) (int64, bool) {
	switch op {
	case mir.OpAdd:
		return l + r, true
	case mir.OpSub:
		return l - r, true
	case mir.OpMul:
		return l * r, true
	case mir.OpDiv:
		if r == 0 {
			return 0, false
		}
		return l / r, true
	case mir.OpAnd:
		return l & r, true
	case mir.OpOr:
		return l | r, true
	case mir.OpXor:
		return l ^ r, true
	case mir.OpShl:
		if r < 0 {
			return 0, false
		}
		return l << uint(r), true
	case mir.OpShr:
		if r < 0 {
			return 0, false
		}
		return l >> uint(r), true
	case mir.OpCmpEq:
		return boolInt(l == r), true
	case mir.OpCmpNeq:
		return boolInt(l != r), true
	case mir.OpCmpGt:
		return boolInt(l > r), true
	case mir.OpCmpGe:
		return boolInt(l >= r), true
	case mir.OpCmpLt:
		return boolInt(l < r), true
	case mir.OpCmpLe:
		return boolInt(l <= r), true
	}
	return 0, false
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// AlgebraicSimplification rewrites `x+0`, `x-0`, `0+x`, `x*1`, `1*x` to
// x, and `x*0`/`0*x` to the constant 0 (spec.md §4.7 step 4). Because
// this IR addresses values by arena handle rather than by register, a
// rewrite is a single in-place overwrite of the node's own slot — every
// existing reference to that handle sees the simplified value without
// any separate corrective store.
type AlgebraicSimplification struct{ modified int }

func (p *AlgebraicSimplification) Name() string      { return "algebraic-simplification" }
func (p *AlgebraicSimplification) ModifiedCount() int { return p.modified }

func (p *AlgebraicSimplification) Run(cfg *cfgbuild.CFG) bool {
	p.modified = 0
	changed := false
	for _, blk := range cfg.Blocks {
		for _, h := range blk.Instr {
			if simplifyNode(cfg, cfg.Arena.Get(h)) {
				changed = true
				p.modified++
			}
		}
	}
	return changed
}

func simplifyNode(cfg *cfgbuild.CFG, n *mir.Node) bool {
	switch n.Op {
	case mir.OpAdd:
		if rc, ok := constValue(cfg, n.Right); ok && rc == 0 {
			replaceWithOperand(cfg, n, n.Left)
			return true
		}
		if lc, ok := constValue(cfg, n.Left); ok && lc == 0 {
			replaceWithOperand(cfg, n, n.Right)
			return true
		}
	case mir.OpSub:
		if rc, ok := constValue(cfg, n.Right); ok && rc == 0 {
			replaceWithOperand(cfg, n, n.Left)
			return true
		}
	case mir.OpMul:
		if rc, ok := constValue(cfg, n.Right); ok {
			if rc == 1 {
				replaceWithOperand(cfg, n, n.Left)
				return true
			}
			if rc == 0 {
				*n = mir.Node{Op: mir.OpConst, Value: 0, Barrier: n.Barrier}
				return true
			}
		}
		if lc, ok := constValue(cfg, n.Left); ok {
			if lc == 1 {
				replaceWithOperand(cfg, n, n.Right)
				return true
			}
			if lc == 0 {
				*n = mir.Node{Op: mir.OpConst, Value: 0, Barrier: n.Barrier}
				return true
			}
		}
	}
	return false
}

func replaceWithOperand(cfg *cfgbuild.CFG, n *mir.Node, operand arena.Handle[mir.Node]) {
	src := cfg.Arena.Get(operand)
	barrier := n.Barrier
	*n = *src
	n.Barrier = barrier
}
