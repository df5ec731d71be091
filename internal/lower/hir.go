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

package lower

import (
	"github.com/netpfl/compiler/internal/arena"
	"github.com/netpfl/compiler/internal/errs"
	"github.com/netpfl/compiler/internal/hir"
	"github.com/netpfl/compiler/internal/mir"
	"github.com/netpfl/compiler/internal/symtab"
)

// ctx carries the state one call to Lower threads through every HIR block
// it lowers: the MIR builder under construction, the symbol table (for
// fresh labels), the HIR arena the node handles currently in scope belong
// to, a stable register per runtime Variable, and the enclosing loop's
// break/continue targets.
type ctx struct {
	b        *mir.Builder
	st       *symtab.Table
	hirArena *arena.Arena[hir.Node]
	regs     map[*symtab.Variable]mir.Reg

	breakTo, continueTo []*symtab.Label
}

func (c *ctx) withArena(a *arena.Arena[hir.Node], fn func()) {
	prev := c.hirArena
	c.hirArena = a
	fn()
	c.hirArena = prev
}

func (c *ctx) node(h arena.Handle[hir.Node]) *hir.Node { return c.hirArena.Get(h) }

// regFor returns the stable pre-SSA register backing v, allocating one on
// first use.
func (c *ctx) regFor(v *symtab.Variable) mir.Reg {
	if r, ok := c.regs[v]; ok {
		return r
	}
	r := c.b.NewReg()
	c.regs[v] = r
	return r
}

// fieldSize is the byte width a field occupies for LOADFIELD/JFLD* sizing
// purposes (spec.md §7's size-normalisation rules): the declared fixed
// width for FieldFixed/FieldBit, or 0 for variable-width kinds, whose
// length is only known at runtime and carried by the coprocessor protocol
// instead of a static Size.
func fieldSize(f *symtab.Field) int {
	switch f.Kind {
	case symtab.FieldFixed:
		return f.FixedLen
	case symtab.FieldBit:
		return f.BitParent.FixedLen
	default:
		return 0
	}
}

// isStringField reports whether f's natural value is packet bytes best
// compared with the length-aware JFLD* family rather than loaded as an
// integer (spec.md §4.5: "string-operand lowering emits explicit
// length-aware JFLDEQ/NEQ/GT/LT").
func isStringField(f *symtab.Field) bool {
	if f.UsedAsInt || f.IntCompatible {
		return false
	}
	switch f.Kind {
	case symtab.FieldVariable, symtab.FieldTokenEnded, symtab.FieldTokenWrapped,
		symtab.FieldLine, symtab.FieldPattern, symtab.FieldEatall, symtab.FieldAllfields:
		return true
	default:
		return f.UsedAsString
	}
}

var jfldOp = map[hir.Op]mir.Op{
	hir.OpCmpEq:  mir.OpJFldEq,
	hir.OpCmpNeq: mir.OpJFldNeq,
	hir.OpCmpGt:  mir.OpJFldGt,
	hir.OpCmpLt:  mir.OpJFldLt,
}

// lowerExpr translates one HIR expression subtree into MIR instructions,
// returning the handle that computes its value.
func lowerExpr(c *ctx, h arena.Handle[hir.Node]) arena.Handle[mir.Node] {
	n := c.node(h)

	switch n.Op {
	case hir.OpConst:
		return c.b.Const(n.Value)

	case hir.OpSym:
		switch {
		case n.Sym.Field != nil:
			return c.b.LoadField(n.Sym.Field, fieldSize(n.Sym.Field))
		case n.Sym.Variable != nil:
			return c.b.LdReg(c.regFor(n.Sym.Variable))
		case n.Sym.Constant != nil:
			if v, ok := n.Sym.Constant.Value.(int64); ok {
				return c.b.Const(v)
			}
			panic(errs.Fatalf("", "string constant %q used in an integer expression context", n.Sym.Constant.Name))
		default:
			panic(errs.Fatalf("", "OpSym node with no resolved symbol"))
		}

	case hir.OpNotI:
		return c.b.UnOp(mir.OpNot, lowerExpr(c, n.Kids[0]))
	case hir.OpNegI:
		return c.b.UnOp(mir.OpNeg, lowerExpr(c, n.Kids[0]))
	case hir.OpCInt:
		return c.b.UnOp(mir.OpCInt, lowerExpr(c, n.Kids[0]))
	case hir.OpChgBord:
		return c.b.UnOp(mir.OpChgBord, lowerExpr(c, n.Kids[0]))

	case hir.OpCmpEq, hir.OpCmpNeq, hir.OpCmpGt, hir.OpCmpLt:
		if f := stringOperand(c, n.Kids[0]); f != nil {
			rhs := lowerExpr(c, n.Kids[1])
			return c.b.JFldCompare(jfldOp[n.Op], f, rhs, fieldSize(f))
		}
		mirOp, _ := mir.MIROp(n.Op)
		return c.b.BinOp(mirOp, lowerExpr(c, n.Kids[0]), lowerExpr(c, n.Kids[1]))

	case hir.OpCmpGe, hir.OpCmpLe:
		// JFld* has no Ge/Le member (spec.md §4.5 names only EQ/NEQ/GT/LT);
		// string fields never appear on this side of a >=/<= comparison in
		// the filter language (range predicates on strings compile to
		// GT/LT pairs upstream), so these two only ever see int operands.
		mirOp, _ := mir.MIROp(n.Op)
		return c.b.BinOp(mirOp, lowerExpr(c, n.Kids[0]), lowerExpr(c, n.Kids[1]))

	default:
		if mirOp, ok := mir.MIROp(n.Op); ok {
			return c.b.BinOp(mirOp, lowerExpr(c, n.Kids[0]), lowerExpr(c, n.Kids[1]))
		}
		panic(errs.Fatalf("", "hir op %d is not a lowerable expression", n.Op))
	}
}

// stringOperand returns the Field a comparison's left operand reads, if
// that operand is a bare field reference naturally compared as bytes; nil
// otherwise (ordinary integer comparison).
func stringOperand(c *ctx, h arena.Handle[hir.Node]) *symtab.Field {
	n := c.node(h)
	if n.Op != hir.OpSym || n.Sym.Field == nil {
		return nil
	}
	if isStringField(n.Sym.Field) {
		return n.Sym.Field
	}
	return nil
}

// lowerBlock lowers every statement of blk in order.
func lowerBlock(c *ctx, blk hir.Block) {
	for _, h := range blk {
		lowerStmt(c, h)
	}
}

// lowerStmt lowers one HIR statement for its side effects.
func lowerStmt(c *ctx, h arena.Handle[hir.Node]) {
	n := c.node(h)

	switch n.Op {
	case hir.OpGen:
		lowerGen(c, n)

	case hir.OpLabel:
		c.b.Label(n.Target)
	case hir.OpJump:
		c.b.Jump(n.Target)
	case hir.OpJCond:
		cond := lowerExpr(c, n.Kids[0])
		c.b.JCond(cond, n.TrueLabel, n.FalseLabel)

	case hir.OpSwitch:
		lowerSwitch(c, n)
	case hir.OpIf:
		lowerIf(c, n)
	case hir.OpLoop:
		lowerLoop(c, n)
	case hir.OpWhile:
		lowerWhile(c, n)

	case hir.OpBreak:
		c.b.Jump(c.breakTo[len(c.breakTo)-1])
	case hir.OpContinue:
		c.b.Jump(c.continueTo[len(c.continueTo)-1])

	case hir.OpComment:
		c.b.Comment(n.Str)

	case hir.OpFieldInfo:
		lowerFieldInfo(c, n)

	default:
		panic(errs.Fatalf("", "hir op %d is not a lowerable statement", n.Op))
	}
}

// lowerGen lowers an assignment. Only Variable destinations occur in
// practice: fields are packet bytes and are never write-targets, and
// Constant/Label destinations are meaningless for OpGen.
func lowerGen(c *ctx, n *hir.Node) {
	if n.Sym.Variable == nil {
		panic(errs.Fatalf("", "OpGen with non-Variable destination"))
	}
	value := lowerExpr(c, n.Kids[0])
	c.b.StReg(c.regFor(n.Sym.Variable), value, false)
	c.b.BumpDataVersion()
}

// lowerFieldInfo emits the info-partition store sequence of spec.md §4.5
// step 2's last bullet: write the field's current value to its assigned
// info-partition slot, bumping the MultiProto instance counter when f has
// one.
func lowerFieldInfo(c *ctx, n *hir.Node) {
	value := c.b.LoadField(n.Field, fieldSize(n.Field))
	c.b.StoreInfo(n.Field, value)

	if n.InstanceSlot != nil {
		reg := c.regFor(n.InstanceSlot)
		next := c.b.BinOp(mir.OpAdd, c.b.LdReg(reg), c.b.Const(1))
		c.b.StReg(reg, next, false)
		c.b.BumpDataVersion()
	}
}

// lowerSwitch desugars a structured Switch into a flat MIR dispatch: a
// synthetic label per arm plus the default, an MIR Switch instruction
// naming them, then each arm's body followed by a jump past the rest.
func lowerSwitch(c *ctx, n *hir.Node) {
	subject := lowerExpr(c, n.Kids[0])
	end := c.st.NewLabel(false)
	defaultLabel := c.st.NewLabel(false)

	cases := make([]mir.CaseArm, len(n.Cases))
	armLabels := make([]*symtab.Label, len(n.Cases))
	for i, arm := range n.Cases {
		armLabels[i] = c.st.NewLabel(false)
		cases[i] = mir.CaseArm{Value: arm.Value, Target: armLabels[i]}
	}
	c.b.Switch(subject, cases, defaultLabel)

	for i, arm := range n.Cases {
		c.b.Label(armLabels[i])
		lowerBlock(c, arm.Body)
		c.b.Jump(end)
	}
	c.b.Label(defaultLabel)
	lowerBlock(c, n.DefaultBody)
	c.b.Label(end)
}

// lowerIf desugars a structured If into JCond plus fallthrough blocks.
func lowerIf(c *ctx, n *hir.Node) {
	cond := lowerExpr(c, n.Kids[0])
	end := c.st.NewLabel(false)

	if n.Else == nil {
		then := c.st.NewLabel(false)
		c.b.JCond(cond, then, end)
		c.b.Label(then)
		lowerBlock(c, n.Then)
		c.b.Label(end)
		return
	}

	then := c.st.NewLabel(false)
	els := c.st.NewLabel(false)
	c.b.JCond(cond, then, els)
	c.b.Label(then)
	lowerBlock(c, n.Then)
	c.b.Jump(end)
	c.b.Label(els)
	lowerBlock(c, n.Else)
	c.b.Label(end)
}

// lowerLoop desugars an unconditional Loop, pushing break/continue targets
// for its body.
func lowerLoop(c *ctx, n *hir.Node) {
	start := c.st.NewLabel(false)
	end := c.st.NewLabel(false)

	c.breakTo = append(c.breakTo, end)
	c.continueTo = append(c.continueTo, start)

	c.b.Label(start)
	lowerBlock(c, n.DefaultBody)
	c.b.Jump(start)
	c.b.Label(end)

	c.breakTo = c.breakTo[:len(c.breakTo)-1]
	c.continueTo = c.continueTo[:len(c.continueTo)-1]
}

// lowerWhile desugars a pre-tested While loop.
func lowerWhile(c *ctx, n *hir.Node) {
	start := c.st.NewLabel(false)
	body := c.st.NewLabel(false)
	end := c.st.NewLabel(false)

	c.breakTo = append(c.breakTo, end)
	c.continueTo = append(c.continueTo, start)

	c.b.Label(start)
	cond := lowerExpr(c, n.Kids[0])
	c.b.JCond(cond, body, end)
	c.b.Label(body)
	lowerBlock(c, n.DefaultBody)
	c.b.Jump(start)
	c.b.Label(end)

	c.breakTo = c.breakTo[:len(c.breakTo)-1]
	c.continueTo = c.continueTo[:len(c.continueTo)-1]
}
