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

package hir

import (
	"math/bits"

	"github.com/netpfl/compiler/internal/arena"
	"github.com/netpfl/compiler/internal/debug"
	"github.com/netpfl/compiler/internal/symtab"
)

// Builder constructs HIR trees into a single per-Proto (or per-state)
// arena. It is not safe for concurrent use; each Proto's sections are
// built by one goroutine (spec.md §4.4: the database walk is sequential).
type Builder struct {
	arena arena.Arena[Node]
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// Arena returns the node arena backing every handle this Builder has
// returned. Callers that need to package a finished section for storage
// in a symtab.Proto field should wrap it in a [Sections].
func (b *Builder) Arena() *arena.Arena[Node] { return &b.arena }

func (b *Builder) push(n Node) arena.Handle[Node] {
	return arena.New(&b.arena, n)
}

// Const builds an integer literal leaf.
func (b *Builder) Const(v int64) arena.Handle[Node] {
	return b.push(Node{Op: OpConst, Value: v})
}

// FieldRef builds a leaf referencing a previously stored Field.
func (b *Builder) FieldRef(f *symtab.Field) arena.Handle[Node] {
	return b.push(Node{Op: OpSym, Sym: Sym{Field: f}})
}

// VarRef builds a leaf referencing a runtime Variable.
func (b *Builder) VarRef(v *symtab.Variable) arena.Handle[Node] {
	return b.push(Node{Op: OpSym, Sym: Sym{Variable: v}})
}

// ConstRef builds a leaf referencing an interned Constant.
func (b *Builder) ConstRef(c *symtab.Constant) arena.Handle[Node] {
	return b.push(Node{Op: OpSym, Sym: Sym{Constant: c}})
}

// binary builds a two-child expression node.
func (b *Builder) binary(op Op, lhs, rhs arena.Handle[Node]) arena.Handle[Node] {
	return b.push(Node{Op: op, Kids: [3]arena.Handle[Node]{lhs, rhs}})
}

// unary builds a one-child expression node.
func (b *Builder) unary(op Op, operand arena.Handle[Node]) arena.Handle[Node] {
	return b.push(Node{Op: op, Kids: [3]arena.Handle[Node]{operand}})
}

func (b *Builder) AddI(lhs, rhs arena.Handle[Node]) arena.Handle[Node] { return b.binary(OpAddI, lhs, rhs) }
func (b *Builder) SubI(lhs, rhs arena.Handle[Node]) arena.Handle[Node] { return b.binary(OpSubI, lhs, rhs) }
func (b *Builder) MulI(lhs, rhs arena.Handle[Node]) arena.Handle[Node] { return b.binary(OpMulI, lhs, rhs) }

// DivI builds an integer division. Per spec.md §4.4 ("ADDI/SUBI/MULI/DIVI
// (divisor must be power-of-two; otherwise rewritten to SHR)"), a division
// by a constant power of two is rewritten to a right shift at build time
// rather than carried as DIVI into lowering.
func (b *Builder) DivI(lhs, rhs arena.Handle[Node]) arena.Handle[Node] {
	if rhsNode := b.arena.Get(rhs); rhsNode.Op == OpConst && rhsNode.Value > 0 && isPowerOfTwo(rhsNode.Value) {
		k := int64(bits.TrailingZeros64(uint64(rhsNode.Value)))
		shift := b.Const(k)
		debug.Log(nil, "hir.divi", "rewrote DIVI by %d to SHRI %d", rhsNode.Value, k)
		return b.binary(OpShrI, lhs, shift)
	}
	return b.binary(OpDivI, lhs, rhs)
}

func isPowerOfTwo(v int64) bool { return v&(v-1) == 0 }

func (b *Builder) AndI(lhs, rhs arena.Handle[Node]) arena.Handle[Node] { return b.binary(OpAndI, lhs, rhs) }
func (b *Builder) OrI(lhs, rhs arena.Handle[Node]) arena.Handle[Node]  { return b.binary(OpOrI, lhs, rhs) }
func (b *Builder) XorI(lhs, rhs arena.Handle[Node]) arena.Handle[Node] { return b.binary(OpXorI, lhs, rhs) }
func (b *Builder) ShlI(lhs, rhs arena.Handle[Node]) arena.Handle[Node] { return b.binary(OpShlI, lhs, rhs) }
func (b *Builder) ShrI(lhs, rhs arena.Handle[Node]) arena.Handle[Node] { return b.binary(OpShrI, lhs, rhs) }

func (b *Builder) NotI(operand arena.Handle[Node]) arena.Handle[Node] { return b.unary(OpNotI, operand) }
func (b *Builder) NegI(operand arena.Handle[Node]) arena.Handle[Node] { return b.unary(OpNegI, operand) }

// CInt casts a string- or reference-valued operand to an integer
// (spec.md §4.4 "CINT").
func (b *Builder) CInt(operand arena.Handle[Node]) arena.Handle[Node] { return b.unary(OpCInt, operand) }

// ChgBord byte-swaps its operand (spec.md §4.4 "CHGBORD").
func (b *Builder) ChgBord(operand arena.Handle[Node]) arena.Handle[Node] {
	return b.unary(OpChgBord, operand)
}

func (b *Builder) CmpEq(lhs, rhs arena.Handle[Node]) arena.Handle[Node]  { return b.binary(OpCmpEq, lhs, rhs) }
func (b *Builder) CmpNeq(lhs, rhs arena.Handle[Node]) arena.Handle[Node] { return b.binary(OpCmpNeq, lhs, rhs) }
func (b *Builder) CmpGt(lhs, rhs arena.Handle[Node]) arena.Handle[Node]  { return b.binary(OpCmpGt, lhs, rhs) }
func (b *Builder) CmpGe(lhs, rhs arena.Handle[Node]) arena.Handle[Node]  { return b.binary(OpCmpGe, lhs, rhs) }
func (b *Builder) CmpLt(lhs, rhs arena.Handle[Node]) arena.Handle[Node]  { return b.binary(OpCmpLt, lhs, rhs) }
func (b *Builder) CmpLe(lhs, rhs arena.Handle[Node]) arena.Handle[Node]  { return b.binary(OpCmpLe, lhs, rhs) }

// Gen wraps an expression as an assignment statement: dst := expr.
func (b *Builder) Gen(dst Sym, expr arena.Handle[Node]) arena.Handle[Node] {
	return b.push(Node{Op: OpGen, Sym: dst, Kids: [3]arena.Handle[Node]{expr}})
}

// LabelStmt declares l at this point in the statement sequence.
func (b *Builder) LabelStmt(l *symtab.Label) arena.Handle[Node] {
	return b.push(Node{Op: OpLabel, Target: l})
}

// Jump builds an unconditional jump to l.
func (b *Builder) Jump(l *symtab.Label) arena.Handle[Node] {
	return b.push(Node{Op: OpJump, Target: l})
}

// JCond builds a conditional branch: jump to onTrue if cond is nonzero,
// onFalse otherwise.
func (b *Builder) JCond(cond arena.Handle[Node], onTrue, onFalse *symtab.Label) arena.Handle[Node] {
	return b.push(Node{Op: OpJCond, Kids: [3]arena.Handle[Node]{cond}, TrueLabel: onTrue, FalseLabel: onFalse})
}

// Switch builds a multi-way branch over subject's value.
func (b *Builder) Switch(subject arena.Handle[Node], cases []CaseArm, defaultBody Block) arena.Handle[Node] {
	return b.push(Node{Op: OpSwitch, Kids: [3]arena.Handle[Node]{subject}, Cases: cases, DefaultBody: defaultBody})
}

// If builds a two-way branch; els may be nil.
func (b *Builder) If(cond arena.Handle[Node], then, els Block) arena.Handle[Node] {
	return b.push(Node{Op: OpIf, Kids: [3]arena.Handle[Node]{cond}, Then: then, Else: els})
}

// Loop builds an unconditional infinite loop around body (terminated only
// by Break or a Jump out of it).
func (b *Builder) Loop(body Block) arena.Handle[Node] {
	return b.push(Node{Op: OpLoop, DefaultBody: body})
}

// While builds a pre-tested loop.
func (b *Builder) While(cond arena.Handle[Node], body Block) arena.Handle[Node] {
	return b.push(Node{Op: OpWhile, Kids: [3]arena.Handle[Node]{cond}, DefaultBody: body})
}

// Break builds a loop-exit statement.
func (b *Builder) Break() arena.Handle[Node] { return b.push(Node{Op: OpBreak}) }

// Continue builds a loop-continuation statement.
func (b *Builder) Continue() arena.Handle[Node] { return b.push(Node{Op: OpContinue}) }

// Comment attaches free text with no runtime effect.
func (b *Builder) Comment(text string) arena.Handle[Node] {
	return b.push(Node{Op: OpComment, Str: text})
}

// FieldInfoMarker builds an extraction marker binding f to a byte position
// in the info-partition buffer (spec.md §4.4 "StmtFieldInfo markers").
// instanceSlot is non-nil only when f is MultiProto.
func (b *Builder) FieldInfoMarker(f *symtab.Field, partitionOffset int, instanceSlot *symtab.Variable) arena.Handle[Node] {
	return b.push(Node{Op: OpFieldInfo, Field: f, PartitionOffset: partitionOffset, InstanceSlot: instanceSlot})
}

// Finish packages body and this Builder's arena for storage in one of
// symtab.Proto's BeforeHIR/FormatHIR/EncapHIR/VerifyHIR fields.
func (b *Builder) Finish(body Block) *Sections {
	return &Sections{Arena: &b.arena, Body: body}
}
