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

package mir

import (
	"github.com/netpfl/compiler/internal/arena"
	"github.com/netpfl/compiler/internal/hir"
	"github.com/netpfl/compiler/internal/symtab"
)

// hirToMIR maps each HIR expression op to its MIR equivalent (spec.md
// §4.5: "Int-operand lowering maps HIR ops to MIR (e.g. ADDI→ADD,
// SHLI→SHL)").
var hirToMIR = map[hir.Op]Op{
	hir.OpAddI:   OpAdd,
	hir.OpSubI:   OpSub,
	hir.OpMulI:   OpMul,
	hir.OpDivI:   OpDiv,
	hir.OpAndI:   OpAnd,
	hir.OpOrI:    OpOr,
	hir.OpXorI:   OpXor,
	hir.OpNotI:   OpNot,
	hir.OpNegI:   OpNeg,
	hir.OpShlI:   OpShl,
	hir.OpShrI:   OpShr,
	hir.OpCmpEq:  OpCmpEq,
	hir.OpCmpNeq: OpCmpNeq,
	hir.OpCmpGt:  OpCmpGt,
	hir.OpCmpGe:  OpCmpGe,
	hir.OpCmpLt:  OpCmpLt,
	hir.OpCmpLe:  OpCmpLe,
	hir.OpCInt:   OpCInt,
	hir.OpChgBord: OpChgBord,
}

// MIROp returns the MIR operator a given HIR expression op lowers to, and
// whether op is a recognised integer-expression op at all (string-operand
// comparisons lower to the explicit JFld* family instead, chosen by the
// lowering pass based on operand type, not by this table).
func MIROp(op hir.Op) (Op, bool) {
	m, ok := hirToMIR[op]
	return m, ok
}

// Builder constructs a flat MIR instruction stream into one arena,
// allocating fresh virtual registers as it goes.
type Builder struct {
	arena   arena.Arena[Node]
	instr   []arena.Handle[Node]
	nextReg Reg

	// packetVersion/dataVersion are bumped by BumpPacketVersion (CopRun
	// calls it) and BumpDataVersion (StoreInfo calls it), and stamped onto
	// every node emitted afterwards
	// (spec.md §4.7's memory-barrier tags).
	packetVersion int
	dataVersion   int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// Arena returns the node arena backing every handle this Builder has
// returned.
func (b *Builder) Arena() *arena.Arena[Node] { return &b.arena }

// Program returns the instruction stream built so far, ready for
// [internal/cfgbuild].
func (b *Builder) Program() *Program {
	return &Program{Arena: &b.arena, Instr: b.instr}
}

// NewReg allocates a fresh virtual register.
func (b *Builder) NewReg() Reg {
	b.nextReg++
	return b.nextReg
}

func (b *Builder) emit(n Node) arena.Handle[Node] {
	n.Barrier = MemBarrier{PacketVersion: b.packetVersion, DataVersion: b.dataVersion}
	h := arena.New(&b.arena, n)
	b.instr = append(b.instr, h)
	return h
}

// BumpPacketVersion records that a packet-buffer-mutating operation (an
// offset advance, a regexp coprocessor run) just happened; subsequent
// loads tagged with the prior version are no longer safe to reorder past
// it (spec.md §4.7).
func (b *Builder) BumpPacketVersion() { b.packetVersion++ }

// BumpDataVersion records a write to a runtime variable or lookup table.
func (b *Builder) BumpDataVersion() { b.dataVersion++ }

// Const emits an immediate-value instruction and returns the handle
// defining it.
func (b *Builder) Const(v int64) arena.Handle[Node] {
	return b.emit(Node{Op: OpConst, Value: v})
}

// LdReg emits a read of reg's current value (spec.md GLOSSARY's LDREG:
// "reads DefReg's current SSA value"). Pre-SSA this just means "the
// storage location reg currently holds"; Enter-SSA rewrites the read to
// name a specific definition once registers are versioned.
func (b *Builder) LdReg(reg Reg) arena.Handle[Node] {
	return b.emit(Node{Op: OpLdReg, DefReg: reg})
}

// BinOp emits a two-operand instruction of the given MIR op.
func (b *Builder) BinOp(op Op, lhs, rhs arena.Handle[Node]) arena.Handle[Node] {
	return b.emit(Node{Op: op, Left: lhs, Right: rhs})
}

// UnOp emits a one-operand instruction.
func (b *Builder) UnOp(op Op, operand arena.Handle[Node]) arena.Handle[Node] {
	return b.emit(Node{Op: op, Left: operand})
}

// StReg defines reg with the value computed by src, marking the
// instruction side-effecting if sideEffecting is true (e.g. the
// destination is read back after a coprocessor call and so must survive
// dead-code elimination even if no MIR-level use remains).
func (b *Builder) StReg(reg Reg, src arena.Handle[Node], sideEffecting bool) arena.Handle[Node] {
	return b.emit(Node{Op: OpStReg, Left: src, DefReg: reg, SideEffecting: sideEffecting})
}

// LoadField emits a fixed-size load of f at the current offset.
func (b *Builder) LoadField(f *symtab.Field, size int) arena.Handle[Node] {
	return b.emit(Node{Op: OpLoadField, Sym: Sym{Field: f}, Size: size})
}

// JFldCompare emits a size-normalised field comparison against a constant
// or another field (spec.md §4.5: "length-aware JFLDEQ/NEQ/GT/LT").
func (b *Builder) JFldCompare(op Op, f *symtab.Field, rhs arena.Handle[Node], size int) arena.Handle[Node] {
	return b.emit(Node{Op: op, Sym: Sym{Field: f}, Right: rhs, Size: size})
}

// StoreInfo emits an info-partition write of value for field f. This is
// always side-effecting: it is observable output, never a dead store
// (spec.md §4.5 step 2 "info-store sequence").
func (b *Builder) StoreInfo(f *symtab.Field, value arena.Handle[Node]) arena.Handle[Node] {
	n := b.emit(Node{Op: OpStoreInfo, Sym: Sym{Field: f}, Left: value, SideEffecting: true})
	b.BumpDataVersion()
	return n
}

// CopOut emits one OUT operand to the active coprocessor (spec.md §4.5:
// "OUT pattern_id", "OUT offset", "OUT length").
func (b *Builder) CopOut(operand arena.Handle[Node]) arena.Handle[Node] {
	return b.emit(Node{Op: OpCopOut, Left: operand, SideEffecting: true})
}

// CopRun emits a coprocessor invocation (spec.md §4.5: "COPRUN
// MATCH_WITH_OFFSET"), bumping the packet memory-barrier version since it
// may consume bytes from the packet buffer.
func (b *Builder) CopRun(opcode string) arena.Handle[Node] {
	n := b.emit(Node{Op: OpCopRun, Str: opcode, SideEffecting: true})
	b.BumpPacketVersion()
	return n
}

// CopIn reads one coprocessor result register into reg (spec.md §4.5:
// "COPIN matches_found", "COPIN offset_found / length_found").
func (b *Builder) CopIn(reg Reg, selector string) arena.Handle[Node] {
	return b.emit(Node{Op: OpCopIn, Str: selector, DefReg: reg, SideEffecting: true})
}

// Label declares l at this point in the instruction stream.
func (b *Builder) Label(l *symtab.Label) arena.Handle[Node] {
	return b.emit(Node{Op: OpLabel, Target: l})
}

// Jump emits an unconditional jump, terminating the current basic block.
func (b *Builder) Jump(l *symtab.Label) arena.Handle[Node] {
	return b.emit(Node{Op: OpJump, Target: l})
}

// JCond emits a conditional branch, terminating the current basic block.
func (b *Builder) JCond(cond arena.Handle[Node], onTrue, onFalse *symtab.Label) arena.Handle[Node] {
	return b.emit(Node{Op: OpJCond, Left: cond, TrueLabel: onTrue, FalseLabel: onFalse})
}

// Switch emits a multi-way branch, terminating the current basic block.
func (b *Builder) Switch(subject arena.Handle[Node], cases []CaseArm, defaultTarget *symtab.Label) arena.Handle[Node] {
	return b.emit(Node{Op: OpSwitch, Left: subject, Cases: cases, DefaultTarget: defaultTarget})
}

// Return emits the final `JUMP filter_true` / `JUMP filter_false` of
// spec.md §4.5 step 6, terminating the current basic block.
func (b *Builder) Return(accept bool, target *symtab.Label) arena.Handle[Node] {
	n := b.emit(Node{Op: OpReturn, Target: target})
	b.Arena().Get(n).Value = boolToInt(accept)
	return n
}

func boolToInt(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

// Comment emits free text with no runtime effect.
func (b *Builder) Comment(text string) arena.Handle[Node] {
	return b.emit(Node{Op: OpComment, Str: text})
}
