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

// Package mir implements the Medium-level Intermediate Representation
// (spec.md §4.5/§4.6, component D): a flat, two-child instruction tree
// produced by lowering HIR, plus the register, coprocessor, and
// field-compare operators that have no HIR equivalent.
//
// Where [internal/hir] nodes nest into Blocks of structured If/Loop/While
// statements, a lowered MIR program is already flat: lowering rewrites
// every structured construct into an explicit sequence of Label/Jump/JCond
// instructions (spec.md §4.6: the CFG builder "cuts at leaders" over a
// single instruction list, which presupposes no nesting remains). Like
// [internal/hir], nodes live in an [arena.Arena] rather than behind bare
// pointers: the optimiser's reassociation pass (spec.md §4.7) explicitly
// moves and re-parents loads across a basic block.
package mir

import (
	"github.com/netpfl/compiler/internal/arena"
	"github.com/netpfl/compiler/internal/symtab"
)

// Op names every MIR node kind.
type Op int

const (
	OpConst Op = iota // Value holds an int64 literal.
	OpLdReg           // Reads DefReg's current SSA value (leaf).

	// Int-operand arithmetic/bitwise, per spec.md §4.5 ("ADDI→ADD,
	// SHLI→SHL" and the rest of the HIR expression set).
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpAnd
	OpOr
	OpXor
	OpNot
	OpNeg
	OpShl
	OpShr

	OpCmpEq
	OpCmpNeq
	OpCmpGt
	OpCmpGe
	OpCmpLt
	OpCmpLe

	OpCInt
	OpChgBord

	// String-operand field compares, size-normalised per spec.md §7
	// (spec.md §4.5: "explicit length-aware JFLDEQ/NEQ/GT/LT").
	OpJFldEq
	OpJFldNeq
	OpJFldGt
	OpJFldLt

	// Register definition: STREG DefReg, Left. Side-effecting unless the
	// optimiser proves the defined register dead.
	OpStReg

	// Packet/field memory access.
	OpLoadField  // Field at a known offset.
	OpFieldAddr  // Computes a buffer offset ($currentoffset-relative).
	OpStoreInfo  // Info-partition write: Field, Value/Left is the payload.

	// Regexp/string-match coprocessor protocol (spec.md §4.5 step 2).
	OpCopOut // OUT operand: pattern_id, offset, or length.
	OpCopRun // COPRUN opcode, e.g. MATCH_WITH_OFFSET.
	OpCopIn  // COPIN result: matches_found, offset_found, length_found.

	// Control flow. A basic block's terminator is exactly one of
	// OpJump/OpJCond/OpSwitch/OpReturn; every other op is non-terminating.
	OpLabel
	OpJump
	OpJCond
	OpSwitch
	OpReturn // JUMP filter_true / JUMP filter_false (spec.md §4.5 step 6).

	// OpPhi exists only between Enter-SSA and Exit-SSA (spec.md §4.7
	// steps 3 and 5): PhiArgs holds one value per predecessor edge, in
	// the same order as the owning block's CFG Preds slice.
	OpPhi

	OpComment
)

// CaseArm is one arm of an OpSwitch instruction.
type CaseArm struct {
	Value  *symtab.Constant
	Target *symtab.Label
}

// MemBarrier is the pair of monotonically increasing memory-version tags
// the reassociation pass uses to decide whether a load may be moved
// (spec.md §4.7: "a candidate load may be moved only if its tag matches
// the current version").
type MemBarrier struct {
	PacketVersion int
	DataVersion   int
}

// Node is a MIR instruction: `(op, left, right, sym, value, defReg)` of
// spec.md GLOSSARY.
type Node struct {
	Op          Op
	Left, Right arena.Handle[Node]

	// Sym resolves to the Symbol Table entry this instruction reads or
	// writes: a Field for OpLoadField/OpStoreInfo/OpJFld*, a Variable for
	// general loads/stores, a Constant for switch comparisons.
	Sym Sym

	Value  int64 // OpConst literal; OpReturn's accept flag (1 accept, 0 reject).
	DefReg Reg   // Register this instruction defines; zero means none.

	Target                *symtab.Label // OpLabel/OpJump.
	TrueLabel, FalseLabel *symtab.Label // OpJCond.
	Cases                 []CaseArm     // OpSwitch.
	DefaultTarget         *symtab.Label // OpSwitch.

	PhiArgs []arena.Handle[Node] // OpPhi, one per predecessor edge.

	// Field compares/loads carry an explicit byte size for the
	// size-normalisation rules of spec.md §7.
	Size int

	Str string // OpComment text; coprocessor opcode name for OpCopRun; selector for OpCopIn.

	Barrier MemBarrier

	// SideEffecting marks a store the DCE pass must never remove (spec.md
	// §4.7: "stores flagged as side-effecting are never removed") — true
	// for OpStoreInfo, OpCopOut/Run, and any OpStReg the emitter reads
	// back across a coprocessor call.
	SideEffecting bool

	// Pinned marks a register already substituted at a use site and still
	// referenced below; the reassociation pass consults this before
	// substituting a load's defining store at another use (spec.md §4.7).
	Pinned bool
}

// Sym is the union of Symbol Table entries a MIR node can resolve to.
type Sym struct {
	Field    *symtab.Field
	Variable *symtab.Variable
	Constant *symtab.Constant
	Table    *symtab.LookupTable
}

// Reg is a virtual register. Reg 0 means "no register" (e.g. on a
// control-flow instruction). Before SSA construction registers name a
// storage location; after Enter-SSA each (Reg, version) pair names a
// single definition, tracked out-of-band by the optimiser rather than in
// the Node itself, so that copy/constant propagation can rewrite a use in
// place without mutating Reg.
type Reg int

// Program is a lowered MIR instruction stream before CFG construction: an
// arena plus the ordered list of instructions exactly as the lowering
// pass of spec.md §4.5 emitted them, leaders not yet cut.
type Program struct {
	Arena *arena.Arena[Node]
	Instr []arena.Handle[Node]
}
