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

// Package hir implements the High-level Intermediate Representation
// (spec.md §4.4, component C): the tree-shaped IR built once per protocol
// from the database, and also used by the Filter Front-End to synthesise
// per-state extraction code ahead of lowering.
//
// Nodes live in an [arena.Arena], not behind bare pointers, for the same
// reason [internal/mir] and [internal/cfgbuild] do: HIR subtrees get
// cloned and re-parented (a field's length expression is spliced wholesale
// into the state that extracts it; a before-section can be duplicated
// across every multi-proto entry point), and a Handle survives that
// splicing unambiguously where a pointer into a slice that may reallocate
// would not.
package hir

import (
	"github.com/netpfl/compiler/internal/arena"
	"github.com/netpfl/compiler/internal/symtab"
)

// Op names every HIR node kind: the expression operators of spec.md
// GLOSSARY "Code entities" plus the statement kinds of the HIR Builder
// (spec.md §4.4).
type Op int

const (
	// Leaves.
	OpConst Op = iota // Value holds an int64 literal.
	OpSym             // Sym holds a *symtab.Field, *symtab.Variable, or *symtab.Constant.

	// Integer arithmetic (spec.md §4.4: "ADDI/SUBI/MULI/DIVI").
	OpAddI
	OpSubI
	OpMulI
	OpDivI

	// Bitwise (spec.md §4.4: "ANDI/ORI/XORI/NOTI/NEGI/SHLI/SHRI").
	OpAndI
	OpOrI
	OpXorI
	OpNotI // Unary.
	OpNegI // Unary.
	OpShlI
	OpShrI

	// Comparisons.
	OpCmpEq
	OpCmpNeq
	OpCmpGt
	OpCmpGe
	OpCmpLt
	OpCmpLe

	// Casts (spec.md §4.4).
	OpCInt    // Cast string/reference to integer.
	OpChgBord // Byte swap.

	// Statements (spec.md GLOSSARY "Code entities").
	OpGen      // Assignment: Sym := Kids[0].
	OpLabel    // Declares Target at this point.
	OpJump     // Unconditional jump to Target.
	OpJCond    // Kids[0] is the condition; jumps to TrueLabel or FalseLabel.
	OpSwitch   // Kids[0] is the subject; Cases/DefaultBody hold the arms.
	OpIf       // Kids[0] cond; Then/Else hold the blocks (Else may be nil).
	OpLoop     // DefaultBody is the body block, an unconditional infinite loop.
	OpWhile    // Kids[0] cond; DefaultBody is the body block.
	OpBreak    // Leaf.
	OpContinue // Leaf.
	OpComment  // Str holds free text; no runtime effect.
	OpFieldInfo
)

// CaseArm is one Case of an OpSwitch statement; Default is represented by
// [Node.DefaultBody] on the switch node itself.
type CaseArm struct {
	Value *symtab.Constant // Matched against the switch subject.
	Body  Block
}

// Sym is the union of Symbol Table entries an HIR node can resolve to.
type Sym struct {
	Field    *symtab.Field
	Variable *symtab.Variable
	Constant *symtab.Constant
	Label    *symtab.Label
}

// Node is an HIR tree node: `(op, kids[3], sym)` of spec.md GLOSSARY,
// widened with the side fields each statement kind needs since a fixed
// 3-ary kid list cannot hold, e.g., a Switch's arbitrary arm count.
type Node struct {
	Op   Op
	Kids [3]arena.Handle[Node]

	// Sym resolves to a Symbol Table entry: populated for OpSym (the
	// referenced Field/Variable/Constant) and OpGen (the assignment
	// destination).
	Sym Sym

	Value int64  // OpConst literal.
	Str   string // OpComment text.

	Target                *symtab.Label // OpLabel/OpJump.
	TrueLabel, FalseLabel *symtab.Label // OpJCond.

	Cases       []CaseArm // OpSwitch arms.
	DefaultBody Block     // OpSwitch default arm; OpLoop/OpWhile body.

	Then, Else Block // OpIf branches; Else is nil when there is no else.

	// OpFieldInfo: binds a Field to its info-partition position, built by
	// the Filter Front-End during lowering (spec.md §4.4 "Per-state
	// synthesis"; spec.md §4.5 step 2 "info-store sequence").
	Field           *symtab.Field
	PartitionOffset int
	InstanceSlot    *symtab.Variable // Set only for MultiProto fields.
}

// Block is an ordered HIR statement sequence: a protocol's before, format,
// encapsulation, or verify section (spec.md §3 "Protocol (Proto)"), or the
// body of an If/Loop/While/Switch arm.
type Block []arena.Handle[Node]

// Sections is the concrete type behind symtab.Proto's BeforeHIR,
// FormatHIR, EncapHIR, and VerifyHIR `any` fields; package symtab cannot
// reference it directly (it would create an import cycle), so callers
// type-assert, e.g.:
//
//	sections := p.BeforeHIR.(*hir.Sections)
type Sections struct {
	Arena *arena.Arena[Node]
	Body  Block
}
