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

// Package filterfe implements the Filter Front-End (spec.md §4.4/§6,
// component F): it consumes an already-parsed filter-expression tree (this
// package never lexes filter text; parsing is done by
// [internal/filterlang] or by the caller) and
// drives [internal/fsa] and [internal/graph] to build the DFA a filter
// compiles to, including its extraction list.
package filterfe

import (
	"github.com/netpfl/compiler/internal/arena"
	"github.com/netpfl/compiler/internal/fsa"
	"github.com/netpfl/compiler/internal/hir"
	"github.com/netpfl/compiler/internal/symtab"
)

// Expr is any node of the consumed filter-expression tree (spec.md §6).
type Expr interface{ isExpr() }

// BinaryOp discriminates a BinaryExpr.
type BinaryOp int

const (
	OpAnd BinaryOp = iota
	OpOr
)

// BinaryExpr is `left AND right` or `left OR right`.
type BinaryExpr struct {
	Op          BinaryOp
	Left, Right Expr
}

func (*BinaryExpr) isExpr() {}

// UnaryExpr is `NOT operand`.
type UnaryExpr struct {
	Operand Expr
}

func (*UnaryExpr) isExpr() {}

// RegexExpr is an ordered set-sequence (spec.md §6 "regex (ordered
// set-sequence)"; spec.md §4.3 "BuildRegExpFSA(innerList, ...)").
type RegexExpr struct {
	Sets []*SetExpr
}

func (*RegexExpr) isExpr() {}

// SetExpr is one element of a RegexExpr's sequence: a set of protocol
// terms with repeat/inclusion/tunneled modifiers (spec.md §6 "set").
type SetExpr struct {
	Terms          []*Term
	AnyPlaceholder bool
	Repeat         fsa.RepeatOp
	Inclusion      fsa.InclusionOp
	Tunneled       bool
}

// Term is a protocol plus an optional IR predicate and header-index
// (spec.md §6 "term (protocol + optional IR predicate + header-index)").
type Term struct {
	Proto       *symtab.Proto
	Predicate   *Predicate
	HeaderIndex int // 0 means "any occurrence"; >0 selects the nth header.
}

// Predicate is a boolean HIR expression guarding a term's match (e.g.
// `ip.src == 10.0.0.1`), evaluated against the to-proto once parsed.
type Predicate struct {
	Arena *arena.Arena[hir.Node]
	Expr  arena.Handle[hir.Node]
}

// ActionKind discriminates an ActionExpr (spec.md §6 "action nodes
// (return-packet, extract-fields with ordered field list, classify)").
type ActionKind int

const (
	ActionReturnPacket ActionKind = iota
	ActionExtractFields
	ActionClassify
)

// ActionExpr is the terminal action a filter's accepting states perform.
type ActionExpr struct {
	Kind       ActionKind
	Fields     []*symtab.Field // Ordered, for ActionExtractFields.
	ClassifyID int             // For ActionClassify.
}

// Filter is a complete, already-parsed filter: a boolean expression tree
// over protocol-set regexes, plus the action its accepting states run.
type Filter struct {
	Root   Expr
	Action *ActionExpr
}
