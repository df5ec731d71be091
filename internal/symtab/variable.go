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

package symtab

// VariableKind discriminates the three Variable shapes of spec.md §3.
type VariableKind int

const (
	// VarInt is an integer runtime variable, optionally HIR-initialised.
	VarInt VariableKind = iota
	// VarBufferRef is a reference into the packet buffer: a starting
	// offset plus a length.
	VarBufferRef
	// VarLookupItem is a named slot inside a lookup table.
	VarLookupItem
)

// Variable is an entry in the Symbol Table's runtime-variable namespace.
type Variable struct {
	Name string
	Kind VariableKind

	// VarInt: optional HIR initialiser expression (package hir).
	Init any

	// VarBufferRef: starting offset and length, each an HIR integer
	// expression (package hir), or nil for "whole remaining packet".
	RefOffset any
	RefLength any

	// VarLookupItem: the table and the named slot within it.
	Table *LookupTable
	Slot  string
}

// Constant is a deduplicated integer or string literal.
type Constant struct {
	Name  string // Synthetic name, stable for debug output.
	Value any    // int64 or string.
}

// Label is a jump target. Code labels carry a stable bytecode address once
// the Bytecode Emitter has run; linked labels lazily bind to the next code
// label allocated after them (spec.md §4.1).
type Label struct {
	ID     int
	Linked bool

	// Address is set once the Bytecode Emitter places this label; -1 until
	// then.
	Address int

	// LinkTarget is the label this one forwards to, for Linked labels.
	// Resolved lazily: it may itself be another linked label.
	LinkTarget *Label
}

// Resolve follows LinkTarget chains to the final, non-linked label.
func (l *Label) Resolve() *Label {
	l2 := l
	for l2.Linked && l2.LinkTarget != nil {
		l2 = l2.LinkTarget
	}
	return l2
}
