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

// Package symtab is the global store for protocols, fields, variables,
// constants, labels, lookup tables, and regex/string-match entries
// (spec.md §4.1, component A).
//
// The Symbol Table, like the teacher's compiler.symbols map
// (buf.build/go/hyperpb/internal/tdp/compiler/symbols.go), is built once
// per database load and is read by every later compiler pass; unlike the
// teacher's version it is not an offset-into-a-linked-buffer map, since
// nothing here is ever memory-mapped by a runtime — it is a plain,
// GC-managed symbol table, because this package's job ends at bytecode
// text, not at laying out a parseable in-memory struct.
package symtab

// Proto is a protocol: a named, uniquely-IDed node in the protocol
// database, with an ordered list of field definitions and four optional
// HIR sections (spec.md §3 "Protocol (Proto)").
//
// The HIR sections are stored as `any` rather than as a concrete *hir.Block
// to avoid an import cycle (package hir refers to *Proto and *Field to
// resolve field references inside expressions); the hir package is the
// only intended reader/writer of these fields, via hir.Sections.
type Proto struct {
	ID   int
	Name string

	Fields      []*Field
	fieldByName map[string]*Field

	// Layer is this protocol's depth in the encapsulation graph, assigned
	// by graph.AssignLayers. -1 until assigned.
	Layer int

	// Unsupported is set by graph.RemoveUnsupportedNodes when this
	// protocol's before/verify sections reference a construct the database
	// parser flagged as unsupported.
	Unsupported bool

	BeforeHIR any
	FormatHIR any
	EncapHIR  any
	VerifyHIR any

	// LookupTables lists the tables this protocol's sections reference;
	// populated by the HIR builder and consulted by the optimiser to prune
	// tables unreferenced by any reachable Proto (spec.md §3 "Lookup table").
	LookupTables []*LookupTable
}

// NewProto constructs a Proto. Callers should go through
// [SymbolTable.AddProto] rather than calling this directly, so that the
// table's ID/name indices stay consistent.
func newProto(id int, name string) *Proto {
	return &Proto{
		ID:          id,
		Name:        name,
		Layer:       -1,
		fieldByName: make(map[string]*Field),
	}
}

// Field looks up a field of this protocol by name, or returns nil.
func (p *Proto) Field(name string) *Field {
	return p.fieldByName[name]
}
