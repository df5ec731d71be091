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

import (
	"fmt"

	"github.com/netpfl/compiler/internal/debug"
	"github.com/netpfl/compiler/internal/errs"
)

// Table is the global Symbol Table (spec.md §4.1, component A). It is
// built once per protocol-database load (spec.md §3 "Lifecycle") and is
// shared, read-only, by every [CompilationUnit] compiled against that
// database.
type Table struct {
	protoByID   map[int]*Proto
	protoByName map[string]*Proto

	constants map[any]*Constant
	vars      map[string]*Variable
	labels    map[int]*Label
	tables    map[string]*LookupTable
	regex     map[string]*RegexEntry
	strmatch  map[string]*StringMatchEntry
	data      []*DataItem

	tempCounter  int
	labelCounter int
}

// New returns an empty Symbol Table, ready to have protocols registered
// into it by the database loader.
func New() *Table {
	return &Table{
		protoByID:   make(map[int]*Proto),
		protoByName: make(map[string]*Proto),
		constants:   make(map[any]*Constant),
		vars:        make(map[string]*Variable),
		labels:      make(map[int]*Label),
		tables:      make(map[string]*LookupTable),
		regex:       make(map[string]*RegexEntry),
		strmatch:    make(map[string]*StringMatchEntry),
	}
}

// AddProto registers a new protocol. Returns a [Fatal] *errs.CompileError
// if id is already registered (spec.md §4.1: "duplicate protocol ID is
// fatal").
func (t *Table) AddProto(id int, name string) (*Proto, error) {
	if _, ok := t.protoByID[id]; ok {
		return nil, errs.Fatalf(name, "duplicate protocol ID %d", id)
	}
	p := newProto(id, name)
	t.protoByID[id] = p
	t.protoByName[name] = p
	debug.Log(nil, "symtab.addproto", "%s#%d", name, id)
	return p, nil
}

// ProtoByID returns the protocol with the given ID. Fatal if missing
// (spec.md §4.1: "missing lookup on a GetByID call is fatal").
func (t *Table) ProtoByID(id int) (*Proto, error) {
	p, ok := t.protoByID[id]
	if !ok {
		return nil, errs.Fatalf("", "no protocol with ID %d", id)
	}
	return p, nil
}

// ProtoByName returns the protocol with the given name, or nil if there is
// none (spec.md §4.1: "missing lookup on a FindByName call returns null").
func (t *Table) ProtoByName(name string) *Proto {
	return t.protoByName[name]
}

// Protos returns every registered protocol. Order is unspecified; callers
// that need determinism should sort by ID.
func (t *Table) Protos() []*Proto {
	out := make([]*Proto, 0, len(t.protoByID))
	for _, p := range t.protoByID {
		out = append(out, p)
	}
	return out
}

// RemoveProto deletes a protocol from the table, e.g. after
// graph.RemoveUnsupportedNodes or graph.RemoveUnconnectedNodes decides it
// is unreachable.
func (t *Table) RemoveProto(id int) {
	if p, ok := t.protoByID[id]; ok {
		delete(t.protoByName, p.Name)
		delete(t.protoByID, id)
	}
}

// StoreProtoField returns the canonical Field symbol for f within p,
// per spec.md §4.1:
//
//   - If no Field of that name exists in p, insert f as field p.n (ID
//     equals its insertion index in p.Fields); return f.
//   - If a Field of that name exists, compare type+attributes; on equality
//     return the existing symbol and propagate usage flags; otherwise
//     append to that Field's alternative definitions.
func (t *Table) StoreProtoField(p *Proto, f *Field) *Field {
	existing := p.fieldByName[f.Name]
	if existing == nil {
		f.Proto = p
		f.Index = len(p.Fields)
		p.Fields = append(p.Fields, f)
		p.fieldByName[f.Name] = f
		debug.Log(nil, "symtab.storefield", "%s.%s (new, #%d)", p.Name, f.Name, f.Index)
		return f
	}

	if sameDefinition(existing, f) {
		propagateUsage(existing, f)
		debug.Log(nil, "symtab.storefield", "%s.%s (merged)", p.Name, f.Name)
		return existing
	}

	existing.SymbolDefs = append(existing.SymbolDefs, f)
	debug.Log(nil, "symtab.storefield", "%s.%s (alternate def, kind %v vs %v)", p.Name, f.Name, f.Kind, existing.Kind)
	return existing
}

// propagateUsage merges the usage flags of an incoming, structurally
// identical field definition into the canonical one.
func propagateUsage(dst, src *Field) {
	dst.IntCompatible = dst.IntCompatible || src.IntCompatible
	dst.UsedAsInt = dst.UsedAsInt || src.UsedAsInt
	dst.UsedAsString = dst.UsedAsString || src.UsedAsString
	dst.UsedAsArray = dst.UsedAsArray || src.UsedAsArray
	dst.Used = dst.Used || src.Used
	dst.Compattable = dst.Compattable && src.Compattable
	dst.MultiProto = dst.MultiProto || src.MultiProto
}

// AddConstant interns a constant value, returning a stable [Constant]
// symbol for it.
func (t *Table) AddConstant(value any) *Constant {
	if c, ok := t.constants[value]; ok {
		return c
	}
	c := &Constant{Name: fmt.Sprintf("$const%d", len(t.constants)), Value: value}
	t.constants[value] = c
	return c
}

// AddVariable declares a new runtime variable. Fatal if name is already
// declared in this table (variable names, unlike field names, are not
// deduplicated by structure: the Filter Front-End is responsible for
// avoiding redeclaration).
func (t *Table) AddVariable(name string, kind VariableKind) (*Variable, error) {
	if _, ok := t.vars[name]; ok {
		return nil, errs.Fatalf(name, "variable redeclared")
	}
	v := &Variable{Name: name, Kind: kind}
	t.vars[name] = v
	return v, nil
}

// Variable looks up a previously declared variable, or nil.
func (t *Table) Variable(name string) *Variable {
	return t.vars[name]
}

// NewTemp allocates a fresh temporary variable name from this table's
// monotonic counter. Per spec.md §4.1/§9, temporaries (like labels and
// symbol IDs) are allocated from a counter scoped to the owning
// CompilationUnit, never a process global; callers should hold one
// [Table] per in-flight compile, or reset the counter between uses via
// [Table.ResetCounters].
func (t *Table) NewTemp() string {
	t.tempCounter++
	return fmt.Sprintf("$t%d", t.tempCounter)
}

// NewLabel allocates a fresh label. If linked is true, the label lazily
// binds to the next code label allocated after it (spec.md §4.1).
func (t *Table) NewLabel(linked bool) *Label {
	t.labelCounter++
	l := &Label{ID: t.labelCounter, Linked: linked, Address: -1}
	t.labels[l.ID] = l
	return l
}

// ResetCounters zeroes the temporary and label counters. Used when a
// [Table] is reused across multiple CompilationUnits that must each see
// temporaries numbered from zero (e.g. for golden-output tests).
func (t *Table) ResetCounters() {
	t.tempCounter = 0
	t.labelCounter = 0
}

// AddLookupTable registers a named lookup table. Fatal if the name is
// already taken.
func (t *Table) AddLookupTable(name string, validity ValidityMode, keys, values []Slot) (*LookupTable, error) {
	if _, ok := t.tables[name]; ok {
		return nil, errs.Fatalf(name, "lookup table redeclared")
	}
	lt := &LookupTable{Name: name, Validity: validity, Keys: keys, Values: values}
	lt.EnsureHiddenSlots()
	t.tables[name] = lt
	return lt, nil
}

// LookupTable returns a previously declared table, or nil.
func (t *Table) LookupTable(name string) *LookupTable {
	return t.tables[name]
}

// LookupTables returns every registered lookup table.
func (t *Table) LookupTables() []*LookupTable {
	out := make([]*LookupTable, 0, len(t.tables))
	for _, lt := range t.tables {
		out = append(out, lt)
	}
	return out
}

// AddRegex interns a regex pattern into the regexp coprocessor's table.
func (t *Table) AddRegex(pattern string) *RegexEntry {
	if e, ok := t.regex[pattern]; ok {
		return e
	}
	e := &RegexEntry{ID: len(t.regex), Pattern: pattern}
	t.regex[pattern] = e
	return e
}

// AddStringMatch interns a literal into the string-match coprocessor's
// table.
func (t *Table) AddStringMatch(value string) *StringMatchEntry {
	if e, ok := t.strmatch[value]; ok {
		return e
	}
	e := &StringMatchEntry{ID: len(t.strmatch), Value: value}
	t.strmatch[value] = e
	return e
}

// RegexEntries returns every interned regex pattern, ordered by ID (the
// Bytecode Emitter's regex coprocessor table is a positional array, not a
// map, so iteration order must be stable across runs).
func (t *Table) RegexEntries() []*RegexEntry {
	out := make([]*RegexEntry, len(t.regex))
	for _, e := range t.regex {
		out[e.ID] = e
	}
	return out
}

// StringMatchEntries returns every interned string-match literal, ordered
// by ID.
func (t *Table) StringMatchEntries() []*StringMatchEntry {
	out := make([]*StringMatchEntry, len(t.strmatch))
	for _, e := range t.strmatch {
		out[e.ID] = e
	}
	return out
}

// AddDataItem appends a typed data item to the data section.
func (t *Table) AddDataItem(name string, typ DataType, bytes []byte) *DataItem {
	item := &DataItem{Name: name, Type: typ, Bytes: bytes}
	t.data = append(t.data, item)
	return item
}

// DataItems returns every registered data item, in insertion order.
func (t *Table) DataItems() []*DataItem {
	return t.data
}
