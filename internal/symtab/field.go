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

// FieldKind discriminates the field variants of spec.md §3 ("Field").
type FieldKind int

const (
	FieldFixed FieldKind = iota
	FieldVariable
	FieldBit
	FieldPadding
	FieldTokenEnded
	FieldTokenWrapped
	FieldLine
	FieldPattern
	FieldEatall
	FieldAllfields
)

func (k FieldKind) String() string {
	switch k {
	case FieldFixed:
		return "fixed"
	case FieldVariable:
		return "variable"
	case FieldBit:
		return "bitfield"
	case FieldPadding:
		return "padding"
	case FieldTokenEnded:
		return "tokenended"
	case FieldTokenWrapped:
		return "tokenwrapped"
	case FieldLine:
		return "line"
	case FieldPattern:
		return "pattern"
	case FieldEatall:
		return "eatall"
	case FieldAllfields:
		return "allfields"
	default:
		return "unknown"
	}
}

// Field belongs to exactly one [Proto] (spec.md invariant 1). The variant
// in play is named by Kind; only the struct members documented for that
// variant are meaningful.
type Field struct {
	Proto *Proto
	Index int // Position in Proto.Fields; also this field's canonical ID.
	Name  string
	Kind  FieldKind

	// FieldFixed: byte length, n >= 1.
	FixedLen int

	// FieldVariable: an HIR integer expression (package hir) giving the
	// length in bytes, over already-parsed fields of the same Proto.
	LengthExpr any

	// FieldBit: the parent fixed field this bit-field is carved from, plus
	// the mask/shift describing the slice.
	BitParent *Field
	BitMask   uint64
	BitShift  uint

	// FieldPadding: align to this modulus.
	PadModulus int

	// FieldTokenEnded / FieldTokenWrapped: terminator literal or regex, an
	// optional end-discard flag, and an offset tweak applied after the
	// terminator is found.
	Terminator      string
	TerminatorRegex bool
	EndDiscard      bool
	EndOffset       int

	// FieldTokenWrapped additionally has a start terminator.
	StartTerminator string

	// FieldPattern: the regex to search for; the field is the first match.
	Pattern string

	// Flags, spec.md §3.
	IntCompatible bool
	UsedAsInt     bool
	UsedAsString  bool
	UsedAsArray   bool
	Used          bool
	Compattable   bool
	MultiProto    bool

	// Populated once this field is selected for extraction by the Filter
	// Front-End (component F): the info-partition byte offsets it has been
	// assigned, one per DFA action state that extracts it, and the
	// per-instance counter slot used for MultiProto fields.
	ExtractPositions []int
	InstanceCounter  *Variable

	// SymbolDefs holds alternate definitions of a field with this name in
	// the same Proto that could not be unified with this one because their
	// type or attributes differ (spec.md invariant 1).
	SymbolDefs []*Field
}

// sameDefinition reports whether two fields have identical type and
// attributes for the purposes of symbol deduplication (spec.md §4.1
// StoreProtoField: "compare type+attributes; on equality return the
// existing symbol").
func sameDefinition(a, b *Field) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case FieldFixed:
		return a.FixedLen == b.FixedLen
	case FieldBit:
		return a.BitMask == b.BitMask && a.BitShift == b.BitShift
	case FieldPadding:
		return a.PadModulus == b.PadModulus
	case FieldTokenEnded:
		return a.Terminator == b.Terminator && a.TerminatorRegex == b.TerminatorRegex &&
			a.EndDiscard == b.EndDiscard && a.EndOffset == b.EndOffset
	case FieldTokenWrapped:
		return a.Terminator == b.Terminator && a.StartTerminator == b.StartTerminator
	case FieldPattern:
		return a.Pattern == b.Pattern
	default:
		// FieldVariable, FieldLine, FieldEatall, FieldAllfields carry no
		// further distinguishing data beyond Kind and Name.
		return true
	}
}
