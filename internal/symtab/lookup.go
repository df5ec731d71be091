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

// ValidityMode is how entries in a [LookupTable] age out or get refreshed
// (spec.md §3 "Lookup table").
type ValidityMode int

const (
	ValidityStatic ValidityMode = iota
	ValidityDynamic
	ValidityKeepMaxTime
	ValidityUpdateOnHit
	ValidityReplaceOnHit
	ValidityAddOnHit
)

// SlotType is the wire type of a key or value slot.
type SlotType int

const (
	SlotInt SlotType = iota
	SlotBytes
)

// Slot describes one element of a lookup table's key or value list.
type Slot struct {
	Name string
	Type SlotType
	Size int // In bytes.
}

// LookupTable is a named coprocessor table (spec.md §3 "Lookup table";
// §6 "coprocessor init pushes table configurations").
type LookupTable struct {
	Name     string
	Validity ValidityMode

	Keys   []Slot
	Values []Slot

	// Dynamic tables (every Validity other than Static) carry three hidden
	// slots appended after Values: timestamp, lifespan, and flags.
	hiddenAppended bool

	// Protos lists every protocol whose sections reference this table.
	// Populated incrementally as the HIR builder walks the database;
	// consulted by the optimiser's dead-table pruning pass (spec.md §3:
	// "the optimiser later prunes tables not referenced by any reachable
	// Proto").
	Protos []*Proto
}

// hiddenSlots are appended to every non-static table's value list.
func hiddenSlots() []Slot {
	return []Slot{
		{Name: "$timestamp", Type: SlotInt, Size: 8},
		{Name: "$lifespan", Type: SlotInt, Size: 4},
		{Name: "$flags", Type: SlotInt, Size: 4},
	}
}

// EnsureHiddenSlots appends the hidden timestamp/lifespan/flags slots to a
// dynamic table's value list, idempotently.
func (t *LookupTable) EnsureHiddenSlots() {
	if t.Validity == ValidityStatic || t.hiddenAppended {
		return
	}
	t.Values = append(t.Values, hiddenSlots()...)
	t.hiddenAppended = true
}

// KeySize returns the total byte size of the key list.
func (t *LookupTable) KeySize() int {
	return slotsSize(t.Keys)
}

// ValueSize returns the total byte size of the value list, hidden slots
// included if present.
func (t *LookupTable) ValueSize() int {
	return slotsSize(t.Values)
}

func slotsSize(slots []Slot) int {
	var n int
	for _, s := range slots {
		n += s.Size
	}
	return n
}

// AddProto records that p references this table, if it is not already
// recorded.
func (t *LookupTable) AddProto(p *Proto) {
	for _, existing := range t.Protos {
		if existing == p {
			return
		}
	}
	t.Protos = append(t.Protos, p)
	p.LookupTables = append(p.LookupTables, t)
}

// RegexEntry is a compiled-pattern slot in the regexp coprocessor's table
// (spec.md §4.5: "OUT pattern_id ... COPRUN MATCH_WITH_OFFSET").
type RegexEntry struct {
	ID      int
	Pattern string
}

// StringMatchEntry is a literal-string slot in the string-match
// coprocessor's table.
type StringMatchEntry struct {
	ID    int
	Value string
}

// DataType is the wire representation of a [DataItem] (spec.md §6:
// "DATA_TYPE_WORD, DATA_TYPE_BYTE, DATA_TYPE_DOUBLE").
type DataType int

const (
	DataWord DataType = iota
	DataByte
	DataDouble
)

// DataItem is a typed constant emitted into the bytecode's data section
// (coprocessor table configuration, regex/string-match tables).
type DataItem struct {
	Name  string
	Type  DataType
	Bytes []byte
}
