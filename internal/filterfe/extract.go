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

package filterfe

import "github.com/netpfl/compiler/internal/symtab"

// MaxProtoInstances bounds how many occurrences of a MultiProto field the
// info partition reserves room for (spec.md §6 "MAX_PROTO_INSTANCES";
// scenario 6 "stops at the limit"). The spec leaves the exact figure to
// the implementer; 8 comfortably covers realistic encapsulation depths
// (IPv6 extension headers, MPLS label stacks) without the info partition
// growing unreasonably for filters that never hit the limit.
const MaxProtoInstances = 8

// infoEntrySize is the width in bytes of one ordinary extraction slot: a
// 16-bit offset and a 16-bit length (spec.md §6: "4 consecutive bytes
// [offset16, length16] (or [value32] for integer-extracted bit-fields)").
const infoEntrySize = 4

// AssignExtractionPositions walks every accepting, action state of dfa in
// state-ID order and assigns each distinct extracted field a stable
// info-partition byte offset, recording it on the field's
// ExtractPositions/InstanceCounter (spec.md §6's info-partition layout;
// scenario 5 "Field extraction", scenario 6 "Multi-instance").
//
// st is used to declare the per-field instance-counter variable a
// MultiProto field needs (spec.md §6 scenario 6: "emits an instance
// counter increment per parsed IPv6 header").
func AssignExtractionPositions(dfa *DFA, st *symtab.Table) error {
	offset := 0
	assigned := make(map[*symtab.Field]int)

	for _, sid := range dfa.States() {
		state := dfa.State(sid)
		if !state.IsAction {
			continue
		}
		for _, f := range state.Extract {
			if pos, ok := assigned[f]; ok {
				f.ExtractPositions = append(f.ExtractPositions, pos)
				continue
			}

			size := entrySize(f)
			assigned[f] = offset
			f.ExtractPositions = append(f.ExtractPositions, offset)

			if f.MultiProto {
				counterName := "$instcount_" + f.Proto.Name + "_" + f.Name
				counter := st.Variable(counterName)
				if counter == nil {
					var err error
					counter, err = st.AddVariable(counterName, symtab.VarInt)
					if err != nil {
						return err
					}
				}
				f.InstanceCounter = counter
			}

			offset += size
		}
	}
	return nil
}

// entrySize is the byte width reserved for f in the info partition: one
// ordinary slot, or, for a MultiProto field, room for the limit-plus-one
// instances spec.md §6 describes plus the trailing instance counter.
func entrySize(f *symtab.Field) int {
	if f.MultiProto {
		return infoEntrySize * (1 + MaxProtoInstances)
	}
	return infoEntrySize
}
