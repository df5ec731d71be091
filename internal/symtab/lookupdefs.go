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
	"gopkg.in/yaml.v3"

	"github.com/netpfl/compiler/internal/errs"
)

// lookupTableDef is the YAML shape of one lookup table declaration.
type lookupTableDef struct {
	Name     string    `yaml:"name"`
	Validity string    `yaml:"validity"`
	Keys     []slotDef `yaml:"keys"`
	Values   []slotDef `yaml:"values"`
}

type slotDef struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Size int    `yaml:"size"`
}

var validityNames = map[string]ValidityMode{
	"static":         ValidityStatic,
	"dynamic":        ValidityDynamic,
	"keep_max_time":  ValidityKeepMaxTime,
	"update_on_hit":  ValidityUpdateOnHit,
	"replace_on_hit": ValidityReplaceOnHit,
	"add_on_hit":     ValidityAddOnHit,
}

var slotTypeNames = map[string]SlotType{
	"int":   SlotInt,
	"bytes": SlotBytes,
}

// LoadLookupTableDefs parses a YAML document describing one or more
// lookup table *shapes* and registers each on t via AddLookupTable.
// It exists for tests and cmd/netpflc's -tables flag, which need a way
// to stand up coprocessor table configuration without the (out-of-scope)
// protocol-database XML parser; the full database still supplies field
// references into these tables via [LookupTable.AddProto].
//
// Document shape:
//
//	- name: blocklist
//	  validity: dynamic
//	  keys:
//	    - {name: addr, type: int, size: 4}
//	  values:
//	    - {name: hits, type: int, size: 4}
//
// Valid validity values are static, dynamic, keep_max_time,
// update_on_hit, replace_on_hit, and add_on_hit (spec.md §3's
// ValidityMode enum); valid slot types are int and bytes.
func (t *Table) LoadLookupTableDefs(data []byte) error {
	var defs []lookupTableDef
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return errs.PDLf("", "lookup table defs: %v", err)
	}
	for _, d := range defs {
		validity, ok := validityNames[d.Validity]
		if !ok {
			return errs.PDLf(d.Name, "unknown validity mode %q", d.Validity)
		}
		keys, err := slotsFromDefs(d.Name, d.Keys)
		if err != nil {
			return err
		}
		values, err := slotsFromDefs(d.Name, d.Values)
		if err != nil {
			return err
		}
		if _, err := t.AddLookupTable(d.Name, validity, keys, values); err != nil {
			return err
		}
	}
	return nil
}

func slotsFromDefs(table string, defs []slotDef) ([]Slot, error) {
	out := make([]Slot, 0, len(defs))
	for _, d := range defs {
		typ, ok := slotTypeNames[d.Type]
		if !ok {
			return nil, errs.PDLf(table, "unknown slot type %q", d.Type)
		}
		out = append(out, Slot{Name: d.Name, Type: typ, Size: d.Size})
	}
	return out, nil
}
