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

package emit

import (
	"fmt"
	"io"

	"github.com/netpfl/compiler/internal/symtab"
)

// dataSection prints the constant/string pool and the coprocessor table
// configuration ahead of any code (spec.md §6: "Constants and string pool
// go first; coprocessor initialisation ... pushes table configurations
// (entry count, key size, value size including hidden slots). Regex and
// string-match coprocessor tables are emitted as typed data items
// (DATA_TYPE_WORD, DATA_TYPE_BYTE, DATA_TYPE_DOUBLE)").
func dataSection(w io.Writer, st *symtab.Table) error {
	if _, err := io.WriteString(w, ".data\n"); err != nil {
		return err
	}
	for _, item := range st.DataItems() {
		if _, err := fmt.Fprintf(w, "\t%s %s %s\n", dataTypeMnemonic(item.Type), item.Name, formatBytes(item.Bytes)); err != nil {
			return err
		}
	}

	if err := regexSection(w, st); err != nil {
		return err
	}
	if err := stringMatchSection(w, st); err != nil {
		return err
	}
	return lookupTableSection(w, st)
}

func dataTypeMnemonic(t symtab.DataType) string {
	switch t {
	case symtab.DataWord:
		return "DATA_TYPE_WORD"
	case symtab.DataByte:
		return "DATA_TYPE_BYTE"
	case symtab.DataDouble:
		return "DATA_TYPE_DOUBLE"
	default:
		return "DATA_TYPE_UNKNOWN"
	}
}

func formatBytes(b []byte) string {
	s := "["
	for i, v := range b {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%d", v)
	}
	return s + "]"
}

// regexSection prints the regexp coprocessor's pattern table, one
// DATA_TYPE_BYTE entry per interned pattern (spec.md §4.5 step 2's
// "OUT pattern_id ... COPRUN MATCH_WITH_OFFSET" addresses entries by this
// same ID).
func regexSection(w io.Writer, st *symtab.Table) error {
	entries := st.RegexEntries()
	if len(entries) == 0 {
		return nil
	}
	if _, err := io.WriteString(w, ".coprocessor regexp\n"); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "\t%s pattern%d %q\n", dataTypeMnemonic(symtab.DataByte), e.ID, e.Pattern); err != nil {
			return err
		}
	}
	return nil
}

// stringMatchSection prints the string-match coprocessor's literal table.
func stringMatchSection(w io.Writer, st *symtab.Table) error {
	entries := st.StringMatchEntries()
	if len(entries) == 0 {
		return nil
	}
	if _, err := io.WriteString(w, ".coprocessor strmatch\n"); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "\t%s literal%d %q\n", dataTypeMnemonic(symtab.DataByte), e.ID, e.Value); err != nil {
			return err
		}
	}
	return nil
}

// lookupTableSection prints every registered lookup table's configuration:
// entry count placeholder, key size, and value size including any hidden
// validity-tracking slots (spec.md §6 "entry count, key size, value size
// including hidden slots").
func lookupTableSection(w io.Writer, st *symtab.Table) error {
	tables := st.LookupTables()
	if len(tables) == 0 {
		return nil
	}
	if _, err := io.WriteString(w, ".coprocessor lookup\n"); err != nil {
		return err
	}
	for _, t := range tables {
		t.EnsureHiddenSlots()
		if _, err := fmt.Fprintf(w, "\tTABLE %s keysize=%d valuesize=%d validity=%s\n",
			t.Name, t.KeySize(), t.ValueSize(), validityMnemonic(t.Validity)); err != nil {
			return err
		}
	}
	return nil
}

func validityMnemonic(v symtab.ValidityMode) string {
	switch v {
	case symtab.ValidityStatic:
		return "STATIC"
	case symtab.ValidityDynamic:
		return "DYNAMIC"
	case symtab.ValidityKeepMaxTime:
		return "KEEP_MAX_TIME"
	case symtab.ValidityUpdateOnHit:
		return "UPDATE_ON_HIT"
	case symtab.ValidityReplaceOnHit:
		return "REPLACE_ON_HIT"
	case symtab.ValidityAddOnHit:
		return "ADD_ON_HIT"
	default:
		return "UNKNOWN"
	}
}
