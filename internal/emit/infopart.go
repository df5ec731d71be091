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

	"github.com/netpfl/compiler/internal/filterfe"
	"github.com/netpfl/compiler/internal/symtab"
)

// infoPartitionSection prints the layout [filterfe.AssignExtractionPositions]
// assigned: for every extracted field, 4 consecutive bytes [offset16,
// length16] at its assigned position, widened to
// 4*(1+MaxProtoInstances) bytes with a trailing uint16 instance counter
// for a MultiProto field (spec.md §6 "Info partition layout").
func infoPartitionSection(w io.Writer, st *symtab.Table) error {
	var any bool
	for _, p := range st.Protos() {
		for _, f := range p.Fields {
			if len(f.ExtractPositions) == 0 {
				continue
			}
			if !any {
				if _, err := io.WriteString(w, ".infopartition\n"); err != nil {
					return err
				}
				any = true
			}
			if err := printFieldSlots(w, f); err != nil {
				return err
			}
		}
	}
	return nil
}

func printFieldSlots(w io.Writer, f *symtab.Field) error {
	for _, pos := range f.ExtractPositions {
		if f.MultiProto {
			width := 4 * (1 + filterfe.MaxProtoInstances)
			counterOffset := pos + width - 2
			if _, err := fmt.Fprintf(w, "\t%s @ %d..%d\t; up to %d instances, counter uint16 @ %d\n",
				fieldName(f), pos, pos+width, filterfe.MaxProtoInstances, counterOffset); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "\t%s @ %d\t; [offset16, length16]\n", fieldName(f), pos); err != nil {
			return err
		}
	}
	return nil
}
