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

package netpfl

import (
	"github.com/netpfl/compiler/internal/compact"
	"github.com/netpfl/compiler/internal/graph"
	"github.com/netpfl/compiler/internal/symtab"
)

// Database is the immutable, once-per-load pair of Symbol Table and
// Encapsulation Graph every CompilationUnit compiles filters against
// (spec.md §5 "Shared state": "the Symbol Table and the immutable
// Encapsulation Graph may be consumed concurrently by independent
// CompilationUnit instances; the compiler does not write to them after
// construction").
//
// Building a Database from a protocol-database XML document is out of
// scope for the core (spec.md §1 "parsing of the protocol database XML"
// is an external collaborator); callers construct Table/Graph themselves
// — directly, from test fixtures, or from a database-parser package not
// part of this module — and hand the finished pair to NewDatabase.
type Database struct {
	Table *symtab.Table
	Graph *graph.Graph
}

// NewDatabase wraps an already-built Symbol Table and Encapsulation Graph
// for use by one or more CompilationUnits. It runs the Field Compactor
// (spec.md §4.9) over every protocol's format section once, here, since
// that pass belongs to the same once-per-database-load lifecycle stage
// as the Symbol Table and Encapsulation Graph themselves (spec.md §3
// "Lifecycle") and must finish before any CompilationUnit lowers a
// filter against this database.
func NewDatabase(st *symtab.Table, g *graph.Graph) *Database {
	for _, p := range st.Protos() {
		compact.CompactFormat(p, st)
	}
	return &Database{Table: st, Graph: g}
}
