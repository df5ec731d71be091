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

// netpflc is a thin CLI over the netpfl public API: it loads a Database
// from a YAML fixture, compiles one filter expression against it, and
// prints the result. Flag parsing and file I/O are this command's own
// business, not the core compiler's (spec.md §6 "Environment / CLI:
// Opaque to the core").
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/netpfl/compiler"
)

var (
	dbPath     = flag.String("db", "", "path to a YAML database fixture (protos, fields, graph edges)")
	tablesPath = flag.String("tables", "", "path to a YAML lookup table defs document (optional)")
	optimize   = flag.Bool("optimize", true, "run the optimiser pipeline before emitting bytecode")
	checkOnly  = flag.Bool("check", false, "only parse and validate the filter, printing true/false")
	dumpCFG    = flag.Bool("dump-cfg", false, "print the CFG's block/edge graph instead of bytecode")
	dumpDFA    = flag.Bool("dump-automaton", false, "print the filter's DFA instead of bytecode")
	output     = flag.String("o", "-", "output path; \"-\" means stdout")
)

func main() {
	flag.Parse()
	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, "netpflc:", err)
		os.Exit(1)
	}
}

func run(filterText string) error {
	if *dbPath == "" {
		return fmt.Errorf("-db is required")
	}
	if filterText == "" {
		return fmt.Errorf("usage: netpflc -db <fixture.yaml> [flags] <filter-text>")
	}

	dbData, err := os.ReadFile(*dbPath)
	if err != nil {
		return fmt.Errorf("reading -db: %w", err)
	}
	db, err := loadDatabase(dbData)
	if err != nil {
		return fmt.Errorf("loading -db: %w", err)
	}

	if *tablesPath != "" {
		tablesData, err := os.ReadFile(*tablesPath)
		if err != nil {
			return fmt.Errorf("reading -tables: %w", err)
		}
		if err := db.Table.LoadLookupTableDefs(tablesData); err != nil {
			return fmt.Errorf("loading -tables: %w", err)
		}
	}

	out := os.Stdout
	if *output != "-" {
		f, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("opening -o: %w", err)
		}
		defer f.Close()
		out = f
	}

	u := netpfl.NewCompilationUnit(db, netpfl.Options{Optimize: *optimize})

	if *checkOnly {
		fmt.Fprintln(out, u.CheckFilter(filterText))
		return nil
	}

	status := u.CompileFilter(filterText, *optimize)
	for _, d := range u.Diagnostics() {
		fmt.Fprintln(os.Stderr, d)
	}
	if status == netpfl.FAILURE {
		if u.LastError() != nil {
			return u.LastError()
		}
		return fmt.Errorf("compile failed")
	}

	if *dumpCFG {
		return u.DumpCFG(out, false, true)
	}
	if *dumpDFA {
		return u.DumpFilter(out, false)
	}
	return u.DumpFilter(out, true)
}
