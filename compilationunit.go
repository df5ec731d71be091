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
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/netpfl/compiler/internal/cfgbuild"
	"github.com/netpfl/compiler/internal/emit"
	"github.com/netpfl/compiler/internal/errs"
	"github.com/netpfl/compiler/internal/filterfe"
	"github.com/netpfl/compiler/internal/filterlang"
	"github.com/netpfl/compiler/internal/lower"
	"github.com/netpfl/compiler/internal/optimize"
)

// Status is CompileFilter's result (spec.md §6 "CompileFilter(filterText,
// optimise) -> SUCCESS | FAILURE | WARNING").
type Status int

const (
	SUCCESS Status = iota
	FAILURE
	WARNING
)

// String implements [fmt.Stringer].
func (s Status) String() string {
	switch s {
	case SUCCESS:
		return "SUCCESS"
	case FAILURE:
		return "FAILURE"
	case WARNING:
		return "WARNING"
	default:
		return "UNKNOWN"
	}
}

// CompilationUnit owns every transient allocation of one filter compile:
// the DFA, the lowered MIR program, the built CFG, and the final
// bytecode text (spec.md §5 "The CompilationUnit owns all transient IR
// and CFG allocations"). It is single-threaded and non-reentrant: call
// CompileFilter again on the same unit only after the previous call has
// returned.
type CompilationUnit struct {
	// ID correlates this unit's debug log lines (internal/debug.Log's
	// context argument) across concurrently compiling units that share
	// one Database (spec.md §5 "Shared state").
	ID uuid.UUID

	db   *Database
	opts Options

	recorder errs.Recorder
	fatalErr error

	filter *filterfe.Filter
	dfa    *filterfe.DFA
	cfg    *cfgbuild.CFG

	bytecode string
}

// NewCompilationUnit returns a fresh unit compiling against db.
func NewCompilationUnit(db *Database, opts Options) *CompilationUnit {
	return &CompilationUnit{ID: uuid.New(), db: db, opts: opts}
}

// Diagnostics returns every PDL/PFL error and warning recorded by the
// most recent CompileFilter call.
func (u *CompilationUnit) Diagnostics() []*errs.CompileError {
	return u.recorder.Diagnostics()
}

// CompileFilter parses filterText, builds its DFA against the unit's
// Database, lowers it to MIR, builds and (if optimise) optimises its
// CFG, and emits bytecode (spec.md §4.1-§4.8 end to end). On SUCCESS or
// WARNING, GetNetILFilter returns the emitted text.
func (u *CompilationUnit) CompileFilter(filterText string, optimise bool) Status {
	u.recorder.Reset()
	u.fatalErr = nil
	u.filter, u.dfa, u.cfg, u.bytecode = nil, nil, nil, ""

	f, err := filterlang.Parse(filterText, u.db.Table)
	if err != nil {
		u.record(err)
		return FAILURE
	}
	u.filter = f

	dfa, err := filterfe.Compile(f, u.db.Graph)
	if err != nil {
		u.record(err)
		return FAILURE
	}
	u.dfa = dfa

	if f.Action != nil && f.Action.Kind == filterfe.ActionExtractFields {
		if err := filterfe.AssignExtractionPositions(dfa, u.db.Table); err != nil {
			u.record(err)
			return FAILURE
		}
	}

	trueLabel := u.db.Table.NewLabel(false)
	falseLabel := u.db.Table.NewLabel(false)
	prog := lower.Lower(dfa, u.db.Table, trueLabel, falseLabel)
	cfg := cfgbuild.Build(prog)

	if optimise && u.opts.Profile != ProfileFast {
		optimize.Optimize(cfg, u.db.Table, nil)
	}
	u.cfg = cfg

	var buf strings.Builder
	if err := emit.Program(&buf, u.db.Table, cfg); err != nil {
		u.record(errs.Fatalf("", "%v", err))
		return FAILURE
	}
	u.bytecode = buf.String()

	if u.recorder.HasErrors() {
		return FAILURE
	}
	if len(u.recorder.Diagnostics()) > 0 {
		return WARNING
	}
	return SUCCESS
}

// record files err into the recorder, or — if it is Fatal — sets fatalErr
// instead: the recorder panics on a Fatal record (spec.md §7, "Fatal
// errors bypass the recorder"), so CompileFilter must never hand it one.
func (u *CompilationUnit) record(err error) {
	ce, ok := err.(*errs.CompileError)
	if !ok {
		ce = errs.Fatalf("", "%v", err)
	}
	if ce.Kind == errs.Fatal {
		u.fatalErr = ce
		return
	}
	u.recorder.Record(ce)
}

// LastError returns the most recent Fatal error CompileFilter encountered,
// or nil if the last call did not fail fatally. PDL/PFL errors and
// warnings are not fatal; fetch those from Diagnostics instead.
func (u *CompilationUnit) LastError() error {
	return u.fatalErr
}

// GetNetILFilter returns the bytecode text produced by the most recent
// successful (or warning) CompileFilter call, or "" if none has run.
func (u *CompilationUnit) GetNetILFilter() string {
	return u.bytecode
}

// CheckFilter parses filterText against the unit's Database and reports
// whether it is syntactically and referentially valid, without building
// or lowering a DFA (spec.md §6 "CheckFilter(filterText) -> bool (parse
// only)").
func (u *CompilationUnit) CheckFilter(filterText string) bool {
	_, err := filterlang.Parse(filterText, u.db.Table)
	return err == nil
}

// CreateAutomatonFromFilter builds and returns filterText's DFA without
// lowering it, for offline inspection (spec.md §6).
func (u *CompilationUnit) CreateAutomatonFromFilter(filterText string) (*filterfe.DFA, error) {
	f, err := filterlang.Parse(filterText, u.db.Table)
	if err != nil {
		return nil, err
	}
	return filterfe.Compile(f, u.db.Graph)
}

// DumpFilter writes a debug rendering of the most recently compiled
// filter to out: the bytecode text when netIL is true, or a line-per-
// state summary of its DFA otherwise (spec.md §6 "DumpFilter(out,
// netIL)").
func (u *CompilationUnit) DumpFilter(out io.Writer, netIL bool) error {
	if netIL {
		_, err := io.WriteString(out, u.bytecode)
		return err
	}
	return dumpAutomaton(out, u.dfa)
}

// DumpCFG writes a debug rendering of the most recently compiled CFG to
// out. graphOnly prints only block IDs and successor/predecessor edges;
// netIL additionally prints each block's emitted instruction text
// (spec.md §6 "DumpCFG(out, graphOnly, netIL)").
func (u *CompilationUnit) DumpCFG(out io.Writer, graphOnly, netIL bool) error {
	if u.cfg == nil {
		return fmt.Errorf("netpfl: no CFG to dump; CompileFilter has not run")
	}
	return dumpCFG(out, u.cfg, graphOnly, netIL)
}

// PrintFinalAutomaton writes the most recently compiled filter's DFA to
// the file at path, truncating it if it already exists (spec.md §6
// "PrintFinalAutomaton(path)").
func (u *CompilationUnit) PrintFinalAutomaton(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return dumpAutomaton(f, u.dfa)
}
