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

// Package netpfl is the public API of the Filter Language JIT compiler
// (spec.md §6 "Exposed"): CompileFilter/CheckFilter/
// CreateAutomatonFromFilter drive the pipeline end to end, and the Dump*
// methods are debug sinks. The package wires together, in order,
// internal/filterlang (a boundary adapter, not a lettered component),
// internal/filterfe (F), internal/lower (G), internal/cfgbuild (H),
// internal/optimize (I), and internal/emit (J).
package netpfl

import "github.com/netpfl/compiler/internal/mir"

// Profile selects which optimisation/latency tradeoff a compile targets.
// The teacher has no analogue for this; it mirrors spec.md §10.3's
// `compiler.Options`-shaped configuration struct in outline only. The
// only branch on it is in CompileFilter, which skips the optimiser
// entirely under ProfileFast; the other profiles run the same pipeline.
type Profile int

const (
	// ProfileDefault runs the standard optimiser pipeline.
	ProfileDefault Profile = iota
	// ProfileFast skips optimisation even when Options.Optimize is true,
	// for interactive CheckFilter-style calls that only need a DFA.
	ProfileFast
)

// Backend is a hook for target-specific bytecode mnemonics (spec.md §6
// "Non-goals: does not mandate a specific bytecode instruction set").
// The default pipeline does not consult it; internal/emit's fixed
// opcode-to-mnemonic table is the only backend wired in today. It exists
// so Options has a stable place for a caller-supplied backend to live
// once one is written, without changing this struct's shape.
type Backend interface {
	// Mnemonic returns the text a bytecode emitter should print for op,
	// and whether this backend recognises it at all.
	Mnemonic(op mir.Op) (string, bool)
}

// Options configures a CompilationUnit (spec.md §10.3), in the same
// plain-struct-of-knobs shape as the teacher's compiler.Options: no
// flag-parsing or environment binding lives here, since that is CLI
// territory (cmd/netpflc), out of scope for the core per spec.md §6
// "Environment / CLI: Opaque to the core".
type Options struct {
	// Optimize runs the full internal/optimize pipeline over the lowered
	// CFG before emitting bytecode (spec.md §4.7). Disabling it still
	// produces valid, merely unoptimised, bytecode.
	Optimize bool
	Profile  Profile
	Backend  Backend
}
