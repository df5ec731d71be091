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

// Package compact implements the Field Compactor (spec.md §4.9), an
// auxiliary optimiser that runs over a protocol's format section before
// lowering: consecutive fixed-size fields that are never used by any
// filter and are flagged Compattable get fused into one synthetic
// "skip N bytes" field, so the emitted bytecode advances past them with a
// single load instead of one per field.
//
// Unlike [internal/optimize], which runs per-compile against one filter's
// lowered CFG, this pass runs once per protocol against the Symbol
// Table's shared, immutable Proto.FormatHIR — the same lifecycle stage as
// [internal/graph]'s AssignLayers (spec.md §3 "Lifecycle": "The Symbol
// Table, the Encapsulation Graph, and the compiled Proto HIR are
// constructed once per database load... and are immutable thereafter").
package compact

import (
	"fmt"

	"github.com/netpfl/compiler/internal/arena"
	"github.com/netpfl/compiler/internal/debug"
	"github.com/netpfl/compiler/internal/hir"
	"github.com/netpfl/compiler/internal/symtab"
)

// CompactFormat fuses eligible runs of fixed fields in p's format section
// (spec.md §4.9). It is idempotent: running it again after fusion finds
// no further eligible runs, since every synthetic skip field it creates
// is itself Compattable and unused, but a run of length one never
// fuses, so no infinite regress is possible.
func CompactFormat(p *symtab.Proto, st *symtab.Table) bool {
	sections, ok := p.FormatHIR.(*hir.Sections)
	if !ok || sections == nil {
		return false
	}
	body, changed := compactBlock(sections.Arena, p, st, sections.Body, false)
	sections.Body = body
	return changed
}

// compactBlock fuses runs within blk's own statement list, after first
// recursing into any nested blocks (If/Switch/Loop/While bodies) so that
// deeply nested format logic benefits too. insideLoop disables fusion at
// this level (condition (c): "not inside a loop whose bound depends on
// one of them" — approximated conservatively as "never fuse across a
// loop body boundary", since this pass cannot in general prove a loop's
// exit condition is independent of a field being folded away).
func compactBlock(a *arena.Arena[hir.Node], p *symtab.Proto, st *symtab.Table, blk hir.Block, insideLoop bool) (hir.Block, bool) {
	changed := false

	for _, h := range blk {
		if recurseNested(a, p, st, a.Get(h)) {
			changed = true
		}
	}

	if insideLoop {
		return blk, changed
	}

	out := make(hir.Block, 0, len(blk))
	i := 0
	for i < len(blk) {
		run := skipRun(a, blk, i)
		if len(run) < 2 {
			out = append(out, blk[i])
			i++
			continue
		}
		out = append(out, fuseRun(a, p, st, run))
		i += len(run)
		changed = true
	}

	return out, changed
}

// recurseNested compacts the nested blocks of a single statement in
// place (spec.md §4.9's loop-collapse clause requires looking inside
// Loop/While bodies; If/Switch arms are format-section control flow that
// can equally contain compactable runs).
func recurseNested(a *arena.Arena[hir.Node], p *symtab.Proto, st *symtab.Table, n *hir.Node) bool {
	changed := false
	switch n.Op {
	case hir.OpIf:
		if then, c := compactBlock(a, p, st, n.Then, false); c {
			n.Then = then
			changed = true
		}
		if n.Else != nil {
			if els, c := compactBlock(a, p, st, n.Else, false); c {
				n.Else = els
				changed = true
			}
		}
	case hir.OpSwitch:
		for i := range n.Cases {
			if body, c := compactBlock(a, p, st, n.Cases[i].Body, false); c {
				n.Cases[i].Body = body
				changed = true
			}
		}
		if body, c := compactBlock(a, p, st, n.DefaultBody, false); c {
			n.DefaultBody = body
			changed = true
		}
	case hir.OpLoop, hir.OpWhile:
		if collapsed, ok := collapseCountedSkipLoop(a, p, st, n); ok {
			*n = *collapsed
			return true
		}
		if body, c := compactBlock(a, p, st, n.DefaultBody, true); c {
			n.DefaultBody = body
			changed = true
		}
	}
	return changed
}

// skipRun returns the maximal run of consecutive statements starting at
// start that are all eligible skip candidates, whatever variables they
// store into. A run of length 1 is returned as-is; callers should only
// fuse runs of length >= 2.
func skipRun(a *arena.Arena[hir.Node], blk hir.Block, start int) []arena.Handle[hir.Node] {
	_, ok := skipCandidate(a, blk[start])
	if !ok {
		return blk[start : start+1]
	}
	end := start + 1
	for end < len(blk) {
		cand, ok := skipCandidate(a, blk[end])
		if !ok {
			break
		}
		end++
	}
	return blk[start:end]
}

type skipStmt struct {
	field   *symtab.Field
	destVar *symtab.Variable
}

// skipCandidate reports whether h is `Gen(destVar, FieldRef(f))` for a
// Fixed field f satisfying spec.md §4.9 (a)-(b): Compattable, never used,
// not itself carrying across multiple protocol instances.
func skipCandidate(a *arena.Arena[hir.Node], h arena.Handle[hir.Node]) (skipStmt, bool) {
	n := a.Get(h)
	if n.Op != hir.OpGen || n.Sym.Variable == nil {
		return skipStmt{}, false
	}
	ref := a.Get(n.Kids[0])
	if ref.Op != hir.OpSym || ref.Sym.Field == nil {
		return skipStmt{}, false
	}
	f := ref.Sym.Field
	if f.Kind != symtab.FieldFixed || !f.Compattable || f.Used || f.MultiProto {
		return skipStmt{}, false
	}
	return skipStmt{field: f, destVar: n.Sym.Variable}, true
}

// fuseRun replaces a run of eligible Gen statements with a single Gen
// reading one synthetic skip field sized to the run's combined byte
// length.
func fuseRun(a *arena.Arena[hir.Node], p *symtab.Proto, st *symtab.Table, run []arena.Handle[hir.Node]) arena.Handle[hir.Node] {
	var total int
	var destVar *symtab.Variable
	for _, h := range run {
		cand, _ := skipCandidate(a, h)
		total += cand.field.FixedLen
		destVar = cand.destVar
	}

	fused := st.StoreProtoField(p, &symtab.Field{
		Name:        fmt.Sprintf("$skip%d", len(p.Fields)),
		Kind:        symtab.FieldFixed,
		FixedLen:    total,
		Compattable: true,
	})

	debug.Log(nil, "compact.fuse", "%s: fused %d fields into %s (%d bytes)", p.Name, len(run), fused.Name, total)

	ref := arena.New(a, hir.Node{Op: hir.OpSym, Sym: hir.Sym{Field: fused}})
	return arena.New(a, hir.Node{Op: hir.OpGen, Sym: hir.Sym{Variable: destVar}, Kids: [3]arena.Handle[hir.Node]{ref}})
}
