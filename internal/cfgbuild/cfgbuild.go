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

// Package cfgbuild builds the Control-Flow Graph (spec.md §4.6, component
// H) from a lowered [mir.Program]: it cuts the flat instruction stream at
// its leaders and wires up successor/predecessor edges from each block's
// terminator.
//
// A block is kept even when nothing in the built graph reaches it. The
// optimiser's basic-block-elimination pass (spec.md §4.7), not this one,
// decides what survives; this package only cuts and wires.
package cfgbuild

import (
	"github.com/netpfl/compiler/internal/arena"
	"github.com/netpfl/compiler/internal/mir"
	"github.com/netpfl/compiler/internal/symtab"
)

// Edge is a successor/predecessor link. Block is -1 when the edge leaves
// the graph entirely: a OpReturn's target, or any jump to a label this
// program never defines (the filter's shared trueLabel/falseLabel, or a
// label some other filter's program owns), in which case External names
// the label instead.
type Edge struct {
	Block    int
	External *symtab.Label
}

// Block is one maximal straight-line run of instructions: no internal
// instruction is a label leader, and only the last instruction may be a
// terminator (OpJump/OpJCond/OpSwitch/OpReturn).
type Block struct {
	ID    int
	Instr []arena.Handle[mir.Node]

	Succs []Edge
	Preds []int
}

// Label returns the symtab.Label this block's leader declares, or nil if
// the block's first instruction is not an OpLabel (the entry block, when
// the program's very first instruction isn't itself a label, or any block
// that starts right after a terminator without a label of its own).
func (b *Block) Label(a *arena.Arena[mir.Node]) *symtab.Label {
	if len(b.Instr) == 0 {
		return nil
	}
	if n := a.Get(b.Instr[0]); n.Op == mir.OpLabel {
		return n.Target
	}
	return nil
}

// Terminator returns the block's last instruction, which is always
// present: [Build] never produces an empty block.
func (b *Block) Terminator(a *arena.Arena[mir.Node]) *mir.Node {
	return a.Get(b.Instr[len(b.Instr)-1])
}

// CFG is a built control-flow graph over one lowered program.
type CFG struct {
	Arena  *arena.Arena[mir.Node]
	Blocks []*Block
	Entry  int
}

func isTerminator(op mir.Op) bool {
	switch op {
	case mir.OpJump, mir.OpJCond, mir.OpSwitch, mir.OpReturn:
		return true
	default:
		return false
	}
}

// Build cuts p at its leaders (spec.md §4.6: "the CFG builder cuts at
// leaders") and wires successor/predecessor edges from every block's
// terminator. The program's first instruction is always a leader; so is
// every OpLabel and every instruction immediately following a
// terminator.
func Build(p *mir.Program) *CFG {
	cfg := &CFG{Arena: p.Arena}
	if len(p.Instr) == 0 {
		return cfg
	}

	isLeader := make([]bool, len(p.Instr))
	isLeader[0] = true
	for i, h := range p.Instr {
		n := p.Arena.Get(h)
		if n.Op == mir.OpLabel {
			isLeader[i] = true
		}
		if isTerminator(n.Op) && i+1 < len(p.Instr) {
			isLeader[i+1] = true
		}
	}

	var starts []int
	for i, leader := range isLeader {
		if leader {
			starts = append(starts, i)
		}
	}

	labelBlock := make(map[*symtab.Label]int, len(starts))
	cfg.Blocks = make([]*Block, len(starts))
	for bi, start := range starts {
		end := len(p.Instr)
		if bi+1 < len(starts) {
			end = starts[bi+1]
		}
		blk := &Block{ID: bi, Instr: p.Instr[start:end]}
		cfg.Blocks[bi] = blk
		if l := blk.Label(p.Arena); l != nil {
			labelBlock[l.Resolve()] = bi
		}
	}

	for bi, blk := range cfg.Blocks {
		last := blk.Terminator(p.Arena)
		switch last.Op {
		case mir.OpJump:
			cfg.addEdge(bi, last.Target, labelBlock)
		case mir.OpJCond:
			cfg.addEdge(bi, last.TrueLabel, labelBlock)
			cfg.addEdge(bi, last.FalseLabel, labelBlock)
		case mir.OpSwitch:
			for _, c := range last.Cases {
				cfg.addEdge(bi, c.Target, labelBlock)
			}
			cfg.addEdge(bi, last.DefaultTarget, labelBlock)
		case mir.OpReturn:
			cfg.addEdge(bi, last.Target, labelBlock)
		default:
			// No terminator: this block's code just runs into the next
			// one (spec.md §4.5's before/format/encap sections have no
			// reason to end in a jump of their own).
			if bi+1 < len(cfg.Blocks) {
				cfg.link(bi, bi+1)
			}
		}
	}

	return cfg
}

// addEdge links from to the block owning label, resolving linked labels
// first (spec.md §4.1), or records an external edge if label belongs to
// no block in this graph.
func (c *CFG) addEdge(from int, label *symtab.Label, labelBlock map[*symtab.Label]int) {
	if label == nil {
		return
	}
	resolved := label.Resolve()
	if to, ok := labelBlock[resolved]; ok {
		c.link(from, to)
		return
	}
	c.Blocks[from].Succs = append(c.Blocks[from].Succs, Edge{Block: -1, External: resolved})
}

func (c *CFG) link(from, to int) {
	for _, e := range c.Blocks[from].Succs {
		if e.Block == to {
			return
		}
	}
	c.Blocks[from].Succs = append(c.Blocks[from].Succs, Edge{Block: to})
	c.Blocks[to].Preds = append(c.Blocks[to].Preds, from)
}
