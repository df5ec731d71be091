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

// Package emit implements the Bytecode Emitter (spec.md §4.8, component
// J): it walks an optimised CFG in the order [internal/cfgbuild] already
// left its blocks in — which, since Build never reorders the program it
// cuts, preserves the lowering pass's own fall-through order — and prints
// one text line per MIR statement, preceded by the constant/string pool,
// the coprocessor table configuration, and the info-partition layout
// (spec.md §6 "Bytecode format").
package emit

import (
	"fmt"
	"io"

	"github.com/netpfl/compiler/internal/arena"
	"github.com/netpfl/compiler/internal/cfgbuild"
	"github.com/netpfl/compiler/internal/mir"
	"github.com/netpfl/compiler/internal/symtab"
)

// Program emits the full text form of cfg: the data section (spec.md §6
// "Constants and string pool go first"), the coprocessor initialisation
// block, the info-partition layout, and finally the instruction stream
// itself, one line per MIR statement.
//
// Register operands print as their final rN name; by the time this runs,
// [internal/optimize.Optimize] has already renumbered every surviving
// DefReg into the dense, emitter-facing namespace (spec.md §4.7 step 7).
// Label addresses are stamped onto their [symtab.Label] as each OpLabel is
// reached, so a caller printing multiple filters against the same Table
// sees each filter's own labels resolve to that filter's own offsets.
func Program(w io.Writer, st *symtab.Table, cfg *cfgbuild.CFG) error {
	if err := dataSection(w, st); err != nil {
		return err
	}
	if err := infoPartitionSection(w, st); err != nil {
		return err
	}
	return instructionSection(w, cfg)
}

// instructionSection prints cfg's blocks in order, skipping pure-value
// nodes that never acquired a statement role of their own (spec.md §4.8:
// only the fixed mnemonic-bearing statement set gets a line; everything
// else is inlined at its use site by [operand]).
func instructionSection(w io.Writer, cfg *cfgbuild.CFG) error {
	line := 0
	for _, blk := range cfg.Blocks {
		n, err := Block(w, cfg.Arena, blk, line)
		if err != nil {
			return err
		}
		line = n
	}
	return nil
}

// Block prints one basic block's statements, starting the address
// numbering at startLine, and returns the line count after the block
// (the startLine a caller should pass for the next block in program
// order). It is also exported for debug sinks that want to render a
// single block in isolation (spec.md §6 "DumpCFG").
func Block(w io.Writer, a *arena.Arena[mir.Node], blk *cfgbuild.Block, startLine int) (int, error) {
	line := startLine
	for _, h := range blk.Instr {
		n := a.Get(h)
		if n.Op == mir.OpLabel {
			if n.Target != nil {
				n.Target.Resolve().Address = line
			}
			if _, err := fmt.Fprintf(w, "%s:\n", labelName(n.Target)); err != nil {
				return line, err
			}
			continue
		}
		if !isStatement(n.Op) {
			continue
		}
		text, err := statementText(a, n)
		if err != nil {
			return line, err
		}
		if _, err := fmt.Fprintf(w, "\t%s\n", text); err != nil {
			return line, err
		}
		line++
	}
	return line, nil
}

// statementText renders one statement-class instruction, recursively
// inlining any operand that is itself a pure-value node.
func statementText(a *arena.Arena[mir.Node], n *mir.Node) (string, error) {
	switch n.Op {
	case mir.OpStReg:
		return fmt.Sprintf("%s %s, %s", mnemonic(n.Op), regName(n.DefReg), operand(a, n.Left)), nil
	case mir.OpStoreInfo:
		return fmt.Sprintf("%s %s, %s", mnemonic(n.Op), fieldName(n.Sym.Field), operand(a, n.Left)), nil
	case mir.OpCopOut:
		return fmt.Sprintf("%s %s", mnemonic(n.Op), operand(a, n.Left)), nil
	case mir.OpCopRun:
		return fmt.Sprintf("%s %s", mnemonic(n.Op), n.Str), nil
	case mir.OpCopIn:
		return fmt.Sprintf("%s %s, %s", mnemonic(n.Op), regName(n.DefReg), n.Str), nil
	case mir.OpJump:
		return fmt.Sprintf("%s %s", mnemonic(n.Op), labelName(n.Target)), nil
	case mir.OpJCond:
		return fmt.Sprintf("%s %s, %s, %s", mnemonic(n.Op), operand(a, n.Left), labelName(n.TrueLabel), labelName(n.FalseLabel)), nil
	case mir.OpSwitch:
		return switchText(a, n), nil
	case mir.OpReturn:
		outcome := "filter_false"
		if n.Value != 0 {
			outcome = "filter_true"
		}
		return fmt.Sprintf("%s %s\t; %s", mnemonic(n.Op), labelName(n.Target), outcome), nil
	case mir.OpComment:
		return fmt.Sprintf("; %s", n.Str), nil
	default:
		return "", fmt.Errorf("emit: %d is not a statement", n.Op)
	}
}

func switchText(a *arena.Arena[mir.Node], n *mir.Node) string {
	s := fmt.Sprintf("%s %s", mnemonic(n.Op), operand(a, n.Left))
	for _, c := range n.Cases {
		s += fmt.Sprintf(", %v:%s", c.Value.Value, labelName(c.Target))
	}
	s += fmt.Sprintf(", default:%s", labelName(n.DefaultTarget))
	return s
}

// operand renders a pure-value node inline: a register read, a literal,
// or a fully-parenthesised nested expression.
func operand(a *arena.Arena[mir.Node], h arena.Handle[mir.Node]) string {
	n := a.Get(h)
	switch n.Op {
	case mir.OpConst:
		return fmt.Sprintf("%d", n.Value)
	case mir.OpLdReg:
		return regName(n.DefReg)
	case mir.OpLoadField:
		return fmt.Sprintf("%s(%s)", mnemonic(n.Op), fieldName(n.Sym.Field))
	case mir.OpFieldAddr:
		return fmt.Sprintf("%s(%s)", mnemonic(n.Op), fieldName(n.Sym.Field))
	case mir.OpJFldEq, mir.OpJFldNeq, mir.OpJFldGt, mir.OpJFldLt:
		return fmt.Sprintf("%s(%s, %s)", mnemonic(n.Op), fieldName(n.Sym.Field), operand(a, n.Right))
	case mir.OpCInt, mir.OpNot, mir.OpNeg, mir.OpChgBord:
		return fmt.Sprintf("%s(%s)", mnemonic(n.Op), operand(a, n.Left))
	default:
		return fmt.Sprintf("%s(%s, %s)", mnemonic(n.Op), operand(a, n.Left), operand(a, n.Right))
	}
}

func regName(r mir.Reg) string {
	return fmt.Sprintf("r%d", r)
}

func fieldName(f *symtab.Field) string {
	if f == nil {
		return "<nil field>"
	}
	return f.Proto.Name + "." + f.Name
}

func labelName(l *symtab.Label) string {
	if l == nil {
		return "<nil label>"
	}
	return fmt.Sprintf("L%d", l.Resolve().ID)
}
