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

import "github.com/netpfl/compiler/internal/mir"

// mnemonics is the fixed opcode↔mnemonic table of spec.md §4.8 ("a fixed
// opcode↔mnemonic table, the target VM ISA").
var mnemonics = map[mir.Op]string{
	mir.OpConst:     "CONST",
	mir.OpLdReg:     "LDREG",
	mir.OpAdd:       "ADD",
	mir.OpSub:       "SUB",
	mir.OpMul:       "MUL",
	mir.OpDiv:       "DIV",
	mir.OpAnd:       "AND",
	mir.OpOr:        "OR",
	mir.OpXor:       "XOR",
	mir.OpNot:       "NOT",
	mir.OpNeg:       "NEG",
	mir.OpShl:       "SHL",
	mir.OpShr:       "SHR",
	mir.OpCmpEq:     "CMPEQ",
	mir.OpCmpNeq:    "CMPNEQ",
	mir.OpCmpGt:     "CMPGT",
	mir.OpCmpGe:     "CMPGE",
	mir.OpCmpLt:     "CMPLT",
	mir.OpCmpLe:     "CMPLE",
	mir.OpCInt:      "CINT",
	mir.OpChgBord:   "CHGBORD",
	mir.OpJFldEq:    "JFLDEQ",
	mir.OpJFldNeq:   "JFLDNEQ",
	mir.OpJFldGt:    "JFLDGT",
	mir.OpJFldLt:    "JFLDLT",
	mir.OpStReg:     "STREG",
	mir.OpLoadField: "LDFLD",
	mir.OpFieldAddr: "FLDADDR",
	mir.OpStoreInfo: "STINFO",
	mir.OpCopOut:    "OUT",
	mir.OpCopRun:    "COPRUN",
	mir.OpCopIn:     "COPIN",
	mir.OpLabel:     "LABEL",
	mir.OpJump:      "JUMP",
	mir.OpJCond:     "JCOND",
	mir.OpSwitch:    "SWITCH",
	mir.OpReturn:    "JUMP",
	mir.OpComment:   ";",
}

// mnemonic returns op's fixed mnemonic, or "???" for a node kind the
// emitter should never see reach this point (e.g. OpPhi, which must be
// resolved by Exit-SSA before optimize.Optimize returns).
func mnemonic(op mir.Op) string {
	if m, ok := mnemonics[op]; ok {
		return m
	}
	return "???"
}

// isStatement reports whether op always gets its own output line, as
// opposed to being folded inline into whatever instruction references it
// (spec.md §4.8: "one per MIR statement" — a pure-value node like CONST or
// ADD is not itself a statement, it is inlined at every place that reads
// it, the same way a stack-machine assembler inlines a pushed operand).
func isStatement(op mir.Op) bool {
	switch op {
	case mir.OpLabel, mir.OpJump, mir.OpJCond, mir.OpSwitch, mir.OpReturn,
		mir.OpStReg, mir.OpStoreInfo, mir.OpCopOut, mir.OpCopRun, mir.OpCopIn,
		mir.OpComment:
		return true
	default:
		return false
	}
}
