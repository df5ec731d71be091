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

	"github.com/netpfl/compiler/internal/cfgbuild"
	"github.com/netpfl/compiler/internal/emit"
	"github.com/netpfl/compiler/internal/filterfe"
	"github.com/netpfl/compiler/internal/symtab"
)

// dumpAutomaton writes a line-per-state, line-per-transition rendering
// of dfa: state flags, the Proto each state carries when HasInfo is set,
// and every outgoing edge's label and modifiers.
func dumpAutomaton(w io.Writer, dfa *filterfe.DFA) error {
	if dfa == nil {
		return fmt.Errorf("netpfl: no automaton to dump; CompileFilter or CreateAutomatonFromFilter has not run")
	}
	for _, sid := range dfa.States() {
		s := dfa.State(sid)
		name := "<multi-proto>"
		if s.HasInfo && s.Info != nil {
			name = s.Info.Name
		}
		if _, err := fmt.Fprintf(w, "state %d (%s): final=%v accepting=%v action=%v\n",
			sid, name, s.IsFinal, s.IsAccepting, s.IsAction); err != nil {
			return err
		}
		for _, t := range dfa.Transitions(sid) {
			if _, err := fmt.Fprintf(w, "\t-> %d  %s->%s  complement=%v\n",
				t.To, protoName(t.Label.From), protoName(t.Label.To), t.Complement); err != nil {
				return err
			}
		}
	}
	return nil
}

func protoName(p *symtab.Proto) string {
	if p == nil {
		return "<nil>"
	}
	return p.Name
}

// dumpCFG writes cfg's blocks in program order: block header,
// predecessor/successor edges, and (only when graphOnly is false and
// netIL is true) the block's emitted instruction text via [emit.Block].
func dumpCFG(w io.Writer, cfg *cfgbuild.CFG, graphOnly, netIL bool) error {
	line := 0
	for _, blk := range cfg.Blocks {
		if _, err := fmt.Fprintf(w, "block %d  preds=%v\n", blk.ID, blk.Preds); err != nil {
			return err
		}
		for _, s := range blk.Succs {
			target := "<external>"
			if s.Block >= 0 {
				target = fmt.Sprintf("block %d", s.Block)
			}
			if _, err := fmt.Fprintf(w, "\t-> %s\n", target); err != nil {
				return err
			}
		}
		if graphOnly {
			continue
		}
		if netIL {
			n, err := emit.Block(w, cfg.Arena, blk, line)
			if err != nil {
				return err
			}
			line = n
		}
	}
	return nil
}
