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

package filterfe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netpfl/compiler/internal/filterfe"
	"github.com/netpfl/compiler/internal/fsa"
	"github.com/netpfl/compiler/internal/graph"
	"github.com/netpfl/compiler/internal/hir"
	"github.com/netpfl/compiler/internal/symtab"
)

func setupGraph(t *testing.T) (*symtab.Table, *graph.Graph, map[string]*symtab.Proto) {
	t.Helper()
	st := symtab.New()
	names := []string{"start", "eth", "ip", "tcp", "udp", "arp"}
	protos := make(map[string]*symtab.Proto, len(names))
	for i, n := range names {
		p, err := st.AddProto(i, n)
		require.NoError(t, err)
		protos[n] = p
	}
	g := graph.New(protos["start"])
	g.AddEdge(protos["start"], protos["eth"], true)
	g.AddEdge(protos["eth"], protos["ip"], true)
	g.AddEdge(protos["eth"], protos["arp"], false)
	g.AddEdge(protos["ip"], protos["tcp"], true)
	g.AddEdge(protos["ip"], protos["udp"], false)
	return st, g, protos
}

func TestCompileSingleProtocolFilter(t *testing.T) {
	t.Parallel()

	_, g, protos := setupGraph(t)
	f := &filterfe.Filter{
		Root: &filterfe.RegexExpr{
			Sets: []*filterfe.SetExpr{
				{Terms: []*filterfe.Term{{Proto: protos["ip"]}}, Inclusion: fsa.InclusionIn},
			},
		},
		Action: &filterfe.ActionExpr{Kind: filterfe.ActionReturnPacket},
	}

	dfa, err := filterfe.Compile(f, g)
	require.NoError(t, err)

	accepting := countAccepting(dfa)
	assert.Equal(t, 1, accepting, "exactly one path accepts: start --ip--> accept")
}

func TestCompileRegexOverHeaders(t *testing.T) {
	t.Parallel()

	_, g, protos := setupGraph(t)
	f := &filterfe.Filter{
		Root: &filterfe.RegexExpr{
			Sets: []*filterfe.SetExpr{
				{Terms: []*filterfe.Term{{Proto: protos["ip"]}}, Inclusion: fsa.InclusionIn},
				{Terms: []*filterfe.Term{{Proto: protos["tcp"]}, {Proto: protos["udp"]}}, Inclusion: fsa.InclusionIn},
			},
		},
		Action: &filterfe.ActionExpr{Kind: filterfe.ActionReturnPacket},
	}

	dfa, err := filterfe.Compile(f, g)
	require.NoError(t, err)
	assert.Equal(t, 2, countAccepting(dfa), "ip.tcp and ip.udp both accept")
}

func TestCompileAssignsExtractionPositions(t *testing.T) {
	t.Parallel()

	st, g, protos := setupGraph(t)
	src := st.StoreProtoField(protos["ip"], &symtab.Field{Name: "src", Kind: symtab.FieldFixed, FixedLen: 4})
	dst := st.StoreProtoField(protos["ip"], &symtab.Field{Name: "dst", Kind: symtab.FieldFixed, FixedLen: 4})

	f := &filterfe.Filter{
		Root: &filterfe.RegexExpr{
			Sets: []*filterfe.SetExpr{
				{Terms: []*filterfe.Term{{Proto: protos["ip"]}}, Inclusion: fsa.InclusionIn},
			},
		},
		Action: &filterfe.ActionExpr{Kind: filterfe.ActionExtractFields, Fields: []*symtab.Field{src, dst}},
	}

	dfa, err := filterfe.Compile(f, g)
	require.NoError(t, err)

	require.NoError(t, filterfe.AssignExtractionPositions(dfa, st))
	require.Len(t, src.ExtractPositions, 1)
	require.Len(t, dst.ExtractPositions, 1)
	assert.Equal(t, 0, src.ExtractPositions[0])
	assert.Equal(t, 4, dst.ExtractPositions[0])
}

func TestAssignExtractionPositionsMultiProtoReservesLimitSlots(t *testing.T) {
	t.Parallel()

	st, g, protos := setupGraph(t)
	nextHdr := st.StoreProtoField(protos["ip"], &symtab.Field{
		Name: "nextheader", Kind: symtab.FieldFixed, FixedLen: 1, MultiProto: true,
	})

	f := &filterfe.Filter{
		Root: &filterfe.RegexExpr{
			Sets: []*filterfe.SetExpr{
				{Terms: []*filterfe.Term{{Proto: protos["ip"]}}, Inclusion: fsa.InclusionIn},
			},
		},
		Action: &filterfe.ActionExpr{Kind: filterfe.ActionExtractFields, Fields: []*symtab.Field{nextHdr}},
	}

	dfa, err := filterfe.Compile(f, g)
	require.NoError(t, err)
	require.NoError(t, filterfe.AssignExtractionPositions(dfa, st))

	require.NotNil(t, nextHdr.InstanceCounter)
	assert.Equal(t, 0, nextHdr.ExtractPositions[0])
}

// TestCompileRetainsPredicateThroughNFAtoDFA guards against the DFA
// transition losing a Term's Predicate during subset construction: the
// only transition out of the start state (on tcp) must still carry the
// dport==80 guard once Compile has driven it through buildRegex's
// [fsa.NFAtoDFA] (spec.md §8 scenario 3).
func TestCompileRetainsPredicateThroughNFAtoDFA(t *testing.T) {
	t.Parallel()

	st, g, protos := setupGraph(t)
	dport := st.StoreProtoField(protos["tcp"], &symtab.Field{Name: "dport", Kind: symtab.FieldFixed, FixedLen: 2})

	b := hir.NewBuilder()
	expr := b.CmpEq(b.FieldRef(dport), b.Const(80))
	pred := &filterfe.Predicate{Arena: b.Arena(), Expr: expr}

	f := &filterfe.Filter{
		Root: &filterfe.RegexExpr{
			Sets: []*filterfe.SetExpr{
				{Terms: []*filterfe.Term{{Proto: protos["tcp"], Predicate: pred}}, Inclusion: fsa.InclusionIn},
			},
		},
		Action: &filterfe.ActionExpr{Kind: filterfe.ActionReturnPacket},
	}

	dfa, err := filterfe.Compile(f, g)
	require.NoError(t, err)

	var found *filterfe.Predicate
	for _, tr := range dfa.Transitions(dfa.Start) {
		if tr.Label.To == protos["tcp"] {
			found = tr.Predicate
		}
	}
	require.NotNil(t, found, "tcp transition must exist out of the start state")
	require.True(t, found.Expr.Valid())
	assert.Equal(t, hir.OpCmpEq, found.Arena.Get(found.Expr).Op)
}

func countAccepting(dfa *filterfe.DFA) int {
	n := 0
	for _, sid := range dfa.States() {
		if dfa.State(sid).IsAccepting {
			n++
		}
	}
	return n
}
