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

package fsa_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netpfl/compiler/internal/fsa"
	"github.com/netpfl/compiler/internal/symtab"
)

type noPredicate struct{}

func newAlphabet(t *testing.T) (*symtab.Table, []*symtab.Proto) {
	t.Helper()
	st := symtab.New()
	names := []string{"eth", "ip", "tcp", "udp"}
	out := make([]*symtab.Proto, len(names))
	for i, n := range names {
		p, err := st.AddProto(i, n)
		require.NoError(t, err)
		out[i] = p
	}
	return st, out
}

func byName(alphabet []*symtab.Proto, name string) *symtab.Proto {
	for _, p := range alphabet {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// buildChain builds eth -> ip -> (tcp|udp), a sequence with no repeat
// operators, as an NFA and runs it through NFAtoDFA.
func buildChain(t *testing.T, alphabet []*symtab.Proto) *fsa.FSA[noPredicate] {
	t.Helper()
	elems := []fsa.SetElement[noPredicate]{
		{Protos: []*symtab.Proto{byName(alphabet, "eth")}, Inclusion: fsa.InclusionIn},
		{Protos: []*symtab.Proto{byName(alphabet, "ip")}, Inclusion: fsa.InclusionIn},
		{Protos: []*symtab.Proto{byName(alphabet, "tcp"), byName(alphabet, "udp")}, Inclusion: fsa.InclusionIn},
	}
	nfa := fsa.BuildRegExpFSA(alphabet, elems)
	return fsa.NFAtoDFA(nfa, nil)
}

func TestBuildRegExpFSAAndNFAtoDFAChain(t *testing.T) {
	t.Parallel()

	_, alphabet := newAlphabet(t)
	dfa := buildChain(t, alphabet)

	// start --eth--> s1 --ip--> s2 --tcp--> s_tcp(final)
	//                              \--udp--> s_udp(final)
	firstHop := dfa.Transitions(dfa.Start)
	require.Len(t, firstHop, 1)
	assert.Equal(t, byName(alphabet, "eth"), firstHop[0].Label.To)

	secondState := firstHop[0].To
	secondHop := dfa.Transitions(secondState)
	require.Len(t, secondHop, 1)
	assert.Equal(t, byName(alphabet, "ip"), secondHop[0].Label.To)

	thirdState := secondHop[0].To
	thirdHop := dfa.Transitions(thirdState)
	require.Len(t, thirdHop, 2)

	for _, t2 := range thirdHop {
		final := dfa.State(t2.To)
		assert.True(t, final.IsFinal)
		assert.True(t, final.IsAccepting)
	}
}

func TestBuildRegExpFSAStarAllowsZeroOccurrences(t *testing.T) {
	t.Parallel()

	_, alphabet := newAlphabet(t)
	elems := []fsa.SetElement[noPredicate]{
		{Protos: []*symtab.Proto{byName(alphabet, "ip")}, Inclusion: fsa.InclusionIn, Repeat: fsa.RepeatStar},
	}
	nfa := fsa.BuildRegExpFSA(alphabet, elems)
	dfa := fsa.NFAtoDFA(nfa, nil)

	// The start state itself must already be final (zero occurrences).
	assert.True(t, dfa.State(dfa.Start).IsFinal)
}

func TestBooleanAndIntersectsChains(t *testing.T) {
	t.Parallel()

	_, alphabet := newAlphabet(t)
	tcpOnly := fsa.NFAtoDFA(fsa.BuildRegExpFSA(alphabet, []fsa.SetElement[noPredicate]{
		{AnyPlaceholder: true, Repeat: fsa.RepeatStar},
		{Protos: []*symtab.Proto{byName(alphabet, "tcp")}, Inclusion: fsa.InclusionIn},
	}), nil)
	udpOnly := fsa.NFAtoDFA(fsa.BuildRegExpFSA(alphabet, []fsa.SetElement[noPredicate]{
		{AnyPlaceholder: true, Repeat: fsa.RepeatStar},
		{Protos: []*symtab.Proto{byName(alphabet, "udp")}, Inclusion: fsa.InclusionIn},
	}), nil)

	both := fsa.BooleanAND(tcpOnly, udpOnly, nil)
	// No path can both end in tcp and end in udp: no reachable state
	// should be both final (trivially true since AND over disjoint
	// accept conditions collapses to no accepting path from start that
	// satisfies both open-ended chains simultaneously at the same state).
	anyFinal := false
	for _, sid := range both.States() {
		if both.State(sid).IsFinal {
			anyFinal = true
		}
	}
	assert.False(t, anyFinal)
}

func TestBooleanNotFlipsAcceptance(t *testing.T) {
	t.Parallel()

	_, alphabet := newAlphabet(t)
	dfa := buildChain(t, alphabet)
	not := fsa.BooleanNot(dfa)

	assert.Equal(t, !dfa.State(dfa.Start).IsFinal, not.State(not.Start).IsFinal)
}

func TestReduceAutomatonAddsFailSinkForUncoveredProtos(t *testing.T) {
	t.Parallel()

	_, alphabet := newAlphabet(t)
	dfa := buildChain(t, alphabet)
	reduced := fsa.ReduceAutomaton(dfa, alphabet)

	// The start state only covers "eth"; the other three protocols must
	// now point somewhere (the fail sink).
	covered := 0
	for _, t2 := range reduced.Transitions(reduced.Start) {
		covered++
		_ = t2
	}
	assert.Equal(t, len(alphabet), covered)
}

func TestWalkVisitsRangeThenLeaf(t *testing.T) {
	t.Parallel()

	var visited []string
	final := fsa.StateID(7)
	leaf := &fsa.ETNode{Leaf: &final}
	root := &fsa.ETNode{
		ID:   1,
		Kind: fsa.ETHeaderCounter,
		Range: []fsa.ETRangeArm{
			{Op: fsa.ETRangeEq, Value: 2, Child: leaf},
		},
	}

	v := &recordingVisitor{record: &visited}
	fsa.Walk(root, v)

	assert.Equal(t, []string{"newlabel", "range", "leaf"}, visited)
}

type recordingVisitor struct {
	record *[]string
}

func (r *recordingVisitor) NewLabel(int, *symtab.Field, fsa.ETKind) { *r.record = append(*r.record, "newlabel") }
func (r *recordingVisitor) Range([]fsa.ETRangeArm)                  { *r.record = append(*r.record, "range") }
func (r *recordingVisitor) Punct(map[int64]*fsa.ETNode)             { *r.record = append(*r.record, "punct") }
func (r *recordingVisitor) Jump(*fsa.ETNode)                        { *r.record = append(*r.record, "jump") }
func (r *recordingVisitor) Special(fsa.ETSpecialOp, string)         { *r.record = append(*r.record, "special") }
func (r *recordingVisitor) Leaf(fsa.StateID)                        { *r.record = append(*r.record, "leaf") }
