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

package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netpfl/compiler/internal/graph"
	"github.com/netpfl/compiler/internal/symtab"
)

func newProtos(t *testing.T, names ...string) (*symtab.Table, map[string]*symtab.Proto) {
	t.Helper()
	st := symtab.New()
	out := make(map[string]*symtab.Proto, len(names))
	for i, n := range names {
		p, err := st.AddProto(i, n)
		require.NoError(t, err)
		out[n] = p
	}
	return st, out
}

func TestRemoveUnsupportedNodes(t *testing.T) {
	t.Parallel()

	_, p := newProtos(t, "start", "ip", "bad")
	g := graph.New(p["start"])
	g.AddEdge(p["start"], p["ip"], true)
	g.AddEdge(p["ip"], p["bad"], true)
	p["bad"].Unsupported = true

	removed := g.RemoveUnsupportedNodes()
	assert.True(t, removed)
	assert.False(t, g.GetNode(p["bad"]))
	assert.True(t, g.GetNode(p["ip"]))
}

func TestRemoveUnconnectedNodes(t *testing.T) {
	t.Parallel()

	_, p := newProtos(t, "start", "ip", "orphan")
	g := graph.New(p["start"])
	g.AddEdge(p["start"], p["ip"], true)
	// orphan is registered as a node (via a self-edge trick) but never
	// reachable from start.
	g.AddEdge(p["orphan"], p["orphan"], false)

	removed := g.RemoveUnconnectedNodes()
	assert.True(t, removed)
	assert.False(t, g.GetNode(p["orphan"]))
	assert.True(t, g.GetNode(p["ip"]))
	assert.True(t, g.GetNode(p["start"]))
}

func TestRemoveUnconnectedNodesNoopWhenAllReachable(t *testing.T) {
	t.Parallel()

	_, p := newProtos(t, "start", "ip")
	g := graph.New(p["start"])
	g.AddEdge(p["start"], p["ip"], true)

	assert.False(t, g.RemoveUnconnectedNodes())
}

func TestAssignLayersLinearChain(t *testing.T) {
	t.Parallel()

	_, p := newProtos(t, "start", "eth", "ip", "tcp")
	g := graph.New(p["start"])
	g.AddEdge(p["start"], p["eth"], true)
	g.AddEdge(p["eth"], p["ip"], true)
	g.AddEdge(p["ip"], p["tcp"], true)

	g.AssignLayers()

	assert.Equal(t, 0, p["start"].Layer)
	assert.Equal(t, 1, p["eth"].Layer)
	assert.Equal(t, 2, p["ip"].Layer)
	assert.Equal(t, 3, p["tcp"].Layer)
}

func TestAssignLayersDiamond(t *testing.T) {
	t.Parallel()

	// start -> a -> c, start -> b -> c: c must be depth 2 regardless of
	// which parent is visited first.
	_, p := newProtos(t, "start", "a", "b", "c")
	g := graph.New(p["start"])
	g.AddEdge(p["start"], p["a"], true)
	g.AddEdge(p["start"], p["b"], false)
	g.AddEdge(p["a"], p["c"], true)
	g.AddEdge(p["b"], p["c"], false)

	g.AssignLayers()

	assert.Equal(t, 0, p["start"].Layer)
	assert.Equal(t, 1, p["a"].Layer)
	assert.Equal(t, 1, p["b"].Layer)
	assert.Equal(t, 2, p["c"].Layer)
}

func TestAssignLayersTunnelledCycle(t *testing.T) {
	t.Parallel()

	// start -> ip -> gre -> ip (tunnelling back into ip): ip and gre form
	// a cycle and must both collapse to the same depth.
	_, p := newProtos(t, "start", "ip", "gre")
	g := graph.New(p["start"])
	g.AddEdge(p["start"], p["ip"], true)
	g.AddEdge(p["ip"], p["gre"], true)
	g.AddEdge(p["gre"], p["ip"], true)

	g.AssignLayers()

	assert.Equal(t, 0, p["start"].Layer)
	assert.Equal(t, p["ip"].Layer, p["gre"].Layer)
	assert.Equal(t, 1, p["ip"].Layer)
}

func TestPreferredEdgesOnly(t *testing.T) {
	t.Parallel()

	_, p := newProtos(t, "start", "ip", "ipv6")
	g := graph.New(p["start"])
	g.AddEdge(p["start"], p["ip"], true)
	g.AddEdge(p["start"], p["ipv6"], false)

	pref := g.Preferred(p["start"])
	require.Len(t, pref, 1)
	assert.Equal(t, p["ip"], pref[0].To)
}

func TestRemoveNodeDropsDanglingEdges(t *testing.T) {
	t.Parallel()

	_, p := newProtos(t, "start", "ip", "tcp")
	g := graph.New(p["start"])
	g.AddEdge(p["start"], p["ip"], true)
	g.AddEdge(p["ip"], p["tcp"], true)

	g.RemoveNode(p["ip"])

	assert.Empty(t, g.Out(p["start"]))
	assert.Empty(t, g.In(p["tcp"]))
}
