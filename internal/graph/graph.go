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

// Package graph implements the Encapsulation Graph (spec.md §4.2,
// component B): a directed graph of protocols, with an edge u -> v iff u's
// encapsulation section can select v.
//
// Reachability pruning and layer assignment are grounded on the teacher's
// internal/scc package (Tarjan's algorithm over a Graph[Node] function),
// adapted here from an SCC/DAG of arbitrary nodes to a protocol
// encapsulation graph: encapsulation can legitimately be cyclic (e.g.
// IP-in-IP tunnelling), which the teacher's acyclic message-descriptor
// graph never is, so layer assignment below handles cycles explicitly by
// collapsing every member of a non-trivial SCC to one depth: one more than
// the deepest node feeding the SCC from outside.
package graph

import (
	"iter"
	"slices"

	"github.com/netpfl/compiler/internal/debug"
	"github.com/netpfl/compiler/internal/scc"
	"github.com/netpfl/compiler/internal/symtab"
)

// Edge is a directed encapsulation relation between two protocols:
// from's encapsulation section can select to.
//
// Preferred marks an edge the protocol database declares as its preferred
// (default) follow, used to build the "preferred" graph variant
// (spec.md §3: "full... and preferred").
type Edge struct {
	From, To  *symtab.Proto
	Preferred bool
}

// Graph is the encapsulation graph (V, E) of spec.md §3.
type Graph struct {
	start *symtab.Proto
	nodes map[*symtab.Proto]struct{}
	out   map[*symtab.Proto][]Edge
	in    map[*symtab.Proto][]Edge
}

// New creates an empty graph rooted at start. start is the synthetic
// "startproto" node (spec.md GLOSSARY): the graph's only source.
func New(start *symtab.Proto) *Graph {
	g := &Graph{
		start: start,
		nodes: map[*symtab.Proto]struct{}{start: {}},
		out:   make(map[*symtab.Proto][]Edge),
		in:    make(map[*symtab.Proto][]Edge),
	}
	return g
}

// Start returns the graph's start node.
func (g *Graph) Start() *symtab.Proto { return g.start }

// AddEdge adds a (possibly preferred) edge from -> to, registering both
// endpoints as nodes if they are not already present.
func (g *Graph) AddEdge(from, to *symtab.Proto, preferred bool) {
	g.nodes[from] = struct{}{}
	g.nodes[to] = struct{}{}
	e := Edge{From: from, To: to, Preferred: preferred}
	g.out[from] = append(g.out[from], e)
	g.in[to] = append(g.in[to], e)
	debug.Log(nil, "graph.addedge", "%s -> %s (preferred=%v)", from.Name, to.Name, preferred)
}

// GetNode reports whether p is a node of this graph.
func (g *Graph) GetNode(p *symtab.Proto) bool {
	_, ok := g.nodes[p]
	return ok
}

// RemoveNode deletes p and every edge touching it.
func (g *Graph) RemoveNode(p *symtab.Proto) {
	delete(g.nodes, p)
	for _, e := range g.out[p] {
		g.in[e.To] = removeEdge(g.in[e.To], p, e.To)
	}
	for _, e := range g.in[p] {
		g.out[e.From] = removeEdge(g.out[e.From], e.From, p)
	}
	delete(g.out, p)
	delete(g.in, p)
}

func removeEdge(edges []Edge, from, to *symtab.Proto) []Edge {
	return slices.DeleteFunc(edges, func(e Edge) bool {
		return e.From == from && e.To == to
	})
}

// Nodes iterates over every node currently in the graph. Order is
// unspecified.
func (g *Graph) Nodes() iter.Seq[*symtab.Proto] {
	return func(yield func(*symtab.Proto) bool) {
		for p := range g.nodes {
			if !yield(p) {
				return
			}
		}
	}
}

// Out returns the full set of outgoing edges from p.
func (g *Graph) Out(p *symtab.Proto) []Edge { return g.out[p] }

// In returns the full set of incoming edges to p.
func (g *Graph) In(p *symtab.Proto) []Edge { return g.in[p] }

// Preferred returns only the edges out of p marked preferred — the
// "preferred" graph variant of spec.md §3.
func (g *Graph) Preferred(p *symtab.Proto) []Edge {
	var out []Edge
	for _, e := range g.out[p] {
		if e.Preferred {
			out = append(out, e)
		}
	}
	return out
}

// RemoveUnsupportedNodes drops every protocol whose before/verify sections
// reference constructs the database parser flagged as unsupported
// (tracked via symtab.Proto.Unsupported), returning true if anything was
// removed (spec.md §4.2).
func (g *Graph) RemoveUnsupportedNodes() bool {
	var removed bool
	for p := range g.Nodes() {
		if p.Unsupported {
			g.RemoveNode(p)
			removed = true
			debug.Log(nil, "graph.unsupported", "dropped %s", p.Name)
		}
	}
	return removed
}

// RemoveUnconnectedNodes drops every node not reachable from the start
// node, returning true if anything was removed (spec.md §4.2, and
// invariant 6: "after unreachable-node pruning, every remaining node lies
// on some path from the source").
func (g *Graph) RemoveUnconnectedNodes() bool {
	reachable := g.reachableFromStart()

	var toRemove []*symtab.Proto
	for p := range g.Nodes() {
		if _, ok := reachable[p]; !ok {
			toRemove = append(toRemove, p)
		}
	}
	for _, p := range toRemove {
		g.RemoveNode(p)
		debug.Log(nil, "graph.unconnected", "dropped %s", p.Name)
	}
	return len(toRemove) > 0
}

func (g *Graph) reachableFromStart() map[*symtab.Proto]struct{} {
	seen := map[*symtab.Proto]struct{}{g.start: {}}
	queue := []*symtab.Proto{g.start}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, e := range g.out[p] {
			if _, ok := seen[e.To]; !ok {
				seen[e.To] = struct{}{}
				queue = append(queue, e.To)
			}
		}
	}
	return seen
}

// AssignLayers assigns every node a longest-path-from-source depth >= 0
// (spec.md §4.2: "used later for diagnostics and for the tunneled
// keyword"). Because encapsulation may be cyclic (tunnelling), nodes
// within the same strongly-connected component all receive one more than
// the deepest node feeding that component from outside, walking
// [internal/scc]'s topological order over the SCC DAG.
func (g *Graph) AssignLayers() {
	// scc.Sort's Topological order places a node's *dependencies* (what
	// graph(node) yields) before the node itself, and only reaches nodes
	// reachable from the root. Fed the successor relation from the start
	// node, it emits every component after the components it can reach,
	// so walking that order in reverse processes the start node first and
	// every component after all of its reachable predecessors.
	successors := func(p *symtab.Proto) iter.Seq[*symtab.Proto] {
		return func(yield func(*symtab.Proto) bool) {
			for _, e := range g.out[p] {
				if !yield(e.To) {
					return
				}
			}
		}
	}

	dag := scc.Sort(g.start, successors)
	comps := slices.Collect(dag.Topological())

	depth := make(map[*symtab.Proto]int)
	depth[g.start] = 0

	for i := len(comps) - 1; i >= 0; i-- {
		comp := comps[i]
		// The depth of a component is one more than the maximum depth
		// among the nodes feeding any of its members from outside the
		// component; the start node is depth 0 regardless.
		compDepth := -1
		for _, m := range comp.Members() {
			for _, e := range g.in[m] {
				if d, ok := depth[e.From]; ok {
					compDepth = max(compDepth, d)
				}
			}
		}
		if compDepth < 0 {
			compDepth = 0 // The start node's own component.
		} else {
			compDepth++
		}

		for _, m := range comp.Members() {
			if m == g.start {
				depth[m] = 0
				continue
			}
			depth[m] = compDepth
		}
	}

	for p := range g.Nodes() {
		p.Layer = depth[p]
		debug.Log(nil, "graph.layer", "%s -> %d", p.Name, p.Layer)
	}
}
