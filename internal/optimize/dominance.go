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

package optimize

import "github.com/netpfl/compiler/internal/cfgbuild"

// DomTree is the dominator tree and dominance frontier of one CFG
// (spec.md §4.7 step 2), computed with the Cooper/Harvey/Kennedy
// iterative algorithm rather than Lengauer-Tarjan: the CFGs this
// compiler builds are small (one per compiled filter), so the simpler
// quadratic-worst-case algorithm is the right tradeoff.
type DomTree struct {
	// IDom[b] is b's immediate dominator block index. IDom[Entry] is -1.
	IDom []int
	// Children[b] lists the dominator-tree children of b.
	Children [][]int
	// Frontier[b] lists the blocks in b's dominance frontier.
	Frontier [][]int

	postIndex []int
}

// ComputeDominance builds the dominator tree of cfg.
func ComputeDominance(cfg *cfgbuild.CFG) *DomTree {
	n := len(cfg.Blocks)
	dt := &DomTree{
		IDom:      make([]int, n),
		Children:  make([][]int, n),
		Frontier:  make([][]int, n),
		postIndex: make([]int, n),
	}
	if n == 0 {
		return dt
	}
	for i := range dt.IDom {
		dt.IDom[i] = -1
	}

	order := postorder(cfg)
	for i, b := range order {
		dt.postIndex[b] = i
	}

	// Reverse postorder, excluding the entry, for the fixed-point sweep.
	rpo := make([]int, len(order))
	for i, b := range order {
		rpo[len(order)-1-i] = b
	}

	dt.IDom[cfg.Entry] = cfg.Entry
	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == cfg.Entry {
				continue
			}
			newIdom := -1
			for _, p := range cfg.Blocks[b].Preds {
				if dt.IDom[p] == -1 {
					continue
				}
				if newIdom == -1 {
					newIdom = p
					continue
				}
				newIdom = dt.intersect(newIdom, p)
			}
			if newIdom != -1 && dt.IDom[b] != newIdom {
				dt.IDom[b] = newIdom
				changed = true
			}
		}
	}
	dt.IDom[cfg.Entry] = -1

	for b := range cfg.Blocks {
		if b == cfg.Entry {
			continue
		}
		p := dt.IDom[b]
		if p >= 0 {
			dt.Children[p] = append(dt.Children[p], b)
		}
	}

	for _, b := range cfg.Blocks {
		if len(b.Preds) < 2 {
			continue
		}
		for _, p := range b.Preds {
			runner := p
			for runner != dt.IDom[b.ID] && runner != -1 {
				if !containsInt(dt.Frontier[runner], b.ID) {
					dt.Frontier[runner] = append(dt.Frontier[runner], b.ID)
				}
				runner = dt.IDom[runner]
			}
		}
	}

	return dt
}

// intersect finds the nearest common dominator of a and b (Cooper/Harvey/
// Kennedy's "intersect").
func (dt *DomTree) intersect(a, b int) int {
	for a != b {
		for dt.postIndex[a] < dt.postIndex[b] {
			a = dt.IDom[a]
		}
		for dt.postIndex[b] < dt.postIndex[a] {
			b = dt.IDom[b]
		}
	}
	return a
}

// postorder returns a postorder DFS traversal of cfg's reachable blocks
// from its entry, over Succs.
func postorder(cfg *cfgbuild.CFG) []int {
	visited := make([]bool, len(cfg.Blocks))
	var order []int
	var visit func(int)
	visit = func(b int) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, e := range cfg.Blocks[b].Succs {
			if e.Block >= 0 {
				visit(e.Block)
			}
		}
		order = append(order, b)
	}
	visit(cfg.Entry)
	// Unreachable blocks (spec.md §4.6: "Unreachable blocks ... are
	// kept") still need a defined position so later passes can address
	// them; append them after the reachable set in arbitrary order, each
	// dominated only by itself.
	for b := range cfg.Blocks {
		if !visited[b] {
			visited[b] = true
			order = append(order, b)
		}
	}
	return order
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
