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

// Package arena provides a handle-based bump allocator for tree and graph
// nodes that live for the lifetime of a single compilation unit.
//
// # Design
//
// The teacher's arena (buf.build/go/hyperpb/internal/arena) hands out raw
// unsafe pointers into a byte buffer, because its values are eventually read
// back by a separate process's worth of zero-copy accessors. Our HIR and MIR
// trees have no such requirement: nothing outside the compiler ever touches
// them, and the CFG reassociation pass in the optimiser explicitly clones
// and re-parents subtrees (see internal/optimize). Cloning and re-parenting raw
// pointers is exactly the kind of aliasing bug an arena of *pointers* invites
// and an arena of *handles* (plain integers into a slice) sidesteps: a handle
// can be copied, stored in a map, or compared for equality without any of
// the GC or lifetime hazards of unsafe.Pointer arithmetic.
//
// A [Handle] is valid only for the [Arena] that produced it. Dereferencing a
// handle produced by a different arena, or one produced by an arena that was
// [Arena.Reset], is a programmer error; [Arena.Get] panics on an
// out-of-range handle only when NETPFL_DEBUG assertions are enabled.
package arena

import "github.com/netpfl/compiler/internal/debug"

// Handle is an opaque reference to a value stored in an [Arena].
//
// The zero Handle is never issued by [Arena.New]; it is reserved to mean
// "no node" (e.g. a nil child in a HIR/MIR tree).
type Handle[T any] struct {
	index int
}

// Valid reports whether h refers to an allocated slot.
func (h Handle[T]) Valid() bool { return h.index > 0 }

// Arena is a bump allocator that owns every node of a given type for one
// compilation unit. A zero Arena is ready to use.
type Arena[T any] struct {
	slots []T // slots[0] is never used, so that Handle{} can mean "none".
}

// New allocates a new value and returns a handle to it.
func New[T any](a *Arena[T], v T) Handle[T] {
	if len(a.slots) == 0 {
		var zero T
		a.slots = append(a.slots, zero)
	}
	a.slots = append(a.slots, v)
	h := Handle[T]{index: len(a.slots) - 1}
	debug.Log(nil, "arena.new", "%T#%d", v, h.index)
	return h
}

// Get dereferences a handle into a pointer to its storage.
//
// The pointer is invalidated by any subsequent call to [New] on the same
// arena, exactly like append invalidates slice aliases: callers that need
// to hold on to a node across further allocations should copy it out.
func (a *Arena[T]) Get(h Handle[T]) *T {
	debug.Assert(h.index > 0 && h.index < len(a.slots), "invalid handle %d (len=%d)", h.index, len(a.slots))
	return &a.slots[h.index]
}

// Len returns the number of values allocated so far.
func (a *Arena[T]) Len() int {
	return max(0, len(a.slots)-1)
}

// Reset discards every allocation, allowing the underlying storage to be
// reused by a fresh compilation unit.
//
// Handles issued before Reset must never be dereferenced afterwards.
func (a *Arena[T]) Reset() {
	a.slots = a.slots[:0]
}

// All iterates over every live handle in allocation order.
func (a *Arena[T]) All(yield func(Handle[T], *T) bool) {
	for i := 1; i < len(a.slots); i++ {
		if !yield(Handle[T]{index: i}, &a.slots[i]) {
			return
		}
	}
}
