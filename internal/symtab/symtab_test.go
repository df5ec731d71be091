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

package symtab_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netpfl/compiler/internal/symtab"
)

func TestAddProtoDuplicateIDIsFatal(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	_, err := st.AddProto(1, "ip")
	require.NoError(t, err)

	_, err = st.AddProto(1, "ip2")
	require.Error(t, err)
}

func TestProtoByNameMissingReturnsNil(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	assert.Nil(t, st.ProtoByName("arp"))
}

func TestStoreProtoFieldDedup(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	ip, err := st.AddProto(1, "ip")
	require.NoError(t, err)

	ttl1 := &symtab.Field{Name: "ttl", Kind: symtab.FieldFixed, FixedLen: 1, UsedAsInt: true}
	canon := st.StoreProtoField(ip, ttl1)
	assert.Same(t, ttl1, canon)
	assert.Equal(t, 0, canon.Index)

	ttl2 := &symtab.Field{Name: "ttl", Kind: symtab.FieldFixed, FixedLen: 1, UsedAsString: true}
	canon2 := st.StoreProtoField(ip, ttl2)
	assert.Same(t, canon, canon2, "identical field definitions must unify to one symbol")
	assert.True(t, canon2.UsedAsInt, "usage flags must propagate")
	assert.True(t, canon2.UsedAsString)

	ttlBad := &symtab.Field{Name: "ttl", Kind: symtab.FieldFixed, FixedLen: 2}
	canon3 := st.StoreProtoField(ip, ttlBad)
	assert.Same(t, canon, canon3)
	require.Len(t, canon3.SymbolDefs, 1, "a conflicting redefinition must be appended as an alternate")
	assert.Equal(t, 2, canon3.SymbolDefs[0].FixedLen)

	assert.Len(t, ip.Fields, 1, "only one canonical Field should be inserted for one name")
}

func TestNewTempMonotonic(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	a := st.NewTemp()
	b := st.NewTemp()
	assert.NotEqual(t, a, b)

	st.ResetCounters()
	c := st.NewTemp()
	assert.Equal(t, a, c)
}

func TestLookupTableHiddenSlotsOnlyForDynamic(t *testing.T) {
	t.Parallel()

	st := symtab.New()
	static, err := st.AddLookupTable("static-t", symtab.ValidityStatic,
		[]symtab.Slot{{Name: "k", Type: symtab.SlotInt, Size: 4}},
		[]symtab.Slot{{Name: "v", Type: symtab.SlotInt, Size: 4}},
	)
	require.NoError(t, err)
	assert.Len(t, static.Values, 1)

	dyn, err := st.AddLookupTable("dyn-t", symtab.ValidityDynamic,
		[]symtab.Slot{{Name: "k", Type: symtab.SlotInt, Size: 4}},
		[]symtab.Slot{{Name: "v", Type: symtab.SlotInt, Size: 4}},
	)
	require.NoError(t, err)
	assert.Len(t, dyn.Values, 4, "dynamic tables get 3 hidden slots appended")
}
