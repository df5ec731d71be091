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

package filterlang_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netpfl/compiler/internal/filterfe"
	"github.com/netpfl/compiler/internal/filterlang"
	"github.com/netpfl/compiler/internal/fsa"
	"github.com/netpfl/compiler/internal/hir"
	"github.com/netpfl/compiler/internal/symtab"
)

func setupTable(t *testing.T) *symtab.Table {
	t.Helper()
	st := symtab.New()
	ip, err := st.AddProto(0, "ip")
	require.NoError(t, err)
	st.StoreProtoField(ip, &symtab.Field{Name: "proto", Kind: symtab.FieldFixed, FixedLen: 1})

	tcp, err := st.AddProto(1, "tcp")
	require.NoError(t, err)
	st.StoreProtoField(tcp, &symtab.Field{Name: "dport", Kind: symtab.FieldFixed, FixedLen: 2})

	_, err = st.AddProto(2, "udp")
	require.NoError(t, err)
	return st
}

func TestParseSingleProtocolTerm(t *testing.T) {
	t.Parallel()
	st := setupTable(t)

	f, err := filterlang.Parse("ip", st)
	require.NoError(t, err)

	re, ok := f.Root.(*filterfe.RegexExpr)
	require.True(t, ok)
	require.Len(t, re.Sets, 1)
	require.Len(t, re.Sets[0].Terms, 1)
	assert.Equal(t, "ip", re.Sets[0].Terms[0].Proto.Name)
	assert.Equal(t, filterfe.ActionReturnPacket, f.Action.Kind)
}

func TestParseSequenceOfProtocols(t *testing.T) {
	t.Parallel()
	st := setupTable(t)

	f, err := filterlang.Parse("ip/tcp", st)
	require.NoError(t, err)

	re := f.Root.(*filterfe.RegexExpr)
	require.Len(t, re.Sets, 2)
	assert.Equal(t, "ip", re.Sets[0].Terms[0].Proto.Name)
	assert.Equal(t, "tcp", re.Sets[1].Terms[0].Proto.Name)
}

func TestParseBooleanCombinators(t *testing.T) {
	t.Parallel()
	st := setupTable(t)

	f, err := filterlang.Parse("ip and not udp", st)
	require.NoError(t, err)

	and, ok := f.Root.(*filterfe.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, filterfe.OpAnd, and.Op)
	_, ok = and.Right.(*filterfe.UnaryExpr)
	assert.True(t, ok)
}

func TestParseProtocolSetWithRepeatAndExclusion(t *testing.T) {
	t.Parallel()
	st := setupTable(t)

	f, err := filterlang.Parse("!(tcp,udp)+", st)
	require.NoError(t, err)

	re := f.Root.(*filterfe.RegexExpr)
	set := re.Sets[0]
	assert.Equal(t, fsa.InclusionNotIn, set.Inclusion)
	assert.Equal(t, fsa.RepeatPlus, set.Repeat)
	require.Len(t, set.Terms, 2)
}

func TestParseTermPredicate(t *testing.T) {
	t.Parallel()
	st := setupTable(t)

	f, err := filterlang.Parse("tcp(dport==80)", st)
	require.NoError(t, err)

	re := f.Root.(*filterfe.RegexExpr)
	term := re.Sets[0].Terms[0]
	require.NotNil(t, term.Predicate)
	node := term.Predicate.Arena.Get(term.Predicate.Expr)
	assert.Equal(t, hir.OpCmpEq, node.Op)
}

func TestParseExtractAction(t *testing.T) {
	t.Parallel()
	st := setupTable(t)

	f, err := filterlang.Parse("ip -> extract(ip.proto)", st)
	require.NoError(t, err)
	require.Equal(t, filterfe.ActionExtractFields, f.Action.Kind)
	require.Len(t, f.Action.Fields, 1)
	assert.Equal(t, "proto", f.Action.Fields[0].Name)
}

func TestParseUnknownProtocolReturnsPFLError(t *testing.T) {
	t.Parallel()
	st := setupTable(t)

	_, err := filterlang.Parse("quic", st)
	require.Error(t, err)
}

func TestParseRejectsTrailingGarbage(t *testing.T) {
	t.Parallel()
	st := setupTable(t)

	_, err := filterlang.Parse("ip )", st)
	require.Error(t, err)
}
