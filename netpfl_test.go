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

package netpfl_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netpfl/compiler/internal/graph"
	"github.com/netpfl/compiler/internal/symtab"

	netpfl "github.com/netpfl/compiler"
)

// setupDatabase builds the same small start/ip/tcp/udp graph used across
// internal/filterfe and internal/filterlang's own fixtures (spec.md §5
// "Shared state"), with one predicate-testable field on tcp.
func setupDatabase(t *testing.T) *netpfl.Database {
	t.Helper()
	st := symtab.New()
	names := []string{"start", "ip", "tcp", "udp"}
	protos := make(map[string]*symtab.Proto, len(names))
	for i, n := range names {
		p, err := st.AddProto(i, n)
		require.NoError(t, err)
		protos[n] = p
	}
	st.StoreProtoField(protos["tcp"], &symtab.Field{Name: "dport", Kind: symtab.FieldFixed, FixedLen: 2})

	g := graph.New(protos["start"])
	g.AddEdge(protos["start"], protos["ip"], true)
	g.AddEdge(protos["ip"], protos["tcp"], true)
	g.AddEdge(protos["ip"], protos["udp"], false)

	return netpfl.NewDatabase(st, g)
}

func TestCompileFilterSucceedsAndEmitsBytecode(t *testing.T) {
	t.Parallel()

	db := setupDatabase(t)
	u := netpfl.NewCompilationUnit(db, netpfl.Options{Optimize: true})

	status := u.CompileFilter("ip/tcp(dport==80)", true)
	require.Equal(t, netpfl.SUCCESS, status, "diagnostics: %v, fatal: %v", u.Diagnostics(), u.LastError())

	out := u.GetNetILFilter()
	assert.Contains(t, out, "JUMP")
	assert.Contains(t, out, "filter_true")
	// dport==80 must survive NFAtoDFA onto the tcp transition's guard, not
	// just the proto sequence: look for a field compare against 80.
	assert.Regexp(t, `(JFLD|CMP)\w*.*\b80\b`, out)
	// A successful compile with no warnings records nothing.
	assert.Empty(t, u.Diagnostics())
}

func TestCompileFilterFailsOnUnknownProtocol(t *testing.T) {
	t.Parallel()

	db := setupDatabase(t)
	u := netpfl.NewCompilationUnit(db, netpfl.Options{})

	status := u.CompileFilter("gre/tcp", true)
	assert.Equal(t, netpfl.FAILURE, status)
	assert.Nil(t, u.LastError(), "a PFL parse error is a diagnostic, not a fatal error")
	require.NotEmpty(t, u.Diagnostics())
	assert.Contains(t, u.Diagnostics()[0].Error(), "unknown protocol")
}

func TestCheckFilterValidatesWithoutCompiling(t *testing.T) {
	t.Parallel()

	db := setupDatabase(t)
	u := netpfl.NewCompilationUnit(db, netpfl.Options{})

	assert.True(t, u.CheckFilter("ip/tcp"))
	assert.False(t, u.CheckFilter("ip/gre"))
	assert.Empty(t, u.GetNetILFilter(), "CheckFilter never drives CompileFilter's pipeline")
}

func TestCreateAutomatonFromFilterBuildsDFAWithoutLowering(t *testing.T) {
	t.Parallel()

	db := setupDatabase(t)
	u := netpfl.NewCompilationUnit(db, netpfl.Options{})

	dfa, err := u.CreateAutomatonFromFilter("ip/tcp")
	require.NoError(t, err)
	require.NotNil(t, dfa)
	assert.NotEmpty(t, dfa.States())
}

func TestDumpFilterAndDumpCFG(t *testing.T) {
	t.Parallel()

	db := setupDatabase(t)
	u := netpfl.NewCompilationUnit(db, netpfl.Options{Optimize: true})
	require.Equal(t, netpfl.SUCCESS, u.CompileFilter("ip/tcp", true))

	var automatonBuf strings.Builder
	require.NoError(t, u.DumpFilter(&automatonBuf, false))
	assert.Contains(t, automatonBuf.String(), "state 0")

	var netILBuf strings.Builder
	require.NoError(t, u.DumpFilter(&netILBuf, true))
	assert.Equal(t, u.GetNetILFilter(), netILBuf.String())

	var graphBuf strings.Builder
	require.NoError(t, u.DumpCFG(&graphBuf, true, false))
	assert.Contains(t, graphBuf.String(), "block 0")

	var cfgBuf strings.Builder
	require.NoError(t, u.DumpCFG(&cfgBuf, false, true))
	assert.Contains(t, cfgBuf.String(), "JUMP")
}

func TestDumpCFGBeforeCompileFilterErrors(t *testing.T) {
	t.Parallel()

	db := setupDatabase(t)
	u := netpfl.NewCompilationUnit(db, netpfl.Options{})

	var buf strings.Builder
	err := u.DumpCFG(&buf, true, false)
	assert.Error(t, err)
}

func TestPrintFinalAutomatonWritesToFile(t *testing.T) {
	t.Parallel()

	db := setupDatabase(t)
	u := netpfl.NewCompilationUnit(db, netpfl.Options{})
	require.Equal(t, netpfl.SUCCESS, u.CompileFilter("ip/tcp", false))

	path := t.TempDir() + "/automaton.txt"
	require.NoError(t, u.PrintFinalAutomaton(path))
}
