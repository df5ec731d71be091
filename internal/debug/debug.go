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

// Package debug includes debugging helpers shared by every compiler pass.
//
// Every pass logs through here rather than reaching for fmt.Println
// directly, so that a single env var can turn diagnostics on for the whole
// pipeline without touching call sites.
package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
)

// Enabled reports whether debug logging is turned on for this process.
//
// It is read once from the NETPFL_DEBUG environment variable. Unlike the
// teacher's build-tag-gated constant, this is a runtime switch: the core
// compiler has no hot inner loop this would slow down, so there is no need
// to build two versions of the package.
var Enabled = os.Getenv("NETPFL_DEBUG") != ""

var (
	patternOnce sync.Once
	pattern     *regexp.Regexp
)

func filterPattern() *regexp.Regexp {
	patternOnce.Do(func() {
		if s := os.Getenv("NETPFL_DEBUG_FILTER"); s != "" {
			pattern = regexp.MustCompile(s)
		}
	})
	return pattern
}

// Log prints debugging information to stderr, when [Enabled] is true.
//
// context is optional args for fmt.Printf that are printed before
// operation; this lets a caller tag a group of related log lines (e.g. the
// address of the CompilationUnit doing the logging) so they can be told
// apart from concurrent, unrelated compiles.
func Log(context []any, operation, format string, args ...any) {
	if !Enabled {
		return
	}

	pkg, file, line := caller()

	buf := new(strings.Builder)
	fmt.Fprintf(buf, "%s/%s:%d", pkg, file, line)
	if len(context) >= 1 {
		fmt.Fprintf(buf, ", "+context[0].(string), context[1:]...)
	}
	fmt.Fprintf(buf, "] %s: ", operation)
	fmt.Fprintf(buf, format, args...)

	if p := filterPattern(); p != nil && !p.MatchString(buf.String()) {
		return
	}

	buf.WriteByte('\n')
	_, _ = os.Stderr.WriteString(buf.String())
}

func caller() (pkg, file string, line int) {
	pc, file, line, _ := runtime.Caller(2)
	fn := runtime.FuncForPC(pc)
	name := fn.Name()

	pkg = strings.TrimPrefix(name, "github.com/netpfl/compiler/")
	if idx := strings.Index(pkg, "."); idx >= 0 {
		pkg = pkg[:idx]
	}
	return pkg, filepath.Base(file), line
}

// Assert panics if cond is false, but only when [Enabled] is true.
//
// Invariant checks that are expensive to evaluate should be guarded this
// way rather than always running.
func Assert(cond bool, format string, args ...any) {
	if Enabled && !cond {
		panic(fmt.Errorf("netpfl: internal assertion failed: "+format, args...))
	}
}
