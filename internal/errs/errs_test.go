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

package errs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/netpfl/compiler/internal/errs"
)

func TestRecorderHasErrors(t *testing.T) {
	t.Parallel()

	var r errs.Recorder
	assert.False(t, r.HasErrors())

	r.Record(errs.Warnf("ip.ttl", "used as integer but not declared int-compatible"))
	assert.False(t, r.HasErrors())

	r.Record(errs.PFLf("arp", "extraction after allfields"))
	assert.True(t, r.HasErrors())
	assert.Len(t, r.Diagnostics(), 2)
}

func TestRecordFatalPanics(t *testing.T) {
	t.Parallel()

	var r errs.Recorder
	assert.Panics(t, func() {
		r.Record(errs.Fatalf("", "missing start protocol"))
	})
}

func TestErrorString(t *testing.T) {
	t.Parallel()

	e := errs.PDLf("gre", "unresolved protocol reference %q", "ipv7")
	assert.Contains(t, e.Error(), "PDL error")
	assert.Contains(t, e.Error(), "gre")
	assert.Contains(t, e.Error(), "ipv7")
}
