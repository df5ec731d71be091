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

// Package errs implements the error taxonomy of the filter compiler: fatal
// internal errors, malformed-database (PDL) errors, malformed-filter (PFL)
// errors, and recoverable warnings, plus the [Recorder] that every pass
// reports into.
//
// The shape follows the teacher's errParse type (buf.build/go/hyperpb's
// error.go): a small struct carrying an error-code enum, an Unwrap back to
// a sentinel error, and a package-prefixed Error() string.
package errs

import "fmt"

// Kind classifies a [CompileError], per spec.md §7.
type Kind int

const (
	// Fatal is an internal invariant violation; it aborts the compile.
	Fatal Kind = iota
	// PDL is a malformed protocol-database error; the affected protocol is
	// pruned and compilation may still succeed with a warning.
	PDL
	// PFL is a malformed filter-expression error; CompileFilter returns
	// FAILURE.
	PFL
	// Warning is a recoverable degradation.
	Warning
)

// String implements [fmt.Stringer].
func (k Kind) String() string {
	switch k {
	case Fatal:
		return "fatal"
	case PDL:
		return "PDL error"
	case PFL:
		return "PFL error"
	case Warning:
		return "warning"
	default:
		return "unknown"
	}
}

// CompileError is an error produced anywhere in the compilation pipeline.
type CompileError struct {
	Kind Kind
	// Subject identifies what the error is about, e.g. a protocol or field
	// name; empty if not applicable.
	Subject string
	Msg     string
}

// Error implements [error].
func (e *CompileError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("netpfl: %v: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("netpfl: %v: %s: %s", e.Kind, e.Subject, e.Msg)
}

// New constructs a [CompileError].
func New(kind Kind, subject, format string, args ...any) *CompileError {
	return &CompileError{Kind: kind, Subject: subject, Msg: fmt.Sprintf(format, args...)}
}

// Fatalf constructs a [Fatal] error.
func Fatalf(subject, format string, args ...any) *CompileError {
	return New(Fatal, subject, format, args...)
}

// PDLf constructs a [PDL] error.
func PDLf(subject, format string, args ...any) *CompileError {
	return New(PDL, subject, format, args...)
}

// PFLf constructs a [PFL] error.
func PFLf(subject, format string, args ...any) *CompileError {
	return New(PFL, subject, format, args...)
}

// Warnf constructs a [Warning].
func Warnf(subject, format string, args ...any) *CompileError {
	return New(Warning, subject, format, args...)
}

// Recorder accumulates non-fatal diagnostics across compiler passes.
//
// Fatal errors are never recorded here: they propagate as a normal Go
// error return from the pass that discovered them (spec.md §7,
// "Fatal errors bypass the recorder").
type Recorder struct {
	diags []*CompileError
}

// Record appends a diagnostic. Recording a [Fatal] error is a programmer
// mistake; it panics, since fatal errors must be returned, not recorded.
func (r *Recorder) Record(e *CompileError) {
	if e.Kind == Fatal {
		panic("errs: fatal errors must be returned, not recorded")
	}
	r.diags = append(r.diags, e)
}

// Diagnostics returns every recorded diagnostic, in recording order.
func (r *Recorder) Diagnostics() []*CompileError {
	return r.diags
}

// HasErrors reports whether any PDL or PFL error (as opposed to a mere
// warning) has been recorded. spec.md §7: "no bytecode is emitted when the
// recorder holds any PFL/PDL errors."
func (r *Recorder) HasErrors() bool {
	for _, d := range r.diags {
		if d.Kind == PDL || d.Kind == PFL {
			return true
		}
	}
	return false
}

// Reset clears the recorder for reuse across a fresh CompilationUnit.
func (r *Recorder) Reset() {
	r.diags = r.diags[:0]
}
