// Package diag implements lily's diagnostics buffer and the non-local error
// used to unwind the lexer, parser, emitter, and vm on failure.
//
// The original C interpreter raises errors through a per-stage jump stack
// (setjmp/longjmp) that lands back in the embedder's entry point. This port
// follows the Design Notes' re-architecture guidance (spec.md §9) and models
// that as an ordinary Go error, returned explicitly by every stage. The
// embedder entry points (pkg/vm.Interp's ParseFile/ParseString/ParseSpecial)
// return it unchanged; cmd/lily's formatTraceback type-asserts it back to
// *diag.Error to format a traceback.
package diag

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Kind identifies the class of error raised, mirroring the exception
// hierarchy bootstrapped into every parser (spec.md §6).
type Kind int

const (
	// SyntaxError covers lexer and parser failures.
	SyntaxError Kind = iota
	ImportError
	EncodingError
	NoMemoryError
	DivisionByZeroError
	IndexError
	BadTypecastError
	NoReturnError
	ValueError
	RecursionError
	KeyError
	FormatError
)

// String renders the kind the way it appears in the bootstrapped exception
// hierarchy and in tracebacks (e.g. "DivisionByZeroError").
func (k Kind) String() string {
	switch k {
	case SyntaxError:
		return "SyntaxError"
	case ImportError:
		return "ImportError"
	case EncodingError:
		return "EncodingError"
	case NoMemoryError:
		return "NoMemoryError"
	case DivisionByZeroError:
		return "DivisionByZeroError"
	case IndexError:
		return "IndexError"
	case BadTypecastError:
		return "BadTypecastError"
	case NoReturnError:
		return "NoReturnError"
	case ValueError:
		return "ValueError"
	case RecursionError:
		return "RecursionError"
	case KeyError:
		return "KeyError"
	case FormatError:
		return "FormatError"
	default:
		return "Error"
	}
}

// Error is the non-local error raised by any stage of the pipeline. It
// satisfies the standard error interface so it can be threaded through
// ordinary Go control flow (no panic/recover), per spec.md §9's guidance.
type Error struct {
	Kind Kind
	// Msg is the fully-formatted diagnostic message (see Buffer below).
	Msg string
	// Line is the source line the raiser believes is responsible.
	Line int
	// LineAdjust overrides Line when non-zero: set by code that discovered
	// the problem after the lexer had already advanced past it (spec.md §7,
	// e.g. an ambiguous token inside `type[...]`).
	LineAdjust int
	// File names the source the error came from ("" for in-memory strings
	// unless the embedder supplied a name).
	File string
	// Cause, when non-nil, is an underlying error this diagnostic wraps
	// (e.g. an os.Open failure surfacing as ImportError). Wrap stores it
	// wrapped with github.com/pkg/errors; it is reachable through Unwrap,
	// while Error() (and so %+v on the *Error itself) leaves it out.
	Cause error
}

// EffectiveLine returns LineAdjust if it was set, else Line.
func (e *Error) EffectiveLine() int {
	if e.LineAdjust != 0 {
		return e.LineAdjust
	}
	return e.Line
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.File != "" {
		fmt.Fprintf(&b, " (%s:%d)", e.File, e.EffectiveLine())
	} else if e.EffectiveLine() != 0 {
		fmt.Fprintf(&b, " (line %d)", e.EffectiveLine())
	}
	return b.String()
}

// Unwrap exposes Cause to errors.Is/errors.As and github.com/pkg/errors.
func (e *Error) Unwrap() error { return e.Cause }

// New raises a diagnostic with a pre-formatted message.
func New(kind Kind, line int, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Line: line}
}

// Wrap raises a diagnostic that wraps an underlying Go error, using
// pkg/errors so the cause's stack trace survives for debug builds.
func Wrap(kind Kind, line int, cause error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Line: line, Cause: errors.Wrap(cause, msg)}
}

// Raise formats msg via a Buffer (so %T/%I/%E/%R directives are available)
// and returns the resulting *Error. This is the primary entry point used by
// the lexer, parser, emitter, and vm.
func Raise(kind Kind, line int, format string, args ...interface{}) *Error {
	var buf Buffer
	buf.Printf(format, args...)
	return &Error{Kind: kind, Msg: buf.String(), Line: line}
}

// Typed is implemented by anything that can pretty-print itself for the %T
// directive (pkg/symtab.Type implements this; kept here to avoid a import
// cycle between diag and symtab).
type Typed interface {
	DiagString() string
}

// Buffer is the growable, formatted message buffer from spec.md §4.1 (the
// "opaque growable string used for diagnostics", spec.md §1). It wraps
// strings.Builder and adds lily's printf directives:
//
//	%T  pretty-print a Typed value (a symtab type)
//	%I  indentation, argument is the indent depth (for debug listings)
//	%E  escape a string for display (quotes + escapes embedded control chars)
//	%R  errno-style code -> message (argument is an int)
type Buffer struct {
	b strings.Builder
}

// String returns the buffer's accumulated text.
func (buf *Buffer) String() string { return buf.b.String() }

// Reset empties the buffer for reuse, matching the C buffer's pooling.
func (buf *Buffer) Reset() { buf.b.Reset() }

// Printf formats format/args into the buffer, expanding lily's custom
// directives before delegating the rest to fmt.Fprintf.
func (buf *Buffer) Printf(format string, args ...interface{}) {
	var plainFormat strings.Builder
	plainArgs := make([]interface{}, 0, len(args))
	argi := 0
	next := func() interface{} {
		if argi < len(args) {
			v := args[argi]
			argi++
			return v
		}
		return nil
	}

	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 >= len(format) {
			plainFormat.WriteByte(c)
			continue
		}
		switch format[i+1] {
		case 'T':
			i++
			plainFormat.WriteString("%s")
			if t, ok := next().(Typed); ok && t != nil {
				plainArgs = append(plainArgs, t.DiagString())
			} else {
				plainArgs = append(plainArgs, "?")
			}
		case 'I':
			i++
			plainFormat.WriteString("%s")
			depth, _ := next().(int)
			plainArgs = append(plainArgs, strings.Repeat("    ", depth))
		case 'E':
			i++
			plainFormat.WriteString("%s")
			s, _ := next().(string)
			plainArgs = append(plainArgs, escapeForDisplay(s))
		case 'R':
			i++
			plainFormat.WriteString("%s")
			code, _ := next().(int)
			plainArgs = append(plainArgs, errnoMessage(code))
		default:
			plainFormat.WriteByte(c)
			plainFormat.WriteByte(format[i+1])
			i++
			plainArgs = append(plainArgs, next())
		}
	}

	fmt.Fprintf(&buf.b, plainFormat.String(), plainArgs...)
}

// escapeForDisplay renders s the way the language's `show` prints a string
// literal: quoted, with control characters escaped.
func escapeForDisplay(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// errnoMessage renders an errno-like integer code as a short message. Only
// a handful of codes are meaningful to the embedder (file I/O failures
// surfaced through ImportError); anything else renders as "errno N".
func errnoMessage(code int) string {
	switch code {
	case 2:
		return "no such file or directory"
	case 13:
		return "permission denied"
	case 21:
		return "is a directory"
	default:
		return "errno " + strconv.Itoa(code)
	}
}
