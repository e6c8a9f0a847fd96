package vm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// runAndCapture parses and runs src through a fresh Interp, returning
// everything written to the sink.
func runAndCapture(t *testing.T, src string) string {
	t.Helper()
	var out strings.Builder
	ip := New(nil, func(text string) { out.WriteString(text) })
	defer ip.Close()
	err := ip.ParseString("<test>", src, false)
	require.NoError(t, err)
	return out.String()
}

func TestShowArithmetic(t *testing.T) {
	out := runAndCapture(t, `var a = 1 + 2 * 3   show(a)`)
	require.Equal(t, "7\n", out)
}

func TestShowListIteration(t *testing.T) {
	out := runAndCapture(t, `var xs = [3,1,2]   for i in 0..2 { show(xs[i]) }`)
	require.Equal(t, "3\n1\n2\n", out)
}

func TestShowHashLookup(t *testing.T) {
	out := runAndCapture(t, `var h = ["a"=>1,"b"=>2]   show(h["a"] + h["b"])`)
	require.Equal(t, "3\n", out)
}

func TestShowFunctionCall(t *testing.T) {
	out := runAndCapture(t, `define f(x: integer) => integer { return x+1 }   show(f(41))`)
	require.Equal(t, "42\n", out)
}

func TestShowInheritedProperties(t *testing.T) {
	out := runAndCapture(t, `class A(@x: integer) { }
class B(@y: integer, x: integer) < A(x) { }
var b = B::new(1,2)
show(b.x + b.y)`)
	require.Equal(t, "3\n", out)
}

// TestClassReferenceSemantics verifies scenario 8's "classes have reference
// semantics": two vars bound to the same instance observe each other's
// mutations, unlike primitives.
func TestClassReferenceSemantics(t *testing.T) {
	out := runAndCapture(t, `class C(@x: integer) { }
var c1 = C::new(0)
var c2 = c1
c2.x = 5
show(c1.x)`)
	require.Equal(t, "5\n", out)
}

// TestGlobalsPersistAcrossParseCalls exercises the REPL-style persistence
// that ParseString/Run rely on: a var declared in one top-level program is
// still visible to a later one run against the same Interp.
func TestGlobalsPersistAcrossParseCalls(t *testing.T) {
	var out strings.Builder
	ip := New(nil, func(text string) { out.WriteString(text) })
	defer ip.Close()

	require.NoError(t, ip.ParseString("<1>", `var total = 10`, false))
	require.NoError(t, ip.ParseString("<2>", `show(total)`, false))
	require.Equal(t, "10\n", out.String())
}

// TestSysArgvSlotDoesNotCollideWithGlobals makes sure a user-declared
// top-level var never lands on sys::argv's reserved global slot.
func TestSysArgvSlotDoesNotCollideWithGlobals(t *testing.T) {
	out := runAndCapture(t, `var greeting = "hi"   show(greeting)   show(sys::argv)`)
	require.Equal(t, "hi\n[]\n", out)
}

func TestShowStringLiteralIsUnquotedAtTopLevel(t *testing.T) {
	out := runAndCapture(t, `show("hello")`)
	require.Equal(t, "hello\n", out)
}

func TestShowListLiteralRoundTrip(t *testing.T) {
	out := runAndCapture(t, `show([1,2,3])`)
	require.Equal(t, "[1, 2, 3]\n", out)
}

func TestListSizeMethod(t *testing.T) {
	out := runAndCapture(t, `var xs = [1,2,3,4]   show(xs.size())`)
	require.Equal(t, "4\n", out)
}

// TestEnumMatchScenario exercises scenario 4's end-to-end enum/match pairing:
// a variant built with its argument is matched back out and shown.
func TestEnumMatchScenario(t *testing.T) {
	out := runAndCapture(t, `enum class Opt[A] { Some(A), None }
var x = Some(5)
match x : { case Some(v) : { show(v) } case None : { show(0) } }`)
	require.Equal(t, "5\n", out)
}

// TestTryExceptDivisionByZeroScenario exercises scenario 6: a division by
// zero raises DivisionByZeroError, the except clause binds it, and its
// message property is observable on the sink.
func TestTryExceptDivisionByZeroScenario(t *testing.T) {
	out := runAndCapture(t, `try { show(1/0) } except DivisionByZeroError as e { show(e.message) }`)
	require.True(t, strings.HasSuffix(out, "\n"))
	require.NotContains(t, out, "1/0")
}

// TestReturnInConstructorIsSyntaxError guards the negative scenario "a
// return in a class constructor raises SyntaxError": a class body only
// admits method definitions, so a bare `return` placed directly in it (where
// an inline constructor body would go) is rejected before it ever reaches
// the emitter's isCurrentConstructor check.
func TestReturnInConstructorIsSyntaxError(t *testing.T) {
	var out strings.Builder
	ip := New(nil, func(text string) { out.WriteString(text) })
	defer ip.Close()
	err := ip.ParseString("<test>", `class C(@x: integer) { return }`, false)
	require.Error(t, err)
}
