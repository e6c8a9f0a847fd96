package diag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeType struct{ name string }

func (f fakeType) DiagString() string { return "type " + f.name }

func TestKindString(t *testing.T) {
	require.Equal(t, "SyntaxError", SyntaxError.String())
	require.Equal(t, "BadTypecastError", BadTypecastError.String())
	require.Equal(t, "DivisionByZeroError", DivisionByZeroError.String())
	require.Equal(t, "Error", Kind(999).String())
}

func TestErrorMessageWithFile(t *testing.T) {
	e := New(ValueError, 12, "bad value")
	e.File = "main.lly"
	require.Equal(t, "ValueError: bad value (main.lly:12)", e.Error())
}

func TestErrorMessageWithoutFile(t *testing.T) {
	e := New(IndexError, 4, "out of range")
	require.Equal(t, "IndexError: out of range (line 4)", e.Error())
}

func TestErrorMessageNoMsgNoLine(t *testing.T) {
	e := New(SyntaxError, 0, "")
	require.Equal(t, "SyntaxError", e.Error())
}

func TestEffectiveLinePrefersLineAdjust(t *testing.T) {
	e := New(SyntaxError, 10, "x")
	require.Equal(t, 10, e.EffectiveLine())
	e.LineAdjust = 7
	require.Equal(t, 7, e.EffectiveLine())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := require.AnError
	e := Wrap(ImportError, 1, cause, "could not open module")
	require.ErrorIs(t, e, cause)
}

func TestRaiseFormatsThroughBuffer(t *testing.T) {
	e := Raise(ValueError, 3, "got %T", fakeType{name: "integer"})
	require.Equal(t, "ValueError: got type integer (line 3)", e.Error())
}

func TestBufferPercentTDirective(t *testing.T) {
	var buf Buffer
	buf.Printf("value has %T", fakeType{name: "list[string]"})
	require.Equal(t, "value has type list[string]", buf.String())
}

func TestBufferPercentTDirectiveNonTyped(t *testing.T) {
	var buf Buffer
	buf.Printf("value has %T", 5)
	require.Equal(t, "value has ?", buf.String())
}

func TestBufferPercentIDirective(t *testing.T) {
	var buf Buffer
	buf.Printf("%Iline", 2)
	require.Equal(t, "        line", buf.String())
}

func TestBufferPercentEDirective(t *testing.T) {
	var buf Buffer
	buf.Printf("%E", "a\"b\nc")
	require.Equal(t, `"a\"b\nc"`, buf.String())
}

func TestBufferPercentRDirective(t *testing.T) {
	var buf Buffer
	buf.Printf("%R", 2)
	require.Equal(t, "no such file or directory", buf.String())

	buf.Reset()
	buf.Printf("%R", 999)
	require.Equal(t, "errno 999", buf.String())
}

func TestBufferPassesThroughOrdinaryVerbs(t *testing.T) {
	var buf Buffer
	buf.Printf("%s has %d items", "list", 3)
	require.Equal(t, "list has 3 items", buf.String())
}

func TestBufferResetClearsAccumulatedText(t *testing.T) {
	var buf Buffer
	buf.Printf("abc")
	buf.Reset()
	require.Equal(t, "", buf.String())
}
