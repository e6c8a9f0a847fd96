package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// lexAll scans src (already tagged, i.e. as if New was given startTagged
// true) until TokenFinalEOF and returns every token up to but not including
// it.
func lexAll(t *testing.T, src string) []Token {
	t.Helper()
	l := New("<test>", src, true)
	var toks []Token
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		if tok.Type == TokenFinalEOF {
			return toks
		}
		toks = append(toks, tok)
	}
}

func types(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func TestScanIntegerLiteral(t *testing.T) {
	toks := lexAll(t, "123")
	require.Len(t, toks, 1)
	require.Equal(t, TokenInteger, toks[0].Type)
	require.Equal(t, int64(123), toks[0].IntValue)
	require.Equal(t, "123", toks[0].Text)
}

func TestScanDoubleLiteral(t *testing.T) {
	toks := lexAll(t, "3.25")
	require.Len(t, toks, 1)
	require.Equal(t, TokenDouble, toks[0].Type)
	require.Equal(t, 3.25, toks[0].DoubleValue)
}

func TestScanPeriodIsNotMistakenForDouble(t *testing.T) {
	// "1." with no trailing digit is an integer followed by a period, not a
	// double literal, per scanNumber's isDigit(peekByteAt(1)) lookahead.
	toks := lexAll(t, "1.size()")
	require.Equal(t, []TokenType{TokenInteger, TokenPeriod, TokenIdentifier, TokenLParen, TokenRParen}, types(toks))
}

func TestScanStringEscapes(t *testing.T) {
	toks := lexAll(t, `"a\nb\t\"c\""`)
	require.Len(t, toks, 1)
	require.Equal(t, TokenString, toks[0].Type)
	require.Equal(t, "a\nb\t\"c\"", toks[0].Text)
}

func TestScanStringUnterminatedIsSyntaxError(t *testing.T) {
	l := New("<test>", `"abc`, true)
	_, err := l.Next()
	require.Error(t, err)
}

func TestScanStringRejectsRawNewline(t *testing.T) {
	l := New("<test>", "\"ab\nc\"", true)
	_, err := l.Next()
	require.Error(t, err)
}

func TestScanPropWord(t *testing.T) {
	toks := lexAll(t, "@count")
	require.Len(t, toks, 1)
	require.Equal(t, TokenPropWord, toks[0].Type)
	require.Equal(t, "count", toks[0].Text)
}

func TestScanIdentifiersAndKeywords(t *testing.T) {
	toks := lexAll(t, "class foo enum Bar define")
	require.Equal(t, []TokenType{TokenKwClass, TokenIdentifier, TokenKwEnum, TokenIdentifier, TokenKwDefine}, types(toks))
}

func TestScanCompoundOperators(t *testing.T) {
	cases := []struct {
		src  string
		want TokenType
	}{
		{"==", TokenEq},
		{"!=", TokenNeq},
		{"<=", TokenLe},
		{">=", TokenGe},
		{"=>", TokenArrow},
		{"&&", TokenAnd},
		{"||", TokenOr},
		{"<<", TokenShl},
		{">>", TokenShr},
		{"::", TokenColonColon},
		{"..", TokenTwoDots},
		{"...", TokenThreeDots},
		{".@(", TokenTypecastParenth},
		{"<[", TokenTupleOpen},
		{"]>", TokenTupleClose},
	}
	for _, c := range cases {
		toks := lexAll(t, c.src)
		require.Lenf(t, toks, 1, "source %q", c.src)
		require.Equalf(t, c.want, toks[0].Type, "source %q", c.src)
	}
}

func TestScanOpAssignCarriesBaseOperator(t *testing.T) {
	toks := lexAll(t, "+= -= *= /= %=")
	require.Len(t, toks, 5)
	for _, tok := range toks {
		require.Equal(t, TokenOpAssign, tok.Type)
	}
	require.Equal(t, []string{"+", "-", "*", "/", "%"}, []string{toks[0].Text, toks[1].Text, toks[2].Text, toks[3].Text, toks[4].Text})
}

func TestScanTwoDotsNotConfusedWithThreeDots(t *testing.T) {
	toks := lexAll(t, "0..5")
	require.Equal(t, []TokenType{TokenInteger, TokenTwoDots, TokenInteger}, types(toks))
}

func TestScanSkipsCommentsAndWhitespace(t *testing.T) {
	toks := lexAll(t, "1 # a comment\n+ 2")
	require.Equal(t, []TokenType{TokenInteger, TokenPlus, TokenInteger}, types(toks))
}

func TestScanEndTagSwitchesToTemplateMode(t *testing.T) {
	l := New("<test>", `var a = 1 ?> hello <?lily show(a)`, true)
	var got []Token
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		if tok.Type == TokenFinalEOF {
			break
		}
		got = append(got, tok)
	}
	require.Equal(t, []TokenType{
		TokenKwVar, TokenIdentifier, TokenAssign, TokenInteger,
		TokenEndTag, TokenString, TokenIdentifier, TokenLParen, TokenIdentifier, TokenRParen,
	}, types(got))
	// The template-text token between "?>" and "<?lily" carries the literal
	// bytes verbatim, padding included.
	require.Equal(t, " hello ", got[5].Text)
}

func TestScanLambdaCapturesRawBody(t *testing.T) {
	toks := lexAll(t, `{|x| return x + 1}`)
	require.Len(t, toks, 1)
	require.Equal(t, TokenLambda, toks[0].Type)
	require.Equal(t, `|x| return x + 1`, toks[0].Text)
}

func TestScanLambdaBodyKeepsNestedBracesAndStrings(t *testing.T) {
	toks := lexAll(t, `{|x| if x { return "}" } return x}`)
	require.Len(t, toks, 1)
	require.Equal(t, TokenLambda, toks[0].Type)
	require.Equal(t, `|x| if x { return "}" } return x`, toks[0].Text)
}

func TestScanTupleDelimitersDistinctFromAngleAndBracket(t *testing.T) {
	toks := lexAll(t, "<[1,2]>")
	require.Equal(t, []TokenType{TokenTupleOpen, TokenInteger, TokenComma, TokenInteger, TokenTupleClose}, types(toks))
}

func TestScanUnexpectedCharacterIsSyntaxError(t *testing.T) {
	l := New("<test>", "$", true)
	_, err := l.Next()
	require.Error(t, err)
}

func TestPeekDoesNotConsume(t *testing.T) {
	l := New("<test>", "1 2", true)
	p1, err := l.Peek()
	require.NoError(t, err)
	p2, err := l.Peek()
	require.NoError(t, err)
	require.Equal(t, p1, p2)
	n, err := l.Next()
	require.NoError(t, err)
	require.Equal(t, p1, n)
	n2, err := l.Next()
	require.NoError(t, err)
	require.Equal(t, int64(2), n2.IntValue)
}

func TestEnterAndLeaveSubstream(t *testing.T) {
	l := New("<test>", "1 2", true)
	first, err := l.Next()
	require.NoError(t, err)
	require.Equal(t, int64(1), first.IntValue)

	l.EnterSubstream("99", 1)
	sub, err := l.Next()
	require.NoError(t, err)
	require.Equal(t, int64(99), sub.IntValue)
	eof, err := l.Next()
	require.NoError(t, err)
	require.Equal(t, TokenInnerEOF, eof.Type)

	require.True(t, l.LeaveSubstream())
	resumed, err := l.Next()
	require.NoError(t, err)
	require.Equal(t, int64(2), resumed.IntValue)

	require.False(t, l.LeaveSubstream())
}

func TestUntaggedSourceStartsInTemplateMode(t *testing.T) {
	l := New("<test>", `hi <?lily show(1)`, false)
	tok, err := l.Next()
	require.NoError(t, err)
	require.Equal(t, TokenString, tok.Type)
	require.Equal(t, "hi ", tok.Text)
}

func TestTokenTypeStringNamesKeywordsAndSymbols(t *testing.T) {
	require.Equal(t, "class", TokenKwClass.String())
	require.Equal(t, "::", TokenColonColon.String())
	require.Equal(t, "<eof>", TokenFinalEOF.String())
}
