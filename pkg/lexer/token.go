package lexer

// TokenType identifies one lexical token class (spec.md §4.2).
type TokenType int

const (
	TokenInvalid TokenType = iota
	TokenFinalEOF
	TokenInnerEOF
	TokenEndTag

	TokenIdentifier
	TokenInteger
	TokenDouble
	TokenString
	TokenPropWord // @name

	// Keywords
	TokenKwClass
	TokenKwEnum
	TokenKwDefine
	TokenKwVar
	TokenKwIf
	TokenKwElif
	TokenKwElse
	TokenKwWhile
	TokenKwDo
	TokenKwFor
	TokenKwIn
	TokenKwBy
	TokenKwTry
	TokenKwExcept
	TokenKwAs
	TokenKwMatch
	TokenKwCase
	TokenKwReturn
	TokenKwBreak
	TokenKwContinue
	TokenKwSelf
	TokenKwNew
	TokenKwRaise
	TokenKwFunction

	// Brackets / delimiters
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenLBrace
	TokenRBrace
	TokenLAngle
	TokenRAngle
	TokenTupleOpen  // <[
	TokenTupleClose // ]>
	TokenTypecastParenth // .@(
	TokenColonColon      // ::
	TokenArrow           // =>
	TokenThreeDots       // ...
	TokenTwoDots         // ..
	TokenComma
	TokenColon
	TokenPeriod
	TokenLambda // {|args|body} captured whole

	// Operators
	TokenPlus
	TokenMinus
	TokenStar
	TokenSlash
	TokenPercent
	TokenEq  // ==
	TokenNeq // !=
	// Plain "<" and ">" are ambiguous between comparison and a generic
	// bracket (spec.md §4.2); the lexer always emits TokenLAngle/TokenRAngle
	// for the bare character and leaves resolving the ambiguity to the
	// parser's context, so there is no separate TokenLt/TokenGt.
	TokenLe // <=
	TokenGe // >=
	TokenAssign // =
	TokenNot    // !
	TokenAnd    // &&
	TokenOr     // ||
	TokenBitAnd // &
	TokenBitOr  // |
	TokenBitXor // ^
	TokenShl    // <<
	TokenShr    // >>
	TokenOpAssign // += -= *= /= %= (Text carries the base op)
)

// Token is one lexed token: its class, its raw text (identifiers, string
// contents, the literal source of a number), and the line it started on.
type Token struct {
	Type TokenType
	// Text is the token's source text: the identifier name, the unescaped
	// string contents, or (for TokenOpAssign) the base operator ("+", "-",
	// ...).
	Text string
	// IntValue / DoubleValue hold parsed numeric literals.
	IntValue    int64
	DoubleValue float64
	Line        int
	// DigitStartOffset records the byte offset, within the current
	// source, of the first digit of an integer or double literal. The
	// parser does not read it.
	DigitStartOffset int
}

var keywords = map[string]TokenType{
	"class":    TokenKwClass,
	"enum":     TokenKwEnum,
	"define":   TokenKwDefine,
	"var":      TokenKwVar,
	"if":       TokenKwIf,
	"elif":     TokenKwElif,
	"else":     TokenKwElse,
	"while":    TokenKwWhile,
	"do":       TokenKwDo,
	"for":      TokenKwFor,
	"in":       TokenKwIn,
	"by":       TokenKwBy,
	"try":      TokenKwTry,
	"except":   TokenKwExcept,
	"as":       TokenKwAs,
	"match":    TokenKwMatch,
	"case":     TokenKwCase,
	"return":   TokenKwReturn,
	"break":    TokenKwBreak,
	"continue": TokenKwContinue,
	"self":     TokenKwSelf,
	"new":      TokenKwNew,
	"raise":    TokenKwRaise,
	"function": TokenKwFunction,
}

// String names a token type for error messages.
func (t TokenType) String() string {
	for name, tt := range keywords {
		if tt == t {
			return name
		}
	}
	switch t {
	case TokenFinalEOF:
		return "<eof>"
	case TokenInnerEOF:
		return "<inner-eof>"
	case TokenEndTag:
		return "?>"
	case TokenIdentifier:
		return "identifier"
	case TokenInteger:
		return "integer"
	case TokenDouble:
		return "double"
	case TokenString:
		return "string"
	case TokenPropWord:
		return "@word"
	case TokenLParen:
		return "("
	case TokenRParen:
		return ")"
	case TokenLBracket:
		return "["
	case TokenRBracket:
		return "]"
	case TokenLBrace:
		return "{"
	case TokenRBrace:
		return "}"
	case TokenLAngle:
		return "<"
	case TokenRAngle:
		return ">"
	case TokenTupleOpen:
		return "<["
	case TokenTupleClose:
		return "]>"
	case TokenTypecastParenth:
		return ".@("
	case TokenColonColon:
		return "::"
	case TokenArrow:
		return "=>"
	case TokenThreeDots:
		return "..."
	case TokenTwoDots:
		return ".."
	case TokenComma:
		return ","
	case TokenColon:
		return ":"
	case TokenPeriod:
		return "."
	case TokenLambda:
		return "lambda"
	default:
		return "token"
	}
}
