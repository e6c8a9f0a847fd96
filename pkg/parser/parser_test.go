package parser

import (
	"testing"

	"github.com/kristofer/lily/pkg/ast"
	"github.com/kristofer/lily/pkg/lexer"
	"github.com/stretchr/testify/require"
)

func parseProgram(t *testing.T, src string) *ast.Program {
	t.Helper()
	p := New(lexer.New("<test>", src, true))
	prog, err := p.ParseProgram()
	require.NoError(t, err)
	return prog
}

func parseProgramErr(t *testing.T, src string) error {
	t.Helper()
	p := New(lexer.New("<test>", src, true))
	_, err := p.ParseProgram()
	return err
}

func TestParseVarDecl(t *testing.T) {
	prog := parseProgram(t, `var a = 1`)
	require.Len(t, prog.Statements, 1)
	decl, ok := prog.Statements[0].(*ast.VarDecl)
	require.True(t, ok)
	require.Equal(t, "a", decl.Name)
	lit, ok := decl.Value.(*ast.IntegerLiteral)
	require.True(t, ok)
	require.Equal(t, int64(1), lit.Value)
}

func TestParseVarDeclMissingNameIsSyntaxError(t *testing.T) {
	err := parseProgramErr(t, `var = 1`)
	require.Error(t, err)
}

func TestParseIfElifElse(t *testing.T) {
	prog := parseProgram(t, `if a { b } elif c { d } else { e }`)
	require.Len(t, prog.Statements, 1)
	ifs, ok := prog.Statements[0].(*ast.IfStmt)
	require.True(t, ok)
	require.Len(t, ifs.Branches, 3)
	require.NotNil(t, ifs.Branches[0].Cond)
	require.NotNil(t, ifs.Branches[1].Cond)
	require.Nil(t, ifs.Branches[2].Cond)
}

// TestParseIfMissingClosingBraceIsSyntaxError guards one of the spec's named
// negative scenarios: an if-block that never closes raises SyntaxError
// instead of hanging or panicking.
func TestParseIfMissingClosingBraceIsSyntaxError(t *testing.T) {
	err := parseProgramErr(t, `if a { b`)
	require.Error(t, err)
}

func TestParseWhileLoop(t *testing.T) {
	prog := parseProgram(t, `while a { b }`)
	ws, ok := prog.Statements[0].(*ast.WhileStmt)
	require.True(t, ok)
	require.NotNil(t, ws.Cond)
	require.Len(t, ws.Body.Statements, 1)
}

func TestParseDoWhileLoop(t *testing.T) {
	prog := parseProgram(t, `do { b } while a`)
	dw, ok := prog.Statements[0].(*ast.DoWhileStmt)
	require.True(t, ok)
	require.NotNil(t, dw.Cond)
}

func TestParseForInWithStep(t *testing.T) {
	prog := parseProgram(t, `for i in 0..10 by 2 { x }`)
	f, ok := prog.Statements[0].(*ast.ForInStmt)
	require.True(t, ok)
	require.Equal(t, "i", f.VarName)
	require.NotNil(t, f.Step)
}

func TestParseForInWithoutStep(t *testing.T) {
	prog := parseProgram(t, `for i in 0..10 { x }`)
	f, ok := prog.Statements[0].(*ast.ForInStmt)
	require.True(t, ok)
	require.Nil(t, f.Step)
}

func TestParseBreakAndContinue(t *testing.T) {
	prog := parseProgram(t, `while a { break continue }`)
	ws := prog.Statements[0].(*ast.WhileStmt)
	require.IsType(t, &ast.BreakStmt{}, ws.Body.Statements[0])
	require.IsType(t, &ast.ContinueStmt{}, ws.Body.Statements[1])
}

func TestParseBareReturn(t *testing.T) {
	prog := parseProgram(t, `define f() { return }`)
	fn := prog.Statements[0].(*ast.FuncDecl)
	ret := fn.Body.Statements[0].(*ast.ReturnStmt)
	require.Nil(t, ret.Value)
}

func TestParseReturnWithValue(t *testing.T) {
	prog := parseProgram(t, `define f() { return 1 }`)
	fn := prog.Statements[0].(*ast.FuncDecl)
	ret := fn.Body.Statements[0].(*ast.ReturnStmt)
	require.NotNil(t, ret.Value)
}

func TestParseRaise(t *testing.T) {
	prog := parseProgram(t, `raise e`)
	r, ok := prog.Statements[0].(*ast.RaiseStmt)
	require.True(t, ok)
	require.NotNil(t, r.Value)
}

func TestParseTryExceptChain(t *testing.T) {
	prog := parseProgram(t, `try { a } except DivisionByZeroError as e { b } except ValueError { c }`)
	tr, ok := prog.Statements[0].(*ast.TryStmt)
	require.True(t, ok)
	require.Len(t, tr.Excepts, 2)
	require.Equal(t, "DivisionByZeroError", tr.Excepts[0].ClassName)
	require.Equal(t, "e", tr.Excepts[0].VarName)
	require.Equal(t, "ValueError", tr.Excepts[1].ClassName)
	require.Equal(t, "", tr.Excepts[1].VarName)
}

func TestParseTryExceptMissingClassNameIsSyntaxError(t *testing.T) {
	err := parseProgramErr(t, `try { a } except { b }`)
	require.Error(t, err)
}

func TestParseMatchWithBoundVariantArgs(t *testing.T) {
	prog := parseProgram(t, `match x : { case Some(v) : { show(v) } case None : { show(0) } }`)
	m, ok := prog.Statements[0].(*ast.MatchStmt)
	require.True(t, ok)
	require.Len(t, m.Cases, 2)
	require.Equal(t, "Some", m.Cases[0].VariantName)
	require.Equal(t, []string{"v"}, m.Cases[0].Binds)
	require.Equal(t, "None", m.Cases[1].VariantName)
	require.Nil(t, m.Cases[1].Binds)
}

func TestParseMatchRequiresColonAfterSubject(t *testing.T) {
	err := parseProgramErr(t, `match x { case None : { } }`)
	require.Error(t, err)
}

func TestParseFuncDeclWithGenericsAndReturnType(t *testing.T) {
	prog := parseProgram(t, `define identity[A](x: A => A) { return x }`)
	fn, ok := prog.Statements[0].(*ast.FuncDecl)
	require.True(t, ok)
	require.Equal(t, []string{"A"}, fn.Generics)
	require.Len(t, fn.Params, 1)
	require.Equal(t, "x", fn.Params[0].Name)
	require.Equal(t, "A", fn.Params[0].TypeName)
}

func TestParseFuncDeclVarargsParam(t *testing.T) {
	prog := parseProgram(t, `define f(xs...: list[integer]) { return xs }`)
	fn := prog.Statements[0].(*ast.FuncDecl)
	require.True(t, fn.Params[0].Varargs)
	require.Equal(t, "list", fn.Params[0].TypeName)
	require.Equal(t, []string{"integer"}, fn.Params[0].TypeArgs)
}

func TestParseClassWithConstructorPromotedProps(t *testing.T) {
	prog := parseProgram(t, `class Point(@x: integer, @y: integer) { define sum() { return self } }`)
	cls, ok := prog.Statements[0].(*ast.ClassDecl)
	require.True(t, ok)
	require.Equal(t, "Point", cls.Name)
	require.True(t, cls.Ctor.Params[0].PromoteToProp)
	require.True(t, cls.Ctor.Params[1].PromoteToProp)
	require.Len(t, cls.Methods, 1)
}

func TestParseClassWithParentAndArgs(t *testing.T) {
	prog := parseProgram(t, `class B(x: integer) < A(x) { }`)
	cls := prog.Statements[0].(*ast.ClassDecl)
	require.Equal(t, "A", cls.ParentName)
	require.Len(t, cls.ParentArgs, 1)
}

func TestParseClassRejectsNonMethodBodyMember(t *testing.T) {
	err := parseProgramErr(t, `class A() { var x = 1 }`)
	require.Error(t, err)
}

func TestParseEnumVariantsWithAndWithoutFields(t *testing.T) {
	prog := parseProgram(t, `enum class Option[A] { Some(A), None }`)
	e, ok := prog.Statements[0].(*ast.EnumDecl)
	require.True(t, ok)
	require.Equal(t, []string{"A"}, e.Generics)
	require.Len(t, e.Variants, 2)
	require.Equal(t, "Some", e.Variants[0].Name)
	require.Equal(t, [][]string{{"A"}}, e.Variants[0].FieldArgs)
	require.Equal(t, "None", e.Variants[1].Name)
	require.Nil(t, e.Variants[1].FieldArgs)
}

func TestParseTypeNameWithNestedGenerics(t *testing.T) {
	prog := parseProgram(t, `define f(x: list[hash[string, integer]]) { return x }`)
	fn := prog.Statements[0].(*ast.FuncDecl)
	require.Equal(t, "list", fn.Params[0].TypeName)
	require.Equal(t, []string{"hash[string,integer]"}, fn.Params[0].TypeArgs)
}

func TestParsePropWordOnlyAllowedInConstructor(t *testing.T) {
	err := parseProgramErr(t, `define f(@x: integer) { return x }`)
	require.Error(t, err)
}

func TestParseBinaryPrecedenceMulBeforeAdd(t *testing.T) {
	prog := parseProgram(t, `a + b * c`)
	bin := prog.Statements[0].(*ast.ExprStmt).X.(*ast.BinaryExpr)
	require.Equal(t, "+", bin.Op)
	require.IsType(t, &ast.Identifier{}, bin.Left)
	mul, ok := bin.Right.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, "*", mul.Op)
}

func TestParseAssignment(t *testing.T) {
	prog := parseProgram(t, `a = 1`)
	a, ok := prog.Statements[0].(*ast.ExprStmt).X.(*ast.Assign)
	require.True(t, ok)
	require.IsType(t, &ast.Identifier{}, a.Target)
}

// TestParseOpAssignDesugarsToBinaryExpr guards the parser's documented
// operator-assignment desugaring: `a += b` becomes Assign{Value: a + b}.
func TestParseOpAssignDesugarsToBinaryExpr(t *testing.T) {
	prog := parseProgram(t, `a += 1`)
	a := prog.Statements[0].(*ast.ExprStmt).X.(*ast.Assign)
	bin, ok := a.Value.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, "+", bin.Op)
}

func TestParseTypecast(t *testing.T) {
	prog := parseProgram(t, `x.@(integer)`)
	tc, ok := prog.Statements[0].(*ast.ExprStmt).X.(*ast.Typecast)
	require.True(t, ok)
	require.Equal(t, "integer", tc.TypeName)
}

func TestParseBareCapitalizedIdentifierIsZeroArgVariant(t *testing.T) {
	prog := parseProgram(t, `None`)
	v, ok := prog.Statements[0].(*ast.ExprStmt).X.(*ast.VariantExpr)
	require.True(t, ok)
	require.Equal(t, "None", v.Name)
}

func TestParsePackageAccess(t *testing.T) {
	prog := parseProgram(t, `sys::argv`)
	pa, ok := prog.Statements[0].(*ast.ExprStmt).X.(*ast.PackageAccess)
	require.True(t, ok)
	require.Equal(t, "sys", pa.Package)
	require.Equal(t, "argv", pa.Name)
}
