// Package compiler is lily's emitter: it walks an *ast.Program and produces
// a *bytecode.Module the vm can run (spec.md §4.4/§4.5, component C-emit of
// the system overview).
//
// Unlike the teacher's single flat instruction/constant pool pair, each
// lily function (top-level main, every `define`, every method and
// constructor, every lambda) compiles to its own bytecode.Function with its
// own register window (spec.md §4.6): there are no upvalues, so a nested
// function body never needs to reach into an enclosing one (Design Notes
// §9(b) — OpAssignUpvalue exists only so a stray attempt raises a clear
// diagnostic instead of silently doing the wrong thing).
//
// The emitter keeps a stack of open blocks (function/if/while/do-while/
// for-in/try/match), mirroring the teacher's block-stack shape, to patch
// forward jumps and to know where `break`/`continue` should land.
package compiler

import (
	"strings"

	"github.com/google/uuid"

	"github.com/kristofer/lily/pkg/ast"
	"github.com/kristofer/lily/pkg/bytecode"
	"github.com/kristofer/lily/pkg/diag"
	"github.com/kristofer/lily/pkg/lexer"
	"github.com/kristofer/lily/pkg/parser"
	"github.com/kristofer/lily/pkg/symtab"
	"github.com/kristofer/lily/pkg/syspkg"
)

// varInfo is one compiler-tracked local: its register and (best-effort)
// static type, used to pick the right arithmetic opcode family.
type varInfo struct {
	reg     int
	typ     *symtab.Type
	isParam bool
}

// scope is one lexical block's variable bindings, pushed on block entry and
// popped on exit (the compiler's equivalent of symtab.VarMark/RestoreVars,
// kept local here since function bodies never share registers).
type scope struct {
	vars map[string]varInfo
}

// loopCtx records the patch lists a break/continue inside the innermost
// loop needs to resolve once the loop's bytecode is fully emitted.
type loopCtx struct {
	breaks, continues []int // instruction indices whose A operand is a forward/backward jump target to patch
	continueTarget    int   // -1 until known (do-while discovers it only at the end)
}

// funcCtx is the compiler's state for the function currently being emitted.
type funcCtx struct {
	fn       *bytecode.Function
	scopes   []scope
	nextReg  int
	loops    []*loopCtx
	class    *symtab.Class // non-nil inside a method/constructor
	selfType *symtab.Type
}

// Compiler emits one module from one parsed program.
type Compiler struct {
	st      *symtab.Symtab
	file    string
	mod     *bytecode.Module
	globals map[string]varInfo
	funcSig map[string]*bytecode.Function // top-level define name -> prototype, for call-site return typing
	classes map[string]*symtab.Class

	f *funcCtx

	// nextGlobalSlot is the persistent global-slot counter, independent of
	// any function's own register window: globals outlive the top-level
	// Main call that declared them (spec.md §7's REPL persisted state),
	// while registers don't. Slot 0 is reserved for sys::argv
	// (syspkg.GlobalSlot), seeded by pkg/vm before Main ever runs.
	nextGlobalSlot int

	// functions accumulates every compiled define/method/constructor across
	// every Compile call on this Compiler, so a function index baked into an
	// earlier REPL line's OpLoadReadonly stays valid in every later line's
	// module too (compileFuncDecl and compileLambda only ever append to this
	// backing array; nothing reorders or drops entries, and functionIndex
	// just searches it).
	functions []*bytecode.Function
}

// New creates a Compiler sharing st (so class/type ids stay consistent
// across a REPL's repeated compile calls, per spec.md §7).
func New(st *symtab.Symtab, file string) *Compiler {
	return &Compiler{
		st:             st,
		file:           file,
		globals:        make(map[string]varInfo),
		funcSig:        make(map[string]*bytecode.Function),
		classes:        make(map[string]*symtab.Class),
		nextGlobalSlot: syspkg.GlobalSlot + 1,
	}
}

// allocGlobalSlot reserves the next persistent global slot.
func (c *Compiler) allocGlobalSlot() int {
	slot := c.nextGlobalSlot
	c.nextGlobalSlot++
	return slot
}

// Compile emits prog into a *bytecode.Module. The returned module's Main
// function is the implicit top-level entry point (spec.md §4.6).
func (c *Compiler) Compile(prog *ast.Program) (*bytecode.Module, error) {
	main := &bytecode.Function{Name: "$main"}
	c.mod = &bytecode.Module{Main: main, Functions: c.functions, Symtab: c.st}
	c.f = &funcCtx{fn: main, scopes: []scope{{vars: map[string]varInfo{}}}}

	for _, stmt := range prog.Statements {
		if err := c.compileTopLevel(stmt); err != nil {
			return nil, err
		}
	}
	c.emit(bytecode.OpReturnVoid, 0, 0, 0)
	main.Registers = c.registerInfos(c.f)
	c.functions = c.mod.Functions
	return c.mod, nil
}

func (c *Compiler) errf(kind diag.Kind, line int, format string, args ...interface{}) error {
	e := diag.Raise(kind, line, format, args...)
	e.File = c.file
	return e
}

// ---- register / scope helpers -------------------------------------------

func (c *Compiler) pushScope() { c.f.scopes = append(c.f.scopes, scope{vars: map[string]varInfo{}}) }
func (c *Compiler) popScope()  { c.f.scopes = c.f.scopes[:len(c.f.scopes)-1] }

func (c *Compiler) declareLocal(name string, typ *symtab.Type) int {
	reg := c.f.nextReg
	c.f.nextReg++
	c.f.scopes[len(c.f.scopes)-1].vars[name] = varInfo{reg: reg, typ: typ}
	return reg
}

func (c *Compiler) lookupLocal(name string) (varInfo, bool) {
	for i := len(c.f.scopes) - 1; i >= 0; i-- {
		if v, ok := c.f.scopes[i].vars[name]; ok {
			return v, true
		}
	}
	return varInfo{}, false
}

func (c *Compiler) allocTemp() int {
	reg := c.f.nextReg
	c.f.nextReg++
	return reg
}

// compileContiguous evaluates exprs left to right and copies each result
// into a freshly allocated block of adjacent registers, since opcodes like
// CALL_NATIVE, BUILD_LIST, and BUILD_VARIANT address their operands as
// "first register, count" and can't assume an expression's own result
// register happens to land next to its neighbor's (a sub-expression may
// have claimed temporaries in between). Returns the base register of the
// block; the block is always exactly len(exprs) registers long.
func (c *Compiler) compileContiguous(exprs []ast.Expression) (int, []*symtab.Type, error) {
	regs := make([]int, len(exprs))
	types := make([]*symtab.Type, len(exprs))
	for i, e := range exprs {
		r, t, err := c.compileExpr(e)
		if err != nil {
			return 0, nil, err
		}
		regs[i] = r
		types[i] = t
	}
	return c.packContiguous(regs), types, nil
}

// compileContiguousWithReceiver is compileContiguous for a method or
// constructor call: receiverReg already holds an evaluated value (the
// instance), which must land in the first slot of the argument block ahead
// of the freshly compiled args.
func (c *Compiler) compileContiguousWithReceiver(receiverReg int, args []ast.Expression) (int, []*symtab.Type, error) {
	regs := make([]int, len(args)+1)
	types := make([]*symtab.Type, len(args))
	regs[0] = receiverReg
	for i, a := range args {
		r, t, err := c.compileExpr(a)
		if err != nil {
			return 0, nil, err
		}
		regs[i+1] = r
		types[i] = t
	}
	return c.packContiguous(regs), types, nil
}

func (c *Compiler) packContiguous(regs []int) int {
	if len(regs) == 0 {
		return c.allocTemp()
	}
	base := c.allocTemp()
	c.emit(bytecode.OpAssignLocal, base, regs[0], 0)
	for i := 1; i < len(regs); i++ {
		r := c.allocTemp()
		c.emit(bytecode.OpAssignLocal, r, regs[i], 0)
	}
	return base
}

func (c *Compiler) registerInfos(f *funcCtx) []bytecode.RegisterInfo {
	infos := make([]bytecode.RegisterInfo, f.nextReg)
	return infos
}

func (c *Compiler) emit(op bytecode.Opcode, a, b, cc int) int {
	c.f.fn.Code = append(c.f.fn.Code, bytecode.Instruction{Op: op, A: a, B: b, C: cc})
	return len(c.f.fn.Code) - 1
}

func (c *Compiler) emitResult(op bytecode.Opcode, a, b, cc, result int) int {
	c.f.fn.Code = append(c.f.fn.Code, bytecode.Instruction{Op: op, A: a, B: b, C: cc, Result: result})
	return len(c.f.fn.Code) - 1
}

func (c *Compiler) here() int { return len(c.f.fn.Code) }

func (c *Compiler) patchJump(idx int) { c.f.fn.Code[idx].A = c.here() }

// ---- top level ------------------------------------------------------------

func (c *Compiler) compileTopLevel(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.FuncDecl:
		return c.compileFuncDecl(s, nil)
	case *ast.ClassDecl:
		return c.compileClassDecl(s)
	case *ast.EnumDecl:
		return c.compileEnumDecl(s)
	default:
		return c.compileStatement(stmt)
	}
}

func (c *Compiler) compileFuncDecl(decl *ast.FuncDecl, class *symtab.Class) error {
	fn := &bytecode.Function{Name: decl.Name, Class: class, IsConstructor: decl.IsConstructor, Line: decl.Line()}
	for _, p := range decl.Params {
		if p.Varargs {
			fn.IsVarargs = true
		}
	}
	fn.ParamCount = len(decl.Params)

	parent := c.f
	c.f = &funcCtx{fn: fn, scopes: []scope{{vars: map[string]varInfo{}}}, class: class}
	if class != nil {
		c.f.selfType = c.st.SelfType(class)
		c.declareLocal("self", c.f.selfType)
	}
	for _, p := range decl.Params {
		typ := c.resolveFullTypeName(p.TypeName, p.TypeArgs)
		reg := c.declareLocal(p.Name, typ)
		c.f.scopes[0].vars[p.Name] = varInfo{reg: reg, typ: typ, isParam: true}
		fn.ParamTypes = append(fn.ParamTypes, typ)
		if p.PromoteToProp && class != nil {
			if prop, ok := class.FindOwnProperty(p.Name); ok {
				c.emit(bytecode.OpSetProperty, 0 /* self reg */, prop.Index, reg)
			}
		}
	}
	if decl.ReturnType != "" {
		fn.ReturnType = c.resolveFullTypeName(decl.ReturnType, decl.ReturnTypeArgs)
	}

	if decl.Body != nil {
		if err := c.compileBlockStatements(decl.Body.Statements); err != nil {
			c.f = parent
			return err
		}
	}
	// Constructors implicitly return self; plain functions with no explicit
	// return fall through returning void (spec.md §4.4).
	if decl.IsConstructor {
		c.emitResult(bytecode.OpReturnVal, 0, 0, 0, 0)
	} else {
		c.emit(bytecode.OpReturnVoid, 0, 0, 0)
	}
	fn.Registers = c.registerInfos(c.f)

	c.mod.Functions = append(c.mod.Functions, fn)
	c.f = parent
	if class == nil {
		c.funcSig[decl.Name] = fn
	}
	return nil
}

func (c *Compiler) compileClassDecl(decl *ast.ClassDecl) error {
	var parent *symtab.Class
	if decl.ParentName != "" {
		p, ok := c.st.ClassByName(decl.ParentName)
		if !ok {
			return c.errf(diag.SyntaxError, decl.Line(), "%s has not been declared.", decl.ParentName)
		}
		parent = p
	}
	class := c.st.NewClass(decl.Name, parent)
	class.TemplateCount = len(decl.Generics)
	c.classes[decl.Name] = class
	c.st.UpdateGenerics(class, len(decl.Generics))

	for _, p := range decl.Ctor.Params {
		if p.PromoteToProp {
			class.AddProperty(p.Name, c.resolveFullTypeName(p.TypeName, p.TypeArgs))
		}
	}
	ctor := decl.Ctor
	ctor.IsConstructor = true
	// `< Parent(args)` runs the parent's constructor on the new instance,
	// with args evaluated against this constructor's parameters.
	if parent != nil {
		if _, ok := parent.FindOwnCallable(parent.Name); ok {
			call := &ast.Call{Callee: &ast.FieldAccess{Target: &ast.SelfExpr{}, Name: parent.Name}, Args: decl.ParentArgs}
			ctor.Body = &ast.Block{Statements: []ast.Statement{&ast.ExprStmt{X: call}}}
		}
	}
	if err := c.compileFuncDecl(&ctor, class); err != nil {
		return err
	}
	class.AddCallable(&symtab.Var{
		Name: class.Name, Flags: symtab.VarIsMethod | symtab.VarReadonly,
		FunctionIndex: c.functionIndex(c.mod.Functions[len(c.mod.Functions)-1]),
	})
	for i := range decl.Methods {
		m := decl.Methods[i]
		if err := c.compileFuncDecl(&m, class); err != nil {
			return err
		}
		class.AddCallable(&symtab.Var{
			Name: m.Name, Flags: symtab.VarIsMethod | symtab.VarReadonly,
			FunctionIndex: c.functionIndex(c.mod.Functions[len(c.mod.Functions)-1]),
		})
	}
	return nil
}

func (c *Compiler) compileEnumDecl(decl *ast.EnumDecl) error {
	enum := c.st.NewClass(decl.Name, nil)
	enum.Flags |= symtab.ClassIsEnum
	if decl.IsScoped {
		enum.Flags |= symtab.ClassEnumIsScoped
	}
	enum.TemplateCount = len(decl.Generics)
	c.classes[decl.Name] = enum
	c.st.UpdateGenerics(enum, len(decl.Generics))

	for _, v := range decl.Variants {
		var fields []*symtab.Type
		referenced := make(map[string]bool)
		for _, f := range v.FieldArgs {
			fields = append(fields, c.resolveFullTypeName(f[0], f[1:]))
			for _, tok := range f {
				for _, g := range decl.Generics {
					if tok == g {
						referenced[g] = true
					}
				}
			}
		}
		variant := c.st.NewVariantClass(enum, v.Name, fields, len(referenced))
		c.classes[v.Name] = variant
	}
	return nil
}

// resolveTypeName resolves a bare type name written in source to its
// canonical *symtab.Type. Unknown names fall back to `any` rather than
// failing the whole compile, so a forward-referenced user class in a
// single-pass top-level script still emits usable code (spec.md §1: "no
// module/import system" implies every name in a file is visible to every
// other top-level statement; a stricter multi-pass resolution order is an
// open question left to DESIGN.md).
func (c *Compiler) resolveTypeName(name string) *symtab.Type {
	if name == "" {
		return c.st.ClassByNameMust("any").DefaultType
	}
	if cls, ok := c.classes[name]; ok {
		return cls.DefaultType
	}
	if cls, ok := c.st.ClassByName(name); ok {
		return cls.DefaultType
	}
	return c.st.ClassByNameMust("any").DefaultType
}

// resolveFullTypeName resolves a type name together with its written
// generic arguments (each itself a name optionally followed by its own
// "[...]", exactly as parser.parseTypeName produces them) into the type's
// full Subtypes-bearing *symtab.Type. Without this, a declared `list[string]`
// param/property/field would resolve to the bare `list` class with no
// element type at all, and typesCompatible's generic-unification check
// (spec.md §4.5) would have nothing to compare.
func (c *Compiler) resolveFullTypeName(name string, args []string) *symtab.Type {
	base := c.resolveTypeName(name)
	if len(args) == 0 || base.Class == nil {
		return base
	}
	subs := make([]*symtab.Type, len(args))
	for i, a := range args {
		argName, nested := splitGenericArg(a)
		subs[i] = c.resolveFullTypeName(argName, nested)
	}
	return c.st.BuildEnsureType(base.Class, base.Flags, subs)
}

// splitGenericArg undoes parser.parseTypeName's flattening of a nested
// generic argument list (e.g. "hash[string,integer]") back into its bare
// name plus its own argument strings, splitting only on top-level commas so
// a further-nested "[...]" isn't split apart.
func splitGenericArg(s string) (string, []string) {
	i := strings.IndexByte(s, '[')
	if i < 0 {
		return s, nil
	}
	name := s[:i]
	inner := s[i+1 : len(s)-1]
	var args []string
	depth, start := 0, 0
	for j := 0; j < len(inner); j++ {
		switch inner[j] {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, inner[start:j])
				start = j + 1
			}
		}
	}
	args = append(args, inner[start:])
	return name, args
}

// typesCompatible reports whether a value of type arg may be used where
// param is expected: an unknown (nil) type on either side always passes
// (the emitter's type propagation is best-effort, not complete), "any"
// accepts anything, and a generic class (list, hash, ...) requires matching
// arity with every subtype pairwise compatible (spec.md §4.5's call/
// assignment type-checking and generic-unification rules).
func typesCompatible(arg, param *symtab.Type) bool {
	if param == nil || arg == nil {
		return true
	}
	if param.Class != nil && param.Class.Name == "any" {
		return true
	}
	if arg.Class == nil || param.Class == nil {
		return true
	}
	if !arg.Class.IsSubclassOf(param.Class) {
		return false
	}
	if len(param.Subtypes) == 0 {
		return true
	}
	if len(arg.Subtypes) != len(param.Subtypes) {
		return false
	}
	for i := range param.Subtypes {
		if !typesCompatible(arg.Subtypes[i], param.Subtypes[i]) {
			return false
		}
	}
	return true
}

// checkArgTypes raises SyntaxError for the first argType that doesn't fit
// its corresponding paramType. Extra argTypes beyond len(paramTypes) (a
// varargs tail) are left unchecked.
func (c *Compiler) checkArgTypes(line int, calleeName string, paramTypes, argTypes []*symtab.Type) error {
	for i, at := range argTypes {
		if i >= len(paramTypes) {
			break
		}
		if !typesCompatible(at, paramTypes[i]) {
			return c.errf(diag.SyntaxError, line, "%s: argument %d has type %T, expected %T", calleeName, i+1, at, paramTypes[i])
		}
	}
	return nil
}

// ---- statements ------------------------------------------------------------

func (c *Compiler) compileBlockStatements(stmts []ast.Statement) error {
	for _, s := range stmts {
		if err := c.compileStatement(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileStatement(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		_, _, err := c.compileExpr(s.X)
		return err
	case *ast.VarDecl:
		reg, typ, err := c.compileExpr(s.Value)
		if err != nil {
			return err
		}
		if c.f.class == nil && len(c.f.scopes) == 1 && c.f.fn == c.mod.Main {
			slot := c.allocGlobalSlot()
			c.globals[s.Name] = varInfo{reg: slot, typ: typ}
			c.emit(bytecode.OpAssignGlobal, slot, reg, 0)
		} else {
			dst := c.declareLocal(s.Name, typ)
			c.emit(bytecode.OpAssignLocal, dst, reg, 0)
		}
		return nil
	case *ast.Block:
		c.pushScope()
		err := c.compileBlockStatements(s.Statements)
		c.popScope()
		return err
	case *ast.IfStmt:
		return c.compileIf(s)
	case *ast.WhileStmt:
		return c.compileWhile(s)
	case *ast.DoWhileStmt:
		return c.compileDoWhile(s)
	case *ast.ForInStmt:
		return c.compileForIn(s)
	case *ast.BreakStmt:
		if len(c.f.loops) == 0 {
			return c.errf(diag.SyntaxError, s.Line(), "'break' used outside of a loop")
		}
		lp := c.f.loops[len(c.f.loops)-1]
		idx := c.emit(bytecode.OpJump, 0, 0, 0)
		lp.breaks = append(lp.breaks, idx)
		return nil
	case *ast.ContinueStmt:
		if len(c.f.loops) == 0 {
			return c.errf(diag.SyntaxError, s.Line(), "'continue' used outside of a loop")
		}
		lp := c.f.loops[len(c.f.loops)-1]
		idx := c.emit(bytecode.OpJump, 0, 0, 0)
		lp.continues = append(lp.continues, idx)
		return nil
	case *ast.ReturnStmt:
		if c.f.class != nil && c.isCurrentConstructor() {
			return c.errf(diag.SyntaxError, s.Line(), "'return' is not allowed inside a constructor")
		}
		if s.Value == nil {
			c.emit(bytecode.OpReturnVoid, 0, 0, 0)
			return nil
		}
		reg, _, err := c.compileExpr(s.Value)
		if err != nil {
			return err
		}
		c.emitResult(bytecode.OpReturnVal, reg, 0, 0, 0)
		return nil
	case *ast.RaiseStmt:
		reg, _, err := c.compileExpr(s.Value)
		if err != nil {
			return err
		}
		c.emit(bytecode.OpRaise, reg, 0, 0)
		return nil
	case *ast.TryStmt:
		return c.compileTry(s)
	case *ast.MatchStmt:
		return c.compileMatch(s)
	default:
		return c.errf(diag.SyntaxError, stmt.Line(), "unsupported statement")
	}
}

func (c *Compiler) isCurrentConstructor() bool {
	return c.f.fn.IsConstructor
}

func (c *Compiler) compileIf(s *ast.IfStmt) error {
	var endJumps []int
	for i, branch := range s.Branches {
		isLast := i == len(s.Branches)-1
		if branch.Cond == nil {
			// trailing else
			c.pushScope()
			err := c.compileBlockStatements(branch.Body.Statements)
			c.popScope()
			if err != nil {
				return err
			}
			break
		}
		condReg, _, err := c.compileExpr(branch.Cond)
		if err != nil {
			return err
		}
		jf := c.emit(bytecode.OpJumpIfFalse, 0, condReg, 0)
		c.pushScope()
		err = c.compileBlockStatements(branch.Body.Statements)
		c.popScope()
		if err != nil {
			return err
		}
		if !isLast || len(s.Branches) > i+1 {
			endJumps = append(endJumps, c.emit(bytecode.OpJump, 0, 0, 0))
		}
		c.patchJump(jf)
	}
	for _, j := range endJumps {
		c.patchJump(j)
	}
	return nil
}

func (c *Compiler) compileWhile(s *ast.WhileStmt) error {
	start := c.here()
	condReg, _, err := c.compileExpr(s.Cond)
	if err != nil {
		return err
	}
	jf := c.emit(bytecode.OpJumpIfFalse, 0, condReg, 0)
	lp := &loopCtx{continueTarget: start}
	c.f.loops = append(c.f.loops, lp)
	c.pushScope()
	err = c.compileBlockStatements(s.Body.Statements)
	c.popScope()
	if err != nil {
		return err
	}
	c.emit(bytecode.OpJump, start, 0, 0)
	c.patchJump(jf)
	for _, b := range lp.breaks {
		c.patchJump(b)
	}
	for _, cont := range lp.continues {
		c.f.fn.Code[cont].A = start
	}
	c.f.loops = c.f.loops[:len(c.f.loops)-1]
	return nil
}

func (c *Compiler) compileDoWhile(s *ast.DoWhileStmt) error {
	start := c.here()
	lp := &loopCtx{continueTarget: -1}
	c.f.loops = append(c.f.loops, lp)
	c.pushScope()
	err := c.compileBlockStatements(s.Body.Statements)
	c.popScope()
	if err != nil {
		return err
	}
	condTarget := c.here()
	condReg, _, err := c.compileExpr(s.Cond)
	if err != nil {
		return err
	}
	c.emit(bytecode.OpJumpIfTrue, start, condReg, 0)
	for _, b := range lp.breaks {
		c.patchJump(b)
	}
	for _, cont := range lp.continues {
		c.f.fn.Code[cont].A = condTarget
	}
	c.f.loops = c.f.loops[:len(c.f.loops)-1]
	return nil
}

func (c *Compiler) compileForIn(s *ast.ForInStmt) error {
	intType := c.st.ClassByNameMust("integer").DefaultType
	startReg, _, err := c.compileExpr(s.Start)
	if err != nil {
		return err
	}
	stopReg, _, err := c.compileExpr(s.Stop)
	if err != nil {
		return err
	}
	stepReg := -1
	if s.Step != nil {
		stepReg, _, err = c.compileExpr(s.Step)
		if err != nil {
			return err
		}
	} else {
		stepReg = c.allocTemp()
		one := c.st.GetIntegerLiteral(1)
		c.emit(bytecode.OpLoadInteger, stepReg, one.RegisterSpot, 0)
	}

	c.pushScope()
	loopVar := c.declareLocal(s.VarName, intType)
	c.emit(bytecode.OpAssignLocal, loopVar, startReg, 0)

	start := c.here()
	cmpReg := c.allocTemp()
	c.emit(bytecode.OpLe, cmpReg, loopVar, stopReg)
	jf := c.emit(bytecode.OpJumpIfFalse, 0, cmpReg, 0)

	lp := &loopCtx{}
	c.f.loops = append(c.f.loops, lp)
	if err := c.compileBlockStatements(s.Body.Statements); err != nil {
		c.popScope()
		return err
	}
	stepTarget := c.here()
	c.emit(bytecode.OpIntAdd, loopVar, loopVar, stepReg)
	c.emit(bytecode.OpJump, start, 0, 0)
	c.patchJump(jf)
	for _, b := range lp.breaks {
		c.patchJump(b)
	}
	for _, cont := range lp.continues {
		c.f.fn.Code[cont].A = stepTarget
	}
	c.f.loops = c.f.loops[:len(c.f.loops)-1]
	c.popScope()
	return nil
}

func (c *Compiler) compileTry(s *ast.TryStmt) error {
	tryIdx := c.emit(bytecode.OpTryEnter, 0, 0, 0)
	if err := c.compileBlockStatements(s.Body.Statements); err != nil {
		return err
	}
	c.emit(bytecode.OpTryLeave, 0, 0, 0)
	doneJump := c.emit(bytecode.OpJump, 0, 0, 0)
	c.patchJump(tryIdx)

	var endJumps []int
	for i, ex := range s.Excepts {
		cls, ok := c.st.ClassByName(ex.ClassName)
		if !ok {
			return c.errf(diag.SyntaxError, s.Line(), "%s has not been declared.", ex.ClassName)
		}
		nextTest := c.emit(bytecode.OpCatchMatch, 0, int(cls.ID), -1)
		c.pushScope()
		if ex.VarName != "" {
			dst := c.declareLocal(ex.VarName, cls.DefaultType)
			c.emit(bytecode.OpCatchBind, dst, 0, 0)
		}
		err := c.compileBlockStatements(ex.Body.Statements)
		c.popScope()
		if err != nil {
			return err
		}
		if i != len(s.Excepts)-1 {
			endJumps = append(endJumps, c.emit(bytecode.OpJump, 0, 0, 0))
		}
		c.patchJump(nextTest)
	}
	for _, j := range endJumps {
		c.patchJump(j)
	}
	c.patchJump(doneJump)
	return nil
}

func (c *Compiler) compileMatch(s *ast.MatchStmt) error {
	subjReg, subjTyp, err := c.compileExpr(s.Subject)
	if err != nil {
		return err
	}
	var enum *symtab.Class
	if subjTyp != nil && subjTyp.Class != nil && subjTyp.Class.Flags&symtab.ClassIsEnum != 0 {
		enum = subjTyp.Class
	}
	covered := make(map[uint16]bool, len(s.Cases))
	var endJumps []int
	for i, mc := range s.Cases {
		cls, ok := c.st.ClassByName(mc.VariantName)
		if !ok {
			return c.errf(diag.SyntaxError, s.Line(), "%s is not a known variant.", mc.VariantName)
		}
		if covered[cls.ID] {
			return c.errf(diag.SyntaxError, s.Line(), "%s has already been matched in this match block.", mc.VariantName)
		}
		covered[cls.ID] = true
		nextTest := c.emit(bytecode.OpCatchMatch, 0, int(cls.ID), subjReg)
		c.pushScope()
		if len(mc.Binds) > 0 {
			first := c.f.nextReg
			for _, name := range mc.Binds {
				c.declareLocal(name, c.st.ClassByNameMust("any").DefaultType)
			}
			c.emit(bytecode.OpVariantDecompose, first, subjReg, len(mc.Binds))
		}
		err := c.compileBlockStatements(mc.Body.Statements)
		c.popScope()
		if err != nil {
			return err
		}
		if i != len(s.Cases)-1 {
			endJumps = append(endJumps, c.emit(bytecode.OpJump, 0, 0, 0))
		}
		c.patchJump(nextTest)
	}
	for _, j := range endJumps {
		c.patchJump(j)
	}
	if enum != nil {
		for _, v := range enum.Variants {
			if !covered[v.ID] {
				return c.errf(diag.SyntaxError, s.Line(), "match is not exhaustive: %s is not covered.", v.Name)
			}
		}
	}
	return nil
}

// ---- expressions -----------------------------------------------------------

// compileExpr emits code for expr and returns the register holding its
// result plus its best-effort static type (nil means `any`/unknown).
func (c *Compiler) compileExpr(expr ast.Expression) (int, *symtab.Type, error) {
	switch e := expr.(type) {
	case *ast.IntegerLiteral:
		reg := c.allocTemp()
		lit := c.st.GetIntegerLiteral(e.Value)
		c.emit(bytecode.OpLoadInteger, reg, lit.RegisterSpot, 0)
		return reg, c.st.ClassByNameMust("integer").DefaultType, nil
	case *ast.DoubleLiteral:
		reg := c.allocTemp()
		lit := c.st.GetDoubleLiteral(e.Value)
		c.emit(bytecode.OpLoadDouble, reg, lit.RegisterSpot, 0)
		return reg, c.st.ClassByNameMust("double").DefaultType, nil
	case *ast.StringLiteral:
		reg := c.allocTemp()
		lit := c.st.GetStringLiteral(e.Value)
		c.emit(bytecode.OpLoadString, reg, lit.RegisterSpot, 0)
		return reg, c.st.ClassByNameMust("string").DefaultType, nil
	case *ast.Identifier:
		return c.compileIdentifier(e)
	case *ast.SelfExpr:
		if c.f.class == nil {
			return 0, nil, c.errf(diag.SyntaxError, e.Line(), "'self' used outside of a method")
		}
		v, _ := c.lookupLocal("self")
		return v.reg, v.typ, nil
	case *ast.PropAccess:
		return c.compilePropAccess(e)
	case *ast.ParenExpr:
		return c.compileExpr(e.Inner)
	case *ast.UnaryExpr:
		return c.compileUnary(e)
	case *ast.BinaryExpr:
		return c.compileBinary(e)
	case *ast.Assign:
		return c.compileAssign(e)
	case *ast.Call:
		return c.compileCall(e)
	case *ast.Subscript:
		return c.compileSubscript(e)
	case *ast.ListExpr:
		return c.compileList(e)
	case *ast.HashExpr:
		return c.compileHash(e)
	case *ast.TupleExpr:
		return c.compileTuple(e)
	case *ast.FieldAccess:
		return c.compileFieldAccess(e)
	case *ast.PackageAccess:
		return c.compilePackageAccess(e)
	case *ast.VariantExpr:
		return c.compileVariantConstruct(e.Name, nil, e.Line())
	case *ast.Typecast:
		return c.compileTypecast(e)
	case *ast.Lambda:
		return c.compileLambda(e)
	default:
		return 0, nil, c.errf(diag.SyntaxError, expr.Line(), "unsupported expression")
	}
}

func (c *Compiler) compileIdentifier(e *ast.Identifier) (int, *symtab.Type, error) {
	if v, ok := c.lookupLocal(e.Name); ok {
		return v.reg, v.typ, nil
	}
	// A top-level `define` resolves to a readonly function constant, not a
	// global variable slot (spec.md §4.6's "readonly" register kind).
	if fn, ok := c.funcSig[e.Name]; ok {
		idx := c.functionIndex(fn)
		reg := c.allocTemp()
		c.emit(bytecode.OpLoadReadonly, reg, idx, 0)
		return reg, c.st.ClassByNameMust("function").DefaultType, nil
	}
	if v, ok := c.globals[e.Name]; ok {
		reg := c.allocTemp()
		c.emit(bytecode.OpLoadGlobal, reg, v.reg, 0)
		return reg, v.typ, nil
	}
	return 0, nil, symtab.RaiseUndefined(e.Line(), e.Name)
}

func (c *Compiler) functionIndex(fn *bytecode.Function) int {
	for i, f := range c.mod.Functions {
		if f == fn {
			return i
		}
	}
	return -1
}

func (c *Compiler) compilePropAccess(e *ast.PropAccess) (int, *symtab.Type, error) {
	if c.f.class == nil {
		return 0, nil, c.errf(diag.SyntaxError, e.Line(), "'@%s' used outside of a method", e.Name)
	}
	prop, ok := c.st.FindProperty(c.f.class, e.Name)
	if !ok {
		return 0, nil, c.errf(diag.SyntaxError, e.Line(), "%s has no property named %s", c.f.class.Name, e.Name)
	}
	self, _ := c.lookupLocal("self")
	reg := c.allocTemp()
	c.emitResult(bytecode.OpGetProperty, self.reg, prop.Index, 0, reg)
	return reg, prop.Type, nil
}

func (c *Compiler) compileUnary(e *ast.UnaryExpr) (int, *symtab.Type, error) {
	reg, typ, err := c.compileExpr(e.Operand)
	if err != nil {
		return 0, nil, err
	}
	dst := c.allocTemp()
	if e.Op == "!" {
		c.emit(bytecode.OpLogicalNot, dst, reg, 0)
		return dst, c.st.ClassByNameMust("integer").DefaultType, nil
	}
	c.emit(bytecode.OpNegate, dst, reg, 0)
	return dst, typ, nil
}

func (c *Compiler) isDouble(t *symtab.Type) bool {
	return t != nil && t.Class != nil && t.Class.ID == symtab.ClassDouble
}
func (c *Compiler) isString(t *symtab.Type) bool {
	return t != nil && t.Class != nil && t.Class.ID == symtab.ClassString
}

func (c *Compiler) compileBinary(e *ast.BinaryExpr) (int, *symtab.Type, error) {
	lreg, ltyp, err := c.compileExpr(e.Left)
	if err != nil {
		return 0, nil, err
	}
	rreg, rtyp, err := c.compileExpr(e.Right)
	if err != nil {
		return 0, nil, err
	}
	dst := c.allocTemp()
	intType := c.st.ClassByNameMust("integer").DefaultType
	dblType := c.st.ClassByNameMust("double").DefaultType
	strType := c.st.ClassByNameMust("string").DefaultType

	switch e.Op {
	case "+":
		if c.isString(ltyp) || c.isString(rtyp) {
			c.emit(bytecode.OpConcat, dst, lreg, rreg)
			return dst, strType, nil
		}
		if c.isDouble(ltyp) || c.isDouble(rtyp) {
			c.emit(bytecode.OpDblAdd, dst, lreg, rreg)
			return dst, dblType, nil
		}
		c.emit(bytecode.OpIntAdd, dst, lreg, rreg)
		return dst, intType, nil
	case "-":
		if c.isDouble(ltyp) || c.isDouble(rtyp) {
			c.emit(bytecode.OpDblSub, dst, lreg, rreg)
			return dst, dblType, nil
		}
		c.emit(bytecode.OpIntSub, dst, lreg, rreg)
		return dst, intType, nil
	case "*":
		if c.isDouble(ltyp) || c.isDouble(rtyp) {
			c.emit(bytecode.OpDblMul, dst, lreg, rreg)
			return dst, dblType, nil
		}
		c.emit(bytecode.OpIntMul, dst, lreg, rreg)
		return dst, intType, nil
	case "/":
		if c.isDouble(ltyp) || c.isDouble(rtyp) {
			c.emit(bytecode.OpDblDiv, dst, lreg, rreg)
			return dst, dblType, nil
		}
		c.emit(bytecode.OpIntDiv, dst, lreg, rreg)
		return dst, intType, nil
	case "%":
		c.emit(bytecode.OpIntMod, dst, lreg, rreg)
		return dst, intType, nil
	case "==":
		c.emit(bytecode.OpEq, dst, lreg, rreg)
		return dst, intType, nil
	case "!=":
		c.emit(bytecode.OpNeq, dst, lreg, rreg)
		return dst, intType, nil
	case "<":
		c.emit(bytecode.OpLt, dst, lreg, rreg)
		return dst, intType, nil
	case "<=":
		c.emit(bytecode.OpLe, dst, lreg, rreg)
		return dst, intType, nil
	case ">":
		c.emit(bytecode.OpGt, dst, lreg, rreg)
		return dst, intType, nil
	case ">=":
		c.emit(bytecode.OpGe, dst, lreg, rreg)
		return dst, intType, nil
	case "&&":
		c.emit(bytecode.OpBitAnd, dst, lreg, rreg)
		return dst, intType, nil
	case "||":
		c.emit(bytecode.OpBitOr, dst, lreg, rreg)
		return dst, intType, nil
	case "&":
		c.emit(bytecode.OpBitAnd, dst, lreg, rreg)
		return dst, intType, nil
	case "|":
		c.emit(bytecode.OpBitOr, dst, lreg, rreg)
		return dst, intType, nil
	case "^":
		c.emit(bytecode.OpBitXor, dst, lreg, rreg)
		return dst, intType, nil
	case "<<":
		c.emit(bytecode.OpShiftLeft, dst, lreg, rreg)
		return dst, intType, nil
	case ">>":
		c.emit(bytecode.OpShiftRight, dst, lreg, rreg)
		return dst, intType, nil
	default:
		return 0, nil, c.errf(diag.SyntaxError, e.Line(), "unsupported operator %q", e.Op)
	}
}

func (c *Compiler) compileAssign(e *ast.Assign) (int, *symtab.Type, error) {
	valReg, valTyp, err := c.compileExpr(e.Value)
	if err != nil {
		return 0, nil, err
	}
	switch t := e.Target.(type) {
	case *ast.Identifier:
		if v, ok := c.lookupLocal(t.Name); ok {
			if !typesCompatible(valTyp, v.typ) {
				return 0, nil, c.errf(diag.SyntaxError, t.Line(), "%s has type %T, but was assigned a value of type %T", t.Name, v.typ, valTyp)
			}
			c.emit(bytecode.OpAssignLocal, v.reg, valReg, 0)
			return v.reg, v.typ, nil
		}
		if v, ok := c.globals[t.Name]; ok {
			if !typesCompatible(valTyp, v.typ) {
				return 0, nil, c.errf(diag.SyntaxError, t.Line(), "%s has type %T, but was assigned a value of type %T", t.Name, v.typ, valTyp)
			}
			c.emit(bytecode.OpAssignGlobal, v.reg, valReg, 0)
			return valReg, v.typ, nil
		}
		dst := c.declareLocal(t.Name, valTyp)
		c.emit(bytecode.OpAssignLocal, dst, valReg, 0)
		return dst, valTyp, nil
	case *ast.PropAccess:
		if c.f.class == nil {
			return 0, nil, c.errf(diag.SyntaxError, t.Line(), "'@%s' used outside of a method", t.Name)
		}
		prop, ok := c.st.FindProperty(c.f.class, t.Name)
		if !ok {
			return 0, nil, c.errf(diag.SyntaxError, t.Line(), "%s has no property named %s", c.f.class.Name, t.Name)
		}
		if !typesCompatible(valTyp, prop.Type) {
			return 0, nil, c.errf(diag.SyntaxError, t.Line(), "@%s has type %T, but was assigned a value of type %T", t.Name, prop.Type, valTyp)
		}
		self, _ := c.lookupLocal("self")
		c.emit(bytecode.OpSetProperty, self.reg, prop.Index, valReg)
		return valReg, prop.Type, nil
	case *ast.Subscript:
		targetReg, targetTyp, err := c.compileExpr(t.Target)
		if err != nil {
			return 0, nil, err
		}
		idxReg, _, err := c.compileExpr(t.Index)
		if err != nil {
			return 0, nil, err
		}
		if targetTyp != nil && len(targetTyp.Subtypes) > 0 {
			elemTyp := targetTyp.Subtypes[len(targetTyp.Subtypes)-1]
			if !typesCompatible(valTyp, elemTyp) {
				return 0, nil, c.errf(diag.SyntaxError, t.Line(), "cannot assign a value of type %T into a %T", valTyp, targetTyp)
			}
		}
		c.emit(bytecode.OpSubscriptSet, targetReg, idxReg, valReg)
		return valReg, valTyp, nil
	case *ast.FieldAccess:
		targetReg, targetTyp, err := c.compileExpr(t.Target)
		if err != nil {
			return 0, nil, err
		}
		if targetTyp == nil || targetTyp.Class == nil {
			return 0, nil, c.errf(diag.SyntaxError, t.Line(), "cannot assign to %s on an unresolved type", t.Name)
		}
		prop, ok := c.st.FindProperty(targetTyp.Class, t.Name)
		if !ok {
			return 0, nil, c.errf(diag.SyntaxError, t.Line(), "%s has no property named %s", targetTyp.Class.Name, t.Name)
		}
		if !typesCompatible(valTyp, prop.Type) {
			return 0, nil, c.errf(diag.SyntaxError, t.Line(), "%s has type %T, but was assigned a value of type %T", t.Name, prop.Type, valTyp)
		}
		c.emit(bytecode.OpSetProperty, targetReg, prop.Index, valReg)
		return valReg, prop.Type, nil
	default:
		return 0, nil, c.errf(diag.SyntaxError, e.Line(), "invalid assignment target")
	}
}

func (c *Compiler) compileCall(e *ast.Call) (int, *symtab.Type, error) {
	// show and print are vm primitives (OpShow/OpPrint), not callables, so
	// they're resolved here rather than falling through to compileIdentifier
	// and a "has not been declared" error (spec.md §6 puts_sink).
	if id, ok := e.Callee.(*ast.Identifier); ok && (id.Name == "show" || id.Name == "print") {
		if len(e.Args) != 1 {
			return 0, nil, c.errf(diag.SyntaxError, e.Line(), "%s takes exactly one argument", id.Name)
		}
		reg, _, err := c.compileExpr(e.Args[0])
		if err != nil {
			return 0, nil, err
		}
		if id.Name == "show" {
			c.emit(bytecode.OpShow, reg, 0, 0)
		} else {
			c.emit(bytecode.OpPrint, reg, 0, 0)
		}
		return reg, nil, nil
	}

	// A call whose callee is a bare capitalized identifier is a class
	// constructor or variant constructor invocation (spec.md §4.4).
	if id, ok := e.Callee.(*ast.Identifier); ok {
		if cls, found := c.classes[id.Name]; found {
			if cls.Flags&symtab.ClassIsVariant != 0 {
				return c.compileVariantConstruct(id.Name, e.Args, e.Line())
			}
			return c.compileNewInstance(cls, e)
		}
	}
	if id, ok := e.Callee.(*ast.Identifier); ok {
		if len(id.Name) > 0 && id.Name[0] >= 'A' && id.Name[0] <= 'Z' {
			if cls, found := c.st.ClassByName(id.Name); found {
				return c.compileNewInstance(cls, e)
			}
		}
	}

	// A call whose callee is `target.method` is a method dispatch: the
	// receiver becomes an implicit first argument (spec.md §4.4 oo-access).
	if fa, ok := e.Callee.(*ast.FieldAccess); ok {
		return c.compileMethodCall(fa, e)
	}

	// `ClassName::new(args)` (spec.md §8 scenarios 5 and 8) is an alternate
	// spelling of the bare `ClassName(args)` constructor call.
	if pa, ok := e.Callee.(*ast.PackageAccess); ok && pa.Name == "new" {
		if cls, found := c.classes[pa.Package]; found {
			return c.compileNewInstance(cls, e)
		}
		if cls, found := c.st.ClassByName(pa.Package); found {
			return c.compileNewInstance(cls, e)
		}
		return 0, nil, c.errf(diag.SyntaxError, e.Line(), "%s has not been declared", pa.Package)
	}

	calleeReg, _, err := c.compileExpr(e.Callee)
	if err != nil {
		return 0, nil, err
	}
	first, argTypes, err := c.compileContiguous(e.Args)
	if err != nil {
		return 0, nil, err
	}

	var calleeFn *bytecode.Function
	if id, ok := e.Callee.(*ast.Identifier); ok {
		if fn, found := c.funcSig[id.Name]; found {
			calleeFn = fn
			if !fn.IsVarargs {
				if err := c.checkArgTypes(e.Line(), id.Name, fn.ParamTypes, argTypes); err != nil {
					return 0, nil, err
				}
			}
		}
	}

	dst := c.allocTemp()
	c.emitResult(bytecode.OpCallNative, calleeReg, first, len(e.Args), dst)

	if calleeFn != nil && calleeFn.ReturnType != nil {
		return dst, calleeFn.ReturnType, nil
	}
	return dst, nil, nil
}

func isContainerClassName(name string) bool {
	return name == "list" || name == "hash" || name == "tuple"
}

// compileMethodCall dispatches `target.method(args)`. Method lookup is
// resolved at compile time against the target's static class (spec.md §4.3
// find_class_callable) since lily has no runtime method tables beyond the
// single-inheritance chain; the resolved function is invoked as an ordinary
// call with the receiver as the first argument.
func (c *Compiler) compileMethodCall(fa *ast.FieldAccess, call *ast.Call) (int, *symtab.Type, error) {
	targetReg, targetTyp, err := c.compileExpr(fa.Target)
	if err != nil {
		return 0, nil, err
	}
	if targetTyp == nil || targetTyp.Class == nil {
		return 0, nil, c.errf(diag.SyntaxError, fa.Line(), "cannot call .%s on an unresolved type", fa.Name)
	}
	// `size` is a builtin method on every container class (list, hash,
	// tuple), backed by a dedicated opcode rather than a registered Foreign
	// function, the same pragmatic choice made for show/print.
	if fa.Name == "size" && isContainerClassName(targetTyp.Class.Name) {
		if len(call.Args) != 0 {
			return 0, nil, c.errf(diag.SyntaxError, fa.Line(), "size takes no arguments")
		}
		dst := c.allocTemp()
		c.emitResult(bytecode.OpLen, targetReg, 0, 0, dst)
		return dst, c.st.ClassByNameMust("integer").DefaultType, nil
	}
	method, ok := c.st.FindClassCallable(targetTyp.Class, fa.Name)
	if !ok {
		return 0, nil, c.errf(diag.SyntaxError, fa.Line(), "%s has no method named %s", targetTyp.Class.Name, fa.Name)
	}
	calleeReg := c.allocTemp()
	c.emit(bytecode.OpLoadReadonly, calleeReg, method.FunctionIndex, 0)

	first, argTypes, err := c.compileContiguousWithReceiver(targetReg, call.Args)
	if err != nil {
		return 0, nil, err
	}
	if fn := c.mod.Functions[method.FunctionIndex]; !fn.IsVarargs {
		if err := c.checkArgTypes(fa.Line(), fa.Name, fn.ParamTypes, argTypes); err != nil {
			return 0, nil, err
		}
	}
	dst := c.allocTemp()
	c.emitResult(bytecode.OpCallNative, calleeReg, first, len(call.Args)+1, dst)
	return dst, nil, nil
}

func (c *Compiler) compileNewInstance(cls *symtab.Class, call *ast.Call) (int, *symtab.Type, error) {
	selfReg := c.allocTemp()
	c.emitResult(bytecode.OpNewInstance, 0, int(cls.ID), 0, selfReg)

	ctor, ok := c.st.FindClassCallable(cls, cls.Name)
	if !ok {
		return 0, nil, c.errf(diag.SyntaxError, call.Line(), "%s has no constructor", cls.Name)
	}
	calleeReg := c.allocTemp()
	c.emit(bytecode.OpLoadReadonly, calleeReg, ctor.FunctionIndex, 0)

	first, argTypes, err := c.compileContiguousWithReceiver(selfReg, call.Args)
	if err != nil {
		return 0, nil, err
	}
	if fn := c.mod.Functions[ctor.FunctionIndex]; !fn.IsVarargs {
		if err := c.checkArgTypes(call.Line(), cls.Name, fn.ParamTypes, argTypes); err != nil {
			return 0, nil, err
		}
	}
	dst := c.allocTemp()
	c.emitResult(bytecode.OpCallNative, calleeReg, first, len(call.Args)+1, dst)
	// The constructor's own return value (it implicitly returns self) is
	// discarded in favor of selfReg: both name the same instance, but
	// selfReg is the one every other reference to this construction
	// expression's result was already allocated against.
	return selfReg, cls.DefaultType, nil
}

func (c *Compiler) compileVariantConstruct(name string, args []ast.Expression, line int) (int, *symtab.Type, error) {
	cls, ok := c.st.ClassByName(name)
	if !ok {
		return 0, nil, c.errf(diag.SyntaxError, line, "%s has not been declared.", name)
	}
	first, _, err := c.compileContiguous(args)
	if err != nil {
		return 0, nil, err
	}
	dst := c.allocTemp()
	c.emitResult(bytecode.OpBuildVariant, 0, int(cls.ID), first, dst)
	// A variant's static type is its owning enum, not the variant class
	// itself, the same way an instance's static type is never narrower than
	// its declared class: `match` exhaustiveness (compileMatch) and any
	// var/param typed as the enum both rely on seeing the enum here.
	typ := cls.DefaultType
	if cls.Enum != nil {
		typ = cls.Enum.DefaultType
	}
	return dst, typ, nil
}

func (c *Compiler) compileSubscript(e *ast.Subscript) (int, *symtab.Type, error) {
	targetReg, targetTyp, err := c.compileExpr(e.Target)
	if err != nil {
		return 0, nil, err
	}
	idxReg, _, err := c.compileExpr(e.Index)
	if err != nil {
		return 0, nil, err
	}
	dst := c.allocTemp()
	c.emitResult(bytecode.OpSubscriptGet, targetReg, idxReg, 0, dst)
	var elemType *symtab.Type
	if targetTyp != nil && len(targetTyp.Subtypes) > 0 {
		elemType = targetTyp.Subtypes[0]
	}
	return dst, elemType, nil
}

func (c *Compiler) compileList(e *ast.ListExpr) (int, *symtab.Type, error) {
	first, types, err := c.compileContiguous(e.Elements)
	if err != nil {
		return 0, nil, err
	}
	dst := c.allocTemp()
	c.emitResult(bytecode.OpBuildList, first, len(e.Elements), 0, dst)
	listCls := c.st.ClassByNameMust("list")
	typ := listCls.DefaultType
	if len(types) > 0 && types[0] != nil {
		typ = c.st.BuildEnsureType(listCls, 0, []*symtab.Type{types[0]})
	}
	return dst, typ, nil
}

func (c *Compiler) compileHash(e *ast.HashExpr) (int, *symtab.Type, error) {
	flat := make([]ast.Expression, 0, len(e.Pairs)*2)
	for _, pr := range e.Pairs {
		flat = append(flat, pr.Key, pr.Value)
	}
	first, types, err := c.compileContiguous(flat)
	if err != nil {
		return 0, nil, err
	}
	// spec.md §3 restricts hash keys to classes flagged ClassValidHashKey;
	// "any"-typed keys are left unchecked since the static type carries no
	// information about what's actually inside at runtime.
	for i := 0; i < len(types); i += 2 {
		kt := types[i]
		if kt == nil || kt.Class == nil || kt.Class.Name == "any" {
			continue
		}
		if kt.Class.Flags&symtab.ClassValidHashKey == 0 {
			return 0, nil, c.errf(diag.SyntaxError, e.Line(), "%s is not a valid hash key type", kt.Class.Name)
		}
	}
	dst := c.allocTemp()
	c.emitResult(bytecode.OpBuildHash, first, len(e.Pairs)*2, 0, dst)
	return dst, c.st.ClassByNameMust("hash").DefaultType, nil
}

func (c *Compiler) compileTuple(e *ast.TupleExpr) (int, *symtab.Type, error) {
	first, _, err := c.compileContiguous(e.Elements)
	if err != nil {
		return 0, nil, err
	}
	dst := c.allocTemp()
	c.emitResult(bytecode.OpBuildTuple, first, len(e.Elements), 0, dst)
	return dst, c.st.ClassByNameMust("tuple").DefaultType, nil
}

func (c *Compiler) compileFieldAccess(e *ast.FieldAccess) (int, *symtab.Type, error) {
	targetReg, targetTyp, err := c.compileExpr(e.Target)
	if err != nil {
		return 0, nil, err
	}
	if targetTyp == nil || targetTyp.Class == nil {
		return 0, nil, c.errf(diag.SyntaxError, e.Line(), "cannot access .%s on an unresolved type", e.Name)
	}
	if prop, ok := c.st.FindProperty(targetTyp.Class, e.Name); ok {
		dst := c.allocTemp()
		c.emitResult(bytecode.OpGetProperty, targetReg, prop.Index, 0, dst)
		return dst, prop.Type, nil
	}
	if _, ok := c.st.FindClassCallable(targetTyp.Class, e.Name); ok {
		// Method reference without a call: not directly supported as a
		// first-class bound method (spec.md doesn't require it); surface a
		// clear diagnostic instead of silently misbehaving.
		return 0, nil, c.errf(diag.SyntaxError, e.Line(), "%s must be called", e.Name)
	}
	return 0, nil, c.errf(diag.SyntaxError, e.Line(), "%s has no property or method named %s", targetTyp.Class.Name, e.Name)
}

func (c *Compiler) compilePackageAccess(e *ast.PackageAccess) (int, *symtab.Type, error) {
	// sys::argv is the one bootstrapped package member (spec.md
	// "Supplemented features", pkg/syspkg); every other package access
	// resolves to a class static/builtin method call site handled by
	// compileCall when wrapped in a Call.
	if e.Package == "sys" && e.Name == "argv" {
		dst := c.allocTemp()
		c.emit(bytecode.OpLoadGlobal, dst, syspkg.GlobalSlot, 0)
		listCls := c.st.ClassByNameMust("list")
		return dst, c.st.BuildEnsureType(listCls, 0, []*symtab.Type{c.st.ClassByNameMust("string").DefaultType}), nil
	}
	return 0, nil, c.errf(diag.SyntaxError, e.Line(), "unknown package member %s::%s", e.Package, e.Name)
}

func (c *Compiler) compileTypecast(e *ast.Typecast) (int, *symtab.Type, error) {
	reg, _, err := c.compileExpr(e.Target)
	if err != nil {
		return 0, nil, err
	}
	typ := c.resolveFullTypeName(e.TypeName, e.TypeArgs)
	dst := c.allocTemp()
	c.emitResult(bytecode.OpUpcast, reg, int(typ.Class.ID), 0, dst)
	return dst, typ, nil
}

// compileLambda runs a fresh lexer/parser over the lambda's captured raw
// body, then compiles it as an independent function that declares no
// parameters: the parser drops the `|params|` header, so no parameter name
// is bound inside the body, and no expected type from the call site is
// used. The body is compiled without the call site's type being known.
func (c *Compiler) compileLambda(e *ast.Lambda) (int, *symtab.Type, error) {
	lx := lexer.New(c.file, e.RawBody, true)
	ps := parser.New(lx)
	body, err := ps.ParseProgram()
	if err != nil {
		return 0, nil, err
	}
	// Every lambda gets a distinct Name (rather than a shared "$lambda")
	// so a stack trace that passes through two different lambda bodies
	// doesn't print the same frame name twice (spec.md §7 tracebacks).
	fn := &bytecode.Function{Name: "$lambda_" + uuid.NewString()[:8], Line: e.BodyLine}
	parent := c.f
	c.f = &funcCtx{fn: fn, scopes: []scope{{vars: map[string]varInfo{}}}, class: parent.class, selfType: parent.selfType}
	if parent.class != nil {
		if v, ok := parent.lookupSelf(); ok {
			c.f.scopes[0].vars["self"] = v
		}
	}
	for _, stmt := range body.Statements {
		if err := c.compileStatement(stmt); err != nil {
			c.f = parent
			return 0, nil, err
		}
	}
	c.emit(bytecode.OpReturnVoid, 0, 0, 0)
	fn.Registers = c.registerInfos(c.f)
	c.mod.Functions = append(c.mod.Functions, fn)
	c.f = parent

	dst := c.allocTemp()
	idx := len(c.mod.Functions) - 1
	c.emit(bytecode.OpLoadReadonly, dst, idx, 0)
	return dst, c.st.ClassByNameMust("function").DefaultType, nil
}

func (f *funcCtx) lookupSelf() (varInfo, bool) {
	for i := len(f.scopes) - 1; i >= 0; i-- {
		if v, ok := f.scopes[i].vars["self"]; ok {
			return v, true
		}
	}
	return varInfo{}, false
}
