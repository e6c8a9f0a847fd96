// Package symtab implements the symbol table: canonical interning of
// classes, types, literals, and variables, plus the variable-scoping
// machinery the parser and emitter share (spec.md §4.3).
package symtab

import "github.com/kristofer/lily/pkg/diag"

// Stable class ids (spec.md §6). The emitter and vm special-case these
// numeric values directly, so bootstrap must assign them in exactly this
// order.
const (
	ClassInteger = iota
	ClassDouble
	ClassString
	ClassFunction
	ClassAny
	ClassList
	ClassHash
	ClassTuple
	ClassTemplate
	ClassPackage
	ClassException
	ClassNoMemoryError
	ClassDBZError
	ClassIndexError
	ClassBadTCError
	ClassNoReturnError
	ClassValueError
	ClassRecursionError
	ClassKeyError
	ClassFormatError
)

// bootstrapExceptions lists the nine exception classes injected verbatim,
// in order, by every new parser (spec.md §6 "Bootstrap source").
var bootstrapExceptions = []string{
	"Exception",
	"DivisionByZeroError",
	"IndexError",
	"BadTypecastError",
	"NoReturnError",
	"ValueError",
	"RecursionError",
	"KeyError",
	"FormatError",
}

// Symtab owns every class, interned type, literal, and variable for one
// interpreter instance (spec.md §4.3). Classes and types live for the
// interpreter's whole lifetime; vars and literals survive across repeated
// parse/execute cycles (the REPL case).
type Symtab struct {
	classes   []*Class
	byName    map[string]*Class
	nextClsID uint16

	types map[typeKey]*Type

	// Vars is the full chain of declared vars in declaration order,
	// spanning all scopes currently open. VarMark/RestoreVars save and
	// truncate it; pkg/parser and pkg/compiler do not use it (the compiler
	// keeps its own per-function scopes).
	Vars []*Var

	literalsInt    map[int64]*Literal
	literalsDouble map[float64]*Literal
	literalsString map[string]*Literal
	NextLiteralSpot int

	// generics tracks, per class, how many template slots (A, B, ...) are
	// currently visible; update via UpdateGenerics (spec.md §4.3).
	generics map[*Class]int

	nextRegisterSpot []int // one counter per active scope depth
}

// New builds a Symtab with the 20 stable builtin classes and the bootstrap
// exception hierarchy already registered, matching new_parser (spec.md §6).
func New() *Symtab {
	st := &Symtab{
		byName:           make(map[string]*Class),
		types:            make(map[typeKey]*Type),
		literalsInt:      make(map[int64]*Literal),
		literalsDouble:   make(map[float64]*Literal),
		literalsString:   make(map[string]*Literal),
		generics:         make(map[*Class]int),
		nextRegisterSpot: []int{0},
	}
	st.bootstrapBuiltinClasses()
	st.bootstrapExceptionHierarchy()
	return st
}

func (st *Symtab) bootstrapBuiltinClasses() {
	def := func(name string, templateCount int) *Class {
		c := st.NewClass(name, nil)
		c.TemplateCount = templateCount
		return c
	}
	def("integer", 0).Flags |= ClassValidHashKey
	def("double", 0).Flags |= ClassValidHashKey
	def("string", 0).Flags |= ClassValidHashKey
	def("function", -1)
	def("any", 0)
	def("list", 1)
	def("hash", 2)
	def("tuple", -1)
	def("$template", 0)
	def("package", 0)
}

func (st *Symtab) bootstrapExceptionHierarchy() {
	var parent *Class
	for _, name := range bootstrapExceptions {
		c := st.NewClass(name, parent)
		// Every bootstrap exception takes (string message), per spec.md §6.
		c.AddProperty("message", st.BuildEnsureType(st.ClassByNameMust("string"), 0, nil))
		if parent == nil {
			parent = c
			// NoMemoryError is not in the list above but holds the stable id
			// right after Exception (ClassNoMemoryError).
			st.NewClass("NoMemoryError", parent).AddProperty("message", st.BuildEnsureType(st.ClassByNameMust("string"), 0, nil))
		}
	}
}

// NewClass registers a class with the next sequential id and a canonical
// default type (spec.md §4.3 new_class). The default type is always the
// bare class type with no subtypes; no caller replaces it with the open
// `class[A, B]` form once TemplateCount is known.
func (st *Symtab) NewClass(name string, parent *Class) *Class {
	c := newClass(st.nextClsID, name, parent)
	st.nextClsID++
	st.classes = append(st.classes, c)
	st.byName[name] = c
	c.DefaultType = &Type{Class: c, TemplatePos: -1}
	return c
}

// NewVariantClass registers a variant subclass of an enum class, per
// spec.md §4.4 ("enum class ... variants"). fields is the variant's stated
// field list in source order; the variant's own TemplateCount is the
// number of *distinct* generic slots fields actually reference — computed
// by the caller (pkg/compiler's compileEnumDecl) and passed in, which is
// why it can differ from the enum's TemplateCount (spec.md §8 "Variant
// template count").
func (st *Symtab) NewVariantClass(enum *Class, name string, fields []*Type, templateCount int) *Class {
	c := st.NewClass(name, enum)
	c.Flags |= ClassIsVariant
	c.Enum = enum
	c.VariantFields = fields
	c.TemplateCount = templateCount
	enum.Variants = append(enum.Variants, c)
	return c
}

// ClassByName looks a class up by name. Real lily gates this with a
// shorthash compare before the strcmp to skip unrelated buckets quickly;
// with a Go map that optimization is unnecessary, but ShortHash is still
// computed and stored on every class for parity with spec.md §3 and for
// any caller that wants the fast negative check directly.
func (st *Symtab) ClassByName(name string) (*Class, bool) {
	c, ok := st.byName[name]
	return c, ok
}

// ClassByNameMust is a convenience for callers (bootstrap code above) that
// know the class must already exist.
func (st *Symtab) ClassByNameMust(name string) *Class {
	c, ok := st.byName[name]
	if !ok {
		panic("symtab: unknown builtin class " + name)
	}
	return c
}

// ClassByID looks a class up by its stable id.
func (st *Symtab) ClassByID(id uint16) *Class {
	if int(id) >= len(st.classes) {
		return nil
	}
	return st.classes[id]
}

// BuildEnsureType returns the canonical type for (class, flags, subtypes),
// hash-consing through st.types so two structurally-equal calls return the
// pointer-identical *Type (spec.md §4.3 build_ensure_type, §8 "Type
// interning").
func (st *Symtab) BuildEnsureType(class *Class, flags uint16, subs []*Type) *Type {
	return st.buildEnsureTypeTemplate(class, flags, subs, -1)
}

// BuildTemplateType returns the canonical type for generic slot pos (A=0,
// B=1, ...).
func (st *Symtab) BuildTemplateType(pos int) *Type {
	return st.buildEnsureTypeTemplate(nil, 0, nil, pos)
}

func (st *Symtab) buildEnsureTypeTemplate(class *Class, flags uint16, subs []*Type, templatePos int) *Type {
	key := keyOf(class, flags, subs, templatePos)
	if t, ok := st.types[key]; ok {
		return t
	}
	t := &Type{Class: class, Subtypes: subs, Flags: flags, TemplatePos: templatePos}
	if templatePos < 0 {
		if st.typeIsUnresolved(t) {
			t.Flags |= TypeUnresolved
		}
		if st.typeMaybeCircular(t) {
			t.Flags |= TypeMaybeCircular
		}
	}
	st.types[key] = t
	return t
}

// typeIsUnresolved reports whether t transitively references a template
// parameter.
func (st *Symtab) typeIsUnresolved(t *Type) bool {
	if t.IsTemplate() {
		return true
	}
	for _, s := range t.Subtypes {
		if s != nil && (s.IsTemplate() || s.IsUnresolved()) {
			return true
		}
	}
	return false
}

// typeMaybeCircular reports whether a value of type t must be gc-tagged on
// creation: true if t transitively contains `any`, a class flagged with
// possible cycles (a class with an instance-typed property chain back to
// itself), or is itself a self-referential instance (spec.md §3).
func (st *Symtab) typeMaybeCircular(t *Type) bool {
	if t.Class == nil {
		return false
	}
	if t.Class.ID == ClassAny {
		return true
	}
	switch t.Class.ID {
	case ClassList, ClassHash, ClassTuple:
		for _, s := range t.Subtypes {
			if s != nil && st.typeMaybeCircular(s) {
				return true
			}
		}
		return false
	case ClassInteger, ClassDouble, ClassString, ClassFunction, ClassPackage:
		return false
	default:
		// A user class instance may form a cycle through its own
		// properties; conservatively tag every class instance except the
		// builtin value classes above.
		return true
	}
}

// TryNewVar appends a new var to the symtab's var chain and assigns it the
// next register spot at the given scope depth, returning the handle.
// Duplicate-name checking is the parser's responsibility (spec.md §4.3).
func (st *Symtab) TryNewVar(typ *Type, name string, depth int, flags uint16) *Var {
	v := &Var{Name: name, ShortHash: shortHash(name), Type: typ, Depth: depth, Flags: flags}
	if flags&VarReadonly == 0 {
		v.RegisterSpot = st.allocRegister(depth)
	}
	st.Vars = append(st.Vars, v)
	return v
}

// allocRegister hands out the next register spot for a given scope depth,
// growing the per-depth counters slice as needed. ResetRegisters zeroes a
// depth's counter; pkg/compiler allocates its own registers per function
// and calls neither.
func (st *Symtab) allocRegister(depth int) int {
	for len(st.nextRegisterSpot) <= depth {
		st.nextRegisterSpot = append(st.nextRegisterSpot, 0)
	}
	spot := st.nextRegisterSpot[depth]
	st.nextRegisterSpot[depth]++
	return spot
}

// ResetRegisters zeroes the register counter for depth.
func (st *Symtab) ResetRegisters(depth int) {
	for len(st.nextRegisterSpot) <= depth {
		st.nextRegisterSpot = append(st.nextRegisterSpot, 0)
	}
	st.nextRegisterSpot[depth] = 0
}

// RegisterCount returns how many registers have been allocated at depth so
// far (used to size a function's register window).
func (st *Symtab) RegisterCount(depth int) int {
	if depth >= len(st.nextRegisterSpot) {
		return 0
	}
	return st.nextRegisterSpot[depth]
}

// VarMark and RestoreVars implement scope unwinding over the Vars chain
// (pkg/compiler does its own, see its scope type): VarMark records the current chain
// length; RestoreVars truncates the chain back to a previously recorded
// mark when a block (if/while/for/function/...) closes.
func (st *Symtab) VarMark() int { return len(st.Vars) }

func (st *Symtab) RestoreVars(mark int) { st.Vars = st.Vars[:mark] }

// FindProperty walks class and its ancestors looking for name (spec.md
// §4.3 find_property).
func (st *Symtab) FindProperty(class *Class, name string) (*Property, bool) {
	for c := class; c != nil; c = c.Parent {
		if p, ok := c.FindOwnProperty(name); ok {
			return p, true
		}
	}
	return nil, false
}

// FindClassCallable walks class's callable chain, then its ancestors
// (spec.md §4.3 find_class_callable). The "dynamic loader seeds" fallback
// from the original C source (lazily materializing builtin methods) is not
// present: no methods are registered on the builtin classes, and the one
// builtin container method, size, is compiled straight to OpLen by
// pkg/compiler without a lookup here.
func (st *Symtab) FindClassCallable(class *Class, name string) (*Var, bool) {
	for c := class; c != nil; c = c.Parent {
		if v, ok := c.FindOwnCallable(name); ok {
			return v, true
		}
	}
	return nil, false
}

// UpdateGenerics implements update_symtab_generics (spec.md §4.3): at each
// function entry, the emitter records how many of the enclosing class's
// generic slots (A..n) are currently visible.
func (st *Symtab) UpdateGenerics(cls *Class, n int) {
	if cls == nil {
		return
	}
	st.generics[cls] = n
}

// VisibleGenerics returns how many generic slots are currently visible for
// cls (0 if cls is nil or has never had UpdateGenerics called).
func (st *Symtab) VisibleGenerics(cls *Class) int {
	if cls == nil {
		return 0
	}
	return st.generics[cls]
}

// SelfType builds the canonical `self` type for cls: `cls[A, B, ...]` using
// however many generics are currently in scope (spec.md §4.3).
func (st *Symtab) SelfType(cls *Class) *Type {
	if cls == nil {
		return nil
	}
	n := st.VisibleGenerics(cls)
	if n == 0 {
		return cls.DefaultType
	}
	subs := make([]*Type, n)
	for i := 0; i < n; i++ {
		subs[i] = st.BuildTemplateType(i)
	}
	return st.BuildEnsureType(cls, 0, subs)
}

// GetIntegerLiteral interns an integer literal by value (spec.md §4.3).
func (st *Symtab) GetIntegerLiteral(v int64) *Literal {
	if l, ok := st.literalsInt[v]; ok {
		return l
	}
	l := &Literal{Kind: LiteralInteger, IntValue: v, RegisterSpot: st.NextLiteralSpot}
	st.NextLiteralSpot++
	st.literalsInt[v] = l
	return l
}

// GetDoubleLiteral interns a double literal by value.
func (st *Symtab) GetDoubleLiteral(v float64) *Literal {
	if l, ok := st.literalsDouble[v]; ok {
		return l
	}
	l := &Literal{Kind: LiteralDouble, DoubleValue: v, RegisterSpot: st.NextLiteralSpot}
	st.NextLiteralSpot++
	st.literalsDouble[v] = l
	return l
}

// GetStringLiteral interns a string literal by value.
func (st *Symtab) GetStringLiteral(v string) *Literal {
	if l, ok := st.literalsString[v]; ok {
		return l
	}
	l := &Literal{Kind: LiteralString, StringValue: v, RegisterSpot: st.NextLiteralSpot}
	st.NextLiteralSpot++
	st.literalsString[v] = l
	return l
}

// AllLiterals returns every interned literal ordered by register spot, for
// building the vm's literal table.
func (st *Symtab) AllLiterals() []*Literal {
	out := make([]*Literal, st.NextLiteralSpot)
	fill := func(l *Literal) { out[l.RegisterSpot] = l }
	for _, l := range st.literalsInt {
		fill(l)
	}
	for _, l := range st.literalsDouble {
		fill(l)
	}
	for _, l := range st.literalsString {
		fill(l)
	}
	return out
}

// RaiseUndefined is a small helper shared by the parser and emitter for the
// common "name isn't declared" diagnostic.
func RaiseUndefined(line int, name string) error {
	return diag.Raise(diag.SyntaxError, line, "%s has not been declared.", name)
}
