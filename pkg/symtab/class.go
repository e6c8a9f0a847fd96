package symtab

// Class flag bits (spec.md §3, "Class").
const (
	ClassValidHashKey uint16 = 1 << iota
	ClassIsEnum
	ClassIsVariant
	ClassEnumIsScoped
)

// Property is one instance property of a class: a name plus its declared
// type and storage offset within an instance's field array.
type Property struct {
	Name  string
	Type  *Type
	Index int
}

// Class is a named, unique-by-id type definition (spec.md §3). It holds
// instance properties, a singly-linked chain of callables (methods and
// foreign functions, mirroring lily_class_t.call_start/call_top in
// _examples/original_source/src/lily_core_types.h), an optional parent for
// single inheritance, and — for enum classes — the ordered list of variant
// subclasses.
type Class struct {
	ID     uint16
	Name   string
	// ShortHash packs the first 8 bytes of Name little-endian, for a cheap
	// negative comparison before a full string compare (spec.md §3).
	ShortHash uint64

	Parent *Class

	Properties []*Property
	propIndex  map[string]int

	// Callables holds methods and registered foreign functions, in
	// declaration order; Callables lookups also check Parent's chain.
	Callables   []*Var
	calledIndex map[string]int

	// TemplateCount is the class's generic arity. -1 means variadic in the
	// sense used for function classes (varargs is actually carried on Type,
	// but a -1 template count marks "this class's generics are opened by
	// the emitter's update_symtab_generics, not fixed").
	TemplateCount int

	Flags uint16

	// Variants holds, for an enum class, its ordered variant subclasses.
	Variants []*Class
	// VariantFields holds, for a variant class, the declared field types of
	// its constructor (spec.md §4.4's "variant's constructor type").
	VariantFields []*Type
	// Enum points a variant class back at its owning enum class.
	Enum *Class

	// DefaultType is the type used when the class is referenced with no
	// explicit generic arguments: the bare `class` type with no subtypes,
	// for generic classes too (it is not the open `class[A, B, ...]` form).
	DefaultType *Type
}

func newClass(id uint16, name string, parent *Class) *Class {
	return &Class{
		ID:            id,
		Name:          name,
		ShortHash:     shortHash(name),
		Parent:        parent,
		propIndex:     make(map[string]int),
		calledIndex:   make(map[string]int),
		TemplateCount: 0,
	}
}

// shortHash packs up to the first 8 bytes of name little-endian, matching
// lily_class_t.shorthash in the original C sources.
func shortHash(name string) uint64 {
	var h uint64
	n := len(name)
	if n > 8 {
		n = 8
	}
	for i := 0; i < n; i++ {
		h |= uint64(name[i]) << (8 * uint(i))
	}
	return h
}

// AddProperty appends an instance property and returns its index. The index
// is offset by the parent's total property count, so a flat per-instance
// property array (sized by TotalPropertyCount) can hold inherited and own
// properties at disjoint slots.
func (c *Class) AddProperty(name string, typ *Type) int {
	base := 0
	if c.Parent != nil {
		base = c.Parent.TotalPropertyCount()
	}
	local := len(c.Properties)
	idx := base + local
	c.Properties = append(c.Properties, &Property{Name: name, Type: typ, Index: idx})
	c.propIndex[name] = local
	return idx
}

// FindOwnProperty looks up a property declared directly on c (not
// ancestors); Symtab.FindProperty walks the full chain.
func (c *Class) FindOwnProperty(name string) (*Property, bool) {
	local, ok := c.propIndex[name]
	if !ok {
		return nil, false
	}
	return c.Properties[local], true
}

// AddCallable registers a method or foreign function on c.
func (c *Class) AddCallable(v *Var) {
	c.calledIndex[v.Name] = len(c.Callables)
	c.Callables = append(c.Callables, v)
}

// FindOwnCallable looks up a callable declared directly on c.
func (c *Class) FindOwnCallable(name string) (*Var, bool) {
	idx, ok := c.calledIndex[name]
	if !ok {
		return nil, false
	}
	return c.Callables[idx], true
}

// IsSubclassOf reports whether c is ancestor-descendant equal to or a
// strict subclass of other, walking the single-inheritance parent chain.
func (c *Class) IsSubclassOf(other *Class) bool {
	for cur := c; cur != nil; cur = cur.Parent {
		if cur == other {
			return true
		}
	}
	return false
}

// TotalPropertyCount returns the number of properties c carries including
// everything inherited from Parent; used by the vm to size instances.
func (c *Class) TotalPropertyCount() int {
	n := len(c.Properties)
	if c.Parent != nil {
		n += c.Parent.TotalPropertyCount()
	}
	return n
}
