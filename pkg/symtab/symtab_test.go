package symtab

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRegistersStableBuiltinClassIDs(t *testing.T) {
	st := New()
	require.Equal(t, uint16(ClassInteger), st.ClassByNameMust("integer").ID)
	require.Equal(t, uint16(ClassDouble), st.ClassByNameMust("double").ID)
	require.Equal(t, uint16(ClassString), st.ClassByNameMust("string").ID)
	require.Equal(t, uint16(ClassAny), st.ClassByNameMust("any").ID)
	require.Equal(t, uint16(ClassList), st.ClassByNameMust("list").ID)
	require.Equal(t, uint16(ClassException), st.ClassByNameMust("Exception").ID)
	require.Equal(t, uint16(ClassBadTCError), st.ClassByNameMust("BadTypecastError").ID)
}

func TestNewAssignsSequentialClassIDsAcrossBootstrapAndUserClasses(t *testing.T) {
	st := New()
	before := len(st.classes)
	custom := st.NewClass("Widget", nil)
	require.Equal(t, uint16(before), custom.ID)
	require.Same(t, custom, st.ClassByID(custom.ID))
}

func TestClassByIDOutOfRangeReturnsNil(t *testing.T) {
	st := New()
	require.Nil(t, st.ClassByID(65535))
}

func TestValidHashKeyFlagOnlyOnPrimitives(t *testing.T) {
	st := New()
	require.NotZero(t, st.ClassByNameMust("integer").Flags&ClassValidHashKey)
	require.NotZero(t, st.ClassByNameMust("double").Flags&ClassValidHashKey)
	require.NotZero(t, st.ClassByNameMust("string").Flags&ClassValidHashKey)
	require.Zero(t, st.ClassByNameMust("any").Flags&ClassValidHashKey)
	require.Zero(t, st.ClassByNameMust("list").Flags&ClassValidHashKey)
}

// TestTypeInterning exercises spec.md §8's named "type interning" property:
// two structurally-equal BuildEnsureType calls must return the identical
// *Type pointer, not merely an equal value.
func TestTypeInterning(t *testing.T) {
	st := New()
	listCls := st.ClassByNameMust("list")
	intTyp := st.ClassByNameMust("integer").DefaultType

	t1 := st.BuildEnsureType(listCls, 0, []*Type{intTyp})
	t2 := st.BuildEnsureType(listCls, 0, []*Type{intTyp})
	require.Same(t, t1, t2)
}

func TestTypeInterningDistinguishesDifferentSubtypes(t *testing.T) {
	st := New()
	listCls := st.ClassByNameMust("list")
	intTyp := st.ClassByNameMust("integer").DefaultType
	strTyp := st.ClassByNameMust("string").DefaultType

	listOfInt := st.BuildEnsureType(listCls, 0, []*Type{intTyp})
	listOfString := st.BuildEnsureType(listCls, 0, []*Type{strTyp})
	require.NotSame(t, listOfInt, listOfString)
}

func TestTypeInterningDistinguishesVarargsFlag(t *testing.T) {
	st := New()
	fnCls := st.ClassByNameMust("function")
	plain := st.BuildEnsureType(fnCls, 0, nil)
	varargs := st.BuildEnsureType(fnCls, TypeVarargs, nil)
	require.NotSame(t, plain, varargs)
	require.False(t, plain.IsVarargs())
	require.True(t, varargs.IsVarargs())
}

func TestBuildTemplateTypeIsInternedPerSlot(t *testing.T) {
	st := New()
	a1 := st.BuildTemplateType(0)
	a2 := st.BuildTemplateType(0)
	b := st.BuildTemplateType(1)
	require.Same(t, a1, a2)
	require.NotSame(t, a1, b)
	require.True(t, a1.IsTemplate())
	require.Equal(t, "A", a1.DiagString())
	require.Equal(t, "B", b.DiagString())
}

func TestTypeIsUnresolvedPropagatesThroughSubtypes(t *testing.T) {
	st := New()
	listCls := st.ClassByNameMust("list")
	a := st.BuildTemplateType(0)
	listOfA := st.BuildEnsureType(listCls, 0, []*Type{a})
	require.True(t, listOfA.IsUnresolved())

	intTyp := st.ClassByNameMust("integer").DefaultType
	listOfInt := st.BuildEnsureType(listCls, 0, []*Type{intTyp})
	require.False(t, listOfInt.IsUnresolved())
}

// TestVariantTemplateCount guards spec.md §8's named "Variant template
// count" property directly at the symtab layer: a variant's TemplateCount is
// whatever the caller passes, independent of the owning enum's own arity.
func TestVariantTemplateCount(t *testing.T) {
	st := New()
	enum := st.NewClass("Option", nil)
	enum.Flags |= ClassIsEnum
	enum.TemplateCount = 2 // enum class Option[A, B]

	variant := st.NewVariantClass(enum, "Some", nil, 1)
	require.Equal(t, 1, variant.TemplateCount)
	require.Equal(t, 2, enum.TemplateCount)
	require.Same(t, enum, variant.Enum)
	require.Contains(t, enum.Variants, variant)
}

func TestIsSubclassOfWalksSingleInheritanceChain(t *testing.T) {
	st := New()
	base := st.NewClass("Animal", nil)
	mid := st.NewClass("Bird", base)
	leaf := st.NewClass("Sparrow", mid)

	require.True(t, leaf.IsSubclassOf(base))
	require.True(t, leaf.IsSubclassOf(mid))
	require.True(t, leaf.IsSubclassOf(leaf))
	require.False(t, base.IsSubclassOf(leaf))

	unrelated := st.NewClass("Rock", nil)
	require.False(t, leaf.IsSubclassOf(unrelated))
}

func TestTotalPropertyCountIncludesInherited(t *testing.T) {
	st := New()
	intTyp := st.ClassByNameMust("integer").DefaultType
	base := st.NewClass("A", nil)
	base.AddProperty("x", intTyp)
	derived := st.NewClass("B", base)
	derived.AddProperty("y", intTyp)
	derived.AddProperty("z", intTyp)

	require.Equal(t, 1, base.TotalPropertyCount())
	require.Equal(t, 3, derived.TotalPropertyCount())

	yProp, ok := derived.FindOwnProperty("y")
	require.True(t, ok)
	require.Equal(t, 1, yProp.Index)
}

func TestExceptionHierarchyChainsFromException(t *testing.T) {
	st := New()
	exc := st.ClassByNameMust("Exception")
	dbz := st.ClassByNameMust("DivisionByZeroError")
	require.True(t, dbz.IsSubclassOf(exc))
	require.Equal(t, exc, dbz.Parent)
	_, ok := dbz.FindOwnProperty("message")
	require.True(t, ok)
}

// TestSiblingExceptionsDoNotCatchEachOther guards spec.md §8's "sibling
// exception catch" property: two exception classes that share the same
// immediate parent are not subclasses of one another.
func TestSiblingExceptionsDoNotCatchEachOther(t *testing.T) {
	st := New()
	dbz := st.ClassByNameMust("DivisionByZeroError")
	idx := st.ClassByNameMust("IndexError")
	require.False(t, dbz.IsSubclassOf(idx))
	require.False(t, idx.IsSubclassOf(dbz))
}
