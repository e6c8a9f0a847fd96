package symtab

import (
	"fmt"
	"strings"
)

func typePtrString(t *Type) string { return fmt.Sprintf("%p", t) }

// Type flag bits (spec.md §3, "Type").
const (
	// TypeVarargs marks that the last parameter of a function type is a
	// list and accepts a tail of values (spec.md §4.4 "varargs require the
	// last parameter to be a list").
	TypeVarargs uint16 = 1 << iota
	// TypeMaybeCircular marks that an instance of this type must be
	// gc-tagged on creation: true if the type transitively contains `any`,
	// a class with cycles, or itself (spec.md §3).
	TypeMaybeCircular
	// TypeUnresolved marks that the type contains at least one unbound
	// template parameter.
	TypeUnresolved
)

// Type is lily's canonical type structure: a class plus an ordered list of
// subtypes, hash-consed through the Symtab so structurally equal types are
// pointer-identical (spec.md §3, §8 "Type interning").
//
// For function types, Subtypes[0] is the return type (nil for "none") and
// Subtypes[1:] are parameters in declaration order; a method's implicit
// leading `self` parameter occupies Subtypes[1].
type Type struct {
	Class    *Class
	Subtypes []*Type
	Flags    uint16

	// TemplatePos identifies which generic slot (A=0, B=1, ...) this type
	// represents, when Class is the pseudo-class for template parameters.
	// -1 for all other types.
	TemplatePos int
}

// IsVarargs reports whether t is a varargs function type.
func (t *Type) IsVarargs() bool { return t.Flags&TypeVarargs != 0 }

// MaybeCircular reports whether values of this type must carry a gc-entry.
func (t *Type) MaybeCircular() bool { return t.Flags&TypeMaybeCircular != 0 }

// IsUnresolved reports whether t still contains an open template slot.
func (t *Type) IsUnresolved() bool { return t.Flags&TypeUnresolved != 0 }

// IsTemplate reports whether t *is* a bare generic parameter slot (A, B...).
func (t *Type) IsTemplate() bool { return t.TemplatePos >= 0 }

// DiagString implements diag.Typed so *Error formatting's %T directive can
// pretty-print a type without pkg/diag importing pkg/symtab.
func (t *Type) DiagString() string {
	if t == nil {
		return "?"
	}
	if t.IsTemplate() {
		return string(rune('A' + t.TemplatePos))
	}
	if t.Class != nil && t.Class.Name == "function" {
		var b strings.Builder
		b.WriteString("function (")
		for i, sub := range t.Subtypes {
			if i == 0 {
				continue
			}
			if i > 1 {
				b.WriteString(", ")
			}
			b.WriteString(sub.DiagString())
		}
		b.WriteString(" => ")
		if len(t.Subtypes) > 0 && t.Subtypes[0] != nil {
			b.WriteString(t.Subtypes[0].DiagString())
		} else {
			b.WriteString("none")
		}
		b.WriteString(")")
		return b.String()
	}
	var b strings.Builder
	if t.Class != nil {
		b.WriteString(t.Class.Name)
	} else {
		b.WriteString("?")
	}
	if len(t.Subtypes) > 0 {
		b.WriteString("[")
		for i, sub := range t.Subtypes {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(sub.DiagString())
		}
		b.WriteString("]")
	}
	return b.String()
}

// typeKey is the hash-consing key: (class id, varargs-significant flags,
// ordered subtype identities). Design Notes (spec.md §9) call out the C
// source's near-linear-search linked list as a re-architecture target; this
// port uses a Go map keyed on this struct instead.
type typeKey struct {
	classID     uint16
	varargs     bool
	templatePos int
	subtypes    string // pointer addresses of subtypes, joined
}

func keyOf(class *Class, flags uint16, subs []*Type, templatePos int) typeKey {
	var b strings.Builder
	for _, s := range subs {
		b.WriteString(ptrTag(s))
		b.WriteByte(',')
	}
	var id uint16
	if class != nil {
		id = class.ID
	}
	return typeKey{
		classID:     id,
		varargs:     flags&TypeVarargs != 0,
		templatePos: templatePos,
		subtypes:    b.String(),
	}
}

func ptrTag(t *Type) string {
	if t == nil {
		return "nil"
	}
	return typePtrString(t)
}
