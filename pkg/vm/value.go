// Package vm is lily's register-based bytecode interpreter (spec.md §4.6,
// component E of the system overview) and the embedder-facing Interp that
// wires the lexer, parser, compiler, and vm together (spec.md §5, "External
// Interfaces").
package vm

import (
	"fmt"

	"github.com/kristofer/lily/pkg/symtab"
)

// List is the runtime representation of a `list[T]` value.
type List struct {
	Elems []interface{}
}

// Trace visits every element a list holds, satisfying gc.Traceable.
func (l *List) Trace(visit func(v interface{})) {
	for _, e := range l.Elems {
		visit(e)
	}
}

// HashPair is one key/value slot of a Hash, kept in insertion order so
// iteration is deterministic (spec.md §3 doesn't mandate an order, but a
// deterministic one makes `show` output reproducible, which the teacher's
// own map-backed values never had to worry about).
type HashPair struct {
	Key, Value interface{}
}

// Hash is the runtime representation of a `hash[K, V]` value.
type Hash struct {
	Pairs []HashPair
}

// Trace visits every key and value a hash holds, satisfying gc.Traceable.
func (h *Hash) Trace(visit func(v interface{})) {
	for _, p := range h.Pairs {
		visit(p.Key)
		visit(p.Value)
	}
}

func (h *Hash) get(key interface{}) (interface{}, bool) {
	for _, p := range h.Pairs {
		if valuesEqual(p.Key, key) {
			return p.Value, true
		}
	}
	return nil, false
}

func (h *Hash) set(key, val interface{}) {
	for i, p := range h.Pairs {
		if valuesEqual(p.Key, key) {
			h.Pairs[i].Value = val
			return
		}
	}
	h.Pairs = append(h.Pairs, HashPair{Key: key, Value: val})
}

// Tuple is the runtime representation of a `tuple[...]` value: a fixed-size
// heterogeneous sequence.
type Tuple struct {
	Elems []interface{}
}

// Trace visits every element a tuple holds, satisfying gc.Traceable.
func (t *Tuple) Trace(visit func(v interface{})) {
	for _, e := range t.Elems {
		visit(e)
	}
}

// Instance is the runtime representation of any user-class (or bootstrap
// exception) value: a class pointer plus its property slots in declaration
// order (spec.md §3).
type Instance struct {
	Class *symtab.Class
	Props []interface{}
	// VariantFields holds extra positional fields for an enum variant
	// instance, beyond any properties the enum class itself declares
	// (lily's variants are plain data carriers, not full classes with
	// properties of their own).
	VariantFields []interface{}
}

// Trace visits every property and variant field an instance holds,
// satisfying gc.Traceable.
func (in *Instance) Trace(visit func(v interface{})) {
	for _, p := range in.Props {
		visit(p)
	}
	for _, f := range in.VariantFields {
		visit(f)
	}
}

// containerLen backs the `size` builtin method every list/hash/tuple value
// exposes (spec.md §4.5's emitter example assumes at least one such method).
func containerLen(v interface{}) (int, error) {
	switch t := v.(type) {
	case *List:
		return len(t.Elems), nil
	case *Hash:
		return len(t.Pairs), nil
	case *Tuple:
		return len(t.Elems), nil
	default:
		return 0, fmt.Errorf("size is not defined for this type")
	}
}

func valuesEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	default:
		return a == b
	}
}
