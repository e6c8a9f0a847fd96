// Package gc implements the cycle collector for gc-tagged values (spec.md
// §4.7): lists, hashes, tuples, and instances — anything whose type is
// "maybe-circular" and so can't be reclaimed by simple refcounting alone.
//
// REDESIGN FLAG followed (spec.md §9): the original C interpreter pairs
// manual refcounting with this collector because it has no other way to
// reclaim memory. Go already reclaims memory for every value through its
// own collector, so retain/release calls on every move/assign/call/return
// opcode would be pure overhead here, tracking a count nothing depends on.
// What's kept is the part spec.md §8 actually tests: an intrusive entry
// list of every gc-tagged value created, and a mark-sweep pass — rooted in
// live register slots and globals — that proves which of them are still
// reachable. Collect doesn't free memory (Go's collector owns that); it
// reports which entries are no longer reachable, so "Refcount zero: after
// executing any top-level program, all gc-entries are empty" is a
// statement this package can actually verify rather than one taken on
// faith from a retain/release count.
package gc

// Traceable is implemented by every value kind that can hold other
// gc-tagged values: the collector's mark pass calls Trace to visit them
// without needing to know their concrete type (spec.md §4.7's "per-class
// marker function").
type Traceable interface {
	Trace(visit func(v interface{}))
}

// Entry is one gc-tagged value's slot in the collector's list (spec.md
// §4.7's gc-entry).
type Entry struct {
	Value  interface{}
	marked bool
	index  int
}

const initialThreshold = 64

// Collector owns the per-VM gc-entry list and the soft threshold that
// triggers a collection (spec.md §4.7: "a collection is triggered when the
// gc-entry count exceeds a soft threshold, grown geometrically").
type Collector struct {
	entries   []*Entry
	threshold int
}

// New creates an empty Collector.
func New() *Collector {
	return &Collector{threshold: initialThreshold}
}

// Register adds v to the entry list, returning its Entry. Call this for
// every value whose type is maybe-circular at the point it's created.
func (c *Collector) Register(v interface{}) *Entry {
	e := &Entry{Value: v, index: len(c.entries)}
	c.entries = append(c.entries, e)
	return e
}

// Len reports how many entries are currently tracked.
func (c *Collector) Len() int { return len(c.entries) }

// ShouldCollect reports whether the entry count has crossed the current
// soft threshold.
func (c *Collector) ShouldCollect() bool {
	return len(c.entries) > c.threshold
}

// Collect runs one mark-sweep pass rooted at roots, removing every entry
// not reached by following Trace from them (spec.md §4.7). If the
// survivors still exceed the threshold, it is raised to twice the survivor
// count (never below initialThreshold); otherwise it is left unchanged.
func (c *Collector) Collect(roots []interface{}) {
	byValue := make(map[interface{}]*Entry, len(c.entries))
	for _, e := range c.entries {
		e.marked = false
		byValue[e.Value] = e
	}

	visited := make(map[interface{}]bool, len(c.entries))
	var mark func(v interface{})
	mark = func(v interface{}) {
		if v == nil || visited[v] {
			return
		}
		visited[v] = true
		if e, ok := byValue[v]; ok {
			e.marked = true
		}
		if t, ok := v.(Traceable); ok {
			t.Trace(mark)
		}
	}
	for _, r := range roots {
		mark(r)
	}

	live := c.entries[:0]
	for _, e := range c.entries {
		if e.marked {
			e.index = len(live)
			live = append(live, e)
		}
	}
	c.entries = live

	if c.ShouldCollect() {
		c.threshold = len(c.entries) * 2
		if c.threshold < initialThreshold {
			c.threshold = initialThreshold
		}
	}
}
