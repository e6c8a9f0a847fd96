package gc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// node is a minimal Traceable stub standing in for vm.List/Hash/Instance.
type node struct {
	next *node
}

func (n *node) Trace(visit func(v interface{})) {
	if n.next != nil {
		visit(n.next)
	}
}

func TestCollectSweepsUnreachable(t *testing.T) {
	c := New()
	live := &node{}
	c.Register(live)
	dead := &node{}
	c.Register(dead)

	c.Collect([]interface{}{live})

	require.Equal(t, 1, c.Len())
	require.Equal(t, live, c.entries[0].Value)
}

func TestCollectFollowsTraceChain(t *testing.T) {
	c := New()
	tail := &node{}
	head := &node{next: tail}
	c.Register(head)
	c.Register(tail)

	c.Collect([]interface{}{head})

	require.Equal(t, 2, c.Len())
}

func TestCollectHandlesCycles(t *testing.T) {
	c := New()
	a := &node{}
	b := &node{next: a}
	a.next = b
	c.Register(a)
	c.Register(b)

	// Neither a nor b is reachable from any root: a cycle between them
	// must not keep them alive, unlike naive refcounting would.
	c.Collect(nil)

	require.Equal(t, 0, c.Len())
}

func TestShouldCollectTracksThreshold(t *testing.T) {
	c := New()
	require.False(t, c.ShouldCollect())
	for i := 0; i < initialThreshold+1; i++ {
		c.Register(&node{})
	}
	require.True(t, c.ShouldCollect())
}
