package hook

import (
	"sync"
)

// chain is an immutable snapshot of a decorator list. Mutations build a new
// snapshot; dispatches keep iterating the one they loaded.
type chain struct {
	nodes  []Decorator
	once   sync.Once
	layout Layout
}

var emptyChain = &chain{}

func (c *chain) Layout() Layout {
	c.once.Do(func() {
		c.layout = buildLayout(c.nodes)
	})
	return c.layout
}

func (c *chain) index(node Decorator) int {
	for i, n := range c.nodes {
		if n == node {
			return i
		}
	}
	return -1
}

func (c *chain) with(node Decorator) *chain {
	nodes := make([]Decorator, len(c.nodes)+1)
	copy(nodes, c.nodes)
	nodes[len(c.nodes)] = node
	return &chain{nodes: nodes}
}

func (c *chain) without(pos int) *chain {
	if len(c.nodes) == 1 {
		return emptyChain
	}
	nodes := make([]Decorator, 0, len(c.nodes)-1)
	nodes = append(nodes, c.nodes[:pos]...)
	nodes = append(nodes, c.nodes[pos+1:]...)
	return &chain{nodes: nodes}
}
