package depends

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/a-peyrard/blackmagic/set"
)

type (
	// resolutionKey is one parameter whose metadata is being evaluated.
	resolutionKey struct {
		target TargetKey
		index  int
		typ    reflect.Type
	}

	tracker struct {
		visited set.Set[resolutionKey]
		stack   []resolutionKey
	}
)

func (k resolutionKey) String() string {
	return fmt.Sprintf("%s[%d] %s", k.target, k.index, k.typ)
}

func newTracker() *tracker {
	return &tracker{
		visited: set.New[resolutionKey](),
		stack:   make([]resolutionKey, 0),
	}
}

func (t *tracker) push(k resolutionKey) error {
	if t.visited.Contains(k) {
		cycle := []resolutionKey{k}
		for i := len(t.stack) - 1; i >= 0; i-- {
			cycle = append(cycle, t.stack[i])
			if t.stack[i] == k {
				break
			}
		}
		return fmt.Errorf("cycle found:\n%s", formatCycle(cycle))
	}
	t.visited.Add(k)
	t.stack = append(t.stack, k)
	return nil
}

func (t *tracker) pop() {
	if len(t.stack) == 0 {
		panic("tracker: pop from empty stack")
	}
	k := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	t.visited.Remove(k)
}

func (t *tracker) reset() {
	t.visited = set.New[resolutionKey]()
	t.stack = t.stack[:0]
}

func formatCycle(cycle []resolutionKey) string {
	var b strings.Builder
	tabs := 0
	for i := len(cycle) - 1; i >= 0; i-- {
		prefix := ""
		if i != len(cycle)-1 {
			prefix = " -> "
		}
		fmt.Fprintf(&b, "%s%s%s\n", strings.Repeat("\t", tabs), prefix, cycle[i])
		tabs++
	}
	return b.String()
}
