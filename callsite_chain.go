package carapace

import (
	"reflect"
	"sort"
)

// callSiteChain tracks the identifiers currently being built so that a
// constructor which (transitively) needs its own service is rejected instead
// of recursing forever.
type callSiteChain struct {
	visiting map[ServiceIdentifier]chainItem
}

type chainItem struct {
	order          int
	implementation reflect.Type
}

func newCallSiteChain() *callSiteChain {
	return &callSiteChain{visiting: make(map[ServiceIdentifier]chainItem)}
}

// checkCircularDependency fails when id is already on the chain.
func (c *callSiteChain) checkCircularDependency(id ServiceIdentifier) error {
	if _, ok := c.visiting[id]; ok {
		return ErrCircularDependency(c.path(id))
	}

	return nil
}

// add pushes id onto the chain.
func (c *callSiteChain) add(id ServiceIdentifier, implementation reflect.Type) {
	c.visiting[id] = chainItem{order: len(c.visiting), implementation: implementation}
}

// remove pops id from the chain.
func (c *callSiteChain) remove(id ServiceIdentifier) {
	delete(c.visiting, id)
}

// path renders the chain in visiting order, closed by the revisited identifier.
func (c *callSiteChain) path(id ServiceIdentifier) []string {
	type entry struct {
		id   ServiceIdentifier
		item chainItem
	}

	entries := make([]entry, 0, len(c.visiting))
	for k, v := range c.visiting {
		entries = append(entries, entry{id: k, item: v})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].item.order < entries[j].item.order
	})

	path := make([]string, 0, len(entries)+1)
	for _, e := range entries {
		name := e.id.String()
		if e.item.implementation != nil && e.item.implementation != e.id.ServiceType {
			name += "(" + e.item.implementation.String() + ")"
		}
		path = append(path, name)
	}

	return append(path, id.String())
}
