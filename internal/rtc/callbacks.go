package rtc

import "sync"

// callbacks is a multi-subscriber registry. Registration returns an
// unregister func; emission runs in registration order.
type callbacks[T any] struct {
	mu   sync.Mutex
	next uint64
	ids  []uint64
	fns  map[uint64]func(T)
}

func (c *callbacks[T]) add(fn func(T)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fns == nil {
		c.fns = make(map[uint64]func(T))
	}
	c.next++
	id := c.next
	c.ids = append(c.ids, id)
	c.fns[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.fns, id)
		for i, v := range c.ids {
			if v == id {
				c.ids = append(c.ids[:i:i], c.ids[i+1:]...)
				return
			}
		}
	}
}

func (c *callbacks[T]) emit(v T) {
	c.mu.Lock()
	fns := make([]func(T), 0, len(c.ids))
	for _, id := range c.ids {
		if fn, ok := c.fns[id]; ok {
			fns = append(fns, fn)
		}
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

func (c *callbacks[T]) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = nil
	c.fns = nil
}
