// Package diff remembers the last raw value rendered for every signal so a
// live view only redraws what changed.
package diff

import "sync"

// Key identifies one signal row: the frame identifier and the signal's index
// within the frame's placements.
type Key struct {
	Frame  uint8
	Signal int
}

// Cache maps signal rows to their last observed raw value. The zero value is
// not usable; call New. A Cache is safe for concurrent use.
type Cache struct {
	mu   sync.Mutex
	last map[Key]uint64
}

func New() *Cache {
	return &Cache{last: make(map[Key]uint64)}
}

// Observe records raw for the row and reports whether it differs from the
// previous observation. The first observation of a row always reports true.
func (c *Cache) Observe(frameID uint8, signal int, raw uint64) bool {
	k := Key{Frame: frameID, Signal: signal}
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.last[k]; ok && prev == raw {
		return false
	}
	c.last[k] = raw
	return true
}

// Last returns the stored value of a row.
func (c *Cache) Last(frameID uint8, signal int) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.last[Key{Frame: frameID, Signal: signal}]
	return v, ok
}

// Len returns the number of rows seen so far.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.last)
}
