package diff

import (
	"sync"
	"testing"
)

func TestObserveSameValue(t *testing.T) {
	c := New()
	if !c.Observe(0x10, 0, 5) {
		t.Fatalf("first observation should report a change")
	}
	if c.Observe(0x10, 0, 5) {
		t.Fatalf("repeated value should not report a change")
	}
}

func TestObserveAlternating(t *testing.T) {
	c := New()
	for i, v := range []uint64{1, 2, 1} {
		if !c.Observe(0x10, 3, v) {
			t.Fatalf("observation %d (%d): expected change", i, v)
		}
	}
	if got, ok := c.Last(0x10, 3); !ok || got != 1 {
		t.Fatalf("last: got %d,%v want 1,true", got, ok)
	}
}

func TestObserveKeysAreIndependent(t *testing.T) {
	c := New()
	c.Observe(0x01, 0, 7)
	if !c.Observe(0x01, 1, 7) {
		t.Fatalf("other signal of the same frame must be a new row")
	}
	if !c.Observe(0x02, 0, 7) {
		t.Fatalf("same signal index in another frame must be a new row")
	}
	if c.Len() != 3 {
		t.Fatalf("len: got %d want 3", c.Len())
	}
}

func TestIsolatedInstances(t *testing.T) {
	a, b := New(), New()
	a.Observe(1, 0, 1)
	if !b.Observe(1, 0, 1) {
		t.Fatalf("caches must not share state")
	}
}

func TestObserveConcurrent(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				c.Observe(uint8(w), i%4, uint64(i))
			}
		}(w)
	}
	wg.Wait()
	if c.Len() != 32 {
		t.Fatalf("len: got %d want 32", c.Len())
	}
}
