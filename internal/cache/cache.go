package cache

import (
	"context"
	"sync"
	"sync/atomic"
)

// Snapshot is a lock-free, read-optimized container
// holding any immutable value that may be replaced at any time.
type Snapshot[T any] struct{ v atomic.Pointer[T] }

// Load returns the stored value and whether one was ever stored.
func (s *Snapshot[T]) Load() (T, bool) {
	p := s.v.Load()
	if p == nil {
		var z T
		return z, false
	}
	return *p, true
}

// Store atomically swaps in the new value.
func (s *Snapshot[T]) Store(v T) {
	s.v.Store(&v)
}

// Clear drops the stored value.
func (s *Snapshot[T]) Clear() {
	s.v.Store(nil)
}

// Cell is a single-assignment broadcast value. The first Set wins,
// every later Set is a no-op, and all waiters observe the same value.
// The zero value is ready to use.
type Cell[T any] struct {
	set  atomic.Bool
	v    T
	once sync.Once
	done chan struct{}
}

func NewCell[T any]() *Cell[T] {
	return &Cell[T]{}
}

func (c *Cell[T]) ch() chan struct{} {
	c.once.Do(func() { c.done = make(chan struct{}) })
	return c.done
}

// Set commits v if the cell is still empty. It reports whether this call won.
func (c *Cell[T]) Set(v T) bool {
	if !c.set.CompareAndSwap(false, true) {
		return false
	}
	c.v = v
	close(c.ch())
	return true
}

// Load returns the committed value without blocking.
func (c *Cell[T]) Load() (T, bool) {
	select {
	case <-c.ch():
		return c.v, true
	default:
		var z T
		return z, false
	}
}

// Wait blocks until a value is committed or ctx is done.
func (c *Cell[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-c.ch():
		return c.v, nil
	case <-ctx.Done():
		var z T
		return z, ctx.Err()
	}
}
