// Package workspace pools scratch objects such as mesh builders so hot paths stop
// allocating once the pool is warm.
package workspace

import (
	"fmt"
	"sync"

	"github.com/memmaker/sandvox/engine/util"
)

// Workspaces is a mutex-guarded free list. Get never fails: an empty free list falls
// back to constructing a new instance. Instances are never evicted.
type Workspaces[T any] struct {
	mu      sync.Mutex
	free    []*T
	newFunc func() *T
	reset   func(*T)

	created  int
	acquired int
	name     string
}

// New creates a pool. newFunc constructs a fresh instance; reset, if not nil, runs on
// every instance handed out so the holder always starts from a clean state.
func New[T any](name string, newFunc func() *T, reset func(*T)) *Workspaces[T] {
	if newFunc == nil {
		newFunc = func() *T { return new(T) }
	}
	return &Workspaces[T]{
		name:    name,
		newFunc: newFunc,
		reset:   reset,
	}
}

// Guard gives exclusive use of one pooled instance until Release.
type Guard[T any] struct {
	pool  *Workspaces[T]
	value *T
}

func (w *Workspaces[T]) Get() *Guard[T] {
	w.mu.Lock()
	w.acquired++
	var value *T
	if n := len(w.free); n > 0 {
		value = w.free[n-1]
		w.free[n-1] = nil
		w.free = w.free[:n-1]
	} else {
		w.created++
		created := w.created
		w.mu.Unlock()
		util.LogWorkspaceDebug(fmt.Sprintf("[Workspace] %s: constructing instance #%d", w.name, created))
		value = w.newFunc()
		w.mu.Lock()
	}
	w.mu.Unlock()

	if w.reset != nil {
		w.reset(value)
	}
	return &Guard[T]{pool: w, value: value}
}

// With runs fn with a pooled instance and returns it to the pool on every exit path,
// including a panic inside fn.
func (w *Workspaces[T]) With(fn func(value *T) error) error {
	guard := w.Get()
	defer guard.Release()
	return fn(guard.Value())
}

func (w *Workspaces[T]) put(value *T) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.free = append(w.free, value)
}

func (w *Workspaces[T]) Info() Info {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Info{
		Name:     w.name,
		Created:  w.created,
		Free:     len(w.free),
		Acquired: w.acquired,
	}
}

type Info struct {
	Name     string
	Created  int
	Free     int
	Acquired int
}

func (i Info) InUse() int {
	return i.Created - i.Free
}

// Value panics after Release; a released instance may already belong to another holder.
func (g *Guard[T]) Value() *T {
	if g.value == nil {
		panic("failed to access workspace: guard already released")
	}
	return g.value
}

// Release returns the instance to the pool. Calling it again is a no-op.
func (g *Guard[T]) Release() {
	if g.value == nil {
		return
	}
	value := g.value
	g.value = nil
	g.pool.put(value)
}
