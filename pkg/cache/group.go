// Package cache de-duplicates keyed reads: concurrent callers share one in-flight call and
// its result until the dependency generation is invalidated.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
)

// ErrSuperseded is returned to callers whose request was dropped by Invalidate.
var ErrSuperseded = errors.New("request superseded by dependency change")

// KeyOf serializes a read's identity. Addresses are compared case-insensitively.
func KeyOf(address, method string, args ...any) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(address))
	b.WriteByte('|')
	b.WriteString(method)
	for _, a := range args {
		b.WriteByte('|')
		bz, err := json.Marshal(a)
		if err != nil {
			bz = []byte(fmt.Sprintf("%v", a))
		}
		b.Write(bz)
	}
	return b.String()
}

type entry[V any] struct {
	done  chan struct{}
	value V
	err   error
}

type generation[V any] struct {
	id      uint64
	ctx     context.Context
	cancel  context.CancelFunc
	entries *xsync.Map[string, *entry[V]]
}

// Group is a keyed request cache. The zero value is not usable; use NewGroup.
type Group[V any] struct {
	current atomic.Pointer[generation[V]]
	calls   atomic.Int64
}

func NewGroup[V any]() *Group[V] {
	g := &Group[V]{}
	g.current.Store(newGeneration[V](1))
	return g
}

func newGeneration[V any](id uint64) *generation[V] {
	ctx, cancel := context.WithCancel(context.Background())
	return &generation[V]{
		id:      id,
		ctx:     ctx,
		cancel:  cancel,
		entries: xsync.NewMap[string, *entry[V]](),
	}
}

// Do returns the cached value for key, joins the in-flight call for key, or starts fn.
// fn runs on a context owned by the current generation, not by the caller, so a caller
// giving up does not fail the other waiters. Errors are not cached.
func (g *Group[V]) Do(ctx context.Context, key string, fn func(ctx context.Context) (V, error)) (V, error) {
	gen := g.current.Load()
	e := &entry[V]{done: make(chan struct{})}
	actual, loaded := gen.entries.LoadOrStore(key, e)
	if !loaded {
		g.calls.Add(1)
		go g.run(gen, key, e, fn)
	}

	var zero V
	select {
	case <-actual.done:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	if g.current.Load() != gen {
		return zero, ErrSuperseded
	}
	return actual.value, actual.err
}

func (g *Group[V]) run(gen *generation[V], key string, e *entry[V], fn func(ctx context.Context) (V, error)) {
	defer close(e.done)
	e.value, e.err = fn(gen.ctx)
	if e.err != nil {
		if cur, ok := gen.entries.Load(key); ok && cur == e {
			gen.entries.Delete(key)
		}
	}
}

// Invalidate starts a new generation. In-flight calls of the old one are cancelled and
// their results are never served.
func (g *Group[V]) Invalidate() {
	for {
		old := g.current.Load()
		next := newGeneration[V](old.id + 1)
		if g.current.CompareAndSwap(old, next) {
			old.cancel()
			return
		}
		next.cancel()
	}
}

// Generation identifies the current dependency generation.
func (g *Group[V]) Generation() uint64 {
	return g.current.Load().id
}

// Len is the number of cached or in-flight keys of the current generation.
func (g *Group[V]) Len() int {
	return g.current.Load().entries.Size()
}

// Calls counts how many times a fn was actually started.
func (g *Group[V]) Calls() int64 {
	return g.calls.Load()
}
