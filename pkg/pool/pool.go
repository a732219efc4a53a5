package pool

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// Pool is a typed object pool. It is safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	keep  func(T) bool
	stats struct {
		allocated int64
		inUse     int64
		gets      int64
	}
}

// Option configures a Pool.
type Option[T any] func(*Pool[T])

// WithKeep drops objects for which keep returns false instead of pooling
// them, e.g. buffers that grew too large.
func WithKeep[T any](keep func(T) bool) Option[T] {
	return func(p *Pool[T]) { p.keep = keep }
}

// New creates a pool. newFn allocates when the pool is empty; reset, when
// not nil, runs before an object goes back into the pool.
func New[T any](newFn func() T, reset func(T), opts ...Option[T]) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return newFn()
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Get takes an object from the pool, allocating when it is empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	atomic.AddInt64(&p.stats.gets, 1)
	return p.pool.Get().(T)
}

// Put returns obj to the pool.
func (p *Pool[T]) Put(obj T) {
	atomic.AddInt64(&p.stats.inUse, -1)
	if p.keep != nil && !p.keep(obj) {
		return
	}
	if p.reset != nil {
		p.reset(obj)
	}
	p.pool.Put(obj)
}

// Stats reports objects allocated, currently checked out, and the number
// of Get calls. gets minus allocated approximates the reuse count.
func (p *Pool[T]) Stats() (allocated, inUse, gets int64) {
	return atomic.LoadInt64(&p.stats.allocated),
		atomic.LoadInt64(&p.stats.inUse),
		atomic.LoadInt64(&p.stats.gets)
}

// MaxPooledBuffer is the largest buffer capacity NewBufferPool keeps.
const MaxPooledBuffer = 1024 * 1024

// NewBufferPool returns a pool of bytes.Buffers with initial capacity size.
// Buffers that grew beyond MaxPooledBuffer are dropped.
func NewBufferPool(size int) *Pool[*bytes.Buffer] {
	return New(
		func() *bytes.Buffer { return bytes.NewBuffer(make([]byte, 0, size)) },
		func(b *bytes.Buffer) { b.Reset() },
		WithKeep(func(b *bytes.Buffer) bool { return b.Cap() <= MaxPooledBuffer }),
	)
}

// NewSlicePool returns a pool of byte slices of length size, for use as
// copy or read buffers.
func NewSlicePool(size int) *Pool[*[]byte] {
	return New(
		func() *[]byte {
			b := make([]byte, size)
			return &b
		},
		nil,
		WithKeep(func(b *[]byte) bool { return len(*b) == size }),
	)
}
