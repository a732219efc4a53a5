// Package pool provides typed object pools for the buffers and readers the
// tap reuses while encoding messages and reading export files.
//
// Pool[T] builds on sync.Pool and adds a reset hook and usage counters:
//
//	buffers := pool.New(
//	    func() *bytes.Buffer { return new(bytes.Buffer) },
//	    func(b *bytes.Buffer) { b.Reset() },
//	)
//	buf := buffers.Get()
//	defer buffers.Put(buf)
//
// Objects returned with Put must not be used again by the caller.
package pool
