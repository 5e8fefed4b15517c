// Package mempool implements a pool for fixed-size memory blocks.
//
// The pool speeds up allocations and reduces garbage collector pressure where
// blocks of the same size are needed over and over again, such as per-connection
// receive buffers in a server. All allocated blocks are retained for reuse. The
// number of blocks can be bounded by a ceiling, and blocks can be preallocated.
//
// Blocks are handed out as Block handles (slot index + generation), not as raw
// slices. Release bumps the generation of the slot, so every copy of a released
// handle becomes invalid: Bytes and Release on a stale handle fail with
// ErrInvalidBlock instead of silently aliasing memory that now belongs to
// another lessee.
//
// Capacity state:
//
//	BlockSize()  size of every block in bytes
//	Allocated()  blocks currently owned by the pool (free or leased)
//	Available()  blocks on the free list
//
// Invariants: Allocated() <= max whenever a ceiling is configured, and
// Available() <= Allocated() always.
//
// Exhaustion:
//
//	Lease on an empty free list with Allocated() == max fails with ErrExhausted
//	(a fault.KindResourceExhaustion error). The pool never retries; the caller
//	decides whether to reject work or wait.
//
// Blocks are never zeroed or inspected by the pool. A leased block must be
// treated as uninitialized.
//
// Usage Example:
//
//	pool, err := mempool.New(4096, 16, 128)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	block, err := pool.Lease()
//	if err != nil {
//	    return err // errors.Is(err, mempool.ErrExhausted)
//	}
//	defer pool.Release(block)
//
//	buf, _ := block.Bytes()
//	n, err := conn.Read(buf)
package mempool
