package mempool

import (
	"fmt"

	"github.com/ValentinKolb/giggle/lib/fault"
	"github.com/ValentinKolb/giggle/lib/lock"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("mempool")

// blockReserve is the default initial capacity of the slot table
const blockReserve = 128

var (
	// ErrExhausted is returned by Lease when the ceiling is reached
	ErrExhausted = fault.New(fault.KindResourceExhaustion, "mempool.Lease", "pool exhausted")
	// ErrInvalidBlock is returned for released, foreign or zero handles
	ErrInvalidBlock = fault.New(fault.KindLogicFailure, "mempool", "invalid block handle")
	// ErrClosed is returned by Lease after Close
	ErrClosed = fault.New(fault.KindLogicFailure, "mempool.Lease", "pool closed")
)

// --------------------------------------------------------------------------
// Block handle
// --------------------------------------------------------------------------

// Block is a handle to a leased block. The zero value is an invalid handle.
type Block struct {
	pool  *Pool
	index int
	gen   uint32
}

// Bytes returns the memory of the block while the handle is valid
func (b Block) Bytes() ([]byte, error) {
	if b.pool == nil {
		return nil, ErrInvalidBlock
	}
	return b.pool.Bytes(b)
}

// Valid reports whether the handle still refers to a leased block
func (b Block) Valid() bool {
	_, err := b.Bytes()
	return err == nil
}

// IsZero reports whether b is the zero handle
func (b Block) IsZero() bool {
	return b.pool == nil
}

func (b Block) String() string {
	return fmt.Sprintf("block(%d@%d)", b.index, b.gen)
}

// --------------------------------------------------------------------------
// Pool
// --------------------------------------------------------------------------

type slot struct {
	buf    []byte
	gen    uint32
	leased bool
}

// Pool is a fixed-block-size memory pool. Create it with New.
type Pool struct {
	mu        lock.Mutex
	blockSize int
	maxAlloc  int // 0 = unbounded
	allocated int
	slots     []slot
	free      []int // indices into slots
	closed    bool
}

// Stats is a snapshot of the capacity state
type Stats struct {
	BlockSize int `json:"block_size"`
	MaxAlloc  int `json:"max_alloc"`
	Allocated int `json:"allocated"`
	Available int `json:"available"`
	Leased    int `json:"leased"`
}

// New creates a pool for blocks of blockSize bytes. preAlloc blocks are
// allocated right away. maxAlloc bounds the number of blocks (0 = unbounded)
// and must not be smaller than preAlloc.
func New(blockSize, preAlloc, maxAlloc int) (*Pool, error) {
	if blockSize <= 0 {
		return nil, fault.Newf(fault.KindLogicFailure, "mempool.New", "block size must be positive, got %d", blockSize)
	}
	if preAlloc < 0 || maxAlloc < 0 {
		return nil, fault.Newf(fault.KindLogicFailure, "mempool.New", "negative block count (pre=%d, max=%d)", preAlloc, maxAlloc)
	}
	if maxAlloc != 0 && maxAlloc < preAlloc {
		return nil, fault.Newf(fault.KindLogicFailure, "mempool.New", "max blocks %d smaller than preallocated blocks %d", maxAlloc, preAlloc)
	}

	reserve := blockReserve
	if preAlloc > reserve {
		reserve = preAlloc
	}
	if maxAlloc > 0 && maxAlloc < reserve {
		reserve = maxAlloc
	}

	p := &Pool{
		blockSize: blockSize,
		maxAlloc:  maxAlloc,
		allocated: preAlloc,
		slots:     make([]slot, preAlloc, reserve),
		free:      make([]int, preAlloc, reserve),
	}
	for i := 0; i < preAlloc; i++ {
		p.slots[i].buf = make([]byte, blockSize)
		// lease from the back, hand out low indices first
		p.free[i] = preAlloc - 1 - i
	}

	Logger.Debugf("created pool (block size %d, preallocated %d, max %d)", blockSize, preAlloc, maxAlloc)
	return p, nil
}

// Lease returns a free block, allocating a new one if the ceiling allows it.
// It fails with ErrExhausted if all blocks are leased and the ceiling is reached.
func (p *Pool) Lease() (Block, error) {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return Block{}, ErrClosed
	}

	// Case free block available -> reuse
	if n := len(p.free); n > 0 {
		index := p.free[n-1]
		p.free = p.free[:n-1]
		s := &p.slots[index]
		s.leased = true
		b := Block{pool: p, index: index, gen: s.gen}
		p.mu.Unlock()
		return b, nil
	}

	// Case ceiling reached -> exhausted
	if p.maxAlloc != 0 && p.allocated >= p.maxAlloc {
		p.mu.Unlock()
		return Block{}, ErrExhausted
	}

	// Case new block: reserve the allocation, then allocate outside the lock
	p.allocated++
	p.mu.Unlock()

	buf := make([]byte, p.blockSize)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.slots = append(p.slots, slot{buf: buf, leased: true})
	index := len(p.slots) - 1
	return Block{pool: p, index: index, gen: 0}, nil
}

// Release returns a block to the pool and invalidates the handle.
// After Close the block is freed instead of being kept.
func (p *Pool) Release(b Block) error {
	if b.pool != p {
		return ErrInvalidBlock
	}

	defer lock.Scoped(&p.mu)()

	s, err := p.slotOf(b)
	if err != nil {
		return err
	}

	s.gen++
	s.leased = false

	if p.closed {
		s.buf = nil
		p.allocated--
		return nil
	}

	p.free = append(p.free, b.index)
	return nil
}

// Bytes returns the memory of a leased block
func (p *Pool) Bytes(b Block) ([]byte, error) {
	if b.pool != p {
		return nil, ErrInvalidBlock
	}

	defer lock.Scoped(&p.mu)()

	s, err := p.slotOf(b)
	if err != nil {
		return nil, err
	}
	return s.buf, nil
}

// slotOf returns the slot of a leased, current handle. Caller holds p.mu.
func (p *Pool) slotOf(b Block) (*slot, error) {
	if b.index < 0 || b.index >= len(p.slots) {
		return nil, ErrInvalidBlock
	}
	s := &p.slots[b.index]
	if !s.leased || s.gen != b.gen {
		return nil, ErrInvalidBlock
	}
	return s, nil
}

// BlockSize returns the size of a block in bytes
func (p *Pool) BlockSize() int {
	return p.blockSize
}

// Allocated returns the number of blocks owned by the pool (free or leased)
func (p *Pool) Allocated() int {
	defer lock.Scoped(&p.mu)()
	return p.allocated
}

// Available returns the number of blocks on the free list
func (p *Pool) Available() int {
	defer lock.Scoped(&p.mu)()
	return len(p.free)
}

// Stats returns a consistent snapshot of the capacity state
func (p *Pool) Stats() Stats {
	defer lock.Scoped(&p.mu)()
	return Stats{
		BlockSize: p.blockSize,
		MaxAlloc:  p.maxAlloc,
		Allocated: p.allocated,
		Available: len(p.free),
		Leased:    p.allocated - len(p.free),
	}
}

// Close frees all blocks on the free list. Blocks still leased are freed when
// they are released. Lease fails after Close.
func (p *Pool) Close() error {
	defer lock.Scoped(&p.mu)()

	if p.closed {
		return nil
	}
	p.closed = true

	for _, index := range p.free {
		p.slots[index].buf = nil
	}
	p.allocated -= len(p.free)
	p.free = nil

	Logger.Debugf("closed pool (%d blocks still leased)", p.allocated)
	return nil
}
