package mempool

import (
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/ValentinKolb/giggle/lib/fault"
)

func TestNewValidation(t *testing.T) {
	cases := []struct {
		name           string
		size, pre, max int
	}{
		{"zero block size", 0, 0, 0},
		{"negative pre", 16, -1, 0},
		{"negative max", 16, 0, -1},
		{"max below pre", 16, 4, 2},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := New(c.size, c.pre, c.max)
			if !errors.Is(err, fault.ErrLogicFailure) {
				t.Errorf("Expected logic failure, got %v", err)
			}
		})
	}
}

func TestPreAllocation(t *testing.T) {
	p, err := New(64, 3, 5)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if p.BlockSize() != 64 {
		t.Errorf("Expected block size 64, got %d", p.BlockSize())
	}
	if p.Allocated() != 3 || p.Available() != 3 {
		t.Errorf("Expected 3 allocated and available, got %d/%d", p.Allocated(), p.Available())
	}

	b, err := p.Lease()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p.Allocated() != 3 || p.Available() != 2 {
		t.Errorf("Leasing a preallocated block must not allocate, got %d/%d", p.Allocated(), p.Available())
	}

	buf, err := b.Bytes()
	if err != nil || len(buf) != 64 {
		t.Errorf("Expected 64 byte block, got %d bytes (err %v)", len(buf), err)
	}
}

// TestExhaustion leases up to the ceiling and checks the next lease fails
func TestExhaustion(t *testing.T) {
	p, _ := New(32, 0, 2)

	b1, err := p.Lease()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p.Allocated() != 1 {
		t.Errorf("Expected allocated 1, got %d", p.Allocated())
	}
	if _, err := p.Lease(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	_, err = p.Lease()
	if !errors.Is(err, ErrExhausted) || !errors.Is(err, fault.ErrResourceExhaustion) {
		t.Fatalf("Expected exhaustion, got %v", err)
	}
	if p.Allocated() != 2 {
		t.Errorf("Failed lease must not change allocated, got %d", p.Allocated())
	}

	// release makes the block available again
	if err := p.Release(b1); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := p.Lease(); err != nil {
		t.Errorf("Expected lease after release to succeed, got %v", err)
	}
}

func TestUnbounded(t *testing.T) {
	p, _ := New(8, 0, 0)
	for i := 0; i < 500; i++ {
		if _, err := p.Lease(); err != nil {
			t.Fatalf("Unbounded pool failed at lease %d: %v", i, err)
		}
	}
	if p.Allocated() != 500 {
		t.Errorf("Expected 500 allocated, got %d", p.Allocated())
	}
}

// TestStaleHandle checks that a released handle cannot be used anymore
func TestStaleHandle(t *testing.T) {
	p, _ := New(16, 1, 1)

	b, _ := p.Lease()
	if err := p.Release(b); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if b.Valid() {
		t.Errorf("Released handle must be invalid")
	}
	if _, err := b.Bytes(); !errors.Is(err, ErrInvalidBlock) {
		t.Errorf("Expected ErrInvalidBlock, got %v", err)
	}
	if err := p.Release(b); !errors.Is(err, ErrInvalidBlock) {
		t.Errorf("Double release must fail, got %v", err)
	}

	// the slot is reused under a new generation
	b2, err := p.Lease()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !b2.Valid() || b.Valid() {
		t.Errorf("Expected only the new handle to be valid")
	}

	var zero Block
	if !zero.IsZero() || zero.Valid() {
		t.Errorf("Zero handle must be invalid")
	}

	other, _ := New(16, 1, 1)
	if err := other.Release(b2); !errors.Is(err, ErrInvalidBlock) {
		t.Errorf("Releasing into a foreign pool must fail, got %v", err)
	}
}

func TestClose(t *testing.T) {
	p, _ := New(16, 2, 0)
	leased, _ := p.Lease()

	if err := p.Close(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p.Available() != 0 || p.Allocated() != 1 {
		t.Errorf("Expected only the leased block to remain, got %d/%d", p.Allocated(), p.Available())
	}
	if _, err := p.Lease(); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}

	if err := p.Release(leased); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p.Allocated() != 0 || p.Available() != 0 {
		t.Errorf("Block released after close must be freed, got %d/%d", p.Allocated(), p.Available())
	}
}

// TestRandomSequenceInvariants runs random lease/release sequences and checks
// the capacity invariants after every step
func TestRandomSequenceInvariants(t *testing.T) {
	const max = 8
	p, _ := New(4, 2, max)
	rng := rand.New(rand.NewSource(1))
	var held []Block

	for step := 0; step < 2000; step++ {
		if rng.Intn(2) == 0 {
			b, err := p.Lease()
			if err == nil {
				held = append(held, b)
			} else if !errors.Is(err, ErrExhausted) {
				t.Fatalf("Unexpected error: %v", err)
			} else if len(held) != max {
				t.Fatalf("Exhausted with only %d of %d blocks leased", len(held), max)
			}
		} else if len(held) > 0 {
			i := rng.Intn(len(held))
			if err := p.Release(held[i]); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			held = append(held[:i], held[i+1:]...)
		}

		s := p.Stats()
		if s.Allocated > max {
			t.Fatalf("Allocated %d exceeds ceiling %d", s.Allocated, max)
		}
		if s.Available > s.Allocated {
			t.Fatalf("Available %d exceeds allocated %d", s.Available, s.Allocated)
		}
		if s.Leased != len(held) {
			t.Fatalf("Expected %d leased, stats say %d", len(held), s.Leased)
		}
	}
}

func TestConcurrentLeaseRelease(t *testing.T) {
	const max = 16
	p, _ := New(64, 0, max)

	var wg sync.WaitGroup
	for g := 0; g < 32; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				b, err := p.Lease()
				if err != nil {
					if !errors.Is(err, ErrExhausted) {
						t.Errorf("Unexpected error: %v", err)
					}
					continue
				}
				buf, _ := b.Bytes()
				buf[0] = byte(i)
				if err := p.Release(b); err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	if p.Allocated() > max {
		t.Errorf("Allocated %d exceeds ceiling %d", p.Allocated(), max)
	}
	if p.Available() != p.Allocated() {
		t.Errorf("All blocks must be free, got %d/%d", p.Available(), p.Allocated())
	}
}

func BenchmarkLeaseRelease(b *testing.B) {
	p, _ := New(4096, 1, 0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		blk, _ := p.Lease()
		_ = p.Release(blk)
	}
}
