package digest

import (
	"crypto/sha1"
	"hash"
	"io"
	"sync"
)

// Hasher is a reusable SHA-1 context. It is not safe for concurrent use; get
// exclusive access through a Source.
type Hasher struct {
	h   hash.Hash
	sum []byte
}

// NewHasher returns a fresh context.
func NewHasher() *Hasher {
	return &Hasher{h: sha1.New(), sum: make([]byte, 0, Size)}
}

// Write feeds p into the running digest. It never returns an error.
func (h *Hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

// Sum finalizes the running digest and resets the context.
func (h *Hasher) Sum() Sha1 {
	var d Sha1
	h.sum = h.h.Sum(h.sum[:0])
	copy(d[:], h.sum)
	h.h.Reset()
	return d
}

// Reset discards any partial state.
func (h *Hasher) Reset() {
	h.h.Reset()
}

// Compute resets the context and digests everything read from r.
func (h *Hasher) Compute(r io.Reader) (Sha1, error) {
	h.h.Reset()
	if _, err := io.Copy(h.h, r); err != nil {
		h.h.Reset()
		return Sha1{}, err
	}
	return h.Sum(), nil
}

// Source hands out exclusive Hashers. The caller must call release exactly
// once when done with h.
type Source interface {
	Hasher() (h *Hasher, release func())
}

// Shared serializes every caller behind a single context.
type Shared struct {
	mu sync.Mutex
	h  *Hasher
}

// NewShared returns a Source backed by one context.
func NewShared() *Shared {
	return &Shared{h: NewHasher()}
}

// Hasher blocks until the context is free.
func (s *Shared) Hasher() (*Hasher, func()) {
	s.mu.Lock()
	s.h.Reset()
	return s.h, s.mu.Unlock
}

// Pool keeps independent contexts so callers can hash in parallel.
type Pool struct {
	pool sync.Pool
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{pool: sync.Pool{New: func() any { return NewHasher() }}}
}

// Hasher takes a context from the pool.
func (p *Pool) Hasher() (*Hasher, func()) {
	h := p.pool.Get().(*Hasher)
	h.Reset()
	return h, func() { p.pool.Put(h) }
}

var defaultPool = NewPool()

// ComputeWith digests r using a context borrowed from src.
func ComputeWith(src Source, r io.Reader) (Sha1, error) {
	h, release := src.Hasher()
	defer release()
	return h.Compute(r)
}

// Compute digests r using the package-level pool.
func Compute(r io.Reader) (Sha1, error) {
	return ComputeWith(defaultPool, r)
}
