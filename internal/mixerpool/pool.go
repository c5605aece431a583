// Package mixerpool implements the mixer's entropy-pool state machine:
// a fixed 64-byte register absorbing harvester digests and, on demand,
// yielding a 64-byte seed via an output/state split (spec §3, §4.1).
package mixerpool

import (
	"crypto/sha512"
	"fmt"
	"sync"
)

const (
	// Size is the fixed width of the entropy pool, in bytes (512 bits).
	Size = 64

	// DigestSize is the expected width of an absorbed harvester digest.
	DigestSize = 32

	// MinSources is the number of distinct digests the pool must absorb
	// before it is willing to mint a seed.
	MinSources = 3
)

// Domain-separation strings for the output/state split. Altering these
// changes the wire contract (spec §9) and must never be done lightly.
const (
	domainSeed  = "CSPRNG-SEED-V1"
	domainState = "CSPRNG-POOL-V1"
)

// Pool is the mixer's singleton entropy register. The zero value is
// ready to use: P starts at all zero bytes and nSources at zero.
type Pool struct {
	mu       sync.Mutex
	p        [Size]byte
	nSources uint32
}

// New returns a freshly zeroed entropy pool.
func New() *Pool {
	return &Pool{}
}

// Absorb mixes a 32-byte digest into the pool under the pool lock and
// advances the saturating source counter. It fails the mutation (pool
// and nSources are left unchanged) when the digest is not exactly 32
// bytes.
func (p *Pool) Absorb(digest []byte) error {
	if len(digest) != DigestSize {
		return fmt.Errorf("mixerpool: digest must be %d bytes, got %d", DigestSize, len(digest))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	h := sha512.New()
	h.Write(p.p[:])
	h.Write(digest)
	copy(p.p[:], h.Sum(nil))

	if p.nSources < MinSources {
		p.nSources++
	}
	return nil
}

// EmitSeed performs the output/state split: it derives a 64-byte seed
// from the current pool under one domain-separation string, then
// re-stirs the pool under a different one, so the returned seed is never
// the pool's state at any instant visible to a caller. ready is false
// (and seed is the zero value) when fewer than MinSources digests have
// been absorbed; the pool is left untouched in that case.
func (p *Pool) EmitSeed() (seed [Size]byte, ready bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.nSources < MinSources {
		return seed, false
	}

	outH := sha512.New()
	outH.Write(p.p[:])
	outH.Write([]byte(domainSeed))
	copy(seed[:], outH.Sum(nil))

	stateH := sha512.New()
	stateH.Write(p.p[:])
	stateH.Write([]byte(domainState))
	copy(p.p[:], stateH.Sum(nil))

	return seed, true
}

// Health reports the current readiness and source count without
// mutating the pool.
func (p *Pool) Health() (ready bool, nSources uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nSources >= MinSources, p.nSources
}
