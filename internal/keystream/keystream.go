// Package keystream implements the generator's seeded AES-256-CTR
// keystream, its rekey discipline, and the mixer round-trip used to
// (re)seed it (spec §3, §4.2.1, §4.2.2).
package keystream

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"sync"
)

// RekeyThreshold is the cumulative byte count after which the next
// generate call must rekey before producing further output (100 MiB).
const RekeyThreshold = 100 * 1024 * 1024

// SeedFetcher fetches a fresh 64-byte seed from the mixer, applying
// whatever retry policy the caller configures (spec §4.2.2). It returns
// an error if the retry budget is exhausted.
type SeedFetcher interface {
	FetchSeed(ctx context.Context) ([64]byte, error)
}

// Keystream is the generator's single process-wide keystream state. The
// zero value is not ready for use; construct with New.
type Keystream struct {
	fetch SeedFetcher

	mu           sync.Mutex
	seed         [64]byte
	key          [32]byte
	nonce        [16]byte
	stream       cipher.Stream
	bytesEmitted uint64
	threshold    uint64
	ready        bool
}

// New returns an unseeded Keystream bound to fetch for rekeying.
func New(fetch SeedFetcher) *Keystream {
	return &Keystream{fetch: fetch, threshold: RekeyThreshold}
}

// deriveKeyNonce implements the spec's derivation: key = H256(seed),
// nonce = H512(seed)[32:48].
func deriveKeyNonce(seed [64]byte) (key [32]byte, nonce [16]byte) {
	key = sha256.Sum256(seed[:])
	full := sha512.Sum512(seed[:])
	copy(nonce[:], full[32:48])
	return key, nonce
}

func newStream(key [32]byte, nonce [16]byte) (cipher.Stream, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("keystream: new AES cipher: %w", err)
	}
	// CTR mode needs a full-block IV; the 16-byte nonce is exactly
	// aes.BlockSize, matching the spec's derivation width.
	return cipher.NewCTR(block, nonce[:]), nil
}

// Seed installs seed as the keystream's current epoch, deriving key and
// nonce and resetting bytesEmitted. This is the atomic replacement used
// by both initial seeding and rekey.
func (k *Keystream) Seed(seed [64]byte) error {
	key, nonce := deriveKeyNonce(seed)
	stream, err := newStream(key, nonce)
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.seed, k.key, k.nonce = seed, key, nonce
	k.stream = stream
	k.bytesEmitted = 0
	k.ready = true
	return nil
}

// Initialize fetches an initial seed through the SeedFetcher, whose own
// retry policy applies (spec §4.2.2), and installs it. It makes one
// FetchSeed call and returns its error when the fetcher gives up or ctx
// is done; cmd/generator runs it on a background goroutine and calls it
// again until it succeeds.
func (k *Keystream) Initialize(ctx context.Context) error {
	seed, err := k.fetch.FetchSeed(ctx)
	if err != nil {
		return fmt.Errorf("keystream: initialize: %w", err)
	}
	return k.Seed(seed)
}

// Ready reports whether the keystream has been seeded at least once.
func (k *Keystream) Ready() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.ready
}

// rekeyLocked fetches a fresh seed and replaces the keystream state.
// Callers must hold k.mu and release it only after this returns, since
// the rekey path is intentionally part of the same critical section as
// generate (spec §5): it blocks new keystream reads while a fresh seed
// is fetched, preserving the invariant that no bytes beyond the
// threshold are emitted under the stale key.
func (k *Keystream) rekeyLocked(ctx context.Context) error {
	seed, err := k.fetch.FetchSeed(ctx)
	if err != nil {
		return fmt.Errorf("keystream: rekey: %w", err)
	}
	key, nonce := deriveKeyNonce(seed)
	stream, err := newStream(key, nonce)
	if err != nil {
		return err
	}
	k.seed, k.key, k.nonce = seed, key, nonce
	k.stream = stream
	k.bytesEmitted = 0
	return nil
}

// Generate produces exactly n bytes by advancing the counter-mode
// cipher, rekeying first if the threshold has been reached. Concurrent
// calls are serialized by k.mu so the returned bytes for any one call
// are a contiguous prefix of the keystream starting at bytesEmitted
// (spec §5).
func (k *Keystream) Generate(ctx context.Context, n int) ([]byte, error) {
	_, data, err := k.generateWithOffset(ctx, n)
	return data, err
}

// generateWithOffset is Generate's implementation, additionally
// reporting the byte offset the returned data starts at within the
// current epoch's keystream. The offset is only meaningful relative to
// other calls against the same epoch; it exists so tests can verify
// property (10) — concurrent callers each claim a disjoint, contiguous
// slice of one linear stream — without racing the internal lock.
func (k *Keystream) generateWithOffset(ctx context.Context, n int) (offset uint64, data []byte, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.ready {
		return 0, nil, fmt.Errorf("keystream: not ready")
	}

	if k.bytesEmitted >= k.threshold {
		if err := k.rekeyLocked(ctx); err != nil {
			return 0, nil, fmt.Errorf("keystream: rekey required but failed: %w", err)
		}
	}

	offset = k.bytesEmitted
	out := make([]byte, n)
	k.stream.XORKeyStream(out, out)
	k.bytesEmitted += uint64(n)
	return offset, out, nil
}

// BytesEmitted returns the number of bytes produced since the last
// rekey. Exposed for tests and metrics.
func (k *Keystream) BytesEmitted() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.bytesEmitted
}
