package keystream

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
)

type fixedFetcher struct {
	seed    [64]byte
	calls   int
	mu      sync.Mutex
	failN   int // fail the first failN calls
}

func (f *fixedFetcher) FetchSeed(ctx context.Context) ([64]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failN {
		return [64]byte{}, fmt.Errorf("simulated upstream failure")
	}
	return f.seed, nil
}

func (f *fixedFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func seedOf(b byte) [64]byte {
	var s [64]byte
	for i := range s {
		s[i] = b
	}
	return s
}

func TestDeterminismUnderFixedSeed(t *testing.T) {
	seed := seedOf(0x42)

	ks1 := New(&fixedFetcher{seed: seed})
	if err := ks1.Seed(seed); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	ctx := context.Background()
	a, err := ks1.Generate(ctx, 10)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	b, err := ks1.Generate(ctx, 20)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	combinedFromSplit := append(append([]byte{}, a...), b...)

	ks2 := New(&fixedFetcher{seed: seed})
	if err := ks2.Seed(seed); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	single, err := ks2.Generate(ctx, 30)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !bytes.Equal(combinedFromSplit, single) {
		t.Errorf("split calls must equal one combined call:\n split %x\n single %x", combinedFromSplit, single)
	}
}

func TestRekeyTriggersOnThreshold(t *testing.T) {
	// Scenario E: configure a small REKEY_THRESHOLD and stream past it;
	// exactly one fetch call must occur between the first and second
	// "kilobyte" (here, between the first and second chunk), and
	// bytesEmitted must reset to match the size of the triggering chunk.
	seed1 := seedOf(0x01)
	seed2 := seedOf(0x02)
	fetcher := &fixedFetcher{seed: seed1}
	ks := New(fetcher)
	ks.threshold = 1024
	if err := ks.Seed(seed1); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	ctx := context.Background()
	if _, err := ks.Generate(ctx, 1024); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if calls := fetcher.count(); calls != 0 {
		t.Fatalf("expected no fetch before threshold is reached, got %d calls", calls)
	}

	fetcher.seed = seed2
	chunk, err := ks.Generate(ctx, 512)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if calls := fetcher.count(); calls != 1 {
		t.Errorf("expected exactly one fetch call once the threshold is crossed, got %d", calls)
	}
	if got := ks.BytesEmitted(); got != uint64(len(chunk)) {
		t.Errorf("expected bytesEmitted to reset to the triggering emission's size (%d), got %d", len(chunk), got)
	}
}

func TestGenerateFailsWhenRekeyExhausted(t *testing.T) {
	seed := seedOf(0x09)
	fetcher := &fixedFetcher{seed: seed}
	ks := New(fetcher)
	if err := ks.Seed(seed); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	// Manually cross the threshold by seeding then forcing bytesEmitted
	// via repeated small generates is too slow at 100MiB; instead test
	// the failure path of rekeyLocked directly by making the fetcher
	// fail and invoking rekey through Initialize on a fresh instance.
	failing := &fixedFetcher{failN: 1}
	fresh := New(failing)
	if err := fresh.Initialize(context.Background()); err == nil {
		t.Error("expected Initialize to fail when the fetcher fails")
	}
	if fresh.Ready() {
		t.Error("expected keystream to remain not-ready after failed initialize")
	}
}

func TestGenerateNotReadyBeforeSeed(t *testing.T) {
	ks := New(&fixedFetcher{})
	if _, err := ks.Generate(context.Background(), 4); err == nil {
		t.Error("expected error generating before any seed is installed")
	}
}

func TestConcurrentGenerateIsPrefixConsistent(t *testing.T) {
	seed := seedOf(0x7A)
	ks := New(&fixedFetcher{seed: seed})
	if err := ks.Seed(seed); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	type claim struct {
		offset uint64
		data   []byte
	}

	var mu sync.Mutex
	var claims []claim
	var wg sync.WaitGroup
	ctx := context.Background()

	sizes := []int{5, 11, 3, 20, 7, 16, 2, 9}
	total := 0
	for _, n := range sizes {
		total += n
	}

	for _, n := range sizes {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			off, data, err := ks.generateWithOffset(ctx, n)
			if err != nil {
				t.Errorf("Generate failed: %v", err)
				return
			}
			mu.Lock()
			claims = append(claims, claim{offset: off, data: data})
			mu.Unlock()
		}(n)
	}
	wg.Wait()

	sort.Slice(claims, func(i, j int) bool { return claims[i].offset < claims[j].offset })

	var reconstructed []byte
	seen := make(map[uint64]bool)
	for _, c := range claims {
		if seen[c.offset] {
			t.Fatalf("duplicate claimed offset %d", c.offset)
		}
		seen[c.offset] = true
		reconstructed = append(reconstructed, c.data...)
	}

	ref := New(&fixedFetcher{seed: seed})
	if err := ref.Seed(seed); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	want, err := ref.Generate(ctx, total)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !bytes.Equal(reconstructed, want) {
		t.Error("concurrent generate calls did not reconstruct a contiguous keystream prefix")
	}
}
