package mixerpool

import (
	"bytes"
	"crypto/sha512"
	"testing"
)

func digest(b byte) []byte {
	d := make([]byte, DigestSize)
	for i := range d {
		d[i] = b
	}
	return d
}

func TestReadinessMonotoneAndSaturates(t *testing.T) {
	p := New()

	if ready, n := p.Health(); ready || n != 0 {
		t.Fatalf("expected not ready with n=0, got ready=%v n=%d", ready, n)
	}

	for i, want := range []uint32{1, 2, 3} {
		if err := p.Absorb(digest(byte(i + 1))); err != nil {
			t.Fatalf("Absorb failed: %v", err)
		}
		ready, n := p.Health()
		if n != want {
			t.Fatalf("after absorb %d: want n=%d, got %d", i+1, want, n)
		}
		if want < MinSources && ready {
			t.Fatalf("after absorb %d: expected not ready", i+1)
		}
	}

	ready, n := p.Health()
	if !ready || n != MinSources {
		t.Fatalf("expected ready with n=%d, got ready=%v n=%d", MinSources, ready, n)
	}

	// Further absorbs must not decrease or exceed MinSources.
	if err := p.Absorb(digest(9)); err != nil {
		t.Fatalf("Absorb failed: %v", err)
	}
	if ready, n := p.Health(); !ready || n != MinSources {
		t.Fatalf("saturation violated: ready=%v n=%d", ready, n)
	}
}

func TestAbsorbRejectsWrongLength(t *testing.T) {
	p := New()
	before, _ := p.Health()

	if err := p.Absorb(make([]byte, 31)); err == nil {
		t.Error("expected error for 31-byte digest")
	}
	if err := p.Absorb(make([]byte, 33)); err == nil {
		t.Error("expected error for 33-byte digest")
	}

	after, n := p.Health()
	if after != before || n != 0 {
		t.Error("pool state must be unchanged after a rejected absorb")
	}
}

func TestEmitSeedNotReady(t *testing.T) {
	p := New()
	_ = p.Absorb(digest(1))

	if _, ready := p.EmitSeed(); ready {
		t.Error("expected not ready before MinSources digests absorbed")
	}
}

func TestSeedDistinctnessAndOutputStateSplit(t *testing.T) {
	p := New()
	for i := byte(1); i <= MinSources; i++ {
		_ = p.Absorb(digest(i))
	}

	seed1, ready1 := p.EmitSeed()
	if !ready1 {
		t.Fatal("expected ready after MinSources absorbs")
	}
	seed2, ready2 := p.EmitSeed()
	if !ready2 {
		t.Fatal("expected ready on second emit")
	}

	if bytes.Equal(seed1[:], seed2[:]) {
		t.Error("two consecutive emit_seed calls with no intervening absorb must differ")
	}
}

func TestScenarioAColdStart(t *testing.T) {
	p := New()
	d1, d2, d3 := digest(0xAA), digest(0xBB), digest(0xCC)

	_ = p.Absorb(d1)
	if ready, n := p.Health(); ready || n != 1 {
		t.Fatalf("after d1: want seeding(1/3), got ready=%v n=%d", ready, n)
	}
	_ = p.Absorb(d2)
	if ready, n := p.Health(); ready || n != 2 {
		t.Fatalf("after d2: want seeding(2/3), got ready=%v n=%d", ready, n)
	}
	_ = p.Absorb(d3)
	if ready, n := p.Health(); !ready || n != 3 {
		t.Fatalf("after d3: want ok, got ready=%v n=%d", ready, n)
	}

	seed, ready := p.EmitSeed()
	if !ready {
		t.Fatal("expected seed to be ready")
	}

	var z [Size]byte
	h := func(prefix [Size]byte, suffix []byte) [Size]byte {
		hh := sha512.New()
		hh.Write(prefix[:])
		hh.Write(suffix)
		var out [Size]byte
		copy(out[:], hh.Sum(nil))
		return out
	}

	state := h(z, d1)
	state = h(state, d2)
	state = h(state, d3)
	expectedSeed := h(state, []byte(domainSeed))

	if !bytes.Equal(seed[:], expectedSeed[:]) {
		t.Errorf("seed mismatch:\n got  %x\n want %x", seed, expectedSeed)
	}
}
