package sampling

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"testing"
)

// ctrSource returns a ByteSource backed by a deterministic AES-CTR
// stream, standing in for the keystream in distribution tests.
func ctrSource(t *testing.T) ByteSource {
	t.Helper()
	var key [32]byte
	for i := range key {
		key[i] = byte(i)
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		t.Fatalf("aes.NewCipher: %v", err)
	}
	var iv [16]byte
	stream := cipher.NewCTR(block, iv[:])
	return func(ctx context.Context, n int) ([]byte, error) {
		out := make([]byte, n)
		stream.XORKeyStream(out, out)
		return out, nil
	}
}

func TestDrawUintWithinRange(t *testing.T) {
	src := ctrSource(t)
	ctx := context.Background()
	for i := 0; i < 2000; i++ {
		v, err := DrawUint(ctx, 1, 6, src)
		if err != nil {
			t.Fatalf("DrawUint failed: %v", err)
		}
		if v < 1 || v > 6 {
			t.Fatalf("value %d out of range [1,6]", v)
		}
	}
}

func TestDrawUintDistributionRoughlyUniform(t *testing.T) {
	src := ctrSource(t)
	ctx := context.Background()
	const n = 12000
	counts := make(map[int64]int)
	for i := 0; i < n; i++ {
		v, err := DrawUint(ctx, 0, 9, src)
		if err != nil {
			t.Fatalf("DrawUint failed: %v", err)
		}
		counts[v]++
	}
	if len(counts) != 10 {
		t.Fatalf("expected all 10 values to appear, got %d distinct values", len(counts))
	}
	expected := float64(n) / 10
	for v, c := range counts {
		dev := float64(c) - expected
		if dev < 0 {
			dev = -dev
		}
		if dev > expected*0.25 {
			t.Errorf("value %d count %d deviates too far from expected %.1f", v, c, expected)
		}
	}
}

func TestDrawUintSinglePointRange(t *testing.T) {
	src := ctrSource(t)
	v, err := DrawUint(context.Background(), 5, 5, src)
	if err != nil {
		t.Fatalf("DrawUint failed: %v", err)
	}
	if v != 5 {
		t.Errorf("expected 5, got %d", v)
	}
}

func TestDrawUintRejectsInvertedRange(t *testing.T) {
	src := ctrSource(t)
	if _, err := DrawUint(context.Background(), 10, 1, src); err == nil {
		t.Error("expected error for lo > hi")
	}
}

func TestDrawWeightedRejectsInvalidSymbolBeforeDrawing(t *testing.T) {
	src := ctrSource(t)
	symbols := []Symbol{
		{Name: "cherry", Weight: 5},
		{Name: "bar", Weight: 0},
	}
	if _, err := DrawWeighted(context.Background(), symbols, 3, src); err == nil {
		t.Error("expected rejection for a non-positive weight")
	}

	symbols2 := []Symbol{
		{Name: "cherry", Weight: 5},
		{Name: "", Weight: 2},
	}
	if _, err := DrawWeighted(context.Background(), symbols2, 3, src); err == nil {
		t.Error("expected rejection for an empty symbol name")
	}
}

func TestDrawWeightedRespectsWeights(t *testing.T) {
	src := ctrSource(t)
	symbols := []Symbol{
		{Name: "common", Weight: 90},
		{Name: "rare", Weight: 10},
	}
	draws, err := DrawWeighted(context.Background(), symbols, 5000, src)
	if err != nil {
		t.Fatalf("DrawWeighted failed: %v", err)
	}
	if len(draws) != 5000 {
		t.Fatalf("expected 5000 draws, got %d", len(draws))
	}

	counts := map[string]int{}
	for _, d := range draws {
		counts[d]++
	}
	commonRatio := float64(counts["common"]) / float64(len(draws))
	if commonRatio < 0.8 || commonRatio > 0.98 {
		t.Errorf("common ratio %.3f far from expected ~0.9", commonRatio)
	}
}

func TestDrawWeightedRejectsNonPositiveDrawCount(t *testing.T) {
	src := ctrSource(t)
	symbols := []Symbol{{Name: "a", Weight: 1}}
	if _, err := DrawWeighted(context.Background(), symbols, 0, src); err == nil {
		t.Error("expected rejection for num_draws <= 0")
	}
}
