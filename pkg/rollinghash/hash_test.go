package rollinghash

import "testing"

// testPoly mirrors the production default in sdconfig: x^32 + x^7 + x^3 +
// x^2 + 1 (the x^32 term is implicit; 0x8D encodes the remaining terms).
const testPoly = 0x8D

func hashFrom(poly, start uint32, data []byte) uint32 {
	h := New(poly)
	h.h = start
	for _, b := range data {
		h.Update(b)
	}
	return h.Sum()
}

func TestHashLinearity(t *testing.T) {
	tests := [][2][]byte{
		{{0x01, 0x02, 0x03, 0x04}, {0xFF, 0x00, 0xAA, 0x55}},
		{{0x00, 0x00}, {0xFF, 0xFF}},
		{{0x12, 0x34, 0x56}, {0x9A, 0xBC, 0xDE}},
	}
	for _, tt := range tests {
		x, y := tt[0], tt[1]
		xor := make([]byte, len(x))
		for i := range x {
			xor[i] = x[i] ^ y[i]
		}
		hx := hashFrom(testPoly, 0, x)
		hy := hashFrom(testPoly, 0, y)
		hxy := hashFrom(testPoly, 0, xor)
		if hxy != hx^hy {
			t.Errorf("hash(x^y)=%x, want hash(x)^hash(y)=%x", hxy, hx^hy)
		}
	}
}

func TestHashDeterministic(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	h1 := New(testPoly)
	h2 := New(testPoly)
	for _, b := range data {
		h1.Update(b)
	}
	for _, b := range data {
		h2.Update(b)
	}
	if h1.Sum() != h2.Sum() {
		t.Errorf("identical input produced different hashes: %x vs %x", h1.Sum(), h2.Sum())
	}
}

func TestHashResetReturnsToInitialState(t *testing.T) {
	h := New(testPoly)
	initial := h.Sum()
	h.Update(0x42)
	h.Update(0x99)
	h.Reset()
	if h.Sum() != initial {
		t.Errorf("Reset() = %x, want initial state %x", h.Sum(), initial)
	}
}

func TestHashDiffersForDifferentInput(t *testing.T) {
	a := hashFrom(testPoly, 1, []byte("aaaa"))
	b := hashFrom(testPoly, 1, []byte("aaab"))
	if a == b {
		t.Error("expected different hashes for different input")
	}
}
