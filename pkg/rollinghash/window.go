package rollinghash

// Window wraps a Hash and maintains, alongside it, a separate rolling hash
// over only the last WindowSize bytes fed to it, by XORing out the
// contribution of the byte that ages out of the window on every Update. It
// is the chunker's split signal; the wrapped Hash is fed every byte too but
// is never asked to forget anything, so it keeps accumulating the true
// whole-chunk hash that ends up stored on the resulting Chunk. The two
// hashes are deliberately independent state: sharing one field between them
// would make the stored chunk hash silently degrade into the windowed,
// forgetful one for any chunk longer than WindowSize bytes.
type Window struct {
	inner      *Hash
	windowSize int
	buf        []byte
	cursor     int
	agingTable [256]uint32
	wh         uint32 // windowed hash state, independent of inner.h
}

// NewWindow builds a Window of the given size (in bytes) wrapping inner.
// windowSize must be >= 1.
func NewWindow(inner *Hash, windowSize int) *Window {
	w := &Window{
		inner:      inner,
		windowSize: windowSize,
		buf:        make([]byte, windowSize),
	}
	w.agingTable = buildAgingTable(inner.Poly(), windowSize)
	w.Reset()
	return w
}

// buildAgingTable precomputes, for every possible byte value, the
// contribution that byte makes to the windowed hash once it has travelled to
// the back of a windowSize-byte window, so Update can remove it with a
// single table lookup. A byte folded in windowSize updates ago has been
// shifted left by 8 bits on each of the windowSize-1 updates since, so its
// accumulated contribution at removal time is the byte's polynomial times
// t^((windowSize-1)*8), reduced.
func buildAgingTable(poly uint32, windowSize int) [256]uint32 {
	var table [256]uint32
	shiftBits := (windowSize - 1) * 8
	for v := 0; v < 256; v++ {
		acc := uint32(v)
		for i := 0; i < shiftBits; i++ {
			if acc&0x80000000 != 0 {
				acc = (acc << 1) ^ poly
			} else {
				acc <<= 1
			}
		}
		table[v] = acc
	}
	return table
}

// Reset clears the ring buffer, resets the windowed hash state to 1
// (mirroring the inner hash's own h=1 reset state), and resets the inner
// hash. The buffer's last slot is seeded with 1, the byte that the initial
// state 1 stands for, so that seed ages out of the window on the
// windowSize-th Update after the reset, like any other byte.
func (w *Window) Reset() {
	w.inner.Reset()
	for i := range w.buf {
		w.buf[i] = 0
	}
	w.buf[len(w.buf)-1] = 1
	w.cursor = 0
	w.wh = 1
}

// Update folds b into the windowed hash (removing the aging byte's
// contribution first, then folding b in via the same table-based step the
// inner hash uses) and separately into the inner plain hash, which never
// forgets anything and keeps accumulating the whole-chunk hash. Returns the
// new windowed hash value.
func (w *Window) Update(b byte) uint32 {
	aging := w.buf[w.cursor]
	w.buf[w.cursor] = b
	w.cursor++
	if w.cursor == len(w.buf) {
		w.cursor = 0
	}

	w.wh ^= w.agingTable[aging]
	top := byte(w.wh >> 24)
	w.wh = (w.wh << 8) | uint32(b)
	w.wh ^= w.inner.table[top]

	w.inner.Update(b)

	return w.wh
}

// Sum returns the current windowed hash value without mutating state.
func (w *Window) Sum() uint32 {
	return w.wh
}
