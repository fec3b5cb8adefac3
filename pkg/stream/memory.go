package stream

// Memory is a StreamIO test double over a plain byte slice: a position
// counter plus a fixed backing array, standing in for a real seekable
// sample stream in unit tests (the "narrowable_data" pattern referenced in
// the engine's design notes).
type Memory struct {
	data       []byte
	sampleSize int
	pos        uint64 // in samples
}

// NewMemory wraps data (already a whole number of samples) as a StreamIO.
func NewMemory(data []byte, sampleSize int) *Memory {
	return &Memory{data: data, sampleSize: sampleSize}
}

// Len returns the stream's length in samples.
func (m *Memory) Len() int {
	return len(m.data) / m.sampleSize
}

func (m *Memory) SampleSize() int {
	return m.sampleSize
}

func (m *Memory) Seek(posInSamples uint64) error {
	m.pos = posInSamples
	return nil
}

func (m *Memory) Fetch(buf []byte, nSamples int) (int, error) {
	total := uint64(m.Len())
	if m.pos >= total {
		return 0, nil
	}
	avail := total - m.pos
	n := uint64(nSamples)
	if n > avail {
		n = avail
	}
	start := m.pos * uint64(m.sampleSize)
	end := start + n*uint64(m.sampleSize)
	copy(buf, m.data[start:end])
	m.pos += n
	return int(n), nil
}
