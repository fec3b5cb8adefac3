// Package wavstream adapts WAV files to the stream.StreamIO contract the
// core diff engine consumes, and implements the patch-application contract
// that turns a hunk list back into a playable file.
//
// The decoder's frame-level seek API is tied to its own read cursor and
// offers no simple way to rewind independent of the container's internal
// buffering, so SampleStream decodes the whole PCM payload into memory once
// at Open and serves Fetch/Seek out of that buffer, the same way
// stream.Memory does for tests. For the sample sizes this system targets
// (single takes, not hours of multichannel audio) that is a deliberate,
// bounded tradeoff, not an oversight.
package wavstream

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/brackenfield/sampldiff/pkg/hunk"
)

// SampleStream is a stream.StreamIO backed by a fully decoded WAV file.
type SampleStream struct {
	sampleRate int
	numChans   int
	bitDepth   int

	sampleSize int
	data       []byte // interleaved PCM, little-endian, one sample every sampleSize bytes
	pos        uint64 // in samples
}

// Open decodes the WAV at path, validating that it is linear PCM, and loads
// its entire sample payload into memory.
func Open(path string) (*SampleStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wavstream: open %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.WasPCMAccessed() && !dec.IsValidFile() {
		return nil, fmt.Errorf("wavstream: %s is not a valid WAV file", path)
	}
	if dec.Format() != nil && dec.WavAudioFormat != 1 && dec.WavAudioFormat != 0xFFFE {
		return nil, fmt.Errorf("wavstream: %s uses unsupported WAV audio format %d (only PCM is supported)", path, dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wavstream: decode %s: %w", path, err)
	}

	numChans := int(dec.NumChans)
	bitDepth := int(dec.BitDepth)
	sampleSize := numChans * bitDepth / 8
	if sampleSize <= 0 {
		return nil, fmt.Errorf("wavstream: %s has invalid format (channels=%d, bit depth=%d)", path, numChans, bitDepth)
	}

	return &SampleStream{
		sampleRate: int(dec.SampleRate),
		numChans:   numChans,
		bitDepth:   bitDepth,
		sampleSize: sampleSize,
		data:       encodeIntBuffer(buf, bitDepth),
	}, nil
}

// SampleRate returns the WAV's sample rate in Hz.
func (s *SampleStream) SampleRate() int { return s.sampleRate }

// NumChannels returns the WAV's channel count.
func (s *SampleStream) NumChannels() int { return s.numChans }

// BitDepth returns the WAV's bits per sample, per channel.
func (s *SampleStream) BitDepth() int { return s.bitDepth }

// SampleSize returns the atomic sample width in bytes: one interleaved
// frame across all channels.
func (s *SampleStream) SampleSize() int { return s.sampleSize }

// Len returns the stream's length in samples.
func (s *SampleStream) Len() uint64 {
	return uint64(len(s.data) / s.sampleSize)
}

// Seek moves the read cursor to posInSamples.
func (s *SampleStream) Seek(posInSamples uint64) error {
	if posInSamples > s.Len() {
		return fmt.Errorf("wavstream: seek to %d exceeds stream length %d", posInSamples, s.Len())
	}
	s.pos = posInSamples
	return nil
}

// Fetch reads up to nSamples samples starting at the current cursor into
// buf, advancing the cursor by the number of samples actually read.
func (s *SampleStream) Fetch(buf []byte, nSamples int) (int, error) {
	avail := s.Len() - s.pos
	want := uint64(nSamples)
	if want > avail {
		want = avail
	}
	nBytes := int(want) * s.sampleSize
	if len(buf) < nBytes {
		nBytes = len(buf) - (len(buf) % s.sampleSize)
		want = uint64(nBytes / s.sampleSize)
	}
	start := s.pos * uint64(s.sampleSize)
	copy(buf[:nBytes], s.data[start:start+uint64(nBytes)])
	s.pos += want
	return int(want), nil
}

// CheckCompatible validates that a and b share a sample rate, channel
// count, and bit depth, as required before a diff or patch can be applied
// between them.
func CheckCompatible(a, b *SampleStream) error {
	if a.numChans != b.numChans {
		return fmt.Errorf("%w: %d vs %d", ErrChannels, a.numChans, b.numChans)
	}
	if a.sampleRate != b.sampleRate {
		return fmt.Errorf("%w: %d vs %d", ErrSampleRate, a.sampleRate, b.sampleRate)
	}
	if a.bitDepth != b.bitDepth {
		return fmt.Errorf("%w: %d vs %d", ErrSampleFormat, a.bitDepth, b.bitDepth)
	}
	return nil
}

// Sentinel errors behind the frozen adiff exit codes; cmd maps these to
// their numeric codes with errors.Is.
var (
	ErrChannels     = fmt.Errorf("wavstream: channel count mismatch")
	ErrSampleRate   = fmt.Errorf("wavstream: sample rate mismatch")
	ErrSampleFormat = fmt.Errorf("wavstream: sample format mismatch")
)

// ApplyPatch reconstructs B from A and hunks, writing a new WAV file to out
// using B's container parameters (sample rate, channel count, bit depth).
// For hunks ordered by A.Start, it emits A's samples up to each hunk, then
// B's samples for that hunk, and finally A's trailing samples after the
// last hunk — the patch-application contract shared with patchfile.
func ApplyPatch(a, b *SampleStream, hunks []hunk.Hunk, out io.WriteSeeker) error {
	enc := wav.NewEncoder(out, b.sampleRate, b.bitDepth, b.numChans, 1)

	var result []byte
	prevEndA := uint64(0)
	for _, h := range hunks {
		result = appendSamples(result, a, prevEndA, h.A.Start)
		result = appendSamples(result, b, h.B.Start, h.B.End)
		prevEndA = h.A.End
	}
	result = appendSamples(result, a, prevEndA, a.Len())

	buf := decodeToIntBuffer(result, b.numChans, b.sampleRate, b.bitDepth)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wavstream: write output: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wavstream: close output: %w", err)
	}
	return nil
}

func appendSamples(dst []byte, s *SampleStream, start, end uint64) []byte {
	if end <= start {
		return dst
	}
	lo := start * uint64(s.sampleSize)
	hi := end * uint64(s.sampleSize)
	return append(dst, s.data[lo:hi]...)
}

// encodeIntBuffer flattens a decoded audio.IntBuffer into raw little-endian
// interleaved PCM bytes, matching what the file itself stores on disk.
func encodeIntBuffer(buf *audio.IntBuffer, bitDepth int) []byte {
	bytesPerSample := bitDepth / 8
	out := make([]byte, len(buf.Data)*bytesPerSample)
	for i, v := range buf.Data {
		off := i * bytesPerSample
		switch bytesPerSample {
		case 1:
			out[off] = byte(v)
		case 2:
			binary.LittleEndian.PutUint16(out[off:], uint16(int16(v)))
		case 3:
			u := uint32(int32(v))
			out[off] = byte(u)
			out[off+1] = byte(u >> 8)
			out[off+2] = byte(u >> 16)
		case 4:
			binary.LittleEndian.PutUint32(out[off:], uint32(int32(v)))
		}
	}
	return out
}

// decodeToIntBuffer is encodeIntBuffer's inverse, used to hand ApplyPatch's
// reconstructed byte stream to the encoder in the form it expects.
func decodeToIntBuffer(data []byte, numChans, sampleRate, bitDepth int) *audio.IntBuffer {
	bytesPerSample := bitDepth / 8
	n := len(data) / bytesPerSample
	ints := make([]int, n)
	for i := 0; i < n; i++ {
		off := i * bytesPerSample
		switch bytesPerSample {
		case 1:
			ints[i] = int(data[off])
		case 2:
			ints[i] = int(int16(binary.LittleEndian.Uint16(data[off:])))
		case 3:
			u := uint32(data[off]) | uint32(data[off+1])<<8 | uint32(data[off+2])<<16
			if u&0x800000 != 0 {
				u |= 0xFF000000
			}
			ints[i] = int(int32(u))
		case 4:
			ints[i] = int(int32(binary.LittleEndian.Uint32(data[off:])))
		}
	}
	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: numChans,
			SampleRate:  sampleRate,
		},
		Data:           ints,
		SourceBitDepth: bitDepth,
	}
}
