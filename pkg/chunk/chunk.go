// Package chunk implements the content-defined chunker: it splits a sample
// stream into a partition of variable-length chunks, cutting wherever the
// windowed rolling hash signals a boundary, and records the plain
// whole-chunk hash alongside each chunk's span.
package chunk

import (
	"context"
	"fmt"

	"github.com/brackenfield/sampldiff/pkg/rollinghash"
	"github.com/brackenfield/sampldiff/pkg/sdconfig"
	"github.com/brackenfield/sampldiff/pkg/stream"
)

// Chunk is a content-defined, contiguous span of samples plus the plain
// polynomial hash of its bytes. Start and End are in sample units; End is
// exclusive.
type Chunk struct {
	Start uint64
	End   uint64
	Hash  uint32
}

// Len reports the chunk's length in samples.
func (c Chunk) Len() uint64 {
	return c.End - c.Start
}

// Split reads s sequentially, sampleSize bytes at a time, and returns the
// chunk list partitioning the stream. It stops at the first Fetch error or
// at EOF (a Fetch returning 0 samples).
//
// A split point is declared once the current chunk has reached cfg.MinLen
// samples and the windowed hash, ANDed with cfg.Mask, is zero; a split is
// forced regardless of the hash once the chunk reaches cfg.MaxLen. The
// final chunk, at EOF, may be shorter than MinLen.
func Split(ctx context.Context, s stream.Fetcher, sampleSize int, cfg sdconfig.Chunking) ([]Chunk, error) {
	if sampleSize <= 0 {
		return nil, fmt.Errorf("chunk: sample size must be positive, got %d", sampleSize)
	}

	plain := rollinghash.New(cfg.Polynomial)
	windowed := rollinghash.NewWindow(plain, cfg.Window)

	var chunks []Chunk
	var chunkStart, pos uint64

	bufSamples := cfg.BufSamples
	if bufSamples <= 0 {
		bufSamples = 1
	}
	buf := make([]byte, bufSamples*sampleSize)

	for {
		if err := ctx.Err(); err != nil {
			return chunks, err
		}

		n, err := s.Fetch(buf, bufSamples)
		if err != nil {
			return chunks, fmt.Errorf("chunk: fetch failed: %w", err)
		}
		if n == 0 {
			break
		}

		for i := 0; i < n; i++ {
			sampleBytes := buf[i*sampleSize : (i+1)*sampleSize]
			for _, b := range sampleBytes {
				windowed.Update(b)
			}

			length := pos - chunkStart + 1
			hashHit := windowed.Sum()&cfg.Mask == 0

			switch {
			case length >= uint64(cfg.MinLen) && hashHit:
				chunks = append(chunks, Chunk{Start: chunkStart, End: pos + 1, Hash: plain.Sum()})
				chunkStart = pos + 1
				windowed.Reset()
			case length == uint64(cfg.MaxLen):
				chunks = append(chunks, Chunk{Start: chunkStart, End: pos + 1, Hash: plain.Sum()})
				chunkStart = pos + 1
				windowed.Reset()
			}

			pos++
		}
	}

	if pos > chunkStart {
		chunks = append(chunks, Chunk{Start: chunkStart, End: pos, Hash: plain.Sum()})
	}

	return chunks, nil
}
