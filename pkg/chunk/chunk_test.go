package chunk

import (
	"context"
	"math/rand"
	"testing"

	"github.com/brackenfield/sampldiff/pkg/sdconfig"
	"github.com/brackenfield/sampldiff/pkg/stream"
)

func randomSamples(seed int64, nSamples, sampleSize int) []byte {
	r := rand.New(rand.NewSource(seed))
	buf := make([]byte, nSamples*sampleSize)
	r.Read(buf)
	return buf
}

func testChunking(sampleSize int) sdconfig.Chunking {
	cfg := sdconfig.DefaultConfig(sampleSize)
	cfg.MinLen = 4
	cfg.MaxLen = 64
	cfg.Mask = 0x0F
	return cfg.Chunking
}

func TestSplitIsAPartition(t *testing.T) {
	const sampleSize = 4
	data := randomSamples(99, 3000, sampleSize)
	s := stream.NewMemory(data, sampleSize)
	cfg := testChunking(sampleSize)

	chunks, err := Split(context.Background(), s, sampleSize, cfg)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) == 0 {
		t.Fatalf("expected at least one chunk")
	}
	if chunks[0].Start != 0 {
		t.Fatalf("first chunk starts at %d, want 0", chunks[0].Start)
	}
	total := uint64(len(data) / sampleSize)
	if chunks[len(chunks)-1].End != total {
		t.Fatalf("last chunk ends at %d, want %d", chunks[len(chunks)-1].End, total)
	}
	for i := 0; i < len(chunks); i++ {
		if chunks[i].Start >= chunks[i].End {
			t.Fatalf("chunk %d has Start >= End: %+v", i, chunks[i])
		}
		if i > 0 && chunks[i-1].End != chunks[i].Start {
			t.Fatalf("chunk %d not contiguous with previous: prev.End=%d, cur.Start=%d",
				i, chunks[i-1].End, chunks[i].Start)
		}
		length := chunks[i].Len()
		isLast := i == len(chunks)-1
		if length > uint64(cfg.MaxLen) {
			t.Fatalf("chunk %d exceeds MaxLen: len=%d, max=%d", i, length, cfg.MaxLen)
		}
		if !isLast && length < uint64(cfg.MinLen) {
			t.Fatalf("non-final chunk %d shorter than MinLen: len=%d, min=%d", i, length, cfg.MinLen)
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	const sampleSize = 4
	data := randomSamples(7, 2000, sampleSize)
	cfg := testChunking(sampleSize)

	a, err := Split(context.Background(), stream.NewMemory(data, sampleSize), sampleSize, cfg)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	b, err := Split(context.Background(), stream.NewMemory(data, sampleSize), sampleSize, cfg)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("non-deterministic chunk counts: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs between runs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestSplitEmptyStream(t *testing.T) {
	const sampleSize = 4
	cfg := testChunking(sampleSize)
	chunks, err := Split(context.Background(), stream.NewMemory(nil, sampleSize), sampleSize, cfg)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty stream, got %d", len(chunks))
	}
}

func TestSplitShorterThanMinLen(t *testing.T) {
	const sampleSize = 4
	cfg := testChunking(sampleSize)
	data := randomSamples(3, 2, sampleSize)
	chunks, err := Split(context.Background(), stream.NewMemory(data, sampleSize), sampleSize, cfg)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected a single short final chunk, got %d", len(chunks))
	}
	if chunks[0].Len() != 2 {
		t.Fatalf("final chunk length = %d, want 2", chunks[0].Len())
	}
}

func TestSplitRespectsMaxLen(t *testing.T) {
	const sampleSize = 1
	cfg := testChunking(sampleSize)
	// With MinLen == MaxLen the hash can never fire below the bound, so
	// every non-final cut must be the forced one.
	cfg.MinLen = cfg.MaxLen
	data := randomSamples(17, 500, sampleSize)
	chunks, err := Split(context.Background(), stream.NewMemory(data, sampleSize), sampleSize, cfg)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple forced chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if i < len(chunks)-1 && c.Len() != uint64(cfg.MaxLen) {
			t.Fatalf("chunk %d length = %d, want forced MaxLen %d", i, c.Len(), cfg.MaxLen)
		}
	}
}

func TestSplitConstantDataRepeatsBoundaries(t *testing.T) {
	// A run of identical samples re-enters the same hash state after every
	// cut, so the boundary pattern repeats exactly and every chunk carries
	// the same hash.
	const sampleSize = 1
	cfg := sdconfig.DefaultConfig(sampleSize).Chunking
	data := make([]byte, 500)
	chunks, err := Split(context.Background(), stream.NewMemory(data, sampleSize), sampleSize, cfg)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 50 {
		t.Fatalf("expected 50 uniform chunks over 500 constant samples, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Len() != 10 {
			t.Fatalf("chunk %d length = %d, want 10", i, c.Len())
		}
		if c.Hash != chunks[0].Hash {
			t.Fatalf("chunk %d hash = %#x, want %#x (identical content)", i, c.Hash, chunks[0].Hash)
		}
	}
}
