// Package bdiff wires the chunker, hunk builder, and narrower into the
// three entry points the rest of the system calls: a rough-only diff for
// unseekable streams, a narrow-only pass for already-rough hunks, and the
// combined Bdiff most callers want.
package bdiff

import (
	"context"
	"fmt"
	"time"

	"github.com/brackenfield/sampldiff/pkg/chunk"
	"github.com/brackenfield/sampldiff/pkg/hunk"
	"github.com/brackenfield/sampldiff/pkg/narrow"
	"github.com/brackenfield/sampldiff/pkg/sdconfig"
	"github.com/brackenfield/sampldiff/pkg/sdmetrics"
	"github.com/brackenfield/sampldiff/pkg/stream"
)

// Engine composes the chunker, hunk builder, and narrower behind a single
// Config. It owns no state beyond that Config: a diff is a single
// synchronous computation, and nothing is shared between calls.
type Engine struct {
	Config sdconfig.Chunking
}

// NewEngine builds an Engine around cfg.
func NewEngine(cfg sdconfig.Chunking) *Engine {
	return &Engine{Config: cfg}
}

// BdiffRough chunks both streams and aligns the resulting chunk lists into
// rough hunks. It requires only Fetch, so unseekable streams are fine.
func (e *Engine) BdiffRough(ctx context.Context, sampleSize int, a, b stream.Fetcher) ([]hunk.Hunk, error) {
	startA := time.Now()
	chunksA, err := chunk.Split(ctx, a, sampleSize, e.Config)
	if err != nil {
		return nil, fmt.Errorf("bdiff: chunking stream a: %w", err)
	}
	sdmetrics.ObserveChunking(startA, "a", len(chunksA))

	startB := time.Now()
	chunksB, err := chunk.Split(ctx, b, sampleSize, e.Config)
	if err != nil {
		return nil, fmt.Errorf("bdiff: chunking stream b: %w", err)
	}
	sdmetrics.ObserveChunking(startB, "b", len(chunksB))

	return hunk.Build(chunksA, chunksB), nil
}

// BdiffNarrow refines rough hunks to byte-exact boundaries. a and b must be
// seekable.
func (e *Engine) BdiffNarrow(ctx context.Context, rough []hunk.Hunk, sampleSize int, a, b stream.StreamIO) ([]hunk.Hunk, error) {
	start := time.Now()
	narrowed, err := narrow.Narrow(ctx, rough, a, b, sampleSize, e.Config)
	if err != nil {
		return nil, fmt.Errorf("bdiff: narrowing: %w", err)
	}
	sdmetrics.ObserveNarrow(start, len(rough), len(narrowed))
	return narrowed, nil
}

// Bdiff runs the rough pass followed by the narrowing pass, returning the
// final byte-exact hunk list. a and b must be seekable.
func (e *Engine) Bdiff(ctx context.Context, sampleSize int, a, b stream.StreamIO) ([]hunk.Hunk, error) {
	rough, err := e.BdiffRough(ctx, sampleSize, a, b)
	if err != nil {
		return nil, err
	}
	return e.BdiffNarrow(ctx, rough, sampleSize, a, b)
}
