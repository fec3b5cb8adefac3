// Package narrow implements the byte-exact narrowing pass: given the rough,
// chunk-boundary-aligned hunks produced by package hunk, it shrinks each to
// the tightest interval that actually differs, by seeking into the two
// source streams and comparing sample-for-sample from both ends of the
// hunk inward. This is where the rolling-hash chunker's coarseness is paid
// back: a rough hunk only promises "something differs somewhere in here",
// and narrowing finds exactly where.
package narrow

import (
	"bytes"
	"context"
	"fmt"

	"github.com/brackenfield/sampldiff/pkg/hunk"
	"github.com/brackenfield/sampldiff/pkg/sdconfig"
	"github.com/brackenfield/sampldiff/pkg/stream"
)

// Narrow refines each rough hunk to byte-exact boundaries. a and b must
// support random access (stream.StreamIO); the rough hunks must be ordered
// and non-overlapping, as produced by hunk.Build.
//
// Insertions or deletions that straddle a chunk boundary can make one
// side's agreeing run spill past the rough hunk it was aligned to. When the
// start-narrow consumes more samples than one side of the hunk holds, the
// surplus becomes a "shove" carried to the next iteration: there, a
// backward scan over the stream that overran finds how far the previously
// emitted hunk's end must retract on the other stream for the two suffixes
// to realign. A hunk whose start-narrow consumes it entirely on both sides
// is dropped.
func Narrow(ctx context.Context, rough []hunk.Hunk, a, b stream.StreamIO, sampleSize int, cfg sdconfig.Chunking) ([]hunk.Hunk, error) {
	if sampleSize <= 0 {
		return nil, fmt.Errorf("narrow: sample size must be positive, got %d", sampleSize)
	}
	maxLen := uint64(cfg.MaxLen)

	bufSamples := cfg.BufSamples
	if bufSamples <= 0 {
		bufSamples = 1
	}
	sc := &scanner{
		sampleSize: sampleSize,
		bufSamples: bufSamples,
		bufX:       make([]byte, bufSamples*sampleSize),
		bufY:       make([]byte, bufSamples*sampleSize),
	}

	var out []hunk.Hunk
	var shoveA, shoveB uint64

	for _, r := range rough {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		// Resolve a shove pending from the previous hunk: retract the
		// previous hunk's end on the stream that did not overrun, by the
		// slide distance at which the suffixes realign.
		if shoveA > 0 && len(out) > 0 {
			tail := &out[len(out)-1]
			slide, err := sc.findSlide(a, b, r.A.Start, tail.B.End,
				min3(tail.B.Len(), r.A.Len(), maxLen))
			if err != nil {
				return out, err
			}
			shoveA = slide
			tail.B.End -= slide
		} else if shoveB > 0 && len(out) > 0 {
			tail := &out[len(out)-1]
			slide, err := sc.findSlide(b, a, r.B.Start, tail.A.End,
				min3(tail.A.Len(), r.B.Len(), maxLen))
			if err != nil {
				return out, err
			}
			shoveB = slide
			tail.A.End -= slide
		}

		startDelta, err := sc.findStartDelta(a, b, r.A.Start+shoveA, r.B.Start+shoveB, maxLen+1)
		if err != nil {
			return out, err
		}
		shoveA += startDelta
		shoveB += startDelta

		if r.A.Start+shoveA == r.A.End && r.B.Start+shoveB == r.B.End {
			// Start-narrowing consumed the whole hunk on both sides.
			shoveA, shoveB = 0, 0
			continue
		}

		h := hunk.Hunk{
			A: hunk.View{Start: r.A.Start + shoveA, End: r.A.End},
			B: hunk.View{Start: r.B.Start + shoveB, End: r.B.End},
		}

		// If the agreeing prefix ran past one side's rough end, that side's
		// start now exceeds its end; push both ends out to make the views
		// well-formed (the overrun side becomes empty) and carry the
		// surplus as next iteration's shove.
		shoveA = clampedSub(h.A.Start, h.A.End)
		shoveB = clampedSub(h.B.Start, h.B.End)
		over := shoveA
		if shoveB > over {
			over = shoveB
		}
		h.A.End += over
		h.B.End += over

		endDelta := min3(h.A.Len(), h.B.Len(), maxLen)
		if endDelta > 0 {
			endDelta, err = sc.findEndDelta(endDelta, a, b, h.A.End, h.B.End)
			if err != nil {
				return out, err
			}
		}
		h.A.End -= endDelta
		h.B.End -= endDelta

		out = append(out, h)
	}

	return out, nil
}

// scanner holds the reusable comparison buffers for one Narrow call.
type scanner struct {
	sampleSize int
	bufSamples int
	bufX, bufY []byte
}

// findStartDelta seeks both streams to their given starts and returns the
// index of the first disagreeing sample, scanning at most maxLength
// samples. A short read on one side ends the scan there: the streams have
// provably diverged (one has data where the other has none), so the
// agreeing prefix is what was compared up to that point.
func (s *scanner) findStartDelta(x, y stream.StreamIO, xStart, yStart, maxLength uint64) (uint64, error) {
	if err := x.Seek(xStart); err != nil {
		return 0, fmt.Errorf("narrow: seek: %w", err)
	}
	if err := y.Seek(yStart); err != nil {
		return 0, fmt.Errorf("narrow: seek: %w", err)
	}

	var delta uint64
	for delta < maxLength {
		want := uint64(s.bufSamples)
		if rem := maxLength - delta; rem < want {
			want = rem
		}
		nx, err := x.Fetch(s.bufX, int(want))
		if err != nil {
			return 0, fmt.Errorf("narrow: fetch: %w", err)
		}
		ny, err := y.Fetch(s.bufY, int(want))
		if err != nil {
			return 0, fmt.Errorf("narrow: fetch: %w", err)
		}
		minRead := nx
		if ny < minRead {
			minRead = ny
		}
		for i := 0; i < minRead*s.sampleSize; i++ {
			if s.bufX[i] != s.bufY[i] {
				return uint64(i/s.sampleSize) + delta, nil
			}
		}
		if nx != ny {
			return uint64(minRead) + delta, nil
		}
		if minRead == 0 {
			break
		}
		delta += uint64(minRead)
	}
	return delta, nil
}

// findEndDelta compares the trailing endDelta samples of the two regions
// ending at xEnd/yEnd and returns the distance from the region ends to just
// past the last disagreeing sample (endDelta unchanged if none differ, i.e.
// the whole trailing window can be retracted).
func (s *scanner) findEndDelta(endDelta uint64, x, y stream.StreamIO, xEnd, yEnd uint64) (uint64, error) {
	if err := x.Seek(xEnd - endDelta); err != nil {
		return 0, fmt.Errorf("narrow: seek: %w", err)
	}
	if err := y.Seek(yEnd - endDelta); err != nil {
		return 0, fmt.Errorf("narrow: seek: %w", err)
	}

	loopStart := endDelta
	for loopStart > 0 {
		want := uint64(s.bufSamples)
		if loopStart < want {
			want = loopStart
		}
		nx, err := x.Fetch(s.bufX, int(want))
		if err != nil {
			return 0, fmt.Errorf("narrow: fetch: %w", err)
		}
		if nx == 0 {
			break
		}
		ny, err := y.Fetch(s.bufY, nx)
		if err != nil {
			return 0, fmt.Errorf("narrow: fetch: %w", err)
		}
		if ny < nx {
			nx = ny
		}
		if nx == 0 {
			break
		}
		for i := 0; i < nx*s.sampleSize; i++ {
			if s.bufX[i] != s.bufY[i] {
				endDelta = loopStart - uint64(i/s.sampleSize) - 1
			}
		}
		loopStart -= uint64(nx)
	}
	return endDelta, nil
}

// findSlide scans backwards from slidingEnd on the sliding stream for the
// largest slide distance at which the sliding stream's suffix realigns with
// the fixed stream starting at fixedStart: the single sample at
// slidingEnd-slide must equal the sample at fixedStart, and the agreement
// must then extend for exactly slide samples. Returns 0 when no distance
// within the cap realigns.
func (s *scanner) findSlide(fixed, sliding stream.StreamIO, fixedStart, slidingEnd, slide uint64) (uint64, error) {
	for slide > 0 {
		if err := sliding.Seek(slidingEnd - slide); err != nil {
			return 0, fmt.Errorf("narrow: seek: %w", err)
		}
		if err := fixed.Seek(fixedStart); err != nil {
			return 0, fmt.Errorf("narrow: seek: %w", err)
		}
		nf, err := fixed.Fetch(s.bufX, 1)
		if err != nil {
			return 0, fmt.Errorf("narrow: fetch: %w", err)
		}
		ns, err := sliding.Fetch(s.bufY, 1)
		if err != nil {
			return 0, fmt.Errorf("narrow: fetch: %w", err)
		}
		if nf == 1 && ns == 1 && bytes.Equal(s.bufX[:s.sampleSize], s.bufY[:s.sampleSize]) {
			startDelta, err := s.findStartDelta(fixed, sliding, fixedStart+1, slidingEnd-slide+1, slide)
			if err != nil {
				return 0, err
			}
			if startDelta == slide {
				break
			}
		}
		slide--
	}
	return slide, nil
}

func min3(a, b, c uint64) uint64 {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// clampedSub returns a-b, or 0 when that would underflow.
func clampedSub(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return 0
}
