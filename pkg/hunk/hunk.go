// Package hunk builds the rough diff between two chunk lists: an ordered
// list of hunks, each a pair of half-open intervals describing one region
// where the two streams disagree, with endpoints aligned to chunk
// boundaries. Package narrow later refines these to byte-exact boundaries.
package hunk

import (
	"github.com/brackenfield/sampldiff/pkg/chunk"
	"github.com/brackenfield/sampldiff/pkg/multiset"
)

// View is a half-open interval [Start, End) in sample units. Start == End
// denotes an empty view at that position.
type View struct {
	Start uint64
	End   uint64
}

// Empty reports whether the view spans no samples.
func (v View) Empty() bool {
	return v.Start == v.End
}

// Len reports the view's length in samples.
func (v View) Len() uint64 {
	return v.End - v.Start
}

// Hunk pairs one interval per stream, describing a single region of
// disagreement. A pure insertion in A is encoded as B.Empty(); a pure
// insertion in B, symmetrically, as A.Empty().
type Hunk struct {
	A View
	B View
}

// Build aligns two chunk lists and returns the ordered, non-overlapping list
// of rough hunks between them.
//
// The algorithm walks A and B in lockstep with two cursors, implicitly
// preceded by a zero-length sentinel chunk at position 0 on each side (so
// "change at the very start" needs no special case). For each A chunk whose
// hash has no live counterpart anywhere in the remainder of B, it is folded
// into the pending hunk. Once an A chunk's hash does have a counterpart,
// B's cursor is advanced to the first remaining B chunk with that hash
// (chunks skipped along the way are unique to B in this span and decremented
// out of the multiset), the pending hunk is closed at this common anchor,
// and both cursors advance past the matched chunk.
func Build(a, b []chunk.Chunk) []Hunk {
	counts := multiset.New()
	for _, c := range b {
		counts.Inc(c.Hash)
	}

	var hunks []Hunk
	var hunkStartA, hunkStartB uint64
	bi := 0

	for _, ca := range a {
		if counts.Get(ca.Hash) == 0 {
			// No live counterpart in B; absorb into the pending hunk.
			continue
		}

		for bi < len(b) && b[bi].Hash != ca.Hash {
			counts.Dec(b[bi].Hash)
			bi++
		}
		if bi >= len(b) {
			// The multiset said a counterpart existed but the cursor walk
			// didn't find it; treat ca as unmatched after all.
			continue
		}

		matched := b[bi]
		if ca.Start != hunkStartA || matched.Start != hunkStartB {
			hunks = append(hunks, Hunk{
				A: View{Start: hunkStartA, End: ca.Start},
				B: View{Start: hunkStartB, End: matched.Start},
			})
		}

		hunkStartA = ca.End
		hunkStartB = matched.End
		counts.Dec(matched.Hash)
		bi++
	}

	var aEnd, bEnd uint64
	if len(a) > 0 {
		aEnd = a[len(a)-1].End
	}
	if len(b) > 0 {
		bEnd = b[len(b)-1].End
	}
	if hunkStartA != aEnd || hunkStartB != bEnd {
		hunks = append(hunks, Hunk{
			A: View{Start: hunkStartA, End: aEnd},
			B: View{Start: hunkStartB, End: bEnd},
		})
	}

	return hunks
}
