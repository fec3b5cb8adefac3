package archive

import "github.com/brackenfield/sampldiff/pkg/hunk"

// HunkRef ties one hunk's sample-space coordinates to the CID of its B-side
// payload in the Store, so a manifest entry can be replayed without
// re-running the diff.
type HunkRef struct {
	A   hunk.View
	B   hunk.View
	CID string
}

// Manifest records one diffed version of a logical asset: the hunks that
// turned the previous version into this one, the CIDs of their payloads,
// and the Merkle root binding those CIDs together for later verification.
type Manifest struct {
	Version    int
	Timestamp  int64
	MerkleRoot []byte
	HunkRefs   []HunkRef
}

// CIDs extracts the ordered CID list a Manifest's Merkle tree was built
// over.
func (m Manifest) CIDs() []string {
	cids := make([]string, len(m.HunkRefs))
	for i, ref := range m.HunkRefs {
		cids[i] = ref.CID
	}
	return cids
}
