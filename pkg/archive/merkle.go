package archive

import (
	"crypto/sha256"
	"fmt"

	"github.com/cbergoon/merkletree"
)

// cidContent implements merkletree.Content over a single CID string, the
// same shape the reference Merkle wrapper uses for file CIDs, here applied
// to hunk-payload CIDs instead.
type cidContent struct {
	cid string
}

func (c cidContent) CalculateHash() ([]byte, error) {
	h := sha256.New()
	if _, err := h.Write([]byte(c.cid)); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

func (c cidContent) Equals(other merkletree.Content) (bool, error) {
	o, ok := other.(cidContent)
	if !ok {
		return false, fmt.Errorf("archive: merkle content type mismatch")
	}
	return c.cid == o.cid, nil
}

// BuildManifestTree builds a Merkle tree over an ordered list of hunk
// payload CIDs.
func BuildManifestTree(cids []string) (*merkletree.MerkleTree, error) {
	if len(cids) == 0 {
		return nil, fmt.Errorf("archive: cannot build a Merkle tree from an empty CID list")
	}
	contents := make([]merkletree.Content, len(cids))
	for i, cid := range cids {
		contents[i] = cidContent{cid: cid}
	}
	tree, err := merkletree.NewTree(contents)
	if err != nil {
		return nil, fmt.Errorf("archive: building Merkle tree: %w", err)
	}
	return tree, nil
}

// VerifyManifest rebuilds the Merkle tree over cids and checks that both
// its internal structure is consistent and its root matches root.
func VerifyManifest(root []byte, cids []string) (bool, error) {
	tree, err := BuildManifestTree(cids)
	if err != nil {
		return false, err
	}
	valid, err := tree.VerifyTree()
	if err != nil {
		return false, fmt.Errorf("archive: verifying Merkle tree: %w", err)
	}
	if !valid {
		return false, nil
	}
	got := tree.MerkleRoot()
	if len(got) != len(root) {
		return false, nil
	}
	for i := range got {
		if got[i] != root[i] {
			return false, nil
		}
	}
	return true, nil
}
