package archive

import (
	"fmt"
	"time"

	"github.com/brackenfield/sampldiff/pkg/hunk"
	"github.com/brackenfield/sampldiff/pkg/stream"
)

// Archive is the facade the CLI drives: a payload Store plus a version
// History sharing one logical asset namespace.
type Archive struct {
	Store   *Store
	History *History
}

// Open opens both halves of an Archive rooted at storeDir/historyPath.
func Open(storeDir, historyPath, hashAlgo string) (*Archive, error) {
	store, err := OpenStore(storeDir, hashAlgo)
	if err != nil {
		return nil, err
	}
	history, err := OpenHistory(historyPath)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &Archive{Store: store, History: history}, nil
}

// Close releases both the Store and History handles.
func (ar *Archive) Close() error {
	storeErr := ar.Store.Close()
	histErr := ar.History.Close()
	if storeErr != nil {
		return storeErr
	}
	return histErr
}

// PutVersion archives one diffed version of asset: it reads each hunk's
// B-side payload out of b, stores it in the CAS, builds a Merkle tree over
// the resulting CIDs, and appends the resulting Manifest to History.
func (ar *Archive) PutVersion(asset string, hunks []hunk.Hunk, b stream.StreamIO, sampleSize int) (Manifest, error) {
	refs := make([]HunkRef, len(hunks))
	for i, h := range hunks {
		payload, err := readPayload(b, h.B, sampleSize)
		if err != nil {
			return Manifest{}, fmt.Errorf("archive: reading payload for hunk %d: %w", i, err)
		}
		cid, _, err := ar.Store.Put(payload)
		if err != nil {
			return Manifest{}, fmt.Errorf("archive: storing payload for hunk %d: %w", i, err)
		}
		if err := ar.Store.AddReference(cid); err != nil {
			return Manifest{}, fmt.Errorf("archive: referencing payload for hunk %d: %w", i, err)
		}
		refs[i] = HunkRef{A: h.A, B: h.B, CID: cid}
	}

	manifest := Manifest{Timestamp: time.Now().Unix(), HunkRefs: refs}
	if len(refs) > 0 {
		cids := manifest.CIDs()
		tree, err := BuildManifestTree(cids)
		if err != nil {
			return Manifest{}, err
		}
		manifest.MerkleRoot = tree.MerkleRoot()
	}

	return ar.History.Append(asset, manifest)
}

// Verify re-derives the Merkle root over manifest's recorded CIDs and
// confirms it matches the root stored alongside it.
func (ar *Archive) Verify(manifest Manifest) (bool, error) {
	if len(manifest.HunkRefs) == 0 {
		return true, nil
	}
	return VerifyManifest(manifest.MerkleRoot, manifest.CIDs())
}

// GetPayload retrieves the stored B-side bytes for a single HunkRef.
func (ar *Archive) GetPayload(ref HunkRef) ([]byte, error) {
	return ar.Store.Get(ref.CID)
}

func readPayload(b stream.StreamIO, v hunk.View, sampleSize int) ([]byte, error) {
	if v.Empty() {
		return nil, nil
	}
	if err := b.Seek(v.Start); err != nil {
		return nil, fmt.Errorf("seek: %w", err)
	}
	n := int(v.Len())
	buf := make([]byte, n*sampleSize)
	got, err := b.Fetch(buf, n)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	return buf[:got*sampleSize], nil
}
