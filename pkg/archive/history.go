package archive

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// bucketAssets holds one key per logical asset name, whose value is a
// JSON-encoded, version-ordered list of Manifest entries — a direct
// adaptation of the reference's metadata bucket and schema-version
// bookkeeping, here versioning an audio asset's diff chain instead of a
// watched file's snapshot chain.
const bucketAssets = "assets"

// History tracks, per logical asset name, the ordered chain of Manifests
// that reconstruct each archived version from the one before it.
type History struct {
	db *bbolt.DB
}

// OpenHistory opens (creating if absent) a bbolt-backed version history at
// path.
func OpenHistory(path string) (*History, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("archive: open history at %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketAssets))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: initializing history buckets: %w", err)
	}
	return &History{db: db}, nil
}

// Close releases the history's underlying bbolt handle.
func (h *History) Close() error {
	return h.db.Close()
}

// Append records manifest as the next version of asset, assigning it
// Version = len(existing)+1.
func (h *History) Append(asset string, manifest Manifest) (Manifest, error) {
	var stored Manifest
	err := h.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketAssets))
		manifests, err := readManifests(b, asset)
		if err != nil {
			return err
		}
		manifest.Version = len(manifests) + 1
		manifests = append(manifests, manifest)
		stored = manifest
		return writeManifests(b, asset, manifests)
	})
	if err != nil {
		return Manifest{}, fmt.Errorf("archive: appending manifest for %s: %w", asset, err)
	}
	return stored, nil
}

// Versions returns every manifest recorded for asset, oldest first.
func (h *History) Versions(asset string) ([]Manifest, error) {
	var manifests []Manifest
	err := h.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketAssets))
		var err error
		manifests, err = readManifests(b, asset)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("archive: reading history for %s: %w", asset, err)
	}
	return manifests, nil
}

// Latest returns the most recently appended manifest for asset.
func (h *History) Latest(asset string) (Manifest, bool, error) {
	manifests, err := h.Versions(asset)
	if err != nil {
		return Manifest{}, false, err
	}
	if len(manifests) == 0 {
		return Manifest{}, false, nil
	}
	return manifests[len(manifests)-1], true, nil
}

func readManifests(b *bbolt.Bucket, asset string) ([]Manifest, error) {
	raw := b.Get([]byte(asset))
	if raw == nil {
		return nil, nil
	}
	var manifests []Manifest
	if err := json.Unmarshal(raw, &manifests); err != nil {
		return nil, fmt.Errorf("unmarshaling manifest chain for %s: %w", asset, err)
	}
	return manifests, nil
}

func writeManifests(b *bbolt.Bucket, asset string, manifests []Manifest) error {
	raw, err := json.Marshal(manifests)
	if err != nil {
		return fmt.Errorf("marshaling manifest chain for %s: %w", asset, err)
	}
	return b.Put([]byte(asset), raw)
}
