// Package archive provides a content-addressable store for narrowed-hunk
// payloads plus a Merkle-verified version history, letting a caller persist
// many diffed versions of the same logical audio asset and later verify a
// reconstructed version without re-reading the full stream.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/klauspost/compress/zstd"
	"github.com/multiformats/go-multihash"

	"github.com/brackenfield/sampldiff/pkg/sdmetrics"
)

const (
	prefixPayload = "p:" // compressed hunk payloads, keyed by CID
	prefixRef     = "r:" // reference counts, keyed by CID
)

const compressionMagic = "SDZ1"

// Store is a content-addressable store of hunk payloads, backed by Pebble
// and zstd, keyed by a multihash CID — adapted from the reference CAS to
// key on hunk payloads instead of whole file chunks.
type Store struct {
	db       *pebble.DB
	hashAlgo string
}

// OpenStore opens (creating if absent) a Pebble store at dir, keying
// payloads with hashAlgo ("sha256" or "blake3").
func OpenStore(dir, hashAlgo string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("archive: open store at %s: %w", dir, err)
	}
	return &Store{db: db, hashAlgo: hashAlgo}, nil
}

// Close releases the store's underlying Pebble handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) computeCID(data []byte) (string, error) {
	var hashType uint64
	switch s.hashAlgo {
	case "sha256":
		hashType = multihash.SHA2_256
	case "blake3":
		hashType = multihash.BLAKE3
	default:
		return "", fmt.Errorf("archive: unsupported hash algorithm %q", s.hashAlgo)
	}
	mh, err := multihash.Sum(data, hashType, -1)
	if err != nil {
		return "", fmt.Errorf("archive: computing multihash: %w", err)
	}
	return mh.B58String(), nil
}

// Put stores payload, returning its CID and the number of compressed bytes
// actually written. A payload whose CID is already present is deduplicated:
// storedBytes is 0 and no bytes are written.
func (s *Store) Put(payload []byte) (cid string, storedBytes int, err error) {
	cid, err = s.computeCID(payload)
	if err != nil {
		return "", 0, err
	}

	exists, err := s.Has(cid)
	if err != nil {
		return "", 0, err
	}
	if exists {
		sdmetrics.ObserveArchivePut(true, 0)
		return cid, 0, nil
	}

	compressed, err := compress(payload)
	if err != nil {
		return "", 0, fmt.Errorf("archive: compressing payload: %w", err)
	}
	if err := s.db.Set(payloadKey(cid), compressed, pebble.Sync); err != nil {
		return "", 0, fmt.Errorf("archive: storing payload %s: %w", cid, err)
	}

	sdmetrics.ObserveArchivePut(false, len(compressed))
	return cid, len(compressed), nil
}

// Get retrieves and decompresses the payload stored under cid.
func (s *Store) Get(cid string) ([]byte, error) {
	val, closer, err := s.db.Get(payloadKey(cid))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("archive: CID not found: %s", cid)
	}
	if err != nil {
		return nil, fmt.Errorf("archive: reading %s: %w", cid, err)
	}
	defer closer.Close()

	copied := append([]byte(nil), val...)
	return decompress(copied)
}

// Has reports whether cid is present in the store.
func (s *Store) Has(cid string) (bool, error) {
	_, closer, err := s.db.Get(payloadKey(cid))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("archive: checking %s: %w", cid, err)
	}
	closer.Close()
	return true, nil
}

// AddReference records that a manifest refers to cid. References keep a
// payload alive across GarbageCollect.
func (s *Store) AddReference(cid string) error {
	key := refKey(cid)
	count, err := s.refCount(cid)
	if err != nil {
		return err
	}
	count++
	return s.db.Set(key, []byte(fmt.Sprintf("%d", count)), pebble.Sync)
}

// RemoveReference drops one reference to cid, deleting the ref-count record
// once it reaches zero.
func (s *Store) RemoveReference(cid string) error {
	key := refKey(cid)
	count, err := s.refCount(cid)
	if err != nil {
		return err
	}
	if count <= 0 {
		return nil
	}
	count--
	if count == 0 {
		return s.db.Delete(key, pebble.Sync)
	}
	return s.db.Set(key, []byte(fmt.Sprintf("%d", count)), pebble.Sync)
}

func (s *Store) refCount(cid string) (int, error) {
	val, closer, err := s.db.Get(refKey(cid))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("archive: reading ref count for %s: %w", cid, err)
	}
	defer closer.Close()
	var n int
	if _, err := fmt.Sscanf(string(val), "%d", &n); err != nil {
		return 0, fmt.Errorf("archive: parsing ref count for %s: %w", cid, err)
	}
	return n, nil
}

// GarbageCollect removes every stored payload with a zero reference count,
// mirroring the reference CAS's ref-counted sweep.
func (s *Store) GarbageCollect() (int, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefixPayload),
		UpperBound: append([]byte(prefixPayload), 0xff),
	})
	if err != nil {
		return 0, fmt.Errorf("archive: gc: opening iterator: %w", err)
	}
	defer iter.Close()

	var toDelete []string
	for iter.First(); iter.Valid(); iter.Next() {
		cid := strings.TrimPrefix(string(append([]byte(nil), iter.Key()...)), prefixPayload)
		refs, err := s.refCount(cid)
		if err != nil {
			return len(toDelete), err
		}
		if refs <= 0 {
			toDelete = append(toDelete, cid)
		}
	}
	if err := iter.Error(); err != nil {
		return len(toDelete), fmt.Errorf("archive: gc: iterating: %w", err)
	}

	deleted := 0
	for _, cid := range toDelete {
		if err := s.db.Delete(payloadKey(cid), pebble.Sync); err != nil {
			return deleted, fmt.Errorf("archive: gc: deleting %s: %w", cid, err)
		}
		deleted++
	}
	return deleted, nil
}

var (
	zstdEncoderOnce sync.Once
	zstdDecoderOnce sync.Once
	zstdEncoder     *zstd.Encoder
	zstdDecoder     *zstd.Decoder
	zstdInitErr     error
)

func getZstdEncoder() (*zstd.Encoder, error) {
	zstdEncoderOnce.Do(func() {
		zstdEncoder, zstdInitErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	return zstdEncoder, zstdInitErr
}

func getZstdDecoder() (*zstd.Decoder, error) {
	zstdDecoderOnce.Do(func() {
		zstdDecoder, zstdInitErr = zstd.NewReader(nil)
	})
	return zstdDecoder, zstdInitErr
}

func compress(data []byte) ([]byte, error) {
	enc, err := getZstdEncoder()
	if err != nil {
		return nil, err
	}
	return append([]byte(compressionMagic), enc.EncodeAll(data, nil)...), nil
}

func decompress(data []byte) ([]byte, error) {
	if len(data) < len(compressionMagic) || !bytes.Equal(data[:len(compressionMagic)], []byte(compressionMagic)) {
		return data, nil
	}
	dec, err := getZstdDecoder()
	if err != nil {
		return nil, err
	}
	return dec.DecodeAll(data[len(compressionMagic):], nil)
}

func payloadKey(cid string) []byte { return []byte(prefixPayload + cid) }
func refKey(cid string) []byte     { return []byte(prefixRef + cid) }
