// Package cas implements Vex's content-addressable object store (spec §4.2):
// objects are written once under their hash and never mutated in place.
package cas

import (
	"github.com/kurobon/vex/internal/codec"
)

// CAS is the content-addressable store interface. Implementations must
// be safe for concurrent readers; writers are serialized by the caller
// (the repository lock, spec §5).
type CAS interface {
	// Put stores the canonical bytes of an object under its hash,
	// a no-op if the hash is already present (content addressing
	// makes writes idempotent).
	Put(hash codec.Hash, data []byte) error
	// Get returns the canonical bytes stored under hash.
	Get(hash codec.Hash) ([]byte, error)
	// Has reports whether hash is present without reading its bytes.
	Has(hash codec.Hash) (bool, error)
	// IterReachable calls fn for every hash reachable from the store's
	// shard directories, stopping early if fn returns an error.
	IterReachable(fn func(codec.Hash) error) error
}

// ErrNotFound is returned by Get/Has-adjacent calls for a missing hash.
type ErrNotFound struct {
	Hash codec.Hash
}

func (e ErrNotFound) Error() string { return "cas: object not found: " + e.Hash.String() }

// rawSizeThreshold is the encoded-object size above which the on-disk
// representation is zstd-compressed (spec §4.2: "large blobs ... stored
// compressed"). Objects at or under the threshold are stored as-is so
// small objects (the overwhelming majority: trees, commits, changelog
// entries) skip compression overhead entirely.
const rawSizeThreshold = 1 << 20 // 1 MiB
