package cas

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/kurobon/vex/internal/codec"
)

// compressedMagic prefixes the on-disk bytes of any object stored
// through the zstd path, so Get can tell compressed from raw objects
// without a side-channel index.
var compressedMagic = []byte("VXZ1")

// FileCAS is the on-disk CAS: objects live at
// <root>/<2 hex digits>/<remaining 62 hex digits>, matching the
// two-level sharding convention spec §4.2 prescribes to keep any single
// directory from holding every object in the store.
type FileCAS struct {
	root string
}

// NewFileCAS opens (and, if absent, creates) a CAS rooted at dir.
func NewFileCAS(dir string) (*FileCAS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "cas: create root %s", dir)
	}
	return &FileCAS{root: dir}, nil
}

func (c *FileCAS) path(h codec.Hash) string {
	s := h.String()
	return filepath.Join(c.root, s[:2], s[2:])
}

// Put stores data under hash, compressing with zstd when data exceeds
// rawSizeThreshold. Writes go to a temp file in the shard directory,
// fsynced, then atomically renamed into place (spec §4.2's durability
// protocol); a write that dies mid-way leaves only an orphaned temp
// file, never a partial object at its final path.
func (c *FileCAS) Put(h codec.Hash, data []byte) error {
	if ok, err := c.Has(h); err != nil {
		return err
	} else if ok {
		return nil
	}

	dest := c.path(h)
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "cas: create shard dir %s", dir)
	}

	payload := data
	if len(data) > rawSizeThreshold {
		compressed, err := compress(data)
		if err != nil {
			return errors.Wrap(err, "cas: compress object")
		}
		payload = append(append([]byte{}, compressedMagic...), compressed...)
	}

	tmp, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return errors.Wrap(err, "cas: create temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "cas: write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "cas: fsync temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "cas: close temp file")
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "cas: rename into place %s", dest)
	}
	return syncDir(dir)
}

// Get reads and, if necessary, decompresses the object stored under h.
func (c *FileCAS) Get(h codec.Hash) ([]byte, error) {
	raw, err := os.ReadFile(c.path(h))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound{Hash: h}
		}
		return nil, errors.Wrapf(err, "cas: read object %s", h)
	}
	if bytes.HasPrefix(raw, compressedMagic) {
		return decompress(raw[len(compressedMagic):])
	}
	return raw, nil
}

func (c *FileCAS) Has(h codec.Hash) (bool, error) {
	_, err := os.Stat(c.path(h))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, "cas: stat object %s", h)
}

func (c *FileCAS) IterReachable(fn func(codec.Hash) error) error {
	shards, err := os.ReadDir(c.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "cas: list shard dirs")
	}
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(c.root, shard.Name()))
		if err != nil {
			return errors.Wrapf(err, "cas: list shard %s", shard.Name())
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			full := shard.Name() + e.Name()
			b, err := hex.DecodeString(full)
			if err != nil || len(b) != codec.HashSize {
				continue // skip stray temp files, etc.
			}
			var h codec.Hash
			copy(h[:], b)
			if err := fn(h); err != nil {
				return err
			}
		}
	}
	return nil
}

func compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

// syncDir fsyncs a directory so a rename into it is durable across a
// crash, not just the renamed file itself.
func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return errors.Wrapf(err, "cas: open dir %s for sync", dir)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		// Some platforms/filesystems don't support fsync on directories;
		// treat it as best-effort rather than a hard failure.
		return nil
	}
	return nil
}
