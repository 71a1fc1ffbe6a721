package codec

import (
	"encoding/hex"
	"fmt"
	"strings"

	"lukechampine.com/blake3"
)

// HashSize is the width of a Vex object hash in bytes.
const HashSize = 32

// Hash is a 32-byte BLAKE3 digest, presented as lowercase hex.
type Hash [HashSize]byte

// HashObject computes the domain-separated hash of an encoded object:
// blake3(kind || 0x00 || canonical_bytes).
func HashObject(kind string, canonicalBytes []byte) Hash {
	h := blake3.New(HashSize, nil)
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write(canonicalBytes)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

func (h Hash) IsZero() bool { return h == Hash{} }

// ParseHash decodes a full 64-character lowercase hex hash.
func ParseHash(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("codec: invalid hash %q: %w", s, err)
	}
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("codec: hash %q has wrong length", s)
	}
	var out Hash
	copy(out[:], b)
	return out, nil
}

// ResolvePrefix finds the unique hash in candidates whose hex form
// starts with prefix. It returns an error if zero or more than one
// candidate matches.
func ResolvePrefix(prefix string, candidates []Hash) (Hash, error) {
	prefix = strings.ToLower(prefix)
	var match Hash
	found := 0
	for _, c := range candidates {
		if strings.HasPrefix(c.String(), prefix) {
			match = c
			found++
			if found > 1 {
				return Hash{}, fmt.Errorf("codec: ambiguous hash prefix %q", prefix)
			}
		}
	}
	if found == 0 {
		return Hash{}, fmt.Errorf("codec: no object matches hash prefix %q", prefix)
	}
	return match, nil
}
