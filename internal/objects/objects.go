// Package objects defines Vex's CAS object kinds (spec §3) and their
// canonical codec.Value conversions.
package objects

import (
	"fmt"

	"github.com/kurobon/vex/internal/codec"
)

// Object is implemented by every CAS object kind.
type Object interface {
	Kind() string
	ToValue() codec.Value
}

// Encode canonicalizes and hashes an Object in one step, the operation
// CAS.Put performs on every write.
func Encode(o Object) (codec.Hash, []byte) {
	bytes := codec.Encode(o.ToValue())
	return codec.HashObject(o.Kind(), bytes), bytes
}

// OptHash is a hash that may be absent ("none" in spec prose): a commit's
// parent, a branch's upstream, a session's prepared commit, and so on.
type OptHash struct {
	Hash codec.Hash
	Set  bool
}

func NoHash() OptHash             { return OptHash{} }
func SomeHash(h codec.Hash) OptHash { return OptHash{Hash: h, Set: true} }

func (o OptHash) ToValue() codec.Value {
	if !o.Set {
		return codec.Null()
	}
	return codec.Str(o.Hash.String())
}

func optHashFromValue(v codec.Value) (OptHash, error) {
	if v.IsNull() {
		return NoHash(), nil
	}
	s, ok := v.AsString()
	if !ok {
		return OptHash{}, fmt.Errorf("objects: expected string hash or null")
	}
	h, err := codec.ParseHash(s)
	if err != nil {
		return OptHash{}, err
	}
	return SomeHash(h), nil
}

// OptString is an optional string field (spec's "string | none").
type OptString struct {
	Value string
	Set   bool
}

func NoString() OptString          { return OptString{} }
func SomeString(s string) OptString { return OptString{Value: s, Set: true} }

func (o OptString) ToValue() codec.Value {
	if !o.Set {
		return codec.Null()
	}
	return codec.Str(o.Value)
}

func optStringFromValue(v codec.Value) (OptString, error) {
	if v.IsNull() {
		return NoString(), nil
	}
	s, ok := v.AsString()
	if !ok {
		return OptString{}, fmt.Errorf("objects: expected string or null")
	}
	return SomeString(s), nil
}

func hashFromValue(v codec.Value) (codec.Hash, error) {
	s, ok := v.AsString()
	if !ok {
		return codec.Hash{}, fmt.Errorf("objects: expected hash string")
	}
	return codec.ParseHash(s)
}

func stringField(v codec.Value, key string) (string, error) {
	s, ok := v.Get(key).AsString()
	if !ok {
		return "", fmt.Errorf("objects: field %q must be a string", key)
	}
	return s, nil
}

func intField(v codec.Value, key string) (int64, error) {
	n, ok := v.Get(key).AsInt()
	if !ok {
		return 0, fmt.Errorf("objects: field %q must be an integer", key)
	}
	return n, nil
}

func boolField(v codec.Value, key string) (bool, error) {
	b, ok := v.Get(key).AsBool()
	if !ok {
		return false, fmt.Errorf("objects: field %q must be a boolean", key)
	}
	return b, nil
}

func checkKind(v codec.Value, want string) error {
	got, ok := v.Get("kind").AsString()
	if !ok {
		return fmt.Errorf("objects: missing kind tag")
	}
	if got != want {
		return fmt.Errorf("objects: expected kind %q, got %q", want, got)
	}
	return nil
}

// Props is the free-form string -> value property bag attached to File
// entries (executable bit, mime hint, line-ending policy, user-defined
// keys) and Tree entries.
type Props map[string]codec.Value

func (p Props) ToValue() codec.Value {
	m := make(map[string]codec.Value, len(p))
	for k, v := range p {
		m[k] = v
	}
	return codec.Obj(m)
}

func propsFromValue(v codec.Value) (Props, error) {
	m, ok := v.AsMap()
	if !ok {
		if v.IsNull() {
			return Props{}, nil
		}
		return nil, fmt.Errorf("objects: properties must be a map")
	}
	out := make(Props, len(m))
	for k, val := range m {
		out[k] = val
	}
	return out, nil
}
