// Package codec implements Vex's canonical, tagged, JSON-like encoding.
//
// A Value is the closed set of shapes every CAS object is built from.
// Encode always produces the same bytes for the same logical value:
// map keys are sorted, integers are written in minimal decimal form,
// strings are NFC-normalized before escaping, and floats do not exist
// as a variant at all.
package codec

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// Kind identifies a Value's shape.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindString
	KindBytes
	KindArray
	KindMap
)

// Value is Vex's canonical sum type. Exactly one of the typed fields is
// meaningful, selected by Kind. Construct with the Null/Bool/Int/Str/Bin/
// Arr/Obj helpers rather than building a Value literal by hand.
type Value struct {
	kind Kind
	b    bool
	i    int64
	s    string
	bin  []byte
	arr  []Value
	obj  map[string]Value
}

func Null() Value          { return Value{kind: KindNull} }
func Bool(v bool) Value    { return Value{kind: KindBool, b: v} }
func Int(v int64) Value    { return Value{kind: KindInt, i: v} }
func Str(v string) Value   { return Value{kind: KindString, s: norm.NFC.String(v)} }
func Bin(v []byte) Value   { return Value{kind: KindBytes, bin: append([]byte(nil), v...)} }
func Arr(v ...Value) Value { return Value{kind: KindArray, arr: v} }
func Obj(m map[string]Value) Value {
	return Value{kind: KindMap, obj: m}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsBool() (bool, bool)            { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool)            { return v.i, v.kind == KindInt }
func (v Value) AsString() (string, bool)        { return v.s, v.kind == KindString }
func (v Value) AsBytes() ([]byte, bool)         { return v.bin, v.kind == KindBytes }
func (v Value) AsArray() ([]Value, bool)        { return v.arr, v.kind == KindArray }
func (v Value) AsMap() (map[string]Value, bool) { return v.obj, v.kind == KindMap }
func (v Value) IsNull() bool                    { return v.kind == KindNull }

// Get returns the field named key from a map Value, or Null if absent
// or v is not a map.
func (v Value) Get(key string) Value {
	if v.kind != KindMap {
		return Null()
	}
	if val, ok := v.obj[key]; ok {
		return val
	}
	return Null()
}

// Field builds a map entry; a small convenience for ToValue implementations.
func Field(key string, v Value) (string, Value) { return key, v }

// MapOf is a convenience constructor from alternating key/value
// arguments (a string key, then its codec.Value), so object packages
// read naturally: codec.MapOf("kind", ..., ...).
func MapOf(pairs ...any) Value {
	m := make(map[string]Value, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			panic("codec.MapOf: even arguments must be string keys")
		}
		val, ok := pairs[i+1].(Value)
		if !ok {
			panic("codec.MapOf: odd arguments must be codec.Value")
		}
		m[key] = val
	}
	return Obj(m)
}

// Encode produces the canonical byte form of v. The "kind" key of a map,
// if present, is always written first; all other keys follow in sorted
// order. This single carve-out from strict lexicographic order lets
// decoders identify an object's type at offset 0 per spec §4.1 without
// weakening determinism (every value still has exactly one byte form).
func Encode(v Value) []byte {
	var buf bytes.Buffer
	encode(&buf, v)
	return buf.Bytes()
}

func encode(buf *bytes.Buffer, v Value) {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindInt:
		buf.WriteString(strconv.FormatInt(v.i, 10))
	case KindString:
		encodeString(buf, v.s)
	case KindBytes:
		buf.WriteByte('"')
		buf.WriteByte('$') // binary escape marker, spec §4.1
		buf.WriteString(hexEncode(v.bin))
		buf.WriteByte('"')
	case KindArray:
		buf.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			encode(buf, e)
		}
		buf.WriteByte(']')
	case KindMap:
		buf.WriteByte('{')
		keys := make([]string, 0, len(v.obj))
		hasKind := false
		for k := range v.obj {
			if k == "kind" {
				hasKind = true
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		first := true
		if hasKind {
			buf.WriteByte('"')
			buf.WriteString("kind")
			buf.WriteString(`":`)
			encode(buf, v.obj["kind"])
			first = false
		}
		for _, k := range keys {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			encodeString(buf, k)
			buf.WriteByte(':')
			encode(buf, v.obj[k])
		}
		buf.WriteByte('}')
	default:
		panic(fmt.Sprintf("codec: unknown kind %d", v.kind))
	}
}

func encodeString(buf *bytes.Buffer, s string) {
	s = norm.NFC.String(s)
	buf.WriteByte('"')
	for i, r := range s {
		switch {
		case i == 0 && r == '$':
			// A literal leading '$' is indistinguishable from the binary
			// escape marker (the KindBytes case above); escape it so
			// Decode's isBinary check never fires on a plain string.
			fmt.Fprintf(buf, `\u%04x`, r)
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r < 0x20:
			fmt.Fprintf(buf, `\u%04x`, r)
		default:
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}

const hexDigits = "0123456789abcdef"

func hexEncode(b []byte) string {
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0xf]
	}
	return string(out)
}
