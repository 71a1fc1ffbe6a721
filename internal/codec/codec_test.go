package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDeterministicKeyOrder(t *testing.T) {
	v1 := Obj(map[string]Value{
		"kind": Str("blob"),
		"b":    Int(2),
		"a":    Int(1),
		"c":    Int(3),
	})
	v2 := Obj(map[string]Value{
		"c":    Int(3),
		"a":    Int(1),
		"kind": Str("blob"),
		"b":    Int(2),
	})
	assert.Equal(t, Encode(v1), Encode(v2))
	assert.Equal(t, `{"kind":"blob","a":1,"b":2,"c":3}`, string(Encode(v1)))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	v := Obj(map[string]Value{
		"kind": Str("tree"),
		"name": Str("héllo\nworld"),
		"ok":   Bool(true),
		"nil":  Null(),
		"data": Bin([]byte{0xde, 0xad, 0xbe, 0xef}),
		"list": Arr(Int(1), Int(-2), Str("x")),
	})
	enc := Encode(v)
	got, err := Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, enc, Encode(got))

	s, ok := got.Get("name").AsString()
	require.True(t, ok)
	assert.Equal(t, "héllo\nworld", s)

	b, ok := got.Get("data").AsBytes()
	require.True(t, ok)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, b)
}

func TestEncodeDecodeRoundTripDollarPrefixedString(t *testing.T) {
	for _, s := range []string{"$5 off", "$6162", "$", "$$"} {
		enc := Encode(Str(s))
		assert.NotEqual(t, byte('$'), enc[1], "leading '$' must not reach the wire unescaped")

		got, err := Decode(enc)
		require.NoError(t, err)
		str, ok := got.AsString()
		require.True(t, ok, "%q must decode back to a string, not bytes", s)
		assert.Equal(t, s, str)
	}
}

func TestDecodeRejectsFloats(t *testing.T) {
	_, err := Decode([]byte(`{"a":1.5}`))
	assert.Error(t, err)
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	_, err := Decode([]byte(`1 2`))
	assert.Error(t, err)
}

func TestDecodeRejectsNonMinimalInt(t *testing.T) {
	_, err := Decode([]byte(`01`))
	assert.Error(t, err)
}

func TestHashObjectDeterministicAndDomainSeparated(t *testing.T) {
	bytes1 := Encode(Obj(map[string]Value{"kind": Str("blob"), "x": Int(1)}))
	h1 := HashObject("blob", bytes1)
	h2 := HashObject("blob", bytes1)
	assert.Equal(t, h1, h2)

	h3 := HashObject("tree", bytes1)
	assert.NotEqual(t, h1, h3)
}

func TestResolvePrefix(t *testing.T) {
	a := HashObject("blob", []byte("a"))
	b := HashObject("blob", []byte("b"))
	got, err := ResolvePrefix(a.String()[:8], []Hash{a, b})
	require.NoError(t, err)
	assert.Equal(t, a, got)

	_, err = ResolvePrefix("00", []Hash{a, b})
	assert.Error(t, err)
}
