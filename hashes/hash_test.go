package hashes

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDigests checks each kind against well known digests of the empty
// string.
func TestDigests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind Kind
		want string
	}{
		{
			kind: Sha256,
			want: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			kind: Hash256,
			want: "5df6e0e2761359d30a8275058e299fcc0381534545f55cf43e41983f5d4c9456",
		},
		{
			kind: Ripemd160,
			want: "9c1185a5c5e9fc54612808977ee8f548b2258d31",
		},
		{
			kind: Hash160,
			want: "b472a266d0bd89c13706a4132ccfb16f7c3b9fcb",
		},
	}

	for _, test := range tests {
		t.Run(test.kind.String(), func(t *testing.T) {
			h, err := Sum(test.kind, nil)
			require.NoError(t, err)
			require.Equal(t, test.kind, h.Kind())
			require.Equal(t, test.want, h.Hex())
			require.Equal(t, test.kind.Size(), h.Len())
		})
	}

	_, err := Sum(Kind(42), nil)
	require.ErrorIs(t, err, ErrUnknownKind)
}

// TestImmutable makes sure neither the input nor the returned slices alias the
// hash's internal buffer.
func TestImmutable(t *testing.T) {
	t.Parallel()

	raw := []byte{1, 2, 3}
	h := New(Sha256, raw)

	raw[0] = 0xff
	require.Equal(t, []byte{1, 2, 3}, h.Bytes())

	out := h.Bytes()
	out[1] = 0xff
	require.Equal(t, []byte{1, 2, 3}, h.Bytes())
}

// TestEqualIgnoresKind asserts that identity is carried by the digest bytes
// alone.
func TestEqualIgnoresKind(t *testing.T) {
	t.Parallel()

	b, _ := hex.DecodeString("00112233")
	require.True(t, New(Hash160, b).Equal(New(Sha256, b)))
	require.False(t, New(Hash160, b).Equal(New(Hash160, b[:3])))
	require.True(t, Hash{}.Equal(New(Ripemd160, nil)))
}

// TestParseString round trips the textual form and rejects bad input.
func TestParseString(t *testing.T) {
	t.Parallel()

	h := Hash160Of([]byte("abc"))
	parsed, err := Parse(h.String())
	require.NoError(t, err)
	require.Equal(t, h.Kind(), parsed.Kind())
	require.True(t, h.Equal(parsed))
	require.Equal(t, "hash160:"+h.Hex(), h.String())

	_, err = Parse("deadbeef")
	require.ErrorIs(t, err, ErrMalformedHash)

	_, err = Parse("md5:deadbeef")
	require.ErrorIs(t, err, ErrUnknownKind)

	_, err = Parse("sha256:zz")
	require.ErrorIs(t, err, ErrMalformedHash)
}
