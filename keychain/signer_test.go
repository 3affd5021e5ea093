package keychain

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

var (
	testPrivKeyBytes = []byte{
		0x2b, 0xd8, 0x06, 0xc9, 0x7f, 0x0e, 0x00, 0xaf,
		0x1a, 0x1f, 0xc3, 0x32, 0x8f, 0xa7, 0x63, 0xa9,
		0x26, 0x97, 0x23, 0xc8, 0xdb, 0x8f, 0xac, 0x4f,
		0x93, 0xaf, 0x71, 0xdb, 0x18, 0x6d, 0x6e, 0x90,
	}

	testDigest = chainhash.DoubleHashH([]byte("digest"))
)

// TestPrivKeyRingSign checks that keys can be found both by locator and by
// public key, and that the produced signatures verify.
func TestPrivKeyRingSign(t *testing.T) {
	t.Parallel()

	ring := NewPrivKeyRing()
	privKey, pubKey := btcec.PrivKeyFromBytes(testPrivKeyBytes)

	desc := ring.AddKey(KeyFamilyDefault, privKey)
	require.Equal(t, KeyLocator{Family: 0, Index: 0}, desc.KeyLocator)
	require.True(t, pubKey.IsEqual(desc.PubKey))

	// A second key in the same family gets the next index.
	other, _ := btcec.NewPrivateKey()
	otherDesc := ring.AddKey(KeyFamilyDefault, other)
	require.Equal(t, uint32(1), otherDesc.Index)

	// Lookup by locator only.
	sig, err := ring.SignDigest(
		KeyDescriptor{KeyLocator: desc.KeyLocator}, testDigest,
	)
	require.NoError(t, err)
	require.True(t, sig.Verify(testDigest[:], pubKey))

	// Lookup by public key takes precedence over a stale locator.
	sig, err = ring.SignDigest(KeyDescriptor{
		KeyLocator: KeyLocator{Family: 7, Index: 7},
		PubKey:     otherDesc.PubKey,
	}, testDigest)
	require.NoError(t, err)
	require.True(t, sig.Verify(testDigest[:], other.PubKey()))

	derived, err := ring.DeriveKey(otherDesc.KeyLocator)
	require.NoError(t, err)
	require.True(t, other.PubKey().IsEqual(derived.PubKey))
}

// TestPrivKeyRingUnknown asserts lookups of missing keys fail with
// ErrUnknownKey.
func TestPrivKeyRingUnknown(t *testing.T) {
	t.Parallel()

	ring := NewPrivKeyRing()

	_, err := ring.SignDigest(
		KeyDescriptor{KeyLocator: KeyLocator{Index: 3}}, testDigest,
	)
	require.ErrorIs(t, err, ErrUnknownKey)

	_, pubKey := btcec.PrivKeyFromBytes(testPrivKeyBytes)
	_, err = ring.SignDigest(KeyDescriptor{PubKey: pubKey}, testDigest)
	require.ErrorIs(t, err, ErrUnknownKey)

	_, err = ring.DeriveKey(KeyLocator{Family: 1})
	require.ErrorIs(t, err, ErrUnknownKey)
}

// TestPrivKeyRingWIF imports a key in wallet import format.
func TestPrivKeyRingWIF(t *testing.T) {
	t.Parallel()

	privKey, pubKey := btcec.PrivKeyFromBytes(testPrivKeyBytes)
	wif, err := btcutil.NewWIF(privKey, &chaincfg.RegressionNetParams, true)
	require.NoError(t, err)

	ring := NewPrivKeyRing()
	desc, err := ring.AddWIF(KeyFamily(2), wif.String())
	require.NoError(t, err)
	require.Equal(t, KeyFamily(2), desc.Family)
	require.True(t, pubKey.IsEqual(desc.PubKey))

	_, err = ring.AddWIF(KeyFamily(2), "not-a-wif")
	require.Error(t, err)
}
