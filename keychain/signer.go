package keychain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
)

var (
	// ErrUnknownKey is returned when a key descriptor does not resolve to
	// any key held by the signer.
	ErrUnknownKey = errors.New("unknown key")
)

// DigestSigner signs a 32-byte digest with the key identified by a key
// descriptor. It is the only capability the transaction builder needs from a
// wallet, hardware signer or HSM.
type DigestSigner interface {
	// SignDigest signs the digest with the private key behind keyDesc.
	SignDigest(keyDesc KeyDescriptor, digest [32]byte) (*ecdsa.Signature,
		error)
}

// PrivKeyRing is a DigestSigner backed by private keys held in memory. It is
// meant for tests and for small tools that already hold the keys they sign
// with; it does no derivation or persistence of its own.
type PrivKeyRing struct {
	mu        sync.RWMutex
	keys      map[KeyLocator]*btcec.PrivateKey
	nextIndex map[KeyFamily]uint32
}

// A compile-time check to ensure PrivKeyRing satisfies DigestSigner.
var _ DigestSigner = (*PrivKeyRing)(nil)

// NewPrivKeyRing returns an empty key ring.
func NewPrivKeyRing() *PrivKeyRing {
	return &PrivKeyRing{
		keys:      make(map[KeyLocator]*btcec.PrivateKey),
		nextIndex: make(map[KeyFamily]uint32),
	}
}

// AddKey stores the private key under the next free index of the family and
// returns its descriptor.
func (r *PrivKeyRing) AddKey(family KeyFamily,
	privKey *btcec.PrivateKey) KeyDescriptor {

	r.mu.Lock()
	defer r.mu.Unlock()

	loc := KeyLocator{
		Family: family,
		Index:  r.nextIndex[family],
	}
	r.nextIndex[family]++
	r.keys[loc] = privKey

	return KeyDescriptor{
		KeyLocator: loc,
		PubKey:     privKey.PubKey(),
	}
}

// AddWIF decodes a wallet import format key and stores it like AddKey.
func (r *PrivKeyRing) AddWIF(family KeyFamily, wif string) (KeyDescriptor,
	error) {

	decoded, err := btcutil.DecodeWIF(wif)
	if err != nil {
		return KeyDescriptor{}, fmt.Errorf("unable to decode WIF: %w",
			err)
	}

	return r.AddKey(family, decoded.PrivKey), nil
}

// DeriveKey returns the full descriptor of the key stored at loc.
func (r *PrivKeyRing) DeriveKey(loc KeyLocator) (KeyDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	privKey, ok := r.keys[loc]
	if !ok {
		return KeyDescriptor{}, fmt.Errorf("%w: locator %v",
			ErrUnknownKey, loc)
	}

	return KeyDescriptor{
		KeyLocator: loc,
		PubKey:     privKey.PubKey(),
	}, nil
}

// SignDigest signs the digest with the key behind keyDesc. A set public key
// is matched first, otherwise the locator is used.
func (r *PrivKeyRing) SignDigest(keyDesc KeyDescriptor,
	digest [32]byte) (*ecdsa.Signature, error) {

	privKey, err := r.findKey(keyDesc)
	if err != nil {
		return nil, err
	}

	return ecdsa.Sign(privKey, digest[:]), nil
}

// findKey resolves a descriptor to one of the stored private keys.
func (r *PrivKeyRing) findKey(keyDesc KeyDescriptor) (*btcec.PrivateKey,
	error) {

	r.mu.RLock()
	defer r.mu.RUnlock()

	if keyDesc.PubKey != nil {
		for _, privKey := range r.keys {
			if privKey.PubKey().IsEqual(keyDesc.PubKey) {
				return privKey, nil
			}
		}

		return nil, fmt.Errorf("%w: pubkey %x", ErrUnknownKey,
			keyDesc.PubKey.SerializeCompressed())
	}

	privKey, ok := r.keys[keyDesc.KeyLocator]
	if !ok {
		return nil, fmt.Errorf("%w: locator %v", ErrUnknownKey,
			keyDesc.KeyLocator)
	}

	return privKey, nil
}
