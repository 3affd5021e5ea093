package keychain

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// KeyFamily groups keys that play the same role in the scripts of a graph,
// e.g. all keys that sign spends of one contract. Families are distinct
// namespaces of key indexes.
type KeyFamily uint32

const (
	// KeyFamilyDefault is the family used when the caller has no reason
	// to partition its keys.
	KeyFamilyDefault KeyFamily = 0
)

// KeyLocator is a two-tuple that identifies a key without revealing it. A
// signature placeholder carries a locator so the private key itself never has
// to be part of a script template.
type KeyLocator struct {
	// Family is the family of key being identified.
	Family KeyFamily

	// Index is the precise index of the key being identified.
	Index uint32
}

// String returns the locator as "family/index".
func (k KeyLocator) String() string {
	return fmt.Sprintf("%d/%d", k.Family, k.Index)
}

// KeyDescriptor wraps a KeyLocator and also optionally includes a public key.
// If the public key is set it takes precedence when a signer looks the key
// up.
type KeyDescriptor struct {
	// KeyLocator is the internal KeyLocator of the descriptor.
	KeyLocator

	// PubKey is an optional public key that fully describes a target key.
	PubKey *btcec.PublicKey
}
