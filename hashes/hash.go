// Package hashes provides Hash, an immutable digest value tagged with the
// algorithm that produced it. Hashes are the building blocks scripts commit
// to: public key hashes, script hashes and hash-lock preimage digests.
package hashes

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck
)

var (
	// ErrUnknownKind is returned when a hash algorithm tag is not one of
	// the supported kinds.
	ErrUnknownKind = errors.New("unknown hash kind")

	// ErrMalformedHash is returned when the textual form of a hash cannot
	// be decoded.
	ErrMalformedHash = errors.New("malformed hash")
)

// Kind identifies the digest algorithm a Hash was produced with.
type Kind uint8

const (
	// Hash160 is RIPEMD160(SHA256(x)), used for key and script hashes.
	Hash160 Kind = iota

	// Hash256 is SHA256(SHA256(x)), used for transaction ids.
	Hash256

	// Ripemd160 is a single RIPEMD160 round.
	Ripemd160

	// Sha256 is a single SHA256 round.
	Sha256
)

// kinds lists every supported kind, in declaration order.
var kinds = []Kind{Hash160, Hash256, Ripemd160, Sha256}

// String returns the algorithm tag of the kind.
func (k Kind) String() string {
	switch k {
	case Hash160:
		return "hash160"
	case Hash256:
		return "hash256"
	case Ripemd160:
		return "ripemd160"
	case Sha256:
		return "sha256"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Size returns the digest length in bytes produced by the algorithm.
func (k Kind) Size() int {
	switch k {
	case Hash160, Ripemd160:
		return ripemd160.Size
	default:
		return sha256.Size
	}
}

// ParseKind maps an algorithm tag back to its Kind.
func ParseKind(tag string) (Kind, error) {
	for _, k := range kinds {
		if k.String() == tag {
			return k, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, tag)
}

// Hash is an immutable digest tagged with its algorithm. The zero value is an
// empty Hash160.
type Hash struct {
	kind Kind
	b    []byte
}

// New wraps a copy of b as a hash of the given kind. The length of b is not
// checked against the kind, mirroring scripts that commit to arbitrary data.
func New(kind Kind, b []byte) Hash {
	return Hash{
		kind: kind,
		b:    bytes.Clone(b),
	}
}

// Sum computes the digest of data with the algorithm identified by kind.
func Sum(kind Kind, data []byte) (Hash, error) {
	switch kind {
	case Hash160:
		return Hash160Of(data), nil
	case Hash256:
		return Hash256Of(data), nil
	case Ripemd160:
		return Ripemd160Of(data), nil
	case Sha256:
		return Sha256Of(data), nil
	default:
		return Hash{}, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
	}
}

// Hash160Of returns RIPEMD160(SHA256(data)).
func Hash160Of(data []byte) Hash {
	return Hash{kind: Hash160, b: btcutil.Hash160(data)}
}

// Hash256Of returns SHA256(SHA256(data)).
func Hash256Of(data []byte) Hash {
	return Hash{kind: Hash256, b: chainhash.DoubleHashB(data)}
}

// Ripemd160Of returns RIPEMD160(data).
func Ripemd160Of(data []byte) Hash {
	h := ripemd160.New()
	h.Write(data)

	return Hash{kind: Ripemd160, b: h.Sum(nil)}
}

// Sha256Of returns SHA256(data).
func Sha256Of(data []byte) Hash {
	return Hash{kind: Sha256, b: chainhash.HashB(data)}
}

// Parse decodes the "<tag>:<hex>" form produced by String.
func Parse(s string) (Hash, error) {
	tag, digest, ok := strings.Cut(s, ":")
	if !ok {
		return Hash{}, fmt.Errorf("%w: missing algorithm tag in %q",
			ErrMalformedHash, s)
	}

	kind, err := ParseKind(tag)
	if err != nil {
		return Hash{}, err
	}

	b, err := hex.DecodeString(digest)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}

	return Hash{kind: kind, b: b}, nil
}

// Kind returns the algorithm the hash is tagged with.
func (h Hash) Kind() Kind {
	return h.kind
}

// Bytes returns a copy of the digest bytes.
func (h Hash) Bytes() []byte {
	return bytes.Clone(h.b)
}

// Len returns the digest length in bytes.
func (h Hash) Len() int {
	return len(h.b)
}

// Hex returns the digest bytes hex encoded.
func (h Hash) Hex() string {
	return hex.EncodeToString(h.b)
}

// Equal reports whether both hashes carry the same digest bytes. The
// algorithm tag is not part of a hash's identity.
func (h Hash) Equal(other Hash) bool {
	return bytes.Equal(h.b, other.b)
}

// String returns the hash as "<tag>:<hex>".
func (h Hash) String() string {
	return h.kind.String() + ":" + h.Hex()
}
