package script

import (
	"fmt"
	"math"

	"github.com/bitcointm/txgraph/hashes"
	"github.com/btcsuite/btcd/btcec/v2"
)

// Type is the tag of a free variable. A value satisfies a Type only if its
// dynamic Go type is exactly the one the tag names.
type Type uint8

const (
	// TypeInt is satisfied by int64 values, pushed as script numbers.
	// Script numbers are sign-magnitude, so math.MinInt64 has no encoding
	// and is rejected.
	TypeInt Type = iota + 1

	// TypeBool is satisfied by bool values, pushed as OP_TRUE/OP_FALSE.
	TypeBool

	// TypeString is satisfied by string values, pushed as their bytes.
	TypeString

	// TypeBytes is satisfied by []byte values.
	TypeBytes

	// TypeHash160 is satisfied by a hashes.Hash of kind Hash160.
	TypeHash160

	// TypeHash256 is satisfied by a hashes.Hash of kind Hash256.
	TypeHash256

	// TypeRipemd160 is satisfied by a hashes.Hash of kind Ripemd160.
	TypeRipemd160

	// TypeSha256 is satisfied by a hashes.Hash of kind Sha256.
	TypeSha256

	// TypePubKey is satisfied by a non-nil *btcec.PublicKey, pushed in its
	// compressed encoding.
	TypePubKey
)

var typeNames = map[Type]string{
	TypeInt:       "int",
	TypeBool:      "bool",
	TypeString:    "string",
	TypeBytes:     "bytes",
	TypeHash160:   "hash160",
	TypeHash256:   "hash256",
	TypeRipemd160: "ripemd160",
	TypeSha256:    "sha256",
	TypePubKey:    "pubkey",
}

// String returns the textual name of the type tag.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("type(%d)", uint8(t))
}

// ParseType maps a type name as returned by String back to its tag.
func ParseType(name string) (Type, error) {
	for t, n := range typeNames {
		if n == name {
			return t, nil
		}
	}

	return 0, fmt.Errorf("%w: unknown type %q", ErrTypeMismatch, name)
}

// hashKind returns the hash kind a hash-valued type tag requires.
func (t Type) hashKind() (hashes.Kind, bool) {
	switch t {
	case TypeHash160:
		return hashes.Hash160, true
	case TypeHash256:
		return hashes.Hash256, true
	case TypeRipemd160:
		return hashes.Ripemd160, true
	case TypeSha256:
		return hashes.Sha256, true
	default:
		return 0, false
	}
}

// Check reports whether v is a valid value for a variable of type t.
func (t Type) Check(v any) bool {
	if kind, ok := t.hashKind(); ok {
		h, ok := v.(hashes.Hash)
		return ok && h.Kind() == kind
	}

	switch t {
	case TypeInt:
		n, ok := v.(int64)
		return ok && n != math.MinInt64

	case TypeBool:
		_, ok := v.(bool)
		return ok

	case TypeString:
		_, ok := v.(string)
		return ok

	case TypeBytes:
		_, ok := v.([]byte)
		return ok

	case TypePubKey:
		pub, ok := v.(*btcec.PublicKey)
		return ok && pub != nil

	default:
		return false
	}
}

// TypeOf returns the tag a value satisfies, if any.
func TypeOf(v any) (Type, bool) {
	switch val := v.(type) {
	case int64:
		return TypeInt, val != math.MinInt64
	case bool:
		return TypeBool, true
	case string:
		return TypeString, true
	case []byte:
		return TypeBytes, true
	case *btcec.PublicKey:
		return TypePubKey, val != nil
	case hashes.Hash:
		switch val.Kind() {
		case hashes.Hash160:
			return TypeHash160, true
		case hashes.Hash256:
			return TypeHash256, true
		case hashes.Ripemd160:
			return TypeRipemd160, true
		case hashes.Sha256:
			return TypeSha256, true
		}
	}

	return 0, false
}

// pushData returns the bytes a data-like value is pushed as. Integers and
// booleans have no data form and report false.
func pushData(v any) ([]byte, bool) {
	switch val := v.(type) {
	case string:
		return []byte(val), true
	case []byte:
		return val, true
	case hashes.Hash:
		return val.Bytes(), true
	case *btcec.PublicKey:
		return val.SerializeCompressed(), true
	default:
		return nil, false
	}
}
