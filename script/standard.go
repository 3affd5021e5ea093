package script

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
)

// Empty returns a template that renders to an empty script. It is the usual
// input script of a coinbase or an anyone-can-spend output.
func Empty() *Builder {
	return NewBuilder()
}

// PayToPubKeyHash returns the standard P2PKH output script:
//
//	OP_DUP OP_HASH160 <pubKeyHash> OP_EQUALVERIFY OP_CHECKSIG
func PayToPubKeyHash(pubKeyHash []byte) *Builder {
	return NewBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(pubKeyHash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG)
}

// PayToPubKeyHashVar is PayToPubKeyHash with the key hash left as the
// TypeHash160 free variable name.
func PayToPubKeyHashVar(name string) *Builder {
	return NewBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddVariable(name, TypeHash160).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG)
}

// PayToPubKey returns a bare pay-to-pubkey output script.
func PayToPubKey(pubKey *btcec.PublicKey) *Builder {
	return NewBuilder().
		AddValue(pubKey).
		AddOp(txscript.OP_CHECKSIG)
}

// PayToAddress returns the output script paying to addr.
func PayToAddress(addr btcutil.Address) (*Builder, error) {
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, fmt.Errorf("unable to create script for %v: %w",
			addr, err)
	}

	b := NewBuilder().AddRaw(pkScript)

	return b, b.Err()
}

// PayToScriptHash returns the P2SH output script committing to the rendered
// redeem script. The redeem script may still hold free variables; they become
// free variables of the returned template.
func PayToScriptHash(redeem *Builder) *Builder {
	return NewBuilder().
		AddOp(txscript.OP_HASH160).
		AddScriptHash(redeem).
		AddOp(txscript.OP_EQUAL)
}

// MultiSig returns a bare m-of-n CHECKMULTISIG script over pubKeys.
func MultiSig(m int, pubKeys ...*btcec.PublicKey) *Builder {
	b := NewBuilder()
	if m < 1 || m > len(pubKeys) || len(pubKeys) > 16 {
		b.err = fmt.Errorf("%w: invalid %d-of-%d multisig",
			ErrUnsupportedValue, m, len(pubKeys))
		return b
	}

	b.AddInt64(int64(m))
	for _, pubKey := range pubKeys {
		b.AddValue(pubKey)
	}

	return b.AddInt64(int64(len(pubKeys))).
		AddOp(txscript.OP_CHECKMULTISIG)
}

// SpendPubKeyHash returns the input script redeeming a P2PKH output of
// pubKey: a signature placeholder followed by the key itself.
func SpendPubKeyHash(signDesc *SignDescriptor,
	pubKey *btcec.PublicKey) *Builder {

	return NewBuilder().
		AddSignature(signDesc).
		AddValue(pubKey)
}

// CheckLockTimeVerify returns a script that can be spent by pubKey once the
// absolute lock time has passed:
//
//	<lockTime> OP_CHECKLOCKTIMEVERIFY OP_DROP <pubKey> OP_CHECKSIG
func CheckLockTimeVerify(lockTime int64, pubKey *btcec.PublicKey) *Builder {
	return NewBuilder().
		AddInt64(lockTime).
		AddOp(txscript.OP_CHECKLOCKTIMEVERIFY).
		AddOp(txscript.OP_DROP).
		AddValue(pubKey).
		AddOp(txscript.OP_CHECKSIG)
}

// CheckSequenceVerify returns a script that can be spent by pubKey once the
// relative lock encoded in sequence has passed.
func CheckSequenceVerify(sequence int64, pubKey *btcec.PublicKey) *Builder {
	return NewBuilder().
		AddInt64(sequence).
		AddOp(txscript.OP_CHECKSEQUENCEVERIFY).
		AddOp(txscript.OP_DROP).
		AddValue(pubKey).
		AddOp(txscript.OP_CHECKSIG)
}

// NullData returns a provably unspendable OP_RETURN script carrying data.
func NullData(data []byte) *Builder {
	return NewBuilder().
		AddOp(txscript.OP_RETURN).
		AddData(data)
}
