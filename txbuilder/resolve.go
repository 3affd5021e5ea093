package txbuilder

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/bitcointm/txgraph/script"
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
)

// resolveMemo holds the transactions resolved during one Resolve call, keyed
// by handle identity, so a parent shared by several inputs is resolved once.
type resolveMemo map[Transaction]*wire.MsgTx

// memoizable reports whether a handle can be used as a memo key. Only
// pointer handles have a stable identity.
func memoizable(tx Transaction) bool {
	return reflect.ValueOf(tx).Kind() == reflect.Pointer
}

// resolveParent resolves a parent handle, consulting and filling the memo.
func resolveParent(parent Transaction, memo resolveMemo) (*wire.MsgTx,
	error) {

	if !memoizable(parent) {
		return parent.Resolve()
	}
	if tx, ok := memo[parent]; ok {
		return tx, nil
	}

	var (
		tx  *wire.MsgTx
		err error
	)
	if b, ok := parent.(*Builder); ok {
		tx, err = b.resolve(memo)
	} else {
		tx, err = parent.Resolve()
	}
	if err != nil {
		return nil, err
	}

	memo[parent] = tx

	return tx, nil
}

// Resolve binds every variable, resolves the parent graph depth first,
// signs every input and returns the resulting transaction. Nothing is cached
// between calls: resolving again after further changes starts from scratch.
//
// Unless WithVersion was given, the transaction is version 1, or version 2
// when any input sequence enables a BIP-68 relative lock time, since
// relative locks are only enforced from version 2 on. Adding a relative lock
// therefore also changes the txid through the version field.
func (b *Builder) Resolve() (*wire.MsgTx, error) {
	if err := b.ReadyErr(); err != nil {
		return nil, err
	}

	return b.resolve(make(resolveMemo))
}

// Build is Resolve returning the transaction wrapped in a btcutil.Tx.
func (b *Builder) Build() (*btcutil.Tx, error) {
	tx, err := b.Resolve()
	if err != nil {
		return nil, err
	}

	return btcutil.NewTx(tx), nil
}

// Serialize resolves the transaction and returns its wire encoding.
func (b *Builder) Serialize() ([]byte, error) {
	tx, err := b.Resolve()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(tx.SerializeSize())
	if err := tx.Serialize(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// resolve runs both passes. Readiness of the whole graph has been checked by
// the caller.
func (b *Builder) resolve(memo resolveMemo) (*wire.MsgTx, error) {
	tx, parents, err := b.assembleSkeleton(memo)
	if err != nil {
		return nil, err
	}

	if err := b.signInputs(tx, parents); err != nil {
		return nil, err
	}

	log.Debugf("Resolved transaction %v with %d inputs and %d outputs",
		tx.TxHash(), len(tx.TxIn), len(tx.TxOut))
	log.Tracef("Resolved transaction: %v", newLogClosure(func() string {
		return spew.Sdump(tx)
	}))

	return tx, nil
}

// assembleSkeleton builds the transaction with every input script left
// empty. The returned slice holds the resolved parent of each input, nil for
// a coinbase input.
func (b *Builder) assembleSkeleton(memo resolveMemo) (*wire.MsgTx,
	[]*wire.MsgTx, error) {

	tx := wire.NewMsgTx(b.txVersion())
	parents := make([]*wire.MsgTx, len(b.inputs))

	for i, in := range b.inputs {
		if _, ok := in.parent.(noParent); ok {
			tx.AddTxIn(&wire.TxIn{
				PreviousOutPoint: wire.OutPoint{
					Hash:  chainhash.Hash{},
					Index: wire.MaxPrevOutIndex,
				},
				Sequence: wire.MaxTxInSequenceNum,
			})
			if !blockchain.IsCoinBaseTx(tx) {
				return nil, nil, fmt.Errorf("%w: input %d is "+
					"not a valid coinbase", ErrCoinbaseNotAlone,
					i)
			}

			continue
		}

		parentTx, err := resolveParent(in.parent, memo)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to resolve parent "+
				"of input %d: %w", i, err)
		}
		if int(in.outIndex) >= len(parentTx.TxOut) {
			return nil, nil, fmt.Errorf("%w: input %d spends output "+
				"%d of %v which has %d outputs",
				ErrIndexOutOfRange, i, in.outIndex,
				parentTx.TxHash(), len(parentTx.TxOut))
		}
		parents[i] = parentTx

		tx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: wire.OutPoint{
				Hash:  parentTx.TxHash(),
				Index: in.outIndex,
			},
			Sequence: b.sequence(in),
		})
	}

	for i, out := range b.outputs {
		tmpl, err := b.bindAll(out.template)
		if err != nil {
			return nil, nil, fmt.Errorf("output %d: %w", i, err)
		}
		if tmpl.SignatureCount() != 0 {
			return nil, nil, fmt.Errorf("%w: output %d",
				ErrUnresolvedSignature, i)
		}

		pkScript, err := tmpl.Render()
		if err != nil {
			return nil, nil, fmt.Errorf("unable to render output "+
				"%d: %w", i, err)
		}

		tx.AddTxOut(wire.NewTxOut(int64(out.value), pkScript))
	}

	b.lockTime.WhenSome(func(lockTime uint32) {
		tx.LockTime = lockTime
	})

	return tx, parents, nil
}

// signInputs binds every input template, resolves its signatures over the
// skeleton and installs the rendered script.
func (b *Builder) signInputs(tx *wire.MsgTx, parents []*wire.MsgTx) error {
	for i, in := range b.inputs {
		tmpl, err := b.bindAll(in.template)
		if err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}

		if tmpl.SignatureCount() > 0 {
			subscript, err := signingSubscript(
				tmpl, parents[i], in.outIndex,
			)
			if err != nil {
				return fmt.Errorf("input %d: %w", i, err)
			}

			tmpl, err = tmpl.ResolveSignatures(tx, i, subscript)
			if err != nil {
				return fmt.Errorf("unable to sign input %d: %w",
					i, err)
			}
		}
		if n := tmpl.SignatureCount(); n != 0 {
			return fmt.Errorf("%w: %d left in input %d",
				ErrUnresolvedSignature, n, i)
		}

		sigScript, err := tmpl.Render()
		if err != nil {
			return fmt.Errorf("unable to render input %d: %w", i,
				err)
		}
		tx.TxIn[i].SignatureScript = sigScript
	}

	return nil
}

// signingSubscript returns the script a signature of the input commits to:
// nothing for a coinbase, the redeem script for a P2SH parent output and the
// parent output script otherwise.
func signingSubscript(tmpl script.Template, parent *wire.MsgTx,
	outIndex uint32) ([]byte, error) {

	if parent == nil {
		return nil, nil
	}

	pkScript := parent.TxOut[outIndex].PkScript
	if !txscript.IsPayToScriptHash(pkScript) {
		return pkScript, nil
	}

	redeemScript, err := tmpl.LastPush()
	if err != nil {
		return nil, fmt.Errorf("unable to find redeem script: %w", err)
	}

	return redeemScript, nil
}

// bindAll binds every builder variable the template references and checks
// none is left.
func (b *Builder) bindAll(tmpl script.Template) (script.Template, error) {
	for name := range tmpl.FreeVariables() {
		value, ok := b.bindings[name]
		if !ok {
			return nil, fmt.Errorf("%w: unbound variable %q",
				ErrNotReady, name)
		}

		var err error
		tmpl, err = tmpl.BindFreeVariable(name, value)
		if err != nil {
			return nil, err
		}
	}

	if vars := tmpl.FreeVariables(); len(vars) != 0 {
		return nil, fmt.Errorf("%w: template still references %d "+
			"variables", ErrNotReady, len(vars))
	}

	return tmpl, nil
}
