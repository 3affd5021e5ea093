package txbuilder

import (
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/wire"
)

// Transaction is a handle on a transaction that is either still being built
// or already final. Inputs reference their parent through this interface, so
// a graph can mix builders with transactions obtained elsewhere.
type Transaction interface {
	// Resolve returns the concrete transaction.
	Resolve() (*wire.MsgTx, error)

	// IsReady reports whether Resolve can succeed.
	IsReady() bool

	// NumInputs returns the number of inputs.
	NumInputs() int

	// NumOutputs returns the number of outputs.
	NumOutputs() int

	// IsCoinbase reports whether the transaction is a coinbase.
	IsCoinbase() bool

	// Parent returns the handle of the transaction spent by the input at
	// inputIndex. Coinbase inputs return NoParent.
	Parent(inputIndex int) (Transaction, error)
}

// noParent is the type of NoParent.
type noParent struct{}

// NoParent is the null transaction handle. It marks the missing parent of a
// coinbase input. It is always ready and empty; resolving it fails with
// ErrNoParent.
var NoParent Transaction = noParent{}

func (noParent) Resolve() (*wire.MsgTx, error) {
	return nil, ErrNoParent
}

func (noParent) IsReady() bool {
	return true
}

func (noParent) NumInputs() int {
	return 0
}

func (noParent) NumOutputs() int {
	return 0
}

func (noParent) IsCoinbase() bool {
	return false
}

func (noParent) Parent(inputIndex int) (Transaction, error) {
	return nil, fmt.Errorf("%w: null transaction has no input %d",
		ErrIndexOutOfRange, inputIndex)
}

func (noParent) String() string {
	return "<no parent>"
}

// Finalized is a handle on a transaction that is already complete, such as
// one read from the chain. Its own parents are unknown.
type Finalized struct {
	tx *wire.MsgTx
}

// A compile-time check to ensure Finalized satisfies Transaction.
var _ Transaction = (*Finalized)(nil)

// NewFinalized wraps a deep copy of tx.
func NewFinalized(tx *wire.MsgTx) *Finalized {
	return &Finalized{tx: tx.Copy()}
}

// Resolve returns a deep copy of the wrapped transaction.
func (f *Finalized) Resolve() (*wire.MsgTx, error) {
	return f.tx.Copy(), nil
}

// IsReady always returns true.
func (f *Finalized) IsReady() bool {
	return true
}

// NumInputs returns the number of inputs of the wrapped transaction.
func (f *Finalized) NumInputs() int {
	return len(f.tx.TxIn)
}

// NumOutputs returns the number of outputs of the wrapped transaction.
func (f *Finalized) NumOutputs() int {
	return len(f.tx.TxOut)
}

// IsCoinbase reports whether the wrapped transaction is a coinbase.
func (f *Finalized) IsCoinbase() bool {
	return blockchain.IsCoinBaseTx(f.tx)
}

// Parent returns NoParent for every valid input index since the parents of a
// finalized transaction are not tracked.
func (f *Finalized) Parent(inputIndex int) (Transaction, error) {
	if inputIndex < 0 || inputIndex >= len(f.tx.TxIn) {
		return nil, fmt.Errorf("%w: input %d of %d", ErrIndexOutOfRange,
			inputIndex, len(f.tx.TxIn))
	}

	return NoParent, nil
}

// String returns the txid of the wrapped transaction.
func (f *Finalized) String() string {
	return f.tx.TxHash().String()
}
