package txbuilder

import (
	"fmt"
	"math"
	"testing"

	"github.com/bitcointm/txgraph/script"
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// amountScript returns an anyone-can-spend output script that commits to the
// TypeInt variable "amount".
func amountScript() *script.Builder {
	return script.NewBuilder().
		AddVariable("amount", script.TypeInt).
		AddOp(txscript.OP_DROP).
		AddOp(txscript.OP_TRUE)
}

// newCoinbase returns a ready coinbase builder paying each value to an empty
// script.
func newCoinbase(t *testing.T, values ...btcutil.Amount) *Builder {
	t.Helper()

	b := NewBuilder()
	require.NoError(t, b.AddCoinbaseInput(script.Empty()))
	for _, value := range values {
		require.NoError(t, b.AddOutput(script.Empty(), value))
	}

	return b
}

// TestCoinbaseScenario builds a lone coinbase paying 50 BTC.
func TestCoinbaseScenario(t *testing.T) {
	t.Parallel()

	b := newCoinbase(t, 5_000_000_000)
	require.True(t, b.IsReady())
	require.True(t, b.IsCoinbase())

	parent, err := b.Parent(0)
	require.NoError(t, err)
	require.Equal(t, NoParent, parent)

	tx, err := b.Resolve()
	require.NoError(t, err)
	require.Len(t, tx.TxIn, 1)
	require.Len(t, tx.TxOut, 1)
	require.True(t, blockchain.IsCoinBaseTx(tx))
	require.Equal(t, int64(5_000_000_000), tx.TxOut[0].Value)
	require.Empty(t, tx.TxIn[0].SignatureScript)
	require.Equal(t, int32(1), tx.Version)
}

// TestAmountScenario checks that a declared variable blocks resolution until
// it is bound and then shows up in the rendered output script.
func TestAmountScenario(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	b.DeclareVariable("amount", script.TypeInt)
	require.NoError(t, b.AddCoinbaseInput(script.Empty()))
	require.NoError(t, b.AddOutput(amountScript(), 5_000_000_000))

	require.False(t, b.IsReady())
	require.Equal(t, []string{"amount"}, b.UnboundVariables())

	_, err := b.Resolve()
	require.ErrorIs(t, err, ErrNotReady)

	require.NoError(t, b.Bind("amount", int64(1000)))
	require.True(t, b.IsReady())
	require.Empty(t, b.UnboundVariables())

	tx, err := b.Resolve()
	require.NoError(t, err)

	expected, err := script.NewBuilder().
		AddInt64(1000).
		AddOp(txscript.OP_DROP).
		AddOp(txscript.OP_TRUE).
		Render()
	require.NoError(t, err)
	require.Equal(t, expected, tx.TxOut[0].PkScript)
}

// TestReadinessOrderIndependent asserts a builder becomes ready exactly when
// the last of its variables is bound, whatever the binding order.
func TestReadinessOrderIndependent(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "n")

		b := NewBuilder()
		tmpl := script.NewBuilder()
		names := make([]string, n)
		for i := range names {
			names[i] = fmt.Sprintf("v%d", i)
			b.DeclareVariable(names[i], script.TypeInt)
			tmpl.AddVariable(names[i], script.TypeInt).
				AddOp(txscript.OP_DROP)
		}
		tmpl.AddOp(txscript.OP_TRUE)

		require.NoError(t, b.AddCoinbaseInput(script.Empty()))
		require.NoError(t, b.AddOutput(tmpl, 1))

		order := rapid.Permutation(names).Draw(t, "order")
		for i, name := range order {
			require.False(t, b.IsReady())

			// A wrongly typed value never counts as a binding.
			require.ErrorIs(t, b.Bind(name, "x"), ErrTypeMismatch)
			require.False(t, b.IsReady())

			value := rapid.Int64Min(math.MinInt64+1).Draw(t, name)
			require.NoError(t, b.Bind(name, value))
			require.Equal(t, i == n-1, b.IsReady())
		}

		_, err := b.Resolve()
		require.NoError(t, err)
	})
}

// TestNeverReadyWithoutInputsOrOutputs checks the structural readiness rules.
func TestNeverReadyWithoutInputsOrOutputs(t *testing.T) {
	t.Parallel()

	noInputs := NewBuilder()
	require.NoError(t, noInputs.AddOutput(script.Empty(), 1))
	require.ErrorIs(t, noInputs.ReadyErr(), ErrNotReady)

	noOutputs := NewBuilder()
	require.NoError(t, noOutputs.AddCoinbaseInput(script.Empty()))
	require.ErrorIs(t, noOutputs.ReadyErr(), ErrNotReady)

	_, err := noOutputs.Resolve()
	require.ErrorIs(t, err, ErrNotReady)

	require.ErrorIs(t, NewBuilder().ReadyErr(), ErrNotReady)
}

// TestBindErrors checks that failed bindings leave the table untouched.
func TestBindErrors(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	b.DeclareVariable("amount", script.TypeInt)
	b.DeclareVariable("memo", script.TypeString)
	require.NoError(t, b.Bind("amount", int64(5)))

	before := b.Bindings()

	tests := []struct {
		name  string
		vname string
		value any
		err   error
	}{
		{"undeclared", "fee", int64(1), ErrUnknownVariable},
		{"int as string", "amount", "5", ErrTypeMismatch},
		{"untyped int", "amount", 5, ErrTypeMismatch},
		{"string as bytes", "memo", []byte("x"), ErrTypeMismatch},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := b.Bind(test.vname, test.value)
			require.ErrorIs(t, err, test.err)
			require.Equal(t, before, b.Bindings())
		})
	}

	// Overwriting a binding is allowed.
	require.NoError(t, b.Bind("amount", int64(6)))
	require.Equal(t, int64(6), b.Bindings()["amount"])

	// The returned maps are copies.
	b.Bindings()["amount"] = int64(7)
	b.FreeVariables()["extra"] = script.TypeBool
	require.Equal(t, int64(6), b.Bindings()["amount"])
	require.NotContains(t, b.FreeVariables(), "extra")

	// Redeclaring is an upsert.
	b.DeclareVariable("amount", script.TypeInt)
	require.Len(t, b.FreeVariables(), 2)
}

// TestInsertionChecks asserts that rejected inputs and outputs are not
// appended.
func TestInsertionChecks(t *testing.T) {
	t.Parallel()

	parent := NewFinalized(coinbaseMsgTx(1000, 1000))

	b := NewBuilder()
	b.DeclareVariable("amount", script.TypeInt)

	undeclared := script.NewBuilder().AddVariable("fee", script.TypeInt)
	mistyped := script.NewBuilder().AddVariable("amount", script.TypeBytes)
	broken := script.NewBuilder().AddValue(1.5)

	require.ErrorIs(t, b.AddOutput(undeclared, 1), ErrScopeViolation)
	require.ErrorIs(t, b.AddOutput(mistyped, 1), ErrScopeViolation)
	require.ErrorIs(t, b.AddOutput(broken, 1), ErrInvalidTemplate)
	require.ErrorIs(t, b.AddOutput(nil, 1), ErrInvalidTemplate)
	require.ErrorIs(t, b.AddOutput(script.Empty(), -1), ErrInvalidValue)
	require.ErrorIs(
		t, b.AddOutput(script.Empty(), btcutil.MaxSatoshi+1),
		ErrInvalidValue,
	)
	require.Zero(t, b.NumOutputs())

	require.ErrorIs(t, b.AddInput(parent, 0, undeclared), ErrScopeViolation)
	require.ErrorIs(t, b.AddInput(NoParent, 0, script.Empty()), ErrNoParent)
	require.ErrorIs(t, b.AddInput(nil, 0, script.Empty()), ErrNoParent)
	require.Zero(t, b.NumInputs())

	require.NoError(t, b.AddInput(parent, 0, amountScript()))
	require.NoError(t, b.AddOutput(amountScript(), 1))
	require.Equal(t, 1, b.NumInputs())
	require.Equal(t, 1, b.NumOutputs())

	_, err := b.Parent(1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

// TestUnencodableInt checks an integer without a script number encoding is
// refused both as a binding and inside a template.
func TestUnencodableInt(t *testing.T) {
	t.Parallel()

	b := newCoinbase(t)
	b.DeclareVariable("amount", script.TypeInt)
	require.NoError(t, b.AddOutput(amountScript(), 1))

	require.ErrorIs(t, b.Bind("amount", int64(math.MinInt64)),
		ErrTypeMismatch)
	require.False(t, b.IsReady())
	require.Empty(t, b.Bindings())

	literal := script.NewBuilder().AddInt64(math.MinInt64)
	require.ErrorIs(t, b.AddOutput(literal, 1), ErrInvalidTemplate)
	require.Equal(t, 1, b.NumOutputs())

	require.NoError(t, b.Bind("amount", int64(math.MinInt64+1)))
	require.True(t, b.IsReady())
	_, err := b.Resolve()
	require.NoError(t, err)
}

// TestTemplateSnapshot asserts changes made to a template after it was added
// do not reach the builder.
func TestTemplateSnapshot(t *testing.T) {
	t.Parallel()

	parent := NewFinalized(coinbaseMsgTx(1000))

	b := NewBuilder()
	in := script.NewBuilder().AddOp(txscript.OP_TRUE)
	out := script.NewBuilder().AddOp(txscript.OP_TRUE)
	require.NoError(t, b.AddInput(parent, 0, in))
	require.NoError(t, b.AddOutput(out, 1))
	require.True(t, b.IsReady())

	in.AddVariable("ghost", script.TypeInt)
	out.AddVariable("ghost", script.TypeInt)

	require.True(t, b.IsReady())
	require.NotContains(t, b.FreeVariables(), "ghost")
	require.Empty(t, b.UnboundVariables())

	tx, err := b.Resolve()
	require.NoError(t, err)
	require.Equal(t, []byte{txscript.OP_TRUE}, tx.TxOut[0].PkScript)
	require.Equal(t, []byte{txscript.OP_TRUE}, tx.TxIn[0].SignatureScript)
}

// TestCoinbaseAlone asserts a coinbase input never shares its transaction.
func TestCoinbaseAlone(t *testing.T) {
	t.Parallel()

	parent := NewFinalized(coinbaseMsgTx(1000))

	cb := newCoinbase(t, 1)
	require.ErrorIs(t, cb.AddCoinbaseInput(script.Empty()),
		ErrCoinbaseNotAlone)
	require.ErrorIs(t, cb.AddInput(parent, 0, script.Empty()),
		ErrCoinbaseNotAlone)
	require.Equal(t, 1, cb.NumInputs())

	regular := NewBuilder()
	require.NoError(t, regular.AddInput(parent, 0, script.Empty()))
	require.ErrorIs(t, regular.AddCoinbaseInput(script.Empty()),
		ErrCoinbaseNotAlone)
	require.False(t, regular.IsCoinbase())
}

// TestDeterminism resolves the same graph twice and checks that changing one
// output value only changes that value in the encoding.
func TestDeterminism(t *testing.T) {
	t.Parallel()

	build := func(value btcutil.Amount) []byte {
		b := NewBuilder()
		b.DeclareVariable("amount", script.TypeInt)
		require.NoError(t, b.AddCoinbaseInput(script.Empty()))
		require.NoError(t, b.AddOutput(amountScript(), 1000))
		require.NoError(t, b.AddOutput(script.Empty(), value))
		require.NoError(t, b.Bind("amount", int64(42)))

		first, err := b.Serialize()
		require.NoError(t, err)
		second, err := b.Serialize()
		require.NoError(t, err)
		require.Equal(t, first, second)

		return first
	}

	a := build(5000)
	require.Equal(t, a, build(5000))

	b := build(6000)
	require.Len(t, b, len(a))

	first, last := -1, -1
	for i := range a {
		if a[i] != b[i] {
			if first == -1 {
				first = i
			}
			last = i
		}
	}
	require.NotEqual(t, -1, first)
	require.Less(t, last-first, 8)

	var txA, txB wire.MsgTx
	require.NoError(t, txA.Deserialize(bytesReader(a)))
	require.NoError(t, txB.Deserialize(bytesReader(b)))
	require.Equal(t, int64(5000), txA.TxOut[1].Value)
	require.Equal(t, int64(6000), txB.TxOut[1].Value)
}

// TestNullHandle checks the behavior of NoParent.
func TestNullHandle(t *testing.T) {
	t.Parallel()

	require.True(t, NoParent.IsReady())
	require.False(t, NoParent.IsCoinbase())
	require.Zero(t, NoParent.NumInputs())
	require.Zero(t, NoParent.NumOutputs())

	_, err := NoParent.Resolve()
	require.ErrorIs(t, err, ErrNoParent)

	_, err = NoParent.Parent(0)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

// TestFinalized checks the handle over an existing transaction.
func TestFinalized(t *testing.T) {
	t.Parallel()

	msgTx := coinbaseMsgTx(1000, 2000)
	f := NewFinalized(msgTx)

	// Changes to the wrapped transaction do not leak in.
	msgTx.TxOut[0].Value = 1

	require.True(t, f.IsReady())
	require.True(t, f.IsCoinbase())
	require.Equal(t, 1, f.NumInputs())
	require.Equal(t, 2, f.NumOutputs())

	parent, err := f.Parent(0)
	require.NoError(t, err)
	require.Equal(t, NoParent, parent)

	_, err = f.Parent(1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	tx, err := f.Resolve()
	require.NoError(t, err)
	require.Equal(t, int64(1000), tx.TxOut[0].Value)

	// Neither do changes to a resolved copy.
	tx.TxOut[0].Value = 2
	again, err := f.Resolve()
	require.NoError(t, err)
	require.Equal(t, int64(1000), again.TxOut[0].Value)
	require.Equal(t, f.String(), again.TxHash().String())
}

// TestString checks the builder dump.
func TestString(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	b.DeclareVariable("amount", script.TypeInt)
	b.DeclareVariable("memo", script.TypeString)
	require.NoError(t, b.AddCoinbaseInput(script.Empty()))
	require.NoError(t, b.AddOutput(amountScript(), 1000))
	require.NoError(t, b.Bind("amount", int64(7)))
	b.SetLockTime(99)

	dump := b.String()
	require.Contains(t, dump, "coinbase: true")
	require.Contains(t, dump, "ready: false")
	require.Contains(t, dump, "locktime: 99")
	require.Contains(t, dump, "amount int = 7")
	require.Contains(t, dump, "memo string = <unbound>")
	require.Contains(t, dump, "$amount OP_DROP 1")
}
