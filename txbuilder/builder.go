package txbuilder

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/bitcointm/txgraph/script"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// OutIndexNotSet is the output index recorded for a coinbase input. It is
// the index of the null outpoint.
const OutIndexNotSet = wire.MaxPrevOutIndex

// input is one input of a Builder.
type input struct {
	parent   Transaction
	outIndex uint32
	template script.Template
	sequence fn.Option[uint32]
}

// output is one output of a Builder.
type output struct {
	template script.Template
	value    btcutil.Amount
}

// Builder is a transaction under construction. Its scripts may reference
// free variables declared on the builder and carry signature placeholders;
// Resolve binds the former, signs the latter and returns the concrete
// transaction.
//
// A Builder is also a Transaction, so other builders can spend its outputs
// before it is complete. Parents are referenced, not owned, and may be shared
// by several children. The parent graph must be acyclic; cycles and inputs
// spending the same outpoint twice are not detected.
//
// Builders are not safe for concurrent mutation. Resolving builders
// concurrently is safe once none of them is mutated any more.
type Builder struct {
	version  fn.Option[int32]
	lockTime fn.Option[uint32]

	variables map[string]script.Type
	bindings  map[string]any

	inputs   []*input
	outputs  []*output
	coinbase bool
}

// A compile-time check to ensure Builder satisfies Transaction.
var _ Transaction = (*Builder)(nil)

// NewBuilder returns an empty transaction builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		variables: make(map[string]script.Type),
		bindings:  make(map[string]any),
	}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// DeclareVariable declares the free variable name with type typ, replacing
// any earlier declaration of the same name.
func (b *Builder) DeclareVariable(name string, typ script.Type) {
	b.variables[name] = typ
}

// FreeVariables returns a copy of the declared variables.
func (b *Builder) FreeVariables() map[string]script.Type {
	return maps.Clone(b.variables)
}

// Bind sets the value of a declared variable, replacing any earlier binding.
// The binding table is left untouched on failure.
func (b *Builder) Bind(name string, value any) error {
	typ, ok := b.variables[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownVariable, name)
	}

	if !typ.Check(value) {
		return fmt.Errorf("%w: variable %q is %v, got %T",
			ErrTypeMismatch, name, typ, value)
	}

	b.bindings[name] = value

	return nil
}

// Bindings returns a copy of the binding table.
func (b *Builder) Bindings() map[string]any {
	return maps.Clone(b.bindings)
}

// UnboundVariables returns the sorted names of the declared variables that
// lack a binding of the declared type.
func (b *Builder) UnboundVariables() []string {
	var unbound []string
	for name, typ := range b.variables {
		value, ok := b.bindings[name]
		if !ok || !typ.Check(value) {
			unbound = append(unbound, name)
		}
	}
	slices.Sort(unbound)

	return unbound
}

// checkScope snapshots the template and ensures the snapshot only references
// variables declared on the builder with the same type. Callers store the
// returned snapshot, never the caller's template.
func (b *Builder) checkScope(tmpl script.Template) (script.Template, error) {
	if tmpl == nil {
		return nil, fmt.Errorf("%w: nil template", ErrInvalidTemplate)
	}

	// Templates that latch construction errors report them here rather
	// than at resolution time.
	if latched, ok := tmpl.(interface{ Err() error }); ok {
		if err := latched.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
		}
	}

	snapshot := tmpl.Clone()
	for name, typ := range snapshot.FreeVariables() {
		declared, ok := b.variables[name]
		switch {
		case !ok:
			return nil, fmt.Errorf("%w: %q", ErrScopeViolation, name)

		case declared != typ:
			return nil, fmt.Errorf("%w: %q is declared as %v but "+
				"used as %v", ErrScopeViolation, name, declared,
				typ)
		}
	}

	return snapshot, nil
}

// AddCoinbaseInput adds the coinbase input. It must be the first and only
// input of the transaction.
func (b *Builder) AddCoinbaseInput(tmpl script.Template) error {
	if len(b.inputs) != 0 {
		return ErrCoinbaseNotAlone
	}
	tmpl, err := b.checkScope(tmpl)
	if err != nil {
		return err
	}

	b.inputs = append(b.inputs, &input{
		parent:   NoParent,
		outIndex: OutIndexNotSet,
		template: tmpl,
	})
	b.coinbase = true

	return nil
}

// AddInput adds an input spending output outIndex of parent with the given
// input script template.
func (b *Builder) AddInput(parent Transaction, outIndex uint32,
	tmpl script.Template, opts ...InputOption) error {

	if b.coinbase {
		return ErrCoinbaseNotAlone
	}
	if parent == nil {
		return ErrNoParent
	}
	if _, ok := parent.(noParent); ok {
		return fmt.Errorf("%w: use AddCoinbaseInput for coinbase "+
			"inputs", ErrNoParent)
	}
	tmpl, err := b.checkScope(tmpl)
	if err != nil {
		return err
	}

	in := &input{
		parent:   parent,
		outIndex: outIndex,
		template: tmpl,
	}
	for _, opt := range opts {
		opt(in)
	}
	b.inputs = append(b.inputs, in)

	return nil
}

// AddOutput adds an output paying value to the given output script
// template.
func (b *Builder) AddOutput(tmpl script.Template,
	value btcutil.Amount) error {

	if value < 0 || value > btcutil.MaxSatoshi {
		return fmt.Errorf("%w: %v", ErrInvalidValue, value)
	}
	tmpl, err := b.checkScope(tmpl)
	if err != nil {
		return err
	}

	b.outputs = append(b.outputs, &output{
		template: tmpl,
		value:    value,
	})

	return nil
}

// SetLockTime sets the absolute lock time of the transaction. Inputs without
// an explicit sequence get MaxTxInSequenceNum-1 so the lock time is
// enforced.
func (b *Builder) SetLockTime(lockTime uint32) {
	b.lockTime = fn.Some(lockTime)
}

// LockTime returns the absolute lock time, if one was set.
func (b *Builder) LockTime() fn.Option[uint32] {
	return b.lockTime
}

// NumInputs returns the number of inputs added so far.
func (b *Builder) NumInputs() int {
	return len(b.inputs)
}

// NumOutputs returns the number of outputs added so far.
func (b *Builder) NumOutputs() int {
	return len(b.outputs)
}

// IsCoinbase reports whether the only input is a coinbase input.
func (b *Builder) IsCoinbase() bool {
	return b.coinbase && len(b.inputs) == 1
}

// Parent returns the handle spent by the input at inputIndex.
func (b *Builder) Parent(inputIndex int) (Transaction, error) {
	if inputIndex < 0 || inputIndex >= len(b.inputs) {
		return nil, fmt.Errorf("%w: input %d of %d", ErrIndexOutOfRange,
			inputIndex, len(b.inputs))
	}

	return b.inputs[inputIndex].parent, nil
}

// IsReady reports whether every declared variable is bound, the transaction
// has inputs and outputs, and every parent is ready.
func (b *Builder) IsReady() bool {
	return b.ReadyErr() == nil
}

// ReadyErr returns nil if the builder is ready, or the first reason it is
// not wrapped in ErrNotReady.
func (b *Builder) ReadyErr() error {
	return b.readyErr(make(map[*Builder]struct{}))
}

func (b *Builder) readyErr(checked map[*Builder]struct{}) error {
	if _, ok := checked[b]; ok {
		return nil
	}

	if unbound := b.UnboundVariables(); len(unbound) > 0 {
		return fmt.Errorf("%w: unbound variables %v", ErrNotReady,
			unbound)
	}
	if len(b.inputs) == 0 {
		return fmt.Errorf("%w: no inputs", ErrNotReady)
	}
	if len(b.outputs) == 0 {
		return fmt.Errorf("%w: no outputs", ErrNotReady)
	}

	for i, in := range b.inputs {
		switch parent := in.parent.(type) {
		case noParent:

		case *Builder:
			if err := parent.readyErr(checked); err != nil {
				return fmt.Errorf("parent of input %d: %w", i,
					err)
			}

		default:
			if !parent.IsReady() {
				return fmt.Errorf("%w: parent of input %d",
					ErrNotReady, i)
			}
		}
	}

	checked[b] = struct{}{}

	return nil
}

// sequence returns the sequence number of the input in the assembled
// transaction.
func (b *Builder) sequence(in *input) uint32 {
	return in.sequence.UnwrapOrFunc(func() uint32 {
		if b.lockTime.IsSome() {
			return wire.MaxTxInSequenceNum - 1
		}

		return wire.MaxTxInSequenceNum
	})
}

// txVersion returns the explicit version, or the lowest version under which
// the relative lock times of the inputs are enforced.
func (b *Builder) txVersion() int32 {
	return b.version.UnwrapOrFunc(func() int32 {
		for _, in := range b.inputs {
			relative := fn.MapOptionZ(in.sequence, func(s uint32) bool {
				return s&wire.SequenceLockTimeDisabled == 0
			})
			if relative {
				return 2
			}
		}

		return 1
	})
}

// String returns a multi-line description of the builder: its flags,
// variables, inputs and outputs.
func (b *Builder) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "coinbase: %t\n", b.IsCoinbase())
	fmt.Fprintf(&sb, "ready: %t\n", b.IsReady())
	fmt.Fprintf(&sb, "version: %d\n", b.txVersion())
	fmt.Fprintf(&sb, "locktime: %s\n", fn.ElimOption(
		b.lockTime, func() string {
			return "none"
		}, func(lt uint32) string {
			return fmt.Sprintf("%d", lt)
		},
	))

	sb.WriteString("variables:\n")
	for _, name := range slices.Sorted(maps.Keys(b.variables)) {
		value, ok := b.bindings[name]
		bound := "<unbound>"
		if ok {
			bound = fmt.Sprintf("%v", value)
		}
		fmt.Fprintf(&sb, "  %s %v = %s\n", name, b.variables[name],
			bound)
	}

	sb.WriteString("inputs:\n")
	for i, in := range b.inputs {
		if _, ok := in.parent.(noParent); ok {
			fmt.Fprintf(&sb, "  %d: coinbase script=[%v]\n", i,
				in.template)
			continue
		}

		fmt.Fprintf(&sb, "  %d: %s:%d sequence=%#x script=[%v]\n", i,
			describeParent(in.parent), in.outIndex,
			b.sequence(in), in.template)
	}

	sb.WriteString("outputs:\n")
	for i, out := range b.outputs {
		fmt.Fprintf(&sb, "  %d: %v script=[%v]\n", i, out.value,
			out.template)
	}

	return sb.String()
}

// describeParent names a parent without resolving it.
func describeParent(parent Transaction) string {
	switch p := parent.(type) {
	case *Builder:
		return fmt.Sprintf("builder(%p)", p)

	case fmt.Stringer:
		return p.String()

	default:
		return fmt.Sprintf("%T", p)
	}
}
