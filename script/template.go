package script

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/bitcointm/txgraph/keychain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

var (
	// ErrTypeMismatch is returned when a value does not satisfy the type
	// of the variable it is bound to, or when one variable name is used
	// with two different types.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrNotReady is returned when rendering a script that still holds
	// free variables or signature placeholders.
	ErrNotReady = errors.New("script not ready")

	// ErrNoSigner is returned when a signature placeholder has no signing
	// capability attached.
	ErrNoSigner = errors.New("signature placeholder has no signer")

	// ErrNoPush is returned by LastPush when the script does not end in a
	// data push.
	ErrNoPush = errors.New("script does not end in a data push")

	// ErrNestedSignature is returned when a script holding signature
	// placeholders is nested into another one. Nested scripts are
	// committed to by hash or pushed as data, neither of which can carry a
	// signature over the spending transaction.
	ErrNestedSignature = errors.New("nested script holds signature " +
		"placeholders")

	// ErrUnsupportedValue is returned when a value has no script encoding.
	ErrUnsupportedValue = errors.New("unsupported script value")
)

// Template is a partially built script. It may still reference named free
// variables and carry signature placeholders; Render only succeeds once both
// are gone.
//
// Templates have value semantics: BindFreeVariable and ResolveSignatures
// return an updated template and leave the receiver untouched.
type Template interface {
	// FreeVariables returns the unbound variables the template
	// references, keyed by name.
	FreeVariables() map[string]Type

	// BindFreeVariable replaces every reference to name with value. A name
	// the template does not reference is a no-op; a value of the wrong
	// type fails with ErrTypeMismatch.
	BindFreeVariable(name string, value any) (Template, error)

	// SignatureCount returns the number of unresolved signature
	// placeholders.
	SignatureCount() int

	// ResolveSignatures computes the legacy signature hash of tx for the
	// input at inputIndex using subscript as the script being spent, and
	// replaces every placeholder with the signature its signer produces.
	ResolveSignatures(tx *wire.MsgTx, inputIndex int,
		subscript []byte) (Template, error)

	// LastPush returns the data of the final push in the template. For a
	// pay-to-script-hash spend this is the redeem script.
	LastPush() ([]byte, error)

	// Render serializes the template into script bytes.
	Render() ([]byte, error)

	// Clone returns an independent copy of the template. Later changes to
	// the receiver are not seen by the copy.
	Clone() Template

	// String returns a human readable form of the template.
	String() string
}

// SignDescriptor describes one signature to be placed in a script: the key
// that signs, the sighash flags, and the capability that holds the key.
type SignDescriptor struct {
	// KeyDesc identifies the signing key to the Signer.
	KeyDesc keychain.KeyDescriptor

	// HashType is the sighash type committed to. The zero value is
	// treated as SigHashAll.
	HashType txscript.SigHashType

	// Signer produces the signature over the computed digest.
	Signer keychain.DigestSigner
}

// Sign computes the legacy signature hash of the input and returns the DER
// signature with the sighash type byte appended, as it is pushed on the
// stack.
func (s *SignDescriptor) Sign(tx *wire.MsgTx, inputIndex int,
	subscript []byte) ([]byte, error) {

	if s.Signer == nil {
		return nil, ErrNoSigner
	}

	sigHash, err := txscript.CalcSignatureHash(
		subscript, s.HashType, tx, inputIndex,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to compute sighash for input "+
			"%d: %w", inputIndex, err)
	}

	var digest [32]byte
	copy(digest[:], sigHash)

	sig, err := s.Signer.SignDigest(s.KeyDesc, digest)
	if err != nil {
		return nil, fmt.Errorf("unable to sign input %d: %w",
			inputIndex, err)
	}

	return append(sig.Serialize(), byte(s.HashType)), nil
}

type elementKind uint8

const (
	elemOp elementKind = iota
	elemValue
	elemRaw
	elemVariable
	elemSignature
	elemPush
	elemHash
)

// element is one tagged item of a script template. Only the fields matching
// kind are set.
type element struct {
	kind elementKind

	op    byte
	value any
	raw   []byte

	name string
	typ  Type

	sign *SignDescriptor

	nested *Builder
}

// Builder is the concrete Template: an ordered sequence of opcodes, literal
// values, raw script fragments, variable references, signature placeholders
// and nested scripts.
//
// Like txscript.ScriptBuilder, the Add methods can be chained. The first
// construction error is latched and returned by Err and by every method
// that produces output; subsequent additions are ignored.
type Builder struct {
	elems []element
	err   error
}

// A compile-time check to ensure Builder satisfies Template.
var _ Template = (*Builder)(nil)

// NewBuilder returns an empty script template.
func NewBuilder() *Builder {
	return &Builder{}
}

// Err returns the first construction error, if any.
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) add(e element) *Builder {
	if b.err != nil {
		return b
	}

	b.elems = append(b.elems, e)

	return b
}

// AddOp appends an opcode.
func (b *Builder) AddOp(op byte) *Builder {
	return b.add(element{kind: elemOp, op: op})
}

// AddInt64 appends a canonical script number push. math.MinInt64 has no
// script number encoding and latches ErrUnsupportedValue.
func (b *Builder) AddInt64(n int64) *Builder {
	if b.err == nil && n == math.MinInt64 {
		b.err = fmt.Errorf("%w: %d is not a script number",
			ErrUnsupportedValue, n)
		return b
	}

	return b.add(element{kind: elemValue, value: n})
}

// AddData appends a canonical push of a copy of data.
func (b *Builder) AddData(data []byte) *Builder {
	return b.add(element{kind: elemValue, value: bytes.Clone(data)})
}

// AddValue appends a push of any value that satisfies one of the variable
// types.
func (b *Builder) AddValue(v any) *Builder {
	if b.err != nil {
		return b
	}

	if _, ok := TypeOf(v); !ok {
		b.err = fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
		return b
	}
	if data, ok := v.([]byte); ok {
		v = bytes.Clone(data)
	}

	return b.add(element{kind: elemValue, value: v})
}

// AddRaw appends already serialized script bytes verbatim. The bytes must
// parse as a sequence of opcodes.
func (b *Builder) AddRaw(raw []byte) *Builder {
	if b.err != nil {
		return b
	}

	tokenizer := txscript.MakeScriptTokenizer(0, raw)
	for tokenizer.Next() {
	}
	if err := tokenizer.Err(); err != nil {
		b.err = fmt.Errorf("invalid raw script: %w", err)
		return b
	}

	return b.add(element{kind: elemRaw, raw: bytes.Clone(raw)})
}

// AddVariable appends a reference to the free variable name of type typ.
func (b *Builder) AddVariable(name string, typ Type) *Builder {
	if b.err != nil {
		return b
	}

	if _, ok := typeNames[typ]; !ok {
		b.err = fmt.Errorf("%w: variable %q has invalid type %v",
			ErrTypeMismatch, name, typ)
		return b
	}
	if err := b.checkVariables(map[string]Type{name: typ}); err != nil {
		b.err = err
		return b
	}

	return b.add(element{kind: elemVariable, name: name, typ: typ})
}

// AddSignature appends a signature placeholder that is filled in by
// ResolveSignatures.
func (b *Builder) AddSignature(desc *SignDescriptor) *Builder {
	if b.err != nil {
		return b
	}

	if desc == nil || desc.Signer == nil {
		b.err = ErrNoSigner
		return b
	}

	signDesc := *desc
	if signDesc.HashType == 0 {
		signDesc.HashType = txscript.SigHashAll
	}

	return b.add(element{kind: elemSignature, sign: &signDesc})
}

// AddScript appends a data push of the rendered nested script, typically a
// redeem script at the end of a pay-to-script-hash spend.
func (b *Builder) AddScript(nested *Builder) *Builder {
	return b.addNested(elemPush, nested)
}

// AddScriptHash appends a push of the HASH160 of the rendered nested script.
func (b *Builder) AddScriptHash(nested *Builder) *Builder {
	return b.addNested(elemHash, nested)
}

func (b *Builder) addNested(kind elementKind, nested *Builder) *Builder {
	if b.err != nil {
		return b
	}

	switch {
	case nested == nil:
		b.err = fmt.Errorf("%w: nil nested script", ErrUnsupportedValue)
		return b

	case nested.err != nil:
		b.err = fmt.Errorf("nested script: %w", nested.err)
		return b

	case nested.SignatureCount() > 0:
		b.err = ErrNestedSignature
		return b
	}

	if err := b.checkVariables(nested.FreeVariables()); err != nil {
		b.err = err
		return b
	}

	return b.add(element{kind: kind, nested: nested.clone()})
}

// checkVariables ensures none of vars is already referenced with another
// type.
func (b *Builder) checkVariables(vars map[string]Type) error {
	current := b.FreeVariables()
	for name, typ := range vars {
		if have, ok := current[name]; ok && have != typ {
			return fmt.Errorf("%w: variable %q used as both %v and "+
				"%v", ErrTypeMismatch, name, have, typ)
		}
	}

	return nil
}

// Clone implements Template.
func (b *Builder) Clone() Template {
	return b.clone()
}

func (b *Builder) clone() *Builder {
	return &Builder{
		elems: slices.Clone(b.elems),
		err:   b.err,
	}
}

// FreeVariables returns the unbound variables referenced by the template and
// by every script nested in it.
func (b *Builder) FreeVariables() map[string]Type {
	vars := make(map[string]Type)
	for _, e := range b.elems {
		switch e.kind {
		case elemVariable:
			vars[e.name] = e.typ

		case elemPush, elemHash:
			for name, typ := range e.nested.FreeVariables() {
				vars[name] = typ
			}
		}
	}

	return vars
}

// BindFreeVariable implements Template.
func (b *Builder) BindFreeVariable(name string, value any) (Template, error) {
	return b.Bind(name, value)
}

// Bind is BindFreeVariable returning the concrete type.
func (b *Builder) Bind(name string, value any) (*Builder, error) {
	typ, ok := b.FreeVariables()[name]
	if !ok {
		return b, nil
	}

	if !typ.Check(value) {
		return nil, fmt.Errorf("%w: variable %q is %v, got %T",
			ErrTypeMismatch, name, typ, value)
	}
	if data, ok := value.([]byte); ok {
		value = bytes.Clone(data)
	}

	return b.bind(name, value), nil
}

func (b *Builder) bind(name string, value any) *Builder {
	bound := &Builder{
		elems: make([]element, len(b.elems)),
		err:   b.err,
	}
	for i, e := range b.elems {
		switch {
		case e.kind == elemVariable && e.name == name:
			e = element{kind: elemValue, value: value}

		case e.kind == elemPush || e.kind == elemHash:
			e.nested = e.nested.bind(name, value)
		}

		bound.elems[i] = e
	}

	return bound
}

// SignatureCount implements Template.
func (b *Builder) SignatureCount() int {
	var n int
	for _, e := range b.elems {
		if e.kind == elemSignature {
			n++
		}
	}

	return n
}

// ResolveSignatures implements Template.
func (b *Builder) ResolveSignatures(tx *wire.MsgTx, inputIndex int,
	subscript []byte) (Template, error) {

	if b.err != nil {
		return nil, b.err
	}

	resolved := b.clone()
	for i, e := range resolved.elems {
		if e.kind != elemSignature {
			continue
		}

		sig, err := e.sign.Sign(tx, inputIndex, subscript)
		if err != nil {
			return nil, err
		}

		log.Tracef("Signed input %d with key %v (sighash %#x)",
			inputIndex, e.sign.KeyDesc.KeyLocator,
			byte(e.sign.HashType))

		resolved.elems[i] = element{kind: elemValue, value: sig}
	}

	return resolved, nil
}

// LastPush implements Template. It inspects the final element directly, so
// it can be called while signature placeholders are still unresolved.
func (b *Builder) LastPush() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.elems) == 0 {
		return nil, ErrNoPush
	}

	last := b.elems[len(b.elems)-1]
	switch last.kind {
	case elemValue:
		if data, ok := pushData(last.value); ok {
			return bytes.Clone(data), nil
		}

	case elemRaw:
		if data, ok := lastRawPush(last.raw); ok {
			return data, nil
		}

	case elemPush:
		return last.nested.Render()

	case elemHash:
		nested, err := last.nested.Render()
		if err != nil {
			return nil, err
		}

		return btcutil.Hash160(nested), nil

	case elemVariable:
		return nil, fmt.Errorf("%w: unbound variable %q", ErrNotReady,
			last.name)

	case elemSignature:
		return nil, fmt.Errorf("%w: unresolved signature", ErrNotReady)
	}

	return nil, ErrNoPush
}

// lastRawPush returns the data of the final opcode of raw if that opcode is
// a data push.
func lastRawPush(raw []byte) ([]byte, bool) {
	var (
		data   []byte
		isPush bool
	)
	tokenizer := txscript.MakeScriptTokenizer(0, raw)
	for tokenizer.Next() {
		isPush = tokenizer.Opcode() <= txscript.OP_PUSHDATA4
		data = tokenizer.Data()
	}
	if tokenizer.Err() != nil || !isPush {
		return nil, false
	}

	return bytes.Clone(data), true
}

// Render implements Template.
func (b *Builder) Render() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}

	sb := txscript.NewScriptBuilder()
	for _, e := range b.elems {
		switch e.kind {
		case elemOp:
			sb.AddOp(e.op)

		case elemValue:
			if err := addValue(sb, e.value); err != nil {
				return nil, err
			}

		case elemRaw:
			sb.AddOps(e.raw)

		case elemVariable:
			return nil, fmt.Errorf("%w: unbound variable %q",
				ErrNotReady, e.name)

		case elemSignature:
			return nil, fmt.Errorf("%w: unresolved signature for "+
				"key %v", ErrNotReady, e.sign.KeyDesc.KeyLocator)

		case elemPush, elemHash:
			nested, err := e.nested.Render()
			if err != nil {
				return nil, err
			}
			if e.kind == elemHash {
				nested = btcutil.Hash160(nested)
			}
			sb.AddData(nested)
		}
	}

	return sb.Script()
}

func addValue(sb *txscript.ScriptBuilder, v any) error {
	switch val := v.(type) {
	case int64:
		if val == math.MinInt64 {
			return fmt.Errorf("%w: %d is not a script number",
				ErrUnsupportedValue, val)
		}
		sb.AddInt64(val)

	case bool:
		if val {
			sb.AddOp(txscript.OP_TRUE)
		} else {
			sb.AddOp(txscript.OP_FALSE)
		}

	default:
		data, ok := pushData(val)
		if !ok {
			return fmt.Errorf("%w: %T", ErrUnsupportedValue, val)
		}
		sb.AddData(data)
	}

	return nil
}

// String implements Template.
func (b *Builder) String() string {
	parts := make([]string, 0, len(b.elems))
	for _, e := range b.elems {
		switch e.kind {
		case elemOp:
			parts = append(parts, opName(e.op))

		case elemValue:
			parts = append(parts, valueString(e.value))

		case elemRaw:
			disasm, err := txscript.DisasmString(e.raw)
			if err != nil {
				disasm = fmt.Sprintf("[error: %v]", err)
			}
			parts = append(parts, disasm)

		case elemVariable:
			parts = append(parts, "$"+e.name)

		case elemSignature:
			parts = append(parts, fmt.Sprintf("<sig %v>",
				e.sign.KeyDesc.KeyLocator))

		case elemPush:
			parts = append(parts, "push("+e.nested.String()+")")

		case elemHash:
			parts = append(parts, "hash160("+e.nested.String()+")")
		}
	}

	if b.err != nil {
		parts = append(parts, fmt.Sprintf("[error: %v]", b.err))
	}

	return strings.Join(parts, " ")
}

func opName(op byte) string {
	name, err := txscript.DisasmString([]byte{op})
	if err != nil {
		return fmt.Sprintf("OP_UNKNOWN%d", op)
	}

	return name
}

func valueString(v any) string {
	switch val := v.(type) {
	case int64:
		return fmt.Sprintf("%d", val)
	case bool:
		return fmt.Sprintf("%t", val)
	case string:
		return fmt.Sprintf("%q", val)
	case []byte:
		return fmt.Sprintf("%x", val)
	default:
		if data, ok := pushData(val); ok {
			return fmt.Sprintf("%x", data)
		}

		return fmt.Sprintf("%v", val)
	}
}
