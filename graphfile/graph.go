// Package graphfile loads transaction graphs from HCL files. A graph file
// names signing keys, reusable scripts and transactions whose inputs spend
// the outputs of transactions declared before them:
//
//	key "alice" {
//	  wif = "cV..."
//	}
//
//	transaction "funding" {
//	  coinbase {
//	    script = ["str:genesis"]
//	  }
//	  output {
//	    value  = 5000000000
//	    script = ["OP_DUP", "OP_HASH160", "pkh:alice", "OP_EQUALVERIFY", "OP_CHECKSIG"]
//	  }
//	}
//
//	transaction "spend" {
//	  input {
//	    tx     = "funding"
//	    index  = 0
//	    script = ["sig:alice", "pubkey:alice"]
//	  }
//	  output {
//	    value  = 4999990000
//	    script = ["OP_TRUE"]
//	  }
//	}
package graphfile

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/bitcointm/txgraph/keychain"
	"github.com/bitcointm/txgraph/script"
	"github.com/bitcointm/txgraph/txbuilder"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

var (
	// ErrUnknownTransaction is returned when a name does not refer to a
	// transaction declared earlier in the file.
	ErrUnknownTransaction = errors.New("unknown transaction")

	// ErrUnknownKey is returned when a script token names an undeclared
	// key.
	ErrUnknownKey = errors.New("unknown key")

	// ErrUnknownScript is returned when a script token names an undeclared
	// script.
	ErrUnknownScript = errors.New("unknown script")

	// ErrBadToken is returned for a script token that cannot be compiled.
	ErrBadToken = errors.New("bad script token")

	// ErrBadBinding is returned when a binding value cannot be converted
	// to the type of its variable.
	ErrBadBinding = errors.New("bad binding")

	// ErrInvalidBlock is returned for a block whose attributes are
	// inconsistent, such as a key with no key material or a name declared
	// twice.
	ErrInvalidBlock = errors.New("invalid block")
)

// Graph is a loaded graph file: its keys, scripts and transaction builders.
type Graph struct {
	// Params is the network addresses and keys are checked against.
	Params *chaincfg.Params

	// Keys holds every key declared in the file.
	Keys *keychain.PrivKeyRing

	keys    map[string]keychain.KeyDescriptor
	scripts map[string]*script.Builder
	txs     map[string]*txbuilder.Builder
	order   []string
}

// Load parses the graph file at path.
func Load(path string, params *chaincfg.Params) (*Graph, error) {
	parser := hclparse.NewParser()

	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse graph file %s: %w", path,
			diags)
	}

	return decode(file, path, params)
}

// Parse parses a graph from src. The filename is only used in diagnostics.
func Parse(src []byte, filename string, params *chaincfg.Params) (*Graph,
	error) {

	parser := hclparse.NewParser()

	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse graph file %s: %w",
			filename, diags)
	}

	return decode(file, filename, params)
}

func decode(file *hcl.File, filename string,
	params *chaincfg.Params) (*Graph, error) {

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode graph file %s: %w",
			filename, diags)
	}

	if params == nil {
		params = &chaincfg.MainNetParams
	}

	g := &Graph{
		Params:  params,
		Keys:    keychain.NewPrivKeyRing(),
		keys:    make(map[string]keychain.KeyDescriptor),
		scripts: make(map[string]*script.Builder),
		txs:     make(map[string]*txbuilder.Builder),
	}

	for _, kb := range root.Keys {
		if err := g.addKey(kb); err != nil {
			return nil, fmt.Errorf("key %q: %w", kb.Name, err)
		}
	}
	for _, sb := range root.Scripts {
		if err := g.addScript(sb); err != nil {
			return nil, fmt.Errorf("script %q: %w", sb.Name, err)
		}
	}
	for _, tb := range root.Transactions {
		if err := g.addTransaction(tb); err != nil {
			return nil, fmt.Errorf("transaction %q: %w", tb.Name, err)
		}
	}

	log.Debugf("Loaded graph %s: %d keys, %d scripts, %d transactions",
		filename, len(g.keys), len(g.scripts), len(g.txs))

	return g, nil
}

func (g *Graph) addKey(kb *keyBlock) error {
	if _, ok := g.keys[kb.Name]; ok {
		return fmt.Errorf("%w: declared twice", ErrInvalidBlock)
	}

	family := keychain.KeyFamilyDefault
	if kb.Family != nil {
		if *kb.Family < 0 || *kb.Family > math.MaxUint32 {
			return fmt.Errorf("%w: family %d out of range",
				ErrInvalidBlock, *kb.Family)
		}
		family = keychain.KeyFamily(*kb.Family)
	}

	var desc keychain.KeyDescriptor
	switch {
	case kb.WIF != nil && kb.PrivateKey != nil:
		return fmt.Errorf("%w: both wif and private_key set",
			ErrInvalidBlock)

	case kb.WIF != nil:
		wif, err := btcutil.DecodeWIF(*kb.WIF)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidBlock, err)
		}
		if !wif.IsForNet(g.Params) {
			return fmt.Errorf("%w: wif is not for network %s",
				ErrInvalidBlock, g.Params.Name)
		}
		desc, err = g.Keys.AddWIF(family, *kb.WIF)
		if err != nil {
			return err
		}

	case kb.PrivateKey != nil:
		raw, err := hex.DecodeString(*kb.PrivateKey)
		if err != nil || len(raw) != btcec.PrivKeyBytesLen {
			return fmt.Errorf("%w: private_key must be %d hex "+
				"encoded bytes", ErrInvalidBlock,
				btcec.PrivKeyBytesLen)
		}
		privKey, _ := btcec.PrivKeyFromBytes(raw)
		desc = g.Keys.AddKey(family, privKey)

	default:
		return fmt.Errorf("%w: one of wif or private_key is required",
			ErrInvalidBlock)
	}

	g.keys[kb.Name] = desc

	return nil
}

func (g *Graph) addScript(sb *scriptBlock) error {
	if _, ok := g.scripts[sb.Name]; ok {
		return fmt.Errorf("%w: declared twice", ErrInvalidBlock)
	}

	vars, err := declaredVariables(sb.Variables)
	if err != nil {
		return err
	}

	tmpl, err := g.compile(sb.Script, vars)
	if err != nil {
		return err
	}
	g.scripts[sb.Name] = tmpl

	return nil
}

func declaredVariables(blocks []*variableBlock) (map[string]script.Type,
	error) {

	vars := make(map[string]script.Type, len(blocks))
	for _, vb := range blocks {
		typ, err := script.ParseType(vb.Type)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", vb.Name, err)
		}
		vars[vb.Name] = typ
	}

	return vars, nil
}

func (g *Graph) addTransaction(tb *transactionBlock) error {
	if _, ok := g.txs[tb.Name]; ok {
		return fmt.Errorf("%w: declared twice", ErrInvalidBlock)
	}

	var opts []txbuilder.BuilderOption
	if tb.Version != nil {
		if *tb.Version < math.MinInt32 || *tb.Version > math.MaxInt32 {
			return fmt.Errorf("%w: version %d out of range",
				ErrInvalidBlock, *tb.Version)
		}
		opts = append(opts, txbuilder.WithVersion(int32(*tb.Version)))
	}

	b := txbuilder.NewBuilder(opts...)
	if tb.LockTime != nil {
		if *tb.LockTime < 0 || *tb.LockTime > math.MaxUint32 {
			return fmt.Errorf("%w: locktime %d out of range",
				ErrInvalidBlock, *tb.LockTime)
		}
		b.SetLockTime(uint32(*tb.LockTime))
	}

	vars, err := declaredVariables(tb.Variables)
	if err != nil {
		return err
	}
	for name, typ := range vars {
		b.DeclareVariable(name, typ)
	}

	if tb.Coinbase != nil {
		tmpl, err := g.compile(tb.Coinbase.Script, vars)
		if err != nil {
			return fmt.Errorf("coinbase: %w", err)
		}
		if err := b.AddCoinbaseInput(tmpl); err != nil {
			return fmt.Errorf("coinbase: %w", err)
		}
	}

	for i, in := range tb.Inputs {
		if err := g.addInput(b, in, vars); err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
	}

	for i, out := range tb.Outputs {
		tmpl, err := g.compile(out.Script, vars)
		if err != nil {
			return fmt.Errorf("output %d: %w", i, err)
		}
		err = b.AddOutput(tmpl, btcutil.Amount(out.Value))
		if err != nil {
			return fmt.Errorf("output %d: %w", i, err)
		}
	}

	if err := g.bindAll(b, tb.Bindings); err != nil {
		return err
	}

	g.txs[tb.Name] = b
	g.order = append(g.order, tb.Name)

	return nil
}

func (g *Graph) addInput(b *txbuilder.Builder, in *inputBlock,
	vars map[string]script.Type) error {

	parent, ok := g.txs[in.Tx]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTransaction, in.Tx)
	}
	if in.Index < 0 || in.Index > math.MaxUint32 {
		return fmt.Errorf("%w: index %d out of range", ErrInvalidBlock,
			in.Index)
	}

	var (
		opts []txbuilder.InputOption
		set  int
	)
	if in.Sequence != nil {
		if *in.Sequence < 0 || *in.Sequence > math.MaxUint32 {
			return fmt.Errorf("%w: sequence %d out of range",
				ErrInvalidBlock, *in.Sequence)
		}
		opts = append(opts, txbuilder.WithSequence(uint32(*in.Sequence)))
		set++
	}
	if in.RelativeBlocks != nil {
		if *in.RelativeBlocks < 0 || *in.RelativeBlocks > math.MaxUint16 {
			return fmt.Errorf("%w: relative_blocks %d out of range",
				ErrInvalidBlock, *in.RelativeBlocks)
		}
		opts = append(opts, txbuilder.WithRelativeLockBlocks(
			uint16(*in.RelativeBlocks),
		))
		set++
	}
	if in.RelativeSeconds != nil {
		if *in.RelativeSeconds < 0 ||
			*in.RelativeSeconds > math.MaxUint32 {

			return fmt.Errorf("%w: relative_seconds %d out of range",
				ErrInvalidBlock, *in.RelativeSeconds)
		}
		opts = append(opts, txbuilder.WithRelativeLockSeconds(
			uint32(*in.RelativeSeconds),
		))
		set++
	}
	if set > 1 {
		return fmt.Errorf("%w: sequence, relative_blocks and "+
			"relative_seconds are exclusive", ErrInvalidBlock)
	}

	tmpl, err := g.compile(in.Script, vars)
	if err != nil {
		return err
	}

	return b.AddInput(parent, uint32(in.Index), tmpl, opts...)
}

// Names returns the transaction names in declaration order.
func (g *Graph) Names() []string {
	return append([]string(nil), g.order...)
}

// Transaction returns the builder of the named transaction.
func (g *Graph) Transaction(name string) (*txbuilder.Builder, error) {
	b, ok := g.txs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransaction, name)
	}

	return b, nil
}

// Handles returns the named transactions, or all of them in declaration
// order when no name is given.
func (g *Graph) Handles(names ...string) ([]txbuilder.Transaction, error) {
	if len(names) == 0 {
		names = g.order
	}

	handles := make([]txbuilder.Transaction, 0, len(names))
	for _, name := range names {
		b, err := g.Transaction(name)
		if err != nil {
			return nil, err
		}
		handles = append(handles, b)
	}

	return handles, nil
}

// Key returns the descriptor of the named key.
func (g *Graph) Key(name string) (keychain.KeyDescriptor, error) {
	desc, ok := g.keys[name]
	if !ok {
		return keychain.KeyDescriptor{}, fmt.Errorf("%w: %q",
			ErrUnknownKey, name)
	}

	return desc, nil
}

// Script returns the named script.
func (g *Graph) Script(name string) (*script.Builder, error) {
	tmpl, ok := g.scripts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScript, name)
	}

	return tmpl, nil
}

// BindString applies an assignment of the form "tx.variable=value", parsing
// value according to the declared type of the variable.
func (g *Graph) BindString(assignment string) error {
	target, value, ok := strings.Cut(assignment, "=")
	if !ok {
		return fmt.Errorf("%w: %q is not of the form tx.var=value",
			ErrBadBinding, assignment)
	}

	txName, varName, ok := strings.Cut(target, ".")
	if !ok {
		return fmt.Errorf("%w: %q is not of the form tx.var=value",
			ErrBadBinding, assignment)
	}

	b, err := g.Transaction(txName)
	if err != nil {
		return err
	}

	typ, ok := b.FreeVariables()[varName]
	if !ok {
		return fmt.Errorf("%w: %q in transaction %q",
			txbuilder.ErrUnknownVariable, varName, txName)
	}

	v, err := g.parseValue(typ, value)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", txName, varName, err)
	}

	return b.Bind(varName, v)
}
