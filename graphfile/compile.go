package graphfile

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/bitcointm/txgraph/hashes"
	"github.com/bitcointm/txgraph/script"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
)

// compile turns a list of script tokens into a template. Variables are
// resolved against vars.
func (g *Graph) compile(tokens []string,
	vars map[string]script.Type) (*script.Builder, error) {

	b := script.NewBuilder()
	for i, tok := range tokens {
		if err := g.compileToken(b, tok, vars); err != nil {
			return nil, fmt.Errorf("token %d %q: %w", i, tok, err)
		}
		if err := b.Err(); err != nil {
			return nil, fmt.Errorf("token %d %q: %w", i, tok, err)
		}
	}

	return b, nil
}

func (g *Graph) compileToken(b *script.Builder, tok string,
	vars map[string]script.Type) error {

	switch {
	case strings.HasPrefix(tok, "OP_"):
		op, ok := txscript.OpcodeByName[tok]
		if !ok {
			return fmt.Errorf("%w: unknown opcode", ErrBadToken)
		}
		b.AddOp(op)

		return nil

	case strings.HasPrefix(tok, "$"):
		name := tok[1:]
		typ, ok := vars[name]
		if !ok {
			return fmt.Errorf("%w: variable %q is not declared",
				ErrBadToken, name)
		}
		b.AddVariable(name, typ)

		return nil
	}

	prefix, arg, ok := strings.Cut(tok, ":")
	if !ok {
		n, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: not an opcode, number or "+
				"prefixed value", ErrBadToken)
		}
		b.AddInt64(n)

		return nil
	}

	switch prefix {
	case "sig":
		signDesc, err := g.signDescriptor(arg)
		if err != nil {
			return err
		}
		b.AddSignature(signDesc)

	case "pubkey":
		desc, err := g.Key(arg)
		if err != nil {
			return err
		}
		b.AddValue(desc.PubKey)

	case "pkh":
		desc, err := g.Key(arg)
		if err != nil {
			return err
		}
		b.AddValue(hashes.Hash160Of(desc.PubKey.SerializeCompressed()))

	case "hex":
		data, err := hex.DecodeString(arg)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadToken, err)
		}
		b.AddData(data)

	case "raw":
		raw, err := hex.DecodeString(arg)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadToken, err)
		}
		b.AddRaw(raw)

	case "str":
		b.AddData([]byte(arg))

	case "hash":
		h, err := hashes.Parse(arg)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadToken, err)
		}
		b.AddValue(h)

	case "addr":
		addr, err := btcutil.DecodeAddress(arg, g.Params)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadToken, err)
		}
		if !addr.IsForNet(g.Params) {
			return fmt.Errorf("%w: address is not for network %s",
				ErrBadToken, g.Params.Name)
		}
		pkScript, err := txscript.PayToAddrScript(addr)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadToken, err)
		}
		b.AddRaw(pkScript)

	case "push", "p2sh":
		nested, err := g.Script(arg)
		if err != nil {
			return err
		}
		if prefix == "push" {
			b.AddScript(nested)
		} else {
			b.AddScriptHash(nested)
		}

	default:
		return fmt.Errorf("%w: unknown prefix %q", ErrBadToken, prefix)
	}

	return nil
}

// signDescriptor parses "key[:all|none|single][:anyonecanpay]".
func (g *Graph) signDescriptor(arg string) (*script.SignDescriptor, error) {
	parts := strings.Split(arg, ":")

	desc, err := g.Key(parts[0])
	if err != nil {
		return nil, err
	}

	hashType := txscript.SigHashAll
	var anyoneCanPay bool
	for _, modifier := range parts[1:] {
		switch modifier {
		case "all":
			hashType = txscript.SigHashAll
		case "none":
			hashType = txscript.SigHashNone
		case "single":
			hashType = txscript.SigHashSingle
		case "anyonecanpay":
			anyoneCanPay = true
		default:
			return nil, fmt.Errorf("%w: unknown sighash modifier %q",
				ErrBadToken, modifier)
		}
	}
	if anyoneCanPay {
		hashType |= txscript.SigHashAnyOneCanPay
	}

	return &script.SignDescriptor{
		KeyDesc:  desc,
		HashType: hashType,
		Signer:   g.Keys,
	}, nil
}
