package graphfile

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bitcointm/txgraph/hashes"
	"github.com/bitcointm/txgraph/script"
	"github.com/bitcointm/txgraph/txbuilder"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// parseValue converts the textual form of a value of type typ. Public keys
// may be given as the name of a key of the graph.
func (g *Graph) parseValue(typ script.Type, s string) (any, error) {
	switch typ {
	case script.TypeInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadBinding, err)
		}
		if !typ.Check(n) {
			return nil, fmt.Errorf("%w: %d is not a script number",
				ErrBadBinding, n)
		}
		return n, nil

	case script.TypeBool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadBinding, err)
		}
		return v, nil

	case script.TypeString:
		return s, nil

	case script.TypeBytes:
		data, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadBinding, err)
		}
		return data, nil

	case script.TypePubKey:
		if desc, ok := g.keys[s]; ok {
			return desc.PubKey, nil
		}

		raw, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is neither a key name "+
				"nor hex", ErrBadBinding, s)
		}
		pubKey, err := btcec.ParsePubKey(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadBinding, err)
		}
		return pubKey, nil
	}

	// The remaining types are hashes, given either as "<tag>:<hex>" or as
	// bare hex.
	var (
		h   hashes.Hash
		err error
	)
	if strings.Contains(s, ":") {
		h, err = hashes.Parse(s)
	} else {
		var digest []byte
		digest, err = hex.DecodeString(s)
		h = hashes.New(hashKind(typ), digest)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadBinding, err)
	}
	if !typ.Check(h) {
		return nil, fmt.Errorf("%w: %v is not a %v", ErrBadBinding, h,
			typ)
	}

	return h, nil
}

func hashKind(typ script.Type) hashes.Kind {
	switch typ {
	case script.TypeHash256:
		return hashes.Hash256
	case script.TypeRipemd160:
		return hashes.Ripemd160
	case script.TypeSha256:
		return hashes.Sha256
	default:
		return hashes.Hash160
	}
}

// ctyValue converts an HCL value to a value of type typ. Numbers and
// booleans are taken natively; every other type is given as a string.
func (g *Graph) ctyValue(typ script.Type, v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, fmt.Errorf("%w: null or unknown value", ErrBadBinding)
	}

	switch typ {
	case script.TypeInt:
		var n int64
		if err := gocty.FromCtyValue(v, &n); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadBinding, err)
		}
		if !typ.Check(n) {
			return nil, fmt.Errorf("%w: %d is not a script number",
				ErrBadBinding, n)
		}
		return n, nil

	case script.TypeBool:
		var b bool
		if err := gocty.FromCtyValue(v, &b); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadBinding, err)
		}
		return b, nil
	}

	var s string
	if err := gocty.FromCtyValue(v, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadBinding, err)
	}

	return g.parseValue(typ, s)
}

// bindAll applies the bindings attribute of a transaction block.
func (g *Graph) bindAll(b *txbuilder.Builder, bindings cty.Value) error {
	if bindings.IsNull() {
		return nil
	}
	if !bindings.Type().IsObjectType() && !bindings.Type().IsMapType() {
		return fmt.Errorf("%w: bindings must be an object",
			ErrBadBinding)
	}

	values := bindings.AsValueMap()
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	declared := b.FreeVariables()
	for _, name := range names {
		typ, ok := declared[name]
		if !ok {
			return fmt.Errorf("binding %q: %w", name,
				txbuilder.ErrUnknownVariable)
		}

		v, err := g.ctyValue(typ, values[name])
		if err != nil {
			return fmt.Errorf("binding %q: %w", name, err)
		}

		if err := b.Bind(name, v); err != nil {
			return fmt.Errorf("binding %q: %w", name, err)
		}
	}

	return nil
}
