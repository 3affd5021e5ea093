package graphfile

import (
	"github.com/zclconf/go-cty/cty"
)

// fileRoot is the top level of a graph file.
type fileRoot struct {
	Keys         []*keyBlock         `hcl:"key,block"`
	Scripts      []*scriptBlock      `hcl:"script,block"`
	Transactions []*transactionBlock `hcl:"transaction,block"`
}

// keyBlock declares a named signing key, given either in wallet import
// format or as a hex encoded private key.
type keyBlock struct {
	Name       string  `hcl:"name,label"`
	WIF        *string `hcl:"wif,optional"`
	PrivateKey *string `hcl:"private_key,optional"`
	Family     *int64  `hcl:"family,optional"`
}

// variableBlock declares a typed free variable.
type variableBlock struct {
	Name string `hcl:"name,label"`
	Type string `hcl:"type"`
}

// scriptBlock declares a named script that transactions can push or commit
// to by hash.
type scriptBlock struct {
	Name      string           `hcl:"name,label"`
	Variables []*variableBlock `hcl:"variable,block"`
	Script    []string         `hcl:"script"`
}

type coinbaseBlock struct {
	Script []string `hcl:"script,optional"`
}

type inputBlock struct {
	Tx              string   `hcl:"tx"`
	Index           int64    `hcl:"index"`
	Sequence        *int64   `hcl:"sequence,optional"`
	RelativeBlocks  *int64   `hcl:"relative_blocks,optional"`
	RelativeSeconds *int64   `hcl:"relative_seconds,optional"`
	Script          []string `hcl:"script,optional"`
}

type outputBlock struct {
	Value  int64    `hcl:"value"`
	Script []string `hcl:"script,optional"`
}

// transactionBlock declares one transaction of the graph.
type transactionBlock struct {
	Name      string           `hcl:"name,label"`
	Version   *int64           `hcl:"version,optional"`
	LockTime  *int64           `hcl:"locktime,optional"`
	Variables []*variableBlock `hcl:"variable,block"`
	Bindings  cty.Value        `hcl:"bindings,optional"`
	Coinbase  *coinbaseBlock   `hcl:"coinbase,block"`
	Inputs    []*inputBlock    `hcl:"input,block"`
	Outputs   []*outputBlock   `hcl:"output,block"`
}
