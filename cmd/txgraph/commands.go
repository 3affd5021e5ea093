package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/bitcointm/txgraph/build"
	"github.com/bitcointm/txgraph/graphfile"
	"github.com/bitcointm/txgraph/txbuilder"
	"github.com/urfave/cli"
)

var bindFlag = cli.StringSliceFlag{
	Name: "bind",
	Usage: "Bind a transaction variable, in the form tx.var=value. " +
		"This flag may be specified multiple times.",
}

// printJSON writes resp to w as indented JSON.
func printJSON(w io.Writer, resp interface{}) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, b, "", "    "); err != nil {
		return err
	}
	out.WriteString("\n")

	_, err = out.WriteTo(w)

	return err
}

// loadGraph reads the graph file named by the first argument and applies
// every --bind flag to it.
func loadGraph(ctx *cli.Context) (*graphfile.Graph, error) {
	if ctx.NArg() != 1 {
		return nil, fmt.Errorf("expected exactly one graph file, got %d "+
			"arguments", ctx.NArg())
	}

	params, err := networkParams(ctx.GlobalString("network"))
	if err != nil {
		return nil, err
	}

	graph, err := graphfile.Load(ctx.Args().First(), params)
	if err != nil {
		return nil, err
	}

	for _, assignment := range ctx.StringSlice("bind") {
		if err := graph.BindString(assignment); err != nil {
			return nil, fmt.Errorf("unable to bind %q: %w",
				assignment, err)
		}
	}

	txgrLog.Debugf("Loaded graph %v with %d transactions",
		ctx.Args().First(), len(graph.Names()))

	return graph, nil
}

// selectedNames returns the --tx names, or every transaction of the graph
// when none were given.
func selectedNames(ctx *cli.Context, graph *graphfile.Graph) []string {
	if names := ctx.StringSlice("tx"); len(names) > 0 {
		return names
	}

	return graph.Names()
}

var buildCommand = cli.Command{
	Name:      "build",
	Category:  "Graph",
	Usage:     "Build and sign the transactions of a graph file.",
	ArgsUsage: "file",
	Description: `
	Resolves the selected transactions of the graph file, signing every
	input, and prints their txids and serialized form. Transactions are
	built in parallel. All of them must be ready, meaning every declared
	variable is bound either in the file or with --bind.
	`,
	Flags: []cli.Flag{
		bindFlag,
		cli.StringSliceFlag{
			Name: "tx",
			Usage: "The name of a transaction to build. This flag " +
				"may be specified multiple times, all " +
				"transactions are built if it is absent.",
		},
	},
	Action: buildTransactions,
}

type builtTx struct {
	Name string `json:"name"`
	TxID string `json:"txid"`
	Hex  string `json:"hex"`
}

func buildTransactions(ctx *cli.Context) error {
	graph, err := loadGraph(ctx)
	if err != nil {
		return err
	}

	names := selectedNames(ctx, graph)
	handles, err := graph.Handles(names...)
	if err != nil {
		return err
	}

	txs, err := txbuilder.BuildAll(context.Background(), handles...)
	if err != nil {
		return err
	}

	resp := make([]builtTx, 0, len(txs))
	for i, tx := range txs {
		var buf bytes.Buffer
		if err := tx.Serialize(&buf); err != nil {
			return err
		}

		resp = append(resp, builtTx{
			Name: names[i],
			TxID: tx.TxHash().String(),
			Hex:  hex.EncodeToString(buf.Bytes()),
		})
	}

	txgrLog.Infof("Built %d transactions", len(resp))

	return printJSON(ctx.App.Writer, resp)
}

var statusCommand = cli.Command{
	Name:      "status",
	Category:  "Graph",
	Usage:     "Show which transactions of a graph file are ready.",
	ArgsUsage: "file",
	Description: `
	Prints, for every transaction of the graph file, whether it can be
	built and which of its variables are still unbound.
	`,
	Flags:  []cli.Flag{bindFlag},
	Action: showStatus,
}

type txStatus struct {
	Name    string   `json:"name"`
	Ready   bool     `json:"ready"`
	Unbound []string `json:"unbound_variables"`
	Reason  string   `json:"reason,omitempty"`
}

func showStatus(ctx *cli.Context) error {
	graph, err := loadGraph(ctx)
	if err != nil {
		return err
	}

	resp := make([]txStatus, 0, len(graph.Names()))
	for _, name := range graph.Names() {
		b, err := graph.Transaction(name)
		if err != nil {
			return err
		}

		status := txStatus{
			Name:    name,
			Unbound: b.UnboundVariables(),
		}
		if err := b.ReadyErr(); err != nil {
			status.Reason = err.Error()
		} else {
			status.Ready = true
		}
		resp = append(resp, status)
	}

	return printJSON(ctx.App.Writer, resp)
}

var inspectCommand = cli.Command{
	Name:      "inspect",
	Category:  "Graph",
	Usage:     "Print the state of one transaction of a graph file.",
	ArgsUsage: "file",
	Flags: []cli.Flag{
		bindFlag,
		cli.StringFlag{
			Name:  "tx",
			Usage: "The name of the transaction to inspect.",
		},
	},
	Action: inspectTransaction,
}

func inspectTransaction(ctx *cli.Context) error {
	name := ctx.String("tx")
	if name == "" {
		return fmt.Errorf("--tx is required")
	}

	graph, err := loadGraph(ctx)
	if err != nil {
		return err
	}

	b, err := graph.Transaction(name)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(ctx.App.Writer, b.String())

	return err
}

var versionCommand = cli.Command{
	Name:   "version",
	Usage:  "Display txgraph version info.",
	Action: printVersion,
}

type versionResp struct {
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	Deployment string `json:"deployment"`
}

func printVersion(ctx *cli.Context) error {
	return printJSON(ctx.App.Writer, versionResp{
		Version:    build.Version(),
		Commit:     build.Commit,
		Deployment: build.Deployment.String(),
	})
}
