package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bitcointm/txgraph/build"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/urfave/cli"
)

const (
	defaultDebugLevel  = "info"
	defaultNetwork     = "mainnet"
	defaultLogFilename = "txgraph.log"
)

var defaultLogDir = filepath.Join(btcutil.AppDataDir("txgraph", false),
	"logs")

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[txgraph] %v\n", err)
	os.Exit(1)
}

// networkParams maps a network name to its chain parameters.
func networkParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil

	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil

	case "regtest":
		return &chaincfg.RegressionNetParams, nil

	case "simnet":
		return &chaincfg.SimNetParams, nil

	case "signet":
		return &chaincfg.SigNetParams, nil

	default:
		return nil, fmt.Errorf("unknown network: %v", network)
	}
}

// setupLogging applies the global logging flags. File logging is only
// enabled when --logdir is given.
func setupLogging(ctx *cli.Context) error {
	if _, err := networkParams(ctx.GlobalString("network")); err != nil {
		return err
	}

	if logDir := ctx.GlobalString("logdir"); logDir != "" {
		cfg := &build.FileLoggerConfig{
			Compressor:     ctx.GlobalString("logcompressor"),
			MaxLogFiles:    ctx.GlobalInt("maxlogfiles"),
			MaxLogFileSize: ctx.GlobalInt("maxlogfilesize"),
		}

		logFile := filepath.Join(logDir, defaultLogFilename)
		err := logRotator.InitLogRotator(cfg, logFile)
		if err != nil {
			return err
		}
		logWriter.Rotator = logRotator
	}

	err := build.ParseAndSetDebugLevels(
		ctx.GlobalString("debuglevel"), logMgr,
	)
	if err != nil {
		return err
	}

	txgrLog.Debugf("Logging configured, network=%v",
		ctx.GlobalString("network"))

	return nil
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "txgraph"
	app.Version = build.Version() + " commit=" + build.Commit
	app.Usage = "build and sign graphs of dependent bitcoin transactions"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name: "network, n",
			Usage: "The network addresses and keys are checked " +
				"against, e.g. mainnet, testnet3, regtest, " +
				"simnet or signet.",
			Value: defaultNetwork,
		},
		cli.StringFlag{
			Name: "debuglevel",
			Usage: "Logging level for all subsystems, or a " +
				"comma separated list of subsystem=level " +
				"pairs, e.g. TXBD=debug,SCPT=trace.",
			Value: defaultDebugLevel,
		},
		cli.StringFlag{
			Name: "logdir",
			Usage: "If set, logs are also written to a rotating " +
				"file in this directory, e.g. " + defaultLogDir +
				".",
			TakesFile: true,
		},
		cli.IntFlag{
			Name:  "maxlogfiles",
			Usage: "Maximum number of rolled log files to keep.",
			Value: build.DefaultMaxLogFiles,
		},
		cli.IntFlag{
			Name:  "maxlogfilesize",
			Usage: "Maximum log file size in MB before rolling.",
			Value: build.DefaultMaxLogFileSize,
		},
		cli.StringFlag{
			Name:  "logcompressor",
			Usage: "Compression of rolled log files, gzip or zstd.",
			Value: build.Gzip,
		},
	}
	app.Before = setupLogging
	app.After = func(ctx *cli.Context) error {
		if logWriter.Rotator == nil {
			return nil
		}
		logWriter.Rotator = nil

		return logRotator.Close()
	}
	app.Commands = []cli.Command{
		buildCommand,
		statusCommand,
		inspectCommand,
		versionCommand,
	}

	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fatal(err)
	}
}
