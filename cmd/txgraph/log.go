package main

import (
	"github.com/bitcointm/txgraph/build"
	"github.com/bitcointm/txgraph/graphfile"
	"github.com/bitcointm/txgraph/script"
	"github.com/bitcointm/txgraph/txbuilder"
	"github.com/btcsuite/btclog"
)

// Subsystem is the logging code of the command itself.
const Subsystem = "TXGR"

var (
	// logWriter writes every log line to stderr and, once a log directory
	// is configured, to the rotating log file.
	logWriter = &build.LogWriter{}

	// logRotator is attached to logWriter by the --logdir flag.
	logRotator = build.NewRotatingLogWriter()

	// logMgr owns one logger per subsystem so --debuglevel can address
	// them individually.
	logMgr = build.NewSubLoggerManager(logWriter)

	txgrLog btclog.Logger
)

func init() {
	setupLoggers(logMgr)
}

// setupLoggers hands every package that logs a sub logger created by the
// manager.
func setupLoggers(mgr *build.SubLoggerManager) {
	txgrLog = build.NewSubLogger(Subsystem, mgr.GenSubLogger)

	addSubLogger(mgr, script.Subsystem, script.UseLogger)
	addSubLogger(mgr, txbuilder.Subsystem, txbuilder.UseLogger)
	addSubLogger(mgr, graphfile.Subsystem, graphfile.UseLogger)
}

// addSubLogger creates a logger for the subsystem and passes it to each of
// the useLoggers callbacks.
func addSubLogger(mgr *build.SubLoggerManager, subsystem string,
	useLoggers ...func(btclog.Logger)) {

	logger := build.NewSubLogger(subsystem, mgr.GenSubLogger)
	for _, useLogger := range useLoggers {
		useLogger(logger)
	}
}
