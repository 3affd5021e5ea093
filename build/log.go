package build

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/btcsuite/btclog"
)

// LogLevel is the level used by stdout sub-loggers created for unit tests.
const LogLevel = "info"

// LogType is an indicating the type of logging specified by the build flag.
type LogType byte

const (
	// LogTypeNone indicates no logging.
	LogTypeNone LogType = iota

	// LogTypeStdOut all logging is written directly to stdout.
	LogTypeStdOut

	// LogTypeDefault logs to both stderr and a given rotating writer.
	LogTypeDefault
)

// String returns a human readable identifier for the logging type.
func (t LogType) String() string {
	switch t {
	case LogTypeNone:
		return "none"
	case LogTypeStdOut:
		return "stdout"
	case LogTypeDefault:
		return "default"
	default:
		return "unknown"
	}
}

// LogWriter is a stub type whose behavior can be changed using the build flags
// "stdlog" and "nolog". The default behavior is to write to both stderr and the
// Rotator. Passing "stdlog" will cause it only to write to stdout, and "nolog"
// implements Write as a no-op.
type LogWriter struct {
	// Rotator is the rotating log file writer. It only needs to be set if
	// neither the stdlog or nolog builds are set and file logging has been
	// requested.
	Rotator io.Writer
}

// NewSubLogger constructs a new subsystem log from the current LogWriter
// implementation. This is primarily intended for use with stdlog, as the actual
// writer is shared amongst all instantiations.
func NewSubLogger(subsystem string,
	genSubLogger func(string) btclog.Logger) btclog.Logger {

	switch Deployment {

	// For production builds, generate a new subsystem logger from the
	// primary log backend. If no function is provided, logging will be
	// disabled.
	case Production:
		if genSubLogger != nil {
			return genSubLogger(subsystem)
		}

	// For development builds, we must handle two distinct types of logging:
	// unit tests and running the command line tool.
	case Development:
		switch LoggingType {

		// Default logging is used when running the binary. We'll use
		// the optional sublogger constructor to mimic the production
		// behavior.
		case LogTypeDefault:
			if genSubLogger != nil {
				return genSubLogger(subsystem)
			}

		// Logging to stdout is used in unit tests. It is not important
		// that they share the same backend, since all output is written
		// to std out.
		case LogTypeStdOut:
			backend := btclog.NewBackend(&LogWriter{})
			logger := backend.Logger(subsystem)

			// Set the logging level of the stdout logger to use the
			// configured logging level specified by build flags.
			level, _ := btclog.LevelFromString(LogLevel)
			logger.SetLevel(level)

			return logger
		}
	}

	// For any other configurations, we'll disable logging.
	return btclog.Disabled
}

// SubLoggers is a type that holds a map of subsystem loggers keyed by their
// subsystem name.
type SubLoggers map[string]btclog.Logger

// LeveledSubLogger provides the ability to retrieve the subsystem loggers of
// a logger and set their log levels individually or all at once.
type LeveledSubLogger interface {
	// SubLoggers returns the map of all registered subsystem loggers.
	SubLoggers() SubLoggers

	// SupportedSubsystems returns a slice of strings containing the names
	// of the supported subsystems. Should ideally correspond to the keys
	// of the subsystem logger map and be sorted.
	SupportedSubsystems() []string

	// SetLogLevel assigns an individual subsystem logger a new log level.
	SetLogLevel(subsystemID string, logLevel string)

	// SetLogLevels assigns all subsystem loggers the same new log level.
	SetLogLevels(logLevel string)
}

// SubLoggerManager hands out subsystem loggers that all share one backend and
// remembers them so their levels can be changed later.
type SubLoggerManager struct {
	backend *btclog.Backend

	mu      sync.Mutex
	loggers SubLoggers
}

// A compile-time check to ensure SubLoggerManager satisfies LeveledSubLogger.
var _ LeveledSubLogger = (*SubLoggerManager)(nil)

// NewSubLoggerManager creates a manager whose loggers write to w.
func NewSubLoggerManager(w io.Writer) *SubLoggerManager {
	return &SubLoggerManager{
		backend: btclog.NewBackend(w),
		loggers: make(SubLoggers),
	}
}

// GenSubLogger returns the logger for the subsystem, creating and registering
// it on first use. Its signature matches the genSubLogger argument of
// NewSubLogger.
func (m *SubLoggerManager) GenSubLogger(subsystem string) btclog.Logger {
	m.mu.Lock()
	defer m.mu.Unlock()

	if logger, ok := m.loggers[subsystem]; ok {
		return logger
	}

	logger := m.backend.Logger(subsystem)
	m.loggers[subsystem] = logger

	return logger
}

// SubLoggers returns a copy of the registered subsystem loggers.
func (m *SubLoggerManager) SubLoggers() SubLoggers {
	m.mu.Lock()
	defer m.mu.Unlock()

	loggers := make(SubLoggers, len(m.loggers))
	for id, logger := range m.loggers {
		loggers[id] = logger
	}

	return loggers
}

// SupportedSubsystems returns the sorted names of all registered subsystems.
func (m *SubLoggerManager) SupportedSubsystems() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	subsystems := make([]string, 0, len(m.loggers))
	for id := range m.loggers {
		subsystems = append(subsystems, id)
	}
	sort.Strings(subsystems)

	return subsystems
}

// SetLogLevel sets the logging level for provided subsystem. Invalid
// subsystems are ignored.
func (m *SubLoggerManager) SetLogLevel(subsystemID string, logLevel string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	logger, ok := m.loggers[subsystemID]
	if !ok {
		return
	}

	// Defaults to info if the log level is invalid.
	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for all subsystem loggers to the passed
// level.
func (m *SubLoggerManager) SetLogLevels(logLevel string) {
	for _, id := range m.SupportedSubsystems() {
		m.SetLogLevel(id, logLevel)
	}
}

// ParseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly on the given logger. An appropriate error is returned
// if anything is invalid.
func ParseAndSetDebugLevels(level string, logger LeveledSubLogger) error {
	// Split at the delimiter.
	levels := strings.Split(level, ",")
	if len(levels) == 0 {
		return fmt.Errorf("invalid log level: %v", level)
	}

	// If the first entry has no =, treat is as the log level for all
	// subsystems.
	globalLevel := levels[0]
	if !strings.Contains(globalLevel, "=") {
		// Validate debug log level.
		if !validLogLevel(globalLevel) {
			str := "the specified debug level [%v] is invalid"
			return fmt.Errorf(str, globalLevel)
		}

		// Change the logging level for all subsystems.
		logger.SetLogLevels(globalLevel)

		// The rest will target specific subsystems.
		levels = levels[1:]
	}

	// Go through the subsystem/level pairs while detecting issues and
	// update the log levels accordingly.
	for _, logLevelPair := range levels {
		if !strings.Contains(logLevelPair, "=") {
			str := "the specified debug level contains an " +
				"invalid subsystem/level pair [%v]"
			return fmt.Errorf(str, logLevelPair)
		}

		// Extract the specified subsystem and log level.
		fields := strings.Split(logLevelPair, "=")
		if len(fields) != 2 {
			str := "the specified debug level has an invalid " +
				"format [%v] -- use format subsystem1=level1," +
				"subsystem2=level2"
			return fmt.Errorf(str, logLevelPair)
		}
		subsysID, logLevel := fields[0], fields[1]
		subLoggers := logger.SubLoggers()

		// Validate subsystem.
		if _, exists := subLoggers[subsysID]; !exists {
			str := "the specified subsystem [%v] is invalid -- " +
				"supported subsystems are %v"
			return fmt.Errorf(
				str, subsysID, logger.SupportedSubsystems(),
			)
		}

		// Validate log level.
		if !validLogLevel(logLevel) {
			str := "the specified debug level [%v] is invalid"
			return fmt.Errorf(str, logLevel)
		}

		logger.SetLogLevel(subsysID, logLevel)
	}

	return nil
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical", "off":
		return true
	}

	return false
}
