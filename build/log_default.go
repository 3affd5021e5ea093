//go:build !stdlog && !nolog
// +build !stdlog,!nolog

package build

import "os"

// LoggingType is a log type that writes to both stderr and the log rotator, if
// present.
const LoggingType = LogTypeDefault

// Write writes the byte slice to stderr and to the rotating log file if one
// has been attached. Stdout is left to command output.
func (w *LogWriter) Write(b []byte) (int, error) {
	os.Stderr.Write(b)
	if w.Rotator != nil {
		if _, err := w.Rotator.Write(b); err != nil {
			return 0, err
		}
	}

	return len(b), nil
}
