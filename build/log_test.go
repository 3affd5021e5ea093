package build

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btclog"
	"github.com/stretchr/testify/require"
)

// TestParseAndSetDebugLevels checks the global and per subsystem forms of
// the debug level string.
func TestParseAndSetDebugLevels(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		level  string
		want   map[string]btclog.Level
		expErr bool
	}{
		{
			name:  "global",
			level: "debug",
			want: map[string]btclog.Level{
				"AAAA": btclog.LevelDebug,
				"BBBB": btclog.LevelDebug,
			},
		},
		{
			name:  "global and subsystem",
			level: "warn,BBBB=trace",
			want: map[string]btclog.Level{
				"AAAA": btclog.LevelWarn,
				"BBBB": btclog.LevelTrace,
			},
		},
		{
			name:  "subsystem only",
			level: "AAAA=error",
			want: map[string]btclog.Level{
				"AAAA": btclog.LevelError,
				"BBBB": btclog.LevelInfo,
			},
		},
		{
			name:   "invalid global",
			level:  "loud",
			expErr: true,
		},
		{
			name:   "unknown subsystem",
			level:  "CCCC=debug",
			expErr: true,
		},
		{
			name:   "invalid subsystem level",
			level:  "AAAA=loud",
			expErr: true,
		},
		{
			name:   "missing pair",
			level:  "info,AAAA",
			expErr: true,
		},
		{
			name:   "double assignment",
			level:  "AAAA=debug=trace",
			expErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mgr := NewSubLoggerManager(&bytes.Buffer{})
			mgr.GenSubLogger("BBBB")
			mgr.GenSubLogger("AAAA")
			mgr.SetLogLevels("info")

			err := ParseAndSetDebugLevels(tc.level, mgr)
			if tc.expErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			loggers := mgr.SubLoggers()
			for id, level := range tc.want {
				require.Equal(t, level, loggers[id].Level(), id)
			}
		})
	}
}

// TestSubLoggerManager checks loggers are shared per subsystem and write to
// the manager's writer.
func TestSubLoggerManager(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	mgr := NewSubLoggerManager(&buf)

	logger := mgr.GenSubLogger("TEST")
	require.Same(t, logger, mgr.GenSubLogger("TEST"))
	require.Equal(t, []string{"TEST"}, mgr.SupportedSubsystems())

	mgr.SetLogLevel("TEST", "info")
	logger.Debugf("hidden")
	logger.Infof("shown %d", 1)
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "TEST: shown 1")

	// Unknown subsystems are ignored.
	mgr.SetLogLevel("NOPE", "trace")
	require.Len(t, mgr.SubLoggers(), 1)
}

// TestRotatingLogWriter creates a log file for each supported compressor
// and rejects unknown ones.
func TestRotatingLogWriter(t *testing.T) {
	t.Parallel()

	for _, compressor := range []string{Gzip, Zstd} {
		cfg := DefaultFileLoggerConfig()
		cfg.Compressor = compressor

		logFile := filepath.Join(t.TempDir(), "logs", "test.log")
		w := NewRotatingLogWriter()
		require.NoError(t, w.InitLogRotator(cfg, logFile))

		n, err := w.Write([]byte("line\n"))
		require.NoError(t, err)
		require.Equal(t, 5, n)
		require.NoError(t, w.Close())
		require.FileExists(t, logFile)
	}

	cfg := DefaultFileLoggerConfig()
	cfg.Compressor = "lz4"
	w := NewRotatingLogWriter()
	err := w.InitLogRotator(cfg, filepath.Join(t.TempDir(), "test.log"))
	require.Error(t, err)
	require.False(t, SupportedLogCompressor("lz4"))

	// An uninitialized writer drops writes.
	n, err := w.Write([]byte("dropped"))
	require.NoError(t, err)
	require.Equal(t, 7, n)
	require.NoError(t, w.Close())
}
