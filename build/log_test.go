package build

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	btclogv1 "github.com/btcsuite/btclog"
	"github.com/btcsuite/btclog/v2"
	"github.com/stretchr/testify/require"
)

func newTestManager(subsystems ...string) *SubLoggerManager {
	m := NewSubLoggerManager(btclog.NewDefaultHandler(io.Discard))
	for _, s := range subsystems {
		m.GenSubLogger(s)
	}

	return m
}

// TestParseAndSetDebugLevels checks global and per subsystem debug levels.
func TestParseAndSetDebugLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		level     string
		expErr    string
		expLevels map[string]btclogv1.Level
	}{
		{
			name:  "global",
			level: "debug",
			expLevels: map[string]btclogv1.Level{
				"ZMQS": btclogv1.LevelDebug,
				"ZMQT": btclogv1.LevelDebug,
			},
		},
		{
			name:  "global and subsystem",
			level: "warn,ZMQT=trace",
			expLevels: map[string]btclogv1.Level{
				"ZMQS": btclogv1.LevelWarn,
				"ZMQT": btclogv1.LevelTrace,
			},
		},
		{
			name:  "subsystems only",
			level: "ZMQS=error,ZMQT=off",
			expLevels: map[string]btclogv1.Level{
				"ZMQS": btclogv1.LevelError,
				"ZMQT": btclogv1.LevelOff,
			},
		},
		{
			name:   "bad global",
			level:  "loud",
			expErr: "debug level [loud] is invalid",
		},
		{
			name:   "unknown subsystem",
			level:  "info,PEER=debug",
			expErr: "subsystem [PEER] is invalid",
		},
		{
			name:   "bad pair",
			level:  "info,ZMQS",
			expErr: "invalid format",
		},
		{
			name:   "bad subsystem level",
			level:  "ZMQS=loud",
			expErr: "debug level [loud] is invalid",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			m := newTestManager("ZMQS", "ZMQT")
			err := ParseAndSetDebugLevels(test.level, m)
			if test.expErr != "" {
				require.ErrorContains(t, err, test.expErr)
				return
			}
			require.NoError(t, err)

			loggers := m.SubLoggers()
			for subsystem, level := range test.expLevels {
				require.Equal(
					t, level, loggers[subsystem].Level(),
					subsystem,
				)
			}
		})
	}
}

// TestSubLoggerManager checks loggers are created once per subsystem.
func TestSubLoggerManager(t *testing.T) {
	t.Parallel()

	m := newTestManager("ZSUB", "MNTR", "ZSUB")
	require.Equal(t, []string{"MNTR", "ZSUB"}, m.SupportedSubsystems())
	require.Same(t, m.GenSubLogger("ZSUB"), m.GenSubLogger("ZSUB"))

	// Unknown subsystems are ignored rather than created.
	m.SetLogLevel("NOPE", "debug")
	require.Len(t, m.SubLoggers(), 2)
}

// TestLogConfigValidate checks invalid log options are rejected.
func TestLogConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := DefaultLogConfig()
	require.NoError(t, cfg.Validate())
	require.Empty(t, cfg.HandlerOptions())

	cfg.CallSite = callSiteShort
	cfg.NoTimestamps = true
	require.Len(t, cfg.HandlerOptions(), 2)

	cfg.Compressor = "lz4"
	require.ErrorContains(t, cfg.Validate(), "invalid log compressor")

	cfg = DefaultLogConfig()
	cfg.CallSite = "everywhere"
	require.Error(t, cfg.Validate())
}

// TestRotatingLogWriter checks log lines reach the log file.
func TestRotatingLogWriter(t *testing.T) {
	t.Parallel()

	for _, compressor := range []string{Gzip, Zstd} {
		t.Run(compressor, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultLogConfig()
			cfg.Compressor = compressor

			logFile := filepath.Join(t.TempDir(), "logs", "zmqsub.log")
			w, err := NewRotatingLogWriter(cfg, logFile)
			require.NoError(t, err)

			_, err = w.Write([]byte("hello rotator\n"))
			require.NoError(t, err)
			require.NoError(t, w.Close())

			content, err := os.ReadFile(logFile)
			require.NoError(t, err)
			require.Contains(t, string(content), "hello rotator")
		})
	}
}
