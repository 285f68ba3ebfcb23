package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"routesim/server/logging"
)

// unsetEnv clears key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HOST", "PORT", "BADGER_FILEPATH", "BADGER_IN_MEMORY", "BLUGE_FILEPATH", "SEED_ROUTES",
		"LOG_LEVEL", "LOG_SINKS", "LOG_JSON_PATH", "LOG_COLOR", "TICK_INTERVAL", "GRACE_PERIOD",
		"SWEEP_INTERVAL", "IDLE_THRESHOLD", "DEFAULT_SPEED", "WRITE_WAIT", "SHUTDOWN_TIMEOUT",
		"CLIENT_DIR", "ENABLE_PPROF_TRACE", "ENABLE_DIAGNOSTICS",
	} {
		unsetEnv(t, key)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	r := require.New(t)
	clearConfigEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	r.NoError(err)
	r.Equal(8080, cfg.Port)
	r.Equal(":8080", cfg.Addr())
	r.Equal("data/routes", cfg.BadgerFilepath)
	r.True(cfg.SeedRoutes)
	r.Equal(100*time.Millisecond, cfg.TickInterval)
	r.Equal(30*time.Second, cfg.GracePeriod)
	r.Equal(time.Hour, cfg.SweepInterval)
	r.Equal(24*time.Hour, cfg.IdleThreshold)
	r.Equal(10.0, cfg.DefaultSpeed)
	r.Equal(5*time.Second, cfg.ShutdownTimeout)
	r.Equal([]string{SinkConsole}, cfg.Sinks())
	r.True(cfg.Observability().EnableDiagnostics)
	r.False(cfg.Observability().EnablePprofTrace)
}

func TestLoadConfigDotenvAndEnvironment(t *testing.T) {
	r := require.New(t)
	clearConfigEnv(t)

	file := filepath.Join(t.TempDir(), "test.env")
	r.NoError(os.WriteFile(file, []byte("PORT=9090\nTICK_INTERVAL=50ms\nDEFAULT_SPEED=25\n"), 0o600))
	t.Setenv("TICK_INTERVAL", "250ms")
	t.Cleanup(func() {
		os.Unsetenv("PORT")
		os.Unsetenv("DEFAULT_SPEED")
	})

	cfg, err := LoadConfig(file)
	r.NoError(err)
	r.Equal(9090, cfg.Port)
	r.Equal(250*time.Millisecond, cfg.TickInterval, "process environment wins over the dotenv file")

	hubCfg := cfg.HubConfig()
	r.Equal(250*time.Millisecond, hubCfg.TickInterval)
	r.Equal(25.0, hubCfg.DefaultSpeed)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"non-positive speed": {"DEFAULT_SPEED": "0"},
		"port out of range":  {"PORT": "70000"},
		"unknown sink":       {"LOG_SINKS": "console,syslog"},
		"json without path":  {"LOG_SINKS": "json"},
		"bad duration":       {"TICK_INTERVAL": "soon"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			clearConfigEnv(t)
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
			require.Error(t, err)
		})
	}
}

func TestConfigLoggingConfig(t *testing.T) {
	r := require.New(t)
	cfg := Config{LogSinks: " Console, memory,console,, ", LogLevel: "DEBUG", LogColor: true}

	r.Equal([]string{SinkConsole, SinkMemory}, cfg.Sinks())
	logCfg := cfg.LoggingConfig()
	r.Equal(logging.SeverityDebug, logCfg.MinimumSeverity)
	r.True(logCfg.Console.UseColor)
	r.True(logCfg.HasSink(SinkMemory))
	r.Equal("routesim", logCfg.Fields["service"])
}

func TestBuildSinks(t *testing.T) {
	r := require.New(t)
	path := filepath.Join(t.TempDir(), "logs", "events.jsonl")
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{SinkMemory, SinkJSON}
	cfg.JSON.FilePath = path

	named, err := buildSinks(cfg)
	r.NoError(err)
	r.Len(named, 2)
	r.Equal(SinkMemory, named[0].Name)
	r.FileExists(path)
	for _, n := range named {
		r.NoError(n.Sink.Close(context.Background()))
	}

	cfg.EnabledSinks = []string{SinkMemory, "carrier-pigeon"}
	_, err = buildSinks(cfg)
	r.Error(err)
}

func TestOpenStoreInMemory(t *testing.T) {
	r := require.New(t)
	db, err := openStore(Config{BadgerInMemory: true})
	r.NoError(err)
	r.NoError(db.Close())
}
