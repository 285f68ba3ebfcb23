package app

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/samber/lo"

	"routesim/server"
	"routesim/server/internal/observability"
	"routesim/server/logging"
)

// Sink names accepted in LOG_SINKS.
const (
	SinkConsole = "console"
	SinkJSON    = "json"
	SinkMemory  = "memory"
)

type Config struct {
	Host string `env:"HOST"`
	Port int    `env:"PORT,default=8080"`

	BadgerFilepath string `env:"BADGER_FILEPATH,default=data/routes"`
	BadgerInMemory bool   `env:"BADGER_IN_MEMORY,default=false"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH"`
	SeedRoutes     bool   `env:"SEED_ROUTES,default=true"`

	LogLevel    string `env:"LOG_LEVEL,default=INFO"`
	LogSinks    string `env:"LOG_SINKS,default=console"`
	LogJSONPath string `env:"LOG_JSON_PATH"`
	LogColor    bool   `env:"LOG_COLOR,default=true"`

	TickInterval    time.Duration `env:"TICK_INTERVAL,default=100ms"`
	GracePeriod     time.Duration `env:"GRACE_PERIOD,default=30s"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL,default=1h"`
	IdleThreshold   time.Duration `env:"IDLE_THRESHOLD,default=24h"`
	DefaultSpeed    float64       `env:"DEFAULT_SPEED,default=10"`
	WriteWait       time.Duration `env:"WRITE_WAIT,default=10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`

	ClientDir         string `env:"CLIENT_DIR"`
	EnablePprofTrace  bool   `env:"ENABLE_PPROF_TRACE,default=false"`
	EnableDiagnostics bool   `env:"ENABLE_DIAGNOSTICS,default=true"`
}

// LoadConfig reads the optional dotenv files (".env" when none are given) and
// then the process environment. Variables already set win over file values.
func LoadConfig(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("dotenv: %w", err)
	}
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("PORT %d out of range", c.Port)
	}
	if c.DefaultSpeed <= 0 || math.IsNaN(c.DefaultSpeed) || math.IsInf(c.DefaultSpeed, 0) {
		return fmt.Errorf("DEFAULT_SPEED must be a positive number, got %v", c.DefaultSpeed)
	}
	if !c.BadgerInMemory && strings.TrimSpace(c.BadgerFilepath) == "" {
		return errors.New("BADGER_FILEPATH is required unless BADGER_IN_MEMORY is set")
	}
	for _, name := range c.Sinks() {
		switch name {
		case SinkConsole, SinkMemory:
		case SinkJSON:
			if c.LogJSONPath == "" {
				return errors.New("LOG_JSON_PATH is required for the json sink")
			}
		default:
			return fmt.Errorf("unknown log sink %q", name)
		}
	}
	return nil
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Sinks returns the de-duplicated, lower-cased LOG_SINKS entries.
func (c Config) Sinks() []string {
	names := lo.Map(strings.Split(c.LogSinks, ","), func(name string, _ int) string {
		return strings.ToLower(strings.TrimSpace(name))
	})
	return lo.Uniq(lo.Compact(names))
}

func (c Config) HubConfig() server.HubConfig {
	cfg := server.DefaultHubConfig()
	cfg.TickInterval = c.TickInterval
	cfg.GracePeriod = c.GracePeriod
	cfg.SweepInterval = c.SweepInterval
	cfg.IdleThreshold = c.IdleThreshold
	cfg.DefaultSpeed = c.DefaultSpeed
	cfg.WriteWait = c.WriteWait
	return cfg
}

func (c Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = c.Sinks()
	cfg.MinimumSeverity = logging.ParseSeverity(c.LogLevel)
	cfg.JSON.FilePath = c.LogJSONPath
	cfg.Console.UseColor = c.LogColor
	cfg.Fields = map[string]any{"service": "routesim"}
	return cfg
}

func (c Config) Observability() observability.Config {
	return observability.Config{
		EnablePprofTrace:  c.EnablePprofTrace,
		EnableDiagnostics: c.EnableDiagnostics,
	}
}
