package server

import (
	"math"
	"time"

	"routesim/server/internal/telemetry"
	"routesim/server/logging"
)

// HubConfig carries engine timings and collaborators. Zero values fall back to
// the package defaults through Normalized.
type HubConfig struct {
	TickInterval  time.Duration
	GracePeriod   time.Duration
	SweepInterval time.Duration
	IdleThreshold time.Duration
	DefaultSpeed  float64
	WriteWait     time.Duration

	Clock     logging.Clock
	Logger    telemetry.Logger
	Publisher logging.Publisher
}

func DefaultHubConfig() HubConfig {
	return HubConfig{
		TickInterval:  DefaultTickInterval,
		GracePeriod:   DefaultGracePeriod,
		SweepInterval: DefaultSweepInterval,
		IdleThreshold: DefaultIdleThreshold,
		DefaultSpeed:  DefaultSpeed,
		WriteWait:     DefaultWriteWait,
	}
}

func (c HubConfig) Normalized() HubConfig {
	def := DefaultHubConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = def.GracePeriod
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	if c.IdleThreshold <= 0 {
		c.IdleThreshold = def.IdleThreshold
	}
	if !validSpeed(c.DefaultSpeed) {
		c.DefaultSpeed = def.DefaultSpeed
	}
	if c.WriteWait <= 0 {
		c.WriteWait = def.WriteWait
	}
	if c.Clock == nil {
		c.Clock = logging.SystemClock()
	}
	if c.Logger == nil {
		c.Logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	if c.Publisher == nil {
		c.Publisher = logging.NopPublisher()
	}
	return c
}

func validSpeed(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
