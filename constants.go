package server

import "time"

const (
	ProtocolVersion = 1

	DefaultTickInterval  = 100 * time.Millisecond
	DefaultGracePeriod   = 30 * time.Second
	DefaultSweepInterval = time.Hour
	DefaultIdleThreshold = 24 * time.Hour
	DefaultSpeed         = 10.0 // meters per second
	DefaultWriteWait     = 10 * time.Second

	sendBufferSize = 64
	joinAttempts   = 3
)

// Actor labels carried in the *By field of control events.
const (
	ByUser     = "user"
	ByOperator = "operator"
)
