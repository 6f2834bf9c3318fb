package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const CleanupJobInterval = 5 * time.Minute

// Deadlines around each call that leaves the process
const (
	CalendarTimeout   = 10 * time.Second
	StoreQueryTimeout = 5 * time.Second
	NotifyTimeout     = 10 * time.Second
	PublishTimeout    = 5 * time.Second
)

// Distributed locks around a single contact's conversation and around the
// parties of a booking decision.
const (
	ContactLockTTL = 15 * time.Second
	BookingLockTTL = 30 * time.Second
	LockWaitTime   = 5 * time.Second
)
