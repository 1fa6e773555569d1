package constants

import "time"

const (
	DefaultHTTPTimeout = 30 * time.Second
	DefaultIMAPTimeout = 30 * time.Second
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	CacheKeyPrefixProcessed = "processed:"
)

const (
	DefaultTickInterval    = 3 * time.Minute
	DefaultReloginInterval = 30 * time.Minute
	DefaultMaxResults      = 50
)

const (
	DefaultOTPPollInterval = 10 * time.Second
	DefaultOTPMaxWait      = 2 * time.Minute
)

const (
	DefaultProcessedTTL = 24 * time.Hour
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	FallbackAllow = "allow"
	FallbackDeny  = "deny"
)

const (
	DefaultCrawlRPS = 0.5
)

const (
	DefaultBookingsTable = "bookings"
	DefaultMongoDBName   = "bookingsync"
	ArchiveCollection    = "booking_snapshots"
)

const (
	DefaultOutcomeTopic = "booking_outcomes"
)
