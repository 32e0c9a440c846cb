package utils

import (
	"time"
)

// Token constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (1 hour)
	AccessTokenTTL = time.Hour

	// AccessTokenTTLSeconds is the time-to-live for access tokens in seconds
	AccessTokenTTLSeconds = 3600
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Price entry constants
const (
	// DateLayout is the layout accepted for from_date/to_date query parameters
	DateLayout = "2006-01-02"

	DefaultPage     = 1
	MaxPage         = 100000
	DefaultPageSize = 50
	MaxPageSize     = 100

	// PresignDefaultTTLSeconds is used when a presign request carries no TTL
	PresignDefaultTTLSeconds = 3600
)

// Redis keys (prefixed with CacheConfig.RedisPrefix)
const (
	PriceEntrySyncLockKey = "price_entry:sync:%d"
)
