package db

import (
	"time"
)

const (
	maxConnectionRetries = 10
	initialRetryBackoff  = 500 * time.Millisecond
	maxRetryBackoff      = 10 * time.Second
)

// Database pool default constants
const (
	defaultMaxConns          int32         = 25
	defaultMinConns          int32         = 5
	defaultMaxConnIdleTime   time.Duration = 30 * time.Minute
	defaultMaxConnLifetime   time.Duration = time.Hour
	defaultHealthCheckPeriod time.Duration = time.Minute
)

// Advisory lock ids. Stage locks keep scheduled and manual runs of the same
// stage from overlapping across instances.
const (
	migrationLockID int64 = 1000

	LockIDIngest  int64 = 2001
	LockIDFilter  int64 = 2002
	LockIDDigest  int64 = 2003
	LockIDDeliver int64 = 2004
	LockIDCleanup int64 = 2005
)

// Query limits
const (
	// defaultListLimit caps list queries that have no explicit limit.
	defaultListLimit = 1000
)
