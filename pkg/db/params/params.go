package params

import "time"

// Database holds the connection parameters for the mapping database.
type Database struct {
	ConnectionString      string
	MaxOpenConnections    int32
	MaxIdleConnections    int32
	ConnectionMaxLifetime time.Duration
}
