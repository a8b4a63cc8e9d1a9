package models

import "time"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Custody  CustodyConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// CustodyConfig holds custody core settings
type CustodyConfig struct {
	NetworksFile      string
	PlatformAccountId string
	AuthPolicy        string
}
