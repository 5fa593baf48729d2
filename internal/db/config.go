package db

import (
	"fmt"
	"os"
	"time"
)

// Config holds MySQL connection settings.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string

	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

// NewConfig reads connection settings from the MYSQL_* environment variables.
// Parse behaviour is configured separately through the PARSE_* variables in
// the parser package.
func NewConfig() *Config {
	return &Config{
		Host:     getEnvOrDefault("MYSQL_HOST", "localhost"),
		Port:     getEnvOrDefault("MYSQL_PORT", "3306"),
		User:     getEnvOrDefault("MYSQL_USER", "root"),
		Password: getEnvOrDefault("MYSQL_PASSWORD", ""),
		Database: getEnvOrDefault("MYSQL_DATABASE", "mahaon_parser"),

		// A single crawl worker does all the writing; the rest of the pool
		// only has to cover browse, export and auth reads.
		MaxOpen:         10,
		MaxIdle:         2,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// dsn builds the go-sql-driver DSN. parseTime is required for gorm to scan
// DATETIME columns into time.Time.
func (c *Config) dsn() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&collation=utf8mb4_unicode_ci",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
