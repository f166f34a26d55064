// Package config loads the process supervisor's environment. Loading,
// validation, and defaulting live here as the ambient concern the teacher
// project also keeps in internal/config; the admin CLI and production
// secrets management are external collaborators that merely populate the
// environment this package reads.
package config

import (
	"os"
	"strconv"
)

type HTTPConfig struct {
	Addr string
}

type StorageConfig struct {
	// Type is "sqlite" or "postgres".
	Type string
	// DSN is the sqlite file path or the postgres connection string.
	DSN string
}

type Config struct {
	CalDAV      HTTPConfig
	MCP         HTTPConfig
	Storage     StorageConfig
	LogLevel    string
	MaxICSBytes int64
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func Load() (*Config, error) {
	return &Config{
		CalDAV: HTTPConfig{
			Addr: getenv("CALDAV_ADDR", ":8001"),
		},
		MCP: HTTPConfig{
			Addr: getenv("MCP_ADDR", ":8002"),
		},
		Storage: StorageConfig{
			Type: getenv("STORAGE_TYPE", "sqlite"),
			DSN:  getenv("STORAGE_DSN", "./data/caldav.db"),
		},
		LogLevel:    getenv("LOG_LEVEL", "info"),
		MaxICSBytes: getenvInt64("MAX_ICS_BYTES", 256*1024),
	}, nil
}
