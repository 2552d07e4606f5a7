// Package backend selects and opens the storage implementation from
// configuration.
package backend

import (
	"fmt"

	"github.com/garyjeong/household-ledger-server/internal/config"
	"github.com/garyjeong/household-ledger-server/internal/storage"
)

// CleanupFunc releases backend resources on shutdown.
type CleanupFunc func() error

// Result is an opened repository plus its cleanup.
type Result struct {
	Repository storage.Repository
	Cleanup    CleanupFunc
}

type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Config holds what is needed to open a backend.
type Config struct {
	Type         BackendType
	SQLiteDBPath string
	PostgresDSN  string
}

// FromAppConfig extracts the backend section of the application config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	backendType := BackendType(appConfig.StorageBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.StorageBackend)
	}
	return Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		PostgresDSN:  appConfig.PostgresDSN,
	}, nil
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("database path is required for the sqlite backend")
		}
	case PostgresBackend:
		if c.PostgresDSN == "" {
			return fmt.Errorf("DSN is required for the postgres backend")
		}
	case MemoryBackend:
	}
	return nil
}
