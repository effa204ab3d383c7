package core

import (
	"fmt"
	"os"

	"routingcore/internal/infra/persistence/memory"
	"routingcore/internal/infra/persistence/postgres"
	"routingcore/internal/infra/persistence/sqlite"
	"routingcore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and parameterizes the registry backend.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// StorageConfigFromEnv reads the backend selection from the environment.
//
//	ROUTINGCORE_STORAGE_DRIVER: memory|sqlite|postgres (default memory)
//	ROUTINGCORE_SQLITE_PATH: path to sqlite file (default ./routingcore.db)
//	ROUTINGCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func StorageConfigFromEnv() StorageConfig {
	return StorageConfig{
		Driver:      StorageDriver(os.Getenv("ROUTINGCORE_STORAGE_DRIVER")),
		SQLitePath:  os.Getenv("ROUTINGCORE_SQLITE_PATH"),
		PostgresDSN: os.Getenv("ROUTINGCORE_POSTGRES_DSN"),
	}
}

// OpenPersistentStore constructs the configured backend. An empty driver
// selects the in-memory registry.
func OpenPersistentStore(cfg StorageConfig, engine *domain.RulesEngine) (domain.PersistentStore, error) {
	switch cfg.Driver {
	case "", StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(cfg.PostgresDSN, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
