package core

import (
	"fmt"
	"os"

	"floracore/internal/infra/persistence/memory"
	"floracore/internal/infra/persistence/mysql"
	"floracore/internal/infra/persistence/postgres"
	"floracore/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageMySQL    StorageDriver = "mysql"    // MySQL server
)

// OpenPersistentStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	FLORACORE_STORAGE_DRIVER: memory|sqlite|postgres|mysql (default sqlite)
//	FLORACORE_SQLITE_PATH: path to sqlite file (default ./floracore.db)
//	FLORACORE_POSTGRES_DSN: postgres DSN when driver=postgres
//	FLORACORE_MYSQL_DSN: mysql DSN when driver=mysql
func OpenPersistentStore(engine *RulesEngine) (PersistentStore, error) {
	driver := os.Getenv("FLORACORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		path := os.Getenv("FLORACORE_SQLITE_PATH")
		return sqlite.NewStore(path, engine)
	case StoragePostgres:
		dsn := os.Getenv("FLORACORE_POSTGRES_DSN")
		return postgres.NewStore(dsn, engine)
	case StorageMySQL:
		dsn := os.Getenv("FLORACORE_MYSQL_DSN")
		return mysql.NewStore(dsn, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
