package core

import (
	"context"
	"fmt"
	"os"

	"eventcore/internal/infra/blob"
	blobfs "eventcore/internal/infra/blob/fs"
	blobmemory "eventcore/internal/infra/blob/memory"
	blobs3 "eventcore/internal/infra/blob/s3"
	"eventcore/internal/infra/persistence/memory"
	"eventcore/internal/infra/persistence/postgres"
	"eventcore/internal/infra/persistence/sqlite"
	"eventcore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenPersistentStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	EVENTCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	EVENTCORE_SQLITE_PATH: path to sqlite file (default ./eventcore.db)
//	EVENTCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore() (domain.PersistentStore, error) {
	driver := os.Getenv("EVENTCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(os.Getenv("EVENTCORE_SQLITE_PATH"))
	case StoragePostgres:
		return postgres.NewStore(os.Getenv("EVENTCORE_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// OpenArchiveStore selects the import-archive backend from the
// environment. Defaults to the local filesystem; "none" disables
// archiving and returns a nil store.
//
//	EVENTCORE_ARCHIVE_DRIVER: none|fs|s3|memory (default fs)
//	EVENTCORE_ARCHIVE_FS_ROOT: root directory for the fs driver
//	EVENTCORE_ARCHIVE_S3_*: see the s3 package for bucket configuration
func OpenArchiveStore(ctx context.Context) (blob.Store, error) {
	driver := os.Getenv("EVENTCORE_ARCHIVE_DRIVER")
	if driver == "" {
		driver = string(blob.DriverFilesystem)
	}
	if driver == "none" {
		return nil, nil
	}
	switch blob.Driver(driver) {
	case blob.DriverMemory:
		return blobmemory.New(), nil
	case blob.DriverFilesystem:
		return blobfs.New(os.Getenv("EVENTCORE_ARCHIVE_FS_ROOT"))
	case blob.DriverS3:
		return blobs3.OpenFromEnv(ctx)
	default:
		return nil, fmt.Errorf("unknown archive driver %s", driver)
	}
}
