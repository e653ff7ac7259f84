// Package catalog provides read-only access to SQL Server catalog metadata used to resolve wait resources
package catalog

import (
	"context"
	"errors"
)

var (
	// ErrDatabaseNotFound is returned when no database has the requested id
	ErrDatabaseNotFound = errors.New("database not found")

	// ErrNotFound is returned when a hobt, object or index does not exist
	ErrNotFound = errors.New("catalog entry not found")

	// ErrPageInspectionUnsupported is returned when the page metadata cannot be read,
	// either because the server lacks the facility or the login lacks permission
	ErrPageInspectionUnsupported = errors.New("page inspection is not available")
)

// stateOnline is the sys.databases state_desc of a database accepting connections
const stateOnline = "ONLINE"

// Database is a row of sys.databases
type Database struct {
	ID    int64  `db:"database_id"`
	Name  string `db:"name"`
	State string `db:"state_desc"`
}

// Online reports whether the database can be queried
func (d Database) Online() bool {
	return d.State == stateOnline
}

// Hobt identifies the partition a heap or B-tree belongs to
type Hobt struct {
	ObjectID    int64 `db:"object_id"`
	IndexID     int64 `db:"index_id"`
	PartitionID int64 `db:"partition_id"`
}

// Object describes a schema scoped object and, optionally, one of its indexes
type Object struct {
	SchemaName string  `db:"schema_name"`
	ObjectName string  `db:"object_name"`
	ObjectType string  `db:"object_type"`
	IndexName  *string `db:"index_name"`
	IndexID    *int64  `db:"index_id"`
}

// Page is the allocation metadata of a single data file page
type Page struct {
	ObjectID     int64 `db:"object_id"`
	IndexID      int64 `db:"index_id"`
	PageTypeCode int   `db:"page_type"`
}

// Lookup is a read-only view over database, object and page metadata.
// Implementations must be safe for concurrent use.
type Lookup interface {
	// DatabaseState returns the database with the given id or ErrDatabaseNotFound
	DatabaseState(ctx context.Context, databaseID int64) (Database, error)

	// LookupHobt resolves a hobt id inside databaseName or returns ErrNotFound
	LookupHobt(ctx context.Context, databaseName string, hobtID int64) (Hobt, error)

	// DescribeObject resolves schema, name and type of objectID inside databaseName.
	// When indexID is not nil the index name is resolved as well.
	DescribeObject(ctx context.Context, databaseName string, objectID int64, indexID *int64) (Object, error)

	// DescribePage reads the allocation metadata of a page or returns ErrPageInspectionUnsupported
	DescribePage(ctx context.Context, databaseID, fileID, pageID int64) (Page, error)
}
