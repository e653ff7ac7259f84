// Package waitresource decodes SQL Server wait resource strings into the database objects they refer to
package waitresource

import (
	"errors"
)

var (
	// ErrMalformedInput means the wait resource or one of its numbers could not be parsed
	ErrMalformedInput = errors.New("malformed wait resource")
	// ErrDatabaseNotFound means the database id does not exist on the server
	ErrDatabaseNotFound = errors.New("database not found")
	// ErrDatabaseNotOnline means the database exists but cannot be queried
	ErrDatabaseNotOnline = errors.New("database is not online")
	// ErrResourceNotFound means a hobt, object or page could not be resolved
	ErrResourceNotFound = errors.New("resource not found")
	// ErrUnsupportedFeature means the page inspection facility is unavailable
	ErrUnsupportedFeature = errors.New("unsupported feature")
	// ErrCatalogAccess wraps any other failure reading catalog metadata
	ErrCatalogAccess = errors.New("catalog access failed")
)

// DecodedResource is the structured description of a wait resource.
// WaitResource always holds the trimmed input. ErrorMessage is set only when
// resolution failed; Info may accompany a success or a failure. On failure only
// the identifiers parsed from the input and the database fields are kept; ids read
// from the catalog are dropped when a later lookup fails.
type DecodedResource struct {
	WaitResource string  `json:"wait_resource"`
	ResourceType string  `json:"resource_type"`
	DatabaseID   *int64  `json:"database_id,omitempty"`
	DatabaseName *string `json:"database_name,omitempty"`
	SchemaName   *string `json:"schema_name,omitempty"`
	ObjectName   *string `json:"object_name,omitempty"`
	IndexName    *string `json:"index_name,omitempty"`
	ObjectType   *string `json:"object_type,omitempty"`
	ObjectID     *int64  `json:"object_id,omitempty"`
	IndexID      *int64  `json:"index_id,omitempty"`
	PageType     *string `json:"page_type,omitempty"`
	FileID       *int64  `json:"file_id,omitempty"`
	PageID       *int64  `json:"page_id,omitempty"`
	SlotID       *int64  `json:"slot_id,omitempty"`
	HobtID       *int64  `json:"hobt_id,omitempty"`
	PartitionID  *int64  `json:"partition_id,omitempty"`
	Info         *string `json:"info,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`

	// Err is the error behind ErrorMessage, comparable with errors.Is
	Err error `json:"-"`
}

// Failed reports whether resolution failed
func (d DecodedResource) Failed() bool {
	return d.ErrorMessage != nil
}

func (d *DecodedResource) fail(err error) {
	msg := err.Error()
	d.ErrorMessage = &msg
	d.Err = err
}

func (d *DecodedResource) setInfo(info string) {
	d.Info = &info
}

func ptr[T any](v T) *T {
	return &v
}
