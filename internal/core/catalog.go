package core

import "context"

// Catalog is a content-addressed store of string records.
// Implementations enforce uniqueness of the record id in the storage layer
// itself (unique key or conditional write), never by read-then-write.
type Catalog interface {
	// Put analyzes value and persists the resulting record.
	// A value that is already cataloged fails with a KindDuplicate error
	// and leaves the store untouched.
	Put(ctx context.Context, value string) (*StringRecord, error)

	// GetByValue returns the record whose value matches exactly.
	// Absence is reported as a KindNotFound error.
	GetByValue(ctx context.Context, value string) (*StringRecord, error)

	// Query returns every record matching all present predicates of filter,
	// in a stable order.
	Query(ctx context.Context, filter QueryFilter) ([]*StringRecord, error)

	// Delete removes the record for value together with its properties.
	Delete(ctx context.Context, value string) error

	// Count returns the number of cataloged records.
	Count(ctx context.Context) (int64, error)

	// Close releases the underlying storage handle.
	Close() error
}
