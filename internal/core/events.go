package core

import (
	"context"
	"time"
)

// EventType names a catalog mutation.
type EventType string

const (
	// EventCreated is published after a record is inserted.
	EventCreated EventType = "created"

	// EventDeleted is published after a record is removed.
	EventDeleted EventType = "deleted"
)

// CatalogEvent describes a committed change to the catalog.
// Events are published after the catalog write succeeds, so consumers
// can treat them as facts.
type CatalogEvent struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Type is the kind of mutation.
	Type EventType `json:"type"`

	// RecordID is the content hash of the affected record.
	RecordID string `json:"record_id"`

	// Value is the raw string the event refers to.
	Value string `json:"value"`

	// Timestamp is when the mutation was committed.
	Timestamp time.Time `json:"timestamp"`

	// RetryCount tracks how many times delivery has been retried.
	RetryCount int `json:"retry_count,omitempty"`
}

// EventQueue buffers catalog events between the write path and the drainer.
type EventQueue interface {
	// Enqueue adds an event to the queue.
	Enqueue(ctx context.Context, event *CatalogEvent) error

	// Dequeue retrieves up to batchSize events.
	// Returns an empty slice if no events are available.
	Dequeue(ctx context.Context, batchSize int) ([]*CatalogEvent, error)

	// Size returns the current number of queued events.
	// Some backends can only approximate it.
	Size() int

	// Close closes the queue and releases resources.
	Close() error
}
